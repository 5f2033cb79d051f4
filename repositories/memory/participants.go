package memory

import (
	"context"
	"sort"

	"github.com/Dosada05/bracket-engine/models"
	"github.com/Dosada05/bracket-engine/repositories"
)

type participantRepository struct {
	s *Store
}

func (r *participantRepository) Create(ctx context.Context, exec repositories.SQLExecutor, p *models.Participant) error {
	defer r.s.acquire(exec)()

	if _, ok := r.s.tournaments[p.TournamentID]; !ok {
		return repositories.ErrParticipantTournamentInvalid
	}
	for _, existing := range r.s.participants {
		if existing.TournamentID == p.TournamentID && existing.UserID == p.UserID {
			return repositories.ErrParticipantConflict
		}
	}
	r.s.nextParticipantID++
	now := r.s.now()
	p.ID = r.s.nextParticipantID
	p.CreatedAt, p.UpdatedAt = now, now
	if p.MatchHistory == nil {
		p.MatchHistory = []models.MatchHistoryEntry{}
	}
	r.s.participants[p.ID] = p.Clone()
	return nil
}

func (r *participantRepository) GetByID(ctx context.Context, exec repositories.SQLExecutor, id int) (*models.Participant, error) {
	defer r.s.acquire(exec)()
	p, ok := r.s.participants[id]
	if !ok {
		return nil, repositories.ErrParticipantNotFound
	}
	return p.Clone(), nil
}

func (r *participantRepository) GetByIDForUpdate(ctx context.Context, exec repositories.SQLExecutor, id int) (*models.Participant, error) {
	return r.GetByID(ctx, exec, id)
}

func (r *participantRepository) FindByUserAndTournament(ctx context.Context, exec repositories.SQLExecutor, userID, tournamentID int) (*models.Participant, error) {
	defer r.s.acquire(exec)()
	for _, p := range r.s.participants {
		if p.UserID == userID && p.TournamentID == tournamentID {
			return p.Clone(), nil
		}
	}
	return nil, repositories.ErrParticipantNotFound
}

func (r *participantRepository) ListByTournament(ctx context.Context, exec repositories.SQLExecutor, tournamentID int, paymentFilter *models.PaymentStatus) ([]*models.Participant, error) {
	defer r.s.acquire(exec)()
	out := make([]*models.Participant, 0)
	for _, p := range r.s.participants {
		if p.TournamentID != tournamentID {
			continue
		}
		if paymentFilter != nil && p.PaymentStatus != *paymentFilter {
			continue
		}
		out = append(out, p.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *participantRepository) Update(ctx context.Context, exec repositories.SQLExecutor, p *models.Participant) error {
	defer r.s.acquire(exec)()
	existing, ok := r.s.participants[p.ID]
	if !ok {
		return repositories.ErrParticipantNotFound
	}
	p.UpdatedAt = r.s.now()
	p.CreatedAt = existing.CreatedAt
	p.TournamentID = existing.TournamentID
	p.UserID = existing.UserID
	r.s.participants[p.ID] = p.Clone()
	return nil
}

func (r *participantRepository) Delete(ctx context.Context, exec repositories.SQLExecutor, id int) error {
	defer r.s.acquire(exec)()
	if _, ok := r.s.participants[id]; !ok {
		return repositories.ErrParticipantNotFound
	}
	delete(r.s.participants, id)
	return nil
}

func (r *participantRepository) CountPaid(ctx context.Context, exec repositories.SQLExecutor, tournamentID int) (int, error) {
	defer r.s.acquire(exec)()
	count := 0
	for _, p := range r.s.participants {
		if p.TournamentID == tournamentID && p.PaymentStatus == models.PaymentPaid {
			count++
		}
	}
	return count, nil
}
