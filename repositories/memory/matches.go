package memory

import (
	"context"
	"sort"

	"github.com/Dosada05/bracket-engine/models"
	"github.com/Dosada05/bracket-engine/repositories"
)

type matchRepository struct {
	s *Store
}

func (r *matchRepository) Create(ctx context.Context, exec repositories.SQLExecutor, match *models.Match) error {
	defer r.s.acquire(exec)()

	if _, ok := r.s.tournaments[match.TournamentID]; !ok {
		return repositories.ErrMatchTournamentInvalid
	}
	for _, existing := range r.s.matches {
		if existing.TournamentID == match.TournamentID && existing.Round == match.Round && existing.OrderInRound == match.OrderInRound {
			return repositories.ErrMatchBracketPositionTaken
		}
	}
	r.s.nextMatchID++
	now := r.s.now()
	match.ID = r.s.nextMatchID
	match.CreatedAt, match.UpdatedAt = now, now
	if match.Results == nil {
		match.Results = []models.MatchResult{}
	}
	r.s.matches[match.ID] = match.Clone()
	return nil
}

func (r *matchRepository) GetByID(ctx context.Context, exec repositories.SQLExecutor, id int) (*models.Match, error) {
	defer r.s.acquire(exec)()
	m, ok := r.s.matches[id]
	if !ok {
		return nil, repositories.ErrMatchNotFound
	}
	return m.Clone(), nil
}

func (r *matchRepository) GetByIDForUpdate(ctx context.Context, exec repositories.SQLExecutor, id int) (*models.Match, error) {
	return r.GetByID(ctx, exec, id)
}

func (r *matchRepository) ListByTournament(ctx context.Context, exec repositories.SQLExecutor, tournamentID int, filter repositories.ListMatchesFilter) ([]*models.Match, error) {
	defer r.s.acquire(exec)()
	out := make([]*models.Match, 0)
	for _, m := range r.s.matches {
		if m.TournamentID != tournamentID {
			continue
		}
		if filter.Round != nil && m.Round != *filter.Round {
			continue
		}
		if filter.Status != nil && m.Status != *filter.Status {
			continue
		}
		out = append(out, m.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Round != out[j].Round {
			return out[i].Round < out[j].Round
		}
		if out[i].OrderInRound != out[j].OrderInRound {
			return out[i].OrderInRound < out[j].OrderInRound
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *matchRepository) Update(ctx context.Context, exec repositories.SQLExecutor, match *models.Match) error {
	defer r.s.acquire(exec)()
	existing, ok := r.s.matches[match.ID]
	if !ok {
		return repositories.ErrMatchNotFound
	}
	// Bracket position and links are fixed at creation.
	match.TournamentID = existing.TournamentID
	match.Round = existing.Round
	match.RoundName = existing.RoundName
	match.OrderInRound = existing.OrderInRound
	match.IsBye = existing.IsBye
	match.NextMatchID = cloneIntPtr(existing.NextMatchID)
	match.NextSlot = existing.NextSlot
	match.CreatedAt = existing.CreatedAt
	match.UpdatedAt = r.s.now()
	r.s.matches[match.ID] = match.Clone()
	return nil
}

func (r *matchRepository) UpdateNextMatchInfo(ctx context.Context, exec repositories.SQLExecutor, matchID int, nextMatchID *int, nextSlot int) error {
	defer r.s.acquire(exec)()
	m, ok := r.s.matches[matchID]
	if !ok {
		return repositories.ErrMatchNotFound
	}
	m.NextMatchID = cloneIntPtr(nextMatchID)
	m.NextSlot = nextSlot
	return nil
}

func cloneIntPtr(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
