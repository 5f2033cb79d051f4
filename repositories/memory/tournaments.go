package memory

import (
	"context"
	"sort"
	"time"

	"github.com/Dosada05/bracket-engine/models"
	"github.com/Dosada05/bracket-engine/repositories"
)

type tournamentRepository struct {
	s *Store
}

func (r *tournamentRepository) Create(ctx context.Context, exec repositories.SQLExecutor, t *models.Tournament) error {
	defer r.s.acquire(exec)()

	for _, existing := range r.s.tournaments {
		if existing.Slug == t.Slug {
			return repositories.ErrTournamentSlugConflict
		}
	}
	r.s.nextTournamentID++
	now := r.s.now()
	t.ID = r.s.nextTournamentID
	t.CurrentPlayers = 0
	t.CreatedAt, t.UpdatedAt = now, now
	r.s.tournaments[t.ID] = t.Clone()
	return nil
}

func (r *tournamentRepository) GetByID(ctx context.Context, exec repositories.SQLExecutor, id int) (*models.Tournament, error) {
	defer r.s.acquire(exec)()
	t, ok := r.s.tournaments[id]
	if !ok {
		return nil, repositories.ErrTournamentNotFound
	}
	return t.Clone(), nil
}

func (r *tournamentRepository) GetByIDForUpdate(ctx context.Context, exec repositories.SQLExecutor, id int) (*models.Tournament, error) {
	return r.GetByID(ctx, exec, id)
}

func (r *tournamentRepository) List(ctx context.Context, filter repositories.ListTournamentsFilter) ([]*models.Tournament, error) {
	defer r.s.acquire(nil)()

	out := make([]*models.Tournament, 0, len(r.s.tournaments))
	for _, t := range r.s.tournaments {
		if filter.Status != nil && t.Status != *filter.Status {
			continue
		}
		out = append(out, t.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].RegistrationDeadline.Equal(out[j].RegistrationDeadline) {
			return out[i].RegistrationDeadline.After(out[j].RegistrationDeadline)
		}
		return out[i].ID > out[j].ID
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			return []*models.Tournament{}, nil
		}
		out = out[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(out) {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (r *tournamentRepository) Update(ctx context.Context, exec repositories.SQLExecutor, t *models.Tournament) error {
	defer r.s.acquire(exec)()

	existing, ok := r.s.tournaments[t.ID]
	if !ok {
		return repositories.ErrTournamentNotFound
	}
	for id, other := range r.s.tournaments {
		if id != t.ID && other.Slug == t.Slug {
			return repositories.ErrTournamentSlugConflict
		}
	}
	t.UpdatedAt = r.s.now()
	// The player counter is owned by Increment/DecrementPlayers.
	t.CurrentPlayers = existing.CurrentPlayers
	t.CreatedAt = existing.CreatedAt
	r.s.tournaments[t.ID] = t.Clone()
	return nil
}

func (r *tournamentRepository) UpdateStatus(ctx context.Context, exec repositories.SQLExecutor, id int, status models.TournamentStatus) error {
	defer r.s.acquire(exec)()
	t, ok := r.s.tournaments[id]
	if !ok {
		return repositories.ErrTournamentNotFound
	}
	t.Status = status
	t.UpdatedAt = r.s.now()
	return nil
}

func (r *tournamentRepository) SetBracket(ctx context.Context, exec repositories.SQLExecutor, id int, bracket *models.Bracket, status models.TournamentStatus) error {
	defer r.s.acquire(exec)()
	t, ok := r.s.tournaments[id]
	if !ok || t.BracketGenerated() {
		return repositories.ErrTournamentBracketExists
	}
	t.Bracket = bracket.Clone()
	t.Status = status
	t.UpdatedAt = r.s.now()
	return nil
}

func (r *tournamentRepository) IncrementPlayers(ctx context.Context, exec repositories.SQLExecutor, id int) error {
	defer r.s.acquire(exec)()
	t, ok := r.s.tournaments[id]
	if !ok || t.CurrentPlayers >= t.MaxPlayers {
		return repositories.ErrTournamentFull
	}
	t.CurrentPlayers++
	t.UpdatedAt = r.s.now()
	return nil
}

func (r *tournamentRepository) DecrementPlayers(ctx context.Context, exec repositories.SQLExecutor, id int) error {
	defer r.s.acquire(exec)()
	t, ok := r.s.tournaments[id]
	if !ok || t.CurrentPlayers <= 0 {
		return repositories.ErrTournamentPlayersCounter
	}
	t.CurrentPlayers--
	t.UpdatedAt = r.s.now()
	return nil
}

func (r *tournamentRepository) Delete(ctx context.Context, exec repositories.SQLExecutor, id int) error {
	defer r.s.acquire(exec)()
	if _, ok := r.s.tournaments[id]; !ok {
		return repositories.ErrTournamentNotFound
	}
	for _, p := range r.s.participants {
		if p.TournamentID == id {
			return repositories.ErrTournamentInUse
		}
	}
	for matchID, m := range r.s.matches {
		if m.TournamentID == id {
			delete(r.s.matches, matchID)
		}
	}
	delete(r.s.tournaments, id)
	return nil
}

func (r *tournamentRepository) ListRegistrationExpired(ctx context.Context, now time.Time) ([]*models.Tournament, error) {
	defer r.s.acquire(nil)()
	out := make([]*models.Tournament, 0)
	for _, t := range r.s.tournaments {
		if t.Status == models.TournamentRegistrationOpen && !t.RegistrationDeadline.After(now) {
			out = append(out, t.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
