package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Dosada05/bracket-engine/models"
	"github.com/lib/pq"
)

var (
	ErrTournamentNotFound       = errors.New("tournament not found")
	ErrTournamentSlugConflict   = errors.New("tournament slug already in use")
	ErrTournamentInUse          = errors.New("tournament is in use (participants/matches exist)")
	ErrTournamentFull           = errors.New("tournament has reached max players")
	ErrTournamentBracketExists  = errors.New("tournament bracket already generated")
	ErrTournamentPlayersCounter = errors.New("tournament player counter cannot go below zero")
)

type ListTournamentsFilter struct {
	Status *models.TournamentStatus
	Limit  int
	Offset int
}

type TournamentRepository interface {
	Create(ctx context.Context, exec SQLExecutor, t *models.Tournament) error
	GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Tournament, error)
	// GetByIDForUpdate locks the row until the surrounding transaction ends.
	GetByIDForUpdate(ctx context.Context, exec SQLExecutor, id int) (*models.Tournament, error)
	List(ctx context.Context, filter ListTournamentsFilter) ([]*models.Tournament, error)
	Update(ctx context.Context, exec SQLExecutor, t *models.Tournament) error
	UpdateStatus(ctx context.Context, exec SQLExecutor, id int, status models.TournamentStatus) error
	// SetBracket writes the bracket only if none exists yet.
	SetBracket(ctx context.Context, exec SQLExecutor, id int, bracket *models.Bracket, status models.TournamentStatus) error
	IncrementPlayers(ctx context.Context, exec SQLExecutor, id int) error
	DecrementPlayers(ctx context.Context, exec SQLExecutor, id int) error
	Delete(ctx context.Context, exec SQLExecutor, id int) error
	ListRegistrationExpired(ctx context.Context, now time.Time) ([]*models.Tournament, error)
}

type postgresTournamentRepository struct {
	db *sql.DB
}

func NewPostgresTournamentRepository(db *sql.DB) TournamentRepository {
	return &postgresTournamentRepository{db: db}
}

func (r *postgresTournamentRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

const tournamentColumns = `
	id, name, slug, format, status, max_players, current_players, entry_fee,
	registration_deadline, start_date, prize_pool, bracket, winner_participant_id,
	created_at, updated_at`

func (r *postgresTournamentRepository) Create(ctx context.Context, exec SQLExecutor, t *models.Tournament) error {
	prizePool, err := jsonParam(t.PrizePool)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO tournaments (
			name, slug, format, status, max_players, current_players, entry_fee,
			registration_deadline, start_date, prize_pool
		) VALUES ($1, $2, $3, $4, $5, 0, $6, $7, $8, $9)
		RETURNING id, current_players, created_at, updated_at`

	err = r.getExecutor(exec).QueryRowContext(ctx, query,
		t.Name, t.Slug, t.Format, t.Status, t.MaxPlayers, t.EntryFee,
		t.RegistrationDeadline, t.StartDate, prizePool,
	).Scan(&t.ID, &t.CurrentPlayers, &t.CreatedAt, &t.UpdatedAt)

	return r.handleTournamentError(err)
}

func (r *postgresTournamentRepository) GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Tournament, error) {
	query := `SELECT` + tournamentColumns + ` FROM tournaments WHERE id = $1`
	return r.scanOne(r.getExecutor(exec).QueryRowContext(ctx, query, id))
}

func (r *postgresTournamentRepository) GetByIDForUpdate(ctx context.Context, exec SQLExecutor, id int) (*models.Tournament, error) {
	query := `SELECT` + tournamentColumns + ` FROM tournaments WHERE id = $1 FOR UPDATE`
	return r.scanOne(r.getExecutor(exec).QueryRowContext(ctx, query, id))
}

func (r *postgresTournamentRepository) List(ctx context.Context, filter ListTournamentsFilter) ([]*models.Tournament, error) {
	query := `SELECT` + tournamentColumns + ` FROM tournaments WHERE 1=1`
	args := []interface{}{}
	argID := 1

	if filter.Status != nil {
		query += fmt.Sprintf(" AND status = $%d", argID)
		args = append(args, *filter.Status)
		argID++
	}

	query += " ORDER BY registration_deadline DESC, id DESC"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argID)
		args = append(args, filter.Limit)
		argID++
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argID)
		args = append(args, filter.Offset)
	}

	return r.queryMany(ctx, query, args...)
}

func (r *postgresTournamentRepository) Update(ctx context.Context, exec SQLExecutor, t *models.Tournament) error {
	prizePool, err := jsonParam(t.PrizePool)
	if err != nil {
		return err
	}
	var bracket interface{}
	if t.Bracket != nil {
		if bracket, err = jsonParam(t.Bracket); err != nil {
			return err
		}
	}
	query := `
		UPDATE tournaments SET
			name = $1,
			slug = $2,
			status = $3,
			max_players = $4,
			entry_fee = $5,
			registration_deadline = $6,
			start_date = $7,
			prize_pool = $8,
			bracket = $9,
			winner_participant_id = $10,
			updated_at = NOW()
		WHERE id = $11
		RETURNING updated_at`

	err = r.getExecutor(exec).QueryRowContext(ctx, query,
		t.Name, t.Slug, t.Status, t.MaxPlayers, t.EntryFee, t.RegistrationDeadline,
		t.StartDate, prizePool, bracket, t.WinnerParticipantID, t.ID,
	).Scan(&t.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrTournamentNotFound
	}
	return r.handleTournamentError(err)
}

func (r *postgresTournamentRepository) UpdateStatus(ctx context.Context, exec SQLExecutor, id int, status models.TournamentStatus) error {
	query := `UPDATE tournaments SET status = $1, updated_at = NOW() WHERE id = $2`
	result, err := r.getExecutor(exec).ExecContext(ctx, query, status, id)
	if err != nil {
		return r.handleTournamentError(err)
	}
	return checkAffectedRows(result, ErrTournamentNotFound)
}

func (r *postgresTournamentRepository) SetBracket(ctx context.Context, exec SQLExecutor, id int, bracket *models.Bracket, status models.TournamentStatus) error {
	encoded, err := jsonParam(bracket)
	if err != nil {
		return err
	}
	query := `UPDATE tournaments SET bracket = $1, status = $2, updated_at = NOW() WHERE id = $3 AND bracket IS NULL`
	result, err := r.getExecutor(exec).ExecContext(ctx, query, encoded, status, id)
	if err != nil {
		return r.handleTournamentError(err)
	}
	return checkAffectedRows(result, ErrTournamentBracketExists)
}

func (r *postgresTournamentRepository) IncrementPlayers(ctx context.Context, exec SQLExecutor, id int) error {
	query := `
		UPDATE tournaments SET current_players = current_players + 1, updated_at = NOW()
		WHERE id = $1 AND current_players < max_players`
	result, err := r.getExecutor(exec).ExecContext(ctx, query, id)
	if err != nil {
		return r.handleTournamentError(err)
	}
	return checkAffectedRows(result, ErrTournamentFull)
}

func (r *postgresTournamentRepository) DecrementPlayers(ctx context.Context, exec SQLExecutor, id int) error {
	query := `
		UPDATE tournaments SET current_players = current_players - 1, updated_at = NOW()
		WHERE id = $1 AND current_players > 0`
	result, err := r.getExecutor(exec).ExecContext(ctx, query, id)
	if err != nil {
		return r.handleTournamentError(err)
	}
	return checkAffectedRows(result, ErrTournamentPlayersCounter)
}

func (r *postgresTournamentRepository) Delete(ctx context.Context, exec SQLExecutor, id int) error {
	query := `DELETE FROM tournaments WHERE id = $1`
	result, err := r.getExecutor(exec).ExecContext(ctx, query, id)
	if err != nil {
		return r.handleTournamentError(err)
	}
	return checkAffectedRows(result, ErrTournamentNotFound)
}

func (r *postgresTournamentRepository) ListRegistrationExpired(ctx context.Context, now time.Time) ([]*models.Tournament, error) {
	query := `SELECT` + tournamentColumns + `
		FROM tournaments
		WHERE status = $1 AND registration_deadline <= $2`
	return r.queryMany(ctx, query, models.TournamentRegistrationOpen, now)
}

func (r *postgresTournamentRepository) queryMany(ctx context.Context, query string, args ...interface{}) ([]*models.Tournament, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tournaments: %w", err)
	}
	defer rows.Close()

	tournaments := make([]*models.Tournament, 0)
	for rows.Next() {
		t, scanErr := scanTournament(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		tournaments = append(tournaments, t)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during tournament rows iteration: %w", err)
	}
	return tournaments, nil
}

func (r *postgresTournamentRepository) scanOne(row *sql.Row) (*models.Tournament, error) {
	t, err := scanTournament(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTournamentNotFound
		}
		return nil, err
	}
	return t, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTournament(row rowScanner) (*models.Tournament, error) {
	var (
		t           models.Tournament
		prizePool   []byte
		bracketJSON []byte
	)
	err := row.Scan(
		&t.ID, &t.Name, &t.Slug, &t.Format, &t.Status, &t.MaxPlayers, &t.CurrentPlayers, &t.EntryFee,
		&t.RegistrationDeadline, &t.StartDate, &prizePool, &bracketJSON, &t.WinnerParticipantID,
		&t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := decodeJSONColumn(prizePool, &t.PrizePool); err != nil {
		return nil, err
	}
	if len(bracketJSON) > 0 {
		t.Bracket = &models.Bracket{}
		if err := decodeJSONColumn(bracketJSON, t.Bracket); err != nil {
			return nil, err
		}
	}
	return &t, nil
}

func (r *postgresTournamentRepository) handleTournamentError(err error) error {
	if err == nil {
		return nil
	}
	if pqErr, ok := err.(*pq.Error); ok {
		switch pqErr.Code {
		case "23505":
			if pqErr.Constraint == "tournaments_slug_key" {
				return ErrTournamentSlugConflict
			}
		case "23503":
			return ErrTournamentInUse
		}
	}
	return err
}
