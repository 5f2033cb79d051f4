package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Dosada05/bracket-engine/models"
	"github.com/lib/pq"
)

var (
	ErrParticipantNotFound          = errors.New("participant not found")
	ErrParticipantConflict          = errors.New("participant conflict: user already registered for this tournament")
	ErrParticipantTournamentInvalid = errors.New("participant tournament conflict or invalid")
)

type ParticipantRepository interface {
	Create(ctx context.Context, exec SQLExecutor, p *models.Participant) error
	GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Participant, error)
	GetByIDForUpdate(ctx context.Context, exec SQLExecutor, id int) (*models.Participant, error)
	FindByUserAndTournament(ctx context.Context, exec SQLExecutor, userID, tournamentID int) (*models.Participant, error)
	// ListByTournament returns participants in registration order, optionally only one payment status.
	ListByTournament(ctx context.Context, exec SQLExecutor, tournamentID int, paymentFilter *models.PaymentStatus) ([]*models.Participant, error)
	Update(ctx context.Context, exec SQLExecutor, p *models.Participant) error
	Delete(ctx context.Context, exec SQLExecutor, id int) error
	CountPaid(ctx context.Context, exec SQLExecutor, tournamentID int) (int, error)
}

type postgresParticipantRepository struct {
	db *sql.DB
}

func NewPostgresParticipantRepository(db *sql.DB) ParticipantRepository {
	return &postgresParticipantRepository{db: db}
}

func (r *postgresParticipantRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

const participantColumns = `
	id, tournament_id, user_id, payment_status, status, seed, current_round,
	match_history, final_placement, prize_won, prize_status, paid_at, created_at, updated_at`

func (r *postgresParticipantRepository) Create(ctx context.Context, exec SQLExecutor, p *models.Participant) error {
	history, err := jsonParam(nonNilHistory(p.MatchHistory))
	if err != nil {
		return err
	}
	query := `
		INSERT INTO participants (tournament_id, user_id, payment_status, status, current_round, match_history, prize_status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at`

	err = r.getExecutor(exec).QueryRowContext(ctx, query,
		p.TournamentID,
		p.UserID,
		p.PaymentStatus,
		p.Status,
		p.CurrentRound,
		history,
		p.PrizeStatus,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)

	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok {
			switch pqErr.Code {
			case "23505": // unique_violation
				if pqErr.Constraint == "participants_tournament_id_user_id_key" {
					return ErrParticipantConflict
				}
			case "23503": // foreign_key_violation
				if pqErr.Constraint == "participants_tournament_id_fkey" {
					return ErrParticipantTournamentInvalid
				}
			}
		}
		return fmt.Errorf("failed to create participant: %w", err)
	}
	return nil
}

func (r *postgresParticipantRepository) GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Participant, error) {
	query := `SELECT` + participantColumns + ` FROM participants WHERE id = $1`
	return scanOneParticipant(r.getExecutor(exec).QueryRowContext(ctx, query, id))
}

func (r *postgresParticipantRepository) GetByIDForUpdate(ctx context.Context, exec SQLExecutor, id int) (*models.Participant, error) {
	query := `SELECT` + participantColumns + ` FROM participants WHERE id = $1 FOR UPDATE`
	return scanOneParticipant(r.getExecutor(exec).QueryRowContext(ctx, query, id))
}

func (r *postgresParticipantRepository) FindByUserAndTournament(ctx context.Context, exec SQLExecutor, userID, tournamentID int) (*models.Participant, error) {
	query := `SELECT` + participantColumns + ` FROM participants WHERE user_id = $1 AND tournament_id = $2`
	return scanOneParticipant(r.getExecutor(exec).QueryRowContext(ctx, query, userID, tournamentID))
}

func (r *postgresParticipantRepository) ListByTournament(ctx context.Context, exec SQLExecutor, tournamentID int, paymentFilter *models.PaymentStatus) ([]*models.Participant, error) {
	query := `SELECT` + participantColumns + ` FROM participants WHERE tournament_id = $1`
	args := []interface{}{tournamentID}
	if paymentFilter != nil {
		query += " AND payment_status = $2"
		args = append(args, *paymentFilter)
	}
	query += " ORDER BY created_at ASC, id ASC"

	rows, err := r.getExecutor(exec).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list participants for tournament %d: %w", tournamentID, err)
	}
	defer rows.Close()

	participants := make([]*models.Participant, 0)
	for rows.Next() {
		p, scanErr := scanParticipant(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan participant row: %w", scanErr)
		}
		participants = append(participants, p)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during participant rows iteration: %w", err)
	}
	return participants, nil
}

func (r *postgresParticipantRepository) Update(ctx context.Context, exec SQLExecutor, p *models.Participant) error {
	history, err := jsonParam(nonNilHistory(p.MatchHistory))
	if err != nil {
		return err
	}
	query := `
		UPDATE participants SET
			payment_status = $1,
			status = $2,
			seed = $3,
			current_round = $4,
			match_history = $5,
			final_placement = $6,
			prize_won = $7,
			prize_status = $8,
			paid_at = $9,
			updated_at = NOW()
		WHERE id = $10
		RETURNING updated_at`

	err = r.getExecutor(exec).QueryRowContext(ctx, query,
		p.PaymentStatus, p.Status, p.Seed, p.CurrentRound, history,
		p.FinalPlacement, p.PrizeWon, p.PrizeStatus, p.PaidAt, p.ID,
	).Scan(&p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrParticipantNotFound
		}
		return fmt.Errorf("failed to update participant %d: %w", p.ID, err)
	}
	return nil
}

func (r *postgresParticipantRepository) Delete(ctx context.Context, exec SQLExecutor, id int) error {
	query := `DELETE FROM participants WHERE id = $1`
	result, err := r.getExecutor(exec).ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete participant %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrParticipantNotFound)
}

func (r *postgresParticipantRepository) CountPaid(ctx context.Context, exec SQLExecutor, tournamentID int) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM participants WHERE tournament_id = $1 AND payment_status = $2`
	err := r.getExecutor(exec).QueryRowContext(ctx, query, tournamentID, models.PaymentPaid).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count paid participants: %w", err)
	}
	return count, nil
}

func scanOneParticipant(row *sql.Row) (*models.Participant, error) {
	p, err := scanParticipant(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrParticipantNotFound
		}
		return nil, fmt.Errorf("failed to get participant: %w", err)
	}
	return p, nil
}

func scanParticipant(row rowScanner) (*models.Participant, error) {
	var (
		p       models.Participant
		history []byte
	)
	err := row.Scan(
		&p.ID, &p.TournamentID, &p.UserID, &p.PaymentStatus, &p.Status, &p.Seed, &p.CurrentRound,
		&history, &p.FinalPlacement, &p.PrizeWon, &p.PrizeStatus, &p.PaidAt, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := decodeJSONColumn(history, &p.MatchHistory); err != nil {
		return nil, err
	}
	p.MatchHistory = nonNilHistory(p.MatchHistory)
	return &p, nil
}

func nonNilHistory(h []models.MatchHistoryEntry) []models.MatchHistoryEntry {
	if h == nil {
		return []models.MatchHistoryEntry{}
	}
	return h
}
