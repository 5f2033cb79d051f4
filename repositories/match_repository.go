package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/Dosada05/bracket-engine/models"
	"github.com/lib/pq"
)

var (
	ErrMatchNotFound             = errors.New("match not found")
	ErrMatchTournamentInvalid    = errors.New("match tournament conflict or invalid")
	ErrMatchParticipantInvalid   = errors.New("match participant conflict or invalid")
	ErrMatchBracketPositionTaken = errors.New("match bracket position already taken")
)

type ListMatchesFilter struct {
	Round  *int
	Status *models.MatchStatus
}

type MatchRepository interface {
	Create(ctx context.Context, exec SQLExecutor, match *models.Match) error
	GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Match, error)
	// GetByIDForUpdate locks the match row until the surrounding transaction ends.
	GetByIDForUpdate(ctx context.Context, exec SQLExecutor, id int) (*models.Match, error)
	ListByTournament(ctx context.Context, exec SQLExecutor, tournamentID int, filter ListMatchesFilter) ([]*models.Match, error)
	Update(ctx context.Context, exec SQLExecutor, match *models.Match) error
	UpdateNextMatchInfo(ctx context.Context, exec SQLExecutor, matchID int, nextMatchID *int, nextSlot int) error
}

type postgresMatchRepository struct {
	db *sql.DB
}

func NewPostgresMatchRepository(db *sql.DB) MatchRepository {
	return &postgresMatchRepository{db: db}
}

func (r *postgresMatchRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

const matchColumns = `
	id, tournament_id, round, round_name, order_in_round, player1_id, player2_id, winner_id,
	status, results, dispute, start_time, lobby_code, admin_notes, is_bye, next_match_id,
	next_slot, slot1_vacated, slot2_vacated, completed_at, created_at, updated_at`

func (r *postgresMatchRepository) Create(ctx context.Context, exec SQLExecutor, match *models.Match) error {
	results, dispute, err := encodeMatchDocuments(match)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO matches
			(tournament_id, round, round_name, order_in_round, player1_id, player2_id, winner_id,
			 status, results, dispute, start_time, lobby_code, admin_notes, is_bye, next_match_id,
			 next_slot, slot1_vacated, slot2_vacated, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
		RETURNING id, created_at, updated_at`

	err = r.getExecutor(exec).QueryRowContext(ctx, query,
		match.TournamentID,
		match.Round,
		match.RoundName,
		match.OrderInRound,
		match.Player1ID,
		match.Player2ID,
		match.WinnerID,
		match.Status,
		results,
		dispute,
		match.StartTime,
		match.LobbyCode,
		match.AdminNotes,
		match.IsBye,
		match.NextMatchID,
		match.NextSlot,
		match.Slot1Vacated,
		match.Slot2Vacated,
		match.CompletedAt,
	).Scan(&match.ID, &match.CreatedAt, &match.UpdatedAt)

	return r.handleMatchError(err)
}

func (r *postgresMatchRepository) GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Match, error) {
	query := `SELECT` + matchColumns + ` FROM matches WHERE id = $1`
	return r.scanOne(r.getExecutor(exec).QueryRowContext(ctx, query, id), id)
}

func (r *postgresMatchRepository) GetByIDForUpdate(ctx context.Context, exec SQLExecutor, id int) (*models.Match, error) {
	query := `SELECT` + matchColumns + ` FROM matches WHERE id = $1 FOR UPDATE`
	return r.scanOne(r.getExecutor(exec).QueryRowContext(ctx, query, id), id)
}

func (r *postgresMatchRepository) ListByTournament(ctx context.Context, exec SQLExecutor, tournamentID int, filter ListMatchesFilter) ([]*models.Match, error) {
	var queryBuilder strings.Builder
	queryBuilder.WriteString(`SELECT` + matchColumns + ` FROM matches WHERE tournament_id = $1`)

	args := []interface{}{tournamentID}
	placeholderIndex := 2

	if filter.Round != nil {
		queryBuilder.WriteString(" AND round = $")
		queryBuilder.WriteString(strconv.Itoa(placeholderIndex))
		args = append(args, *filter.Round)
		placeholderIndex++
	}
	if filter.Status != nil {
		queryBuilder.WriteString(" AND status = $")
		queryBuilder.WriteString(strconv.Itoa(placeholderIndex))
		args = append(args, *filter.Status)
	}

	queryBuilder.WriteString(" ORDER BY round ASC, order_in_round ASC, id ASC")

	rows, err := r.getExecutor(exec).QueryContext(ctx, queryBuilder.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query matches for tournament %d: %w", tournamentID, err)
	}
	defer rows.Close()

	matches := make([]*models.Match, 0)
	for rows.Next() {
		match, scanErr := scanMatch(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan match row: %w", scanErr)
		}
		matches = append(matches, match)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during match rows iteration: %w", err)
	}
	return matches, nil
}

func (r *postgresMatchRepository) Update(ctx context.Context, exec SQLExecutor, match *models.Match) error {
	results, dispute, err := encodeMatchDocuments(match)
	if err != nil {
		return err
	}
	query := `
		UPDATE matches SET
			player1_id = $1,
			player2_id = $2,
			winner_id = $3,
			status = $4,
			results = $5,
			dispute = $6,
			start_time = $7,
			lobby_code = $8,
			admin_notes = $9,
			slot1_vacated = $10,
			slot2_vacated = $11,
			completed_at = $12,
			updated_at = NOW()
		WHERE id = $13
		RETURNING updated_at`

	err = r.getExecutor(exec).QueryRowContext(ctx, query,
		match.Player1ID, match.Player2ID, match.WinnerID, match.Status, results, dispute,
		match.StartTime, match.LobbyCode, match.AdminNotes, match.Slot1Vacated, match.Slot2Vacated,
		match.CompletedAt, match.ID,
	).Scan(&match.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrMatchNotFound
	}
	return r.handleMatchError(err)
}

func (r *postgresMatchRepository) UpdateNextMatchInfo(ctx context.Context, exec SQLExecutor, matchID int, nextMatchID *int, nextSlot int) error {
	query := `UPDATE matches SET next_match_id = $1, next_slot = $2 WHERE id = $3`
	result, err := r.getExecutor(exec).ExecContext(ctx, query, nextMatchID, nextSlot, matchID)
	if err != nil {
		return fmt.Errorf("UpdateNextMatchInfo: failed to execute query for match %d: %w", matchID, err)
	}
	return checkAffectedRows(result, ErrMatchNotFound)
}

func (r *postgresMatchRepository) scanOne(row *sql.Row, id int) (*models.Match, error) {
	match, err := scanMatch(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMatchNotFound
		}
		return nil, fmt.Errorf("failed to scan match by id %d: %w", id, err)
	}
	return match, nil
}

func scanMatch(row rowScanner) (*models.Match, error) {
	var (
		m           models.Match
		resultsJSON []byte
		disputeJSON []byte
	)
	err := row.Scan(
		&m.ID, &m.TournamentID, &m.Round, &m.RoundName, &m.OrderInRound, &m.Player1ID, &m.Player2ID, &m.WinnerID,
		&m.Status, &resultsJSON, &disputeJSON, &m.StartTime, &m.LobbyCode, &m.AdminNotes, &m.IsBye, &m.NextMatchID,
		&m.NextSlot, &m.Slot1Vacated, &m.Slot2Vacated, &m.CompletedAt, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := decodeJSONColumn(resultsJSON, &m.Results); err != nil {
		return nil, err
	}
	if m.Results == nil {
		m.Results = []models.MatchResult{}
	}
	if len(disputeJSON) > 0 && string(disputeJSON) != "null" {
		m.Dispute = &models.Dispute{}
		if err := decodeJSONColumn(disputeJSON, m.Dispute); err != nil {
			return nil, err
		}
	}
	return &m, nil
}

func encodeMatchDocuments(match *models.Match) (results string, dispute interface{}, err error) {
	res := match.Results
	if res == nil {
		res = []models.MatchResult{}
	}
	if results, err = jsonParam(res); err != nil {
		return "", nil, err
	}
	if match.Dispute != nil {
		if dispute, err = jsonParam(match.Dispute); err != nil {
			return "", nil, err
		}
	}
	return results, dispute, nil
}

func (r *postgresMatchRepository) handleMatchError(err error) error {
	if err == nil {
		return nil
	}
	if pqErr, ok := err.(*pq.Error); ok {
		switch pqErr.Constraint {
		case "matches_tournament_id_fkey":
			return ErrMatchTournamentInvalid
		case "matches_player1_id_fkey", "matches_player2_id_fkey", "matches_winner_id_fkey":
			return ErrMatchParticipantInvalid
		case "matches_tournament_id_round_order_in_round_key":
			return ErrMatchBracketPositionTaken
		}
	}
	return err
}
