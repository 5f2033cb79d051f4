package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Dosada05/bracket-engine/brackets"
	"github.com/Dosada05/bracket-engine/models"
	"github.com/Dosada05/bracket-engine/repositories"
)

type SubmitResultInput struct {
	MatchID       int
	ParticipantID int
	Score         int
	Screenshot    string
}

type StartMatchInput struct {
	LobbyCode string
	StartTime *time.Time
}

type MatchService interface {
	SubmitResult(ctx context.Context, input SubmitResultInput) (*models.Match, error)
	StartMatch(ctx context.Context, matchID int, input StartMatchInput) (*models.Match, error)
	// VerifyResult is the adjudication step: the higher submitted score wins.
	VerifyResult(ctx context.Context, matchID, adminID int, notes string) (*models.Match, error)
	GetMatch(ctx context.Context, matchID int) (*models.Match, error)
	ListMatches(ctx context.Context, tournamentID int, filter repositories.ListMatchesFilter) ([]*models.Match, error)
}

type matchService struct {
	txManager       repositories.TxManager
	tournamentRepo  repositories.TournamentRepository
	participantRepo repositories.ParticipantRepository
	matchRepo       repositories.MatchRepository
	progression     *progression
	publisher       EventPublisher
	logger          *slog.Logger
	now             func() time.Time
}

func NewMatchService(
	txManager repositories.TxManager,
	tournamentRepo repositories.TournamentRepository,
	participantRepo repositories.ParticipantRepository,
	matchRepo repositories.MatchRepository,
	publisher EventPublisher,
	logger *slog.Logger,
) MatchService {
	logger = loggerOrDefault(logger)
	return &matchService{
		txManager:       txManager,
		tournamentRepo:  tournamentRepo,
		participantRepo: participantRepo,
		matchRepo:       matchRepo,
		progression:     newProgression(tournamentRepo, participantRepo, matchRepo, logger),
		publisher:       publisherOrNoop(publisher),
		logger:          logger,
		now:             utcNow,
	}
}

// SubmitResult upserts the caller's result under the match row lock, so the check for both
// results always sees every submission committed before it.
func (s *matchService) SubmitResult(ctx context.Context, input SubmitResultInput) (*models.Match, error) {
	if input.Score < 0 {
		return nil, ErrInvalidScore
	}

	var updated *models.Match
	err := s.txManager.WithinTransaction(ctx, func(ctx context.Context, exec repositories.SQLExecutor) error {
		m, err := s.lockActiveMatch(ctx, exec, input.MatchID)
		if err != nil {
			return err
		}
		if m.Status != models.MatchScheduled && m.Status != models.MatchInProgress {
			return fmt.Errorf("%w (status %s)", ErrMatchNotAcceptingResults, m.Status)
		}
		if !m.HasPlayer(input.ParticipantID) {
			return ErrNotMatchParticipant
		}
		if !m.BothSlotsFilled() {
			return ErrMatchAwaitingPlayers
		}

		now := s.now()
		m.UpsertResult(models.MatchResult{
			PlayerID:    input.ParticipantID,
			Score:       input.Score,
			Screenshot:  strings.TrimSpace(input.Screenshot),
			SubmittedAt: now,
		})
		if m.Status == models.MatchScheduled {
			m.Status = models.MatchInProgress
			if m.StartTime == nil {
				m.StartTime = timePtr(now)
			}
		}
		if m.AllResultsSubmitted() {
			m.Status = models.MatchPendingVerification
		}
		if err := s.matchRepo.Update(ctx, exec, m); err != nil {
			return handleRepositoryError(err, "match")
		}

		if err := s.recordPending(ctx, exec, m, input.ParticipantID, input.Score); err != nil {
			return err
		}
		updated = m
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("match result submitted",
		slog.Int("match_id", updated.ID),
		slog.Int("participant_id", input.ParticipantID),
		slog.String("status", string(updated.Status)))
	s.publisher.Publish(updated.TournamentID, brackets.EventMatchUpdated, updated)
	return updated, nil
}

// recordPending notes the submission in the player's history until the match is decided.
func (s *matchService) recordPending(ctx context.Context, exec repositories.SQLExecutor, m *models.Match, participantID, score int) error {
	p, err := s.participantRepo.GetByIDForUpdate(ctx, exec, participantID)
	if err != nil {
		return handleRepositoryError(err, "participant")
	}
	p.RecordMatch(models.MatchHistoryEntry{
		MatchID:    m.ID,
		Round:      m.Round,
		OpponentID: m.OpponentOf(participantID),
		Result:     models.OutcomePending,
		Score:      intPtr(score),
	})
	if err := s.participantRepo.Update(ctx, exec, p); err != nil {
		return handleRepositoryError(err, "participant")
	}
	return nil
}

func (s *matchService) StartMatch(ctx context.Context, matchID int, input StartMatchInput) (*models.Match, error) {
	var updated *models.Match
	err := s.txManager.WithinTransaction(ctx, func(ctx context.Context, exec repositories.SQLExecutor) error {
		m, err := s.lockActiveMatch(ctx, exec, matchID)
		if err != nil {
			return err
		}
		if m.Status != models.MatchScheduled {
			return fmt.Errorf("%w (status %s)", ErrMatchNotStartable, m.Status)
		}
		if !m.BothSlotsFilled() {
			return ErrMatchAwaitingPlayers
		}

		m.Status = models.MatchInProgress
		m.LobbyCode = strings.TrimSpace(input.LobbyCode)
		if input.StartTime != nil {
			m.StartTime = timePtr(input.StartTime.UTC())
		} else {
			m.StartTime = timePtr(s.now())
		}
		if err := s.matchRepo.Update(ctx, exec, m); err != nil {
			return handleRepositoryError(err, "match")
		}
		updated = m
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publisher.Publish(updated.TournamentID, brackets.EventMatchUpdated, updated)
	return updated, nil
}

func (s *matchService) VerifyResult(ctx context.Context, matchID, adminID int, notes string) (*models.Match, error) {
	var (
		updated *models.Match
		run     *progressionRun
	)
	err := s.txManager.WithinTransaction(ctx, func(ctx context.Context, exec repositories.SQLExecutor) error {
		m, err := s.lockActiveMatch(ctx, exec, matchID)
		if err != nil {
			return err
		}
		if m.Status != models.MatchPendingVerification {
			return fmt.Errorf("%w (status %s)", ErrMatchNotPendingVerification, m.Status)
		}

		r1, ok1 := m.ResultFor(*m.Player1ID)
		r2, ok2 := m.ResultFor(*m.Player2ID)
		if !ok1 || !ok2 {
			return ErrMatchNotPendingVerification
		}
		if r1.Score == r2.Score {
			return ErrResultTied
		}
		winnerID := *m.Player1ID
		if r2.Score > r1.Score {
			winnerID = *m.Player2ID
		}

		now := s.now()
		for i := range m.Results {
			m.Results[i].Verified = true
		}
		m.WinnerID = intPtr(winnerID)
		m.Status = models.MatchCompleted
		m.CompletedAt = timePtr(now)
		if notes = strings.TrimSpace(notes); notes != "" {
			m.AdminNotes = notes
		}
		if err := s.matchRepo.Update(ctx, exec, m); err != nil {
			return handleRepositoryError(err, "match")
		}

		run, err = s.beginRun(ctx, exec, m.TournamentID, now)
		if err != nil {
			return err
		}
		run.touch(m)
		if err := run.OnMatchCompleted(m); err != nil {
			return err
		}
		updated = m
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("match result verified",
		slog.Int("match_id", matchID),
		slog.Int("admin_id", adminID),
		slog.Int("winner_participant_id", *updated.WinnerID))
	publishRun(s.publisher, updated.TournamentID, run)
	return updated, nil
}

func (s *matchService) GetMatch(ctx context.Context, matchID int) (*models.Match, error) {
	m, err := s.matchRepo.GetByID(ctx, nil, matchID)
	if err != nil {
		return nil, handleRepositoryError(err, "match")
	}
	return m, nil
}

func (s *matchService) ListMatches(ctx context.Context, tournamentID int, filter repositories.ListMatchesFilter) ([]*models.Match, error) {
	if _, err := s.tournamentRepo.GetByID(ctx, nil, tournamentID); err != nil {
		return nil, handleRepositoryError(err, "tournament")
	}
	matches, err := s.matchRepo.ListByTournament(ctx, nil, tournamentID, filter)
	if err != nil {
		return nil, handleRepositoryError(err, "match")
	}
	return matches, nil
}

// lockActiveMatch locks the match and rejects it if its tournament is already over.
func (s *matchService) lockActiveMatch(ctx context.Context, exec repositories.SQLExecutor, matchID int) (*models.Match, error) {
	return lockActiveMatch(ctx, exec, s.matchRepo, s.tournamentRepo, matchID)
}

func (s *matchService) beginRun(ctx context.Context, exec repositories.SQLExecutor, tournamentID int, now time.Time) (*progressionRun, error) {
	return beginRun(ctx, exec, s.progression, s.tournamentRepo, tournamentID, now)
}

func lockActiveMatch(
	ctx context.Context,
	exec repositories.SQLExecutor,
	matchRepo repositories.MatchRepository,
	tournamentRepo repositories.TournamentRepository,
	matchID int,
) (*models.Match, error) {
	m, err := matchRepo.GetByIDForUpdate(ctx, exec, matchID)
	if err != nil {
		return nil, handleRepositoryError(err, "match")
	}
	t, err := tournamentRepo.GetByID(ctx, exec, m.TournamentID)
	if err != nil {
		return nil, handleRepositoryError(err, "tournament")
	}
	if t.Status == models.TournamentCompleted || t.Status == models.TournamentCancelled {
		if m.IsTerminal() {
			return m, nil
		}
		return nil, ErrTournamentNotActive
	}
	return m, nil
}

func beginRun(
	ctx context.Context,
	exec repositories.SQLExecutor,
	p *progression,
	tournamentRepo repositories.TournamentRepository,
	tournamentID int,
	now time.Time,
) (*progressionRun, error) {
	t, err := tournamentRepo.GetByID(ctx, exec, tournamentID)
	if err != nil {
		return nil, handleRepositoryError(err, "tournament")
	}
	if !t.BracketGenerated() {
		return nil, ErrBracketNotGenerated
	}
	return p.begin(ctx, exec, tournamentID, t.Bracket.TotalRounds(), now), nil
}

func publishRun(publisher EventPublisher, tournamentID int, run *progressionRun) {
	if run == nil {
		return
	}
	for _, m := range run.ChangedMatches() {
		publisher.Publish(tournamentID, brackets.EventMatchUpdated, m)
	}
	if run.completed != nil {
		publisher.Publish(tournamentID, brackets.EventTournamentComplete, run.completed)
	}
}
