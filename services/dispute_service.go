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

type ReportDisputeInput struct {
	MatchID       int
	ParticipantID int
	Reason        string
	Evidence      []string
}

type ResolveDisputeInput struct {
	MatchID    int
	AdminID    int
	Resolution string
	// WinnerID is a participant id. Nil cancels the match.
	WinnerID *int
}

type DisputeService interface {
	ReportDispute(ctx context.Context, input ReportDisputeInput) (*models.Match, error)
	ResolveDispute(ctx context.Context, input ResolveDisputeInput) (*models.Match, error)
}

type disputeService struct {
	txManager      repositories.TxManager
	tournamentRepo repositories.TournamentRepository
	matchRepo      repositories.MatchRepository
	progression    *progression
	publisher      EventPublisher
	logger         *slog.Logger
	now            func() time.Time
}

func NewDisputeService(
	txManager repositories.TxManager,
	tournamentRepo repositories.TournamentRepository,
	participantRepo repositories.ParticipantRepository,
	matchRepo repositories.MatchRepository,
	publisher EventPublisher,
	logger *slog.Logger,
) DisputeService {
	logger = loggerOrDefault(logger)
	return &disputeService{
		txManager:      txManager,
		tournamentRepo: tournamentRepo,
		matchRepo:      matchRepo,
		progression:    newProgression(tournamentRepo, participantRepo, matchRepo, logger),
		publisher:      publisherOrNoop(publisher),
		logger:         logger,
		now:            utcNow,
	}
}

// ReportDispute freezes a live match until an admin resolves it.
func (s *disputeService) ReportDispute(ctx context.Context, input ReportDisputeInput) (*models.Match, error) {
	reason := strings.TrimSpace(input.Reason)
	if reason == "" {
		return nil, ErrDisputeReasonRequired
	}
	evidence := make([]string, 0, len(input.Evidence))
	for _, e := range input.Evidence {
		if e = strings.TrimSpace(e); e != "" {
			evidence = append(evidence, e)
		}
	}

	var updated *models.Match
	err := s.txManager.WithinTransaction(ctx, func(ctx context.Context, exec repositories.SQLExecutor) error {
		m, err := lockActiveMatch(ctx, exec, s.matchRepo, s.tournamentRepo, input.MatchID)
		if err != nil {
			return err
		}
		switch m.Status {
		case models.MatchInProgress, models.MatchPendingVerification:
		case models.MatchDisputed:
			return ErrMatchAlreadyDisputed
		default:
			return fmt.Errorf("%w (status %s)", ErrMatchNotDisputable, m.Status)
		}
		if !m.HasPlayer(input.ParticipantID) {
			return ErrNotMatchParticipant
		}

		m.Status = models.MatchDisputed
		m.Dispute = &models.Dispute{
			ReportedBy: input.ParticipantID,
			Reason:     reason,
			Evidence:   evidence,
			Status:     models.DisputeOpen,
			ReportedAt: s.now(),
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

	s.logger.Warn("match disputed",
		slog.Int("match_id", updated.ID),
		slog.Int("tournament_id", updated.TournamentID),
		slog.Int("reported_by", input.ParticipantID))
	s.publisher.Publish(updated.TournamentID, brackets.EventMatchUpdated, updated)
	return updated, nil
}

// ResolveDispute closes the dispute. With a winner the match completes and the winner advances;
// without one the match is cancelled and its downstream slot is vacated.
func (s *disputeService) ResolveDispute(ctx context.Context, input ResolveDisputeInput) (*models.Match, error) {
	var (
		updated *models.Match
		run     *progressionRun
	)
	err := s.txManager.WithinTransaction(ctx, func(ctx context.Context, exec repositories.SQLExecutor) error {
		m, err := lockActiveMatch(ctx, exec, s.matchRepo, s.tournamentRepo, input.MatchID)
		if err != nil {
			return err
		}
		if m.Status != models.MatchDisputed {
			return fmt.Errorf("%w (status %s)", ErrMatchNotDisputed, m.Status)
		}
		if m.Dispute == nil || m.Dispute.Status != models.DisputeOpen {
			return ErrDisputeAlreadyResolved
		}
		if input.WinnerID != nil && !m.HasPlayer(*input.WinnerID) {
			return ErrWinnerNotInMatch
		}

		now := s.now()
		m.Dispute.Status = models.DisputeResolved
		m.Dispute.Resolution = strings.TrimSpace(input.Resolution)
		m.Dispute.ResolvedBy = intPtr(input.AdminID)
		m.Dispute.ResolvedAt = timePtr(now)
		m.CompletedAt = timePtr(now)
		if input.WinnerID != nil {
			m.WinnerID = intPtr(*input.WinnerID)
			m.Status = models.MatchCompleted
		} else {
			m.WinnerID = nil
			m.Status = models.MatchCancelled
		}
		if err := s.matchRepo.Update(ctx, exec, m); err != nil {
			return handleRepositoryError(err, "match")
		}

		run, err = beginRun(ctx, exec, s.progression, s.tournamentRepo, m.TournamentID, now)
		if err != nil {
			return err
		}
		run.touch(m)
		if m.Status == models.MatchCompleted {
			err = run.OnMatchCompleted(m)
		} else {
			err = run.OnMatchCancelled(m)
		}
		if err != nil {
			return err
		}
		updated = m
		return nil
	})
	if err != nil {
		return nil, err
	}

	attrs := []any{
		slog.Int("match_id", updated.ID),
		slog.Int("admin_id", input.AdminID),
		slog.String("status", string(updated.Status)),
	}
	if updated.WinnerID != nil {
		attrs = append(attrs, slog.Int("winner_participant_id", *updated.WinnerID))
	}
	s.logger.Info("dispute resolved", attrs...)
	publishRun(s.publisher, updated.TournamentID, run)
	return updated, nil
}
