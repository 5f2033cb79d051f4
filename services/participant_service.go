package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Dosada05/bracket-engine/models"
	"github.com/Dosada05/bracket-engine/repositories"
)

type ParticipantService interface {
	Register(ctx context.Context, tournamentID, userID int) (*models.Participant, error)
	MarkPaid(ctx context.Context, participantID int) (*models.Participant, error)
	MarkRefunded(ctx context.Context, participantID int) (*models.Participant, error)
	Withdraw(ctx context.Context, tournamentID, userID int) error
	// ResolveParticipant maps a caller's user id to their registration in the tournament.
	ResolveParticipant(ctx context.Context, tournamentID, userID int) (*models.Participant, error)
	GetParticipant(ctx context.Context, participantID int) (*models.Participant, error)
	ListParticipants(ctx context.Context, tournamentID int) ([]*models.Participant, error)
}

type participantService struct {
	txManager       repositories.TxManager
	tournamentRepo  repositories.TournamentRepository
	participantRepo repositories.ParticipantRepository
	logger          *slog.Logger
	now             func() time.Time
}

func NewParticipantService(
	txManager repositories.TxManager,
	tournamentRepo repositories.TournamentRepository,
	participantRepo repositories.ParticipantRepository,
	logger *slog.Logger,
) ParticipantService {
	return &participantService{
		txManager:       txManager,
		tournamentRepo:  tournamentRepo,
		participantRepo: participantRepo,
		logger:          loggerOrDefault(logger),
		now:             utcNow,
	}
}

// Register creates the registration and bumps currentPlayers in one transaction.
// Free tournaments mark the registration paid straight away.
func (s *participantService) Register(ctx context.Context, tournamentID, userID int) (*models.Participant, error) {
	if userID <= 0 {
		return nil, fmt.Errorf("%w: user id is required", ErrValidationFailed)
	}

	var created *models.Participant
	err := s.txManager.WithinTransaction(ctx, func(ctx context.Context, exec repositories.SQLExecutor) error {
		t, err := s.tournamentRepo.GetByIDForUpdate(ctx, exec, tournamentID)
		if err != nil {
			return handleRepositoryError(err, "tournament")
		}
		now := s.now()
		if t.Status != models.TournamentRegistrationOpen || now.After(t.RegistrationDeadline) || t.BracketGenerated() {
			return ErrRegistrationNotOpen
		}
		_, err = s.participantRepo.FindByUserAndTournament(ctx, exec, userID, tournamentID)
		switch {
		case err == nil:
			return ErrRegistrationConflict
		case !errors.Is(err, repositories.ErrParticipantNotFound):
			return handleRepositoryError(err, "participant")
		}
		if err := s.tournamentRepo.IncrementPlayers(ctx, exec, tournamentID); err != nil {
			return handleRepositoryError(err, "tournament")
		}

		p := &models.Participant{
			TournamentID:  tournamentID,
			UserID:        userID,
			PaymentStatus: models.PaymentPending,
			Status:        models.ParticipantRegistered,
			MatchHistory:  []models.MatchHistoryEntry{},
			PrizeStatus:   models.PrizeNone,
		}
		if t.EntryFee == 0 {
			p.PaymentStatus = models.PaymentPaid
			p.PaidAt = timePtr(now)
		}
		if err := s.participantRepo.Create(ctx, exec, p); err != nil {
			return handleRepositoryError(err, "participant")
		}
		if p.PaidAt != nil {
			if err := s.participantRepo.Update(ctx, exec, p); err != nil {
				return handleRepositoryError(err, "participant")
			}
		}
		created = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("participant registered",
		slog.Int("tournament_id", tournamentID),
		slog.Int("user_id", userID),
		slog.Int("participant_id", created.ID))
	return created, nil
}

func (s *participantService) MarkPaid(ctx context.Context, participantID int) (*models.Participant, error) {
	return s.changePayment(ctx, participantID, func(p *models.Participant, now time.Time) (bool, error) {
		switch p.PaymentStatus {
		case models.PaymentPaid:
			return false, nil
		case models.PaymentPending:
			p.PaymentStatus = models.PaymentPaid
			p.PaidAt = timePtr(now)
			return true, nil
		}
		return false, fmt.Errorf("%w: %s -> %s", ErrPaymentStatusTransition, p.PaymentStatus, models.PaymentPaid)
	})
}

func (s *participantService) MarkRefunded(ctx context.Context, participantID int) (*models.Participant, error) {
	return s.changePayment(ctx, participantID, func(p *models.Participant, now time.Time) (bool, error) {
		switch p.PaymentStatus {
		case models.PaymentRefunded:
			return false, nil
		case models.PaymentPaid:
			p.PaymentStatus = models.PaymentRefunded
			return true, nil
		}
		return false, fmt.Errorf("%w: %s -> %s", ErrPaymentStatusTransition, p.PaymentStatus, models.PaymentRefunded)
	})
}

// changePayment applies a payment transition. The paid snapshot is consumed by bracket
// generation, so payments are frozen once the bracket exists.
func (s *participantService) changePayment(ctx context.Context, participantID int, apply func(p *models.Participant, now time.Time) (bool, error)) (*models.Participant, error) {
	var result *models.Participant
	err := s.txManager.WithinTransaction(ctx, func(ctx context.Context, exec repositories.SQLExecutor) error {
		p, err := s.participantRepo.GetByIDForUpdate(ctx, exec, participantID)
		if err != nil {
			return handleRepositoryError(err, "participant")
		}
		t, err := s.tournamentRepo.GetByID(ctx, exec, p.TournamentID)
		if err != nil {
			return handleRepositoryError(err, "tournament")
		}
		if t.BracketGenerated() {
			return fmt.Errorf("%w: bracket already generated", ErrPaymentStatusTransition)
		}
		changed, err := apply(p, s.now())
		if err != nil {
			return err
		}
		if changed {
			if err := s.participantRepo.Update(ctx, exec, p); err != nil {
				return handleRepositoryError(err, "participant")
			}
		}
		result = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("participant payment updated",
		slog.Int("participant_id", participantID),
		slog.String("payment_status", string(result.PaymentStatus)))
	return result, nil
}

// Withdraw removes a registration before the bracket exists. Paid entries must be refunded first.
func (s *participantService) Withdraw(ctx context.Context, tournamentID, userID int) error {
	return s.txManager.WithinTransaction(ctx, func(ctx context.Context, exec repositories.SQLExecutor) error {
		t, err := s.tournamentRepo.GetByIDForUpdate(ctx, exec, tournamentID)
		if err != nil {
			return handleRepositoryError(err, "tournament")
		}
		if t.BracketGenerated() {
			return ErrWithdrawAfterBracket
		}
		p, err := s.participantRepo.FindByUserAndTournament(ctx, exec, userID, tournamentID)
		if err != nil {
			return handleRepositoryError(err, "participant")
		}
		if p.PaymentStatus == models.PaymentPaid {
			return fmt.Errorf("%w: refund the entry fee before withdrawing", ErrPaymentStatusTransition)
		}
		if err := s.participantRepo.Delete(ctx, exec, p.ID); err != nil {
			return handleRepositoryError(err, "participant")
		}
		if err := s.tournamentRepo.DecrementPlayers(ctx, exec, tournamentID); err != nil {
			return handleRepositoryError(err, "tournament")
		}
		s.logger.Info("participant withdrew", slog.Int("tournament_id", tournamentID), slog.Int("user_id", userID))
		return nil
	})
}

func (s *participantService) ResolveParticipant(ctx context.Context, tournamentID, userID int) (*models.Participant, error) {
	p, err := s.participantRepo.FindByUserAndTournament(ctx, nil, userID, tournamentID)
	if err != nil {
		return nil, handleRepositoryError(err, "participant")
	}
	return p, nil
}

func (s *participantService) GetParticipant(ctx context.Context, participantID int) (*models.Participant, error) {
	p, err := s.participantRepo.GetByID(ctx, nil, participantID)
	if err != nil {
		return nil, handleRepositoryError(err, "participant")
	}
	return p, nil
}

func (s *participantService) ListParticipants(ctx context.Context, tournamentID int) ([]*models.Participant, error) {
	if _, err := s.tournamentRepo.GetByID(ctx, nil, tournamentID); err != nil {
		return nil, handleRepositoryError(err, "tournament")
	}
	participants, err := s.participantRepo.ListByTournament(ctx, nil, tournamentID, nil)
	if err != nil {
		return nil, handleRepositoryError(err, "participant")
	}
	return participants, nil
}
