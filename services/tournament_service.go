package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Dosada05/bracket-engine/models"
	"github.com/Dosada05/bracket-engine/repositories"
	"github.com/gosimple/slug"
)

type CreateTournamentInput struct {
	Name                 string                   `json:"name"`
	Format               models.TournamentFormat  `json:"format"`
	Status               *models.TournamentStatus `json:"status,omitempty"`
	MaxPlayers           int                      `json:"max_players"`
	EntryFee             float64                  `json:"entry_fee"`
	RegistrationDeadline time.Time                `json:"registration_deadline"`
	StartDate            *time.Time               `json:"start_date,omitempty"`
	PrizePool            models.PrizePool         `json:"prize_pool"`
}

type TournamentService interface {
	CreateTournament(ctx context.Context, input CreateTournamentInput) (*models.Tournament, error)
	GetTournament(ctx context.Context, id int) (*models.Tournament, error)
	ListTournaments(ctx context.Context, filter repositories.ListTournamentsFilter) ([]*models.Tournament, error)
	UpdateTournamentStatus(ctx context.Context, id int, status models.TournamentStatus) (*models.Tournament, error)
	DeleteTournament(ctx context.Context, id int) error
	// CloseExpiredRegistrations closes registration on every open tournament whose deadline has passed.
	CloseExpiredRegistrations(ctx context.Context, now time.Time) (int, error)
}

type tournamentService struct {
	txManager       repositories.TxManager
	tournamentRepo  repositories.TournamentRepository
	participantRepo repositories.ParticipantRepository
	logger          *slog.Logger
}

func NewTournamentService(
	txManager repositories.TxManager,
	tournamentRepo repositories.TournamentRepository,
	participantRepo repositories.ParticipantRepository,
	logger *slog.Logger,
) TournamentService {
	return &tournamentService{
		txManager:       txManager,
		tournamentRepo:  tournamentRepo,
		participantRepo: participantRepo,
		logger:          loggerOrDefault(logger),
	}
}

func (s *tournamentService) CreateTournament(ctx context.Context, input CreateTournamentInput) (*models.Tournament, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, ErrTournamentNameRequired
	}
	if input.MaxPlayers < 2 {
		return nil, ErrTournamentInvalidCapacity
	}
	if input.EntryFee < 0 {
		return nil, ErrTournamentInvalidEntryFee
	}
	if input.RegistrationDeadline.IsZero() {
		return nil, fmt.Errorf("%w: registration deadline is required", ErrValidationFailed)
	}
	if input.StartDate != nil && input.StartDate.Before(input.RegistrationDeadline) {
		return nil, fmt.Errorf("%w: start date cannot be before the registration deadline", ErrValidationFailed)
	}
	if err := validatePrizePool(input.PrizePool); err != nil {
		return nil, err
	}

	format := input.Format
	if format == "" {
		format = models.FormatSingleElimination
	}
	status := models.TournamentUpcoming
	if input.Status != nil {
		if *input.Status != models.TournamentUpcoming && *input.Status != models.TournamentRegistrationOpen {
			return nil, ErrTournamentInvalidStatus
		}
		status = *input.Status
	}

	tournament := &models.Tournament{
		Name:                 name,
		Slug:                 slug.Make(name),
		Format:               format,
		Status:               status,
		MaxPlayers:           input.MaxPlayers,
		EntryFee:             input.EntryFee,
		RegistrationDeadline: input.RegistrationDeadline.UTC(),
		StartDate:            input.StartDate,
		PrizePool:            input.PrizePool,
	}
	if err := s.tournamentRepo.Create(ctx, nil, tournament); err != nil {
		return nil, handleRepositoryError(err, "tournament")
	}

	s.logger.Info("tournament created", slog.Int("tournament_id", tournament.ID), slog.String("slug", tournament.Slug))
	return tournament, nil
}

func (s *tournamentService) GetTournament(ctx context.Context, id int) (*models.Tournament, error) {
	t, err := s.tournamentRepo.GetByID(ctx, nil, id)
	if err != nil {
		return nil, handleRepositoryError(err, "tournament")
	}
	return t, nil
}

func (s *tournamentService) ListTournaments(ctx context.Context, filter repositories.ListTournamentsFilter) ([]*models.Tournament, error) {
	if filter.Status != nil && !isKnownTournamentStatus(*filter.Status) {
		return nil, ErrTournamentInvalidStatus
	}
	tournaments, err := s.tournamentRepo.List(ctx, filter)
	if err != nil {
		return nil, handleRepositoryError(err, "tournament")
	}
	return tournaments, nil
}

func (s *tournamentService) UpdateTournamentStatus(ctx context.Context, id int, status models.TournamentStatus) (*models.Tournament, error) {
	if !isKnownTournamentStatus(status) {
		return nil, ErrTournamentInvalidStatus
	}

	var updated *models.Tournament
	err := s.txManager.WithinTransaction(ctx, func(ctx context.Context, exec repositories.SQLExecutor) error {
		t, err := s.tournamentRepo.GetByIDForUpdate(ctx, exec, id)
		if err != nil {
			return handleRepositoryError(err, "tournament")
		}
		if !isValidStatusTransition(t.Status, status) {
			return fmt.Errorf("%w: %s -> %s", ErrTournamentInvalidStatusTransition, t.Status, status)
		}
		if status == models.TournamentCompleted && t.WinnerParticipantID == nil && t.BracketGenerated() {
			return fmt.Errorf("%w: bracket has not produced a result yet", ErrTournamentInvalidStatusTransition)
		}
		if err := s.tournamentRepo.UpdateStatus(ctx, exec, id, status); err != nil {
			return handleRepositoryError(err, "tournament")
		}
		t.Status = status
		updated = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("tournament status changed", slog.Int("tournament_id", id), slog.String("status", string(status)))
	return updated, nil
}

// DeleteTournament removes a tournament nobody has paid for. Unpaid registrations go with it.
func (s *tournamentService) DeleteTournament(ctx context.Context, id int) error {
	return s.txManager.WithinTransaction(ctx, func(ctx context.Context, exec repositories.SQLExecutor) error {
		if _, err := s.tournamentRepo.GetByIDForUpdate(ctx, exec, id); err != nil {
			return handleRepositoryError(err, "tournament")
		}
		paid, err := s.participantRepo.CountPaid(ctx, exec, id)
		if err != nil {
			return handleRepositoryError(err, "participant")
		}
		if paid > 0 {
			return ErrTournamentHasPaidParticipants
		}

		participants, err := s.participantRepo.ListByTournament(ctx, exec, id, nil)
		if err != nil {
			return handleRepositoryError(err, "participant")
		}
		for _, p := range participants {
			if err := s.participantRepo.Delete(ctx, exec, p.ID); err != nil {
				return handleRepositoryError(err, "participant")
			}
		}
		if err := s.tournamentRepo.Delete(ctx, exec, id); err != nil {
			return handleRepositoryError(err, "tournament")
		}
		s.logger.Info("tournament deleted", slog.Int("tournament_id", id), slog.Int("unpaid_registrations_removed", len(participants)))
		return nil
	})
}

func (s *tournamentService) CloseExpiredRegistrations(ctx context.Context, now time.Time) (int, error) {
	expired, err := s.tournamentRepo.ListRegistrationExpired(ctx, now)
	if err != nil {
		return 0, handleRepositoryError(err, "tournament")
	}

	closed := 0
	for _, candidate := range expired {
		err := s.txManager.WithinTransaction(ctx, func(ctx context.Context, exec repositories.SQLExecutor) error {
			t, err := s.tournamentRepo.GetByIDForUpdate(ctx, exec, candidate.ID)
			if err != nil {
				return handleRepositoryError(err, "tournament")
			}
			// Re-checked under the lock: an admin may have moved it on meanwhile.
			if t.Status != models.TournamentRegistrationOpen || t.RegistrationDeadline.After(now) {
				return nil
			}
			if err := s.tournamentRepo.UpdateStatus(ctx, exec, t.ID, models.TournamentRegistrationClosed); err != nil {
				return handleRepositoryError(err, "tournament")
			}
			closed++
			return nil
		})
		if err != nil {
			s.logger.Error("failed to close tournament registration", slog.Int("tournament_id", candidate.ID), slog.Any("error", err))
			continue
		}
	}
	if closed > 0 {
		s.logger.Info("tournament registrations closed", slog.Int("count", closed))
	}
	return closed, nil
}
