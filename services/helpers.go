package services

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/Dosada05/bracket-engine/models"
	"github.com/Dosada05/bracket-engine/repositories"
)

// EventPublisher pushes state changes to whoever watches a tournament. brackets.Hub implements it.
type EventPublisher interface {
	Publish(tournamentID int, eventType string, payload interface{})
}

type noopPublisher struct{}

func (noopPublisher) Publish(int, string, interface{}) {}

func publisherOrNoop(p EventPublisher) EventPublisher {
	if p == nil {
		return noopPublisher{}
	}
	return p
}

func loggerOrDefault(l *slog.Logger) *slog.Logger {
	if l == nil {
		return slog.Default()
	}
	return l
}

func utcNow() time.Time {
	return time.Now().UTC()
}

// handleRepositoryError translates repository sentinels into service error kinds.
func handleRepositoryError(err error, entity string) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, repositories.ErrTournamentNotFound):
		return ErrTournamentNotFound
	case errors.Is(err, repositories.ErrParticipantNotFound):
		return ErrParticipantNotFound
	case errors.Is(err, repositories.ErrMatchNotFound):
		return ErrMatchNotFound
	case errors.Is(err, repositories.ErrTournamentSlugConflict):
		return ErrTournamentSlugConflict
	case errors.Is(err, repositories.ErrTournamentFull):
		return ErrTournamentFull
	case errors.Is(err, repositories.ErrTournamentBracketExists):
		return ErrBracketAlreadyGenerated
	case errors.Is(err, repositories.ErrParticipantConflict):
		return ErrRegistrationConflict
	case errors.Is(err, repositories.ErrParticipantTournamentInvalid),
		errors.Is(err, repositories.ErrMatchTournamentInvalid):
		return ErrTournamentNotFound
	case errors.Is(err, repositories.ErrTournamentInUse):
		return ErrTournamentHasPaidParticipants
	}
	return fmt.Errorf("%s repository error: %w", entity, err)
}

func isValidStatusTransition(current, next models.TournamentStatus) bool {
	if current == next {
		return true
	}
	allowedTransitions := map[models.TournamentStatus][]models.TournamentStatus{
		models.TournamentUpcoming:           {models.TournamentRegistrationOpen, models.TournamentCancelled},
		models.TournamentRegistrationOpen:   {models.TournamentRegistrationClosed, models.TournamentInProgress, models.TournamentCancelled},
		models.TournamentRegistrationClosed: {models.TournamentInProgress, models.TournamentCancelled},
		models.TournamentInProgress:         {models.TournamentCompleted, models.TournamentCancelled},
		models.TournamentCompleted:          {},
		models.TournamentCancelled:          {},
	}
	for _, allowedNextStatus := range allowedTransitions[current] {
		if next == allowedNextStatus {
			return true
		}
	}
	return false
}

func isKnownTournamentStatus(status models.TournamentStatus) bool {
	switch status {
	case models.TournamentUpcoming, models.TournamentRegistrationOpen, models.TournamentRegistrationClosed,
		models.TournamentInProgress, models.TournamentCompleted, models.TournamentCancelled:
		return true
	}
	return false
}

func roundToCents(v float64) float64 {
	return math.Round(v*100) / 100
}

func intPtr(v int) *int {
	return &v
}

func timePtr(t time.Time) *time.Time {
	return &t
}
