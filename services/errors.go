package services

import (
	"errors"
	"fmt"
)

// Виды ошибок. Handlers map each kind to one HTTP status; specific errors below wrap a kind.
var (
	ErrNotFound                 = errors.New("requested resource not found")
	ErrInvalidState             = errors.New("operation not allowed in the current state")
	ErrForbiddenOperation       = errors.New("operation not allowed for the current user")
	ErrInsufficientParticipants = errors.New("not enough paid participants")
	ErrConflict                 = errors.New("bracket consistency violation")
	ErrValidationFailed         = errors.New("validation failed")
)

// Не найдено
var (
	ErrTournamentNotFound  = fmt.Errorf("%w: tournament not found", ErrNotFound)
	ErrParticipantNotFound = fmt.Errorf("%w: participant registration not found", ErrNotFound)
	ErrMatchNotFound       = fmt.Errorf("%w: match not found", ErrNotFound)
)

// Сетка
var (
	ErrBracketAlreadyGenerated = fmt.Errorf("%w: bracket already generated", ErrInvalidState)
	ErrBracketNotGenerated     = fmt.Errorf("%w: bracket has not been generated yet", ErrInvalidState)
	ErrUnsupportedFormat       = fmt.Errorf("%w: tournament format has no bracket mechanics", ErrInvalidState)
	ErrTournamentNotActive     = fmt.Errorf("%w: tournament is completed or cancelled", ErrInvalidState)
)

// Матчи и споры
var (
	ErrMatchNotAcceptingResults    = fmt.Errorf("%w: match is not accepting results", ErrInvalidState)
	ErrMatchAwaitingPlayers        = fmt.Errorf("%w: match is still waiting for its players", ErrInvalidState)
	ErrMatchNotStartable           = fmt.Errorf("%w: only scheduled matches can be started", ErrInvalidState)
	ErrMatchNotPendingVerification = fmt.Errorf("%w: match is not pending verification", ErrInvalidState)
	ErrResultTied                  = fmt.Errorf("%w: submitted scores are tied", ErrInvalidState)
	ErrMatchNotDisputable          = fmt.Errorf("%w: match cannot be disputed in its current status", ErrInvalidState)
	ErrMatchAlreadyDisputed        = fmt.Errorf("%w: match is already disputed", ErrInvalidState)
	ErrMatchNotDisputed            = fmt.Errorf("%w: match is not disputed", ErrInvalidState)
	ErrDisputeAlreadyResolved      = fmt.Errorf("%w: dispute already resolved", ErrInvalidState)
	ErrNotMatchParticipant         = fmt.Errorf("%w: caller is not a player of this match", ErrForbiddenOperation)
	ErrWinnerNotInMatch            = fmt.Errorf("%w: winner must be one of the match players", ErrValidationFailed)
	ErrInvalidScore                = fmt.Errorf("%w: score must not be negative", ErrValidationFailed)
	ErrDisputeReasonRequired       = fmt.Errorf("%w: dispute reason is required", ErrValidationFailed)
	ErrSlotConflict                = fmt.Errorf("%w: downstream slot already taken", ErrConflict)
)

// Турниры и регистрация
var (
	ErrTournamentNameRequired            = fmt.Errorf("%w: tournament name is required", ErrValidationFailed)
	ErrTournamentInvalidCapacity         = fmt.Errorf("%w: tournament max players must be at least 2", ErrValidationFailed)
	ErrTournamentInvalidEntryFee         = fmt.Errorf("%w: entry fee must not be negative", ErrValidationFailed)
	ErrTournamentInvalidPrizePool        = fmt.Errorf("%w: invalid prize pool distribution", ErrValidationFailed)
	ErrTournamentInvalidStatus           = fmt.Errorf("%w: invalid tournament status provided", ErrValidationFailed)
	ErrTournamentInvalidStatusTransition = fmt.Errorf("%w: invalid tournament status transition", ErrInvalidState)
	ErrTournamentSlugConflict            = fmt.Errorf("%w: tournament name already in use", ErrInvalidState)
	ErrTournamentHasPaidParticipants     = fmt.Errorf("%w: tournament has paid participants", ErrInvalidState)
	ErrRegistrationNotOpen               = fmt.Errorf("%w: tournament registration is not open", ErrInvalidState)
	ErrTournamentFull                    = fmt.Errorf("%w: tournament registration is full", ErrInvalidState)
	ErrRegistrationConflict              = fmt.Errorf("%w: user is already registered for this tournament", ErrInvalidState)
	ErrWithdrawAfterBracket              = fmt.Errorf("%w: cannot withdraw once the bracket exists", ErrInvalidState)
	ErrPaymentStatusTransition           = fmt.Errorf("%w: payment status cannot change this way", ErrInvalidState)
)
