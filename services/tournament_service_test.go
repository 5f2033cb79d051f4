package services

import (
	"context"
	"testing"
	"time"

	"github.com/Dosada05/bracket-engine/models"
	"github.com/Dosada05/bracket-engine/repositories"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateTournament(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	deadline := time.Now().UTC().Add(48 * time.Hour)

	created, err := env.tournaments.CreateTournament(ctx, CreateTournamentInput{
		Name:                 "  Winter Open 2026 ",
		MaxPlayers:           16,
		EntryFee:             10,
		RegistrationDeadline: deadline,
		PrizePool: models.PrizePool{Total: 160, Distribution: map[int]models.PrizeShare{
			1: {Type: models.PrizeSharePercentage, Value: 70},
			2: {Type: models.PrizeShareFixed, Value: 30},
		}},
	})
	require.NoError(t, err)
	assert.NotZero(t, created.ID)
	assert.Equal(t, "Winter Open 2026", created.Name)
	assert.Equal(t, "winter-open-2026", created.Slug)
	assert.Equal(t, models.FormatSingleElimination, created.Format)
	assert.Equal(t, models.TournamentUpcoming, created.Status)
	assert.Zero(t, created.CurrentPlayers)
	assert.Nil(t, created.Bracket)

	_, err = env.tournaments.CreateTournament(ctx, CreateTournamentInput{
		Name: "Winter Open 2026", MaxPlayers: 8, RegistrationDeadline: deadline,
	})
	assert.ErrorIs(t, err, ErrTournamentSlugConflict)
}

func TestCreateTournament_Validation(t *testing.T) {
	deadline := time.Now().UTC().Add(time.Hour)
	before := deadline.Add(-time.Minute)
	completed := models.TournamentCompleted

	tests := []struct {
		name  string
		input CreateTournamentInput
		want  error
	}{
		{"blank name", CreateTournamentInput{Name: "  ", MaxPlayers: 8, RegistrationDeadline: deadline}, ErrTournamentNameRequired},
		{"capacity", CreateTournamentInput{Name: "Cup", MaxPlayers: 1, RegistrationDeadline: deadline}, ErrTournamentInvalidCapacity},
		{"negative fee", CreateTournamentInput{Name: "Cup", MaxPlayers: 8, EntryFee: -1, RegistrationDeadline: deadline}, ErrTournamentInvalidEntryFee},
		{"no deadline", CreateTournamentInput{Name: "Cup", MaxPlayers: 8}, ErrValidationFailed},
		{"start before deadline", CreateTournamentInput{Name: "Cup", MaxPlayers: 8, RegistrationDeadline: deadline, StartDate: &before}, ErrValidationFailed},
		{"initial status", CreateTournamentInput{Name: "Cup", MaxPlayers: 8, RegistrationDeadline: deadline, Status: &completed}, ErrTournamentInvalidStatus},
		{"percent over 100", CreateTournamentInput{Name: "Cup", MaxPlayers: 8, RegistrationDeadline: deadline, PrizePool: models.PrizePool{
			Total: 100, Distribution: map[int]models.PrizeShare{1: {Type: models.PrizeSharePercentage, Value: 80}, 2: {Type: models.PrizeSharePercentage, Value: 30}},
		}}, ErrTournamentInvalidPrizePool},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			_, err := env.tournaments.CreateTournament(context.Background(), tt.input)
			assert.ErrorIs(t, err, tt.want)
			assert.ErrorIs(t, err, ErrValidationFailed)
		})
	}
}

func TestUpdateTournamentStatus(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	tournament := env.createOpenTournament(t, 8, 0, models.PrizePool{})

	updated, err := env.tournaments.UpdateTournamentStatus(ctx, tournament.ID, models.TournamentRegistrationClosed)
	require.NoError(t, err)
	assert.Equal(t, models.TournamentRegistrationClosed, updated.Status)

	_, err = env.tournaments.UpdateTournamentStatus(ctx, tournament.ID, models.TournamentRegistrationOpen)
	assert.ErrorIs(t, err, ErrTournamentInvalidStatusTransition)

	_, err = env.tournaments.UpdateTournamentStatus(ctx, tournament.ID, "paused")
	assert.ErrorIs(t, err, ErrTournamentInvalidStatus)

	_, err = env.tournaments.UpdateTournamentStatus(ctx, 404, models.TournamentCancelled)
	assert.ErrorIs(t, err, ErrTournamentNotFound)

	_, err = env.tournaments.UpdateTournamentStatus(ctx, tournament.ID, models.TournamentCancelled)
	require.NoError(t, err)
	_, err = env.tournaments.UpdateTournamentStatus(ctx, tournament.ID, models.TournamentInProgress)
	assert.ErrorIs(t, err, ErrTournamentInvalidStatusTransition)
}

func TestUpdateTournamentStatus_CompletedNeedsAResult(t *testing.T) {
	env := newTestEnv(t)
	view, _ := env.bracketWith(t, 4, models.PrizePool{})

	_, err := env.tournaments.UpdateTournamentStatus(context.Background(), view.Tournament.ID, models.TournamentCompleted)
	assert.ErrorIs(t, err, ErrTournamentInvalidStatusTransition)
}

func TestDeleteTournament(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	paid := env.createOpenTournament(t, 4, 15, models.PrizePool{})
	env.registerPaid(t, paid, 1)
	err := env.tournaments.DeleteTournament(ctx, paid.ID)
	assert.ErrorIs(t, err, ErrTournamentHasPaidParticipants)
	_, err = env.tournaments.GetTournament(ctx, paid.ID)
	assert.NoError(t, err)

	unpaid := env.createOpenTournament(t, 4, 15, models.PrizePool{})
	registration, err := env.participants.Register(ctx, unpaid.ID, 7)
	require.NoError(t, err)
	require.Equal(t, models.PaymentPending, registration.PaymentStatus)

	require.NoError(t, env.tournaments.DeleteTournament(ctx, unpaid.ID))
	_, err = env.tournaments.GetTournament(ctx, unpaid.ID)
	assert.ErrorIs(t, err, ErrTournamentNotFound)
	_, err = env.participants.GetParticipant(ctx, registration.ID)
	assert.ErrorIs(t, err, ErrParticipantNotFound)

	assert.ErrorIs(t, env.tournaments.DeleteTournament(ctx, unpaid.ID), ErrNotFound)
}

func TestListTournaments(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	open := env.createOpenTournament(t, 8, 0, models.PrizePool{})
	_, err := env.tournaments.CreateTournament(ctx, CreateTournamentInput{
		Name: "Later Cup", MaxPlayers: 8, RegistrationDeadline: time.Now().UTC().Add(72 * time.Hour),
	})
	require.NoError(t, err)

	all, err := env.tournaments.ListTournaments(ctx, repositories.ListTournamentsFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	status := models.TournamentRegistrationOpen
	filtered, err := env.tournaments.ListTournaments(ctx, repositories.ListTournamentsFilter{Status: &status})
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, open.ID, filtered[0].ID)

	bogus := models.TournamentStatus("paused")
	_, err = env.tournaments.ListTournaments(ctx, repositories.ListTournamentsFilter{Status: &bogus})
	assert.ErrorIs(t, err, ErrTournamentInvalidStatus)
}

func TestCloseExpiredRegistrations(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	open := models.TournamentRegistrationOpen
	now := time.Now().UTC()

	expired, err := env.tournaments.CreateTournament(ctx, CreateTournamentInput{
		Name: "Yesterday Cup", Status: &open, MaxPlayers: 8, RegistrationDeadline: now.Add(-time.Hour),
	})
	require.NoError(t, err)
	running := env.createOpenTournament(t, 8, 0, models.PrizePool{})

	closed, err := env.tournaments.CloseExpiredRegistrations(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 1, closed)

	got, err := env.tournaments.GetTournament(ctx, expired.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TournamentRegistrationClosed, got.Status)
	got, err = env.tournaments.GetTournament(ctx, running.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TournamentRegistrationOpen, got.Status)

	closed, err = env.tournaments.CloseExpiredRegistrations(ctx, now)
	require.NoError(t, err)
	assert.Zero(t, closed)
}
