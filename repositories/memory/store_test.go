package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Dosada05/bracket-engine/models"
	"github.com/Dosada05/bracket-engine/repositories"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTournament(slug string, maxPlayers int) *models.Tournament {
	return &models.Tournament{
		Name:                 slug,
		Slug:                 slug,
		Format:               models.FormatSingleElimination,
		Status:               models.TournamentRegistrationOpen,
		MaxPlayers:           maxPlayers,
		RegistrationDeadline: time.Now().Add(time.Hour),
	}
}

func TestTransactionRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	tournaments := store.Tournaments()

	tour := newTournament("spring-cup", 8)
	require.NoError(t, tournaments.Create(ctx, nil, tour))

	boom := errors.New("boom")
	err := store.WithinTransaction(ctx, func(ctx context.Context, exec repositories.SQLExecutor) error {
		require.NoError(t, tournaments.IncrementPlayers(ctx, exec, tour.ID))
		require.NoError(t, tournaments.UpdateStatus(ctx, exec, tour.ID, models.TournamentCancelled))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := tournaments.GetByID(ctx, nil, tour.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.CurrentPlayers)
	assert.Equal(t, models.TournamentRegistrationOpen, got.Status)
}

func TestTransactionCommits(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	tournaments := store.Tournaments()

	tour := newTournament("autumn-cup", 8)
	require.NoError(t, tournaments.Create(ctx, nil, tour))

	err := store.WithinTransaction(ctx, func(ctx context.Context, exec repositories.SQLExecutor) error {
		return tournaments.IncrementPlayers(ctx, exec, tour.ID)
	})
	require.NoError(t, err)

	got, err := tournaments.GetByID(ctx, nil, tour.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.CurrentPlayers)
}

func TestIncrementPlayersRespectsCapacity(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	tournaments := store.Tournaments()

	tour := newTournament("tiny", 2)
	require.NoError(t, tournaments.Create(ctx, nil, tour))

	require.NoError(t, tournaments.IncrementPlayers(ctx, nil, tour.ID))
	require.NoError(t, tournaments.IncrementPlayers(ctx, nil, tour.ID))
	assert.ErrorIs(t, tournaments.IncrementPlayers(ctx, nil, tour.ID), repositories.ErrTournamentFull)
}

func TestSetBracketIsWriteOnce(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	tournaments := store.Tournaments()

	tour := newTournament("write-once", 4)
	require.NoError(t, tournaments.Create(ctx, nil, tour))

	bracket := &models.Bracket{Size: 2, Rounds: []models.BracketRound{{Round: 1, Name: "Final", MatchIDs: []int{1}}}}
	require.NoError(t, tournaments.SetBracket(ctx, nil, tour.ID, bracket, models.TournamentInProgress))
	assert.ErrorIs(t, tournaments.SetBracket(ctx, nil, tour.ID, bracket, models.TournamentInProgress), repositories.ErrTournamentBracketExists)
}

func TestParticipantUniquePerTournament(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	tour := newTournament("unique", 4)
	require.NoError(t, store.Tournaments().Create(ctx, nil, tour))

	participants := store.Participants()
	require.NoError(t, participants.Create(ctx, nil, &models.Participant{TournamentID: tour.ID, UserID: 7}))
	err := participants.Create(ctx, nil, &models.Participant{TournamentID: tour.ID, UserID: 7})
	assert.ErrorIs(t, err, repositories.ErrParticipantConflict)
}

func TestReturnedRecordsAreCopies(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	tour := newTournament("copies", 4)
	require.NoError(t, store.Tournaments().Create(ctx, nil, tour))

	match := &models.Match{TournamentID: tour.ID, Round: 1, OrderInRound: 1, Status: models.MatchScheduled}
	require.NoError(t, store.Matches().Create(ctx, nil, match))

	got, err := store.Matches().GetByID(ctx, nil, match.ID)
	require.NoError(t, err)
	got.Status = models.MatchCompleted

	again, err := store.Matches().GetByID(ctx, nil, match.ID)
	require.NoError(t, err)
	assert.Equal(t, models.MatchScheduled, again.Status)
}

func TestDeleteTournamentWithParticipantsIsRejected(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	tour := newTournament("in-use", 4)
	require.NoError(t, store.Tournaments().Create(ctx, nil, tour))
	require.NoError(t, store.Participants().Create(ctx, nil, &models.Participant{TournamentID: tour.ID, UserID: 1}))

	assert.ErrorIs(t, store.Tournaments().Delete(ctx, nil, tour.ID), repositories.ErrTournamentInUse)
}
