package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Dosada05/bracket-engine/brackets"
	"github.com/Dosada05/bracket-engine/models"
	"github.com/Dosada05/bracket-engine/repositories"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubmitResult_Idempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	view, players := env.bracketWith(t, 4, models.PrizePool{})
	m := roundMatches(view, 1)[0]

	first, err := env.matches.SubmitResult(ctx, SubmitResultInput{MatchID: m.ID, ParticipantID: players[0].ID, Score: 2})
	require.NoError(t, err)
	assert.Equal(t, models.MatchInProgress, first.Status)
	assert.NotNil(t, first.StartTime)

	second, err := env.matches.SubmitResult(ctx, SubmitResultInput{MatchID: m.ID, ParticipantID: players[0].ID, Score: 5, Screenshot: " https://cdn/x.png "})
	require.NoError(t, err)
	require.Len(t, second.Results, 1)
	assert.Equal(t, 5, second.Results[0].Score)
	assert.Equal(t, "https://cdn/x.png", second.Results[0].Screenshot)
	assert.Equal(t, models.MatchInProgress, second.Status)

	p := env.participant(t, players[0].ID)
	require.Len(t, p.MatchHistory, 1)
	assert.Equal(t, models.OutcomePending, p.MatchHistory[0].Result)
	assert.Equal(t, 5, *p.MatchHistory[0].Score)
}

func TestSubmitResult_EitherOrderReachesPendingVerification(t *testing.T) {
	for _, firstSlot := range []int{1, 2} {
		env := newTestEnv(t)
		ctx := context.Background()
		view, _ := env.bracketWith(t, 2, models.PrizePool{})
		m := roundMatches(view, 1)[0]

		first := *m.SlotPlayer(firstSlot)
		second := *m.SlotPlayer(3 - firstSlot)

		got, err := env.matches.SubmitResult(ctx, SubmitResultInput{MatchID: m.ID, ParticipantID: first, Score: 1})
		require.NoError(t, err)
		assert.Equal(t, models.MatchInProgress, got.Status)

		got, err = env.matches.SubmitResult(ctx, SubmitResultInput{MatchID: m.ID, ParticipantID: second, Score: 4})
		require.NoError(t, err)
		assert.Equal(t, models.MatchPendingVerification, got.Status)
		assert.Len(t, got.Results, 2)
		assert.Nil(t, got.WinnerID)

		// No further submissions once both are in.
		_, err = env.matches.SubmitResult(ctx, SubmitResultInput{MatchID: m.ID, ParticipantID: first, Score: 9})
		assert.ErrorIs(t, err, ErrMatchNotAcceptingResults)
	}
}

func TestSubmitResult_Rejections(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	view, players := env.bracketWith(t, 3, models.PrizePool{})

	var bye, real *models.Match
	for _, m := range roundMatches(view, 1) {
		if m.IsBye {
			bye = m
		} else {
			real = m
		}
	}
	final := roundMatches(view, 2)[0]

	_, err := env.matches.SubmitResult(ctx, SubmitResultInput{MatchID: 404, ParticipantID: players[0].ID, Score: 1})
	assert.ErrorIs(t, err, ErrMatchNotFound)

	_, err = env.matches.SubmitResult(ctx, SubmitResultInput{MatchID: real.ID, ParticipantID: players[1].ID, Score: -1})
	assert.ErrorIs(t, err, ErrInvalidScore)

	_, err = env.matches.SubmitResult(ctx, SubmitResultInput{MatchID: real.ID, ParticipantID: players[0].ID, Score: 1})
	assert.ErrorIs(t, err, ErrNotMatchParticipant)
	assert.ErrorIs(t, err, ErrForbiddenOperation)

	_, err = env.matches.SubmitResult(ctx, SubmitResultInput{MatchID: bye.ID, ParticipantID: players[0].ID, Score: 1})
	assert.ErrorIs(t, err, ErrMatchNotAcceptingResults)

	// The final still waits for the real match's winner.
	_, err = env.matches.SubmitResult(ctx, SubmitResultInput{MatchID: final.ID, ParticipantID: players[0].ID, Score: 1})
	assert.ErrorIs(t, err, ErrMatchAwaitingPlayers)
}

func TestVerifyResult(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	view, players := env.bracketWith(t, 4, models.PrizePool{})
	semi := roundMatches(view, 1)[0]

	_, err := env.matches.VerifyResult(ctx, semi.ID, 1, "")
	assert.ErrorIs(t, err, ErrMatchNotPendingVerification)

	// Tied scores cannot be adjudicated automatically.
	_, err = env.matches.SubmitResult(ctx, SubmitResultInput{MatchID: semi.ID, ParticipantID: players[0].ID, Score: 2})
	require.NoError(t, err)
	_, err = env.matches.SubmitResult(ctx, SubmitResultInput{MatchID: semi.ID, ParticipantID: players[3].ID, Score: 2})
	require.NoError(t, err)
	_, err = env.matches.VerifyResult(ctx, semi.ID, 1, "")
	assert.ErrorIs(t, err, ErrResultTied)

	env2 := newTestEnv(t)
	view2, players2 := env2.bracketWith(t, 4, models.PrizePool{})
	semi2 := roundMatches(view2, 1)[0]
	env2.submitBoth(t, semi2.ID, players2[3].ID)
	env2.events.reset()

	verified, err := env2.matches.VerifyResult(ctx, semi2.ID, 7, "  lobby logs match  ")
	require.NoError(t, err)
	assert.Equal(t, models.MatchCompleted, verified.Status)
	assert.Equal(t, players2[3].ID, *verified.WinnerID)
	assert.Equal(t, "lobby logs match", verified.AdminNotes)
	assert.NotNil(t, verified.CompletedAt)
	for _, r := range verified.Results {
		assert.True(t, r.Verified)
	}

	next := env2.match(t, *semi2.NextMatchID)
	assert.Equal(t, players2[3].ID, *next.SlotPlayer(semi2.NextSlot))
	assert.Equal(t, models.MatchScheduled, next.Status)

	winner := env2.participant(t, players2[3].ID)
	assert.Equal(t, models.ParticipantActive, winner.Status)
	assert.Equal(t, 2, winner.CurrentRound)
	require.Len(t, winner.MatchHistory, 1)
	assert.Equal(t, models.OutcomeWin, winner.MatchHistory[0].Result)
	assert.Equal(t, players2[0].ID, *winner.MatchHistory[0].OpponentID)

	loser := env2.participant(t, players2[0].ID)
	assert.Equal(t, models.ParticipantEliminated, loser.Status)
	assert.Equal(t, models.OutcomeLoss, loser.MatchHistory[0].Result)

	// The verified match and the match its winner moved into.
	assert.Equal(t, 2, env2.events.count(brackets.EventMatchUpdated))
}

func TestStartMatch(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	view, _ := env.bracketWith(t, 3, models.PrizePool{})

	var real *models.Match
	for _, m := range roundMatches(view, 1) {
		if !m.IsBye {
			real = m
		}
	}
	final := roundMatches(view, 2)[0]

	_, err := env.matches.StartMatch(ctx, final.ID, StartMatchInput{LobbyCode: "X"})
	assert.ErrorIs(t, err, ErrMatchAwaitingPlayers)

	at := time.Date(2025, 6, 1, 18, 0, 0, 0, time.UTC)
	started, err := env.matches.StartMatch(ctx, real.ID, StartMatchInput{LobbyCode: " LOBBY-1 ", StartTime: &at})
	require.NoError(t, err)
	assert.Equal(t, models.MatchInProgress, started.Status)
	assert.Equal(t, "LOBBY-1", started.LobbyCode)
	assert.True(t, at.Equal(*started.StartTime))

	_, err = env.matches.StartMatch(ctx, real.ID, StartMatchInput{})
	assert.ErrorIs(t, err, ErrMatchNotStartable)
}

func TestListMatches(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	view, _ := env.bracketWith(t, 5, models.PrizePool{})

	all, err := env.matches.ListMatches(ctx, view.Tournament.ID, repositories.ListMatchesFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 7)

	round := 1
	first, err := env.matches.ListMatches(ctx, view.Tournament.ID, repositories.ListMatchesFilter{Round: &round})
	require.NoError(t, err)
	assert.Len(t, first, 4)

	completed := models.MatchCompleted
	done, err := env.matches.ListMatches(ctx, view.Tournament.ID, repositories.ListMatchesFilter{Status: &completed})
	require.NoError(t, err)
	assert.Len(t, done, 3)

	_, err = env.matches.ListMatches(ctx, 404, repositories.ListMatchesFilter{})
	assert.ErrorIs(t, err, ErrTournamentNotFound)
}

func TestMatchMutationsRejectedAfterCancellation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	view, players := env.bracketWith(t, 4, models.PrizePool{})
	semi := roundMatches(view, 1)[0]

	_, err := env.tournaments.UpdateTournamentStatus(ctx, view.Tournament.ID, models.TournamentCancelled)
	require.NoError(t, err)

	_, err = env.matches.SubmitResult(ctx, SubmitResultInput{MatchID: semi.ID, ParticipantID: players[0].ID, Score: 1})
	assert.ErrorIs(t, err, ErrTournamentNotActive)
}

func TestSubmitResult_ConcurrentSubmissionsReachPendingVerification(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	for i := 0; i < 20; i++ {
		view, players := env.bracketWith(t, 2, models.PrizePool{})
		final := roundMatches(view, 1)[0]

		var wg sync.WaitGroup
		errs := make([]error, len(players))
		for j, p := range players {
			wg.Add(1)
			go func(j, participantID int) {
				defer wg.Done()
				_, errs[j] = env.matches.SubmitResult(ctx, SubmitResultInput{MatchID: final.ID, ParticipantID: participantID, Score: j + 1})
			}(j, p.ID)
		}
		wg.Wait()

		for _, err := range errs {
			require.NoError(t, err)
		}
		got := env.match(t, final.ID)
		assert.Len(t, got.Results, 2)
		assert.Equal(t, models.MatchPendingVerification, got.Status)
	}
}
