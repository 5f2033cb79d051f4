package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Dosada05/bracket-engine/brackets"
	"github.com/Dosada05/bracket-engine/models"
	"github.com/Dosada05/bracket-engine/repositories"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateBracket_CountsAndByes(t *testing.T) {
	for _, n := range []int{2, 3, 5, 6, 8, 11} {
		env := newTestEnv(t)
		view, _ := env.bracketWith(t, n, models.PrizePool{})

		size := 1
		for size < n {
			size *= 2
		}
		assert.Len(t, view.Matches(), size-1, "n=%d", n)
		assert.Equal(t, size, view.Bracket.Size)
		assert.Equal(t, models.TournamentInProgress, view.Tournament.Status)

		byes := 0
		for _, m := range roundMatches(view, 1) {
			if m.IsBye {
				byes++
				assert.Equal(t, models.MatchCompleted, m.Status)
				require.NotNil(t, m.WinnerID)
				assert.Empty(t, m.Results, "byes need no submissions")
			}
		}
		assert.Equal(t, size-n, byes, "n=%d", n)
	}
}

func TestGenerateBracket_TwoPlayersIsAFinal(t *testing.T) {
	env := newTestEnv(t)
	view, players := env.bracketWith(t, 2, models.PrizePool{})

	require.Len(t, view.Rounds, 1)
	assert.Equal(t, "Final", view.Rounds[0].Name)
	final := view.Rounds[0].Matches[0]
	assert.Nil(t, final.NextMatchID)

	env.play(t, final.ID, players[1].ID)
	tournament, err := env.tournaments.GetTournament(context.Background(), view.Tournament.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TournamentCompleted, tournament.Status)
	require.NotNil(t, tournament.WinnerParticipantID)
	assert.Equal(t, players[1].ID, *tournament.WinnerParticipantID)
}

func TestGenerateBracket_SeedsAndRoundNames(t *testing.T) {
	env := newTestEnv(t)
	view, players := env.bracketWith(t, 8, models.PrizePool{})

	names := make([]string, 0, len(view.Rounds))
	for _, r := range view.Rounds {
		names = append(names, r.Name)
	}
	assert.Equal(t, []string{"Quarterfinal", "Semifinal", "Final"}, names)

	for i, p := range players {
		got := env.participant(t, p.ID)
		require.NotNil(t, got.Seed)
		assert.Equal(t, i+1, *got.Seed, "seeds follow registration order")
		assert.Equal(t, models.ParticipantActive, got.Status)
		assert.Equal(t, 1, got.CurrentRound)
	}

	first := roundMatches(view, 1)
	require.Len(t, first, 4)
	assert.Equal(t, players[0].ID, *first[0].Player1ID)
	assert.Equal(t, players[7].ID, *first[0].Player2ID)
}

func TestGenerateBracket_SecondCallFails(t *testing.T) {
	env := newTestEnv(t)
	view, _ := env.bracketWith(t, 4, models.PrizePool{})
	before := env.bracket(t, view.Tournament.ID)

	_, err := env.brackets.GenerateBracket(context.Background(), view.Tournament.ID)
	assert.ErrorIs(t, err, ErrBracketAlreadyGenerated)
	assert.ErrorIs(t, err, ErrInvalidState)

	after := env.bracket(t, view.Tournament.ID)
	assert.Equal(t, before.Bracket, after.Bracket)
	assert.Len(t, after.Matches(), 3)
	assert.Equal(t, 1, env.events.count(brackets.EventBracketGenerated))
}

func TestGenerateBracket_InsufficientParticipants(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	tournament := env.createOpenTournament(t, 8, 25, models.PrizePool{})

	// Three registrations, only one paid.
	for userID := 1; userID <= 3; userID++ {
		p, err := env.participants.Register(ctx, tournament.ID, userID)
		require.NoError(t, err)
		assert.Equal(t, models.PaymentPending, p.PaymentStatus)
		if userID == 1 {
			_, err = env.participants.MarkPaid(ctx, p.ID)
			require.NoError(t, err)
		}
	}

	_, err := env.brackets.GenerateBracket(ctx, tournament.ID)
	assert.ErrorIs(t, err, ErrInsufficientParticipants)

	// Nothing was written.
	got, err := env.tournaments.GetTournament(ctx, tournament.ID)
	require.NoError(t, err)
	assert.Nil(t, got.Bracket)
	matches, err := env.matches.ListMatches(ctx, tournament.ID, repositories.ListMatchesFilter{})
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestGenerateBracket_OnlyPaidParticipantsAreSeeded(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	tournament := env.createOpenTournament(t, 8, 10, models.PrizePool{})

	var unpaidID int
	for userID := 1; userID <= 4; userID++ {
		p, err := env.participants.Register(ctx, tournament.ID, userID)
		require.NoError(t, err)
		if userID == 2 {
			unpaidID = p.ID
			continue
		}
		_, err = env.participants.MarkPaid(ctx, p.ID)
		require.NoError(t, err)
	}

	view, err := env.brackets.GenerateBracket(ctx, tournament.ID)
	require.NoError(t, err)
	assert.Len(t, view.Matches(), 3)
	for _, m := range view.Matches() {
		assert.False(t, m.HasPlayer(unpaidID))
	}
	assert.Nil(t, env.participant(t, unpaidID).Seed)
}

func TestGenerateBracket_Errors(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.brackets.GenerateBracket(ctx, 404)
	assert.ErrorIs(t, err, ErrTournamentNotFound)

	tournament := env.createOpenTournament(t, 4, 0, models.PrizePool{})
	_, err = env.tournaments.UpdateTournamentStatus(ctx, tournament.ID, models.TournamentCancelled)
	require.NoError(t, err)
	_, err = env.brackets.GenerateBracket(ctx, tournament.ID)
	assert.ErrorIs(t, err, ErrTournamentNotActive)
}

func TestGetBracket(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.brackets.GetBracket(ctx, 404)
	assert.ErrorIs(t, err, ErrTournamentNotFound)

	tournament := env.createOpenTournament(t, 4, 0, models.PrizePool{})
	_, err = env.brackets.GetBracket(ctx, tournament.ID)
	assert.ErrorIs(t, err, ErrBracketNotGenerated)

	env.registerPaid(t, tournament, 3)
	_, err = env.brackets.GenerateBracket(ctx, tournament.ID)
	require.NoError(t, err)

	view, err := env.brackets.GetBracket(ctx, tournament.ID)
	require.NoError(t, err)
	require.Len(t, view.Rounds, 2)
	assert.Equal(t, "Semifinal", view.Rounds[0].Name)
	assert.Len(t, view.Rounds[0].Matches, 2)
	assert.Equal(t, "Final", view.Rounds[1].Name)
	assert.Len(t, view.Rounds[1].Matches, 1)

	// The bye winner is already waiting in the final.
	final := view.Rounds[1].Matches[0]
	require.NotNil(t, final.Player1ID)
	assert.Nil(t, final.Player2ID)
}

// Five paid players: three byes, one real round-1 match, then play to a champion.
func TestEndToEnd_FivePlayers(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	pool := models.PrizePool{
		Total: 1000,
		Distribution: map[int]models.PrizeShare{
			1: {Type: models.PrizeSharePercentage, Value: 50},
			2: {Type: models.PrizeSharePercentage, Value: 30},
			3: {Type: models.PrizeShareFixed, Value: 100},
		},
	}
	view, players := env.bracketWith(t, 5, pool)
	tournamentID := view.Tournament.ID

	require.Len(t, view.Rounds, 3)
	round1 := roundMatches(view, 1)
	require.Len(t, round1, 4)

	var real *models.Match
	byeWinners := map[int]bool{}
	for _, m := range round1 {
		if m.IsBye {
			byeWinners[*m.WinnerID] = true
			continue
		}
		require.Nil(t, real, "exactly one real round-1 match")
		real = m
	}
	require.NotNil(t, real)
	assert.Equal(t, map[int]bool{players[0].ID: true, players[1].ID: true, players[2].ID: true}, byeWinners)

	// Seed 4 beats seed 5 with a higher score; the admin verifies.
	submitted := env.submitBoth(t, real.ID, players[3].ID)
	assert.Equal(t, models.MatchPendingVerification, submitted.Status)
	verified, err := env.matches.VerifyResult(ctx, real.ID, 1, "checked screenshots")
	require.NoError(t, err)
	assert.Equal(t, models.MatchCompleted, verified.Status)
	assert.Equal(t, players[3].ID, *verified.WinnerID)

	view = env.bracket(t, tournamentID)
	seated := map[int]bool{}
	for _, m := range roundMatches(view, 2) {
		require.True(t, m.BothSlotsFilled())
		seated[*m.Player1ID] = true
		seated[*m.Player2ID] = true
	}
	assert.Equal(t, map[int]bool{
		players[0].ID: true, players[1].ID: true, players[2].ID: true, players[3].ID: true,
	}, seated)

	// Top seed wins out.
	semis := roundMatches(view, 2)
	for _, m := range semis {
		winner := *m.Player1ID
		if m.HasPlayer(players[0].ID) {
			winner = players[0].ID
		}
		env.play(t, m.ID, winner)
	}
	final := roundMatches(env.bracket(t, tournamentID), 3)[0]
	require.True(t, final.BothSlotsFilled())
	env.play(t, final.ID, players[0].ID)

	tournament, err := env.tournaments.GetTournament(ctx, tournamentID)
	require.NoError(t, err)
	assert.Equal(t, models.TournamentCompleted, tournament.Status)
	require.NotNil(t, tournament.WinnerParticipantID)
	assert.Equal(t, players[0].ID, *tournament.WinnerParticipantID)

	champions := 0
	for _, p := range players {
		got := env.participant(t, p.ID)
		require.NotNil(t, got.FinalPlacement, "participant %d", p.ID)
		if *got.FinalPlacement == 1 {
			champions++
			assert.Equal(t, players[0].ID, got.ID)
			assert.Equal(t, models.ParticipantWinner, got.Status)
			assert.InDelta(t, 500, got.PrizeWon, 0.001)
			assert.Equal(t, models.PrizePending, got.PrizeStatus)
		}
	}
	assert.Equal(t, 1, champions)
	assert.Equal(t, 5, *env.participant(t, players[4].ID).FinalPlacement)
	assert.Equal(t, models.PrizeNone, env.participant(t, players[4].ID).PrizeStatus)
	assert.Equal(t, 1, env.events.count(brackets.EventTournamentComplete))
}

func TestGenerateBracket_ConcurrentCallsGenerateOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	tournament := env.createOpenTournament(t, 6, 0, models.PrizePool{})
	env.registerPaid(t, tournament, 6)

	const callers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		rejected  int
		other     []error
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.brackets.GenerateBracket(ctx, tournament.ID)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, ErrBracketAlreadyGenerated):
				rejected++
			default:
				other = append(other, err)
			}
		}()
	}
	wg.Wait()

	assert.Empty(t, other)
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, callers-1, rejected)
	assert.Equal(t, 1, env.events.count(brackets.EventBracketGenerated))

	matches, err := env.matches.ListMatches(ctx, tournament.ID, repositories.ListMatchesFilter{})
	require.NoError(t, err)
	assert.Len(t, matches, 7)
}

func TestGenerateBracket_SeedsFollowRegistrationTime(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	tournament := env.createOpenTournament(t, 4, 0, models.PrizePool{})
	base := time.Date(2026, time.April, 1, 9, 0, 0, 0, time.UTC)

	// User 1 registers first by id but last by time.
	registeredAt := map[int]time.Time{1: base.Add(3 * time.Hour), 2: base.Add(time.Hour), 3: base.Add(2 * time.Hour)}
	ids := make(map[int]int, len(registeredAt))
	for userID := 1; userID <= 3; userID++ {
		at := registeredAt[userID]
		env.store.SetClock(func() time.Time { return at })
		p, err := env.participants.Register(ctx, tournament.ID, userID)
		require.NoError(t, err)
		ids[userID] = p.ID
	}

	_, err := env.brackets.GenerateBracket(ctx, tournament.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, *env.participant(t, ids[2]).Seed)
	assert.Equal(t, 2, *env.participant(t, ids[3]).Seed)
	assert.Equal(t, 3, *env.participant(t, ids[1]).Seed)
}
