package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/Dosada05/bracket-engine/models"
	"github.com/Dosada05/bracket-engine/repositories"
	"github.com/Dosada05/bracket-engine/repositories/memory"
	"github.com/stretchr/testify/require"
)

type publishedEvent struct {
	TournamentID int
	Type         string
	Payload      interface{}
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (p *recordingPublisher) Publish(tournamentID int, eventType string, payload interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{TournamentID: tournamentID, Type: eventType, Payload: payload})
}

func (p *recordingPublisher) count(eventType string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, e := range p.events {
		if e.Type == eventType {
			n++
		}
	}
	return n
}

func (p *recordingPublisher) reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = nil
}

type testEnv struct {
	store        *memory.Store
	tournaments  TournamentService
	participants ParticipantService
	brackets     BracketService
	matches      MatchService
	disputes     DisputeService
	events       *recordingPublisher

	matchRepo       repositories.MatchRepository
	participantRepo repositories.ParticipantRepository
	tournamentRepo  repositories.TournamentRepository
}

// tickingClock advances one second per reading so registration stamps never tie.
type tickingClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *tickingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := memory.NewStore()
	clock := &tickingClock{now: time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)}
	store.SetClock(clock.Now)
	events := &recordingPublisher{}
	tx := store.TxManager()
	tr, pr, mr := store.Tournaments(), store.Participants(), store.Matches()

	return &testEnv{
		store:           store,
		tournaments:     NewTournamentService(tx, tr, pr, nil),
		participants:    NewParticipantService(tx, tr, pr, nil),
		brackets:        NewBracketService(tx, tr, pr, mr, events, nil),
		matches:         NewMatchService(tx, tr, pr, mr, events, nil),
		disputes:        NewDisputeService(tx, tr, pr, mr, events, nil),
		events:          events,
		matchRepo:       mr,
		participantRepo: pr,
		tournamentRepo:  tr,
	}
}

var tournamentSeq int

// createOpenTournament creates a tournament with registration open until tomorrow.
func (e *testEnv) createOpenTournament(t *testing.T, maxPlayers int, entryFee float64, pool models.PrizePool) *models.Tournament {
	t.Helper()
	tournamentSeq++
	open := models.TournamentRegistrationOpen
	tournament, err := e.tournaments.CreateTournament(context.Background(), CreateTournamentInput{
		Name:                 fmt.Sprintf("Spring Cup %d", tournamentSeq),
		Status:               &open,
		MaxPlayers:           maxPlayers,
		EntryFee:             entryFee,
		RegistrationDeadline: time.Now().UTC().Add(24 * time.Hour),
		PrizePool:            pool,
	})
	require.NoError(t, err)
	return tournament
}

// registerPaid registers users 1..n in order and marks each entry paid.
func (e *testEnv) registerPaid(t *testing.T, tournament *models.Tournament, n int) []*models.Participant {
	t.Helper()
	ctx := context.Background()
	out := make([]*models.Participant, 0, n)
	for userID := 1; userID <= n; userID++ {
		p, err := e.participants.Register(ctx, tournament.ID, userID)
		require.NoError(t, err)
		if p.PaymentStatus != models.PaymentPaid {
			p, err = e.participants.MarkPaid(ctx, p.ID)
			require.NoError(t, err)
		}
		out = append(out, p)
	}
	return out
}

// bracketWith builds a free tournament with n paid players and generates its bracket.
func (e *testEnv) bracketWith(t *testing.T, n int, pool models.PrizePool) (*BracketView, []*models.Participant) {
	t.Helper()
	tournament := e.createOpenTournament(t, n, 0, pool)
	players := e.registerPaid(t, tournament, n)
	view, err := e.brackets.GenerateBracket(context.Background(), tournament.ID)
	require.NoError(t, err)
	return view, players
}

func (e *testEnv) match(t *testing.T, id int) *models.Match {
	t.Helper()
	m, err := e.matches.GetMatch(context.Background(), id)
	require.NoError(t, err)
	return m
}

func (e *testEnv) participant(t *testing.T, id int) *models.Participant {
	t.Helper()
	p, err := e.participants.GetParticipant(context.Background(), id)
	require.NoError(t, err)
	return p
}

// submitBoth reports scores for both players, the winner scoring higher.
func (e *testEnv) submitBoth(t *testing.T, matchID, winnerID int) *models.Match {
	t.Helper()
	ctx := context.Background()
	m := e.match(t, matchID)
	loser := m.OpponentOf(winnerID)
	require.NotNil(t, loser, "participant %d is not seated in match %d", winnerID, matchID)

	_, err := e.matches.SubmitResult(ctx, SubmitResultInput{MatchID: matchID, ParticipantID: winnerID, Score: 3})
	require.NoError(t, err)
	m, err = e.matches.SubmitResult(ctx, SubmitResultInput{MatchID: matchID, ParticipantID: *loser, Score: 1})
	require.NoError(t, err)
	return m
}

// play runs a match through submission and verification.
func (e *testEnv) play(t *testing.T, matchID, winnerID int) *models.Match {
	t.Helper()
	e.submitBoth(t, matchID, winnerID)
	m, err := e.matches.VerifyResult(context.Background(), matchID, 999, "")
	require.NoError(t, err)
	return m
}

func roundMatches(view *BracketView, round int) []*models.Match {
	for _, r := range view.Rounds {
		if r.Round == round {
			return r.Matches
		}
	}
	return nil
}

func (e *testEnv) bracket(t *testing.T, tournamentID int) *BracketView {
	t.Helper()
	view, err := e.brackets.GetBracket(context.Background(), tournamentID)
	require.NoError(t, err)
	return view
}
