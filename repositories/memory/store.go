// Package memory is an in-process implementation of the repositories interfaces. It backs the
// test suites and the STORAGE_DRIVER=memory mode.
package memory

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"time"

	"github.com/Dosada05/bracket-engine/models"
	"github.com/Dosada05/bracket-engine/repositories"
)

var errRawSQL = errors.New("memory store: raw SQL is not supported")

// Store keeps every record behind one mutex. A transaction holds the mutex for its whole
// duration and restores a snapshot if its callback fails.
type Store struct {
	mu sync.Mutex

	tournaments  map[int]*models.Tournament
	participants map[int]*models.Participant
	matches      map[int]*models.Match

	nextTournamentID  int
	nextParticipantID int
	nextMatchID       int

	now func() time.Time
}

func NewStore() *Store {
	return &Store{
		tournaments:  make(map[int]*models.Tournament),
		participants: make(map[int]*models.Participant),
		matches:      make(map[int]*models.Match),
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// SetClock replaces the time source used for created/updated stamps.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *Store) Tournaments() repositories.TournamentRepository {
	return &tournamentRepository{s: s}
}

func (s *Store) Participants() repositories.ParticipantRepository {
	return &participantRepository{s: s}
}

func (s *Store) Matches() repositories.MatchRepository {
	return &matchRepository{s: s}
}

func (s *Store) TxManager() repositories.TxManager {
	return s
}

// txExecutor marks calls made inside WithinTransaction; the store lock is already held.
type txExecutor struct {
	store *Store
}

func (t *txExecutor) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	return nil, errRawSQL
}

func (t *txExecutor) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	return nil, errRawSQL
}

func (t *txExecutor) QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row {
	return nil
}

func (s *Store) WithinTransaction(ctx context.Context, fn func(ctx context.Context, exec repositories.SQLExecutor) error) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.snapshot()
	defer func() {
		if p := recover(); p != nil {
			s.restore(snap)
			panic(p)
		}
		if err != nil {
			s.restore(snap)
		}
	}()

	return fn(ctx, &txExecutor{store: s})
}

// acquire takes the store lock unless exec belongs to a transaction already holding it.
func (s *Store) acquire(exec repositories.SQLExecutor) func() {
	if tx, ok := exec.(*txExecutor); ok && tx.store == s {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

type snapshot struct {
	tournaments  map[int]*models.Tournament
	participants map[int]*models.Participant
	matches      map[int]*models.Match

	nextTournamentID  int
	nextParticipantID int
	nextMatchID       int
}

func (s *Store) snapshot() snapshot {
	snap := snapshot{
		tournaments:       make(map[int]*models.Tournament, len(s.tournaments)),
		participants:      make(map[int]*models.Participant, len(s.participants)),
		matches:           make(map[int]*models.Match, len(s.matches)),
		nextTournamentID:  s.nextTournamentID,
		nextParticipantID: s.nextParticipantID,
		nextMatchID:       s.nextMatchID,
	}
	for id, t := range s.tournaments {
		snap.tournaments[id] = t.Clone()
	}
	for id, p := range s.participants {
		snap.participants[id] = p.Clone()
	}
	for id, m := range s.matches {
		snap.matches[id] = m.Clone()
	}
	return snap
}

func (s *Store) restore(snap snapshot) {
	s.tournaments = snap.tournaments
	s.participants = snap.participants
	s.matches = snap.matches
	s.nextTournamentID = snap.nextTournamentID
	s.nextParticipantID = snap.nextParticipantID
	s.nextMatchID = snap.nextMatchID
}
