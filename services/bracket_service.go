package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Dosada05/bracket-engine/brackets"
	"github.com/Dosada05/bracket-engine/models"
	"github.com/Dosada05/bracket-engine/repositories"
	"golang.org/x/sync/errgroup"
)

// RoundMatches groups the matches of one bracket round.
type RoundMatches struct {
	Round   int             `json:"round"`
	Name    string          `json:"name"`
	Matches []*models.Match `json:"matches"`
}

// BracketView is the bracket tree together with the current state of every match in it.
type BracketView struct {
	Tournament *models.Tournament `json:"tournament"`
	Bracket    *models.Bracket    `json:"bracket"`
	Rounds     []RoundMatches     `json:"rounds"`
}

// Matches flattens the view in round order.
func (v *BracketView) Matches() []*models.Match {
	var out []*models.Match
	for _, r := range v.Rounds {
		out = append(out, r.Matches...)
	}
	return out
}

type BracketService interface {
	GenerateBracket(ctx context.Context, tournamentID int) (*BracketView, error)
	GetBracket(ctx context.Context, tournamentID int) (*BracketView, error)
}

type bracketService struct {
	txManager       repositories.TxManager
	tournamentRepo  repositories.TournamentRepository
	participantRepo repositories.ParticipantRepository
	matchRepo       repositories.MatchRepository
	progression     *progression
	publisher       EventPublisher
	logger          *slog.Logger
	now             func() time.Time
}

func NewBracketService(
	txManager repositories.TxManager,
	tournamentRepo repositories.TournamentRepository,
	participantRepo repositories.ParticipantRepository,
	matchRepo repositories.MatchRepository,
	publisher EventPublisher,
	logger *slog.Logger,
) BracketService {
	logger = loggerOrDefault(logger)
	return &bracketService{
		txManager:       txManager,
		tournamentRepo:  tournamentRepo,
		participantRepo: participantRepo,
		matchRepo:       matchRepo,
		progression:     newProgression(tournamentRepo, participantRepo, matchRepo, logger),
		publisher:       publisherOrNoop(publisher),
		logger:          logger,
		now:             utcNow,
	}
}

// GenerateBracket seeds the paid participants, creates every match of the bracket and advances
// byes into round 2. The tournament row stays locked for the whole transaction, so a concurrent
// second call waits and then fails with ErrBracketAlreadyGenerated.
func (s *bracketService) GenerateBracket(ctx context.Context, tournamentID int) (*BracketView, error) {
	var view *BracketView

	err := s.txManager.WithinTransaction(ctx, func(ctx context.Context, exec repositories.SQLExecutor) error {
		tournament, err := s.tournamentRepo.GetByIDForUpdate(ctx, exec, tournamentID)
		if err != nil {
			return handleRepositoryError(err, "tournament")
		}
		if tournament.BracketGenerated() {
			return ErrBracketAlreadyGenerated
		}
		if tournament.Status == models.TournamentCompleted || tournament.Status == models.TournamentCancelled {
			return ErrTournamentNotActive
		}

		generator, ok := brackets.NewGenerator(tournament.Format)
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnsupportedFormat, tournament.Format)
		}

		paid := models.PaymentPaid
		participants, err := s.participantRepo.ListByTournament(ctx, exec, tournamentID, &paid)
		if err != nil {
			return handleRepositoryError(err, "participant")
		}

		planned, err := generator.GenerateBracket(ctx, brackets.GenerateBracketParams{
			Tournament:   tournament,
			Participants: participants,
		})
		if err != nil {
			if errors.Is(err, brackets.ErrNotEnoughParticipants) {
				return fmt.Errorf("%w: tournament %d has %d", ErrInsufficientParticipants, tournamentID, len(participants))
			}
			return fmt.Errorf("failed to generate bracket structure for tournament %d: %w", tournamentID, err)
		}

		if err := s.assignSeeds(ctx, exec, participants); err != nil {
			return err
		}

		now := s.now()
		size := brackets.BracketSize(len(participants))
		totalRounds := brackets.RoundCount(size)

		created, err := s.createMatches(ctx, exec, tournamentID, planned, now)
		if err != nil {
			return err
		}

		bracket := &models.Bracket{Size: size, GeneratedAt: now, Rounds: make([]models.BracketRound, totalRounds)}
		for r := 1; r <= totalRounds; r++ {
			bracket.Rounds[r-1] = models.BracketRound{Round: r, Name: brackets.RoundName(r, totalRounds), MatchIDs: []int{}}
		}
		for _, bm := range planned {
			bracket.Rounds[bm.Round-1].MatchIDs = append(bracket.Rounds[bm.Round-1].MatchIDs, created[bm.UID].ID)
		}

		run := s.progression.begin(ctx, exec, tournamentID, totalRounds, now)
		for _, bm := range planned {
			if !bm.IsBye {
				continue
			}
			if err := run.OnMatchCompleted(created[bm.UID]); err != nil {
				return fmt.Errorf("failed to advance bye in match %d: %w", created[bm.UID].ID, err)
			}
		}

		status := tournament.Status
		if status == models.TournamentRegistrationOpen || status == models.TournamentRegistrationClosed {
			status = models.TournamentInProgress
		}
		if err := s.tournamentRepo.SetBracket(ctx, exec, tournamentID, bracket, status); err != nil {
			return handleRepositoryError(err, "tournament")
		}

		view, err = s.loadView(ctx, exec, tournamentID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("bracket generated",
		slog.Int("tournament_id", tournamentID),
		slog.Int("size", view.Bracket.Size),
		slog.Int("rounds", view.Bracket.TotalRounds()))
	s.publisher.Publish(tournamentID, brackets.EventBracketGenerated, view)
	return view, nil
}

func (s *bracketService) assignSeeds(ctx context.Context, exec repositories.SQLExecutor, participants []*models.Participant) error {
	for i, p := range brackets.SortBySeed(participants) {
		p.Seed = intPtr(i + 1)
		p.Status = models.ParticipantActive
		p.CurrentRound = 1
		if err := s.participantRepo.Update(ctx, exec, p); err != nil {
			return handleRepositoryError(err, "participant")
		}
	}
	return nil
}

// createMatches persists the planned matches, then links each to its downstream slot once every
// id is known.
func (s *bracketService) createMatches(ctx context.Context, exec repositories.SQLExecutor, tournamentID int, planned []*brackets.BracketMatch, now time.Time) (map[string]*models.Match, error) {
	created := make(map[string]*models.Match, len(planned))

	for _, bm := range planned {
		match := &models.Match{
			TournamentID: tournamentID,
			Round:        bm.Round,
			RoundName:    bm.RoundName,
			OrderInRound: bm.OrderInRound,
			Player1ID:    bm.Participant1ID,
			Player2ID:    bm.Participant2ID,
			Status:       models.MatchScheduled,
			Results:      []models.MatchResult{},
			IsBye:        bm.IsBye,
		}
		if bm.IsBye {
			match.WinnerID = intPtr(*bm.ByeParticipantID)
			match.Status = models.MatchCompleted
			match.CompletedAt = timePtr(now)
		}
		if err := s.matchRepo.Create(ctx, exec, match); err != nil {
			return nil, handleRepositoryError(err, "match")
		}
		created[bm.UID] = match
	}

	for _, bm := range planned {
		if bm.NextMatchUID == nil {
			continue
		}
		next, ok := created[*bm.NextMatchUID]
		if !ok {
			return nil, fmt.Errorf("bracket link from %s points to unknown match %s", bm.UID, *bm.NextMatchUID)
		}
		match := created[bm.UID]
		match.NextMatchID = intPtr(next.ID)
		match.NextSlot = bm.NextSlot
		if err := s.matchRepo.UpdateNextMatchInfo(ctx, exec, match.ID, match.NextMatchID, match.NextSlot); err != nil {
			return nil, handleRepositoryError(err, "match")
		}
	}
	return created, nil
}

// GetBracket loads the tournament and its matches concurrently.
func (s *bracketService) GetBracket(ctx context.Context, tournamentID int) (*BracketView, error) {
	var (
		tournament *models.Tournament
		matches    []*models.Match
	)

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		t, err := s.tournamentRepo.GetByID(gCtx, nil, tournamentID)
		if err != nil {
			return handleRepositoryError(err, "tournament")
		}
		tournament = t
		return nil
	})

	g.Go(func() error {
		m, err := s.matchRepo.ListByTournament(gCtx, nil, tournamentID, repositories.ListMatchesFilter{})
		if err != nil {
			s.logger.Error("failed to load bracket matches", slog.Int("tournament_id", tournamentID), slog.Any("error", err))
			return handleRepositoryError(err, "match")
		}
		matches = m
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if !tournament.BracketGenerated() {
		return nil, ErrBracketNotGenerated
	}
	return buildView(tournament, matches), nil
}

func (s *bracketService) loadView(ctx context.Context, exec repositories.SQLExecutor, tournamentID int) (*BracketView, error) {
	tournament, err := s.tournamentRepo.GetByID(ctx, exec, tournamentID)
	if err != nil {
		return nil, handleRepositoryError(err, "tournament")
	}
	matches, err := s.matchRepo.ListByTournament(ctx, exec, tournamentID, repositories.ListMatchesFilter{})
	if err != nil {
		return nil, handleRepositoryError(err, "match")
	}
	return buildView(tournament, matches), nil
}

func buildView(tournament *models.Tournament, matches []*models.Match) *BracketView {
	byID := make(map[int]*models.Match, len(matches))
	for _, m := range matches {
		byID[m.ID] = m
	}
	view := &BracketView{Tournament: tournament, Bracket: tournament.Bracket}
	for _, r := range tournament.Bracket.Rounds {
		rm := RoundMatches{Round: r.Round, Name: r.Name, Matches: make([]*models.Match, 0, len(r.MatchIDs))}
		for _, id := range r.MatchIDs {
			if m, ok := byID[id]; ok {
				rm.Matches = append(rm.Matches, m)
			}
		}
		view.Rounds = append(view.Rounds, rm)
	}
	return view
}
