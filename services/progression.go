package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Dosada05/bracket-engine/models"
	"github.com/Dosada05/bracket-engine/repositories"
)

const (
	walkoverNote       = "walkover: opponent slot vacated"
	doubleForfeitNote  = "cancelled: both slots vacated"
	cancelledFinalNote = "tournament completed without a champion"
)

// progression moves winners up the bracket and finalizes the tournament. It always runs inside
// the caller's transaction; matches are locked in increasing round order.
type progression struct {
	tournamentRepo  repositories.TournamentRepository
	participantRepo repositories.ParticipantRepository
	matchRepo       repositories.MatchRepository
	logger          *slog.Logger
}

func newProgression(
	tournamentRepo repositories.TournamentRepository,
	participantRepo repositories.ParticipantRepository,
	matchRepo repositories.MatchRepository,
	logger *slog.Logger,
) *progression {
	return &progression{
		tournamentRepo:  tournamentRepo,
		participantRepo: participantRepo,
		matchRepo:       matchRepo,
		logger:          loggerOrDefault(logger),
	}
}

// progressionRun collects what one transaction changed so events go out after commit.
type progressionRun struct {
	*progression
	ctx          context.Context
	exec         repositories.SQLExecutor
	now          time.Time
	tournamentID int
	totalRounds  int

	changed   map[int]*models.Match
	order     []int
	completed *models.Tournament
}

func (p *progression) begin(ctx context.Context, exec repositories.SQLExecutor, tournamentID, totalRounds int, now time.Time) *progressionRun {
	return &progressionRun{
		progression:  p,
		ctx:          ctx,
		exec:         exec,
		now:          now,
		tournamentID: tournamentID,
		totalRounds:  totalRounds,
		changed:      make(map[int]*models.Match),
	}
}

func (r *progressionRun) touch(m *models.Match) {
	if _, seen := r.changed[m.ID]; !seen {
		r.order = append(r.order, m.ID)
	}
	r.changed[m.ID] = m.Clone()
}

// ChangedMatches returns every match written during the run, in first-touch order.
func (r *progressionRun) ChangedMatches() []*models.Match {
	out := make([]*models.Match, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.changed[id])
	}
	return out
}

func (r *progressionRun) saveMatch(m *models.Match) error {
	if err := r.matchRepo.Update(r.ctx, r.exec, m); err != nil {
		return handleRepositoryError(err, "match")
	}
	r.touch(m)
	return nil
}

// OnMatchCompleted is called once per match entering completed, after it was saved.
func (r *progressionRun) OnMatchCompleted(m *models.Match) error {
	if m.WinnerID == nil || !m.HasPlayer(*m.WinnerID) {
		return r.integrityError(m, "completed match has no valid winner")
	}
	winnerID := *m.WinnerID
	loserID := m.OpponentOf(winnerID)
	isFinal := m.NextMatchID == nil

	var winnerScore, loserScore *int
	if res, ok := m.ResultFor(winnerID); ok {
		winnerScore = intPtr(res.Score)
	}
	if loserID != nil {
		if res, ok := m.ResultFor(*loserID); ok {
			loserScore = intPtr(res.Score)
		}
	}

	winner, err := r.participantRepo.GetByIDForUpdate(r.ctx, r.exec, winnerID)
	if err != nil {
		return handleRepositoryError(err, "participant")
	}
	winner.RecordMatch(models.MatchHistoryEntry{
		MatchID: m.ID, Round: m.Round, OpponentID: loserID, Result: models.OutcomeWin, Score: winnerScore,
	})
	if isFinal {
		winner.Status = models.ParticipantWinner
		winner.CurrentRound = m.Round
	} else {
		winner.Status = models.ParticipantActive
		winner.CurrentRound = m.Round + 1
	}
	if err := r.participantRepo.Update(r.ctx, r.exec, winner); err != nil {
		return handleRepositoryError(err, "participant")
	}

	if loserID != nil {
		if err := r.eliminate(*loserID, m, &winnerID, loserScore); err != nil {
			return err
		}
	}

	if isFinal {
		return r.finalize(&winnerID)
	}
	return r.advance(*m.NextMatchID, m.NextSlot, winnerID)
}

// OnMatchCancelled eliminates both players and vacates the downstream slot the winner would have taken.
func (r *progressionRun) OnMatchCancelled(m *models.Match) error {
	for _, slot := range []int{1, 2} {
		playerID := m.SlotPlayer(slot)
		if playerID == nil {
			continue
		}
		var score *int
		if res, ok := m.ResultFor(*playerID); ok {
			score = intPtr(res.Score)
		}
		if err := r.eliminate(*playerID, m, m.OpponentOf(*playerID), score); err != nil {
			return err
		}
	}
	if m.NextMatchID == nil {
		return r.finalize(nil)
	}
	return r.vacate(*m.NextMatchID, m.NextSlot)
}

func (r *progressionRun) eliminate(participantID int, m *models.Match, opponentID *int, score *int) error {
	p, err := r.participantRepo.GetByIDForUpdate(r.ctx, r.exec, participantID)
	if err != nil {
		return handleRepositoryError(err, "participant")
	}
	p.RecordMatch(models.MatchHistoryEntry{
		MatchID: m.ID, Round: m.Round, OpponentID: opponentID, Result: models.OutcomeLoss, Score: score,
	})
	p.Status = models.ParticipantEliminated
	p.CurrentRound = m.Round
	if err := r.participantRepo.Update(r.ctx, r.exec, p); err != nil {
		return handleRepositoryError(err, "participant")
	}
	return nil
}

func (r *progressionRun) advance(nextID, slot, winnerID int) error {
	next, err := r.matchRepo.GetByIDForUpdate(r.ctx, r.exec, nextID)
	if err != nil {
		return handleRepositoryError(err, "match")
	}
	if next.IsTerminal() || next.SlotVacated(slot) {
		return r.integrityError(next, fmt.Sprintf("slot %d is closed for participant %d", slot, winnerID))
	}
	if occupant := next.SlotPlayer(slot); occupant != nil {
		if *occupant == winnerID {
			return nil
		}
		return r.integrityError(next, fmt.Sprintf("slot %d already holds participant %d, cannot seat %d", slot, *occupant, winnerID))
	}

	next.SetSlotPlayer(slot, winnerID)
	if next.SlotVacated(3 - slot) {
		return r.completeWalkover(next, winnerID)
	}
	return r.saveMatch(next)
}

func (r *progressionRun) vacate(nextID, slot int) error {
	next, err := r.matchRepo.GetByIDForUpdate(r.ctx, r.exec, nextID)
	if err != nil {
		return handleRepositoryError(err, "match")
	}
	if next.IsTerminal() || next.SlotPlayer(slot) != nil || next.SlotVacated(slot) {
		return r.integrityError(next, fmt.Sprintf("cannot vacate slot %d", slot))
	}

	next.VacateSlot(slot)
	other := 3 - slot
	switch {
	case next.SlotVacated(other):
		next.Status = models.MatchCancelled
		next.CompletedAt = timePtr(r.now)
		next.AdminNotes = doubleForfeitNote
		if err := r.saveMatch(next); err != nil {
			return err
		}
		if next.NextMatchID == nil {
			return r.finalize(nil)
		}
		return r.vacate(*next.NextMatchID, next.NextSlot)
	case next.SlotPlayer(other) != nil:
		return r.completeWalkover(next, *next.SlotPlayer(other))
	default:
		return r.saveMatch(next)
	}
}

func (r *progressionRun) completeWalkover(m *models.Match, winnerID int) error {
	m.WinnerID = intPtr(winnerID)
	m.Status = models.MatchCompleted
	m.CompletedAt = timePtr(r.now)
	m.AdminNotes = walkoverNote
	if err := r.saveMatch(m); err != nil {
		return err
	}
	return r.OnMatchCompleted(m)
}

// finalize completes the tournament, assigning placements and prizes. championID is nil when the
// final itself was cancelled.
func (r *progressionRun) finalize(championID *int) error {
	tournament, err := r.tournamentRepo.GetByIDForUpdate(r.ctx, r.exec, r.tournamentID)
	if err != nil {
		return handleRepositoryError(err, "tournament")
	}

	participants, err := r.participantRepo.ListByTournament(r.ctx, r.exec, r.tournamentID, nil)
	if err != nil {
		return handleRepositoryError(err, "participant")
	}

	placements := ComputePlacements(participants, championID, r.totalRounds)
	prizes := DistributePrizes(tournament.PrizePool, placements)

	for _, p := range participants {
		place, ok := placements[p.ID]
		if !ok {
			continue
		}
		p.FinalPlacement = intPtr(place)
		p.PrizeWon = prizes[p.ID]
		if p.PrizeWon > 0 {
			p.PrizeStatus = models.PrizePending
		} else {
			p.PrizeStatus = models.PrizeNone
		}
		if championID != nil && p.ID == *championID {
			p.Status = models.ParticipantWinner
		}
		if err := r.participantRepo.Update(r.ctx, r.exec, p); err != nil {
			return handleRepositoryError(err, "participant")
		}
	}

	tournament.Status = models.TournamentCompleted
	tournament.WinnerParticipantID = championID
	if err := r.tournamentRepo.Update(r.ctx, r.exec, tournament); err != nil {
		return handleRepositoryError(err, "tournament")
	}

	if championID == nil {
		r.logger.Warn(cancelledFinalNote, slog.Int("tournament_id", r.tournamentID))
	} else {
		r.logger.Info("tournament completed",
			slog.Int("tournament_id", r.tournamentID),
			slog.Int("champion_participant_id", *championID))
	}
	r.completed = tournament
	return nil
}

func (r *progressionRun) integrityError(m *models.Match, detail string) error {
	r.logger.Error("bracket integrity violation",
		slog.String("alert", "integrity"),
		slog.Int("tournament_id", m.TournamentID),
		slog.Int("match_id", m.ID),
		slog.Int("round", m.Round),
		slog.String("detail", detail))
	return fmt.Errorf("%w: match %d: %s", ErrSlotConflict, m.ID, detail)
}
