package brackets

import (
	"context"
	"fmt"
	"sort"

	"github.com/Dosada05/bracket-engine/models"
)

// BracketMatch is one node of a generated bracket before it is persisted.
type BracketMatch struct {
	UID          string
	Round        int
	RoundName    string
	OrderInRound int

	Participant1ID *int
	Participant2ID *int

	// NextMatchUID/NextSlot identify the downstream slot reserved for this match's winner.
	NextMatchUID *string
	NextSlot     int

	// IsPlaceholder marks matches whose players come from upstream winners.
	IsPlaceholder bool

	IsBye            bool
	ByeParticipantID *int
}

type SingleEliminationGenerator struct{}

func NewSingleEliminationGenerator() BracketGenerator {
	return &SingleEliminationGenerator{}
}

func (g *SingleEliminationGenerator) GetName() string {
	return "SingleElimination"
}

// GenerateBracket lays out every match of the bracket: round 1 pairings (byes included) and
// empty placeholders for all later rounds, each linked to the slot its winner feeds.
func (g *SingleEliminationGenerator) GenerateBracket(ctx context.Context, params GenerateBracketParams) ([]*BracketMatch, error) {
	seeded := SortBySeed(params.Participants)
	n := len(seeded)
	if n < 2 {
		return nil, fmt.Errorf("%w: found %d", ErrNotEnoughParticipants, n)
	}

	size := BracketSize(n)
	numRounds := RoundCount(size)
	order := standardSeedOrder(size)

	allMatches := make([]*BracketMatch, 0, size-1)
	rounds := make([][]*BracketMatch, numRounds+1)

	// Round 1: seed i meets seed size+1-i; seeds above n are byes.
	for i := 0; i < size; i += 2 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		bm := &BracketMatch{
			UID:          matchUID(1, i/2+1),
			Round:        1,
			RoundName:    RoundName(1, numRounds),
			OrderInRound: i/2 + 1,
		}
		p1 := seedParticipantID(seeded, order[i])
		p2 := seedParticipantID(seeded, order[i+1])

		switch {
		case p1 != nil && p2 != nil:
			bm.Participant1ID, bm.Participant2ID = p1, p2
		case p1 != nil:
			bm.IsBye = true
			bm.ByeParticipantID = p1
			bm.Participant1ID = p1
		case p2 != nil:
			bm.IsBye = true
			bm.ByeParticipantID = p2
			bm.Participant1ID = p2
		default:
			// Unreachable while size is the smallest power of two >= n.
			return nil, fmt.Errorf("two byes met in round 1, match %d", i/2+1)
		}
		rounds[1] = append(rounds[1], bm)
	}

	for r := 2; r <= numRounds; r++ {
		matchesInRound := size >> uint(r)
		for m := 1; m <= matchesInRound; m++ {
			rounds[r] = append(rounds[r], &BracketMatch{
				UID:           matchUID(r, m),
				Round:         r,
				RoundName:     RoundName(r, numRounds),
				OrderInRound:  m,
				IsPlaceholder: true,
			})
		}
	}

	for r := 1; r < numRounds; r++ {
		for idx, bm := range rounds[r] {
			next := rounds[r+1][idx/2]
			uid := next.UID
			bm.NextMatchUID = &uid
			bm.NextSlot = idx%2 + 1
		}
	}

	for r := 1; r <= numRounds; r++ {
		allMatches = append(allMatches, rounds[r]...)
	}

	sort.SliceStable(allMatches, func(i, j int) bool {
		if allMatches[i].Round != allMatches[j].Round {
			return allMatches[i].Round < allMatches[j].Round
		}
		return allMatches[i].OrderInRound < allMatches[j].OrderInRound
	})

	return allMatches, nil
}

// SortBySeed returns the participants in seed order: registration time ascending, id as tiebreak.
func SortBySeed(participants []*models.Participant) []*models.Participant {
	seeded := make([]*models.Participant, 0, len(participants))
	for _, p := range participants {
		if p != nil {
			seeded = append(seeded, p)
		}
	}
	sort.SliceStable(seeded, func(i, j int) bool {
		if !seeded[i].CreatedAt.Equal(seeded[j].CreatedAt) {
			return seeded[i].CreatedAt.Before(seeded[j].CreatedAt)
		}
		return seeded[i].ID < seeded[j].ID
	})
	return seeded
}

// BracketSize is the smallest power of two >= n.
func BracketSize(n int) int {
	size := 1
	for size < n {
		size <<= 1
	}
	return size
}

func RoundCount(size int) int {
	rounds := 0
	for (1 << uint(rounds)) < size {
		rounds++
	}
	return rounds
}

// standardSeedOrder lists seed numbers in bracket position order, e.g. 1,8,4,5,2,7,3,6 for 8.
// Adjacent positions are paired, so seed i always meets seed size+1-i and the top seeds sit
// in opposite halves.
func standardSeedOrder(size int) []int {
	order := []int{1}
	for len(order) < size {
		n := len(order) * 2
		next := make([]int, 0, n)
		for _, s := range order {
			next = append(next, s, n+1-s)
		}
		order = next
	}
	return order
}

func seedParticipantID(seeded []*models.Participant, seed int) *int {
	if seed < 1 || seed > len(seeded) {
		return nil
	}
	id := seeded[seed-1].ID
	return &id
}

func matchUID(round, order int) string {
	return fmt.Sprintf("R%dM%d", round, order)
}
