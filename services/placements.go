package services

import (
	"sort"

	"github.com/Dosada05/bracket-engine/brackets"
	"github.com/Dosada05/bracket-engine/models"
)

// ComputePlacements derives final placements for every seeded participant. The champion places
// first; everyone else places by the round of their recorded loss, deeper rounds placing better.
// Participants with neither a loss nor the title get no placement.
func ComputePlacements(participants []*models.Participant, championID *int, totalRounds int) map[int]int {
	placements := make(map[int]int, len(participants))
	for _, p := range participants {
		if p.Seed == nil {
			continue
		}
		if championID != nil && p.ID == *championID {
			placements[p.ID] = 1
			continue
		}
		if r := p.EliminationRound(); r > 0 {
			if place := brackets.EliminationPlacement(r, totalRounds); place > 0 {
				placements[p.ID] = place
			}
		}
	}
	return placements
}

// DistributePrizes turns placements into prize amounts. k participants sharing placement p split
// the tiers p..p+k-1 evenly, stopping short of the next placement actually awarded.
func DistributePrizes(pool models.PrizePool, placements map[int]int) map[int]float64 {
	prizes := make(map[int]float64, len(placements))
	if len(pool.Distribution) == 0 {
		for id := range placements {
			prizes[id] = 0
		}
		return prizes
	}

	byPlacement := make(map[int][]int)
	for id, place := range placements {
		byPlacement[place] = append(byPlacement[place], id)
	}
	awarded := make([]int, 0, len(byPlacement))
	for place := range byPlacement {
		awarded = append(awarded, place)
	}
	sort.Ints(awarded)

	for i, place := range awarded {
		ids := byPlacement[place]
		last := place + len(ids) - 1
		if i+1 < len(awarded) && awarded[i+1] <= last {
			last = awarded[i+1] - 1
		}

		var sum float64
		for tier := place; tier <= last; tier++ {
			sum += tierAmount(pool, tier)
		}
		share := roundToCents(sum / float64(len(ids)))
		for _, id := range ids {
			prizes[id] = share
		}
	}
	return prizes
}

func tierAmount(pool models.PrizePool, placement int) float64 {
	share, ok := pool.Distribution[placement]
	if !ok {
		return 0
	}
	if share.Type == models.PrizeSharePercentage {
		return pool.Total * share.Value / 100
	}
	return share.Value
}

func validatePrizePool(pool models.PrizePool) error {
	if pool.Total < 0 {
		return ErrTournamentInvalidPrizePool
	}
	var percent float64
	for place, share := range pool.Distribution {
		if place < 1 || share.Value < 0 {
			return ErrTournamentInvalidPrizePool
		}
		switch share.Type {
		case models.PrizeSharePercentage:
			percent += share.Value
		case models.PrizeShareFixed:
		default:
			return ErrTournamentInvalidPrizePool
		}
	}
	if percent > 100 {
		return ErrTournamentInvalidPrizePool
	}
	return nil
}
