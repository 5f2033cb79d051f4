package brackets

import "fmt"

// RoundName labels round r of totalRounds.
func RoundName(r, totalRounds int) string {
	switch r {
	case totalRounds:
		return "Final"
	case totalRounds - 1:
		return "Semifinal"
	case totalRounds - 2:
		return "Quarterfinal"
	}
	return fmt.Sprintf("Round of %d", 1<<uint(totalRounds-r+1))
}

// EliminationPlacement is the final placement of a participant knocked out in round r.
// Losers of the final place 2, semifinal losers 3, quarterfinal losers 5, and so on.
func EliminationPlacement(r, totalRounds int) int {
	if r <= 0 || r > totalRounds {
		return 0
	}
	return 1<<uint(totalRounds-r) + 1
}
