package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBracketGenerated(t *testing.T) {
	var tournament Tournament
	assert.False(t, tournament.BracketGenerated())

	tournament.Bracket = &Bracket{Size: 4, Rounds: []BracketRound{{Round: 1, Name: "Semifinal", MatchIDs: []int{1, 2}}}}
	assert.True(t, tournament.BracketGenerated())

	c := tournament.Clone()
	c.Bracket.Rounds[0].MatchIDs[0] = 99
	assert.Equal(t, 1, tournament.Bracket.Rounds[0].MatchIDs[0])
}
