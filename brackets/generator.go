package brackets

import (
	"context"
	"errors"

	"github.com/Dosada05/bracket-engine/models"
)

var ErrNotEnoughParticipants = errors.New("not enough participants to generate a bracket (minimum 2)")

type GenerateBracketParams struct {
	Tournament   *models.Tournament
	Participants []*models.Participant
}

type BracketGenerator interface {
	GenerateBracket(ctx context.Context, params GenerateBracketParams) ([]*BracketMatch, error)

	GetName() string
}

// NewGenerator returns the generator for a tournament format.
func NewGenerator(format models.TournamentFormat) (BracketGenerator, bool) {
	switch format {
	case models.FormatSingleElimination, "":
		return NewSingleEliminationGenerator(), true
	default:
		return nil, false
	}
}
