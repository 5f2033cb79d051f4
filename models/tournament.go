package models

import "time"

// TournamentStatus represents the lifecycle states of a tournament.
type TournamentStatus string

const (
	TournamentUpcoming           TournamentStatus = "upcoming"
	TournamentRegistrationOpen   TournamentStatus = "registration-open"
	TournamentRegistrationClosed TournamentStatus = "registration-closed"
	TournamentInProgress         TournamentStatus = "in-progress"
	TournamentCompleted          TournamentStatus = "completed"
	TournamentCancelled          TournamentStatus = "cancelled"
)

// TournamentFormat names the competition structure. Only single elimination has bracket mechanics.
type TournamentFormat string

const (
	FormatSingleElimination TournamentFormat = "single-elimination"
	FormatDoubleElimination TournamentFormat = "double-elimination"
	FormatRoundRobin        TournamentFormat = "round-robin"
	FormatBattleRoyale      TournamentFormat = "battle-royale"
)

type PrizeShareType string

const (
	PrizeShareFixed      PrizeShareType = "fixed"
	PrizeSharePercentage PrizeShareType = "percentage"
)

// PrizeShare is the payout for a single placement: either a fixed amount or a percentage of the pool total.
type PrizeShare struct {
	Type  PrizeShareType `json:"type"`
	Value float64        `json:"value"`
}

type PrizePool struct {
	Total        float64            `json:"total"`
	Currency     string             `json:"currency,omitempty"`
	Distribution map[int]PrizeShare `json:"distribution,omitempty"` // placement -> share
}

// Tournament представляет турнир.
type Tournament struct {
	ID                   int              `json:"id" db:"id"`
	Name                 string           `json:"name" db:"name"`
	Slug                 string           `json:"slug" db:"slug"`
	Format               TournamentFormat `json:"format" db:"format"`
	Status               TournamentStatus `json:"status" db:"status"`
	MaxPlayers           int              `json:"max_players" db:"max_players"`
	CurrentPlayers       int              `json:"current_players" db:"current_players"`
	EntryFee             float64          `json:"entry_fee" db:"entry_fee"`
	RegistrationDeadline time.Time        `json:"registration_deadline" db:"registration_deadline"`
	StartDate            *time.Time       `json:"start_date,omitempty" db:"start_date"`
	PrizePool            PrizePool        `json:"prize_pool" db:"prize_pool"`
	Bracket              *Bracket         `json:"bracket,omitempty" db:"bracket"`
	WinnerParticipantID  *int             `json:"winner_participant_id,omitempty" db:"winner_participant_id"`
	CreatedAt            time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt            time.Time        `json:"updated_at" db:"updated_at"`
}

// BracketGenerated reports whether the write-once bracket has been materialized.
func (t *Tournament) BracketGenerated() bool {
	return t.Bracket != nil
}

func (t *Tournament) Clone() *Tournament {
	if t == nil {
		return nil
	}
	c := *t
	c.StartDate = cloneTime(t.StartDate)
	c.WinnerParticipantID = cloneInt(t.WinnerParticipantID)
	if t.PrizePool.Distribution != nil {
		c.PrizePool.Distribution = make(map[int]PrizeShare, len(t.PrizePool.Distribution))
		for k, v := range t.PrizePool.Distribution {
			c.PrizePool.Distribution[k] = v
		}
	}
	c.Bracket = t.Bracket.Clone()
	return &c
}
