package models

import "time"

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentRefunded PaymentStatus = "refunded"
)

type ParticipantStatus string

const (
	ParticipantRegistered   ParticipantStatus = "registered"
	ParticipantActive       ParticipantStatus = "active"
	ParticipantEliminated   ParticipantStatus = "eliminated"
	ParticipantWinner       ParticipantStatus = "winner"
	ParticipantDisqualified ParticipantStatus = "disqualified"
)

type MatchOutcome string

const (
	OutcomeWin     MatchOutcome = "win"
	OutcomeLoss    MatchOutcome = "loss"
	OutcomePending MatchOutcome = "pending"
)

type PrizeStatus string

const (
	PrizeNone    PrizeStatus = "none"
	PrizePending PrizeStatus = "pending"
	PrizePaid    PrizeStatus = "paid"
)

// MatchHistoryEntry records one bracket match from the participant's point of view.
type MatchHistoryEntry struct {
	MatchID    int          `json:"match_id"`
	Round      int          `json:"round"`
	OpponentID *int         `json:"opponent_id,omitempty"` // nil for byes and walkovers
	Result     MatchOutcome `json:"result"`
	Score      *int         `json:"score,omitempty"`
}

type Participant struct {
	ID             int                 `json:"id"`
	TournamentID   int                 `json:"tournament_id"`
	UserID         int                 `json:"user_id"`
	PaymentStatus  PaymentStatus       `json:"payment_status"`
	Status         ParticipantStatus   `json:"status"`
	Seed           *int                `json:"seed,omitempty"`
	CurrentRound   int                 `json:"current_round"`
	MatchHistory   []MatchHistoryEntry `json:"match_history"`
	FinalPlacement *int                `json:"final_placement,omitempty"`
	PrizeWon       float64             `json:"prize_won"`
	PrizeStatus    PrizeStatus         `json:"prize_status"`
	PaidAt         *time.Time          `json:"paid_at,omitempty"`
	CreatedAt      time.Time           `json:"created_at"`
	UpdatedAt      time.Time           `json:"updated_at"`
}

// RecordMatch appends the entry, replacing an earlier entry for the same match.
func (p *Participant) RecordMatch(entry MatchHistoryEntry) {
	for i := range p.MatchHistory {
		if p.MatchHistory[i].MatchID == entry.MatchID {
			p.MatchHistory[i] = entry
			return
		}
	}
	p.MatchHistory = append(p.MatchHistory, entry)
}

// EliminationRound is the round of the participant's recorded loss, or 0 if none.
func (p *Participant) EliminationRound() int {
	for _, h := range p.MatchHistory {
		if h.Result == OutcomeLoss {
			return h.Round
		}
	}
	return 0
}

func (p *Participant) Clone() *Participant {
	if p == nil {
		return nil
	}
	c := *p
	c.Seed = cloneInt(p.Seed)
	c.FinalPlacement = cloneInt(p.FinalPlacement)
	c.PaidAt = cloneTime(p.PaidAt)
	if p.MatchHistory != nil {
		c.MatchHistory = make([]MatchHistoryEntry, len(p.MatchHistory))
		for i, h := range p.MatchHistory {
			h.OpponentID = cloneInt(h.OpponentID)
			h.Score = cloneInt(h.Score)
			c.MatchHistory[i] = h
		}
	}
	return &c
}
