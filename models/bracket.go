package models

import "time"

// Bracket is the materialized round -> match-id tree of a single-elimination tournament.
type Bracket struct {
	Size        int            `json:"size"` // power of two the field was padded to
	Rounds      []BracketRound `json:"rounds"`
	GeneratedAt time.Time      `json:"generated_at"`
}

type BracketRound struct {
	Round    int    `json:"round"`
	Name     string `json:"name"`
	MatchIDs []int  `json:"match_ids"`
}

func (b *Bracket) TotalRounds() int {
	if b == nil {
		return 0
	}
	return len(b.Rounds)
}

func (b *Bracket) Clone() *Bracket {
	if b == nil {
		return nil
	}
	c := &Bracket{Size: b.Size, GeneratedAt: b.GeneratedAt, Rounds: make([]BracketRound, len(b.Rounds))}
	for i, r := range b.Rounds {
		c.Rounds[i] = BracketRound{Round: r.Round, Name: r.Name, MatchIDs: append([]int(nil), r.MatchIDs...)}
	}
	return c
}

func cloneInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneTime(p *time.Time) *time.Time {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
