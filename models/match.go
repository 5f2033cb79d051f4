package models

import "time"

type MatchStatus string

const (
	MatchScheduled           MatchStatus = "scheduled"
	MatchInProgress          MatchStatus = "in-progress"
	MatchPendingVerification MatchStatus = "pending_verification"
	MatchCompleted           MatchStatus = "completed"
	MatchDisputed            MatchStatus = "disputed"
	MatchCancelled           MatchStatus = "cancelled"
)

type DisputeStatus string

const (
	DisputeOpen     DisputeStatus = "open"
	DisputeResolved DisputeStatus = "resolved"
)

// MatchResult is one player's self-reported score. A match holds at most one per player.
type MatchResult struct {
	PlayerID    int       `json:"player_id"`
	Score       int       `json:"score"`
	Screenshot  string    `json:"screenshot,omitempty"`
	SubmittedAt time.Time `json:"submitted_at"`
	Verified    bool      `json:"verified"`
}

type Dispute struct {
	ReportedBy int           `json:"reported_by"` // participant id
	Reason     string        `json:"reason"`
	Evidence   []string      `json:"evidence"`
	Status     DisputeStatus `json:"status"`
	Resolution string        `json:"resolution,omitempty"`
	ResolvedBy *int          `json:"resolved_by,omitempty"`
	ReportedAt time.Time     `json:"reported_at"`
	ResolvedAt *time.Time    `json:"resolved_at,omitempty"`
}

type Match struct {
	ID           int           `json:"id"`
	TournamentID int           `json:"tournament_id"`
	Round        int           `json:"round"`
	RoundName    string        `json:"round_name"`
	OrderInRound int           `json:"order_in_round"`
	Player1ID    *int          `json:"player1_id,omitempty"`
	Player2ID    *int          `json:"player2_id,omitempty"`
	WinnerID     *int          `json:"winner_id,omitempty"`
	Status       MatchStatus   `json:"status"`
	Results      []MatchResult `json:"results"`
	Dispute      *Dispute      `json:"dispute,omitempty"`
	StartTime    *time.Time    `json:"start_time,omitempty"`
	LobbyCode    string        `json:"lobby_code,omitempty"`
	AdminNotes   string        `json:"admin_notes,omitempty"`
	IsBye        bool          `json:"is_bye"`
	NextMatchID  *int          `json:"next_match_id,omitempty"`
	NextSlot     int           `json:"next_slot,omitempty"` // 1 or 2 in NextMatchID; 0 for the final
	Slot1Vacated bool          `json:"slot1_vacated,omitempty"`
	Slot2Vacated bool          `json:"slot2_vacated,omitempty"`
	CompletedAt  *time.Time    `json:"completed_at,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

func (m *Match) HasPlayer(participantID int) bool {
	return (m.Player1ID != nil && *m.Player1ID == participantID) ||
		(m.Player2ID != nil && *m.Player2ID == participantID)
}

// OpponentOf returns the other slot's occupant, nil for byes and unfilled slots.
func (m *Match) OpponentOf(participantID int) *int {
	switch {
	case m.Player1ID != nil && *m.Player1ID == participantID:
		return cloneInt(m.Player2ID)
	case m.Player2ID != nil && *m.Player2ID == participantID:
		return cloneInt(m.Player1ID)
	}
	return nil
}

// BothSlotsFilled reports whether the match pairs two live players.
func (m *Match) BothSlotsFilled() bool {
	return m.Player1ID != nil && m.Player2ID != nil
}

func (m *Match) IsTerminal() bool {
	return m.Status == MatchCompleted || m.Status == MatchCancelled
}

func (m *Match) SlotPlayer(slot int) *int {
	if slot == 1 {
		return m.Player1ID
	}
	return m.Player2ID
}

func (m *Match) SetSlotPlayer(slot int, participantID int) {
	id := participantID
	if slot == 1 {
		m.Player1ID = &id
	} else {
		m.Player2ID = &id
	}
}

func (m *Match) SlotVacated(slot int) bool {
	if slot == 1 {
		return m.Slot1Vacated
	}
	return m.Slot2Vacated
}

func (m *Match) VacateSlot(slot int) {
	if slot == 1 {
		m.Slot1Vacated = true
	} else {
		m.Slot2Vacated = true
	}
}

// UpsertResult replaces the player's existing result or appends a new one.
func (m *Match) UpsertResult(r MatchResult) {
	for i := range m.Results {
		if m.Results[i].PlayerID == r.PlayerID {
			m.Results[i] = r
			return
		}
	}
	m.Results = append(m.Results, r)
}

func (m *Match) ResultFor(participantID int) (MatchResult, bool) {
	for _, r := range m.Results {
		if r.PlayerID == participantID {
			return r, true
		}
	}
	return MatchResult{}, false
}

// AllResultsSubmitted reports whether both live players have a result on file.
func (m *Match) AllResultsSubmitted() bool {
	if !m.BothSlotsFilled() {
		return false
	}
	_, ok1 := m.ResultFor(*m.Player1ID)
	_, ok2 := m.ResultFor(*m.Player2ID)
	return ok1 && ok2
}

func (m *Match) Clone() *Match {
	if m == nil {
		return nil
	}
	c := *m
	c.Player1ID = cloneInt(m.Player1ID)
	c.Player2ID = cloneInt(m.Player2ID)
	c.WinnerID = cloneInt(m.WinnerID)
	c.NextMatchID = cloneInt(m.NextMatchID)
	c.StartTime = cloneTime(m.StartTime)
	c.CompletedAt = cloneTime(m.CompletedAt)
	if m.Results != nil {
		c.Results = append([]MatchResult(nil), m.Results...)
	}
	if m.Dispute != nil {
		d := *m.Dispute
		d.Evidence = append([]string(nil), m.Dispute.Evidence...)
		d.ResolvedBy = cloneInt(m.Dispute.ResolvedBy)
		d.ResolvedAt = cloneTime(m.Dispute.ResolvedAt)
		c.Dispute = &d
	}
	return &c
}
