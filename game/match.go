// game/match.go
package game

import (
	"context"
	"time"
)

// Status of a match. Active -> Finished happens exactly once.
type Status string

const (
	StatusActive   Status = "active"
	StatusFinished Status = "finished"
)

// MoveKind labels an entry of the move log.
type MoveKind string

const (
	MovePlayChar       MoveKind = "PLAY_CHAR"
	MovePlaceTrap      MoveKind = "PLACE_TRAP"
	MoveTimeoutForfeit MoveKind = "TIMEOUT_FORFEIT"
)

// Move is an append-only log entry.
type Move struct {
	MatchID   string         `json:"match_id"`
	Player    int            `json:"player"`
	Kind      MoveKind       `json:"move_type"`
	Payload   map[string]int `json:"payload"`
	CreatedAt time.Time      `json:"created_at"`
}

// Journal records moves made while a match is held under its lock. It is
// committed together with the match.
type Journal interface {
	AppendMove(ctx context.Context, mv Move) error
}

// Hand is the per-player part of a match: the frozen hand and the cards
// already spent from it.
type Hand struct {
	Chars     []int `json:"hand_chars"`
	Traps     []int `json:"hand_traps"`
	UsedChars IDSet `json:"used_chars"`
	UsedTraps IDSet `json:"used_traps"`
}

// UnusedChars returns hand characters not yet played, in hand order.
func (h *Hand) UnusedChars() []int {
	return unused(h.Chars, h.UsedChars)
}

// UnusedTraps returns hand traps not yet placed, in hand order.
func (h *Hand) UnusedTraps() []int {
	return unused(h.Traps, h.UsedTraps)
}

func unused(hand []int, used IDSet) []int {
	out := make([]int, 0, len(hand))
	for _, id := range hand {
		if !used.Contains(id) {
			out = append(out, id)
		}
	}
	return out
}

// Match is the authoritative state of one game.
type Match struct {
	ID           string
	Player1ID    int64
	Player2ID    int64
	Status       Status
	TurnPlayer   int
	TurnDeadline *time.Time
	// Board is nil when absent or malformed in storage; Initialize resets it.
	Board     *Board
	Hands     [2]Hand
	Winner    int
	CreatedAt time.Time

	dirty bool
}

// Hand returns the hand of player 1 or 2.
func (m *Match) Hand(player int) *Hand {
	if !validPlayer(player) {
		return nil
	}
	return &m.Hands[player-1]
}

// PlayerNumber maps a user id to its seat, or 0 for outsiders.
func (m *Match) PlayerNumber(userID int64) int {
	switch userID {
	case m.Player1ID:
		return 1
	case m.Player2ID:
		return 2
	}
	return 0
}

// PlayerID maps a seat to its user id.
func (m *Match) PlayerID(player int) int64 {
	if player == 2 {
		return m.Player2ID
	}
	return m.Player1ID
}

func (m *Match) Active() bool {
	return m.Status == StatusActive
}

// Changed reports whether an engine operation modified the match since it
// was loaded.
func (m *Match) Changed() bool {
	return m.dirty
}

// MarkClean is called by stores after loading or saving.
func (m *Match) MarkClean() {
	m.dirty = false
}

func (m *Match) touch() {
	m.dirty = true
}

// Clone returns a deep copy, keeping the change flag.
func (m *Match) Clone() *Match {
	out := *m
	out.Board = m.Board.Clone()
	if m.TurnDeadline != nil {
		d := *m.TurnDeadline
		out.TurnDeadline = &d
	}
	for i, h := range m.Hands {
		out.Hands[i] = Hand{
			Chars:     append([]int(nil), h.Chars...),
			Traps:     append([]int(nil), h.Traps...),
			UsedChars: h.UsedChars.Clone(),
			UsedTraps: h.UsedTraps.Clone(),
		}
	}
	return &out
}

func otherPlayer(p int) int {
	if p == 1 {
		return 2
	}
	return 1
}
