// game/clock.go
package game

import "time"

// DefaultTurnBudget is how long a player has to place a character.
const DefaultTurnBudget = 45 * time.Second

// TurnClock tracks the single per-match turn deadline.
type TurnClock struct {
	Budget time.Duration
	Now    func() time.Time
}

func NewTurnClock(budget time.Duration) *TurnClock {
	if budget <= 0 {
		budget = DefaultTurnBudget
	}
	return &TurnClock{Budget: budget, Now: time.Now}
}

// Reset starts a fresh turn budget from now.
func (c *TurnClock) Reset(m *Match) {
	d := c.Now().Add(c.Budget)
	m.TurnDeadline = &d
	m.touch()
}

// Expired reports whether an active match ran past its deadline.
func (c *TurnClock) Expired(m *Match) bool {
	if !m.Active() || m.TurnDeadline == nil {
		return false
	}
	return c.Now().After(*m.TurnDeadline)
}

// SecondsLeft is the whole seconds remaining, clamped at zero. It is nil
// once the match is over or has no deadline.
func (c *TurnClock) SecondsLeft(m *Match) *int {
	if !m.Active() || m.TurnDeadline == nil {
		return nil
	}
	left := int(m.TurnDeadline.Sub(c.Now()) / time.Second)
	if left < 0 {
		left = 0
	}
	return &left
}
