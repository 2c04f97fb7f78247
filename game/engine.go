// game/engine.go
package game

import (
	"context"
	"errors"
	"fmt"
)

// Engine applies the capture rules to one match at a time. Callers hold
// the match's lock for the duration of every call and persist the match
// and journal only when the call returns nil.
type Engine struct {
	catalog Catalog
	clock   *TurnClock
}

func NewEngine(catalog Catalog, clock *TurnClock) *Engine {
	if clock == nil {
		clock = NewTurnClock(DefaultTurnBudget)
	}
	return &Engine{catalog: catalog, clock: clock}
}

func (e *Engine) Clock() *TurnClock {
	return e.clock
}

// Initialize resets an absent or malformed board and starts the turn clock
// of an active match that has none. Repeated calls change nothing.
func (e *Engine) Initialize(m *Match) {
	if m.Board == nil {
		m.Board = &Board{}
		m.Status = StatusActive
		m.TurnPlayer = 1
		m.touch()
	}
	if m.Active() && m.TurnDeadline == nil {
		e.clock.Reset(m)
	}
}

// CheckTimeout forfeits the match for the player holding the turn once the
// deadline has passed. It reports whether the forfeit happened; a finished
// match is left untouched.
func (e *Engine) CheckTimeout(ctx context.Context, j Journal, m *Match) (bool, error) {
	e.Initialize(m)
	if !e.clock.Expired(m) {
		return false, nil
	}

	loser := m.TurnPlayer
	winner := otherPlayer(loser)
	m.Status = StatusFinished
	m.Winner = winner
	m.touch()

	err := j.AppendMove(ctx, Move{
		MatchID:   m.ID,
		Player:    loser,
		Kind:      MoveTimeoutForfeit,
		Payload:   map[string]int{"loser": loser, "winner": winner},
		CreatedAt: e.clock.Now(),
	})
	if err != nil {
		return false, fmt.Errorf("append forfeit move: %w", err)
	}
	return true, nil
}

// PlayCharacter places a character for the player holding the turn.
//
// A forfeit detected here still fails the call with ErrMatchNotActive, so
// callers that want the forfeit committed run CheckTimeout first.
func (e *Engine) PlayCharacter(ctx context.Context, j Journal, m *Match, player, cardID, pos int) error {
	if err := e.ensurePlayable(ctx, j, m, player); err != nil {
		return err
	}
	if player != m.TurnPlayer {
		return ErrNotYourTurn
	}
	if !ValidPosition(pos) {
		return ErrInvalidPosition
	}
	slot := &m.Board[pos]
	if slot.Char != nil {
		return ErrCellOccupied
	}
	hand := m.Hand(player)
	if hand.UsedChars.Contains(cardID) {
		return ErrCardUsed
	}

	card, err := e.catalog.Character(ctx, cardID)
	if err != nil {
		return lookupError(err, "character", cardID)
	}

	stats := card.Stats
	if t := slot.Trap; t != nil && t.Armed && t.Owner != player {
		if d, ok := t.Type.Direction(); ok {
			stats.Reduce(d, t.Value)
		}
		t.Armed = false
		t.Revealed = true
		t.TriggeredBy = player
	}

	slot.Char = &Character{
		CardID: card.ID,
		Name:   card.Name,
		Owner:  player,
		Stats:  stats,
		Rarity: card.Rarity,
		Image:  card.Image,
	}
	resolveCaptures(m.Board, pos)
	hand.UsedChars.Add(cardID)
	m.touch()

	err = j.AppendMove(ctx, Move{
		MatchID:   m.ID,
		Player:    player,
		Kind:      MovePlayChar,
		Payload:   map[string]int{"card_id": cardID, "pos": pos},
		CreatedAt: e.clock.Now(),
	})
	if err != nil {
		return fmt.Errorf("append play move: %w", err)
	}

	finishIfFull(m)
	if m.Active() {
		m.TurnPlayer = otherPlayer(m.TurnPlayer)
		e.clock.Reset(m)
	}
	return nil
}

// PlaceTrap arms a face-down trap. Only the player waiting for the
// opponent may do this, and it does not pass the turn.
func (e *Engine) PlaceTrap(ctx context.Context, j Journal, m *Match, player, trapID, pos int) error {
	if err := e.ensurePlayable(ctx, j, m, player); err != nil {
		return err
	}
	if player == m.TurnPlayer {
		return ErrTrapOnOwnTurn
	}
	if !ValidPosition(pos) {
		return ErrInvalidPosition
	}
	slot := &m.Board[pos]
	if slot.Trap != nil {
		return ErrTrapOccupied
	}
	hand := m.Hand(player)
	if hand.UsedTraps.Contains(trapID) {
		return ErrTrapUsed
	}

	card, err := e.catalog.Trap(ctx, trapID)
	if err != nil {
		return lookupError(err, "trap", trapID)
	}

	slot.Trap = &Trap{
		TrapID: card.ID,
		Name:   card.Name,
		Type:   card.TrapType,
		Value:  card.Value,
		Owner:  player,
		Armed:  true,
		Rarity: card.Rarity,
		Image:  card.Image,
	}
	hand.UsedTraps.Add(trapID)
	m.touch()

	err = j.AppendMove(ctx, Move{
		MatchID:   m.ID,
		Player:    player,
		Kind:      MovePlaceTrap,
		Payload:   map[string]int{"trap_id": trapID, "pos": pos},
		CreatedAt: e.clock.Now(),
	})
	if err != nil {
		return fmt.Errorf("append trap move: %w", err)
	}
	return nil
}

func (e *Engine) ensurePlayable(ctx context.Context, j Journal, m *Match, player int) error {
	if _, err := e.CheckTimeout(ctx, j, m); err != nil {
		return err
	}
	if !m.Active() {
		return ErrMatchNotActive
	}
	if !validPlayer(player) {
		return ErrNotParticipant
	}
	return nil
}

func lookupError(err error, kind string, id int) error {
	if errors.Is(err, ErrNotFound) {
		return &ValidationError{
			Code:    CodeNotFound,
			Message: fmt.Sprintf("%s %d not found", kind, id),
		}
	}
	return fmt.Errorf("load %s %d: %w", kind, id, err)
}
