// models/convert.go
package models

import (
	"encoding/json"
	"fmt"

	"gorm.io/datatypes"

	"github.com/wfunc/triad/game"
)

// ToDomain decodes a stored match. A malformed board is dropped rather than
// rejected so the engine can reset it; malformed id lists are errors.
func (r *Match) ToDomain() (*game.Match, error) {
	m := &game.Match{
		ID:           r.ID,
		Player1ID:    r.Player1ID,
		Player2ID:    r.Player2ID,
		Status:       game.Status(r.Status),
		TurnPlayer:   r.TurnPlayer,
		TurnDeadline: r.TurnDeadline,
		Winner:       r.Winner,
		CreatedAt:    r.CreatedAt,
	}
	if len(r.BoardState) > 0 {
		if b, err := game.ParseBoard(r.BoardState); err == nil {
			m.Board = b
		}
	}

	lists := []struct {
		raw  datatypes.JSON
		dest *[]int
	}{
		{r.HandCharsP1, &m.Hands[0].Chars},
		{r.HandTrapsP1, &m.Hands[0].Traps},
		{r.HandCharsP2, &m.Hands[1].Chars},
		{r.HandTrapsP2, &m.Hands[1].Traps},
	}
	for _, l := range lists {
		ids, err := decodeIDs(l.raw)
		if err != nil {
			return nil, fmt.Errorf("match %s: %w", r.ID, err)
		}
		*l.dest = ids
	}

	sets := []struct {
		raw  datatypes.JSON
		dest *game.IDSet
	}{
		{r.UsedCharsP1, &m.Hands[0].UsedChars},
		{r.UsedTrapsP1, &m.Hands[0].UsedTraps},
		{r.UsedCharsP2, &m.Hands[1].UsedChars},
		{r.UsedTrapsP2, &m.Hands[1].UsedTraps},
	}
	for _, s := range sets {
		ids, err := decodeIDs(s.raw)
		if err != nil {
			return nil, fmt.Errorf("match %s: %w", r.ID, err)
		}
		*s.dest = game.NewIDSet(ids...)
	}

	m.MarkClean()
	return m, nil
}

// MatchFromDomain encodes m. The board must satisfy the fixed schema.
func MatchFromDomain(m *game.Match) (*Match, error) {
	r := &Match{ID: m.ID, CreatedAt: m.CreatedAt}
	if err := r.Apply(m); err != nil {
		return nil, err
	}
	return r, nil
}

// Apply copies the mutable fields of m onto r.
func (r *Match) Apply(m *game.Match) error {
	r.Player1ID = m.Player1ID
	r.Player2ID = m.Player2ID
	r.Status = string(m.Status)
	r.TurnPlayer = m.TurnPlayer
	r.TurnDeadline = m.TurnDeadline
	r.Winner = m.Winner

	if m.Board != nil {
		if err := m.Board.Validate(); err != nil {
			return fmt.Errorf("match %s: %w", m.ID, err)
		}
		board, err := json.Marshal(m.Board)
		if err != nil {
			return err
		}
		r.BoardState = board
	} else {
		r.BoardState = datatypes.JSON("[]")
	}

	h1, h2 := &m.Hands[0], &m.Hands[1]
	r.HandCharsP1 = encodeIDs(h1.Chars)
	r.HandTrapsP1 = encodeIDs(h1.Traps)
	r.HandCharsP2 = encodeIDs(h2.Chars)
	r.HandTrapsP2 = encodeIDs(h2.Traps)
	r.UsedCharsP1 = encodeIDs(h1.UsedChars.IDs())
	r.UsedTrapsP1 = encodeIDs(h1.UsedTraps.IDs())
	r.UsedCharsP2 = encodeIDs(h2.UsedChars.IDs())
	r.UsedTrapsP2 = encodeIDs(h2.UsedTraps.IDs())
	return nil
}

// MoveFromDomain encodes a log entry.
func MoveFromDomain(mv game.Move) (*MatchMove, error) {
	payload, err := json.Marshal(mv.Payload)
	if err != nil {
		return nil, err
	}
	return &MatchMove{
		MatchID:   mv.MatchID,
		Player:    mv.Player,
		MoveType:  string(mv.Kind),
		Payload:   payload,
		CreatedAt: mv.CreatedAt,
	}, nil
}

func (r *MatchMove) ToDomain() (game.Move, error) {
	mv := game.Move{
		MatchID:   r.MatchID,
		Player:    r.Player,
		Kind:      game.MoveKind(r.MoveType),
		CreatedAt: r.CreatedAt,
	}
	if len(r.Payload) > 0 {
		if err := json.Unmarshal(r.Payload, &mv.Payload); err != nil {
			return game.Move{}, fmt.Errorf("move %d payload: %w", r.ID, err)
		}
	}
	return mv, nil
}

func (c *CharacterCard) ToDomain() game.CharacterCard {
	return game.CharacterCard{
		ID:     c.ID,
		Name:   c.Name,
		Stats:  game.Stats{Up: c.Up, Down: c.Down, Left: c.Left, Right: c.Right},
		Rarity: game.Rarity(c.Rarity),
		Image:  c.Image,
	}
}

func CharacterFromDomain(c game.CharacterCard) *CharacterCard {
	return &CharacterCard{
		ID:     c.ID,
		Name:   c.Name,
		Up:     c.Up,
		Down:   c.Down,
		Left:   c.Left,
		Right:  c.Right,
		Rarity: string(c.Rarity),
		Image:  c.Image,
	}
}

func (t *TrapCard) ToDomain() game.TrapCard {
	return game.TrapCard{
		ID:       t.ID,
		Name:     t.Name,
		TrapType: game.TrapType(t.TrapType),
		Value:    t.Value,
		Rarity:   game.Rarity(t.Rarity),
		Image:    t.Image,
	}
}

func TrapFromDomain(t game.TrapCard) *TrapCard {
	return &TrapCard{
		ID:       t.ID,
		Name:     t.Name,
		TrapType: string(t.TrapType),
		Value:    t.Value,
		Rarity:   string(t.Rarity),
		Image:    t.Image,
	}
}

func decodeIDs(raw datatypes.JSON) ([]int, error) {
	if len(raw) == 0 {
		return []int{}, nil
	}
	var ids []int
	if err := json.Unmarshal(raw, &ids); err != nil {
		return nil, fmt.Errorf("decode id list: %w", err)
	}
	if ids == nil {
		ids = []int{}
	}
	return ids, nil
}

func encodeIDs(ids []int) datatypes.JSON {
	if ids == nil {
		ids = []int{}
	}
	data, _ := json.Marshal(ids)
	return data
}
