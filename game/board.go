// game/board.go
package game

import (
	"encoding/json"
	"fmt"
)

const (
	BoardWidth = 3
	BoardSize  = BoardWidth * BoardWidth
)

// Direction is one of the four orthogonal sides of a card.
type Direction int

const (
	Up Direction = iota
	Down
	Left
	Right
)

var directions = [...]Direction{Up, Down, Left, Right}

func (d Direction) String() string {
	switch d {
	case Up:
		return "up"
	case Down:
		return "down"
	case Left:
		return "left"
	case Right:
		return "right"
	}
	return fmt.Sprintf("direction(%d)", int(d))
}

// Opposite returns the side facing back from a neighbour.
func (d Direction) Opposite() Direction {
	switch d {
	case Up:
		return Down
	case Down:
		return Up
	case Left:
		return Right
	default:
		return Left
	}
}

// Stats are the four directional strengths of a character.
type Stats struct {
	Up    int `json:"up"`
	Down  int `json:"down"`
	Left  int `json:"left"`
	Right int `json:"right"`
}

func (s Stats) Get(d Direction) int {
	switch d {
	case Up:
		return s.Up
	case Down:
		return s.Down
	case Left:
		return s.Left
	default:
		return s.Right
	}
}

// Reduce lowers one side by v, never below zero.
func (s *Stats) Reduce(d Direction, v int) {
	p := &s.Right
	switch d {
	case Up:
		p = &s.Up
	case Down:
		p = &s.Down
	case Left:
		p = &s.Left
	}
	*p -= v
	if *p < 0 {
		*p = 0
	}
}

func (s Stats) valid() bool {
	return s.Up >= 0 && s.Down >= 0 && s.Left >= 0 && s.Right >= 0
}

// Character is a character card placed on the board, with stats already
// adjusted by any trap it triggered.
type Character struct {
	CardID int    `json:"card_id"`
	Name   string `json:"name"`
	Owner  int    `json:"owner"`
	Stats
	Rarity Rarity `json:"rarity"`
	Image  string `json:"image,omitempty"`
}

// Trap is a trap card sitting on a board cell.
type Trap struct {
	TrapID      int      `json:"trap_id"`
	Name        string   `json:"name"`
	Type        TrapType `json:"type"`
	Value       int      `json:"value"`
	Owner       int      `json:"owner"`
	Armed       bool     `json:"armed"`
	Revealed    bool     `json:"revealed"`
	TriggeredBy int      `json:"triggered_by,omitempty"`
	Rarity      Rarity   `json:"rarity"`
	Image       string   `json:"image,omitempty"`
}

// SlotKind tags the four shapes a cell can take.
type SlotKind int

const (
	SlotEmpty SlotKind = iota
	SlotCharacterOnly
	SlotTrapOnly
	SlotCharacterAndTrap
)

func (k SlotKind) String() string {
	switch k {
	case SlotCharacterOnly:
		return "character"
	case SlotTrapOnly:
		return "trap"
	case SlotCharacterAndTrap:
		return "character+trap"
	}
	return "empty"
}

// Slot is one board cell.
type Slot struct {
	Char *Character `json:"char"`
	Trap *Trap      `json:"trap"`
}

func (s Slot) Kind() SlotKind {
	switch {
	case s.Char != nil && s.Trap != nil:
		return SlotCharacterAndTrap
	case s.Char != nil:
		return SlotCharacterOnly
	case s.Trap != nil:
		return SlotTrapOnly
	}
	return SlotEmpty
}

func (s Slot) validate(pos int) error {
	if c := s.Char; c != nil {
		if !validPlayer(c.Owner) {
			return fmt.Errorf("slot %d: character owner %d", pos, c.Owner)
		}
		if !c.Stats.valid() {
			return fmt.Errorf("slot %d: negative character stats", pos)
		}
	}
	if t := s.Trap; t != nil {
		if !validPlayer(t.Owner) {
			return fmt.Errorf("slot %d: trap owner %d", pos, t.Owner)
		}
		if _, ok := t.Type.Direction(); !ok {
			return fmt.Errorf("slot %d: trap type %q", pos, t.Type)
		}
		if t.Value < 0 {
			return fmt.Errorf("slot %d: negative trap value", pos)
		}
	}
	return nil
}

// Board is the 3x3 grid in row-major order.
type Board [BoardSize]Slot

// ParseBoard decodes a stored board and rejects anything that is not
// exactly nine well-formed slots.
func ParseBoard(data []byte) (*Board, error) {
	var slots []Slot
	if err := json.Unmarshal(data, &slots); err != nil {
		return nil, fmt.Errorf("decode board: %w", err)
	}
	if len(slots) != BoardSize {
		return nil, fmt.Errorf("board has %d slots, want %d", len(slots), BoardSize)
	}
	var b Board
	copy(b[:], slots)
	if err := b.Validate(); err != nil {
		return nil, err
	}
	return &b, nil
}

// Validate checks every slot against the fixed schema.
func (b *Board) Validate() error {
	for i, s := range b {
		if err := s.validate(i); err != nil {
			return err
		}
	}
	return nil
}

// Full reports whether every cell holds a character.
func (b *Board) Full() bool {
	for _, s := range b {
		if s.Char == nil {
			return false
		}
	}
	return true
}

// Counts returns how many cells each player owns.
func (b *Board) Counts() (p1, p2 int) {
	for _, s := range b {
		if s.Char == nil {
			continue
		}
		switch s.Char.Owner {
		case 1:
			p1++
		case 2:
			p2++
		}
	}
	return p1, p2
}

// Clone returns a deep copy.
func (b *Board) Clone() *Board {
	if b == nil {
		return nil
	}
	var out Board
	for i, s := range b {
		if s.Char != nil {
			c := *s.Char
			out[i].Char = &c
		}
		if s.Trap != nil {
			t := *s.Trap
			out[i].Trap = &t
		}
	}
	return &out
}

// Neighbor returns the cell adjacent to pos in direction d. Edges do not
// wrap around.
func Neighbor(pos int, d Direction) (int, bool) {
	if !ValidPosition(pos) {
		return 0, false
	}
	row, col := pos/BoardWidth, pos%BoardWidth
	switch d {
	case Up:
		row--
	case Down:
		row++
	case Left:
		col--
	case Right:
		col++
	}
	if row < 0 || row >= BoardWidth || col < 0 || col >= BoardWidth {
		return 0, false
	}
	return row*BoardWidth + col, true
}

func ValidPosition(pos int) bool {
	return pos >= 0 && pos < BoardSize
}

func validPlayer(p int) bool {
	return p == 1 || p == 2
}
