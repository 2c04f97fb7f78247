// game/cards.go
package game

import "context"

// Rarity of a catalog card.
type Rarity string

const (
	RarityCommon    Rarity = "common"
	RarityRare      Rarity = "rare"
	RarityEpic      Rarity = "epic"
	RarityLegendary Rarity = "legendary"
)

// TrapType names the side a trap weakens.
type TrapType string

const (
	TrapMinusUp    TrapType = "MINUS_UP"
	TrapMinusDown  TrapType = "MINUS_DOWN"
	TrapMinusLeft  TrapType = "MINUS_LEFT"
	TrapMinusRight TrapType = "MINUS_RIGHT"
)

// Direction maps the trap type to the stat it reduces.
func (t TrapType) Direction() (Direction, bool) {
	switch t {
	case TrapMinusUp:
		return Up, true
	case TrapMinusDown:
		return Down, true
	case TrapMinusLeft:
		return Left, true
	case TrapMinusRight:
		return Right, true
	}
	return 0, false
}

// CharacterCard is a catalog character definition.
type CharacterCard struct {
	ID     int    `json:"id"`
	Name   string `json:"name"`
	Stats
	Rarity Rarity `json:"rarity"`
	Image  string `json:"image"`
}

// TrapCard is a catalog trap definition.
type TrapCard struct {
	ID       int      `json:"id"`
	Name     string   `json:"name"`
	TrapType TrapType `json:"trap_type"`
	Value    int      `json:"value"`
	Rarity   Rarity   `json:"rarity"`
	Image    string   `json:"image"`
}

// Catalog looks up card definitions. Unknown ids return an error wrapping
// ErrNotFound.
type Catalog interface {
	Character(ctx context.Context, id int) (CharacterCard, error)
	Trap(ctx context.Context, id int) (TrapCard, error)
}
