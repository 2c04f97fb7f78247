package matchmaking

import (
	"context"
	"errors"
	"fmt"

	"github.com/wfunc/triad/game"
)

// HandView is a player's frozen hand with card definitions in hand order.
type HandView struct {
	Characters  []game.CharacterCard `json:"characters"`
	Traps       []game.TrapCard      `json:"traps"`
	UsedChars   []int                `json:"used_chars"`
	UsedTraps   []int                `json:"used_traps"`
	UnusedChars []int                `json:"unused_chars"`
	UnusedTraps []int                `json:"unused_traps"`
}

// Hand returns userID's hand in matchID. Ids missing from the catalog are
// skipped.
func (s *Service) Hand(ctx context.Context, matchID string, userID int64) (*HandView, error) {
	m, err := s.store.LoadMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}
	player := m.PlayerNumber(userID)
	if player == 0 {
		return nil, ErrForbidden
	}
	h := m.Hand(player)

	v := &HandView{
		Characters:  make([]game.CharacterCard, 0, len(h.Chars)),
		Traps:       make([]game.TrapCard, 0, len(h.Traps)),
		UsedChars:   h.UsedChars.IDs(),
		UsedTraps:   h.UsedTraps.IDs(),
		UnusedChars: h.UnusedChars(),
		UnusedTraps: h.UnusedTraps(),
	}
	for _, id := range h.Chars {
		c, err := s.store.Character(ctx, id)
		if errors.Is(err, game.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("character %d: %w", id, err)
		}
		c.Image = s.media.URL(c.Image)
		v.Characters = append(v.Characters, c)
	}
	for _, id := range h.Traps {
		t, err := s.store.Trap(ctx, id)
		if errors.Is(err, game.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("trap %d: %w", id, err)
		}
		t.Image = s.media.URL(t.Image)
		v.Traps = append(v.Traps, t)
	}
	return v, nil
}
