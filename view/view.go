// view/view.go
package view

import (
	"encoding/json"
	"time"

	"github.com/wfunc/triad/game"
	"github.com/wfunc/triad/media"
)

// Player identifies one seat of a match.
type Player struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

type Players struct {
	P1 Player `json:"p1"`
	P2 Player `json:"p2"`
}

type Counts struct {
	P1 int `json:"p1"`
	P2 int `json:"p2"`
}

type CharacterView struct {
	CardID int    `json:"card_id"`
	Name   string `json:"name"`
	Owner  int    `json:"owner"`
	game.Stats
	Rarity game.Rarity `json:"rarity"`
	Image  *string     `json:"image"`
}

// TrapView serializes as {"present": true} while hidden from the viewer.
type TrapView struct {
	Hidden      bool          `json:"-"`
	Present     bool          `json:"present"`
	TrapID      int           `json:"trap_id"`
	Name        string        `json:"name"`
	Type        game.TrapType `json:"type"`
	Value       int           `json:"value"`
	Owner       int           `json:"owner"`
	Armed       bool          `json:"armed"`
	Revealed    bool          `json:"revealed"`
	TriggeredBy int           `json:"triggered_by,omitempty"`
	Rarity      game.Rarity   `json:"rarity"`
	Image       *string       `json:"image"`
}

func (t TrapView) MarshalJSON() ([]byte, error) {
	if t.Hidden {
		return []byte(`{"present":true}`), nil
	}
	type plain TrapView
	return json.Marshal(plain(t))
}

type SlotView struct {
	Char *CharacterView `json:"char"`
	Trap *TrapView      `json:"trap"`
}

// View is the state of a match as one player is allowed to see it.
type View struct {
	MatchID      string      `json:"match_id"`
	Status       game.Status `json:"status"`
	TurnPlayer   int         `json:"turn_player"`
	Winner       int         `json:"winner"`
	TurnDeadline *time.Time  `json:"turn_deadline"`
	SecondsLeft  *int        `json:"seconds_left"`
	Counts       Counts      `json:"counts"`
	Board        []SlotView  `json:"board"`
	Players      Players     `json:"players"`
	Viewer       int         `json:"viewer"`
	UsedChars    []int       `json:"used_chars"`
	UsedTraps    []int       `json:"used_traps"`
	UnusedChars  []int       `json:"unused_chars"`
	UnusedTraps  []int       `json:"unused_traps"`
}

// Projector builds per-viewer views.
type Projector struct {
	clock *game.TurnClock
	media media.Resolver
}

func NewProjector(clock *game.TurnClock, resolver media.Resolver) *Projector {
	if resolver == nil {
		resolver = media.NewPrefixResolver("")
	}
	return &Projector{clock: clock, media: resolver}
}

// Project renders m for viewer (1 or 2). Traps the viewer does not own stay
// hidden while armed and unrevealed.
func (p *Projector) Project(m *game.Match, viewer int, players Players) View {
	board := m.Board
	if board == nil {
		board = &game.Board{}
	}

	v := View{
		MatchID:      m.ID,
		Status:       m.Status,
		TurnPlayer:   m.TurnPlayer,
		Winner:       m.Winner,
		TurnDeadline: m.TurnDeadline,
		SecondsLeft:  p.clock.SecondsLeft(m),
		Board:        make([]SlotView, 0, game.BoardSize),
		Players:      players,
		Viewer:       viewer,
	}
	v.Counts.P1, v.Counts.P2 = board.Counts()

	for _, s := range board {
		v.Board = append(v.Board, SlotView{
			Char: p.character(s.Char),
			Trap: p.trap(s.Trap, viewer),
		})
	}

	if h := m.Hand(viewer); h != nil {
		v.UsedChars = h.UsedChars.IDs()
		v.UsedTraps = h.UsedTraps.IDs()
		v.UnusedChars = h.UnusedChars()
		v.UnusedTraps = h.UnusedTraps()
	} else {
		v.UsedChars, v.UsedTraps = []int{}, []int{}
		v.UnusedChars, v.UnusedTraps = []int{}, []int{}
	}
	return v
}

func (p *Projector) character(c *game.Character) *CharacterView {
	if c == nil {
		return nil
	}
	return &CharacterView{
		CardID: c.CardID,
		Name:   c.Name,
		Owner:  c.Owner,
		Stats:  c.Stats,
		Rarity: c.Rarity,
		Image:  p.image(c.Image),
	}
}

func (p *Projector) trap(t *game.Trap, viewer int) *TrapView {
	if t == nil {
		return nil
	}
	if t.Owner != viewer && t.Armed && !t.Revealed {
		return &TrapView{Hidden: true, Present: true}
	}
	return &TrapView{
		Present:     true,
		TrapID:      t.TrapID,
		Name:        t.Name,
		Type:        t.Type,
		Value:       t.Value,
		Owner:       t.Owner,
		Armed:       t.Armed,
		Revealed:    t.Revealed,
		TriggeredBy: t.TriggeredBy,
		Rarity:      t.Rarity,
		Image:       p.image(t.Image),
	}
}

func (p *Projector) image(ref string) *string {
	url := p.media.URL(ref)
	if url == "" {
		return nil
	}
	return &url
}
