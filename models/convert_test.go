package models

import (
	"testing"
	"time"

	"gorm.io/datatypes"

	"github.com/wfunc/triad/game"
)

func TestMatchConversion(t *testing.T) {
	deadline := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	m := &game.Match{
		ID:           "11111111-2222-3333-4444-555555555555",
		Player1ID:    1,
		Player2ID:    2,
		Status:       game.StatusActive,
		TurnPlayer:   2,
		TurnDeadline: &deadline,
		Board:        &game.Board{},
	}
	m.Board[4].Char = &game.Character{CardID: 3, Owner: 1, Stats: game.Stats{Up: 1, Down: 2, Left: 3, Right: 4}}
	m.Hands[0] = game.Hand{Chars: []int{3, 4}, Traps: []int{9}, UsedChars: game.NewIDSet(3)}

	rec, err := MatchFromDomain(m)
	if err != nil {
		t.Fatalf("MatchFromDomain returned error: %v", err)
	}
	back, err := rec.ToDomain()
	if err != nil {
		t.Fatalf("ToDomain returned error: %v", err)
	}

	if back.Changed() {
		t.Error("freshly loaded match should be clean")
	}
	if back.Board == nil || back.Board[4].Char == nil || back.Board[4].Char.Left != 3 {
		t.Fatal("board did not survive conversion")
	}
	if !back.Hands[0].UsedChars.Contains(3) || back.Hands[0].UsedChars.Len() != 1 {
		t.Errorf("used characters not restored: %v", back.Hands[0].UsedChars.IDs())
	}
	if len(back.Hands[1].Chars) != 0 {
		t.Errorf("player 2 hand should be empty, got %v", back.Hands[1].Chars)
	}
	if back.TurnPlayer != 2 || !back.TurnDeadline.Equal(deadline) {
		t.Error("turn data not restored")
	}
}

func TestMalformedBoardIsDropped(t *testing.T) {
	rec := &Match{ID: "x", Status: "active", BoardState: datatypes.JSON(`[{"char":null}]`)}
	m, err := rec.ToDomain()
	if err != nil {
		t.Fatalf("ToDomain returned error: %v", err)
	}
	if m.Board != nil {
		t.Error("short board should load as absent")
	}
}

func TestApplyRejectsInvalidBoard(t *testing.T) {
	m := &game.Match{ID: "x", Board: &game.Board{}}
	m.Board[0].Char = &game.Character{Owner: 5}
	if _, err := MatchFromDomain(m); err == nil {
		t.Error("expected schema violation to be rejected")
	}
}
