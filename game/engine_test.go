package game

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCatalog struct {
	chars map[int]CharacterCard
	traps map[int]TrapCard
}

func (c *fakeCatalog) Character(ctx context.Context, id int) (CharacterCard, error) {
	card, ok := c.chars[id]
	if !ok {
		return CharacterCard{}, fmt.Errorf("character %d: %w", id, ErrNotFound)
	}
	return card, nil
}

func (c *fakeCatalog) Trap(ctx context.Context, id int) (TrapCard, error) {
	card, ok := c.traps[id]
	if !ok {
		return TrapCard{}, fmt.Errorf("trap %d: %w", id, ErrNotFound)
	}
	return card, nil
}

type journal struct {
	moves []Move
}

func (j *journal) AppendMove(ctx context.Context, mv Move) error {
	j.moves = append(j.moves, mv)
	return nil
}

type fixture struct {
	engine  *Engine
	catalog *fakeCatalog
	journal *journal
	now     time.Time
	match   *Match
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		catalog: &fakeCatalog{
			chars: map[int]CharacterCard{},
			traps: map[int]TrapCard{},
		},
		journal: &journal{},
		now:     time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC),
	}
	clock := NewTurnClock(DefaultTurnBudget)
	clock.Now = func() time.Time { return f.now }
	f.engine = NewEngine(f.catalog, clock)
	f.match = &Match{ID: "m1", Player1ID: 10, Player2ID: 20}
	f.engine.Initialize(f.match)
	return f
}

func (f *fixture) addChar(id, up, down, left, right int) {
	f.catalog.chars[id] = CharacterCard{
		ID:     id,
		Name:   fmt.Sprintf("char-%d", id),
		Stats:  Stats{Up: up, Down: down, Left: left, Right: right},
		Rarity: RarityCommon,
	}
}

func (f *fixture) addTrap(id int, tt TrapType, value int) {
	f.catalog.traps[id] = TrapCard{ID: id, Name: fmt.Sprintf("trap-%d", id), TrapType: tt, Value: value, Rarity: RarityCommon}
}

// put places a character directly, bypassing turn rules.
func (f *fixture) put(pos, owner int, s Stats) {
	f.match.Board[pos].Char = &Character{CardID: 100 + pos, Owner: owner, Stats: s}
}

func TestInitialize(t *testing.T) {
	f := newFixture(t)
	m := f.match

	require.NotNil(t, m.Board)
	assert.Equal(t, StatusActive, m.Status)
	assert.Equal(t, 1, m.TurnPlayer)
	require.NotNil(t, m.TurnDeadline)
	assert.Equal(t, f.now.Add(45*time.Second), *m.TurnDeadline)

	m.MarkClean()
	f.now = f.now.Add(10 * time.Second)
	f.engine.Initialize(m)
	assert.False(t, m.Changed(), "initialize must be idempotent")
	assert.Equal(t, f.now.Add(35*time.Second), *m.TurnDeadline)
}

func TestPlayCharacter_CenterNoCaptureSwitchesTurn(t *testing.T) {
	f := newFixture(t)
	f.addChar(1, 2, 3, 1, 4)

	err := f.engine.PlayCharacter(context.Background(), f.journal, f.match, 1, 1, 4)
	require.NoError(t, err)

	placed := f.match.Board[4].Char
	require.NotNil(t, placed)
	assert.Equal(t, 1, placed.Owner)
	assert.Equal(t, Stats{Up: 2, Down: 3, Left: 1, Right: 4}, placed.Stats)
	assert.Equal(t, 2, f.match.TurnPlayer)
	assert.True(t, f.match.TurnDeadline.After(f.now))
	assert.True(t, f.match.Hand(1).UsedChars.Contains(1))
	require.Len(t, f.journal.moves, 1)
	assert.Equal(t, MovePlayChar, f.journal.moves[0].Kind)
	assert.Equal(t, map[string]int{"card_id": 1, "pos": 4}, f.journal.moves[0].Payload)
}

func TestPlayCharacter_CapturesWeakerNeighbour(t *testing.T) {
	f := newFixture(t)
	f.put(1, 2, Stats{Up: 9, Down: 9, Left: 3, Right: 9})
	f.addChar(7, 0, 0, 0, 5)

	require.NoError(t, f.engine.PlayCharacter(context.Background(), f.journal, f.match, 1, 7, 0))
	assert.Equal(t, 1, f.match.Board[1].Char.Owner)
}

func TestPlayCharacter_CaptureRequiresStrictlyGreater(t *testing.T) {
	cases := []struct {
		mine, theirs int
		flips        bool
	}{
		{mine: 4, theirs: 3, flips: true},
		{mine: 3, theirs: 3, flips: false},
		{mine: 2, theirs: 3, flips: false},
	}
	for _, tc := range cases {
		t.Run(fmt.Sprintf("%d_vs_%d", tc.mine, tc.theirs), func(t *testing.T) {
			f := newFixture(t)
			// Neighbour below the center; compare down vs up.
			f.put(7, 2, Stats{Up: tc.theirs})
			f.addChar(1, 0, tc.mine, 0, 0)
			require.NoError(t, f.engine.PlayCharacter(context.Background(), f.journal, f.match, 1, 1, 4))
			want := 2
			if tc.flips {
				want = 1
			}
			assert.Equal(t, want, f.match.Board[7].Char.Owner)
		})
	}
}

func TestPlayCharacter_NoWrapAcrossRows(t *testing.T) {
	f := newFixture(t)
	// Cell 3 is at the start of row 2; cell 2 is the end of row 1.
	f.put(2, 2, Stats{})
	f.addChar(1, 9, 9, 9, 9)
	require.NoError(t, f.engine.PlayCharacter(context.Background(), f.journal, f.match, 1, 1, 3))
	assert.Equal(t, 2, f.match.Board[2].Char.Owner)
}

func TestPlayCharacter_NoChainedCaptures(t *testing.T) {
	f := newFixture(t)
	f.put(1, 2, Stats{Right: 9, Left: 0})
	f.put(2, 2, Stats{Left: 0})
	f.addChar(1, 0, 0, 0, 5)
	require.NoError(t, f.engine.PlayCharacter(context.Background(), f.journal, f.match, 1, 1, 0))
	assert.Equal(t, 1, f.match.Board[1].Char.Owner)
	assert.Equal(t, 2, f.match.Board[2].Char.Owner, "capture must not propagate")
}

func TestPlayCharacter_OwnNeighbourUntouched(t *testing.T) {
	f := newFixture(t)
	f.put(5, 1, Stats{})
	f.addChar(1, 9, 9, 9, 9)
	require.NoError(t, f.engine.PlayCharacter(context.Background(), f.journal, f.match, 1, 1, 4))
	assert.Equal(t, 1, f.match.Board[5].Char.Owner)
}

func TestPlayCharacter_Validation(t *testing.T) {
	ctx := context.Background()

	t.Run("not your turn", func(t *testing.T) {
		f := newFixture(t)
		f.addChar(1, 1, 1, 1, 1)
		err := f.engine.PlayCharacter(ctx, f.journal, f.match, 2, 1, 0)
		assert.ErrorIs(t, err, ErrNotYourTurn)
	})
	t.Run("position out of range", func(t *testing.T) {
		f := newFixture(t)
		f.addChar(1, 1, 1, 1, 1)
		assert.ErrorIs(t, f.engine.PlayCharacter(ctx, f.journal, f.match, 1, 1, 9), ErrInvalidPosition)
		assert.ErrorIs(t, f.engine.PlayCharacter(ctx, f.journal, f.match, 1, 1, -1), ErrInvalidPosition)
	})
	t.Run("occupied cell", func(t *testing.T) {
		f := newFixture(t)
		f.put(0, 2, Stats{})
		f.addChar(1, 1, 1, 1, 1)
		assert.ErrorIs(t, f.engine.PlayCharacter(ctx, f.journal, f.match, 1, 1, 0), ErrCellOccupied)
	})
	t.Run("unknown card", func(t *testing.T) {
		f := newFixture(t)
		err := f.engine.PlayCharacter(ctx, f.journal, f.match, 1, 42, 0)
		ve, ok := AsValidation(err)
		require.True(t, ok)
		assert.Equal(t, CodeNotFound, ve.Code)
	})
	t.Run("finished match", func(t *testing.T) {
		f := newFixture(t)
		f.match.Status = StatusFinished
		f.addChar(1, 1, 1, 1, 1)
		assert.ErrorIs(t, f.engine.PlayCharacter(ctx, f.journal, f.match, 1, 1, 0), ErrMatchNotActive)
	})
	t.Run("outsider", func(t *testing.T) {
		f := newFixture(t)
		f.addTrap(1, TrapMinusUp, 1)
		assert.ErrorIs(t, f.engine.PlaceTrap(ctx, f.journal, f.match, 3, 1, 0), ErrNotParticipant)
	})
}

func TestPlayCharacter_CardCannotBeReused(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addChar(1, 1, 1, 1, 1)
	f.addChar(2, 1, 1, 1, 1)

	require.NoError(t, f.engine.PlayCharacter(ctx, f.journal, f.match, 1, 1, 0))
	require.NoError(t, f.engine.PlayCharacter(ctx, f.journal, f.match, 2, 2, 8))
	assert.ErrorIs(t, f.engine.PlayCharacter(ctx, f.journal, f.match, 1, 1, 4), ErrCardUsed)
	// The opponent's usage is tracked separately.
	require.NoError(t, f.engine.PlayCharacter(ctx, f.journal, f.match, 1, 2, 4))
}

func TestPlaceTrap_RejectedOnOwnTurn(t *testing.T) {
	f := newFixture(t)
	f.addTrap(5, TrapMinusLeft, 2)
	before := *f.match.Board

	err := f.engine.PlaceTrap(context.Background(), f.journal, f.match, 1, 5, 3)
	assert.ErrorIs(t, err, ErrTrapOnOwnTurn)
	ve, ok := AsValidation(err)
	require.True(t, ok)
	assert.Equal(t, CodeNotYourTurn, ve.Code)
	assert.Equal(t, before, *f.match.Board)
	assert.Empty(t, f.journal.moves)
}

func TestPlaceTrap(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addTrap(5, TrapMinusLeft, 2)
	deadline := *f.match.TurnDeadline

	require.NoError(t, f.engine.PlaceTrap(ctx, f.journal, f.match, 2, 5, 3))
	trap := f.match.Board[3].Trap
	require.NotNil(t, trap)
	assert.True(t, trap.Armed)
	assert.False(t, trap.Revealed)
	assert.Equal(t, 2, trap.Owner)
	assert.Equal(t, SlotTrapOnly, f.match.Board[3].Kind())
	assert.Equal(t, 1, f.match.TurnPlayer, "trap placement keeps the turn")
	assert.Equal(t, deadline, *f.match.TurnDeadline)
	assert.Equal(t, MovePlaceTrap, f.journal.moves[0].Kind)

	assert.ErrorIs(t, f.engine.PlaceTrap(ctx, f.journal, f.match, 2, 5, 4), ErrTrapUsed)
	f.addTrap(6, TrapMinusUp, 1)
	assert.ErrorIs(t, f.engine.PlaceTrap(ctx, f.journal, f.match, 2, 6, 3), ErrTrapOccupied)
	assert.ErrorIs(t, f.engine.PlaceTrap(ctx, f.journal, f.match, 2, 6, 12), ErrInvalidPosition)
}

func TestTrapTriggeredByOpponent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addTrap(5, TrapMinusLeft, 2)
	f.addChar(1, 4, 4, 1, 4)

	require.NoError(t, f.engine.PlaceTrap(ctx, f.journal, f.match, 2, 5, 3))
	require.NoError(t, f.engine.PlayCharacter(ctx, f.journal, f.match, 1, 1, 3))

	slot := f.match.Board[3]
	assert.Equal(t, SlotCharacterAndTrap, slot.Kind())
	assert.Equal(t, Stats{Up: 4, Down: 4, Left: 0, Right: 4}, slot.Char.Stats, "left is floored at zero")
	assert.False(t, slot.Trap.Armed)
	assert.True(t, slot.Trap.Revealed)
	assert.Equal(t, 1, slot.Trap.TriggeredBy)
}

func TestOwnTrapDoesNotTrigger(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addTrap(5, TrapMinusUp, 3)
	f.addChar(1, 1, 1, 1, 1)
	f.addChar(2, 5, 5, 5, 5)

	require.NoError(t, f.engine.PlaceTrap(ctx, f.journal, f.match, 2, 5, 8))
	require.NoError(t, f.engine.PlayCharacter(ctx, f.journal, f.match, 1, 1, 0))
	require.NoError(t, f.engine.PlayCharacter(ctx, f.journal, f.match, 2, 2, 8))

	slot := f.match.Board[8]
	assert.Equal(t, 5, slot.Char.Up)
	assert.True(t, slot.Trap.Armed)
	assert.False(t, slot.Trap.Revealed)
}

func TestBoardFullFinalizes(t *testing.T) {
	f := newFixture(t)
	owners := []int{1, 2, 1, 2, 1, 2, 1, 2}
	for i, o := range owners {
		f.put(i, o, Stats{})
	}
	f.addChar(1, 0, 0, 0, 0)
	require.NoError(t, f.engine.PlayCharacter(context.Background(), f.journal, f.match, 1, 1, 8))

	assert.Equal(t, StatusFinished, f.match.Status)
	assert.Equal(t, 1, f.match.Winner)
	p1, p2 := f.match.Board.Counts()
	assert.Equal(t, 5, p1)
	assert.Equal(t, 4, p2)
	assert.Equal(t, 1, f.match.TurnPlayer, "finished match keeps the last turn player")

	f.addChar(2, 0, 0, 0, 0)
	assert.ErrorIs(t, f.engine.PlayCharacter(context.Background(), f.journal, f.match, 1, 2, 0), ErrMatchNotActive)
}

func TestFinishTieWhenCountsEqual(t *testing.T) {
	m := &Match{Board: &Board{}, Status: StatusActive}
	for i := 0; i < BoardSize; i++ {
		m.Board[i].Char = &Character{Owner: 1 + i%2}
	}
	// A neutral owner keeps the tie path reachable for this test only.
	m.Board[8].Char.Owner = 0
	finishIfFull(m)
	assert.Equal(t, StatusFinished, m.Status)
	assert.Equal(t, 0, m.Winner)
}

func TestCheckTimeout(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	forfeited, err := f.engine.CheckTimeout(ctx, f.journal, f.match)
	require.NoError(t, err)
	assert.False(t, forfeited)

	f.now = f.now.Add(45 * time.Second)
	forfeited, err = f.engine.CheckTimeout(ctx, f.journal, f.match)
	require.NoError(t, err)
	assert.False(t, forfeited, "deadline itself is still in time")

	f.now = f.now.Add(time.Second)
	forfeited, err = f.engine.CheckTimeout(ctx, f.journal, f.match)
	require.NoError(t, err)
	assert.True(t, forfeited)
	assert.Equal(t, StatusFinished, f.match.Status)
	assert.Equal(t, 2, f.match.Winner)
	require.Len(t, f.journal.moves, 1)
	assert.Equal(t, MoveTimeoutForfeit, f.journal.moves[0].Kind)
	assert.Equal(t, 1, f.journal.moves[0].Player)

	forfeited, err = f.engine.CheckTimeout(ctx, f.journal, f.match)
	require.NoError(t, err)
	assert.False(t, forfeited)
	assert.Len(t, f.journal.moves, 1)
}

func TestExpiredTurnCannotAct(t *testing.T) {
	f := newFixture(t)
	f.addChar(1, 1, 1, 1, 1)
	f.now = f.now.Add(time.Minute)
	err := f.engine.PlayCharacter(context.Background(), f.journal, f.match, 1, 1, 0)
	assert.ErrorIs(t, err, ErrMatchNotActive)
	assert.Nil(t, f.match.Board[0].Char)
}

func TestDeadlineAlwaysInFutureAfterPlay(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	for id := 1; id <= 9; id++ {
		f.addChar(id, 1, 1, 1, 1)
	}
	player := 1
	for pos := 0; pos < BoardSize-1; pos++ {
		f.now = f.now.Add(30 * time.Second)
		require.NoError(t, f.engine.PlayCharacter(ctx, f.journal, f.match, player, pos+1, pos))
		require.True(t, f.match.Active())
		assert.True(t, f.match.TurnDeadline.After(f.now))
		player = otherPlayer(player)
	}
}
