// game/capture.go
package game

// resolveCaptures flips every opposing neighbour of pos whose facing stat
// is strictly lower than the placed card's. One pass, no chaining.
func resolveCaptures(b *Board, pos int) {
	placed := b[pos].Char
	if placed == nil {
		return
	}
	for _, d := range directions {
		npos, ok := Neighbor(pos, d)
		if !ok {
			continue
		}
		n := b[npos].Char
		if n == nil || n.Owner == placed.Owner {
			continue
		}
		if placed.Get(d) > n.Get(d.Opposite()) {
			n.Owner = placed.Owner
		}
	}
}

// finishIfFull ends the match once all nine cells are taken. Equal
// ownership is a tie (winner 0).
func finishIfFull(m *Match) {
	if !m.Board.Full() {
		return
	}
	p1, p2 := m.Board.Counts()
	m.Status = StatusFinished
	switch {
	case p1 > p2:
		m.Winner = 1
	case p2 > p1:
		m.Winner = 2
	default:
		m.Winner = 0
	}
	m.touch()
}
