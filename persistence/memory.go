// persistence/memory.go
package persistence

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/wfunc/triad/game"
	"github.com/wfunc/triad/models"
)

type memoryDeck struct {
	chars []int
	traps []int
}

type queueEntry struct {
	userID int64
	seq    int64
	at     time.Time
}

// MemoryStore 内存实现，单进程部署和测试使用。每个对局一把锁，队列一把锁。
type MemoryStore struct {
	mu      sync.RWMutex
	matches map[string]*game.Match
	locks   map[string]*sync.Mutex
	moves   map[string][]game.Move

	queueMu sync.Mutex
	queue   []queueEntry
	seq     int64

	users     map[int64]models.User
	chars     map[int]game.CharacterCard
	traps     map[int]game.TrapCard
	decks     map[int64]*memoryDeck
	inventory map[int64]map[string]int

	now func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		matches:   make(map[string]*game.Match),
		locks:     make(map[string]*sync.Mutex),
		moves:     make(map[string][]game.Move),
		users:     make(map[int64]models.User),
		chars:     make(map[int]game.CharacterCard),
		traps:     make(map[int]game.TrapCard),
		decks:     make(map[int64]*memoryDeck),
		inventory: make(map[int64]map[string]int),
		now:       time.Now,
	}
}

// SetDeck replaces the active deck of userID.
func (s *MemoryStore) SetDeck(userID int64, chars, traps []int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.decks[userID] = &memoryDeck{
		chars: append([]int{}, chars...),
		traps: append([]int{}, traps...),
	}
}

// Inventory returns how many copies of each card userID owns, keyed
// "char:<id>" and "trap:<id>".
func (s *MemoryStore) Inventory(userID int64) map[string]int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]int, len(s.inventory[userID]))
	for k, v := range s.inventory[userID] {
		out[k] = v
	}
	return out
}

func (s *MemoryStore) Character(ctx context.Context, id int) (game.CharacterCard, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.chars[id]
	if !ok {
		return game.CharacterCard{}, ErrRecordNotFound
	}
	return c, nil
}

func (s *MemoryStore) Trap(ctx context.Context, id int) (game.TrapCard, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.traps[id]
	if !ok {
		return game.TrapCard{}, ErrRecordNotFound
	}
	return t, nil
}

func (s *MemoryStore) CreateMatch(ctx context.Context, m *game.Match) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createMatchLocked(m)
}

func (s *MemoryStore) createMatchLocked(m *game.Match) error {
	if _, ok := s.matches[m.ID]; ok {
		return fmt.Errorf("match %s: %w", m.ID, ErrDuplicate)
	}
	if m.Board != nil {
		if err := m.Board.Validate(); err != nil {
			return err
		}
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = s.now()
	}
	m.MarkClean()
	s.matches[m.ID] = m.Clone()
	s.locks[m.ID] = &sync.Mutex{}
	return nil
}

func (s *MemoryStore) LoadMatch(ctx context.Context, id string) (*game.Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.matches[id]
	if !ok {
		return nil, ErrRecordNotFound
	}
	return m.Clone(), nil
}

// memoryJournal buffers moves until the update commits.
type memoryJournal struct {
	moves []game.Move
}

func (j *memoryJournal) AppendMove(ctx context.Context, mv game.Move) error {
	j.moves = append(j.moves, mv)
	return nil
}

func (s *MemoryStore) UpdateMatch(ctx context.Context, id string, fn MatchFunc) (*game.Match, error) {
	s.mu.RLock()
	lock, ok := s.locks[id]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrRecordNotFound
	}

	lock.Lock()
	defer lock.Unlock()

	m, err := s.LoadMatch(ctx, id)
	if err != nil {
		return nil, err
	}
	j := &memoryJournal{}
	if err := fn(j, m); err != nil {
		return nil, err
	}

	if m.Changed() || len(j.moves) > 0 {
		if m.Board != nil {
			if err := m.Board.Validate(); err != nil {
				return nil, err
			}
		}
		m.MarkClean()
		s.mu.Lock()
		s.matches[id] = m.Clone()
		s.moves[id] = append(s.moves[id], j.moves...)
		s.mu.Unlock()
	}
	return m, nil
}

func (s *MemoryStore) Moves(ctx context.Context, matchID string) ([]game.Move, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]game.Move{}, s.moves[matchID]...), nil
}

// playerMatches returns userID's matches newest first. Callers hold mu.
func (s *MemoryStore) playerMatches(userID int64) []*game.Match {
	var out []*game.Match
	for _, m := range s.matches {
		if m.Player1ID == userID || m.Player2ID == userID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

func (s *MemoryStore) RecentMatches(ctx context.Context, userID int64, limit int) ([]*game.Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := s.playerMatches(userID)
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	out := make([]*game.Match, 0, len(all))
	for _, m := range all {
		out = append(out, m.Clone())
	}
	return out, nil
}

func (s *MemoryStore) OpenMatch(ctx context.Context, userID int64) (*game.Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, m := range s.playerMatches(userID) {
		if m.Status != game.StatusFinished {
			return m.Clone(), nil
		}
	}
	return nil, ErrRecordNotFound
}

func (s *MemoryStore) ExpiredMatchIDs(ctx context.Context, now time.Time, limit int) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var expired []*game.Match
	for _, m := range s.matches {
		if m.Active() && m.TurnDeadline != nil && m.TurnDeadline.Before(now) {
			expired = append(expired, m)
		}
	}
	sort.Slice(expired, func(i, j int) bool {
		return expired[i].TurnDeadline.Before(*expired[j].TurnDeadline)
	})
	ids := make([]string, 0, len(expired))
	for _, m := range expired {
		if limit > 0 && len(ids) == limit {
			break
		}
		ids = append(ids, m.ID)
	}
	return ids, nil
}

// memoryQueueTx stages changes and applies them when the transaction
// function succeeds.
type memoryQueueTx struct {
	s       *MemoryStore
	queue   []queueEntry
	seq     int64
	matches []*game.Match
	decks   map[int64]*memoryDeck
}

func (q *memoryQueueTx) Enqueue(userID int64) error {
	for _, e := range q.queue {
		if e.userID == userID {
			return nil
		}
	}
	q.seq++
	q.queue = append(q.queue, queueEntry{userID: userID, seq: q.seq, at: q.s.now()})
	return nil
}

func (q *memoryQueueTx) EarliestOther(userID int64) (int64, bool, error) {
	var best *queueEntry
	for i := range q.queue {
		e := &q.queue[i]
		if e.userID == userID {
			continue
		}
		if best == nil || e.at.Before(best.at) || (e.at.Equal(best.at) && e.seq < best.seq) {
			best = e
		}
	}
	if best == nil {
		return 0, false, nil
	}
	return best.userID, true, nil
}

func (q *memoryQueueTx) Remove(userIDs ...int64) error {
	kept := q.queue[:0:0]
	for _, e := range q.queue {
		drop := false
		for _, id := range userIDs {
			if e.userID == id {
				drop = true
				break
			}
		}
		if !drop {
			kept = append(kept, e)
		}
	}
	q.queue = kept
	return nil
}

func (q *memoryQueueTx) ActiveDeck(userID int64) ([]int, []int, error) {
	if d, ok := q.decks[userID]; ok {
		return append([]int{}, d.chars...), append([]int{}, d.traps...), nil
	}
	q.s.mu.RLock()
	d, ok := q.s.decks[userID]
	q.s.mu.RUnlock()
	if !ok {
		q.decks[userID] = &memoryDeck{chars: []int{}, traps: []int{}}
		return []int{}, []int{}, nil
	}
	return append([]int{}, d.chars...), append([]int{}, d.traps...), nil
}

func (q *memoryQueueTx) CreateMatch(m *game.Match) error {
	q.matches = append(q.matches, m)
	return nil
}

func (s *MemoryStore) QueueTransaction(ctx context.Context, fn func(tx QueueTx) error) error {
	s.queueMu.Lock()
	defer s.queueMu.Unlock()

	q := &memoryQueueTx{
		s:     s,
		queue: append([]queueEntry{}, s.queue...),
		seq:   s.seq,
		decks: make(map[int64]*memoryDeck),
	}
	if err := fn(q); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range q.matches {
		if _, ok := s.matches[m.ID]; ok {
			return fmt.Errorf("match %s: %w", m.ID, ErrDuplicate)
		}
	}
	for _, m := range q.matches {
		if err := s.createMatchLocked(m); err != nil {
			return err
		}
	}
	for id, d := range q.decks {
		if _, ok := s.decks[id]; !ok {
			s.decks[id] = d
		}
	}
	s.queue = q.queue
	s.seq = q.seq
	return nil
}

func (s *MemoryStore) Dequeue(ctx context.Context, userID int64) error {
	return s.QueueTransaction(ctx, func(tx QueueTx) error {
		return tx.Remove(userID)
	})
}

func (s *MemoryStore) IsQueued(ctx context.Context, userID int64) (bool, error) {
	s.queueMu.Lock()
	defer s.queueMu.Unlock()
	for _, e := range s.queue {
		if e.userID == userID {
			return true, nil
		}
	}
	return false, nil
}

func (s *MemoryStore) CreateUser(ctx context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.ID == 0 {
		for id := range s.users {
			if id > u.ID {
				u.ID = id
			}
		}
		u.ID++
	}
	if _, ok := s.users[u.ID]; ok {
		return ErrDuplicate
	}
	for _, other := range s.users {
		if other.Username == u.Username {
			return ErrDuplicate
		}
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = s.now()
	}
	s.users[u.ID] = *u
	return nil
}

func (s *MemoryStore) User(ctx context.Context, id int64) (models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return models.User{}, ErrRecordNotFound
	}
	return u, nil
}

func (s *MemoryStore) Users(ctx context.Context, ids ...int64) (map[int64]models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[int64]models.User, len(ids))
	for _, id := range ids {
		if u, ok := s.users[id]; ok {
			out[id] = u
		}
	}
	return out, nil
}

func (s *MemoryStore) CommonCardIDs(ctx context.Context) ([]int, []int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	chars := []int{}
	traps := []int{}
	for id, c := range s.chars {
		if c.Rarity == game.RarityCommon {
			chars = append(chars, id)
		}
	}
	for id, t := range s.traps {
		if t.Rarity == game.RarityCommon {
			traps = append(traps, id)
		}
	}
	sort.Ints(chars)
	sort.Ints(traps)
	return chars, traps, nil
}

func (s *MemoryStore) GrantStarter(ctx context.Context, userID int64, chars, traps []int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	inv := s.inventory[userID]
	if inv == nil {
		inv = make(map[string]int)
		s.inventory[userID] = inv
	}
	for _, id := range chars {
		inv[fmt.Sprintf("char:%d", id)]++
	}
	for _, id := range traps {
		inv[fmt.Sprintf("trap:%d", id)]++
	}
	deck := s.decks[userID]
	if deck == nil {
		deck = &memoryDeck{chars: []int{}, traps: []int{}}
		s.decks[userID] = deck
	}
	deck.chars = dedupeAppend(deck.chars, chars)
	deck.traps = dedupeAppend(deck.traps, traps)
	return nil
}

func dedupeAppend(dst, ids []int) []int {
	for _, id := range ids {
		found := false
		for _, have := range dst {
			if have == id {
				found = true
				break
			}
		}
		if !found {
			dst = append(dst, id)
		}
	}
	return dst
}

func (s *MemoryStore) SeedCatalog(ctx context.Context, chars []game.CharacterCard, traps []game.TrapCard) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range chars {
		s.chars[c.ID] = c
	}
	for _, t := range traps {
		s.traps[t.ID] = t
	}
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}
