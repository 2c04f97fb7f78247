// matchmaking/matchmaking.go
package matchmaking

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"

	"github.com/google/uuid"

	"github.com/wfunc/triad/game"
	"github.com/wfunc/triad/logger"
	"github.com/wfunc/triad/media"
	"github.com/wfunc/triad/monitor"
	"github.com/wfunc/triad/persistence"
)

const (
	HandChars = 5
	HandTraps = 3
)

// QueueStatus as reported to clients.
type QueueStatus string

const (
	StatusMatchFound QueueStatus = "MATCH_FOUND"
	StatusQueued     QueueStatus = "QUEUED"
	StatusIdle       QueueStatus = "IDLE"
	StatusLeft       QueueStatus = "LEFT"
)

// Result of a queue operation.
type Result struct {
	Status  QueueStatus `json:"status"`
	MatchID string      `json:"match_id,omitempty"`
}

var (
	ErrForbidden  = errors.New("not a participant of this match")
	ErrSamePlayer = errors.New("a player cannot be matched against themselves")
)

// Service pairs queued players and creates matches.
type Service struct {
	store   persistence.Store
	media   media.Resolver
	monitor *monitor.Monitor

	mu  sync.Mutex
	rng *rand.Rand
}

type Option func(*Service)

// WithRand replaces the hand sampling source.
func WithRand(r *rand.Rand) Option {
	return func(s *Service) { s.rng = r }
}

func WithMonitor(m *monitor.Monitor) Option {
	return func(s *Service) { s.monitor = m }
}

func WithMedia(r media.Resolver) Option {
	return func(s *Service) { s.media = r }
}

func NewService(store persistence.Store, opts ...Option) *Service {
	s := &Service{
		store: store,
		media: media.NewPrefixResolver(""),
		rng:   rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Join queues userID and pairs it with the longest-waiting other player
// when there is one. Joining twice is harmless.
func (s *Service) Join(ctx context.Context, userID int64) (Result, error) {
	var created *game.Match
	err := s.store.QueueTransaction(ctx, func(tx persistence.QueueTx) error {
		created = nil
		if err := tx.Enqueue(userID); err != nil {
			return err
		}
		other, ok, err := tx.EarliestOther(userID)
		if err != nil || !ok {
			return err
		}
		if err := tx.Remove(userID, other); err != nil {
			return err
		}
		m, err := s.newMatch(tx, other, userID)
		if err != nil {
			return err
		}
		created = m
		return tx.CreateMatch(m)
	})
	if err != nil {
		return Result{}, fmt.Errorf("join queue: %w", err)
	}

	if created == nil {
		logger.Log.Infof("Player %d queued", userID)
		return Result{Status: StatusQueued}, nil
	}
	s.monitor.IncMatchesCreated()
	logger.Log.Infof("Paired %d with %d in match %s", created.Player1ID, created.Player2ID, created.ID)
	return Result{Status: StatusMatchFound, MatchID: created.ID}, nil
}

// Leave removes userID from the queue. Leaving twice is harmless.
func (s *Service) Leave(ctx context.Context, userID int64) (Result, error) {
	if err := s.store.Dequeue(ctx, userID); err != nil {
		return Result{}, fmt.Errorf("leave queue: %w", err)
	}
	return Result{Status: StatusLeft}, nil
}

// Status reports the newest unfinished match, else whether userID waits.
func (s *Service) Status(ctx context.Context, userID int64) (Result, error) {
	m, err := s.store.OpenMatch(ctx, userID)
	switch {
	case err == nil:
		return Result{Status: StatusMatchFound, MatchID: m.ID}, nil
	case !errors.Is(err, persistence.ErrRecordNotFound):
		return Result{}, err
	}

	queued, err := s.store.IsQueued(ctx, userID)
	if err != nil {
		return Result{}, err
	}
	if queued {
		return Result{Status: StatusQueued}, nil
	}
	return Result{Status: StatusIdle}, nil
}

// CreateMatch builds a match between p1 and p2 directly, without the queue.
func (s *Service) CreateMatch(ctx context.Context, p1, p2 int64) (*game.Match, error) {
	if p1 == p2 {
		return nil, ErrSamePlayer
	}
	var created *game.Match
	err := s.store.QueueTransaction(ctx, func(tx persistence.QueueTx) error {
		m, err := s.newMatch(tx, p1, p2)
		if err != nil {
			return err
		}
		created = m
		return tx.CreateMatch(m)
	})
	if err != nil {
		return nil, fmt.Errorf("create match: %w", err)
	}
	s.monitor.IncMatchesCreated()
	return created, nil
}

func (s *Service) newMatch(tx persistence.QueueTx, p1, p2 int64) (*game.Match, error) {
	m := &game.Match{
		ID:         uuid.NewString(),
		Player1ID:  p1,
		Player2ID:  p2,
		Status:     game.StatusActive,
		TurnPlayer: 1,
		Board:      &game.Board{},
	}
	for i, userID := range []int64{p1, p2} {
		chars, traps, err := tx.ActiveDeck(userID)
		if err != nil {
			return nil, fmt.Errorf("deck of %d: %w", userID, err)
		}
		m.Hands[i] = game.Hand{
			Chars:     s.Sample(chars, HandChars),
			Traps:     s.Sample(traps, HandTraps),
			UsedChars: game.NewIDSet(),
			UsedTraps: game.NewIDSet(),
		}
	}
	return m, nil
}

// Sample picks k distinct ids uniformly. With k or fewer ids, all of them
// are returned shuffled.
func (s *Service) Sample(ids []int, k int) []int {
	pool := dedupe(ids)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rng.Shuffle(len(pool), func(i, j int) {
		pool[i], pool[j] = pool[j], pool[i]
	})
	if len(pool) > k {
		pool = pool[:k]
	}
	return pool
}

func dedupe(ids []int) []int {
	seen := make(map[int]struct{}, len(ids))
	out := make([]int, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
