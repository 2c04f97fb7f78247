// services/player_service.go
package services

import (
	"context"
	"fmt"

	"github.com/wfunc/triad/logger"
	"github.com/wfunc/triad/persistence"
)

const (
	StarterChars = 5
	StarterTraps = 3
)

// Sampler picks k distinct ids at random.
type Sampler interface {
	Sample(ids []int, k int) []int
}

type PlayerService struct {
	store   persistence.Store
	sampler Sampler
}

func NewPlayerService(store persistence.Store, sampler Sampler) *PlayerService {
	return &PlayerService{store: store, sampler: sampler}
}

// OnPlayerCreated 新玩家发放初始卡牌，管理员跳过
func (s *PlayerService) OnPlayerCreated(ctx context.Context, userID int64) error {
	user, err := s.store.User(ctx, userID)
	if err != nil {
		return fmt.Errorf("load user %d: %w", userID, err)
	}
	if user.IsStaff {
		return nil
	}

	chars, traps, err := s.store.CommonCardIDs(ctx)
	if err != nil {
		return fmt.Errorf("common cards: %w", err)
	}
	chars = s.sampler.Sample(chars, StarterChars)
	traps = s.sampler.Sample(traps, StarterTraps)

	if err := s.store.GrantStarter(ctx, userID, chars, traps); err != nil {
		return fmt.Errorf("grant starter to %d: %w", userID, err)
	}
	logger.Log.Infof("Granted starter cards to %s: chars=%v traps=%v", user.Username, chars, traps)
	return nil
}
