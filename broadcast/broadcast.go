// broadcast/broadcast.go
package broadcast

import (
	"context"
	"sync"
	"time"

	"github.com/wfunc/triad/logger"
	"github.com/wfunc/triad/monitor"
)

// pushTimeout bounds one subscriber's state push.
const pushTimeout = 5 * time.Second

// Subscriber is a member of a match group. PushState reloads the match and
// sends the subscriber its own view, so a broadcast carries no payload.
type Subscriber interface {
	GetID() string
	PushState(ctx context.Context) error
}

// 广播接口
type Broadcaster interface {
	BroadcastToMatch(matchID string) error
}

// Hub 按对局分组的本地广播器
type Hub struct {
	groups  map[string]map[string]Subscriber
	mutex   sync.RWMutex
	monitor *monitor.Monitor
}

func NewHub(mon *monitor.Monitor) *Hub {
	return &Hub{
		groups:  make(map[string]map[string]Subscriber),
		monitor: mon,
	}
}

// Join adds sub to the group of matchID.
func (h *Hub) Join(matchID string, sub Subscriber) {
	h.mutex.Lock()
	group, ok := h.groups[matchID]
	if !ok {
		group = make(map[string]Subscriber)
		h.groups[matchID] = group
	}
	group[sub.GetID()] = sub
	count := len(h.groups)
	h.mutex.Unlock()

	h.monitor.SetActiveGroups(count)
}

// Leave removes a subscriber; empty groups are dropped.
func (h *Hub) Leave(matchID, subID string) {
	h.mutex.Lock()
	if group, ok := h.groups[matchID]; ok {
		delete(group, subID)
		if len(group) == 0 {
			delete(h.groups, matchID)
		}
	}
	count := len(h.groups)
	h.mutex.Unlock()

	h.monitor.SetActiveGroups(count)
}

// Subscribers returns a copy of the group of matchID.
func (h *Hub) Subscribers(matchID string) []Subscriber {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	group := h.groups[matchID]
	out := make([]Subscriber, 0, len(group))
	for _, sub := range group {
		out = append(out, sub)
	}
	return out
}

// HasGroup reports whether any local subscriber watches matchID.
func (h *Hub) HasGroup(matchID string) bool {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.groups[matchID]) > 0
}

func (h *Hub) GroupCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.groups)
}

// BroadcastToMatch pushes fresh state to every local subscriber of matchID.
// A failing subscriber does not stop delivery to the others.
func (h *Hub) BroadcastToMatch(matchID string) error {
	var wg sync.WaitGroup
	for _, sub := range h.Subscribers(matchID) {
		wg.Add(1)
		go func(sub Subscriber) {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), pushTimeout)
			defer cancel()
			if err := sub.PushState(ctx); err != nil {
				logger.Log.Warnf("Push state to %s in match %s failed: %v", sub.GetID(), matchID, err)
			}
		}(sub)
	}
	wg.Wait()
	return nil
}
