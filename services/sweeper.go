// services/sweeper.go
package services

import (
	"context"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/wfunc/triad/broadcast"
	"github.com/wfunc/triad/game"
	"github.com/wfunc/triad/logger"
	"github.com/wfunc/triad/monitor"
	"github.com/wfunc/triad/persistence"
	"github.com/wfunc/triad/session"
)

const sweepBatch = 100

// Sweeper forfeits expired turns of matches nobody is connected to.
// Connected matches are also covered by the per-session watchdog; the
// check runs under the match lock so a turn is forfeited once.
type Sweeper struct {
	Store       persistence.Store
	Engine      *game.Engine
	Broadcaster broadcast.Broadcaster
	Monitor     *monitor.Monitor

	sched gocron.Scheduler
}

// Start schedules Sweep every interval.
func (s *Sweeper) Start(interval time.Duration) error {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return err
	}
	_, err = sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), interval)
			defer cancel()
			if n, err := s.Sweep(ctx); err != nil {
				logger.Log.Warnf("[Sweeper] %v", err)
			} else if n > 0 {
				logger.Log.Infof("[Sweeper] forfeited %d matches", n)
			}
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		sched.Shutdown()
		return err
	}
	sched.Start()
	s.sched = sched
	return nil
}

func (s *Sweeper) Stop() error {
	if s.sched == nil {
		return nil
	}
	return s.sched.Shutdown()
}

// Sweep forfeits every match whose deadline has passed and returns how many
// it finalized.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	ids, err := s.Store.ExpiredMatchIDs(ctx, s.Engine.Clock().Now(), sweepBatch)
	if err != nil {
		return 0, err
	}

	n := 0
	for _, id := range ids {
		fired, err := session.CheckTimeout(ctx, s.Store, s.Engine, id)
		if err != nil {
			logger.Log.Warnf("[Sweeper] match %s: %v", id, err)
			continue
		}
		if !fired {
			continue
		}
		n++
		s.Monitor.IncForfeits("sweeper")
		if s.Broadcaster != nil {
			if err := s.Broadcaster.BroadcastToMatch(id); err != nil {
				logger.Log.Warnf("[Sweeper] broadcast %s: %v", id, err)
			}
		}
	}
	return n, nil
}
