package broadcast

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/wfunc/triad/logger"
)

// DefaultChannel is the LISTEN/NOTIFY channel shared by all instances.
const DefaultChannel = "triad_match_state"

type notice struct {
	MatchID string `json:"match_id"`
	Origin  string `json:"origin"`
}

// Relay fans broadcasts out to other server instances through Postgres
// LISTEN/NOTIFY. Local subscribers are served directly by the hub.
type Relay struct {
	hub      *Hub
	db       *sql.DB
	listener *pq.Listener
	channel  string
	origin   string
}

func NewRelay(hub *Hub, dsn, channel string) (*Relay, error) {
	if channel == "" {
		channel = DefaultChannel
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}

	listener := pq.NewListener(dsn, time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			logger.Log.Warnf("Broadcast relay listener event %d: %v", ev, err)
		}
	})
	if err := listener.Listen(channel); err != nil {
		listener.Close()
		db.Close()
		return nil, fmt.Errorf("listen %s: %w", channel, err)
	}

	return &Relay{
		hub:      hub,
		db:       db,
		listener: listener,
		channel:  channel,
		origin:   uuid.NewString(),
	}, nil
}

// BroadcastToMatch delivers locally and notifies the other instances.
func (r *Relay) BroadcastToMatch(matchID string) error {
	r.hub.BroadcastToMatch(matchID)

	payload, err := encodeNotice(notice{MatchID: matchID, Origin: r.origin})
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), pushTimeout)
	defer cancel()
	if _, err := r.db.ExecContext(ctx, "SELECT pg_notify($1, $2)", r.channel, payload); err != nil {
		return fmt.Errorf("notify match %s: %w", matchID, err)
	}
	return nil
}

// Run forwards notifications from other instances to the hub until ctx ends.
func (r *Relay) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case n := <-r.listener.Notify:
			// nil after a reconnect; missed notices are covered by SYNC
			if n == nil {
				continue
			}
			r.handle(n.Extra)
		case <-time.After(90 * time.Second):
			if err := r.listener.Ping(); err != nil {
				logger.Log.Warnf("Broadcast relay ping failed: %v", err)
			}
		}
	}
}

func (r *Relay) handle(extra string) {
	nt, err := decodeNotice(extra)
	if err != nil {
		logger.Log.Warnf("Broadcast relay dropped notice %q: %v", extra, err)
		return
	}
	if nt.Origin == r.origin || !r.hub.HasGroup(nt.MatchID) {
		return
	}
	r.hub.BroadcastToMatch(nt.MatchID)
}

func (r *Relay) Close() error {
	err := r.listener.Close()
	if cerr := r.db.Close(); err == nil {
		err = cerr
	}
	return err
}

func encodeNotice(n notice) (string, error) {
	data, err := json.Marshal(n)
	return string(data), err
}

func decodeNotice(s string) (notice, error) {
	var n notice
	if err := json.Unmarshal([]byte(s), &n); err != nil {
		return notice{}, err
	}
	if n.MatchID == "" {
		return notice{}, fmt.Errorf("missing match id")
	}
	return n, nil
}
