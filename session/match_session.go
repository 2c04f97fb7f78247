package session

import (
	"context"
	"errors"
	"time"

	"github.com/wfunc/triad/auth"
	"github.com/wfunc/triad/broadcast"
	"github.com/wfunc/triad/game"
	"github.com/wfunc/triad/logger"
	"github.com/wfunc/triad/monitor"
	"github.com/wfunc/triad/network"
	"github.com/wfunc/triad/persistence"
	"github.com/wfunc/triad/state"
	"github.com/wfunc/triad/timer"
	"github.com/wfunc/triad/view"
)

const (
	DefaultWatchdogInterval = time.Second
	opTimeout               = 10 * time.Second
)

// Mediator wires match sessions to the store, the rules and the broadcast
// groups. One Mediator serves every connection of a server.
type Mediator struct {
	Store       persistence.Store
	Engine      *game.Engine
	Projector   *view.Projector
	Hub         *broadcast.Hub
	Broadcaster broadcast.Broadcaster
	Timers      *timer.TimerManager
	Sessions    *Manager
	Monitor     *monitor.Monitor

	WatchdogInterval time.Duration
}

// MatchSession is one participant's connection to one match.
type MatchSession struct {
	*Session
	m       *Mediator
	machine *state.BaseStateMachine
	timerID int64
	closed  chan struct{}
}

// Open authorizes conn for matchID and, on success, attaches it to the
// match group, pushes the current state and starts the watchdog. A refused
// connection is closed with the matching close code and an error returned.
func (m *Mediator) Open(ctx context.Context, id string, conn network.Connection, identity *auth.Identity, matchID string) (*MatchSession, error) {
	ms := &MatchSession{
		Session: NewSession(id, conn),
		m:       m,
		closed:  make(chan struct{}),
	}
	ms.MatchID = matchID
	ms.machine = state.NewSessionMachine(
		nil,
		&state.Phase{Enter: ms.activate},
		&state.Phase{Enter: ms.release},
	)

	if identity == nil {
		ms.refuse(network.CloseUnauthenticated, "unauthenticated")
		return nil, auth.ErrMissingToken
	}
	ms.UserID = identity.UserID

	match, err := m.Store.LoadMatch(ctx, matchID)
	if errors.Is(err, game.ErrNotFound) {
		ms.refuse(network.CloseNotFound, "match not found")
		return nil, err
	}
	if err != nil {
		ms.refuse(websocketInternalError, "internal error")
		return nil, err
	}

	ms.Player = match.PlayerNumber(identity.UserID)
	if ms.Player == 0 {
		ms.refuse(network.CloseForbidden, "not a participant")
		return nil, game.ErrNotParticipant
	}
	if err := ms.machine.ChangeState(state.Authorized); err != nil {
		return nil, err
	}

	if _, err := m.Store.UpdateMatch(ctx, matchID, func(j game.Journal, gm *game.Match) error {
		m.Engine.Initialize(gm)
		return nil
	}); err != nil {
		ms.refuse(websocketInternalError, "internal error")
		return nil, err
	}

	if err := ms.machine.ChangeState(state.Active); err != nil {
		return nil, err
	}
	if err := ms.PushState(ctx); err != nil {
		ms.Close()
		return nil, err
	}
	logger.Log.Infof("Session %s: user %d joined match %s as player %d", ms.ID, ms.UserID, matchID, ms.Player)
	return ms, nil
}

// websocketInternalError is the RFC 6455 close code for server failures.
const websocketInternalError = 1011

func (ms *MatchSession) refuse(code int, reason string) {
	logger.Log.Infof("Session %s refused for match %s: %s", ms.ID, ms.MatchID, reason)
	ms.Conn.CloseWithCode(code, reason)
	ms.machine.ChangeState(state.Closed)
}

// activate runs on entering Active.
func (ms *MatchSession) activate() {
	m := ms.m
	m.Sessions.Add(ms.Session)
	m.Hub.Join(ms.MatchID, ms)
	m.Monitor.IncOnlineSessions()

	interval := m.WatchdogInterval
	if interval <= 0 {
		interval = DefaultWatchdogInterval
	}
	ms.timerID = m.Timers.Every(interval, ms.watch)
}

// release runs on entering Closed.
func (ms *MatchSession) release() {
	m := ms.m
	if ms.timerID != 0 {
		m.Timers.RemoveTimer(ms.timerID)
		m.Hub.Leave(ms.MatchID, ms.ID)
		m.Sessions.Remove(ms.ID)
		m.Monitor.DecOnlineSessions()
	}
	close(ms.closed)
}

// Close detaches the session and closes its connection. Safe to repeat.
func (ms *MatchSession) Close() error {
	if err := ms.machine.ChangeState(state.Closed); err == nil {
		logger.Log.Infof("Session %s left match %s", ms.ID, ms.MatchID)
	}
	return ms.Conn.Close()
}

// Done is closed once the session reached Closed.
func (ms *MatchSession) Done() <-chan struct{} {
	return ms.closed
}

// Serve reads and handles messages until the connection fails, then closes
// the session.
func (ms *MatchSession) Serve(ctx context.Context) {
	defer ms.Close()
	for {
		data, err := ms.Conn.ReadMessage()
		if errors.Is(err, network.ErrBinaryFrame) {
			ms.sendError(network.CodeInvalidPayload, "binary frames are not supported")
			continue
		}
		if err != nil {
			return
		}
		ms.HandleMessage(ctx, data)
	}
}

// HandleMessage processes one inbound frame. Errors are reported to this
// session only; successful changes are broadcast to the match group.
func (ms *MatchSession) HandleMessage(ctx context.Context, data []byte) {
	start := time.Now()
	defer func() { ms.m.Monitor.ObserveMessageLatency(time.Since(start)) }()
	ms.touch()

	msg, err := network.DecodeInbound(data)
	if errors.Is(err, network.ErrInvalidJSON) {
		ms.sendError(network.CodeInvalidJSON, "invalid JSON")
		return
	}
	if err != nil {
		ms.sendError(network.CodeInvalidPayload, "invalid payload")
		return
	}
	ms.m.Monitor.IncMessagesReceived(msg.Type)

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	fired, err := CheckTimeout(ctx, ms.m.Store, ms.m.Engine, ms.MatchID)
	if err != nil {
		ms.reportError(err)
		return
	}
	if fired {
		ms.m.Monitor.IncForfeits("session")
		ms.broadcast()
		return
	}

	switch msg.Type {
	case network.MsgTypeSync:
		if err := ms.PushState(ctx); err != nil {
			ms.reportError(err)
		}
	case network.MsgTypePlayCharacter:
		ms.apply(ctx, func(j game.Journal, m *game.Match) error {
			return ms.m.Engine.PlayCharacter(ctx, j, m, ms.Player, msg.CardID, msg.Pos)
		})
	case network.MsgTypePlaceTrap:
		ms.apply(ctx, func(j game.Journal, m *game.Match) error {
			return ms.m.Engine.PlaceTrap(ctx, j, m, ms.Player, msg.TrapID, msg.Pos)
		})
	default:
		ms.sendError(network.CodeUnsupported, "unsupported message type")
	}
}

func (ms *MatchSession) apply(ctx context.Context, fn persistence.MatchFunc) {
	if _, err := ms.m.Store.UpdateMatch(ctx, ms.MatchID, fn); err != nil {
		ms.reportError(err)
		return
	}
	ms.broadcast()
}

// watch is the per-connection watchdog tick.
func (ms *MatchSession) watch() {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	fired, err := CheckTimeout(ctx, ms.m.Store, ms.m.Engine, ms.MatchID)
	if err != nil {
		logger.Log.Warnf("Session %s watchdog: %v", ms.ID, err)
		return
	}
	if fired {
		ms.m.Monitor.IncForfeits("session")
		ms.broadcast()
	}
}

func (ms *MatchSession) broadcast() {
	if err := ms.m.Broadcaster.BroadcastToMatch(ms.MatchID); err != nil {
		logger.Log.Warnf("Broadcast for match %s failed: %v", ms.MatchID, err)
	}
}

// PushState sends this participant its own projection of the match.
func (ms *MatchSession) PushState(ctx context.Context) error {
	match, err := ms.m.Store.LoadMatch(ctx, ms.MatchID)
	if err != nil {
		return err
	}
	players, err := LoadPlayers(ctx, ms.m.Store, match)
	if err != nil {
		return err
	}
	return ms.Send(network.NewState(ms.m.Projector.Project(match, ms.Player, players)))
}

func (ms *MatchSession) reportError(err error) {
	if ve, ok := game.AsValidation(err); ok {
		ms.m.Monitor.IncValidationFailures(ve.Code)
		ms.sendError(ve.Code, ve.Message)
		return
	}
	if errors.Is(err, game.ErrNotFound) {
		ms.m.Monitor.IncValidationFailures(game.CodeNotFound)
		ms.sendError(game.CodeNotFound, "match not found")
		return
	}
	logger.Log.Errorf("Session %s in match %s: %v", ms.ID, ms.MatchID, err)
	ms.sendError(network.CodeInternal, "internal error")
}

func (ms *MatchSession) sendError(code, message string) {
	if err := ms.Send(network.NewError(code, message)); err != nil {
		logger.Log.Warnf("Session %s: send error reply: %v", ms.ID, err)
	}
}

// CheckTimeout runs the forfeit check on matchID under its lock and reports
// whether the match was forfeited by this call.
func CheckTimeout(ctx context.Context, store persistence.Store, engine *game.Engine, matchID string) (bool, error) {
	var fired bool
	_, err := store.UpdateMatch(ctx, matchID, func(j game.Journal, m *game.Match) error {
		var err error
		fired, err = engine.CheckTimeout(ctx, j, m)
		return err
	})
	if err != nil {
		return false, err
	}
	if fired {
		logger.Log.Infof("Match %s forfeited on timeout", matchID)
	}
	return fired, nil
}

// LoadPlayers resolves both participants' usernames.
func LoadPlayers(ctx context.Context, store persistence.Store, m *game.Match) (view.Players, error) {
	users, err := store.Users(ctx, m.Player1ID, m.Player2ID)
	if err != nil {
		return view.Players{}, err
	}
	return view.Players{
		P1: view.Player{ID: m.Player1ID, Username: users[m.Player1ID].Username},
		P2: view.Player{ID: m.Player2ID, Username: users[m.Player2ID].Username},
	}, nil
}
