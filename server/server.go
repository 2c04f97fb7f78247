package server

import (
	"context"
	"encoding/json"
	"expvar"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/wfunc/triad/auth"
	"github.com/wfunc/triad/game"
	"github.com/wfunc/triad/logger"
	"github.com/wfunc/triad/matchmaking"
	"github.com/wfunc/triad/monitor"
	"github.com/wfunc/triad/network"
	"github.com/wfunc/triad/session"
	"github.com/wfunc/triad/view"
)

const (
	pingInterval  = 30 * time.Second
	recentMatches = 20
	apiTimeout    = 10 * time.Second
)

// Options 服务依赖
type Options struct {
	Mediator    *session.Mediator
	Matchmaking *matchmaking.Service
	Verifier    *auth.Verifier
	Monitor     *monitor.Monitor
}

type GameServer struct {
	addr        string
	upgrader    websocket.Upgrader
	mediator    *session.Mediator
	matchmaking *matchmaking.Service
	verifier    *auth.Verifier
	monitor     *monitor.Monitor

	httpServer   *http.Server
	mutex        sync.Mutex
	conns        sync.WaitGroup
	shutdownChan chan struct{}
}

func NewGameServer(addr string, opts Options) *GameServer {
	return &GameServer{
		addr:         addr,
		mediator:     opts.Mediator,
		matchmaking:  opts.Matchmaking,
		verifier:     opts.Verifier,
		monitor:      opts.Monitor,
		shutdownChan: make(chan struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // 允许所有跨域请求
			},
		},
	}
}

// Handler builds the HTTP routes.
func (s *GameServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws/match/{id}", s.handleWebSocket)
	mux.HandleFunc("POST /api/queue/join", s.authed(s.handleQueueJoin))
	mux.HandleFunc("POST /api/queue/leave", s.authed(s.handleQueueLeave))
	mux.HandleFunc("GET /api/queue/status", s.authed(s.handleQueueStatus))
	mux.HandleFunc("GET /api/match/{id}/hand", s.authed(s.handleHand))
	mux.HandleFunc("GET /api/matches", s.authed(s.handleMatches))
	if s.monitor != nil {
		mux.Handle("GET /metrics", s.monitor.Handler())
		mux.Handle("GET /debug/vars", expvar.Handler())
	}
	return mux
}

func (s *GameServer) Start() error {
	s.mutex.Lock()
	s.httpServer = &http.Server{Addr: s.addr, Handler: s.Handler()}
	srv := s.httpServer
	s.mutex.Unlock()

	logger.Log.Infof("Game server listening on %s", s.addr)
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests, closes live match sessions and waits
// for their handlers to return.
func (s *GameServer) Shutdown(ctx context.Context) error {
	s.mutex.Lock()
	srv := s.httpServer
	select {
	case <-s.shutdownChan:
	default:
		close(s.shutdownChan)
	}
	s.mutex.Unlock()

	var err error
	if srv != nil {
		err = srv.Shutdown(ctx)
	}
	s.mediator.Sessions.CloseAll()

	done := make(chan struct{})
	go func() {
		s.conns.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return err
}

func (s *GameServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	select {
	case <-s.shutdownChan:
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	default:
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Log.Infof("Failed to upgrade connection: %v", err)
		return
	}
	s.conns.Add(1)
	defer s.conns.Done()

	wsConn := network.NewWSConnection(conn)
	var identity *auth.Identity
	if id, err := s.verifier.FromRequest(r); err == nil {
		identity = &id
	} else {
		logger.Log.Infof("Connection from %s not authenticated: %v", wsConn.RemoteAddr(), err)
	}

	ms, err := s.mediator.Open(r.Context(), uuid.New().String(), wsConn, identity, r.PathValue("id"))
	if err != nil {
		return
	}
	logger.Log.Infof("New connection from %s, session ID: %s", wsConn.RemoteAddr(), ms.GetID())
	wsConn.SetHeartbeat(pingInterval)

	// 请求上下文在升级后不再可靠，会话使用独立的上下文
	ms.Serve(context.Background())
	logger.Log.Infof("Connection closed from %s, session ID: %s", wsConn.RemoteAddr(), ms.GetID())
}

type identityHandler func(w http.ResponseWriter, r *http.Request, id auth.Identity)

func (s *GameServer) authed(next identityHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := s.verifier.FromRequest(r)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthenticated")
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), apiTimeout)
		defer cancel()
		next(w, r.WithContext(ctx), id)
	}
}

func (s *GameServer) handleQueueJoin(w http.ResponseWriter, r *http.Request, id auth.Identity) {
	res, err := s.matchmaking.Join(r.Context(), id.UserID)
	if err != nil {
		s.internalError(w, "queue join", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *GameServer) handleQueueLeave(w http.ResponseWriter, r *http.Request, id auth.Identity) {
	res, err := s.matchmaking.Leave(r.Context(), id.UserID)
	if err != nil {
		s.internalError(w, "queue leave", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *GameServer) handleQueueStatus(w http.ResponseWriter, r *http.Request, id auth.Identity) {
	res, err := s.matchmaking.Status(r.Context(), id.UserID)
	if err != nil {
		s.internalError(w, "queue status", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *GameServer) handleHand(w http.ResponseWriter, r *http.Request, id auth.Identity) {
	hand, err := s.matchmaking.Hand(r.Context(), r.PathValue("id"), id.UserID)
	switch {
	case errors.Is(err, matchmaking.ErrForbidden):
		writeError(w, http.StatusForbidden, "not a participant")
	case errors.Is(err, game.ErrNotFound):
		writeError(w, http.StatusNotFound, "match not found")
	case err != nil:
		s.internalError(w, "hand", err)
	default:
		writeJSON(w, http.StatusOK, hand)
	}
}

// handleMatches 最近对局，按查看者视角投影
func (s *GameServer) handleMatches(w http.ResponseWriter, r *http.Request, id auth.Identity) {
	ctx := r.Context()
	matches, err := s.mediator.Store.RecentMatches(ctx, id.UserID, recentMatches)
	if err != nil {
		s.internalError(w, "recent matches", err)
		return
	}

	out := make([]view.View, 0, len(matches))
	for _, m := range matches {
		players, err := session.LoadPlayers(ctx, s.mediator.Store, m)
		if err != nil {
			s.internalError(w, "recent matches", err)
			return
		}
		out = append(out, s.mediator.Projector.Project(m, m.PlayerNumber(id.UserID), players))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"matches": out})
}

func (s *GameServer) internalError(w http.ResponseWriter, what string, err error) {
	logger.Log.Errorf("%s: %v", what, err)
	writeError(w, http.StatusInternalServerError, "internal error")
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Log.Warnf("write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
