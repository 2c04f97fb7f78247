package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wfunc/triad/auth"
	"github.com/wfunc/triad/broadcast"
	"github.com/wfunc/triad/game"
	"github.com/wfunc/triad/matchmaking"
	"github.com/wfunc/triad/media"
	"github.com/wfunc/triad/models"
	"github.com/wfunc/triad/network"
	"github.com/wfunc/triad/persistence"
	"github.com/wfunc/triad/session"
	"github.com/wfunc/triad/timer"
	"github.com/wfunc/triad/view"
)

const secret = "test-secret"

type testEnv struct {
	store  *persistence.MemoryStore
	gs     *GameServer
	http   *httptest.Server
	issuer *auth.Issuer
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()
	store := persistence.NewMemoryStore()
	require.NoError(t, store.SeedCatalog(ctx,
		[]game.CharacterCard{
			{ID: 1, Name: "Knight", Stats: game.Stats{Up: 2, Down: 3, Left: 1, Right: 4}, Rarity: game.RarityCommon, Image: "cards/knight.png"},
		},
		[]game.TrapCard{{ID: 1, Name: "Pit", TrapType: game.TrapMinusUp, Value: 1, Rarity: game.RarityCommon}},
	))
	for _, name := range []string{"ana", "bo", "eve"} {
		require.NoError(t, store.CreateUser(ctx, &models.User{Username: name}))
	}
	store.SetDeck(1, []int{1}, []int{1})
	store.SetDeck(2, []int{1}, []int{1})

	clock := game.NewTurnClock(game.DefaultTurnBudget)
	hub := broadcast.NewHub(nil)
	timers := timer.NewTimerManager()
	t.Cleanup(timers.Stop)

	mm := matchmaking.NewService(store)
	gs := NewGameServer("", Options{
		Mediator: &session.Mediator{
			Store:       store,
			Engine:      game.NewEngine(store, clock),
			Projector:   view.NewProjector(clock, media.NewPrefixResolver("")),
			Hub:         hub,
			Broadcaster: hub,
			Timers:      timers,
			Sessions:    session.NewManager(),
		},
		Matchmaking: mm,
		Verifier:    auth.NewVerifier(secret, ""),
	})
	srv := httptest.NewServer(gs.Handler())
	t.Cleanup(srv.Close)
	return &testEnv{store: store, gs: gs, http: srv, issuer: auth.NewIssuer(secret, "", time.Hour)}
}

func (e *testEnv) token(t *testing.T, userID int64) string {
	t.Helper()
	tok, err := e.issuer.Issue(userID, "")
	require.NoError(t, err)
	return tok
}

func (e *testEnv) call(t *testing.T, method, path string, userID int64) (int, map[string]interface{}) {
	t.Helper()
	req, err := http.NewRequest(method, e.http.URL+path, nil)
	require.NoError(t, err)
	if userID != 0 {
		req.Header.Set("Authorization", "Bearer "+e.token(t, userID))
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return resp.StatusCode, body
}

func (e *testEnv) dial(t *testing.T, matchID, token string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(e.http.URL, "http") + "/ws/match/" + matchID
	if token != "" {
		url += "?token=" + token
	}
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readJSON(t *testing.T, conn *websocket.Conn) map[string]interface{} {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg map[string]interface{}
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestQueueEndpoints(t *testing.T) {
	e := newTestEnv(t)

	code, _ := e.call(t, http.MethodPost, "/api/queue/join", 0)
	assert.Equal(t, http.StatusUnauthorized, code)

	code, body := e.call(t, http.MethodPost, "/api/queue/join", 1)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "QUEUED", body["status"])

	_, body = e.call(t, http.MethodGet, "/api/queue/status", 1)
	assert.Equal(t, "QUEUED", body["status"])

	_, body = e.call(t, http.MethodPost, "/api/queue/join", 2)
	assert.Equal(t, "MATCH_FOUND", body["status"])
	matchID := body["match_id"].(string)

	_, body = e.call(t, http.MethodGet, "/api/queue/status", 1)
	assert.Equal(t, "MATCH_FOUND", body["status"])
	assert.Equal(t, matchID, body["match_id"])

	_, body = e.call(t, http.MethodPost, "/api/queue/leave", 3)
	assert.Equal(t, "LEFT", body["status"])
	_, body = e.call(t, http.MethodGet, "/api/queue/status", 3)
	assert.Equal(t, "IDLE", body["status"])

	code, body = e.call(t, http.MethodGet, "/api/match/"+matchID+"/hand", 1)
	require.Equal(t, http.StatusOK, code)
	chars := body["characters"].([]interface{})
	require.Len(t, chars, 1)
	assert.Equal(t, "/media/cards/knight.png", chars[0].(map[string]interface{})["image"])

	code, _ = e.call(t, http.MethodGet, "/api/match/"+matchID+"/hand", 3)
	assert.Equal(t, http.StatusForbidden, code)
	code, _ = e.call(t, http.MethodGet, "/api/match/nope/hand", 1)
	assert.Equal(t, http.StatusNotFound, code)

	code, body = e.call(t, http.MethodGet, "/api/matches", 2)
	require.Equal(t, http.StatusOK, code)
	matches := body["matches"].([]interface{})
	require.Len(t, matches, 1)
	assert.Equal(t, float64(2), matches[0].(map[string]interface{})["viewer"])
}

func TestWebSocketRefusals(t *testing.T) {
	e := newTestEnv(t)
	m, err := e.gs.matchmaking.CreateMatch(context.Background(), 1, 2)
	require.NoError(t, err)

	tests := []struct {
		name    string
		matchID string
		token   string
		code    int
	}{
		{"no token", m.ID, "", network.CloseUnauthenticated},
		{"bad token", m.ID, "garbage", network.CloseUnauthenticated},
		{"unknown match", "nope", e.token(t, 1), network.CloseNotFound},
		{"outsider", m.ID, e.token(t, 3), network.CloseForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn := e.dial(t, tt.matchID, tt.token)
			conn.SetReadDeadline(time.Now().Add(2 * time.Second))
			_, _, err := conn.ReadMessage()
			var ce *websocket.CloseError
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, tt.code, ce.Code)
		})
	}
}

func TestWebSocketMatchFlow(t *testing.T) {
	e := newTestEnv(t)
	m, err := e.gs.matchmaking.CreateMatch(context.Background(), 1, 2)
	require.NoError(t, err)

	c1 := e.dial(t, m.ID, e.token(t, 1))
	first := readJSON(t, c1)
	require.Equal(t, network.MsgTypeState, first["type"])
	c2 := e.dial(t, m.ID, e.token(t, 2))
	readJSON(t, c2)

	require.NoError(t, c1.WriteJSON(map[string]interface{}{"type": "PLAY_CHARACTER", "card_id": 1, "pos": 4}))
	for _, conn := range []*websocket.Conn{c1, c2} {
		msg := readJSON(t, conn)
		require.Equal(t, network.MsgTypeState, msg["type"])
		p := msg["payload"].(map[string]interface{})
		assert.Equal(t, float64(2), p["turn_player"])
	}

	require.NoError(t, c1.WriteJSON(map[string]interface{}{"type": "PLAY_CHARACTER", "card_id": 1, "pos": 0}))
	msg := readJSON(t, c1)
	assert.Equal(t, network.MsgTypeError, msg["type"])
	assert.Equal(t, game.CodeNotYourTurn, msg["code"])

	require.NoError(t, c2.WriteMessage(websocket.TextMessage, []byte("{oops")))
	msg = readJSON(t, c2)
	assert.Equal(t, "invalid JSON", msg["message"])

	require.NoError(t, c2.WriteJSON(map[string]string{"type": "SYNC"}))
	msg = readJSON(t, c2)
	assert.Equal(t, network.MsgTypeState, msg["type"])
}
