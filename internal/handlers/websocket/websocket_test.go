package handlers

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"ledroitcheck-service/internal/domain/identity"
	"ledroitcheck-service/internal/domain/jornada"
	wstypes "ledroitcheck-service/internal/domain/websocket"
	"ledroitcheck-service/internal/pkg/events"
	"ledroitcheck-service/internal/pkg/jwt"
	"ledroitcheck-service/internal/pkg/session"
	ws "ledroitcheck-service/internal/websocket"
	wsHandlers "ledroitcheck-service/internal/websocket/handler"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type sessions struct {
	mu       sync.Mutex
	records  map[string]*identity.Record
	activity []string
}

func (s *sessions) Read(_ context.Context, sid string) (*identity.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.records[sid], nil
}

func (s *sessions) Activity(sid, event string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activity = append(s.activity, sid+":"+event)
	return session.ActivityEvents[event]
}

func (s *sessions) seen() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.activity...)
}

type ledger struct{ idx *jornada.OpenIndex }

func (l ledger) GetOpen(context.Context, string) (*jornada.OpenIndex, error) { return l.idx, nil }

type rig struct {
	server *httptest.Server
	bus    *events.Bus
	jwt    *jwt.Manager
	store  *sessions
}

func newRig(t *testing.T) *rig {
	t.Helper()
	gin.SetMode(gin.TestMode)

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	mgr := jwt.Build(key, &key.PublicKey, jwt.Config{Issuer: "test", Audience: "test", TTL: time.Hour, KID: "k"})

	store := &sessions{records: map[string]*identity.Record{"sid-1": {Initials: "jp"}}}
	bus := events.NewBus(zap.NewNop())

	hub := ws.NewHub(mgr.Verifier, store, zap.NewNop())
	hub.RegisterHandler(wsHandlers.NewJornadaHandler(ledger{idx: &jornada.OpenIndex{UserKey: "JP", Company: "ACME", Folio: "F-1"}}))
	hub.RegisterHandler(wsHandlers.NewSessionHandler(store))
	detach := hub.Attach(bus)

	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	h := NewWebSocketHandler(hub, []string{"*"}, "ls_session", zap.NewNop())
	r := gin.New()
	r.GET("/ws", h.HandleConnection)
	r.GET("/stats", h.GetStats)
	srv := httptest.NewServer(r)

	t.Cleanup(func() {
		srv.Close()
		detach()
		cancel()
	})
	return &rig{server: srv, bus: bus, jwt: mgr, store: store}
}

type frame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func (r *rig) dial(t *testing.T, token string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(r.server.URL, "http") + "/ws?token=" + token
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	resp.Body.Close()
	t.Cleanup(func() { conn.Close() })

	f := read(t, conn)
	require.Equal(t, string(wstypes.EventTypeConnected), f.Type)
	return conn
}

func read(t *testing.T, conn *websocket.Conn) frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var f frame
	require.NoError(t, conn.ReadJSON(&f))
	return f
}

func TestWebSocket_RejectsMissingOrDeadSession(t *testing.T) {
	r := newRig(t)

	resp, err := http.Get(r.server.URL + "/ws")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	token, err := r.jwt.Generator.GenerateSocketToken("gone", "JP")
	require.NoError(t, err)
	resp, err = http.Get(r.server.URL + "/ws?token=" + token)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestWebSocket_ForwardsJornadaEvents(t *testing.T) {
	r := newRig(t)
	token, err := r.jwt.Generator.GenerateSocketToken("sid-1", "JP")
	require.NoError(t, err)
	conn := r.dial(t, token)

	other, err := events.New(jornada.EventOpened, "ZZ", jornada.ChangeEvent{Status: "open", UserKey: "ZZ"})
	require.NoError(t, err)
	require.NoError(t, r.bus.Publish(context.Background(), other))

	mine, err := events.New(jornada.EventOpened, "JP", jornada.ChangeEvent{Status: "open", UserKey: "JP", Folio: "F-1"})
	require.NoError(t, err)
	require.NoError(t, r.bus.Publish(context.Background(), mine))

	f := read(t, conn)
	assert.Equal(t, jornada.EventOpened, f.Type)
	var change jornada.ChangeEvent
	require.NoError(t, json.Unmarshal(f.Data, &change))
	assert.Equal(t, "JP", change.UserKey)
	assert.Equal(t, "F-1", change.Folio)
}

func TestWebSocket_StatusAndActivity(t *testing.T) {
	r := newRig(t)
	token, err := r.jwt.Generator.GenerateSessionToken("sid-1", "JP")
	require.NoError(t, err)
	conn := r.dial(t, token)

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "jornada:status"}))
	f := read(t, conn)
	assert.Equal(t, string(wstypes.EventTypeJornadaState), f.Type)
	var state jornada.ChangeEvent
	require.NoError(t, json.Unmarshal(f.Data, &state))
	assert.Equal(t, "open", state.Status)
	assert.Equal(t, "ACME", state.Company)

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "session:activity", "data": map[string]any{"event": "keydown"}}))
	require.NoError(t, conn.WriteJSON(map[string]any{"type": "ping"}))
	assert.Equal(t, string(wstypes.EventTypePong), read(t, conn).Type)
	assert.Equal(t, []string{"sid-1:keydown"}, r.store.seen())
}

func TestWebSocket_SessionClearedClosesSocket(t *testing.T) {
	r := newRig(t)
	token, err := r.jwt.Generator.GenerateSocketToken("sid-1", "JP")
	require.NoError(t, err)
	conn := r.dial(t, token)

	e, err := events.New(session.EventCleared, "sid-1", session.ClearedData{SessionID: "sid-1", Reason: session.ReasonInactivity, Redirect: true})
	require.NoError(t, err)
	require.NoError(t, r.bus.Publish(context.Background(), e))

	f := read(t, conn)
	assert.Equal(t, session.EventCleared, f.Type)
	var data session.ClearedData
	require.NoError(t, json.Unmarshal(f.Data, &data))
	assert.Equal(t, session.ReasonInactivity, data.Reason)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err = conn.ReadMessage()
	assert.Error(t, err, "server closes the socket after a clear")
}

func TestWebSocket_StatsCountConnections(t *testing.T) {
	r := newRig(t)
	token, err := r.jwt.Generator.GenerateSocketToken("sid-1", "JP")
	require.NoError(t, err)
	r.dial(t, token)

	type stats struct {
		Data struct {
			Total  int      `json:"total_connections"`
			User   int      `json:"user_connections"`
			Routed []string `json:"routed_events"`
		} `json:"data"`
	}
	var got stats
	require.Eventually(t, func() bool {
		resp, err := http.Get(r.server.URL + "/stats?usuario=jp")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		got = stats{}
		return json.NewDecoder(resp.Body).Decode(&got) == nil && got.Data.User == 1
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, 1, got.Data.Total)
	assert.Equal(t, []string{"jornada:status", "session:activity"}, got.Data.Routed)
}
