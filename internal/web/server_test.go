package web

import (
	"bytes"
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

	"github.com/dmitrijs2005/buddyinbox/internal/clock"
	"github.com/dmitrijs2005/buddyinbox/internal/cloud"
	"github.com/dmitrijs2005/buddyinbox/internal/coordinator"
	"github.com/dmitrijs2005/buddyinbox/internal/localstore"
	"github.com/dmitrijs2005/buddyinbox/internal/logging"
	"github.com/dmitrijs2005/buddyinbox/internal/models"
	"github.com/dmitrijs2005/buddyinbox/internal/presence"
)

var epoch = time.UnixMilli(1_700_000_000_000)

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	store := localstore.NewStore(localstore.NewMemoryRepository(), logging.Nop())
	c := coordinator.New(store, cloud.LocalOnly{}, coordinator.Options{
		Clock:    clock.NewFake(epoch),
		Logger:   logging.Nop(),
		Presence: presence.Options{HeartbeatInterval: time.Hour},
		BaseURL:  "http://localhost:8080/",
	})
	t.Cleanup(c.Close)
	require.NoError(t, c.Load(context.Background()))

	s := New(c, logging.Nop())
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		s.Close()
		ts.Close()
	})
	return s, ts
}

func do(t *testing.T, ts *httptest.Server, method, path string, body any) *http.Response {
	t.Helper()
	var rdr *bytes.Reader
	switch b := body.(type) {
	case nil:
		rdr = bytes.NewReader(nil)
	case []byte:
		rdr = bytes.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		rdr = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, ts.URL+path, rdr)
	require.NoError(t, err)
	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestAPI_LoginSendRead(t *testing.T) {
	_, ts := newTestServer(t)

	resp := do(t, ts, http.MethodPost, "/api/login", nameRequest{Name: "ann"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	s := decode[models.Snapshot](t, resp)
	assert.Equal(t, "ann", s.CurrentUser)
	assert.True(t, s.Online)

	resp = do(t, ts, http.MethodPost, "/api/messages", sendRequest{Body: "<b>hi</b>"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	s = decode[models.Snapshot](t, resp)
	require.Len(t, s.Conversation, 1)
	assert.Equal(t, "<b>hi</b>", s.Conversation[0].Body)

	resp = do(t, ts, http.MethodPost, "/api/conversation/read", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	msgs := decode[[]models.Message](t, resp)
	require.Len(t, msgs, 1)

	resp = do(t, ts, http.MethodGet, "/api/state", nil)
	s = decode[models.Snapshot](t, resp)
	assert.Len(t, s.Inbox, 1)
	assert.Len(t, s.Outbox, 1)
}

func TestAPI_Validation(t *testing.T) {
	_, ts := newTestServer(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{"invalid json", http.MethodPost, "/api/login", []byte("{"), http.StatusBadRequest},
		{"blank name", http.MethodPost, "/api/login", nameRequest{Name: "  "}, http.StatusBadRequest},
		{"send logged out", http.MethodPost, "/api/messages", sendRequest{Body: "x"}, http.StatusBadRequest},
		{"empty pin", http.MethodPost, "/api/unlock", pinRequest{PIN: " "}, http.StatusBadRequest},
		{"bad link", http.MethodPost, "/api/room", roomRequest{Room: "http://x/?other=1"}, http.StatusBadRequest},
		{"bad backup", http.MethodPost, "/api/import", []byte("not json"), http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := do(t, ts, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
}

func TestAPI_LockFlow(t *testing.T) {
	_, ts := newTestServer(t)
	do(t, ts, http.MethodPost, "/api/login", nameRequest{Name: "ann"})
	do(t, ts, http.MethodPost, "/api/messages", sendRequest{Body: "secret"})

	resp := do(t, ts, http.MethodPost, "/api/lock", nil)
	s := decode[models.Snapshot](t, resp)
	assert.True(t, s.Locked)
	assert.Equal(t, models.OverlaySet, s.Overlay)
	assert.Empty(t, s.Conversation)

	resp = do(t, ts, http.MethodPost, "/api/messages", sendRequest{Body: "more"})
	assert.Equal(t, http.StatusLocked, resp.StatusCode)
	resp = do(t, ts, http.MethodGet, "/api/export", nil)
	assert.Equal(t, http.StatusLocked, resp.StatusCode)

	resp = do(t, ts, http.MethodPost, "/api/unlock", pinRequest{PIN: "1234"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, map[string]string{"result": "set"}, decode[map[string]string](t, resp))

	do(t, ts, http.MethodPost, "/api/lock", nil)
	resp = do(t, ts, http.MethodPost, "/api/unlock", pinRequest{PIN: "0000"})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = do(t, ts, http.MethodPost, "/api/unlock", pinRequest{PIN: "1234"})
	assert.Equal(t, map[string]string{"result": "unlocked"}, decode[map[string]string](t, resp))
}

func TestAPI_DeleteAndClear(t *testing.T) {
	_, ts := newTestServer(t)
	do(t, ts, http.MethodPost, "/api/login", nameRequest{Name: "ann"})
	do(t, ts, http.MethodPost, "/api/messages", sendRequest{Body: "one"})
	do(t, ts, http.MethodPost, "/api/messages", sendRequest{Body: "two"})

	resp := do(t, ts, http.MethodDelete, "/api/conversation", nil)
	assert.Equal(t, map[string]int{"removed": 2}, decode[map[string]int](t, resp))

	do(t, ts, http.MethodPost, "/api/messages", sendRequest{Body: "three"})
	resp = do(t, ts, http.MethodDelete, "/api/messages", nil)
	assert.Equal(t, map[string]int{"removed": 1}, decode[map[string]int](t, resp))
}

func TestAPI_RemoveUserAndLogout(t *testing.T) {
	_, ts := newTestServer(t)
	do(t, ts, http.MethodPost, "/api/login", nameRequest{Name: "ann"})

	resp := do(t, ts, http.MethodPost, "/api/logout", nil)
	s := decode[models.Snapshot](t, resp)
	assert.Equal(t, "", s.CurrentUser)
	assert.Equal(t, []string{"ann"}, s.Users)

	resp = do(t, ts, http.MethodDelete, "/api/users/ann", nil)
	s = decode[models.Snapshot](t, resp)
	assert.Empty(t, s.Users)
}

func TestAPI_Rooms(t *testing.T) {
	_, ts := newTestServer(t)

	resp := do(t, ts, http.MethodGet, "/api/room", nil)
	assert.Equal(t, roomResponse{}, decode[roomResponse](t, resp))

	resp = do(t, ts, http.MethodPost, "/api/room", roomRequest{Room: "http://localhost:8080/?room=abc"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, roomResponse{Room: "abc", Link: "http://localhost:8080/?room=abc"}, decode[roomResponse](t, resp))

	resp = do(t, ts, http.MethodPost, "/api/room", roomRequest{})
	r := decode[roomResponse](t, resp)
	assert.Len(t, r.Room, 8)

	resp = do(t, ts, http.MethodDelete, "/api/room", nil)
	s := decode[models.Snapshot](t, resp)
	assert.Equal(t, "", s.Room)
}

func TestAPI_ExportImport(t *testing.T) {
	_, ts := newTestServer(t)
	do(t, ts, http.MethodPost, "/api/login", nameRequest{Name: "ann"})
	do(t, ts, http.MethodPost, "/api/messages", sendRequest{Body: "saved"})

	resp := do(t, ts, http.MethodGet, "/api/export", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, `attachment; filename="buddy-inbox-backup-1700000000000.json"`, resp.Header.Get("Content-Disposition"))
	var buf bytes.Buffer
	_, err := buf.ReadFrom(resp.Body)
	require.NoError(t, err)

	do(t, ts, http.MethodDelete, "/api/messages", nil)

	resp = do(t, ts, http.MethodPost, "/api/import", buf.Bytes())
	require.Equal(t, http.StatusOK, resp.StatusCode)
	s := decode[models.Snapshot](t, resp)
	require.Len(t, s.Conversation, 1)
	assert.Equal(t, "saved", s.Conversation[0].Body)
}

func TestIndexAndHealth(t *testing.T) {
	_, ts := newTestServer(t)

	resp := do(t, ts, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = do(t, ts, http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.HasPrefix(resp.Header.Get("Content-Type"), "text/html"))
}

func TestWS_PushesSnapshotOnChange(t *testing.T) {
	_, ts := newTestServer(t)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var first models.Snapshot
	require.NoError(t, conn.ReadJSON(&first))
	assert.Equal(t, "", first.CurrentUser)

	do(t, ts, http.MethodPost, "/api/login", nameRequest{Name: "ann"})

	// login may emit more than once (heartbeat, then login itself)
	for {
		var s models.Snapshot
		require.NoError(t, conn.ReadJSON(&s))
		if s.CurrentUser == "ann" {
			break
		}
	}
}

func TestWS_RejectsForeignOrigin(t *testing.T) {
	_, ts := newTestServer(t)
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"

	conn, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": {"http://evil.example"}})
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	assert.Nil(t, conn)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	conn, _, err = websocket.DefaultDialer.Dial(url, http.Header{"Origin": {ts.URL}})
	require.NoError(t, err)
	_ = conn.Close()
}

func TestSameOrigin(t *testing.T) {
	tests := []struct {
		name   string
		host   string
		origin string
		want   bool
	}{
		{"no origin", "localhost:8080", "", true},
		{"same host", "localhost:8080", "http://localhost:8080", true},
		{"case differs", "LocalHost:8080", "http://localhost:8080", true},
		{"other port", "localhost:8080", "http://localhost:9090", false},
		{"other host", "localhost:8080", "https://evil.example", false},
		{"null origin", "localhost:8080", "null", false},
		{"unparsable", "localhost:8080", "http://%zz", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/ws", nil)
			r.Host = tt.host
			if tt.origin != "" {
				r.Header.Set("Origin", tt.origin)
			}
			assert.Equal(t, tt.want, sameOrigin(r))
		})
	}
}

func TestServe_StopsOnCancel(t *testing.T) {
	s, _ := newTestServer(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, "127.0.0.1:0") }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return")
	}
}
