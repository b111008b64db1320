package websocket

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fortuna/iplstats/internal/matches"
	"github.com/fortuna/iplstats/internal/store"
)

type fixedSnapshot struct{ snap *store.Snapshot }

func (f fixedSnapshot) Current() *store.Snapshot { return f.snap }

func dial(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/dataset"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, body, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg Message
	require.NoError(t, json.Unmarshal(body, &msg))
	return msg
}

func TestServer_BroadcastsReloads(t *testing.T) {
	current := &store.Snapshot{Fingerprint: "v1", Matches: make([]matches.Match, 2), Teams: []string{"A", "B"}}
	s := NewServer(fixedSnapshot{snap: current})
	go s.hub.Run()
	defer s.hub.Stop()

	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	conn := dial(t, ts)

	first := readMessage(t, conn)
	assert.Equal(t, TypeDatasetCurrent, first.Type)
	assert.Equal(t, "v1", first.Data.Fingerprint)
	assert.Equal(t, 2, first.Data.Matches)

	require.Eventually(t, func() bool { return s.hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	reloaded := &store.Snapshot{Fingerprint: "v2", Matches: make([]matches.Match, 5), Teams: []string{"A", "B", "C"}}
	require.NoError(t, s.PublishDatasetLoaded(context.Background(), reloaded))

	next := readMessage(t, conn)
	assert.Equal(t, TypeDatasetLoaded, next.Type)
	assert.Equal(t, "v2", next.Data.Fingerprint)
	assert.Equal(t, 5, next.Data.Matches)
	assert.Equal(t, 3, next.Data.Teams)
}

func TestServer_DisconnectUnregisters(t *testing.T) {
	s := NewServer(nil)
	go s.hub.Run()
	defer s.hub.Stop()

	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	conn := dial(t, ts)
	require.Eventually(t, func() bool { return s.hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	conn.Close()
	assert.Eventually(t, func() bool { return s.hub.ClientCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestServer_Health(t *testing.T) {
	s := NewServer(nil)
	go s.hub.Run()
	defer s.hub.Stop()

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/ws/health", nil))

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.EqualValues(t, 0, body["clients"])
}
