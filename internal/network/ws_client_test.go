package network

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"keyloop/internal/protocol"
)

// progressServer sends a status and one progress message per connection,
// then closes it.
func progressServer(t *testing.T, token string, conns *atomic.Int32) *httptest.Server {
	t.Helper()
	up := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+token {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		conn, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		conns.Add(1)

		status, _ := protocol.Encode(protocol.TypeStatus, protocol.StatusPayload{Running: true, Macro: "Farm"})
		progress, _ := protocol.Encode(protocol.TypeProgress, protocol.ProgressPayload{Event: "press", Macro: "Farm", Message: "Pressing E"})
		conn.WriteMessage(websocket.TextMessage, status)
		conn.WriteMessage(websocket.TextMessage, []byte(`garbage`))
		conn.WriteMessage(websocket.TextMessage, progress)
		conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		time.Sleep(50 * time.Millisecond)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestWSClientReceivesAndReconnects(t *testing.T) {
	var conns atomic.Int32
	srv := progressServer(t, "tok", &conns)

	c := NewWSClient(strings.TrimPrefix(srv.URL, "http://"), "tok", nil)
	c.ReconnectDelay = 10 * time.Millisecond

	var mu sync.Mutex
	var statuses []protocol.StatusPayload
	var progress []protocol.ProgressPayload
	c.OnStatus = func(st protocol.StatusPayload) {
		mu.Lock()
		statuses = append(statuses, st)
		mu.Unlock()
	}
	c.OnProgress = func(p protocol.ProgressPayload) {
		mu.Lock()
		progress = append(progress, p)
		mu.Unlock()
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	require.Eventually(t, func() bool { return conns.Load() >= 2 }, 2*time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(progress) >= 1
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, statuses)
	assert.True(t, statuses[0].Running)
	assert.Equal(t, "Farm", statuses[0].Macro)
	assert.Equal(t, "Pressing E", progress[0].Message)
}

func TestWSClientBadTokenKeepsRetrying(t *testing.T) {
	var conns atomic.Int32
	srv := progressServer(t, "tok", &conns)

	c := NewWSClient(strings.TrimPrefix(srv.URL, "http://"), "wrong", nil)
	c.ReconnectDelay = 5 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.NoError(t, c.Run(ctx))
	assert.Equal(t, int32(0), conns.Load())
	assert.False(t, c.IsConnected())
}
