package ws

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/immersivehub/orchestrator/internal/protocol"
)

// dialTestSocket opens a real websocket against a throwaway server; the
// server side just holds the connection open until the test ends.
func dialTestSocket(t *testing.T) *websocket.Conn {
	t.Helper()

	upg := websocket.Upgrader{}
	done := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upg.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		<-done
		_ = conn.Close()
	}))
	t.Cleanup(func() {
		close(done)
		srv.Close()
	})

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	return conn
}

func TestEmitAfterCloseReturnsError(t *testing.T) {
	conn := newWSConn(dialTestSocket(t))

	conn.Close()

	err := conn.Emit(protocol.EventSessionClosed, map[string]any{"sessionId": "s1"})
	require.ErrorIs(t, err, ErrConnClosed)

	// Replies after close are dropped, not delivered and not fatal.
	conn.reply(protocol.NewResponse(protocol.ErrOK, nil))

	// Close is idempotent.
	conn.Close()
}

// A force-close from another goroutine (login eviction) must not race the
// evicted connection's own sends.
func TestCloseDuringConcurrentEmits(t *testing.T) {
	conn := newWSConn(dialTestSocket(t))

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				_ = conn.Emit(protocol.EventMessageSent, map[string]any{"seq": j})
			}
		}()
	}

	conn.Close()
	wg.Wait()
}

func TestTrySendBackpressure(t *testing.T) {
	conn := newWSConn(dialTestSocket(t))
	defer conn.Close()

	// No write pump draining: the queue fills, then sends degrade to
	// ErrBackpressure instead of blocking.
	var err error
	for i := 0; i < cap(conn.send)+1; i++ {
		err = conn.trySend([]byte("{}"))
	}
	require.ErrorIs(t, err, ErrBackpressure)
}
