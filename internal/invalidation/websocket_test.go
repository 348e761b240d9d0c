package invalidation

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// feedServer pushes messages[i] on the i-th connection. Every connection but
// the last is closed by the server right after its message.
func feedServer(t *testing.T, messages ...string) (string, *atomic.Int32) {
	t.Helper()
	var conns atomic.Int32
	upgrader := websocket.Upgrader{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		n := int(conns.Add(1))
		if n <= len(messages) {
			_ = conn.WriteMessage(websocket.TextMessage, []byte(messages[n-1]))
		}
		if n < len(messages) {
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "restart"))
			return
		}
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http"), &conns
}

func TestWSListener_AppliesMessages(t *testing.T) {
	url, _ := feedServer(t, `{"namespace":"pages","key":"about"}`)
	c := seededCache()
	l := NewWSListener(url, NewHandler(c, zap.NewNop()), zap.NewNop())
	t.Cleanup(func() { _ = l.Close() })

	require.NoError(t, l.Connect(context.Background()))
	assert.True(t, l.IsConnected())

	assert.Eventually(t, func() bool {
		_, ok := c.Pages.Get("about")
		return !ok
	}, time.Second, 10*time.Millisecond)
	_, ok := c.Pages.Get("home")
	assert.True(t, ok)
}

func TestWSListener_ReconnectsAfterServerClose(t *testing.T) {
	url, conns := feedServer(t, `{"slug":"about"}`, `{"namespace":"content_types"}`)
	c := seededCache()
	l := NewWSListener(url, NewHandler(c, zap.NewNop()), zap.NewNop())
	l.reconnectDelay = 10 * time.Millisecond
	t.Cleanup(func() { _ = l.Close() })

	require.NoError(t, l.Connect(context.Background()))

	assert.Eventually(t, func() bool {
		return conns.Load() >= 2 && c.ContentTypes.Len() == 0
	}, 2*time.Second, 10*time.Millisecond)
	_, ok := c.Pages.Get("about")
	assert.False(t, ok)
}

func TestWSListener_CloseStopsReconnecting(t *testing.T) {
	url, conns := feedServer(t, `{}`, `{}`)
	l := NewWSListener(url, NewHandler(seededCache(), zap.NewNop()), zap.NewNop())
	l.reconnectDelay = 50 * time.Millisecond

	require.NoError(t, l.Connect(context.Background()))
	require.NoError(t, l.Close())
	assert.False(t, l.IsConnected())

	time.Sleep(150 * time.Millisecond)
	assert.LessOrEqual(t, conns.Load(), int32(1))
	assert.ErrorIs(t, l.Connect(context.Background()), errListenerClosed)
}

func TestWSListener_DialFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	l := NewWSListener("ws"+strings.TrimPrefix(srv.URL, "http"), NewHandler(seededCache(), nil), zap.NewNop())
	err := l.Connect(context.Background())
	require.Error(t, err)
	assert.False(t, l.IsConnected())
}

func TestWSListener_NilLogger(t *testing.T) {
	url, _ := feedServer(t, `{"namespace":"content_types"}`)
	c := seededCache()
	l := NewWSListener(url, NewHandler(c, nil), nil)
	t.Cleanup(func() { _ = l.Close() })

	require.NoError(t, l.Connect(context.Background()))
	assert.Eventually(t, func() bool { return c.ContentTypes.Len() == 0 }, time.Second, 10*time.Millisecond)
}
