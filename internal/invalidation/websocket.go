package invalidation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var errListenerClosed = errors.New("websocket listener closed")

// WSListener reads CMS publish events from a WebSocket feed and reconnects
// whenever the feed drops.
type WSListener struct {
	url            string
	handler        *Handler
	logger         *zap.Logger
	reconnectDelay time.Duration

	mu        sync.Mutex
	conn      *websocket.Conn
	connected bool
	done      chan struct{}
	closeOnce sync.Once
}

func NewWSListener(url string, handler *Handler, logger *zap.Logger) *WSListener {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WSListener{
		url:            url,
		handler:        handler,
		logger:         logger,
		reconnectDelay: 5 * time.Second,
		done:           make(chan struct{}),
	}
}

// Connect dials the feed and starts the read loop.
func (l *WSListener) Connect(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, l.url, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", l.url, err)
	}

	l.mu.Lock()
	if l.isClosed() {
		l.mu.Unlock()
		_ = conn.Close()
		return errListenerClosed
	}
	l.conn = conn
	l.connected = true
	l.mu.Unlock()

	l.logger.Info("connected to CMS event feed", zap.String("url", l.url))
	go l.readLoop(conn)
	return nil
}

func (l *WSListener) IsConnected() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.connected
}

func (l *WSListener) readLoop(conn *websocket.Conn) {
	defer func() {
		l.mu.Lock()
		if l.conn == conn {
			l.connected = false
		}
		l.mu.Unlock()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if l.isClosed() {
				return
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				l.logger.Info("CMS event feed closed by peer")
			} else {
				l.logger.Warn("CMS event feed read failed", zap.Error(err))
			}
			l.scheduleReconnect()
			return
		}
		_ = l.handler.HandleMessage(SourceWS, data)
	}
}

func (l *WSListener) scheduleReconnect() {
	l.logger.Info("scheduling CMS feed reconnect", zap.Duration("delay", l.reconnectDelay))

	time.AfterFunc(l.reconnectDelay, func() {
		if l.isClosed() {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := l.Connect(ctx); err != nil {
			if errors.Is(err, errListenerClosed) {
				return
			}
			l.logger.Error("CMS feed reconnect failed", zap.Error(err))
			l.scheduleReconnect()
		}
	})
}

func (l *WSListener) isClosed() bool {
	select {
	case <-l.done:
		return true
	default:
		return false
	}
}

// Close stops reconnecting and closes the current connection.
func (l *WSListener) Close() error {
	l.closeOnce.Do(func() { close(l.done) })

	l.mu.Lock()
	defer l.mu.Unlock()
	l.connected = false
	if l.conn == nil {
		return nil
	}
	err := l.conn.Close()
	l.conn = nil
	return err
}
