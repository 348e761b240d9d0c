package invalidation

import (
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// Subscriber listens for invalidation messages on a NATS subject. Every
// instance holds its own cache, so it subscribes without a queue group.
type Subscriber struct {
	nc      *nats.Conn
	subject string
	handler *Handler
	logger  *zap.Logger
	sub     *nats.Subscription
}

func NewSubscriber(nc *nats.Conn, subject string, handler *Handler, logger *zap.Logger) *Subscriber {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Subscriber{nc: nc, subject: subject, handler: handler, logger: logger}
}

// Start subscribes and begins processing incoming messages.
func (s *Subscriber) Start() error {
	sub, err := s.nc.Subscribe(s.subject, s.handleMessage)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", s.subject, err)
	}
	s.sub = sub
	s.logger.Info("subscribed to NATS subject", zap.String("subject", s.subject))
	return nil
}

func (s *Subscriber) handleMessage(msg *nats.Msg) {
	start := time.Now()
	if err := s.handler.HandleMessage(SourceNATS, msg.Data); err != nil {
		return
	}
	s.logger.Debug("invalidation message handled",
		zap.String("subject", msg.Subject),
		zap.Duration("latency", time.Since(start)))
}

func (s *Subscriber) Close() error {
	if s.sub == nil {
		return nil
	}
	return s.sub.Unsubscribe()
}
