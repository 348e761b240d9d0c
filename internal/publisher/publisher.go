package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/happydiving/pricing-engine/internal/metrics"
	"github.com/happydiving/pricing-engine/pkg/logger"
	"github.com/happydiving/pricing-engine/pkg/model"
)

// msgPublisher is the part of nats.JetStreamContext the publisher uses.
type msgPublisher interface {
	PublishMsg(m *nats.Msg, opts ...nats.PubOpt) (*nats.PubAck, error)
}

// coreConn publishes through plain NATS when no stream captures the subject.
type coreConn struct{ nc *nats.Conn }

func (c coreConn) PublishMsg(m *nats.Msg, _ ...nats.PubOpt) (*nats.PubAck, error) {
	return nil, c.nc.PublishMsg(m)
}

// Publisher wraps a NATS connection and publishes service events as JSON.
type Publisher struct {
	nc      *nats.Conn
	js      msgPublisher
	service string
}

// New creates a Publisher. With jetStream set, messages go through
// JetStream and wait for a stream ack; otherwise they are fire-and-forget.
func New(nc *nats.Conn, service string, jetStream bool) (*Publisher, error) {
	if !jetStream {
		return &Publisher{nc: nc, js: coreConn{nc: nc}, service: service}, nil
	}
	js, err := nc.JetStream()
	if err != nil {
		return nil, fmt.Errorf("jetstream context: %w", err)
	}
	return &Publisher{nc: nc, js: js, service: service}, nil
}

// Publish marshals payload and publishes it on subject.
func (p *Publisher) Publish(_ context.Context, subject string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		logger.S().Errorw("publisher.marshal_failed", "subject", subject, "error", err)
		return err
	}

	msg := &nats.Msg{
		Subject: subject,
		Data:    data,
		Header: nats.Header{
			"source":       []string{p.service},
			"content_type": []string{"application/json"},
		},
	}

	start := time.Now()
	_, err = p.js.PublishMsg(msg)
	if err != nil {
		metrics.IncNATSPublishError(subject)
		logger.S().Warnw("publisher.publish_failed", "subject", subject, "error", err)
		return err
	}

	logger.S().Debugw("publisher.publish_success",
		"subject", subject,
		"latency", time.Since(start))
	return nil
}

// PublishCacheWarmed announces a finished warm-up run.
func (p *Publisher) PublishCacheWarmed(ctx context.Context, report model.WarmupReport) error {
	return p.Publish(ctx, model.EventCacheWarmed, report)
}

func (p *Publisher) Close() {
	if p.nc != nil && p.nc.IsConnected() {
		p.nc.Close()
	}
}
