package invalidation

import (
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/happydiving/pricing-engine/internal/metrics"
	"github.com/happydiving/pricing-engine/pkg/model"
)

const (
	SourceAPI      = "api"
	SourceNATS     = "nats"
	SourceRabbitMQ = "rabbitmq"
	SourceWS       = "websocket"

	outcomeOK        = "ok"
	outcomeMalformed = "malformed"
	outcomeRejected  = "rejected"
)

// ErrMalformed marks a message that could not be decoded.
var ErrMalformed = errors.New("malformed invalidation message")

// Invalidator is the part of the cache the handler drives.
type Invalidator interface {
	Invalidate(namespace, key string) error
	InvalidateNamespace(namespace string) error
	InvalidateAll()
	InvalidatePage(slug string)
}

// message accepts both explicit requests and CMS publish events, which
// carry only the slug of the page that changed.
type message struct {
	model.InvalidationRequest
	Slug string `json:"slug"`
}

// Handler applies invalidation requests from every source.
type Handler struct {
	cache  Invalidator
	logger *zap.Logger
}

func NewHandler(c Invalidator, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{cache: c, logger: logger}
}

// Apply drops what req names: everything when Namespace is empty, the
// whole namespace when Key is empty, otherwise the single key.
func (h *Handler) Apply(source string, req model.InvalidationRequest) error {
	var err error
	switch {
	case req.Namespace == "":
		h.cache.InvalidateAll()
	case req.Key == "":
		err = h.cache.InvalidateNamespace(req.Namespace)
	default:
		err = h.cache.Invalidate(req.Namespace, req.Key)
	}
	if err != nil {
		metrics.IncInvalidation(source, outcomeRejected)
		h.logger.Warn("invalidation.rejected",
			zap.String("source", source),
			zap.String("namespace", req.Namespace),
			zap.Error(err))
		return err
	}

	metrics.IncInvalidation(source, outcomeOK)
	h.logger.Info("invalidation.applied",
		zap.String("source", source),
		zap.String("namespace", req.Namespace),
		zap.String("key", req.Key))
	return nil
}

// HandleMessage decodes a raw message body and applies it.
func (h *Handler) HandleMessage(source string, data []byte) error {
	var msg message
	if err := json.Unmarshal(data, &msg); err != nil {
		metrics.IncInvalidation(source, outcomeMalformed)
		h.logger.Warn("invalidation.malformed", zap.String("source", source), zap.Error(err))
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	if msg.Namespace == "" && msg.Slug != "" {
		h.cache.InvalidatePage(msg.Slug)
		metrics.IncInvalidation(source, outcomeOK)
		return nil
	}
	return h.Apply(source, msg.InvalidationRequest)
}
