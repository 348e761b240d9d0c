package invalidation

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Consumer consumes invalidation messages from a RabbitMQ queue.
type Consumer struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	queue   string
	handler *Handler
	logger  *zap.Logger
	done    chan struct{}
}

// NewConsumer dials RabbitMQ and opens a channel.
func NewConsumer(url, queue string, handler *Handler, logger *zap.Logger) (*Consumer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	return &Consumer{
		conn:    conn,
		channel: channel,
		queue:   queue,
		handler: handler,
		logger:  logger,
		done:    make(chan struct{}),
	}, nil
}

// Start declares the queue and consumes it in the background.
func (c *Consumer) Start(ctx context.Context) error {
	if _, err := c.channel.QueueDeclare(c.queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare queue %s: %w", c.queue, err)
	}

	msgs, err := c.channel.Consume(c.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to consume from %s: %w", c.queue, err)
	}

	c.logger.Info("Started consuming from RabbitMQ", zap.String("queue", c.queue))
	go c.consume(ctx, msgs)
	return nil
}

// consume acks applied messages. Anything the handler rejects is
// permanently bad, so it is nacked without requeue.
func (c *Consumer) consume(ctx context.Context, msgs <-chan amqp.Delivery) {
	for {
		select {
		case <-c.done:
			return
		case <-ctx.Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				c.logger.Warn("Invalidation channel closed")
				return
			}

			c.logger.Debug("Received invalidation message", zap.String("body", string(msg.Body)))

			if err := c.handler.HandleMessage(SourceRabbitMQ, msg.Body); err != nil {
				msg.Nack(false, false)
				continue
			}
			msg.Ack(false)
		}
	}
}

// Close stops consuming and closes the connection.
func (c *Consumer) Close() error {
	close(c.done)

	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
