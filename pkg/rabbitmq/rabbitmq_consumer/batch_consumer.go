package rabbitmq_consumer

import (
	"context"
	"fmt"
	"time"

	"share-worker/pkg/rabbitmq/rabbitmq_common"

	amqp "github.com/rabbitmq/amqp091-go"
)

// BatchMessageHandler processes a batch and returns the delivery tags that must
// be redelivered and how. Every other delivery of the batch is acknowledged.
type BatchMessageHandler func(ctx context.Context, deliveries []amqp.Delivery) (failed map[uint64]Redelivery)

// BatchOptions controls how deliveries are grouped.
type BatchOptions struct {
	Size    int
	Timeout time.Duration
	// DrainTimeout bounds the final batch processed after shutdown is requested.
	DrainTimeout time.Duration
}

type BatchConsumer struct {
	baseConsumer *baseConsumer
	handler      BatchMessageHandler
	opts         BatchOptions
	settler      *settler
}

func NewBatchConsumer(cfg ConsumerConfig, handler BatchMessageHandler, opts BatchOptions, connManager *rabbitmq_common.ConnectionManager) (*BatchConsumer, error) {
	if handler == nil {
		return nil, fmt.Errorf("batch Consumer: message handler is required")
	}
	if opts.Size <= 0 {
		return nil, fmt.Errorf("batch Consumer: batch size must be positive, got %d", opts.Size)
	}
	if opts.Timeout <= 0 {
		return nil, fmt.Errorf("batch Consumer: batch timeout must be positive, got %s", opts.Timeout)
	}

	// the broker must be allowed to hand over a full batch
	if cfg.PrefetchCount < opts.Size {
		cfg.PrefetchCount = opts.Size
	}

	bc, err := newBaseConsumer(cfg, connManager)
	if err != nil {
		return nil, fmt.Errorf("batch Consumer: %w", err)
	}

	s := &settler{
		acker:      bc.channel,
		queueName:  bc.actualQueueName,
		retry:      cfg.EnableRetryMechanism,
		maxRetries: cfg.MaxRetries,
		dlqKey:     cfg.FinalDLQRoutingKey,
		logger:     bc.Logger,
	}
	if bc.finalDlxPublisher != nil {
		s.dlx = bc.finalDlxPublisher
	}

	return &BatchConsumer{
		baseConsumer: bc,
		handler:      handler,
		opts:         opts,
		settler:      s,
	}, nil
}

// StartConsuming accumulates deliveries into batches and blocks until ctx is
// cancelled or the connection is closed.
func (c *BatchConsumer) StartConsuming(ctx context.Context) error {
	if c.baseConsumer.channel == nil || c.baseConsumer.connection.IsClosed() {
		return fmt.Errorf("batch Consumer: not connected")
	}

	msgs, err := c.baseConsumer.channel.Consume(
		c.baseConsumer.actualQueueName,
		c.baseConsumer.config.ConsumerTag,
		false, // auto-ack
		c.baseConsumer.config.ExclusiveConsumer,
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("batch Consumer: failed to register a consumer: %w", err)
	}

	c.baseConsumer.Logger.Info("Waiting for messages on queue",
		"queue_name", c.baseConsumer.actualQueueName,
		"batch_size", c.opts.Size,
		"batch_timeout", c.opts.Timeout.String())

	c.baseConsumer.wg.Add(1)
	go func() {
		defer c.baseConsumer.wg.Done()
		c.collect(ctx, msgs)
	}()

	notifyClose := c.baseConsumer.connection.NotifyClose(make(chan *amqp.Error, 1))

	select {
	case <-ctx.Done():
		c.baseConsumer.Logger.Info("Context cancelled for consumer. Shutting down",
			"consumer_tag", c.baseConsumer.config.ConsumerTag)
		return nil
	case amqpErr, ok := <-notifyClose:
		if !ok || amqpErr == nil {
			return fmt.Errorf("batch Consumer: connection closed")
		}
		c.baseConsumer.Logger.Error(amqpErr, "Connection closed for consumer",
			"consumer_tag", c.baseConsumer.config.ConsumerTag)
		return amqpErr
	}
}

func (c *BatchConsumer) collect(ctx context.Context, msgs <-chan amqp.Delivery) {
	batch := make([]amqp.Delivery, 0, c.opts.Size)
	timer := time.NewTimer(c.opts.Timeout)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			c.baseConsumer.Logger.Info("Context cancelled. Processing final batch", "batch_size", len(batch))
			drainCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.opts.DrainTimeout)
			c.processBatch(drainCtx, batch)
			cancel()
			return

		case msg, ok := <-msgs:
			if !ok {
				c.baseConsumer.Logger.Info("Deliveries channel closed. Processing final batch", "batch_size", len(batch))
				drainCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.opts.DrainTimeout)
				c.processBatch(drainCtx, batch)
				cancel()
				return
			}

			if len(batch) == 0 {
				timer.Reset(c.opts.Timeout)
			}
			batch = append(batch, msg)

			if len(batch) >= c.opts.Size {
				timer.Stop()
				c.processBatch(ctx, batch)
				batch = make([]amqp.Delivery, 0, c.opts.Size)
			}

		case <-timer.C:
			if len(batch) > 0 {
				c.baseConsumer.Logger.Debug("Batch timeout reached", "batch_size", len(batch))
				c.processBatch(ctx, batch)
				batch = make([]amqp.Delivery, 0, c.opts.Size)
			}
		}
	}
}

func (c *BatchConsumer) processBatch(ctx context.Context, batch []amqp.Delivery) {
	if len(batch) == 0 {
		return
	}

	failed := c.handler(ctx, batch)
	// settlement must reach the broker even when ctx is already cancelled
	stats := c.settler.settle(context.WithoutCancel(ctx), batch, failed)

	c.baseConsumer.Logger.Info("Batch settled",
		"batch_size", len(batch),
		"acked", stats.Acked,
		"retried", stats.Retried,
		"requeued", stats.Requeued,
		"dead_lettered", stats.DeadLettered,
		"settle_errors", stats.Errors)
}

// Close waits for the final batch to be settled and closes the channel.
func (c *BatchConsumer) Close() error {
	c.baseConsumer.Logger.Info("Closing consumer")
	return c.baseConsumer.Close()
}
