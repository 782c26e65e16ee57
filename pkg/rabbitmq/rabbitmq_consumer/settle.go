package rabbitmq_consumer

import (
	"context"
	"time"

	"share-worker/pkg/rabbitmq/rabbitmq_common"

	amqp "github.com/rabbitmq/amqp091-go"
)

// acknowledger is the part of *amqp.Channel used to settle deliveries.
type acknowledger interface {
	Ack(tag uint64, multiple bool) error
	Nack(tag uint64, multiple bool, requeue bool) error
}

type dlxPublisher interface {
	Publish(ctx context.Context, routingKey string, msg amqp.Publishing) error
}

// Redelivery says how a failed delivery goes back to the queue.
type Redelivery int

const (
	// RedeliverWithRetry routes through the retry topology and counts toward MaxRetries.
	RedeliverWithRetry Redelivery = iota
	// RedeliverNow requeues at once without adding an x-death entry. Used for
	// deliveries that were never attempted.
	RedeliverNow
)

// SettleStats counts what happened to each delivery of a batch.
type SettleStats struct {
	Acked        int
	Retried      int
	DeadLettered int
	Requeued     int
	Errors       int
}

// settler acks or rejects every delivery of a batch individually.
type settler struct {
	acker      acknowledger
	dlx        dlxPublisher
	queueName  string
	retry      bool
	maxRetries int
	dlqKey     string
	logger     rabbitmq_common.Logger
}

func (s *settler) settle(ctx context.Context, batch []amqp.Delivery, failed map[uint64]Redelivery) SettleStats {
	var stats SettleStats

	for _, d := range batch {
		redelivery, isFailed := failed[d.DeliveryTag]
		if !isFailed {
			if err := s.acker.Ack(d.DeliveryTag, false); err != nil {
				s.logger.Error(err, "Failed to ack delivery", "delivery_tag", d.DeliveryTag)
				stats.Errors++
				continue
			}
			stats.Acked++
			continue
		}

		if !s.retry || redelivery == RedeliverNow {
			if err := s.acker.Nack(d.DeliveryTag, false, true); err != nil {
				s.logger.Error(err, "Failed to requeue delivery", "delivery_tag", d.DeliveryTag)
				stats.Errors++
				continue
			}
			stats.Requeued++
			continue
		}

		deaths := deathCount(d, s.queueName)
		if deaths < int64(s.maxRetries) {
			s.logger.Debug("Nacking delivery for retry", "delivery_tag", d.DeliveryTag, "death_count", deaths)
			if err := s.acker.Nack(d.DeliveryTag, false, false); err != nil {
				s.logger.Error(err, "Failed to nack delivery", "delivery_tag", d.DeliveryTag)
				stats.Errors++
				continue
			}
			stats.Retried++
			continue
		}

		s.logger.Warn("Max retries reached. Publishing to final DLX", "delivery_tag", d.DeliveryTag, "death_count", deaths)
		err := s.dlx.Publish(ctx, s.dlqKey, amqp.Publishing{
			ContentType:  d.ContentType,
			MessageId:    d.MessageId,
			Body:         d.Body,
			Headers:      d.Headers,
			Timestamp:    time.Now(),
			DeliveryMode: amqp.Persistent,
		})
		if err != nil {
			s.logger.Error(err, "Failed to publish to final DLX. Nacking to keep it in the retry loop", "delivery_tag", d.DeliveryTag)
			if nackErr := s.acker.Nack(d.DeliveryTag, false, false); nackErr != nil {
				s.logger.Error(nackErr, "Failed to nack delivery", "delivery_tag", d.DeliveryTag)
			}
			stats.Errors++
			continue
		}
		if err := s.acker.Ack(d.DeliveryTag, false); err != nil {
			s.logger.Error(err, "Failed to ack dead-lettered delivery", "delivery_tag", d.DeliveryTag)
			stats.Errors++
			continue
		}
		stats.DeadLettered++
	}

	return stats
}
