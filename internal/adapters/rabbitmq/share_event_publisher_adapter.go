package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"share-worker/internal/constants"
	"share-worker/internal/contextkeys"
	"share-worker/internal/contracts"
	"share-worker/internal/core/domain"
	"share-worker/internal/core/port"

	amqp "github.com/rabbitmq/amqp091-go"
)

// ShareEventPublisherAdapter enqueues share events for the batch worker.
type ShareEventPublisherAdapter struct {
	producer   messagePublisher
	routingKey string
}

func NewShareEventPublisherAdapter(producer messagePublisher, routingKey string) (*ShareEventPublisherAdapter, error) {
	if producer == nil {
		return nil, fmt.Errorf("rabbitmq adapter: producer cannot be nil")
	}
	if routingKey == "" {
		return nil, fmt.Errorf("rabbitmq adapter: routingKey cannot be empty")
	}
	return &ShareEventPublisherAdapter{producer: producer, routingKey: routingKey}, nil
}

func (a *ShareEventPublisherAdapter) PublishShareEvent(ctx context.Context, msg domain.ShareEventMessage) error {
	adapterLogger := contextkeys.LoggerFromContext(ctx).WithFields(port.Fields{
		"component":   "ShareEventPublisherAdapter",
		"routing_key": a.routingKey,
	})

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("rabbitmq adapter: failed to encode share event: %w", err)
	}

	if err := contracts.ValidateEvent(constants.ShareItemEventType, constants.EventSchemaVersion, body); err != nil {
		adapterLogger.Error("Share event does not match its contract", err, nil)
		return fmt.Errorf("rabbitmq adapter: %w", err)
	}

	publishing := amqp.Publishing{
		ContentType:  "application/json",
		MessageId:    msg.RequestID,
		Body:         body,
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		Headers: amqp.Table{
			constants.HeaderEventType:    constants.ShareItemEventType,
			constants.HeaderEventVersion: constants.EventSchemaVersion,
		},
	}
	if traceID := contextkeys.TraceIDFromContext(ctx); traceID != "" {
		publishing.Headers[constants.HeaderTraceID] = traceID
	}

	publishCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	if err := a.producer.Publish(publishCtx, a.routingKey, publishing); err != nil {
		adapterLogger.Error("Failed to publish share event", err, nil)
		return fmt.Errorf("rabbitmq adapter: failed to publish share event %s: %w", msg.RequestID, err)
	}

	adapterLogger.Debug("Share event published", port.Fields{"request_id": msg.RequestID})
	return nil
}
