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

// BatchReportPublisherAdapter publishes a summary of every processed batch.
type BatchReportPublisherAdapter struct {
	producer   messagePublisher
	routingKey string
}

func NewBatchReportPublisherAdapter(producer messagePublisher, routingKey string) (*BatchReportPublisherAdapter, error) {
	if producer == nil {
		return nil, fmt.Errorf("rabbitmq adapter: producer cannot be nil")
	}
	if routingKey == "" {
		return nil, fmt.Errorf("rabbitmq adapter: routingKey cannot be empty")
	}
	return &BatchReportPublisherAdapter{producer: producer, routingKey: routingKey}, nil
}

func toBatchReportDTO(batchID string, report *domain.BatchReport) BatchReportDTO {
	permanent := 0
	for _, o := range report.Outcomes {
		if o.Status == domain.OutcomeFailed && o.Kind.Permanent() {
			permanent++
		}
	}
	return BatchReportDTO{
		BatchID:           batchID,
		Total:             report.Total,
		Succeeded:         report.Succeeded,
		Failed:            len(report.FailedRecordIDs),
		Skipped:           report.Count(domain.OutcomeSkipped),
		PermanentFailures: permanent,
		FailedRecordIDs:   report.FailedIDs(),
	}
}

func (a *BatchReportPublisherAdapter) ReportBatch(ctx context.Context, batchID string, report *domain.BatchReport) error {
	adapterLogger := contextkeys.LoggerFromContext(ctx).WithFields(port.Fields{
		"component":   "BatchReportPublisherAdapter",
		"routing_key": a.routingKey,
		"batch_id":    batchID,
	})

	body, err := json.Marshal(toBatchReportDTO(batchID, report))
	if err != nil {
		return fmt.Errorf("rabbitmq adapter: failed to encode batch report: %w", err)
	}

	if err := contracts.ValidateEvent(constants.ShareBatchReportType, constants.EventSchemaVersion, body); err != nil {
		adapterLogger.Error("Batch report does not match its contract", err, nil)
		return fmt.Errorf("rabbitmq adapter: %w", err)
	}

	msg := amqp.Publishing{
		ContentType:  "application/json",
		MessageId:    batchID,
		Body:         body,
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		Headers: amqp.Table{
			constants.HeaderEventType:    constants.ShareBatchReportType,
			constants.HeaderEventVersion: constants.EventSchemaVersion,
		},
	}
	if traceID := contextkeys.TraceIDFromContext(ctx); traceID != "" {
		msg.Headers[constants.HeaderTraceID] = traceID
	}

	publishCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	if err := a.producer.Publish(publishCtx, a.routingKey, msg); err != nil {
		adapterLogger.Error("Failed to publish batch report", err, nil)
		return fmt.Errorf("rabbitmq adapter: failed to publish report for batch %s: %w", batchID, err)
	}

	adapterLogger.Debug("Batch report published", nil)
	return nil
}
