package rabbitmq

import (
	"context"
	"fmt"
	"strconv"

	"share-worker/internal/constants"
	"share-worker/internal/contextkeys"
	"share-worker/internal/core/domain"
	"share-worker/internal/core/port"
	"share-worker/internal/core/port/usecases_port"
	"share-worker/pkg/rabbitmq/rabbitmq_common"
	"share-worker/pkg/rabbitmq/rabbitmq_consumer"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// ShareEventsConsumerAdapter feeds batches from the share events queue into the
// batch use case and tells the consumer which deliveries to redeliver.
type ShareEventsConsumerAdapter struct {
	consumer rabbitmq_consumer.Consumer
	useCase  usecases_port.ProcessShareBatchUseCase
	reporter port.BatchReporterPort
	logger   port.LoggerPort
}

// NewShareEventsConsumerAdapter wires the adapter to a batch consumer. reporter may be nil.
func NewShareEventsConsumerAdapter(
	consumerCfg rabbitmq_consumer.ConsumerConfig,
	batchOpts rabbitmq_consumer.BatchOptions,
	useCase usecases_port.ProcessShareBatchUseCase,
	reporter port.BatchReporterPort,
	logger port.LoggerPort,
	connManager *rabbitmq_common.ConnectionManager,
) (*ShareEventsConsumerAdapter, error) {
	adapter := &ShareEventsConsumerAdapter{
		useCase:  useCase,
		reporter: reporter,
		logger:   logger,
	}

	pkgLogger := logger.WithFields(port.Fields{"component": "rabbitmq_batch_consumer", "consumer_tag": consumerCfg.ConsumerTag})
	consumerCfg.Logger = NewPkgLoggerBridge(pkgLogger)

	consumer, err := rabbitmq_consumer.NewBatchConsumer(consumerCfg, adapter.batchMessageHandler, batchOpts, connManager)
	if err != nil {
		return nil, fmt.Errorf("failed to create RabbitMQ consumer for share events: %w", err)
	}
	adapter.consumer = consumer

	return adapter, nil
}

func recordID(d amqp.Delivery) string {
	return strconv.FormatUint(d.DeliveryTag, 10)
}

func toRawRecords(deliveries []amqp.Delivery) []domain.RawRecord {
	records := make([]domain.RawRecord, 0, len(deliveries))
	for _, d := range deliveries {
		records = append(records, domain.RawRecord{ID: recordID(d), Body: d.Body})
	}
	return records
}

// failedDeliveryTags maps the report's failed records back to delivery tags.
// Records cancelled before they started are requeued without spending a retry.
func failedDeliveryTags(deliveries []amqp.Delivery, report *domain.BatchReport) map[uint64]rabbitmq_consumer.Redelivery {
	kinds := make(map[string]domain.FailureKind, len(report.FailedRecordIDs))
	for _, o := range report.Outcomes {
		if o.Status == domain.OutcomeFailed {
			kinds[o.RecordID] = o.Kind
		}
	}

	failed := make(map[uint64]rabbitmq_consumer.Redelivery, len(kinds))
	for _, d := range deliveries {
		kind, ok := kinds[recordID(d)]
		if !ok {
			continue
		}
		if kind == domain.FailureCancelled {
			failed[d.DeliveryTag] = rabbitmq_consumer.RedeliverNow
		} else {
			failed[d.DeliveryTag] = rabbitmq_consumer.RedeliverWithRetry
		}
	}
	return failed
}

func (a *ShareEventsConsumerAdapter) batchMessageHandler(ctx context.Context, deliveries []amqp.Delivery) map[uint64]rabbitmq_consumer.Redelivery {
	if len(deliveries) == 0 {
		return nil
	}

	traceID, _ := deliveries[0].Headers[constants.HeaderTraceID].(string)
	if traceID == "" {
		traceID = uuid.New().String()
	}
	batchID := uuid.New().String()

	batchLogger := a.logger.WithFields(port.Fields{
		"trace_id":     traceID,
		"batch_id":     batchID,
		"batch_size":   len(deliveries),
		"adapter_name": "ShareEventsConsumerAdapter",
	})
	ctx = contextkeys.ContextWithLogger(ctx, batchLogger)
	ctx = contextkeys.ContextWithTraceID(ctx, traceID)

	for _, d := range deliveries {
		if d.Redelivered || d.MessageId != "" {
			batchLogger.Debug("Delivery received", port.Fields{
				"record_id":   recordID(d),
				"message_id":  d.MessageId,
				"redelivered": d.Redelivered,
			})
		}
	}

	report := a.useCase.ProcessBatch(ctx, toRawRecords(deliveries))
	failed := failedDeliveryTags(deliveries, report)

	if a.reporter != nil {
		// the report goes out even when shutdown has been requested
		if err := a.reporter.ReportBatch(context.WithoutCancel(ctx), batchID, report); err != nil {
			batchLogger.Warn("Batch report was not published", port.Fields{"error": err.Error()})
		}
	}

	batchLogger.Info("Batch handled", port.Fields{
		"succeeded": report.Succeeded,
		"failed":    len(failed),
	})
	return failed
}

// Start implements EventListenerPort.
func (a *ShareEventsConsumerAdapter) Start(ctx context.Context) error {
	return a.consumer.StartConsuming(ctx)
}

// Close implements EventListenerPort.
func (a *ShareEventsConsumerAdapter) Close() error {
	return a.consumer.Close()
}
