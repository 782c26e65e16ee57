package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"share-worker/internal/contextkeys"
	"share-worker/internal/core/domain"
	"share-worker/internal/core/port"
	"share-worker/pkg/rabbitmq/rabbitmq_consumer"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturedPublish struct {
	routingKey string
	msg        amqp.Publishing
}

type fakePublisher struct {
	published []capturedPublish
	err       error
}

func (f *fakePublisher) Publish(ctx context.Context, routingKey string, msg amqp.Publishing) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, capturedPublish{routingKey: routingKey, msg: msg})
	return nil
}

type stubBatchUseCase struct {
	received  []domain.RawRecord
	failIDs   []string
	cancelIDs []string
}

func (s *stubBatchUseCase) ProcessBatch(ctx context.Context, records []domain.RawRecord) *domain.BatchReport {
	s.received = records
	kinds := make(map[string]domain.FailureKind, len(s.failIDs)+len(s.cancelIDs))
	for _, id := range s.failIDs {
		kinds[id] = domain.FailureStore
	}
	for _, id := range s.cancelIDs {
		kinds[id] = domain.FailureCancelled
	}
	outcomes := make([]domain.RecordOutcome, 0, len(records))
	for _, r := range records {
		outcome := domain.RecordOutcome{RecordID: r.ID, Status: domain.OutcomeProcessed}
		if kind, ok := kinds[r.ID]; ok {
			outcome.Status = domain.OutcomeFailed
			outcome.Kind = kind
		}
		outcomes = append(outcomes, outcome)
	}
	return domain.NewBatchReport(outcomes)
}

type stubReporter struct {
	batchIDs []string
	err      error
}

func (s *stubReporter) ReportBatch(ctx context.Context, batchID string, report *domain.BatchReport) error {
	s.batchIDs = append(s.batchIDs, batchID)
	return s.err
}

type nopLogger struct{}

func (nopLogger) Info(string, port.Fields)                 {}
func (nopLogger) Warn(string, port.Fields)                 {}
func (nopLogger) Error(string, error, port.Fields)         {}
func (nopLogger) Debug(string, port.Fields)                {}
func (n nopLogger) WithFields(port.Fields) port.LoggerPort { return n }

func TestBatchMessageHandler_ReturnsOnlyFailedTags(t *testing.T) {
	useCase := &stubBatchUseCase{failIDs: []string{"12"}}
	reporter := &stubReporter{}
	adapter := &ShareEventsConsumerAdapter{useCase: useCase, reporter: reporter, logger: nopLogger{}}

	deliveries := []amqp.Delivery{
		{DeliveryTag: 11, Body: []byte(`{"a":1}`), Headers: amqp.Table{"x-trace-id": "trace-1"}},
		{DeliveryTag: 12, Body: []byte(`{"a":2}`), MessageId: "req-2"},
		{DeliveryTag: 13, Body: []byte(`{"a":3}`), Redelivered: true},
	}

	failed := adapter.batchMessageHandler(context.Background(), deliveries)

	assert.Equal(t, map[uint64]rabbitmq_consumer.Redelivery{12: rabbitmq_consumer.RedeliverWithRetry}, failed)
	require.Len(t, useCase.received, 3)
	assert.Equal(t, domain.RawRecord{ID: "11", Body: []byte(`{"a":1}`)}, useCase.received[0])
	assert.Len(t, reporter.batchIDs, 1)
}

func TestBatchMessageHandler_CancelledRecordsRequeueNow(t *testing.T) {
	useCase := &stubBatchUseCase{failIDs: []string{"1"}, cancelIDs: []string{"2", "3"}}
	adapter := &ShareEventsConsumerAdapter{useCase: useCase, logger: nopLogger{}}

	failed := adapter.batchMessageHandler(context.Background(), []amqp.Delivery{
		{DeliveryTag: 1}, {DeliveryTag: 2}, {DeliveryTag: 3}, {DeliveryTag: 4},
	})

	assert.Equal(t, map[uint64]rabbitmq_consumer.Redelivery{
		1: rabbitmq_consumer.RedeliverWithRetry,
		2: rabbitmq_consumer.RedeliverNow,
		3: rabbitmq_consumer.RedeliverNow,
	}, failed)
}

func TestBatchMessageHandler_ReporterFailureDoesNotFailBatch(t *testing.T) {
	adapter := &ShareEventsConsumerAdapter{
		useCase:  &stubBatchUseCase{},
		reporter: &stubReporter{err: errors.New("broker gone")},
		logger:   nopLogger{},
	}

	failed := adapter.batchMessageHandler(context.Background(), []amqp.Delivery{{DeliveryTag: 1}})

	assert.Empty(t, failed)
}

func TestBatchMessageHandler_EmptyBatch(t *testing.T) {
	useCase := &stubBatchUseCase{}
	adapter := &ShareEventsConsumerAdapter{useCase: useCase, logger: nopLogger{}}

	assert.Nil(t, adapter.batchMessageHandler(context.Background(), nil))
	assert.Nil(t, useCase.received)
}

func TestShareEventPublisherAdapter(t *testing.T) {
	producer := &fakePublisher{}
	adapter, err := NewShareEventPublisherAdapter(producer, "items.share")
	require.NoError(t, err)

	ctx := contextkeys.ContextWithTraceID(context.Background(), "trace-9")
	msg := domain.ShareEventMessage{
		Type:      domain.ShareEventType,
		UserID:    "user-1",
		ItemID:    "item-1",
		Timestamp: "2026-10-19T10:00:00Z",
		RequestID: "req-1",
	}
	require.NoError(t, adapter.PublishShareEvent(ctx, msg))

	require.Len(t, producer.published, 1)
	got := producer.published[0]
	assert.Equal(t, "items.share", got.routingKey)
	assert.Equal(t, "req-1", got.msg.MessageId)
	assert.Equal(t, "trace-9", got.msg.Headers["x-trace-id"])
	assert.Equal(t, "ShareItemEvent", got.msg.Headers["event-type"])
	assert.Equal(t, amqp.Persistent, got.msg.DeliveryMode)
	assert.JSONEq(t, `{"type":"SHARE_ITEM","userId":"user-1","itemId":"item-1","timestamp":"2026-10-19T10:00:00Z","requestId":"req-1"}`, string(got.msg.Body))
}

func TestShareEventPublisherAdapter_RejectsContractViolation(t *testing.T) {
	producer := &fakePublisher{}
	adapter, err := NewShareEventPublisherAdapter(producer, "items.share")
	require.NoError(t, err)

	err = adapter.PublishShareEvent(context.Background(), domain.ShareEventMessage{Type: domain.ShareEventType, ItemID: "item-1"})

	assert.Error(t, err)
	assert.Empty(t, producer.published)
}

func TestShareEventPublisherAdapter_PublishError(t *testing.T) {
	adapter, err := NewShareEventPublisherAdapter(&fakePublisher{err: errors.New("closed")}, "items.share")
	require.NoError(t, err)

	err = adapter.PublishShareEvent(context.Background(), domain.ShareEventMessage{
		Type: domain.ShareEventType, UserID: "u", ItemID: "i", Timestamp: "2026-10-19T10:00:00Z", RequestID: "r",
	})
	assert.Error(t, err)
}

func TestNewPublisherAdapters_Validation(t *testing.T) {
	_, err := NewShareEventPublisherAdapter(nil, "items.share")
	assert.Error(t, err)
	_, err = NewBatchReportPublisherAdapter(&fakePublisher{}, "")
	assert.Error(t, err)
}

func TestBatchReportPublisherAdapter(t *testing.T) {
	producer := &fakePublisher{}
	adapter, err := NewBatchReportPublisherAdapter(producer, "share.batch.report")
	require.NoError(t, err)

	report := domain.NewBatchReport([]domain.RecordOutcome{
		{RecordID: "1", Status: domain.OutcomeProcessed},
		{RecordID: "2", Status: domain.OutcomeSkipped},
		{RecordID: "3", Status: domain.OutcomeFailed, Kind: domain.FailureOwnership},
		{RecordID: "4", Status: domain.OutcomeFailed, Kind: domain.FailureStore},
	})

	require.NoError(t, adapter.ReportBatch(context.Background(), "7d0b1c9e-3a52-4f7e-b2f5-0d3c6e9a8b71", report))

	require.Len(t, producer.published, 1)
	var dto BatchReportDTO
	require.NoError(t, json.Unmarshal(producer.published[0].msg.Body, &dto))
	assert.Equal(t, BatchReportDTO{
		BatchID:           "7d0b1c9e-3a52-4f7e-b2f5-0d3c6e9a8b71",
		Total:             4,
		Succeeded:         2,
		Failed:            2,
		Skipped:           1,
		PermanentFailures: 1,
		FailedRecordIDs:   []string{"3", "4"},
	}, dto)
}

func TestBatchReportPublisherAdapter_RejectsContractViolation(t *testing.T) {
	producer := &fakePublisher{}
	adapter, err := NewBatchReportPublisherAdapter(producer, "share.batch.report")
	require.NoError(t, err)

	report := domain.NewBatchReport([]domain.RecordOutcome{{RecordID: "1", Status: domain.OutcomeProcessed}})

	err = adapter.ReportBatch(context.Background(), "batch-1", report)
	require.Error(t, err)
	assert.Empty(t, producer.published)
}

type recordingPortLogger struct {
	nopLogger
	errors []error
	fields []port.Fields
}

func (r *recordingPortLogger) Error(msg string, err error, fields port.Fields) {
	r.errors = append(r.errors, err)
	r.fields = append(r.fields, fields)
}

func TestPkgLoggerBridge(t *testing.T) {
	logger := &recordingPortLogger{}
	bridge := NewPkgLoggerBridge(logger)

	cause := errors.New("dial failed")
	bridge.Error(cause, "Reconnect failed", "attempt", 2, "dangling")

	require.Len(t, logger.errors, 1)
	assert.Equal(t, cause, logger.errors[0])
	assert.Equal(t, port.Fields{"attempt": 2}, logger.fields[0])
}
