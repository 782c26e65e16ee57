package usecase

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"share-worker/internal/contextkeys"
	"share-worker/internal/core/domain"
	"share-worker/internal/core/port"

	"golang.org/x/sync/errgroup"
)

const (
	defaultConcurrency = 8
	defaultCallTimeout = 5 * time.Second
)

// ProcessShareBatchUseCase applies a batch of share events to the record store.
// Records are processed independently; one record failing never affects another.
type ProcessShareBatchUseCase struct {
	store       port.RecordStorePort
	recorder    port.ActivityRecorderPort
	metrics     port.MetricsPort
	concurrency int
	callTimeout time.Duration
}

type BatchSettings struct {
	// Concurrency caps the records processed in parallel.
	Concurrency int
	// CallTimeout bounds each store call.
	CallTimeout time.Duration
}

func NewProcessShareBatchUseCase(store port.RecordStorePort, recorder port.ActivityRecorderPort, metrics port.MetricsPort, settings BatchSettings) *ProcessShareBatchUseCase {
	if settings.Concurrency <= 0 {
		settings.Concurrency = defaultConcurrency
	}
	if settings.CallTimeout <= 0 {
		settings.CallTimeout = defaultCallTimeout
	}
	return &ProcessShareBatchUseCase{
		store:       store,
		recorder:    recorder,
		metrics:     metrics,
		concurrency: settings.Concurrency,
		callTimeout: settings.CallTimeout,
	}
}

func (uc *ProcessShareBatchUseCase) ProcessBatch(ctx context.Context, records []domain.RawRecord) *domain.BatchReport {
	logger := contextkeys.LoggerFromContext(ctx).WithFields(port.Fields{
		"use_case":   "ProcessShareBatch",
		"batch_size": len(records),
	})
	logger.Info("Processing share batch", nil)

	// each goroutine owns one slot; the report is built after Wait
	outcomes := make([]domain.RecordOutcome, len(records))

	var g errgroup.Group
	g.SetLimit(uc.concurrency)
	for i, rec := range records {
		i, rec := i, rec
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					err := fmt.Errorf("panic while processing record %s: %v", rec.ID, r)
					logger.Error("Record processing panicked", err, port.Fields{
						"record_id": rec.ID,
						"stack":     string(debug.Stack()),
					})
					outcomes[i] = failed(domain.RecordOutcome{RecordID: rec.ID}, domain.FailurePanic, err)
				}
			}()
			outcomes[i] = uc.processRecord(ctx, logger, rec)
			return nil
		})
	}
	_ = g.Wait()

	report := domain.NewBatchReport(outcomes)

	if uc.metrics != nil {
		uc.metrics.Publish(ctx, batchCounters(report))
	}

	logger.Info("Share batch processed", port.Fields{
		"total":     report.Total,
		"succeeded": report.Succeeded,
		"failed":    len(report.FailedRecordIDs),
		"skipped":   report.Count(domain.OutcomeSkipped),
	})
	return report
}

func (uc *ProcessShareBatchUseCase) processRecord(ctx context.Context, batchLogger port.LoggerPort, rec domain.RawRecord) domain.RecordOutcome {
	outcome := domain.RecordOutcome{RecordID: rec.ID}
	recLogger := batchLogger.WithFields(port.Fields{"record_id": rec.ID})

	// not started before cancellation: leave it to redelivery
	if err := ctx.Err(); err != nil {
		return failed(outcome, domain.FailureCancelled, err)
	}

	event, err := ParseShareEvent(rec.Body)
	if err != nil {
		kind := domain.FailureValidation
		if errors.Is(err, domain.ErrMalformedPayload) {
			kind = domain.FailureMalformed
		}
		recLogger.Warn("Share event rejected", port.Fields{"error": err.Error(), "failure_kind": string(kind)})
		return failed(outcome, kind, err)
	}

	recLogger = recLogger.WithFields(port.Fields{
		"item_id":    event.ItemID,
		"user_id":    event.UserID,
		"request_id": event.RequestID,
	})
	callCtx := contextkeys.ContextWithLogger(ctx, recLogger)

	item, found, err := uc.getItem(callCtx, event.ItemID)
	if err != nil {
		recLogger.Error("Failed to read item", err, nil)
		return failed(outcome, classifyStoreFailure(ctx), err)
	}
	if !found {
		recLogger.Warn("Item not found, skipping share event", nil)
		outcome.Status = domain.OutcomeSkipped
		outcome.SkipReason = domain.SkipReasonItemNotFound
		return outcome
	}

	if err := uc.incrementShareCount(callCtx, event.ItemID, event.UserID); err != nil {
		if errors.Is(err, domain.ErrOwnershipMismatch) {
			recLogger.Error("Share event user does not own the item", err, port.Fields{"owner_user_id": item.OwnerUserID})
			return failed(outcome, domain.FailureOwnership, err)
		}
		recLogger.Error("Failed to increment share count", err, nil)
		return failed(outcome, classifyStoreFailure(ctx), err)
	}

	// the increment is not rolled back if this write fails; redelivery may count twice
	activityID, err := uc.createActivity(callCtx, domain.ShareActivityInput{
		UserID:    event.UserID,
		ItemID:    event.ItemID,
		ItemName:  item.DisplayName(),
		SharedAt:  event.Timestamp,
		RequestID: event.RequestID,
	})
	if err != nil {
		recLogger.Error("Failed to record share activity after increment", err, nil)
		return failed(outcome, classifyStoreFailure(ctx), err)
	}

	recLogger.Info("Share event processed", port.Fields{"activity_id": activityID})
	outcome.Status = domain.OutcomeProcessed
	outcome.ActivityID = activityID
	return outcome
}

func (uc *ProcessShareBatchUseCase) getItem(ctx context.Context, itemID string) (*domain.Item, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, uc.callTimeout)
	defer cancel()
	return uc.store.GetItem(ctx, itemID)
}

func (uc *ProcessShareBatchUseCase) incrementShareCount(ctx context.Context, itemID, userID string) error {
	ctx, cancel := context.WithTimeout(ctx, uc.callTimeout)
	defer cancel()
	return uc.store.IncrementShareCount(ctx, itemID, userID)
}

func (uc *ProcessShareBatchUseCase) createActivity(ctx context.Context, in domain.ShareActivityInput) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, uc.callTimeout)
	defer cancel()
	id, err := uc.recorder.CreateShareActivity(ctx, in)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

func failed(outcome domain.RecordOutcome, kind domain.FailureKind, err error) domain.RecordOutcome {
	outcome.Status = domain.OutcomeFailed
	outcome.Kind = kind
	outcome.Err = err
	return outcome
}

// classifyStoreFailure separates batch cancellation from store faults.
func classifyStoreFailure(batchCtx context.Context) domain.FailureKind {
	if batchCtx.Err() != nil {
		return domain.FailureCancelled
	}
	return domain.FailureStore
}

func batchCounters(report *domain.BatchReport) port.Counters {
	return port.Counters{
		port.MetricBatchSize:            int64(report.Total),
		port.MetricShareEventsProcessed: int64(report.Count(domain.OutcomeProcessed)),
		port.MetricItemNotFound:         int64(report.Count(domain.OutcomeSkipped)),
		port.MetricValidationErrors:     int64(report.CountKind(domain.FailureValidation) + report.CountKind(domain.FailureMalformed)),
		port.MetricOwnershipMismatches:  int64(report.CountKind(domain.FailureOwnership)),
		port.MetricStoreErrors:          int64(report.CountKind(domain.FailureStore)),
		port.MetricFailedRecords:        int64(len(report.FailedRecordIDs)),
		port.MetricSuccessfulRecords:    int64(report.Succeeded),
	}
}
