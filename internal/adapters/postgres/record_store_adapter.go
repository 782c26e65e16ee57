package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"

	"share-worker/internal/constants"
	"share-worker/internal/contextkeys"
	"share-worker/internal/core/domain"
	"share-worker/internal/core/port"

	sq "github.com/Masterminds/squirrel"
	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is satisfied by *pgxpool.Pool and by pgxmock pools.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
}

// RetryPolicy bounds retries of transient database faults.
type RetryPolicy struct {
	MaxRetries      uint64
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

var DefaultRetryPolicy = RetryPolicy{
	MaxRetries:      3,
	InitialInterval: 50 * time.Millisecond,
	MaxInterval:     time.Second,
}

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// RecordStoreAdapter keeps items and activity records in one table keyed by (pk, sk).
type RecordStoreAdapter struct {
	db    DBTX
	table string
	sb    sq.StatementBuilderType
	retry RetryPolicy
	now   func() time.Time
}

func NewRecordStoreAdapter(db DBTX, table string, retry RetryPolicy) (*RecordStoreAdapter, error) {
	if db == nil {
		return nil, fmt.Errorf("record store: db cannot be nil")
	}
	if !tableNamePattern.MatchString(table) {
		return nil, fmt.Errorf("record store: invalid table name %q", table)
	}
	return &RecordStoreAdapter{
		db:    db,
		table: table,
		sb:    sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
		retry: retry,
		now:   time.Now,
	}, nil
}

func itemPartitionKey(itemID string) string {
	return constants.ItemPartitionPrefix + itemID
}

func (a *RecordStoreAdapter) GetItem(ctx context.Context, itemID string) (*domain.Item, bool, error) {
	repoLogger := contextkeys.LoggerFromContext(ctx).WithFields(port.Fields{
		"component": "RecordStoreAdapter",
		"method":    "GetItem",
	})

	query, args, err := a.sb.
		Select("item_id", "owner_user_id", "name", "shared_count", "is_public", "updated_at").
		From(a.table).
		Where(sq.Eq{"pk": itemPartitionKey(itemID)}).
		Where(sq.Eq{"sk": constants.ItemMetadataSortKey}).
		ToSql()
	if err != nil {
		return nil, false, &domain.StoreError{Op: "get_item", Err: fmt.Errorf("failed to build query: %w", err)}
	}

	var (
		storedItemID *string
		ownerUserID  *string
		name         *string
		sharedCount  *int64
		isPublic     *bool
		updatedAt    *string
	)
	err = a.withRetry(ctx, func() error {
		return a.db.QueryRow(ctx, query, args...).Scan(&storedItemID, &ownerUserID, &name, &sharedCount, &isPublic, &updatedAt)
	})
	if errors.Is(err, pgx.ErrNoRows) {
		repoLogger.Debug("Item not found", nil)
		return nil, false, nil
	}
	if err != nil {
		return nil, false, &domain.StoreError{Op: "get_item", Err: err}
	}

	item := &domain.Item{
		ItemID:      deref(storedItemID),
		Name:        name,
		OwnerUserID: deref(ownerUserID),
		UpdatedAt:   deref(updatedAt),
	}
	if item.ItemID == "" {
		item.ItemID = itemID
	}
	if sharedCount != nil {
		item.SharedCount = *sharedCount
	}
	if isPublic != nil {
		item.IsPublic = *isPublic
	}
	return item, true, nil
}

func (a *RecordStoreAdapter) IncrementShareCount(ctx context.Context, itemID, expectedOwnerUserID string) error {
	repoLogger := contextkeys.LoggerFromContext(ctx).WithFields(port.Fields{
		"component": "RecordStoreAdapter",
		"method":    "IncrementShareCount",
	})

	// the owner check is part of the UPDATE so it is evaluated at write time
	query, args, err := a.sb.
		Update(a.table).
		Set("shared_count", sq.Expr("COALESCE(shared_count, 0) + 1")).
		Set("is_public", true).
		Set("updated_at", a.now().UTC().Format(time.RFC3339Nano)).
		Where(sq.Eq{"pk": itemPartitionKey(itemID)}).
		Where(sq.Eq{"sk": constants.ItemMetadataSortKey}).
		Where(sq.Eq{"owner_user_id": expectedOwnerUserID}).
		ToSql()
	if err != nil {
		return &domain.StoreError{Op: "increment_share_count", Err: fmt.Errorf("failed to build query: %w", err)}
	}

	var cmdTag pgconn.CommandTag
	err = a.withRetry(ctx, func() error {
		var execErr error
		cmdTag, execErr = a.db.Exec(ctx, query, args...)
		return execErr
	})
	if err != nil {
		return &domain.StoreError{Op: "increment_share_count", Err: err}
	}

	if cmdTag.RowsAffected() == 0 {
		repoLogger.Warn("Conditional share count update matched no row", nil)
		return domain.ErrOwnershipMismatch
	}
	return nil
}

func (a *RecordStoreAdapter) PutActivity(ctx context.Context, record domain.ActivityRecord) error {
	metadata, err := json.Marshal(record.Metadata)
	if err != nil {
		return &domain.StoreError{Op: "put_activity", Err: fmt.Errorf("failed to encode metadata: %w", err)}
	}

	query, args, err := a.sb.
		Insert(a.table).
		Columns("pk", "sk", "entity_type", "owner_user_id", "activity_type", "item_id", "item_name", "event_timestamp", "created_at", "metadata").
		Values(
			constants.UserPartitionPrefix+record.OwnerUserID,
			constants.ActivitySortKeyPrefix+record.ActivityID.String(),
			constants.EntityTypeActivity,
			record.OwnerUserID,
			record.ActivityType,
			record.ItemID,
			record.ItemName,
			record.Timestamp,
			record.CreatedAt,
			metadata,
		).
		ToSql()
	if err != nil {
		return &domain.StoreError{Op: "put_activity", Err: fmt.Errorf("failed to build query: %w", err)}
	}

	err = a.withRetry(ctx, func() error {
		_, execErr := a.db.Exec(ctx, query, args...)
		return execErr
	})
	if err != nil {
		return &domain.StoreError{Op: "put_activity", Err: err}
	}
	return nil
}

// Ping reports whether the database is reachable.
func (a *RecordStoreAdapter) Ping(ctx context.Context) error {
	return a.db.Ping(ctx)
}

func (a *RecordStoreAdapter) withRetry(ctx context.Context, op func() error) error {
	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = a.retry.InitialInterval
	expo.MaxInterval = a.retry.MaxInterval

	attempt := 0
	return backoff.Retry(func() error {
		attempt++
		err := op()
		if err == nil {
			return nil
		}
		if !isTransient(err) {
			return backoff.Permanent(err)
		}
		contextkeys.LoggerFromContext(ctx).Warn("Transient database error, retrying", port.Fields{
			"attempt": attempt,
			"error":   err.Error(),
		})
		return err
	}, backoff.WithContext(backoff.WithMaxRetries(expo, a.retry.MaxRetries), ctx))
}

// isTransient reports whether err is worth retrying: serialization failures,
// deadlocks, connection exhaustion or errors pgx marks safe to retry.
func isTransient(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01", "53300", "57P03":
			return true
		}
		return false
	}
	return pgconn.SafeToRetry(err)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
