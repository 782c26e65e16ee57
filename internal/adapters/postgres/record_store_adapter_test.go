package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"share-worker/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testRetryPolicy = RetryPolicy{MaxRetries: 2, InitialInterval: time.Millisecond, MaxInterval: time.Millisecond}

func newTestAdapter(t *testing.T) (*RecordStoreAdapter, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	adapter, err := NewRecordStoreAdapter(mock, "share_records", testRetryPolicy)
	require.NoError(t, err)
	adapter.now = func() time.Time { return time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC) }
	return adapter, mock
}

func ptr[T any](v T) *T { return &v }

var itemColumns = []string{"item_id", "owner_user_id", "name", "shared_count", "is_public", "updated_at"}

func TestNewRecordStoreAdapter_RejectsUnsafeTableName(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	_, err = NewRecordStoreAdapter(mock, "items; DROP TABLE users", DefaultRetryPolicy)
	assert.Error(t, err)
}

func TestRecordStoreAdapter_GetItem(t *testing.T) {
	tests := []struct {
		name      string
		setup     func(mock pgxmock.PgxPoolIface)
		wantFound bool
		want      *domain.Item
		wantErr   bool
	}{
		{
			name: "item with all attributes",
			setup: func(mock pgxmock.PgxPoolIface) {
				rows := pgxmock.NewRows(itemColumns).
					AddRow(ptr("item-1"), ptr("user-1"), ptr("Blue Jacket"), ptr(int64(4)), ptr(true), ptr("2026-10-18T00:00:00Z"))
				mock.ExpectQuery(`SELECT (.+) FROM share_records WHERE pk = \$1 AND sk = \$2`).
					WithArgs("ITEM#item-1", "METADATA").
					WillReturnRows(rows)
			},
			wantFound: true,
			want: &domain.Item{
				ItemID:      "item-1",
				OwnerUserID: "user-1",
				Name:        ptr("Blue Jacket"),
				SharedCount: 4,
				IsPublic:    true,
				UpdatedAt:   "2026-10-18T00:00:00Z",
			},
		},
		{
			name: "never shared item without name",
			setup: func(mock pgxmock.PgxPoolIface) {
				rows := pgxmock.NewRows(itemColumns).
					AddRow(ptr("item-1"), ptr("user-1"), nil, nil, nil, nil)
				mock.ExpectQuery(`SELECT (.+) FROM share_records`).
					WithArgs("ITEM#item-1", "METADATA").
					WillReturnRows(rows)
			},
			wantFound: true,
			want:      &domain.Item{ItemID: "item-1", OwnerUserID: "user-1"},
		},
		{
			name: "absent item is not an error",
			setup: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`SELECT (.+) FROM share_records`).
					WithArgs("ITEM#item-1", "METADATA").
					WillReturnError(pgx.ErrNoRows)
			},
		},
		{
			name: "permanent database error",
			setup: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`SELECT (.+) FROM share_records`).
					WithArgs("ITEM#item-1", "METADATA").
					WillReturnError(&pgconn.PgError{Code: "42P01", Message: "relation does not exist"})
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			adapter, mock := newTestAdapter(t)
			tt.setup(mock)

			item, found, err := adapter.GetItem(context.Background(), "item-1")

			if tt.wantErr {
				var storeErr *domain.StoreError
				require.ErrorAs(t, err, &storeErr)
				assert.Equal(t, "get_item", storeErr.Op)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.wantFound, found)
				assert.Equal(t, tt.want, item)
			}
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestRecordStoreAdapter_IncrementShareCount(t *testing.T) {
	const updateQuery = `UPDATE share_records SET shared_count = COALESCE\(shared_count, 0\) \+ 1, is_public = \$1, updated_at = \$2 WHERE pk = \$3 AND sk = \$4 AND owner_user_id = \$5`

	tests := []struct {
		name    string
		setup   func(mock pgxmock.PgxPoolIface)
		wantErr error
		isStore bool
	}{
		{
			name: "owner matches",
			setup: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectExec(updateQuery).
					WithArgs(true, "2026-10-19T08:00:00Z", "ITEM#item-1", "METADATA", "user-1").
					WillReturnResult(pgxmock.NewResult("UPDATE", 1))
			},
		},
		{
			name: "owner differs or item vanished",
			setup: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectExec(updateQuery).
					WithArgs(true, pgxmock.AnyArg(), "ITEM#item-1", "METADATA", "user-1").
					WillReturnResult(pgxmock.NewResult("UPDATE", 0))
			},
			wantErr: domain.ErrOwnershipMismatch,
		},
		{
			name: "serialization failure is retried",
			setup: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectExec(updateQuery).
					WithArgs(true, pgxmock.AnyArg(), "ITEM#item-1", "METADATA", "user-1").
					WillReturnError(&pgconn.PgError{Code: "40001"})
				mock.ExpectExec(updateQuery).
					WithArgs(true, pgxmock.AnyArg(), "ITEM#item-1", "METADATA", "user-1").
					WillReturnResult(pgxmock.NewResult("UPDATE", 1))
			},
		},
		{
			name: "retries are bounded",
			setup: func(mock pgxmock.PgxPoolIface) {
				for i := 0; i < 3; i++ {
					mock.ExpectExec(updateQuery).
						WithArgs(true, pgxmock.AnyArg(), "ITEM#item-1", "METADATA", "user-1").
						WillReturnError(&pgconn.PgError{Code: "40P01"})
				}
			},
			isStore: true,
		},
		{
			name: "constraint violation is not retried",
			setup: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectExec(updateQuery).
					WithArgs(true, pgxmock.AnyArg(), "ITEM#item-1", "METADATA", "user-1").
					WillReturnError(&pgconn.PgError{Code: "23514"})
			},
			isStore: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			adapter, mock := newTestAdapter(t)
			tt.setup(mock)

			err := adapter.IncrementShareCount(context.Background(), "item-1", "user-1")

			switch {
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
			case tt.isStore:
				var storeErr *domain.StoreError
				assert.ErrorAs(t, err, &storeErr)
			default:
				assert.NoError(t, err)
			}
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestRecordStoreAdapter_PutActivity(t *testing.T) {
	activityID := uuid.MustParse("0b7f3f2e-5a1d-4c62-8d3e-6a9f1e2b3c4d")
	record := domain.ActivityRecord{
		ActivityID:   activityID,
		OwnerUserID:  "user-1",
		ActivityType: domain.ActivityTypeItemShared,
		ItemID:       "item-1",
		Timestamp:    "2026-10-19T07:59:00Z",
		CreatedAt:    "2026-10-19T08:00:00Z",
		Metadata:     domain.ActivityMetadata{Action: "share", RequestID: "req-1"},
	}

	t.Run("writes activity under the user partition", func(t *testing.T) {
		adapter, mock := newTestAdapter(t)
		mock.ExpectExec(`INSERT INTO share_records \(pk,sk,entity_type,owner_user_id,activity_type,item_id,item_name,event_timestamp,created_at,metadata\)`).
			WithArgs(
				"USER#user-1",
				"ACTIVITY#"+activityID.String(),
				"Activity",
				"user-1",
				"ItemShared",
				"item-1",
				pgxmock.AnyArg(),
				"2026-10-19T07:59:00Z",
				"2026-10-19T08:00:00Z",
				[]byte(`{"action":"share","requestId":"req-1"}`),
			).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		require.NoError(t, adapter.PutActivity(context.Background(), record))
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("store failure is wrapped", func(t *testing.T) {
		adapter, mock := newTestAdapter(t)
		cause := errors.New("disk full")
		mock.ExpectExec(`INSERT INTO share_records`).
			WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
				pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
			WillReturnError(cause)

		err := adapter.PutActivity(context.Background(), record)

		var storeErr *domain.StoreError
		require.ErrorAs(t, err, &storeErr)
		assert.Equal(t, "put_activity", storeErr.Op)
		assert.ErrorIs(t, err, cause)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestIsTransient(t *testing.T) {
	assert.True(t, isTransient(&pgconn.PgError{Code: "40001"}))
	assert.True(t, isTransient(&pgconn.PgError{Code: "53300"}))
	assert.False(t, isTransient(&pgconn.PgError{Code: "23505"}))
	assert.False(t, isTransient(context.Canceled))
	assert.False(t, isTransient(pgx.ErrNoRows))
}
