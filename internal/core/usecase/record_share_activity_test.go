package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"share-worker/internal/core/domain"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRecorder(store *memStore) *RecordShareActivityUseCase {
	uc := NewRecordShareActivityUseCase(store)
	uc.now = func() time.Time { return time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC) }
	return uc
}

func TestCreateShareActivity_BuildsRecord(t *testing.T) {
	store := newMemStore()
	uc := newTestRecorder(store)
	fixedID := uuid.MustParse("6f1c2a3e-0d4b-4c8a-9e1f-2b3c4d5e6f70")
	uc.newID = func() uuid.UUID { return fixedID }

	id, err := uc.CreateShareActivity(context.Background(), domain.ShareActivityInput{
		UserID:    "user-1",
		ItemID:    "item-1",
		ItemName:  strPtr("Blue Jacket"),
		SharedAt:  "2026-10-19T10:00:00Z",
		RequestID: "req-1",
	})
	require.NoError(t, err)
	assert.Equal(t, fixedID, id)

	require.Len(t, store.activities, 1)
	assert.Equal(t, domain.ActivityRecord{
		ActivityID:   fixedID,
		OwnerUserID:  "user-1",
		ActivityType: "ItemShared",
		ItemID:       "item-1",
		ItemName:     strPtr("Blue Jacket"),
		Timestamp:    "2026-10-19T10:00:00Z",
		CreatedAt:    "2026-10-19T12:00:00Z",
		Metadata:     domain.ActivityMetadata{Action: "share", RequestID: "req-1"},
	}, store.activities[0])
}

func TestCreateShareActivity_OmitsEmptyItemName(t *testing.T) {
	store := newMemStore()
	uc := newTestRecorder(store)

	_, err := uc.CreateShareActivity(context.Background(), domain.ShareActivityInput{UserID: "u", ItemID: "i", ItemName: strPtr("")})
	require.NoError(t, err)
	_, err = uc.CreateShareActivity(context.Background(), domain.ShareActivityInput{UserID: "u", ItemID: "i"})
	require.NoError(t, err)

	require.Len(t, store.activities, 2)
	assert.Nil(t, store.activities[0].ItemName)
	assert.Nil(t, store.activities[1].ItemName)
}

func TestCreateShareActivity_FreshIDPerCall(t *testing.T) {
	store := newMemStore()
	uc := NewRecordShareActivityUseCase(store)
	in := domain.ShareActivityInput{UserID: "u", ItemID: "i", RequestID: "r"}

	first, err := uc.CreateShareActivity(context.Background(), in)
	require.NoError(t, err)
	second, err := uc.CreateShareActivity(context.Background(), in)
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestCreateShareActivity_PropagatesStoreError(t *testing.T) {
	store := newMemStore()
	storeErr := &domain.StoreError{Op: "put_activity", Err: errors.New("throttled")}
	store.putErr["item-1"] = storeErr

	id, err := newTestRecorder(store).CreateShareActivity(context.Background(), domain.ShareActivityInput{UserID: "u", ItemID: "item-1"})

	assert.Same(t, storeErr, err)
	assert.Equal(t, uuid.Nil, id)
}
