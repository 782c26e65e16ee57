package usecase

import (
	"context"
	"sync"

	"share-worker/internal/core/domain"
	"share-worker/internal/core/port"
)

// memStore is an in-memory record store with per-item error injection.
type memStore struct {
	mu         sync.Mutex
	items      map[string]*domain.Item
	activities []domain.ActivityRecord

	getErr map[string]error
	incErr map[string]error
	putErr map[string]error
}

func newMemStore(items ...domain.Item) *memStore {
	s := &memStore{
		items:  make(map[string]*domain.Item),
		getErr: make(map[string]error),
		incErr: make(map[string]error),
		putErr: make(map[string]error),
	}
	for i := range items {
		item := items[i]
		s.items[item.ItemID] = &item
	}
	return s
}

func (s *memStore) GetItem(ctx context.Context, itemID string) (*domain.Item, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.getErr[itemID]; err != nil {
		return nil, false, err
	}
	item, ok := s.items[itemID]
	if !ok {
		return nil, false, nil
	}
	cp := *item
	return &cp, true, nil
}

func (s *memStore) IncrementShareCount(ctx context.Context, itemID, expectedOwnerUserID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.incErr[itemID]; err != nil {
		return err
	}
	item, ok := s.items[itemID]
	if !ok || item.OwnerUserID != expectedOwnerUserID {
		return domain.ErrOwnershipMismatch
	}
	item.SharedCount++
	item.IsPublic = true
	item.UpdatedAt = "now"
	return nil
}

func (s *memStore) PutActivity(ctx context.Context, record domain.ActivityRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.putErr[record.ItemID]; err != nil {
		return err
	}
	s.activities = append(s.activities, record)
	return nil
}

func (s *memStore) item(id string) domain.Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.items[id]
}

func (s *memStore) activityCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.activities)
}

type recordingMetrics struct {
	mu        sync.Mutex
	published []port.Counters
}

func (m *recordingMetrics) Publish(ctx context.Context, counters port.Counters) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published = append(m.published, counters)
}

func (m *recordingMetrics) Snapshot() port.Counters {
	return port.Counters{}
}

type fakeShareEventPublisher struct {
	published []domain.ShareEventMessage
	err       error
}

func (p *fakeShareEventPublisher) PublishShareEvent(ctx context.Context, msg domain.ShareEventMessage) error {
	if p.err != nil {
		return p.err
	}
	p.published = append(p.published, msg)
	return nil
}

func strPtr(s string) *string { return &s }
