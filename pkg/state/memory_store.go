package state

import (
	"context"
	"sync"
	"time"

	groups "github.com/goliatone/go-groups"
)

// MemoryStore is an in-memory Store intended for tests and examples.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]memoryRecord
	now     func() time.Time
}

type memoryRecord struct {
	ids      groups.IDList
	meta     Meta
	revision int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: map[string]memoryRecord{}, now: time.Now}
}

func (s *MemoryStore) Load(_ context.Context, key string) (groups.IDList, Meta, bool, error) {
	if err := validateKey(key); err != nil {
		return nil, Meta{}, false, err
	}

	s.mu.RLock()
	record, ok := s.records[key]
	s.mu.RUnlock()
	if !ok {
		return nil, Meta{}, false, nil
	}
	return record.ids.Clone(), cloneMeta(record.meta), true, nil
}

func (s *MemoryStore) Save(_ context.Context, key string, ids groups.IDList, meta Meta) (Meta, error) {
	if err := validateKey(key); err != nil {
		return Meta{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.records == nil {
		s.records = map[string]memoryRecord{}
	}
	current := s.records[key]
	if err := checkRevision(meta.ETag, current.revision); err != nil {
		return Meta{}, err
	}

	saved := cloneMeta(meta)
	saved.ETag = revisionETag(current.revision + 1)
	if saved.UpdatedAt.IsZero() {
		saved.UpdatedAt = s.clock()
	}
	s.records[key] = memoryRecord{ids: ids.Clone(), meta: saved, revision: current.revision + 1}
	return cloneMeta(saved), nil
}

// Close implements ClosableStore.
func (s *MemoryStore) Close() error {
	return nil
}

func (s *MemoryStore) clock() time.Time {
	if s.now == nil {
		return time.Now()
	}
	return s.now()
}
