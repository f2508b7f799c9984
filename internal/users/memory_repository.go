package users

import (
	"context"
	"sort"
	"sync"
)

type memoryRepository struct {
	mu      sync.RWMutex
	records map[string]Record
}

// NewMemoryRepository builds an in-memory allow-list for tests and local development.
func NewMemoryRepository() Repository {
	return &memoryRepository{records: make(map[string]Record)}
}

func (r *memoryRepository) Lookup(_ context.Context, telegramID string) (Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[telegramID]
	if !ok {
		return Record{}, ErrNotFound
	}
	return rec, nil
}

func (r *memoryRepository) Upsert(_ context.Context, record Record) (Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	record.AddedAt = record.AddedAt.UTC()
	r.records[record.TelegramID] = record
	return record, nil
}

func (r *memoryRepository) Delete(_ context.Context, telegramID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.records[telegramID]; !ok {
		return ErrNotFound
	}
	delete(r.records, telegramID)
	return nil
}

func (r *memoryRepository) List(_ context.Context) ([]Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Record, 0, len(r.records))
	for _, rec := range r.records {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].AddedAt.Equal(out[j].AddedAt) {
			return out[i].AddedAt.After(out[j].AddedAt)
		}
		return out[i].TelegramID < out[j].TelegramID
	})
	return out, nil
}
