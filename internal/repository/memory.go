package repository

import (
	"context"
	"sync"
	"time"

	"github.com/dverran/audiodrop/internal/model"
)

// Memory is a mutex-guarded in-memory repository with the same conditional
// transition semantics as Postgres. It backs tests and database-less
// development.
type Memory struct {
	mu     sync.RWMutex
	assets map[string]*model.Asset
}

var _ AssetRepository = (*Memory)(nil)

// NewMemory constructs a Memory repository.
func NewMemory() *Memory {
	return &Memory{assets: make(map[string]*model.Asset)}
}

// Create inserts a freshly uploaded asset.
func (m *Memory) Create(ctx context.Context, asset *model.Asset) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	asset.Status = model.StatusUploaded
	asset.CreatedAt = now
	asset.UpdatedAt = now
	stored := *asset
	m.assets[asset.ID] = &stored
	return nil
}

// Get returns a copy of the record so callers cannot mutate internal state.
func (m *Memory) Get(ctx context.Context, id string) (*model.Asset, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.assets[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *rec
	return &out, nil
}

// TryMarkProcessing performs the compare-and-swap under the write lock.
func (m *Memory) TryMarkProcessing(ctx context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.assets[id]
	if !ok {
		return false, ErrNotFound
	}
	if rec.Status != model.StatusUploaded {
		return false, nil
	}
	rec.Status = model.StatusProcessing
	rec.UpdatedAt = time.Now().UTC()
	return true, nil
}

// MarkProcessed transitions processing -> processed.
func (m *Memory) MarkProcessed(ctx context.Context, id, processedKey string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.assets[id]
	if !ok {
		return ErrNotFound
	}
	if rec.Status != model.StatusProcessing {
		return errNotProcessing(id)
	}
	key := processedKey
	rec.Status = model.StatusProcessed
	rec.ProcessedKey = &key
	rec.ErrorMessage = nil
	rec.UpdatedAt = time.Now().UTC()
	return nil
}

// MarkFailed transitions any non-terminal record to failed.
func (m *Memory) MarkFailed(ctx context.Context, id, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.assets[id]
	if !ok {
		return ErrNotFound
	}
	if rec.Status.Terminal() {
		return errTerminal(id)
	}
	msg := message
	rec.Status = model.StatusFailed
	rec.ErrorMessage = &msg
	rec.UpdatedAt = time.Now().UTC()
	return nil
}
