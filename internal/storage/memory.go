// Package storage holds in-process backends for reports and photos. They back
// the memory mode of the service and stand in for the Google APIs in tests.
package storage

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/dharsanguruparan/LineReport/internal/model"
)

var (
	// ErrNotFound is returned when a photo ID is unknown.
	ErrNotFound = errors.New("photo not found")
)

// MemoryStore is an append-only report log guarded by an RWMutex.
type MemoryStore struct {
	mu      sync.RWMutex
	reports []model.Report
}

// NewMemoryStore constructs a MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Append adds a report to the end of the log.
func (m *MemoryStore) Append(ctx context.Context, r model.Report) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reports = append(m.reports, r)
	return nil
}

// List returns a copy of the log oldest first; a positive limit keeps the
// newest entries.
func (m *MemoryStore) List(ctx context.Context, limit int) ([]model.Report, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	src := m.reports
	if limit > 0 && len(src) > limit {
		src = src[len(src)-limit:]
	}
	out := make([]model.Report, len(src))
	copy(out, src)
	return out, nil
}

// Len reports how many rows were appended.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.reports)
}

// MemoryPhotos keeps uploaded photos in a map and serves them under
// baseURL + ID.
type MemoryPhotos struct {
	mu      sync.RWMutex
	baseURL string
	photos  map[string]*model.Photo
}

// NewMemoryPhotos constructs a MemoryPhotos whose links start with baseURL.
func NewMemoryPhotos(baseURL string) *MemoryPhotos {
	return &MemoryPhotos{
		baseURL: baseURL,
		photos:  make(map[string]*model.Photo),
	}
}

// Upload stores a copy of photo and returns its link.
func (m *MemoryPhotos) Upload(ctx context.Context, photo *model.Photo) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if photo == nil || len(photo.Data) == 0 {
		return "", errors.New("storage: empty photo")
	}
	cp := *photo
	cp.Data = append([]byte(nil), photo.Data...)
	id := uuid.NewString()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.photos[id] = &cp
	return m.baseURL + id, nil
}

// Delete removes the photo behind link.
func (m *MemoryPhotos) Delete(ctx context.Context, link string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	id := strings.TrimPrefix(link, m.baseURL)
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.photos[id]; !ok || id == link {
		return ErrNotFound
	}
	delete(m.photos, id)
	return nil
}

// Get returns a copy of the photo stored under id.
func (m *MemoryPhotos) Get(id string) (*model.Photo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.photos[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

// Len reports how many photos are stored.
func (m *MemoryPhotos) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.photos)
}
