package mocks

import (
	"context"
	"sort"
	"sync"

	"github.com/custodia-labs/cloudrelay/internal/core/domain"
	"github.com/custodia-labs/cloudrelay/internal/core/ports/driven"
)

var _ driven.FileUploadStore = (*MockFileUploadStore)(nil)

// MockFileUploadStore keeps file records in memory.
type MockFileUploadStore struct {
	mu    sync.RWMutex
	files map[string]domain.FileUpload
}

// NewMockFileUploadStore creates a new MockFileUploadStore
func NewMockFileUploadStore() *MockFileUploadStore {
	return &MockFileUploadStore{files: make(map[string]domain.FileUpload)}
}

func (m *MockFileUploadStore) Save(ctx context.Context, file *domain.FileUpload) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[file.ID] = *file
	return nil
}

func (m *MockFileUploadStore) Get(ctx context.Context, id string) (*domain.FileUpload, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	f, ok := m.files[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &f, nil
}

func (m *MockFileUploadStore) ListByUser(ctx context.Context, userID string, limit int) ([]*domain.FileUpload, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.FileUpload
	for _, f := range m.files {
		if f.UserID == userID {
			file := f
			out = append(out, &file)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MockFileUploadStore) CountByStatus(ctx context.Context) (map[domain.FileStatus]int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	counts := make(map[domain.FileStatus]int64)
	for _, f := range m.files {
		counts[f.Status]++
	}
	return counts, nil
}
