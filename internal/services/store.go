package services

import (
	"context"
	"sync"

	"loggamera-bridge/internal/models"
)

// SettingsStore persists the user adjustable settings across restarts
type SettingsStore interface {
	Load(ctx context.Context) (models.Settings, bool, error)
	Save(ctx context.Context, s models.Settings) error
}

// MemoryStore keeps settings for the lifetime of the process
type MemoryStore struct {
	mu       sync.Mutex
	settings models.Settings
	saved    bool
}

// NewMemoryStore returns an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Load(ctx context.Context) (models.Settings, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.settings, m.saved, nil
}

func (m *MemoryStore) Save(ctx context.Context, s models.Settings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings, m.saved = s, true
	return nil
}
