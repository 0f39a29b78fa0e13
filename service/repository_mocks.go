package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"guildconfig/events"
	"guildconfig/models"

	"github.com/stretchr/testify/mock"
)

// MockGuildSettingsRepository is a mock implementation of GuildSettingsRepository
type MockGuildSettingsRepository struct {
	mock.Mock
}

func (m *MockGuildSettingsRepository) LoadRaw(ctx context.Context, guildID string) (models.Document, bool, error) {
	args := m.Called(ctx, guildID)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(models.Document), args.Bool(1), args.Error(2)
}

func (m *MockGuildSettingsRepository) Upsert(ctx context.Context, guildID string, doc models.Document) (bool, error) {
	args := m.Called(ctx, guildID, doc)
	return args.Bool(0), args.Error(1)
}

func (m *MockGuildSettingsRepository) CreateIfAbsent(ctx context.Context, guildID string, doc models.Document) (models.Document, bool, error) {
	args := m.Called(ctx, guildID, doc)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(models.Document), args.Bool(1), args.Error(2)
}

// MockEventPublisher is a mock implementation of EventPublisher
type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) Publish(event events.Event) error {
	args := m.Called(event)
	return args.Error(0)
}

// MockSettingsMetrics is a mock implementation of SettingsMetrics
type MockSettingsMetrics struct {
	mock.Mock
}

func (m *MockSettingsMetrics) RecordSettingsLoad(outcome string) {
	m.Called(outcome)
}

func (m *MockSettingsMetrics) RecordSettingsSave(outcome string, duration time.Duration) {
	m.Called(outcome, duration)
}

func (m *MockSettingsMetrics) RecordLockWait(duration time.Duration) {
	m.Called(duration)
}

// MemoryGuildSettingsRepository keeps documents as JSON in memory so reads
// see the same shapes a database round-trip produces. It is meant for tests
// and for running the store without a database.
type MemoryGuildSettingsRepository struct {
	mu   sync.RWMutex
	docs map[string][]byte

	// LoadDelay widens race windows in concurrency tests
	LoadDelay time.Duration
}

// NewMemoryGuildSettingsRepository creates an empty in-memory repository
func NewMemoryGuildSettingsRepository() *MemoryGuildSettingsRepository {
	return &MemoryGuildSettingsRepository{docs: make(map[string][]byte)}
}

func (r *MemoryGuildSettingsRepository) LoadRaw(ctx context.Context, guildID string) (models.Document, bool, error) {
	if r.LoadDelay > 0 {
		select {
		case <-time.After(r.LoadDelay):
		case <-ctx.Done():
			return nil, false, ctx.Err()
		}
	}

	r.mu.RLock()
	raw, ok := r.docs[guildID]
	r.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	return decodeDocument(raw)
}

func (r *MemoryGuildSettingsRepository) Upsert(ctx context.Context, guildID string, doc models.Document) (bool, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return false, fmt.Errorf("failed to marshal settings: %w", err)
	}
	r.mu.Lock()
	_, existed := r.docs[guildID]
	r.docs[guildID] = raw
	r.mu.Unlock()
	return !existed, nil
}

func (r *MemoryGuildSettingsRepository) CreateIfAbsent(ctx context.Context, guildID string, doc models.Document) (models.Document, bool, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, false, fmt.Errorf("failed to marshal settings: %w", err)
	}

	r.mu.Lock()
	existing, ok := r.docs[guildID]
	if !ok {
		r.docs[guildID] = raw
		existing = raw
	}
	r.mu.Unlock()

	stored, _, err := decodeDocument(existing)
	return stored, !ok, err
}

// Count returns the number of stored records
func (r *MemoryGuildSettingsRepository) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.docs)
}

// Put stores a raw document, bypassing normalization
func (r *MemoryGuildSettingsRepository) Put(guildID string, doc models.Document) error {
	_, err := r.Upsert(context.Background(), guildID, doc)
	return err
}

func decodeDocument(raw []byte) (models.Document, bool, error) {
	var doc models.Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal settings: %w", err)
	}
	return doc, true, nil
}
