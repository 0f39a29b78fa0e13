package service

import (
	"context"
	"time"

	"guildconfig/events"
	"guildconfig/models"
)

// GuildSettingsRepository defines the interface for guild settings data access.
// Documents are the raw stored form; decoding and normalization happen in the service.
type GuildSettingsRepository interface {
	// LoadRaw returns the stored document for a guild and whether one exists
	LoadRaw(ctx context.Context, guildID string) (models.Document, bool, error)

	// Upsert creates or fully overwrites the stored document and reports
	// whether this call inserted the record
	Upsert(ctx context.Context, guildID string, doc models.Document) (bool, error)

	// CreateIfAbsent stores doc only when the guild has no record yet and
	// returns whichever document is stored afterwards
	CreateIfAbsent(ctx context.Context, guildID string, doc models.Document) (models.Document, bool, error)
}

// GuildSettingsService defines the interface for guild settings operations
type GuildSettingsService interface {
	// GetSettings returns the complete normalized settings for a guild,
	// creating the default record on first access. Storage failures are
	// absorbed and answered with defaults.
	GetSettings(ctx context.Context, guildID string) (*models.GuildSettings, error)

	// SaveSettings merges patch into the stored record, validates and persists
	// the result, and returns the saved record
	SaveSettings(ctx context.Context, guildID string, patch *models.GuildSettingsPatch) (*models.GuildSettings, error)
}

// EventPublisher defines the interface for publishing events
type EventPublisher interface {
	Publish(event events.Event) error
}

// SettingsMetrics receives store outcomes for instrumentation
type SettingsMetrics interface {
	RecordSettingsLoad(outcome string)
	RecordSettingsSave(outcome string, duration time.Duration)
	RecordLockWait(duration time.Duration)
}

// Load outcomes
const (
	LoadOutcomeFound    = "found"
	LoadOutcomeCreated  = "created"
	LoadOutcomeFallback = "fallback"
)

// Save outcomes
const (
	SaveOutcomeSaved        = "saved"
	SaveOutcomeInvalid      = "invalid"
	SaveOutcomeStorageError = "storage_error"
	SaveOutcomeLockTimeout  = "lock_timeout"
)

type noopMetrics struct{}

func (noopMetrics) RecordSettingsLoad(string)                {}
func (noopMetrics) RecordSettingsSave(string, time.Duration) {}
func (noopMetrics) RecordLockWait(time.Duration)             {}
