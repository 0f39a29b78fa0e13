package service

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"time"

	"guildconfig/events"
	"guildconfig/models"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// guildSettingsService implements the GuildSettingsService interface
type guildSettingsService struct {
	repo      GuildSettingsRepository
	locks     *LockRegistry
	publisher EventPublisher
	metrics   SettingsMetrics
	loads     singleflight.Group
	now       func() time.Time
}

// NewGuildSettingsService creates a new guild settings service. A nil
// publisher or metrics sink disables that concern.
func NewGuildSettingsService(repo GuildSettingsRepository, locks *LockRegistry, publisher EventPublisher, metrics SettingsMetrics) GuildSettingsService {
	if locks == nil {
		locks = NewLockRegistry(0)
	}
	if publisher == nil {
		publisher = events.NewBus()
	}
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &guildSettingsService{
		repo:      repo,
		locks:     locks,
		publisher: publisher,
		metrics:   metrics,
		now:       time.Now,
	}
}

// GetSettings retrieves guild settings, storing the defaults on first access
func (s *guildSettingsService) GetSettings(ctx context.Context, guildID string) (*models.GuildSettings, error) {
	if !models.IsSnowflake(guildID) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidGuildID, guildID)
	}

	// Concurrent first reads of the same guild share one load. The load is
	// detached from any single caller so one cancellation cannot fail the rest.
	shared := context.WithoutCancel(ctx)
	results := s.loads.DoChan(guildID, func() (any, error) {
		return s.load(shared, guildID)
	})

	var res singleflight.Result
	select {
	case res = <-results:
	case <-ctx.Done():
		res = singleflight.Result{Err: ctx.Err()}
	}

	if res.Err != nil {
		log.WithFields(log.Fields{
			"guild_id": guildID,
			"error":    res.Err,
		}).Error("Failed to load guild settings, serving defaults")
		s.metrics.RecordSettingsLoad(LoadOutcomeFallback)
		return Normalize(models.DefaultGuildSettings(guildID)), nil
	}

	// The shared result must not leak between callers
	return res.Val.(*models.GuildSettings).Clone(), nil
}

func (s *guildSettingsService) load(ctx context.Context, guildID string) (*models.GuildSettings, error) {
	doc, found, err := s.repo.LoadRaw(ctx, guildID)
	if err != nil {
		return nil, &StorageError{Op: "load", GuildID: guildID, Err: err}
	}
	if found {
		s.metrics.RecordSettingsLoad(LoadOutcomeFound)
		return NormalizeDocument(guildID, doc), nil
	}

	defaults := Normalize(models.DefaultGuildSettings(guildID))
	stored, created, err := s.repo.CreateIfAbsent(ctx, guildID, defaults.ToDocument())
	if err != nil {
		return nil, &StorageError{Op: "create", GuildID: guildID, Err: err}
	}
	if !created {
		// A concurrent save got there first
		s.metrics.RecordSettingsLoad(LoadOutcomeFound)
		return NormalizeDocument(guildID, stored), nil
	}

	log.WithField("guild_id", guildID).Info("Created default guild settings")
	s.metrics.RecordSettingsLoad(LoadOutcomeCreated)
	if err := s.publisher.Publish(events.GuildSettingsCreatedEvent{
		GuildID:   guildID,
		CreatedAt: s.now().UTC(),
	}); err != nil {
		log.WithFields(log.Fields{
			"guild_id": guildID,
			"error":    err,
		}).Warn("Failed to publish guild settings created event")
	}
	return defaults, nil
}

// SaveSettings merges patch into the stored settings under the guild's lock
func (s *guildSettingsService) SaveSettings(ctx context.Context, guildID string, patch *models.GuildSettingsPatch) (*models.GuildSettings, error) {
	if !models.IsSnowflake(guildID) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidGuildID, guildID)
	}

	start := s.now()
	release, err := s.locks.Acquire(ctx, guildID)
	if err != nil {
		if errors.Is(err, ErrLockTimeout) {
			s.metrics.RecordSettingsSave(SaveOutcomeLockTimeout, s.now().Sub(start))
		}
		return nil, fmt.Errorf("failed to acquire settings lock for guild %s: %w", guildID, err)
	}
	defer release()
	s.metrics.RecordLockWait(s.now().Sub(start))

	saved, outcome, err := s.saveLocked(ctx, guildID, patch)
	s.metrics.RecordSettingsSave(outcome, s.now().Sub(start))
	return saved, err
}

// saveLocked runs the read-merge-validate-write cycle. The caller holds the guild lock.
func (s *guildSettingsService) saveLocked(ctx context.Context, guildID string, patch *models.GuildSettingsPatch) (*models.GuildSettings, string, error) {
	currentDoc, found, err := s.repo.LoadRaw(ctx, guildID)
	if err != nil {
		return nil, SaveOutcomeStorageError, &StorageError{Op: "load", GuildID: guildID, Err: err}
	}

	var current *models.GuildSettings
	if found {
		current = NormalizeDocument(guildID, currentDoc)
	} else {
		current = Normalize(models.DefaultGuildSettings(guildID))
	}

	merged := Normalize(Merge(current, patch))
	merged.GuildID = guildID

	if violations := Validate(merged); len(violations) > 0 {
		log.WithFields(log.Fields{
			"guild_id":   guildID,
			"violations": violations,
		}).Warn("Rejected invalid guild settings")
		return nil, SaveOutcomeInvalid, &ValidationError{GuildID: guildID, Violations: violations}
	}

	newDoc := merged.ToDocument()
	changed := changedFields(current.ToDocument(), newDoc)

	created, err := s.repo.Upsert(ctx, guildID, newDoc)
	if err != nil {
		return nil, SaveOutcomeStorageError, &StorageError{Op: "save", GuildID: guildID, Err: err}
	}

	// Only the write that inserted the row announces it, so a racing first
	// read and first save never both publish a created event
	pending := events.NewTransactionalBus(s.publisher)
	if created {
		pending.Publish(events.GuildSettingsCreatedEvent{GuildID: guildID, CreatedAt: s.now().UTC()})
	}
	pending.Publish(events.GuildSettingsUpdatedEvent{
		GuildID:       guildID,
		ChangedFields: changed,
		UpdatedAt:     s.now().UTC(),
	})

	if err := pending.Flush(); err != nil {
		log.WithFields(log.Fields{
			"guild_id": guildID,
			"error":    err,
		}).Warn("Failed to publish guild settings events")
	}

	log.WithFields(log.Fields{
		"guild_id":       guildID,
		"changed_fields": changed,
	}).Info("Saved guild settings")

	return merged, SaveOutcomeSaved, nil
}

// changedFields lists the top-level keys whose stored value differs
func changedFields(before, after models.Document) []string {
	changed := make([]string, 0)
	for key, value := range after {
		if !reflect.DeepEqual(before[key], value) {
			changed = append(changed, key)
		}
	}
	for key := range before {
		if _, ok := after[key]; !ok {
			changed = append(changed, key)
		}
	}
	sort.Strings(changed)
	return changed
}
