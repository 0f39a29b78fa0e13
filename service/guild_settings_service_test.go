package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"guildconfig/events"
	"guildconfig/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestGuildSettingsService_GetSettings_InvalidGuildID(t *testing.T) {
	mockRepo := new(MockGuildSettingsRepository)
	service := NewGuildSettingsService(mockRepo, nil, nil, nil)

	for _, id := range []string{"", "123", "abcdefghijklmnopqr", "123456789012345678901"} {
		settings, err := service.GetSettings(context.Background(), id)
		assert.ErrorIs(t, err, ErrInvalidGuildID)
		assert.Nil(t, settings)
	}

	mockRepo.AssertNotCalled(t, "LoadRaw", mock.Anything, mock.Anything)
}

func TestGuildSettingsService_GetSettings_MaterializesDefaults(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryGuildSettingsRepository()
	service := NewGuildSettingsService(repo, nil, nil, nil)

	first, err := service.GetSettings(ctx, testGuildID)
	require.NoError(t, err)
	second, err := service.GetSettings(ctx, testGuildID)
	require.NoError(t, err)

	assert.Equal(t, Normalize(models.DefaultGuildSettings(testGuildID)), first)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, repo.Count())
	assert.Empty(t, Validate(first))
}

func TestGuildSettingsService_GetSettings_ExistingRecord(t *testing.T) {
	ctx := context.Background()
	mockRepo := new(MockGuildSettingsRepository)
	mockMetrics := new(MockSettingsMetrics)
	service := NewGuildSettingsService(mockRepo, nil, nil, mockMetrics)

	stored := populatedSettings()
	mockRepo.On("LoadRaw", mock.Anything, testGuildID).Return(stored.ToDocument(), true, nil)
	mockMetrics.On("RecordSettingsLoad", LoadOutcomeFound).Return()

	settings, err := service.GetSettings(ctx, testGuildID)

	require.NoError(t, err)
	assert.Equal(t, stored, settings)
	mockRepo.AssertNotCalled(t, "CreateIfAbsent", mock.Anything, mock.Anything, mock.Anything)
	mockMetrics.AssertExpectations(t)
}

func TestGuildSettingsService_GetSettings_CallersGetIndependentCopies(t *testing.T) {
	ctx := context.Background()
	service := NewGuildSettingsService(NewMemoryGuildSettingsRepository(), nil, nil, nil)

	first, err := service.GetSettings(ctx, testGuildID)
	require.NoError(t, err)
	first.LanguageRoles["fr"] = "999999999999999999"

	second, err := service.GetSettings(ctx, testGuildID)
	require.NoError(t, err)
	assert.Equal(t, "", second.LanguageRoles["fr"])
}

func TestGuildSettingsService_GetSettings_StorageFailureFallsBackToDefaults(t *testing.T) {
	ctx := context.Background()
	mockRepo := new(MockGuildSettingsRepository)
	mockMetrics := new(MockSettingsMetrics)
	service := NewGuildSettingsService(mockRepo, nil, nil, mockMetrics)

	mockRepo.On("LoadRaw", mock.Anything, testGuildID).Return(nil, false, errors.New("connection refused"))
	mockMetrics.On("RecordSettingsLoad", LoadOutcomeFallback).Return()

	settings, err := service.GetSettings(ctx, testGuildID)

	require.NoError(t, err)
	assert.Equal(t, Normalize(models.DefaultGuildSettings(testGuildID)), settings)
	mockRepo.AssertNotCalled(t, "CreateIfAbsent", mock.Anything, mock.Anything, mock.Anything)
	mockMetrics.AssertExpectations(t)
}

func TestGuildSettingsService_GetSettings_CreateFailureFallsBackToDefaults(t *testing.T) {
	ctx := context.Background()
	mockRepo := new(MockGuildSettingsRepository)
	service := NewGuildSettingsService(mockRepo, nil, nil, nil)

	mockRepo.On("LoadRaw", mock.Anything, testGuildID).Return(nil, false, nil)
	mockRepo.On("CreateIfAbsent", mock.Anything, testGuildID, mock.Anything).Return(nil, false, errors.New("disk full"))

	settings, err := service.GetSettings(ctx, testGuildID)

	require.NoError(t, err)
	assert.Equal(t, Normalize(models.DefaultGuildSettings(testGuildID)), settings)
	mockRepo.AssertExpectations(t)
}

func TestGuildSettingsService_GetSettings_ConcurrentFirstReadsCreateOnce(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryGuildSettingsRepository()
	repo.LoadDelay = 5 * time.Millisecond
	mockPublisher := new(MockEventPublisher)
	mockPublisher.On("Publish", mock.AnythingOfType("events.GuildSettingsCreatedEvent")).Return(nil)
	service := NewGuildSettingsService(repo, nil, mockPublisher, nil)

	const readers = 10
	results := make([]*models.GuildSettings, readers)
	var wg sync.WaitGroup
	for i := 0; i < readers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			settings, err := service.GetSettings(ctx, testGuildID)
			assert.NoError(t, err)
			results[i] = settings
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, repo.Count())
	for _, r := range results {
		assert.Equal(t, results[0], r)
	}
	mockPublisher.AssertNumberOfCalls(t, "Publish", 1)
}

func TestGuildSettingsService_SaveSettings_InvalidGuildID(t *testing.T) {
	mockRepo := new(MockGuildSettingsRepository)
	service := NewGuildSettingsService(mockRepo, nil, nil, nil)

	_, err := service.SaveSettings(context.Background(), "guild", &models.GuildSettingsPatch{})

	assert.ErrorIs(t, err, ErrInvalidGuildID)
	mockRepo.AssertNotCalled(t, "LoadRaw", mock.Anything, mock.Anything)
}

func TestGuildSettingsService_SaveSettings_ConcurrentDifferentFieldsAllSurvive(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryGuildSettingsRepository()
	// Widen the read-modify-write window so lost updates would show
	repo.LoadDelay = 2 * time.Millisecond
	service := NewGuildSettingsService(repo, nil, nil, nil)

	patches := []*models.GuildSettingsPatch{
		{Prefix: models.StringPtr("?")},
		{WelcomeEnabled: models.BoolPtr(true)},
		{WelcomeMessage: models.StringPtr("hi {user}")},
		{GoodbyeEnabled: models.BoolPtr(true)},
		{GoodbyeMessage: models.StringPtr("bye {username}")},
		{WelcomeChannel: models.StringPtr("100000000000000001")},
		{TicketCategoryID: models.StringPtr("100000000000000002")},
		{TicketLogChannelID: models.StringPtr("100000000000000003")},
		{LogChannelID: models.StringPtr("100000000000000004")},
		{SupportRoleIDs: []string{"100000000000000005"}},
		{RequiredRoleIDs: []string{"100000000000000006"}},
		{LogEvents: []string{"memberJoin"}},
		{RulesAnnouncement: &models.RulesAnnouncementPatch{Title: models.StringPtr("Rules")}},
		{RulesAnnouncement: &models.RulesAnnouncementPatch{Enabled: models.BoolPtr(true)}},
	}
	for i, code := range models.LanguageCodes {
		patches = append(patches, &models.GuildSettingsPatch{
			LanguageRoles: map[string]string{code: fmt.Sprintf("2000000000000000%02d", i)},
		})
	}

	var wg sync.WaitGroup
	for _, p := range patches {
		wg.Add(1)
		go func(p *models.GuildSettingsPatch) {
			defer wg.Done()
			_, err := service.SaveSettings(ctx, testGuildID, p)
			assert.NoError(t, err)
		}(p)
	}
	wg.Wait()

	expected := Normalize(models.DefaultGuildSettings(testGuildID))
	for _, p := range patches {
		expected = Normalize(Merge(expected, p))
	}

	actual, err := service.GetSettings(ctx, testGuildID)
	require.NoError(t, err)
	assert.Equal(t, expected, actual)
}

func TestGuildSettingsService_SaveSettings_RejectsUnknownCondition(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryGuildSettingsRepository()
	service := NewGuildSettingsService(repo, nil, nil, nil)

	patch := models.DecodePatch(models.Document{
		"roleGrantRules": []any{
			map[string]any{"id": "x", "name": "y", "condition": "bogus", "targetRole": "123456789012345678"},
		},
	})
	_, err := service.SaveSettings(ctx, testGuildID, patch)

	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, testGuildID, validationErr.GuildID)
	require.Len(t, validationErr.Violations, 1)
	assert.Contains(t, validationErr.Violations[0], "roleGrantRules[0].condition")

	// Nothing was persisted
	assert.Equal(t, 0, repo.Count())
	settings, err := service.GetSettings(ctx, testGuildID)
	require.NoError(t, err)
	assert.Empty(t, settings.RoleGrantRules)
}

func TestGuildSettingsService_SaveSettings_SuccessivePatchesCompose(t *testing.T) {
	ctx := context.Background()
	service := NewGuildSettingsService(NewMemoryGuildSettingsRepository(), nil, nil, nil)

	p1 := &models.GuildSettingsPatch{
		Prefix: models.StringPtr("!"),
		RoleGrantRules: []models.RoleGrantRule{
			{Name: "Button", Condition: models.ConditionButtonClick, TargetRole: "555555555555555555", Enabled: true},
		},
		LanguageRoles: map[string]string{"en": "666666666666666666"},
	}
	p2 := &models.GuildSettingsPatch{
		Prefix:        models.StringPtr("?"),
		LanguageRoles: map[string]string{"fr": "777777777777777777"},
	}

	_, err := service.SaveSettings(ctx, testGuildID, p1)
	require.NoError(t, err)
	saved, err := service.SaveSettings(ctx, testGuildID, p2)
	require.NoError(t, err)

	expected := Normalize(Merge(Normalize(models.DefaultGuildSettings(testGuildID)), ComposePatches(p1, p2)))
	assert.Equal(t, expected, saved)

	loaded, err := service.GetSettings(ctx, testGuildID)
	require.NoError(t, err)
	assert.Equal(t, saved, loaded)
	assert.Equal(t, "?", loaded.Prefix)
	assert.Equal(t, "666666666666666666", loaded.LanguageRoles["en"])
	assert.Equal(t, "777777777777777777", loaded.LanguageRoles["fr"])
	require.Len(t, loaded.RoleGrantRules, 1)
}

func TestGuildSettingsService_SaveSettings_StorageErrorReleasesLock(t *testing.T) {
	ctx := context.Background()
	mockRepo := new(MockGuildSettingsRepository)
	locks := NewLockRegistry(time.Second)
	service := NewGuildSettingsService(mockRepo, locks, nil, nil)

	upsertErr := errors.New("connection reset")
	mockRepo.On("LoadRaw", ctx, testGuildID).Return(nil, false, nil)
	mockRepo.On("Upsert", ctx, testGuildID, mock.Anything).Return(false, upsertErr).Once()
	mockRepo.On("Upsert", ctx, testGuildID, mock.Anything).Return(true, nil).Once()

	_, err := service.SaveSettings(ctx, testGuildID, &models.GuildSettingsPatch{Prefix: models.StringPtr("!")})

	var storageErr *StorageError
	require.ErrorAs(t, err, &storageErr)
	assert.Equal(t, "save", storageErr.Op)
	assert.ErrorIs(t, err, upsertErr)
	assert.Equal(t, 0, locks.Len())

	saved, err := service.SaveSettings(ctx, testGuildID, &models.GuildSettingsPatch{Prefix: models.StringPtr("!")})
	require.NoError(t, err)
	assert.Equal(t, "!", saved.Prefix)
	mockRepo.AssertExpectations(t)
}

func TestGuildSettingsService_SaveSettings_LoadErrorIsStorageError(t *testing.T) {
	ctx := context.Background()
	mockRepo := new(MockGuildSettingsRepository)
	service := NewGuildSettingsService(mockRepo, nil, nil, nil)

	mockRepo.On("LoadRaw", ctx, testGuildID).Return(nil, false, errors.New("timeout"))

	_, err := service.SaveSettings(ctx, testGuildID, &models.GuildSettingsPatch{})

	var storageErr *StorageError
	require.ErrorAs(t, err, &storageErr)
	assert.Equal(t, "load", storageErr.Op)
	mockRepo.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything, mock.Anything)
}

func TestGuildSettingsService_SaveSettings_LockTimeout(t *testing.T) {
	ctx := context.Background()
	mockRepo := new(MockGuildSettingsRepository)
	locks := NewLockRegistry(20 * time.Millisecond)
	service := NewGuildSettingsService(mockRepo, locks, nil, nil)

	release, err := locks.Acquire(ctx, testGuildID)
	require.NoError(t, err)
	defer release()

	_, err = service.SaveSettings(ctx, testGuildID, &models.GuildSettingsPatch{})

	assert.ErrorIs(t, err, ErrLockTimeout)
	mockRepo.AssertNotCalled(t, "LoadRaw", mock.Anything, mock.Anything)
}

func TestGuildSettingsService_SaveSettings_PublishesChangedFields(t *testing.T) {
	ctx := context.Background()
	mockRepo := new(MockGuildSettingsRepository)
	mockPublisher := new(MockEventPublisher)
	service := NewGuildSettingsService(mockRepo, nil, mockPublisher, nil)

	mockRepo.On("LoadRaw", ctx, testGuildID).Return(populatedSettings().ToDocument(), true, nil)
	mockRepo.On("Upsert", ctx, testGuildID, mock.Anything).Return(false, nil)
	mockPublisher.On("Publish", mock.MatchedBy(func(e events.Event) bool {
		updated, ok := e.(events.GuildSettingsUpdatedEvent)
		return ok && updated.GuildID == testGuildID &&
			assert.ObjectsAreEqual([]string{"prefix"}, updated.ChangedFields)
	})).Return(errors.New("broker down"))

	// A publish failure never fails the save
	saved, err := service.SaveSettings(ctx, testGuildID, &models.GuildSettingsPatch{Prefix: models.StringPtr("?")})

	require.NoError(t, err)
	assert.Equal(t, "?", saved.Prefix)
	mockPublisher.AssertExpectations(t)
	mockRepo.AssertExpectations(t)
}

func TestGuildSettingsService_SaveSettings_NoEventsWhenRejected(t *testing.T) {
	ctx := context.Background()
	mockRepo := new(MockGuildSettingsRepository)
	mockPublisher := new(MockEventPublisher)
	service := NewGuildSettingsService(mockRepo, nil, mockPublisher, nil)

	mockRepo.On("LoadRaw", ctx, testGuildID).Return(nil, false, nil)

	_, err := service.SaveSettings(ctx, testGuildID, &models.GuildSettingsPatch{Prefix: models.StringPtr("toolong")})

	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
	mockRepo.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything, mock.Anything)
	mockPublisher.AssertNotCalled(t, "Publish", mock.Anything)
}

func TestGuildSettingsService_GetSettings_CancelledLeaderDoesNotFailJoinedCaller(t *testing.T) {
	repo := NewMemoryGuildSettingsRepository()
	require.NoError(t, repo.Put(testGuildID, models.Document{"prefix": "!"}))
	repo.LoadDelay = 100 * time.Millisecond
	service := NewGuildSettingsService(repo, nil, nil, nil)

	leaderCtx, cancelLeader := context.WithCancel(context.Background())
	leaderDone := make(chan struct{})
	go func() {
		defer close(leaderDone)
		_, _ = service.GetSettings(leaderCtx, testGuildID)
	}()

	// Let the leader start the shared load, then join it and cancel the leader
	time.Sleep(20 * time.Millisecond)
	joined := make(chan *models.GuildSettings, 1)
	go func() {
		settings, err := service.GetSettings(context.Background(), testGuildID)
		assert.NoError(t, err)
		joined <- settings
	}()
	time.Sleep(20 * time.Millisecond)
	cancelLeader()
	<-leaderDone

	select {
	case settings := <-joined:
		require.NotNil(t, settings)
		assert.Equal(t, "!", settings.Prefix)
	case <-time.After(2 * time.Second):
		t.Fatal("joined caller never returned")
	}
}

func TestGuildSettingsService_GetSettings_CancelledCallerReturnsPromptly(t *testing.T) {
	repo := NewMemoryGuildSettingsRepository()
	repo.LoadDelay = time.Second
	service := NewGuildSettingsService(repo, nil, nil, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	settings, err := service.GetSettings(ctx, testGuildID)

	require.NoError(t, err)
	assert.Equal(t, Normalize(models.DefaultGuildSettings(testGuildID)), settings)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestGuildSettingsService_SaveSettings_NonFiniteTriggerDataIsDropped(t *testing.T) {
	ctx := context.Background()
	service := NewGuildSettingsService(NewMemoryGuildSettingsRepository(), nil, nil, nil)

	saved, err := service.SaveSettings(ctx, testGuildID, &models.GuildSettingsPatch{
		RoleGrantRules: []models.RoleGrantRule{{
			Name:        "Weighted",
			Condition:   models.ConditionMemberJoin,
			TargetRole:  "555555555555555555",
			Enabled:     true,
			TriggerData: map[string]any{"w": math.NaN(), "min": 3},
		}},
	})

	require.NoError(t, err)
	require.Len(t, saved.RoleGrantRules, 1)
	assert.Equal(t, map[string]any{"min": 3.0}, saved.RoleGrantRules[0].TriggerData)

	loaded, err := service.GetSettings(ctx, testGuildID)
	require.NoError(t, err)
	assert.Equal(t, saved, loaded)
}

func TestGuildSettingsService_SaveSettings_CreatedEventOnlyWhenInserted(t *testing.T) {
	ctx := context.Background()
	mockRepo := new(MockGuildSettingsRepository)
	mockPublisher := new(MockEventPublisher)
	service := NewGuildSettingsService(mockRepo, nil, mockPublisher, nil)

	// The save saw no record, but a first read created it before the write
	mockRepo.On("LoadRaw", ctx, testGuildID).Return(nil, false, nil)
	mockRepo.On("Upsert", ctx, testGuildID, mock.Anything).Return(false, nil)
	mockPublisher.On("Publish", mock.AnythingOfType("events.GuildSettingsUpdatedEvent")).Return(nil)

	_, err := service.SaveSettings(ctx, testGuildID, &models.GuildSettingsPatch{Prefix: models.StringPtr("!")})

	require.NoError(t, err)
	mockPublisher.AssertNumberOfCalls(t, "Publish", 1)
	mockPublisher.AssertNotCalled(t, "Publish", mock.AnythingOfType("events.GuildSettingsCreatedEvent"))
}

func TestGuildSettingsService_FirstReadRacingFirstSaveCreatesOnce(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryGuildSettingsRepository()
	repo.LoadDelay = 5 * time.Millisecond
	bus := events.NewBus()

	var mu sync.Mutex
	created := 0
	bus.Subscribe(events.EventTypeGuildSettingsCreated, func(ctx context.Context, e events.Event) {
		mu.Lock()
		created++
		mu.Unlock()
	})
	service := NewGuildSettingsService(repo, nil, bus, nil)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, err := service.GetSettings(ctx, testGuildID)
		assert.NoError(t, err)
	}()
	go func() {
		defer wg.Done()
		_, err := service.SaveSettings(ctx, testGuildID, &models.GuildSettingsPatch{Prefix: models.StringPtr("!")})
		assert.NoError(t, err)
	}()
	wg.Wait()

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return created == 1
	}, time.Second, 10*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	mu.Lock()
	assert.Equal(t, 1, created)
	mu.Unlock()
}
