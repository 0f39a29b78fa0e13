package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"guildconfig/database"
	"guildconfig/models"

	"github.com/jackc/pgx/v5"
	log "github.com/sirupsen/logrus"
)

// GuildSettingsRepository stores one JSONB settings document per guild
type GuildSettingsRepository struct {
	connector *database.Connector
	timeout   time.Duration
}

// NewGuildSettingsRepository creates a new guild settings repository.
// A zero operationTimeout leaves deadlines to the caller's context.
func NewGuildSettingsRepository(connector *database.Connector, operationTimeout time.Duration) *GuildSettingsRepository {
	return &GuildSettingsRepository{
		connector: connector,
		timeout:   operationTimeout,
	}
}

// LoadRaw returns the stored document for a guild and whether one exists
func (r *GuildSettingsRepository) LoadRaw(ctx context.Context, guildID string) (models.Document, bool, error) {
	query := `
		SELECT settings
		FROM guild_settings
		WHERE guild_id = $1
	`

	var doc models.Document
	found := false

	err := r.run(ctx, "load", guildID, func(ctx context.Context, q database.Queryable) error {
		var raw []byte
		err := q.QueryRow(ctx, query, guildID).Scan(&raw)
		if errors.Is(err, pgx.ErrNoRows) {
			found = false
			return nil
		}
		if err != nil {
			return err
		}

		found = true
		doc, err = decodeDocument(raw)
		return err
	})
	if err != nil {
		return nil, false, fmt.Errorf("failed to load guild settings for guild %s: %w", guildID, err)
	}

	return doc, found, nil
}

// Upsert creates or fully overwrites the stored document. It reports whether
// the row was inserted rather than updated.
func (r *GuildSettingsRepository) Upsert(ctx context.Context, guildID string, doc models.Document) (bool, error) {
	payload, err := json.Marshal(doc)
	if err != nil {
		return false, fmt.Errorf("failed to marshal guild settings for guild %s: %w", guildID, err)
	}

	// xmax is zero only on a freshly inserted row version
	query := `
		INSERT INTO guild_settings (guild_id, settings)
		VALUES ($1, $2)
		ON CONFLICT (guild_id) DO UPDATE
		SET settings = EXCLUDED.settings,
		    updated_at = NOW()
		RETURNING (xmax = 0)
	`

	inserted := false
	err = r.run(ctx, "upsert", guildID, func(ctx context.Context, q database.Queryable) error {
		return q.QueryRow(ctx, query, guildID, payload).Scan(&inserted)
	})
	if err != nil {
		return false, fmt.Errorf("failed to save guild settings for guild %s: %w", guildID, err)
	}

	return inserted, nil
}

// CreateIfAbsent stores doc only when the guild has no record. It returns the
// document stored after the call and whether this call created it.
func (r *GuildSettingsRepository) CreateIfAbsent(ctx context.Context, guildID string, doc models.Document) (models.Document, bool, error) {
	payload, err := json.Marshal(doc)
	if err != nil {
		return nil, false, fmt.Errorf("failed to marshal guild settings for guild %s: %w", guildID, err)
	}

	insertQuery := `
		INSERT INTO guild_settings (guild_id, settings)
		VALUES ($1, $2)
		ON CONFLICT (guild_id) DO NOTHING
		RETURNING settings
	`
	// A concurrent insert is invisible to the statement snapshot above, so
	// the losing side reads the winner's row separately
	selectQuery := `
		SELECT settings
		FROM guild_settings
		WHERE guild_id = $1
	`

	var stored models.Document
	created := false

	err = r.run(ctx, "create", guildID, func(ctx context.Context, q database.Queryable) error {
		var raw []byte
		err := q.QueryRow(ctx, insertQuery, guildID, payload).Scan(&raw)
		switch {
		case err == nil:
			created = true
		case errors.Is(err, pgx.ErrNoRows):
			created = false
			if err := q.QueryRow(ctx, selectQuery, guildID).Scan(&raw); err != nil {
				return err
			}
		default:
			return err
		}

		stored, err = decodeDocument(raw)
		return err
	})
	if err != nil {
		return nil, false, fmt.Errorf("failed to create guild settings for guild %s: %w", guildID, err)
	}

	return stored, created, nil
}

// run executes fn against the live pool. A transport failure drops the pool
// and fn is retried once on a fresh connection.
func (r *GuildSettingsRepository) run(ctx context.Context, op, guildID string, fn func(ctx context.Context, q database.Queryable) error) error {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		pool, err := r.connector.Acquire(ctx)
		if err != nil {
			if lastErr != nil {
				return fmt.Errorf("reconnect failed: %v, original error: %w", err, lastErr)
			}
			return err
		}

		err = fn(ctx, pool)
		if err == nil {
			return nil
		}
		if !database.IsTransportError(err) {
			return err
		}

		log.WithFields(log.Fields{
			"op":       op,
			"guild_id": guildID,
			"attempt":  attempt + 1,
			"error":    err,
		}).Warn("Database transport failure, marking connection lost")

		r.connector.MarkDisconnected(pool)
		lastErr = err
	}

	return lastErr
}

func decodeDocument(raw []byte) (models.Document, error) {
	var doc models.Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal settings document: %w", err)
	}
	if doc == nil {
		doc = models.Document{}
	}
	return doc, nil
}
