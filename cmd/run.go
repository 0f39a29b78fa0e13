package cmd

import (
	"context"
	"time"

	"guildconfig/config"
	"guildconfig/database"
	"guildconfig/events"

	log "github.com/sirupsen/logrus"
)

const healthCheckInterval = 30 * time.Second

// Run starts the settings store process and blocks until ctx is cancelled
func Run(ctx context.Context) error {
	cfg := config.Get()
	ConfigureLogging(cfg)

	log.WithField("environment", cfg.Environment).Info("Starting guild settings store...")

	app, err := NewApp(ctx, cfg, true)
	if err != nil {
		return err
	}

	app.Bus.Subscribe(events.EventTypeGuildSettingsUpdated, func(ctx context.Context, e events.Event) {
		if updated, ok := e.(events.GuildSettingsUpdatedEvent); ok {
			log.WithFields(log.Fields{
				"guild_id":       updated.GuildID,
				"changed_fields": updated.ChangedFields,
			}).Info("Guild settings updated")
		}
	})

	// The first ping dials the pool; failures are retried on the next tick
	monitorConnection(ctx, app.Connector, healthCheckInterval)

	log.Info("Shutting down guild settings store...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	app.Close(shutdownCtx)

	log.Info("Shutdown completed")
	return nil
}

// monitorConnection pings the database every interval and logs state changes
func monitorConnection(ctx context.Context, connector *database.Connector, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	last := connector.State()
	for {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := connector.Ping(pingCtx)
		cancel()

		state := connector.State()
		if err != nil && ctx.Err() == nil {
			log.WithError(err).Warn("Database health check failed")
		}
		if state != last {
			log.WithFields(log.Fields{
				"from": last.String(),
				"to":   state.String(),
			}).Info("Database connection state changed")
			last = state
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
