package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"guildconfig/config"
	"guildconfig/database"
	"guildconfig/events"
	"guildconfig/infrastructure"
	"guildconfig/infrastructure/observability"
	"guildconfig/repository"
	"guildconfig/service"

	log "github.com/sirupsen/logrus"
)

// App holds the wired settings store and the resources it owns
type App struct {
	Config    *config.Config
	Connector *database.Connector
	Settings  service.GuildSettingsService
	Bus       *events.Bus

	natsClient *infrastructure.NATSClient
	metrics    *observability.MetricsProvider
}

// NewApp wires the store. The database is dialed lazily on first use.
// publishEvents controls whether change events go to NATS; admin commands
// run without it.
func NewApp(ctx context.Context, cfg *config.Config, publishEvents bool) (*App, error) {
	app := &App{
		Config: cfg,
		Bus:    events.NewBus(),
	}

	metrics := observability.NewMetricsProvider(cfg)
	if err := metrics.Initialize(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize metrics: %w", err)
	}
	app.metrics = metrics

	app.Connector = database.NewConnector(database.PostgresDialer(cfg.GetDatabaseURL()))
	repo := repository.NewGuildSettingsRepository(app.Connector, cfg.StorageOperationTimeout)

	var publisher service.EventPublisher = infrastructure.NewNoopEventPublisher()
	if publishEvents && cfg.NATSServers != "" {
		natsClient := infrastructure.NewNATSClient(cfg.NATSServers)
		if err := natsClient.Connect(ctx); err != nil {
			app.Close(ctx)
			return nil, err
		}
		app.natsClient = natsClient

		mapper := infrastructure.NewEventSubjectMapper()
		if err := infrastructure.EnsureSettingsEventStream(natsClient, mapper); err != nil {
			app.Close(ctx)
			return nil, err
		}

		natsPublisher := infrastructure.NewNATSEventPublisher(natsClient, mapper).WithMetrics(metrics)
		// In-process subscribers see every event that goes to NATS
		for _, eventType := range []events.EventType{events.EventTypeGuildSettingsCreated, events.EventTypeGuildSettingsUpdated} {
			natsPublisher.RegisterLocalHandler(eventType, func(_ context.Context, e events.Event) error {
				return app.Bus.Publish(e)
			})
		}
		publisher = natsPublisher
	} else if publishEvents {
		log.Info("NATS_SERVERS not set, change events stay in process")
		publisher = app.Bus
	}

	locks := service.NewLockRegistry(cfg.LockWaitTimeout)
	app.Settings = service.NewGuildSettingsService(repo, locks, publisher, metrics)

	return app, nil
}

// Close releases the database pool, the NATS connection and the meter provider
func (a *App) Close(ctx context.Context) {
	if a.natsClient != nil {
		if err := a.natsClient.Close(); err != nil {
			log.WithError(err).Warn("Failed to close NATS client")
		}
	}
	if a.Connector != nil {
		a.Connector.Close()
	}
	if a.metrics != nil {
		if err := a.metrics.Shutdown(ctx); err != nil {
			log.WithError(err).Warn("Failed to shut down metrics provider")
		}
	}
}

// ConfigureLogging applies the configured logrus level and formatter
func ConfigureLogging(cfg *config.Config) {
	log.SetOutput(os.Stderr)

	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.WithField("level", cfg.LogLevel).Warn("Unknown log level, using info")
		level = log.InfoLevel
	}
	log.SetLevel(level)

	if strings.EqualFold(cfg.LogFormat, "json") {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
}
