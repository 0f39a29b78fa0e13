package observability

import (
	"context"
	"fmt"
	"sync"
	"time"

	"guildconfig/config"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.34.0"
)

// MetricsProvider manages OpenTelemetry metrics for the settings store
type MetricsProvider struct {
	config        *config.Config
	meterProvider *sdkmetric.MeterProvider
	meter         metric.Meter
	initialized   bool
	mu            sync.RWMutex

	// Metric instruments
	settingsLoadsCounter         metric.Int64Counter
	settingsSavesCounter         metric.Int64Counter
	settingsSaveDurationHist     metric.Float64Histogram
	lockWaitDurationHist         metric.Float64Histogram
	natsMessagesPublishedCounter metric.Int64Counter
}

// NewMetricsProvider creates a new metrics provider
func NewMetricsProvider(cfg *config.Config) *MetricsProvider {
	return &MetricsProvider{
		config: cfg,
	}
}

// Initialize sets up the OpenTelemetry metrics provider
func (mp *MetricsProvider) Initialize(ctx context.Context) error {
	return mp.initialize(ctx, nil)
}

// initialize builds the meter provider around reader. A nil reader means a
// periodic reader over the configured exporter.
func (mp *MetricsProvider) initialize(ctx context.Context, reader sdkmetric.Reader) error {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	if mp.initialized {
		log.Debug("Metrics provider already initialized")
		return nil
	}

	if !mp.config.OTelEnabled {
		log.Info("OpenTelemetry metrics disabled")
		mp.initialized = true
		return nil
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(mp.config.OTelServiceName),
			attribute.String("environment", mp.config.Environment),
		),
	)
	if err != nil {
		return fmt.Errorf("failed to create resource: %w", err)
	}

	if reader == nil {
		var exporter sdkmetric.Exporter
		switch mp.config.OTelExporterType {
		case "console":
			exporter, err = stdoutmetric.New()
			if err != nil {
				return fmt.Errorf("failed to create console exporter: %w", err)
			}
			log.Info("Using console metric exporter")

		case "otlp":
			dialCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()

			exporter, err = otlpmetricgrpc.New(dialCtx,
				otlpmetricgrpc.WithEndpoint(mp.config.OTelOTLPEndpoint),
				otlpmetricgrpc.WithInsecure(),
			)
			if err != nil {
				return fmt.Errorf("failed to create OTLP exporter: %w", err)
			}
			log.WithField("endpoint", mp.config.OTelOTLPEndpoint).Info("Using OTLP metric exporter")

		case "none", "":
			log.Info("Metrics export disabled (exporter_type='none')")
			mp.initialized = true
			return nil

		default:
			return fmt.Errorf("unknown exporter type: %s", mp.config.OTelExporterType)
		}

		reader = sdkmetric.NewPeriodicReader(
			exporter,
			sdkmetric.WithInterval(time.Duration(mp.config.OTelExportIntervalMillis)*time.Millisecond),
		)
	}

	mp.meterProvider = sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(reader),
	)
	otel.SetMeterProvider(mp.meterProvider)
	mp.meter = mp.meterProvider.Meter("guildconfig")

	if err := mp.createInstruments(); err != nil {
		return fmt.Errorf("failed to create instruments: %w", err)
	}

	mp.initialized = true
	log.Info("Metrics provider initialized successfully")
	return nil
}

// createInstruments creates all metric instruments
func (mp *MetricsProvider) createInstruments() error {
	var err error

	mp.settingsLoadsCounter, err = mp.meter.Int64Counter(
		SettingsLoadsTotal,
		metric.WithDescription("Total number of settings reads by outcome"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create settings loads counter: %w", err)
	}

	mp.settingsSavesCounter, err = mp.meter.Int64Counter(
		SettingsSavesTotal,
		metric.WithDescription("Total number of settings saves by outcome"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create settings saves counter: %w", err)
	}

	mp.settingsSaveDurationHist, err = mp.meter.Float64Histogram(
		SettingsSaveDuration,
		metric.WithDescription("Duration of settings saves in seconds, lock wait included"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0),
	)
	if err != nil {
		return fmt.Errorf("failed to create settings save duration histogram: %w", err)
	}

	mp.lockWaitDurationHist, err = mp.meter.Float64Histogram(
		LockWaitDuration,
		metric.WithDescription("Time spent waiting for the per-guild save lock in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.0001, 0.001, 0.01, 0.1, 0.5, 1.0, 5.0, 10.0),
	)
	if err != nil {
		return fmt.Errorf("failed to create lock wait histogram: %w", err)
	}

	mp.natsMessagesPublishedCounter, err = mp.meter.Int64Counter(
		NATSMessagesPublishedTotal,
		metric.WithDescription("Total number of NATS messages published"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create NATS messages published counter: %w", err)
	}

	return nil
}

// Shutdown flushes and stops the metrics provider
func (mp *MetricsProvider) Shutdown(ctx context.Context) error {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	if mp.meterProvider != nil {
		return mp.meterProvider.Shutdown(ctx)
	}
	return nil
}

// RecordSettingsLoad records a settings read
func (mp *MetricsProvider) RecordSettingsLoad(outcome string) {
	if !mp.isEnabled() {
		return
	}

	mp.settingsLoadsCounter.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String(LabelOutcome, outcome)),
	)
}

// RecordSettingsSave records a settings save with its duration
func (mp *MetricsProvider) RecordSettingsSave(outcome string, duration time.Duration) {
	if !mp.isEnabled() {
		return
	}

	attrs := metric.WithAttributes(attribute.String(LabelOutcome, outcome))
	mp.settingsSavesCounter.Add(context.Background(), 1, attrs)
	mp.settingsSaveDurationHist.Record(context.Background(), duration.Seconds(), attrs)
}

// RecordLockWait records how long a save waited for its guild lock
func (mp *MetricsProvider) RecordLockWait(duration time.Duration) {
	if !mp.isEnabled() {
		return
	}

	mp.lockWaitDurationHist.Record(context.Background(), duration.Seconds())
}

// RecordEventPublished records a NATS message being published
func (mp *MetricsProvider) RecordEventPublished(eventType string) {
	if !mp.isEnabled() {
		return
	}

	mp.natsMessagesPublishedCounter.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String(LabelEventType, eventType)),
	)
}

// isEnabled reports whether instruments exist. Disabled or export-less
// providers are initialized without a meter provider.
func (mp *MetricsProvider) isEnabled() bool {
	mp.mu.RLock()
	defer mp.mu.RUnlock()
	return mp.initialized && mp.meterProvider != nil
}

// Global metrics provider instance
var (
	globalMetrics *MetricsProvider
	metricsOnce   sync.Once
)

// InitializeGlobalMetrics initializes the global metrics provider
func InitializeGlobalMetrics(ctx context.Context, cfg *config.Config) error {
	var err error
	metricsOnce.Do(func() {
		globalMetrics = NewMetricsProvider(cfg)
		err = globalMetrics.Initialize(ctx)
	})
	return err
}

// GetMetrics returns the global metrics provider
func GetMetrics() *MetricsProvider {
	return globalMetrics
}

// ShutdownGlobalMetrics shuts down the global metrics provider
func ShutdownGlobalMetrics(ctx context.Context) error {
	if globalMetrics != nil {
		return globalMetrics.Shutdown(ctx)
	}
	return nil
}
