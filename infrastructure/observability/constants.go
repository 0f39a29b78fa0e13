package observability

// Metric name prefixes
const (
	MetricPrefix = "guildconfig"
)

// Metric names
const (
	// Settings store metrics
	SettingsLoadsTotal   = MetricPrefix + ".settings.loads_total"
	SettingsSavesTotal   = MetricPrefix + ".settings.saves_total"
	SettingsSaveDuration = MetricPrefix + ".settings.save_duration"
	LockWaitDuration     = MetricPrefix + ".settings.lock_wait_duration"

	// NATS metrics
	NATSMessagesPublishedTotal = MetricPrefix + ".nats.messages_published_total"
)

// Label keys
const (
	LabelOutcome   = "outcome"
	LabelEventType = "event_type"
)
