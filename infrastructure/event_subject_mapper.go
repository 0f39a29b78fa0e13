package infrastructure

import (
	"fmt"

	"guildconfig/events"
)

const (
	SubjectGuildSettingsCreated = "settings.guild.created"
	SubjectGuildSettingsUpdated = "settings.guild.updated"

	// SettingsEventStream is the JetStream stream holding all settings subjects
	SettingsEventStream = "settings_events"
)

// EventSubjectMapper handles mapping between settings events and NATS subjects
type EventSubjectMapper struct{}

// NewEventSubjectMapper creates a new event subject mapper
func NewEventSubjectMapper() *EventSubjectMapper {
	return &EventSubjectMapper{}
}

// MapEventToSubject converts an event to its NATS subject
func (m *EventSubjectMapper) MapEventToSubject(event events.Event) string {
	switch event.Type() {
	case events.EventTypeGuildSettingsCreated:
		return SubjectGuildSettingsCreated
	case events.EventTypeGuildSettingsUpdated:
		return SubjectGuildSettingsUpdated
	default:
		return fmt.Sprintf("settings.unknown.%s", event.Type())
	}
}

// MapSubjectToEventType converts a NATS subject back to an event type
func (m *EventSubjectMapper) MapSubjectToEventType(subject string) events.EventType {
	switch subject {
	case SubjectGuildSettingsCreated:
		return events.EventTypeGuildSettingsCreated
	case SubjectGuildSettingsUpdated:
		return events.EventTypeGuildSettingsUpdated
	default:
		return events.EventType(subject)
	}
}

// GetAllSubjects returns all subjects that this service publishes to
func (m *EventSubjectMapper) GetAllSubjects() []string {
	return []string{
		SubjectGuildSettingsCreated,
		SubjectGuildSettingsUpdated,
	}
}
