package events

import (
	"context"
	"errors"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// EventType represents different types of events in the system
type EventType string

const (
	EventTypeGuildSettingsCreated EventType = "guild_settings_created"
	EventTypeGuildSettingsUpdated EventType = "guild_settings_updated"
)

// Event is the base interface for all events
type Event interface {
	Type() EventType
}

// GuildSettingsCreatedEvent is emitted when a default record is first stored for a guild
type GuildSettingsCreatedEvent struct {
	GuildID   string    `json:"guild_id"`
	CreatedAt time.Time `json:"created_at"`
}

func (e GuildSettingsCreatedEvent) Type() EventType {
	return EventTypeGuildSettingsCreated
}

// GuildSettingsUpdatedEvent is emitted after a save has been persisted.
// ChangedFields lists the top-level stored field names whose value changed.
type GuildSettingsUpdatedEvent struct {
	GuildID       string    `json:"guild_id"`
	ChangedFields []string  `json:"changed_fields"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (e GuildSettingsUpdatedEvent) Type() EventType {
	return EventTypeGuildSettingsUpdated
}

// Publisher accepts events for delivery
type Publisher interface {
	Publish(event Event) error
}

// Handler is a function that handles events
type Handler func(ctx context.Context, event Event)

// Bus manages event subscriptions and dispatching
type Bus struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler
}

// NewBus creates a new event bus
func NewBus() *Bus {
	return &Bus{
		handlers: make(map[EventType][]Handler),
	}
}

// Subscribe adds a handler for a specific event type
func (b *Bus) Subscribe(eventType EventType, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.handlers[eventType] = append(b.handlers[eventType], handler)

	log.WithFields(log.Fields{
		"eventType":    eventType,
		"handlerCount": len(b.handlers[eventType]),
	}).Debug("Subscribed handler to event type on main event bus")
}

// Emit publishes an event to all registered handlers
func (b *Bus) Emit(ctx context.Context, event Event) {
	b.mu.RLock()
	handlers := make([]Handler, len(b.handlers[event.Type()]))
	copy(handlers, b.handlers[event.Type()])
	b.mu.RUnlock()

	log.WithFields(log.Fields{
		"eventType":    event.Type(),
		"handlerCount": len(handlers),
	}).Debug("Emitting event to handlers on main event bus")

	// Call handlers asynchronously to avoid blocking
	for i, handler := range handlers {
		go func(h Handler, handlerIndex int) {
			defer func() {
				if r := recover(); r != nil {
					log.WithFields(log.Fields{
						"eventType":    event.Type(),
						"handlerIndex": handlerIndex,
						"panic":        r,
					}).Error("Event handler panicked")
				}
			}()
			h(ctx, event)
		}(handler, i)
	}
}

// Publish emits event with a background context so handlers outlive the caller
func (b *Bus) Publish(event Event) error {
	b.Emit(context.Background(), event)
	return nil
}

// TransactionalBus holds events until the write they describe has been
// persisted. Flush forwards them; Discard drops them.
type TransactionalBus struct {
	real    Publisher
	pending []Event // stashed until Flush
}

func NewTransactionalBus(real Publisher) *TransactionalBus {
	return &TransactionalBus{real: real}
}

func (b *TransactionalBus) Publish(e Event) {
	log.WithFields(log.Fields{
		"eventType":    e.Type(),
		"pendingCount": len(b.pending),
	}).Debug("Adding event to transactional bus pending queue")
	b.pending = append(b.pending, e)
}

// Flush is called after the write succeeded. Every pending event is
// attempted; failures are joined into the returned error.
func (b *TransactionalBus) Flush() error {
	log.WithFields(log.Fields{
		"pendingEventCount": len(b.pending),
	}).Debug("Flushing pending events from transactional bus")

	var errs []error
	for _, ev := range b.pending {
		if err := b.real.Publish(ev); err != nil {
			errs = append(errs, err)
		}
	}
	b.pending = nil
	return errors.Join(errs...)
}

// Discard drops every pending event without publishing it
func (b *TransactionalBus) Discard() {
	b.pending = nil
}

// Pending returns the number of events waiting for Flush
func (b *TransactionalBus) Pending() int {
	return len(b.pending)
}
