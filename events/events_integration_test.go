package events

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	mu        sync.Mutex
	published []Event
	err       error
}

func (p *recordingPublisher) Publish(event Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.published = append(p.published, event)
	return p.err
}

// TestEventDeliveryIntegration tests the complete event flow from TransactionalBus to main Bus
func TestEventDeliveryIntegration(t *testing.T) {
	mainBus := NewBus()
	transactionalBus := NewTransactionalBus(mainBus)

	eventReceived := make(chan GuildSettingsUpdatedEvent, 1)
	var wg sync.WaitGroup
	wg.Add(1)

	mainBus.Subscribe(EventTypeGuildSettingsUpdated, func(ctx context.Context, event Event) {
		defer wg.Done()
		if updated, ok := event.(GuildSettingsUpdatedEvent); ok {
			select {
			case eventReceived <- updated:
			case <-time.After(1 * time.Second):
				t.Error("Timeout sending event to channel")
			}
		} else {
			t.Errorf("Expected GuildSettingsUpdatedEvent, got %T", event)
		}
	})

	testEvent := GuildSettingsUpdatedEvent{
		GuildID:       "123456789012345678",
		ChangedFields: []string{"prefix", "welcomeEnabled"},
		UpdatedAt:     time.Now().UTC(),
	}

	transactionalBus.Publish(testEvent)
	assert.Equal(t, 1, transactionalBus.Pending())

	err := transactionalBus.Flush()
	assert.NoError(t, err)
	assert.Equal(t, 0, transactionalBus.Pending())

	wg.Wait()

	select {
	case received := <-eventReceived:
		assert.Equal(t, testEvent.GuildID, received.GuildID)
		assert.Equal(t, testEvent.ChangedFields, received.ChangedFields)
		assert.True(t, testEvent.UpdatedAt.Equal(received.UpdatedAt))
	case <-time.After(2 * time.Second):
		t.Fatal("Event was not received within timeout")
	}
}

// TestMultipleEventsDelivery tests delivering multiple events in sequence
func TestMultipleEventsDelivery(t *testing.T) {
	mainBus := NewBus()
	transactionalBus := NewTransactionalBus(mainBus)

	received := make(chan Event, 3)
	var wg sync.WaitGroup
	wg.Add(3)

	handler := func(ctx context.Context, event Event) {
		defer wg.Done()
		received <- event
	}
	mainBus.Subscribe(EventTypeGuildSettingsCreated, handler)
	mainBus.Subscribe(EventTypeGuildSettingsUpdated, handler)

	transactionalBus.Publish(GuildSettingsCreatedEvent{GuildID: "111111111111111111"})
	transactionalBus.Publish(GuildSettingsUpdatedEvent{GuildID: "111111111111111111"})
	transactionalBus.Publish(GuildSettingsUpdatedEvent{GuildID: "222222222222222222"})

	require.NoError(t, transactionalBus.Flush())
	wg.Wait()
	close(received)

	counts := map[EventType]int{}
	for ev := range received {
		counts[ev.Type()]++
	}
	assert.Equal(t, 1, counts[EventTypeGuildSettingsCreated])
	assert.Equal(t, 2, counts[EventTypeGuildSettingsUpdated])
}

// TestTransactionalBusDiscard verifies discarded events never reach the publisher
func TestTransactionalBusDiscard(t *testing.T) {
	publisher := &recordingPublisher{}
	transactionalBus := NewTransactionalBus(publisher)

	transactionalBus.Publish(GuildSettingsUpdatedEvent{GuildID: "123456789012345678"})
	transactionalBus.Discard()

	require.NoError(t, transactionalBus.Flush())
	assert.Empty(t, publisher.published)
}

func TestTransactionalBusFlushJoinsErrors(t *testing.T) {
	publishErr := errors.New("broker unavailable")
	publisher := &recordingPublisher{err: publishErr}
	transactionalBus := NewTransactionalBus(publisher)

	transactionalBus.Publish(GuildSettingsUpdatedEvent{GuildID: "123456789012345678"})
	transactionalBus.Publish(GuildSettingsUpdatedEvent{GuildID: "223456789012345678"})

	err := transactionalBus.Flush()
	require.Error(t, err)
	assert.ErrorIs(t, err, publishErr)
	// Every pending event is attempted even after a failure
	assert.Len(t, publisher.published, 2)
	assert.Equal(t, 0, transactionalBus.Pending())
}

func TestBusHandlerPanicIsRecovered(t *testing.T) {
	bus := NewBus()

	done := make(chan struct{})
	bus.Subscribe(EventTypeGuildSettingsUpdated, func(ctx context.Context, event Event) {
		panic("boom")
	})
	bus.Subscribe(EventTypeGuildSettingsUpdated, func(ctx context.Context, event Event) {
		close(done)
	})

	require.NoError(t, bus.Publish(GuildSettingsUpdatedEvent{GuildID: "123456789012345678"}))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("second handler was not called")
	}
}
