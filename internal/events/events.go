// Package events records presale activity as structured events. Events are
// kept in a bounded ring buffer and handed to subscribers such as the Redis
// publisher.
package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/R3E-Network/presale_layer/internal/logging"
)

// EventType classifies the kind of presale event.
type EventType string

const (
	// Sale lifecycle events
	EventSaleCreated   EventType = "presale.created"
	EventSaleApproved  EventType = "presale.approved"
	EventSaleStarted   EventType = "presale.started"
	EventSaleCompleted EventType = "presale.completed"
	EventSaleCancelled EventType = "presale.cancelled"

	// Participant events
	EventRegistered EventType = "presale.registered"
	EventPurchased  EventType = "presale.purchased"
	EventClaimed    EventType = "presale.claimed"

	// Settlement events
	EventListed    EventType = "presale.listed"
	EventWithdrawn EventType = "presale.withdrawn"

	// Staking events
	EventStaked   EventType = "stake.staked"
	EventUnstaked EventType = "stake.unstaked"

	// Configuration events
	EventInitialized  EventType = "config.initialized"
	EventAdminUpdated EventType = "config.admin_updated"

	// Ledger events
	EventMinted EventType = "ledger.minted"
)

// Event is one committed state change.
type Event struct {
	ID        string            `json:"id"`
	Type      EventType         `json:"type"`
	Timestamp time.Time         `json:"timestamp"`
	SaleID    string            `json:"sale_id,omitempty"`
	Actor     string            `json:"actor,omitempty"`
	Amount    uint64            `json:"amount,omitempty"`
	Status    string            `json:"status,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	TraceID   string            `json:"trace_id,omitempty"`
}

// String returns the JSON form of the event.
func (e Event) String() string {
	data, _ := json.Marshal(e)
	return string(data)
}

// EventHandler processes events as they occur.
type EventHandler func(Event)

// EventFilter decides whether an event should be processed.
type EventFilter func(Event) bool

// EventLogger is the sink the presale service emits to.
type EventLogger interface {
	Log(event Event)
	LogWithContext(ctx context.Context, event Event)
	Subscribe(handler EventHandler) func()
	SubscribeFiltered(filter EventFilter, handler EventHandler) func()
	Recent(n int) []Event
	RecentBySale(saleID string, n int) []Event
	RecentByType(eventType EventType, n int) []Event
}

// RingBuffer is a thread-safe circular buffer for events.
type RingBuffer struct {
	mu       sync.RWMutex
	events   []Event
	size     int
	head     int
	count    int
	handlers []handlerEntry
	nextID   int64
}

var _ EventLogger = (*RingBuffer)(nil)

type handlerEntry struct {
	id      int64
	filter  EventFilter
	handler EventHandler
}

// NewRingBuffer creates a buffer holding at most size events.
func NewRingBuffer(size int) *RingBuffer {
	if size <= 0 {
		size = 1000
	}
	return &RingBuffer{
		events: make([]Event, size),
		size:   size,
	}
}

// Log adds an event to the buffer and notifies handlers.
func (rb *RingBuffer) Log(event Event) {
	rb.mu.Lock()
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if event.ID == "" {
		event.ID = uuid.New().String()
	}

	rb.events[rb.head] = event
	rb.head = (rb.head + 1) % rb.size
	if rb.count < rb.size {
		rb.count++
	}

	handlers := make([]handlerEntry, len(rb.handlers))
	copy(handlers, rb.handlers)
	rb.mu.Unlock()

	// handlers run outside the lock
	for _, h := range handlers {
		if h.filter == nil || h.filter(event) {
			h.handler(event)
		}
	}
}

// LogWithContext copies the request trace ID onto the event before logging.
func (rb *RingBuffer) LogWithContext(ctx context.Context, event Event) {
	if event.TraceID == "" {
		event.TraceID = logging.GetTraceID(ctx)
	}
	rb.Log(event)
}

// Subscribe registers a handler for all events.
func (rb *RingBuffer) Subscribe(handler EventHandler) func() {
	return rb.SubscribeFiltered(nil, handler)
}

// SubscribeFiltered registers a handler with a filter and returns the
// unsubscribe function.
func (rb *RingBuffer) SubscribeFiltered(filter EventFilter, handler EventHandler) func() {
	rb.mu.Lock()
	id := rb.nextID
	rb.nextID++
	rb.handlers = append(rb.handlers, handlerEntry{id: id, filter: filter, handler: handler})
	rb.mu.Unlock()

	return func() {
		rb.mu.Lock()
		defer rb.mu.Unlock()
		for i, h := range rb.handlers {
			if h.id == id {
				rb.handlers = append(rb.handlers[:i], rb.handlers[i+1:]...)
				return
			}
		}
	}
}

// Recent returns the most recent n events, newest first.
func (rb *RingBuffer) Recent(n int) []Event {
	return rb.collect(n, nil)
}

// RecentBySale returns the most recent n events of one sale.
func (rb *RingBuffer) RecentBySale(saleID string, n int) []Event {
	return rb.collect(n, func(e Event) bool { return e.SaleID == saleID })
}

// RecentByType returns the most recent n events of one type.
func (rb *RingBuffer) RecentByType(eventType EventType, n int) []Event {
	return rb.collect(n, func(e Event) bool { return e.Type == eventType })
}

func (rb *RingBuffer) collect(n int, match EventFilter) []Event {
	rb.mu.RLock()
	defer rb.mu.RUnlock()

	if n <= 0 || rb.count == 0 {
		return nil
	}

	var result []Event
	for i := 0; i < rb.count && len(result) < n; i++ {
		idx := (rb.head - 1 - i + rb.size) % rb.size
		if match == nil || match(rb.events[idx]) {
			result = append(result, rb.events[idx])
		}
	}
	return result
}

// Count returns the number of events in the buffer.
func (rb *RingBuffer) Count() int {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	return rb.count
}

// EventBuilder provides a fluent API for creating events.
type EventBuilder struct {
	event Event
}

// NewEvent starts an event of eventType stamped with the current time.
func NewEvent(eventType EventType) *EventBuilder {
	return &EventBuilder{event: Event{Type: eventType, Timestamp: time.Now().UTC()}}
}

func (b *EventBuilder) Sale(id string) *EventBuilder {
	b.event.SaleID = id
	return b
}

func (b *EventBuilder) Actor(actor string) *EventBuilder {
	b.event.Actor = actor
	return b
}

func (b *EventBuilder) Amount(amount uint64) *EventBuilder {
	b.event.Amount = amount
	return b
}

func (b *EventBuilder) Status(status string) *EventBuilder {
	b.event.Status = status
	return b
}

// At overrides the timestamp, used when the caller owns the clock.
func (b *EventBuilder) At(t time.Time) *EventBuilder {
	b.event.Timestamp = t.UTC()
	return b
}

// Metadata adds a metadata entry.
func (b *EventBuilder) Metadata(key, value string) *EventBuilder {
	if b.event.Metadata == nil {
		b.event.Metadata = make(map[string]string)
	}
	b.event.Metadata[key] = value
	return b
}

// Build returns the constructed event.
func (b *EventBuilder) Build() Event {
	if b.event.ID == "" {
		b.event.ID = uuid.New().String()
	}
	return b.event
}

// LogToWithContext logs the event with context.
func (b *EventBuilder) LogToWithContext(ctx context.Context, logger EventLogger) {
	logger.LogWithContext(ctx, b.Build())
}

// NoOpLogger is an event logger that discards all events.
type NoOpLogger struct{}

var _ EventLogger = NoOpLogger{}

func (NoOpLogger) Log(Event)                                          {}
func (NoOpLogger) LogWithContext(context.Context, Event)              {}
func (NoOpLogger) Subscribe(EventHandler) func()                      { return func() {} }
func (NoOpLogger) SubscribeFiltered(EventFilter, EventHandler) func() { return func() {} }
func (NoOpLogger) Recent(int) []Event                                 { return nil }
func (NoOpLogger) RecentBySale(string, int) []Event                   { return nil }
func (NoOpLogger) RecentByType(EventType, int) []Event                { return nil }
