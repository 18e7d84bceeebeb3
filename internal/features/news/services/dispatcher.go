package services

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"genienews/internal/core"
	"genienews/internal/features/news/models"
)

// Publisher is how a pipeline stage announces that it finished
type Publisher interface {
	Publish(ctx context.Context, event models.Event)
}

// EventHandler reacts to one published event
type EventHandler func(ctx context.Context, event models.Event) error

// NewEvent stamps an event with a fresh id and the current time
func NewEvent(eventType models.EventType, count int, runID string) models.Event {
	return models.Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		Count:      count,
		RunID:      runID,
		OccurredAt: time.Now().UTC(),
	}
}

// Dispatcher is an in-process event bus. Events are queued on a buffered
// channel and handled one at a time by a single consumer goroutine.
type Dispatcher struct {
	logger *core.Logger
	events chan models.Event

	mu       sync.Mutex
	handlers map[models.EventType][]EventHandler
	pending  int
	started  bool
	stopping bool
	closed   bool

	wg sync.WaitGroup
}

// handlerKey marks contexts passed to handlers, so that events they
// publish are still accepted while the dispatcher drains
type handlerKey struct{}

// NewDispatcher creates a dispatcher that queues up to buffer events
func NewDispatcher(buffer int, logger *core.Logger) *Dispatcher {
	if buffer < 1 {
		buffer = 1
	}
	return &Dispatcher{
		logger:   logger,
		events:   make(chan models.Event, buffer),
		handlers: make(map[models.EventType][]EventHandler),
	}
}

// Subscribe registers handler for eventType
func (d *Dispatcher) Subscribe(eventType models.EventType, handler EventHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[eventType] = append(d.handlers[eventType], handler)
}

// Publish queues event without blocking. A full queue drops the event, and
// once Stop was called only events published by handlers are accepted.
func (d *Dispatcher) Publish(ctx context.Context, event models.Event) {
	fromHandler := ctx.Value(handlerKey{}) == d

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed || (d.stopping && !fromHandler) {
		d.logger.Warn("Dropping event published after shutdown", "event", event.Type, "run_id", event.RunID)
		return
	}

	select {
	case d.events <- event:
		d.pending++
		d.logger.Debug("Queued event", "event", event.Type, "count", event.Count, "run_id", event.RunID)
	default:
		d.logger.Warn("Event queue full, dropping event", "event", event.Type, "run_id", event.RunID)
	}
}

// Start runs the consumer until Stop is called. Handlers receive ctx.
func (d *Dispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	d.started = true
	d.mu.Unlock()

	handlerCtx := context.WithValue(ctx, handlerKey{}, d)

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		for event := range d.events {
			d.dispatch(handlerCtx, event)

			d.mu.Lock()
			d.pending--
			if d.stopping && d.pending == 0 {
				d.closeLocked()
			}
			d.mu.Unlock()
		}
	}()
}

// Stop refuses new outside events, waits until every queued event,
// including the ones published by handlers while draining, is handled and
// then shuts the consumer down.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	d.stopping = true
	if d.pending == 0 || !d.started {
		d.closeLocked()
	}
	d.mu.Unlock()

	d.wg.Wait()
}

func (d *Dispatcher) closeLocked() {
	if !d.closed {
		d.closed = true
		close(d.events)
	}
}

func (d *Dispatcher) dispatch(ctx context.Context, event models.Event) {
	d.mu.Lock()
	handlers := append([]EventHandler(nil), d.handlers[event.Type]...)
	d.mu.Unlock()

	logger := d.logger.With("event", event.Type, "event_id", event.ID, "run_id", event.RunID)
	for _, handler := range handlers {
		if err := handler(ctx, event); err != nil {
			logger.Error("Event handler failed", "error", err)
		}
	}
}
