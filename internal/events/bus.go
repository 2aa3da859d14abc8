// Package events provides the in-process event bus connecting the trading
// core to observers (API websocket, logging, metrics). Publishing never
// blocks the trading loop: events route through a buffered channel and a
// worker pool, and are dropped with a counter when the buffer is full.
package events

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// EventType categorizes bus events.
type EventType string

const (
	// Trading events
	EventSignalBuy      EventType = "signal_buy"
	EventSignalSell     EventType = "signal_sell"
	EventOrderFilled    EventType = "order_filled"
	EventOrderFailed    EventType = "order_failed"
	EventPositionOpened EventType = "position_opened"
	EventPositionClosed EventType = "position_closed"

	// Risk events
	EventRiskLimitHit EventType = "risk_limit_hit"

	// Lifecycle events
	EventBotStarted EventType = "bot_started"
	EventBotStopped EventType = "bot_stopped"
	EventBotPaused  EventType = "bot_paused"
	EventBotResumed EventType = "bot_resumed"
	EventError      EventType = "error"
)

// Event is a single bus message. Data holds type-specific fields; the
// payload is treated as immutable once published.
type Event struct {
	ID        string         `json:"id"`
	Type      EventType      `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	Source    string         `json:"source"`
	Data      map[string]any `json:"data,omitempty"`
}

// New creates an event with a generated ID and current timestamp.
func New(eventType EventType, source string, data map[string]any) Event {
	return Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: time.Now(),
		Source:    source,
		Data:      data,
	}
}

// Handler processes a delivered event. Handlers run on bus workers and
// must not block for long; a panicking handler is recovered and counted.
type Handler func(Event)

// Subscription identifies a registered handler.
type Subscription struct {
	ID        string
	EventType EventType

	handler Handler
	active  atomic.Bool
}

// Stats is a point-in-time snapshot of bus counters.
type Stats struct {
	Published         int64 `json:"published"`
	Processed         int64 `json:"processed"`
	Dropped           int64 `json:"dropped"`
	HandlerPanics     int64 `json:"handlerPanics"`
	ActiveSubscribers int64 `json:"activeSubscribers"`
}

// BusConfig configures the event bus.
type BusConfig struct {
	NumWorkers int `json:"numWorkers"`
	BufferSize int `json:"bufferSize"`
}

// DefaultBusConfig returns the default bus sizing.
func DefaultBusConfig() BusConfig {
	return BusConfig{
		NumWorkers: 4,
		BufferSize: 4096,
	}
}

// Bus is the event bus. Safe for concurrent use.
type Bus struct {
	logger *zap.Logger

	mu             sync.RWMutex
	subscribers    map[EventType][]*Subscription
	allSubscribers []*Subscription

	eventChan chan Event
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup

	published     atomic.Int64
	processed     atomic.Int64
	dropped       atomic.Int64
	handlerPanics atomic.Int64
	activeSubs    atomic.Int64
}

// NewBus creates and starts an event bus with the given configuration.
func NewBus(logger *zap.Logger, config BusConfig) *Bus {
	if config.NumWorkers <= 0 {
		config.NumWorkers = DefaultBusConfig().NumWorkers
	}
	if config.BufferSize <= 0 {
		config.BufferSize = DefaultBusConfig().BufferSize
	}

	ctx, cancel := context.WithCancel(context.Background())
	b := &Bus{
		logger:      logger.Named("events"),
		subscribers: make(map[EventType][]*Subscription),
		eventChan:   make(chan Event, config.BufferSize),
		ctx:         ctx,
		cancel:      cancel,
	}

	for i := 0; i < config.NumWorkers; i++ {
		b.wg.Add(1)
		go b.worker()
	}

	b.logger.Info("event bus started",
		zap.Int("workers", config.NumWorkers),
		zap.Int("buffer_size", config.BufferSize))

	return b
}

func (b *Bus) worker() {
	defer b.wg.Done()
	for {
		select {
		case <-b.ctx.Done():
			return
		case event := <-b.eventChan:
			b.dispatch(event)
		}
	}
}

func (b *Bus) dispatch(event Event) {
	b.mu.RLock()
	subs := b.subscribers[event.Type]
	allSubs := b.allSubscribers
	b.mu.RUnlock()

	for _, sub := range subs {
		if sub.active.Load() {
			b.invoke(sub, event)
		}
	}
	for _, sub := range allSubs {
		if sub.active.Load() {
			b.invoke(sub, event)
		}
	}

	b.processed.Add(1)
}

func (b *Bus) invoke(sub *Subscription, event Event) {
	defer func() {
		if r := recover(); r != nil {
			b.handlerPanics.Add(1)
			b.logger.Error("event handler panic",
				zap.String("subscription_id", sub.ID),
				zap.String("event_type", string(event.Type)),
				zap.Any("panic", r))
		}
	}()
	sub.handler(event)
}

// Subscribe registers a handler for one event type.
func (b *Bus) Subscribe(eventType EventType, handler Handler) *Subscription {
	sub := &Subscription{
		ID:        uuid.New().String(),
		EventType: eventType,
		handler:   handler,
	}
	sub.active.Store(true)

	b.mu.Lock()
	b.subscribers[eventType] = append(b.subscribers[eventType], sub)
	b.mu.Unlock()
	b.activeSubs.Add(1)

	return sub
}

// SubscribeAll registers a handler for every event type.
func (b *Bus) SubscribeAll(handler Handler) *Subscription {
	sub := &Subscription{
		ID:        uuid.New().String(),
		EventType: "*",
		handler:   handler,
	}
	sub.active.Store(true)

	b.mu.Lock()
	b.allSubscribers = append(b.allSubscribers, sub)
	b.mu.Unlock()
	b.activeSubs.Add(1)

	return sub
}

// Unsubscribe deactivates a subscription. The subscription record stays in
// place; inactive entries are skipped at dispatch.
func (b *Bus) Unsubscribe(sub *Subscription) {
	if sub.active.CompareAndSwap(true, false) {
		b.activeSubs.Add(-1)
	}
}

// Publish queues an event for delivery without blocking. If the buffer is
// full the event is dropped and counted.
func (b *Bus) Publish(event Event) {
	select {
	case b.eventChan <- event:
		b.published.Add(1)
	default:
		b.dropped.Add(1)
		b.logger.Warn("event dropped, buffer full",
			zap.String("event_type", string(event.Type)))
	}
}

// PublishSync delivers an event inline on the caller's goroutine.
func (b *Bus) PublishSync(event Event) {
	b.published.Add(1)
	b.dispatch(event)
}

// GetStats returns current bus counters.
func (b *Bus) GetStats() Stats {
	return Stats{
		Published:         b.published.Load(),
		Processed:         b.processed.Load(),
		Dropped:           b.dropped.Load(),
		HandlerPanics:     b.handlerPanics.Load(),
		ActiveSubscribers: b.activeSubs.Load(),
	}
}

// Stop shuts the bus down, waiting up to 5 seconds for workers to drain.
func (b *Bus) Stop() {
	b.cancel()

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		b.logger.Info("event bus stopped",
			zap.Int64("processed", b.processed.Load()),
			zap.Int64("dropped", b.dropped.Load()))
	case <-time.After(5 * time.Second):
		b.logger.Warn("event bus shutdown timed out")
	}
}
