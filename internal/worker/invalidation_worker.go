// Package worker keeps the local data cache in step with other processes.
package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"expensetracker/internal/amqp"
	"expensetracker/internal/cache"
	"expensetracker/internal/log"
	"expensetracker/internal/metrics"
)

// Bus is the transport the worker publishes to and consumes from.
type Bus interface {
	Publish(ctx context.Context, msg *amqp.InvalidationMessage) error
	Consume(ctx context.Context, handler func(context.Context, *amqp.InvalidationMessage) error) error
}

// DefaultOutboxSize bounds the local invalidations waiting to be published.
const DefaultOutboxSize = 64

// DrainTimeout bounds publishing the outbox on Stop.
const DrainTimeout = 5 * time.Second

// InvalidationWorker publishes local cache invalidations and applies the ones
// published by other processes. Messages carrying this process's origin are
// ignored, as are messages about another user.
type InvalidationWorker struct {
	bus    Bus
	store  *cache.Store
	origin string
	userID func() string
	logger *log.Logger

	outbox chan []string

	// Lifecycle management
	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	doneCh  chan struct{}
}

// NewInvalidationWorker hooks into store; userID reports the signed-in user
// and may be nil.
func NewInvalidationWorker(bus Bus, store *cache.Store, userID func() string, logger *log.Logger) *InvalidationWorker {
	if logger == nil {
		logger = log.Discard()
	}
	if userID == nil {
		userID = func() string { return "" }
	}
	w := &InvalidationWorker{
		bus:    bus,
		store:  store,
		origin: uuid.NewString(),
		userID: userID,
		logger: logger.WithComponent(log.ComponentWorker),
		outbox: make(chan []string, DefaultOutboxSize),
	}
	store.OnInvalidate(w.enqueue)
	return w
}

// Origin identifies this process on the bus.
func (w *InvalidationWorker) Origin() string {
	return w.origin
}

// enqueue runs on the invalidating goroutine, so it never blocks.
func (w *InvalidationWorker) enqueue(tags []cache.Tag) {
	select {
	case w.outbox <- cache.TagStrings(tags):
	default:
		metrics.BusMessages.WithLabelValues("published", "dropped").Inc()
		w.logger.Warn("Invalidation outbox full, dropping message", log.FieldTags, cache.TagStrings(tags))
	}
}

// Start launches the consumer and the publisher. Returns an error if already running.
func (w *InvalidationWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return fmt.Errorf("invalidation worker is already running")
	}
	ctx, cancel := context.WithCancel(ctx)
	w.running = true
	w.cancel = cancel
	w.doneCh = make(chan struct{})

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		w.publishLoop(ctx)
	}()
	go func() {
		defer wg.Done()
		if err := w.bus.Consume(ctx, w.HandleMessage); err != nil && ctx.Err() == nil {
			w.logger.ErrorContext(ctx, "Invalidation consumer stopped", log.FieldError, err.Error())
		}
	}()
	go func() {
		wg.Wait()
		close(w.doneCh)
	}()

	w.logger.InfoContext(ctx, "Invalidation worker started", "origin", w.origin)
	return nil
}

// Stop cancels both loops and waits for them, or for ctx.
func (w *InvalidationWorker) Stop(ctx context.Context) error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	cancel, done := w.cancel, w.doneCh
	w.mu.Unlock()

	cancel()
	select {
	case <-done:
		w.logger.InfoContext(ctx, "Invalidation worker stopped gracefully")
	case <-ctx.Done():
		w.logger.WarnContext(ctx, "Invalidation worker stop timed out")
		return ctx.Err()
	}

	w.mu.Lock()
	w.running = false
	w.mu.Unlock()
	return nil
}

func (w *InvalidationWorker) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

func (w *InvalidationWorker) publishLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			w.drain(ctx)
			return
		case tags := <-w.outbox:
			w.publish(ctx, tags)
		}
	}
}

// drain publishes what is still queued at shutdown, so a short-lived command
// still announces its mutations.
func (w *InvalidationWorker) drain(ctx context.Context) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), DrainTimeout)
	defer cancel()
	for {
		select {
		case tags := <-w.outbox:
			w.publish(ctx, tags)
		default:
			return
		}
	}
}

// publish failures are logged; the local cache is already correct.
func (w *InvalidationWorker) publish(ctx context.Context, tags []string) {
	msg := amqp.NewInvalidationMessage(w.origin, w.userID(), tags)
	if err := w.bus.Publish(ctx, msg); err != nil {
		metrics.BusMessages.WithLabelValues("published", "error").Inc()
		w.logger.WarnContext(ctx, "Failed to publish invalidation",
			log.FieldTags, tags,
			log.FieldError, err.Error())
		return
	}
	metrics.BusMessages.WithLabelValues("published", "ok").Inc()
}

// HandleMessage applies one remote invalidation to the local cache.
func (w *InvalidationWorker) HandleMessage(ctx context.Context, msg *amqp.InvalidationMessage) error {
	if msg.Origin == w.origin {
		metrics.BusMessages.WithLabelValues("consumed", "skipped").Inc()
		return nil
	}
	if current := w.userID(); msg.UserID != "" && current != "" && msg.UserID != current {
		metrics.BusMessages.WithLabelValues("consumed", "skipped").Inc()
		w.logger.DebugContext(ctx, "Ignoring invalidation for another user", "origin", msg.Origin)
		return nil
	}

	tags := make([]cache.Tag, 0, len(msg.Tags))
	for _, s := range msg.Tags {
		tag, err := cache.ParseTag(s)
		if err != nil {
			w.logger.WarnContext(ctx, "Skipping malformed tag", "tag", s, log.FieldError, err.Error())
			continue
		}
		tags = append(tags, tag)
	}
	if len(tags) == 0 {
		metrics.BusMessages.WithLabelValues("consumed", "error").Inc()
		return nil
	}

	n := w.store.InvalidateTags(tags, msg.Origin)
	metrics.BusMessages.WithLabelValues("consumed", "ok").Inc()
	w.logger.DebugContext(ctx, "Applied remote invalidation",
		"origin", msg.Origin,
		log.FieldTags, msg.Tags,
		"entries", n)
	return nil
}
