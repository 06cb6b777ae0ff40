package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"tryon-web/internal/broker"
	"tryon-web/internal/domain"

	"github.com/wb-go/wbf/zlog"
)

var (
	ErrQueueFull = errors.New("event queue is full")
	ErrStopped   = errors.New("event dispatcher stopped")
)

const publishTimeout = 10 * time.Second

// Dispatcher hands events to a fixed pool of workers so that publishing
// never blocks the caller.
type Dispatcher struct {
	publisher   broker.Publisher
	logger      *zlog.Zerolog
	concurrency int

	mu      sync.RWMutex
	events  chan domain.TryOnEvent
	stopped bool
	wg      sync.WaitGroup
}

func NewDispatcher(publisher broker.Publisher, concurrency, queueSize int, logger *zlog.Zerolog) *Dispatcher {
	if concurrency < 1 {
		concurrency = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}

	return &Dispatcher{
		publisher:   publisher,
		logger:      logger,
		concurrency: concurrency,
		events:      make(chan domain.TryOnEvent, queueSize),
	}
}

func (d *Dispatcher) Start() {
	for i := 0; i < d.concurrency; i++ {
		d.wg.Add(1)
		go func(id int) {
			defer d.wg.Done()
			d.processWorker(id)
		}(i)
	}
	d.logger.Info().Int("concurrency", d.concurrency).Int("queue_size", cap(d.events)).Msg("Event dispatcher started")
}

// Publish enqueues event without waiting for delivery.
func (d *Dispatcher) Publish(ctx context.Context, event domain.TryOnEvent) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.stopped {
		return ErrStopped
	}

	select {
	case d.events <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return ErrQueueFull
	}
}

// Close stops accepting events, drains the queue and closes the publisher.
func (d *Dispatcher) Close() error {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return nil
	}
	d.stopped = true
	close(d.events)
	d.mu.Unlock()

	d.wg.Wait()
	d.logger.Info().Msg("Event dispatcher stopped")
	return d.publisher.Close()
}

func (d *Dispatcher) processWorker(id int) {
	for event := range d.events {
		start := time.Now()
		if err := d.safeDeliver(id, event); err != nil {
			d.logger.Error().
				Err(err).
				Int("worker_id", id).
				Str("session_id", event.SessionID).
				Str("status", string(event.Status)).
				Msg("Failed to publish try-on event")
			continue
		}
		d.logger.Debug().
			Int("worker_id", id).
			Str("session_id", event.SessionID).
			Str("status", string(event.Status)).
			Dur("duration", time.Since(start)).
			Msg("Try-on event published")
	}
}

func (d *Dispatcher) safeDeliver(workerID int, event domain.TryOnEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error().
				Int("worker_id", workerID).
				Interface("panic", r).
				Str("session_id", event.SessionID).
				Msg("Panic recovered while publishing event")
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	return d.publisher.Publish(ctx, event)
}
