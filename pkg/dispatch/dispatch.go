// Package dispatch delivers events to subscribers on a dedicated goroutine,
// keeping slow callbacks off the producer's loop while preserving event
// order.
package dispatch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Event is one queued delivery.
type Event struct {
	Type     string
	Payload  interface{}
	Enqueued time.Time
}

// Handler consumes an event.
type Handler func(context.Context, Event)

// Config tunes the dispatcher.
type Config struct {
	BufferSize int
	Logger     *zap.Logger
}

// Dispatcher is a single-worker in-memory event pump. One worker keeps
// delivery ordered, which the notification inbox relies on.
type Dispatcher struct {
	name    string
	handler Handler

	bufferSize int
	logger     *zap.Logger

	events  chan Event
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	started bool
}

// New builds a dispatcher with the provided handler.
func New(name string, handler Handler, cfg Config) *Dispatcher {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 64
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Dispatcher{
		name:       name,
		handler:    handler,
		bufferSize: cfg.BufferSize,
		logger:     cfg.Logger,
		events:     make(chan Event, cfg.BufferSize),
	}
}

// Start begins delivery. Safe to call once.
func (d *Dispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started {
		return
	}
	d.ctx, d.cancel = context.WithCancel(ctx)
	d.wg.Add(1)
	go d.worker()
	d.started = true
	d.logger.Sugar().Infow("dispatcher started", "dispatcher", d.name)
}

// Stop cancels the worker and waits for it to exit.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if !d.started {
		d.mu.Unlock()
		return
	}
	d.cancel()
	d.started = false
	d.mu.Unlock()
	d.wg.Wait()
	d.logger.Sugar().Infow("dispatcher stopped", "dispatcher", d.name)
}

// Publish queues an event for delivery.
func (d *Dispatcher) Publish(event Event) error {
	d.mu.Lock()
	ctx := d.ctx
	started := d.started
	d.mu.Unlock()

	if !started {
		return fmt.Errorf("dispatcher %s not started", d.name)
	}
	if event.Enqueued.IsZero() {
		event.Enqueued = time.Now().UTC()
	}

	select {
	case <-ctx.Done():
		return fmt.Errorf("dispatcher %s stopped: %w", d.name, ctx.Err())
	case d.events <- event:
		return nil
	}
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for {
		select {
		case <-d.ctx.Done():
			return
		case event := <-d.events:
			d.handler(d.ctx, event)
		}
	}
}
