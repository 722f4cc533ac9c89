// Package events is an in-process publish/subscribe bus for side effects
// that must not run on a room's goroutine.
package events

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc/panics"
	"github.com/sourcegraph/conc/pool"
)

// All subscribes to every topic.
const All = "*"

const (
	defaultQueue   = 1024
	defaultWorkers = 4
)

type Handler func(topic string, payload any)

type event struct {
	topic   string
	payload any
}

type subscription struct {
	id int
	h  Handler
}

// Bus queues events and delivers them on a bounded worker pool.
// Publish never blocks; when the queue is full the event is dropped.
type Bus struct {
	mu   sync.RWMutex
	subs map[string][]subscription
	next int

	queue   chan event
	workers *pool.Pool
	done    chan struct{}
	closed  atomic.Bool
	dropped atomic.Int64
	log     zerolog.Logger
}

func New(queue, workers int, logger zerolog.Logger) *Bus {
	if queue <= 0 {
		queue = defaultQueue
	}
	if workers <= 0 {
		workers = defaultWorkers
	}
	b := &Bus{
		subs:    make(map[string][]subscription),
		queue:   make(chan event, queue),
		workers: pool.New().WithMaxGoroutines(workers),
		done:    make(chan struct{}),
		log:     logger.With().Str("module", "app.events").Logger(),
	}
	go b.dispatch()
	return b
}

// Subscribe registers h for topic (or All) and returns its cancel func.
func (b *Bus) Subscribe(topic string, h Handler) func() {
	b.mu.Lock()
	b.next++
	id := b.next
	b.subs[topic] = append(b.subs[topic], subscription{id: id, h: h})
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		subs := b.subs[topic]
		for i, s := range subs {
			if s.id == id {
				b.subs[topic] = append(subs[:i:i], subs[i+1:]...)
				break
			}
		}
		if len(b.subs[topic]) == 0 {
			delete(b.subs, topic)
		}
	}
}

func (b *Bus) Publish(topic string, payload any) {
	if b.closed.Load() {
		return
	}
	defer func() {
		// Close raced with us and the queue is gone.
		if recover() != nil {
			b.dropped.Add(1)
		}
	}()
	select {
	case b.queue <- event{topic: topic, payload: payload}:
	default:
		n := b.dropped.Add(1)
		b.log.Warn().Str("topic", topic).Int64("dropped_total", n).Msg("event queue full, dropping")
	}
}

func (b *Bus) Dropped() int64 { return b.dropped.Load() }

func (b *Bus) handlers(topic string) []Handler {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]Handler, 0, len(b.subs[topic])+len(b.subs[All]))
	for _, s := range b.subs[topic] {
		out = append(out, s.h)
	}
	for _, s := range b.subs[All] {
		out = append(out, s.h)
	}
	return out
}

func (b *Bus) dispatch() {
	defer close(b.done)
	for ev := range b.queue {
		for _, h := range b.handlers(ev.topic) {
			b.workers.Go(func() {
				if rec := panics.Try(func() { h(ev.topic, ev.payload) }); rec != nil {
					b.log.Error().Err(rec.AsError()).Str("topic", ev.topic).Msg("event handler panicked")
				}
			})
		}
	}
	b.workers.Wait()
}

// Close stops accepting events and drains the queue until ctx expires.
func (b *Bus) Close(ctx context.Context) error {
	if !b.closed.CompareAndSwap(false, true) {
		return nil
	}
	close(b.queue)
	select {
	case <-b.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
