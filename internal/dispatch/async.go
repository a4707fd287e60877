package dispatch

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/kstaniek/twse-ingest/internal/record"
)

// Hooks let Async report drops/queue depth without hard-wiring a metrics
// dependency into this package, mirroring the teacher stack's own
// transport.Hooks pattern for its AsyncTx writer.
type Hooks struct {
	// OnDrop is called whenever a record is dropped because the channel is full.
	OnDrop func()
	// OnQueueDepth is sampled on every successful enqueue with the channel's current length.
	OnQueueDepth func(depth int)
}

// Async funnels records through one bounded channel to a single dedicated
// consumer goroutine. If the channel is full, Dispatch drops the record
// (after calling Hooks.OnDrop) rather than blocking the caller — this keeps
// a slow consumer from stalling the socket-read goroutine, at the cost of
// losing records under sustained backpressure (SPEC_FULL.md §4.4).
type Async struct {
	ch     chan record.Record
	cancel context.CancelFunc
	wg     sync.WaitGroup
	hooks  Hooks
	closed atomic.Bool
}

// NewAsync starts the consumer goroutine and returns an Async dispatcher
// with a channel of the given capacity.
func NewAsync(parent context.Context, buf int, consumer Consumer, hooks Hooks) *Async {
	ctx, cancel := context.WithCancel(parent)
	a := &Async{
		ch:     make(chan record.Record, buf),
		cancel: cancel,
		hooks:  hooks,
	}
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		for {
			select {
			case r, ok := <-a.ch:
				if !ok {
					return
				}
				consumer.Consume(r)
			case <-ctx.Done():
				return
			}
		}
	}()
	return a
}

// Dispatch enqueues r for asynchronous delivery, dropping it if the buffer
// is full.
func (a *Async) Dispatch(r record.Record) {
	if a.closed.Load() {
		return
	}
	select {
	case a.ch <- r:
		if a.hooks.OnQueueDepth != nil {
			a.hooks.OnQueueDepth(len(a.ch))
		}
	default:
		if a.hooks.OnDrop != nil {
			a.hooks.OnDrop()
		}
	}
}

// Close stops the consumer goroutine and waits for it to exit. Pending
// queued records are discarded.
func (a *Async) Close() {
	if a.closed.Swap(true) {
		return
	}
	a.cancel()
	a.wg.Wait()
}
