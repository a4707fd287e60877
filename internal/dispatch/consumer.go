// Package dispatch delivers decoded records to a caller-supplied consumer,
// either synchronously on the decode goroutine (the default) or through a
// single bounded channel to a dedicated consumer goroutine (opt-in), per
// the teacher stack's own "keep the synchronous inline default; channel is
// opt-in" design note (adapted from internal/hub and internal/transport's
// AsyncTx in the prior CAN-gateway revision of this codebase).
package dispatch

import "github.com/kstaniek/twse-ingest/internal/record"

// Consumer receives one decoded record at a time. r is built fresh for
// this frame and not retained or reused by the decoder or control plane
// afterwards, but an implementation that needs it past the call (e.g. one
// queuing it for a different goroutine) must still copy what it needs
// before returning, since the caller may be on a hot read loop that moves
// on to the next frame immediately.
type Consumer interface {
	Consume(r record.Record)
}

// ConsumerFunc adapts a plain function to the Consumer interface.
type ConsumerFunc func(record.Record)

func (f ConsumerFunc) Consume(r record.Record) { f(r) }

// Sink is the interface the control plane dispatches through; both the
// inline Direct sink and the bounded Async sink satisfy it.
type Sink interface {
	Dispatch(r record.Record)
	// Close releases resources (only meaningful for Async; a no-op for Direct).
	Close()
}

// Direct calls the consumer inline — the synchronous default.
type Direct struct {
	Consumer Consumer
}

func (d Direct) Dispatch(r record.Record) { d.Consumer.Consume(r) }
func (d Direct) Close()                   {}
