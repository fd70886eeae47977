// Package logbroker defines the adapter contracts a command broker
// deployment must satisfy for its ordered log (spec §4.1, §4.2, §4.6)
// and ships a Redis Streams implementation plus an in-memory fake for
// tests.
package logbroker

import (
	"context"

	"github.com/corebridge/commandbroker"
)

// AsyncResult is fulfilled exactly once, either with a value or an
// error, never both (spec §4.1). It mirrors the result-channel pattern
// the broker adapters in the retrieval pack use for async acks.
type AsyncResult[T any] struct {
	ch chan asyncOutcome[T]
}

type asyncOutcome[T any] struct {
	val T
	err error
}

// NewAsyncResult creates an unfulfilled result with room for exactly
// one outcome.
func NewAsyncResult[T any]() *AsyncResult[T] {
	return &AsyncResult[T]{ch: make(chan asyncOutcome[T], 1)}
}

// Fulfill delivers the outcome. It must be called at most once; a
// second call blocks until the first outcome has been received by
// Await (forever if it never is), since the channel has a single slot.
// That is an adapter bug, not a condition callers need to guard
// against.
func (r *AsyncResult[T]) Fulfill(val T, err error) {
	r.ch <- asyncOutcome[T]{val: val, err: err}
}

// Await blocks until the result is fulfilled or ctx is done. A closed,
// never-fulfilled result (e.g. the adapter dropped its send side) is
// indistinguishable from "send response channel closed" and is reported
// as such (spec §4.1).
func (r *AsyncResult[T]) Await(ctx context.Context) (T, error) {
	select {
	case o, ok := <-r.ch:
		if !ok {
			var zero T
			return zero, errSendChannelClosed
		}
		return o.val, o.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// LogProducer appends keyed records to the broker (spec §4.1).
// Implementations must be safe for concurrent use.
type LogProducer interface {
	Append(ctx context.Context, record commandbroker.LogRecord) *AsyncResult[commandbroker.AppendAck]
}

// LogConsumer subscribes to a fixed set of topics and delivers records
// onto sink in broker order per partition, at-least-once (spec §4.2).
// Drain blocks until ctx is cancelled or the subscription fails fatally,
// in which case it returns a non-nil error and the caller must treat
// the consumer as terminal (spec §4.4 "Failure semantics").
type LogConsumer interface {
	Drain(ctx context.Context, sink chan<- commandbroker.LogRecord) error
}
