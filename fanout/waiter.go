package fanout

import "github.com/corebridge/commandbroker"

// waitResult is delivered exactly once to a waiter: either the matching
// event or a timeout/shutdown signal (never both, never neither).
type waitResult struct {
	event   commandbroker.Event
	timeout bool
}

// Waiter is the opaque handle returned by RegisterWaiter. Callers never
// inspect it; they pass it back to Await or UnregisterWaiter.
type Waiter struct {
	parentID string
	done     chan waitResult
}

func newWaiter(parentID string) *Waiter {
	return &Waiter{parentID: parentID, done: make(chan waitResult, 1)}
}

// complete delivers a result. The hub only ever calls this once per
// waiter, in the same step that removes it from the waiter index, so
// double delivery cannot happen through normal operation.
func (w *Waiter) complete(r waitResult) {
	w.done <- r
}
