// Package fanout implements the concurrency nucleus of the command
// broker: a single demux task that consumes one ordered log per topic
// and fans each record out to broadcast subscribers and, for events,
// to a correlation-waiter index keyed by parent id (spec §4.4).
package fanout

import (
	"context"
	"sync"
	"time"

	"github.com/corebridge/commandbroker"
	"github.com/corebridge/commandbroker/internal/logging"
	"github.com/corebridge/commandbroker/logbroker"
)

// DefaultBackpressureCapacity is the sliding-buffer capacity a
// broadcast subscription uses when the caller does not specify one
// (spec §4.4 point 2: "capacity small, e.g. 1").
const DefaultBackpressureCapacity = 1

// Config configures a Hub.
type Config struct {
	CommandsTopic string
	EventsTopic   string
	Logger        logging.Logger

	// ConsumerBuffer sizes the channel LogConsumer.Drain writes into
	// ahead of the demux task. Zero means unbuffered.
	ConsumerBuffer int
}

// Hub is the FanoutHub described in spec §4.4. The zero value is not
// usable; construct with New.
type Hub struct {
	commandsTopic string
	eventsTopic   string
	logger        logging.Logger

	ops         chan func()
	closedCh    chan struct{}
	shutdownReq chan struct{}

	consumerBuffer int

	cmdGroup *broadcastGroup[commandbroker.LogRecord]
	evtGroup *broadcastGroup[commandbroker.LogRecord]
	waiters  map[string]*Waiter

	started bool
	closed  bool

	startMu sync.Mutex
}

// New constructs a Hub. The hub does nothing until Start is called.
func New(cfg Config) *Hub {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Nop
	}
	return &Hub{
		commandsTopic:  cfg.CommandsTopic,
		eventsTopic:    cfg.EventsTopic,
		logger:         logger,
		consumerBuffer: cfg.ConsumerBuffer,
		ops:            make(chan func()),
		closedCh:       make(chan struct{}),
		shutdownReq:    make(chan struct{}),
		cmdGroup:       newBroadcastGroup[commandbroker.LogRecord](),
		evtGroup:       newBroadcastGroup[commandbroker.LogRecord](),
		waiters:        make(map[string]*Waiter),
	}
}

// Start wires consumer into the hub's internal delivery primitive and
// spawns the demux task. It returns ErrAlreadyStarted if called more
// than once on the same Hub (spec §6 "start must be idempotent against
// a stopped instance" — idempotency here means a second Start is
// rejected rather than silently restarting a fresh consumer).
func (h *Hub) Start(ctx context.Context, consumer logbroker.LogConsumer) error {
	h.startMu.Lock()
	if h.started {
		h.startMu.Unlock()
		return commandbroker.ErrAlreadyStarted
	}
	h.started = true
	h.startMu.Unlock()

	records := make(chan commandbroker.LogRecord, h.consumerBuffer)
	drainErr := make(chan error, 1)
	go func() {
		drainErr <- consumer.Drain(ctx, records)
	}()

	go h.demuxLoop(records, drainErr)
	return nil
}

func (h *Hub) demuxLoop(records <-chan commandbroker.LogRecord, drainErr <-chan error) {
	for {
		select {
		case rec, ok := <-records:
			if !ok {
				h.terminal(nil)
				return
			}
			h.handleRecord(rec)
		case err := <-drainErr:
			h.terminal(err)
			return
		case op := <-h.ops:
			op()
		case <-h.shutdownReq:
			h.terminal(nil)
			return
		}
	}
}

// Shutdown makes the hub terminal: every broadcast sink is closed,
// every outstanding waiter completes as timeout, and further
// subscribes/registrations are rejected (spec §4.4 "shutdown()").
// Idempotent: calling it again after the hub is already terminal
// returns immediately. ctx bounds how long the caller waits for the
// demux task to observe the request.
func (h *Hub) Shutdown(ctx context.Context) error {
	select {
	case h.shutdownReq <- struct{}{}:
	case <-h.closedCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-h.closedCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *Hub) handleRecord(rec commandbroker.LogRecord) {
	switch rec.Topic {
	case h.commandsTopic:
		h.cmdGroup.broadcast(rec)
	case h.eventsTopic:
		h.evtGroup.broadcast(rec)
		if rec.Value.Parent == "" {
			return
		}
		if w, ok := h.waiters[rec.Value.Parent]; ok {
			delete(h.waiters, rec.Value.Parent)
			w.complete(waitResult{event: commandbroker.EventFromRecord(rec)})
		}
	}
}

// terminal puts the hub into its shutdown state from inside the demux
// task: every broadcast sink is closed, every outstanding waiter is
// completed as timeout, and the ops channel stops accepting new
// subscriptions (spec §4.4 "shutdown()", §7 ConsumerFatal).
func (h *Hub) terminal(cause error) {
	if h.closed {
		return
	}
	h.closed = true
	if cause != nil {
		h.logger.Error("commandbroker: consumer fatal, shutting down hub", "error", cause)
	}
	h.cmdGroup.closeAll()
	h.evtGroup.closeAll()
	for id, w := range h.waiters {
		delete(h.waiters, id)
		w.complete(waitResult{timeout: true})
	}
	close(h.closedCh)
}

// runOp submits fn to the demux task and blocks until it has run, and
// reports whether fn actually ran. Once the hub is terminal nobody
// reads h.ops anymore, so runOp instead observes closedCh and returns
// false without running fn.
func (h *Hub) runOp(fn func()) bool {
	done := make(chan struct{})
	op := func() {
		fn()
		close(done)
	}
	select {
	case h.ops <- op:
		<-done
		return true
	case <-h.closedCh:
		return false
	}
}

// SubscribeCommands joins the command broadcast group and returns a
// receive-only sliding-buffer channel plus an unsubscribe function. A
// capacity <= 0 uses DefaultBackpressureCapacity. Returns ErrShutdown
// if the hub is already terminal.
func (h *Hub) SubscribeCommands(capacity int) (<-chan commandbroker.LogRecord, func(), error) {
	return h.subscribe(h.cmdGroup, capacity)
}

// SubscribeEvents is symmetric to SubscribeCommands for the events
// broadcast group.
func (h *Hub) SubscribeEvents(capacity int) (<-chan commandbroker.LogRecord, func(), error) {
	return h.subscribe(h.evtGroup, capacity)
}

func (h *Hub) subscribe(group *broadcastGroup[commandbroker.LogRecord], capacity int) (<-chan commandbroker.LogRecord, func(), error) {
	if capacity <= 0 {
		capacity = DefaultBackpressureCapacity
	}
	sink, trySend := NewSlidingSink[commandbroker.LogRecord](capacity)

	if ok := h.runOp(func() { group.add(sink, trySend) }); !ok {
		return nil, func() {}, commandbroker.ErrShutdown
	}

	// Closing sink must happen in the same op as removing it from group:
	// the demux task serializes ops against broadcast(), so once remove
	// returns there is no in-flight send that could race the close. A
	// second unsubscribe call (or one that loses a race with hub
	// shutdown, which already closed and cleared the group) finds sink
	// already gone and skips the close.
	unsubscribe := func() {
		h.runOp(func() {
			if group.remove(sink) {
				close(sink)
			}
		})
	}
	return sink, unsubscribe, nil
}

// RegisterWaiter registers a one-shot correlation waiter keyed by
// parentID. It must be called before the corresponding command is
// appended to the broker (spec §4.5 "register-before-append"); calling
// it after the append risks losing a completion event that races in
// first. Returns ErrShutdown if the hub is already terminal.
func (h *Hub) RegisterWaiter(parentID string) (*Waiter, error) {
	w := newWaiter(parentID)
	if ok := h.runOp(func() { h.waiters[parentID] = w }); !ok {
		return nil, commandbroker.ErrShutdown
	}
	return w, nil
}

// UnregisterWaiter removes w from the waiter index if still present.
// Safe to call even if w has already been completed or removed.
func (h *Hub) UnregisterWaiter(w *Waiter) {
	h.runOp(func() {
		if cur, ok := h.waiters[w.parentID]; ok && cur == w {
			delete(h.waiters, w.parentID)
		}
	})
}

// Await blocks until w is completed by a matching event, by deadline
// expiry, by hub shutdown, or by ctx cancellation — whichever happens
// first. It always unregisters w before returning (spec §4.4
// "Always unregisters before returning"). On ctx cancellation it
// returns a non-nil error; timeout and shutdown are reported via the
// timedOut return, never as an error (spec §7).
func (h *Hub) Await(ctx context.Context, w *Waiter, deadline time.Time) (event commandbroker.Event, timedOut bool, err error) {
	// A zero or already-past deadline (spec §9 "sync-timeout-ms == 0")
	// must still deterministically prefer an event that beat Await to
	// the punch, rather than racing it against an immediately-firing
	// timer in the select below.
	select {
	case r := <-w.done:
		return r.event, r.timeout, nil
	default:
	}

	timer := time.NewTimer(time.Until(deadline))
	defer timer.Stop()

	select {
	case r := <-w.done:
		return r.event, r.timeout, nil
	case <-timer.C:
		h.UnregisterWaiter(w)
		// A matching event may have raced in between the timer firing
		// and the unregister taking effect; prefer it over a bare
		// timeout if it is already sitting in the buffered channel.
		select {
		case r := <-w.done:
			return r.event, r.timeout, nil
		default:
			return commandbroker.Event{}, true, nil
		}
	case <-ctx.Done():
		h.UnregisterWaiter(w)
		return commandbroker.Event{}, false, ctx.Err()
	}
}
