// Package commander implements the Commander public API described in
// spec §4.5: it composes a LogProducer, a FanoutHub, and an IndexReader
// into command submission (async and synchronous), listing, point
// lookup, and streaming operations.
package commander

import (
	"context"
	"time"

	"github.com/corebridge/commandbroker"
	"github.com/corebridge/commandbroker/fanout"
	"github.com/corebridge/commandbroker/index"
	"github.com/corebridge/commandbroker/internal/logging"
	"github.com/corebridge/commandbroker/logbroker"
)

// timedOutMessage is the exact business-outcome message spec §4.5 step
// 8 requires the returned Command to carry; it is not a Go error.
const timedOutMessage = "Timed out waiting for completion event."

// DefaultStreamCapacity is the sliding-buffer capacity streamCommands/
// streamEvents use when the caller supplies no sink (spec §6 "Stream
// channel defaults").
const DefaultStreamCapacity = 10

// Validator is the extension point named in spec §4.5
// "validateCommandParams" and §9 "Dynamic dispatch". A nil error map
// (or one with no entries) means params are valid.
type Validator interface {
	Validate(params commandbroker.CommandParams) map[string]string
}

// AcceptAllValidator is the core's stub implementation: it always
// accepts (spec §9 Open Questions: "Validation is a stub in the
// source... always true").
type AcceptAllValidator struct{}

func (AcceptAllValidator) Validate(commandbroker.CommandParams) map[string]string { return nil }

// Config configures a Commander.
type Config struct {
	CommandsTopic string
	EventsTopic   string

	// SyncTimeout is the default deadline for a synchronous
	// createCommand when the caller does not override it (spec §6
	// "sync-timeout-ms").
	SyncTimeout time.Duration

	IDGenerator commandbroker.IDGenerator
	Validator   Validator
	Logger      logging.Logger
}

// Commander is the public API described in spec §4.5. Construct with
// New over a FanoutHub; the hub is wired to its LogConsumer by the
// caller through fanout.Hub.Start.
type Commander struct {
	commandsTopic string
	eventsTopic   string
	syncTimeout   time.Duration

	producer  logbroker.LogProducer
	hub       *fanout.Hub
	commands  index.IndexReader[commandbroker.Command]
	events    index.IndexReader[commandbroker.Event]
	genID     commandbroker.IDGenerator
	validator Validator
	logger    logging.Logger
}

// New constructs a Commander. producer appends to the log; hub is the
// already-constructed (but not necessarily started) FanoutHub the
// Commander registers waiters and streaming subscriptions against;
// commandIndex and eventIndex back listCommands/listEvents/
// getCommandById/getEventById.
func New(cfg Config, producer logbroker.LogProducer, hub *fanout.Hub, commandIndex index.IndexReader[commandbroker.Command], eventIndex index.IndexReader[commandbroker.Event]) *Commander {
	genID := cfg.IDGenerator
	if genID == nil {
		genID = commandbroker.DefaultIDGenerator
	}
	validator := cfg.Validator
	if validator == nil {
		validator = AcceptAllValidator{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Nop
	}
	return &Commander{
		commandsTopic: cfg.CommandsTopic,
		eventsTopic:   cfg.EventsTopic,
		// cfg.SyncTimeout is taken as configured, including zero: per
		// spec §9, sync-timeout-ms == 0 is a valid deadline meaning
		// "satisfy if the event already arrived, otherwise time out
		// immediately" (see fanout.Hub.Await), not "use some implicit
		// default". Callers that want a non-zero default set it before
		// constructing Config.
		syncTimeout: cfg.SyncTimeout,
		producer:    producer,
		hub:         hub,
		commands:    commandIndex,
		events:      eventIndex,
		genID:       genID,
		validator:   validator,
		logger:      logger,
	}
}

// ValidateCommandParams is the extension point of spec §4.5. A nil
// (or empty) map means params passed validation.
func (c *Commander) ValidateCommandParams(params commandbroker.CommandParams) map[string]string {
	return c.validator.Validate(params)
}

// CreateCommand appends params to the commands log and returns
// immediately once the append is acknowledged (spec §4.5 async mode).
// Append failure is an operational error, per §7 AppendFailure.
func (c *Commander) CreateCommand(ctx context.Context, params commandbroker.CommandParams) (commandbroker.Command, error) {
	id, record, err := c.newCommandRecord(params)
	if err != nil {
		return commandbroker.Command{}, err
	}

	ack, err := c.producer.Append(ctx, record).Await(ctx)
	if err != nil {
		return commandbroker.Command{}, err
	}

	return baseCommand(id, params, ack), nil
}

// CreateCommandSync implements the mandatory register-before-append
// protocol of spec §4.5: the waiter for id is registered on the hub
// before the append is issued, because commands and events are
// independent topics consumed concurrently and an event could arrive
// before Append returns. deadline, if zero, defaults to the
// Commander's configured sync timeout.
func (c *Commander) CreateCommandSync(ctx context.Context, params commandbroker.CommandParams, deadline time.Duration) (commandbroker.Command, error) {
	if deadline <= 0 {
		deadline = c.syncTimeout
	}

	id, record, err := c.newCommandRecord(params)
	if err != nil {
		return commandbroker.Command{}, err
	}

	waiter, err := c.hub.RegisterWaiter(id)
	if err != nil {
		return commandbroker.Command{}, err
	}

	ack, err := c.producer.Append(ctx, record).Await(ctx)
	if err != nil {
		c.hub.UnregisterWaiter(waiter)
		return commandbroker.Command{}, err
	}

	base := baseCommand(id, params, ack)

	event, timedOut, err := c.hub.Await(ctx, waiter, time.Now().Add(deadline))
	if err != nil {
		// Caller cancellation: the append already succeeded, so the
		// command was recorded, but we report the cancellation rather
		// than guessing at completion (spec §5 "Cancellation").
		return commandbroker.Command{}, err
	}
	if timedOut {
		base.Error = timedOutMessage
		return base, nil
	}
	base.Children = []string{event.ID}
	return base, nil
}

func (c *Commander) newCommandRecord(params commandbroker.CommandParams) (string, commandbroker.LogRecord, error) {
	id, err := c.genID()
	if err != nil {
		return "", commandbroker.LogRecord{}, err
	}
	record := commandbroker.LogRecord{
		Topic: c.commandsTopic,
		Key:   id,
		Value: commandbroker.RecordValue{Action: params.Action, Data: params.Data},
	}
	return id, record, nil
}

func baseCommand(id string, params commandbroker.CommandParams, ack commandbroker.AppendAck) commandbroker.Command {
	return commandbroker.Command{
		ID:        id,
		Action:    params.Action,
		Data:      params.Data,
		Timestamp: ack.Timestamp,
		Topic:     ack.Topic,
		Partition: ack.Partition,
		Offset:    ack.Offset,
	}
}

// ListCommands delegates to the command IndexReader (spec §4.5,
// §4.3). limit == 0 means all rows from offset.
func (c *Commander) ListCommands(ctx context.Context, offset, limit int) (index.Page[commandbroker.Command], error) {
	return c.commands.List(ctx, offset, limit)
}

// GetCommandByID delegates to the command IndexReader. A nil error and
// zero-value, ok=false result means not found (spec §7 NotFound: never
// an error).
func (c *Commander) GetCommandByID(ctx context.Context, id string) (commandbroker.Command, bool, error) {
	return c.commands.Get(ctx, id)
}

// ListEvents is symmetric to ListCommands for the event IndexReader.
func (c *Commander) ListEvents(ctx context.Context, offset, limit int) (index.Page[commandbroker.Event], error) {
	return c.events.List(ctx, offset, limit)
}

// GetEventByID is symmetric to GetCommandByID for the event IndexReader.
func (c *Commander) GetEventByID(ctx context.Context, id string) (commandbroker.Event, bool, error) {
	return c.events.Get(ctx, id)
}

// StreamCommands subscribes to the hub's command broadcast group and
// projects each LogRecord into a Command (spec §4.5 "flattens LogRecord
// into the Command shape"). If capacity <= 0, DefaultStreamCapacity is
// used. The returned unsubscribe function must be called to release the
// subscription.
func (c *Commander) StreamCommands(capacity int) (<-chan commandbroker.Command, func(), error) {
	if capacity <= 0 {
		capacity = DefaultStreamCapacity
	}
	records, unsubscribe, err := c.hub.SubscribeCommands(capacity)
	if err != nil {
		return nil, func() {}, err
	}
	out := make(chan commandbroker.Command, capacity)
	go projectRecords(records, out, commandbroker.CommandFromRecord)
	return out, unsubscribe, nil
}

// StreamEvents is symmetric to StreamCommands for the events broadcast
// group; the event projection also carries parent = value.parent.
func (c *Commander) StreamEvents(capacity int) (<-chan commandbroker.Event, func(), error) {
	if capacity <= 0 {
		capacity = DefaultStreamCapacity
	}
	records, unsubscribe, err := c.hub.SubscribeEvents(capacity)
	if err != nil {
		return nil, func() {}, err
	}
	out := make(chan commandbroker.Event, capacity)
	go projectRecords(records, out, commandbroker.EventFromRecord)
	return out, unsubscribe, nil
}

func projectRecords[T any](records <-chan commandbroker.LogRecord, out chan<- T, project func(commandbroker.LogRecord) T) {
	defer close(out)
	for rec := range records {
		out <- project(rec)
	}
}
