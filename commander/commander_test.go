package commander_test

import (
	"context"
	"testing"
	"time"

	"github.com/corebridge/commandbroker"
	"github.com/corebridge/commandbroker/commander"
	"github.com/corebridge/commandbroker/fanout"
	"github.com/corebridge/commandbroker/index"
	"github.com/corebridge/commandbroker/logbroker"
)

const (
	commandsTopic = "commands"
	eventsTopic   = "events"
)

func newTestCommander(t *testing.T) (*commander.Commander, *logbroker.Memory, func()) {
	t.Helper()
	broker := logbroker.NewMemory(16)
	hub := fanout.New(fanout.Config{CommandsTopic: commandsTopic, EventsTopic: eventsTopic})

	ctx, cancel := context.WithCancel(context.Background())
	if err := hub.Start(ctx, broker); err != nil {
		t.Fatalf("hub.Start: %v", err)
	}

	cmd := commander.New(commander.Config{
		CommandsTopic: commandsTopic,
		EventsTopic:   eventsTopic,
		SyncTimeout:   50 * time.Millisecond,
	}, broker, hub, index.NewMemory[commandbroker.Command](), index.NewMemory[commandbroker.Event]())

	return cmd, broker, cancel
}

func TestCreateCommandAsyncHappyPath(t *testing.T) {
	cmd, _, cancel := newTestCommander(t)
	defer cancel()

	got, err := cmd.CreateCommand(context.Background(), commandbroker.CommandParams{
		Action: "ship",
		Data:   map[string]any{"sku": "x"},
	})
	if err != nil {
		t.Fatalf("CreateCommand: %v", err)
	}
	if got.Action != "ship" {
		t.Fatalf("unexpected action: %s", got.Action)
	}
	if got.ID == "" {
		t.Fatal("expected nonempty id")
	}
	if got.Offset < 0 {
		t.Fatalf("expected offset >= 0, got %d", got.Offset)
	}
}

func TestCreateCommandSyncEventArrives(t *testing.T) {
	cmd, broker, cancel := newTestCommander(t)
	defer cancel()

	stream, unsubscribe, err := cmd.StreamCommands(4)
	if err != nil {
		t.Fatalf("StreamCommands: %v", err)
	}
	defer unsubscribe()

	resultCh := make(chan commandbroker.Command, 1)
	errCh := make(chan error, 1)
	go func() {
		got, err := cmd.CreateCommandSync(context.Background(), commandbroker.CommandParams{Action: "ship"}, 5*time.Second)
		resultCh <- got
		errCh <- err
	}()

	var submitted commandbroker.Command
	select {
	case submitted = <-stream:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for the streamed command")
	}

	broker.Inject(commandbroker.LogRecord{
		Topic: eventsTopic,
		Key:   "evt-1",
		Value: commandbroker.RecordValue{Action: "shipped", Parent: submitted.ID},
	})

	got := <-resultCh
	if err := <-errCh; err != nil {
		t.Fatalf("CreateCommandSync: %v", err)
	}
	if got.Error != "" {
		t.Fatalf("expected no error field, got %q", got.Error)
	}
	if len(got.Children) != 1 || got.Children[0] != "evt-1" {
		t.Fatalf("unexpected children: %v", got.Children)
	}
}

func TestCreateCommandSyncTimesOut(t *testing.T) {
	cmd, _, cancel := newTestCommander(t)
	defer cancel()

	got, err := cmd.CreateCommandSync(context.Background(), commandbroker.CommandParams{Action: "ship"}, 30*time.Millisecond)
	if err != nil {
		t.Fatalf("CreateCommandSync: %v", err)
	}
	if got.Error != "Timed out waiting for completion event." {
		t.Fatalf("expected timeout error, got %q", got.Error)
	}
	if got.Children != nil {
		t.Fatalf("expected no children, got %v", got.Children)
	}
}

func TestCreateCommandSyncZeroDeadlineTimesOutImmediately(t *testing.T) {
	cmd, _, cancel := newTestCommander(t)
	defer cancel()

	// A zero per-call deadline falls back to the Commander's configured
	// SyncTimeout (50ms in newTestCommander).
	start := time.Now()
	got, err := cmd.CreateCommandSync(context.Background(), commandbroker.CommandParams{Action: "ship"}, 0)
	if err != nil {
		t.Fatalf("CreateCommandSync: %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("expected near-immediate timeout, took %s", elapsed)
	}
	if got.Error != "Timed out waiting for completion event." {
		t.Fatalf("expected timeout error, got %q", got.Error)
	}
}

func TestCreateCommandSyncConfiguredZeroTimeoutSatisfiesAlreadyBufferedEvent(t *testing.T) {
	broker := logbroker.NewMemory(16)
	hub := fanout.New(fanout.Config{CommandsTopic: commandsTopic, EventsTopic: eventsTopic})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := hub.Start(ctx, broker); err != nil {
		t.Fatalf("hub.Start: %v", err)
	}

	// A configured sync-timeout of zero (spec §9) must still satisfy a
	// waiter whose completion event beat the Await call, rather than
	// racing an immediately-firing timer.
	cmd := commander.New(commander.Config{
		CommandsTopic: commandsTopic,
		EventsTopic:   eventsTopic,
		SyncTimeout:   0,
	}, broker, hub, index.NewMemory[commandbroker.Command](), index.NewMemory[commandbroker.Event]())

	stream, unsubscribe, err := cmd.StreamCommands(4)
	if err != nil {
		t.Fatalf("StreamCommands: %v", err)
	}
	defer unsubscribe()

	resultCh := make(chan commandbroker.Command, 1)
	errCh := make(chan error, 1)
	go func() {
		got, err := cmd.CreateCommandSync(context.Background(), commandbroker.CommandParams{Action: "ship"}, 0)
		resultCh <- got
		errCh <- err
	}()

	var submitted commandbroker.Command
	select {
	case submitted = <-stream:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for the streamed command")
	}

	broker.Inject(commandbroker.LogRecord{
		Topic: eventsTopic,
		Key:   "evt-1",
		Value: commandbroker.RecordValue{Action: "shipped", Parent: submitted.ID},
	})

	got := <-resultCh
	if err := <-errCh; err != nil {
		t.Fatalf("CreateCommandSync: %v", err)
	}
	// Either outcome is a plausible race at the wire level (the event
	// may not have reached the hub before the zero-deadline timer
	// fires), but when it does win, it must be reported as such rather
	// than dropped.
	if got.Error == "" && (len(got.Children) != 1 || got.Children[0] != "evt-1") {
		t.Fatalf("unexpected result: %+v", got)
	}
}

func TestValidateCommandParamsDefaultAcceptsAll(t *testing.T) {
	cmd, _, cancel := newTestCommander(t)
	defer cancel()

	if errs := cmd.ValidateCommandParams(commandbroker.CommandParams{Action: "anything"}); errs != nil {
		t.Fatalf("expected nil errors, got %v", errs)
	}
}
