package logbroker_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"

	"github.com/corebridge/commandbroker"
	"github.com/corebridge/commandbroker/logbroker"
)

func newTestRedis(t *testing.T) (*goredis.Client, func()) {
	t.Helper()
	srv, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run: %v", err)
	}
	client := goredis.NewClient(&goredis.Options{Addr: srv.Addr()})
	return client, srv.Close
}

func TestRedisAppendAndDrain(t *testing.T) {
	client, closeSrv := newTestRedis(t)
	defer closeSrv()

	broker := logbroker.NewRedis(client, logbroker.RedisConfig{
		CommandsTopic: "commands",
		EventsTopic:   "events",
		BlockFor:      50 * time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sink := make(chan commandbroker.LogRecord, 4)
	go broker.Drain(ctx, sink)

	ack, err := broker.Append(ctx, commandbroker.LogRecord{
		Topic: "commands",
		Key:   "cmd-1",
		Value: commandbroker.RecordValue{Action: "ship", Data: map[string]any{"sku": "x"}},
	}).Await(ctx)
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if ack.Topic != "commands" {
		t.Fatalf("unexpected ack topic: %s", ack.Topic)
	}

	select {
	case rec := <-sink:
		if rec.Key != "cmd-1" || rec.Value.Action != "ship" {
			t.Fatalf("unexpected record: %+v", rec)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for drained record")
	}
}
