package logbroker

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/corebridge/commandbroker"
)

// RedisConfig configures the Redis Streams adapter (spec §4.6
// "Broker"). Streams double as both the ordered log and the consumer
// group's durable cursor.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int

	CommandsTopic string
	EventsTopic   string

	ConsumerGroup string
	ConsumerName  string

	// ReadCount bounds how many entries a single XREADGROUP call
	// fetches per stream. Zero uses a small default.
	ReadCount int64
	// BlockFor is how long a Drain iteration blocks waiting for new
	// entries before polling again.
	BlockFor time.Duration
}

func (c RedisConfig) withDefaults() RedisConfig {
	if c.ConsumerGroup == "" {
		c.ConsumerGroup = "commandbroker"
	}
	if c.ConsumerName == "" {
		c.ConsumerName = "commandbroker-0"
	}
	if c.ReadCount <= 0 {
		c.ReadCount = 64
	}
	if c.BlockFor <= 0 {
		c.BlockFor = 5 * time.Second
	}
	return c
}

// Redis is a LogProducer and LogConsumer backed by Redis Streams
// (XADD for append, XREADGROUP for at-least-once delivery).
type Redis struct {
	client *redis.Client
	cfg    RedisConfig
}

// NewRedis constructs a Redis-backed producer/consumer. It does not
// contact the server; client is expected to already be configured
// (e.g. via redis.NewClient, or a miniredis-backed client in tests).
func NewRedis(client *redis.Client, cfg RedisConfig) *Redis {
	return &Redis{client: client, cfg: cfg.withDefaults()}
}

// Append implements LogProducer by XADD-ing record to its topic
// stream. The append itself runs in a goroutine so Append returns
// immediately with an AsyncResult, matching the adapter contract's
// async ack (spec §4.1).
func (r *Redis) Append(ctx context.Context, record commandbroker.LogRecord) *AsyncResult[commandbroker.AppendAck] {
	result := NewAsyncResult[commandbroker.AppendAck]()
	go func() {
		data, err := json.Marshal(record.Value.Data)
		if err != nil {
			result.Fulfill(commandbroker.AppendAck{}, fmt.Errorf("logbroker: marshal data: %w", err))
			return
		}
		values := map[string]any{
			"key":    record.Key,
			"action": record.Value.Action,
			"data":   string(data),
			"parent": record.Value.Parent,
		}
		id, err := r.client.XAdd(ctx, &redis.XAddArgs{
			Stream: record.Topic,
			Values: values,
		}).Result()
		if err != nil {
			result.Fulfill(commandbroker.AppendAck{}, err)
			return
		}
		ts, seq, parseErr := parseStreamID(id)
		if parseErr != nil {
			result.Fulfill(commandbroker.AppendAck{}, parseErr)
			return
		}
		result.Fulfill(commandbroker.AppendAck{
			Topic:     record.Topic,
			Partition: 0,
			Offset:    seq,
			Timestamp: ts,
		}, nil)
	}()
	return result
}

// Drain implements LogConsumer by reading both topics via a shared
// consumer group and pushing decoded records onto sink in the order
// Redis returns them, acking each entry after it is handed off.
func (r *Redis) Drain(ctx context.Context, sink chan<- commandbroker.LogRecord) error {
	topics := []string{r.cfg.CommandsTopic, r.cfg.EventsTopic}
	for _, topic := range topics {
		err := r.client.XGroupCreateMkStream(ctx, topic, r.cfg.ConsumerGroup, "0").Err()
		if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
			return fmt.Errorf("logbroker: create group for %s: %w", topic, err)
		}
	}

	streams := make([]string, 0, len(topics)*2)
	for _, topic := range topics {
		streams = append(streams, topic)
	}
	for range topics {
		streams = append(streams, ">")
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		res, err := r.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    r.cfg.ConsumerGroup,
			Consumer: r.cfg.ConsumerName,
			Streams:  streams,
			Count:    r.cfg.ReadCount,
			Block:    r.cfg.BlockFor,
		}).Result()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("logbroker: xreadgroup: %w", err)
		}

		for _, stream := range res {
			for _, msg := range stream.Messages {
				rec, decodeErr := decodeStreamMessage(stream.Stream, msg)
				if decodeErr != nil {
					continue
				}
				select {
				case sink <- rec:
				case <-ctx.Done():
					return ctx.Err()
				}
				r.client.XAck(ctx, stream.Stream, r.cfg.ConsumerGroup, msg.ID)
			}
		}
	}
}

func decodeStreamMessage(topic string, msg redis.XMessage) (commandbroker.LogRecord, error) {
	ts, seq, err := parseStreamID(msg.ID)
	if err != nil {
		return commandbroker.LogRecord{}, err
	}
	key, _ := msg.Values["key"].(string)
	action, _ := msg.Values["action"].(string)
	parent, _ := msg.Values["parent"].(string)
	var data any
	if raw, ok := msg.Values["data"].(string); ok && raw != "" {
		if err := json.Unmarshal([]byte(raw), &data); err != nil {
			return commandbroker.LogRecord{}, err
		}
	}
	return commandbroker.LogRecord{
		Topic:     topic,
		Key:       key,
		Value:     commandbroker.RecordValue{Action: action, Data: data, Parent: parent},
		Partition: 0,
		Offset:    seq,
		Timestamp: ts,
	}, nil
}

// parseStreamID splits a Redis stream entry ID "<ms>-<seq>" into its
// millisecond timestamp and an offset computed as ms*1000 + seq. The
// offset is strictly increasing within a stream as long as fewer than
// 1000 entries share one millisecond; an entry with seq >= 1000 gets an
// offset equal to or greater than that of later entries.
func parseStreamID(id string) (timestampMS int64, offset int64, err error) {
	parts := strings.SplitN(id, "-", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("logbroker: malformed stream id %q", id)
	}
	ms, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("logbroker: malformed stream id %q: %w", id, err)
	}
	seq, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("logbroker: malformed stream id %q: %w", id, err)
	}
	return ms, ms*1000 + seq, nil
}
