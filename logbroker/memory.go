package logbroker

import (
	"context"
	"sync"
	"time"

	"github.com/corebridge/commandbroker"
)

// Memory is an in-memory LogProducer/LogConsumer pair for tests: Append
// pushes directly onto an internal channel that Drain forwards to its
// sink, so a Commander/Hub wired against Memory behaves like one wired
// against a real broker without needing a server.
type Memory struct {
	mu      sync.Mutex
	records chan commandbroker.LogRecord
	offset  int64
}

// NewMemory constructs a Memory broker with the given channel buffer.
func NewMemory(buffer int) *Memory {
	return &Memory{records: make(chan commandbroker.LogRecord, buffer)}
}

func (m *Memory) Append(ctx context.Context, record commandbroker.LogRecord) *AsyncResult[commandbroker.AppendAck] {
	result := NewAsyncResult[commandbroker.AppendAck]()
	go func() {
		m.mu.Lock()
		m.offset++
		offset := m.offset
		m.mu.Unlock()

		record.Offset = offset
		if record.Timestamp == 0 {
			record.Timestamp = time.Now().UnixMilli()
		}
		select {
		case m.records <- record:
			result.Fulfill(commandbroker.AppendAck{
				Topic:     record.Topic,
				Partition: record.Partition,
				Offset:    offset,
				Timestamp: record.Timestamp,
			}, nil)
		case <-ctx.Done():
			result.Fulfill(commandbroker.AppendAck{}, ctx.Err())
		}
	}()
	return result
}

func (m *Memory) Drain(ctx context.Context, sink chan<- commandbroker.LogRecord) error {
	for {
		select {
		case rec, ok := <-m.records:
			if !ok {
				close(sink)
				return nil
			}
			select {
			case sink <- rec:
			case <-ctx.Done():
				return ctx.Err()
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Inject pushes a record directly, bypassing Append's ack path. Tests
// use this to simulate an event produced by a downstream executor.
func (m *Memory) Inject(record commandbroker.LogRecord) {
	m.mu.Lock()
	m.offset++
	record.Offset = m.offset
	m.mu.Unlock()
	if record.Timestamp == 0 {
		record.Timestamp = time.Now().UnixMilli()
	}
	m.records <- record
}
