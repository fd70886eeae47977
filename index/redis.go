package index

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisConfig configures the Redis-backed IndexReader: a sorted set
// keyed by log offset for ordering, and a hash mapping id to the
// marshaled record for point lookup.
type RedisConfig struct {
	Addr       string
	Password   string
	DB         int
	SetKey     string // sorted set of ids, scored by log offset
	RecordsKey string // hash of id -> JSON record
}

// Redis is an IndexReader backed by Redis. It is written by the
// out-of-band indexer process described in spec §4.6 ("populated
// out-of-band by a separate indexer") via Put; this module's core only
// reads it.
type Redis[T any] struct {
	client *redis.Client
	cfg    RedisConfig
}

// NewRedis constructs a Redis-backed IndexReader over an already
// configured client.
func NewRedis[T any](client *redis.Client, cfg RedisConfig) *Redis[T] {
	return &Redis[T]{client: client, cfg: cfg}
}

// Put indexes value under id at the given log offset. Called by the
// indexer process, not by the core's read path.
func (r *Redis[T]) Put(ctx context.Context, id string, offset int64, value T) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("index: marshal: %w", err)
	}
	pipe := r.client.TxPipeline()
	pipe.ZAdd(ctx, r.cfg.SetKey, redis.Z{Score: float64(offset), Member: id})
	pipe.HSet(ctx, r.cfg.RecordsKey, id, data)
	_, err = pipe.Exec(ctx)
	return err
}

func (r *Redis[T]) List(ctx context.Context, offset, limit int) (Page[T], error) {
	total64, err := r.client.ZCard(ctx, r.cfg.SetKey).Result()
	if err != nil {
		return Page[T]{}, fmt.Errorf("index: zcard: %w", err)
	}
	total := int(total64)

	stop := int64(-1)
	if limit > 0 {
		stop = int64(offset + limit - 1)
	}
	ids, err := r.client.ZRange(ctx, r.cfg.SetKey, int64(offset), stop).Result()
	if err != nil {
		return Page[T]{}, fmt.Errorf("index: zrange: %w", err)
	}

	items := make([]T, 0, len(ids))
	if len(ids) > 0 {
		raws, err := r.client.HMGet(ctx, r.cfg.RecordsKey, ids...).Result()
		if err != nil {
			return Page[T]{}, fmt.Errorf("index: hmget: %w", err)
		}
		for _, raw := range raws {
			s, ok := raw.(string)
			if !ok {
				continue
			}
			var v T
			if err := json.Unmarshal([]byte(s), &v); err != nil {
				return Page[T]{}, fmt.Errorf("index: unmarshal: %w", err)
			}
			items = append(items, v)
		}
	}

	return Page[T]{Items: items, Offset: offset, Limit: limit, Total: total}, nil
}

func (r *Redis[T]) Get(ctx context.Context, id string) (T, bool, error) {
	var zero T
	raw, err := r.client.HGet(ctx, r.cfg.RecordsKey, id).Result()
	if err == redis.Nil {
		return zero, false, nil
	}
	if err != nil {
		return zero, false, fmt.Errorf("index: hget: %w", err)
	}
	var v T
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return zero, false, fmt.Errorf("index: unmarshal: %w", err)
	}
	return v, true, nil
}
