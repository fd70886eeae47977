// Package index defines the read-side adapter contract (spec §4.3,
// §4.6 "Index") and ships a Redis-backed implementation plus an
// in-memory fake for tests.
package index

import "context"

// Page is the paginated listing response shape (spec §6 "Page response
// shape"). Limit == 0 means "all from offset" was requested.
type Page[T any] struct {
	Items  []T
	Offset int
	Limit  int
	Total  int
}

// IndexReader is the random-access read side for one entity table
// (commands or events): paginated listing ordered ascending by log
// offset, and point lookup by id (spec §4.3).
type IndexReader[T any] interface {
	List(ctx context.Context, offset, limit int) (Page[T], error)
	Get(ctx context.Context, id string) (T, bool, error)
}
