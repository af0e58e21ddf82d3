// Package chunk splits ordered sequences into bounded-size groups so callers
// can respect the store's maximum items-per-query limit. This package is the
// only place that limit is encoded.
package chunk

import (
	"context"
	"log/slog"
)

// DefaultBatchSize is the maximum number of items the backing store accepts
// in a single query or write.
const DefaultBatchSize = 250

// ChunkError records a failed chunk during an UpdateChunked traversal.
type ChunkError struct {
	Err        error
	ChunkIndex int
	ChunkSize  int
}

// Result tallies per-chunk outcomes of an UpdateChunked traversal.
type Result struct {
	Errors  []ChunkError
	Success int
	Failed  int
}

// Chunk partitions items into consecutive groups of at most size elements,
// preserving order. Empty input yields no groups. A non-positive size is a
// caller error: it is logged and the whole input is returned as one group
// rather than panicking.
func Chunk[T any](items []T, size int) [][]T {
	if len(items) == 0 {
		return nil
	}
	if size <= 0 {
		slog.Warn("Chunk called with non-positive size, returning single group",
			"size", size,
			"items", len(items))
		return [][]T{items}
	}

	groups := make([][]T, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := start + size
		if end > len(items) {
			end = len(items)
		}
		groups = append(groups, items[start:end])
	}
	return groups
}

// MapChunked applies op to each chunk strictly sequentially, concatenating
// results in order. Chunk n+1 is not started until chunk n's operation
// settles. The first failing chunk aborts the whole traversal; no partial
// result is returned.
func MapChunked[T, R any](ctx context.Context, items []T, size int, op func(context.Context, []T) ([]R, error)) ([]R, error) {
	var out []R
	for _, group := range Chunk(items, size) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		results, err := op(ctx, group)
		if err != nil {
			return nil, err
		}
		out = append(out, results...)
	}
	return out, nil
}

// UpdateChunked applies op to each chunk sequentially with per-chunk failure
// isolation: a failed chunk adds its item count to the failed tally and
// records a ChunkError, then traversal continues. UpdateChunked itself never
// fails; every chunk is attempted.
func UpdateChunked[T any](ctx context.Context, items []T, size int, op func(context.Context, []T) error) Result {
	var res Result
	for i, group := range Chunk(items, size) {
		if err := op(ctx, group); err != nil {
			res.Failed += len(group)
			res.Errors = append(res.Errors, ChunkError{
				ChunkIndex: i,
				ChunkSize:  len(group),
				Err:        err,
			})
			continue
		}
		res.Success += len(group)
	}
	return res
}
