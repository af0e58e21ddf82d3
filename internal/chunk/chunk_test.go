package chunk

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunk(t *testing.T) {
	tests := []struct {
		name      string
		items     []int
		size      int
		wantSizes []int
	}{
		{
			name:      "even split",
			items:     []int{1, 2, 3, 4, 5, 6},
			size:      2,
			wantSizes: []int{2, 2, 2},
		},
		{
			name:      "uneven last chunk",
			items:     []int{1, 2, 3, 4, 5},
			size:      2,
			wantSizes: []int{2, 2, 1},
		},
		{
			name:      "size larger than input",
			items:     []int{1, 2, 3},
			size:      10,
			wantSizes: []int{3},
		},
		{
			name:      "empty input",
			items:     nil,
			size:      5,
			wantSizes: nil,
		},
		{
			name:      "zero size treated as no chunking",
			items:     []int{1, 2, 3},
			size:      0,
			wantSizes: []int{3},
		},
		{
			name:      "negative size treated as no chunking",
			items:     []int{1, 2, 3},
			size:      -4,
			wantSizes: []int{3},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			groups := Chunk(tt.items, tt.size)

			require.Len(t, groups, len(tt.wantSizes))

			// Concatenating the chunks must reproduce the input exactly.
			var flat []int
			for i, g := range groups {
				assert.Len(t, g, tt.wantSizes[i])
				flat = append(flat, g...)
			}
			assert.Equal(t, tt.items, flat)
		})
	}
}

func TestChunkCompleteness(t *testing.T) {
	// Every chunk except possibly the last has exactly n elements.
	for _, n := range []int{1, 3, 7, 250} {
		items := make([]int, 1000)
		for i := range items {
			items[i] = i
		}

		groups := Chunk(items, n)
		var flat []int
		for i, g := range groups {
			if i < len(groups)-1 {
				require.Len(t, g, n, "chunk %d with size %d", i, n)
			}
			flat = append(flat, g...)
		}
		require.Equal(t, items, flat, "size %d", n)
	}
}

func TestMapChunked(t *testing.T) {
	ctx := context.Background()
	items := make([]string, 1000)
	for i := range items {
		items[i] = fmt.Sprintf("tx-%d", i)
	}

	var calls int
	got, err := MapChunked(ctx, items, 250, func(_ context.Context, group []string) ([]string, error) {
		calls++
		return group, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 4, calls)
	require.Len(t, got, 1000)
	assert.Equal(t, "tx-0", got[0])
	assert.Equal(t, "tx-999", got[999])
}

func TestMapChunkedAbortsOnError(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("store unavailable")

	var calls int
	got, err := MapChunked(ctx, []int{1, 2, 3, 4}, 2, func(_ context.Context, group []int) ([]int, error) {
		calls++
		if calls == 2 {
			return nil, boom
		}
		return group, nil
	})

	require.ErrorIs(t, err, boom)
	assert.Nil(t, got, "no partial result on failure")
	assert.Equal(t, 2, calls, "later chunks must not run")
}

func TestUpdateChunkedFailureIsolation(t *testing.T) {
	ctx := context.Background()

	// 5 chunks of size 3 (last chunk has 2 items); chunks 1 and 3 fail.
	items := make([]int, 14)
	failing := map[int]bool{1: true, 3: true}

	var call int
	res := UpdateChunked(ctx, items, 3, func(_ context.Context, group []int) error {
		defer func() { call++ }()
		if failing[call] {
			return fmt.Errorf("chunk %d write failed", call)
		}
		return nil
	})

	assert.Equal(t, 8, res.Success)
	assert.Equal(t, 6, res.Failed)
	require.Len(t, res.Errors, 2)
	assert.Equal(t, 1, res.Errors[0].ChunkIndex)
	assert.Equal(t, 3, res.Errors[0].ChunkSize)
	assert.Equal(t, 3, res.Errors[1].ChunkIndex)
	assert.Equal(t, 3, res.Errors[1].ChunkSize)
}

func TestUpdateChunkedNeverAborts(t *testing.T) {
	ctx := context.Background()
	items := make([]int, 10)

	var calls int
	res := UpdateChunked(ctx, items, 2, func(_ context.Context, _ []int) error {
		calls++
		return errors.New("always fails")
	})

	assert.Equal(t, 5, calls, "every chunk attempted")
	assert.Equal(t, 0, res.Success)
	assert.Equal(t, 10, res.Failed)
	assert.Len(t, res.Errors, 5)
}
