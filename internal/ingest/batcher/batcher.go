// Package batcher collapses records on their natural key and submits them in
// fixed-size sequential batches.
package batcher

import (
	"context"
	"fmt"
	"time"
)

const DefaultSize = 100

// Keyed is implemented by every record kind.
type Keyed interface {
	NaturalKey() string
}

// Dedupe keeps one record per natural key. A later record replaces an earlier
// one but the survivor stays at the position where the key first appeared.
func Dedupe[T Keyed](records []T) []T {
	index := make(map[string]int, len(records))
	out := make([]T, 0, len(records))
	for _, r := range records {
		key := r.NaturalKey()
		if i, ok := index[key]; ok {
			out[i] = r
			continue
		}
		index[key] = len(out)
		out = append(out, r)
	}
	return out
}

// BatchError reports the batch that stopped the run. Batches before Offset
// are already committed.
type BatchError struct {
	Offset int
	Size   int
	Err    error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("batch at offset %d (size %d): %v", e.Offset, e.Size, e.Err)
}

func (e *BatchError) Unwrap() error { return e.Err }

type Batcher[T any] struct {
	Size int
	// Submit writes one batch. It is called strictly in order, never concurrently.
	Submit func(ctx context.Context, batch []T) error
	// Progress receives the cumulative count after each committed batch.
	Progress func(done, total int)
	// Observe sees every attempted batch, failed ones included.
	Observe func(size int, took time.Duration, err error)
}

// Run submits records and returns the number of committed batches. The first
// failure aborts the run without retry.
func (b Batcher[T]) Run(ctx context.Context, records []T) (int, error) {
	size := b.Size
	if size <= 0 {
		size = DefaultSize
	}

	total := len(records)
	committed := 0
	for offset := 0; offset < total; offset += size {
		if err := ctx.Err(); err != nil {
			return committed, &BatchError{Offset: offset, Size: 0, Err: err}
		}

		end := offset + size
		if end > total {
			end = total
		}
		batch := records[offset:end]

		start := time.Now()
		err := b.Submit(ctx, batch)
		if b.Observe != nil {
			b.Observe(len(batch), time.Since(start), err)
		}
		if err != nil {
			return committed, &BatchError{Offset: offset, Size: len(batch), Err: err}
		}

		committed++
		if b.Progress != nil {
			b.Progress(end, total)
		}
	}
	return committed, nil
}
