package pagination

import (
	"context"
	"fmt"
)

// DefaultPageSize matches the row cap the hosted backend applies to a single select.
const DefaultPageSize = 1000

// PageFunc returns at most limit rows starting at offset.
type PageFunc[T any] func(ctx context.Context, offset, limit int) ([]T, error)

// FetchAll keeps requesting pages until one comes back shorter than pageSize.
func FetchAll[T any](ctx context.Context, pageSize int, fetch PageFunc[T]) ([]T, error) {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	var out []T
	for offset := 0; ; offset += pageSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page, err := fetch(ctx, offset, pageSize)
		if err != nil {
			return nil, fmt.Errorf("fetch page at offset %d: %w", offset, err)
		}
		out = append(out, page...)
		if len(page) < pageSize {
			return out, nil
		}
	}
}
