// Package pagination drives offset-based paging against remote query APIs.
package pagination

import (
	"context"
	"fmt"
	"iter"
	"time"

	"github.com/custodia-labs/ledgersync/internal/logger"
)

const (
	// DefaultPageSize is the number of records requested per page.
	DefaultPageSize = 500

	// DefaultMaxPages caps the pages fetched per collection in one run.
	DefaultMaxPages = 10

	// DefaultDelay is the pause between consecutive page requests.
	DefaultDelay = 100 * time.Millisecond
)

// Page is one response from a paged source. Received is the number of rows
// the source returned before any were filtered out of Items; paging decisions
// use it so a filtered row never looks like the end of the collection.
type Page[T any] struct {
	Items    []T
	Received int
}

func (p Page[T]) received() int {
	return max(p.Received, len(p.Items))
}

// PageFunc fetches up to size records starting at the 1-based offset start.
type PageFunc[T any] func(ctx context.Context, start, size int) (Page[T], error)

// Options controls a paginated fetch.
type Options struct {
	// PageSize is the requested page size. Zero uses DefaultPageSize.
	PageSize int
	// MaxPages stops the fetch after this many requests. Zero uses DefaultMaxPages.
	MaxPages int
	// Delay is the pause between requests. Zero means no pause.
	Delay time.Duration
	// Label names the collection in log output.
	Label string
}

func (o Options) normalise() Options {
	if o.PageSize <= 0 {
		o.PageSize = DefaultPageSize
	}
	if o.MaxPages <= 0 {
		o.MaxPages = DefaultMaxPages
	}
	if o.Delay < 0 {
		o.Delay = 0
	}
	return o
}

// Pages yields one page at a time, starting at offset 1. Iteration stops after
// an empty or short page, at the MaxPages ceiling, or on the first error,
// which is yielded with a nil page. Page length is judged on Received, and a
// page whose rows were all filtered out is not yielded.
func Pages[T any](ctx context.Context, fetch PageFunc[T], opts Options) iter.Seq2[[]T, error] {
	opts = opts.normalise()

	return func(yield func([]T, error) bool) {
		start := 1
		for page := 1; ; page++ {
			p, err := fetch(ctx, start, opts.PageSize)
			if err != nil {
				yield(nil, fmt.Errorf("fetch page %d (start %d): %w", page, start, err))
				return
			}
			received := p.received()
			if received == 0 {
				return
			}
			if len(p.Items) > 0 && !yield(p.Items, nil) {
				return
			}
			if received < opts.PageSize {
				return
			}
			if page >= opts.MaxPages {
				logger.Warn("%s: stopped after %d pages (%d records); more may remain",
					opts.Label, page, page*opts.PageSize)
				return
			}

			start += received

			if err := sleep(ctx, opts.Delay); err != nil {
				yield(nil, err)
				return
			}
		}
	}
}

// FetchAll collects every page into a single slice. On error the records
// already fetched are discarded.
func FetchAll[T any](ctx context.Context, fetch PageFunc[T], opts Options) ([]T, error) {
	var all []T
	for items, err := range Pages(ctx, fetch, opts) {
		if err != nil {
			return nil, err
		}
		all = append(all, items...)
	}
	return all, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
