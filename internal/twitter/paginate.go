package twitter

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Page is one raw batch from a page fetcher before cross-page deduplication.
type Page[T any] struct {
	Items      []T
	NextCursor string
}

// fetchPage retrieves one page: count is the requested batch size, cursor is
// empty for the first page.
type fetchPage[T any] func(ctx context.Context, count int, cursor string) (Page[T], error)

type paginateOptions struct {
	Target   int           // total items wanted; 0 means one PageSize batch, < 0 means the whole stream
	Cursor   string        // resume point, empty starts from the top
	MaxPages int           // hard page cap; <= 0 means unlimited
	PageSize int
	Delay    time.Duration // pause between page fetches
}

type paginated[T any] struct {
	Items      []T
	NextCursor string
}

// paginate drives repeated page fetches until the target is met or the
// stream ends; a negative Target keeps fetching PageSize batches until
// exhaustion. Items are deduplicated across pages by key, first occurrence
// winning. A page whose cursor is empty, repeats the cursor just used, or
// yields nothing new terminates the walk with an empty resume cursor; hitting
// Target or MaxPages terminates it with the cursor preserved so the caller
// can resume. A failed fetch discards everything and returns the error.
func paginate[T any](ctx context.Context, opts paginateOptions, key func(T) string, fetch fetchPage[T]) (paginated[T], error) {
	all := opts.Target < 0
	target := opts.Target
	if target <= 0 {
		target = opts.PageSize
	}

	items := make([]T, 0, target)
	seen := make(map[string]bool, target)
	cursor := opts.Cursor

	for page := 0; ; page++ {
		if opts.MaxPages > 0 && page >= opts.MaxPages {
			return paginated[T]{Items: items, NextCursor: cursor}, nil
		}
		if page > 0 && opts.Delay > 0 {
			select {
			case <-ctx.Done():
				return paginated[T]{}, ctx.Err()
			case <-time.After(opts.Delay):
			}
		}

		count := opts.PageSize
		if !all {
			if remaining := target - len(items); remaining < count {
				count = remaining
			}
		}

		batch, err := fetch(ctx, count, cursor)
		if err != nil {
			return paginated[T]{}, err
		}

		fresh := 0
		for _, item := range batch.Items {
			k := key(item)
			if seen[k] {
				continue
			}
			seen[k] = true
			items = append(items, item)
			fresh++
			if !all && len(items) >= target {
				return paginated[T]{Items: items, NextCursor: batch.NextCursor}, nil
			}
		}

		// An exhausted or stalled stream: nothing left to resume from.
		if batch.NextCursor == "" || batch.NextCursor == cursor || len(batch.Items) == 0 || fresh == 0 {
			return paginated[T]{Items: items}, nil
		}
		cursor = batch.NextCursor
	}
}

// withThrottleRetry wraps a page fetcher with retry-on-throttle: 429s sleep
// out the server-requested delay, 5xxs back off exponentially, everything
// else fails through immediately.
func withThrottleRetry[T any](fetch fetchPage[T]) fetchPage[T] {
	return func(ctx context.Context, count int, cursor string) (Page[T], error) {
		var page Page[T]
		operation := func() error {
			var err error
			page, err = fetch(ctx, count, cursor)
			if err == nil {
				return nil
			}
			if retryable, wait := throttleDelay(err); retryable {
				if wait > 0 {
					select {
					case <-ctx.Done():
						return backoff.Permanent(ctx.Err())
					case <-time.After(wait):
					}
				}
				return err
			}
			return backoff.Permanent(err)
		}

		policy := backoff.NewExponentialBackOff()
		policy.InitialInterval = 500 * time.Millisecond
		policy.MaxInterval = 8 * time.Second
		err := backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(policy, 4), ctx))
		return page, err
	}
}

// throttleDelay classifies an error for the retry wrapper: rate limits are
// retryable after the server's requested delay, server-side 5xxs are
// retryable on the backoff schedule.
func throttleDelay(err error) (retryable bool, wait time.Duration) {
	var rle *RateLimitError
	if errors.As(err, &rle) {
		return true, rle.RetryAfter
	}
	var se *StatusError
	if errors.As(err, &se) && se.StatusCode >= 500 {
		return true, 0
	}
	return false, 0
}
