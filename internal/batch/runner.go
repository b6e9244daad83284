// Package batch runs lists of independent work items in fixed-size
// concurrent chunks with per-item retries and progress reporting. It is the
// execution core behind the bulk discovery and analysis pipeline phases.
package batch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Status represents the lifecycle state of one item within a run
type Status string

const (
	StatusPending Status = "pending"
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Item is one unit of work. The ID must be unique within a run; the input
// payload is opaque to the runner.
type Item[T any] struct {
	ID    string
	Input T
}

// Result is the terminal outcome for one item
type Result[R any] struct {
	Value    R
	Err      error
	Attempts int // Operation invocations consumed (0 if the item never started)
}

// Failed reports whether the item terminated with an error
func (r Result[R]) Failed() bool {
	return r.Err != nil
}

// Event is a progress notification for one item. Events for a given item
// fire in order: pending, then exactly one of success/error. Events for
// different items may interleave, and the callback may be invoked from
// concurrently running goroutines.
type Event struct {
	ItemID  string
	Phase   string
	Status  Status
	Message string
}

// ProgressFunc receives progress events during a run
type ProgressFunc func(Event)

// Operation executes one item's work. It must be safe to retry: the runner
// does not deduplicate side effects across attempts.
type Operation[T, R any] func(ctx context.Context, item Item[T]) (R, error)

// Options controls a single run
type Options struct {
	Phase      string        // Phase name carried on every event
	BatchSize  int           // Maximum items in flight at any instant
	BatchPause time.Duration // Pause between consecutive chunks
	Retry      RetryPolicy
	OnProgress ProgressFunc
}

// SetDefaults sets default values for run options
func (o *Options) SetDefaults() {
	if o.Phase == "" {
		o.Phase = "batch"
	}
	if o.BatchSize <= 0 {
		o.BatchSize = 5
	}
	if o.BatchPause == 0 {
		o.BatchPause = 1 * time.Second
	}
	o.Retry.SetDefaults()
}

// Run executes all items and returns a result map keyed by item ID. Every
// submitted item yields exactly one terminal entry; item failures never abort
// the run. Chunks execute strictly sequentially, items within a chunk
// concurrently. Run only returns a non-nil error when the context is
// canceled, in which case items that never reached a terminal state carry
// the context error as their result.
func Run[T, R any](ctx context.Context, items []Item[T], op Operation[T, R], opts Options) (map[string]Result[R], error) {
	opts.SetDefaults()

	results := make(map[string]Result[R], len(items))
	if len(items) == 0 {
		return results, nil
	}

	slog.Debug("Starting batch run",
		"phase", opts.Phase,
		"items", len(items),
		"batch_size", opts.BatchSize,
		"max_attempts", opts.Retry.MaxAttempts(),
	)

	var mu sync.Mutex

	for start := 0; start < len(items); start += opts.BatchSize {
		if err := ctx.Err(); err != nil {
			cancelRemaining(items[start:], results, err, opts)
			return results, err
		}

		end := start + opts.BatchSize
		if end > len(items) {
			end = len(items)
		}
		chunk := items[start:end]

		// All pending events fire before any item in the chunk starts
		for _, item := range chunk {
			emit(opts, Event{ItemID: item.ID, Phase: opts.Phase, Status: StatusPending})
		}

		var wg sync.WaitGroup
		for _, item := range chunk {
			wg.Add(1)
			go func(item Item[T]) {
				defer wg.Done()

				result := runItem(ctx, item, op, opts)

				mu.Lock()
				results[item.ID] = result
				mu.Unlock()

				if result.Failed() {
					emit(opts, Event{ItemID: item.ID, Phase: opts.Phase, Status: StatusError, Message: errorMessage(result.Err)})
				} else {
					emit(opts, Event{ItemID: item.ID, Phase: opts.Phase, Status: StatusSuccess})
				}
			}(item)
		}
		wg.Wait()

		// Pause between chunks, not after the last one
		if end < len(items) {
			select {
			case <-time.After(opts.BatchPause):
			case <-ctx.Done():
				cancelRemaining(items[end:], results, ctx.Err(), opts)
				return results, ctx.Err()
			}
		}
	}

	slog.Debug("Batch run completed", "phase", opts.Phase, "items", len(items))

	return results, nil
}

// runItem drives one item through its retry loop
func runItem[T, R any](ctx context.Context, item Item[T], op Operation[T, R], opts Options) Result[R] {
	var lastErr error

	for attempt := 1; attempt <= opts.Retry.MaxAttempts(); attempt++ {
		if err := ctx.Err(); err != nil {
			return Result[R]{Err: err, Attempts: attempt - 1}
		}

		value, err := attemptOperation(ctx, item, op)
		if err == nil {
			return Result[R]{Value: value, Attempts: attempt}
		}
		lastErr = err

		if attempt < opts.Retry.MaxAttempts() {
			delay := opts.Retry.Delay(attempt)
			slog.Debug("Item attempt failed, retrying",
				"phase", opts.Phase,
				"item_id", item.ID,
				"attempt", attempt,
				"next_retry_ms", delay.Milliseconds(),
				"error", err.Error(),
			)

			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return Result[R]{Err: ctx.Err(), Attempts: attempt}
			}
		}
	}

	return Result[R]{Err: lastErr, Attempts: opts.Retry.MaxAttempts()}
}

// attemptOperation invokes the operation once, converting a panic into a
// failed attempt so one misbehaving item cannot take down the whole run
func attemptOperation[T, R any](ctx context.Context, item Item[T], op Operation[T, R]) (value R, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("operation panicked: %v", r)
		}
	}()

	return op(ctx, item)
}

// cancelRemaining records a terminal error entry for every item that has not
// started, preserving the one-result-per-item invariant on cancellation
func cancelRemaining[T, R any](remaining []Item[T], results map[string]Result[R], cause error, opts Options) {
	for _, item := range remaining {
		if _, done := results[item.ID]; done {
			continue
		}
		results[item.ID] = Result[R]{Err: cause}
		emit(opts, Event{ItemID: item.ID, Phase: opts.Phase, Status: StatusError, Message: errorMessage(cause)})
	}
}

func emit(opts Options, event Event) {
	if opts.OnProgress != nil {
		opts.OnProgress(event)
	}
}

func errorMessage(err error) string {
	if err == nil || err.Error() == "" {
		return "operation failed"
	}
	return err.Error()
}
