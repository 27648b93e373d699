package retry

import (
	"context"
	"time"
)

// Options configure retry behavior.
type Options struct {
	maxRetries int
	baseWait   time.Duration
	maxWait    time.Duration
}

// Option modifies retry options.
type Option func(*Options)

// WithMaxRetries sets the number of retries after the initial attempt.
func WithMaxRetries(n int) Option {
	return func(o *Options) { o.maxRetries = n }
}

// WithBaseWait sets the wait before the first retry. Subsequent waits
// double, capped by WithMaxWait.
func WithBaseWait(d time.Duration) Option {
	return func(o *Options) { o.baseWait = d }
}

// WithMaxWait caps the wait between retries.
func WithMaxWait(d time.Duration) Option {
	return func(o *Options) { o.maxWait = d }
}

// Do runs fn, retrying recoverable errors with exponential backoff. The
// function always runs at least once. Non-recoverable errors and context
// cancellation stop retrying immediately; the last error is returned.
func Do(ctx context.Context, fn func() error, opts ...Option) error {
	options := Options{
		maxRetries: 3,
		baseWait:   250 * time.Millisecond,
		maxWait:    5 * time.Second,
	}
	for _, opt := range opts {
		opt(&options)
	}

	wait := options.baseWait
	var err error
	for attempt := 0; ; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}
		if !IsRecoverable(err) || attempt >= options.maxRetries {
			return err
		}
		select {
		case <-ctx.Done():
			return err
		case <-time.After(wait):
		}
		wait *= 2
		if options.maxWait > 0 && wait > options.maxWait {
			wait = options.maxWait
		}
	}
}
