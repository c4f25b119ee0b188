// Package paginate retrieves large result sets from cursor-paginated,
// rate-limited sources.
//
// A Fetcher follows the continuation cursor of each page until none is
// left, merging every page into a single accumulator. When the source
// signals a rate limit, the same request is retried after a fixed backoff,
// up to a maximum number of consecutive signals.
package paginate

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"
)

// ErrRateLimitExhausted is returned when a request keeps being rate limited.
var ErrRateLimitExhausted = errors.New("rate limit exhausted")

// Page is one response of a paginated source.
type Page[V any] struct {
	Items       map[string]V // merged into the accumulator, later pages win
	Next        string       // request for the next page, empty on the last page
	RateLimited bool         // the request was throttled and must be retried
}

// Source executes a single page request.
type Source[V any] interface {
	Page(ctx context.Context, request string) (Page[V], error)
}

// SourceFunc adapts a function to a Source.
type SourceFunc[V any] func(ctx context.Context, request string) (Page[V], error)

// Page calls f.
func (f SourceFunc[V]) Page(ctx context.Context, request string) (Page[V], error) {
	return f(ctx, request)
}

// ExhaustedError reports the request that was rate limited too many times.
type ExhaustedError struct {
	Request string
	Signals int
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("%v: %d consecutive rate limit signals for %q", ErrRateLimitExhausted, e.Signals, e.Request)
}

func (e *ExhaustedError) Unwrap() error { return ErrRateLimitExhausted }

const (
	// DefaultBackoff is the pause between two attempts of a rate limited request.
	DefaultBackoff = 15 * time.Second
	// DefaultMaxSignals is the number of consecutive rate limit signals that aborts a fetch.
	// The last signal fails without waiting, so with DefaultBackoff a request
	// waits at most 5 × 15s = 75s before ErrRateLimitExhausted.
	DefaultMaxSignals = 6
)

type config struct {
	backoff    time.Duration
	maxSignals int
	sleep      func(context.Context, time.Duration) error
	logger     *log.Logger
}

// Option configures a Fetcher.
type Option func(*config)

// WithBackoff sets the pause between attempts of a rate limited request.
func WithBackoff(d time.Duration) Option { return func(c *config) { c.backoff = d } }

// WithMaxSignals sets how many consecutive rate limit signals abort the fetch.
func WithMaxSignals(n int) Option { return func(c *config) { c.maxSignals = n } }

// WithSleep replaces the function used to wait between attempts.
func WithSleep(sleep func(context.Context, time.Duration) error) Option {
	return func(c *config) { c.sleep = sleep }
}

// WithLogger sets the logger used to report throttling.
func WithLogger(l *log.Logger) Option { return func(c *config) { c.logger = l } }

// Fetcher accumulates every page of a Source.
type Fetcher[V any] struct {
	src Source[V]
	config
}

// New returns a Fetcher reading from src.
func New[V any](src Source[V], opts ...Option) *Fetcher[V] {
	c := config{
		backoff:    DefaultBackoff,
		maxSignals: DefaultMaxSignals,
		sleep:      Sleep,
		logger:     log.Default(),
	}
	for _, opt := range opts {
		opt(&c)
	}
	if c.maxSignals < 1 {
		c.maxSignals = 1
	}
	return &Fetcher[V]{src: src, config: c}
}

// FetchAll follows every seed request to its last page and returns the accumulated items.
//
// Seeds are processed sequentially into the same accumulator; they
// typically address independent segments of the same dataset.
func (f *Fetcher[V]) FetchAll(ctx context.Context, seeds ...string) (map[string]V, error) {
	acc := make(map[string]V)
	if err := f.FetchInto(ctx, acc, seeds...); err != nil {
		return nil, err
	}
	return acc, nil
}

// FetchInto is like FetchAll but merges into an existing accumulator.
// On error, acc holds the items of every page received so far.
func (f *Fetcher[V]) FetchInto(ctx context.Context, acc map[string]V, seeds ...string) error {
	for _, seed := range seeds {
		for req := seed; req != ""; {
			page, err := f.page(ctx, req, len(acc))
			if err != nil {
				return err
			}
			for k, v := range page.Items {
				acc[k] = v
			}
			req = page.Next
		}
	}
	return nil
}

// page executes req until it is not rate limited.
func (f *Fetcher[V]) page(ctx context.Context, req string, have int) (Page[V], error) {
	for signals := 0; ; {
		page, err := f.src.Page(ctx, req)
		if err != nil {
			return Page[V]{}, err
		}
		if !page.RateLimited {
			return page, nil
		}
		signals++
		if signals >= f.maxSignals {
			return Page[V]{}, &ExhaustedError{Request: req, Signals: signals}
		}
		f.logger.Printf("rate limited (%d/%d); %d items fetched so far, waiting %v", signals, f.maxSignals, have, f.backoff)
		if err := f.sleep(ctx, f.backoff); err != nil {
			return Page[V]{}, err
		}
	}
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
