package quotes

import (
	"errors"
	"fmt"
	"time"

	"github.com/etnz/quotes/cache"
	"github.com/etnz/quotes/paginate"
)

var (
	// ErrCacheMissing is returned when an entry is absent and no fetch function is available.
	ErrCacheMissing = errors.New("cache entry missing")
	// ErrCacheStale is matched by *StaleError.
	ErrCacheStale = errors.New("cache entry stale")
	// ErrFetchFailed is matched by *FetchError.
	ErrFetchFailed = errors.New("fetch failed")
	// ErrMalformed reports an upstream payload missing expected fields or holding impossible values.
	ErrMalformed = errors.New("malformed payload")
	// ErrRateLimitExhausted is returned when an upstream keeps throttling the same request.
	ErrRateLimitExhausted = paginate.ErrRateLimitExhausted
	// ErrInvalidateNotFound is returned when invalidating a key that is not cached.
	ErrInvalidateNotFound = cache.ErrNotFound
)

// StaleError is returned when an entry has expired and no fetch function is
// available. It carries the stale payload for callers willing to use it.
type StaleError[T any] struct {
	Key     string
	Expired time.Time
	Payload T
}

func (e *StaleError[T]) Error() string {
	return fmt.Sprintf("%v: %q expired on %s", ErrCacheStale, e.Key, e.Expired.Format(time.RFC3339))
}

// Is makes errors.Is(err, ErrCacheStale) hold.
func (e *StaleError[T]) Is(target error) bool { return target == ErrCacheStale }

// FetchError wraps the failure of a fetch function. It matches both
// ErrFetchFailed and the underlying error.
type FetchError struct {
	Key string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("%v for %q: %v", ErrFetchFailed, e.Key, e.Err)
}

func (e *FetchError) Unwrap() []error { return []error{ErrFetchFailed, e.Err} }
