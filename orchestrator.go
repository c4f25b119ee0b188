package quotes

import (
	"context"
	"errors"
	"fmt"
	"log"
	"maps"
	"reflect"
	"time"

	"github.com/etnz/quotes/cache"
	"golang.org/x/sync/singleflight"
)

// FetchFunc retrieves a dataset from its upstream source.
type FetchFunc[T any] func(ctx context.Context) (T, error)

// validator is implemented by payloads that can check their own consistency.
type validator interface{ Validate() error }

// Orchestrator implements get-or-populate and update-or-merge on top of a cache.Store.
type Orchestrator struct {
	store *cache.Store
	// group collapses concurrent populates of the same key.
	group singleflight.Group
}

// NewOrchestrator returns an Orchestrator persisting into store.
func NewOrchestrator(store *cache.Store) *Orchestrator {
	return &Orchestrator{store: store}
}

// Store returns the underlying store.
func (o *Orchestrator) Store() *cache.Store { return o.store }

// GetOrPopulate returns the cached payload of key if it is fresh.
//
// Otherwise fetch is called, its result persisted with ttl and returned.
// When fetch fails, the error is returned as a *FetchError and the cache
// is left untouched. When fetch is nil, a missing entry yields
// ErrCacheMissing and a stale one a *StaleError[T] carrying the payload.
//
// Concurrent callers for the same key and type share one fetch. A caller
// whose ctx is done returns ctx.Err() at once; the fetch carries on for the
// others and still persists its result.
func GetOrPopulate[T any](ctx context.Context, o *Orchestrator, key string, fetch FetchFunc[T], ttl cache.TTL) (T, error) {
	v, _, err := resolve(ctx, o, key, fetch, ttl)
	return v, err
}

// UpdateMerge merges incremental into the payload of key and persists the result.
//
// The baseline is resolved like GetOrPopulate. Incoming entries overwrite
// baseline entries with the same key, the others are preserved. The merged
// payload keeps the expiration the baseline entry already had.
func UpdateMerge[M ~map[K]V, K comparable, V any](ctx context.Context, o *Orchestrator, key string, incremental M, fetch FetchFunc[M], ttl cache.TTL) (M, error) {
	base, expires, err := resolve(ctx, o, key, fetch, ttl)
	if err != nil {
		return nil, err
	}
	merged := make(M, len(base)+len(incremental))
	maps.Copy(merged, base)
	maps.Copy(merged, incremental)
	if _, err := o.store.Put(key, merged, cache.Keep(expires)); err != nil {
		return nil, err
	}
	return merged, nil
}

// populated is the result shared by concurrent populates of a key.
type populated[T any] struct {
	value   T
	expires *time.Time
}

// resolve returns the payload of key and the expiration of the entry holding it.
func resolve[T any](ctx context.Context, o *Orchestrator, key string, fetch FetchFunc[T], ttl cache.TTL) (T, *time.Time, error) {
	var zero T

	l, err := o.store.Get(key)
	if errors.Is(err, cache.ErrCorrupt) {
		log.Printf("warning: %v: ignoring cached entry", err)
		l = cache.Lookup{State: cache.Missing}
	} else if err != nil {
		return zero, nil, err
	}

	var cached T
	if l.State != cache.Missing {
		if err := l.Entry.Decode(&cached); err != nil {
			log.Printf("warning: %v: ignoring cached entry", err)
			l = cache.Lookup{State: cache.Missing}
		}
	}
	if l.State == cache.Fresh {
		return cached, l.Entry.ExpiresAt(), nil
	}

	if fetch == nil {
		if l.State == cache.Stale {
			return zero, nil, &StaleError[T]{Key: key, Expired: *l.Entry.ExpiresAt(), Payload: cached}
		}
		return zero, nil, fmt.Errorf("%w: %q", ErrCacheMissing, key)
	}

	// Callers decoding the same key into different types do not share a flight.
	flight := key + "\x00" + reflect.TypeFor[T]().String()
	// The shared fetch outlives the cancellation of any single caller.
	fctx := context.WithoutCancel(ctx)
	ch := o.group.DoChan(flight, func() (any, error) {
		log.Printf("cache %s for %q, fetching", l.State, key)
		v, err := fetch(fctx)
		if err == nil {
			if vv, ok := any(v).(validator); ok {
				err = vv.Validate()
			}
		}
		if err != nil {
			return nil, &FetchError{Key: key, Err: err}
		}
		e, err := o.store.Put(key, v, ttl)
		if err != nil {
			return nil, err
		}
		return populated[T]{value: v, expires: e.ExpiresAt()}, nil
	})
	select {
	case <-ctx.Done():
		return zero, nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, nil, res.Err
		}
		p, ok := res.Val.(populated[T])
		if !ok {
			return zero, nil, fmt.Errorf("populating %q: unexpected %T result", key, res.Val)
		}
		return p.value, p.expires, nil
	}
}
