// Package cache implements a file-granularity key/value store with expiration metadata.
//
// Every entry lives in its own JSON file named after its key. Reads never
// fail for an ordinary miss or an expired entry: those are reported in the
// returned Lookup.
package cache

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"time"
)

const ext = ".json"

var (
	// ErrNotFound is returned when invalidating a key that is not in the store.
	ErrNotFound = errors.New("cache entry not found")
	// ErrInvalidKey is returned for keys that cannot be mapped to a file name.
	ErrInvalidKey = errors.New("invalid cache key")
	// ErrCorrupt is returned when an entry exists but cannot be decoded.
	ErrCorrupt = errors.New("corrupt cache entry")
)

var validKey = regexp.MustCompile(`^[A-Za-z0-9_-][A-Za-z0-9._-]*$`)

// State classifies the result of a Get.
type State int

const (
	Missing State = iota
	Fresh
	Stale
)

func (s State) String() string {
	switch s {
	case Fresh:
		return "fresh"
	case Stale:
		return "stale"
	default:
		return "missing"
	}
}

// Entry is the persisted form of a cached payload.
type Entry struct {
	Key     string          `json:"key"`
	Expires *Timestamp      `json:"expires"`
	Data    json.RawMessage `json:"data"`
}

// UnmarshalJSON reads expires as a timestamp, or as never expiring when it
// is null, false or 0.
func (e *Entry) UnmarshalJSON(b []byte) error {
	var raw struct {
		Key     string          `json:"key"`
		Expires json.RawMessage `json:"expires"`
		Data    json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	e.Key, e.Data, e.Expires = raw.Key, raw.Data, nil
	switch string(bytes.TrimSpace(raw.Expires)) {
	case "", "null", "false":
		return nil
	}
	var ts Timestamp
	if err := json.Unmarshal(raw.Expires, &ts); err != nil {
		return fmt.Errorf("expires: %w", err)
	}
	if ts != 0 {
		e.Expires = &ts
	}
	return nil
}

// ExpiresAt returns the expiration time, or nil if the entry never expires.
func (e Entry) ExpiresAt() *time.Time {
	if e.Expires == nil {
		return nil
	}
	t := e.Expires.Time()
	return &t
}

// Decode unmarshals the entry payload into v.
func (e Entry) Decode(v any) error {
	if err := json.Unmarshal(e.Data, v); err != nil {
		return fmt.Errorf("%w %q: %w", ErrCorrupt, e.Key, err)
	}
	return nil
}

// Lookup is the result of a Get: Fresh and Stale carry the entry, Missing does not.
type Lookup struct {
	State State
	Entry Entry
}

// Store is a directory of cache entries.
//
// A Store assumes a single writer. Concurrent writes to the same key from
// different processes are not coordinated.
type Store struct {
	dir     string
	now     func() time.Time
	cutoff  Cutoff
	lenient bool
}

// Option configures a Store.
type Option func(*Store)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option { return func(s *Store) { s.now = now } }

// WithCutoff sets the time of day used by the Default TTL policy.
func WithCutoff(hour int, loc *time.Location) Option {
	return func(s *Store) { s.cutoff = Cutoff{Hour: hour, Location: loc} }
}

// WithLenientInvalidate makes Invalidate of a missing key a no-op instead of ErrNotFound.
func WithLenientInvalidate() Option { return func(s *Store) { s.lenient = true } }

// Open returns a Store rooted at dir, creating the directory if needed.
func Open(dir string, opts ...Option) (*Store, error) {
	s := &Store{
		dir:    dir,
		now:    time.Now,
		cutoff: DefaultCutoff(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating cache dir: %w", err)
	}
	return s, nil
}

// Dir returns the store directory.
func (s *Store) Dir() string { return s.dir }

// Now returns the store's notion of the current time.
func (s *Store) Now() time.Time { return s.now() }

func (s *Store) path(key string) (string, error) {
	if !validKey.MatchString(key) {
		return "", fmt.Errorf("%w %q", ErrInvalidKey, key)
	}
	return filepath.Join(s.dir, key+ext), nil
}

// Get reads the entry for key.
//
// A missing file is reported as Missing, an entry whose expiration is in
// the past as Stale. Errors are only returned for invalid keys, I/O
// failures and undecodable files (ErrCorrupt).
func (s *Store) Get(key string) (Lookup, error) {
	file, err := s.path(key)
	if err != nil {
		return Lookup{}, err
	}
	content, err := os.ReadFile(file)
	if errors.Is(err, fs.ErrNotExist) {
		return Lookup{State: Missing}, nil
	}
	if err != nil {
		return Lookup{}, fmt.Errorf("reading cache entry %q: %w", key, err)
	}

	var e Entry
	if err := json.Unmarshal(content, &e); err != nil {
		return Lookup{}, fmt.Errorf("%w %q: %w", ErrCorrupt, key, err)
	}
	if e.Data == nil {
		return Lookup{}, fmt.Errorf("%w %q: no data", ErrCorrupt, key)
	}
	e.Key = key

	if exp := e.ExpiresAt(); exp != nil && exp.Before(s.now()) {
		return Lookup{State: Stale, Entry: e}, nil
	}
	return Lookup{State: Fresh, Entry: e}, nil
}

// Put replaces the entry for key with payload, expiring according to ttl.
//
// The entry is written to a temporary file in the store directory and
// renamed into place, so a crash never leaves a partial entry behind.
func (s *Store) Put(key string, payload any, ttl TTL) (Entry, error) {
	file, err := s.path(key)
	if err != nil {
		return Entry{}, err
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return Entry{}, fmt.Errorf("encoding cache entry %q: %w", key, err)
	}
	e := Entry{Key: key, Data: data}
	if exp := ttl.expiresAt(s.now(), s.cutoff); exp != nil {
		ts := NewTimestamp(*exp)
		e.Expires = &ts
	}
	content, err := json.Marshal(e)
	if err != nil {
		return Entry{}, fmt.Errorf("encoding cache entry %q: %w", key, err)
	}
	if err := writeFileAtomic(file, content); err != nil {
		return Entry{}, fmt.Errorf("writing cache entry %q: %w", key, err)
	}
	return e, nil
}

// Invalidate removes the entry for key.
func (s *Store) Invalidate(key string) error {
	file, err := s.path(key)
	if err != nil {
		return err
	}
	err = os.Remove(file)
	if errors.Is(err, fs.ErrNotExist) {
		if s.lenient {
			return nil
		}
		return fmt.Errorf("%w: %q", ErrNotFound, key)
	}
	return err
}

// Keys returns the sorted list of keys in the store.
func (s *Store) Keys() ([]string, error) {
	files, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(files))
	for _, f := range files {
		if f.IsDir() {
			continue
		}
		key, ok := strings.CutSuffix(f.Name(), ext)
		if !ok || !validKey.MatchString(key) {
			continue
		}
		keys = append(keys, key)
	}
	slices.Sort(keys)
	return keys, nil
}

// Prune removes every stale entry and returns how many were removed.
// Corrupt entries are left in place and logged.
func (s *Store) Prune() (int, error) {
	keys, err := s.Keys()
	if err != nil {
		return 0, err
	}
	n := 0
	for _, key := range keys {
		l, err := s.Get(key)
		if err != nil {
			log.Printf("prune: skipping %q: %v", key, err)
			continue
		}
		if l.State != Stale {
			continue
		}
		if err := s.Invalidate(key); err != nil && !errors.Is(err, ErrNotFound) {
			return n, err
		}
		n++
	}
	return n, nil
}

// writeFileAtomic writes content to a temporary file next to name, then renames it.
func writeFileAtomic(name string, content []byte) error {
	f, err := os.CreateTemp(filepath.Dir(name), "."+filepath.Base(name)+".*.tmp")
	if err != nil {
		return err
	}
	tmp := f.Name()
	if _, err := f.Write(content); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, name); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}
