// Package cache is the disk-backed state cache between the UI and the
// remote clients. Entries live under <repo-root>/.taskdeck/cache/ as
// JSON files and expire by age; expired entries are still served,
// flagged stale, when a refetch fails.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"
)

const dirName = "cache"

// Store reads and writes cache entries for one repository.
type Store struct {
	dir string
	ttl time.Duration

	group singleflight.Group
	now   func() time.Time
}

// NewStore creates a store rooted at <repoRoot>/.taskdeck/cache.
func NewStore(repoRoot string, ttl time.Duration) *Store {
	return &Store{
		dir: filepath.Join(repoRoot, ".taskdeck", dirName),
		ttl: ttl,
		now: time.Now,
	}
}

// envelope is the on-disk entry format.
type envelope struct {
	Key       string          `json:"key"`
	Payload   json.RawMessage `json:"payload"`
	FetchedAt time.Time       `json:"fetched_at"`
}

// result pairs a decoded payload with its staleness for singleflight.
type result struct {
	payload json.RawMessage
	stale   bool
}

// GetOrFetch returns the value for key, fetching when the cached entry
// is missing or older than the TTL. Concurrent calls for the same key
// share one fetch. When the fetch fails and an expired entry exists,
// that entry is returned with stale set; with no cached entry at all
// the fetch error is returned.
func GetOrFetch[T any](ctx context.Context, s *Store, key string, fetch func(ctx context.Context) (T, error)) (value T, stale bool, err error) {
	v, err, _ := s.group.Do(key, func() (any, error) {
		return s.load(ctx, key, func(ctx context.Context) (any, error) {
			return fetch(ctx)
		})
	})
	if err != nil {
		return value, false, err
	}
	res := v.(result)
	if err := json.Unmarshal(res.payload, &value); err != nil {
		return value, false, fmt.Errorf("decode cache entry %s: %w", key, err)
	}
	return value, res.stale, nil
}

func (s *Store) load(ctx context.Context, key string, fetch func(ctx context.Context) (any, error)) (any, error) {
	env, readErr := s.read(key)
	if readErr == nil && s.now().Sub(env.FetchedAt) < s.ttl {
		return result{payload: env.Payload}, nil
	}

	fetched, fetchErr := fetch(ctx)
	if fetchErr == nil {
		// A cancelled fetch must not reach the store.
		fetchErr = ctx.Err()
	}
	if fetchErr != nil {
		// Serve the expired entry rather than nothing.
		if readErr == nil {
			return result{payload: env.Payload, stale: true}, nil
		}
		return nil, fetchErr
	}

	payload, err := json.Marshal(fetched)
	if err != nil {
		return nil, fmt.Errorf("encode cache entry %s: %w", key, err)
	}
	if err := s.write(key, payload); err != nil {
		return nil, err
	}
	return result{payload: payload}, nil
}

// Invalidate removes the entry for key so the next read refetches.
func (s *Store) Invalidate(key string) error {
	err := os.Remove(s.path(key))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("invalidate cache entry %s: %w", key, err)
	}
	return nil
}

// InvalidateAll removes every cached entry.
func (s *Store) InvalidateAll() error {
	if err := os.RemoveAll(s.dir); err != nil {
		return fmt.Errorf("clear cache: %w", err)
	}
	return nil
}

// Age returns how long ago the entry for key was fetched, or false if
// no entry exists.
func (s *Store) Age(key string) (time.Duration, bool) {
	env, err := s.read(key)
	if err != nil {
		return 0, false
	}
	return s.now().Sub(env.FetchedAt), true
}

func (s *Store) read(key string) (*envelope, error) {
	data, err := os.ReadFile(s.path(key))
	if err != nil {
		return nil, err
	}
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("corrupt cache entry %s: %w", key, err)
	}
	return &env, nil
}

// write persists an entry atomically so a crashed writer never leaves a
// torn file.
func (s *Store) write(key string, payload json.RawMessage) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}

	data, err := json.Marshal(envelope{
		Key:       key,
		Payload:   payload,
		FetchedAt: s.now(),
	})
	if err != nil {
		return fmt.Errorf("encode cache entry %s: %w", key, err)
	}

	path := s.path(key)
	tmp, err := os.CreateTemp(s.dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("write cache entry %s: %w", key, err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write cache entry %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write cache entry %s: %w", key, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write cache entry %s: %w", key, err)
	}
	return nil
}

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

func (s *Store) path(key string) string {
	name := unsafeChars.ReplaceAllString(strings.ToLower(key), "-")
	return filepath.Join(s.dir, name+".json")
}
