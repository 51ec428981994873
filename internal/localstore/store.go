package localstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/buddyinbox/internal/logging"
)

// Change describes a key another writer modified.
type Change struct {
	Key     string
	Removed bool
}

// Store is a JSON facade over a Repository that also reports changes made
// by other writers sharing the same repository.
type Store struct {
	repo Repository
	log  logging.Logger

	// mu serializes our writes with Poll so a write and its revision land
	// in known together.
	mu     sync.Mutex
	known  map[string]int64
	primed bool

	subsMu  sync.Mutex
	subs    map[int]func(Change)
	nextSub int
}

func NewStore(repo Repository, log logging.Logger) *Store {
	return &Store{
		repo:  repo,
		log:   log,
		known: make(map[string]int64),
		subs:  make(map[int]func(Change)),
	}
}

// GetJSON decodes key into dst. It returns false when the key is absent,
// unreadable or not valid JSON for dst; callers then use their default.
func (s *Store) GetJSON(ctx context.Context, key string, dst any) bool {
	raw, ok, err := s.repo.Get(ctx, key)
	if err != nil {
		s.log.Warn(ctx, "storage read failed", "key", key, "error", err)
		return false
	}
	if !ok {
		return false
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		s.log.Warn(ctx, "storage value is not valid JSON, using default", "key", key, "error", err)
		return false
	}
	return true
}

func (s *Store) SetJSON(ctx context.Context, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return s.set(ctx, key, raw)
}

// GetString reads a raw, non-JSON value.
func (s *Store) GetString(ctx context.Context, key string) (string, bool) {
	raw, ok, err := s.repo.Get(ctx, key)
	if err != nil {
		s.log.Warn(ctx, "storage read failed", "key", key, "error", err)
		return "", false
	}
	if !ok {
		return "", false
	}
	return string(raw), true
}

func (s *Store) SetString(ctx context.Context, key, value string) error {
	return s.set(ctx, key, []byte(value))
}

func (s *Store) Remove(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.repo.Delete(ctx, key); err != nil {
		return err
	}
	delete(s.known, key)
	return nil
}

func (s *Store) set(ctx context.Context, key string, raw []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rev, err := s.repo.Set(ctx, key, raw)
	if err != nil {
		return err
	}
	s.known[key] = rev
	return nil
}

// Update runs a read-modify-write of key as one repository operation, so
// a value written by another process in the meantime is never lost. It
// reports whether fn changed the value.
func (s *Store) Update(ctx context.Context, key string, fn UpdateFunc) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rev, changed, err := s.repo.Update(ctx, key, fn)
	if err != nil || !changed {
		return false, err
	}
	s.known[key] = rev
	return true, nil
}

// UpdateJSON is Store.Update over a JSON value. fn receives the zero T
// when the key is absent or does not decode; the decode failure is logged
// like in GetJSON.
func UpdateJSON[T any](ctx context.Context, s *Store, key string, fn func(cur T) (next T, changed bool, err error)) (bool, error) {
	return s.Update(ctx, key, func(old []byte, ok bool) ([]byte, bool, error) {
		var cur T
		if ok {
			if err := json.Unmarshal(old, &cur); err != nil {
				s.log.Warn(ctx, "storage value is not valid JSON, using default", "key", key, "error", err)
				var zero T
				cur = zero
			}
		}
		next, changed, err := fn(cur)
		if err != nil || !changed {
			return nil, false, err
		}
		raw, err := json.Marshal(next)
		if err != nil {
			return nil, false, fmt.Errorf("encode %s: %w", key, err)
		}
		return raw, true, nil
	})
}

// Batch collects writes that Commit applies all-or-nothing.
type Batch struct {
	writes []Write
	err    error
}

func (b *Batch) SetJSON(key string, v any) {
	if b.err != nil {
		return
	}
	raw, err := json.Marshal(v)
	if err != nil {
		b.err = fmt.Errorf("encode %s: %w", key, err)
		return
	}
	b.writes = append(b.writes, Write{Key: key, Value: raw})
}

func (b *Batch) SetString(key, value string) {
	b.writes = append(b.writes, Write{Key: key, Value: []byte(value)})
}

func (b *Batch) Remove(key string) {
	b.writes = append(b.writes, Write{Key: key, Delete: true})
}

// Commit applies b in one repository transaction. Nothing is written when
// any entry fails to encode or the repository rejects the batch.
func (s *Store) Commit(ctx context.Context, b *Batch) error {
	if b.err != nil {
		return b.err
	}
	if len(b.writes) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	revs, err := s.repo.Apply(ctx, b.writes)
	if err != nil {
		return err
	}
	for _, w := range b.writes {
		if rev, ok := revs[w.Key]; ok {
			s.known[w.Key] = rev
		} else {
			delete(s.known, w.Key)
		}
	}
	return nil
}

// Subscribe registers fn for changes made by other writers. The returned
// func removes the subscription.
func (s *Store) Subscribe(fn func(Change)) (cancel func()) {
	s.subsMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.subsMu.Unlock()

	return func() {
		s.subsMu.Lock()
		delete(s.subs, id)
		s.subsMu.Unlock()
	}
}

// Prime records the current revisions as already seen.
func (s *Store) Prime(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	revs, err := s.repo.Revisions(ctx)
	if err != nil {
		return err
	}
	s.known = revs
	s.primed = true
	return nil
}

// Poll compares the repository revisions with the last seen ones and
// notifies subscribers about every key that changed or disappeared.
func (s *Store) Poll(ctx context.Context) ([]Change, error) {
	s.mu.Lock()
	revs, err := s.repo.Revisions(ctx)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}

	var changes []Change
	for key, rev := range revs {
		if old, ok := s.known[key]; !ok || old != rev {
			changes = append(changes, Change{Key: key})
		}
	}
	for key := range s.known {
		if _, ok := revs[key]; !ok {
			changes = append(changes, Change{Key: key, Removed: true})
		}
	}
	s.known = revs
	s.primed = true
	s.mu.Unlock()

	if len(changes) > 0 {
		s.notify(changes)
	}
	return changes, nil
}

// Watch polls every interval until ctx is done.
func (s *Store) Watch(ctx context.Context, interval time.Duration) error {
	s.mu.Lock()
	primed := s.primed
	s.mu.Unlock()
	if !primed {
		if err := s.Prime(ctx); err != nil {
			return err
		}
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := s.Poll(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				s.log.Warn(ctx, "storage poll failed", "error", err)
			}
		}
	}
}

func (s *Store) notify(changes []Change) {
	s.subsMu.Lock()
	fns := make([]func(Change), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subsMu.Unlock()

	for _, c := range changes {
		for _, fn := range fns {
			fn(c)
		}
	}
}
