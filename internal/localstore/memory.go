package localstore

import (
	"context"
	"maps"
	"slices"
	"sync"
)

// MemoryRepository keeps values in memory. Several Stores may share one
// MemoryRepository to behave like tabs over the same browser storage.
type MemoryRepository struct {
	mu     sync.RWMutex
	values map[string][]byte
	revs   map[string]int64
	rev    int64
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		values: make(map[string][]byte),
		revs:   make(map[string]int64),
	}
}

func (r *MemoryRepository) Get(_ context.Context, key string) ([]byte, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.values[key]
	if !ok {
		return nil, false, nil
	}
	return slices.Clone(v), true, nil
}

func (r *MemoryRepository) Set(_ context.Context, key string, value []byte) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rev++
	r.values[key] = slices.Clone(value)
	r.revs[key] = r.rev
	return r.rev, nil
}

func (r *MemoryRepository) Update(_ context.Context, key string, fn UpdateFunc) (int64, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	old, ok := r.values[key]
	next, changed, err := fn(slices.Clone(old), ok)
	if err != nil || !changed {
		return 0, false, err
	}
	r.rev++
	r.values[key] = slices.Clone(next)
	r.revs[key] = r.rev
	return r.rev, true, nil
}

func (r *MemoryRepository) Apply(_ context.Context, writes []Write) (map[string]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	revs := make(map[string]int64, len(writes))
	for _, w := range writes {
		if w.Delete {
			delete(r.values, w.Key)
			delete(r.revs, w.Key)
			delete(revs, w.Key)
			continue
		}
		r.rev++
		r.values[w.Key] = slices.Clone(w.Value)
		r.revs[w.Key] = r.rev
		revs[w.Key] = r.rev
	}
	return revs, nil
}

func (r *MemoryRepository) Delete(_ context.Context, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.values, key)
	delete(r.revs, key)
	return nil
}

func (r *MemoryRepository) Clear(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	clear(r.values)
	clear(r.revs)
	return nil
}

func (r *MemoryRepository) List(_ context.Context) (map[string][]byte, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string][]byte, len(r.values))
	for k, v := range r.values {
		out[k] = slices.Clone(v)
	}
	return out, nil
}

func (r *MemoryRepository) Revisions(_ context.Context) (map[string]int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return maps.Clone(r.revs), nil
}
