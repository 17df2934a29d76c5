package memory

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
)

// Cache is a write-back cache in front of a Store. It keeps an index of the
// keys the store holds and loads values on demand; reads never perform I/O.
// Writes are buffered until Flush. All methods are safe for concurrent use.
type Cache struct {
	store   Store
	values  map[string][]byte
	index   map[string]bool
	dirty   map[string]bool
	removed map[string]bool
	mu      sync.RWMutex
}

// NewCache creates a Cache backed by store.
func NewCache(store Store) *Cache {
	c := &Cache{store: store}
	c.reset()
	return c
}

func (c *Cache) reset() {
	c.values = make(map[string][]byte)
	c.index = make(map[string]bool)
	c.dirty = make(map[string]bool)
	c.removed = make(map[string]bool)
}

// Bootstrap indexes every key of the store and preloads the values whose key
// starts with one of prefixes.
func (c *Cache) Bootstrap(ctx context.Context, prefixes ...string) error {
	keys, err := c.store.List(ctx)
	if err != nil {
		return fmt.Errorf("bootstrap index: %w", err)
	}

	c.mu.Lock()
	for _, key := range keys {
		c.index[key] = true
	}
	c.mu.Unlock()

	var toLoad []string
	for _, key := range keys {
		if slices.ContainsFunc(prefixes, func(p string) bool { return strings.HasPrefix(key, p) }) {
			toLoad = append(toLoad, key)
		}
	}
	if len(toLoad) == 0 {
		return nil
	}

	entries, err := c.store.Load(ctx, toLoad...)
	if err != nil {
		return fmt.Errorf("bootstrap load: %w", err)
	}

	c.mu.Lock()
	for _, e := range entries {
		c.values[e.Key] = e.Value
	}
	c.mu.Unlock()

	return nil
}

// Resolve loads the given keys from the store unless already cached. A key
// absent from the store fails with ErrKeyNotFound.
func (c *Cache) Resolve(ctx context.Context, keys ...string) error {
	c.mu.RLock()
	var toLoad []string
	for _, key := range keys {
		if _, cached := c.values[key]; !cached && !c.removed[key] {
			toLoad = append(toLoad, key)
		}
	}
	c.mu.RUnlock()

	if len(toLoad) == 0 {
		return nil
	}

	entries, err := c.store.Load(ctx, toLoad...)
	if err != nil {
		return fmt.Errorf("resolve: %w", err)
	}

	c.mu.Lock()
	for _, e := range entries {
		c.values[e.Key] = e.Value
		c.index[e.Key] = true
	}
	c.mu.Unlock()

	return nil
}

// Flush writes pending sets and deletes to the store.
func (c *Cache) Flush(ctx context.Context) error {
	c.mu.RLock()
	var toSave []Entry
	for key := range c.dirty {
		if val, ok := c.values[key]; ok {
			toSave = append(toSave, Entry{Key: key, Value: val})
		}
	}
	var toDelete []string
	for key := range c.removed {
		toDelete = append(toDelete, key)
	}
	c.mu.RUnlock()

	if len(toSave) > 0 {
		if err := c.store.Save(ctx, toSave...); err != nil {
			return fmt.Errorf("%w: save: %w", ErrFlushFailed, err)
		}
	}
	if len(toDelete) > 0 {
		if err := c.store.Delete(ctx, toDelete...); err != nil {
			return fmt.Errorf("%w: delete: %w", ErrFlushFailed, err)
		}
	}

	c.mu.Lock()
	c.dirty = make(map[string]bool)
	c.removed = make(map[string]bool)
	c.mu.Unlock()

	return nil
}

// Clear drops every cached value and pending write. With wipeStore the
// backing store is emptied as well; otherwise it is left untouched and the
// index is rebuilt on the next Bootstrap.
func (c *Cache) Clear(ctx context.Context, wipeStore bool) error {
	c.mu.Lock()
	c.reset()
	c.mu.Unlock()

	if !wipeStore {
		return nil
	}

	keys, err := c.store.List(ctx)
	if err != nil {
		return fmt.Errorf("%w: list: %w", ErrClearFailed, err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := c.store.Delete(ctx, keys...); err != nil {
		return fmt.Errorf("%w: delete: %w", ErrClearFailed, err)
	}
	return nil
}

func (c *Cache) Get(key string) ([]byte, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	val, ok := c.values[key]
	if !ok {
		return nil, false
	}
	return slices.Clone(val), true
}

func (c *Cache) Set(key string, value []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.values[key] = slices.Clone(value)
	c.index[key] = true
	c.dirty[key] = true
	delete(c.removed, key)
}

func (c *Cache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.values, key)
	delete(c.index, key)
	delete(c.dirty, key)
	c.removed[key] = true
}

// Has reports whether key is known, loaded or not.
func (c *Cache) Has(key string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.index[key]
}

// Keys returns the indexed keys in sorted order.
func (c *Cache) Keys() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	keys := make([]string, 0, len(c.index))
	for key := range c.index {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
