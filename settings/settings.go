// Package settings holds user-facing options in a TOML file and notifies
// observers when they change. Observers can be suspended while a batch of
// changes is applied that must not trigger their side effects.
package settings

import (
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
)

// Observer is called after a setting changes.
type Observer func(key string, value any)

// Store is a typed view over the settings file. It is safe for concurrent
// use; observers run synchronously on the goroutine that made the change.
type Store struct {
	path   string
	logger *slog.Logger

	mu        sync.RWMutex
	values    map[string]any
	observers []Observer
	suspended bool
}

// Open loads the settings file at path. A missing file starts empty; an
// empty path keeps settings in memory only.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{
		path:   path,
		logger: logger,
		values: make(map[string]any),
	}
	if path == "" {
		return s, nil
	}

	if _, err := toml.DecodeFile(path, &s.values); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	return s, nil
}

// Watch registers an observer for every subsequent change.
func (s *Store) Watch(observer Observer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, observer)
}

// Suspend stops or resumes change notifications. Changes made while
// suspended are persisted but never notified.
func (s *Store) Suspend(suspended bool) {
	s.mu.Lock()
	s.suspended = suspended
	s.mu.Unlock()

	s.logger.Debug("settings monitor", slog.Bool("suspended", suspended))
}

func (s *Store) Suspended() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.suspended
}

func (s *Store) GetString(key, def string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if v, ok := s.values[key].(string); ok {
		return v
	}
	return def
}

func (s *Store) GetInt(key string, def int) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	switch v := s.values[key].(type) {
	case int64:
		return int(v)
	case int:
		return v
	}
	return def
}

func (s *Store) GetBool(key string, def bool) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if v, ok := s.values[key].(bool); ok {
		return v
	}
	return def
}

func (s *Store) SetString(key, value string) error {
	return s.set(key, value)
}

func (s *Store) SetInt(key string, value int) error {
	return s.set(key, int64(value))
}

func (s *Store) SetBool(key string, value bool) error {
	return s.set(key, value)
}

func (s *Store) set(key string, value any) error {
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("setting key is empty")
	}

	s.mu.Lock()
	s.values[key] = value
	snapshot := maps.Clone(s.values)
	observers := s.observers
	suspended := s.suspended
	s.mu.Unlock()

	if err := s.save(snapshot); err != nil {
		return err
	}

	if suspended {
		return nil
	}
	for _, observer := range observers {
		observer(key, value)
	}
	return nil
}

func (s *Store) save(values map[string]any) error {
	if s.path == "" {
		return nil
	}

	buf := strings.Builder{}
	if err := toml.NewEncoder(&buf).Encode(values); err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("create settings dir: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, []byte(buf.String()), 0o644); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	return os.Rename(tmp, s.path)
}
