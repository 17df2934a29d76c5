package memory

import (
	"context"
	"strings"
)

type subStore struct {
	parent Store
	prefix string
}

// Sub returns a view of parent confined to the namespace prefix. Keys seen
// through the view are relative to the namespace.
func Sub(parent Store, namespace string) Store {
	return &subStore{parent: parent, prefix: strings.TrimSuffix(namespace, "/") + "/"}
}

func (s *subStore) List(ctx context.Context) ([]string, error) {
	all, err := s.parent.List(ctx)
	if err != nil {
		return nil, err
	}

	var keys []string
	for _, key := range all {
		if rel, ok := strings.CutPrefix(key, s.prefix); ok {
			keys = append(keys, rel)
		}
	}
	return keys, nil
}

func (s *subStore) Load(ctx context.Context, keys ...string) ([]Entry, error) {
	entries, err := s.parent.Load(ctx, s.qualify(keys)...)
	if err != nil {
		return nil, err
	}
	for i := range entries {
		entries[i].Key = strings.TrimPrefix(entries[i].Key, s.prefix)
	}
	return entries, nil
}

func (s *subStore) Save(ctx context.Context, entries ...Entry) error {
	qualified := make([]Entry, len(entries))
	for i, e := range entries {
		qualified[i] = Entry{Key: s.prefix + e.Key, Value: e.Value}
	}
	return s.parent.Save(ctx, qualified...)
}

func (s *subStore) Delete(ctx context.Context, keys ...string) error {
	return s.parent.Delete(ctx, s.qualify(keys)...)
}

func (s *subStore) qualify(keys []string) []string {
	qualified := make([]string, len(keys))
	for i, key := range keys {
		qualified[i] = s.prefix + key
	}
	return qualified
}
