// Copyright 2026 The Workroom Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"fmt"
	"iter"
	"sort"

	"github.com/workroom-foundation/workroom/lib/codec"
)

// Map is a string-keyed shared collection. Concurrent sets to the same
// key resolve last-write-wins at merge time; there is no per-key
// history.
type Map[V any] struct {
	doc     *Doc
	name    string
	entries map[string]V
}

// NewMap registers an empty map under name in doc. Panics if the name
// is already taken.
func NewMap[V any](doc *Doc, name string) *Map[V] {
	m := &Map[V]{doc: doc, name: name, entries: make(map[string]V)}
	doc.register(name, m)
	return m
}

// Name returns the collection name the map was registered under.
func (m *Map[V]) Name() string { return m.name }

// Len returns the number of entries.
func (m *Map[V]) Len() int { return len(m.entries) }

// Has reports whether key is present.
func (m *Map[V]) Has(key string) bool {
	_, ok := m.entries[key]
	return ok
}

// Get returns the value stored under key.
func (m *Map[V]) Get(key string) (V, bool) {
	v, ok := m.entries[key]
	return v, ok
}

// Keys returns all keys in sorted order.
func (m *Map[V]) Keys() []string {
	keys := make([]string, 0, len(m.entries))
	for key := range m.entries {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// All iterates the entries in sorted key order. The iteration order is
// deterministic so projections built from it are too.
func (m *Map[V]) All() iter.Seq2[string, V] {
	return func(yield func(string, V) bool) {
		for _, key := range m.Keys() {
			if !yield(key, m.entries[key]) {
				return
			}
		}
	}
}

// Set stores value under key, replacing any existing entry.
func (m *Map[V]) Set(key string, value V) error {
	if key == "" {
		return fmt.Errorf("store: empty key for %q", m.name)
	}
	raw, err := codec.Marshal(value)
	if err != nil {
		return fmt.Errorf("store: encoding value for %q[%q]: %w", m.name, key, err)
	}
	op := Op{
		Kind:       OpMapSet,
		Collection: m.name,
		Key:        key,
		Payload:    []codec.RawMessage{raw},
	}
	m.doc.record(op, func() {
		m.entries[key] = value
	})
	return nil
}

// Delete removes key. Deleting an absent key is a no-op, matching the
// merge semantics remote deletes already have.
func (m *Map[V]) Delete(key string) error {
	if _, ok := m.entries[key]; !ok {
		return nil
	}
	op := Op{
		Kind:       OpMapDelete,
		Collection: m.name,
		Key:        key,
	}
	m.doc.record(op, func() {
		delete(m.entries, key)
	})
	return nil
}

// applyRemote applies a merged op from another replica. Sets always
// overwrite (last write wins) and deletes of absent keys are no-ops.
func (m *Map[V]) applyRemote(op Op) error {
	switch op.Kind {
	case OpMapSet:
		if len(op.Payload) != 1 {
			return fmt.Errorf("map_set carries %d payloads, want 1", len(op.Payload))
		}
		var value V
		if err := codec.Unmarshal(op.Payload[0], &value); err != nil {
			return err
		}
		m.entries[op.Key] = value
	case OpMapDelete:
		delete(m.entries, op.Key)
	default:
		return fmt.Errorf("op kind %q not valid for maps", op.Kind)
	}
	return nil
}

func (m *Map[V]) snapshotRaw() (codec.RawMessage, error) {
	return codec.Marshal(m.entries)
}

func (m *Map[V]) restoreRaw(raw codec.RawMessage) error {
	entries := make(map[string]V)
	if err := codec.Unmarshal(raw, &entries); err != nil {
		return err
	}
	m.entries = entries
	return nil
}
