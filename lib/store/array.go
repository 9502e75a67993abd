// Copyright 2026 The Workroom Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"fmt"
	"slices"

	"github.com/workroom-foundation/workroom/lib/codec"
)

// Record is implemented by every type stored in an [Array]. The id is
// the stable handle mutators address records by; it never changes over
// a record's lifetime.
type Record interface {
	RecordID() string
}

// Array is an ordered shared collection of records. All mutations go
// through the owning Doc's transaction machinery so observers and the
// journal see them.
type Array[T Record] struct {
	doc   *Doc
	name  string
	items []T
}

// NewArray registers an empty array under name in doc. Panics if the
// name is already taken.
func NewArray[T Record](doc *Doc, name string) *Array[T] {
	a := &Array[T]{doc: doc, name: name}
	doc.register(name, a)
	return a
}

// Name returns the collection name the array was registered under.
func (a *Array[T]) Name() string { return a.name }

// Len returns the number of records.
func (a *Array[T]) Len() int { return len(a.items) }

// At returns the record at index.
func (a *Array[T]) At(index int) (T, error) {
	var zero T
	if index < 0 || index >= len(a.items) {
		return zero, fmt.Errorf("store: index %d out of range for %q (len %d)", index, a.name, len(a.items))
	}
	return a.items[index], nil
}

// Snapshot returns a copy of the current contents. The copy is the
// caller's to keep; later mutations do not affect it. Records with
// reference-typed fields still share those referents.
func (a *Array[T]) Snapshot() []T {
	return slices.Clone(a.items)
}

// Insert places items at index, shifting later records right. Index
// len(a) appends.
func (a *Array[T]) Insert(index int, items ...T) error {
	if index < 0 || index > len(a.items) {
		return fmt.Errorf("store: insert index %d out of range for %q (len %d)", index, a.name, len(a.items))
	}
	if len(items) == 0 {
		return nil
	}
	payload, err := encodeItems(items)
	if err != nil {
		return fmt.Errorf("store: encoding insert for %q: %w", a.name, err)
	}
	op := Op{
		Kind:       OpArrayInsert,
		Collection: a.name,
		Index:      index,
		Payload:    payload,
	}
	a.doc.record(op, func() {
		a.items = slices.Insert(a.items, index, items...)
	})
	return nil
}

// Append adds items at the end.
func (a *Array[T]) Append(items ...T) error {
	return a.Insert(len(a.items), items...)
}

// Delete removes count records starting at index.
func (a *Array[T]) Delete(index, count int) error {
	if count < 0 {
		return fmt.Errorf("store: negative delete count %d for %q", count, a.name)
	}
	if index < 0 || index+count > len(a.items) {
		return fmt.Errorf("store: delete range [%d,%d) out of range for %q (len %d)",
			index, index+count, a.name, len(a.items))
	}
	if count == 0 {
		return nil
	}
	op := Op{
		Kind:       OpArrayDelete,
		Collection: a.name,
		Index:      index,
		Count:      count,
	}
	a.doc.record(op, func() {
		a.items = slices.Delete(a.items, index, index+count)
	})
	return nil
}

// applyRemote applies a merged op from another replica. Indexes are
// clamped instead of rejected: the sender computed them against a
// state this replica may have already diverged from, and convergence
// beats strictness here.
func (a *Array[T]) applyRemote(op Op) error {
	switch op.Kind {
	case OpArrayInsert:
		items, err := decodeItems[T](op.Payload)
		if err != nil {
			return err
		}
		index := min(max(op.Index, 0), len(a.items))
		a.items = slices.Insert(a.items, index, items...)
	case OpArrayDelete:
		index := min(max(op.Index, 0), len(a.items))
		count := min(max(op.Count, 0), len(a.items)-index)
		a.items = slices.Delete(a.items, index, index+count)
	default:
		return fmt.Errorf("op kind %q not valid for arrays", op.Kind)
	}
	return nil
}

func (a *Array[T]) snapshotRaw() (codec.RawMessage, error) {
	return codec.Marshal(a.items)
}

func (a *Array[T]) restoreRaw(raw codec.RawMessage) error {
	var items []T
	if err := codec.Unmarshal(raw, &items); err != nil {
		return err
	}
	a.items = items
	return nil
}

func encodeItems[T Record](items []T) ([]codec.RawMessage, error) {
	payload := make([]codec.RawMessage, len(items))
	for i, item := range items {
		raw, err := codec.Marshal(item)
		if err != nil {
			return nil, err
		}
		payload[i] = raw
	}
	return payload, nil
}

func decodeItems[T Record](payload []codec.RawMessage) ([]T, error) {
	items := make([]T, len(payload))
	for i, raw := range payload {
		if err := codec.Unmarshal(raw, &items[i]); err != nil {
			return nil, err
		}
	}
	return items, nil
}
