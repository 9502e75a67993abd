// Copyright 2026 The Workroom Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"fmt"
	"log/slog"

	"github.com/workroom-foundation/workroom/lib/codec"
)

// OpKind identifies one primitive mutation inside a commit.
type OpKind string

const (
	// OpArrayInsert inserts Payload items at Index.
	OpArrayInsert OpKind = "array_insert"

	// OpArrayDelete deletes Count items starting at Index.
	OpArrayDelete OpKind = "array_delete"

	// OpMapSet sets Key to the single item in Payload.
	OpMapSet OpKind = "map_set"

	// OpMapDelete deletes Key.
	OpMapDelete OpKind = "map_delete"
)

// Op is one primitive mutation. Payload items are deterministic CBOR
// so that the same logical op encodes identically on every replica.
type Op struct {
	Kind       OpKind             `cbor:"kind"`
	Collection string             `cbor:"collection"`
	Index      int                `cbor:"index,omitempty"`
	Count      int                `cbor:"count,omitempty"`
	Key        string             `cbor:"key,omitempty"`
	Payload    []codec.RawMessage `cbor:"payload,omitempty"`
}

// Commit describes one completed transaction: every op it applied, in
// order, plus a replica-local sequence number. Remote is true when the
// commit came in through a journal merge rather than a local mutation;
// journal observers use it to avoid re-recording merged updates.
type Commit struct {
	Seq    uint64
	Ops    []Op
	Remote bool
}

// ObserverHandle identifies a registered observer for Unobserve.
type ObserverHandle int

// collection is the type-erased interface Doc uses to reach its
// registered arrays and maps for snapshots and remote-op application.
type collection interface {
	applyRemote(op Op) error
	snapshotRaw() (codec.RawMessage, error)
	restoreRaw(raw codec.RawMessage) error
}

// Doc is one replica's copy of the shared document: a named registry
// of collections sharing a single transaction and observer domain.
//
// Construct with [NewDoc], then register collections with [NewArray]
// and [NewMap] before first use. Not safe for concurrent use.
type Doc struct {
	collections map[string]collection
	observers   map[ObserverHandle]func(Commit)
	nextHandle  ObserverHandle

	// depth tracks transaction nesting; pending accumulates ops until
	// the outermost Transact completes.
	depth   int
	pending []Op
	remote  bool
	seq     uint64

	logger *slog.Logger
}

// NewDoc creates an empty document. A nil logger defaults to discard.
func NewDoc(logger *slog.Logger) *Doc {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Doc{
		collections: make(map[string]collection),
		observers:   make(map[ObserverHandle]func(Commit)),
		logger:      logger,
	}
}

// register adds a named collection. Collection names are fixed at
// startup; a duplicate is a programming error, not a runtime
// condition, so it panics like a duplicate flag registration would.
func (d *Doc) register(name string, c collection) {
	if name == "" {
		panic("store: empty collection name")
	}
	if _, exists := d.collections[name]; exists {
		panic(fmt.Sprintf("store: collection %q registered twice", name))
	}
	d.collections[name] = c
}

// Transact runs fn as one atomic transaction. All mutations fn makes
// (directly or through nested Transact calls) are delivered to
// observers as a single Commit after the outermost call returns.
//
// If fn returns an error the accumulated ops are still the ones that
// were applied: this layer has no rollback, matching the substrate it
// models, so fn must validate before mutating. The error is passed
// through to the caller.
func (d *Doc) Transact(fn func() error) error {
	d.begin()
	err := fn()
	d.end()
	return err
}

// Observe registers cb to receive every future Commit. The callback
// runs synchronously on the mutating replica's tick, after the
// transaction has fully applied.
func (d *Doc) Observe(cb func(Commit)) ObserverHandle {
	handle := d.nextHandle
	d.nextHandle++
	d.observers[handle] = cb
	return handle
}

// Unobserve removes a previously registered observer. Unknown handles
// are ignored.
func (d *Doc) Unobserve(handle ObserverHandle) {
	delete(d.observers, handle)
}

// begin opens a (possibly nested) transaction.
func (d *Doc) begin() {
	d.depth++
}

// end closes one nesting level. The outermost end assigns a sequence
// number and notifies observers; empty transactions notify nobody.
func (d *Doc) end() {
	d.depth--
	if d.depth > 0 {
		return
	}
	ops := d.pending
	remote := d.remote
	d.pending = nil
	d.remote = false
	if len(ops) == 0 {
		return
	}
	d.seq++
	commit := Commit{Seq: d.seq, Ops: ops, Remote: remote}
	for _, cb := range d.observers {
		cb(commit)
	}
}

// record appends an op to the current transaction, opening an implicit
// one when the caller mutated outside Transact.
func (d *Doc) record(op Op, apply func()) {
	if d.depth == 0 {
		d.begin()
		defer d.end()
	}
	apply()
	d.pending = append(d.pending, op)
}

// applyUpdate applies a remote replica's ops as one transaction marked
// Remote. Unknown collections are skipped with a log line rather than
// failing the whole update; a replica running older code must still
// converge on the collections it knows.
func (d *Doc) applyUpdate(ops []Op) error {
	return d.Transact(func() error {
		d.remote = true
		for _, op := range ops {
			target, ok := d.collections[op.Collection]
			if !ok {
				d.logger.Warn("skipping op for unknown collection",
					"collection", op.Collection,
					"kind", op.Kind,
				)
				continue
			}
			if err := target.applyRemote(op); err != nil {
				return fmt.Errorf("store: applying %s to %q: %w", op.Kind, op.Collection, err)
			}
			d.pending = append(d.pending, op)
		}
		return nil
	})
}
