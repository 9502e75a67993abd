// Copyright 2026 The Workroom Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"

	"github.com/workroom-foundation/workroom/lib/codec"
)

// snapshotVersion is bumped when the snapshot envelope changes shape.
const snapshotVersion = 1

// snapshotEnvelope is the on-disk snapshot: every registered
// collection's full contents, keyed by collection name.
type snapshotEnvelope struct {
	Version     int                         `cbor:"version"`
	Seq         uint64                      `cbor:"seq"`
	Collections map[string]codec.RawMessage `cbor:"collections"`
}

// WriteSnapshot writes the document's full state to w as
// zstd-compressed deterministic CBOR. Snapshots bound journal replay
// time at startup; they are a cache, never the source of truth.
func WriteSnapshot(doc *Doc, w io.Writer) error {
	envelope := snapshotEnvelope{
		Version:     snapshotVersion,
		Seq:         doc.seq,
		Collections: make(map[string]codec.RawMessage, len(doc.collections)),
	}
	for name, c := range doc.collections {
		raw, err := c.snapshotRaw()
		if err != nil {
			return fmt.Errorf("store: snapshotting %q: %w", name, err)
		}
		envelope.Collections[name] = raw
	}
	raw, err := codec.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("store: encoding snapshot: %w", err)
	}

	zw, err := zstd.NewWriter(w)
	if err != nil {
		return fmt.Errorf("store: opening snapshot compressor: %w", err)
	}
	if _, err := zw.Write(raw); err != nil {
		zw.Close()
		return fmt.Errorf("store: writing snapshot: %w", err)
	}
	return zw.Close()
}

// ReadSnapshot restores the document's state from a snapshot written
// by WriteSnapshot. Collections in the snapshot that this document
// does not register are ignored; registered collections absent from
// the snapshot are left as they are. Restore bypasses the transaction
// machinery; it runs at startup, before observers attach.
func ReadSnapshot(doc *Doc, r io.Reader) error {
	zr, err := zstd.NewReader(r)
	if err != nil {
		return fmt.Errorf("store: opening snapshot decompressor: %w", err)
	}
	defer zr.Close()
	raw, err := io.ReadAll(zr)
	if err != nil {
		return fmt.Errorf("store: reading snapshot: %w", err)
	}

	var envelope snapshotEnvelope
	if err := codec.Unmarshal(raw, &envelope); err != nil {
		return fmt.Errorf("store: decoding snapshot: %w", err)
	}
	if envelope.Version != snapshotVersion {
		return fmt.Errorf("store: snapshot version %d, want %d", envelope.Version, snapshotVersion)
	}
	for name, c := range doc.collections {
		collRaw, ok := envelope.Collections[name]
		if !ok {
			continue
		}
		if err := c.restoreRaw(collRaw); err != nil {
			return fmt.Errorf("store: restoring %q: %w", name, err)
		}
	}
	if envelope.Seq > doc.seq {
		doc.seq = envelope.Seq
	}
	return nil
}
