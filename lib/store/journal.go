// Copyright 2026 The Workroom Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/pierrec/lz4/v4"
	"github.com/zeebo/blake3"

	"github.com/workroom-foundation/workroom/lib/codec"
)

// Update is one replica's committed transaction in wire form. The
// canonical encoding is deterministic CBOR, so the blake3 hash of the
// encoding identifies the update on every replica regardless of which
// path it arrived by.
type Update struct {
	Replica string `cbor:"replica"`
	Seq     uint64 `cbor:"seq"`
	Ops     []Op   `cbor:"ops"`
}

// Hash identifies an update by the blake3 digest of its canonical
// encoding.
type Hash [32]byte

func (h Hash) String() string { return fmt.Sprintf("%x", h[:8]) }

// frameHeaderSize is hash + original length + stored length.
const frameHeaderSize = 32 + 4 + 4

// maxFramePayload bounds a single decoded update. Workspace commits
// are a handful of records; anything near this is corruption.
const maxFramePayload = 16 << 20

// ErrFrameCorrupt reports a frame whose payload does not match its
// recorded hash.
var ErrFrameCorrupt = errors.New("store: journal frame hash mismatch")

// EncodeUpdate renders an update as a journal frame: a fixed header
// (blake3 hash, original length, stored length) followed by the
// lz4-block-compressed canonical encoding. Incompressible payloads are
// stored raw, signalled by stored length equal to original length.
func EncodeUpdate(update Update) ([]byte, Hash, error) {
	raw, err := codec.Marshal(update)
	if err != nil {
		return nil, Hash{}, fmt.Errorf("store: encoding update: %w", err)
	}
	hash := Hash(blake3.Sum256(raw))

	compressed := make([]byte, lz4.CompressBlockBound(len(raw)))
	n, err := lz4.CompressBlock(raw, compressed, nil)
	if err != nil {
		return nil, Hash{}, fmt.Errorf("store: compressing update: %w", err)
	}
	stored := compressed[:n]
	if n == 0 || n >= len(raw) {
		stored = raw
	}

	frame := make([]byte, frameHeaderSize+len(stored))
	copy(frame[:32], hash[:])
	binary.BigEndian.PutUint32(frame[32:36], uint32(len(raw)))
	binary.BigEndian.PutUint32(frame[36:40], uint32(len(stored)))
	copy(frame[frameHeaderSize:], stored)
	return frame, hash, nil
}

// ReadUpdate reads and decodes the next frame from r, verifying the
// payload against the recorded hash. Returns io.EOF at a clean end of
// stream.
func ReadUpdate(r io.Reader) (Update, Hash, error) {
	var header [frameHeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		if errors.Is(err, io.EOF) {
			return Update{}, Hash{}, io.EOF
		}
		return Update{}, Hash{}, fmt.Errorf("store: reading frame header: %w", err)
	}
	var hash Hash
	copy(hash[:], header[:32])
	origLen := binary.BigEndian.Uint32(header[32:36])
	storedLen := binary.BigEndian.Uint32(header[36:40])
	if origLen > maxFramePayload {
		return Update{}, Hash{}, fmt.Errorf("store: frame claims %d bytes, limit %d", origLen, maxFramePayload)
	}
	if storedLen > origLen {
		return Update{}, Hash{}, fmt.Errorf("store: frame stored length %d exceeds original %d", storedLen, origLen)
	}

	stored := make([]byte, storedLen)
	if _, err := io.ReadFull(r, stored); err != nil {
		return Update{}, Hash{}, fmt.Errorf("store: reading frame payload: %w", err)
	}

	raw := stored
	if storedLen != origLen {
		raw = make([]byte, origLen)
		n, err := lz4.UncompressBlock(stored, raw)
		if err != nil {
			return Update{}, Hash{}, fmt.Errorf("store: decompressing frame: %w", err)
		}
		if uint32(n) != origLen {
			return Update{}, Hash{}, fmt.Errorf("store: frame decompressed to %d bytes, header says %d", n, origLen)
		}
	}
	if blake3.Sum256(raw) != [32]byte(hash) {
		return Update{}, Hash{}, ErrFrameCorrupt
	}

	var update Update
	if err := codec.Unmarshal(raw, &update); err != nil {
		return Update{}, Hash{}, fmt.Errorf("store: decoding update: %w", err)
	}
	return update, hash, nil
}

// Journal records a document's local commits as frames on a writer and
// merges frames produced elsewhere back into the document. Every frame
// that passes through is remembered by hash, so replaying a stream
// that overlaps what this replica already holds is harmless.
type Journal struct {
	doc     *Doc
	replica string
	w       io.Writer
	seen    map[Hash]struct{}
	handle  ObserverHandle
	logger  *slog.Logger
}

// NewJournal attaches a journal to doc. Local commits are framed and
// written to w as they happen; replica names the local replica in
// outgoing updates. Detach with [Journal.Close] before discarding.
func NewJournal(doc *Doc, replica string, w io.Writer, logger *slog.Logger) *Journal {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	j := &Journal{
		doc:     doc,
		replica: replica,
		w:       w,
		seen:    make(map[Hash]struct{}),
		logger:  logger,
	}
	j.handle = doc.Observe(j.onCommit)
	return j
}

// Close detaches the journal from its document. The writer is the
// caller's to close.
func (j *Journal) Close() {
	j.doc.Unobserve(j.handle)
}

func (j *Journal) onCommit(commit Commit) {
	if commit.Remote {
		return
	}
	update := Update{Replica: j.replica, Seq: commit.Seq, Ops: commit.Ops}
	frame, hash, err := EncodeUpdate(update)
	if err != nil {
		j.logger.Error("dropping journal record", "error", err, "seq", commit.Seq)
		return
	}
	j.seen[hash] = struct{}{}
	if _, err := j.w.Write(frame); err != nil {
		j.logger.Error("journal write failed", "error", err, "seq", commit.Seq)
	}
}

// Merge applies a foreign frame to the document. Frames already seen
// (by hash) are skipped, making Merge idempotent. Applied frames are
// re-recorded on the local writer so the journal stays a complete
// account of this replica's state.
func (j *Journal) Merge(frame []byte) error {
	update, hash, err := ReadUpdate(bytes.NewReader(frame))
	if err != nil {
		return err
	}
	if _, ok := j.seen[hash]; ok {
		return nil
	}
	if err := j.doc.applyUpdate(update.Ops); err != nil {
		return err
	}
	j.seen[hash] = struct{}{}
	if _, err := j.w.Write(frame); err != nil {
		j.logger.Error("journal write failed", "error", err, "hash", hash)
	}
	return nil
}

// Replay reads frames from r until EOF and merges each into the
// document. Used at startup to rebuild state from a stored journal and
// during sync to ingest a peer's stream.
func (j *Journal) Replay(r io.Reader) (int, error) {
	applied := 0
	for {
		update, hash, err := ReadUpdate(r)
		if errors.Is(err, io.EOF) {
			return applied, nil
		}
		if err != nil {
			return applied, err
		}
		if _, ok := j.seen[hash]; ok {
			continue
		}
		if err := j.doc.applyUpdate(update.Ops); err != nil {
			return applied, err
		}
		j.seen[hash] = struct{}{}
		applied++
	}
}

// VerifyStream reads frames from r until EOF, checking integrity
// without applying anything. Returns the number of valid frames.
func VerifyStream(r io.Reader) (int, error) {
	count := 0
	for {
		if _, _, err := ReadUpdate(r); err != nil {
			if errors.Is(err, io.EOF) {
				return count, nil
			}
			return count, fmt.Errorf("frame %d: %w", count, err)
		}
		count++
	}
}
