// Copyright 2026 The Workroom Authors
// SPDX-License-Identifier: Apache-2.0

// Package store provides the shared replicated document a workroom
// workspace lives in: ordered arrays, string-keyed maps, atomic
// multi-op transactions with observer notification, an update journal
// for replica exchange, and compressed snapshots.
//
// # Transactions
//
// All mutations run inside a transaction. [Doc.Transact] batches
// nested mutations into one [Commit] delivered to observers after the
// outermost call returns; an observer never sees the intermediate
// state of a delete-then-insert replace. Mutations outside an explicit
// Transact call get an implicit single-op transaction.
//
// # Mutators
//
// The array type has no in-place update primitive, mirroring the
// array CRDTs this package fronts for. [UpdateByID] translates "update
// record with id X" into the delete-then-insert-at-same-index idiom
// inside one transaction. A missing id is a silent no-op: the record
// may have been deleted concurrently by another replica, which is an
// expected race outcome, not an error.
//
// # Convergence
//
// Updates from other replicas merge through [Journal.Merge] with
// last-write-wins map semantics and index-clamped array ops, and are
// deduplicated by blake3 content hash. There is no locking and no
// consensus: two replicas can both observe a request as claimable and
// both claim it, and the merge resolves the conflict by arrival order.
// That race is an accepted property of the design: contention is
// human-scale and the losing claim is visually corrected once sync
// completes, so callers must not paper over it with stronger
// consistency this layer never promises.
//
// # Concurrency
//
// Doc is not safe for concurrent use. Each replica is single-threaded
// and cooperative: the embedding application serializes access through
// its event loop or wraps the document with a mutex.
package store
