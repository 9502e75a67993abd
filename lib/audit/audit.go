// Copyright 2026 The Workroom Authors
// SPDX-License-Identifier: Apache-2.0

// Package audit maintains the append-only audit trail of workflow
// actions. Entries are shared document records like everything else, so
// every replica converges on the same history; nothing in this package
// (or anywhere else in the module) mutates or deletes an entry once
// appended.
package audit

import (
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/workroom-foundation/workroom/lib/clock"
	"github.com/workroom-foundation/workroom/lib/schema"
	"github.com/workroom-foundation/workroom/lib/store"
)

// TargetRequest is the target type for entries about inventory
// requests, currently the only audited entity.
const TargetRequest = "request"

// Log appends to and reads the shared audit array.
type Log struct {
	entries *store.Array[schema.AuditEntryContent]
	clock   clock.Clock
	logger  *slog.Logger
}

// New creates a Log over the given shared array. A nil logger defaults
// to discard.
func New(entries *store.Array[schema.AuditEntryContent], clk clock.Clock, logger *slog.Logger) *Log {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Log{entries: entries, clock: clk, logger: logger}
}

// Append records one action against a request. The entry gets a fresh
// id and timestamp; the caller supplies everything else.
func (l *Log) Append(action schema.AuditAction, targetID, summary, actor string, role schema.Permission) (schema.AuditEntryContent, error) {
	entry := schema.AuditEntryContent{
		ID:         uuid.NewString(),
		Action:     action,
		TargetType: TargetRequest,
		TargetID:   targetID,
		Summary:    summary,
		Actor:      actor,
		ActorRole:  role,
		CreatedAt:  schema.Timestamp(l.clock.Now()),
	}
	if err := entry.Validate(); err != nil {
		return schema.AuditEntryContent{}, fmt.Errorf("audit: %w", err)
	}
	if err := l.entries.Append(entry); err != nil {
		return schema.AuditEntryContent{}, fmt.Errorf("audit: appending entry: %w", err)
	}
	l.logger.Debug("audit entry appended",
		"action", entry.Action,
		"target", entry.TargetID,
		"actor", entry.Actor,
	)
	return entry, nil
}

// Entries returns a copy of the full trail in append order.
func (l *Log) Entries() []schema.AuditEntryContent {
	return l.entries.Snapshot()
}

// ForTarget returns the trail for one target id, in append order.
func (l *Log) ForTarget(targetID string) []schema.AuditEntryContent {
	var matched []schema.AuditEntryContent
	for _, entry := range l.entries.Snapshot() {
		if entry.TargetID == targetID {
			matched = append(matched, entry)
		}
	}
	return matched
}
