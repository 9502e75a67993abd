// Copyright 2026 The Workroom Authors
// SPDX-License-Identifier: Apache-2.0

// Package notify delivers workflow notifications through the shared
// document. A notification is addressed to exactly one recipient;
// fan-out to several parties writes one record per party. Recipients
// that cannot be addressed (an empty identity key) are skipped rather
// than stored, so the array never holds undeliverable records.
package notify

import (
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/workroom-foundation/workroom/lib/clock"
	"github.com/workroom-foundation/workroom/lib/schema"
	"github.com/workroom-foundation/workroom/lib/store"
)

// Notifier appends to and reads the shared notifications array.
type Notifier struct {
	doc     *store.Doc
	records *store.Array[schema.NotificationContent]
	clock   clock.Clock
	logger  *slog.Logger
}

// New creates a Notifier over the given shared array. A nil logger
// defaults to discard.
func New(doc *store.Doc, records *store.Array[schema.NotificationContent], clk clock.Clock, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Notifier{doc: doc, records: records, clock: clk, logger: logger}
}

// Push addresses one notification to recipient. An empty recipient is
// a silent no-op: the workflow layer calls Push unconditionally and
// relies on this filter for requests filed without a requester key.
func (n *Notifier) Push(recipient string, typ schema.NotificationType, message, relatedID string) error {
	if recipient == "" {
		n.logger.Debug("skipping unaddressable notification", "type", typ, "related", relatedID)
		return nil
	}
	record := schema.NotificationContent{
		ID:        uuid.NewString(),
		Recipient: recipient,
		Type:      typ,
		Message:   message,
		RelatedID: relatedID,
		CreatedAt: schema.Timestamp(n.clock.Now()),
	}
	if err := record.Validate(); err != nil {
		return fmt.Errorf("notify: %w", err)
	}
	if err := n.records.Append(record); err != nil {
		return fmt.Errorf("notify: appending notification: %w", err)
	}
	return nil
}

// For returns all notifications addressed to recipient, oldest first.
func (n *Notifier) For(recipient string) []schema.NotificationContent {
	var matched []schema.NotificationContent
	for _, record := range n.records.Snapshot() {
		if record.Recipient == recipient {
			matched = append(matched, record)
		}
	}
	return matched
}

// UnreadCount returns how many unread notifications recipient has.
func (n *Notifier) UnreadCount(recipient string) int {
	count := 0
	for _, record := range n.records.Snapshot() {
		if record.Recipient == recipient && !record.Read {
			count++
		}
	}
	return count
}

// MarkRead flips the Read flag on one notification. The caller must be
// the recipient; marking someone else's notification reports false
// exactly like a missing id, leaking nothing about other recipients'
// notification ids.
func (n *Notifier) MarkRead(recipient, id string) (bool, error) {
	record, _, ok := store.FindByID(n.records, id)
	if !ok || record.Recipient != recipient {
		return false, nil
	}
	return store.UpdateByID(n.records, id, func(r schema.NotificationContent) schema.NotificationContent {
		r.Read = true
		return r
	})
}

// MarkAllRead flips every unread notification addressed to recipient.
// Returns the number flipped. One call is one commit, however many
// records it touches.
func (n *Notifier) MarkAllRead(recipient string) (int, error) {
	flipped := 0
	err := n.doc.Transact(func() error {
		for _, record := range n.records.Snapshot() {
			if record.Recipient != recipient || record.Read {
				continue
			}
			ok, err := store.UpdateByID(n.records, record.ID, func(r schema.NotificationContent) schema.NotificationContent {
				r.Read = true
				return r
			})
			if err != nil {
				return err
			}
			if ok {
				flipped++
			}
		}
		return nil
	})
	return flipped, err
}
