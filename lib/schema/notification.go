// Copyright 2026 The Workroom Authors
// SPDX-License-Identifier: Apache-2.0

package schema

import (
	"errors"
	"fmt"
)

// NotificationType tags what a notification is about so clients can
// route it to the right view without parsing the message text.
type NotificationType string

const (
	NotifyRequestClaimed   NotificationType = "request_claimed"
	NotifyRequestApproved  NotificationType = "request_approved"
	NotifyRequestRejected  NotificationType = "request_rejected"
	NotifyRequestUnclaimed NotificationType = "request_unclaimed"
	NotifyRequestProgress  NotificationType = "request_progress"
	NotifyRequestShipped   NotificationType = "request_shipped"
	NotifyRequestCancelled NotificationType = "request_cancelled"
	NotifyRequestDelivered NotificationType = "request_delivered"
	NotifyMention          NotificationType = "mention"
)

// IsKnown reports whether t is one of the defined NotificationType
// values.
func (t NotificationType) IsKnown() bool {
	switch t {
	case NotifyRequestClaimed, NotifyRequestApproved, NotifyRequestRejected,
		NotifyRequestUnclaimed, NotifyRequestProgress, NotifyRequestShipped,
		NotifyRequestCancelled, NotifyRequestDelivered, NotifyMention:
		return true
	}
	return false
}

// NotificationContent is one record in the shared notifications array.
// Addressed to exactly one recipient; created by the fan-out, mutated
// only by the recipient flipping Read, never by anyone else.
type NotificationContent struct {
	// ID uniquely identifies the notification.
	ID string `json:"id" cbor:"id"`

	// Recipient is the identity key of the one party this record is
	// addressed to. The fan-out never emits a record with an empty
	// recipient; unaddressable notifications are skipped, not stored.
	Recipient string `json:"recipient" cbor:"recipient"`

	// Type routes the notification. See NotificationType.
	Type NotificationType `json:"type" cbor:"type"`

	// Message is the human-readable text shown to the recipient.
	Message string `json:"message" cbor:"message"`

	// RelatedID references the entity the notification is about
	// (request id, chat message id).
	RelatedID string `json:"related_id,omitempty" cbor:"related_id,omitempty"`

	// Read is flipped by the recipient. No other mutation is valid.
	Read bool `json:"read" cbor:"read"`

	// CreatedAt is an RFC 3339 UTC timestamp.
	CreatedAt string `json:"created_at" cbor:"created_at"`
}

// Validate checks that all required fields are present and the type
// tag is known.
func (n *NotificationContent) Validate() error {
	if n.ID == "" {
		return errors.New("notification: id is required")
	}
	if n.Recipient == "" {
		return errors.New("notification: recipient is required")
	}
	switch {
	case n.Type == "":
		return errors.New("notification: type is required")
	case !n.Type.IsKnown():
		return fmt.Errorf("notification: unknown type %q", n.Type)
	}
	if n.Message == "" {
		return errors.New("notification: message is required")
	}
	if n.CreatedAt == "" {
		return errors.New("notification: created_at is required")
	}
	return nil
}

// RecordID implements the store's record interface.
func (n NotificationContent) RecordID() string { return n.ID }
