// Copyright 2026 The Workroom Authors
// SPDX-License-Identifier: Apache-2.0

package schema

import (
	"errors"
	"fmt"
)

// AuditAction is the closed set of action tags recorded in the audit
// log. Values are self-describing strings that serialize directly to
// CBOR and JSON.
type AuditAction string

const (
	ActionRequestCreated    AuditAction = "request_created"
	ActionRequestClaimed    AuditAction = "request_claimed"
	ActionRequestApproved   AuditAction = "request_approved"
	ActionRequestRejected   AuditAction = "request_rejected"
	ActionRequestUnclaimed  AuditAction = "request_unclaimed"
	ActionRequestInProgress AuditAction = "request_in_progress"
	ActionRequestShipped    AuditAction = "request_shipped"
	ActionRequestReverted   AuditAction = "request_reverted"
	ActionRequestCancelled  AuditAction = "request_cancelled"
	ActionRequestDelivered  AuditAction = "request_delivered"
)

// IsKnown reports whether a is one of the defined AuditAction values.
func (a AuditAction) IsKnown() bool {
	switch a {
	case ActionRequestCreated, ActionRequestClaimed, ActionRequestApproved,
		ActionRequestRejected, ActionRequestUnclaimed, ActionRequestInProgress,
		ActionRequestShipped, ActionRequestReverted, ActionRequestCancelled,
		ActionRequestDelivered:
		return true
	}
	return false
}

// AuditEntryContent is one record in the shared audit array. Entries
// are append-only and immutable once written: nothing in this module
// exposes a mutation or deletion path, and replicas treat the array as
// grow-only.
type AuditEntryContent struct {
	// ID uniquely identifies the entry.
	ID string `json:"id" cbor:"id"`

	// Action is the tag describing what happened. See AuditAction.
	Action AuditAction `json:"action" cbor:"action"`

	// TargetType and TargetID identify what was acted on. TargetType
	// is currently always "request"; the field exists so chat or
	// capacity mutations can be audited without a schema change.
	TargetType string `json:"target_type" cbor:"target_type"`
	TargetID   string `json:"target_id" cbor:"target_id"`

	// Summary is a human-readable one-liner. Consumers must match on
	// the typed fields, never on summary text.
	Summary string `json:"summary" cbor:"summary"`

	// Actor is the identity key of who performed the action, and
	// ActorRole the permission they held at that moment.
	Actor     string     `json:"actor" cbor:"actor"`
	ActorRole Permission `json:"actor_role" cbor:"actor_role"`

	// CreatedAt is an RFC 3339 UTC timestamp.
	CreatedAt string `json:"created_at" cbor:"created_at"`
}

// Validate checks that all required fields are present and the action
// and role tags are known.
func (e *AuditEntryContent) Validate() error {
	if e.ID == "" {
		return errors.New("audit entry: id is required")
	}
	switch {
	case e.Action == "":
		return errors.New("audit entry: action is required")
	case !e.Action.IsKnown():
		return fmt.Errorf("audit entry: unknown action %q", e.Action)
	}
	if e.TargetType == "" {
		return errors.New("audit entry: target_type is required")
	}
	if e.TargetID == "" {
		return errors.New("audit entry: target_id is required")
	}
	if e.Actor == "" {
		return errors.New("audit entry: actor is required")
	}
	switch {
	case e.ActorRole == "":
		return errors.New("audit entry: actor_role is required")
	case !e.ActorRole.IsKnown():
		return fmt.Errorf("audit entry: unknown actor_role %q", e.ActorRole)
	}
	if e.CreatedAt == "" {
		return errors.New("audit entry: created_at is required")
	}
	return nil
}

// RecordID implements the store's record interface.
func (e AuditEntryContent) RecordID() string { return e.ID }
