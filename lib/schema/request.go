// Copyright 2026 The Workroom Authors
// SPDX-License-Identifier: Apache-2.0

package schema

import (
	"errors"
	"fmt"
	"time"
)

// RequestContentVersion is the current schema version for
// RequestContent records. Increment when adding fields that existing
// code must not silently drop during read-modify-write.
const RequestContentVersion = 1

// RequestStatus is the lifecycle state of an inventory request.
// Values are self-describing strings that serialize directly to CBOR
// and JSON.
type RequestStatus string

const (
	// StatusOpen means the request is unassigned and claimable by any
	// producer. All assignment and approval fields are empty.
	StatusOpen RequestStatus = "open"

	// StatusClaimed means a producer has claimed the request in a
	// workspace without mandatory approval.
	StatusClaimed RequestStatus = "claimed"

	// StatusPendingApproval means a producer has claimed the request
	// in a workspace that requires owner approval before work starts.
	StatusPendingApproval RequestStatus = "pending_approval"

	// StatusApproved means an owner has approved the claim. The
	// shipping address reveal is created at this transition.
	StatusApproved RequestStatus = "approved"

	// StatusInProgress means the assigned producer has started
	// production.
	StatusInProgress RequestStatus = "in_progress"

	// StatusShipped means the producer has shipped the order.
	StatusShipped RequestStatus = "shipped"

	// StatusDelivered means the original requester confirmed receipt.
	// Terminal.
	StatusDelivered RequestStatus = "delivered"

	// StatusCancelled means the request was withdrawn before shipping.
	// Terminal.
	StatusCancelled RequestStatus = "cancelled"
)

// IsKnown reports whether s is one of the defined RequestStatus values.
func (s RequestStatus) IsKnown() bool {
	switch s {
	case StatusOpen, StatusClaimed, StatusPendingApproval, StatusApproved,
		StatusInProgress, StatusShipped, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}

// IsTerminal reports whether s admits no further transitions.
func (s RequestStatus) IsTerminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

// Permission is a collaborator's role in the workspace. These are the
// only valid actor roles; audit entries and transition guards filter
// by this enum exclusively, never by an ad-hoc role string.
type Permission string

const (
	// PermissionOwner administers the workspace: approves and rejects
	// claims, overrides fulfillment stages, cancels requests.
	PermissionOwner Permission = "owner"

	// PermissionEditor is a producer: claims requests and moves them
	// through the fulfillment stages.
	PermissionEditor Permission = "editor"

	// PermissionViewer reads the workspace but mutates nothing except
	// requests they filed themselves.
	PermissionViewer Permission = "viewer"
)

// IsKnown reports whether p is one of the defined Permission values.
func (p Permission) IsKnown() bool {
	switch p {
	case PermissionOwner, PermissionEditor, PermissionViewer:
		return true
	}
	return false
}

// RequestContent is one inventory request record in the shared
// requests array. Replicas update it via the store's atomic replace
// mutator; a request is never assigned to two producers at once within
// one replica's view (the cross-replica claim race is resolved by the
// document merge, not by this type).
type RequestContent struct {
	// Version is the schema version (see RequestContentVersion). Code
	// that modifies this record must call CanModify() first; if
	// Version exceeds RequestContentVersion the modification is
	// refused to prevent silent field loss. Readers may process any
	// version (unknown fields are ignored by the codec).
	Version int `json:"version" cbor:"version"`

	// ID is an opaque identifier, unique within the workspace.
	ID string `json:"id" cbor:"id"`

	// ItemID references the catalog item being requested.
	ItemID string `json:"item_id" cbor:"item_id"`

	// ItemName is the catalog item name denormalized at creation time
	// so listings survive catalog edits.
	ItemName string `json:"item_name" cbor:"item_name"`

	// Quantity is the requested amount. Positive, and bounded by the
	// catalog item's min/max/step at creation time.
	Quantity int `json:"quantity" cbor:"quantity"`

	// City and StateCode locate the shipping destination coarsely.
	// The street address never enters the shared document; it travels
	// only as an encrypted reveal (see AddressRevealContent).
	City      string `json:"city" cbor:"city"`
	StateCode string `json:"state_code" cbor:"state_code"`

	// Status is the lifecycle state. See RequestStatus.
	Status RequestStatus `json:"status" cbor:"status"`

	// AssignedTo is the identity key of the producer the request is
	// assigned to. Empty exactly when Status is "open".
	AssignedTo string `json:"assigned_to,omitempty" cbor:"assigned_to,omitempty"`

	// AssignedAt is when the assignment was made (RFC 3339 UTC).
	AssignedAt string `json:"assigned_at,omitempty" cbor:"assigned_at,omitempty"`

	// ClaimedBy is the identity key of the producer who claimed the
	// request. Matches AssignedTo in the current workflow; both are
	// kept because reject and unclaim must clear the full field set.
	ClaimedBy string `json:"claimed_by,omitempty" cbor:"claimed_by,omitempty"`

	// ClaimedAt is when the claim happened (RFC 3339 UTC).
	ClaimedAt string `json:"claimed_at,omitempty" cbor:"claimed_at,omitempty"`

	// ApprovedAt and ApprovedBy record owner approval.
	ApprovedAt string `json:"approved_at,omitempty" cbor:"approved_at,omitempty"`
	ApprovedBy string `json:"approved_by,omitempty" cbor:"approved_by,omitempty"`

	// InProgressAt is when production started.
	InProgressAt string `json:"in_progress_at,omitempty" cbor:"in_progress_at,omitempty"`

	// ShippedAt and TrackingNumber record shipment.
	ShippedAt      string `json:"shipped_at,omitempty" cbor:"shipped_at,omitempty"`
	TrackingNumber string `json:"tracking_number,omitempty" cbor:"tracking_number,omitempty"`

	// DeliveredAt is when the requester confirmed receipt.
	DeliveredAt string `json:"delivered_at,omitempty" cbor:"delivered_at,omitempty"`

	// RequestedBy is the identity key of the requester. May be empty
	// for requests filed on someone's behalf; notification fan-out
	// skips recipients it cannot address.
	RequestedBy string `json:"requested_by,omitempty" cbor:"requested_by,omitempty"`

	// Urgent flags the request for priority sorting in producer views.
	Urgent bool `json:"urgent,omitempty" cbor:"urgent,omitempty"`

	// Notes is requester-visible free text. AdminNotes is visible to
	// owners only; view projections filter it out for other roles.
	Notes      string `json:"notes,omitempty" cbor:"notes,omitempty"`
	AdminNotes string `json:"admin_notes,omitempty" cbor:"admin_notes,omitempty"`

	// SystemID scopes the request to an inventory system. Address
	// reveals carry the same SystemID so a reveal can never be
	// replayed against another system's request.
	SystemID string `json:"system_id" cbor:"system_id"`

	// RequestedAt and UpdatedAt are RFC 3339 UTC timestamps.
	RequestedAt string `json:"requested_at" cbor:"requested_at"`
	UpdatedAt   string `json:"updated_at" cbor:"updated_at"`
}

// Validate checks that all required fields are present and well-formed
// and that the assignment-field invariant holds for the status.
func (r *RequestContent) Validate() error {
	if r.Version < 1 {
		return fmt.Errorf("request: version must be >= 1, got %d", r.Version)
	}
	if r.ID == "" {
		return errors.New("request: id is required")
	}
	if r.ItemID == "" {
		return errors.New("request: item_id is required")
	}
	if r.Quantity <= 0 {
		return fmt.Errorf("request: quantity must be positive, got %d", r.Quantity)
	}
	switch {
	case r.Status == "":
		return errors.New("request: status is required")
	case !r.Status.IsKnown():
		return fmt.Errorf("request: unknown status %q", r.Status)
	}
	if r.SystemID == "" {
		return errors.New("request: system_id is required")
	}
	if r.RequestedAt == "" {
		return errors.New("request: requested_at is required")
	}
	if r.UpdatedAt == "" {
		return errors.New("request: updated_at is required")
	}
	for _, field := range []struct {
		name, value string
	}{
		{"requested_at", r.RequestedAt},
		{"updated_at", r.UpdatedAt},
		{"assigned_at", r.AssignedAt},
		{"claimed_at", r.ClaimedAt},
		{"approved_at", r.ApprovedAt},
		{"in_progress_at", r.InProgressAt},
		{"shipped_at", r.ShippedAt},
		{"delivered_at", r.DeliveredAt},
	} {
		if field.value == "" {
			continue
		}
		if _, err := time.Parse(time.RFC3339, field.value); err != nil {
			return fmt.Errorf("request: %s must be RFC 3339: %w", field.name, err)
		}
	}
	return r.checkAssignmentInvariant()
}

// checkAssignmentInvariant enforces the exactly-one-of rule: an open
// request carries no assignment or approval state, and every status
// from "claimed" onward carries an assignee. Cancelled requests may be
// in either shape depending on the status they were cancelled from.
func (r *RequestContent) checkAssignmentInvariant() error {
	switch r.Status {
	case StatusOpen:
		if r.AssignedTo != "" || r.ClaimedBy != "" || r.ApprovedBy != "" ||
			r.AssignedAt != "" || r.ClaimedAt != "" || r.ApprovedAt != "" {
			return errors.New("request: open status with stale assignment or approval fields")
		}
	case StatusClaimed, StatusPendingApproval, StatusApproved, StatusInProgress,
		StatusShipped, StatusDelivered:
		if r.AssignedTo == "" {
			return fmt.Errorf("request: status %q requires assigned_to", r.Status)
		}
	case StatusCancelled:
		// Either shape is valid.
	}
	return nil
}

// CanModify checks whether this code version can safely perform a
// read-modify-write cycle on this record. If the record's Version
// exceeds RequestContentVersion, this code does not understand all its
// fields and writing the modified struct back would silently drop the
// unknown ones. Read-only access does not require CanModify.
func (r *RequestContent) CanModify() error {
	if r.Version > RequestContentVersion {
		return fmt.Errorf(
			"request version %d exceeds supported version %d: "+
				"modification would lose fields added in newer versions",
			r.Version, RequestContentVersion,
		)
	}
	return nil
}

// ClearAssignment empties every assignment and approval field. Reject
// and unclaim both call this; clearing a subset is a defect, since a
// reassigned request would carry stale approval state into its next
// claim.
func (r *RequestContent) ClearAssignment() {
	r.AssignedTo = ""
	r.AssignedAt = ""
	r.ClaimedBy = ""
	r.ClaimedAt = ""
	r.ApprovedAt = ""
	r.ApprovedBy = ""
}

// RecordID implements the store's record interface.
func (r RequestContent) RecordID() string { return r.ID }
