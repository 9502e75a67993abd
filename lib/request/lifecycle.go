// Copyright 2026 The Workroom Authors
// SPDX-License-Identifier: Apache-2.0

package request

import (
	"context"
	"fmt"

	"github.com/workroom-foundation/workroom/lib/schema"
	"github.com/workroom-foundation/workroom/lib/store"
)

// CreateParams carries the caller-supplied fields of a new request.
type CreateParams struct {
	ItemID    string
	Quantity  int
	City      string
	StateCode string
	SystemID  string
	Urgent    bool
	Notes     string
}

// Create files a new open request. Any workspace member may file one.
// The quantity is validated against the catalog item's bounds here and
// nowhere else; later transitions trust the stored record.
func (s *Service) Create(ctx context.Context, actor string, params CreateParams) (schema.RequestContent, error) {
	const op = "create"
	if _, err := s.role(op, "", actor); err != nil {
		return schema.RequestContent{}, err
	}
	item, _, ok := store.FindByID(s.cfg.Catalog, params.ItemID)
	if !ok {
		return schema.RequestContent{}, refuse(op, "", "unknown catalog item %q", params.ItemID)
	}
	if err := item.CheckQuantity(params.Quantity); err != nil {
		return schema.RequestContent{}, refuse(op, "", "%v", err)
	}
	if params.SystemID == "" {
		return schema.RequestContent{}, refuse(op, "", "system id is required")
	}

	now := s.now()
	record := schema.RequestContent{
		Version:     schema.RequestContentVersion,
		ID:          newRequestID(),
		ItemID:      item.ID,
		ItemName:    item.Name,
		Quantity:    params.Quantity,
		City:        params.City,
		StateCode:   params.StateCode,
		Status:      schema.StatusOpen,
		RequestedBy: actor,
		Urgent:      params.Urgent,
		Notes:       params.Notes,
		SystemID:    params.SystemID,
		RequestedAt: now,
		UpdatedAt:   now,
	}
	if err := record.Validate(); err != nil {
		return schema.RequestContent{}, fmt.Errorf("request: %w", err)
	}

	role, _ := s.cfg.Roster.PermissionOf(actor)
	err := s.cfg.Doc.Transact(func() error {
		if err := s.cfg.Requests.Append(record); err != nil {
			return err
		}
		summary := fmt.Sprintf("requested %d x %s", record.Quantity, record.ItemName)
		_, err := s.cfg.Audit.Append(schema.ActionRequestCreated, record.ID, summary, actor, role)
		return err
	})
	if err != nil {
		return schema.RequestContent{}, err
	}
	return record, nil
}

// Claim assigns an open request to the acting producer. In workspaces
// with mandatory approval the request parks in pending_approval;
// otherwise it goes straight to claimed.
func (s *Service) Claim(ctx context.Context, requestID, actor string) error {
	const op = "claim"
	role, err := s.role(op, requestID, actor)
	if err != nil {
		return err
	}
	if role == schema.PermissionViewer {
		return refuse(op, requestID, "viewers cannot claim requests")
	}
	record, _, ok := store.FindByID(s.cfg.Requests, requestID)
	if !ok {
		return nil
	}
	if err := record.CanModify(); err != nil {
		return refuse(op, requestID, "%v", err)
	}
	if record.Status != schema.StatusOpen {
		return refuse(op, requestID, "status is %s, only open requests can be claimed", record.Status)
	}

	next := schema.StatusClaimed
	if s.cfg.RequireApproval {
		next = schema.StatusPendingApproval
	}
	now := s.now()

	return s.cfg.Doc.Transact(func() error {
		if _, err := store.UpdateByID(s.cfg.Requests, requestID, func(r schema.RequestContent) schema.RequestContent {
			r.Status = next
			r.AssignedTo = actor
			r.AssignedAt = now
			r.ClaimedBy = actor
			r.ClaimedAt = now
			r.UpdatedAt = now
			return r
		}); err != nil {
			return err
		}
		summary := fmt.Sprintf("claimed by %s", actor)
		if _, err := s.cfg.Audit.Append(schema.ActionRequestClaimed, requestID, summary, actor, role); err != nil {
			return err
		}
		message := fmt.Sprintf("%s claimed your request for %s", actor, record.ItemName)
		return s.notifyUnlessActor(actor, record.RequestedBy, schema.NotifyRequestClaimed, message, requestID)
	})
}

// Reject returns a claimed or pending request to the open pool,
// clearing every assignment and approval field. Owner only.
func (s *Service) Reject(ctx context.Context, requestID, actor string) error {
	const op = "reject"
	role, err := s.role(op, requestID, actor)
	if err != nil {
		return err
	}
	if role != schema.PermissionOwner {
		return refuse(op, requestID, "only owners can reject claims")
	}
	record, _, ok := store.FindByID(s.cfg.Requests, requestID)
	if !ok {
		return nil
	}
	if err := record.CanModify(); err != nil {
		return refuse(op, requestID, "%v", err)
	}
	if record.Status != schema.StatusClaimed && record.Status != schema.StatusPendingApproval {
		return refuse(op, requestID, "status is %s, only claimed or pending requests can be rejected", record.Status)
	}

	formerAssignee := record.AssignedTo
	now := s.now()

	return s.cfg.Doc.Transact(func() error {
		if _, err := store.UpdateByID(s.cfg.Requests, requestID, func(r schema.RequestContent) schema.RequestContent {
			r.Status = schema.StatusOpen
			r.ClearAssignment()
			r.UpdatedAt = now
			return r
		}); err != nil {
			return err
		}
		if err := s.cfg.Reveals.Delete(requestID); err != nil {
			return err
		}
		summary := fmt.Sprintf("claim by %s rejected", formerAssignee)
		if _, err := s.cfg.Audit.Append(schema.ActionRequestRejected, requestID, summary, actor, role); err != nil {
			return err
		}
		message := fmt.Sprintf("your claim on %s was rejected", record.ItemName)
		if err := s.notifyUnlessActor(actor, formerAssignee, schema.NotifyRequestRejected, message, requestID); err != nil {
			return err
		}
		requesterMessage := fmt.Sprintf("your request for %s is back in the open pool", record.ItemName)
		return s.notifyUnlessActor(actor, record.RequestedBy, schema.NotifyRequestRejected, requesterMessage, requestID)
	})
}

// Unclaim lets the assigned producer give a request back. Valid from
// every assigned state before shipping; clears the full assignment
// field set and removes any reveal, since the producer's address
// access ends with the assignment.
func (s *Service) Unclaim(ctx context.Context, requestID, actor string) error {
	const op = "unclaim"
	role, err := s.role(op, requestID, actor)
	if err != nil {
		return err
	}
	record, _, ok := store.FindByID(s.cfg.Requests, requestID)
	if !ok {
		return nil
	}
	if err := record.CanModify(); err != nil {
		return refuse(op, requestID, "%v", err)
	}
	switch record.Status {
	case schema.StatusClaimed, schema.StatusPendingApproval, schema.StatusApproved, schema.StatusInProgress:
	default:
		return refuse(op, requestID, "status is %s, cannot unclaim", record.Status)
	}
	if record.AssignedTo != actor {
		return refuse(op, requestID, "only the assigned producer can unclaim")
	}

	now := s.now()
	return s.cfg.Doc.Transact(func() error {
		if _, err := store.UpdateByID(s.cfg.Requests, requestID, func(r schema.RequestContent) schema.RequestContent {
			r.Status = schema.StatusOpen
			r.ClearAssignment()
			r.InProgressAt = ""
			r.UpdatedAt = now
			return r
		}); err != nil {
			return err
		}
		if err := s.cfg.Reveals.Delete(requestID); err != nil {
			return err
		}
		summary := fmt.Sprintf("unclaimed by %s", actor)
		if _, err := s.cfg.Audit.Append(schema.ActionRequestUnclaimed, requestID, summary, actor, role); err != nil {
			return err
		}
		message := fmt.Sprintf("%s released your request for %s", actor, record.ItemName)
		return s.notifyUnlessActor(actor, record.RequestedBy, schema.NotifyRequestUnclaimed, message, requestID)
	})
}

// MarkInProgress records that the assigned producer started work.
func (s *Service) MarkInProgress(ctx context.Context, requestID, actor string) error {
	const op = "mark in progress"
	role, err := s.role(op, requestID, actor)
	if err != nil {
		return err
	}
	record, _, ok := store.FindByID(s.cfg.Requests, requestID)
	if !ok {
		return nil
	}
	if err := record.CanModify(); err != nil {
		return refuse(op, requestID, "%v", err)
	}
	if record.Status != schema.StatusApproved {
		return refuse(op, requestID, "status is %s, only approved requests can start", record.Status)
	}
	if record.AssignedTo != actor {
		return refuse(op, requestID, "only the assigned producer can start work")
	}

	now := s.now()
	return s.cfg.Doc.Transact(func() error {
		if _, err := store.UpdateByID(s.cfg.Requests, requestID, func(r schema.RequestContent) schema.RequestContent {
			r.Status = schema.StatusInProgress
			r.InProgressAt = now
			r.UpdatedAt = now
			return r
		}); err != nil {
			return err
		}
		if _, err := s.cfg.Audit.Append(schema.ActionRequestInProgress, requestID, "production started", actor, role); err != nil {
			return err
		}
		message := fmt.Sprintf("production started on your request for %s", record.ItemName)
		return s.notifyUnlessActor(actor, record.RequestedBy, schema.NotifyRequestProgress, message, requestID)
	})
}

// MarkShipped records shipment. The assigned producer ships from
// in_progress; an owner may override from approved or in_progress,
// in which case the assignee is told too.
func (s *Service) MarkShipped(ctx context.Context, requestID, actor, trackingNumber string) error {
	const op = "mark shipped"
	role, err := s.role(op, requestID, actor)
	if err != nil {
		return err
	}
	record, _, ok := store.FindByID(s.cfg.Requests, requestID)
	if !ok {
		return nil
	}
	if err := record.CanModify(); err != nil {
		return refuse(op, requestID, "%v", err)
	}

	switch {
	case record.AssignedTo == actor:
		if record.Status != schema.StatusInProgress {
			return refuse(op, requestID, "status is %s, ship from in_progress", record.Status)
		}
	case role == schema.PermissionOwner:
		if record.Status != schema.StatusApproved && record.Status != schema.StatusInProgress {
			return refuse(op, requestID, "status is %s, owner override ships from approved or in_progress", record.Status)
		}
	default:
		return refuse(op, requestID, "only the assigned producer or an owner can mark shipped")
	}

	now := s.now()
	return s.cfg.Doc.Transact(func() error {
		if _, err := store.UpdateByID(s.cfg.Requests, requestID, func(r schema.RequestContent) schema.RequestContent {
			r.Status = schema.StatusShipped
			r.ShippedAt = now
			r.TrackingNumber = trackingNumber
			r.UpdatedAt = now
			return r
		}); err != nil {
			return err
		}
		summary := "shipped"
		if trackingNumber != "" {
			summary = fmt.Sprintf("shipped, tracking %s", trackingNumber)
		}
		if _, err := s.cfg.Audit.Append(schema.ActionRequestShipped, requestID, summary, actor, role); err != nil {
			return err
		}
		message := fmt.Sprintf("your request for %s has shipped", record.ItemName)
		if err := s.notifyUnlessActor(actor, record.RequestedBy, schema.NotifyRequestShipped, message, requestID); err != nil {
			return err
		}
		producerMessage := fmt.Sprintf("%s marked your assignment for %s as shipped", actor, record.ItemName)
		return s.notifyUnlessActor(actor, record.AssignedTo, schema.NotifyRequestShipped, producerMessage, requestID)
	})
}

// RevertToInProgress undoes a shipment record, clearing the shipping
// stage fields. Assigned producer or owner.
func (s *Service) RevertToInProgress(ctx context.Context, requestID, actor string) error {
	const op = "revert to in_progress"
	role, err := s.role(op, requestID, actor)
	if err != nil {
		return err
	}
	record, _, ok := store.FindByID(s.cfg.Requests, requestID)
	if !ok {
		return nil
	}
	if err := record.CanModify(); err != nil {
		return refuse(op, requestID, "%v", err)
	}
	if record.Status != schema.StatusShipped {
		return refuse(op, requestID, "status is %s, only shipped requests revert to in_progress", record.Status)
	}
	if record.AssignedTo != actor && role != schema.PermissionOwner {
		return refuse(op, requestID, "only the assigned producer or an owner can revert")
	}

	now := s.now()
	return s.cfg.Doc.Transact(func() error {
		if _, err := store.UpdateByID(s.cfg.Requests, requestID, func(r schema.RequestContent) schema.RequestContent {
			r.Status = schema.StatusInProgress
			r.ShippedAt = ""
			r.TrackingNumber = ""
			r.UpdatedAt = now
			return r
		}); err != nil {
			return err
		}
		if _, err := s.cfg.Audit.Append(schema.ActionRequestReverted, requestID, "shipment reverted", actor, role); err != nil {
			return err
		}
		message := fmt.Sprintf("shipment of your request for %s was reverted", record.ItemName)
		return s.notifyUnlessActor(actor, record.RequestedBy, schema.NotifyRequestProgress, message, requestID)
	})
}

// RevertToApproved undoes a production start, clearing the in-progress
// stage field. Assigned producer or owner.
func (s *Service) RevertToApproved(ctx context.Context, requestID, actor string) error {
	const op = "revert to approved"
	role, err := s.role(op, requestID, actor)
	if err != nil {
		return err
	}
	record, _, ok := store.FindByID(s.cfg.Requests, requestID)
	if !ok {
		return nil
	}
	if err := record.CanModify(); err != nil {
		return refuse(op, requestID, "%v", err)
	}
	if record.Status != schema.StatusInProgress {
		return refuse(op, requestID, "status is %s, only in_progress requests revert to approved", record.Status)
	}
	if record.AssignedTo != actor && role != schema.PermissionOwner {
		return refuse(op, requestID, "only the assigned producer or an owner can revert")
	}

	now := s.now()
	return s.cfg.Doc.Transact(func() error {
		if _, err := store.UpdateByID(s.cfg.Requests, requestID, func(r schema.RequestContent) schema.RequestContent {
			r.Status = schema.StatusApproved
			r.InProgressAt = ""
			r.UpdatedAt = now
			return r
		}); err != nil {
			return err
		}
		if _, err := s.cfg.Audit.Append(schema.ActionRequestReverted, requestID, "production start reverted", actor, role); err != nil {
			return err
		}
		message := fmt.Sprintf("work on your request for %s was reverted to approved", record.ItemName)
		return s.notifyUnlessActor(actor, record.RequestedBy, schema.NotifyRequestProgress, message, requestID)
	})
}

// Cancel withdraws a request before any shipment exists. The requester
// may cancel their own; owners may cancel any. Removes the reveal and
// any pending address, since nobody will ship.
func (s *Service) Cancel(ctx context.Context, requestID, actor string) error {
	const op = "cancel"
	role, err := s.role(op, requestID, actor)
	if err != nil {
		return err
	}
	record, _, ok := store.FindByID(s.cfg.Requests, requestID)
	if !ok {
		return nil
	}
	if err := record.CanModify(); err != nil {
		return refuse(op, requestID, "%v", err)
	}
	switch record.Status {
	case schema.StatusOpen, schema.StatusClaimed, schema.StatusPendingApproval:
	default:
		return refuse(op, requestID, "status is %s, cannot cancel", record.Status)
	}
	if record.RequestedBy != actor && role != schema.PermissionOwner {
		return refuse(op, requestID, "only the requester or an owner can cancel")
	}

	now := s.now()
	return s.cfg.Doc.Transact(func() error {
		if _, err := store.UpdateByID(s.cfg.Requests, requestID, func(r schema.RequestContent) schema.RequestContent {
			r.Status = schema.StatusCancelled
			r.UpdatedAt = now
			return r
		}); err != nil {
			return err
		}
		if err := s.cfg.Reveals.Delete(requestID); err != nil {
			return err
		}
		if err := s.cfg.PendingAddresses.Delete(requestID); err != nil {
			return err
		}
		if _, err := s.cfg.Audit.Append(schema.ActionRequestCancelled, requestID, "request cancelled", actor, role); err != nil {
			return err
		}
		message := fmt.Sprintf("the request for %s was cancelled", record.ItemName)
		if err := s.notifyUnlessActor(actor, record.RequestedBy, schema.NotifyRequestCancelled, message, requestID); err != nil {
			return err
		}
		return s.notifyUnlessActor(actor, record.AssignedTo, schema.NotifyRequestCancelled, message, requestID)
	})
}

// ConfirmDelivered closes the loop: the original requester confirms
// receipt of a shipped request. The reveal is removed; the producer's
// address access ends when the request reaches a terminal state.
func (s *Service) ConfirmDelivered(ctx context.Context, requestID, actor string) error {
	const op = "confirm delivered"
	role, err := s.role(op, requestID, actor)
	if err != nil {
		return err
	}
	record, _, ok := store.FindByID(s.cfg.Requests, requestID)
	if !ok {
		return nil
	}
	if err := record.CanModify(); err != nil {
		return refuse(op, requestID, "%v", err)
	}
	if record.Status != schema.StatusShipped {
		return refuse(op, requestID, "status is %s, only shipped requests can be confirmed delivered", record.Status)
	}
	if record.RequestedBy != actor {
		return refuse(op, requestID, "only the original requester can confirm delivery")
	}

	now := s.now()
	return s.cfg.Doc.Transact(func() error {
		if _, err := store.UpdateByID(s.cfg.Requests, requestID, func(r schema.RequestContent) schema.RequestContent {
			r.Status = schema.StatusDelivered
			r.DeliveredAt = now
			r.UpdatedAt = now
			return r
		}); err != nil {
			return err
		}
		if err := s.cfg.Reveals.Delete(requestID); err != nil {
			return err
		}
		if _, err := s.cfg.Audit.Append(schema.ActionRequestDelivered, requestID, "delivery confirmed", actor, role); err != nil {
			return err
		}
		message := fmt.Sprintf("delivery of %s was confirmed", record.ItemName)
		return s.notifyUnlessActor(actor, record.AssignedTo, schema.NotifyRequestDelivered, message, requestID)
	})
}
