// Copyright 2026 The Workroom Authors
// SPDX-License-Identifier: Apache-2.0

package request

import (
	"context"
	"errors"
	"fmt"

	"github.com/workroom-foundation/workroom/lib/address"
	"github.com/workroom-foundation/workroom/lib/schema"
	"github.com/workroom-foundation/workroom/lib/store"
)

// Approve accepts a claim. Owner only, from claimed or
// pending_approval. Approval also hands the shipping address to the
// assigned producer: the plaintext is fetched from the vault (or
// recovered from the single-use pending-address handoff), re-encrypted
// for the producer, and written as the request's reveal.
//
// Reveal creation is best-effort: a crypto or vault failure is logged
// and the approval stands without a reveal, so a missing local key
// never blocks the workflow. A request with no assignee (possible only
// through a merged update that cleared it) is approved without any
// crypto call.
func (s *Service) Approve(ctx context.Context, requestID, actor string, actorKey []byte) error {
	const op = "approve"
	role, err := s.role(op, requestID, actor)
	if err != nil {
		return err
	}
	if role != schema.PermissionOwner {
		return refuse(op, requestID, "only owners can approve claims")
	}
	record, _, ok := store.FindByID(s.cfg.Requests, requestID)
	if !ok {
		return nil
	}
	if err := record.CanModify(); err != nil {
		return refuse(op, requestID, "%v", err)
	}
	if record.Status != schema.StatusClaimed && record.Status != schema.StatusPendingApproval {
		return refuse(op, requestID, "status is %s, only claimed or pending requests can be approved", record.Status)
	}

	now := s.now()
	return s.cfg.Doc.Transact(func() error {
		if _, err := store.UpdateByID(s.cfg.Requests, requestID, func(r schema.RequestContent) schema.RequestContent {
			r.Status = schema.StatusApproved
			r.ApprovedAt = now
			r.ApprovedBy = actor
			r.UpdatedAt = now
			return r
		}); err != nil {
			return err
		}

		if record.AssignedTo != "" {
			if err := s.createReveal(ctx, record, actorKey, now); err != nil {
				s.logger.Warn("approval stands without reveal",
					"request", requestID,
					"assignee", record.AssignedTo,
					"error", err,
				)
			}
		}

		summary := fmt.Sprintf("claim by %s approved", record.AssignedTo)
		if _, err := s.cfg.Audit.Append(schema.ActionRequestApproved, requestID, summary, actor, role); err != nil {
			return err
		}
		message := fmt.Sprintf("your claim on %s was approved", record.ItemName)
		return s.notifyUnlessActor(actor, record.AssignedTo, schema.NotifyRequestApproved, message, requestID)
	})
}

// createReveal builds and stores the encrypted address reveal for the
// request's assignee.
func (s *Service) createReveal(ctx context.Context, record schema.RequestContent, actorKey []byte, now string) error {
	if s.cfg.Vault == nil || s.cfg.Provider == nil {
		return errors.New("no vault or crypto provider configured")
	}

	plaintext, err := s.plaintextAddress(ctx, record, actorKey)
	if err != nil {
		return err
	}

	recipientHex, err := s.cfg.Provider.Base62ToHex(record.AssignedTo)
	if err != nil {
		return fmt.Errorf("converting assignee key: %w", err)
	}
	senderHex, err := s.cfg.Provider.PublicKeyHex(actorKey)
	if err != nil {
		return fmt.Errorf("deriving sender key: %w", err)
	}
	sealed, err := s.cfg.Provider.EncryptForRecipient(actorKey, recipientHex, plaintext)
	if err != nil {
		return fmt.Errorf("sealing address: %w", err)
	}

	reveal := schema.AddressRevealContent{
		RequestID:  record.ID,
		SystemID:   record.SystemID,
		Ciphertext: sealed.Ciphertext,
		Nonce:      sealed.Nonce,
		SenderKey:  senderHex,
		CreatedAt:  now,
	}
	if err := reveal.Validate(); err != nil {
		return err
	}
	return s.cfg.Reveals.Set(record.ID, reveal)
}

// plaintextAddress obtains the shipping address: vault first, then the
// single-use pending-address handoff. Consuming a pending address
// persists the plaintext to the vault and deletes the shared entry in
// the same step; a consumed handoff left in the map would let it be
// consumed twice.
func (s *Service) plaintextAddress(ctx context.Context, record schema.RequestContent, actorKey []byte) ([]byte, error) {
	plaintext, err := s.cfg.Vault.GetAddress(ctx, actorKey, record.SystemID, record.ID)
	if err == nil {
		return plaintext, nil
	}
	if !errors.Is(err, address.ErrNotFound) {
		return nil, fmt.Errorf("vault lookup: %w", err)
	}

	pending, ok := s.cfg.PendingAddresses.Get(record.ID)
	if !ok {
		return nil, errors.New("no address in vault and no pending handoff")
	}
	if pending.SystemID != record.SystemID {
		return nil, fmt.Errorf("pending address is for system %s, request is in %s", pending.SystemID, record.SystemID)
	}
	plaintext, err = s.cfg.Provider.Decrypt(actorKey, pending.SenderKey, address.Box{
		Ciphertext: pending.Ciphertext,
		Nonce:      pending.Nonce,
	})
	if err != nil {
		return nil, fmt.Errorf("opening pending address: %w", err)
	}
	if err := s.cfg.Vault.StoreAddress(ctx, actorKey, record.SystemID, record.ID, plaintext); err != nil {
		return nil, fmt.Errorf("persisting pending address: %w", err)
	}
	if err := s.cfg.PendingAddresses.Delete(record.ID); err != nil {
		return nil, err
	}
	return plaintext, nil
}

// ConfirmRevealReceived is the assigned producer acknowledging that
// they decrypted and recorded the revealed address. Only the assignee
// may confirm, and only while the reveal exists.
func (s *Service) ConfirmRevealReceived(ctx context.Context, requestID, actor string) error {
	const op = "confirm reveal"
	if _, err := s.role(op, requestID, actor); err != nil {
		return err
	}
	record, _, ok := store.FindByID(s.cfg.Requests, requestID)
	if !ok {
		return nil
	}
	if record.AssignedTo != actor {
		return refuse(op, requestID, "only the assigned producer can confirm the reveal")
	}
	reveal, ok := s.cfg.Reveals.Get(requestID)
	if !ok {
		return refuse(op, requestID, "no reveal exists")
	}
	if reveal.ProducerConfirmed {
		return nil
	}
	reveal.ProducerConfirmed = true
	return s.cfg.Reveals.Set(requestID, reveal)
}
