// Copyright 2026 The Workroom Authors
// SPDX-License-Identifier: Apache-2.0

package schema

import "errors"

// AddressRevealContent is an encrypted shipping address handed to one
// specific producer after owner approval. Stored in a shared map keyed
// by request id; a new set overwrites, so at most one reveal exists
// per request at any time.
//
// Lifecycle: created only when a request transitions into an
// approved-with-assignee state; deleted when the request is unclaimed,
// rejected, or cancelled, and when it reaches a terminal state.
type AddressRevealContent struct {
	// RequestID is the request this reveal belongs to. Matches the
	// map key.
	RequestID string `json:"request_id" cbor:"request_id"`

	// SystemID scopes the reveal to an inventory system. Must match
	// the request's SystemID; a mismatch means the reveal was written
	// against the wrong system and must not be decrypted.
	SystemID string `json:"system_id" cbor:"system_id"`

	// Ciphertext and Nonce are the sealed address as produced by the
	// crypto provider. Base64 over the raw box output.
	Ciphertext string `json:"ciphertext" cbor:"ciphertext"`
	Nonce      string `json:"nonce" cbor:"nonce"`

	// SenderKey is the hex public key of the party who sealed the
	// address, needed by the recipient to open the box.
	SenderKey string `json:"sender_key" cbor:"sender_key"`

	// ProducerConfirmed is set by the assigned producer once they have
	// decrypted and recorded the address locally.
	ProducerConfirmed bool `json:"producer_confirmed" cbor:"producer_confirmed"`

	// CreatedAt is an RFC 3339 UTC timestamp.
	CreatedAt string `json:"created_at" cbor:"created_at"`
}

// Validate checks that all required fields are present.
func (a *AddressRevealContent) Validate() error {
	if a.RequestID == "" {
		return errors.New("address reveal: request_id is required")
	}
	if a.SystemID == "" {
		return errors.New("address reveal: system_id is required")
	}
	if a.Ciphertext == "" {
		return errors.New("address reveal: ciphertext is required")
	}
	if a.Nonce == "" {
		return errors.New("address reveal: nonce is required")
	}
	if a.SenderKey == "" {
		return errors.New("address reveal: sender_key is required")
	}
	return nil
}

// PendingAddressContent is a transitional encrypted address stored
// when the party who submitted it is not the party who will decrypt it.
// It is a single-use handoff: the first owner approval that consumes it
// must decrypt it, persist the plaintext to the local vault, and delete
// this entry. A consumed pending address left in the map is a defect.
type PendingAddressContent struct {
	// RequestID is the request the address was submitted for. Matches
	// the map key.
	RequestID string `json:"request_id" cbor:"request_id"`

	// SystemID scopes the entry to an inventory system.
	SystemID string `json:"system_id" cbor:"system_id"`

	// Ciphertext and Nonce are the sealed address, encrypted to the
	// workspace owner key.
	Ciphertext string `json:"ciphertext" cbor:"ciphertext"`
	Nonce      string `json:"nonce" cbor:"nonce"`

	// SenderKey is the hex public key of the submitter.
	SenderKey string `json:"sender_key" cbor:"sender_key"`

	// CreatedAt is an RFC 3339 UTC timestamp.
	CreatedAt string `json:"created_at" cbor:"created_at"`
}

// Validate checks that all required fields are present.
func (p *PendingAddressContent) Validate() error {
	if p.RequestID == "" {
		return errors.New("pending address: request_id is required")
	}
	if p.SystemID == "" {
		return errors.New("pending address: system_id is required")
	}
	if p.Ciphertext == "" {
		return errors.New("pending address: ciphertext is required")
	}
	if p.Nonce == "" {
		return errors.New("pending address: nonce is required")
	}
	if p.SenderKey == "" {
		return errors.New("pending address: sender_key is required")
	}
	return nil
}
