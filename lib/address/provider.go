// Copyright 2026 The Workroom Authors
// SPDX-License-Identifier: Apache-2.0

// Package address is the crypto boundary for shipping addresses. The
// workflow core treats addresses as opaque: it moves sealed boxes
// between parties and stores plaintext only in the local vault, never
// in the shared document. All key handling lives behind [Provider] so
// the state machine can be tested with a fake that does no real
// cryptography.
package address

// Box is a sealed payload as it appears in shared document records:
// base64 over the raw authenticated-encryption output.
type Box struct {
	Ciphertext string
	Nonce      string
}

// Provider performs the asymmetric operations the workflow needs. Key
// material is an opaque byte slice owned by the caller; the production
// implementation interprets it as a raw x25519 private key.
type Provider interface {
	// PublicKeyHex derives the hex-encoded public key for the given
	// key material.
	PublicKeyHex(keyMaterial []byte) (string, error)

	// Base62ToHex converts a base62-encoded public key (the compact
	// form identity keys circulate in) to the hex form the other
	// methods take.
	Base62ToHex(key string) (string, error)

	// EncryptForRecipient seals plaintext so that only the holder of
	// the private key matching recipientKeyHex can open it.
	EncryptForRecipient(keyMaterial []byte, recipientKeyHex string, plaintext []byte) (Box, error)

	// Decrypt opens a box sealed by the holder of senderKeyHex for the
	// holder of keyMaterial.
	Decrypt(keyMaterial []byte, senderKeyHex string, sealed Box) ([]byte, error)
}
