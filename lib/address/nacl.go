// Copyright 2026 The Workroom Authors
// SPDX-License-Identifier: Apache-2.0

package address

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"

	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/nacl/box"
)

// NaclProvider implements Provider with NaCl box encryption: x25519
// key agreement and xsalsa20-poly1305 sealing. Key material is a raw
// 32-byte x25519 private key.
type NaclProvider struct{}

var _ Provider = NaclProvider{}

// ErrBadKeyMaterial reports key material that is not a 32-byte private
// key.
var ErrBadKeyMaterial = errors.New("address: key material must be 32 bytes")

// PublicKeyHex derives the hex public key for the given private key.
func (NaclProvider) PublicKeyHex(keyMaterial []byte) (string, error) {
	if len(keyMaterial) != 32 {
		return "", ErrBadKeyMaterial
	}
	public, err := curve25519.X25519(keyMaterial, curve25519.Basepoint)
	if err != nil {
		return "", fmt.Errorf("address: deriving public key: %w", err)
	}
	return hex.EncodeToString(public), nil
}

// EncryptForRecipient seals plaintext with a fresh random nonce.
func (NaclProvider) EncryptForRecipient(keyMaterial []byte, recipientKeyHex string, plaintext []byte) (Box, error) {
	private, err := toKey(keyMaterial)
	if err != nil {
		return Box{}, err
	}
	recipient, err := decodeKeyHex(recipientKeyHex)
	if err != nil {
		return Box{}, err
	}

	var nonce [24]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return Box{}, fmt.Errorf("address: generating nonce: %w", err)
	}
	sealed := box.Seal(nil, plaintext, &nonce, recipient, private)
	return Box{
		Ciphertext: base64.StdEncoding.EncodeToString(sealed),
		Nonce:      base64.StdEncoding.EncodeToString(nonce[:]),
	}, nil
}

// Decrypt opens a box sealed for the holder of keyMaterial.
func (NaclProvider) Decrypt(keyMaterial []byte, senderKeyHex string, sealed Box) ([]byte, error) {
	private, err := toKey(keyMaterial)
	if err != nil {
		return nil, err
	}
	sender, err := decodeKeyHex(senderKeyHex)
	if err != nil {
		return nil, err
	}
	ciphertext, err := base64.StdEncoding.DecodeString(sealed.Ciphertext)
	if err != nil {
		return nil, fmt.Errorf("address: decoding ciphertext: %w", err)
	}
	nonceBytes, err := base64.StdEncoding.DecodeString(sealed.Nonce)
	if err != nil {
		return nil, fmt.Errorf("address: decoding nonce: %w", err)
	}
	if len(nonceBytes) != 24 {
		return nil, fmt.Errorf("address: nonce is %d bytes, want 24", len(nonceBytes))
	}
	var nonce [24]byte
	copy(nonce[:], nonceBytes)

	plaintext, ok := box.Open(nil, ciphertext, &nonce, sender, private)
	if !ok {
		return nil, errors.New("address: box authentication failed")
	}
	return plaintext, nil
}

func toKey(keyMaterial []byte) (*[32]byte, error) {
	if len(keyMaterial) != 32 {
		return nil, ErrBadKeyMaterial
	}
	var key [32]byte
	copy(key[:], keyMaterial)
	return &key, nil
}

func decodeKeyHex(keyHex string) (*[32]byte, error) {
	raw, err := hex.DecodeString(keyHex)
	if err != nil {
		return nil, fmt.Errorf("address: decoding public key: %w", err)
	}
	if len(raw) != 32 {
		return nil, fmt.Errorf("address: public key is %d bytes, want 32", len(raw))
	}
	var key [32]byte
	copy(key[:], raw)
	return &key, nil
}
