// Copyright 2026 The Workroom Authors
// SPDX-License-Identifier: Apache-2.0

package address

import (
	"fmt"
	"math/big"
	"strings"
)

// base62Alphabet is the digit set identity keys circulate in:
// 0-9, A-Z, a-z, most significant digit first.
const base62Alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

// Base62ToHex converts a base62-encoded 32-byte public key to its hex
// form, left-padded with zeros to the full key width.
func (NaclProvider) Base62ToHex(key string) (string, error) {
	if key == "" {
		return "", fmt.Errorf("address: empty base62 key")
	}
	value := new(big.Int)
	base := big.NewInt(62)
	for _, r := range key {
		digit := strings.IndexRune(base62Alphabet, r)
		if digit < 0 {
			return "", fmt.Errorf("address: invalid base62 digit %q", r)
		}
		value.Mul(value, base)
		value.Add(value, big.NewInt(int64(digit)))
	}
	raw := value.Bytes()
	if len(raw) > 32 {
		return "", fmt.Errorf("address: base62 key decodes to %d bytes, limit 32", len(raw))
	}
	padded := make([]byte, 32)
	copy(padded[32-len(raw):], raw)
	return fmt.Sprintf("%x", padded), nil
}
