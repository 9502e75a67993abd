// Copyright 2026 The Workroom Authors
// SPDX-License-Identifier: Apache-2.0

package schema

import (
	"errors"
	"fmt"
)

// CapacityContent is one producer's declared stock and production
// rates, stored in a shared map keyed by producer identity. Access is
// always by key lookup; the map shape exists precisely so capacity
// checks never scan.
type CapacityContent struct {
	// Producer is the producer's identity key. Matches the map key.
	Producer string `json:"producer" cbor:"producer"`

	// Items maps catalog item id to declared capacity for that item.
	Items map[string]ItemCapacity `json:"items,omitempty" cbor:"items,omitempty"`

	// UpdatedAt is an RFC 3339 UTC timestamp.
	UpdatedAt string `json:"updated_at" cbor:"updated_at"`
}

// ItemCapacity is the declared stock level and daily production rate
// for a single catalog item.
type ItemCapacity struct {
	// Stock is the quantity currently on hand.
	Stock int `json:"stock" cbor:"stock"`

	// DailyRate is the quantity the producer can make per day.
	DailyRate int `json:"daily_rate" cbor:"daily_rate"`
}

// Validate checks that all required fields are present and no declared
// quantity is negative.
func (c *CapacityContent) Validate() error {
	if c.Producer == "" {
		return errors.New("capacity: producer is required")
	}
	for itemID, capacity := range c.Items {
		if itemID == "" {
			return errors.New("capacity: empty item id")
		}
		if capacity.Stock < 0 {
			return fmt.Errorf("capacity: %s: stock must be >= 0, got %d", itemID, capacity.Stock)
		}
		if capacity.DailyRate < 0 {
			return fmt.Errorf("capacity: %s: daily_rate must be >= 0, got %d", itemID, capacity.DailyRate)
		}
	}
	return nil
}
