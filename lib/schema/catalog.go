// Copyright 2026 The Workroom Authors
// SPDX-License-Identifier: Apache-2.0

package schema

import (
	"errors"
	"fmt"
)

// CatalogItemContent describes one orderable item. Requests denormalize
// the name at creation time and validate quantity against the bounds
// here; after creation the record stands alone.
type CatalogItemContent struct {
	// ID uniquely identifies the item.
	ID string `json:"id" cbor:"id"`

	// Name is the display name.
	Name string `json:"name" cbor:"name"`

	// Unit is the quantity unit shown next to amounts ("bottles",
	// "boxes"). Optional.
	Unit string `json:"unit,omitempty" cbor:"unit,omitempty"`

	// MinQuantity, MaxQuantity, and QuantityStep bound request
	// quantities: min <= q <= max and (q - min) divisible by step.
	// A zero MaxQuantity means unbounded above. A zero QuantityStep
	// means any integer step.
	MinQuantity  int `json:"min_quantity,omitempty" cbor:"min_quantity,omitempty"`
	MaxQuantity  int `json:"max_quantity,omitempty" cbor:"max_quantity,omitempty"`
	QuantityStep int `json:"quantity_step,omitempty" cbor:"quantity_step,omitempty"`
}

// Validate checks that the bounds are coherent.
func (c *CatalogItemContent) Validate() error {
	if c.ID == "" {
		return errors.New("catalog item: id is required")
	}
	if c.Name == "" {
		return errors.New("catalog item: name is required")
	}
	if c.MinQuantity < 0 || c.MaxQuantity < 0 || c.QuantityStep < 0 {
		return errors.New("catalog item: quantity bounds must be >= 0")
	}
	if c.MaxQuantity > 0 && c.MinQuantity > c.MaxQuantity {
		return fmt.Errorf("catalog item: min_quantity %d exceeds max_quantity %d",
			c.MinQuantity, c.MaxQuantity)
	}
	return nil
}

// CheckQuantity reports whether q is a valid request quantity for this
// item.
func (c *CatalogItemContent) CheckQuantity(q int) error {
	if q <= 0 {
		return fmt.Errorf("quantity must be positive, got %d", q)
	}
	if c.MinQuantity > 0 && q < c.MinQuantity {
		return fmt.Errorf("quantity %d below minimum %d for %s", q, c.MinQuantity, c.ID)
	}
	if c.MaxQuantity > 0 && q > c.MaxQuantity {
		return fmt.Errorf("quantity %d above maximum %d for %s", q, c.MaxQuantity, c.ID)
	}
	if c.QuantityStep > 1 && (q-c.MinQuantity)%c.QuantityStep != 0 {
		return fmt.Errorf("quantity %d not reachable from %d in steps of %d",
			q, c.MinQuantity, c.QuantityStep)
	}
	return nil
}

// RecordID implements the store's record interface.
func (c CatalogItemContent) RecordID() string { return c.ID }
