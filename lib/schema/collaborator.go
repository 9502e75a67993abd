// Copyright 2026 The Workroom Authors
// SPDX-License-Identifier: Apache-2.0

package schema

import (
	"errors"
	"fmt"
)

// CollaboratorEntry is one member of the workspace roster. The
// lifecycle state machine resolves actor roles exclusively through
// this registry.
type CollaboratorEntry struct {
	// IdentityKey is the collaborator's public identity key.
	IdentityKey string `json:"identity_key" cbor:"identity_key"`

	// DisplayName is the name shown in listings and mentions.
	DisplayName string `json:"display_name,omitempty" cbor:"display_name,omitempty"`

	// Permission is owner, editor, or viewer. See Permission.
	Permission Permission `json:"permission" cbor:"permission"`
}

// Validate checks that the entry has an identity key and a known
// permission.
func (c *CollaboratorEntry) Validate() error {
	if c.IdentityKey == "" {
		return errors.New("collaborator: identity_key is required")
	}
	switch {
	case c.Permission == "":
		return errors.New("collaborator: permission is required")
	case !c.Permission.IsKnown():
		return fmt.Errorf("collaborator: unknown permission %q", c.Permission)
	}
	return nil
}

// Roster is the collaborator registry keyed by identity. It is a read
// projection of the workspace membership; the state machine consults
// it for every permission check.
type Roster map[string]CollaboratorEntry

// NewRoster builds a Roster from a list of entries. Later duplicates
// of the same identity key overwrite earlier ones.
func NewRoster(entries []CollaboratorEntry) Roster {
	roster := make(Roster, len(entries))
	for _, entry := range entries {
		roster[entry.IdentityKey] = entry
	}
	return roster
}

// PermissionOf returns the permission held by the given identity, or
// false when the identity is not a workspace member.
func (r Roster) PermissionOf(identityKey string) (Permission, bool) {
	entry, ok := r[identityKey]
	if !ok {
		return "", false
	}
	return entry.Permission, true
}
