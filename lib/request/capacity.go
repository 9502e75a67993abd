// Copyright 2026 The Workroom Authors
// SPDX-License-Identifier: Apache-2.0

package request

import (
	"github.com/workroom-foundation/workroom/lib/schema"
	"github.com/workroom-foundation/workroom/lib/store"
)

// DeclareCapacity replaces the actor's declared stock and production
// rates. Producers declare only for themselves; there is no declaring
// on someone else's behalf. The map is keyed by producer identity, so
// a re-declaration overwrites the previous one whole.
func (s *Service) DeclareCapacity(actor string, items map[string]schema.ItemCapacity) error {
	const op = "declare capacity"
	if s.cfg.Capacities == nil {
		return refuse(op, actor, "capacity tracking is not enabled in this workspace")
	}
	role, err := s.role(op, actor, actor)
	if err != nil {
		return err
	}
	if role == schema.PermissionViewer {
		return refuse(op, actor, "viewers cannot declare capacity")
	}

	for itemID := range items {
		if _, _, ok := store.FindByID(s.cfg.Catalog, itemID); !ok {
			return refuse(op, actor, "unknown catalog item %q", itemID)
		}
	}

	content := schema.CapacityContent{
		Producer:  actor,
		Items:     items,
		UpdatedAt: s.now(),
	}
	if err := content.Validate(); err != nil {
		return refuse(op, actor, "%v", err)
	}
	return s.cfg.Capacities.Set(actor, content)
}

// Capacity returns the producer's declared capacity, if any. Lookup is
// by key; the capacities map is never scanned.
func (s *Service) Capacity(producer string) (schema.CapacityContent, bool) {
	if s.cfg.Capacities == nil {
		return schema.CapacityContent{}, false
	}
	return s.cfg.Capacities.Get(producer)
}
