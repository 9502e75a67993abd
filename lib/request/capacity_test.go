// Copyright 2026 The Workroom Authors
// SPDX-License-Identifier: Apache-2.0

package request

import (
	"testing"

	"github.com/workroom-foundation/workroom/lib/schema"
)

func TestDeclareCapacity(t *testing.T) {
	f := newFixture(t, false)

	err := f.svc.DeclareCapacity(producerKey, map[string]schema.ItemCapacity{
		"water-6pack": {Stock: 40, DailyRate: 12},
	})
	if err != nil {
		t.Fatalf("DeclareCapacity: %v", err)
	}

	got, ok := f.svc.Capacity(producerKey)
	if !ok {
		t.Fatal("capacity not stored")
	}
	if got.Items["water-6pack"].Stock != 40 || got.UpdatedAt != "2026-09-01T10:00:00Z" {
		t.Fatalf("stored capacity: %+v", got)
	}
}

func TestDeclareCapacityReplacesWhole(t *testing.T) {
	f := newFixture(t, false)

	if err := f.svc.DeclareCapacity(producerKey, map[string]schema.ItemCapacity{
		"water-6pack": {Stock: 40, DailyRate: 12},
	}); err != nil {
		t.Fatal(err)
	}
	if err := f.svc.DeclareCapacity(producerKey, map[string]schema.ItemCapacity{
		"water-6pack": {Stock: 5},
	}); err != nil {
		t.Fatal(err)
	}

	got, _ := f.svc.Capacity(producerKey)
	if item := got.Items["water-6pack"]; item.Stock != 5 || item.DailyRate != 0 {
		t.Fatalf("re-declaration did not replace: %+v", item)
	}
}

func TestDeclareCapacityRefusesViewer(t *testing.T) {
	f := newFixture(t, false)

	err := f.svc.DeclareCapacity(requesterKey, map[string]schema.ItemCapacity{
		"water-6pack": {Stock: 1},
	})
	if !isPrecondition(err) {
		t.Fatalf("viewer declaration: %v", err)
	}
}

func TestDeclareCapacityRefusesUnknownItem(t *testing.T) {
	f := newFixture(t, false)

	err := f.svc.DeclareCapacity(producerKey, map[string]schema.ItemCapacity{
		"no-such-item": {Stock: 1},
	})
	if !isPrecondition(err) {
		t.Fatalf("unknown item: %v", err)
	}
	if _, ok := f.svc.Capacity(producerKey); ok {
		t.Fatal("refused declaration was stored")
	}
}

func TestCapacityMissingProducer(t *testing.T) {
	f := newFixture(t, false)
	if _, ok := f.svc.Capacity(producer2Key); ok {
		t.Fatal("capacity reported for producer who never declared")
	}
}
