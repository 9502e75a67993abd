// Copyright 2026 The Workroom Authors
// SPDX-License-Identifier: Apache-2.0

package request

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/workroom-foundation/workroom/lib/address"
	"github.com/workroom-foundation/workroom/lib/audit"
	"github.com/workroom-foundation/workroom/lib/clock"
	"github.com/workroom-foundation/workroom/lib/notify"
	"github.com/workroom-foundation/workroom/lib/schema"
	"github.com/workroom-foundation/workroom/lib/store"
)

const (
	ownerKey     = "2NVqkV1hT3owner"
	producerKey  = "2NVqkV1hT3prod"
	producer2Key = "2NVqkV1hT3prod2"
	requesterKey = "2NVqkV1hT3reqr"
)

var ownerSecret = []byte("owner-key-material")

// fakeProvider does reversible string mangling instead of real
// cryptography so tests can inspect every step.
type fakeProvider struct {
	failEncrypt bool
	failDecrypt bool
	calls       int
}

func (p *fakeProvider) PublicKeyHex(keyMaterial []byte) (string, error) {
	p.calls++
	return "pub:" + string(keyMaterial), nil
}

func (p *fakeProvider) Base62ToHex(key string) (string, error) {
	p.calls++
	return "hex:" + key, nil
}

func (p *fakeProvider) EncryptForRecipient(keyMaterial []byte, recipientKeyHex string, plaintext []byte) (address.Box, error) {
	p.calls++
	if p.failEncrypt {
		return address.Box{}, errors.New("fake encrypt failure")
	}
	return address.Box{
		Ciphertext: "sealed:" + recipientKeyHex + ":" + string(plaintext),
		Nonce:      "nonce",
	}, nil
}

func (p *fakeProvider) Decrypt(keyMaterial []byte, senderKeyHex string, sealed address.Box) ([]byte, error) {
	p.calls++
	if p.failDecrypt {
		return nil, errors.New("fake decrypt failure")
	}
	parts := strings.SplitN(sealed.Ciphertext, ":", 4)
	if len(parts) != 4 || parts[0] != "sealed" || parts[1] != "hex" {
		return nil, errors.New("fake box malformed")
	}
	return []byte(parts[3]), nil
}

// fakeVault is an in-memory AddressStore.
type fakeVault struct {
	entries map[string][]byte
}

func newFakeVault() *fakeVault {
	return &fakeVault{entries: make(map[string][]byte)}
}

func (v *fakeVault) key(keyMaterial []byte, systemID, requestID string) string {
	return fmt.Sprintf("%s|%s|%s", keyMaterial, systemID, requestID)
}

func (v *fakeVault) GetAddress(_ context.Context, keyMaterial []byte, systemID, requestID string) ([]byte, error) {
	addr, ok := v.entries[v.key(keyMaterial, systemID, requestID)]
	if !ok {
		return nil, address.ErrNotFound
	}
	return addr, nil
}

func (v *fakeVault) StoreAddress(_ context.Context, keyMaterial []byte, systemID, requestID string, addr []byte) error {
	v.entries[v.key(keyMaterial, systemID, requestID)] = addr
	return nil
}

type fixture struct {
	doc      *store.Doc
	requests *store.Array[schema.RequestContent]
	reveals  *store.Map[schema.AddressRevealContent]
	pending  *store.Map[schema.PendingAddressContent]
	notifier *notify.Notifier
	auditLog *audit.Log
	vault    *fakeVault
	provider *fakeProvider
	clk      *clock.FakeClock
	svc      *Service
}

func newFixture(t *testing.T, requireApproval bool) *fixture {
	t.Helper()
	doc := store.NewDoc(nil)
	requests := store.NewArray[schema.RequestContent](doc, "requests")
	catalog := store.NewArray[schema.CatalogItemContent](doc, "catalog")
	reveals := store.NewMap[schema.AddressRevealContent](doc, "reveals")
	pending := store.NewMap[schema.PendingAddressContent](doc, "pending_addresses")
	notifications := store.NewArray[schema.NotificationContent](doc, "notifications")
	auditEntries := store.NewArray[schema.AuditEntryContent](doc, "audit")
	capacities := store.NewMap[schema.CapacityContent](doc, "capacities")

	clk := clock.Fake(time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC))
	notifier := notify.New(doc, notifications, clk, nil)
	auditLog := audit.New(auditEntries, clk, nil)
	vault := newFakeVault()
	provider := &fakeProvider{}

	if err := catalog.Append(schema.CatalogItemContent{
		ID:          "water-6pack",
		Name:        "Water (6 pack)",
		MinQuantity: 1,
		MaxQuantity: 10,
	}); err != nil {
		t.Fatal(err)
	}

	roster := schema.NewRoster([]schema.CollaboratorEntry{
		{IdentityKey: ownerKey, DisplayName: "Olive", Permission: schema.PermissionOwner},
		{IdentityKey: producerKey, DisplayName: "Pat", Permission: schema.PermissionEditor},
		{IdentityKey: producer2Key, DisplayName: "Quinn", Permission: schema.PermissionEditor},
		{IdentityKey: requesterKey, DisplayName: "Rory", Permission: schema.PermissionViewer},
	})

	svc, err := New(Config{
		Doc:              doc,
		Requests:         requests,
		Catalog:          catalog,
		Reveals:          reveals,
		PendingAddresses: pending,
		Notifier:         notifier,
		Audit:            auditLog,
		Capacities:       capacities,
		Vault:            vault,
		Provider:         provider,
		Roster:           roster,
		Clock:            clk,
		RequireApproval:  requireApproval,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return &fixture{
		doc: doc, requests: requests, reveals: reveals, pending: pending,
		notifier: notifier, auditLog: auditLog, vault: vault,
		provider: provider, clk: clk, svc: svc,
	}
}

// create files a standard request from the requester and returns its id.
func (f *fixture) create(t *testing.T) string {
	t.Helper()
	record, err := f.svc.Create(context.Background(), requesterKey, CreateParams{
		ItemID:    "water-6pack",
		Quantity:  2,
		City:      "Springfield",
		StateCode: "IL",
		SystemID:  "sys-main",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return record.ID
}

// get fetches a request record, failing the test if absent.
func (f *fixture) get(t *testing.T, id string) schema.RequestContent {
	t.Helper()
	record, ok := f.svc.Get(id)
	if !ok {
		t.Fatalf("request %s not found", id)
	}
	return record
}

func isPrecondition(err error) bool {
	var pre *PreconditionError
	return errors.As(err, &pre)
}

// --- Create ---

func TestCreateFilesOpenRequest(t *testing.T) {
	f := newFixture(t, false)
	id := f.create(t)

	record := f.get(t, id)
	if record.Status != schema.StatusOpen {
		t.Fatalf("status: %s", record.Status)
	}
	if record.ItemName != "Water (6 pack)" {
		t.Fatalf("item name not denormalized: %q", record.ItemName)
	}
	if record.RequestedBy != requesterKey || record.RequestedAt == "" {
		t.Fatal("requester fields not set")
	}
	if record.AssignedTo != "" || record.ClaimedBy != "" {
		t.Fatal("fresh request carries assignment fields")
	}
}

func TestCreateValidatesQuantityBounds(t *testing.T) {
	f := newFixture(t, false)
	for _, q := range []int{0, -1, 11} {
		_, err := f.svc.Create(context.Background(), requesterKey, CreateParams{
			ItemID: "water-6pack", Quantity: q, SystemID: "sys-main",
		})
		if !isPrecondition(err) {
			t.Errorf("quantity %d: got %v, want PreconditionError", q, err)
		}
	}
}

func TestCreateRejectsUnknownItem(t *testing.T) {
	f := newFixture(t, false)
	_, err := f.svc.Create(context.Background(), requesterKey, CreateParams{
		ItemID: "unobtainium", Quantity: 1, SystemID: "sys-main",
	})
	if !isPrecondition(err) {
		t.Fatalf("got %v, want PreconditionError", err)
	}
}

func TestCreateRejectsNonMember(t *testing.T) {
	f := newFixture(t, false)
	_, err := f.svc.Create(context.Background(), "stranger", CreateParams{
		ItemID: "water-6pack", Quantity: 1, SystemID: "sys-main",
	})
	if !isPrecondition(err) {
		t.Fatalf("got %v, want PreconditionError", err)
	}
}

func TestCreateAppendsAuditEntry(t *testing.T) {
	f := newFixture(t, false)
	id := f.create(t)

	entries := f.auditLog.ForTarget(id)
	if len(entries) != 1 || entries[0].Action != schema.ActionRequestCreated {
		t.Fatalf("audit trail: %+v", entries)
	}
	if entries[0].ActorRole != schema.PermissionViewer {
		t.Fatalf("actor role: %s", entries[0].ActorRole)
	}
}

// --- Claim ---

func TestClaimAssignsRequest(t *testing.T) {
	f := newFixture(t, false)
	id := f.create(t)

	if err := f.svc.Claim(context.Background(), id, producerKey); err != nil {
		t.Fatalf("Claim: %v", err)
	}
	record := f.get(t, id)
	if record.Status != schema.StatusClaimed {
		t.Fatalf("status: %s", record.Status)
	}
	if record.AssignedTo != producerKey || record.ClaimedBy != producerKey {
		t.Fatal("assignment fields not set")
	}
	if record.AssignedAt == "" || record.ClaimedAt == "" {
		t.Fatal("assignment timestamps not set")
	}
}

func TestClaimRoutesToPendingApproval(t *testing.T) {
	f := newFixture(t, true)
	id := f.create(t)

	if err := f.svc.Claim(context.Background(), id, producerKey); err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if got := f.get(t, id).Status; got != schema.StatusPendingApproval {
		t.Fatalf("status: %s", got)
	}
}

func TestClaimRequiresOpenStatus(t *testing.T) {
	f := newFixture(t, false)
	id := f.create(t)
	if err := f.svc.Claim(context.Background(), id, producerKey); err != nil {
		t.Fatal(err)
	}

	err := f.svc.Claim(context.Background(), id, producer2Key)
	if !isPrecondition(err) {
		t.Fatalf("second claim: got %v, want PreconditionError", err)
	}
	if got := f.get(t, id).AssignedTo; got != producerKey {
		t.Fatalf("refused claim mutated assignment: %s", got)
	}
}

func TestClaimRefusesViewers(t *testing.T) {
	f := newFixture(t, false)
	id := f.create(t)
	if err := f.svc.Claim(context.Background(), id, requesterKey); !isPrecondition(err) {
		t.Fatalf("got %v, want PreconditionError", err)
	}
}

func TestClaimNotifiesRequesterNotActor(t *testing.T) {
	f := newFixture(t, false)
	id := f.create(t)
	if err := f.svc.Claim(context.Background(), id, producerKey); err != nil {
		t.Fatal(err)
	}

	got := f.notifier.For(requesterKey)
	if len(got) != 1 || got[0].Type != schema.NotifyRequestClaimed || got[0].RelatedID != id {
		t.Fatalf("requester notifications: %+v", got)
	}
	if len(f.notifier.For(producerKey)) != 0 {
		t.Fatal("actor was notified about their own claim")
	}
}

func TestClaimOfOwnRequestSkipsSelfNotification(t *testing.T) {
	f := newFixture(t, false)
	record, err := f.svc.Create(context.Background(), producerKey, CreateParams{
		ItemID: "water-6pack", Quantity: 1, SystemID: "sys-main",
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := f.svc.Claim(context.Background(), record.ID, producerKey); err != nil {
		t.Fatal(err)
	}
	if len(f.notifier.For(producerKey)) != 0 {
		t.Fatal("self-claim produced a notification")
	}
}

// --- Approve ---

func TestApproveSetsApprovalFields(t *testing.T) {
	f := newFixture(t, true)
	id := f.create(t)
	if err := f.svc.Claim(context.Background(), id, producerKey); err != nil {
		t.Fatal(err)
	}
	f.clk.Advance(time.Hour)

	if err := f.svc.Approve(context.Background(), id, ownerKey, ownerSecret); err != nil {
		t.Fatalf("Approve: %v", err)
	}
	record := f.get(t, id)
	if record.Status != schema.StatusApproved {
		t.Fatalf("status: %s", record.Status)
	}
	if record.ApprovedBy != ownerKey || record.ApprovedAt != "2026-09-01T11:00:00Z" {
		t.Fatalf("approval fields: by=%q at=%q", record.ApprovedBy, record.ApprovedAt)
	}
}

func TestApproveOwnerOnly(t *testing.T) {
	f := newFixture(t, true)
	id := f.create(t)
	if err := f.svc.Claim(context.Background(), id, producerKey); err != nil {
		t.Fatal(err)
	}
	if err := f.svc.Approve(context.Background(), id, producer2Key, nil); !isPrecondition(err) {
		t.Fatalf("editor approval: got %v, want PreconditionError", err)
	}
}

func TestApproveRequiresClaimedOrPending(t *testing.T) {
	f := newFixture(t, false)
	id := f.create(t)
	if err := f.svc.Approve(context.Background(), id, ownerKey, ownerSecret); !isPrecondition(err) {
		t.Fatalf("approving open request: got %v, want PreconditionError", err)
	}
}

func TestApproveNotifiesAssignee(t *testing.T) {
	f := newFixture(t, false)
	id := f.create(t)
	if err := f.svc.Claim(context.Background(), id, producerKey); err != nil {
		t.Fatal(err)
	}
	if err := f.svc.Approve(context.Background(), id, ownerKey, ownerSecret); err != nil {
		t.Fatal(err)
	}

	var approvals int
	for _, n := range f.notifier.For(producerKey) {
		if n.Type == schema.NotifyRequestApproved {
			approvals++
		}
	}
	if approvals != 1 {
		t.Fatalf("assignee approval notifications: %d", approvals)
	}
	if len(f.notifier.For(ownerKey)) != 0 {
		t.Fatal("actor was notified about their own approval")
	}
}

// --- Reveal creation ---

// seedPendingAddress stores a pending-address handoff for the request,
// sealed (by the fake provider) to the owner.
func (f *fixture) seedPendingAddress(t *testing.T, id string) {
	t.Helper()
	sealed, err := f.provider.EncryptForRecipient([]byte("requester-secret"), "hex:"+ownerKey, []byte("742 Evergreen Terrace"))
	if err != nil {
		t.Fatal(err)
	}
	err = f.pending.Set(id, schema.PendingAddressContent{
		RequestID:  id,
		SystemID:   "sys-main",
		Ciphertext: sealed.Ciphertext,
		Nonce:      sealed.Nonce,
		SenderKey:  "pub:requester-secret",
		CreatedAt:  "2026-09-01T09:00:00Z",
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestApproveConsumesPendingAddress(t *testing.T) {
	f := newFixture(t, false)
	id := f.create(t)
	f.seedPendingAddress(t, id)
	if err := f.svc.Claim(context.Background(), id, producerKey); err != nil {
		t.Fatal(err)
	}

	if err := f.svc.Approve(context.Background(), id, ownerKey, ownerSecret); err != nil {
		t.Fatalf("Approve: %v", err)
	}

	reveal, ok := f.reveals.Get(id)
	if !ok {
		t.Fatal("no reveal created")
	}
	if reveal.SystemID != "sys-main" || reveal.RequestID != id {
		t.Fatalf("reveal scope: %+v", reveal)
	}
	if reveal.SenderKey != "pub:"+string(ownerSecret) {
		t.Fatalf("sender key: %q", reveal.SenderKey)
	}
	if !strings.Contains(reveal.Ciphertext, "742 Evergreen Terrace") {
		t.Fatal("reveal not sealed from the pending plaintext")
	}
	if reveal.ProducerConfirmed {
		t.Fatal("fresh reveal already confirmed")
	}

	// Single use: the handoff is gone and the vault holds the plaintext.
	if f.pending.Has(id) {
		t.Fatal("pending address survived consumption")
	}
	stored, err := f.vault.GetAddress(context.Background(), ownerSecret, "sys-main", id)
	if err != nil || string(stored) != "742 Evergreen Terrace" {
		t.Fatalf("vault after consumption: %q, %v", stored, err)
	}
}

func TestApprovePrefersVaultOverPending(t *testing.T) {
	f := newFixture(t, false)
	id := f.create(t)
	if err := f.vault.StoreAddress(context.Background(), ownerSecret, "sys-main", id, []byte("vault street 1")); err != nil {
		t.Fatal(err)
	}
	f.seedPendingAddress(t, id)
	if err := f.svc.Claim(context.Background(), id, producerKey); err != nil {
		t.Fatal(err)
	}

	if err := f.svc.Approve(context.Background(), id, ownerKey, ownerSecret); err != nil {
		t.Fatal(err)
	}
	reveal, ok := f.reveals.Get(id)
	if !ok || !strings.Contains(reveal.Ciphertext, "vault street 1") {
		t.Fatalf("reveal should come from the vault: %+v", reveal)
	}
	// Vault hit leaves the pending handoff untouched.
	if !f.pending.Has(id) {
		t.Fatal("vault-path approval consumed the pending address")
	}
}

func TestApproveCryptoFailureDegrades(t *testing.T) {
	f := newFixture(t, false)
	id := f.create(t)
	f.seedPendingAddress(t, id)
	if err := f.svc.Claim(context.Background(), id, producerKey); err != nil {
		t.Fatal(err)
	}
	f.provider.failDecrypt = true

	if err := f.svc.Approve(context.Background(), id, ownerKey, ownerSecret); err != nil {
		t.Fatalf("Approve should degrade, got %v", err)
	}
	record := f.get(t, id)
	if record.Status != schema.StatusApproved {
		t.Fatalf("approval did not stand: %s", record.Status)
	}
	if f.reveals.Has(id) {
		t.Fatal("reveal created despite crypto failure")
	}
	// The audit entry and notification still happen.
	if entries := f.auditLog.ForTarget(id); entries[len(entries)-1].Action != schema.ActionRequestApproved {
		t.Fatal("approval not audited")
	}
}

func TestApproveMissingAddressDegrades(t *testing.T) {
	f := newFixture(t, false)
	id := f.create(t)
	if err := f.svc.Claim(context.Background(), id, producerKey); err != nil {
		t.Fatal(err)
	}

	if err := f.svc.Approve(context.Background(), id, ownerKey, ownerSecret); err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if f.reveals.Has(id) {
		t.Fatal("reveal created from nothing")
	}
	if f.get(t, id).Status != schema.StatusApproved {
		t.Fatal("approval did not stand")
	}
}

func TestApproveWithoutAssigneeSkipsCrypto(t *testing.T) {
	f := newFixture(t, false)

	// A merged update can leave a pending request with no assignee;
	// seed that shape directly.
	if err := f.requests.Append(schema.RequestContent{
		Version:     schema.RequestContentVersion,
		ID:          "req-orphan",
		ItemID:      "water-6pack",
		ItemName:    "Water (6 pack)",
		Quantity:    2,
		Status:      schema.StatusPendingApproval,
		RequestedBy: requesterKey,
		SystemID:    "sys-main",
		RequestedAt: "2026-09-01T09:00:00Z",
		UpdatedAt:   "2026-09-01T09:00:00Z",
	}); err != nil {
		t.Fatal(err)
	}

	if err := f.svc.Approve(context.Background(), "req-orphan", ownerKey, ownerSecret); err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if f.provider.calls != 0 {
		t.Fatalf("crypto provider called %d times with no assignee", f.provider.calls)
	}
	if f.reveals.Has("req-orphan") {
		t.Fatal("reveal written with no assignee")
	}
	if f.get(t, "req-orphan").Status != schema.StatusApproved {
		t.Fatal("approval did not apply")
	}
}

// --- ConfirmRevealReceived ---

func TestConfirmRevealReceived(t *testing.T) {
	f := newFixture(t, false)
	id := f.create(t)
	f.seedPendingAddress(t, id)
	if err := f.svc.Claim(context.Background(), id, producerKey); err != nil {
		t.Fatal(err)
	}
	if err := f.svc.Approve(context.Background(), id, ownerKey, ownerSecret); err != nil {
		t.Fatal(err)
	}

	if err := f.svc.ConfirmRevealReceived(context.Background(), id, producerKey); err != nil {
		t.Fatalf("ConfirmRevealReceived: %v", err)
	}
	if reveal, _ := f.reveals.Get(id); !reveal.ProducerConfirmed {
		t.Fatal("flag not set")
	}

	// Idempotent.
	if err := f.svc.ConfirmRevealReceived(context.Background(), id, producerKey); err != nil {
		t.Fatalf("second confirm: %v", err)
	}
}

func TestConfirmRevealReceivedAssigneeOnly(t *testing.T) {
	f := newFixture(t, false)
	id := f.create(t)
	f.seedPendingAddress(t, id)
	if err := f.svc.Claim(context.Background(), id, producerKey); err != nil {
		t.Fatal(err)
	}
	if err := f.svc.Approve(context.Background(), id, ownerKey, ownerSecret); err != nil {
		t.Fatal(err)
	}

	if err := f.svc.ConfirmRevealReceived(context.Background(), id, producer2Key); !isPrecondition(err) {
		t.Fatalf("got %v, want PreconditionError", err)
	}
}

// --- Reject and Unclaim ---

func TestRejectClearsEverything(t *testing.T) {
	f := newFixture(t, true)
	id := f.create(t)
	if err := f.svc.Claim(context.Background(), id, producerKey); err != nil {
		t.Fatal(err)
	}

	if err := f.svc.Reject(context.Background(), id, ownerKey); err != nil {
		t.Fatalf("Reject: %v", err)
	}
	record := f.get(t, id)
	if record.Status != schema.StatusOpen {
		t.Fatalf("status: %s", record.Status)
	}
	for name, v := range map[string]string{
		"assigned_to": record.AssignedTo, "assigned_at": record.AssignedAt,
		"claimed_by": record.ClaimedBy, "claimed_at": record.ClaimedAt,
		"approved_by": record.ApprovedBy, "approved_at": record.ApprovedAt,
	} {
		if v != "" {
			t.Errorf("%s not cleared: %q", name, v)
		}
	}

	// The request is claimable again by someone else.
	if err := f.svc.Claim(context.Background(), id, producer2Key); err != nil {
		t.Fatalf("re-claim after reject: %v", err)
	}
}

func TestRejectOwnerOnly(t *testing.T) {
	f := newFixture(t, false)
	id := f.create(t)
	if err := f.svc.Claim(context.Background(), id, producerKey); err != nil {
		t.Fatal(err)
	}
	if err := f.svc.Reject(context.Background(), id, producer2Key); !isPrecondition(err) {
		t.Fatalf("got %v, want PreconditionError", err)
	}
}

func TestRejectNotifiesFormerAssignee(t *testing.T) {
	f := newFixture(t, false)
	id := f.create(t)
	if err := f.svc.Claim(context.Background(), id, producerKey); err != nil {
		t.Fatal(err)
	}
	if err := f.svc.Reject(context.Background(), id, ownerKey); err != nil {
		t.Fatal(err)
	}

	var rejections int
	for _, n := range f.notifier.For(producerKey) {
		if n.Type == schema.NotifyRequestRejected {
			rejections++
		}
	}
	if rejections != 1 {
		t.Fatalf("rejection notifications to former assignee: %d", rejections)
	}
}

func TestRejectNotifiesRequester(t *testing.T) {
	f := newFixture(t, false)
	id := f.create(t)
	if err := f.svc.Claim(context.Background(), id, producerKey); err != nil {
		t.Fatal(err)
	}
	before := len(f.notifier.For(requesterKey))

	if err := f.svc.Reject(context.Background(), id, ownerKey); err != nil {
		t.Fatal(err)
	}

	// The request returned to the open pool, so the requester hears
	// about it too, alongside the former assignee.
	var toRequester int
	for _, n := range f.notifier.For(requesterKey)[before:] {
		if n.Type == schema.NotifyRequestRejected && n.RelatedID == id {
			toRequester++
		}
	}
	if toRequester != 1 {
		t.Fatalf("rejection notifications to requester: %d", toRequester)
	}
	if len(f.notifier.For(ownerKey)) != 0 {
		t.Fatal("acting owner was notified about their own rejection")
	}
}

func TestUnclaimReturnsToOpenAndDeletesReveal(t *testing.T) {
	f := newFixture(t, false)
	id := f.create(t)
	f.seedPendingAddress(t, id)
	if err := f.svc.Claim(context.Background(), id, producerKey); err != nil {
		t.Fatal(err)
	}
	if err := f.svc.Approve(context.Background(), id, ownerKey, ownerSecret); err != nil {
		t.Fatal(err)
	}
	if !f.reveals.Has(id) {
		t.Fatal("precondition: reveal should exist")
	}

	if err := f.svc.Unclaim(context.Background(), id, producerKey); err != nil {
		t.Fatalf("Unclaim: %v", err)
	}
	record := f.get(t, id)
	if record.Status != schema.StatusOpen || record.AssignedTo != "" || record.ApprovedBy != "" {
		t.Fatalf("unclaim left state behind: %+v", record)
	}
	if f.reveals.Has(id) {
		t.Fatal("reveal survived unclaim")
	}
}

func TestUnclaimAssigneeOnly(t *testing.T) {
	f := newFixture(t, false)
	id := f.create(t)
	if err := f.svc.Claim(context.Background(), id, producerKey); err != nil {
		t.Fatal(err)
	}
	if err := f.svc.Unclaim(context.Background(), id, producer2Key); !isPrecondition(err) {
		t.Fatalf("got %v, want PreconditionError", err)
	}
	if err := f.svc.Unclaim(context.Background(), id, ownerKey); !isPrecondition(err) {
		t.Fatalf("owner unclaim: got %v, want PreconditionError", err)
	}
}

func TestUnclaimFromInProgressClearsStageField(t *testing.T) {
	f := newFixture(t, false)
	id := f.create(t)
	if err := f.svc.Claim(context.Background(), id, producerKey); err != nil {
		t.Fatal(err)
	}
	if err := f.svc.Approve(context.Background(), id, ownerKey, ownerSecret); err != nil {
		t.Fatal(err)
	}
	if err := f.svc.MarkInProgress(context.Background(), id, producerKey); err != nil {
		t.Fatal(err)
	}

	if err := f.svc.Unclaim(context.Background(), id, producerKey); err != nil {
		t.Fatalf("Unclaim: %v", err)
	}
	record := f.get(t, id)
	if record.InProgressAt != "" {
		t.Fatal("in_progress_at survived unclaim")
	}
	if err := record.Validate(); err != nil {
		t.Fatalf("record invalid after unclaim: %v", err)
	}
}

// --- Fulfillment stages ---

func TestMarkInProgressRequiresApprovedAndAssignee(t *testing.T) {
	f := newFixture(t, false)
	id := f.create(t)
	if err := f.svc.Claim(context.Background(), id, producerKey); err != nil {
		t.Fatal(err)
	}

	if err := f.svc.MarkInProgress(context.Background(), id, producerKey); !isPrecondition(err) {
		t.Fatalf("start from claimed: got %v, want PreconditionError", err)
	}
	if err := f.svc.Approve(context.Background(), id, ownerKey, ownerSecret); err != nil {
		t.Fatal(err)
	}
	if err := f.svc.MarkInProgress(context.Background(), id, producer2Key); !isPrecondition(err) {
		t.Fatalf("start by non-assignee: got %v, want PreconditionError", err)
	}

	if err := f.svc.MarkInProgress(context.Background(), id, producerKey); err != nil {
		t.Fatalf("MarkInProgress: %v", err)
	}
	record := f.get(t, id)
	if record.Status != schema.StatusInProgress || record.InProgressAt == "" {
		t.Fatalf("stage fields: %+v", record)
	}
}

func TestMarkShippedByProducer(t *testing.T) {
	f := newFixture(t, false)
	id := f.create(t)
	advanceToInProgress(t, f, id)

	if err := f.svc.MarkShipped(context.Background(), id, producerKey, "TRACK-123"); err != nil {
		t.Fatalf("MarkShipped: %v", err)
	}
	record := f.get(t, id)
	if record.Status != schema.StatusShipped || record.ShippedAt == "" {
		t.Fatalf("shipping fields: %+v", record)
	}
	if record.TrackingNumber != "TRACK-123" {
		t.Fatalf("tracking number: %q", record.TrackingNumber)
	}
}

func TestMarkShippedProducerNeedsInProgress(t *testing.T) {
	f := newFixture(t, false)
	id := f.create(t)
	if err := f.svc.Claim(context.Background(), id, producerKey); err != nil {
		t.Fatal(err)
	}
	if err := f.svc.Approve(context.Background(), id, ownerKey, ownerSecret); err != nil {
		t.Fatal(err)
	}

	if err := f.svc.MarkShipped(context.Background(), id, producerKey, ""); !isPrecondition(err) {
		t.Fatalf("producer ship from approved: got %v, want PreconditionError", err)
	}
}

func TestMarkShippedOwnerOverrideFromApproved(t *testing.T) {
	f := newFixture(t, false)
	id := f.create(t)
	if err := f.svc.Claim(context.Background(), id, producerKey); err != nil {
		t.Fatal(err)
	}
	if err := f.svc.Approve(context.Background(), id, ownerKey, ownerSecret); err != nil {
		t.Fatal(err)
	}

	if err := f.svc.MarkShipped(context.Background(), id, ownerKey, ""); err != nil {
		t.Fatalf("owner override: %v", err)
	}
	if f.get(t, id).Status != schema.StatusShipped {
		t.Fatal("override did not ship")
	}

	// The assignee hears about the override.
	var shipped int
	for _, n := range f.notifier.For(producerKey) {
		if n.Type == schema.NotifyRequestShipped {
			shipped++
		}
	}
	if shipped != 1 {
		t.Fatalf("assignee shipped notifications: %d", shipped)
	}
}

func TestRevertToInProgressClearsShippingFields(t *testing.T) {
	f := newFixture(t, false)
	id := f.create(t)
	advanceToInProgress(t, f, id)
	if err := f.svc.MarkShipped(context.Background(), id, producerKey, "TRACK-9"); err != nil {
		t.Fatal(err)
	}

	if err := f.svc.RevertToInProgress(context.Background(), id, producerKey); err != nil {
		t.Fatalf("RevertToInProgress: %v", err)
	}
	record := f.get(t, id)
	if record.Status != schema.StatusInProgress {
		t.Fatalf("status: %s", record.Status)
	}
	if record.ShippedAt != "" || record.TrackingNumber != "" {
		t.Fatal("shipping fields not cleared")
	}
	if record.InProgressAt == "" {
		t.Fatal("in_progress_at lost by revert")
	}
}

func TestRevertToApprovedClearsInProgressField(t *testing.T) {
	f := newFixture(t, false)
	id := f.create(t)
	advanceToInProgress(t, f, id)

	if err := f.svc.RevertToApproved(context.Background(), id, ownerKey); err != nil {
		t.Fatalf("RevertToApproved: %v", err)
	}
	record := f.get(t, id)
	if record.Status != schema.StatusApproved || record.InProgressAt != "" {
		t.Fatalf("revert left: %+v", record)
	}
	if record.ApprovedAt == "" {
		t.Fatal("approval fields lost by revert")
	}
}

// --- Cancel ---

func TestCancelByRequester(t *testing.T) {
	f := newFixture(t, false)
	id := f.create(t)

	if err := f.svc.Cancel(context.Background(), id, requesterKey); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if f.get(t, id).Status != schema.StatusCancelled {
		t.Fatal("not cancelled")
	}
}

func TestCancelOnlyRequesterOrOwner(t *testing.T) {
	f := newFixture(t, false)
	id := f.create(t)
	if err := f.svc.Cancel(context.Background(), id, producerKey); !isPrecondition(err) {
		t.Fatalf("got %v, want PreconditionError", err)
	}
}

func TestCancelNeverAfterApproval(t *testing.T) {
	f := newFixture(t, false)
	id := f.create(t)
	if err := f.svc.Claim(context.Background(), id, producerKey); err != nil {
		t.Fatal(err)
	}
	if err := f.svc.Approve(context.Background(), id, ownerKey, ownerSecret); err != nil {
		t.Fatal(err)
	}
	if err := f.svc.Cancel(context.Background(), id, ownerKey); !isPrecondition(err) {
		t.Fatalf("cancel after approval: got %v, want PreconditionError", err)
	}
}

func TestCancelCleansUpHandoffState(t *testing.T) {
	f := newFixture(t, false)
	id := f.create(t)
	f.seedPendingAddress(t, id)
	if err := f.svc.Claim(context.Background(), id, producerKey); err != nil {
		t.Fatal(err)
	}

	if err := f.svc.Cancel(context.Background(), id, ownerKey); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if f.pending.Has(id) || f.reveals.Has(id) {
		t.Fatal("cancel left reveal or pending address behind")
	}

	// Both the requester and the assignee hear about it; the actor does not.
	if len(f.notifier.For(requesterKey)) == 0 || len(f.notifier.For(ownerKey)) != 0 {
		t.Fatal("cancel notifications misrouted")
	}
}

// --- ConfirmDelivered ---

func TestConfirmDeliveredByRequester(t *testing.T) {
	f := newFixture(t, false)
	id := f.create(t)
	f.seedPendingAddress(t, id)
	advanceToShipped(t, f, id)

	if err := f.svc.ConfirmDelivered(context.Background(), id, requesterKey); err != nil {
		t.Fatalf("ConfirmDelivered: %v", err)
	}
	record := f.get(t, id)
	if record.Status != schema.StatusDelivered || record.DeliveredAt == "" {
		t.Fatalf("delivery fields: %+v", record)
	}
	if f.reveals.Has(id) {
		t.Fatal("reveal survived delivery")
	}
}

func TestConfirmDeliveredRequesterOnly(t *testing.T) {
	f := newFixture(t, false)
	id := f.create(t)
	advanceToShipped(t, f, id)

	for _, actor := range []string{producerKey, ownerKey} {
		if err := f.svc.ConfirmDelivered(context.Background(), id, actor); !isPrecondition(err) {
			t.Errorf("%s confirmed delivery: %v", actor, err)
		}
	}
}

func TestConfirmDeliveredRequiresShipped(t *testing.T) {
	f := newFixture(t, false)
	id := f.create(t)
	if err := f.svc.ConfirmDelivered(context.Background(), id, requesterKey); !isPrecondition(err) {
		t.Fatalf("got %v, want PreconditionError", err)
	}
}

// --- Cross-cutting properties ---

func TestMissingRequestIsSilentNoOp(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	const gone = "req-does-not-exist"

	ops := map[string]func() error{
		"claim":      func() error { return f.svc.Claim(ctx, gone, producerKey) },
		"approve":    func() error { return f.svc.Approve(ctx, gone, ownerKey, ownerSecret) },
		"reject":     func() error { return f.svc.Reject(ctx, gone, ownerKey) },
		"unclaim":    func() error { return f.svc.Unclaim(ctx, gone, producerKey) },
		"inprogress": func() error { return f.svc.MarkInProgress(ctx, gone, producerKey) },
		"shipped":    func() error { return f.svc.MarkShipped(ctx, gone, producerKey, "") },
		"cancel":     func() error { return f.svc.Cancel(ctx, gone, ownerKey) },
		"delivered":  func() error { return f.svc.ConfirmDelivered(ctx, gone, requesterKey) },
	}
	for name, op := range ops {
		if err := op(); err != nil {
			t.Errorf("%s on missing request: %v", name, err)
		}
	}
	if len(f.auditLog.Entries()) != 0 {
		t.Fatal("no-op produced audit entries")
	}
}

func TestEveryTransitionAuditsExactlyOnce(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	id := f.create(t)
	f.seedPendingAddress(t, id)

	steps := []struct {
		action schema.AuditAction
		run    func() error
	}{
		{schema.ActionRequestClaimed, func() error { return f.svc.Claim(ctx, id, producerKey) }},
		{schema.ActionRequestApproved, func() error { return f.svc.Approve(ctx, id, ownerKey, ownerSecret) }},
		{schema.ActionRequestInProgress, func() error { return f.svc.MarkInProgress(ctx, id, producerKey) }},
		{schema.ActionRequestShipped, func() error { return f.svc.MarkShipped(ctx, id, producerKey, "T1") }},
		{schema.ActionRequestDelivered, func() error { return f.svc.ConfirmDelivered(ctx, id, requesterKey) }},
	}
	for _, step := range steps {
		if err := step.run(); err != nil {
			t.Fatalf("%s: %v", step.action, err)
		}
	}

	entries := f.auditLog.ForTarget(id)
	want := []schema.AuditAction{schema.ActionRequestCreated}
	for _, step := range steps {
		want = append(want, step.action)
	}
	if len(entries) != len(want) {
		t.Fatalf("audit trail has %d entries, want %d", len(entries), len(want))
	}
	for i, action := range want {
		if entries[i].Action != action {
			t.Errorf("entry %d: got %s, want %s", i, entries[i].Action, action)
		}
	}
}

func TestTransitionIsOneCommit(t *testing.T) {
	f := newFixture(t, false)
	id := f.create(t)

	commits := 0
	f.doc.Observe(func(store.Commit) { commits++ })

	if err := f.svc.Claim(context.Background(), id, producerKey); err != nil {
		t.Fatal(err)
	}
	if commits != 1 {
		t.Fatalf("claim produced %d commits, want 1 (record + audit + notification together)", commits)
	}
}

func TestPreconditionFailureMutatesNothing(t *testing.T) {
	f := newFixture(t, false)
	id := f.create(t)
	before := f.get(t, id)
	auditBefore := len(f.auditLog.Entries())

	if err := f.svc.MarkInProgress(context.Background(), id, producerKey); !isPrecondition(err) {
		t.Fatalf("got %v", err)
	}

	after := f.get(t, id)
	if after != before {
		t.Fatal("refused operation changed the record")
	}
	if len(f.auditLog.Entries()) != auditBefore {
		t.Fatal("refused operation appended audit entries")
	}
	if f.notifier.UnreadCount(requesterKey) != 0 {
		t.Fatal("refused operation pushed notifications")
	}
}

// advanceToInProgress walks a fresh request to in_progress.
func advanceToInProgress(t *testing.T, f *fixture, id string) {
	t.Helper()
	ctx := context.Background()
	if err := f.svc.Claim(ctx, id, producerKey); err != nil {
		t.Fatal(err)
	}
	if err := f.svc.Approve(ctx, id, ownerKey, ownerSecret); err != nil {
		t.Fatal(err)
	}
	if err := f.svc.MarkInProgress(ctx, id, producerKey); err != nil {
		t.Fatal(err)
	}
}

// advanceToShipped walks a fresh request to shipped.
func advanceToShipped(t *testing.T, f *fixture, id string) {
	t.Helper()
	advanceToInProgress(t, f, id)
	if err := f.svc.MarkShipped(context.Background(), id, producerKey, ""); err != nil {
		t.Fatal(err)
	}
}
