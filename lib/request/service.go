// Copyright 2026 The Workroom Authors
// SPDX-License-Identifier: Apache-2.0

// Package request implements the inventory request lifecycle: the
// status state machine, its permission guards, and the bookkeeping
// every transition owes the rest of the workspace; one audit entry,
// notifications to the other parties, and reveal management on the
// transitions that grant or revoke address access.
//
// Every status-changing operation follows the same shape: resolve the
// actor's role, check the preconditions against a copy of the record,
// then apply the record update, the audit entry, the notifications,
// and any reveal change inside one document transaction. A failed
// precondition mutates nothing and returns a [PreconditionError]; a
// missing request id is a silent no-op, because the request may have
// been deleted by a concurrently merged update.
package request

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/workroom-foundation/workroom/lib/address"
	"github.com/workroom-foundation/workroom/lib/audit"
	"github.com/workroom-foundation/workroom/lib/clock"
	"github.com/workroom-foundation/workroom/lib/notify"
	"github.com/workroom-foundation/workroom/lib/schema"
	"github.com/workroom-foundation/workroom/lib/store"
)

// PreconditionError reports a refused operation: wrong status, wrong
// role, or a constraint violation. Nothing was mutated. The message is
// intended for the user who attempted the action.
type PreconditionError struct {
	Op        string
	RequestID string
	Reason    string
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("%s %s: %s", e.Op, e.RequestID, e.Reason)
}

func refuse(op, requestID, format string, args ...any) error {
	return &PreconditionError{Op: op, RequestID: requestID, Reason: fmt.Sprintf(format, args...)}
}

// AddressStore is the slice of the vault the lifecycle needs. The
// argument order (systemID before requestID) matches
// [address.Vault].
type AddressStore interface {
	GetAddress(ctx context.Context, keyMaterial []byte, systemID, requestID string) ([]byte, error)
	StoreAddress(ctx context.Context, keyMaterial []byte, systemID, requestID string, addr []byte) error
}

// Config collects the Service's dependencies. All collection and
// collaborator fields are required; Vault and Provider may be nil only
// in deployments that never approve (reveal creation then degrades to
// a logged skip).
type Config struct {
	Doc              *store.Doc
	Requests         *store.Array[schema.RequestContent]
	Catalog          *store.Array[schema.CatalogItemContent]
	Reveals          *store.Map[schema.AddressRevealContent]
	PendingAddresses *store.Map[schema.PendingAddressContent]
	Notifier         *notify.Notifier
	Audit            *audit.Log

	// Capacities is optional; when nil, capacity declarations are
	// refused but the lifecycle is unaffected.
	Capacities *store.Map[schema.CapacityContent]

	Vault    AddressStore
	Provider address.Provider
	Roster   schema.Roster
	Clock    clock.Clock

	// RequireApproval routes claims through pending_approval instead
	// of directly to claimed.
	RequireApproval bool

	Logger *slog.Logger
}

// Service drives the request lifecycle over the shared document.
type Service struct {
	cfg    Config
	logger *slog.Logger
}

// New validates the configuration and returns a Service.
func New(cfg Config) (*Service, error) {
	switch {
	case cfg.Doc == nil:
		return nil, errors.New("request: Config.Doc is required")
	case cfg.Requests == nil:
		return nil, errors.New("request: Config.Requests is required")
	case cfg.Catalog == nil:
		return nil, errors.New("request: Config.Catalog is required")
	case cfg.Reveals == nil:
		return nil, errors.New("request: Config.Reveals is required")
	case cfg.PendingAddresses == nil:
		return nil, errors.New("request: Config.PendingAddresses is required")
	case cfg.Notifier == nil:
		return nil, errors.New("request: Config.Notifier is required")
	case cfg.Audit == nil:
		return nil, errors.New("request: Config.Audit is required")
	case cfg.Roster == nil:
		return nil, errors.New("request: Config.Roster is required")
	case cfg.Clock == nil:
		return nil, errors.New("request: Config.Clock is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{cfg: cfg, logger: logger}, nil
}

// Get returns the request with the given id.
func (s *Service) Get(requestID string) (schema.RequestContent, bool) {
	record, _, ok := store.FindByID(s.cfg.Requests, requestID)
	return record, ok
}

// role resolves the actor's permission, refusing non-members.
func (s *Service) role(op, requestID, actor string) (schema.Permission, error) {
	role, ok := s.cfg.Roster.PermissionOf(actor)
	if !ok {
		return "", refuse(op, requestID, "%s is not a workspace member", actor)
	}
	return role, nil
}

// notifyUnlessActor pushes a notification unless the recipient is the
// actor (nobody is told about their own action) or unaddressable.
func (s *Service) notifyUnlessActor(actor, recipient string, typ schema.NotificationType, message, requestID string) error {
	if recipient == "" || recipient == actor {
		return nil
	}
	return s.cfg.Notifier.Push(recipient, typ, message, requestID)
}

// now returns the current timestamp in record form.
func (s *Service) now() string {
	return schema.Timestamp(s.cfg.Clock.Now())
}

// newRequestID mints a workspace-unique request id.
func newRequestID() string {
	return "req-" + uuid.NewString()
}
