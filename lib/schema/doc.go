// Copyright 2026 The Workroom Authors
// SPDX-License-Identifier: Apache-2.0

// Package schema defines the shared-document content types for a
// workroom workspace: requests, notifications, audit entries, chat
// messages, address reveals, producer capacities, and the collaborator
// roster.
//
// Every entity is a plain struct with explicit optional fields. Closed
// enumerations (request status, actor permission, audit action, chat
// message type) are string types with IsKnown methods, validated at the
// boundary by each content type's Validate method; free-text tags are
// rejected before they enter the shared document, never trusted after.
//
// Timestamps are RFC 3339 UTC strings. The empty string means "unset",
// which is load-bearing: the lifecycle state machine clears assignment
// and approval timestamps by writing empty strings, and the invariant
// checks in lib/request test for exactly that.
//
// This package has no dependency on the document store or any I/O
// package. It is the vocabulary both sides of a replica exchange speak.
package schema
