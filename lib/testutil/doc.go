// Copyright 2026 The Workroom Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers for workroom packages.
//
// [UniqueID] generates monotonically increasing identifiers for test
// disambiguation. Use it instead of time.Now() when tests need unique
// request IDs, message bodies, or vault keys that must be
// distinguishable within one shared document.
//
// All helpers call t.Fatalf on failure rather than returning errors,
// since test setup failures are not recoverable.
//
// This package has no workroom-internal dependencies.
package testutil
