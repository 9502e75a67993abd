// Copyright 2026 The Workroom Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable time source. Production code
// uses [Real]; tests use [Fake] and advance it explicitly so that
// lifecycle timestamps and read cursors are deterministic.
package clock
