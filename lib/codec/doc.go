// Copyright 2026 The Workroom Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides the standard CBOR encoding configuration for
// workroom data: Core Deterministic Encoding on the way out, tolerant
// decoding on the way in.
//
// Determinism matters here: journal update records are deduplicated by
// content hash when replicas exchange updates, so the same logical
// operation set must always encode to identical bytes regardless of
// which replica encoded it.
package codec
