// Copyright 2026 The Workroom Authors
// SPDX-License-Identifier: Apache-2.0

package schema

import "time"

// Timestamp renders t as the RFC 3339 UTC string every content type in
// this package stores. The empty string means "not set"; callers never
// format a zero time.
func Timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
