// Copyright 2026 The Workroom Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import "time"

// Clock abstracts the current time for testability. Production code
// injects Real(); tests inject Fake() with deterministic time control.
//
// The workroom core is a synchronous layer with no timers or timeouts
// (every operation is a local in-memory write), so Clock exposes only
// Now. Every production function that would call time.Now should accept
// a Clock parameter (or be a method on a struct with a Clock field)
// instead of calling the time package directly.
type Clock interface {
	// Now returns the current time.
	Now() time.Time
}
