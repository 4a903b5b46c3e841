// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package reactor provides the readiness-multiplexing primitive used by the
// event loop: a descriptor set with per-descriptor read/write interest,
// a blocking wait, and a wakeup hook for shutdown.
package reactor
