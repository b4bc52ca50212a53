// Package notifier is the outbound chat pipeline.
//
// Listener announcements go through Say: they are deduplicated by key,
// queued, rate limited and retried with exponential backoff by a small
// worker pool. Command replies go through Reply, which sends synchronously
// with the same limiter and retry policy so replies keep arrival order.
//
// Dedup state can be persisted in storage so a restart does not repeat an
// announcement that was already made.
package notifier
