package notifier

import "time"

// Config controls the notification pipeline.
type Config struct {
	Workers         int
	QueueSize       int
	RatePerSec      int
	RetryMax        int
	RetryBase       time.Duration
	RetryMaxDelay   time.Duration
	SendTimeout     time.Duration
	DedupWindow     time.Duration
	DedupMaxEntries int
	PersistDedup    bool
}

// Outgoing is one announcement for the configured channel.
//
// DedupKey identifies the underlying event (e.g. "fissure:<id>"); messages
// with the same key are suppressed within the dedup window. An empty key
// disables suppression.
type Outgoing struct {
	Text     string
	DedupKey string
}

// Stats are best-effort counters for logging at shutdown.
type Stats struct {
	Sent    uint64
	Failed  uint64
	Deduped uint64
}
