package storage

import (
	"context"
	"errors"
	"time"
)

var ErrDisabled = errors.New("storage disabled")

// Config configures storage.
//
// Driver is "sqlite" or "none" (empty also disables storage).
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // 0 keeps the sqlite default
}

// Store is the persistence API used by the notifier and the command router.
type Store interface {
	AppendAudit(ctx context.Context, e AuditEntry) error
	RecentAudit(ctx context.Context, limit int) ([]AuditEntry, error)
	PutDedup(ctx context.Context, key string, until time.Time) error
	GetDedup(ctx context.Context, key string) (until time.Time, ok bool, err error)
	Close() error
}

// AuditEntry records one chat command invocation.
type AuditEntry struct {
	At     time.Time
	Prefix string
	Author string
	OK     bool
	Error  string
	TookMS int64
}
