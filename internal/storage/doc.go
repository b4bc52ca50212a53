// Package storage persists notifier dedup state and the command audit log
// in a SQLite file (modernc.org/sqlite, no cgo).
package storage
