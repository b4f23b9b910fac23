package storage

import (
	"context"
	"errors"
	"time"

	"veloxbot/internal/camera"
	"veloxbot/internal/subscriber"
)

// Config configures storage.
//
// Driver values:
//   - "file": JSON files with write-temp-then-rename commits (default)
//   - "sqlite": SQLite database file (optional build tag)
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

var ErrUnknownDriver = errors.New("unknown storage driver")

// SnapshotStore persists the set of currently-known cameras.
//
// Load returns an empty snapshot when no prior state exists; that is a
// normal first run, not an error. Replace is all-or-nothing: after a crash
// at any point the store reads back as either the old or the new complete
// snapshot, never a mixture. A Replace error means "not committed" and the
// previous snapshot is still in effect.
type SnapshotStore interface {
	LoadSnapshot(ctx context.Context) (camera.Snapshot, error)
	ReplaceSnapshot(ctx context.Context, s camera.Snapshot) error
}

// SubscriberStore persists the subscriber mapping as a whole value.
type SubscriberStore interface {
	LoadSubscribers(ctx context.Context) ([]subscriber.Subscriber, error)
	SaveSubscribers(ctx context.Context, subs []subscriber.Subscriber) error
}

// Store is the combined persistence backend. Both stores are independently
// durable even when backed by the same driver.
type Store interface {
	SnapshotStore
	SubscriberStore
	Close() error
}
