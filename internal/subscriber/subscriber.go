// Package subscriber owns the durable mapping of chat → notification
// preferences. All mutation goes through Registry, which serializes writers
// and persists before acknowledging.
package subscriber

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when an operation targets a chat that is not
// subscribed.
var ErrNotFound = errors.New("not subscribed")

// Subscriber is one notification recipient.
type Subscriber struct {
	ChatID         int64     `json:"chat_id"`
	NotifyNoChange bool      `json:"notify_no_change"`
	SubscribedAt   time.Time `json:"subscribed_at"`
}

// Store persists the subscriber mapping as a whole value. Implemented by
// the storage drivers.
type Store interface {
	LoadSubscribers(ctx context.Context) ([]Subscriber, error)
	SaveSubscribers(ctx context.Context, subs []Subscriber) error
}
