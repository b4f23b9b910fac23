package watch

import (
	"context"
	"errors"
	"time"

	"veloxbot/internal/camera"
	"veloxbot/internal/notify"
	"veloxbot/internal/subscriber"
)

// State of the watcher, as shown in /status.
type State int32

const (
	StateIdle State = iota
	StateChecking
	StateQuietWindow
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateChecking:
		return "checking"
	case StateQuietWindow:
		return "quiet window"
	default:
		return "unknown"
	}
}

// Trigger identifies what started a cycle.
type Trigger string

const (
	TriggerScheduled Trigger = "scheduled"
	TriggerManual    Trigger = "manual"
)

// ErrCycleInFlight is returned to a manual trigger that arrives while a
// cycle is already running. The two paths never run concurrently.
var ErrCycleInFlight = errors.New("an update cycle is already running")

// CycleReport summarizes one fetch→diff→commit→dispatch sequence.
type CycleReport struct {
	ID        string
	Trigger   Trigger
	StartedAt time.Time
	Took      time.Duration

	Added     int
	Removed   int
	Unchanged int

	Recipients int
	SendFailed int
	Err        error
}

// Fetcher is the scraping collaborator.
type Fetcher interface {
	FetchCurrent(ctx context.Context) ([]camera.Record, error)
}

// SnapshotStore is the durable snapshot of known cameras.
type SnapshotStore interface {
	LoadSnapshot(ctx context.Context) (camera.Snapshot, error)
	ReplaceSnapshot(ctx context.Context, s camera.Snapshot) error
}

// RecipientLister selects the eligible recipients for a cycle type.
type RecipientLister interface {
	ListEligible(noChangeOnly bool) []subscriber.Subscriber
}

// Dispatcher fans the diff out to recipients.
type Dispatcher interface {
	Dispatch(ctx context.Context, diff camera.DiffResult, recipients []subscriber.Subscriber) []notify.Outcome
}

// Deps are the watcher's collaborators.
type Deps struct {
	Fetcher    Fetcher
	Snapshots  SnapshotStore
	Registry   RecipientLister
	Dispatcher Dispatcher
}

// Config controls the schedule and the quiet window.
type Config struct {
	Schedule   string // cron spec or interval, see ParseSchedule
	QuietStart string // "HH:MM", local to Timezone
	QuietEnd   string
	Timezone   string // IANA name; empty means local time
}
