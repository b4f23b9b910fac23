// Package watch drives the periodic check cycle: a schedule fires, the
// quiet window is enforced, and exactly one cycle at a time runs the
// fetch→diff→commit→dispatch sequence. Manual triggers go through the same
// gate as scheduled ticks.
package watch

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	logx "veloxbot/pkg/logx"
)

type Watcher struct {
	log  logx.Logger
	deps Deps

	spec  Spec
	quiet QuietWindow
	loc   *time.Location
	now   func() time.Time // injectable for tests

	c *cron.Cron

	mu       sync.Mutex
	checking bool
	last     *CycleReport
}

func New(cfg Config, deps Deps, log logx.Logger) (*Watcher, error) {
	if log.IsZero() {
		log = logx.Nop()
	}

	spec, err := ParseSchedule(cfg.Schedule)
	if err != nil {
		return nil, err
	}
	quiet, err := ParseQuietWindow(cfg.QuietStart, cfg.QuietEnd)
	if err != nil {
		return nil, err
	}

	loc := time.Local
	if cfg.Timezone != "" {
		loc, err = time.LoadLocation(cfg.Timezone)
		if err != nil {
			return nil, err
		}
	}

	w := &Watcher{
		log:   log.With(logx.String("comp", "watch")),
		deps:  deps,
		spec:  spec,
		quiet: quiet,
		loc:   loc,
	}
	w.now = func() time.Time { return time.Now().In(w.loc) }
	return w, nil
}

// Start registers the schedule and begins ticking. The given context is the
// process lifetime; in-flight work observes it on shutdown.
func (w *Watcher) Start(ctx context.Context) error {
	w.c = cron.New(cron.WithParser(scheduleParser), cron.WithLocation(w.loc))
	_, err := w.c.AddFunc(w.spec.cronEntry(), func() { w.tick(ctx) })
	if err != nil {
		return err
	}
	w.c.Start()
	w.log.Info("watcher started",
		logx.String("schedule", w.spec.cronEntry()),
		logx.Bool("quiet_window", w.quiet.enabled),
		logx.String("tz", w.loc.String()))
	return nil
}

// Stop halts the schedule and waits for a running cycle's cron callback to
// return.
func (w *Watcher) Stop() {
	if w.c == nil {
		return
	}
	stopCtx := w.c.Stop()
	<-stopCtx.Done()
}

// State derives the externally visible scheduler state.
func (w *Watcher) State() State {
	w.mu.Lock()
	checking := w.checking
	w.mu.Unlock()
	if checking {
		return StateChecking
	}
	if w.quiet.Contains(w.now()) {
		return StateQuietWindow
	}
	return StateIdle
}

// LastReport returns the most recent cycle report, or nil before the first
// cycle.
func (w *Watcher) LastReport() *CycleReport {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.last == nil {
		return nil
	}
	cp := *w.last
	return &cp
}

// TriggerManual runs a cycle outside the schedule. It is accepted in any
// state except Checking; a second trigger while a cycle is in flight gets
// ErrCycleInFlight instead of a concurrent run.
func (w *Watcher) TriggerManual(ctx context.Context) (CycleReport, error) {
	return w.runCycle(ctx, TriggerManual)
}

// tick handles one schedule firing. Inside the quiet window the tick is a
// no-op: no fetch, no state change.
func (w *Watcher) tick(ctx context.Context) {
	if now := w.now(); w.quiet.Contains(now) {
		w.log.Debug("tick skipped: quiet window", logx.Time("now", now))
		return
	}
	if _, err := w.runCycle(ctx, TriggerScheduled); err != nil {
		// already logged with cycle context; the next tick retries
		return
	}
}

// begin flips the watcher into Checking, refusing overlap.
func (w *Watcher) begin() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.checking {
		return false
	}
	w.checking = true
	return true
}

func (w *Watcher) finish(rep CycleReport) {
	w.mu.Lock()
	w.checking = false
	w.last = &rep
	w.mu.Unlock()
}
