package watch

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"veloxbot/internal/camera"
	logx "veloxbot/pkg/logx"
)

// runCycle executes one update cycle. Ordering is load-bearing:
//
//  1. fetch: any failure aborts with the previous snapshot untouched;
//  2. load previous snapshot;
//  3. diff;
//  4. commit the new snapshot: a commit failure aborts BEFORE dispatch, so
//     subscribers are never told about a change that was not durably
//     recorded;
//  5. dispatch: failures here are per-recipient and never roll back the
//     commit.
func (w *Watcher) runCycle(ctx context.Context, trigger Trigger) (CycleReport, error) {
	if !w.begin() {
		return CycleReport{}, ErrCycleInFlight
	}

	start := w.now()
	rep := CycleReport{
		ID:        uuid.NewString(),
		Trigger:   trigger,
		StartedAt: start,
	}
	log := w.log.With(logx.String("cycle", rep.ID), logx.String("trigger", string(trigger)))
	defer func() {
		rep.Took = w.now().Sub(start)
		w.finish(rep)
	}()

	log.Debug("cycle started")

	current, err := w.deps.Fetcher.FetchCurrent(ctx)
	if err != nil {
		rep.Err = fmt.Errorf("fetch: %w", err)
		log.Warn("cycle aborted, snapshot untouched", logx.Err(err))
		return rep, rep.Err
	}

	prev, err := w.deps.Snapshots.LoadSnapshot(ctx)
	if err != nil {
		rep.Err = fmt.Errorf("load snapshot: %w", err)
		log.Error("cycle aborted, snapshot unreadable", logx.Err(err))
		return rep, rep.Err
	}

	diff := camera.Diff(prev.Cameras, current)
	rep.Added = len(diff.Added)
	rep.Removed = len(diff.Removed)
	rep.Unchanged = len(diff.Unchanged)

	if err := w.deps.Snapshots.ReplaceSnapshot(ctx, camera.Snapshot{
		Cameras:   current,
		UpdatedAt: start,
	}); err != nil {
		// Not committed: no notifications, next cycle re-runs the whole
		// sequence against the old snapshot.
		rep.Err = fmt.Errorf("commit snapshot: %w", err)
		log.Error("commit failed, no notifications sent", logx.Err(err))
		return rep, rep.Err
	}

	recipients := w.deps.Registry.ListEligible(diff.Empty())
	rep.Recipients = len(recipients)

	outcomes := w.deps.Dispatcher.Dispatch(ctx, diff, recipients)
	for _, o := range outcomes {
		if o.Failed > 0 {
			rep.SendFailed++
		}
	}

	log.Info("cycle finished",
		logx.Int("added", rep.Added),
		logx.Int("removed", rep.Removed),
		logx.Int("unchanged", rep.Unchanged),
		logx.Int("recipients", rep.Recipients),
		logx.Int("send_failed", rep.SendFailed))
	return rep, nil
}
