package watch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"veloxbot/internal/camera"
	"veloxbot/internal/notify"
	"veloxbot/internal/subscriber"
	logx "veloxbot/pkg/logx"
)

type fakeFetcher struct {
	mu    sync.Mutex
	recs  []camera.Record
	err   error
	calls int
	block chan struct{} // when set, FetchCurrent blocks until closed
}

func (f *fakeFetcher) FetchCurrent(ctx context.Context) ([]camera.Record, error) {
	f.mu.Lock()
	f.calls++
	block := f.block
	recs, err := f.recs, f.err
	f.mu.Unlock()
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return recs, err
}

func (f *fakeFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeSnapshots struct {
	mu         sync.Mutex
	snap       camera.Snapshot
	loadErr    error
	replaceErr error
	replaced   int
}

func (s *fakeSnapshots) LoadSnapshot(ctx context.Context) (camera.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap, s.loadErr
}

func (s *fakeSnapshots) ReplaceSnapshot(ctx context.Context, snap camera.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.replaceErr != nil {
		return s.replaceErr
	}
	s.snap = snap
	s.replaced++
	return nil
}

type fakeRegistry struct {
	mu           sync.Mutex
	subs         []subscriber.Subscriber
	noChangeOnly []bool
}

func (r *fakeRegistry) ListEligible(noChangeOnly bool) []subscriber.Subscriber {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.noChangeOnly = append(r.noChangeOnly, noChangeOnly)
	if noChangeOnly {
		var out []subscriber.Subscriber
		for _, s := range r.subs {
			if s.NotifyNoChange {
				out = append(out, s)
			}
		}
		return out
	}
	return append([]subscriber.Subscriber(nil), r.subs...)
}

type fakeDispatcher struct {
	mu         sync.Mutex
	diffs      []camera.DiffResult
	recipients [][]subscriber.Subscriber
	outcomes   []notify.Outcome
}

func (d *fakeDispatcher) Dispatch(ctx context.Context, diff camera.DiffResult, recipients []subscriber.Subscriber) []notify.Outcome {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.diffs = append(d.diffs, diff)
	d.recipients = append(d.recipients, recipients)
	return d.outcomes
}

func (d *fakeDispatcher) calls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.diffs)
}

func newTestWatcher(t *testing.T, deps Deps) *Watcher {
	t.Helper()
	w, err := New(Config{Schedule: "30m", QuietStart: "02:00", QuietEnd: "07:00", Timezone: "UTC"}, deps, logx.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return w
}

func camsOf(labels ...string) []camera.Record {
	out := make([]camera.Record, 0, len(labels))
	for _, l := range labels {
		out = append(out, camera.NewRecord(l, nil))
	}
	return out
}

func TestCycleDetectsChanges(t *testing.T) {
	t.Parallel()

	prev := camera.Snapshot{Cameras: camsOf("A", "B")}
	fetcher := &fakeFetcher{recs: camsOf("B", "C")}
	snaps := &fakeSnapshots{snap: prev}
	reg := &fakeRegistry{subs: []subscriber.Subscriber{
		{ChatID: 1},
		{ChatID: 2, NotifyNoChange: true},
	}}
	disp := &fakeDispatcher{}

	w := newTestWatcher(t, Deps{Fetcher: fetcher, Snapshots: snaps, Registry: reg, Dispatcher: disp})
	w.now = func() time.Time { return at(12, 0) }

	rep, err := w.TriggerManual(context.Background())
	if err != nil {
		t.Fatalf("TriggerManual: %v", err)
	}
	if rep.Added != 1 || rep.Removed != 1 || rep.Unchanged != 1 {
		t.Fatalf("report = %+v, want 1 added, 1 removed, 1 unchanged", rep)
	}
	if snaps.replaced != 1 {
		t.Fatalf("snapshot replaced %d times, want 1", snaps.replaced)
	}
	// change cycle: full recipient list, both subscribers included
	if len(reg.noChangeOnly) != 1 || reg.noChangeOnly[0] {
		t.Fatalf("ListEligible(noChangeOnly) = %v, want [false]", reg.noChangeOnly)
	}
	if got := len(disp.recipients[0]); got != 2 {
		t.Fatalf("recipients = %d, want 2", got)
	}
	if len(disp.diffs[0].Added) != 1 || disp.diffs[0].Added[0].Label != "C" {
		t.Fatalf("dispatched diff added = %+v, want [C]", disp.diffs[0].Added)
	}
}

func TestCycleNoChangeSelectsOptedInRecipients(t *testing.T) {
	t.Parallel()

	same := camsOf("A", "B")
	fetcher := &fakeFetcher{recs: same}
	snaps := &fakeSnapshots{snap: camera.Snapshot{Cameras: same}}
	reg := &fakeRegistry{subs: []subscriber.Subscriber{
		{ChatID: 1},
		{ChatID: 2, NotifyNoChange: true},
	}}
	disp := &fakeDispatcher{}

	w := newTestWatcher(t, Deps{Fetcher: fetcher, Snapshots: snaps, Registry: reg, Dispatcher: disp})
	w.now = func() time.Time { return at(12, 0) }

	if _, err := w.TriggerManual(context.Background()); err != nil {
		t.Fatalf("TriggerManual: %v", err)
	}
	if len(reg.noChangeOnly) != 1 || !reg.noChangeOnly[0] {
		t.Fatalf("ListEligible(noChangeOnly) = %v, want [true]", reg.noChangeOnly)
	}
	if got := len(disp.recipients[0]); got != 1 || disp.recipients[0][0].ChatID != 2 {
		t.Fatalf("recipients = %+v, want only chat 2", disp.recipients[0])
	}
}

func TestCycleFetchFailureLeavesSnapshotUntouched(t *testing.T) {
	t.Parallel()

	prev := camera.Snapshot{Cameras: camsOf("A", "B")}
	fetcher := &fakeFetcher{err: errors.New("boom")}
	snaps := &fakeSnapshots{snap: prev}
	disp := &fakeDispatcher{}

	w := newTestWatcher(t, Deps{Fetcher: fetcher, Snapshots: snaps, Registry: &fakeRegistry{}, Dispatcher: disp})
	w.now = func() time.Time { return at(12, 0) }

	if _, err := w.TriggerManual(context.Background()); err == nil {
		t.Fatal("expected cycle error on fetch failure")
	}
	if snaps.replaced != 0 {
		t.Fatal("snapshot was replaced despite fetch failure")
	}
	if disp.calls() != 0 {
		t.Fatal("dispatch ran despite fetch failure")
	}
}

func TestCycleCommitFailureSendsNothing(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{recs: camsOf("A", "B", "C")}
	snaps := &fakeSnapshots{snap: camera.Snapshot{Cameras: camsOf("A")}, replaceErr: errors.New("disk full")}
	disp := &fakeDispatcher{}

	w := newTestWatcher(t, Deps{Fetcher: fetcher, Snapshots: snaps, Registry: &fakeRegistry{}, Dispatcher: disp})
	w.now = func() time.Time { return at(12, 0) }

	if _, err := w.TriggerManual(context.Background()); err == nil {
		t.Fatal("expected cycle error on commit failure")
	}
	if disp.calls() != 0 {
		t.Fatal("notifications sent for a change that was never committed")
	}
}

func TestCycleDispatchFailureKeepsCommit(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{recs: camsOf("A", "B")}
	snaps := &fakeSnapshots{snap: camera.Snapshot{Cameras: camsOf("A")}}
	reg := &fakeRegistry{subs: []subscriber.Subscriber{{ChatID: 1}, {ChatID: 2}}}
	disp := &fakeDispatcher{outcomes: []notify.Outcome{
		{ChatID: 1, Sent: 1},
		{ChatID: 2, Failed: 1, Err: errors.New("blocked by user")},
	}}

	w := newTestWatcher(t, Deps{Fetcher: fetcher, Snapshots: snaps, Registry: reg, Dispatcher: disp})
	w.now = func() time.Time { return at(12, 0) }

	rep, err := w.TriggerManual(context.Background())
	if err != nil {
		t.Fatalf("TriggerManual: %v", err)
	}
	if snaps.replaced != 1 {
		t.Fatal("commit was rolled back after a delivery failure")
	}
	if rep.SendFailed != 1 {
		t.Fatalf("SendFailed = %d, want 1", rep.SendFailed)
	}
}

func TestManualTriggerRejectedWhileChecking(t *testing.T) {
	t.Parallel()

	block := make(chan struct{})
	fetcher := &fakeFetcher{recs: camsOf("A"), block: block}
	snaps := &fakeSnapshots{}
	w := newTestWatcher(t, Deps{Fetcher: fetcher, Snapshots: snaps, Registry: &fakeRegistry{}, Dispatcher: &fakeDispatcher{}})
	w.now = func() time.Time { return at(12, 0) }

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = w.TriggerManual(context.Background())
	}()

	// wait for the first cycle to reach its blocking fetch
	deadline := time.After(2 * time.Second)
	for w.State() != StateChecking {
		select {
		case <-deadline:
			t.Fatal("first cycle never started")
		case <-time.After(time.Millisecond):
		}
	}

	if _, err := w.TriggerManual(context.Background()); !errors.Is(err, ErrCycleInFlight) {
		t.Fatalf("second trigger error = %v, want ErrCycleInFlight", err)
	}

	close(block)
	<-done

	if w.State() == StateChecking {
		t.Fatal("watcher stuck in checking state")
	}
	if snaps.replaced != 1 {
		t.Fatalf("snapshot replaced %d times, want exactly 1", snaps.replaced)
	}
}

func TestQuietWindowTickDoesNothing(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{recs: camsOf("A")}
	snaps := &fakeSnapshots{}
	w := newTestWatcher(t, Deps{Fetcher: fetcher, Snapshots: snaps, Registry: &fakeRegistry{}, Dispatcher: &fakeDispatcher{}})
	w.now = func() time.Time { return at(3, 0) }

	w.tick(context.Background())

	if fetcher.callCount() != 0 {
		t.Fatal("tick fetched during the quiet window")
	}
	if snaps.replaced != 0 {
		t.Fatal("tick changed state during the quiet window")
	}
	if got := w.State(); got != StateQuietWindow {
		t.Fatalf("State = %v, want StateQuietWindow", got)
	}
}

func TestManualTriggerAllowedDuringQuietWindow(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{recs: camsOf("A")}
	snaps := &fakeSnapshots{}
	w := newTestWatcher(t, Deps{Fetcher: fetcher, Snapshots: snaps, Registry: &fakeRegistry{}, Dispatcher: &fakeDispatcher{}})
	w.now = func() time.Time { return at(3, 0) }

	if _, err := w.TriggerManual(context.Background()); err != nil {
		t.Fatalf("TriggerManual during quiet window: %v", err)
	}
	if snaps.replaced != 1 {
		t.Fatal("manual trigger did not run during quiet window")
	}
}

func TestLastReportIsCopied(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{recs: camsOf("A")}
	w := newTestWatcher(t, Deps{Fetcher: fetcher, Snapshots: &fakeSnapshots{}, Registry: &fakeRegistry{}, Dispatcher: &fakeDispatcher{}})
	w.now = func() time.Time { return at(12, 0) }

	if _, err := w.TriggerManual(context.Background()); err != nil {
		t.Fatalf("TriggerManual: %v", err)
	}
	rep := w.LastReport()
	if rep == nil {
		t.Fatal("LastReport = nil after a cycle")
	}
	rep.Added = 99
	if w.LastReport().Added == 99 {
		t.Fatal("LastReport leaks internal state")
	}
}
