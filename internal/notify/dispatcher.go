// Package notify fans one update cycle's diff out to all eligible
// subscribers. Sends are rate limited, and every failure is isolated to the
// (recipient, message) pair it happened on: the committed snapshot is never
// rolled back because someone's Telegram chat was unreachable.
package notify

import (
	"context"
	"sync"
	"time"

	"github.com/paulmach/orb"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"veloxbot/internal/camera"
	"veloxbot/internal/subscriber"
	logx "veloxbot/pkg/logx"
)

// Messenger delivers one message to one chat. Implemented by the Telegram
// adapter. SendErrors are per-recipient and never treated as cycle failures.
type Messenger interface {
	Send(ctx context.Context, chatID int64, text string, photo []byte) error
}

// Renderer is the optional map-image collaborator.
type Renderer interface {
	Available() bool
	Render(ctx context.Context, pt orb.Point) ([]byte, error)
}

// Outcome records delivery results for one recipient in one cycle. It is
// used for logging and the /status report, never persisted.
type Outcome struct {
	ChatID int64
	Sent   int
	Failed int
	Err    error // first error, when Failed > 0
}

type Config struct {
	Workers    int
	RatePerSec int
}

type Dispatcher struct {
	log      logx.Logger
	msgr     Messenger
	renderer Renderer

	mu      sync.Mutex
	cfg     Config
	limiter *rate.Limiter
}

// New creates a dispatcher. renderer may be nil ("never enrich").
func New(cfg Config, msgr Messenger, renderer Renderer, log logx.Logger) *Dispatcher {
	if log.IsZero() {
		log = logx.Nop()
	}
	d := &Dispatcher{log: log, msgr: msgr, renderer: renderer}
	d.applyLocked(cfg)
	return d
}

// Apply updates worker/rate settings at runtime (config hot reload).
func (d *Dispatcher) Apply(cfg Config) {
	d.mu.Lock()
	d.applyLocked(cfg)
	d.mu.Unlock()
}

func (d *Dispatcher) applyLocked(cfg Config) {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.RatePerSec <= 0 {
		// Telegram flood limits allow ~30 msg/s overall; stay well below.
		cfg.RatePerSec = 10
	}
	d.cfg = cfg
	// Token bucket: burst = rate per sec, so short spikes don't stall.
	d.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec)
}

// message is one prepared send, shared by all recipients of the cycle.
type message struct {
	text  string
	photo []byte
}

// Dispatch delivers the cycle's notifications and returns one outcome per
// recipient. The caller has already selected eligible recipients; this
// method only applies the message policy:
//
//   - one message per added camera (map-enriched when possible),
//   - one removal summary when cameras disappeared,
//   - a single no-change notice when the diff is empty.
func (d *Dispatcher) Dispatch(ctx context.Context, diff camera.DiffResult, recipients []subscriber.Subscriber) []Outcome {
	msgs := d.buildMessages(ctx, diff)
	if len(msgs) == 0 || len(recipients) == 0 {
		return nil
	}

	d.mu.Lock()
	workers := d.cfg.Workers
	limiter := d.limiter
	d.mu.Unlock()

	start := time.Now()
	outcomes := make([]Outcome, len(recipients))

	var g errgroup.Group
	g.SetLimit(workers)
	for i, rcpt := range recipients {
		i, rcpt := i, rcpt
		g.Go(func() error {
			outcomes[i] = d.sendAll(ctx, limiter, rcpt.ChatID, msgs)
			return nil
		})
	}
	_ = g.Wait()

	sent, failed := 0, 0
	for _, o := range outcomes {
		sent += o.Sent
		failed += o.Failed
	}
	fields := []logx.Field{
		logx.Int("recipients", len(recipients)),
		logx.Int("messages", len(msgs)),
		logx.Int("sent", sent),
		logx.Int("failed", failed),
		logx.Duration("took", time.Since(start)),
	}
	if failed > 0 {
		d.log.Warn("fan-out finished with failures", fields...)
	} else {
		d.log.Info("fan-out finished", fields...)
	}
	return outcomes
}

// sendAll delivers every cycle message to one recipient, continuing past
// individual failures. Shutdown stops between messages, never mid-send.
func (d *Dispatcher) sendAll(ctx context.Context, limiter *rate.Limiter, chatID int64, msgs []message) Outcome {
	out := Outcome{ChatID: chatID}
	for _, m := range msgs {
		if err := limiter.Wait(ctx); err != nil {
			if out.Err == nil {
				out.Err = err
			}
			out.Failed += len(msgs) - out.Sent - out.Failed
			return out
		}
		if err := d.msgr.Send(ctx, chatID, m.text, m.photo); err != nil {
			out.Failed++
			if out.Err == nil {
				out.Err = err
			}
			d.log.Warn("send failed", logx.Int64("chat_id", chatID), logx.Err(err))
			continue
		}
		out.Sent++
	}
	return out
}

// buildMessages prepares the cycle's messages once, so map images are
// rendered a single time per added camera and shared by every recipient.
// Enrichment is best-effort: a render failure degrades that one message to
// text-only.
func (d *Dispatcher) buildMessages(ctx context.Context, diff camera.DiffResult) []message {
	if diff.Empty() {
		return []message{{text: noChangeText}}
	}

	enrich := d.renderer != nil && d.renderer.Available()
	var msgs []message
	for _, r := range diff.Added {
		m := message{text: addedText(r)}
		if enrich && r.HasCoord() {
			img, err := d.renderer.Render(ctx, *r.Coord)
			if err != nil {
				d.log.Warn("map render failed, sending text only",
					logx.String("camera", r.Label), logx.Err(err))
			} else {
				m.photo = img
			}
		}
		msgs = append(msgs, m)
	}
	if len(diff.Removed) > 0 {
		msgs = append(msgs, message{text: removedText(diff.Removed)})
	}
	return msgs
}
