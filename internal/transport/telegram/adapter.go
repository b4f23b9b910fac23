// Package telegram is the bot transport: it receives subscriber commands
// over long polling and delivers outbound notifications. It is the only
// package that talks to the Telegram API.
package telegram

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	tele "gopkg.in/telebot.v4"

	"veloxbot/internal/camera"
	"veloxbot/internal/watch"
	logx "veloxbot/pkg/logx"
)

type Config struct {
	Token       string
	PollTimeout time.Duration
}

// Status is what /status reports.
type Status struct {
	State        watch.State
	Last         *watch.CycleReport
	Subscribers  int
	KnownCameras int
	SnapshotAt   time.Time
}

// Commands is the application surface the bot drives. Each bot command maps
// 1:1 onto one of these operations.
type Commands interface {
	Subscribe(ctx context.Context, chatID int64) (newly bool, err error)
	Unsubscribe(ctx context.Context, chatID int64) (removed bool, err error)
	ToggleNoChangeNotify(ctx context.Context, chatID int64) (enabled bool, err error)
	KnownCameras(ctx context.Context) (camera.Snapshot, error)
	TriggerManual(ctx context.Context) (watch.CycleReport, error)
	Status(ctx context.Context) (Status, error)
}

type Adapter struct {
	log  logx.Logger
	cmds Commands
	bot  *tele.Bot

	runMu   sync.Mutex
	running bool
	baseCtx context.Context
}

func New(cfg Config, cmds Commands, log logx.Logger) (*Adapter, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	timeout := cfg.PollTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	b, err := tele.NewBot(tele.Settings{
		Token:  cfg.Token,
		Poller: &tele.LongPoller{Timeout: timeout},
	})
	if err != nil {
		return nil, err
	}
	a := &Adapter{
		log:     log.With(logx.String("comp", "telegram")),
		cmds:    cmds,
		bot:     b,
		baseCtx: context.Background(),
	}
	a.registerHandlers()
	return a, nil
}

// Start begins long polling. It returns immediately; polling stops when ctx
// is cancelled.
func (a *Adapter) Start(ctx context.Context) {
	a.runMu.Lock()
	if a.running {
		a.runMu.Unlock()
		return
	}
	a.running = true
	a.baseCtx = ctx
	a.runMu.Unlock()

	if err := a.bot.SetCommands(menuCommands); err != nil {
		a.log.Warn("failed setting command menu", logx.Err(err))
	}

	go a.bot.Start()
	go func() {
		<-ctx.Done()
		a.bot.Stop()
	}()
	a.log.Info("telegram polling started")
}

func (a *Adapter) ctx() context.Context {
	a.runMu.Lock()
	defer a.runMu.Unlock()
	return a.baseCtx
}

// Send delivers one message to one chat, with an optional photo. It
// implements the dispatcher's Messenger. Links in notification text point at
// maps, so previews are disabled to keep messages compact.
func (a *Adapter) Send(ctx context.Context, chatID int64, text string, photo []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	opts := &tele.SendOptions{
		ParseMode:             tele.ModeHTML,
		DisableWebPagePreview: true,
	}
	to := tele.ChatID(chatID)
	if len(photo) > 0 {
		p := &tele.Photo{File: tele.FromReader(bytes.NewReader(photo)), Caption: text}
		_, err := a.bot.Send(to, p, opts)
		return err
	}
	_, err := a.bot.Send(to, text, opts)
	return err
}
