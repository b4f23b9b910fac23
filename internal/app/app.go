// Package app wires the bot together: config, logging, storage, the
// watcher, the dispatcher and the Telegram transport.
package app

import (
	"context"
	"fmt"
	"time"

	"veloxbot/internal/camera"
	"veloxbot/internal/config"
	"veloxbot/internal/maprender"
	"veloxbot/internal/notify"
	"veloxbot/internal/scrape"
	"veloxbot/internal/storage"
	"veloxbot/internal/subscriber"
	"veloxbot/internal/transport/telegram"
	"veloxbot/internal/watch"
	logx "veloxbot/pkg/logx"
)

type App struct {
	log    logx.Logger
	logSvc *logx.Service
	mgr    *config.Manager

	store      storage.Store
	registry   *subscriber.Registry
	fetcher    *scrape.Fetcher
	renderer   *maprender.Renderer
	dispatcher *notify.Dispatcher
	watcher    *watch.Watcher
	tg         *telegram.Adapter
}

func New(cfgPath string) (*App, error) {
	a := &App{mgr: config.NewManager(cfgPath)}

	cfg, err := a.mgr.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	a.logSvc, a.log = logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File:    logx.FileConfig{Enabled: cfg.Logging.File.Enabled, Path: cfg.Logging.File.Path},
	})
	a.mgr.SetLogger(a.log.With(logx.String("comp", "config")))

	if err := a.build(cfg); err != nil {
		_ = a.logSvc.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) build(cfg *config.Config) error {
	busy, err := config.ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout)
	if err != nil {
		return err
	}
	a.store, err = storage.Open(storage.Config{
		Driver:      cfg.Storage.Driver,
		Path:        cfg.Storage.Path,
		BusyTimeout: busy,
	}, a.log.With(logx.String("comp", "storage")))
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}

	loadCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	a.registry, err = subscriber.NewRegistry(loadCtx, a.store, a.log.With(logx.String("comp", "registry")))
	if err != nil {
		return fmt.Errorf("load subscribers: %w", err)
	}

	fetchTimeout, err := config.ParseDurationOrDefault("source.fetch_timeout", cfg.Source.FetchTimeout, 30*time.Second)
	if err != nil {
		return err
	}
	a.fetcher = scrape.New(scrape.Config{
		URL:     cfg.Source.URL,
		Timeout: fetchTimeout,
	}, a.log.With(logx.String("comp", "scrape")))

	if cfg.Map != nil {
		mapTimeout, err := config.ParseDurationOrDefault("map.timeout", cfg.Map.Timeout, 10*time.Second)
		if err != nil {
			return err
		}
		a.renderer = maprender.New(maprender.Config{
			URL:     cfg.Map.URL,
			APIKey:  cfg.Map.APIKey,
			Zoom:    cfg.Map.Zoom,
			Width:   cfg.Map.Width,
			Height:  cfg.Map.Height,
			Timeout: mapTimeout,
		}, a.log.With(logx.String("comp", "maprender")))
	}

	pollTimeout, err := config.ParseDurationOrDefault("telegram.poll_timeout", cfg.Telegram.PollTimeout, 10*time.Second)
	if err != nil {
		return err
	}
	a.tg, err = telegram.New(telegram.Config{
		Token:       cfg.Telegram.Token,
		PollTimeout: pollTimeout,
	}, a, a.log)
	if err != nil {
		return fmt.Errorf("telegram: %w", err)
	}

	a.dispatcher = notify.New(notify.Config{
		Workers:    cfg.Notify.Workers,
		RatePerSec: cfg.Notify.RatePerSec,
	}, a.tg, a.renderer, a.log.With(logx.String("comp", "notify")))

	a.watcher, err = watch.New(watch.Config{
		Schedule:   cfg.Watch.Schedule,
		QuietStart: cfg.Watch.QuietStart,
		QuietEnd:   cfg.Watch.QuietEnd,
		Timezone:   cfg.Watch.Timezone,
	}, watch.Deps{
		Fetcher:    a.fetcher,
		Snapshots:  a.store,
		Registry:   a.registry,
		Dispatcher: a.dispatcher,
	}, a.log)
	if err != nil {
		return fmt.Errorf("watcher: %w", err)
	}
	return nil
}

// Start brings the services up and begins watching the config file for
// hot-appliable changes (log level, dispatcher rate).
func (a *App) Start(ctx context.Context) error {
	if err := a.watcher.Start(ctx); err != nil {
		return err
	}
	a.tg.Start(ctx)

	go func() {
		if err := a.mgr.Watch(ctx); err != nil {
			a.log.Warn("config watch stopped", logx.Err(err))
		}
	}()
	go a.applyLoop(ctx)

	a.log.Info("veloxbot started")
	return nil
}

func (a *App) applyLoop(ctx context.Context) {
	updates := a.mgr.Subscribe(1)
	defer a.mgr.Unsubscribe(updates)
	for {
		select {
		case <-ctx.Done():
			return
		case cfg, ok := <-updates:
			if !ok || cfg == nil {
				return
			}
			a.logSvc.Apply(logx.Config{
				Level:   cfg.Logging.Level,
				Console: cfg.Logging.Console,
				File:    logx.FileConfig{Enabled: cfg.Logging.File.Enabled, Path: cfg.Logging.File.Path},
			})
			a.dispatcher.Apply(notify.Config{
				Workers:    cfg.Notify.Workers,
				RatePerSec: cfg.Notify.RatePerSec,
			})
			a.log.Info("runtime config applied")
		}
	}
}

// Stop shuts down in dependency order. A cycle that is mid-send finishes
// its current recipient; the remaining fan-out is abandoned.
func (a *App) Stop(ctx context.Context) error {
	_ = ctx
	a.watcher.Stop()
	if err := a.store.Close(); err != nil {
		a.log.Warn("closing storage", logx.Err(err))
	}
	a.log.Info("veloxbot stopped")
	return a.logSvc.Close()
}

// ---- telegram.Commands ----

func (a *App) Subscribe(ctx context.Context, chatID int64) (bool, error) {
	return a.registry.Subscribe(ctx, chatID)
}

func (a *App) Unsubscribe(ctx context.Context, chatID int64) (bool, error) {
	return a.registry.Unsubscribe(ctx, chatID)
}

func (a *App) ToggleNoChangeNotify(ctx context.Context, chatID int64) (bool, error) {
	return a.registry.ToggleNoChangeNotify(ctx, chatID)
}

func (a *App) KnownCameras(ctx context.Context) (camera.Snapshot, error) {
	return a.store.LoadSnapshot(ctx)
}

func (a *App) TriggerManual(ctx context.Context) (watch.CycleReport, error) {
	return a.watcher.TriggerManual(ctx)
}

func (a *App) Status(ctx context.Context) (telegram.Status, error) {
	snap, err := a.store.LoadSnapshot(ctx)
	if err != nil {
		return telegram.Status{}, err
	}
	return telegram.Status{
		State:        a.watcher.State(),
		Last:         a.watcher.LastReport(),
		Subscribers:  a.registry.Count(),
		KnownCameras: len(snap.Cameras),
		SnapshotAt:   snap.UpdatedAt,
	}, nil
}
