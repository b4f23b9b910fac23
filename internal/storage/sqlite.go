//go:build sqlite
// +build sqlite

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/paulmach/orb"
	_ "modernc.org/sqlite"

	"veloxbot/internal/camera"
	"veloxbot/internal/subscriber"
	logx "veloxbot/pkg/logx"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS cameras (
	id    TEXT PRIMARY KEY,
	label TEXT NOT NULL,
	lat   REAL,
	lon   REAL
);
CREATE TABLE IF NOT EXISTS meta (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS subscribers (
	chat_id          INTEGER PRIMARY KEY,
	notify_no_change INTEGER NOT NULL DEFAULT 0,
	subscribed_at    TEXT NOT NULL
);
`

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage.path is required for sqlite driver")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	busy := cfg.BusyTimeout
	if busy <= 0 {
		busy = 5 * time.Second
	}
	dsn := "file:" + path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(" +
		fmt.Sprint(busy.Milliseconds()) + ")&_pragma=foreign_keys(ON)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	log.Debug("sqlite store opened", logx.String("path", path))
	return &sqliteStore{db: db, log: log}, nil
}

func (s *sqliteStore) Close() error { return s.db.Close() }

func (s *sqliteStore) LoadSnapshot(ctx context.Context) (camera.Snapshot, error) {
	var snap camera.Snapshot

	rows, err := s.db.QueryContext(ctx, `SELECT id, label, lat, lon FROM cameras ORDER BY label, id`)
	if err != nil {
		return camera.Snapshot{}, fmt.Errorf("load snapshot: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			r        camera.Record
			lat, lon sql.NullFloat64
		)
		if err := rows.Scan(&r.ID, &r.Label, &lat, &lon); err != nil {
			return camera.Snapshot{}, fmt.Errorf("load snapshot: %w", err)
		}
		if lat.Valid && lon.Valid {
			p := orb.Point{lon.Float64, lat.Float64}
			r.Coord = &p
		}
		snap.Cameras = append(snap.Cameras, r)
	}
	if err := rows.Err(); err != nil {
		return camera.Snapshot{}, fmt.Errorf("load snapshot: %w", err)
	}

	var raw string
	err = s.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = 'snapshot_updated_at'`).Scan(&raw)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		// no snapshot committed yet
	case err != nil:
		return camera.Snapshot{}, fmt.Errorf("load snapshot: %w", err)
	default:
		if ts, perr := time.Parse(time.RFC3339Nano, raw); perr == nil {
			snap.UpdatedAt = ts
		}
	}
	return snap, nil
}

func (s *sqliteStore) ReplaceSnapshot(ctx context.Context, snap camera.Snapshot) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("replace snapshot: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM cameras`); err != nil {
		return fmt.Errorf("replace snapshot: %w", err)
	}
	for _, r := range snap.Cameras {
		var lat, lon any
		if r.HasCoord() {
			lat, lon = r.Lat(), r.Lon()
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO cameras (id, label, lat, lon) VALUES (?, ?, ?, ?)`,
			r.ID, r.Label, lat, lon); err != nil {
			return fmt.Errorf("replace snapshot: %w", err)
		}
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO meta (key, value) VALUES ('snapshot_updated_at', ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		snap.UpdatedAt.Format(time.RFC3339Nano)); err != nil {
		return fmt.Errorf("replace snapshot: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("replace snapshot: %w", err)
	}
	return nil
}

func (s *sqliteStore) LoadSubscribers(ctx context.Context) ([]subscriber.Subscriber, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT chat_id, notify_no_change, subscribed_at FROM subscribers ORDER BY chat_id`)
	if err != nil {
		return nil, fmt.Errorf("load subscribers: %w", err)
	}
	defer rows.Close()

	var subs []subscriber.Subscriber
	for rows.Next() {
		var (
			sub  subscriber.Subscriber
			flag int
			at   string
		)
		if err := rows.Scan(&sub.ChatID, &flag, &at); err != nil {
			return nil, fmt.Errorf("load subscribers: %w", err)
		}
		sub.NotifyNoChange = flag != 0
		if ts, perr := time.Parse(time.RFC3339Nano, at); perr == nil {
			sub.SubscribedAt = ts
		}
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load subscribers: %w", err)
	}
	return subs, nil
}

func (s *sqliteStore) SaveSubscribers(ctx context.Context, subs []subscriber.Subscriber) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("save subscribers: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM subscribers`); err != nil {
		return fmt.Errorf("save subscribers: %w", err)
	}
	for _, sub := range subs {
		flag := 0
		if sub.NotifyNoChange {
			flag = 1
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO subscribers (chat_id, notify_no_change, subscribed_at) VALUES (?, ?, ?)`,
			sub.ChatID, flag, sub.SubscribedAt.Format(time.RFC3339Nano)); err != nil {
			return fmt.Errorf("save subscribers: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("save subscribers: %w", err)
	}
	return nil
}
