package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"veloxbot/internal/camera"
	"veloxbot/internal/subscriber"
	logx "veloxbot/pkg/logx"
)

// fileStore is the dependency-free persistence backend.
//
// Files:
//   - <prefix>.cameras.json     (camera snapshot + timestamp)
//   - <prefix>.subscribers.json (subscriber mapping)
//
// Every write goes to a sibling .tmp file which is fsynced and renamed over
// the target, so a crash mid-write leaves the previous complete value.
type fileStore struct {
	log logx.Logger

	mu       sync.Mutex
	snapPath string
	subsPath string
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage.path is required for file driver")
	}

	dir := filepath.Dir(path)
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(filepath.Base(path)))
	prefix := filepath.Join(dir, base)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	return &fileStore{
		log:      log,
		snapPath: prefix + ".cameras.json",
		subsPath: prefix + ".subscribers.json",
	}, nil
}

func (s *fileStore) Close() error { return nil }

func (s *fileStore) LoadSnapshot(ctx context.Context) (camera.Snapshot, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()

	var snap camera.Snapshot
	ok, err := readJSON(s.snapPath, &snap)
	if err != nil {
		return camera.Snapshot{}, fmt.Errorf("load snapshot: %w", err)
	}
	if !ok {
		// First run: nothing known yet.
		return camera.Snapshot{}, nil
	}
	return snap, nil
}

func (s *fileStore) ReplaceSnapshot(ctx context.Context, snap camera.Snapshot) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := writeJSONAtomic(s.snapPath, snap); err != nil {
		return fmt.Errorf("replace snapshot: %w", err)
	}
	return nil
}

func (s *fileStore) LoadSubscribers(ctx context.Context) ([]subscriber.Subscriber, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()

	var subs []subscriber.Subscriber
	ok, err := readJSON(s.subsPath, &subs)
	if err != nil {
		return nil, fmt.Errorf("load subscribers: %w", err)
	}
	if !ok {
		return nil, nil
	}
	return subs, nil
}

func (s *fileStore) SaveSubscribers(ctx context.Context, subs []subscriber.Subscriber) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if subs == nil {
		subs = []subscriber.Subscriber{}
	}
	if err := writeJSONAtomic(s.subsPath, subs); err != nil {
		return fmt.Errorf("save subscribers: %w", err)
	}
	return nil
}

// readJSON reports (false, nil) when the file does not exist yet.
func readJSON(path string, out any) (bool, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	if len(b) == 0 {
		return false, nil
	}
	if err := json.Unmarshal(b, out); err != nil {
		return false, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return true, nil
}

func writeJSONAtomic(path string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	if _, err := f.Write(b); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}
