// Package maprender renders a small static map image for a camera position.
//
// The renderer is an optional collaborator: with no endpoint configured it
// reports unavailable and the dispatcher never attempts enrichment. A failed
// render downgrades one message to text-only; it is never escalated.
package maprender

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/paulmach/orb"

	logx "veloxbot/pkg/logx"
)

// Config points at a static-map HTTP endpoint. URL may contain the
// placeholders {lat}, {lon}, {zoom}, {width}, {height} and {key}, which are
// substituted per request.
type Config struct {
	URL     string
	APIKey  string
	Zoom    int
	Width   int
	Height  int
	Timeout time.Duration
}

// maxImageBytes caps a single rendered image (Telegram photo uploads are
// limited well below this anyway).
const maxImageBytes = 5 << 20

type Renderer struct {
	cfg    Config
	client *http.Client
	log    logx.Logger
}

func New(cfg Config, log logx.Logger) *Renderer {
	if log.IsZero() {
		log = logx.Nop()
	}
	if cfg.Zoom <= 0 {
		cfg.Zoom = 15
	}
	if cfg.Width <= 0 {
		cfg.Width = 600
	}
	if cfg.Height <= 0 {
		cfg.Height = 400
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Renderer{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
		log:    log,
	}
}

// Available reports whether enrichment is configured at all. A nil Renderer
// is a valid "never enrich" collaborator.
func (r *Renderer) Available() bool {
	return r != nil && strings.TrimSpace(r.cfg.URL) != ""
}

// Render fetches a map image centered on the given point.
func (r *Renderer) Render(ctx context.Context, pt orb.Point) ([]byte, error) {
	if !r.Available() {
		return nil, fmt.Errorf("map renderer not configured")
	}

	url := r.expandURL(pt)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("map endpoint returned status %d", resp.StatusCode)
	}
	img, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return nil, err
	}
	if len(img) == 0 {
		return nil, fmt.Errorf("map endpoint returned empty body")
	}
	return img, nil
}

func (r *Renderer) expandURL(pt orb.Point) string {
	rep := strings.NewReplacer(
		"{lat}", strconv.FormatFloat(pt.Lat(), 'f', 6, 64),
		"{lon}", strconv.FormatFloat(pt.Lon(), 'f', 6, 64),
		"{zoom}", strconv.Itoa(r.cfg.Zoom),
		"{width}", strconv.Itoa(r.cfg.Width),
		"{height}", strconv.Itoa(r.cfg.Height),
		"{key}", r.cfg.APIKey,
	)
	return rep.Replace(r.cfg.URL)
}
