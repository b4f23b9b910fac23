// Package scrape fetches the published speed-camera page and extracts the
// current set of camera records from it.
package scrape

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/paulmach/orb"

	"veloxbot/internal/camera"
	logx "veloxbot/pkg/logx"
)

// DefaultURL is the Lucerne police page listing active speed checks.
const DefaultURL = "https://polizei.lu.ch/organisation/sicherheit_verkehrspolizei/verkehrspolizei/spezialversorgung/verkehrssicherheit/Aktuelle_Tempomessungen"

const listSelector = "#radarList li"

// The anchors carry their map position in an inline onclick handler.
var coordPattern = regexp.MustCompile(`map\.flyTo\(\[\s*([0-9.+-]+)\s*,\s*([0-9.+-]+)`)

// FetchError is any failure to observe the source: network faults, bad
// status codes, and page-format problems all abort the cycle the same way.
type FetchError struct {
	Stage string // "request", "status", "parse", "extract"
	Err   error
}

func (e *FetchError) Error() string { return "fetch " + e.Stage + ": " + e.Err.Error() }
func (e *FetchError) Unwrap() error { return e.Err }

// ErrEmptyList marks a page that parsed but yielded no cameras. An empty
// result is indistinguishable from a silent page-format change, so it is
// treated as a fetch failure rather than as "all cameras removed".
var ErrEmptyList = errors.New("camera list empty or missing")

type Config struct {
	URL     string
	Timeout time.Duration
}

// Fetcher observes the source. It owns its HTTP timeout; callers get an
// explicit error instead of a hang.
type Fetcher struct {
	url    string
	client *http.Client
	log    logx.Logger
}

func New(cfg Config, log logx.Logger) *Fetcher {
	if log.IsZero() {
		log = logx.Nop()
	}
	url := strings.TrimSpace(cfg.URL)
	if url == "" {
		url = DefaultURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Fetcher{
		url:    url,
		client: &http.Client{Timeout: timeout},
		log:    log,
	}
}

// FetchCurrent downloads the page and extracts the current camera set.
// It never returns an empty, error-free result.
func (f *Fetcher) FetchCurrent(ctx context.Context) ([]camera.Record, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return nil, &FetchError{Stage: "request", Err: err}
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &FetchError{Stage: "request", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &FetchError{Stage: "status", Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, &FetchError{Stage: "parse", Err: err}
	}

	records := extract(doc, f.log)
	if len(records) == 0 {
		return nil, &FetchError{Stage: "extract", Err: ErrEmptyList}
	}
	f.log.Debug("fetched camera list", logx.Int("count", len(records)))
	return records, nil
}

// extract pulls records out of the radar list. The last <li> is a legend
// entry on the source page, not a camera, and is skipped.
func extract(doc *goquery.Document, log logx.Logger) []camera.Record {
	items := doc.Find(listSelector)
	n := items.Length()

	var records []camera.Record
	seen := map[string]bool{}
	items.Each(func(i int, li *goquery.Selection) {
		if i == n-1 {
			return
		}
		a := li.Find("a").First()
		label := strings.TrimSpace(a.Text())
		if label == "" {
			return
		}
		coord := parseCoord(a.AttrOr("onclick", ""))
		if coord == nil {
			log.Debug("camera entry without coordinates", logx.String("label", label))
		}
		rec := camera.NewRecord(label, coord)
		if seen[rec.ID] {
			return
		}
		seen[rec.ID] = true
		records = append(records, rec)
	})
	return records
}

func parseCoord(onclick string) *orb.Point {
	m := coordPattern.FindStringSubmatch(onclick)
	if m == nil {
		return nil
	}
	lat, err1 := strconv.ParseFloat(strings.TrimSpace(m[1]), 64)
	lon, err2 := strconv.ParseFloat(strings.TrimSpace(m[2]), 64)
	if err1 != nil || err2 != nil {
		return nil
	}
	p := orb.Point{lon, lat}
	return &p
}
