package watch

import (
	"fmt"
	"strings"
	"time"
)

// QuietWindow is a local-time range during which scheduled cycles are
// skipped. The window may wrap midnight ("22:00" to "06:00"). Containment is
// start-inclusive, end-exclusive. A zero QuietWindow never matches.
type QuietWindow struct {
	start   int // minutes of day
	end     int
	enabled bool
}

// ParseQuietWindow builds a window from "HH:MM" bounds. Both empty disables
// the window; only one set is a config error.
func ParseQuietWindow(startRaw, endRaw string) (QuietWindow, error) {
	startRaw = strings.TrimSpace(startRaw)
	endRaw = strings.TrimSpace(endRaw)
	if startRaw == "" && endRaw == "" {
		return QuietWindow{}, nil
	}
	if startRaw == "" || endRaw == "" {
		return QuietWindow{}, fmt.Errorf("quiet window needs both bounds (got start=%q end=%q)", startRaw, endRaw)
	}
	sh, sm, err := parseHHMM(startRaw)
	if err != nil {
		return QuietWindow{}, fmt.Errorf("quiet window start: %w", err)
	}
	eh, em, err := parseHHMM(endRaw)
	if err != nil {
		return QuietWindow{}, fmt.Errorf("quiet window end: %w", err)
	}
	w := QuietWindow{start: sh*60 + sm, end: eh*60 + em, enabled: true}
	if w.start == w.end {
		return QuietWindow{}, fmt.Errorf("quiet window start and end are equal (%s); omit both to disable", startRaw)
	}
	return w, nil
}

// Contains reports whether t (interpreted in its own location) falls inside
// the window.
func (w QuietWindow) Contains(t time.Time) bool {
	if !w.enabled {
		return false
	}
	m := t.Hour()*60 + t.Minute()
	if w.start < w.end {
		return m >= w.start && m < w.end
	}
	// wraps midnight
	return m >= w.start || m < w.end
}
