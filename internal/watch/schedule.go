package watch

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// SpecKind distinguishes schedule styles.
type SpecKind int

const (
	SpecCron SpecKind = iota
	SpecInterval
)

// Spec is a parsed schedule.
type Spec struct {
	Kind   SpecKind
	Cron   string        // when Kind == SpecCron
	Every  time.Duration // when Kind == SpecInterval
	Source string        // "cron", "duration" or "hhmm" (for diagnostics)
}

// cronEntry returns the string handed to the cron runner.
func (s Spec) cronEntry() string {
	if s.Kind == SpecInterval {
		return "@every " + s.Every.String()
	}
	return s.Cron
}

var scheduleParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// ParseSchedule accepts several spellings:
//
//	"*/30 * * * *"     cron expression
//	"cron:0 8,16 * * *" explicit cron prefix
//	"30m"               Go duration interval
//	"interval:45m"      explicit interval prefix
//	"01:30"             HH:MM shorthand for an interval
func ParseSchedule(raw string) (Spec, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Spec{}, errors.New("schedule is empty")
	}

	if rest, ok := strings.CutPrefix(s, "cron:"); ok {
		return parseCronSpec(rest)
	}
	if rest, ok := strings.CutPrefix(s, "interval:"); ok {
		return parseIntervalSpec(rest)
	}

	if h, m, err := parseHHMM(s); err == nil && (h > 0 || m > 0) {
		return Spec{
			Kind:   SpecInterval,
			Every:  time.Duration(h)*time.Hour + time.Duration(m)*time.Minute,
			Source: "hhmm",
		}, nil
	}
	if d, err := time.ParseDuration(s); err == nil {
		return parseIntervalSpec(d.String())
	}
	return parseCronSpec(s)
}

func parseCronSpec(s string) (Spec, error) {
	s = strings.TrimSpace(s)
	if _, err := scheduleParser.Parse(s); err != nil {
		return Spec{}, fmt.Errorf("invalid cron spec %q: %w", s, err)
	}
	return Spec{Kind: SpecCron, Cron: s, Source: "cron"}, nil
}

func parseIntervalSpec(s string) (Spec, error) {
	d, err := time.ParseDuration(strings.TrimSpace(s))
	if err != nil {
		return Spec{}, fmt.Errorf("invalid interval %q: %w", s, err)
	}
	if d < time.Minute {
		return Spec{}, fmt.Errorf("interval %q too short: minimum is 1m", s)
	}
	return Spec{Kind: SpecInterval, Every: d, Source: "duration"}, nil
}

func parseHHMM(s string) (hour, minute int, err error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("not HH:MM: %q", s)
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("invalid hour in %q", s)
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid minute in %q", s)
	}
	return hour, minute, nil
}
