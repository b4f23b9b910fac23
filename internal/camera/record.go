// Package camera holds the domain model for speed-camera records:
// identity rules, the persisted snapshot, and the set diff.
package camera

import (
	"fmt"
	"hash/fnv"
	"strings"
	"time"

	"github.com/paulmach/orb"
)

// Record is one speed-camera entry as published by the source.
//
// The source has no stable numeric key, so identity is derived: from the
// rounded coordinate when one is present (a relabeled camera at the same
// spot stays the same entity), otherwise from the normalized label text.
// Records are immutable once constructed.
type Record struct {
	ID    string     `json:"id"`
	Label string     `json:"label"`
	Coord *orb.Point `json:"coord,omitempty"`
}

// NewRecord builds a Record with its derived ID. coord may be nil.
func NewRecord(label string, coord *orb.Point) Record {
	r := Record{Label: strings.TrimSpace(label)}
	if coord != nil {
		p := *coord
		r.Coord = &p
	}
	r.ID = deriveID(r.Label, r.Coord)
	return r
}

// HasCoord reports whether the source published a map position for this entry.
func (r Record) HasCoord() bool { return r.Coord != nil }

// Lat and Lon panic-free accessors; only meaningful when HasCoord().
func (r Record) Lat() float64 {
	if r.Coord == nil {
		return 0
	}
	return r.Coord.Lat()
}

func (r Record) Lon() float64 {
	if r.Coord == nil {
		return 0
	}
	return r.Coord.Lon()
}

// deriveID hashes the identity key with fnv64a. Coordinates are rounded to
// five decimals (~1m) so float noise in the page markup cannot split an
// entity in two.
func deriveID(label string, coord *orb.Point) string {
	var key string
	if coord != nil {
		key = fmt.Sprintf("geo:%.5f,%.5f", coord.Lat(), coord.Lon())
	} else {
		key = "label:" + NormalizeLabel(label)
	}
	h := fnv.New64a()
	_, _ = h.Write([]byte(key))
	return fmt.Sprintf("%016x", h.Sum64())
}

// NormalizeLabel collapses whitespace and case-folds, so superficial text
// differences do not change identity.
func NormalizeLabel(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// Snapshot is the complete set of currently-known cameras at a point in
// time. It is replaced wholesale after each successful fetch, never patched.
type Snapshot struct {
	Cameras   []Record  `json:"cameras"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Index returns the snapshot's records keyed by ID.
func (s Snapshot) Index() map[string]Record {
	m := make(map[string]Record, len(s.Cameras))
	for _, r := range s.Cameras {
		m[r.ID] = r
	}
	return m
}
