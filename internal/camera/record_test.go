package camera

import (
	"testing"

	"github.com/paulmach/orb"
)

func TestRecordIdentityNormalizesText(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		a, b string
		same bool
	}{
		{name: "whitespace", a: "Luzern,  Hirschengraben", b: "Luzern, Hirschengraben", same: true},
		{name: "case", a: "Luzern, Hirschengraben", b: "LUZERN, HIRSCHENGRABEN", same: true},
		{name: "leading and trailing", a: "  Luzern, Hirschengraben ", b: "Luzern, Hirschengraben", same: true},
		{name: "different location", a: "Luzern, Hirschengraben", b: "Kriens, Luzernerstrasse", same: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ra, rb := NewRecord(tt.a, nil), NewRecord(tt.b, nil)
			if (ra.ID == rb.ID) != tt.same {
				t.Fatalf("ID equality = %v, want %v (%q vs %q)", ra.ID == rb.ID, tt.same, tt.a, tt.b)
			}
		})
	}
}

func TestRecordIdentityPrefersCoordinate(t *testing.T) {
	t.Parallel()

	p := orb.Point{8.2512, 47.0349}
	a := NewRecord("Obernau, Dorfstrasse", &p)
	b := NewRecord("Obernau (Dorfstrasse, Hoehe Schulhaus)", &p)
	if a.ID != b.ID {
		t.Fatal("relabeled camera at the same position got a new identity")
	}

	q := orb.Point{8.2761, 47.0812}
	c := NewRecord("Obernau, Dorfstrasse", &q)
	if a.ID == c.ID {
		t.Fatal("cameras at different positions share an identity")
	}
}

func TestRecordCoordinateRounding(t *testing.T) {
	t.Parallel()

	// Float noise beyond ~1m must not split an entity in two.
	p := orb.Point{8.2512, 47.0349}
	q := orb.Point{8.25120000001, 47.03490000001}
	if NewRecord("X", &p).ID != NewRecord("X", &q).ID {
		t.Fatal("sub-meter coordinate noise changed the identity")
	}
}

func TestRecordImmutableCoord(t *testing.T) {
	t.Parallel()

	p := orb.Point{8.25, 47.03}
	r := NewRecord("X", &p)
	p[0] = 9.99
	if r.Lon() != 8.25 {
		t.Fatal("record shares memory with the caller's point")
	}
}

func TestSnapshotIndex(t *testing.T) {
	t.Parallel()

	s := Snapshot{Cameras: []Record{rec("A"), rec("B")}}
	idx := s.Index()
	if len(idx) != 2 {
		t.Fatalf("index size = %d, want 2", len(idx))
	}
	for _, r := range s.Cameras {
		if idx[r.ID].Label != r.Label {
			t.Fatalf("index[%s] = %+v, want %+v", r.ID, idx[r.ID], r)
		}
	}
}
