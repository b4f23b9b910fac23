package camera

import (
	"testing"

	"github.com/paulmach/orb"
)

func rec(label string) Record { return NewRecord(label, nil) }

func geoRec(label string, lat, lon float64) Record {
	p := orb.Point{lon, lat}
	return NewRecord(label, &p)
}

func ids(rs []Record) map[string]bool {
	m := make(map[string]bool, len(rs))
	for _, r := range rs {
		m[r.ID] = true
	}
	return m
}

func TestDiffPartitions(t *testing.T) {
	t.Parallel()

	a := rec("Kantonsstrasse Luzern")
	b := geoRec("Obernau, Dorfstrasse", 47.0349, 8.2512)
	c := geoRec("Emmenbruecke, Seetalstrasse", 47.0812, 8.2761)

	prev := []Record{a, b}
	cur := []Record{b, c}

	d := Diff(prev, cur)

	if got := ids(d.Added); len(got) != 1 || !got[c.ID] {
		t.Fatalf("Added = %v, want {%s}", d.Added, c.Label)
	}
	if got := ids(d.Removed); len(got) != 1 || !got[a.ID] {
		t.Fatalf("Removed = %v, want {%s}", d.Removed, a.Label)
	}
	if got := ids(d.Unchanged); len(got) != 1 || !got[b.ID] {
		t.Fatalf("Unchanged = %v, want {%s}", d.Unchanged, b.Label)
	}

	// added ∪ unchanged must equal current, removed ∪ unchanged must equal previous
	if len(d.Added)+len(d.Unchanged) != len(cur) {
		t.Fatalf("added+unchanged = %d, want %d", len(d.Added)+len(d.Unchanged), len(cur))
	}
	if len(d.Removed)+len(d.Unchanged) != len(prev) {
		t.Fatalf("removed+unchanged = %d, want %d", len(d.Removed)+len(d.Unchanged), len(prev))
	}
	// added and removed must be disjoint
	added := ids(d.Added)
	for id := range ids(d.Removed) {
		if added[id] {
			t.Fatalf("record %s in both added and removed", id)
		}
	}
}

func TestDiffIdentical(t *testing.T) {
	t.Parallel()

	sets := [][]Record{
		nil,
		{rec("A")},
		{rec("A"), rec("B"), geoRec("C", 47.05, 8.3)},
	}
	for _, set := range sets {
		d := Diff(set, set)
		if len(d.Added) != 0 || len(d.Removed) != 0 {
			t.Fatalf("Diff(X, X) = added %d, removed %d; want 0, 0", len(d.Added), len(d.Removed))
		}
		if len(d.Unchanged) != len(set) {
			t.Fatalf("Unchanged = %d, want %d", len(d.Unchanged), len(set))
		}
		if !d.Empty() {
			t.Fatal("Diff(X, X).Empty() = false")
		}
	}
}

func TestDiffEmptyPrevious(t *testing.T) {
	t.Parallel()

	cur := []Record{rec("A"), rec("B")}
	d := Diff(nil, cur)
	if len(d.Added) != 2 || len(d.Removed) != 0 || len(d.Unchanged) != 0 {
		t.Fatalf("first-run diff = %+v, want all added", d)
	}
}

func TestDiffDeterministicOrder(t *testing.T) {
	t.Parallel()

	cur := []Record{rec("Zell"), rec("Adligenswil"), rec("Malters")}
	d := Diff(nil, cur)
	want := []string{"Adligenswil", "Malters", "Zell"}
	for i, r := range d.Added {
		if r.Label != want[i] {
			t.Fatalf("Added[%d] = %s, want %s", i, r.Label, want[i])
		}
	}
}
