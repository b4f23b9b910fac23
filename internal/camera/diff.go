package camera

import "sort"

// DiffResult partitions a fresh observation against the previous snapshot.
// It is ephemeral: computed once per update cycle, handed to the dispatcher,
// then discarded.
type DiffResult struct {
	Added     []Record
	Removed   []Record
	Unchanged []Record
}

// Empty reports whether the cycle observed no change at all.
func (d DiffResult) Empty() bool { return len(d.Added) == 0 && len(d.Removed) == 0 }

// Diff computes the set difference between the previous and current record
// sets, keyed by ID. Pure and deterministic: no I/O, and each partition is
// sorted by label (then ID) so downstream messages are stable.
func Diff(previous, current []Record) DiffResult {
	prev := make(map[string]Record, len(previous))
	for _, r := range previous {
		prev[r.ID] = r
	}
	cur := make(map[string]Record, len(current))
	for _, r := range current {
		cur[r.ID] = r
	}

	var d DiffResult
	for id, r := range cur {
		if _, ok := prev[id]; ok {
			d.Unchanged = append(d.Unchanged, r)
		} else {
			d.Added = append(d.Added, r)
		}
	}
	for id, r := range prev {
		if _, ok := cur[id]; !ok {
			d.Removed = append(d.Removed, r)
		}
	}

	sortRecords(d.Added)
	sortRecords(d.Removed)
	sortRecords(d.Unchanged)
	return d
}

func sortRecords(rs []Record) {
	sort.Slice(rs, func(i, j int) bool {
		if rs[i].Label != rs[j].Label {
			return rs[i].Label < rs[j].Label
		}
		return rs[i].ID < rs[j].ID
	})
}
