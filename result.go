package annex

import "github.com/hupe1980/annex/engine"

// Neighbor is one search hit.
type Neighbor struct {
	ID       int64   `json:"id"`
	Distance float32 `json:"distance"`
}

// RawResults is the fixed-size buffer filled by one engine search: NumQueries
// rows of K slots, row-major. Slots without a hit hold engine.NoLabel.
type RawResults struct {
	K          int
	NumQueries int
	IDs        []int64
	Distances  []float32
}

func newRawResults(k, numQueries int) RawResults {
	return RawResults{
		K:          k,
		NumQueries: numQueries,
		IDs:        make([]int64, k*numQueries),
		Distances:  make([]float32, k*numQueries),
	}
}

// Slot returns the hit stored at flat position i, or false for an empty slot.
func (r RawResults) Slot(i int) (Neighbor, bool) {
	if r.IDs[i] == engine.NoLabel {
		return Neighbor{}, false
	}
	return Neighbor{ID: r.IDs[i], Distance: r.Distances[i]}, true
}

// Truncate drops the empty slots at the end of the whole buffer.
// See Truncate.
func (r RawResults) Truncate() ([]int64, []float32) {
	return Truncate(r.IDs, r.Distances)
}

// Row returns the hits of query q in rank order, skipping empty slots.
func (r RawResults) Row(q int) []Neighbor {
	out := make([]Neighbor, 0, r.K)
	for i := q * r.K; i < (q+1)*r.K && i < len(r.IDs); i++ {
		if n, ok := r.Slot(i); ok {
			out = append(out, n)
		}
	}
	return out
}

// Rows returns Row for every query.
func (r RawResults) Rows() [][]Neighbor {
	rows := make([][]Neighbor, r.NumQueries)
	for q := range rows {
		rows[q] = r.Row(q)
	}
	return rows
}

// Truncate cuts ids and distances after the last slot that holds a hit.
//
// The scan runs backward from the end of the buffer, so only padding after
// the final hit is removed. With several queries, empty slots inside earlier
// rows are kept; use RawResults.Rows to split per query. A buffer without
// any hit yields two empty slices.
func Truncate(ids []int64, distances []float32) ([]int64, []float32) {
	end := len(ids)
	for end > 0 && ids[end-1] == engine.NoLabel {
		end--
	}
	return ids[:end], distances[:min(end, len(distances))]
}
