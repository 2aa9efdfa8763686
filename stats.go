package annex

import (
	"strings"

	"github.com/hupe1980/annex/engine"
)

// Stats is a point-in-time description of an index.
type Stats struct {
	Family      string `json:"family"`
	Dimension   int    `json:"dimension"`
	Metric      string `json:"metric"`
	Count       int64  `json:"count"`
	Trained     bool   `json:"trained"`
	MaxID       int64  `json:"max_id"`
	DistinctIDs uint64 `json:"distinct_ids"`
	Duplicates  int64  `json:"duplicates"`
	Path        string `json:"path,omitempty"`
}

// Stats returns a snapshot of the index state.
func (ix *Index) Stats() (Stats, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if ix.closed {
		return Stats{}, ErrClosed
	}

	s := Stats{
		Family:      strings.TrimPrefix(engine.Family(ix.idx), "IDMap,"),
		Dimension:   ix.cfg.Dimension,
		Metric:      ix.cfg.Metric.String(),
		Count:       ix.idx.NTotal(),
		Trained:     ix.idx.IsTrained(),
		DistinctIDs: ix.idx.DistinctIDs(),
		Duplicates:  ix.idx.Duplicates(),
		Path:        ix.cfg.Path,
	}
	if s.Count > 0 {
		s.MaxID = ix.idx.IDAt(s.Count - 1)
	}
	return s, nil
}
