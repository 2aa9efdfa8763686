package engine

import (
	"fmt"

	"github.com/RoaringBitmap/roaring/v2/roaring64"

	"github.com/hupe1980/annex/distance"
)

var (
	_ Index           = (*IDMap)(nil)
	_ ParameterSetter = (*IDMap)(nil)
)

// IDMap associates caller-assigned int64 ids with the dense rows of an inner index.
//
// ids[i] is the id of inner row i. Ids only ever grow by appending and are
// appended after the inner index accepted the rows.
type IDMap struct {
	inner      Index
	ids        []int64
	seen       *roaring64.Bitmap
	duplicates int64
}

// NewIDMap wraps inner. The inner index must be empty.
func NewIDMap(inner Index) *IDMap {
	return &IDMap{
		inner: inner,
		seen:  roaring64.New(),
	}
}

// Inner returns the wrapped index.
func (m *IDMap) Inner() Index { return m.inner }

func (m *IDMap) Dimension() int          { return m.inner.Dimension() }
func (m *IDMap) Metric() distance.Metric { return m.inner.Metric() }
func (m *IDMap) IsTrained() bool         { return m.inner.IsTrained() }
func (m *IDMap) NTotal() int64           { return int64(len(m.ids)) }

// Train forwards to the inner index.
func (m *IDMap) Train(n int, x []float32) error {
	return m.inner.Train(n, x)
}

// Add is not supported; ids are mandatory.
func (m *IDMap) Add(int, []float32) error {
	return ErrIDsRequired
}

// AddWithIDs appends n vectors labeled with ids.
func (m *IDMap) AddWithIDs(n int, x []float32, ids []int64) error {
	if err := checkVectors(m.inner.Dimension(), n, x); err != nil {
		return err
	}
	if len(ids) < n {
		return fmt.Errorf("%w: %d ids for %d vectors", ErrInvalidArgument, len(ids), n)
	}

	if err := m.inner.Add(n, x); err != nil {
		return err
	}

	for _, id := range ids[:n] {
		if !m.seen.CheckedAdd(uint64(id)) {
			m.duplicates++
		}
	}
	m.ids = append(m.ids, ids[:n]...)

	return nil
}

// IDAt returns the id stored for inner row pos.
func (m *IDMap) IDAt(pos int64) int64 {
	return m.ids[pos]
}

// IDs returns a copy of the ids in row order.
func (m *IDMap) IDs() []int64 {
	out := make([]int64, len(m.ids))
	copy(out, m.ids)
	return out
}

// Contains reports whether id was ever added.
func (m *IDMap) Contains(id int64) bool {
	return m.seen.Contains(uint64(id))
}

// DistinctIDs returns the number of distinct ids.
func (m *IDMap) DistinctIDs() uint64 {
	return m.seen.GetCardinality()
}

// Duplicates returns how many added ids were already present.
func (m *IDMap) Duplicates() int64 {
	return m.duplicates
}

// Search searches the inner index and translates row positions to ids.
func (m *IDMap) Search(n int, x []float32, k int, distances []float32, labels []int64) error {
	if err := m.inner.Search(n, x, k, distances, labels); err != nil {
		return err
	}

	for i, l := range labels[:n*k] {
		if l >= 0 {
			labels[i] = m.ids[l]
		}
	}

	return nil
}

// SetParameter forwards to the inner index.
func (m *IDMap) SetParameter(name string, value int) error {
	return SetParameter(m.inner, name, value)
}

// Reset removes all vectors and ids.
func (m *IDMap) Reset() {
	m.inner.Reset()
	m.ids = nil
	m.seen = roaring64.New()
	m.duplicates = 0
}

func (m *IDMap) restore(ids []int64) error {
	if int64(len(ids)) != m.inner.NTotal() {
		return fmt.Errorf("%w: %d ids for %d rows", ErrInvalidFormat, len(ids), m.inner.NTotal())
	}
	m.ids = ids
	m.seen = roaring64.New()
	m.duplicates = 0
	for _, id := range ids {
		if !m.seen.CheckedAdd(uint64(id)) {
			m.duplicates++
		}
	}
	return nil
}
