package engine

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
	"sync"

	"github.com/hupe1980/annex/distance"
	"github.com/hupe1980/annex/internal/queue"
	"github.com/hupe1980/annex/internal/visited"
)

const (
	// DefaultHNSWM is the number of links per node used when the description omits it.
	DefaultHNSWM = 32
	// DefaultEfConstruction is the candidate list size while inserting.
	DefaultEfConstruction = 40
	// DefaultEfSearch is the candidate list size while searching.
	DefaultEfSearch = 16

	hnswSeed = 12345
)

var _ Index = (*HNSW)(nil)

// HNSW is a hierarchical navigable small world graph over flat storage.
// It is trained at construction.
type HNSW struct {
	storage *Flat

	m                      int
	maxConnectionsPerLayer int
	maxConnectionsLayer0   int
	layerMultiplier        float64
	efConstruction         int
	efSearch               int

	levels     []int       // top level per node
	links      [][][]int32 // node -> level -> neighbors
	entryPoint int32       // -1 while empty
	maxLevel   int

	rng         *rand.Rand
	visitedPool sync.Pool
}

// NewHNSW creates an empty graph index with m links per node.
func NewHNSW(d, m int, metric distance.Metric) (*HNSW, error) {
	if m < 2 {
		return nil, fmt.Errorf("%w: HNSW needs M >= 2, got %d", ErrBadDescription, m)
	}

	storage, err := NewFlat(d, metric)
	if err != nil {
		return nil, err
	}

	h := &HNSW{
		storage:                storage,
		m:                      m,
		maxConnectionsPerLayer: m,
		maxConnectionsLayer0:   2 * m,
		layerMultiplier:        1 / math.Log(float64(m)),
		efConstruction:         DefaultEfConstruction,
		efSearch:               DefaultEfSearch,
		entryPoint:             -1,
		rng:                    rand.New(rand.NewSource(hnswSeed)), //nolint:gosec // level sampling
	}
	h.visitedPool.New = func() any { return visited.New(1024) }

	return h, nil
}

func (h *HNSW) Dimension() int          { return h.storage.d }
func (h *HNSW) Metric() distance.Metric { return h.storage.metric }
func (h *HNSW) IsTrained() bool         { return true }
func (h *HNSW) NTotal() int64           { return h.storage.NTotal() }

// EfSearch returns the search-time candidate list size.
func (h *HNSW) EfSearch() int { return h.efSearch }

// SetParameter implements ParameterSetter.
func (h *HNSW) SetParameter(name string, value int) error {
	if value <= 0 {
		return fmt.Errorf("%w: %s must be positive, got %d", ErrInvalidArgument, name, value)
	}
	switch name {
	case "efSearch":
		h.efSearch = value
	case "efConstruction":
		h.efConstruction = value
	default:
		return fmt.Errorf("%w: %q on HNSW", ErrUnknownParameter, name)
	}
	return nil
}

// Train is a no-op; the graph needs no training.
func (h *HNSW) Train(n int, x []float32) error {
	return checkVectors(h.storage.d, n, x)
}

// Add inserts n vectors into the graph one by one.
func (h *HNSW) Add(n int, x []float32) error {
	if err := checkVectors(h.storage.d, n, x); err != nil {
		return err
	}

	first := h.storage.NTotal()
	if err := h.storage.Add(n, x); err != nil {
		return err
	}

	for i := 0; i < n; i++ {
		h.insert(int32(first) + int32(i))
	}

	return nil
}

// dist returns a score where smaller is better under both metrics.
func (h *HNSW) dist(a, b []float32) float32 {
	if h.storage.metric == distance.MetricInnerProduct {
		return -distance.Dot(a, b)
	}
	return distance.SquaredL2(a, b)
}

func (h *HNSW) vector(id int32) []float32 {
	return h.storage.Vector(int64(id))
}

func (h *HNSW) randomLevel() int {
	r := h.rng.Float64()
	if r == 0 {
		r = math.SmallestNonzeroFloat64
	}
	return int(-math.Log(r) * h.layerMultiplier)
}

func (h *HNSW) maxConnections(level int) int {
	if level == 0 {
		return h.maxConnectionsLayer0
	}
	return h.maxConnectionsPerLayer
}

func (h *HNSW) insert(id int32) {
	level := h.randomLevel()
	h.levels = append(h.levels, level)
	h.links = append(h.links, make([][]int32, level+1))

	if h.entryPoint < 0 {
		h.entryPoint = id
		h.maxLevel = level
		return
	}

	q := h.vector(id)
	ep := h.entryPoint
	epDist := h.dist(q, h.vector(ep))

	for l := h.maxLevel; l > level; l-- {
		ep, epDist = h.greedyClosest(q, ep, epDist, l)
	}

	for l := min(level, h.maxLevel); l >= 0; l-- {
		candidates := h.searchLayer(q, ep, epDist, h.efConstruction, l)
		neighbors := h.selectNeighbors(candidates, h.maxConnections(l))

		h.links[id][l] = make([]int32, 0, len(neighbors))
		for _, nb := range neighbors {
			h.links[id][l] = append(h.links[id][l], int32(nb.ID))
		}
		for _, nb := range neighbors {
			h.connect(int32(nb.ID), id, l)
		}

		ep, epDist = int32(candidates[0].ID), candidates[0].Distance
	}

	if level > h.maxLevel {
		h.maxLevel = level
		h.entryPoint = id
	}
}

// connect adds a link from node to target on level and prunes node's list if it overflows.
func (h *HNSW) connect(node, target int32, level int) {
	links := append(h.links[node][level], target)
	limit := h.maxConnections(level)
	if len(links) <= limit {
		h.links[node][level] = links
		return
	}

	base := h.vector(node)
	candidates := make([]queue.Item, len(links))
	for i, nb := range links {
		candidates[i] = queue.Item{ID: int64(nb), Distance: h.dist(base, h.vector(nb))}
	}
	sortItems(candidates)

	pruned := h.selectNeighbors(candidates, limit)
	out := make([]int32, len(pruned))
	for i, it := range pruned {
		out[i] = int32(it.ID)
	}
	h.links[node][level] = out
}

// selectNeighbors applies the diversity heuristic to candidates sorted closest first.
// The heuristic needs the triangle inequality, so inner product keeps the closest candidates.
func (h *HNSW) selectNeighbors(candidates []queue.Item, limit int) []queue.Item {
	if len(candidates) <= limit {
		return candidates
	}
	if h.storage.metric == distance.MetricInnerProduct {
		return candidates[:limit]
	}

	selected := make([]queue.Item, 0, limit)
	for _, c := range candidates {
		if len(selected) >= limit {
			break
		}
		keep := true
		cv := h.vector(int32(c.ID))
		for _, s := range selected {
			if h.dist(cv, h.vector(int32(s.ID))) < c.Distance {
				keep = false
				break
			}
		}
		if keep {
			selected = append(selected, c)
		}
	}

	return selected
}

func (h *HNSW) greedyClosest(q []float32, ep int32, epDist float32, level int) (int32, float32) {
	for changed := true; changed; {
		changed = false
		for _, nb := range h.links[ep][level] {
			if d := h.dist(q, h.vector(nb)); d < epDist {
				ep, epDist = nb, d
				changed = true
			}
		}
	}
	return ep, epDist
}

// searchLayer returns up to ef candidates on level, closest first.
func (h *HNSW) searchLayer(q []float32, ep int32, epDist float32, ef, level int) []queue.Item {
	vs := h.visitedPool.Get().(*visited.VisitedSet)
	defer func() {
		vs.Reset()
		h.visitedPool.Put(vs)
	}()

	candidates := queue.NewMin(ef)
	results := queue.NewMax(ef)

	vs.Visit(uint32(ep))
	candidates.PushItem(queue.Item{ID: int64(ep), Distance: epDist})
	results.PushItem(queue.Item{ID: int64(ep), Distance: epDist})

	for candidates.Len() > 0 {
		c, _ := candidates.PopItem()
		worst, _ := results.TopItem()
		if c.Distance > worst.Distance && results.Len() >= ef {
			break
		}

		for _, nb := range h.links[c.ID][level] {
			if !vs.Visit(uint32(nb)) {
				continue
			}
			d := h.dist(q, h.vector(nb))
			worst, _ = results.TopItem()
			if results.Len() < ef || d < worst.Distance {
				candidates.PushItem(queue.Item{ID: int64(nb), Distance: d})
				results.PushItem(queue.Item{ID: int64(nb), Distance: d})
				if results.Len() > ef {
					results.PopItem()
				}
			}
		}
	}

	out := make([]queue.Item, results.Len())
	for i := len(out) - 1; i >= 0; i-- {
		out[i], _ = results.PopItem()
	}
	return out
}

// Search descends the hierarchy and explores the bottom layer with max(efSearch, k) candidates.
func (h *HNSW) Search(n int, x []float32, k int, distances []float32, labels []int64) error {
	if err := checkSearch(h.storage.d, n, x, k, distances, labels); err != nil {
		return err
	}

	d := h.storage.d
	metric := h.storage.metric
	ef := max(h.efSearch, k)

	return forEachQuery(n, func(qi int) error {
		dRow := distances[qi*k : (qi+1)*k]
		lRow := labels[qi*k : (qi+1)*k]

		if h.entryPoint < 0 {
			fillEmpty(metric, dRow, lRow)
			return nil
		}

		q := x[qi*d : (qi+1)*d]
		ep := h.entryPoint
		epDist := h.dist(q, h.vector(ep))
		for l := h.maxLevel; l > 0; l-- {
			ep, epDist = h.greedyClosest(q, ep, epDist, l)
		}

		found := h.searchLayer(q, ep, epDist, ef, 0)
		if len(found) > k {
			found = found[:k]
		}
		for i, it := range found {
			lRow[i] = it.ID
			dRow[i] = it.Distance
			if metric == distance.MetricInnerProduct {
				dRow[i] = -it.Distance
			}
		}
		fillEmpty(metric, dRow[len(found):], lRow[len(found):])

		return nil
	})
}

// Reset removes all vectors and links.
func (h *HNSW) Reset() {
	h.storage.Reset()
	h.levels = nil
	h.links = nil
	h.entryPoint = -1
	h.maxLevel = 0
	h.rng = rand.New(rand.NewSource(hnswSeed)) //nolint:gosec // level sampling
}

func sortItems(items []queue.Item) {
	sort.Slice(items, func(i, j int) bool {
		if items[i].Distance == items[j].Distance {
			return items[i].ID < items[j].ID
		}
		return items[i].Distance < items[j].Distance
	})
}
