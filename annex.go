package annex

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/hupe1980/annex/engine"
	"github.com/hupe1980/annex/persistence"
)

// Index is a handle on one id-mapped ANN index.
//
// All methods serialize on a single mutex, so an Index may be shared between
// goroutines, but the engine never runs two operations at once.
type Index struct {
	mu     sync.Mutex
	cfg    Config
	idx    *engine.IDMap
	pm     *persistence.Manager
	closed bool

	logger  *Logger
	metrics MetricsCollector
}

// New builds an empty index from cfg. Nothing is read or written; cfg.Path
// is only used by Write.
func New(cfg Config, opts ...Option) (*Index, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := applyOptions(opts)
	idmap, err := create(cfg)
	if err != nil {
		return nil, err
	}

	return newIndex(cfg, idmap, newManager(cfg, o), o), nil
}

// OpenOrCreate loads the index stored at cfg.Path, or builds a new one when
// nothing is stored there. A loaded index must match cfg's dimension and metric.
func OpenOrCreate(ctx context.Context, cfg Config, opts ...Option) (*Index, error) {
	start := time.Now()
	o := applyOptions(opts)

	ix, created, info, err := openOrCreate(ctx, cfg, o)
	o.logger.LogOpen(ctx, cfg.Path, created, info, err)
	o.metricsCollector.RecordOpen(created, time.Since(start), err)

	return ix, err
}

func openOrCreate(ctx context.Context, cfg Config, o options) (*Index, bool, persistence.Info, error) {
	if err := cfg.Validate(); err != nil {
		return nil, false, persistence.Info{}, err
	}
	if cfg.Path == "" {
		return nil, false, persistence.Info{}, &ConfigurationError{Reason: "path is empty"}
	}

	pm := newManager(cfg, o)

	exists, err := pm.Exists(ctx, cfg.Path)
	if err != nil {
		return nil, false, persistence.Info{}, &IOError{Op: "open", Path: cfg.Path, cause: err}
	}

	if !exists {
		idmap, err := create(cfg)
		if err != nil {
			return nil, false, persistence.Info{}, err
		}
		return newIndex(cfg, idmap, pm, o), true, persistence.Info{}, nil
	}

	idmap, info, err := pm.LoadIDMap(ctx, cfg.Path)
	if err != nil {
		return nil, false, info, loadError(cfg.Path, err)
	}
	if idmap.Dimension() != cfg.Dimension || idmap.Metric() != cfg.Metric {
		return nil, false, info, &ConfigurationError{Reason: fmt.Sprintf(
			"%s holds a %d-dimensional %s index, configured %d-dimensional %s",
			cfg.Path, idmap.Dimension(), idmap.Metric(), cfg.Dimension, cfg.Metric)}
	}
	if err := applySearchParams(idmap, cfg.Search); err != nil {
		return nil, false, info, err
	}

	return newIndex(cfg, idmap, pm, o), false, info, nil
}

// Read loads the index stored at path. Its config is derived from the
// stored index; WithStore selects where path is resolved.
func Read(ctx context.Context, path string, opts ...Option) (*Index, error) {
	start := time.Now()
	o := applyOptions(opts)

	cfg := Config{Path: path}
	idmap, info, err := newManager(cfg, o).LoadIDMap(ctx, path)
	if err != nil {
		err = loadError(path, err)
	}
	o.logger.LogOpen(ctx, path, false, info, err)
	o.metricsCollector.RecordOpen(false, time.Since(start), err)
	if err != nil {
		return nil, err
	}

	cfg.Dimension = idmap.Dimension()
	cfg.Metric = idmap.Metric()
	cfg.Description = strings.TrimPrefix(engine.Family(idmap), "IDMap,")
	cfg.Compression = info.Compression

	return newIndex(cfg, idmap, newManager(cfg, o), o), nil
}

func newIndex(cfg Config, idmap *engine.IDMap, pm *persistence.Manager, o options) *Index {
	return &Index{
		cfg:     cfg,
		idx:     idmap,
		pm:      pm,
		logger:  o.logger.WithPath(cfg.Path),
		metrics: o.metricsCollector,
	}
}

func newManager(cfg Config, o options) *persistence.Manager {
	popts := append([]persistence.Option{persistence.WithCompression(cfg.Compression)}, o.persistence...)
	return persistence.NewManager(o.store, popts...)
}

// create builds the empty engine for cfg. The trained flag is whatever the
// engine reports for the family.
func create(cfg Config) (*engine.IDMap, error) {
	inner, err := engine.New(cfg.Dimension, cfg.Description, cfg.Metric)
	if err != nil {
		return nil, translateError("create", err)
	}

	idmap, ok := inner.(*engine.IDMap)
	if !ok {
		idmap = engine.NewIDMap(inner)
	}

	if err := applySearchParams(idmap, cfg.Search); err != nil {
		return nil, err
	}
	return idmap, nil
}

func applySearchParams(idx engine.Index, p SearchParams) error {
	if p.NProbe > 0 {
		if err := engine.SetParameter(idx, "nprobe", p.NProbe); err != nil {
			return translateError("nprobe", err)
		}
	}
	if p.EfSearch > 0 {
		if err := engine.SetParameter(idx, "efSearch", p.EfSearch); err != nil {
			return translateError("ef_search", err)
		}
	}
	return nil
}

// Config returns the configuration the index was opened with.
func (ix *Index) Config() Config {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return ix.cfg
}

// SetSearchParams changes the query time parameters of an open index.
// Zero fields keep their current value.
func (ix *Index) SetSearchParams(p SearchParams) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if ix.closed {
		return ErrClosed
	}
	if p.NProbe < 0 || p.EfSearch < 0 {
		return &ConfigurationError{Reason: fmt.Sprintf("negative search parameter %+v", p)}
	}
	if err := applySearchParams(ix.idx, p); err != nil {
		return err
	}

	if p.NProbe > 0 {
		ix.cfg.Search.NProbe = p.NProbe
	}
	if p.EfSearch > 0 {
		ix.cfg.Search.EfSearch = p.EfSearch
	}
	return nil
}

// Train fits the index to vectors, a flat array of samples. Zero or
// misaligned input is rejected before the engine runs. Training an empty
// index again refits it, while an index holding vectors rejects retraining
// with a *TrainingError. A failed call leaves the trained state unchanged.
func (ix *Index) Train(vectors []float32) (err error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if ix.closed {
		return ErrClosed
	}

	d := ix.cfg.Dimension
	n := len(vectors) / d
	start := time.Now()
	defer func() {
		ix.logger.LogTrain(context.Background(), n, d, time.Since(start), err)
		ix.metrics.RecordTrain(n, time.Since(start), err)
	}()

	if len(vectors) == 0 {
		return &TrainingError{cause: errors.New("no samples")}
	}
	if len(vectors)%d != 0 {
		return &TrainingError{Samples: n, cause: &DimensionMismatchError{
			What:     "sample length must be a multiple of the dimension",
			Expected: (n + 1) * d,
			Actual:   len(vectors),
		}}
	}

	if err := ix.idx.Train(n, vectors); err != nil {
		return &TrainingError{Samples: n, cause: err}
	}
	return nil
}

// AddWithID inserts a single vector under id.
func (ix *Index) AddWithID(id int64, vector []float32) error {
	return ix.AddWithIDs([]int64{id}, vector)
}

// AddWithIDs inserts len(ids) vectors, labeling row i with ids[i]. Either
// every vector is stored or none is. Duplicate ids are accepted.
func (ix *Index) AddWithIDs(ids []int64, vectors []float32) (err error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if ix.closed {
		return ErrClosed
	}

	d := ix.cfg.Dimension
	if len(vectors)%d != 0 {
		return &DimensionMismatchError{
			What:     "vector length must be a multiple of the dimension",
			Expected: (len(vectors)/d + 1) * d,
			Actual:   len(vectors),
		}
	}
	n := len(vectors) / d
	if len(ids) != n {
		return &DimensionMismatchError{What: "id count", Expected: n, Actual: len(ids)}
	}
	for i, id := range ids {
		if id == engine.NoLabel {
			return fmt.Errorf("%w: at position %d", ErrReservedID, i)
		}
	}
	if n == 0 {
		return nil
	}

	start := time.Now()
	dupBefore := ix.idx.Duplicates()
	defer func() {
		ix.logger.LogAdd(context.Background(), n, ix.idx.NTotal(), ix.idx.Duplicates()-dupBefore, err)
		ix.metrics.RecordAdd(n, time.Since(start), err)
	}()

	if err := ix.idx.AddWithIDs(n, vectors, ids); err != nil {
		return translateError("add", err)
	}
	return nil
}

// Search returns up to k neighbors for each of numQueries queries packed in
// queries. The result is the raw row-major buffer with the empty slots after
// the last hit removed; see Truncate. Use SearchBatch for per-query rows.
//
// Searching an empty index returns two empty slices.
func (ix *Index) Search(k, numQueries int, queries []float32) ([]int64, []float32, error) {
	raw, err := ix.search(k, numQueries, queries)
	if err != nil {
		return nil, nil, err
	}
	ids, distances := raw.Truncate()
	return ids, distances, nil
}

// SearchBatch runs one search per query in queries and returns the hits of
// each query separately.
func (ix *Index) SearchBatch(k int, queries []float32) ([][]Neighbor, error) {
	d := ix.Dimension()
	if d == 0 {
		return nil, ErrClosed
	}
	if len(queries) == 0 {
		return nil, ErrInvalidNumQueries
	}
	if len(queries)%d != 0 {
		return nil, &DimensionMismatchError{
			What:     "query length must be a multiple of the dimension",
			Expected: (len(queries)/d + 1) * d,
			Actual:   len(queries),
		}
	}

	raw, err := ix.search(k, len(queries)/d, queries)
	if err != nil {
		return nil, err
	}
	return raw.Rows(), nil
}

func (ix *Index) search(k, numQueries int, queries []float32) (raw RawResults, err error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if ix.closed {
		return RawResults{}, ErrClosed
	}

	start := time.Now()
	defer func() {
		found := 0
		for _, id := range raw.IDs {
			if id != engine.NoLabel {
				found++
			}
		}
		ix.logger.LogSearch(context.Background(), k, numQueries, found, err)
		ix.metrics.RecordSearch(k, numQueries, time.Since(start), err)
	}()

	switch {
	case k <= 0:
		return RawResults{}, ErrInvalidK
	case numQueries <= 0:
		return RawResults{}, ErrInvalidNumQueries
	case len(queries) != numQueries*ix.cfg.Dimension:
		return RawResults{}, &DimensionMismatchError{
			What:     "query length",
			Expected: numQueries * ix.cfg.Dimension,
			Actual:   len(queries),
		}
	}

	if ix.idx.NTotal() == 0 {
		return RawResults{K: k, NumQueries: numQueries, IDs: []int64{}, Distances: []float32{}}, nil
	}

	raw = newRawResults(k, numQueries)
	if err := ix.idx.Search(numQueries, queries, k, raw.Distances, raw.IDs); err != nil {
		return RawResults{}, translateError("search", err)
	}
	return raw, nil
}

// IsTrained reports whether vectors can be added. It is false after Close.
func (ix *Index) IsTrained() bool {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return !ix.closed && ix.idx.IsTrained()
}

// Dimension returns the vector dimensionality, or 0 after Close.
func (ix *Index) Dimension() int {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if ix.closed {
		return 0
	}
	return ix.cfg.Dimension
}

// Count returns the number of stored vectors, or 0 after Close.
func (ix *Index) Count() int64 {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if ix.closed {
		return 0
	}
	return ix.idx.NTotal()
}

// MaxID returns the id appended last, which is not necessarily the largest
// id. An empty or closed index reports 0.
func (ix *Index) MaxID() int64 {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if ix.closed || ix.idx.NTotal() == 0 {
		return 0
	}
	return ix.idx.IDAt(ix.idx.NTotal() - 1)
}

// Contains reports whether id was ever added. A closed index reports false.
func (ix *Index) Contains(id int64) bool {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if ix.closed {
		return false
	}
	return ix.idx.Contains(id)
}

// Write stores the index at Config.Path, replacing what was there.
// The previous file survives a failed write.
func (ix *Index) Write(ctx context.Context) (err error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if ix.closed {
		return ErrClosed
	}

	path := ix.cfg.Path
	start := time.Now()
	var info persistence.Info
	defer func() {
		ix.logger.LogWrite(ctx, path, info, time.Since(start), err)
		ix.metrics.RecordWrite(info.Bytes, time.Since(start), err)
	}()

	if path == "" {
		return &IOError{Op: "write", Path: path, cause: errors.New("no path configured")}
	}

	info, err = ix.pm.Save(ctx, path, ix.idx)
	if err != nil {
		return &IOError{Op: "write", Path: path, cause: err}
	}
	return nil
}
