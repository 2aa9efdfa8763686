package engine

import (
	"fmt"

	"github.com/hupe1980/annex/distance"
	"github.com/hupe1980/annex/internal/kmeans"
)

// DefaultNProbe is the number of inverted lists visited per query.
const DefaultNProbe = 1

const (
	ivfSeed  = 1234
	maxNList = 1 << 20
)

// ivfCore holds the coarse quantizer and list membership shared by the IVF families.
// Vectors are assigned to the closest centroid under squared L2.
type ivfCore struct {
	d         int
	metric    distance.Metric
	nlist     int
	nprobe    int
	centroids []float32 // nlist * d, empty until trained
	listIDs   [][]int64 // row positions per list
	ntotal    int64
}

func newIVFCore(d, nlist int, metric distance.Metric) (ivfCore, error) {
	if err := validateShape(d, metric); err != nil {
		return ivfCore{}, err
	}
	if nlist <= 0 || nlist > maxNList {
		return ivfCore{}, fmt.Errorf("%w: IVF list count must be in [1, %d], got %d", ErrBadDescription, maxNList, nlist)
	}
	return ivfCore{
		d:       d,
		metric:  metric,
		nlist:   nlist,
		nprobe:  DefaultNProbe,
		listIDs: make([][]int64, nlist),
	}, nil
}

func (c *ivfCore) Dimension() int          { return c.d }
func (c *ivfCore) Metric() distance.Metric { return c.metric }
func (c *ivfCore) IsTrained() bool         { return len(c.centroids) > 0 }
func (c *ivfCore) NTotal() int64           { return c.ntotal }

// NList returns the number of inverted lists.
func (c *ivfCore) NList() int { return c.nlist }

// NProbe returns the number of lists visited per query.
func (c *ivfCore) NProbe() int { return c.nprobe }

// SetParameter implements ParameterSetter.
func (c *ivfCore) SetParameter(name string, value int) error {
	if name != "nprobe" {
		return fmt.Errorf("%w: %q on IVF", ErrUnknownParameter, name)
	}
	if value <= 0 {
		return fmt.Errorf("%w: nprobe must be positive, got %d", ErrInvalidArgument, value)
	}
	c.nprobe = min(value, c.nlist)
	return nil
}

// trainCoarse fits the coarse centroids; it needs at least nlist vectors.
// Retraining is rejected once the lists hold vectors.
func (c *ivfCore) trainCoarse(n int, x []float32) error {
	if err := checkVectors(c.d, n, x); err != nil {
		return err
	}
	if c.ntotal > 0 {
		return fmt.Errorf("%w: cannot retrain an IVF index holding %d vectors", ErrTrainingFailed, c.ntotal)
	}

	centroids, err := kmeans.TrainKMeans(x[:n*c.d], c.d, c.nlist, kmeans.Options{Seed: ivfSeed})
	if err != nil {
		return fmt.Errorf("%w: coarse quantizer: %w", ErrTrainingFailed, err)
	}

	c.centroids = centroids
	return nil
}

func (c *ivfCore) centroid(list int) []float32 {
	return c.centroids[list*c.d : (list+1)*c.d]
}

func (c *ivfCore) assign(vec []float32) int {
	return kmeans.AssignPartition(vec, c.centroids, c.d)
}

func (c *ivfCore) probe(query []float32) []int {
	return kmeans.FindClosestCentroids(query, c.centroids, c.d, c.nprobe)
}

func (c *ivfCore) resetLists() {
	c.listIDs = make([][]int64, c.nlist)
	c.ntotal = 0
}
