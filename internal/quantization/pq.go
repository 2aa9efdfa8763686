package quantization

import (
	"errors"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/annex/distance"
	"github.com/hupe1980/annex/internal/kmeans"
)

var (
	// ErrNotTrained is returned when encoding with an untrained quantizer.
	ErrNotTrained = errors.New("quantizer not trained")
	// ErrInvalidParameters is returned for impossible quantizer shapes.
	ErrInvalidParameters = errors.New("invalid quantizer parameters")
)

// ProductQuantizer implements Product Quantization (PQ).
// PQ splits vectors into subvectors and quantizes each independently using k-means clustering.
//
// Example: 128-dim vector with M=8 subvectors and 8-bit codebooks → 8 bytes per vector.
type ProductQuantizer struct {
	dimension     int       // D: original vector dimension
	numSubvectors int       // M: number of subvectors
	nbits         int       // bits per subvector code
	numCentroids  int       // K = 1 << nbits
	subvectorDim  int       // D/M
	centroids     []float32 // M * K * subvectorDim
	trained       bool
}

// NewProductQuantizer creates a new PQ quantizer.
// Parameters:
//   - dimension: Vector dimensionality (must be divisible by numSubvectors)
//   - numSubvectors: Number of subvectors to split into (M)
//   - nbits: Bits per code, 1..8 (K = 2^nbits centroids per subspace)
func NewProductQuantizer(dimension, numSubvectors, nbits int) (*ProductQuantizer, error) {
	if dimension <= 0 || numSubvectors <= 0 {
		return nil, fmt.Errorf("%w: dimension and numSubvectors must be positive", ErrInvalidParameters)
	}
	if dimension%numSubvectors != 0 {
		return nil, fmt.Errorf("%w: dimension %d not divisible by %d subvectors", ErrInvalidParameters, dimension, numSubvectors)
	}
	if nbits < 1 || nbits > 8 {
		return nil, fmt.Errorf("%w: nbits must be in [1, 8], got %d", ErrInvalidParameters, nbits)
	}

	k := 1 << nbits
	sub := dimension / numSubvectors

	return &ProductQuantizer{
		dimension:     dimension,
		numSubvectors: numSubvectors,
		nbits:         nbits,
		numCentroids:  k,
		subvectorDim:  sub,
		centroids:     make([]float32, numSubvectors*k*sub),
	}, nil
}

// Dimension returns the input dimensionality.
func (pq *ProductQuantizer) Dimension() int { return pq.dimension }

// NumSubvectors returns M.
func (pq *ProductQuantizer) NumSubvectors() int { return pq.numSubvectors }

// NBits returns the bits per subvector code.
func (pq *ProductQuantizer) NBits() int { return pq.nbits }

// NumCentroids returns K.
func (pq *ProductQuantizer) NumCentroids() int { return pq.numCentroids }

// CodeSize returns the number of bytes in one encoded vector.
func (pq *ProductQuantizer) CodeSize() int { return pq.numSubvectors }

// IsTrained reports whether codebooks have been learned.
func (pq *ProductQuantizer) IsTrained() bool { return pq.trained }

// Centroids returns the flat codebooks (M * K * D/M). The slice is shared.
func (pq *ProductQuantizer) Centroids() []float32 { return pq.centroids }

// SetCentroids installs previously learned codebooks and marks the quantizer trained.
func (pq *ProductQuantizer) SetCentroids(c []float32) error {
	if len(c) != len(pq.centroids) {
		return fmt.Errorf("%w: expected %d centroid values, got %d", ErrInvalidParameters, len(pq.centroids), len(c))
	}
	copy(pq.centroids, c)
	pq.trained = true
	return nil
}

// Train learns one codebook per subspace from n = len(vectors)/D training vectors.
// At least K training vectors are required.
func (pq *ProductQuantizer) Train(vectors []float32, seed int64) error {
	n := len(vectors) / pq.dimension
	if n < pq.numCentroids {
		return fmt.Errorf("%w: PQ needs %d training vectors, got %d", kmeans.ErrTooFewPoints, pq.numCentroids, n)
	}

	g := new(errgroup.Group)
	g.SetLimit(runtime.GOMAXPROCS(0))

	for m := 0; m < pq.numSubvectors; m++ {
		g.Go(func() error {
			sub := make([]float32, n*pq.subvectorDim)
			for i := 0; i < n; i++ {
				src := vectors[i*pq.dimension+m*pq.subvectorDim : i*pq.dimension+(m+1)*pq.subvectorDim]
				copy(sub[i*pq.subvectorDim:], src)
			}

			c, err := kmeans.TrainKMeans(sub, pq.subvectorDim, pq.numCentroids, kmeans.Options{Seed: seed + int64(m)})
			if err != nil {
				return fmt.Errorf("subquantizer %d: %w", m, err)
			}

			copy(pq.codebook(m), c)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	pq.trained = true
	return nil
}

func (pq *ProductQuantizer) codebook(m int) []float32 {
	size := pq.numCentroids * pq.subvectorDim
	return pq.centroids[m*size : (m+1)*size]
}

// Encode quantizes vec into code (len CodeSize()).
func (pq *ProductQuantizer) Encode(vec []float32, code []byte) {
	for m := 0; m < pq.numSubvectors; m++ {
		subvec := vec[m*pq.subvectorDim : (m+1)*pq.subvectorDim]
		code[m] = byte(kmeans.AssignPartition(subvec, pq.codebook(m), pq.subvectorDim))
	}
}

// Decode reconstructs an approximate vector from code into out (len D).
func (pq *ProductQuantizer) Decode(code []byte, out []float32) {
	for m := 0; m < pq.numSubvectors; m++ {
		c := int(code[m])
		src := pq.codebook(m)[c*pq.subvectorDim : (c+1)*pq.subvectorDim]
		copy(out[m*pq.subvectorDim:], src)
	}
}

// ComputeDistanceTable fills table (len M*K) with the partial scores of query
// against every centroid of every subspace under metric.
func (pq *ProductQuantizer) ComputeDistanceTable(query []float32, metric distance.Metric, table []float32) {
	for m := 0; m < pq.numSubvectors; m++ {
		q := query[m*pq.subvectorDim : (m+1)*pq.subvectorDim]
		cb := pq.codebook(m)
		row := table[m*pq.numCentroids : (m+1)*pq.numCentroids]
		for j := 0; j < pq.numCentroids; j++ {
			c := cb[j*pq.subvectorDim : (j+1)*pq.subvectorDim]
			if metric == distance.MetricInnerProduct {
				row[j] = distance.Dot(q, c)
			} else {
				row[j] = distance.SquaredL2(q, c)
			}
		}
	}
}

// AdcDistance scores one code against a table built by ComputeDistanceTable.
func (pq *ProductQuantizer) AdcDistance(table []float32, code []byte) float32 {
	var sum float32
	for m := 0; m < pq.numSubvectors; m++ {
		sum += table[m*pq.numCentroids+int(code[m])]
	}
	return sum
}
