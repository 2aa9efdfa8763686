package kmeans

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"

	"github.com/hupe1980/annex/distance"
)

// DefaultIterations matches the iteration count FAISS uses for its Clustering default.
const DefaultIterations = 25

// ErrTooFewPoints is returned when fewer training vectors than centroids are supplied.
var ErrTooFewPoints = errors.New("kmeans: fewer training points than centroids")

// Options tunes a training run.
type Options struct {
	MaxIter int
	Seed    int64
}

// TrainKMeans trains k centroids from the given vectors using Lloyd's algorithm.
// It returns the flattened centroids (k * dim). Distances are squared L2.
func TrainKMeans(vectors []float32, dim, k int, opts Options) ([]float32, error) {
	if dim <= 0 || k <= 0 {
		return nil, fmt.Errorf("kmeans: invalid dim=%d k=%d", dim, k)
	}

	n := len(vectors) / dim
	if n < k {
		return nil, fmt.Errorf("%w: n=%d k=%d", ErrTooFewPoints, n, k)
	}

	maxIter := opts.MaxIter
	if maxIter <= 0 {
		maxIter = DefaultIterations
	}

	rng := rand.New(rand.NewSource(opts.Seed)) //nolint:gosec // deterministic training

	centroids := make([]float32, k*dim)

	// Initialize centroids from distinct random data points
	perm := rng.Perm(n)
	for i := 0; i < k; i++ {
		copy(centroids[i*dim:(i+1)*dim], vectors[perm[i]*dim:(perm[i]+1)*dim])
	}

	assignments := make([]int, n)
	for i := range assignments {
		assignments[i] = -1
	}
	counts := make([]int, k)
	sums := make([]float32, k*dim)

	for iter := 0; iter < maxIter; iter++ {
		changed := false

		// Assignment step
		for i := 0; i < n; i++ {
			best, _ := nearest(vectors[i*dim:(i+1)*dim], centroids, dim)
			if assignments[i] != best {
				assignments[i] = best
				changed = true
			}
		}

		if !changed {
			break
		}

		// Update step
		clear(sums)
		clear(counts)

		for i := 0; i < n; i++ {
			cluster := assignments[i]
			vec := vectors[i*dim : (i+1)*dim]
			row := sums[cluster*dim : (cluster+1)*dim]
			for d := range row {
				row[d] += vec[d]
			}
			counts[cluster]++
		}

		for j := 0; j < k; j++ {
			if counts[j] > 0 {
				scale := 1.0 / float32(counts[j])
				for d := 0; d < dim; d++ {
					centroids[j*dim+d] = sums[j*dim+d] * scale
				}
			} else {
				// Empty cluster: re-seed from a random point
				idx := rng.Intn(n)
				copy(centroids[j*dim:(j+1)*dim], vectors[idx*dim:(idx+1)*dim])
			}
		}
	}

	return centroids, nil
}

// AssignPartition finds the closest centroid for a vector.
func AssignPartition(vec []float32, centroids []float32, dim int) int {
	best, _ := nearest(vec, centroids, dim)
	return best
}

func nearest(vec []float32, centroids []float32, dim int) (int, float32) {
	k := len(centroids) / dim
	best := -1
	minDist := float32(math.MaxFloat32)

	for j := 0; j < k; j++ {
		d := distance.SquaredL2(vec, centroids[j*dim:(j+1)*dim])
		if d < minDist {
			minDist = d
			best = j
		}
	}

	return best, minDist
}

type centroidDist struct {
	id   int
	dist float32
}

// FindClosestCentroids returns the indices of the n closest centroids to the query vector.
func FindClosestCentroids(query []float32, centroids []float32, dim int, n int) []int {
	k := len(centroids) / dim
	if n > k {
		n = k
	}

	dists := make([]centroidDist, k)
	for i := 0; i < k; i++ {
		dists[i] = centroidDist{id: i, dist: distance.SquaredL2(query, centroids[i*dim:(i+1)*dim])}
	}

	sort.Slice(dists, func(i, j int) bool {
		if dists[i].dist == dists[j].dist {
			return dists[i].id < dists[j].id
		}
		return dists[i].dist < dists[j].dist
	})

	result := make([]int, n)
	for i := 0; i < n; i++ {
		result[i] = dists[i].id
	}

	return result
}
