package testutil

import (
	"math"
	"math/rand"
	"sort"
	"sync"

	"github.com/hupe1980/annex/distance"
)

// SearchResult represents a search result.
type SearchResult struct {
	ID       int64
	Distance float32
}

// RNG struct encapsulates the random number generator and seed.
// It is thread-safe.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Seed returns the initial seed.
func (r *RNG) Seed() int64 {
	return r.seed
}

// Intn returns a non-negative pseudo-random number in [0,n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

// FillUniform fills dst with random values in range [0, 1).
func (r *RNG) FillUniform(dst []float32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range dst {
		dst[i] = r.rand.Float32()
	}
}

// UniformVectors generates num vectors with values in range [0, 1).
func (r *RNG) UniformVectors(num, dimensions int) []float32 {
	data := make([]float32, num*dimensions)
	r.FillUniform(data)
	return data
}

// GaussianVectors generates num vectors from a standard normal distribution.
func (r *RNG) GaussianVectors(num, dimensions int) []float32 {
	r.mu.Lock()
	defer r.mu.Unlock()

	data := make([]float32, num*dimensions)
	for i := range data {
		data[i] = float32(r.rand.NormFloat64())
	}
	return data
}

// UnitVectors generates L2-normalized random vectors.
func (r *RNG) UnitVectors(num, dimensions int) []float32 {
	data := r.GaussianVectors(num, dimensions)
	for i := range num {
		normalize(data[i*dimensions : (i+1)*dimensions])
	}
	return data
}

// ClusteredVectors generates vectors clustered around random unit centroids.
// spread is the standard deviation of the Gaussian noise around each centroid.
func (r *RNG) ClusteredVectors(num, dimensions, clusters int, spread float32) []float32 {
	centroids := r.UnitVectors(clusters, dimensions)

	r.mu.Lock()
	defer r.mu.Unlock()

	data := make([]float32, num*dimensions)
	for i := range num {
		c := centroids[(i%clusters)*dimensions : (i%clusters+1)*dimensions]
		vec := data[i*dimensions : (i+1)*dimensions]
		for j := range vec {
			vec[j] = c[j] + float32(r.rand.NormFloat64())*spread
		}
	}
	return data
}

func normalize(vec []float32) {
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return
	}
	inv := float32(1 / math.Sqrt(norm))
	for j := range vec {
		vec[j] *= inv
	}
}

// ExactTopK returns the k best rows of data for query by brute force, best first.
func ExactTopK(query, data []float32, dimensions, k int, metric distance.Metric) []SearchResult {
	score, err := distance.Provider(metric)
	if err != nil {
		return nil
	}
	n := len(data) / dimensions

	results := make([]SearchResult, n)
	for i := range n {
		results[i] = SearchResult{
			ID:       int64(i),
			Distance: score(query, data[i*dimensions:(i+1)*dimensions]),
		}
	}

	sort.Slice(results, func(a, b int) bool {
		if results[a].Distance != results[b].Distance {
			return metric.Less(results[a].Distance, results[b].Distance)
		}
		return results[a].ID < results[b].ID
	})

	if k < len(results) {
		results = results[:k]
	}
	return results
}

// ComputeRecall computes recall@k by comparing approximate results against ground truth.
func ComputeRecall(groundTruth, approximate []SearchResult) float64 {
	if len(groundTruth) == 0 || len(approximate) == 0 {
		if len(groundTruth) == 0 && len(approximate) == 0 {
			return 1.0
		}
		return 0.0
	}

	k := min(len(approximate), len(groundTruth))

	truthSet := make(map[int64]struct{}, k)
	for i := range k {
		truthSet[groundTruth[i].ID] = struct{}{}
	}

	hits := 0
	for _, r := range approximate {
		if _, ok := truthSet[r.ID]; ok {
			hits++
		}
	}

	return float64(hits) / float64(k)
}

// Results zips a k-wide label/distance row into SearchResults, dropping unfilled slots.
func Results(labels []int64, distances []float32) []SearchResult {
	out := make([]SearchResult, 0, len(labels))
	for i, l := range labels {
		if l < 0 {
			continue
		}
		out = append(out, SearchResult{ID: l, Distance: distances[i]})
	}
	return out
}
