package quantization

import (
	"fmt"
	"math"
)

// ScalarQuantizer implements 8-bit scalar quantization.
// It compresses float32 vectors (4 bytes/dim) to uint8 (1 byte/dim).
//
// Per-dimension min/max bounds are used to maximize precision.
type ScalarQuantizer struct {
	dimension int
	mins      []float32
	maxs      []float32
	invScales []float32 // (max - min) / 255
	trained   bool
}

// NewScalarQuantizer creates an untrained SQ8 quantizer.
func NewScalarQuantizer(dimension int) *ScalarQuantizer {
	return &ScalarQuantizer{dimension: dimension}
}

// Dimension returns the vector dimension.
func (sq *ScalarQuantizer) Dimension() int { return sq.dimension }

// IsTrained reports whether bounds are known.
func (sq *ScalarQuantizer) IsTrained() bool { return sq.trained }

// Mins returns the per-dimension minimum values.
func (sq *ScalarQuantizer) Mins() []float32 { return sq.mins }

// Maxs returns the per-dimension maximum values.
func (sq *ScalarQuantizer) Maxs() []float32 { return sq.maxs }

// Train calibrates the quantizer by finding min/max values per dimension.
func (sq *ScalarQuantizer) Train(vectors []float32) error {
	n := len(vectors) / sq.dimension
	if n == 0 {
		return fmt.Errorf("%w: no vectors provided for training", ErrInvalidParameters)
	}

	mins := make([]float32, sq.dimension)
	maxs := make([]float32, sq.dimension)
	for i := range mins {
		mins[i] = math.MaxFloat32
		maxs[i] = -math.MaxFloat32
	}

	for i := 0; i < n; i++ {
		for j, val := range vectors[i*sq.dimension : (i+1)*sq.dimension] {
			if val < mins[j] {
				mins[j] = val
			}
			if val > maxs[j] {
				maxs[j] = val
			}
		}
	}

	return sq.SetBounds(mins, maxs)
}

// SetBounds initializes the quantizer with pre-computed bounds.
func (sq *ScalarQuantizer) SetBounds(mins, maxs []float32) error {
	if len(mins) != sq.dimension || len(maxs) != sq.dimension {
		return fmt.Errorf("%w: bounds dimension mismatch", ErrInvalidParameters)
	}

	sq.mins = append([]float32(nil), mins...)
	sq.maxs = append([]float32(nil), maxs...)
	sq.invScales = make([]float32, sq.dimension)

	for i := range sq.mins {
		// Constant dimension
		if sq.maxs[i] <= sq.mins[i] {
			sq.maxs[i] = sq.mins[i] + 1e-6
		}
		sq.invScales[i] = (sq.maxs[i] - sq.mins[i]) / 255.0
	}

	sq.trained = true
	return nil
}

// Encode quantizes v into dst (len D).
// Each dimension is linearly mapped from [min, max] to [0, 255].
func (sq *ScalarQuantizer) Encode(v []float32, dst []byte) {
	for i, val := range v {
		if val < sq.mins[i] {
			val = sq.mins[i]
		} else if val > sq.maxs[i] {
			val = sq.maxs[i]
		}
		dst[i] = uint8((val-sq.mins[i])/sq.invScales[i] + 0.5)
	}
}

// Decode reconstructs a float32 vector from code into dst.
func (sq *ScalarQuantizer) Decode(code []byte, dst []float32) {
	for i, val := range code {
		dst[i] = float32(val)*sq.invScales[i] + sq.mins[i]
	}
}

// L2Distance computes the squared L2 distance between q and a code without decoding it.
func (sq *ScalarQuantizer) L2Distance(q []float32, code []byte) float32 {
	var sum float32
	for i, c := range code {
		d := q[i] - (float32(c)*sq.invScales[i] + sq.mins[i])
		sum += d * d
	}
	return sum
}

// DotProduct computes the inner product between q and a code without decoding it.
func (sq *ScalarQuantizer) DotProduct(q []float32, code []byte) float32 {
	var sum float32
	for i, c := range code {
		sum += q[i] * (float32(c)*sq.invScales[i] + sq.mins[i])
	}
	return sum
}
