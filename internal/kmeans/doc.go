// Package kmeans implements k-means clustering for quantization training.
//
// Used by the IVF coarse quantizer and by product quantization to learn
// centroids and codebooks from training data.
package kmeans
