package fingerprint

import (
	"fmt"
	"math"
	"math/bits"
)

// Weights are the relative weights of the three sub-distances. They need not
// sum to 1; Composite normalizes by their sum.
type Weights struct {
	Alpha float64 // perceptual hash distance
	Beta  float64 // edge signature distance
	Gamma float64 // projection histogram distance
}

// DefaultWeights are the tuned defaults for full-page screenshot layouts.
var DefaultWeights = Weights{Alpha: 0.55, Beta: 0.35, Gamma: 0.10}

// Sum returns the total weight mass.
func (w Weights) Sum() float64 {
	return w.Alpha + w.Beta + w.Gamma
}

// Validate rejects negative weights and an all-zero triple.
func (w Weights) Validate() error {
	if w.Alpha < 0 || w.Beta < 0 || w.Gamma < 0 {
		return fmt.Errorf("weights must be non-negative, got (%.3f, %.3f, %.3f)", w.Alpha, w.Beta, w.Gamma)
	}
	if w.Sum() <= 0 {
		return fmt.Errorf("weight sum must be positive")
	}
	return nil
}

// HashDistance is the hamming distance across the packed hash words,
// normalized by the total bit length to [0,1].
func HashDistance(a, b *Fingerprint) float64 {
	var diff int
	for i := range a.HashBits {
		diff += bits.OnesCount64(a.HashBits[i] ^ b.HashBits[i])
	}
	return float64(diff) / float64(TotalHashBits)
}

// EdgeDistance is the mean absolute difference between edge grids. Cells are
// already in [0,1], so the result is too.
func EdgeDistance(a, b *Fingerprint) float64 {
	n := len(a.EdgeGrid)
	if n == 0 || n != len(b.EdgeGrid) {
		return 1.0
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += math.Abs(float64(a.EdgeGrid[i]) - float64(b.EdgeGrid[i]))
	}
	return sum / float64(n)
}

// ProjectionDistance averages the total-variation distance of the row and
// column projections. Each axis is 0.5 * sum |p-q| over probability
// distributions, which lies in [0,1].
func ProjectionDistance(a, b *Fingerprint) float64 {
	return 0.5 * (totalVariation(a.RowProj, b.RowProj) + totalVariation(a.ColProj, b.ColProj))
}

func totalVariation(p, q []float64) float64 {
	if len(p) == 0 || len(p) != len(q) {
		return 1.0
	}
	var sum float64
	for i := range p {
		sum += math.Abs(p[i] - q[i])
	}
	return 0.5 * sum
}

// Composite is the weighted combination of the three sub-distances,
// normalized by the weight sum and clamped to [0,1]. It is a pseudo-metric:
// symmetric, non-negative, and zero for identical fingerprints.
func Composite(a, b *Fingerprint, w Weights) float64 {
	sum := w.Sum()
	d := (w.Alpha*HashDistance(a, b) + w.Beta*EdgeDistance(a, b) + w.Gamma*ProjectionDistance(a, b)) / sum
	return clamp01(d)
}

// HashBound is the contribution of the hash distance alone to the composite
// distance. Because the edge and projection terms are non-negative, the
// composite distance can never fall below this value; the cluster engine
// uses it to prune candidate pairs without changing the clustering result.
func HashBound(a, b *Fingerprint, w Weights) float64 {
	return clamp01(w.Alpha * HashDistance(a, b) / w.Sum())
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
