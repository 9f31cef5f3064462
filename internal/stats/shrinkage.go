package stats

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// ShrinkCovariance applies Ledoit-Wolf style shrinkage to a sample covariance
// matrix, blending it toward a constant-correlation target to reduce
// estimation noise. The shrunk matrix is better conditioned than the sample
// estimate and is the default input to both engines.
//
// Reference: Ledoit, O., & Wolf, M. (2004). "A well-conditioned estimator for
// large-dimensional covariance matrices"
func ShrinkCovariance(sample *mat.SymDense) *mat.SymDense {
	n := sample.SymmetricDim()
	if n == 0 {
		return sample
	}

	// Target: average variance on the diagonal, average covariance off it
	// (constant correlation model).
	var avgVar, avgCov float64
	for i := 0; i < n; i++ {
		avgVar += sample.At(i, i)
		for j := 0; j < n; j++ {
			if i != j {
				avgCov += sample.At(i, j)
			}
		}
	}
	avgVar /= float64(n)
	if n > 1 {
		avgCov /= float64(n * (n - 1))
	}

	target := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		target.SetSym(i, i, avgVar)
		for j := i + 1; j < n; j++ {
			target.SetSym(i, j, avgCov)
		}
	}

	shrinkage := shrinkageIntensity(sample, target, avgVar)

	shrunk := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			v := (1-shrinkage)*sample.At(i, j) + shrinkage*target.At(i, j)
			shrunk.SetSym(i, j, v)
		}
	}
	return shrunk
}

// shrinkageIntensity estimates how far to pull the sample toward the target.
// Simplified estimator: the closer the sample already is to the target, the
// less shrinkage is applied; capped at 0.5, defaults to 0.2 for tiny systems.
func shrinkageIntensity(sample, target *mat.SymDense, avgVar float64) float64 {
	n := sample.SymmetricDim()
	const defaultShrinkage = 0.2

	if n <= 2 || avgVar <= 0 {
		return defaultShrinkage
	}

	var sumSqDiff float64
	var sum, sumSq float64
	count := 0
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			diff := sample.At(i, j) - target.At(i, j)
			sumSqDiff += diff * diff

			v := sample.At(i, j)
			sum += v
			sumSq += v * v
			count++
		}
	}
	meanSqDiff := sumSqDiff / float64(count)

	meanSample := sum / float64(count)
	varSample := sumSq/float64(count) - meanSample*meanSample

	if varSample <= 0 || meanSqDiff <= 0 {
		return defaultShrinkage
	}
	return math.Min(0.5, math.Max(0.0, varSample/(varSample+meanSqDiff)))
}
