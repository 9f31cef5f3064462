package simulation

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// sampler draws correlated multivariate normal return vectors:
// x = mean + T*z with z ~ N(0, I) and T*T' = cov.
//
// T is the Cholesky factor when the covariance is positive definite, and an
// eigen square root when it is merely positive semi-definite (degenerate
// zero-variance assets must still sample exactly).
type sampler struct {
	dim       int
	mean      []float64
	transform *mat.Dense
	normal    distuv.Normal
}

func newSampler(mean []float64, cov *mat.SymDense, src rand.Source) (*sampler, error) {
	n := len(mean)
	if cov.SymmetricDim() != n {
		return nil, fmt.Errorf("covariance size %d does not match mean length %d", cov.SymmetricDim(), n)
	}

	transform, err := covarianceRoot(cov)
	if err != nil {
		return nil, err
	}

	return &sampler{
		dim:       n,
		mean:      mean,
		transform: transform,
		normal:    distuv.Normal{Mu: 0, Sigma: 1, Src: src},
	}, nil
}

// sample fills dst with one multivariate draw, using z as scratch space.
func (s *sampler) sample(dst, z []float64) {
	for i := range z {
		z[i] = s.normal.Rand()
	}
	for i := 0; i < s.dim; i++ {
		v := s.mean[i]
		for j := 0; j < s.dim; j++ {
			v += s.transform.At(i, j) * z[j]
		}
		dst[i] = v
	}
}

// covarianceRoot returns T with T*T' = cov. Cholesky first; eigen square
// root with negative eigenvalues floored at zero when Cholesky fails.
func covarianceRoot(cov *mat.SymDense) (*mat.Dense, error) {
	n := cov.SymmetricDim()

	var chol mat.Cholesky
	if chol.Factorize(cov) {
		var l mat.TriDense
		chol.LTo(&l)
		root := mat.NewDense(n, n, nil)
		root.Copy(&l)
		return root, nil
	}

	var eig mat.EigenSym
	if ok := eig.Factorize(cov, true); !ok {
		return nil, fmt.Errorf("covariance matrix could not be factorized")
	}

	vals := eig.Values(nil)
	var vecs mat.Dense
	eig.VectorsTo(&vecs)

	root := mat.NewDense(n, n, nil)
	for j := 0; j < n; j++ {
		s := math.Sqrt(math.Max(vals[j], 0))
		for i := 0; i < n; i++ {
			root.Set(i, j, vecs.At(i, j)*s)
		}
	}
	return root, nil
}
