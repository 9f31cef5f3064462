package stats

import (
	"fmt"
	"math"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"
)

// PSDTolerance is the eigenvalue tolerance below which a matrix is considered
// to violate positive semi-definiteness.
const PSDTolerance = 1e-8

// MatrixDiagnostics summarizes the conditioning of a symmetric matrix.
type MatrixDiagnostics struct {
	MinEigenvalue   float64 `json:"min_eigenvalue"`
	MaxEigenvalue   float64 `json:"max_eigenvalue"`
	ConditionNumber float64 `json:"condition_number"`
	IsPSD           bool    `json:"is_psd"`
}

// Diagnose computes eigenvalue diagnostics for a symmetric matrix. The
// condition number (max/min eigenvalue) is +Inf for singular matrices; a very
// large value signals near-singular covariance.
func Diagnose(m mat.Symmetric) MatrixDiagnostics {
	var eig mat.EigenSym
	if ok := eig.Factorize(m, false); !ok {
		return MatrixDiagnostics{
			MinEigenvalue:   math.NaN(),
			MaxEigenvalue:   math.NaN(),
			ConditionNumber: math.Inf(1),
		}
	}

	vals := eig.Values(nil) // ascending order
	minEig := vals[0]
	maxEig := vals[len(vals)-1]

	cond := math.Inf(1)
	if minEig > 0 {
		cond = maxEig / minEig
	}

	return MatrixDiagnostics{
		MinEigenvalue:   minEig,
		MaxEigenvalue:   maxEig,
		ConditionNumber: cond,
		IsPSD:           minEig >= -PSDTolerance,
	}
}

// MatrixError reports a matrix that failed a statistical validity check,
// carrying the offending properties so callers can render an actionable
// message.
type MatrixError struct {
	Property        string  `json:"property"`
	MinEigenvalue   float64 `json:"min_eigenvalue"`
	ConditionNumber float64 `json:"condition_number"`
}

func (e *MatrixError) Error() string {
	return fmt.Sprintf("%s (min eigenvalue %.3e, condition number %.3e)", e.Property, e.MinEigenvalue, e.ConditionNumber)
}

// ProjectToPSD projects a symmetric matrix onto the positive semi-definite
// cone: eigen-decompose, clip negative eigenvalues to zero, reconstruct, and
// symmetrize. Already-PSD input is returned unchanged, so the projection is
// idempotent. The returned flag reports whether any eigenvalue was actually
// clipped; non-trivial corrections are logged at warn level.
func ProjectToPSD(m *mat.SymDense, log zerolog.Logger) (*mat.SymDense, bool) {
	var eig mat.EigenSym
	if ok := eig.Factorize(m, true); !ok {
		log.Warn().Msg("Eigen decomposition failed, returning matrix unchanged")
		return m, false
	}

	vals := eig.Values(nil)
	if vals[0] >= 0 {
		return m, false
	}

	n := m.SymmetricDim()
	var vecs mat.Dense
	eig.VectorsTo(&vecs)

	// V * diag(clip(lambda, 0)) * V'
	scaled := mat.NewDense(n, n, nil)
	for j := 0; j < n; j++ {
		lambda := math.Max(vals[j], 0)
		for i := 0; i < n; i++ {
			scaled.Set(i, j, vecs.At(i, j)*lambda)
		}
	}
	var rec mat.Dense
	rec.Mul(scaled, vecs.T())

	out := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			out.SetSym(i, j, 0.5*(rec.At(i, j)+rec.At(j, i)))
		}
	}

	if vals[0] < -PSDTolerance {
		log.Warn().
			Float64("min_eigenvalue", vals[0]).
			Msg("Covariance required PSD repair: negative eigenvalues clipped to zero")
	}
	return out, true
}

// ProjectCorrelationToPSD projects a correlation matrix onto the PSD cone and
// restores correlation structure: unit diagonal, off-diagonals clipped to
// [-1, 1].
func ProjectCorrelationToPSD(corr *mat.SymDense, log zerolog.Logger) (*mat.SymDense, bool) {
	projected, clipped := ProjectToPSD(corr, log)
	if !clipped {
		return projected, false
	}

	n := projected.SymmetricDim()
	out := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		out.SetSym(i, i, 1.0)
		for j := i + 1; j < n; j++ {
			out.SetSym(i, j, clamp(projected.At(i, j), -1, 1))
		}
	}
	return out, true
}

// CorrelationFromCovariance derives the correlation matrix and the per-asset
// standard deviations from a covariance matrix. Off-diagonals are clipped to
// [-1, 1] for numerical safety.
func CorrelationFromCovariance(cov mat.Symmetric) (*mat.SymDense, []float64) {
	n := cov.SymmetricDim()
	std := make([]float64, n)
	for i := 0; i < n; i++ {
		std[i] = math.Sqrt(math.Max(cov.At(i, i), 0))
	}

	corr := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		corr.SetSym(i, i, 1.0)
		for j := i + 1; j < n; j++ {
			denom := std[i] * std[j]
			if denom > 0 {
				corr.SetSym(i, j, clamp(cov.At(i, j)/denom, -1, 1))
			}
		}
	}
	return corr, std
}

// CovarianceFromCorrelation rebuilds a covariance matrix from a correlation
// matrix and per-asset standard deviations.
func CovarianceFromCorrelation(corr mat.Symmetric, std []float64) *mat.SymDense {
	n := corr.SymmetricDim()
	cov := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			cov.SetSym(i, j, corr.At(i, j)*std[i]*std[j])
		}
	}
	return cov
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
