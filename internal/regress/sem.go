package regress

import (
	"math"

	"github.com/rotisserie/eris"
	"gonum.org/v1/gonum/mat"

	"github.com/terralab/geostat/internal/weights"
)

// SEMResult holds a maximum likelihood spatial error model fit,
// y = Xb + u with u = lambda*W*u + e.
type SEMResult struct {
	Coefficients []float64 `json:"coefficients"` // intercept first
	Lambda       float64   `json:"lambda"`
	Sigma2       float64   `json:"sigma2"`
	LogLik       float64   `json:"log_lik"`
	AIC          float64   `json:"aic"`
	Residuals    []float64 `json:"-"`
}

// SpatialError fits the spatial error model by concentrated maximum
// likelihood: a golden section search over lambda, with beta and sigma2
// profiled out by generalized least squares on the spatially filtered data.
// The log determinant term uses the eigenvalues of W, computed once.
func SpatialError(y []float64, x [][]float64, w *weights.W) (*SEMResult, error) {
	n := len(y)
	if n == 0 {
		return nil, eris.New("regress: empty response")
	}
	if len(x) != n || w.N != n {
		return nil, eris.Errorf("regress: dimension mismatch: %d responses, %d covariate rows, %d spatial units", n, len(x), w.N)
	}
	p := len(x[0]) + 1
	if n <= p {
		return nil, eris.Errorf("regress: %d observations for %d parameters", n, p)
	}

	Wd := w.Dense()
	eigs, err := realEigenvalues(Wd)
	if err != nil {
		return nil, err
	}

	X := designMatrix(x)
	Y := mat.NewVecDense(n, append([]float64(nil), y...))

	concentrated := func(lambda float64) (float64, *mat.VecDense, []float64, float64) {
		// Filter: (I - lambda W) applied to y and X.
		A := mat.NewDense(n, n, nil)
		A.Scale(-lambda, Wd)
		for i := 0; i < n; i++ {
			A.Set(i, i, A.At(i, i)+1)
		}
		fy := mat.NewVecDense(n, nil)
		fy.MulVec(A, Y)
		fX := mat.NewDense(n, p, nil)
		fX.Mul(A, X)

		beta, err := solveLS(fX, fy)
		if err != nil {
			return math.Inf(-1), nil, nil, 0
		}
		fitted := mat.NewVecDense(n, nil)
		fitted.MulVec(fX, beta)
		resid := make([]float64, n)
		rss := 0.0
		for i := 0; i < n; i++ {
			resid[i] = fy.AtVec(i) - fitted.AtVec(i)
			rss += resid[i] * resid[i]
		}
		sigma2 := rss / float64(n)

		logDet := 0.0
		for _, e := range eigs {
			v := 1 - lambda*e
			if v <= 0 {
				return math.Inf(-1), nil, nil, 0
			}
			logDet += math.Log(v)
		}
		return gaussianLogLik(n, sigma2, logDet), beta, resid, sigma2
	}

	lambda := goldenMax(func(l float64) float64 {
		ll, _, _, _ := concentrated(l)
		return ll
	}, -0.99, 0.99, 1e-6)

	ll, beta, resid, sigma2 := concentrated(lambda)
	if math.IsInf(ll, -1) || beta == nil {
		return nil, eris.New("regress: spatial error likelihood did not evaluate")
	}

	coefs := make([]float64, p)
	for j := 0; j < p; j++ {
		coefs[j] = beta.AtVec(j)
	}
	k := float64(p + 2) // beta, sigma2, lambda
	return &SEMResult{
		Coefficients: coefs,
		Lambda:       lambda,
		Sigma2:       sigma2,
		LogLik:       ll,
		AIC:          2*k - 2*ll,
		Residuals:    resid,
	}, nil
}

// realEigenvalues returns the real parts of the eigenvalues of m. Row
// standardized weight matrices have real spectra bounded by 1 in modulus;
// a materially complex eigenvalue means the matrix is not a valid weights
// matrix for the likelihood.
func realEigenvalues(m *mat.Dense) ([]float64, error) {
	var eig mat.Eigen
	if ok := eig.Factorize(m, mat.EigenNone); !ok {
		return nil, eris.New("regress: eigendecomposition failed")
	}
	vals := eig.Values(nil)
	out := make([]float64, len(vals))
	for i, v := range vals {
		if math.Abs(imag(v)) > 1e-8*(1+math.Abs(real(v))) {
			return nil, eris.Errorf("regress: weights matrix has complex eigenvalue %v", v)
		}
		out[i] = real(v)
	}
	return out, nil
}

// goldenMax maximizes f over [lo, hi] by golden section search.
func goldenMax(f func(float64) float64, lo, hi, tol float64) float64 {
	const phi = 0.6180339887498949
	a, b := lo, hi
	c := b - phi*(b-a)
	d := a + phi*(b-a)
	fc, fd := f(c), f(d)
	for b-a > tol {
		if fc > fd {
			b, d, fd = d, c, fc
			c = b - phi*(b-a)
			fc = f(c)
		} else {
			a, c, fc = c, d, fd
			d = a + phi*(b-a)
			fd = f(d)
		}
	}
	return (a + b) / 2
}
