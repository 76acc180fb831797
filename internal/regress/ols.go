// Package regress fits linear models to areal data: ordinary least squares
// and a maximum-likelihood spatial error model.
package regress

import (
	"math"

	"github.com/rotisserie/eris"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// OLSResult holds an ordinary least squares fit.
type OLSResult struct {
	Coefficients []float64 `json:"coefficients"` // intercept first
	StdErrors    []float64 `json:"std_errors"`
	TValues      []float64 `json:"t_values"`
	PValues      []float64 `json:"p_values"`
	Residuals    []float64 `json:"-"`
	Sigma2       float64   `json:"sigma2"`
	R2           float64   `json:"r2"`
	LogLik       float64   `json:"log_lik"`
	AIC          float64   `json:"aic"`
}

// OLS regresses y on the covariate columns of x, adding an intercept. Each
// row of x is one observation.
func OLS(y []float64, x [][]float64) (*OLSResult, error) {
	n := len(y)
	if n == 0 {
		return nil, eris.New("regress: empty response")
	}
	if len(x) != n {
		return nil, eris.Errorf("regress: %d responses for %d covariate rows", n, len(x))
	}
	p := len(x[0]) + 1
	if n <= p {
		return nil, eris.Errorf("regress: %d observations for %d parameters", n, p)
	}

	X := designMatrix(x)
	Y := mat.NewVecDense(n, append([]float64(nil), y...))

	beta, err := solveLS(X, Y)
	if err != nil {
		return nil, err
	}

	// Residuals and fit statistics.
	fitted := mat.NewVecDense(n, nil)
	fitted.MulVec(X, beta)
	resid := make([]float64, n)
	rss := 0.0
	meanY := 0.0
	for i := 0; i < n; i++ {
		resid[i] = y[i] - fitted.AtVec(i)
		rss += resid[i] * resid[i]
		meanY += y[i]
	}
	meanY /= float64(n)
	tss := 0.0
	for _, v := range y {
		d := v - meanY
		tss += d * d
	}
	if tss == 0 {
		return nil, eris.New("regress: response is constant")
	}

	sigma2 := rss / float64(n-p)

	// Coefficient covariance from (X'X)^-1.
	var xtx mat.Dense
	xtx.Mul(X.T(), X)
	var xtxInv mat.Dense
	if err := xtxInv.Inverse(&xtx); err != nil {
		return nil, eris.Wrap(err, "regress: singular design matrix")
	}

	coefs := make([]float64, p)
	ses := make([]float64, p)
	ts := make([]float64, p)
	ps := make([]float64, p)
	tdist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: float64(n - p)}
	for j := 0; j < p; j++ {
		coefs[j] = beta.AtVec(j)
		ses[j] = math.Sqrt(sigma2 * xtxInv.At(j, j))
		if ses[j] > 0 {
			ts[j] = coefs[j] / ses[j]
			ps[j] = 2 * tdist.Survival(math.Abs(ts[j]))
		}
	}

	ll := gaussianLogLik(n, rss/float64(n), 0)
	return &OLSResult{
		Coefficients: coefs,
		StdErrors:    ses,
		TValues:      ts,
		PValues:      ps,
		Residuals:    resid,
		Sigma2:       sigma2,
		R2:           1 - rss/tss,
		LogLik:       ll,
		AIC:          2*float64(p+1) - 2*ll,
	}, nil
}

// designMatrix prepends an intercept column to the covariates.
func designMatrix(x [][]float64) *mat.Dense {
	n := len(x)
	p := len(x[0]) + 1
	X := mat.NewDense(n, p, nil)
	for i, row := range x {
		X.Set(i, 0, 1)
		for j, v := range row {
			X.Set(i, j+1, v)
		}
	}
	return X
}

// solveLS solves min ||Xb - y|| by QR.
func solveLS(X *mat.Dense, y *mat.VecDense) (*mat.VecDense, error) {
	_, p := X.Dims()
	var qr mat.QR
	qr.Factorize(X)
	b := mat.NewVecDense(p, nil)
	if err := qr.SolveVecTo(b, false, y); err != nil {
		return nil, eris.Wrap(err, "regress: least squares solve")
	}
	return b, nil
}

// gaussianLogLik is the log likelihood of n iid normal errors with the given
// ML variance, plus an optional log-Jacobian term.
func gaussianLogLik(n int, sigma2ML, logJacobian float64) float64 {
	nf := float64(n)
	return -nf/2*(math.Log(2*math.Pi)+math.Log(sigma2ML)+1) + logJacobian
}
