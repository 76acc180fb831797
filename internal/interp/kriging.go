package interp

import (
	"context"
	"math"
	"runtime"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"

	"github.com/terralab/geostat/internal/raster"
	"github.com/terralab/geostat/internal/sample"
)

// KrigingOptions configures ordinary kriging.
type KrigingOptions struct {
	Variogram Variogram
	Neighbors int // k nearest observations per prediction
	Workers   int // concurrent rows, 0 = GOMAXPROCS
}

// KrigingResult holds the prediction surface and its kriging variance.
type KrigingResult struct {
	Prediction *raster.Grid
	Variance   *raster.Grid
}

// Kriging predicts every non-nodata cell of the template grid by ordinary
// kriging over the k nearest observations, solving one constrained system
// per cell. Rows are processed in parallel.
func Kriging(ctx context.Context, obs []sample.Observation, template *raster.Grid, opts KrigingOptions) (*KrigingResult, error) {
	if len(obs) < 2 {
		return nil, eris.Errorf("interp: need at least 2 observations, got %d", len(obs))
	}
	if opts.Neighbors <= 0 {
		opts.Neighbors = 16
	}
	if opts.Variogram.Sill == 0 && opts.Variogram.Nugget == 0 {
		return nil, eris.New("interp: variogram has zero sill and nugget")
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.GOMAXPROCS(0)
	}

	ix := newNeighborIndex(obs)
	pred := template.Clone()
	vari := template.Clone()

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Workers)
	for row := 0; row < pred.Rows; row++ {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			for col := 0; col < pred.Cols; col++ {
				if pred.IsNoData(template.Value(col, row)) {
					continue
				}
				x, y := pred.CellCenter(col, row)
				p, v, err := krigeAt(obs, ix, x, y, opts)
				if err != nil {
					return err
				}
				pred.SetValue(col, row, p)
				vari.SetValue(col, row, v)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "interp: kriging")
	}

	zap.L().Debug("interp: kriging surface done",
		zap.Int("cells", pred.Cols*pred.Rows),
		zap.Int("observations", len(obs)),
		zap.String("model", opts.Variogram.Model.String()),
	)
	return &KrigingResult{Prediction: pred, Variance: vari}, nil
}

// krigeAt solves the ordinary kriging system for a single location. The
// system is the neighbor-pair semivariance matrix bordered by a row and
// column of ones for the unbiasedness constraint, with a Lagrange
// multiplier in the last slot.
func krigeAt(obs []sample.Observation, ix *neighborIndex, x, y float64, opts KrigingOptions) (prediction, variance float64, err error) {
	nn := ix.nearest(x, y, opts.Neighbors)
	n := len(nn)

	// An exact hit needs no system at all.
	for _, i := range nn {
		if obs[i].X == x && obs[i].Y == y {
			return obs[i].Value, 0, nil
		}
	}

	vg := opts.Variogram
	a := mat.NewDense(n+1, n+1, nil)
	b := mat.NewVecDense(n+1, nil)
	for i := 0; i < n; i++ {
		oi := obs[nn[i]]
		for j := i + 1; j < n; j++ {
			oj := obs[nn[j]]
			gam := vg.Gamma(math.Hypot(oi.X-oj.X, oi.Y-oj.Y))
			a.Set(i, j, gam)
			a.Set(j, i, gam)
		}
		a.Set(i, n, 1)
		a.Set(n, i, 1)
		b.SetVec(i, vg.Gamma(math.Hypot(oi.X-x, oi.Y-y)))
	}
	b.SetVec(n, 1)

	w, err := solveKrigingSystem(a, b)
	if err != nil {
		return 0, 0, err
	}

	prediction = 0.0
	variance = w.AtVec(n) // Lagrange multiplier
	for i := 0; i < n; i++ {
		prediction += w.AtVec(i) * obs[nn[i]].Value
		variance += w.AtVec(i) * b.AtVec(i)
	}
	if variance < 0 {
		variance = 0
	}
	return prediction, variance, nil
}

// solveKrigingSystem solves by QR, retrying with diagonal regularization
// when the system is near singular.
func solveKrigingSystem(a *mat.Dense, b *mat.VecDense) (*mat.VecDense, error) {
	n, _ := a.Dims()
	x := mat.NewVecDense(n, nil)

	var qr mat.QR
	qr.Factorize(a)
	if err := qr.SolveVecTo(x, false, b); err == nil {
		return x, nil
	}

	reg := mat.DenseCopyOf(a)
	for i := 0; i < n-1; i++ {
		reg.Set(i, i, reg.At(i, i)+1e-6)
	}
	qr.Factorize(reg)
	if err := qr.SolveVecTo(x, false, b); err != nil {
		return nil, eris.Wrap(err, "interp: kriging system singular")
	}
	return x, nil
}
