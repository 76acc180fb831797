package interp

import (
	"context"
	"math"
	"runtime"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/terralab/geostat/internal/raster"
	"github.com/terralab/geostat/internal/sample"
)

// IDWOptions configures inverse distance weighting.
type IDWOptions struct {
	Power     float64 // distance exponent, conventionally 2
	Neighbors int     // k nearest observations per prediction
	Workers   int     // concurrent rows, 0 = GOMAXPROCS
}

// IDW predicts the value of every non-nodata cell of the template grid from
// the observations. The template's values are ignored; its geometry, CRS and
// nodata mask carry over to the result.
func IDW(ctx context.Context, obs []sample.Observation, template *raster.Grid, opts IDWOptions) (*raster.Grid, error) {
	if len(obs) == 0 {
		return nil, eris.New("interp: no observations")
	}
	if opts.Power <= 0 {
		opts.Power = 2
	}
	if opts.Neighbors <= 0 {
		opts.Neighbors = 16
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.GOMAXPROCS(0)
	}

	ix := newNeighborIndex(obs)
	out := template.Clone()

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Workers)
	for row := 0; row < out.Rows; row++ {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			for col := 0; col < out.Cols; col++ {
				if out.IsNoData(template.Value(col, row)) {
					continue
				}
				x, y := out.CellCenter(col, row)
				out.SetValue(col, row, idwAt(obs, ix, x, y, opts))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "interp: idw")
	}

	zap.L().Debug("interp: idw surface done",
		zap.Int("cells", out.Cols*out.Rows),
		zap.Int("observations", len(obs)),
	)
	return out, nil
}

func idwAt(obs []sample.Observation, ix *neighborIndex, x, y float64, opts IDWOptions) float64 {
	num, den := 0.0, 0.0
	for _, i := range ix.nearest(x, y, opts.Neighbors) {
		o := obs[i]
		d := math.Hypot(o.X-x, o.Y-y)
		if d == 0 {
			// Prediction point coincides with an observation.
			return o.Value
		}
		w := 1 / math.Pow(d, opts.Power)
		num += w * o.Value
		den += w
	}
	return num / den
}
