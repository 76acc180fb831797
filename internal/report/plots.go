// Package report renders analysis outputs: static PNG plots, interactive
// HTML charts, and tabular exports.
package report

import (
	"image/color"

	"github.com/rotisserie/eris"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/terralab/geostat/internal/interp"
	"github.com/terralab/geostat/internal/raster"
)

// VariogramPNG plots the empirical semivariogram bins together with the
// fitted model curve.
func VariogramPNG(emp []interp.EmpiricalBin, v interp.Variogram, path string) error {
	p := plot.New()
	p.Title.Text = "Semivariogram (" + v.Model.String() + ")"
	p.X.Label.Text = "lag distance"
	p.Y.Label.Text = "semivariance"

	pts := make(plotter.XYs, len(emp))
	maxLag := 0.0
	for i, b := range emp {
		pts[i] = plotter.XY{X: b.Lag, Y: b.Gamma}
		if b.Lag > maxLag {
			maxLag = b.Lag
		}
	}
	scatter, err := plotter.NewScatter(pts)
	if err != nil {
		return eris.Wrap(err, "report: variogram scatter")
	}
	scatter.GlyphStyle.Radius = vg.Points(3)

	curve := plotter.NewFunction(v.Gamma)
	curve.Color = color.RGBA{R: 200, A: 255}
	curve.Width = vg.Points(1.5)

	p.Add(plotter.NewGrid(), scatter, curve)
	p.Legend.Add("empirical", scatter)
	p.Legend.Add("fitted", curve)
	p.X.Min, p.X.Max = 0, maxLag*1.05

	if err := p.Save(8*vg.Inch, 5*vg.Inch, path); err != nil {
		return eris.Wrap(err, "report: save variogram plot")
	}
	return nil
}

// gridXYZ adapts a raster grid to the plotter heat map interface.
type gridXYZ struct {
	g *raster.Grid
}

func (a gridXYZ) Dims() (c, r int) { return a.g.Cols, a.g.Rows }

func (a gridXYZ) X(c int) float64 {
	x, _ := a.g.CellCenter(c, 0)
	return x
}

// Y maps plot rows south to north, opposite of grid row order.
func (a gridXYZ) Y(r int) float64 {
	_, y := a.g.CellCenter(0, a.g.Rows-1-r)
	return y
}

func (a gridXYZ) Z(c, r int) float64 {
	v := a.g.Value(c, a.g.Rows-1-r)
	if a.g.IsNoData(v) {
		return 0
	}
	return v
}

// SurfacePNG renders a grid as a heat map.
func SurfacePNG(g *raster.Grid, title, path string) error {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "easting"
	p.Y.Label.Text = "northing"

	hm := plotter.NewHeatMap(gridXYZ{g: g}, palette.Heat(12, 1))
	p.Add(hm)

	if err := p.Save(8*vg.Inch, 8*vg.Inch, path); err != nil {
		return eris.Wrap(err, "report: save surface plot")
	}
	return nil
}

// HistogramPNG renders the distribution of a value slice.
func HistogramPNG(values []float64, title, path string) error {
	if len(values) == 0 {
		return eris.New("report: no values to plot")
	}
	p := plot.New()
	p.Title.Text = title
	p.Y.Label.Text = "count"

	h, err := plotter.NewHist(plotter.Values(values), 20)
	if err != nil {
		return eris.Wrap(err, "report: histogram")
	}
	p.Add(h)

	if err := p.Save(6*vg.Inch, 4*vg.Inch, path); err != nil {
		return eris.Wrap(err, "report: save histogram")
	}
	return nil
}
