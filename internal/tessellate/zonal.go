package tessellate

import (
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"gonum.org/v1/gonum/stat"

	"github.com/terralab/geostat/internal/crs"
	"github.com/terralab/geostat/internal/raster"
	"github.com/terralab/geostat/internal/vector"
)

// ZoneStat summarizes the raster cells falling inside one Voronoi cell.
type ZoneStat struct {
	X     float64 `csv:"x" json:"x"`
	Y     float64 `csv:"y" json:"y"`
	Area  float64 `csv:"area" json:"area"`
	Count int     `csv:"count" json:"count"`
	Min   float64 `csv:"min" json:"min"`
	Max   float64 `csv:"max" json:"max"`
	Mean  float64 `csv:"mean" json:"mean"`
	Std   float64 `csv:"std" json:"std"`
}

// ZonalStats aggregates grid values per Voronoi cell by assigning every
// valid raster cell to the zone containing its center. Zones smaller than a
// raster cell can come back with a zero count.
func ZonalStats(cells []Cell, g *raster.Grid) ([]ZoneStat, error) {
	if len(cells) == 0 {
		return nil, eris.New("tessellate: no cells to aggregate")
	}

	values := make([][]float64, len(cells))
	for row := 0; row < g.Rows; row++ {
		for col := 0; col < g.Cols; col++ {
			v := g.Value(col, row)
			if g.IsNoData(v) {
				continue
			}
			x, y := g.CellCenter(col, row)
			for i, c := range cells {
				if vector.PointInPolygon(geom.Coord{x, y}, c.Polygon) {
					values[i] = append(values[i], v)
					break
				}
			}
		}
	}

	out := make([]ZoneStat, len(cells))
	for i, c := range cells {
		zs := ZoneStat{
			X:     c.Site.X(),
			Y:     c.Site.Y(),
			Area:  crs.PlanarArea(c.Polygon),
			Count: len(values[i]),
		}
		if len(values[i]) > 0 {
			zs.Min, zs.Max = minMax(values[i])
			zs.Mean = stat.Mean(values[i], nil)
			if len(values[i]) > 1 {
				zs.Std = stat.StdDev(values[i], nil)
			}
		}
		out[i] = zs
	}
	return out, nil
}

func minMax(vs []float64) (lo, hi float64) {
	lo, hi = vs[0], vs[0]
	for _, v := range vs[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return lo, hi
}
