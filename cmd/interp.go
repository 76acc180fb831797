package main

import (
	"fmt"
	"math"
	"os"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/terralab/geostat/internal/crs"
	"github.com/terralab/geostat/internal/interp"
	"github.com/terralab/geostat/internal/raster"
	"github.com/terralab/geostat/internal/report"
	"github.com/terralab/geostat/internal/sample"
)

var (
	interpMethod   string
	interpCellSize float64
	interpEPSG     int
	interpOut      string
	interpPNG      string
)

var interpCmd = &cobra.Command{
	Use:   "interp <observations.csv>",
	Short: "Interpolate a surface from an observations CSV",
	Long:  "Reads x,y,value observations and predicts a regular grid over their extent by IDW or ordinary kriging with a fitted variogram.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		data, err := os.ReadFile(args[0])
		if err != nil {
			return eris.Wrapf(err, "read observations %s", args[0])
		}
		var obs []sample.Observation
		if err := csvutil.Unmarshal(data, &obs); err != nil {
			return eris.Wrapf(err, "parse observations %s", args[0])
		}
		if len(obs) < 4 {
			return eris.Errorf("need at least 4 observations, got %d", len(obs))
		}

		template, err := observationTemplate(obs, interpCellSize, interpEPSG)
		if err != nil {
			return err
		}

		var surface *raster.Grid
		switch interpMethod {
		case "idw":
			surface, err = interp.IDW(ctx, obs, template, interp.IDWOptions{
				Power:     cfg.Interp.IDWPower,
				Neighbors: cfg.Interp.Neighbors,
				Workers:   cfg.Interp.Workers,
			})
			if err != nil {
				return err
			}
		case "kriging":
			model, err := interp.ParseModel(cfg.Interp.VariogramModel)
			if err != nil {
				return err
			}
			emp, err := interp.Empirical(obs, cfg.Interp.VariogramBins)
			if err != nil {
				return err
			}
			vario, err := interp.Fit(emp, model)
			if err != nil {
				return err
			}
			zap.L().Info("variogram fitted",
				zap.String("model", vario.Model.String()),
				zap.Float64("nugget", vario.Nugget),
				zap.Float64("sill", vario.Sill),
				zap.Float64("range", vario.Range))
			kr, err := interp.Kriging(ctx, obs, template, interp.KrigingOptions{
				Variogram: vario,
				Neighbors: cfg.Interp.Neighbors,
				Workers:   cfg.Interp.Workers,
			})
			if err != nil {
				return err
			}
			surface = kr.Prediction
		default:
			return eris.Errorf("unknown method %q, want idw or kriging", interpMethod)
		}

		if err := raster.WriteASCIIFile(interpOut, surface); err != nil {
			return err
		}
		if interpPNG != "" {
			if err := report.SurfacePNG(surface, interpMethod, interpPNG); err != nil {
				return err
			}
		}
		zap.L().Info("surface written",
			zap.String("method", interpMethod),
			zap.Int("cols", surface.Cols),
			zap.Int("rows", surface.Rows),
			zap.String("path", interpOut))
		return nil
	},
}

// observationTemplate builds an empty grid covering the observation extent,
// padded by one cell on each side.
func observationTemplate(obs []sample.Observation, cellSize float64, epsg int) (*raster.Grid, error) {
	if cellSize <= 0 {
		return nil, eris.Errorf("cell size must be positive, got %g", cellSize)
	}
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, o := range obs {
		minX, maxX = math.Min(minX, o.X), math.Max(maxX, o.X)
		minY, maxY = math.Min(minY, o.Y), math.Max(maxY, o.Y)
	}
	minX -= cellSize
	minY -= cellSize
	cols := int(math.Ceil((maxX-minX)/cellSize)) + 1
	rows := int(math.Ceil((maxY-minY)/cellSize)) + 1

	srs := crs.WGS84
	if epsg != 0 {
		var err error
		srs, err = crs.Parse(fmt.Sprintf("EPSG:%d", epsg))
		if err != nil {
			return nil, err
		}
	}
	g, err := raster.New(cols, rows, minX, minY, cellSize, srs)
	if err != nil {
		return nil, err
	}
	// New grids start all nodata, which the interpolators treat as a mask.
	// With no DEM mask here, every cell is a prediction target.
	g.Fill(0)
	return g, nil
}

func init() {
	interpCmd.Flags().StringVar(&interpMethod, "method", "kriging", "interpolation method (idw or kriging)")
	interpCmd.Flags().Float64Var(&interpCellSize, "cell-size", 100, "output cell size in observation units")
	interpCmd.Flags().IntVar(&interpEPSG, "epsg", 0, "EPSG code of the observation CRS (0 = WGS84)")
	interpCmd.Flags().StringVarP(&interpOut, "output", "o", "surface.asc", "output ESRI ASCII grid path")
	interpCmd.Flags().StringVar(&interpPNG, "png", "", "optional heatmap PNG path")
	rootCmd.AddCommand(interpCmd)
}
