package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/terralab/geostat/internal/raster"
)

var (
	demBounds   []float64
	demCellSize float64
	demOut      string
)

var demCmd = &cobra.Command{
	Use:   "dem",
	Short: "Download and mosaic elevation tiles for a bounding box",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if len(demBounds) != 4 {
			return eris.New("--bounds requires minLon,minLat,maxLon,maxLat")
		}

		dem := newDEMManager()

		grid, err := dem.LoadBounds(ctx, demBounds[0], demBounds[1], demBounds[2], demBounds[3])
		if err != nil {
			return err
		}
		if demCellSize > 0 {
			grid, err = grid.Resample(demCellSize)
			if err != nil {
				return err
			}
		}

		if err := raster.WriteASCIIFile(demOut, grid); err != nil {
			return err
		}
		zap.L().Info("dem written",
			zap.Int("cols", grid.Cols),
			zap.Int("rows", grid.Rows),
			zap.String("path", demOut))
		return nil
	},
}

func init() {
	demCmd.Flags().Float64SliceVar(&demBounds, "bounds", nil, "minLon,minLat,maxLon,maxLat in WGS84")
	demCmd.Flags().Float64Var(&demCellSize, "cell-size", 0, "resample the mosaic to this cell size in degrees (0 = native)")
	demCmd.Flags().StringVarP(&demOut, "output", "o", "dem.asc", "output ESRI ASCII grid path")
	rootCmd.AddCommand(demCmd)
}
