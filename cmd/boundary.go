package main

import (
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/terralab/geostat/internal/vector"
	"github.com/terralab/geostat/pkg/osm"
)

var (
	boundaryCountry string
	boundaryLevel   int
	boundaryOut     string
)

var boundaryCmd = &cobra.Command{
	Use:   "boundary",
	Short: "Download an administrative boundary as GeoJSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if boundaryCountry == "" {
			return eris.New("--country is required")
		}

		client := osm.New(cfg.Overpass.Endpoint, time.Duration(cfg.Overpass.TimeoutSecs)*time.Second)
		coll, err := client.Boundary(ctx, boundaryCountry, boundaryLevel)
		if err != nil {
			return err
		}

		if err := vector.WriteGeoJSONFile(boundaryOut, coll); err != nil {
			return err
		}
		zap.L().Info("boundary written",
			zap.String("country", boundaryCountry),
			zap.Int("features", len(coll.Features)),
			zap.String("path", boundaryOut))
		return nil
	},
}

func init() {
	boundaryCmd.Flags().StringVar(&boundaryCountry, "country", "", "boundary name, matched against name:en and name tags")
	boundaryCmd.Flags().IntVar(&boundaryLevel, "level", 2, "OSM admin_level (2 = country)")
	boundaryCmd.Flags().StringVarP(&boundaryOut, "output", "o", "boundary.geojson", "output GeoJSON path")
	rootCmd.AddCommand(boundaryCmd)
}
