package main

import (
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/terralab/geostat/internal/fetch"
	"github.com/terralab/geostat/internal/model"
	"github.com/terralab/geostat/internal/pipeline"
	"github.com/terralab/geostat/internal/store"
	"github.com/terralab/geostat/pkg/osm"
)

var runCmd = &cobra.Command{
	Use:   "run <study.yaml>",
	Short: "Execute a full study from a spec file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		data, err := os.ReadFile(args[0])
		if err != nil {
			return eris.Wrapf(err, "read spec %s", args[0])
		}
		var spec model.StudySpec
		if err := yaml.Unmarshal(data, &spec); err != nil {
			return eris.Wrapf(err, "parse spec %s", args[0])
		}

		st, closeStore, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer closeStore()

		p := newPipeline(st)
		result, err := p.Run(ctx, spec)
		if err != nil {
			return err
		}

		zap.L().Info("study complete",
			zap.String("name", spec.Name),
			zap.Int("observations", result.Observations),
			zap.Int("zones", result.Zones),
			zap.Float64("moran_i", result.Moran.I),
			zap.Strings("artifacts", result.Artifacts))
		return nil
	},
}

// newPipeline wires the pipeline against the live Overpass and SRTM services.
func newPipeline(st store.Store) *pipeline.Pipeline {
	boundary := osm.New(cfg.Overpass.Endpoint, time.Duration(cfg.Overpass.TimeoutSecs)*time.Second)
	return pipeline.New(cfg, st, boundary, newDEMManager())
}

// newDEMManager builds the tile loader with both HTTP and FTP transports,
// routed by the scheme of the configured tile URL.
func newDEMManager() *fetch.DEMManager {
	timeout := time.Duration(cfg.Fetch.TimeoutSecs) * time.Second
	fetcher := &fetch.SchemeFetcher{
		HTTP: fetch.NewHTTPFetcher(fetch.HTTPOptions{
			UserAgent:  cfg.Fetch.UserAgent,
			Timeout:    timeout,
			MaxRetries: cfg.Fetch.MaxRetries,
			RatePerSec: cfg.Fetch.RatePerSec,
		}),
		FTP: fetch.NewFTPFetcher(fetch.FTPOptions{Timeout: timeout}),
	}
	dem := fetch.NewDEMManager(fetcher, cfg.Fetch.CacheDir)
	if cfg.Fetch.TileURL != "" {
		dem.BaseURL = cfg.Fetch.TileURL
	}
	return dem
}

func init() {
	rootCmd.AddCommand(runCmd)
}
