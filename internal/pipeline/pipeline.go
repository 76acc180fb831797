// Package pipeline chains the analysis stages into one run: boundary fetch,
// reprojection, DEM load, sampling, interpolation, tessellation, spatial
// weights, autocorrelation and regression, then report artifacts. Any stage
// error aborts the remainder and marks the run failed.
package pipeline

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/terralab/geostat/internal/config"
	"github.com/terralab/geostat/internal/crs"
	"github.com/terralab/geostat/internal/esda"
	"github.com/terralab/geostat/internal/interp"
	"github.com/terralab/geostat/internal/model"
	"github.com/terralab/geostat/internal/raster"
	"github.com/terralab/geostat/internal/regress"
	"github.com/terralab/geostat/internal/report"
	"github.com/terralab/geostat/internal/sample"
	"github.com/terralab/geostat/internal/store"
	"github.com/terralab/geostat/internal/tessellate"
	"github.com/terralab/geostat/internal/vector"
	"github.com/terralab/geostat/internal/weights"
)

// BoundaryFetcher resolves a country name to its boundary feature.
type BoundaryFetcher interface {
	CountryBoundary(ctx context.Context, name string) (*vector.Feature, error)
}

// DEMLoader returns an elevation grid covering a geographic bounding box.
type DEMLoader interface {
	LoadBounds(ctx context.Context, minLon, minLat, maxLon, maxLat float64) (*raster.Grid, error)
}

// Pipeline orchestrates one study run end to end.
type Pipeline struct {
	cfg      *config.Config
	store    store.Store
	boundary BoundaryFetcher
	dem      DEMLoader
}

// New creates a Pipeline with all dependencies.
func New(cfg *config.Config, st store.Store, boundary BoundaryFetcher, dem DEMLoader) *Pipeline {
	return &Pipeline{cfg: cfg, store: st, boundary: boundary, dem: dem}
}

// Run executes the full analysis for one study spec and records progress in
// the store. The returned result is also persisted on the run record.
func (p *Pipeline) Run(ctx context.Context, spec model.StudySpec) (*model.RunResult, error) {
	applyDefaults(&spec, p.cfg)
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	log := zap.L().With(zap.String("study", spec.Name))
	log.Info("pipeline: starting run")

	run, err := p.store.CreateRun(ctx, spec)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: create run")
	}
	if err := p.store.UpdateRunStatus(ctx, run.ID, model.RunStatusRunning); err != nil {
		log.Warn("pipeline: update status", zap.Error(err))
	}

	result := &model.RunResult{Durations: make(map[string]float64)}
	if err := p.execute(ctx, run.ID, spec, result, log); err != nil {
		if dbErr := p.store.SetRunError(ctx, run.ID, err.Error()); dbErr != nil {
			log.Warn("pipeline: record failure", zap.Error(dbErr))
		}
		return nil, err
	}

	if err := p.store.UpdateRunResult(ctx, run.ID, result); err != nil {
		log.Warn("pipeline: save result", zap.Error(err))
	}
	log.Info("pipeline: run complete",
		zap.String("run_id", run.ID),
		zap.Int("observations", result.Observations),
		zap.Int("zones", result.Zones))
	return result, nil
}

// stage tracks one pipeline phase in the store and in the result durations.
func (p *Pipeline) stage(ctx context.Context, runID, name string, result *model.RunResult, log *zap.Logger, fn func() error) error {
	phase, err := p.store.CreatePhase(ctx, runID, name)
	if err != nil {
		log.Warn("pipeline: create phase", zap.String("stage", name), zap.Error(err))
	}

	start := time.Now()
	stageErr := fn()
	elapsed := time.Since(start)
	result.Durations[name] = elapsed.Seconds()

	status := model.PhaseStatusComplete
	if stageErr != nil {
		status = model.PhaseStatusFailed
		log.Error("pipeline: stage failed",
			zap.String("stage", name),
			zap.Duration("elapsed", elapsed),
			zap.Error(stageErr))
	} else {
		log.Info("pipeline: stage complete",
			zap.String("stage", name),
			zap.Duration("elapsed", elapsed))
	}
	if phase != nil {
		if err := p.store.CompletePhase(ctx, phase.ID, status); err != nil {
			log.Warn("pipeline: complete phase", zap.String("stage", name), zap.Error(err))
		}
	}
	if stageErr != nil {
		return eris.Wrapf(stageErr, "pipeline: stage %s", name)
	}
	return nil
}

func (p *Pipeline) execute(ctx context.Context, runID string, spec model.StudySpec, result *model.RunResult, log *zap.Logger) error {
	var (
		boundary *vector.Feature
		projSRS  crs.SRS
		masked   *raster.Grid
		obs      []sample.Observation
		emp      []interp.EmpiricalBin
		vario    interp.Variogram
		idw      *raster.Grid
		kriged   *interp.KrigingResult
		cells    []tessellate.Cell
		zones    []tessellate.ZoneStat
		w        *weights.W
		y        []float64
		locals   []esda.LocalMoran
	)

	if err := p.stage(ctx, runID, "boundary", result, log, func() error {
		var err error
		boundary, err = p.loadBoundary(ctx, spec)
		return err
	}); err != nil {
		return err
	}

	var dem *raster.Grid
	if err := p.stage(ctx, runID, "dem", result, log, func() error {
		minLon, minLat, maxLon, maxLat, err := featureBounds(boundary, crs.WGS84)
		if err != nil {
			return err
		}
		dem, err = p.dem.LoadBounds(ctx, minLon, minLat, maxLon, maxLat)
		return err
	}); err != nil {
		return err
	}

	if err := p.stage(ctx, runID, "project", result, log, func() error {
		var err error
		projSRS, err = targetSRS(spec, boundary)
		if err != nil {
			return err
		}
		tr, err := crs.NewTransform(crs.WGS84, projSRS)
		if err != nil {
			return err
		}
		g, err := tr.Geom(boundary.Geometry)
		if err != nil {
			return err
		}
		boundary = &vector.Feature{ID: boundary.ID, Geometry: g, Properties: boundary.Properties}

		template, err := analysisTemplate(boundary, projSRS, spec.CellSize)
		if err != nil {
			return err
		}
		warped, err := dem.Warp(template)
		if err != nil {
			return err
		}
		masked = warped.Mask(boundary.Geometry)
		return nil
	}); err != nil {
		return err
	}

	if err := p.stage(ctx, runID, "sample", result, log, func() error {
		scheme, err := sample.ParseScheme(spec.Scheme)
		if err != nil {
			return err
		}
		var pts []geom.Coord
		switch scheme {
		case sample.SchemeRegular:
			pts, err = sample.RegularInPolygon(boundary.Geometry, spec.Points)
		default:
			pts, err = sample.RandomInPolygon(boundary.Geometry, spec.Points, spec.Seed)
		}
		if err != nil {
			return err
		}
		obs = sample.FromRaster(pts, masked)
		if len(obs) < 10 {
			return eris.Errorf("only %d of %d sample points hit valid elevation cells", len(obs), len(pts))
		}
		if _, err := p.store.SaveObservations(ctx, runID, projSRS.Code, obs); err != nil {
			return err
		}
		result.Observations = len(obs)
		return nil
	}); err != nil {
		return err
	}

	if err := p.stage(ctx, runID, "variogram", result, log, func() error {
		mdl, err := interp.ParseModel(spec.Model)
		if err != nil {
			return err
		}
		emp, err = interp.Empirical(obs, spec.Bins)
		if err != nil {
			return err
		}
		vario, err = interp.Fit(emp, mdl)
		if err != nil {
			return err
		}
		result.Variogram = vario
		return nil
	}); err != nil {
		return err
	}

	if err := p.stage(ctx, runID, "idw", result, log, func() error {
		var err error
		idw, err = interp.IDW(ctx, obs, masked, interp.IDWOptions{
			Power:     spec.IDWPower,
			Neighbors: spec.Neighbors,
			Workers:   p.cfg.Interp.Workers,
		})
		return err
	}); err != nil {
		return err
	}

	if err := p.stage(ctx, runID, "kriging", result, log, func() error {
		var err error
		kriged, err = interp.Kriging(ctx, obs, masked, interp.KrigingOptions{
			Variogram: vario,
			Neighbors: spec.Neighbors,
			Workers:   p.cfg.Interp.Workers,
		})
		return err
	}); err != nil {
		return err
	}

	if err := p.stage(ctx, runID, "tessellate", result, log, func() error {
		minX, minY, maxX, maxY, err := featureBounds(boundary, projSRS)
		if err != nil {
			return err
		}
		cells, err = tessellate.Voronoi(sample.Coords(obs), minX, minY, maxX, maxY)
		if err != nil {
			return err
		}
		zones, err = tessellate.ZonalStats(cells, masked)
		if err != nil {
			return err
		}
		result.Zones = len(zones)
		return nil
	}); err != nil {
		return err
	}

	if err := p.stage(ctx, runID, "weights", result, log, func() error {
		scheme, err := weights.ParseScheme(spec.Weights)
		if err != nil {
			return err
		}
		var raw *weights.W
		switch scheme {
		case weights.KNN:
			raw, err = weights.KNearest(sample.Coords(obs), p.cfg.Weights.KNearest)
		case weights.Distance:
			raw, err = weights.DistanceBand(sample.Coords(obs), p.cfg.Weights.DistanceBand)
		default:
			polys := make([]*geom.Polygon, len(cells))
			for i, c := range cells {
				polys[i] = c.Polygon
			}
			raw, err = weights.Contiguity(polys, scheme)
		}
		if err != nil {
			return err
		}
		// Point-based structures are asymmetric; the error-model likelihood
		// needs a symmetric base matrix.
		if scheme == weights.KNN || scheme == weights.Distance {
			raw = raw.Symmetrize()
		}
		w, err = raw.RowStandardize()
		return err
	}); err != nil {
		return err
	}

	if err := p.stage(ctx, runID, "esda", result, log, func() error {
		var err error
		y, err = zoneValues(zones, masked)
		if err != nil {
			return err
		}
		result.Moran, err = esda.MoranI(y, w)
		if err != nil {
			return err
		}
		perm, err := esda.MoranPermutation(y, w, spec.Perms, spec.Seed)
		if err != nil {
			return err
		}
		log.Info("moran permutation test",
			zap.Float64("i", perm.I),
			zap.Float64("pseudo_p", perm.PValue),
			zap.Int("permutations", perm.Permutations))
		locals, err = esda.LocalMoranI(y, w)
		if err != nil {
			return err
		}
		result.GearyC, err = esda.GearyC(y, w)
		return err
	}); err != nil {
		return err
	}

	if err := p.stage(ctx, runID, "regress", result, log, func() error {
		covars := trendCovariates(zones)
		ols, err := regress.OLS(y, covars)
		if err != nil {
			return err
		}
		result.OLS = ols

		residMoran, err := esda.MoranI(ols.Residuals, w)
		if err != nil {
			return err
		}
		log.Info("ols residual autocorrelation",
			zap.Float64("i", residMoran.I),
			zap.Float64("p", residMoran.PValue))

		sem, err := regress.SpatialError(y, covars, w)
		if err != nil {
			return err
		}
		result.SEM = sem
		return nil
	}); err != nil {
		return err
	}

	return p.stage(ctx, runID, "report", result, log, func() error {
		artifacts, err := p.writeArtifacts(runID, spec, projSRS, emp, vario, obs, kriged.Prediction, idw, cells, zones, locals, result)
		if err != nil {
			return err
		}
		result.Artifacts = artifacts
		return nil
	})
}

// loadBoundary resolves the study area from a boundary file or the Overpass
// API. GeoJSON and shapefile boundaries are both accepted and expected in
// WGS84 coordinates.
func (p *Pipeline) loadBoundary(ctx context.Context, spec model.StudySpec) (*vector.Feature, error) {
	if spec.Boundary != "" {
		var coll *vector.Collection
		var err error
		if strings.EqualFold(filepath.Ext(spec.Boundary), ".shp") {
			coll, err = vector.ReadShapefile(spec.Boundary, crs.WGS84)
		} else {
			coll, err = vector.ReadGeoJSONFile(spec.Boundary)
		}
		if err != nil {
			return nil, err
		}
		if spec.Country != "" {
			filtered := coll.ByProperty("name", spec.Country)
			if filtered.Len() > 0 {
				coll = filtered
			}
		}
		return coll.First()
	}
	return p.boundary.CountryBoundary(ctx, spec.Country)
}

// targetSRS picks the projected analysis CRS: the study's EPSG code when set,
// otherwise the UTM zone of the boundary centroid.
func targetSRS(spec model.StudySpec, boundary *vector.Feature) (crs.SRS, error) {
	if spec.EPSG != 0 {
		return crs.Parse(fmt.Sprintf("EPSG:%d", spec.EPSG))
	}
	c := vector.Centroid(boundary.Geometry)
	return crs.UTMForLongitude(c[0], c[1] >= 0), nil
}

func featureBounds(f *vector.Feature, srs crs.SRS) (minX, minY, maxX, maxY float64, err error) {
	coll := vector.NewCollection(srs)
	coll.Features = append(coll.Features, f)
	return coll.Bounds()
}

// analysisTemplate allocates the empty projected grid covering the boundary.
func analysisTemplate(boundary *vector.Feature, srs crs.SRS, cellSize float64) (*raster.Grid, error) {
	minX, minY, maxX, maxY, err := featureBounds(boundary, srs)
	if err != nil {
		return nil, err
	}
	cols := int(math.Ceil((maxX - minX) / cellSize))
	rows := int(math.Ceil((maxY - minY) / cellSize))
	if cols*rows > 4_000_000 {
		return nil, eris.Errorf("analysis grid %dx%d too large for cell size %g", cols, rows, cellSize)
	}
	return raster.New(cols, rows, minX, minY, cellSize, srs)
}

// zoneValues extracts the per-zone response. Zones too small to contain a
// raster cell center fall back to the interpolated value at their site.
func zoneValues(zones []tessellate.ZoneStat, g *raster.Grid) ([]float64, error) {
	y := make([]float64, len(zones))
	for i, z := range zones {
		if z.Count > 0 {
			y[i] = z.Mean
			continue
		}
		v, ok := g.Bilinear(z.X, z.Y)
		if !ok {
			return nil, eris.Errorf("zone %d has no raster coverage at site %.1f,%.1f", i, z.X, z.Y)
		}
		y[i] = v
	}
	return y, nil
}

// trendCovariates builds the first-order trend surface design: easting and
// northing of each zone site, in kilometers to keep the system well scaled.
func trendCovariates(zones []tessellate.ZoneStat) [][]float64 {
	covars := make([][]float64, len(zones))
	for i, z := range zones {
		covars[i] = []float64{z.X / 1000, z.Y / 1000}
	}
	return covars
}

// writeArtifacts renders all report outputs under the run's output dir.
func (p *Pipeline) writeArtifacts(runID string, spec model.StudySpec, projSRS crs.SRS, emp []interp.EmpiricalBin, vario interp.Variogram, obs []sample.Observation, kriged, idw *raster.Grid, cells []tessellate.Cell, zones []tessellate.ZoneStat, locals []esda.LocalMoran, result *model.RunResult) ([]string, error) {
	dir := filepath.Join(p.cfg.Report.OutputDir, runID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, eris.Wrap(err, "create output dir")
	}

	wb := report.Workbook{
		Observations: obs,
		Zones:        zones,
		Moran:        result.Moran,
		OLS:          result.OLS,
		SEM:          result.SEM,
	}

	outputs := []struct {
		name  string
		write func(path string) error
	}{
		{"variogram.png", func(path string) error { return report.VariogramPNG(emp, vario, path) }},
		{"kriging.png", func(path string) error { return report.SurfacePNG(kriged, spec.Name+" kriging", path) }},
		{"idw.png", func(path string) error { return report.SurfacePNG(idw, spec.Name+" idw", path) }},
		{"histogram.png", func(path string) error { return report.HistogramPNG(sample.Values(obs), spec.Name, path) }},
		{"observations.html", func(path string) error { return report.ObservationsHTML(obs, spec.Name, path) }},
		{"zones.html", func(path string) error { return report.ZonesHTML(zones, spec.Name, path) }},
		{"observations.csv", func(path string) error { return report.WriteObservationsCSV(obs, path) }},
		{"zones.csv", func(path string) error { return report.WriteZonesCSV(zones, path) }},
		{"lisa.csv", func(path string) error { return report.WriteLocalMoranCSV(locals, path) }},
		{"results.xlsx", func(path string) error { return report.WriteXLSX(wb, path) }},
		{"summary.txt", func(path string) error { return report.WriteSummary(wb, path) }},
		{"observations.geojson", func(path string) error {
			return vector.WriteGeoJSONFile(path, observationCollection(obs, projSRS))
		}},
		{"cells.geojson", func(path string) error {
			return vector.WriteGeoJSONFile(path, cellCollection(cells, zones, projSRS))
		}},
	}

	artifacts := make([]string, 0, len(outputs))
	for _, o := range outputs {
		path := filepath.Join(dir, o.name)
		if err := o.write(path); err != nil {
			return nil, eris.Wrapf(err, "write %s", o.name)
		}
		artifacts = append(artifacts, path)
	}
	return artifacts, nil
}

// observationCollection turns observations into point features for export.
func observationCollection(obs []sample.Observation, srs crs.SRS) *vector.Collection {
	c := &vector.Collection{SRS: srs}
	for i, o := range obs {
		pt := geom.NewPointFlat(geom.XY, []float64{o.X, o.Y})
		c.Features = append(c.Features, &vector.Feature{
			ID:         strconv.Itoa(i),
			Geometry:   pt,
			Properties: map[string]any{"value": o.Value},
		})
	}
	return c
}

// cellCollection turns Voronoi cells and their zonal stats into polygon
// features. Cells and zones share indices by construction.
func cellCollection(cells []tessellate.Cell, zones []tessellate.ZoneStat, srs crs.SRS) *vector.Collection {
	c := &vector.Collection{SRS: srs}
	for i, cell := range cells {
		props := map[string]any{"area": cell.Polygon.Area()}
		if i < len(zones) {
			props["mean"] = zones[i].Mean
			props["count"] = zones[i].Count
		}
		c.Features = append(c.Features, &vector.Feature{
			ID:         strconv.Itoa(i),
			Geometry:   cell.Polygon,
			Properties: props,
		})
	}
	return c
}

// applyDefaults fills unset spec fields from configuration.
func applyDefaults(spec *model.StudySpec, cfg *config.Config) {
	if spec.Points == 0 {
		spec.Points = cfg.Sample.Points
	}
	if spec.Seed == 0 {
		spec.Seed = uint64(cfg.Sample.Seed)
	}
	if spec.Scheme == "" {
		spec.Scheme = cfg.Sample.Scheme
	}
	if spec.Model == "" {
		spec.Model = cfg.Interp.VariogramModel
	}
	if spec.Bins == 0 {
		spec.Bins = cfg.Interp.VariogramBins
	}
	if spec.IDWPower == 0 {
		spec.IDWPower = cfg.Interp.IDWPower
	}
	if spec.Neighbors == 0 {
		spec.Neighbors = cfg.Interp.Neighbors
	}
	if spec.Weights == "" {
		spec.Weights = cfg.Weights.Scheme
	}
	if spec.Perms == 0 {
		spec.Perms = cfg.Weights.Permutations
	}
}
