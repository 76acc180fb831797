package fetch

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/terralab/geostat/internal/crs"
	"github.com/terralab/geostat/internal/raster"
)

// SRTM 90m v4.1 is published as 5-degree tiles in ArcInfo ASCII format,
// indexed from 180W (column 1) and 60N (row 1).
const (
	tileDegrees = 5.0
	tileBaseURL = "https://srtm.csi.cgiar.org/wp-content/uploads/files/srtm_5x5/ASCII"
)

// Tile identifies one 5-degree elevation tile.
type Tile struct {
	Col int
	Row int
}

// TileFor returns the tile containing the given geographic coordinate.
func TileFor(lon, lat float64) Tile {
	return Tile{
		Col: int(math.Floor((lon+180)/tileDegrees)) + 1,
		Row: int(math.Floor((60-lat)/tileDegrees)) + 1,
	}
}

// TilesForBounds returns every tile intersecting the geographic bounding box.
func TilesForBounds(minLon, minLat, maxLon, maxLat float64) []Tile {
	lo := TileFor(minLon, maxLat)
	hi := TileFor(maxLon, minLat)
	var tiles []Tile
	for row := lo.Row; row <= hi.Row; row++ {
		for col := lo.Col; col <= hi.Col; col++ {
			tiles = append(tiles, Tile{Col: col, Row: row})
		}
	}
	return tiles
}

// Name returns the tile's archive base name, e.g. "srtm_39_03".
func (t Tile) Name() string {
	return fmt.Sprintf("srtm_%02d_%02d", t.Col, t.Row)
}

// DEMManager downloads elevation tiles and assembles them into a single grid,
// caching extracted tiles on disk so repeat runs skip the network.
type DEMManager struct {
	Fetcher  Fetcher
	CacheDir string
	BaseURL  string
}

// NewDEMManager creates a manager that caches tiles under cacheDir.
func NewDEMManager(f Fetcher, cacheDir string) *DEMManager {
	return &DEMManager{Fetcher: f, CacheDir: cacheDir, BaseURL: tileBaseURL}
}

func (m *DEMManager) tileURL(t Tile) string {
	return fmt.Sprintf("%s/%s.zip", m.BaseURL, t.Name())
}

// EnsureTile returns the local path of the tile's extracted ASCII grid,
// downloading and unpacking it first when not cached.
func (m *DEMManager) EnsureTile(ctx context.Context, t Tile) (string, error) {
	ascPath := filepath.Join(m.CacheDir, t.Name()+".asc")
	if _, err := os.Stat(ascPath); err == nil {
		zap.L().Debug("dem: tile cached", zap.String("tile", t.Name()))
		return ascPath, nil
	}

	if err := os.MkdirAll(m.CacheDir, 0o755); err != nil {
		return "", eris.Wrap(err, "dem: create cache dir")
	}

	zipPath := filepath.Join(m.CacheDir, t.Name()+".zip")
	zap.L().Info("dem: downloading tile",
		zap.String("tile", t.Name()),
		zap.String("url", m.tileURL(t)),
	)
	if _, err := m.Fetcher.DownloadToFile(ctx, m.tileURL(t), zipPath); err != nil {
		return "", eris.Wrapf(err, "dem: download tile %s", t.Name())
	}
	defer func() { _ = os.Remove(zipPath) }()

	extracted, err := ExtractZIPMatch(zipPath, ".asc", m.CacheDir)
	if err != nil {
		return "", eris.Wrapf(err, "dem: extract tile %s", t.Name())
	}
	if extracted != ascPath {
		if err := os.Rename(extracted, ascPath); err != nil {
			return "", eris.Wrap(err, "dem: move extracted grid")
		}
	}
	return ascPath, nil
}

// LoadBounds fetches every tile covering the geographic box and mosaics them
// into one grid in WGS84.
func (m *DEMManager) LoadBounds(ctx context.Context, minLon, minLat, maxLon, maxLat float64) (*raster.Grid, error) {
	tiles := TilesForBounds(minLon, minLat, maxLon, maxLat)
	if len(tiles) == 0 {
		return nil, eris.New("dem: empty bounding box")
	}

	grids := make([]*raster.Grid, 0, len(tiles))
	for _, t := range tiles {
		path, err := m.EnsureTile(ctx, t)
		if err != nil {
			return nil, err
		}
		g, err := raster.ReadASCIIFile(path, crs.WGS84)
		if err != nil {
			return nil, eris.Wrapf(err, "dem: read tile %s", t.Name())
		}
		grids = append(grids, g)
	}

	mosaic, err := raster.Mosaic(grids)
	if err != nil {
		return nil, eris.Wrap(err, "dem: mosaic tiles")
	}
	return mosaic.Crop(minLon, minLat, maxLon, maxLat)
}
