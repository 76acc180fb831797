package vector

import (
	"fmt"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/terralab/geostat/internal/crs"
)

// ReadGeoJSON decodes a GeoJSON FeatureCollection. GeoJSON coordinates are
// lon/lat by convention, so the collection is tagged WGS84 unless the caller
// overrides the SRS afterwards.
func ReadGeoJSON(r io.Reader) (*Collection, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, eris.Wrap(err, "vector: read geojson")
	}
	var fc geojson.FeatureCollection
	if err := fc.UnmarshalJSON(data); err != nil {
		return nil, eris.Wrap(err, "vector: decode geojson")
	}

	out := NewCollection(crs.WGS84)
	for i, f := range fc.Features {
		if f.Geometry == nil {
			return nil, eris.Errorf("vector: feature %d has no geometry", i)
		}
		id := f.ID
		if id == "" {
			id = fmt.Sprintf("%d", i)
		}
		out.Features = append(out.Features, &Feature{
			ID:         id,
			Geometry:   f.Geometry,
			Properties: f.Properties,
		})
	}
	return out, nil
}

// ReadGeoJSONFile decodes a GeoJSON FeatureCollection from a file.
func ReadGeoJSONFile(path string) (*Collection, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "vector: open %s", path)
	}
	defer func() { _ = f.Close() }()
	return ReadGeoJSON(f)
}

// WriteGeoJSON encodes the collection as a GeoJSON FeatureCollection.
// Geometries should be in WGS84 before writing; the format carries no CRS.
func WriteGeoJSON(w io.Writer, c *Collection) error {
	fc := geojson.FeatureCollection{}
	for _, f := range c.Features {
		fc.Features = append(fc.Features, &geojson.Feature{
			ID:         f.ID,
			Geometry:   f.Geometry,
			Properties: f.Properties,
		})
	}
	data, err := fc.MarshalJSON()
	if err != nil {
		return eris.Wrap(err, "vector: encode geojson")
	}
	if _, err := w.Write(data); err != nil {
		return eris.Wrap(err, "vector: write geojson")
	}
	return nil
}

// WriteGeoJSONFile encodes the collection to a file.
func WriteGeoJSONFile(path string, c *Collection) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "vector: create %s", path)
	}
	defer func() { _ = f.Close() }()
	return WriteGeoJSON(f, c)
}
