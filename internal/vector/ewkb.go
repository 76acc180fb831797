package vector

import (
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"
)

// EncodeEWKB serializes a geometry to little-endian EWKB tagged with the
// given EPSG code, the form the Postgres store persists observation
// points in.
func EncodeEWKB(g geom.T, srid int) ([]byte, error) {
	if g == nil {
		return nil, eris.New("vector: encode nil geometry")
	}
	tagged, err := geom.SetSRID(g, srid)
	if err != nil {
		return nil, eris.Wrap(err, "vector: set SRID")
	}
	data, err := ewkb.Marshal(tagged, ewkb.NDR)
	if err != nil {
		return nil, eris.Wrap(err, "vector: encode EWKB")
	}
	return data, nil
}

// DecodeEWKB parses an EWKB payload back into a geometry.
func DecodeEWKB(data []byte) (geom.T, error) {
	g, err := ewkb.Unmarshal(data)
	if err != nil {
		return nil, eris.Wrap(err, "vector: decode EWKB")
	}
	return g, nil
}
