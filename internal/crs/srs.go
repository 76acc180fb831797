// Package crs defines coordinate reference systems and reprojection for the
// geometry and raster types used across the toolkit. Transform math is
// delegated to github.com/ctessum/geom/proj; this package only maps SRS
// identifiers to proj4 strings and applies transformers to go-geom
// coordinates.
package crs

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// SRS identifies a spatial reference system by EPSG code and proj4 string.
// An SRS with Code 0 is valid as long as Proj4 is set.
type SRS struct {
	Code  int    `json:"code,omitempty"`
	Name  string `json:"name,omitempty"`
	Proj4 string `json:"proj4"`
}

// WGS84 is the geographic CRS used by GPS and most web data (EPSG:4326).
var WGS84 = SRS{
	Code:  4326,
	Name:  "WGS 84",
	Proj4: "+proj=longlat +datum=WGS84 +no_defs",
}

// WebMercator is the spherical-Mercator CRS used by web map tiles (EPSG:3857).
var WebMercator = SRS{
	Code:  3857,
	Name:  "WGS 84 / Pseudo-Mercator",
	Proj4: "+proj=merc +a=6378137 +b=6378137 +lat_ts=0.0 +lon_0=0.0 +x_0=0.0 +y_0=0 +k=1.0 +units=m +nadgrids=@null +no_defs",
}

// UTM returns the WGS84 UTM CRS for the given zone and hemisphere.
func UTM(zone int, north bool) SRS {
	south := ""
	code := 32600 + zone
	if !north {
		south = " +south"
		code = 32700 + zone
	}
	return SRS{
		Code:  code,
		Name:  fmt.Sprintf("WGS 84 / UTM zone %d%s", zone, hemisphereLetter(north)),
		Proj4: fmt.Sprintf("+proj=utm +zone=%d%s +datum=WGS84 +units=m +no_defs", zone, south),
	}
}

// UTMForLongitude returns the UTM CRS whose zone contains the given longitude.
func UTMForLongitude(lon float64, north bool) SRS {
	zone := int((lon+180)/6) + 1
	if zone < 1 {
		zone = 1
	}
	if zone > 60 {
		zone = 60
	}
	return UTM(zone, north)
}

func hemisphereLetter(north bool) string {
	if north {
		return "N"
	}
	return "S"
}

// byCode holds the SRS definitions resolvable from an "EPSG:n" identifier.
var byCode = map[int]SRS{
	4326: WGS84,
	3857: WebMercator,
}

// Parse resolves an SRS from an identifier. Accepted forms are "EPSG:code"
// for registered codes (including UTM ranges 326xx/327xx) and a raw proj4
// string starting with "+".
func Parse(s string) (SRS, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return SRS{}, eris.New("crs: empty identifier")
	}
	if strings.HasPrefix(s, "+") {
		return SRS{Proj4: s}, nil
	}
	upper := strings.ToUpper(s)
	if !strings.HasPrefix(upper, "EPSG:") {
		return SRS{}, eris.Errorf("crs: unrecognized identifier %q", s)
	}
	code, err := strconv.Atoi(upper[len("EPSG:"):])
	if err != nil {
		return SRS{}, eris.Wrapf(err, "crs: parse EPSG code from %q", s)
	}
	if srs, ok := byCode[code]; ok {
		return srs, nil
	}
	if code > 32600 && code <= 32660 {
		return UTM(code-32600, true), nil
	}
	if code > 32700 && code <= 32760 {
		return UTM(code-32700, false), nil
	}
	return SRS{}, eris.Errorf("crs: unknown EPSG code %d", code)
}

// IsGeographic reports whether coordinates in this SRS are lon/lat degrees.
func (s SRS) IsGeographic() bool {
	return strings.Contains(s.Proj4, "+proj=longlat")
}

// Equal reports whether two SRS describe the same reference system.
func (s SRS) Equal(o SRS) bool {
	if s.Code != 0 && s.Code == o.Code {
		return true
	}
	return s.Proj4 == o.Proj4
}

// String returns the EPSG identifier when known, otherwise the proj4 string.
func (s SRS) String() string {
	if s.Code != 0 {
		return fmt.Sprintf("EPSG:%d", s.Code)
	}
	return s.Proj4
}
