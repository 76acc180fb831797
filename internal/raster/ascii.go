package raster

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/terralab/geostat/internal/crs"
)

// ReadASCII parses an ESRI ASCII grid. The format carries no CRS, so the
// caller supplies the SRS. Both xllcorner and xllcenter anchoring are
// accepted; center anchoring is shifted to corner anchoring on load.
func ReadASCII(r io.Reader, srs crs.SRS) (*Grid, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 1024*1024), 1024*1024)

	header := map[string]float64{}
	center := false
	var values []float64

	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)

		// Header lines are "key value" pairs; the first line starting with a
		// number begins the data block.
		if len(fields) == 2 && !isNumeric(fields[0]) {
			key := strings.ToLower(fields[0])
			v, err := strconv.ParseFloat(fields[1], 64)
			if err != nil {
				return nil, eris.Wrapf(err, "raster: parse header %s", key)
			}
			if key == "xllcenter" || key == "yllcenter" {
				center = true
				key = strings.Replace(key, "center", "corner", 1)
			}
			header[key] = v
			continue
		}

		for _, f := range fields {
			v, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return nil, eris.Wrapf(err, "raster: parse cell value %q", f)
			}
			values = append(values, v)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, eris.Wrap(err, "raster: read ascii grid")
	}

	for _, key := range []string{"ncols", "nrows", "xllcorner", "yllcorner", "cellsize"} {
		if _, ok := header[key]; !ok {
			return nil, eris.Errorf("raster: missing header %s", key)
		}
	}

	g := &Grid{
		Cols:     int(header["ncols"]),
		Rows:     int(header["nrows"]),
		X0:       header["xllcorner"],
		Y0:       header["yllcorner"],
		CellSize: header["cellsize"],
		NoData:   -9999,
		SRS:      srs,
		Data:     values,
	}
	if nd, ok := header["nodata_value"]; ok {
		g.NoData = nd
	}
	if center {
		g.X0 -= g.CellSize / 2
		g.Y0 -= g.CellSize / 2
	}
	if g.Cols <= 0 || g.Rows <= 0 || g.CellSize <= 0 {
		return nil, eris.Errorf("raster: invalid header: %dx%d cellsize %g", g.Cols, g.Rows, g.CellSize)
	}
	if len(values) != g.Cols*g.Rows {
		return nil, eris.Errorf("raster: expected %d cells, got %d", g.Cols*g.Rows, len(values))
	}
	return g, nil
}

// ReadASCIIFile parses an ESRI ASCII grid file.
func ReadASCIIFile(path string, srs crs.SRS) (*Grid, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "raster: open %s", path)
	}
	defer func() { _ = f.Close() }()
	return ReadASCII(f, srs)
}

// WriteASCII writes the grid in ESRI ASCII format.
func WriteASCII(w io.Writer, g *Grid) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "ncols %d\n", g.Cols)
	fmt.Fprintf(bw, "nrows %d\n", g.Rows)
	fmt.Fprintf(bw, "xllcorner %s\n", formatFloat(g.X0))
	fmt.Fprintf(bw, "yllcorner %s\n", formatFloat(g.Y0))
	fmt.Fprintf(bw, "cellsize %s\n", formatFloat(g.CellSize))
	fmt.Fprintf(bw, "NODATA_value %s\n", formatFloat(g.NoData))

	for row := 0; row < g.Rows; row++ {
		for col := 0; col < g.Cols; col++ {
			if col > 0 {
				bw.WriteByte(' ')
			}
			bw.WriteString(formatFloat(g.Value(col, row)))
		}
		bw.WriteByte('\n')
	}
	if err := bw.Flush(); err != nil {
		return eris.Wrap(err, "raster: write ascii grid")
	}
	return nil
}

// WriteASCIIFile writes the grid to a file in ESRI ASCII format.
func WriteASCIIFile(path string, g *Grid) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "raster: create %s", path)
	}
	defer func() { _ = f.Close() }()
	return WriteASCII(f, g)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func isNumeric(s string) bool {
	_, err := strconv.ParseFloat(s, 64)
	return err == nil
}
