package weights

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"
)

// gridPolys returns a rows x cols lattice of unit squares, row-major.
func gridPolys(rows, cols int) []*geom.Polygon {
	var out []*geom.Polygon
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			x, y := float64(c), float64(r)
			out = append(out, geom.NewPolygonFlat(geom.XY, []float64{
				x, y, x + 1, y, x + 1, y + 1, x, y + 1, x, y,
			}, []int{10}))
		}
	}
	return out
}

func TestContiguityRook(t *testing.T) {
	w, err := Contiguity(gridPolys(3, 3), Rook)
	require.NoError(t, err)

	// Center cell of a 3x3 lattice has 4 rook neighbors.
	assert.Equal(t, []int{1, 3, 5, 7}, w.Neighbors[4])
	// Corner cell has 2.
	assert.Equal(t, []int{1, 3}, w.Neighbors[0])
	// Edge cell has 3.
	assert.Len(t, w.Neighbors[1], 3)
}

func TestContiguityQueen(t *testing.T) {
	w, err := Contiguity(gridPolys(3, 3), Queen)
	require.NoError(t, err)

	// Queen adds the diagonals: the center cell sees all 8.
	assert.Len(t, w.Neighbors[4], 8)
	// Corner cell sees 3.
	assert.Equal(t, []int{1, 3, 4}, w.Neighbors[0])
}

func TestContiguitySymmetric(t *testing.T) {
	w, err := Contiguity(gridPolys(4, 4), Queen)
	require.NoError(t, err)
	for i, nb := range w.Neighbors {
		for _, j := range nb {
			assert.Contains(t, w.Neighbors[j], i)
		}
	}
}

func TestParseScheme(t *testing.T) {
	s, err := ParseScheme("rook")
	require.NoError(t, err)
	assert.Equal(t, Rook, s)
	s, err = ParseScheme("knn")
	require.NoError(t, err)
	assert.Equal(t, KNN, s)
	s, err = ParseScheme("distance")
	require.NoError(t, err)
	assert.Equal(t, Distance, s)
	_, err = ParseScheme("bishop")
	assert.Error(t, err)
}

func TestKNearest(t *testing.T) {
	sites := []geom.Coord{{0, 0}, {1, 0}, {2, 0}, {10, 0}}
	w, err := KNearest(sites, 2)
	require.NoError(t, err)

	assert.Equal(t, []int{1, 2}, w.Neighbors[0])
	assert.Equal(t, []int{0, 2}, w.Neighbors[1])
	// The outlier still gets k neighbors.
	assert.Equal(t, []int{1, 2}, w.Neighbors[3])

	_, err = KNearest(sites, 0)
	assert.Error(t, err)
	_, err = KNearest(sites, 4)
	assert.Error(t, err)
}

func TestDistanceBand(t *testing.T) {
	sites := []geom.Coord{{0, 0}, {1, 0}, {2, 0}, {10, 0}}
	w, err := DistanceBand(sites, 1.5)
	require.NoError(t, err)

	assert.Equal(t, []int{1}, w.Neighbors[0])
	assert.Equal(t, []int{0, 2}, w.Neighbors[1])
	// The outlier is an island.
	assert.Empty(t, w.Neighbors[3])
}

func TestRowStandardize(t *testing.T) {
	w, err := Contiguity(gridPolys(3, 3), Queen)
	require.NoError(t, err)

	ws, err := w.RowStandardize()
	require.NoError(t, err)
	assert.True(t, ws.Standardized)
	for i := range ws.Weights {
		sum := 0.0
		for _, v := range ws.Weights[i] {
			sum += v
		}
		assert.InDelta(t, 1.0, sum, 1e-12)
	}
	// Total weight equals the number of units.
	assert.InDelta(t, 9.0, ws.S0(), 1e-12)
}

func TestRowStandardizeIsland(t *testing.T) {
	sites := []geom.Coord{{0, 0}, {1, 0}, {10, 0}}
	w, err := DistanceBand(sites, 1.5)
	require.NoError(t, err)
	_, err = w.RowStandardize()
	assert.Error(t, err)
}

func TestLag(t *testing.T) {
	w, err := Contiguity(gridPolys(1, 3), Rook)
	require.NoError(t, err)
	ws, err := w.RowStandardize()
	require.NoError(t, err)

	lag, err := ws.Lag([]float64{1, 2, 3})
	require.NoError(t, err)
	assert.InDelta(t, 2.0, lag[0], 1e-12)
	assert.InDelta(t, 2.0, lag[1], 1e-12)
	assert.InDelta(t, 2.0, lag[2], 1e-12)

	_, err = ws.Lag([]float64{1})
	assert.Error(t, err)
}

func TestMomentsBinaryGrid(t *testing.T) {
	w, err := Contiguity(gridPolys(3, 3), Rook)
	require.NoError(t, err)

	// 24 directed links in a 3x3 rook lattice.
	assert.InDelta(t, 24.0, w.S0(), 1e-12)
	// For symmetric binary weights S1 = 2 * S0.
	assert.InDelta(t, 48.0, w.S1(), 1e-12)
	// S2 = sum (row+col sums)^2 = sum (2*degree)^2.
	assert.InDelta(t, 4.0*(4*4+4*9+16), w.S2(), 1e-12)
}

func TestS1Asymmetric(t *testing.T) {
	// k=1 nearest neighbors: 0 and 1 point at each other, 2 points at 1
	// without reciprocation, so one pair is stored in one direction only.
	sites := []geom.Coord{{0, 0}, {1, 0}, {3, 0}}
	w, err := KNearest(sites, 1)
	require.NoError(t, err)

	// (w_01+w_10)^2 twice plus (w_12+w_21)^2 twice, halved:
	// (4 + 4 + 1 + 1) / 2 = 5.
	assert.InDelta(t, 5.0, w.S1(), 1e-12)

	// Cross-check against the dense definition.
	d := w.Dense()
	want := 0.0
	for i := 0; i < w.N; i++ {
		for j := 0; j < w.N; j++ {
			v := d.At(i, j) + d.At(j, i)
			want += v * v
		}
	}
	assert.InDelta(t, want/2, w.S1(), 1e-12)
}

func TestSymmetrize(t *testing.T) {
	sites := []geom.Coord{{0, 0}, {1, 0}, {3, 0}}
	w, err := KNearest(sites, 1)
	require.NoError(t, err)

	ws := w.Symmetrize()
	for i, nb := range ws.Neighbors {
		for _, j := range nb {
			assert.Contains(t, ws.Neighbors[j], i)
		}
	}
	// The one-sided 2->1 link gains its reverse.
	assert.Contains(t, ws.Neighbors[1], 2)
	assert.Equal(t, 1.0, ws.Dense().At(1, 2))
}

func TestDense(t *testing.T) {
	sites := []geom.Coord{{0, 0}, {1, 0}, {2, 0}}
	w, err := DistanceBand(sites, 1.5)
	require.NoError(t, err)

	d := w.Dense()
	assert.Equal(t, 1.0, d.At(0, 1))
	assert.Equal(t, 0.0, d.At(0, 2))
	assert.Equal(t, 1.0, d.At(1, 2))
}

func TestConnectivity(t *testing.T) {
	w, err := Contiguity(gridPolys(3, 3), Rook)
	require.NoError(t, err)
	min, max, mean := w.Connectivity()
	assert.Equal(t, 2, min)
	assert.Equal(t, 4, max)
	assert.InDelta(t, 24.0/9.0, mean, 1e-12)
}
