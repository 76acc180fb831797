package interp

import (
	"context"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terralab/geostat/internal/crs"
	"github.com/terralab/geostat/internal/raster"
	"github.com/terralab/geostat/internal/sample"
)

// template returns a 10x10 grid with every cell marked valid.
func template(t *testing.T) *raster.Grid {
	t.Helper()
	g, err := raster.New(10, 10, 0, 0, 10, crs.UTM(32, true))
	require.NoError(t, err)
	for i := range g.Data {
		g.Data[i] = 0
	}
	return g
}

func randomObs(n int, seed uint64) []sample.Observation {
	rng := rand.New(rand.NewPCG(seed, seed))
	obs := make([]sample.Observation, n)
	for i := range obs {
		x := rng.Float64() * 100
		y := rng.Float64() * 100
		// A smooth tilted plane.
		obs[i] = sample.Observation{X: x, Y: y, Value: 2*x + y}
	}
	return obs
}

func TestParseModel(t *testing.T) {
	for name, want := range map[string]Model{
		"spherical":   Spherical,
		"exponential": Exponential,
		"gaussian":    Gaussian,
	} {
		got, err := ParseModel(name)
		require.NoError(t, err)
		assert.Equal(t, want, got)
		assert.Equal(t, name, got.String())
	}
	_, err := ParseModel("matern")
	assert.Error(t, err)
}

func TestVariogramGamma(t *testing.T) {
	v := Variogram{Model: Spherical, Nugget: 1, Sill: 9, Range: 50}

	assert.Equal(t, 0.0, v.Gamma(0))
	// Beyond the range the spherical model saturates at nugget+sill.
	assert.InDelta(t, 10.0, v.Gamma(50), 1e-12)
	assert.InDelta(t, 10.0, v.Gamma(500), 1e-12)
	// Monotone on [0, range].
	assert.Less(t, v.Gamma(10), v.Gamma(30))

	e := Variogram{Model: Exponential, Sill: 10, Range: 50}
	assert.InDelta(t, 10*(1-math.Exp(-3)), e.Gamma(50), 1e-12)

	g := Variogram{Model: Gaussian, Sill: 10, Range: 50}
	// Gaussian rises slower than exponential near the origin.
	assert.Less(t, g.Gamma(5), e.Gamma(5))
}

func TestEmpirical(t *testing.T) {
	obs := randomObs(80, 3)
	emp, err := Empirical(obs, 12)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(emp), 2)

	// A smooth surface yields a variogram that grows with lag.
	assert.Less(t, emp[0].Gamma, emp[len(emp)-1].Gamma)
	for _, b := range emp {
		assert.Positive(t, b.Count)
		assert.Positive(t, b.Lag)
	}
}

func TestEmpiricalErrors(t *testing.T) {
	_, err := Empirical([]sample.Observation{{X: 1, Y: 1}}, 10)
	assert.Error(t, err)

	same := []sample.Observation{{X: 1, Y: 1, Value: 2}, {X: 1, Y: 1, Value: 3}}
	_, err = Empirical(same, 10)
	assert.Error(t, err)
}

func TestFitBeatsNaiveCandidate(t *testing.T) {
	obs := randomObs(120, 9)
	emp, err := Empirical(obs, 15)
	require.NoError(t, err)

	fitted, err := Fit(emp, Spherical)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, fitted.Nugget, 0.0)
	assert.Positive(t, fitted.Sill)
	assert.Positive(t, fitted.Range)

	maxLag, maxGamma := 0.0, 0.0
	for _, b := range emp {
		maxLag = math.Max(maxLag, b.Lag)
		maxGamma = math.Max(maxGamma, b.Gamma)
	}
	naive := Variogram{Model: Spherical, Sill: maxGamma, Range: maxLag}
	assert.LessOrEqual(t, wlsScore(emp, fitted), wlsScore(emp, naive))
}

func TestFitConstantField(t *testing.T) {
	obs := make([]sample.Observation, 30)
	rng := rand.New(rand.NewPCG(5, 5))
	for i := range obs {
		obs[i] = sample.Observation{X: rng.Float64() * 100, Y: rng.Float64() * 100, Value: 4}
	}
	emp, err := Empirical(obs, 10)
	require.NoError(t, err)

	fitted, err := Fit(emp, Exponential)
	require.NoError(t, err)
	assert.Zero(t, fitted.Sill)
	assert.Zero(t, fitted.Nugget)
}

func TestIDW(t *testing.T) {
	obs := randomObs(100, 11)
	grid, err := IDW(context.Background(), obs, template(t), IDWOptions{Power: 2, Neighbors: 12})
	require.NoError(t, err)

	// IDW is a convex combination, so predictions stay within the data range.
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, o := range obs {
		lo = math.Min(lo, o.Value)
		hi = math.Max(hi, o.Value)
	}
	for _, v := range grid.Data {
		assert.GreaterOrEqual(t, v, lo)
		assert.LessOrEqual(t, v, hi)
	}
}

func TestIDWExactAtObservation(t *testing.T) {
	tpl := template(t)
	x, y := tpl.CellCenter(3, 4)
	obs := []sample.Observation{
		{X: x, Y: y, Value: 42},
		{X: 1, Y: 1, Value: 7},
		{X: 90, Y: 90, Value: 9},
	}
	grid, err := IDW(context.Background(), obs, tpl, IDWOptions{})
	require.NoError(t, err)
	assert.Equal(t, 42.0, grid.Value(3, 4))
}

func TestIDWSkipsNoData(t *testing.T) {
	tpl := template(t)
	tpl.SetValue(0, 0, tpl.NoData)

	grid, err := IDW(context.Background(), randomObs(20, 1), tpl, IDWOptions{})
	require.NoError(t, err)
	assert.True(t, grid.IsNoData(grid.Value(0, 0)))
	assert.False(t, grid.IsNoData(grid.Value(5, 5)))
}

func TestKrigingConstantField(t *testing.T) {
	rng := rand.New(rand.NewPCG(2, 2))
	obs := make([]sample.Observation, 40)
	for i := range obs {
		obs[i] = sample.Observation{X: rng.Float64() * 100, Y: rng.Float64() * 100, Value: 7}
	}

	res, err := Kriging(context.Background(), obs, template(t), KrigingOptions{
		Variogram: Variogram{Model: Spherical, Sill: 3, Range: 40},
		Neighbors: 12,
	})
	require.NoError(t, err)

	// Weights sum to one, so a constant field stays constant.
	for _, v := range res.Prediction.Data {
		assert.InDelta(t, 7.0, v, 1e-6)
	}
	for _, v := range res.Variance.Data {
		assert.GreaterOrEqual(t, v, 0.0)
	}
}

func TestKrigingExactAtObservation(t *testing.T) {
	tpl := template(t)
	x, y := tpl.CellCenter(2, 7)
	obs := []sample.Observation{
		{X: x, Y: y, Value: 13},
		{X: 5, Y: 5, Value: 1},
		{X: 95, Y: 95, Value: 3},
		{X: 5, Y: 95, Value: 2},
	}
	res, err := Kriging(context.Background(), obs, tpl, KrigingOptions{
		Variogram: Variogram{Model: Exponential, Sill: 2, Range: 50},
	})
	require.NoError(t, err)
	assert.Equal(t, 13.0, res.Prediction.Value(2, 7))
	assert.Equal(t, 0.0, res.Variance.Value(2, 7))
}

func TestKrigingRejectsDegenerateVariogram(t *testing.T) {
	_, err := Kriging(context.Background(), randomObs(10, 1), template(t), KrigingOptions{})
	assert.Error(t, err)
}

func TestNeighborIndex(t *testing.T) {
	obs := []sample.Observation{
		{X: 0, Y: 0, Value: 1},
		{X: 10, Y: 0, Value: 2},
		{X: 50, Y: 50, Value: 3},
		{X: 100, Y: 100, Value: 4},
	}
	ix := newNeighborIndex(obs)

	got := ix.nearest(1, 1, 2)
	assert.Equal(t, []int{0, 1}, got)

	// Asking for more neighbors than observations returns them all.
	got = ix.nearest(0, 0, 10)
	assert.Len(t, got, 4)
	assert.Equal(t, 0, got[0])
}
