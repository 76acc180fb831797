package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terralab/geostat/internal/interp"
	"github.com/terralab/geostat/internal/sample"
)

func TestObservationTemplate(t *testing.T) {
	obs := []sample.Observation{
		{X: 0, Y: 0, Value: 10},
		{X: 100, Y: 0, Value: 20},
		{X: 100, Y: 100, Value: 30},
		{X: 0, Y: 100, Value: 40},
	}

	g, err := observationTemplate(obs, 10, 0)
	require.NoError(t, err)

	// The template marks every cell as a prediction target.
	for row := 0; row < g.Rows; row++ {
		for col := 0; col < g.Cols; col++ {
			assert.False(t, g.IsNoData(g.Value(col, row)), "cell %d,%d", col, row)
		}
	}

	_, err = observationTemplate(obs, 0, 0)
	require.Error(t, err)
}

func TestInterpFromObservationTemplate(t *testing.T) {
	obs := []sample.Observation{
		{X: 0, Y: 0, Value: 10},
		{X: 100, Y: 0, Value: 20},
		{X: 100, Y: 100, Value: 30},
		{X: 0, Y: 100, Value: 40},
	}

	template, err := observationTemplate(obs, 10, 0)
	require.NoError(t, err)

	surface, err := interp.IDW(context.Background(), obs, template, interp.IDWOptions{Power: 2, Neighbors: 4})
	require.NoError(t, err)

	valid := 0
	for _, v := range surface.Data {
		if !surface.IsNoData(v) {
			valid++
		}
	}
	assert.Equal(t, len(surface.Data), valid, "every cell should be predicted")
}
