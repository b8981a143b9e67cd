package preprocessing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var train = [][]float64{
	{1, 10},
	{2, 10},
	{3, 10},
}

func TestScalerRawCopies(t *testing.T) {
	s := NewScaler(ScaleRaw)
	out, err := s.FitTransform(train)
	require.NoError(t, err)
	assert.Equal(t, train, out)

	out[0][0] = 99
	assert.Equal(t, 1.0, train[0][0], "transform must not alias its input")
}

func TestScalerStandard(t *testing.T) {
	s := NewScaler(ScaleStandard)
	require.NoError(t, s.Fit(train))

	assert.InDeltaSlice(t, []float64{2, 10}, s.FeatureMean, 1e-12)
	// constant columns keep unit scale
	assert.Equal(t, 1.0, s.FeatureStd[1])

	out, err := s.Transform([][]float64{{2, 10}, {4, 12}})
	require.NoError(t, err)
	assert.InDelta(t, 0.0, out[0][0], 1e-12)
	assert.InDelta(t, 2/0.816496580927726, out[1][0], 1e-9)
	assert.InDelta(t, 2.0, out[1][1], 1e-12)
}

func TestScalerMinMax(t *testing.T) {
	s := NewScaler(ScaleMinMax)
	require.NoError(t, s.Fit(train))

	out, err := s.Transform([][]float64{{2, 10}, {5, 7}})
	require.NoError(t, err)
	assert.Equal(t, []float64{0.5, 0}, out[0])
	assert.Equal(t, []float64{2, 0}, out[1], "zero range maps to 0")
}

func TestScalerErrors(t *testing.T) {
	_, err := NewScaler(ScaleStandard).Transform(train)
	assert.ErrorContains(t, err, "must be fitted")

	assert.Error(t, NewScaler("log").Fit(train))
	assert.Error(t, NewScaler(ScaleRaw).Fit(nil))
	assert.Error(t, NewScaler(ScaleRaw).Fit([][]float64{{1, 2}, {3}}))

	s := NewScaler(ScaleRaw)
	require.NoError(t, s.Fit(train))
	_, err = s.Transform([][]float64{{1}})
	assert.Error(t, err)

	assert.True(t, ValidScaleType("standard"))
	assert.False(t, ValidScaleType("log"))
}
