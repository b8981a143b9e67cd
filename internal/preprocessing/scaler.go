package preprocessing

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Scale types accepted by NewScaler.
const (
	ScaleRaw      = "raw"
	ScaleStandard = "standard"
	ScaleMinMax   = "minmax"
)

// Scaler rescales feature columns with statistics learned from training rows.
type Scaler struct {
	ScaleType   string
	IsFitted    bool
	FeatureMin  []float64
	FeatureMax  []float64
	FeatureMean []float64
	FeatureStd  []float64
}

func NewScaler(scaleType string) *Scaler {
	return &Scaler{
		ScaleType: scaleType,
		IsFitted:  false,
	}
}

// ValidScaleType reports whether scaleType names a known scaling.
func ValidScaleType(scaleType string) bool {
	switch scaleType {
	case ScaleRaw, "none", "", ScaleStandard, "standardized", ScaleMinMax, "normalized":
		return true
	}
	return false
}

func (s *Scaler) Fit(X [][]float64) error {
	if len(X) == 0 {
		return fmt.Errorf("empty dataset")
	}

	nFeatures := len(X[0])
	for i, row := range X {
		if len(row) != nFeatures {
			return fmt.Errorf("row %d has %d features, want %d", i, len(row), nFeatures)
		}
	}

	s.FeatureMin = make([]float64, nFeatures)
	s.FeatureMax = make([]float64, nFeatures)
	s.FeatureMean = make([]float64, nFeatures)
	s.FeatureStd = make([]float64, nFeatures)

	switch s.ScaleType {
	case ScaleMinMax, "normalized":
		s.fitMinMax(X)
	case ScaleStandard, "standardized":
		s.fitStandard(X)
	case ScaleRaw, "none", "":
	default:
		return fmt.Errorf("unknown scale type: %s", s.ScaleType)
	}

	s.IsFitted = true
	return nil
}

func (s *Scaler) Transform(X [][]float64) ([][]float64, error) {
	if !s.IsFitted {
		return nil, fmt.Errorf("scaler must be fitted before transform")
	}

	result := make([][]float64, len(X))
	for i := range X {
		if len(X[i]) != len(s.FeatureMin) {
			return nil, fmt.Errorf("row %d has %d features, scaler was fitted on %d", i, len(X[i]), len(s.FeatureMin))
		}
		result[i] = make([]float64, len(X[i]))
		for j, v := range X[i] {
			switch s.ScaleType {
			case ScaleMinMax, "normalized":
				result[i][j] = s.transformMinMax(v, j)
			case ScaleStandard, "standardized":
				result[i][j] = s.transformStandard(v, j)
			default:
				result[i][j] = v
			}
		}
	}

	return result, nil
}

func (s *Scaler) FitTransform(X [][]float64) ([][]float64, error) {
	if err := s.Fit(X); err != nil {
		return nil, err
	}
	return s.Transform(X)
}

func column(X [][]float64, j int) []float64 {
	col := make([]float64, len(X))
	for i := range X {
		col[i] = X[i][j]
	}
	return col
}

func (s *Scaler) fitMinMax(X [][]float64) {
	for j := range s.FeatureMin {
		col := column(X, j)
		s.FeatureMin[j] = floats.Min(col)
		s.FeatureMax[j] = floats.Max(col)
	}
}

func (s *Scaler) fitStandard(X [][]float64) {
	for j := range s.FeatureMean {
		mean, std := stat.PopMeanStdDev(column(X, j), nil)
		if std == 0 || math.IsNaN(std) {
			std = 1
		}
		s.FeatureMean[j] = mean
		s.FeatureStd[j] = std
	}
}

func (s *Scaler) transformMinMax(value float64, featureIndex int) float64 {
	span := s.FeatureMax[featureIndex] - s.FeatureMin[featureIndex]
	if span == 0 {
		return 0
	}
	return (value - s.FeatureMin[featureIndex]) / span
}

func (s *Scaler) transformStandard(value float64, featureIndex int) float64 {
	return (value - s.FeatureMean[featureIndex]) / s.FeatureStd[featureIndex]
}
