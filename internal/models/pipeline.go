package models

import (
	"fmt"

	"github.com/remidefleurian/ochim/internal/preprocessing"
)

// ScaledTrainer fits a feature scaler on the training rows and trains Inner
// on the scaled rows. The returned classifier applies the same scaling
// before scoring.
type ScaledTrainer struct {
	ScaleType string
	Inner     Trainer
}

func (t *ScaledTrainer) Name() string {
	return t.Inner.Name()
}

func (t *ScaledTrainer) Params() map[string]any {
	params := map[string]any{"scaling": t.ScaleType}
	for k, v := range t.Inner.Params() {
		params[k] = v
	}
	return params
}

func (t *ScaledTrainer) Fit(X [][]float64, y []int) (ProbabilisticClassifier, error) {
	scaler := preprocessing.NewScaler(t.ScaleType)
	scaled, err := scaler.FitTransform(X)
	if err != nil {
		return nil, fmt.Errorf("scale features: %w", err)
	}
	clf, err := t.Inner.Fit(scaled, y)
	if err != nil {
		return nil, err
	}
	return &scaledClassifier{scaler: scaler, inner: clf}, nil
}

type scaledClassifier struct {
	scaler *preprocessing.Scaler
	inner  ProbabilisticClassifier
}

func (c *scaledClassifier) PredictProba(X [][]float64) ([]float64, error) {
	scaled, err := c.scaler.Transform(X)
	if err != nil {
		return nil, fmt.Errorf("scale features: %w", err)
	}
	return c.inner.PredictProba(scaled)
}
