package data

import (
	"fmt"

	"github.com/remidefleurian/ochim/internal/folds"
)

// Loader slices the shared dataset into feature matrices for one role of
// one iteration.
type Loader struct {
	dataset  *Dataset
	rotation folds.Rotation
}

func NewLoader(ds *Dataset, rotation folds.Rotation) *Loader {
	return &Loader{dataset: ds, rotation: rotation}
}

// Load returns the features and labels of the complete rows assigned to role
// in iteration k. Rows with missing values are dropped.
func (l *Loader) Load(role folds.Role, k int) ([][]float64, []int, error) {
	ids, err := l.rotation.Folds(k, role)
	if err != nil {
		return nil, nil, err
	}

	samples := Complete(l.dataset.Select(ids...))
	if len(samples) == 0 {
		return nil, nil, fmt.Errorf("%s folds %v: %w", role, ids, ErrEmptySelection)
	}

	X := make([][]float64, len(samples))
	y := make([]int, len(samples))
	for i, s := range samples {
		X[i] = s.Features
		y[i] = s.Label
	}
	return X, y, nil
}
