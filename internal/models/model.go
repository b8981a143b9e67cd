package models

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

var (
	ErrSingleClass   = errors.New("training labels contain a single class")
	ErrNotBinary     = errors.New("only binary classification is supported")
	ErrTooFewSamples = errors.New("too few samples")
	ErrNotFitted     = errors.New("model is not fitted")
)

// ProbabilisticClassifier scores feature rows with the probability of the
// positive class.
type ProbabilisticClassifier interface {
	PredictProba(X [][]float64) ([]float64, error)
}

// Trainer fits a new classifier on a training set. Implementations keep no
// state between calls so a Trainer can be shared by concurrent iterations.
type Trainer interface {
	Fit(X [][]float64, y []int) (ProbabilisticClassifier, error)
	Name() string
	Params() map[string]any
}

type BaseModel struct {
	Name    string
	Params  map[string]any
	Classes []int
}

// ExtractClasses returns the distinct labels of y in ascending order.
func ExtractClasses(y []int) []int {
	classMap := make(map[int]bool)
	for _, label := range y {
		classMap[label] = true
	}

	classes := make([]int, 0, len(classMap))
	for class := range classMap {
		classes = append(classes, class)
	}
	sort.Ints(classes)

	return classes
}

func checkTrainingSet(X [][]float64, y []int) error {
	if len(X) == 0 {
		return fmt.Errorf("%w: empty training set", ErrTooFewSamples)
	}
	if len(X) != len(y) {
		return fmt.Errorf("x and y must have the same length: %d != %d", len(X), len(y))
	}
	return checkFeatures(X, len(X[0]))
}

func checkFeatures(X [][]float64, width int) error {
	for i, row := range X {
		if len(row) != width {
			return fmt.Errorf("row %d has %d features, want %d", i, len(row), width)
		}
		for j, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("row %d feature %d is not finite", i, j)
			}
		}
	}
	return nil
}

// binaryTargets maps y onto 1 for the positive class (the larger label) and
// 0 otherwise.
func binaryTargets(y []int, classes []int) []int {
	out := make([]int, len(y))
	for i, label := range y {
		if label == classes[len(classes)-1] {
			out[i] = 1
		}
	}
	return out
}
