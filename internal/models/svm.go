package models

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/optimize"
)

const (
	ClassWeightBalanced = "balanced"
	ClassWeightNone     = "none"
)

type LinearSVCParams struct {
	C             float64
	Tolerance     float64
	MaxIterations int
	ClassWeight   string
}

// LinearSVC is a linear support vector classifier trained in the primal on
// the squared hinge loss. The bias is learned as the weight of a constant
// feature and is regularised along with the other weights.
type LinearSVC struct {
	BaseModel
	LinearSVCParams

	Weights    []float64
	Bias       float64
	Iterations int
	fitted     bool
}

func NewLinearSVC(params LinearSVCParams) *LinearSVC {
	return &LinearSVC{
		LinearSVCParams: params,
		BaseModel: BaseModel{
			Name: "LinearSVC",
			Params: map[string]any{
				"c":              params.C,
				"tol":            params.Tolerance,
				"max_iterations": params.MaxIterations,
				"class_weight":   params.ClassWeight,
			},
		},
	}
}

func (m *LinearSVC) Fit(X [][]float64, y []int) error {
	if err := checkTrainingSet(X, y); err != nil {
		return err
	}
	m.Classes = ExtractClasses(y)
	switch {
	case len(m.Classes) < 2:
		return ErrSingleClass
	case len(m.Classes) > 2:
		return fmt.Errorf("%w: got %d classes", ErrNotBinary, len(m.Classes))
	}
	if m.C <= 0 {
		return fmt.Errorf("c must be positive, got %v", m.C)
	}

	d := len(X[0])
	signs := make([]float64, len(y))
	costs := make([]float64, len(y))
	weights := m.classWeights(y)
	for i, label := range y {
		signs[i] = -1
		if label == m.Classes[1] {
			signs[i] = 1
		}
		costs[i] = m.C * weights[label]
	}

	decision := func(w, x []float64) float64 {
		return floats.Dot(w[:d], x) + w[d]
	}

	problem := optimize.Problem{
		Func: func(w []float64) float64 {
			f := 0.5 * floats.Dot(w, w)
			for i, x := range X {
				if margin := 1 - signs[i]*decision(w, x); margin > 0 {
					f += costs[i] * margin * margin
				}
			}
			return f
		},
		Grad: func(grad, w []float64) {
			copy(grad, w)
			for i, x := range X {
				if margin := 1 - signs[i]*decision(w, x); margin > 0 {
					coef := -2 * costs[i] * signs[i] * margin
					floats.AddScaled(grad[:d], coef, x)
					grad[d] += coef
				}
			}
		},
	}

	x0 := make([]float64, d+1)
	g0 := make([]float64, d+1)
	problem.Grad(g0, x0)
	gnorm := floats.Norm(g0, 2)

	m.Weights = make([]float64, d)
	m.Bias = 0
	m.Iterations = 0
	m.fitted = true
	if gnorm == 0 {
		return nil
	}

	tol := m.Tolerance
	if tol <= 0 {
		tol = 1e-4
	}
	settings := &optimize.Settings{
		GradientThreshold: tol * gnorm,
		MajorIterations:   m.MaxIterations,
	}

	res, err := optimize.Minimize(problem, x0, settings, &optimize.LBFGS{})
	if res == nil {
		m.fitted = false
		return fmt.Errorf("optimize linear svc: %w", err)
	}
	for _, v := range res.X {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			m.fitted = false
			return fmt.Errorf("optimize linear svc: diverged (%v)", res.Status)
		}
	}

	copy(m.Weights, res.X[:d])
	m.Bias = res.X[d]
	m.Iterations = res.Stats.MajorIterations
	return nil
}

// DecisionFunction returns the signed distance of each row to the separating
// hyperplane; positive values favour the larger class label.
func (m *LinearSVC) DecisionFunction(X [][]float64) ([]float64, error) {
	if !m.fitted {
		return nil, ErrNotFitted
	}
	if err := checkFeatures(X, len(m.Weights)); err != nil {
		return nil, err
	}
	out := make([]float64, len(X))
	for i, x := range X {
		out[i] = floats.Dot(m.Weights, x) + m.Bias
	}
	return out, nil
}

func (m *LinearSVC) classWeights(y []int) map[int]float64 {
	weights := make(map[int]float64, len(m.Classes))
	if m.ClassWeight != ClassWeightBalanced {
		for _, c := range m.Classes {
			weights[c] = 1
		}
		return weights
	}

	counts := make(map[int]int, len(m.Classes))
	for _, label := range y {
		counts[label]++
	}
	for _, c := range m.Classes {
		weights[c] = float64(len(y)) / (float64(len(m.Classes)) * float64(counts[c]))
	}
	return weights
}
