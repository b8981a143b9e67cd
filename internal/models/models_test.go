package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractClassesSorted(t *testing.T) {
	assert.Equal(t, []int{0, 1, 4}, ExtractClasses([]int{4, 1, 0, 1, 4}))
	assert.Empty(t, ExtractClasses(nil))
}

func TestStratifiedKFoldAllocation(t *testing.T) {
	y := []int{0, 0, 0, 0, 0, 0, 1, 1, 1, 1, 1}
	folds, err := NewStratifiedKFold(5).Split(y)
	require.NoError(t, err)
	require.Len(t, folds, 5)

	assert.Equal(t, []int{0, 1, 6}, folds[0].Test)
	assert.Equal(t, []int{2, 7}, folds[1].Test)
	assert.Equal(t, []int{5, 10}, folds[4].Test)

	seen := make(map[int]int)
	for _, f := range folds {
		assert.Len(t, f.Train, len(y)-len(f.Test))
		for _, i := range f.Test {
			seen[i]++
		}
	}
	assert.Len(t, seen, len(y))
	for i, n := range seen {
		assert.Equal(t, 1, n, "row %d", i)
	}
}

func TestStratifiedKFoldFirstAppearanceOrder(t *testing.T) {
	// label 1 appears first and takes the leading block of positions
	y := []int{1, 0, 1, 0, 0}
	folds, err := NewStratifiedKFold(2).Split(y)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 3}, folds[0].Test)
	assert.Equal(t, []int{2, 4}, folds[1].Test)
}

func TestStratifiedKFoldErrors(t *testing.T) {
	_, err := NewStratifiedKFold(1).Split([]int{0, 1})
	assert.Error(t, err)

	_, err = NewStratifiedKFold(5).Split([]int{0, 1, 0})
	assert.ErrorIs(t, err, ErrTooFewSamples)
}

func TestLinearSVCSymmetricSolution(t *testing.T) {
	svc := NewLinearSVC(LinearSVCParams{C: 1, Tolerance: 1e-6, MaxIterations: 1000, ClassWeight: ClassWeightBalanced})
	require.NoError(t, svc.Fit([][]float64{{-1}, {1}}, []int{0, 1}))

	// 0.5 w^2 + 2 (1 - w)^2 is minimised at w = 0.8
	assert.InDelta(t, 0.8, svc.Weights[0], 1e-3)
	assert.InDelta(t, 0.0, svc.Bias, 1e-3)
	assert.Equal(t, []int{0, 1}, svc.Classes)
}

func TestLinearSVCSeparates(t *testing.T) {
	X := [][]float64{{-2, 0.5}, {-1, -0.5}, {-1.5, 0}, {1, 0.2}, {2, -0.1}}
	y := []int{3, 3, 3, 7, 7}
	svc := NewLinearSVC(LinearSVCParams{C: 1, Tolerance: 1e-5, MaxIterations: 500, ClassWeight: ClassWeightBalanced})
	require.NoError(t, svc.Fit(X, y))

	scores, err := svc.DecisionFunction(X)
	require.NoError(t, err)
	for i, s := range scores {
		if y[i] == 7 {
			assert.Greater(t, s, 0.0, "row %d", i)
		} else {
			assert.Less(t, s, 0.0, "row %d", i)
		}
	}
}

func TestLinearSVCErrors(t *testing.T) {
	params := LinearSVCParams{C: 1, Tolerance: 1e-5, MaxIterations: 100}

	assert.ErrorIs(t, NewLinearSVC(params).Fit([][]float64{{1}, {2}}, []int{1, 1}), ErrSingleClass)
	assert.ErrorIs(t, NewLinearSVC(params).Fit([][]float64{{1}, {2}, {3}}, []int{0, 1, 2}), ErrNotBinary)
	assert.ErrorIs(t, NewLinearSVC(params).Fit(nil, nil), ErrTooFewSamples)
	assert.Error(t, NewLinearSVC(params).Fit([][]float64{{1}, {2, 3}}, []int{0, 1}))
	assert.Error(t, NewLinearSVC(LinearSVCParams{C: 0}).Fit([][]float64{{1}, {2}}, []int{0, 1}))

	_, err := NewLinearSVC(params).DecisionFunction([][]float64{{1}})
	assert.ErrorIs(t, err, ErrNotFitted)

	svc := NewLinearSVC(params)
	require.NoError(t, svc.Fit([][]float64{{1}, {2}}, []int{0, 1}))
	_, err = svc.DecisionFunction([][]float64{{1, 2}})
	assert.Error(t, err)
}

func TestSigmoidCalibratorConstantScores(t *testing.T) {
	c := &SigmoidCalibrator{}
	require.NoError(t, c.Fit([]float64{0, 0, 0, 0}, []int{0, 1, 1, 1}))

	// smoothed targets are 1/3 and 4/5; the fit reproduces their mean
	want := (1.0/3.0 + 3*0.8) / 4
	assert.InDelta(t, want, c.Predict([]float64{0})[0], 1e-4)
}

func TestSigmoidCalibratorIsMonotone(t *testing.T) {
	c := &SigmoidCalibrator{}
	require.NoError(t, c.Fit([]float64{-2, -1, -0.5, 0.5, 1, 2}, []int{0, 0, 1, 0, 1, 1}))
	assert.Less(t, c.A, 0.0)

	p := c.Predict([]float64{-3, 0, 3})
	assert.Less(t, p[0], p[1])
	assert.Less(t, p[1], p[2])
	for _, v := range p {
		assert.Greater(t, v, 0.0)
		assert.Less(t, v, 1.0)
	}

	assert.Error(t, c.Fit([]float64{1}, []int{0, 1}))
	assert.ErrorIs(t, c.Fit(nil, nil), ErrTooFewSamples)
}

func TestIsotonicCalibrator(t *testing.T) {
	c := &IsotonicCalibrator{}
	require.NoError(t, c.Fit([]float64{3, 1, 4, 2}, []int{0, 0, 1, 1}))
	assert.Equal(t, []float64{1, 2, 3, 4}, c.X)
	assert.Equal(t, []float64{0, 0.5, 0.5, 1}, c.Y)

	got := c.Predict([]float64{0, 1.5, 2.5, 3.5, 10})
	assert.InDeltaSlice(t, []float64{0, 0.25, 0.5, 0.75, 1}, got, 1e-12)

	require.NoError(t, c.Fit([]float64{1, 1, 2}, []int{0, 1, 1}))
	assert.Equal(t, []float64{1, 2}, c.X)
	assert.Equal(t, 0.5, c.Predict([]float64{1})[0])

	require.NoError(t, c.Fit([]float64{1, 2, 3, 4}, []int{0, 0, 0, 1}))
	assert.Equal(t, []float64{1, 3, 4}, c.X, "knots inside flat runs are dropped")
	assert.Equal(t, 0.0, c.Predict([]float64{2})[0])
}

func TestNewCalibrator(t *testing.T) {
	c, err := NewCalibrator(CalibrationIsotonic)
	require.NoError(t, err)
	assert.IsType(t, &IsotonicCalibrator{}, c)

	c, err = NewCalibrator("")
	require.NoError(t, err)
	assert.IsType(t, &SigmoidCalibrator{}, c)

	_, err = NewCalibrator("beta")
	assert.Error(t, err)
}

func rampData(n int) ([][]float64, []int) {
	X := make([][]float64, 2*n)
	y := make([]int, 2*n)
	for i := range X {
		X[i] = []float64{float64(i)}
		if i >= n {
			y[i] = 1
		}
	}
	return X, y
}

func TestCalibratedTrainer(t *testing.T) {
	trainer := &CalibratedTrainer{
		SVC:        LinearSVCParams{C: 1, Tolerance: 1e-5, MaxIterations: 500, ClassWeight: ClassWeightBalanced},
		Method:     CalibrationSigmoid,
		Folds:      5,
		MaxWorkers: 3,
	}
	X, y := rampData(10)

	clf, err := trainer.Fit(X, y)
	require.NoError(t, err)
	cc, ok := clf.(*CalibratedClassifier)
	require.True(t, ok)
	assert.Len(t, cc.Members, 5)

	probs, err := clf.PredictProba(X)
	require.NoError(t, err)
	require.Len(t, probs, len(X))
	for _, p := range probs {
		assert.GreaterOrEqual(t, p, 0.0)
		assert.LessOrEqual(t, p, 1.0)
	}
	assert.Greater(t, probs[19], probs[0])

	assert.Equal(t, "sigmoid", trainer.Params()["calibration"])
}

func TestCalibratedTrainerErrors(t *testing.T) {
	trainer := &CalibratedTrainer{
		SVC:    LinearSVCParams{C: 1, Tolerance: 1e-5, MaxIterations: 100},
		Method: CalibrationSigmoid,
		Folds:  5,
	}

	X, y := rampData(10)
	y[12], y[13], y[14], y[15], y[16], y[17], y[18] = 0, 0, 0, 0, 0, 0, 0
	_, err := trainer.Fit(X, y)
	assert.ErrorIs(t, err, ErrTooFewSamples)

	_, err = trainer.Fit(X, make([]int, len(X)))
	assert.ErrorIs(t, err, ErrSingleClass)

	_, err = (&CalibratedClassifier{}).PredictProba(X)
	assert.ErrorIs(t, err, ErrNotFitted)
}

type recordingTrainer struct {
	seen [][]float64
}

func (r *recordingTrainer) Fit(X [][]float64, y []int) (ProbabilisticClassifier, error) {
	r.seen = X
	return r, nil
}

func (r *recordingTrainer) PredictProba(X [][]float64) ([]float64, error) {
	out := make([]float64, len(X))
	for i := range X {
		out[i] = X[i][0]
	}
	return out, nil
}

func (r *recordingTrainer) Name() string           { return "recording" }
func (r *recordingTrainer) Params() map[string]any { return map[string]any{"inner": true} }

func TestScaledTrainer(t *testing.T) {
	inner := &recordingTrainer{}
	trainer := &ScaledTrainer{ScaleType: "minmax", Inner: inner}

	clf, err := trainer.Fit([][]float64{{0}, {10}}, []int{0, 1})
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{0}, {1}}, inner.seen)

	probs, err := clf.PredictProba([][]float64{{5}})
	require.NoError(t, err)
	assert.Equal(t, []float64{0.5}, probs)

	params := trainer.Params()
	assert.Equal(t, "minmax", params["scaling"])
	assert.Equal(t, true, params["inner"])

	_, err = (&ScaledTrainer{ScaleType: "log", Inner: inner}).Fit([][]float64{{0}}, []int{0})
	assert.Error(t, err)
}

func TestCreateTrainer(t *testing.T) {
	cfg := DefaultConfig(AlgorithmLinearSVC)
	trainer, err := CreateTrainer(cfg)
	require.NoError(t, err)
	ct, ok := trainer.(*CalibratedTrainer)
	require.True(t, ok)
	assert.Equal(t, 1e-6, ct.SVC.C)
	assert.Equal(t, ClassWeightBalanced, ct.SVC.ClassWeight)
	assert.Equal(t, 5, ct.Folds)

	cfg.Scaling = "standard"
	trainer, err = CreateTrainer(cfg)
	require.NoError(t, err)
	assert.IsType(t, &ScaledTrainer{}, trainer)

	bad := DefaultConfig(AlgorithmLinearSVC)
	bad.C = 0
	_, err = CreateTrainer(bad)
	assert.Error(t, err)

	bad = DefaultConfig(AlgorithmLinearSVC)
	bad.Calibration = "beta"
	_, err = CreateTrainer(bad)
	assert.Error(t, err)

	bad = DefaultConfig(AlgorithmLinearSVC)
	bad.ClassWeight = "custom"
	_, err = CreateTrainer(bad)
	assert.Error(t, err)

	_, err = CreateTrainer(ModelConfig{Algorithm: "knn"})
	assert.Error(t, err)
}
