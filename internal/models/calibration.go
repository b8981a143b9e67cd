package models

import (
	"fmt"
	"math"
	"sort"
	"sync"

	"gonum.org/v1/gonum/optimize"
)

const (
	CalibrationSigmoid  = "sigmoid"
	CalibrationIsotonic = "isotonic"
)

// Calibrator maps decision scores onto probabilities of the positive class.
// Fit takes binary targets where 1 marks the positive class.
type Calibrator interface {
	Fit(scores []float64, targets []int) error
	Predict(scores []float64) []float64
}

func NewCalibrator(method string) (Calibrator, error) {
	switch method {
	case CalibrationSigmoid, "":
		return &SigmoidCalibrator{}, nil
	case CalibrationIsotonic:
		return &IsotonicCalibrator{}, nil
	default:
		return nil, fmt.Errorf("unknown calibration method: %s", method)
	}
}

// SigmoidCalibrator is Platt scaling: P = 1 / (1 + exp(A*score + B)).
// Targets are smoothed towards the class priors before fitting.
type SigmoidCalibrator struct {
	A float64
	B float64
}

func (c *SigmoidCalibrator) Fit(scores []float64, targets []int) error {
	if len(scores) != len(targets) {
		return fmt.Errorf("scores and targets must have the same length: %d != %d", len(scores), len(targets))
	}
	if len(scores) == 0 {
		return fmt.Errorf("%w: no calibration samples", ErrTooFewSamples)
	}

	var prior0, prior1 float64
	for _, t := range targets {
		if t == 1 {
			prior1++
		} else {
			prior0++
		}
	}
	hi := (prior1 + 1) / (prior1 + 2)
	lo := 1 / (prior0 + 2)
	T := make([]float64, len(targets))
	for i, t := range targets {
		T[i] = lo
		if t == 1 {
			T[i] = hi
		}
	}

	problem := optimize.Problem{
		Func: func(ab []float64) float64 {
			var loss float64
			for i, f := range scores {
				z := ab[0]*f + ab[1]
				loss += T[i]*softplus(z) + (1-T[i])*softplus(-z)
			}
			return loss
		},
		Grad: func(grad, ab []float64) {
			grad[0], grad[1] = 0, 0
			for i, f := range scores {
				d := T[i] - sigmoidProb(ab[0]*f+ab[1])
				grad[0] += d * f
				grad[1] += d
			}
		},
	}

	ab0 := []float64{0, math.Log((prior0 + 1) / (prior1 + 1))}
	settings := &optimize.Settings{GradientThreshold: 1e-5}
	res, err := optimize.Minimize(problem, ab0, settings, &optimize.BFGS{})
	if res == nil {
		return fmt.Errorf("fit sigmoid calibration: %w", err)
	}
	if math.IsNaN(res.X[0]) || math.IsNaN(res.X[1]) {
		return fmt.Errorf("fit sigmoid calibration: diverged (%v)", res.Status)
	}
	c.A, c.B = res.X[0], res.X[1]
	return nil
}

func (c *SigmoidCalibrator) Predict(scores []float64) []float64 {
	out := make([]float64, len(scores))
	for i, f := range scores {
		out[i] = sigmoidProb(c.A*f + c.B)
	}
	return out
}

// sigmoidProb returns 1 / (1 + exp(z)).
func sigmoidProb(z float64) float64 {
	if z >= 0 {
		e := math.Exp(-z)
		return e / (1 + e)
	}
	return 1 / (1 + math.Exp(z))
}

// softplus returns log(1 + exp(z)).
func softplus(z float64) float64 {
	return math.Max(z, 0) + math.Log1p(math.Exp(-math.Abs(z)))
}

// IsotonicCalibrator fits a non-decreasing step function by pool adjacent
// violators and interpolates linearly between its knots. Scores outside the
// fitted range are clipped to it.
type IsotonicCalibrator struct {
	X []float64
	Y []float64
}

func (c *IsotonicCalibrator) Fit(scores []float64, targets []int) error {
	if len(scores) != len(targets) {
		return fmt.Errorf("scores and targets must have the same length: %d != %d", len(scores), len(targets))
	}
	if len(scores) == 0 {
		return fmt.Errorf("%w: no calibration samples", ErrTooFewSamples)
	}

	order := make([]int, len(scores))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		a, b := order[i], order[j]
		if scores[a] != scores[b] {
			return scores[a] < scores[b]
		}
		return targets[a] < targets[b]
	})

	// merge tied scores into one weighted point
	var xs, ys, ws []float64
	for _, i := range order {
		t := float64(targets[i])
		if n := len(xs); n > 0 && xs[n-1] == scores[i] {
			ys[n-1] = (ys[n-1]*ws[n-1] + t) / (ws[n-1] + 1)
			ws[n-1]++
			continue
		}
		xs = append(xs, scores[i])
		ys = append(ys, t)
		ws = append(ws, 1)
	}

	fitted := poolAdjacentViolators(ys, ws)

	// drop knots that sit inside a flat run
	c.X, c.Y = c.X[:0], c.Y[:0]
	for i := range xs {
		if i > 0 && i < len(xs)-1 && fitted[i-1] == fitted[i] && fitted[i] == fitted[i+1] {
			continue
		}
		c.X = append(c.X, xs[i])
		c.Y = append(c.Y, fitted[i])
	}
	return nil
}

func (c *IsotonicCalibrator) Predict(scores []float64) []float64 {
	out := make([]float64, len(scores))
	for i, s := range scores {
		out[i] = c.interpolate(s)
	}
	return out
}

func (c *IsotonicCalibrator) interpolate(s float64) float64 {
	n := len(c.X)
	switch {
	case n == 0:
		return math.NaN()
	case s <= c.X[0]:
		return c.Y[0]
	case s >= c.X[n-1]:
		return c.Y[n-1]
	}
	j := sort.SearchFloat64s(c.X, s)
	if c.X[j] == s {
		return c.Y[j]
	}
	x0, x1 := c.X[j-1], c.X[j]
	y0, y1 := c.Y[j-1], c.Y[j]
	return y0 + (s-x0)/(x1-x0)*(y1-y0)
}

func poolAdjacentViolators(y, w []float64) []float64 {
	type block struct {
		value  float64
		weight float64
		count  int
	}
	blocks := make([]block, 0, len(y))
	for i := range y {
		blocks = append(blocks, block{value: y[i], weight: w[i], count: 1})
		for len(blocks) > 1 {
			last := blocks[len(blocks)-1]
			prev := blocks[len(blocks)-2]
			if prev.value <= last.value {
				break
			}
			weight := prev.weight + last.weight
			blocks = blocks[:len(blocks)-2]
			blocks = append(blocks, block{
				value:  (prev.value*prev.weight + last.value*last.weight) / weight,
				weight: weight,
				count:  prev.count + last.count,
			})
		}
	}

	out := make([]float64, 0, len(y))
	for _, b := range blocks {
		for j := 0; j < b.count; j++ {
			out = append(out, b.value)
		}
	}
	return out
}

// CalibratedMember is one fold of a CalibratedClassifier.
type CalibratedMember struct {
	SVC        *LinearSVC
	Calibrator Calibrator
}

// CalibratedClassifier averages the calibrated probabilities of its members.
type CalibratedClassifier struct {
	BaseModel
	Members []CalibratedMember
}

func (cc *CalibratedClassifier) PredictProba(X [][]float64) ([]float64, error) {
	if len(cc.Members) == 0 {
		return nil, ErrNotFitted
	}
	out := make([]float64, len(X))
	for i, m := range cc.Members {
		scores, err := m.SVC.DecisionFunction(X)
		if err != nil {
			return nil, fmt.Errorf("member %d: %w", i, err)
		}
		for j, p := range m.Calibrator.Predict(scores) {
			out[j] += p
		}
	}
	n := float64(len(cc.Members))
	for j := range out {
		out[j] /= n
	}
	return out, nil
}

// CalibratedTrainer fits one LinearSVC per stratified fold and calibrates it
// on the fold's held-out rows.
type CalibratedTrainer struct {
	SVC        LinearSVCParams
	Method     string
	Folds      int
	MaxWorkers int
}

func (t *CalibratedTrainer) Name() string {
	return "CalibratedLinearSVC"
}

func (t *CalibratedTrainer) Params() map[string]any {
	return map[string]any{
		"c":                 t.SVC.C,
		"tol":               t.SVC.Tolerance,
		"max_iterations":    t.SVC.MaxIterations,
		"class_weight":      t.SVC.ClassWeight,
		"calibration":       t.Method,
		"calibration_folds": t.Folds,
	}
}

func (t *CalibratedTrainer) Fit(X [][]float64, y []int) (ProbabilisticClassifier, error) {
	if err := checkTrainingSet(X, y); err != nil {
		return nil, err
	}
	classes := ExtractClasses(y)
	switch {
	case len(classes) < 2:
		return nil, ErrSingleClass
	case len(classes) > 2:
		return nil, fmt.Errorf("%w: got %d classes", ErrNotBinary, len(classes))
	}
	for _, c := range classes {
		if n := ClassCounts(y)[c]; n < t.Folds {
			return nil, fmt.Errorf("%w: class %d has %d samples for %d-fold calibration", ErrTooFewSamples, c, n, t.Folds)
		}
	}

	folds, err := NewStratifiedKFold(t.Folds).Split(y)
	if err != nil {
		return nil, err
	}

	members := make([]CalibratedMember, len(folds))
	errs := make([]error, len(folds))

	workers := t.MaxWorkers
	if workers < 1 {
		workers = 1
	}
	if workers > len(folds) {
		workers = len(folds)
	}

	jobs := make(chan int, len(folds))
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				members[i], errs[i] = t.fitMember(X, y, classes, folds[i])
			}
		}()
	}
	for i := range folds {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("calibration fold %d: %w", i+1, err)
		}
	}

	return &CalibratedClassifier{
		BaseModel: BaseModel{Name: t.Name(), Params: t.Params(), Classes: classes},
		Members:   members,
	}, nil
}

func (t *CalibratedTrainer) fitMember(X [][]float64, y []int, classes []int, fold Fold) (CalibratedMember, error) {
	Xtr, ytr := subset(X, y, fold.Train)
	svc := NewLinearSVC(t.SVC)
	if err := svc.Fit(Xtr, ytr); err != nil {
		return CalibratedMember{}, err
	}

	Xte, yte := subset(X, y, fold.Test)
	scores, err := svc.DecisionFunction(Xte)
	if err != nil {
		return CalibratedMember{}, err
	}

	cal, err := NewCalibrator(t.Method)
	if err != nil {
		return CalibratedMember{}, err
	}
	if err := cal.Fit(scores, binaryTargets(yte, classes)); err != nil {
		return CalibratedMember{}, err
	}
	return CalibratedMember{SVC: svc, Calibrator: cal}, nil
}
