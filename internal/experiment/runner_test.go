package experiment

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofrs/flock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/remidefleurian/ochim/internal/data"
	"github.com/remidefleurian/ochim/internal/evaluation"
	"github.com/remidefleurian/ochim/internal/fileutil"
	"github.com/remidefleurian/ochim/internal/folds"
	"github.com/remidefleurian/ochim/internal/jobs"
	"github.com/remidefleurian/ochim/internal/models"
	"github.com/remidefleurian/ochim/internal/persistence"
)

type constantClassifier struct{ prob float64 }

func (c constantClassifier) PredictProba(X [][]float64) ([]float64, error) {
	out := make([]float64, len(X))
	for i := range out {
		out[i] = c.prob
	}
	return out, nil
}

// fakeTrainer returns a constant classifier and fails on the calls listed in
// failOn (1-based).
type fakeTrainer struct {
	prob   float64
	failOn map[int]bool

	mu    sync.Mutex
	calls int
	sizes []int
}

func (f *fakeTrainer) Fit(X [][]float64, y []int) (models.ProbabilisticClassifier, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.sizes = append(f.sizes, len(X))
	if f.failOn[f.calls] {
		return nil, models.ErrSingleClass
	}
	return constantClassifier{prob: f.prob}, nil
}

func (f *fakeTrainer) Name() string { return "constant" }

func (f *fakeTrainer) Params() map[string]any { return map[string]any{"prob": f.prob} }

// blockingTrainer holds its first Fit call until release is closed.
type blockingTrainer struct {
	fakeTrainer
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func (b *blockingTrainer) Fit(X [][]float64, y []int) (models.ProbabilisticClassifier, error) {
	b.once.Do(func() { close(b.started) })
	<-b.release
	return b.fakeTrainer.Fit(X, y)
}

type recordingReporter struct {
	mu       sync.Mutex
	started  []int
	phases   []string
	finished map[int]error
}

func (r *recordingReporter) IterationStarted(plan folds.Plan) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started = append(r.started, plan.K)
}

func (r *recordingReporter) PhaseCompleted(k int, phase folds.Role, rows int, auc float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.phases = append(r.phases, fmt.Sprintf("k%d/%s/%d", k, phase, rows))
}

func (r *recordingReporter) IterationFinished(record persistence.IterationRecord, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.finished == nil {
		r.finished = make(map[int]error)
	}
	r.finished[record.KFold] = err
}

// twoTrackDataset builds tracks a and b with ten timepoints each, five
// seconds apart, spread over the five folds. In every fold each track has
// one complete positive row and one negative row with a missing feature.
func twoTrackDataset(t *testing.T) *data.Dataset {
	t.Helper()
	var b strings.Builder
	b.WriteString("fold,track_id,time,chills,f1,f2\n")
	for _, track := range []string{"a", "b"} {
		for i := 0; i < 10; i++ {
			fold := i%5 + 1
			if i < 5 {
				fmt.Fprintf(&b, "%d,%s,%d,1,0.%d,1.5\n", fold, track, 5*i, i)
			} else {
				fmt.Fprintf(&b, "%d,%s,%d,0,,1.5\n", fold, track, 5*i)
			}
		}
	}
	ds, err := data.ParseDataset(strings.NewReader(b.String()))
	require.NoError(t, err)
	return ds
}

func newTestRunner(t *testing.T, ds *data.Dataset, trainer models.Trainer, reporter Reporter, workers int) (*Runner, string) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "output")
	runner, err := NewRunner(Options{
		Dataset:   ds,
		Trainer:   trainer,
		Sweeper:   evaluation.NewSweeper(500),
		OutputDir: dir,
		Workers:   workers,
		Reporter:  reporter,
	})
	require.NoError(t, err)
	return runner, dir
}

func TestRunEndToEndConstantModel(t *testing.T) {
	for _, workers := range []int{1, 3} {
		t.Run(fmt.Sprintf("workers=%d", workers), func(t *testing.T) {
			trainer := &fakeTrainer{prob: 0.9}
			reporter := &recordingReporter{}
			runner, dir := newTestRunner(t, twoTrackDataset(t), trainer, reporter, workers)

			summary, err := runner.Run(context.Background())
			require.NoError(t, err)

			res := summary.Result
			assert.Equal(t, 0.0, res.AUC)
			assert.Equal(t, 1.0, res.FBeta)
			assert.Equal(t, 1.0, res.F)
			assert.Equal(t, 1.0, res.Precision)
			assert.Equal(t, 1.0, res.Recall)
			assert.Equal(t, 1.0, res.BalAcc)
			assert.Equal(t, 5, summary.Evaluations)

			layout := persistence.NewLayout(dir)
			for k := 1; k <= 5; k++ {
				for _, role := range []folds.Role{folds.RoleValidate, folds.RoleTest} {
					assert.True(t, fileutil.Exists(layout.Predictions(role, k)), "preds %s k%d", role, k)
					assert.True(t, fileutil.Exists(layout.Evaluation(role, k)), "eval %s k%d", role, k)
				}
			}

			var results []evaluation.Result
			require.NoError(t, persistence.ReadCSV(layout.Results(), &results))
			require.Len(t, results, 1)
			assert.Equal(t, res, results[0])

			// every training set holds the six complete rows of three folds
			assert.Equal(t, []int{6, 6, 6, 6, 6}, trainer.sizes)
			assert.ElementsMatch(t, []int{1, 2, 3, 4, 5}, reporter.started)
			assert.Len(t, reporter.phases, 10)
			assert.Contains(t, reporter.phases, "k5/test/4")
			for k, err := range reporter.finished {
				assert.NoError(t, err, "k%d", k)
			}

			var records []persistence.IterationRecord
			require.NoError(t, persistence.ReadCSV(layout.Iterations(), &records))
			require.Len(t, records, 5)
			for i, rec := range records {
				assert.Equal(t, i+1, rec.KFold)
				assert.Equal(t, summary.RunID, rec.RunID)
				assert.Equal(t, "completed", rec.Status)
				assert.Equal(t, 6, rec.TrainPositive)
				assert.Equal(t, 4, rec.ValidateRows)
				assert.Equal(t, 4, rec.TestRows)
				assert.Equal(t, `{"prob":0.9}`, rec.Params)
			}
			assert.Equal(t, "5, 1, 2", records[4].TrainFolds)
			assert.Equal(t, 3, records[4].ValidateFold)
			assert.Equal(t, 4, records[4].TestFold)

			for _, job := range summary.Jobs {
				assert.Equal(t, jobs.JobCompleted, job.GetStatus())
				assert.NotEmpty(t, job.GetLogs())
			}
		})
	}
}

func TestRunTestPhaseScoresTestFold(t *testing.T) {
	runner, dir := newTestRunner(t, twoTrackDataset(t), &fakeTrainer{prob: 0.9}, nil, 1)
	_, err := runner.Run(context.Background())
	require.NoError(t, err)

	layout := persistence.NewLayout(dir)
	rotation := folds.Default()
	for k := 1; k <= 5; k++ {
		var preds []evaluation.Prediction
		require.NoError(t, persistence.ReadCSV(layout.Predictions(folds.RoleTest, k), &preds))
		wantFold := rotation.Test(k)
		var times []float64
		for _, p := range preds {
			times = append(times, p.Time)
		}
		// fold f holds timepoints 5(f-1) and 5(f-1)+25
		start := float64(5 * (wantFold - 1))
		assert.ElementsMatch(t, []float64{start, start + 25, start, start + 25}, times, "k%d", k)

		var rows []evaluation.PerformanceRow
		require.NoError(t, persistence.ReadCSV(layout.Evaluation(folds.RoleTest, k), &rows))
		require.Len(t, rows, evaluation.ThresholdCount)
		for _, row := range rows {
			assert.Equal(t, k, row.KFold)
		}
		assert.True(t, math.IsNaN(rows[len(rows)-1].FBeta))
	}
}

func TestRunFailedIterationAbortsOnlyItsOutputs(t *testing.T) {
	trainer := &fakeTrainer{prob: 0.9, failOn: map[int]bool{2: true}}
	reporter := &recordingReporter{}
	runner, dir := newTestRunner(t, twoTrackDataset(t), trainer, reporter, 1)

	summary, err := runner.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrSingleClass)
	assert.ErrorContains(t, err, "iteration 2")
	require.NotNil(t, summary)

	layout := persistence.NewLayout(dir)
	for k := 1; k <= 5; k++ {
		assert.Equal(t, k != 2, fileutil.Exists(layout.Evaluation(folds.RoleTest, k)), "k%d", k)
		assert.Equal(t, k != 2, fileutil.Exists(layout.Predictions(folds.RoleValidate, k)), "k%d", k)
	}
	assert.False(t, fileutil.Exists(layout.Results()))

	var records []persistence.IterationRecord
	require.NoError(t, persistence.ReadCSV(layout.Iterations(), &records))
	require.Len(t, records, 5)
	assert.Equal(t, "failed", records[1].Status)
	assert.Contains(t, records[1].Error, "fit constant")
	assert.Equal(t, "completed", records[0].Status)
	assert.Error(t, reporter.finished[2])

	counts := runner.Jobs().Counts()
	assert.Equal(t, 4, counts[jobs.JobCompleted])
	assert.Equal(t, 1, counts[jobs.JobFailed])

	// the surviving test evaluations can still be aggregated on demand
	res, n, err := Aggregate(layout)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, 1.0, res.FBeta)
	assert.True(t, fileutil.Exists(layout.Results()))
}

func TestRunCancelledContext(t *testing.T) {
	trainer := &fakeTrainer{prob: 0.9}
	runner, _ := newTestRunner(t, twoTrackDataset(t), trainer, nil, 2)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	summary, err := runner.Run(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Zero(t, trainer.calls)
	for _, job := range summary.Jobs {
		assert.Equal(t, jobs.JobCancelled, job.GetStatus())
	}
}

func TestRunCancelMarksRunningJobs(t *testing.T) {
	trainer := &blockingTrainer{
		fakeTrainer: fakeTrainer{prob: 0.9},
		started:     make(chan struct{}),
		release:     make(chan struct{}),
	}
	runner, _ := newTestRunner(t, twoTrackDataset(t), trainer, nil, 1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	type outcome struct {
		summary *Summary
		err     error
	}
	done := make(chan outcome, 1)
	go func() {
		summary, err := runner.Run(ctx)
		done <- outcome{summary, err}
	}()

	<-trainer.started
	first := runner.Jobs().ListJobs()[0]
	require.Equal(t, jobs.JobRunning, first.GetStatus())

	cancel()
	assert.Eventually(t, func() bool {
		return first.GetStatus() == jobs.JobCancelled
	}, 2*time.Second, 5*time.Millisecond)

	close(trainer.release)
	res := <-done
	require.Error(t, res.err)
	assert.True(t, errors.Is(res.err, context.Canceled))
	assert.Equal(t, 1, trainer.calls)
	for _, job := range res.summary.Jobs {
		assert.Equal(t, jobs.JobCancelled, job.GetStatus())
	}
}

func TestRunRefusesLockedOutput(t *testing.T) {
	runner, dir := newTestRunner(t, twoTrackDataset(t), &fakeTrainer{prob: 0.9}, nil, 1)
	require.NoError(t, os.MkdirAll(dir, 0o755))

	held := flock.New(persistence.NewLayout(dir).LockPath())
	locked, err := held.TryLock()
	require.NoError(t, err)
	require.True(t, locked)
	defer held.Unlock()

	_, err = runner.Run(context.Background())
	assert.ErrorIs(t, err, ErrLocked)
}

func TestNewRunnerRequiresInputs(t *testing.T) {
	_, err := NewRunner(Options{Trainer: &fakeTrainer{}, OutputDir: "x"})
	assert.Error(t, err)
	_, err = NewRunner(Options{Dataset: &data.Dataset{}, OutputDir: "x"})
	assert.Error(t, err)
	_, err = NewRunner(Options{Dataset: &data.Dataset{}, Trainer: &fakeTrainer{}})
	assert.Error(t, err)
}

// separableDataset has two features that separate the labels, with enough
// rows per class for calibrated training.
func separableDataset(t *testing.T) *data.Dataset {
	t.Helper()
	var b strings.Builder
	b.WriteString("fold,track_id,time,chills,f1,f2\n")
	for _, track := range []string{"a", "b"} {
		for i := 0; i < 100; i++ {
			fold := i%5 + 1
			label := (i / 5) % 2
			x := float64(label)*2 - 1 + float64(i%7)*0.05
			fmt.Fprintf(&b, "%d,%s,%d,%d,%g,%g\n", fold, track, 5*i, label, x, float64(i%3)*0.1)
		}
	}
	ds, err := data.ParseDataset(strings.NewReader(b.String()))
	require.NoError(t, err)
	return ds
}

func TestRunWithCalibratedSVC(t *testing.T) {
	cfg := models.DefaultConfig(models.AlgorithmLinearSVC)
	cfg.C = 1
	trainer, err := models.CreateTrainer(cfg)
	require.NoError(t, err)

	runner, dir := newTestRunner(t, separableDataset(t), trainer, nil, 2)
	summary, err := runner.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, summary.Evaluations)
	assert.True(t, fileutil.Exists(persistence.NewLayout(dir).Results()))
	if !math.IsNaN(summary.Result.AUC) {
		assert.GreaterOrEqual(t, summary.Result.AUC, 0.0)
		assert.LessOrEqual(t, summary.Result.AUC, 1.0)
	}
}
