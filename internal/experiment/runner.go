package experiment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"github.com/remidefleurian/ochim/internal/data"
	"github.com/remidefleurian/ochim/internal/evaluation"
	"github.com/remidefleurian/ochim/internal/folds"
	"github.com/remidefleurian/ochim/internal/jobs"
	"github.com/remidefleurian/ochim/internal/logging"
	"github.com/remidefleurian/ochim/internal/models"
	"github.com/remidefleurian/ochim/internal/persistence"
)

// ErrLocked is returned when another run holds the output directory.
var ErrLocked = errors.New("output directory is locked by another run")

// Options configures a Runner. Dataset, Trainer and OutputDir are required.
type Options struct {
	Dataset   *data.Dataset
	Rotation  folds.Rotation
	Trainer   models.Trainer
	Sweeper   *evaluation.Sweeper
	OutputDir string
	// Workers bounds the number of iterations evaluated at once.
	Workers  int
	Reporter Reporter
	Logger   *slog.Logger
}

// Runner executes one cross-validation run: every fold iteration is
// trained, validated and tested, then the test evaluations are aggregated.
type Runner struct {
	dataset  *data.Dataset
	rotation folds.Rotation
	loader   *data.Loader
	trainer  models.Trainer
	sweeper  *evaluation.Sweeper
	layout   persistence.Layout
	workers  int
	reporter Reporter
	logger   *slog.Logger
	jobs     *jobs.Manager
}

// Summary is the outcome of a run.
type Summary struct {
	RunID       string
	Result      evaluation.Result
	Evaluations int
	Iterations  []persistence.IterationRecord
	Jobs        []*jobs.Job
	Layout      persistence.Layout
}

func NewRunner(opts Options) (*Runner, error) {
	if opts.Dataset == nil {
		return nil, errors.New("runner: dataset is required")
	}
	if opts.Trainer == nil {
		return nil, errors.New("runner: trainer is required")
	}
	if opts.OutputDir == "" {
		return nil, errors.New("runner: output directory is required")
	}
	if opts.Rotation.NumFolds == 0 {
		opts.Rotation = folds.Default()
	}
	if opts.Sweeper == nil {
		opts.Sweeper = evaluation.NewSweeper(evaluation.DefaultFrameMs)
	}
	if opts.Reporter == nil {
		opts.Reporter = nopReporter{}
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}

	return &Runner{
		dataset:  opts.Dataset,
		rotation: opts.Rotation,
		loader:   data.NewLoader(opts.Dataset, opts.Rotation),
		trainer:  opts.Trainer,
		sweeper:  opts.Sweeper,
		layout:   persistence.NewLayout(opts.OutputDir),
		workers:  opts.Workers,
		reporter: opts.Reporter,
		logger:   logging.NewComponentLogger(opts.Logger, "runner"),
		jobs:     jobs.NewManager(),
	}, nil
}

// Jobs exposes the fold jobs of the run. Cancelling the context passed to
// Run cancels every running job through this manager.
func (r *Runner) Jobs() *jobs.Manager {
	return r.jobs
}

// Run evaluates every iteration and aggregates the test evaluations into
// the results file. A failed iteration does not stop the others; their
// errors are joined and returned together with the summary, and the results
// file is only written when every iteration succeeded.
func (r *Runner) Run(ctx context.Context) (*Summary, error) {
	if err := os.MkdirAll(r.layout.Root, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}
	lock := flock.New(r.layout.LockPath())
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock %s: %w", r.layout.Root, err)
	}
	if !locked {
		return nil, fmt.Errorf("%s: %w", r.layout.Root, ErrLocked)
	}
	defer lock.Unlock()

	r.logger.Info("run started",
		slog.String("run_id", r.jobs.RunID),
		slog.String("model", r.trainer.Name()),
		slog.Int("workers", r.workers),
		slog.String("output", r.layout.Root),
	)

	ks := r.rotation.Iterations()
	records := make([]persistence.IterationRecord, len(ks))
	errs := make([]error, len(ks))
	pending := make([]*jobs.Job, len(ks))
	for i, k := range ks {
		pending[i] = r.jobs.CreateJob(k, r.rotation.Plan(k).String())
	}
	stop := context.AfterFunc(ctx, r.cancelRunning)
	defer stop()

	workers := r.workers
	if workers > len(ks) {
		workers = len(ks)
	}

	work := make(chan int, len(ks))
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range work {
				records[i], errs[i] = r.runJob(ctx, pending[i])
			}
		}()
	}
	for i := range ks {
		work <- i
	}
	close(work)
	wg.Wait()

	summary := &Summary{
		RunID:      r.jobs.RunID,
		Iterations: records,
		Jobs:       r.jobs.ListJobs(),
		Layout:     r.layout,
	}

	if err := persistence.WriteIterations(r.layout.Iterations(), records); err != nil {
		return summary, err
	}

	var failed []error
	for i, err := range errs {
		if err != nil {
			failed = append(failed, fmt.Errorf("iteration %d: %w", ks[i], err))
		}
	}
	if len(failed) > 0 {
		return summary, errors.Join(failed...)
	}

	result, n, err := Aggregate(r.layout)
	if err != nil {
		return summary, err
	}
	summary.Result = result
	summary.Evaluations = n

	r.logger.Info("run finished",
		slog.String("run_id", r.jobs.RunID),
		slog.Int("evaluations", n),
		slog.String("results", r.layout.Results()),
	)
	return summary, nil
}

// cancelRunning cancels the fold jobs that are still running. Jobs not yet
// started see the cancelled context when a worker picks them up.
func (r *Runner) cancelRunning() {
	for _, job := range r.jobs.ListJobs() {
		if job.GetStatus() != jobs.JobRunning {
			continue
		}
		if err := r.jobs.CancelJob(job.ID); err != nil {
			r.logger.Debug("cancel job", slog.Int("fold", job.KFold), slog.String("error", err.Error()))
			continue
		}
		r.logger.Info("job cancelled", slog.Int("fold", job.KFold), slog.String("job_id", job.ID))
	}
}

// Aggregate recomputes the results file of layout from its test
// evaluations and returns the result with the number of files read.
func Aggregate(layout persistence.Layout) (evaluation.Result, int, error) {
	result, n, err := evaluation.AggregateDir(layout.EvaluationDir(folds.RoleTest))
	if err != nil {
		return evaluation.Result{}, n, err
	}
	if err := persistence.WriteCSV(layout.Results(), []evaluation.Result{result}); err != nil {
		return evaluation.Result{}, n, err
	}
	return result, n, nil
}

func (r *Runner) runJob(parent context.Context, job *jobs.Job) (persistence.IterationRecord, error) {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()
	job.SetCancelFunc(cancel)

	plan := r.rotation.Plan(job.KFold)
	record := persistence.IterationRecord{
		RunID:        r.jobs.RunID,
		JobID:        job.ID,
		KFold:        plan.K,
		TrainFolds:   plan.TrainList(),
		ValidateFold: plan.Validate,
		TestFold:     plan.Test,
		Model:        r.trainer.Name(),
	}

	start := time.Now()
	job.Start()
	r.reporter.IterationStarted(plan)

	err := r.iterate(ctx, job, plan, &record)
	switch {
	case err == nil:
		job.SetStatus(jobs.JobCompleted)
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		job.AddLog(err.Error())
		job.SetStatus(jobs.JobCancelled)
	default:
		job.AddLog(err.Error())
		job.SetError(err)
	}

	record.DurationMs = time.Since(start).Milliseconds()
	record.Status = string(job.GetStatus())
	if err != nil {
		record.Error = err.Error()
	}
	r.reporter.IterationFinished(record, err)
	return record, err
}

func (r *Runner) iterate(ctx context.Context, job *jobs.Job, plan folds.Plan, record *persistence.IterationRecord) error {
	params, err := persistence.EncodeParams(r.trainer.Params())
	if err != nil {
		return err
	}
	record.Params = params

	if err := ctx.Err(); err != nil {
		return err
	}
	job.SetPhase(string(folds.RoleTrain))
	X, y, err := r.loader.Load(folds.RoleTrain, plan.K)
	if err != nil {
		return fmt.Errorf("load training folds: %w", err)
	}
	record.TrainRows = len(y)
	for _, label := range y {
		if label == 1 {
			record.TrainPositive++
		}
	}

	trainStart := time.Now()
	model, err := r.trainer.Fit(X, y)
	record.TrainingMs = time.Since(trainStart).Milliseconds()
	if err != nil {
		return fmt.Errorf("fit %s: %w", r.trainer.Name(), err)
	}

	// The validate phase reads the fold at offset k; the test phase reuses
	// the same lookup at k+1, which resolves to the test fold of k.
	phases := []struct {
		role  folds.Role
		joinK int
		rows  *int
	}{
		{folds.RoleValidate, plan.K, &record.ValidateRows},
		{folds.RoleTest, plan.K + 1, &record.TestRows},
	}
	for _, ph := range phases {
		if err := ctx.Err(); err != nil {
			return err
		}
		job.SetPhase(string(ph.role))
		n, err := r.evaluatePhase(ph.role, plan.K, ph.joinK, model)
		if err != nil {
			return fmt.Errorf("%s: %w", ph.role, err)
		}
		*ph.rows = n
	}
	return nil
}

// evaluatePhase scores the fold of role, sweeps the thresholds and publishes
// the predictions and evaluation files. It returns the number of scored rows.
func (r *Runner) evaluatePhase(role folds.Role, k, joinK int, model models.ProbabilisticClassifier) (int, error) {
	X, _, err := r.loader.Load(role, k)
	if err != nil {
		return 0, fmt.Errorf("load: %w", err)
	}

	preds, err := evaluation.Join(r.dataset, r.rotation, X, model, joinK)
	if err != nil {
		return 0, err
	}

	rows, err := r.sweeper.Evaluate(preds, k)
	if err != nil {
		return 0, fmt.Errorf("evaluate: %w", err)
	}

	if err := persistence.WriteCSV(r.layout.Predictions(role, k), preds); err != nil {
		return 0, err
	}
	if err := persistence.WriteCSV(r.layout.Evaluation(role, k), rows); err != nil {
		return 0, err
	}

	r.reporter.PhaseCompleted(k, role, len(preds), rows[0].AUC)
	return len(preds), nil
}
