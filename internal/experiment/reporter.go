package experiment

import (
	"log/slog"
	"math"

	"github.com/remidefleurian/ochim/internal/folds"
	"github.com/remidefleurian/ochim/internal/persistence"
)

// Reporter receives progress events from a run. Calls may arrive from
// several iterations concurrently when the runner has more than one worker.
type Reporter interface {
	IterationStarted(plan folds.Plan)
	PhaseCompleted(k int, phase folds.Role, rows int, auc float64)
	IterationFinished(record persistence.IterationRecord, err error)
}

// LogReporter writes progress as structured log records.
type LogReporter struct {
	Logger *slog.Logger
}

func NewLogReporter(logger *slog.Logger) *LogReporter {
	return &LogReporter{Logger: logger}
}

func (r *LogReporter) IterationStarted(plan folds.Plan) {
	r.Logger.Info(plan.String(),
		slog.Int("fold", plan.K),
		slog.String("train_folds", plan.TrainList()),
		slog.Int("validate_fold", plan.Validate),
		slog.Int("test_fold", plan.Test),
	)
}

func (r *LogReporter) PhaseCompleted(k int, phase folds.Role, rows int, auc float64) {
	attrs := []any{
		slog.Int("fold", k),
		slog.String("phase", string(phase)),
		slog.Int("rows", rows),
	}
	if math.IsNaN(auc) {
		attrs = append(attrs, slog.String("auc", "NaN"))
	} else {
		attrs = append(attrs, slog.Float64("auc", auc))
	}
	r.Logger.Info("phase evaluated", attrs...)
}

func (r *LogReporter) IterationFinished(record persistence.IterationRecord, err error) {
	attrs := []any{
		slog.Int("fold", record.KFold),
		slog.String("status", record.Status),
		slog.Int64("training_ms", record.TrainingMs),
		slog.Int64("duration_ms", record.DurationMs),
	}
	if err != nil {
		r.Logger.Error("iteration failed", append(attrs, slog.Any("error", err))...)
		return
	}
	r.Logger.Info("iteration finished", attrs...)
}

type nopReporter struct{}

func (nopReporter) IterationStarted(folds.Plan) {}
func (nopReporter) PhaseCompleted(int, folds.Role, int, float64) {}
func (nopReporter) IterationFinished(persistence.IterationRecord, error) {}
