package main

import (
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/remidefleurian/ochim/internal/config"
	"github.com/remidefleurian/ochim/internal/data"
	"github.com/remidefleurian/ochim/internal/evaluation"
	"github.com/remidefleurian/ochim/internal/experiment"
	"github.com/remidefleurian/ochim/internal/folds"
	"github.com/remidefleurian/ochim/internal/models"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var skipCombine bool
	var c float64
	var frameMs float64
	var workers int

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Train, validate and test every fold iteration and aggregate the results",
		RunE: func(cmd *cobra.Command, args []string) error {
			base, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			cfg := *base
			flags := cmd.Flags()
			if flags.Changed("c") {
				cfg.Model.C = c
			}
			if flags.Changed("frame-ms") {
				cfg.Evaluation.FrameMs = frameMs
			}
			if flags.Changed("workers") {
				cfg.Run.Workers = workers
			}
			if skipCombine {
				cfg.Run.Combine = false
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			logger, err := ctx.newLogger(cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			if cfg.Run.Combine {
				if err := combinePartitions(&cfg, logger); err != nil {
					return err
				}
			}

			ds, err := data.ReadDataset(cfg.Data.Aggregated)
			if err != nil {
				return err
			}
			validator := data.NewDataValidator(folds.NumFolds)
			if err := validator.ValidateDataset(ds); err != nil {
				return fmt.Errorf("validate %s: %w", cfg.Data.Aggregated, err)
			}
			logDataset(logger, ds, validator)

			trainer, err := models.CreateTrainer(modelConfig(&cfg))
			if err != nil {
				return err
			}

			runner, err := experiment.NewRunner(experiment.Options{
				Dataset:   ds,
				Rotation:  folds.Default(),
				Trainer:   trainer,
				Sweeper:   evaluation.NewSweeper(cfg.Evaluation.FrameMs),
				OutputDir: cfg.Output.Dir,
				Workers:   cfg.Run.Workers,
				Reporter:  experiment.NewLogReporter(logger),
				Logger:    logger,
			})
			if err != nil {
				return err
			}

			summary, runErr := runner.Run(cmd.Context())
			out := cmd.OutOrStdout()
			if summary != nil {
				printJobs(out, summary)
			}
			if runErr != nil {
				return runErr
			}

			fmt.Fprintln(out)
			printResult(out, summary.Result)
			fmt.Fprintf(out, "Results written to %s\n", summary.Layout.Results())
			return nil
		},
	}

	cmd.Flags().BoolVar(&skipCombine, "skip-combine", false, "Use the existing aggregated dataset instead of combining the partitions")
	cmd.Flags().Float64Var(&c, "c", 0, "Regularisation constant of the linear SVC")
	cmd.Flags().Float64Var(&frameMs, "frame-ms", 0, "Duration of one analysis frame in milliseconds")
	cmd.Flags().IntVar(&workers, "workers", 0, "Number of fold iterations evaluated concurrently")
	return cmd
}

func combinePartitions(cfg *config.Config, logger *slog.Logger) error {
	n, err := data.Combine(cfg.Data.Aggregated, cfg.Data.Partitions)
	if err != nil {
		return fmt.Errorf("combine partitions: %w", err)
	}
	logger.Info("partitions combined",
		slog.Int("partitions", len(cfg.Data.Partitions)),
		slog.Int("rows", n),
		slog.String("path", cfg.Data.Aggregated),
	)
	return nil
}

func logDataset(logger *slog.Logger, ds *data.Dataset, validator *data.DataValidator) {
	logger.Info("dataset loaded",
		slog.Int("rows", len(ds.Samples)),
		slog.Int("features", len(ds.FeatureNames())),
	)
	for _, st := range validator.GetDatasetStats(ds) {
		logger.Debug("fold",
			slog.Int("fold", st.Fold),
			slog.Int("rows", st.Samples),
			slog.Int("complete", st.Complete),
			slog.Int("positive", st.Positive),
			slog.Int("tracks", st.Tracks),
		)
	}
}

func modelConfig(cfg *config.Config) models.ModelConfig {
	mc := models.DefaultConfig(cfg.Model.Algorithm)
	mc.C = cfg.Model.C
	mc.Tolerance = cfg.Model.Tolerance
	mc.MaxIterations = cfg.Model.MaxIterations
	mc.ClassWeight = cfg.Model.ClassWeight
	mc.Calibration = cfg.Model.Calibration
	mc.CalibrationFolds = cfg.Model.CalibrationFolds
	mc.Scaling = cfg.Model.Scaling
	return mc
}

func printJobs(w io.Writer, summary *experiment.Summary) {
	rows := make([][]string, 0, len(summary.Jobs))
	for _, job := range summary.Jobs {
		status := job.GetStatus()
		errText := ""
		if err := job.GetError(); err != nil {
			errText = err.Error()
		}
		rows = append(rows, []string{
			strconv.Itoa(job.KFold),
			job.Description,
			statusColor(status)(string(status)),
			job.GetPhase(),
			job.Duration().Round(time.Millisecond).String(),
			errText,
		})
	}
	fmt.Fprintf(w, "Run %s\n", summary.RunID)
	fmt.Fprintln(w, renderTable(
		[]string{"k", "Plan", "Status", "Phase", "Duration", "Error"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
	))
}

func printResult(w io.Writer, res evaluation.Result) {
	metrics := res.Metrics()
	rows := make([][]string, 0, len(metrics))
	for _, m := range metrics {
		rows = append(rows, []string{m.Label, strconv.FormatFloat(m.Value, 'f', 3, 64)})
	}
	fmt.Fprintln(w, renderTable([]string{"Metric", "Value"}, rows, []columnAlignment{alignLeft, alignRight}))
}
