package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/remidefleurian/ochim/internal/experiment"
	"github.com/remidefleurian/ochim/internal/folds"
	"github.com/remidefleurian/ochim/internal/persistence"
)

func newCombineCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "combine",
		Short: "Concatenate the fold partitions into the aggregated dataset",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.newLogger(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			if err := combinePartitions(cfg, logger); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Combined %d partitions into %s\n", len(cfg.Data.Partitions), cfg.Data.Aggregated)
			return nil
		},
	}
}

func newAggregateCommand(ctx *commandContext) *cobra.Command {
	var plain bool

	cmd := &cobra.Command{
		Use:   "aggregate",
		Short: "Recompute the results file from the existing test evaluations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			layout := persistence.NewLayout(cfg.Output.Dir)
			res, n, err := experiment.Aggregate(layout)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if plain {
				fmt.Fprint(out, res.FormatMetrics())
				return nil
			}
			fmt.Fprintf(out, "Aggregated %d evaluation files\n", n)
			printResult(out, res)
			fmt.Fprintf(out, "Results written to %s\n", layout.Results())
			return nil
		},
	}

	cmd.Flags().BoolVar(&plain, "plain", false, "Print one \"- metric value\" line per metric instead of a table")
	return cmd
}

func newFoldsCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "folds",
		Short:       "Print the fold rotation plan",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			rotation := folds.Default()
			rows := make([][]string, 0, folds.NumFolds)
			for _, k := range rotation.Iterations() {
				plan := rotation.Plan(k)
				rows = append(rows, []string{
					strconv.Itoa(k),
					plan.TrainList(),
					strconv.Itoa(plan.Validate),
					strconv.Itoa(plan.Test),
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"k", "Train", "Validate", "Test"},
				rows,
				[]columnAlignment{alignRight, alignLeft, alignRight, alignRight},
			))
			return nil
		},
	}
}
