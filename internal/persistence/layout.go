package persistence

import (
	"fmt"
	"path/filepath"

	"github.com/remidefleurian/ochim/internal/folds"
)

// Layout resolves the files of one output directory:
//
//	<root>/validate/preds/preds-k1.csv
//	<root>/validate/eval/eval-k1.csv
//	<root>/test/...
//	<root>/results/results.csv
type Layout struct {
	Root string
}

func NewLayout(root string) Layout {
	return Layout{Root: root}
}

func (l Layout) Predictions(phase folds.Role, k int) string {
	return filepath.Join(l.Root, string(phase), "preds", fmt.Sprintf("preds-k%d.csv", k))
}

func (l Layout) EvaluationDir(phase folds.Role) string {
	return filepath.Join(l.Root, string(phase), "eval")
}

func (l Layout) Evaluation(phase folds.Role, k int) string {
	return filepath.Join(l.EvaluationDir(phase), fmt.Sprintf("eval-k%d.csv", k))
}

func (l Layout) ResultsDir() string {
	return filepath.Join(l.Root, "results")
}

func (l Layout) Results() string {
	return filepath.Join(l.ResultsDir(), "results.csv")
}

func (l Layout) Iterations() string {
	return filepath.Join(l.ResultsDir(), "iterations.csv")
}

// LockPath is the advisory lock guarding the directory against concurrent
// runs.
func (l Layout) LockPath() string {
	return filepath.Join(l.Root, ".ochim.lock")
}
