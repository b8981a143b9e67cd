package persistence

import (
	"encoding/json"
	"fmt"
	"sort"
)

// IterationRecord describes one fold iteration of a run.
type IterationRecord struct {
	RunID         string `csv:"run_id"`
	JobID         string `csv:"job_id"`
	KFold         int    `csv:"k_fold"`
	TrainFolds    string `csv:"train_folds"`
	ValidateFold  int    `csv:"validate_fold"`
	TestFold      int    `csv:"test_fold"`
	Model         string `csv:"model"`
	Params        string `csv:"params"`
	TrainRows     int    `csv:"train_rows"`
	TrainPositive int    `csv:"train_positive"`
	ValidateRows  int    `csv:"validate_rows"`
	TestRows      int    `csv:"test_rows"`
	TrainingMs    int64  `csv:"training_ms"`
	DurationMs    int64  `csv:"duration_ms"`
	Status        string `csv:"status"`
	Error         string `csv:"error"`
}

// EncodeParams renders model parameters as compact JSON with sorted keys.
func EncodeParams(params map[string]any) (string, error) {
	if len(params) == 0 {
		return "{}", nil
	}
	b, err := json.Marshal(params)
	if err != nil {
		return "", fmt.Errorf("encode params: %w", err)
	}
	return string(b), nil
}

// WriteIterations writes records ordered by fold.
func WriteIterations(path string, records []IterationRecord) error {
	sorted := append([]IterationRecord(nil), records...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].KFold < sorted[j].KFold })
	return WriteCSV(path, &sorted)
}
