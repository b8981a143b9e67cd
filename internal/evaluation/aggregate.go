package evaluation

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/montanaflynn/stats"
	"github.com/shopspring/decimal"

	"github.com/remidefleurian/ochim/internal/persistence"
)

var ErrNoEvaluations = errors.New("no evaluation rows to aggregate")

// SelectBest keeps, for every fold, the row with the highest f_beta. Ties go
// to the row seen first; NaN f_beta values rank last. The result is ordered
// by descending f_beta.
func SelectBest(rows []PerformanceRow) []PerformanceRow {
	sorted := append([]PerformanceRow(nil), rows...)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i].FBeta, sorted[j].FBeta
		if math.IsNaN(b) {
			return !math.IsNaN(a)
		}
		if math.IsNaN(a) {
			return false
		}
		return a > b
	})

	seen := make(map[int]bool)
	best := make([]PerformanceRow, 0)
	for _, r := range sorted {
		if seen[r.KFold] {
			continue
		}
		seen[r.KFold] = true
		best = append(best, r)
	}
	return best
}

// Aggregate averages the best row of each fold. NaN values are skipped in
// the mean; a metric that is NaN in every fold stays NaN. Values are rounded
// to three decimals, half to even.
func Aggregate(rows []PerformanceRow) (Result, error) {
	best := SelectBest(rows)
	if len(best) == 0 {
		return Result{}, ErrNoEvaluations
	}

	column := func(get func(PerformanceRow) float64) (float64, error) {
		values := make(stats.Float64Data, 0, len(best))
		for _, r := range best {
			if v := get(r); !math.IsNaN(v) {
				values = append(values, v)
			}
		}
		if len(values) == 0 {
			return math.NaN(), nil
		}
		mean, err := stats.Mean(values)
		if err != nil {
			return 0, err
		}
		return decimal.NewFromFloat(mean).RoundBank(3).InexactFloat64(), nil
	}

	var res Result
	fields := []struct {
		dst *float64
		get func(PerformanceRow) float64
	}{
		{&res.AUC, func(r PerformanceRow) float64 { return r.AUC }},
		{&res.FBeta, func(r PerformanceRow) float64 { return r.FBeta }},
		{&res.F, func(r PerformanceRow) float64 { return r.F }},
		{&res.Precision, func(r PerformanceRow) float64 { return r.Precision }},
		{&res.Recall, func(r PerformanceRow) float64 { return r.Recall }},
		{&res.BalAcc, func(r PerformanceRow) float64 { return r.BalAcc }},
	}
	for _, f := range fields {
		v, err := column(f.get)
		if err != nil {
			return Result{}, fmt.Errorf("aggregate: %w", err)
		}
		*f.dst = v
	}
	return res, nil
}

// AggregateDir aggregates every *.csv evaluation file in dir.
func AggregateDir(dir string) (Result, int, error) {
	rows, paths, err := persistence.ReadDir[PerformanceRow](dir, "*.csv")
	if err != nil {
		return Result{}, 0, err
	}
	if len(paths) == 0 {
		return Result{}, 0, fmt.Errorf("%s: %w", dir, ErrNoEvaluations)
	}
	res, err := Aggregate(rows)
	if err != nil {
		return Result{}, len(paths), fmt.Errorf("%s: %w", dir, err)
	}
	return res, len(paths), nil
}
