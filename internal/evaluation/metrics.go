package evaluation

import (
	"fmt"
	"math"
	"strings"

	"github.com/remidefleurian/ochim/internal/segments"
)

// RecallWeight is beta squared: recall counts four times as much as
// precision in FBeta.
const RecallWeight = 4.0

// Prediction is one scored (track_id, time) row of a fold.
type Prediction struct {
	TrackID string  `csv:"track_id"`
	Time    float64 `csv:"time"`
	Label   int     `csv:"label"`
	Prob    float64 `csv:"prob"`
}

// PerformanceRow holds the segment-based metrics of one threshold.
type PerformanceRow struct {
	KFold     int     `csv:"k_fold"`
	Threshold float64 `csv:"threshold"`
	AUC       float64 `csv:"auc"`
	F         float64 `csv:"f"`
	FBeta     float64 `csv:"f_beta"`
	TPRate    float64 `csv:"tp_rate"`
	BalAcc    float64 `csv:"bal_acc"`
	FPRate    float64 `csv:"fp_rate"`
	Precision float64 `csv:"precision"`
	Recall    float64 `csv:"recall"`
	TP        int     `csv:"tp"`
	TN        int     `csv:"tn"`
	FP        int     `csv:"fp"`
	FN        int     `csv:"fn"`
}

// Result is the cross-fold summary.
type Result struct {
	AUC       float64 `csv:"auc"`
	FBeta     float64 `csv:"f_beta"`
	F         float64 `csv:"f"`
	Precision float64 `csv:"precision"`
	Recall    float64 `csv:"recall"`
	BalAcc    float64 `csv:"bal_acc"`
}

// Metric is a labelled value of a Result.
type Metric struct {
	Label string
	Value float64
}

// Metrics lists the result values in export order.
func (r Result) Metrics() []Metric {
	return []Metric{
		{"auc", r.AUC},
		{"f_beta", r.FBeta},
		{"f", r.F},
		{"precision", r.Precision},
		{"recall", r.Recall},
		{"bal_acc", r.BalAcc},
	}
}

func (r Result) FormatMetrics() string {
	var b strings.Builder
	for _, m := range r.Metrics() {
		fmt.Fprintf(&b, "- %-10s %.3f\n", m.Label, m.Value)
	}
	return b.String()
}

// FBeta is (1+RecallWeight)·P·R / (RecallWeight·P + R). It is NaN when both
// precision and recall are zero.
func FBeta(precision, recall float64) float64 {
	return (1 + RecallWeight) * precision * recall / (RecallWeight*precision + recall)
}

// NewPerformanceRow builds the row for threshold from the scorer state.
func NewPerformanceRow(k int, threshold float64, scorer segments.Scorer, label string) PerformanceRow {
	res := scorer.Results()
	counts := scorer.ClassWise(label)
	return PerformanceRow{
		KFold:     k,
		Threshold: threshold,
		AUC:       math.NaN(),
		F:         res.FMeasure.FMeasure,
		FBeta:     FBeta(res.FMeasure.Precision, res.FMeasure.Recall),
		TPRate:    res.Accuracy.Sensitivity,
		BalAcc:    res.Accuracy.BalancedAccuracy,
		FPRate:    1 - res.Accuracy.Specificity,
		Precision: res.FMeasure.Precision,
		Recall:    res.FMeasure.Recall,
		TP:        counts.Ntp,
		TN:        counts.Ntn,
		FP:        counts.Nfp,
		FN:        counts.Nfn,
	}
}
