package evaluation

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/integrate"
)

// AUC integrates tp_rate over fp_rate with the trapezoidal rule after
// ordering rows by fp_rate, then tp_rate. Fewer than two rows or any NaN
// rate yields NaN.
func AUC(rows []PerformanceRow) float64 {
	if len(rows) < 2 {
		return math.NaN()
	}

	type point struct{ x, y float64 }
	points := make([]point, len(rows))
	for i, r := range rows {
		if math.IsNaN(r.FPRate) || math.IsNaN(r.TPRate) {
			return math.NaN()
		}
		points[i] = point{r.FPRate, r.TPRate}
	}
	sort.SliceStable(points, func(i, j int) bool {
		if points[i].x != points[j].x {
			return points[i].x < points[j].x
		}
		return points[i].y < points[j].y
	})

	x := make([]float64, len(points))
	y := make([]float64, len(points))
	for i, p := range points {
		x[i], y[i] = p.x, p.y
	}
	return integrate.Trapezoidal(x, y)
}

// WithAUC stores the AUC of rows in every row.
func WithAUC(rows []PerformanceRow) []PerformanceRow {
	auc := AUC(rows)
	for i := range rows {
		rows[i].AUC = auc
	}
	return rows
}
