package models

import "fmt"

// Fold holds row indices of one train/test split.
type Fold struct {
	Train []int
	Test  []int
}

// StratifiedKFold splits rows into NFolds folds that preserve class
// proportions. Rows are not shuffled: each class is dealt to folds in
// original order as contiguous blocks.
type StratifiedKFold struct {
	NFolds int
}

func NewStratifiedKFold(nFolds int) *StratifiedKFold {
	return &StratifiedKFold{NFolds: nFolds}
}

func (s *StratifiedKFold) Split(y []int) ([]Fold, error) {
	n := s.NFolds
	if n < 2 {
		return nil, fmt.Errorf("number of folds must be at least 2, got %d", n)
	}
	if n > len(y) {
		return nil, fmt.Errorf("%w: cannot split %d samples into %d folds", ErrTooFewSamples, len(y), n)
	}

	// classes are ordered by first appearance
	order := make([]int, 0)
	members := make(map[int][]int)
	for i, label := range y {
		if _, ok := members[label]; !ok {
			order = append(order, label)
		}
		members[label] = append(members[label], i)
	}

	testFold := make([]int, len(y))
	start := 0
	for _, label := range order {
		idx := members[label]

		// allocation[f] counts positions p in the class's block of the
		// sorted labels with p % n == f
		allocation := make([]int, n)
		for p := start; p < start+len(idx); p++ {
			allocation[p%n]++
		}
		start += len(idx)

		pos := 0
		for f, count := range allocation {
			for j := 0; j < count; j++ {
				testFold[idx[pos]] = f
				pos++
			}
		}
	}

	folds := make([]Fold, n)
	for i, f := range testFold {
		for g := range folds {
			if g == f {
				folds[g].Test = append(folds[g].Test, i)
			} else {
				folds[g].Train = append(folds[g].Train, i)
			}
		}
	}
	return folds, nil
}

// ClassCounts returns how many rows carry each label.
func ClassCounts(y []int) map[int]int {
	counts := make(map[int]int)
	for _, label := range y {
		counts[label]++
	}
	return counts
}

func subset(X [][]float64, y []int, idx []int) ([][]float64, []int) {
	Xs := make([][]float64, len(idx))
	ys := make([]int, len(idx))
	for i, j := range idx {
		Xs[i] = X[j]
		ys[i] = y[j]
	}
	return Xs, ys
}
