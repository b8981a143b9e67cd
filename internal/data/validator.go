package data

import (
	"fmt"
	"sort"
)

type DataValidator struct {
	numFolds int
}

func NewDataValidator(numFolds int) *DataValidator {
	return &DataValidator{numFolds: numFolds}
}

// ValidateDataset checks that fold IDs are in range and that every fold has
// at least one complete row to train or score on.
func (dv *DataValidator) ValidateDataset(ds *Dataset) error {
	if ds == nil || len(ds.Samples) == 0 {
		return fmt.Errorf("dataset is empty")
	}

	complete := make(map[int]int)
	for i, s := range ds.Samples {
		if s.Fold == 0 && !s.Complete {
			// fold itself is missing; the row can never be selected
			continue
		}
		if s.Fold < 1 || s.Fold > dv.numFolds {
			return fmt.Errorf("sample %d (track %s): fold %d outside 1..%d", i, s.TrackID, s.Fold, dv.numFolds)
		}
		if s.Complete {
			complete[s.Fold]++
		}
	}

	for fold := 1; fold <= dv.numFolds; fold++ {
		if complete[fold] == 0 {
			return fmt.Errorf("fold %d has no complete samples", fold)
		}
	}
	return nil
}

// FoldStats summarises one fold of the dataset.
type FoldStats struct {
	Fold     int
	Samples  int
	Complete int
	Positive int
	Tracks   int
}

// GetDatasetStats returns per-fold row counts ordered by fold ID.
func (dv *DataValidator) GetDatasetStats(ds *Dataset) []FoldStats {
	byFold := make(map[int]*FoldStats)
	tracks := make(map[int]map[string]bool)
	for _, s := range ds.Samples {
		st, ok := byFold[s.Fold]
		if !ok {
			st = &FoldStats{Fold: s.Fold}
			byFold[s.Fold] = st
			tracks[s.Fold] = make(map[string]bool)
		}
		st.Samples++
		if s.Complete {
			st.Complete++
		}
		if s.Label == 1 {
			st.Positive++
		}
		tracks[s.Fold][s.TrackID] = true
	}

	out := make([]FoldStats, 0, len(byFold))
	for fold, st := range byFold {
		st.Tracks = len(tracks[fold])
		out = append(out, *st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Fold < out[j].Fold })
	return out
}
