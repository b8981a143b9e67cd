package evaluation

import (
	"fmt"
	"math"

	"github.com/remidefleurian/ochim/internal/data"
	"github.com/remidefleurian/ochim/internal/folds"
	"github.com/remidefleurian/ochim/internal/models"
)

// Join scores X with model and attaches the probabilities to every row of
// fold rotation.Validate(k). X must hold the complete rows of that fold in
// dataset order; rows that were dropped for missing values get probability 0.
func Join(ds *data.Dataset, rotation folds.Rotation, X [][]float64, model models.ProbabilisticClassifier, k int) ([]Prediction, error) {
	fold := rotation.Validate(k)
	probs, err := model.PredictProba(X)
	if err != nil {
		return nil, fmt.Errorf("predict fold %d: %w", fold, err)
	}
	preds, err := JoinProbabilities(ds.Select(fold), probs)
	if err != nil {
		return nil, fmt.Errorf("join fold %d: %w", fold, err)
	}
	return preds, nil
}

// JoinProbabilities left-joins probs, aligned with the complete rows of
// metadata, onto all of metadata by (track_id, time). Each key is emitted
// once, at its first occurrence.
func JoinProbabilities(metadata []data.Sample, probs []float64) ([]Prediction, error) {
	complete := data.Complete(metadata)
	if len(complete) != len(probs) {
		return nil, fmt.Errorf("%d probabilities for %d complete rows", len(probs), len(complete))
	}

	byKey := make(map[data.Key]float64, len(complete))
	for i, s := range complete {
		key := s.Key()
		if _, ok := byKey[key]; !ok {
			byKey[key] = probs[i]
		}
	}

	seen := make(map[data.Key]bool, len(metadata))
	out := make([]Prediction, 0, len(metadata))
	for _, s := range metadata {
		key := s.Key()
		if seen[key] {
			continue
		}
		seen[key] = true

		prob := byKey[key]
		if math.IsNaN(prob) {
			prob = 0
		}
		out = append(out, Prediction{
			TrackID: s.TrackID,
			Time:    s.Time.InexactFloat64(),
			Label:   s.Label,
			Prob:    prob,
		})
	}
	return out, nil
}
