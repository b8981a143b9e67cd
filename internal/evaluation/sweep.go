package evaluation

import (
	"errors"
	"fmt"

	"github.com/montanaflynn/stats"

	"github.com/remidefleurian/ochim/internal/segments"
)

const (
	// EventLabel tags every reference and estimated event.
	EventLabel = "chills"
	// TimeResolution is the segment length in seconds.
	TimeResolution = 5.0
	// ThresholdCount is the number of swept percentiles, 0 through 100.
	ThresholdCount = 101
	// DefaultFrameMs is the duration of one analysis frame.
	DefaultFrameMs = 500.0
)

var ErrNoPredictions = errors.New("no predictions to evaluate")

// Sweeper turns the predictions of one fold into one PerformanceRow per
// probability threshold.
type Sweeper struct {
	FrameMs        float64
	TimeResolution float64
	EventLabel     string
	// NewScorer returns a fresh scorer for each threshold.
	NewScorer func() segments.Scorer
}

func NewSweeper(frameMs float64) *Sweeper {
	s := &Sweeper{
		FrameMs:        frameMs,
		TimeResolution: TimeResolution,
		EventLabel:     EventLabel,
	}
	s.NewScorer = func() segments.Scorer {
		return segments.NewSegmentBasedMetrics([]string{s.EventLabel}, s.TimeResolution)
	}
	return s
}

type track struct {
	id        string
	rows      []Prediction
	reference []segments.Event
	duration  float64
}

// Evaluate sweeps the percentiles of the prediction probabilities. Rows are
// labelled with fold k and carry the fold's AUC.
func (s *Sweeper) Evaluate(preds []Prediction, k int) ([]PerformanceRow, error) {
	if len(preds) == 0 {
		return nil, ErrNoPredictions
	}
	if s.FrameMs <= 0 {
		return nil, fmt.Errorf("frame duration must be positive, got %v ms", s.FrameMs)
	}

	tracks, err := s.groupTracks(preds)
	if err != nil {
		return nil, err
	}

	probs := make([]float64, len(preds))
	for i, p := range preds {
		probs[i] = p.Prob
	}
	thresholds := Percentiles(probs)
	if thresholds == nil {
		return nil, fmt.Errorf("fold %d: every probability is NaN", k)
	}

	rows := make([]PerformanceRow, 0, len(thresholds))
	for _, t := range thresholds {
		scorer := s.NewScorer()
		for _, tr := range tracks {
			if err := scorer.Evaluate(tr.reference, s.estimate(tr.rows, t), tr.duration); err != nil {
				return nil, fmt.Errorf("fold %d track %s: %w", k, tr.id, err)
			}
		}
		rows = append(rows, NewPerformanceRow(k, t, scorer, s.EventLabel))
	}

	return WithAUC(rows), nil
}

// groupTracks splits predictions by track in first-seen order and derives
// each track's reference events and observed duration.
func (s *Sweeper) groupTracks(preds []Prediction) ([]*track, error) {
	var tracks []*track
	index := make(map[string]*track)
	for _, p := range preds {
		tr, ok := index[p.TrackID]
		if !ok {
			tr = &track{id: p.TrackID}
			index[p.TrackID] = tr
			tracks = append(tracks, tr)
		}
		tr.rows = append(tr.rows, p)
		if p.Label == 1 {
			tr.reference = append(tr.reference, s.event(p.Time))
		}
	}

	for _, tr := range tracks {
		times := make(stats.Float64Data, len(tr.rows))
		for i, r := range tr.rows {
			times[i] = r.Time
		}
		lo, err := stats.Min(times)
		if err != nil {
			return nil, fmt.Errorf("track %s: %w", tr.id, err)
		}
		hi, err := stats.Max(times)
		if err != nil {
			return nil, fmt.Errorf("track %s: %w", tr.id, err)
		}
		tr.duration = hi - lo
	}
	return tracks, nil
}

// estimate returns the events of rows whose probability exceeds threshold.
// The result is empty, not nil-skipped, when nothing survives.
func (s *Sweeper) estimate(rows []Prediction, threshold float64) []segments.Event {
	events := []segments.Event{}
	for _, r := range rows {
		if r.Prob > threshold {
			events = append(events, s.event(r.Time))
		}
	}
	return events
}

func (s *Sweeper) event(onset float64) segments.Event {
	return segments.Event{
		Onset:  onset,
		Offset: segments.FrameOffset(onset, s.FrameMs),
		Label:  s.EventLabel,
	}
}
