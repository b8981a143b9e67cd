// Package segments scores estimated event intervals against reference
// intervals on a fixed segment grid.
//
// Each track is cut into segments of TimeResolution seconds. A segment is
// active for a label when any event with that label overlaps it. Reference
// and estimated activity are then compared segment by segment and the
// resulting true/false positive/negative counts are accumulated across every
// evaluated track.
package segments

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// eps keeps the ratio metrics finite on empty denominators.
const eps = 2.220446049250313e-16

// Event is a labelled time interval in seconds.
type Event struct {
	Onset  float64
	Offset float64
	Label  string
}

// Counts are segment-level confusion counts.
type Counts struct {
	Ntp  int
	Ntn  int
	Nfp  int
	Nfn  int
	Nref int
	Nsys int
}

func (c *Counts) add(o Counts) {
	c.Ntp += o.Ntp
	c.Ntn += o.Ntn
	c.Nfp += o.Nfp
	c.Nfn += o.Nfn
	c.Nref += o.Nref
	c.Nsys += o.Nsys
}

type FMeasure struct {
	FMeasure  float64
	Precision float64
	Recall    float64
}

type Accuracy struct {
	Sensitivity      float64
	Specificity      float64
	BalancedAccuracy float64
	Accuracy         float64
}

// OverallMetrics are the metrics over every label and every evaluated track.
type OverallMetrics struct {
	FMeasure FMeasure
	Accuracy Accuracy
}

// Scorer accumulates segment-based counts across tracks.
type Scorer interface {
	Evaluate(reference, estimated []Event, durationSeconds float64) error
	Results() OverallMetrics
	ClassWise(label string) Counts
}

// SegmentBasedMetrics is the default Scorer.
type SegmentBasedMetrics struct {
	labels     []string
	labelIndex map[string]int
	resolution float64

	overall   Counts
	classWise []Counts

	evaluatedSeconds float64
	evaluatedTracks  int
}

// NewSegmentBasedMetrics creates a scorer over labels with segments of
// timeResolution seconds.
func NewSegmentBasedMetrics(labels []string, timeResolution float64) *SegmentBasedMetrics {
	index := make(map[string]int, len(labels))
	for i, l := range labels {
		index[l] = i
	}
	return &SegmentBasedMetrics{
		labels:     append([]string(nil), labels...),
		labelIndex: index,
		resolution: timeResolution,
		classWise:  make([]Counts, len(labels)),
	}
}

// Evaluate adds one track to the running counts. The track spans
// ceil(durationSeconds / resolution) segments; activity past that point is
// ignored and missing activity is treated as inactive.
func (m *SegmentBasedMetrics) Evaluate(reference, estimated []Event, durationSeconds float64) error {
	if m.resolution <= 0 {
		return fmt.Errorf("time resolution must be positive, got %v", m.resolution)
	}
	length := int(math.Ceil(durationSeconds / m.resolution))
	if length < 0 {
		length = 0
	}

	ref, err := m.roll(reference, length)
	if err != nil {
		return fmt.Errorf("reference: %w", err)
	}
	est, err := m.roll(estimated, length)
	if err != nil {
		return fmt.Errorf("estimated: %w", err)
	}

	for li := range m.labels {
		var c Counts
		for s := 0; s < length; s++ {
			r, e := ref[li][s], est[li][s]
			switch {
			case r && e:
				c.Ntp++
			case !r && !e:
				c.Ntn++
			case e:
				c.Nfp++
			default:
				c.Nfn++
			}
			if r {
				c.Nref++
			}
			if e {
				c.Nsys++
			}
		}
		m.classWise[li].add(c)
		m.overall.add(c)
	}

	m.evaluatedSeconds += durationSeconds
	m.evaluatedTracks++
	return nil
}

// roll converts events into per-label activity over length segments.
func (m *SegmentBasedMetrics) roll(events []Event, length int) ([][]bool, error) {
	roll := make([][]bool, len(m.labels))
	for i := range roll {
		roll[i] = make([]bool, length)
	}
	for _, ev := range events {
		li, ok := m.labelIndex[ev.Label]
		if !ok {
			return nil, fmt.Errorf("unknown event label %q", ev.Label)
		}
		onset := int(math.Floor(ev.Onset / m.resolution))
		offset := int(math.Ceil(ev.Offset / m.resolution))
		if onset < 0 {
			onset = 0
		}
		for s := onset; s < offset && s < length; s++ {
			roll[li][s] = true
		}
	}
	return roll, nil
}

// Results returns the overall metrics accumulated so far.
func (m *SegmentBasedMetrics) Results() OverallMetrics {
	c := m.overall
	precision := float64(c.Ntp) / (float64(c.Nsys) + eps)
	recall := float64(c.Ntp) / (float64(c.Nref) + eps)
	sensitivity := float64(c.Ntp) / (float64(c.Ntp+c.Nfn) + eps)
	specificity := float64(c.Ntn) / (float64(c.Ntn+c.Nfp) + eps)

	return OverallMetrics{
		FMeasure: FMeasure{
			FMeasure:  fMeasure(precision, recall),
			Precision: precision,
			Recall:    recall,
		},
		Accuracy: Accuracy{
			Sensitivity:      sensitivity,
			Specificity:      specificity,
			BalancedAccuracy: 0.5*sensitivity + 0.5*specificity,
			Accuracy:         float64(c.Ntp+c.Ntn) / (float64(c.Ntp+c.Ntn+c.Nfp+c.Nfn) + eps),
		},
	}
}

// ClassWise returns the counts accumulated for label.
func (m *SegmentBasedMetrics) ClassWise(label string) Counts {
	li, ok := m.labelIndex[label]
	if !ok {
		return Counts{}
	}
	return m.classWise[li]
}

// EvaluatedTracks is the number of Evaluate calls so far.
func (m *SegmentBasedMetrics) EvaluatedTracks() int {
	return m.evaluatedTracks
}

// EvaluatedSeconds is the summed duration of every evaluated track.
func (m *SegmentBasedMetrics) EvaluatedSeconds() float64 {
	return m.evaluatedSeconds
}

func fMeasure(precision, recall float64) float64 {
	if precision == 0 && recall == 0 {
		return 0
	}
	return 2 * precision * recall / (precision + recall)
}

// FrameOffset returns onset + frameMs/1000 rounded half-to-even to two
// decimals, the offset of an event built from one analysis frame.
func FrameOffset(onset, frameMs float64) float64 {
	frame := decimal.NewFromFloat(frameMs).Div(decimal.NewFromInt(1000))
	return decimal.NewFromFloat(onset).Add(frame).RoundBank(2).InexactFloat64()
}
