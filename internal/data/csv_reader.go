package data

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	// LabelColumn is the position of the ground-truth label in every row.
	LabelColumn = 3
	// FeatureOffset is the position of the first feature column.
	FeatureOffset = 4
)

var (
	ErrMissingColumn  = errors.New("missing required column")
	ErrEmptySelection = errors.New("no complete samples in selection")
)

// missingTokens mirrors the cell values the upstream preprocessing emits
// for absent measurements.
var missingTokens = map[string]struct{}{
	"": {}, "NA": {}, "N/A": {}, "n/a": {}, "NaN": {}, "nan": {}, "-NaN": {},
	"-nan": {}, "NULL": {}, "null": {}, "None": {}, "#N/A": {}, "#NA": {},
	"<NA>": {}, "#N/A N/A": {}, "1.#IND": {}, "-1.#IND": {}, "1.#QNAN": {},
	"-1.#QNAN": {},
}

func isMissing(value string) bool {
	_, ok := missingTokens[strings.TrimSpace(value)]
	return ok
}

// Key identifies a sample within the dataset.
type Key struct {
	TrackID string
	Time    string
}

// Sample is one row of the aggregated dataset.
type Sample struct {
	Fold     int
	TrackID  string
	Time     decimal.Decimal
	Label    int
	Features []float64
	// Complete is false when any cell of the source row was missing.
	Complete bool
}

// Key returns the (track_id, time) join key of the sample.
func (s Sample) Key() Key {
	return Key{TrackID: s.TrackID, Time: s.Time.String()}
}

// Dataset is the aggregated, read-only input shared by every fold iteration.
type Dataset struct {
	Headers []string
	Samples []Sample
}

// FeatureNames returns the header names of the feature columns.
func (d *Dataset) FeatureNames() []string {
	if len(d.Headers) <= FeatureOffset {
		return nil
	}
	return d.Headers[FeatureOffset:]
}

// Select returns every sample whose fold is one of folds, in file order.
func (d *Dataset) Select(folds ...int) []Sample {
	wanted := make(map[int]bool, len(folds))
	for _, f := range folds {
		wanted[f] = true
	}
	var out []Sample
	for _, s := range d.Samples {
		if wanted[s.Fold] {
			out = append(out, s)
		}
	}
	return out
}

// Complete filters samples down to rows without missing values.
func Complete(samples []Sample) []Sample {
	out := make([]Sample, 0, len(samples))
	for _, s := range samples {
		if s.Complete {
			out = append(out, s)
		}
	}
	return out
}

type CSVReader struct {
	filename string
}

func NewCSVReader(filename string) *CSVReader {
	return &CSVReader{filename: filename}
}

// LoadData reads and parses the aggregated dataset file.
func (cr *CSVReader) LoadData() (*Dataset, error) {
	file, err := os.Open(cr.filename)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer file.Close()

	ds, err := ParseDataset(file)
	if err != nil {
		return nil, fmt.Errorf("parse dataset %s: %w", cr.filename, err)
	}
	return ds, nil
}

// ReadDataset is shorthand for NewCSVReader(path).LoadData().
func ReadDataset(path string) (*Dataset, error) {
	return NewCSVReader(path).LoadData()
}

type columns struct {
	fold, track, time int
}

func resolveColumns(headers []string) (columns, error) {
	if len(headers) <= FeatureOffset {
		return columns{}, fmt.Errorf("%w: expected feature columns after index %d, got %d columns",
			ErrMissingColumn, LabelColumn, len(headers))
	}
	cols := columns{fold: -1, track: -1, time: -1}
	for i, h := range headers {
		switch strings.TrimSpace(h) {
		case "fold":
			cols.fold = i
		case "track_id":
			cols.track = i
		case "time":
			cols.time = i
		}
	}
	for name, idx := range map[string]int{"fold": cols.fold, "track_id": cols.track, "time": cols.time} {
		if idx < 0 {
			return columns{}, fmt.Errorf("%w: %s", ErrMissingColumn, name)
		}
		if idx >= FeatureOffset {
			return columns{}, fmt.Errorf("column %s must precede the feature columns (index %d)", name, idx)
		}
	}
	return cols, nil
}

// ParseDataset reads an aggregated dataset from r. The header must name the
// fold, track_id and time columns within the first four positions; the
// label is read from LabelColumn and every later column is a feature.
func ParseDataset(r io.Reader) (*Dataset, error) {
	reader := csv.NewReader(r)
	reader.ReuseRecord = false

	headers, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return nil, fmt.Errorf("insufficient data in file")
		}
		return nil, fmt.Errorf("read headers: %w", err)
	}
	cols, err := resolveColumns(headers)
	if err != nil {
		return nil, err
	}

	ds := &Dataset{Headers: headers}
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("read record: %w", err)
		}
		sample, err := parseSample(record, cols)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		ds.Samples = append(ds.Samples, sample)
	}
	return ds, nil
}

func parseSample(record []string, cols columns) (Sample, error) {
	sample := Sample{
		TrackID:  strings.TrimSpace(record[cols.track]),
		Complete: true,
		Features: make([]float64, len(record)-FeatureOffset),
	}
	for _, v := range record {
		if isMissing(v) {
			sample.Complete = false
			break
		}
	}

	if v := record[cols.fold]; !isMissing(v) {
		fold, err := parseInt(v)
		if err != nil {
			return Sample{}, fmt.Errorf("invalid fold %q: %w", v, err)
		}
		sample.Fold = fold
	}

	if v := record[cols.time]; !isMissing(v) {
		t, err := decimal.NewFromString(strings.TrimSpace(v))
		if err != nil {
			return Sample{}, fmt.Errorf("invalid time %q: %w", v, err)
		}
		sample.Time = t
	}

	if v := record[LabelColumn]; !isMissing(v) {
		label, err := parseInt(v)
		if err != nil {
			return Sample{}, fmt.Errorf("invalid label %q: %w", v, err)
		}
		sample.Label = label
	}

	for j := FeatureOffset; j < len(record); j++ {
		v := record[j]
		if isMissing(v) {
			sample.Features[j-FeatureOffset] = math.NaN()
			continue
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return Sample{}, fmt.Errorf("invalid numeric value at column %d: %s", j, v)
		}
		sample.Features[j-FeatureOffset] = f
	}
	return sample, nil
}

// parseInt accepts integral values written as floats ("3.0"), truncating
// toward zero.
func parseInt(value string) (int, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return 0, err
	}
	return int(f), nil
}
