// Package folds maps cross-validation iterations to the fold IDs that serve
// as training, validation and test data.
//
// Folds are numbered 1..NumFolds. Iteration k trains on the three folds that
// start at k, validates on the next one and tests on the one after that,
// wrapping around from NumFolds back to 1.
package folds

import (
	"fmt"
	"strings"
)

// NumFolds is the number of partitions in the aggregated dataset.
const NumFolds = 5

const trainWidth = 3

// Role is the part a fold plays within a single iteration.
type Role string

const (
	RoleTrain    Role = "train"
	RoleValidate Role = "validate"
	RoleTest     Role = "test"
)

// ParseRole accepts the role names used on the command line and in file
// layouts. "valid" is accepted as an alias for validate.
func ParseRole(value string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "train":
		return RoleTrain, nil
	case "valid", "validate", "validation":
		return RoleValidate, nil
	case "test":
		return RoleTest, nil
	default:
		return "", fmt.Errorf("unknown role %q", value)
	}
}

// Rotation assigns folds to roles by cyclic offset. The zero value uses
// NumFolds partitions.
type Rotation struct {
	NumFolds int
}

// Default returns the five-fold rotation.
func Default() Rotation {
	return Rotation{NumFolds: NumFolds}
}

func (r Rotation) size() int {
	if r.NumFolds <= 0 {
		return NumFolds
	}
	return r.NumFolds
}

// at returns the fold at zero-based cyclic index i.
func (r Rotation) at(i int) int {
	n := r.size()
	return ((i%n)+n)%n + 1
}

// Train returns the training folds for iteration k.
func (r Rotation) Train(k int) []int {
	folds := make([]int, 0, trainWidth)
	for i := k - 1; i < k-1+trainWidth; i++ {
		folds = append(folds, r.at(i))
	}
	return folds
}

// Validate returns the validation fold for iteration k.
func (r Rotation) Validate(k int) int {
	return r.at(k + 2)
}

// Test returns the test fold for iteration k.
func (r Rotation) Test(k int) int {
	return r.at(k + 3)
}

// Folds returns the fold IDs assigned to role during iteration k.
func (r Rotation) Folds(k int, role Role) ([]int, error) {
	switch role {
	case RoleTrain:
		return r.Train(k), nil
	case RoleValidate:
		return []int{r.Validate(k)}, nil
	case RoleTest:
		return []int{r.Test(k)}, nil
	default:
		return nil, fmt.Errorf("unknown role %q", role)
	}
}

// Iterations lists the iteration indices 1..NumFolds.
func (r Rotation) Iterations() []int {
	n := r.size()
	ks := make([]int, n)
	for i := range ks {
		ks[i] = i + 1
	}
	return ks
}

// Plan is the role assignment of one iteration.
type Plan struct {
	K        int
	Train    []int
	Validate int
	Test     int
}

// Plan returns the full role assignment for iteration k.
func (r Rotation) Plan(k int) Plan {
	return Plan{
		K:        k,
		Train:    r.Train(k),
		Validate: r.Validate(k),
		Test:     r.Test(k),
	}
}

// TrainList renders the training folds as "a, b, c".
func (p Plan) TrainList() string {
	parts := make([]string, len(p.Train))
	for i, f := range p.Train {
		parts[i] = fmt.Sprintf("%d", f)
	}
	return strings.Join(parts, ", ")
}

func (p Plan) String() string {
	return fmt.Sprintf("training on k = %s, validating on k = %d, testing on k = %d",
		p.TrainList(), p.Validate, p.Test)
}
