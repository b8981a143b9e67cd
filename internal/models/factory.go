package models

import (
	"fmt"

	"github.com/remidefleurian/ochim/internal/preprocessing"
)

const AlgorithmLinearSVC = "linear_svc"

type ModelConfig struct {
	Algorithm        string
	C                float64
	Tolerance        float64
	MaxIterations    int
	ClassWeight      string
	Calibration      string
	CalibrationFolds int
	Scaling          string
	MaxWorkers       int
}

func CreateTrainer(config ModelConfig) (Trainer, error) {
	switch config.Algorithm {
	case AlgorithmLinearSVC, "svm", "":
		if config.C <= 0 {
			return nil, fmt.Errorf("c must be positive, got %v", config.C)
		}
		if config.Tolerance <= 0 {
			config.Tolerance = 1e-5
		}
		if config.MaxIterations <= 0 {
			config.MaxIterations = 1000
		}
		switch config.ClassWeight {
		case ClassWeightBalanced, ClassWeightNone:
		case "":
			config.ClassWeight = ClassWeightBalanced
		default:
			return nil, fmt.Errorf("unknown class weight: %s", config.ClassWeight)
		}
		if _, err := NewCalibrator(config.Calibration); err != nil {
			return nil, err
		}
		if config.CalibrationFolds <= 0 {
			config.CalibrationFolds = 5
		}
		if config.CalibrationFolds < 2 {
			return nil, fmt.Errorf("calibration folds must be at least 2, got %d", config.CalibrationFolds)
		}
		if !preprocessing.ValidScaleType(config.Scaling) {
			return nil, fmt.Errorf("unknown scale type: %s", config.Scaling)
		}

		var trainer Trainer = &CalibratedTrainer{
			SVC: LinearSVCParams{
				C:             config.C,
				Tolerance:     config.Tolerance,
				MaxIterations: config.MaxIterations,
				ClassWeight:   config.ClassWeight,
			},
			Method:     config.Calibration,
			Folds:      config.CalibrationFolds,
			MaxWorkers: config.MaxWorkers,
		}
		switch config.Scaling {
		case preprocessing.ScaleRaw, "none", "":
		default:
			trainer = &ScaledTrainer{ScaleType: config.Scaling, Inner: trainer}
		}
		return trainer, nil

	default:
		return nil, fmt.Errorf("unknown algorithm: %s", config.Algorithm)
	}
}

func DefaultConfig(algorithm string) ModelConfig {
	config := ModelConfig{Algorithm: algorithm}

	switch algorithm {
	case AlgorithmLinearSVC:
		config.C = 1e-6
		config.Tolerance = 1e-5
		config.MaxIterations = 1000
		config.ClassWeight = ClassWeightBalanced
		config.Calibration = CalibrationSigmoid
		config.CalibrationFolds = 5
		config.Scaling = preprocessing.ScaleRaw
		config.MaxWorkers = 1
	}

	return config
}
