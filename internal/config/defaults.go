package config

import "github.com/remidefleurian/ochim/internal/models"

const (
	defaultAggregated = "data/preprocessed/all.csv"
	defaultOutputDir  = "output"
	defaultFrameMs    = 500
	defaultWorkers    = 1
	defaultLogFormat  = "console"
	defaultLogLevel   = "info"
)

func defaultPartitions() []string {
	return []string{
		"data/preprocessed/k1.csv",
		"data/preprocessed/k2.csv",
		"data/preprocessed/k3.csv",
		"data/preprocessed/k4.csv",
		"data/preprocessed/k5.csv",
	}
}

// defaultModel takes the model block from the linear SVC defaults of the
// models package.
func defaultModel() Model {
	m := models.DefaultConfig(models.AlgorithmLinearSVC)
	return Model{
		Algorithm:        m.Algorithm,
		C:                m.C,
		Tolerance:        m.Tolerance,
		MaxIterations:    m.MaxIterations,
		ClassWeight:      m.ClassWeight,
		Calibration:      m.Calibration,
		CalibrationFolds: m.CalibrationFolds,
		Scaling:          m.Scaling,
	}
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Data: Data{
			Partitions: defaultPartitions(),
			Aggregated: defaultAggregated,
		},
		Output:     Output{Dir: defaultOutputDir},
		Model:      defaultModel(),
		Evaluation: Evaluation{FrameMs: defaultFrameMs},
		Run: Run{
			Workers: defaultWorkers,
			Combine: true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
