package config

import (
	"errors"
	"fmt"

	"github.com/remidefleurian/ochim/internal/models"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateData(); err != nil {
		return err
	}
	if err := c.validateModel(); err != nil {
		return err
	}
	if c.Evaluation.FrameMs <= 0 {
		return fmt.Errorf("evaluation.frame_ms must be positive, got %v", c.Evaluation.FrameMs)
	}
	if c.Run.Workers < 1 {
		return fmt.Errorf("run.workers must be at least 1, got %d", c.Run.Workers)
	}
	return c.validateLogging()
}

func (c *Config) validateData() error {
	if c.Data.Aggregated == "" {
		return errors.New("data.aggregated must be set")
	}
	if c.Run.Combine && len(c.Data.Partitions) == 0 {
		return errors.New("data.partitions must list the fold files when run.combine is enabled")
	}
	for i, p := range c.Data.Partitions {
		if p == "" {
			return fmt.Errorf("data.partitions[%d] is empty", i)
		}
		if p == c.Data.Aggregated {
			return fmt.Errorf("data.partitions[%d] is the aggregated file %s", i, p)
		}
	}
	if c.Output.Dir == "" {
		return errors.New("output.dir must be set")
	}
	return nil
}

func (c *Config) validateModel() error {
	m := c.Model
	if m.Algorithm != models.AlgorithmLinearSVC {
		return fmt.Errorf("model.algorithm %q is not supported (use %q)", m.Algorithm, models.AlgorithmLinearSVC)
	}
	if m.C <= 0 {
		return fmt.Errorf("model.c must be positive, got %v", m.C)
	}
	if m.Tolerance <= 0 {
		return fmt.Errorf("model.tolerance must be positive, got %v", m.Tolerance)
	}
	if m.MaxIterations < 1 {
		return fmt.Errorf("model.max_iterations must be at least 1, got %d", m.MaxIterations)
	}
	switch m.ClassWeight {
	case "balanced", "none":
	default:
		return fmt.Errorf("model.class_weight must be balanced or none, got %q", m.ClassWeight)
	}
	switch m.Calibration {
	case "sigmoid", "isotonic":
	default:
		return fmt.Errorf("model.calibration must be sigmoid or isotonic, got %q", m.Calibration)
	}
	if m.CalibrationFolds < 2 {
		return fmt.Errorf("model.calibration_folds must be at least 2, got %d", m.CalibrationFolds)
	}
	switch m.Scaling {
	case "raw", "standard", "minmax":
	default:
		return fmt.Errorf("model.scaling must be raw, standard or minmax, got %q", m.Scaling)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
		return nil
	default:
		return fmt.Errorf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level)
	}
}
