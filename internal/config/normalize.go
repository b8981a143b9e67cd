package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeModel()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	for i, p := range c.Data.Partitions {
		if c.Data.Partitions[i], err = expandPath(strings.TrimSpace(p)); err != nil {
			return fmt.Errorf("data.partitions[%d]: %w", i, err)
		}
	}
	if c.Data.Aggregated, err = expandPath(strings.TrimSpace(c.Data.Aggregated)); err != nil {
		return fmt.Errorf("data.aggregated: %w", err)
	}
	if c.Output.Dir, err = expandPath(strings.TrimSpace(c.Output.Dir)); err != nil {
		return fmt.Errorf("output.dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeModel() {
	lower := func(s string) string { return strings.ToLower(strings.TrimSpace(s)) }
	def := defaultModel()
	c.Model.Algorithm = lower(c.Model.Algorithm)
	if c.Model.Algorithm == "" {
		c.Model.Algorithm = def.Algorithm
	}
	c.Model.ClassWeight = lower(c.Model.ClassWeight)
	if c.Model.ClassWeight == "" {
		c.Model.ClassWeight = def.ClassWeight
	}
	c.Model.Calibration = lower(c.Model.Calibration)
	if c.Model.Calibration == "" {
		c.Model.Calibration = def.Calibration
	}
	c.Model.Scaling = lower(c.Model.Scaling)
	if c.Model.Scaling == "" {
		c.Model.Scaling = def.Scaling
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format != "json" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
