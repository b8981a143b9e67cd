package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/remidefleurian/ochim/internal/config"
	"github.com/remidefleurian/ochim/internal/models"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, exists, err := config.Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.False(t, exists)

	def := config.Default()
	assert.Equal(t, def.Model, cfg.Model)
	assert.Equal(t, def.Data.Partitions, cfg.Data.Partitions)
	assert.Equal(t, 500.0, cfg.Evaluation.FrameMs)
	assert.True(t, cfg.Run.Combine)
	assert.Equal(t, "console", cfg.Logging.Format)
}

func TestDefaultModelMatchesModelsDefaults(t *testing.T) {
	m := models.DefaultConfig(models.AlgorithmLinearSVC)
	got := config.Default().Model
	assert.Equal(t, m.Algorithm, got.Algorithm)
	assert.Equal(t, m.C, got.C)
	assert.Equal(t, m.Tolerance, got.Tolerance)
	assert.Equal(t, m.MaxIterations, got.MaxIterations)
	assert.Equal(t, m.ClassWeight, got.ClassWeight)
	assert.Equal(t, m.Calibration, got.Calibration)
	assert.Equal(t, m.CalibrationFolds, got.CalibrationFolds)
	assert.Equal(t, m.Scaling, got.Scaling)
}

func TestLoadEmptyPathUsesDefaults(t *testing.T) {
	cfg, exists, err := config.Load("")
	require.NoError(t, err)
	assert.False(t, exists)
	assert.Equal(t, 1e-6, cfg.Model.C)
}

func TestLoadYAMLOverridesDefaults(t *testing.T) {
	path := writeFile(t, "ochim.yaml", `
model:
  c: 0.5
  calibration: Isotonic
evaluation:
  frame_ms: 250
run:
  workers: 3
  combine: false
logging:
  format: JSON
  level: DEBUG
`)
	cfg, exists, err := config.Load(path)
	require.NoError(t, err)
	assert.True(t, exists)
	assert.Equal(t, 0.5, cfg.Model.C)
	assert.Equal(t, "isotonic", cfg.Model.Calibration)
	assert.Equal(t, 250.0, cfg.Evaluation.FrameMs)
	assert.Equal(t, 3, cfg.Run.Workers)
	assert.False(t, cfg.Run.Combine)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "debug", cfg.Logging.Level)
	// untouched keys keep their defaults
	assert.Equal(t, 1000, cfg.Model.MaxIterations)
	assert.Equal(t, "balanced", cfg.Model.ClassWeight)
}

func TestLoadEmptyYAMLFile(t *testing.T) {
	path := writeFile(t, "ochim.yaml", "")
	cfg, exists, err := config.Load(path)
	require.NoError(t, err)
	assert.True(t, exists)
	assert.Equal(t, config.Default().Model, cfg.Model)
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := writeFile(t, "ochim.yaml", "model:\n  gamma: 2\n")
	_, _, err := config.Load(path)
	require.Error(t, err)

	path = writeFile(t, "ochim.toml", "[model]\ngamma = 2\n")
	_, _, err = config.Load(path)
	require.Error(t, err)
}

func TestLoadTOML(t *testing.T) {
	path := writeFile(t, "ochim.toml", `
[data]
partitions = ["p/a.csv", "p/b.csv"]
aggregated = "p/all.csv"

[model]
scaling = "standard"
`)
	cfg, _, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"p/a.csv", "p/b.csv"}, cfg.Data.Partitions)
	assert.Equal(t, "p/all.csv", cfg.Data.Aggregated)
	assert.Equal(t, "standard", cfg.Model.Scaling)
}

func TestLoadExpandsHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	path := writeFile(t, "ochim.yaml", "output:\n  dir: ~/runs/./latest\n")
	cfg, _, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "runs", "latest"), cfg.Output.Dir)
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"non-positive c", func(c *config.Config) { c.Model.C = 0 }},
		{"unknown algorithm", func(c *config.Config) { c.Model.Algorithm = "knn" }},
		{"unknown class weight", func(c *config.Config) { c.Model.ClassWeight = "auto" }},
		{"unknown calibration", func(c *config.Config) { c.Model.Calibration = "beta" }},
		{"single calibration fold", func(c *config.Config) { c.Model.CalibrationFolds = 1 }},
		{"unknown scaling", func(c *config.Config) { c.Model.Scaling = "robust" }},
		{"zero frame", func(c *config.Config) { c.Evaluation.FrameMs = 0 }},
		{"no workers", func(c *config.Config) { c.Run.Workers = 0 }},
		{"no partitions", func(c *config.Config) { c.Data.Partitions = nil }},
		{"partition is aggregate", func(c *config.Config) { c.Data.Partitions[0] = c.Data.Aggregated }},
		{"bad log level", func(c *config.Config) { c.Logging.Level = "trace" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	cfg := config.Default()
	assert.NoError(t, cfg.Validate())
}

func TestPartitionsOptionalWithoutCombine(t *testing.T) {
	cfg := config.Default()
	cfg.Data.Partitions = nil
	cfg.Run.Combine = false
	assert.NoError(t, cfg.Validate())
}

func TestCreateSampleRoundTrips(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"ochim.yaml", "nested/ochim.toml"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			require.NoError(t, config.CreateSample(path))

			cfg, exists, err := config.Load(path)
			require.NoError(t, err)
			assert.True(t, exists)

			def := config.Default()
			assert.Equal(t, def.Model, cfg.Model)
			assert.Equal(t, def.Data.Partitions, cfg.Data.Partitions)
			assert.Equal(t, def.Run, cfg.Run)
		})
	}
}

func TestEncode(t *testing.T) {
	cfg := config.Default()
	out, err := config.Encode(&cfg, config.FormatYAML)
	require.NoError(t, err)
	assert.Contains(t, string(out), "calibration: sigmoid")

	out, err = config.Encode(&cfg, config.FormatTOML)
	require.NoError(t, err)
	assert.Contains(t, string(out), "[model]")
}

func TestFormatFor(t *testing.T) {
	assert.Equal(t, config.FormatTOML, config.FormatFor("a/b.TOML"))
	assert.Equal(t, config.FormatYAML, config.FormatFor("a/b.yml"))
	assert.Equal(t, config.FormatYAML, config.FormatFor("noext"))
}
