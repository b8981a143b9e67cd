package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

//go:embed sample_config.yaml
var sampleConfig string

// Data locates the fold partitions and the aggregated dataset.
type Data struct {
	Partitions []string `yaml:"partitions" toml:"partitions"`
	Aggregated string   `yaml:"aggregated" toml:"aggregated"`
}

// Output is the root of the per-fold exports.
type Output struct {
	Dir string `yaml:"dir" toml:"dir"`
}

// Model configures the calibrated linear classifier.
type Model struct {
	Algorithm        string  `yaml:"algorithm" toml:"algorithm"`
	C                float64 `yaml:"c" toml:"c"`
	Tolerance        float64 `yaml:"tolerance" toml:"tolerance"`
	MaxIterations    int     `yaml:"max_iterations" toml:"max_iterations"`
	ClassWeight      string  `yaml:"class_weight" toml:"class_weight"`
	Calibration      string  `yaml:"calibration" toml:"calibration"`
	CalibrationFolds int     `yaml:"calibration_folds" toml:"calibration_folds"`
	Scaling          string  `yaml:"scaling" toml:"scaling"`
}

type Evaluation struct {
	FrameMs float64 `yaml:"frame_ms" toml:"frame_ms"`
}

type Run struct {
	Workers int  `yaml:"workers" toml:"workers"`
	Combine bool `yaml:"combine" toml:"combine"`
}

type Logging struct {
	Format string `yaml:"format" toml:"format"`
	Level  string `yaml:"level" toml:"level"`
}

type Config struct {
	Data       Data       `yaml:"data" toml:"data"`
	Output     Output     `yaml:"output" toml:"output"`
	Model      Model      `yaml:"model" toml:"model"`
	Evaluation Evaluation `yaml:"evaluation" toml:"evaluation"`
	Run        Run        `yaml:"run" toml:"run"`
	Logging    Logging    `yaml:"logging" toml:"logging"`
}

// Format is a configuration file syntax.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// FormatFor picks the syntax from the file extension; anything that is not
// .toml is read as YAML.
func FormatFor(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		return FormatTOML
	}
	return FormatYAML
}

// Load reads the configuration at path over the defaults. A missing file is
// not an error: the defaults are returned and exists is false. An empty path
// uses the defaults directly.
func Load(path string) (*Config, bool, error) {
	cfg := Default()

	exists := false
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return nil, false, err
		}
		raw, err := os.ReadFile(expanded)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, false, fmt.Errorf("open config: %w", err)
		default:
			exists = true
			if err := decode(raw, FormatFor(expanded), &cfg); err != nil {
				return nil, false, fmt.Errorf("parse config %s: %w", expanded, err)
			}
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, false, err
	}
	return &cfg, exists, nil
}

func decode(raw []byte, format Format, cfg *Config) error {
	switch format {
	case FormatTOML:
		decoder := toml.NewDecoder(bytes.NewReader(raw))
		decoder.DisallowUnknownFields()
		return decoder.Decode(cfg)
	default:
		decoder := yaml.NewDecoder(bytes.NewReader(raw))
		decoder.KnownFields(true)
		if err := decoder.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return err
		}
		return nil
	}
}

// Encode renders cfg in the given syntax.
func Encode(cfg *Config, format Format) ([]byte, error) {
	switch format {
	case FormatTOML:
		return toml.Marshal(cfg)
	default:
		return yaml.Marshal(cfg)
	}
}

// Sample returns the annotated sample configuration.
func Sample() string {
	return sampleConfig
}

// CreateSample writes a sample configuration file to path. TOML paths get
// the defaults encoded as TOML; other paths get the annotated YAML sample.
func CreateSample(path string) error {
	sample := []byte(sampleConfig)
	if FormatFor(path) == FormatTOML {
		cfg := Default()
		encoded, err := Encode(&cfg, FormatTOML)
		if err != nil {
			return fmt.Errorf("encode sample config: %w", err)
		}
		sample = encoded
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, sample, 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	return filepath.Clean(pathValue), nil
}
