package config

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/banshee-data/featurecloud/internal/pointcloud"
)

// DefaultConfigPath is the path to the canonical recorder defaults file.
const DefaultConfigPath = "config/recorder.defaults.json"

// RecorderConfig controls how a capture session is aggregated and saved.
// Every field is optional; the Get* methods supply defaults for omitted
// values, so partial files are safe.
type RecorderConfig struct {
	ZScore                *float64 `json:"zscore,omitempty"`
	Modes                 []string `json:"modes,omitempty"`
	OutputDir             *string  `json:"output_dir,omitempty"`
	Preview               *bool    `json:"preview,omitempty"`
	RequireNormalTracking *bool    `json:"require_normal_tracking,omitempty"`
}

func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrString(v string) *string    { return &v }

// EmptyRecorderConfig returns a RecorderConfig with all fields unset.
func EmptyRecorderConfig() *RecorderConfig {
	return &RecorderConfig{}
}

// DefaultRecorderConfig returns a RecorderConfig with every field set to its default.
func DefaultRecorderConfig() *RecorderConfig {
	return &RecorderConfig{
		ZScore:                ptrFloat64(pointcloud.DefaultZScore),
		Modes:                 []string{pointcloud.ModeDistanceFilter.String()},
		OutputDir:             ptrString("recordings"),
		Preview:               ptrBool(false),
		RequireNormalTracking: ptrBool(true),
	}
}

// LoadRecorderConfig loads a RecorderConfig from a JSON file. The file must
// have a .json extension and be at most 1MB.
func LoadRecorderConfig(path string) (*RecorderConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyRecorderConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// MustLoadDefaultConfig loads DefaultConfigPath, searching the current
// directory and its parents. Panics if the file cannot be loaded; intended
// for test setup.
func MustLoadDefaultConfig() *RecorderConfig {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,
		"../../" + DefaultConfigPath,
		"../../../" + DefaultConfigPath,
	}
	for _, path := range candidates {
		if cfg, err := LoadRecorderConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *RecorderConfig) Validate() error {
	if c.ZScore != nil {
		if z := *c.ZScore; math.IsNaN(z) || math.IsInf(z, 0) || z <= 0 {
			return fmt.Errorf("zscore must be a positive finite number, got %v", z)
		}
	}
	if _, err := pointcloud.ParseModes(c.Modes); err != nil {
		return err
	}
	if c.OutputDir != nil && *c.OutputDir == "" {
		return fmt.Errorf("output_dir must not be empty")
	}
	return nil
}

// GetZScore returns the distance-filter z-score or the default.
func (c *RecorderConfig) GetZScore() float64 {
	if c.ZScore == nil {
		return pointcloud.DefaultZScore
	}
	return *c.ZScore
}

// GetModes returns the parsed export modes. An unset or empty list, or one
// that fails to parse, yields the distance filter alone.
func (c *RecorderConfig) GetModes() []pointcloud.Mode {
	modes, err := pointcloud.ParseModes(c.Modes)
	if err != nil || len(modes) == 0 {
		return []pointcloud.Mode{pointcloud.ModeDistanceFilter}
	}
	return modes
}

// GetOutputDir returns the root directory for saved sessions.
func (c *RecorderConfig) GetOutputDir() string {
	if c.OutputDir == nil || *c.OutputDir == "" {
		return "recordings"
	}
	return *c.OutputDir
}

// GetPreview reports whether preview renders are written next to exports.
func (c *RecorderConfig) GetPreview() bool {
	if c.Preview == nil {
		return false
	}
	return *c.Preview
}

// GetRequireNormalTracking reports whether frames without normal tracking
// are skipped.
func (c *RecorderConfig) GetRequireNormalTracking() bool {
	if c.RequireNormalTracking == nil {
		return true
	}
	return *c.RequireNormalTracking
}

// SetZScore overrides the z-score.
func (c *RecorderConfig) SetZScore(z float64) { c.ZScore = ptrFloat64(z) }

// SetOutputDir overrides the output root.
func (c *RecorderConfig) SetOutputDir(dir string) { c.OutputDir = ptrString(dir) }

// SetPreview overrides preview rendering.
func (c *RecorderConfig) SetPreview(v bool) { c.Preview = ptrBool(v) }
