package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Default tuning values for the ensemble decoder. The blanking distance
// comes from the Micron Sonar spec sheet; the filter lengths and the
// reflection factor were tuned against field data.
const (
	DefaultBlankingDistanceMeters = 0.35
	DefaultReflectionFactor       = 1.5
	DefaultCosEpsilon             = 1e-3
	DefaultRollingMedianLength    = 5
	DefaultClosingKernelLength    = 5
	DefaultIntensityCapacity      = 500
)

// TuningConfig holds the decoder tuning parameters loaded from a JSON
// file. Fields omitted from the JSON retain their defaults, so partial
// configs are safe.
type TuningConfig struct {
	BlankingDistanceMeters *float64 `json:"blanking_distance_meters,omitempty"`
	ReflectionFactor       *float64 `json:"reflection_factor,omitempty"`
	CosEpsilon             *float64 `json:"cos_epsilon,omitempty"`
	RollingMedianLength    *int     `json:"rolling_median_length,omitempty"`
	ClosingKernelLength    *int     `json:"closing_kernel_length,omitempty"`
	IntensityCapacity      *int     `json:"intensity_capacity,omitempty"`
}

// EmptyTuningConfig returns a TuningConfig with all fields unset. The Get*
// methods supply defaults for unset fields.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// LoadTuningConfig loads a TuningConfig from a JSON file. The file must
// have a .json extension and stay under the max file size.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// GetBlankingDistanceMeters returns the blanking distance or its default.
func (c *TuningConfig) GetBlankingDistanceMeters() float64 {
	if c == nil || c.BlankingDistanceMeters == nil {
		return DefaultBlankingDistanceMeters
	}
	return *c.BlankingDistanceMeters
}

// GetReflectionFactor returns the reflection factor or its default.
func (c *TuningConfig) GetReflectionFactor() float64 {
	if c == nil || c.ReflectionFactor == nil {
		return DefaultReflectionFactor
	}
	return *c.ReflectionFactor
}

// GetCosEpsilon returns the near-grazing cosine epsilon or its default.
func (c *TuningConfig) GetCosEpsilon() float64 {
	if c == nil || c.CosEpsilon == nil {
		return DefaultCosEpsilon
	}
	return *c.CosEpsilon
}

// GetRollingMedianLength returns the smoothing window length or its default.
func (c *TuningConfig) GetRollingMedianLength() int {
	if c == nil || c.RollingMedianLength == nil {
		return DefaultRollingMedianLength
	}
	return *c.RollingMedianLength
}

// GetClosingKernelLength returns the closing kernel length or its default.
func (c *TuningConfig) GetClosingKernelLength() int {
	if c == nil || c.ClosingKernelLength == nil {
		return DefaultClosingKernelLength
	}
	return *c.ClosingKernelLength
}

// GetIntensityCapacity returns the fixed intensity bin capacity or its default.
func (c *TuningConfig) GetIntensityCapacity() int {
	if c == nil || c.IntensityCapacity == nil {
		return DefaultIntensityCapacity
	}
	return *c.IntensityCapacity
}

// Validate checks that explicitly-set fields carry usable values.
func (c *TuningConfig) Validate() error {
	if c.BlankingDistanceMeters != nil && *c.BlankingDistanceMeters < 0 {
		return fmt.Errorf("blanking_distance_meters must be >= 0, got %f", *c.BlankingDistanceMeters)
	}
	if c.ReflectionFactor != nil && *c.ReflectionFactor <= 0 {
		return fmt.Errorf("reflection_factor must be > 0, got %f", *c.ReflectionFactor)
	}
	if c.CosEpsilon != nil && (*c.CosEpsilon <= 0 || *c.CosEpsilon >= 1) {
		return fmt.Errorf("cos_epsilon must be in (0,1), got %f", *c.CosEpsilon)
	}
	if c.RollingMedianLength != nil && (*c.RollingMedianLength < 1 || *c.RollingMedianLength%2 == 0) {
		return fmt.Errorf("rolling_median_length must be a positive odd number, got %d", *c.RollingMedianLength)
	}
	if c.ClosingKernelLength != nil && *c.ClosingKernelLength < 1 {
		return fmt.Errorf("closing_kernel_length must be >= 1, got %d", *c.ClosingKernelLength)
	}
	if c.IntensityCapacity != nil && *c.IntensityCapacity < 1 {
		return fmt.Errorf("intensity_capacity must be >= 1, got %d", *c.IntensityCapacity)
	}
	return nil
}
