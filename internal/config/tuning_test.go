package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTempConfig(t *testing.T, name, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}
	return path
}

func TestEmptyConfigUsesDefaults(t *testing.T) {
	cfg := EmptyTuningConfig()
	if got := cfg.GetBlankingDistanceMeters(); got != DefaultBlankingDistanceMeters {
		t.Errorf("blanking distance default = %f, want %f", got, DefaultBlankingDistanceMeters)
	}
	if got := cfg.GetReflectionFactor(); got != DefaultReflectionFactor {
		t.Errorf("reflection factor default = %f, want %f", got, DefaultReflectionFactor)
	}
	if got := cfg.GetRollingMedianLength(); got != DefaultRollingMedianLength {
		t.Errorf("rolling median default = %d, want %d", got, DefaultRollingMedianLength)
	}
	if got := cfg.GetIntensityCapacity(); got != DefaultIntensityCapacity {
		t.Errorf("intensity capacity default = %d, want %d", got, DefaultIntensityCapacity)
	}
}

func TestNilConfigUsesDefaults(t *testing.T) {
	var cfg *TuningConfig
	if got := cfg.GetClosingKernelLength(); got != DefaultClosingKernelLength {
		t.Errorf("closing kernel default = %d, want %d", got, DefaultClosingKernelLength)
	}
	if got := cfg.GetCosEpsilon(); got != DefaultCosEpsilon {
		t.Errorf("cos epsilon default = %f, want %f", got, DefaultCosEpsilon)
	}
}

func TestLoadTuningConfigPartial(t *testing.T) {
	path := writeTempConfig(t, "tuning.json",
		`{"blanking_distance_meters": 0.5, "rolling_median_length": 7}`)

	cfg, err := LoadTuningConfig(path)
	if err != nil {
		t.Fatalf("LoadTuningConfig failed: %v", err)
	}
	if got := cfg.GetBlankingDistanceMeters(); got != 0.5 {
		t.Errorf("blanking distance = %f, want 0.5", got)
	}
	if got := cfg.GetRollingMedianLength(); got != 7 {
		t.Errorf("rolling median = %d, want 7", got)
	}
	// Unset fields fall back to defaults.
	if got := cfg.GetReflectionFactor(); got != DefaultReflectionFactor {
		t.Errorf("reflection factor = %f, want default %f", got, DefaultReflectionFactor)
	}
}

func TestLoadTuningConfigRejectsNonJSON(t *testing.T) {
	path := writeTempConfig(t, "tuning.yaml", "blanking_distance_meters: 0.5")
	if _, err := LoadTuningConfig(path); err == nil {
		t.Error("expected error for non-json extension")
	}
}

func TestLoadTuningConfigMissingFile(t *testing.T) {
	if _, err := LoadTuningConfig(filepath.Join(t.TempDir(), "absent.json")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"negative blanking", `{"blanking_distance_meters": -1}`},
		{"zero reflection factor", `{"reflection_factor": 0}`},
		{"even median window", `{"rolling_median_length": 4}`},
		{"zero kernel", `{"closing_kernel_length": 0}`},
		{"cos epsilon out of range", `{"cos_epsilon": 1.5}`},
		{"zero capacity", `{"intensity_capacity": 0}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeTempConfig(t, "tuning.json", tt.body)
			if _, err := LoadTuningConfig(path); err == nil {
				t.Errorf("expected validation error for %s", tt.body)
			}
		})
	}
}
