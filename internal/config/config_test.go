package config

import (
	"math"
	"os"
	"path/filepath"
	"testing"
)

func sumWeights(m map[string]float64) float64 {
	var total float64
	for _, w := range m {
		total += w
	}
	return total
}

func TestDefaultWeightsSumToOne(t *testing.T) {
	cfg := DefaultConfig()

	const eps = 1e-9
	if got := sumWeights(cfg.WeightsFull); math.Abs(got-1) > eps {
		t.Errorf("WeightsFull sums to %v, want 1", got)
	}
	if got := sumWeights(cfg.WeightsFallback); math.Abs(got-1) > eps {
		t.Errorf("WeightsFallback sums to %v, want 1", got)
	}
}

func TestSaveLoadConfigRoundTrip(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "correlf_config_test")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(tmpDir)

	cfg := DefaultConfig()
	cfg.WeightsFull[AxisStringMinHash] = 0.5

	path := filepath.Join(tmpDir, "config.json")
	if err := SaveConfig(cfg, path); err != nil {
		t.Fatalf("SaveConfig: %v", err)
	}

	old, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(tmpDir); err != nil {
		t.Fatal(err)
	}
	defer os.Chdir(old)

	if err := os.Rename(path, filepath.Join(tmpDir, ".correlf.json")); err != nil {
		t.Fatal(err)
	}

	loaded, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if loaded.WeightsFull[AxisStringMinHash] != 0.5 {
		t.Errorf("WeightsFull[%s] = %v, want 0.5", AxisStringMinHash, loaded.WeightsFull[AxisStringMinHash])
	}
}
