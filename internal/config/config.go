// Package config holds correlf's deployment-scoped configuration,
// generalized from the teacher repo's config.go: the coderec
// enable/location switch, catalog storage location, MinHash
// parameters, upload limits, and — per spec.md §4.9 — the comparator's
// two weight maps and rating thresholds, all independently
// overridable rather than hard-coded at the call site.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Axis key names mirror catalog.RepresentationType's string values
// plus the comparator's three reserved, never-persisted markers
// (spec.md §3). Defined here (rather than imported from
// internal/catalog) so this package stays free of a dependency on the
// data-model package; internal/compare is the seam that reconciles
// the two.
const (
	AxisELFHeaderVector     = "ELF_HEADER_VECTOR"
	AxisStringMinHash       = "STRING_MINHASH"
	AxisSectionSizeVector   = "SECTION_SIZE_VECTOR"
	AxisCodeRegionList      = "CODE_REGION_LIST"
	AxisProgramHeaderVector = "PROGRAM_HEADER_VECTOR"
	AxisRegionCountSim      = "REGION_COUNT_SIM"
	AxisAvgRegionLengthSim  = "AVG_REGION_LENGTH_SIM"
	AxisNone                = "NONE"
)

// Config holds the configuration values for correlf.
type Config struct {
	// CoderecEnabled gates the native classifier bridge (C5). When
	// false, CODE_REGION_LIST is always empty for every input.
	CoderecEnabled bool `json:"coderec_enabled"`
	// CoderecLocation is a filesystem path to the native classifier
	// executable, or the literal "builtin:entropy" to select the
	// pure-Go entropy-windowed fallback classifier.
	CoderecLocation string `json:"coderec_location"`

	// ReadelfPath is the external readelf binary used as a fallback
	// program-header source (C4) when the in-process ELF reader
	// cannot be used.
	ReadelfPath string `json:"readelf_path"`

	// CatalogPath is the JSONStore document path.
	CatalogPath string `json:"catalog_path"`

	// MinHash parameters. Fixed for the lifetime of a deployment;
	// changing them invalidates every previously stored
	// STRING_MINHASH blob.
	MinHashLength         int   `json:"minhash_length"`
	MinHashDictionarySize int   `json:"minhash_dictionary_size"`
	MinHashSeed           int64 `json:"minhash_seed"`

	// UploadSizeLimit caps the size, in bytes, of a single multipart
	// upload accepted by the HTTP surface. Zero means unlimited.
	UploadSizeLimit int64 `json:"upload_size_limit"`

	// StringMinLength is the minimum printable-run length the string
	// scanner (C2) emits.
	StringMinLength int `json:"string_min_length"`

	// Workers bounds the ingest fan-out pool size (IngestZip,
	// IngestDir). Analyze's ranking fan-out is not bounded by it.
	Workers int `json:"workers"`

	// WeightsFull and WeightsFallback are the two weighting tiers
	// from spec.md §4.9, keyed by the Axis* constants above. Both
	// must sum to 1 ± 1e-9.
	WeightsFull     map[string]float64 `json:"weights_full"`
	WeightsFallback map[string]float64 `json:"weights_fallback"`

	// RatingHigh and RatingLow are the score thresholds separating
	// HIGH/MEDIUM/LOW ratings (spec.md §4.9).
	RatingHigh float64 `json:"rating_high"`
	RatingLow  float64 `json:"rating_low"`
}

// DefaultConfig returns correlf's default configuration, with the
// weight maps from spec.md §4.9.
func DefaultConfig() *Config {
	return &Config{
		CoderecEnabled:  true,
		CoderecLocation: "builtin:entropy",
		ReadelfPath:     "readelf",

		CatalogPath: "correlf-catalog.json",

		MinHashLength:         128,
		MinHashDictionarySize: 50000,
		MinHashSeed:           123456789,

		UploadSizeLimit: 256 << 20, // 256 MiB

		StringMinLength: 4,
		Workers:         0, // 0 means "runtime.NumCPU(), floor 2"

		WeightsFull: map[string]float64{
			AxisELFHeaderVector:     0.032,
			AxisStringMinHash:       0.125,
			AxisSectionSizeVector:   0.338,
			AxisCodeRegionList:      0.190,
			AxisRegionCountSim:      0.021,
			AxisAvgRegionLengthSim:  0.007,
			AxisProgramHeaderVector: 0.277,
			AxisNone:                0.010,
		},
		WeightsFallback: map[string]float64{
			AxisStringMinHash:       0.100,
			AxisCodeRegionList:      0.154,
			AxisRegionCountSim:      0.048,
			AxisAvgRegionLengthSim:  0.009,
			AxisProgramHeaderVector: 0.689,
		},

		RatingHigh: 0.6094,
		RatingLow:  0.30,
	}
}

// LoadConfig loads the configuration from standard locations, falling
// back to DefaultConfig when no config file is found.
func LoadConfig() (*Config, error) {
	config := DefaultConfig()

	path := FindConfigFile()
	if path == "" {
		return config, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return config, fmt.Errorf("could not open config file: %w", err)
	}

	if err := json.Unmarshal(data, config); err != nil {
		return config, fmt.Errorf("could not decode config file: %w", err)
	}

	return config, nil
}

// FindConfigFile looks for a config file in standard locations.
func FindConfigFile() string {
	if _, err := os.Stat(".correlfrc"); err == nil {
		return ".correlfrc"
	}
	if _, err := os.Stat(".correlf.json"); err == nil {
		return ".correlf.json"
	}

	home, err := os.UserHomeDir()
	if err == nil {
		paths := []string{
			filepath.Join(home, ".correlfrc"),
			filepath.Join(home, ".correlf.json"),
			filepath.Join(home, ".config", "correlf", "config.json"),
		}

		for _, p := range paths {
			if _, err := os.Stat(p); err == nil {
				return p
			}
		}
	}

	return ""
}

// SaveConfig saves configuration to a file.
func SaveConfig(config *Config, path string) error {
	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// CreateSampleConfig creates a sample configuration file at path with
// the default settings.
func CreateSampleConfig(path string) error {
	config := DefaultConfig()
	return SaveConfig(config, path)
}
