// Copyright 2026 Nick White.
// Use of this source code is governed by the GPLv3
// license that can be found in the LICENSE file.

package canopy

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"rescribe.xyz/canopy/porosity"
)

// Settings holds everything that can be set in a settings file.
// Command line flags override these.
type Settings struct {
	Porosity struct {
		SubSamplingSize   int       `yaml:"subSamplingSize"`
		RejectionFraction float64   `yaml:"rejectionFraction"`
		RenderOverlay     bool      `yaml:"renderOverlay"`
		Thresholds        []float64 `yaml:"thresholds"`
		ToneMap           string    `yaml:"toneMap"`
		Workers           int       `yaml:"workers"`
	} `yaml:"porosity"`

	Undistort struct {
		// Skip analyses photos without undistorting them
		Skip bool `yaml:"skip"`
		// Calibrate runs CalibrationCommand before undistorting
		Calibrate          bool     `yaml:"calibrate"`
		CalibrationCommand []string `yaml:"calibrationCommand"`
		CalibrationFile    string   `yaml:"calibrationFile"`
	} `yaml:"undistort"`

	Storage struct {
		Region string `yaml:"region"`
		Bucket string `yaml:"bucket"`
		Prefix string `yaml:"prefix"`
	} `yaml:"storage"`
}

// DefaultSettings returns the settings used when there is no
// settings file
func DefaultSettings() *Settings {
	s := &Settings{}
	s.Porosity.SubSamplingSize = porosity.DefaultSubSamplingSize
	s.Porosity.Thresholds = append([]float64(nil), porosity.DefaultThresholds...)
	s.Porosity.ToneMap = "ocean"
	s.Undistort.CalibrationFile = "calibration.xml"
	s.Storage.Region = defaultAwsRegion
	s.Storage.Bucket = storagePhotos
	return s
}

// LoadSettings loads settings from a YAML file. Anything not set in
// the file keeps its default value, and if the file doesn't exist
// the default settings are returned.
func LoadSettings(path string) (*Settings, error) {
	s := DefaultSettings()

	b, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("Error reading settings file %s: %w", path, err)
	}

	err = yaml.Unmarshal(b, s)
	if err != nil {
		return nil, fmt.Errorf("Error parsing settings file %s: %w", path, err)
	}

	return s, nil
}

// SaveSettings writes settings to a YAML file
func SaveSettings(s *Settings, path string) error {
	err := os.MkdirAll(filepath.Dir(path), 0755)
	if err != nil {
		return fmt.Errorf("Error creating settings directory: %w", err)
	}

	b, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("Error encoding settings: %w", err)
	}

	err = os.WriteFile(path, b, 0644)
	if err != nil {
		return fmt.Errorf("Error writing settings file %s: %w", path, err)
	}
	return nil
}

// PorosityConfig validates the porosity settings
func (s *Settings) PorosityConfig() (porosity.Config, error) {
	return porosity.NewConfig(porosity.Params{
		SubSamplingSize:   s.Porosity.SubSamplingSize,
		RejectionFraction: s.Porosity.RejectionFraction,
		RenderOverlay:     s.Porosity.RenderOverlay,
		Thresholds:        s.Porosity.Thresholds,
		ToneMap:           s.Porosity.ToneMap,
		Workers:           s.Porosity.Workers,
	})
}
