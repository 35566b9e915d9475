// Package config holds the run configuration: flag parsing on top of an
// optional YAML file, defaults, and fatal-at-startup validation.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"

	"layoutdedupe/fingerprint"

	"gopkg.in/yaml.v3"
)

// Config is the full option set of a clustering run. Flags override file
// values; defaults fill whatever remains unset.
type Config struct {
	InputDir         string  `yaml:"input_dir"`
	Glob             string  `yaml:"glob"`
	OutputCSV        string  `yaml:"output_csv"`
	ContactSheetsDir string  `yaml:"contact_sheets_dir"`
	ClustersDir      string  `yaml:"clusters_dir"`
	CacheDB          string  `yaml:"cache_db"`
	SiteTag          string  `yaml:"site_tag"`
	ResizeWidth      int     `yaml:"resize_width"`
	CropTop          int     `yaml:"crop_top"`
	CropBottom       int     `yaml:"crop_bottom"`
	MaskText         bool    `yaml:"mask_text"`
	OCRLang          string  `yaml:"ocr_lang"`
	EdgeSigSize      int     `yaml:"edge_sig_size"`
	Eps              float64 `yaml:"eps"`
	MinNeighbors     int     `yaml:"min_neighbors"`
	Alpha            float64 `yaml:"alpha"`
	Beta             float64 `yaml:"beta"`
	Gamma            float64 `yaml:"gamma"`
	MaxImages        int     `yaml:"max_images"`
	Workers          int     `yaml:"workers"`
	Prebucket        bool    `yaml:"prebucket"`
	PrefixBits       int     `yaml:"prefix_bits"`
	Force            bool    `yaml:"force"`
	Debug            bool    `yaml:"debug"`
	LogFile          string  `yaml:"logfile"`
}

// Defaults fills unset fields with the tuned defaults for screenshot
// corpora.
func (c *Config) Defaults() {
	if c.Glob == "" {
		c.Glob = "*.png"
	}
	if c.OutputCSV == "" {
		c.OutputCSV = "layout_clusters.csv"
	}
	if c.ResizeWidth <= 0 {
		c.ResizeWidth = 1024
	}
	if c.OCRLang == "" {
		c.OCRLang = "eng"
	}
	if c.EdgeSigSize <= 0 {
		c.EdgeSigSize = 64
	}
	if c.Eps == 0 {
		c.Eps = 0.33
	}
	if c.MinNeighbors <= 0 {
		c.MinNeighbors = 1
	}
	if c.Alpha == 0 && c.Beta == 0 && c.Gamma == 0 {
		c.Alpha = fingerprint.DefaultWeights.Alpha
		c.Beta = fingerprint.DefaultWeights.Beta
		c.Gamma = fingerprint.DefaultWeights.Gamma
	}
	if c.Workers <= 0 {
		c.Workers = OptimalWorkers()
	}
	if c.PrefixBits <= 0 {
		c.PrefixBits = 16
	}
}

// OptimalWorkers returns the worker count used when none is configured.
// Image decoding goes through cgo, where saturating every core backfires.
func OptimalWorkers() int {
	n := (runtime.NumCPU() * 3) / 4
	if n < 1 {
		n = 1
	}
	return n
}

// Weights returns the composite distance weight triple.
func (c *Config) Weights() fingerprint.Weights {
	return fingerprint.Weights{Alpha: c.Alpha, Beta: c.Beta, Gamma: c.Gamma}
}

// Validate rejects configurations a clustering run cannot start with.
func (c *Config) Validate() error {
	if c.InputDir == "" {
		return fmt.Errorf("input directory is required")
	}
	info, err := os.Stat(c.InputDir)
	if err != nil {
		return fmt.Errorf("cannot access input directory %s: %w", c.InputDir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("input path is not a directory: %s", c.InputDir)
	}
	if c.OutputCSV == "" {
		return fmt.Errorf("output CSV path is required")
	}
	if parent := filepath.Dir(c.OutputCSV); parent != "" {
		if info, err := os.Stat(parent); err != nil || !info.IsDir() {
			return fmt.Errorf("output directory does not exist: %s", parent)
		}
	}
	return c.ValidateParams()
}

// ValidateParams checks the tuning options shared by every command,
// independent of any filesystem state.
func (c *Config) ValidateParams() error {
	if c.Eps <= 0 || c.Eps > 1 {
		return fmt.Errorf("eps must be in (0,1], got %g", c.Eps)
	}
	if err := c.Weights().Validate(); err != nil {
		return err
	}
	if c.ResizeWidth < 16 {
		return fmt.Errorf("resize width must be at least 16, got %d", c.ResizeWidth)
	}
	if c.EdgeSigSize < 8 || c.EdgeSigSize > 256 {
		return fmt.Errorf("edge signature size must be in [8,256], got %d", c.EdgeSigSize)
	}
	if c.CropTop < 0 || c.CropBottom < 0 {
		return fmt.Errorf("crops must be non-negative (top=%d, bottom=%d)", c.CropTop, c.CropBottom)
	}
	if c.MinNeighbors < 1 {
		return fmt.Errorf("min neighbors must be at least 1, got %d", c.MinNeighbors)
	}
	if c.PrefixBits < 1 || c.PrefixBits > 64 {
		return fmt.Errorf("prefix bits must be in [1,64], got %d", c.PrefixBits)
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Workers)
	}
	return nil
}

// FingerprintParams is a signature of every option that changes fingerprint
// values. Cached rows recorded under a different signature are stale.
func (c *Config) FingerprintParams() string {
	return fmt.Sprintf("w%d:t%d:b%d:m%t:e%d", c.ResizeWidth, c.CropTop, c.CropBottom, c.MaskText, c.EdgeSigSize)
}

// LoadFile reads a YAML config file.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("cannot parse config file %s: %w", path, err)
	}
	return cfg, nil
}

// FromArgs builds the configuration from the parsed argument map: the
// --config file when present, then defaults for whatever it left unset, then
// flags on top. Applying flags last means an explicit flag value, zero
// included, is never mistaken for unset and replaced by a default; it
// reaches validation as given.
func FromArgs(args map[string]string) (*Config, error) {
	cfg := &Config{}
	if path, ok := args["config"]; ok && path != "" {
		loaded, err := LoadFile(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	cfg.Defaults()
	if err := cfg.applyArgs(args); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyArgs(args map[string]string) error {
	var err error
	setString := func(key string, dst *string) {
		if v, ok := args[key]; ok {
			*dst = v
		}
	}
	setInt := func(key string, dst *int) {
		v, ok := args[key]
		if !ok || err != nil {
			return
		}
		n, perr := strconv.Atoi(v)
		if perr != nil {
			err = fmt.Errorf("invalid value for --%s: %q", key, v)
			return
		}
		*dst = n
	}
	setFloat := func(key string, dst *float64) {
		v, ok := args[key]
		if !ok || err != nil {
			return
		}
		f, perr := strconv.ParseFloat(v, 64)
		if perr != nil {
			err = fmt.Errorf("invalid value for --%s: %q", key, v)
			return
		}
		*dst = f
	}
	setBool := func(key string, dst *bool) {
		if v, ok := args[key]; ok {
			*dst = v != "false"
		}
	}

	setString("input-dir", &c.InputDir)
	setString("glob", &c.Glob)
	setString("output-csv", &c.OutputCSV)
	setString("contact-sheets-dir", &c.ContactSheetsDir)
	setString("clusters-dir", &c.ClustersDir)
	setString("cache-db", &c.CacheDB)
	setString("site-tag", &c.SiteTag)
	setString("ocr-lang", &c.OCRLang)
	setString("logfile", &c.LogFile)
	setInt("resize-width", &c.ResizeWidth)
	setInt("crop-top", &c.CropTop)
	setInt("crop-bottom", &c.CropBottom)
	setInt("edge-sig-size", &c.EdgeSigSize)
	setInt("min-neighbors", &c.MinNeighbors)
	setInt("max-images", &c.MaxImages)
	setInt("workers", &c.Workers)
	setInt("prefix-bits", &c.PrefixBits)
	setFloat("eps", &c.Eps)
	setFloat("alpha", &c.Alpha)
	setFloat("beta", &c.Beta)
	setFloat("gamma", &c.Gamma)
	setBool("mask-text", &c.MaskText)
	setBool("prebucket", &c.Prebucket)
	setBool("force", &c.Force)
	setBool("debug", &c.Debug)
	return err
}
