package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func validConfig(t *testing.T) *Config {
	t.Helper()
	cfg := &Config{InputDir: t.TempDir()}
	cfg.Defaults()
	cfg.OutputCSV = filepath.Join(t.TempDir(), "out.csv")
	return cfg
}

func TestDefaults(t *testing.T) {
	cfg := &Config{}
	cfg.Defaults()

	if cfg.Glob != "*.png" {
		t.Errorf("Glob = %q, want *.png", cfg.Glob)
	}
	if cfg.ResizeWidth != 1024 {
		t.Errorf("ResizeWidth = %d, want 1024", cfg.ResizeWidth)
	}
	if cfg.EdgeSigSize != 64 {
		t.Errorf("EdgeSigSize = %d, want 64", cfg.EdgeSigSize)
	}
	if cfg.Eps != 0.33 {
		t.Errorf("Eps = %g, want 0.33", cfg.Eps)
	}
	if cfg.MinNeighbors != 1 {
		t.Errorf("MinNeighbors = %d, want 1", cfg.MinNeighbors)
	}
	if cfg.Alpha != 0.55 || cfg.Beta != 0.35 || cfg.Gamma != 0.10 {
		t.Errorf("weights = %g/%g/%g, want 0.55/0.35/0.10", cfg.Alpha, cfg.Beta, cfg.Gamma)
	}
	if cfg.Workers < 1 {
		t.Errorf("Workers = %d, want >= 1", cfg.Workers)
	}
}

func TestDefaultsKeepExplicitWeights(t *testing.T) {
	cfg := &Config{Alpha: 1}
	cfg.Defaults()
	if cfg.Alpha != 1 || cfg.Beta != 0 || cfg.Gamma != 0 {
		t.Errorf("explicit weights overwritten: %g/%g/%g", cfg.Alpha, cfg.Beta, cfg.Gamma)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"missing input dir", func(c *Config) { c.InputDir = "" }, "input directory"},
		{"input dir does not exist", func(c *Config) { c.InputDir = filepath.Join(c.InputDir, "nope") }, "cannot access"},
		{"eps too large", func(c *Config) { c.Eps = 1.5 }, "eps"},
		{"eps zero", func(c *Config) { c.Eps = 0 }, "eps"},
		{"negative weight", func(c *Config) { c.Alpha = -0.5 }, "weight"},
		{"all weights zero", func(c *Config) { c.Alpha, c.Beta, c.Gamma = 0, 0, 0 }, "weight"},
		{"resize width too small", func(c *Config) { c.ResizeWidth = 8 }, "resize width"},
		{"edge sig out of range", func(c *Config) { c.EdgeSigSize = 4 }, "edge signature"},
		{"negative crop", func(c *Config) { c.CropTop = -1 }, "crops"},
		{"output dir missing", func(c *Config) { c.OutputCSV = filepath.Join(c.InputDir, "nope", "out.csv") }, "output directory"},
		{"prefix bits out of range", func(c *Config) { c.PrefixBits = 70 }, "prefix bits"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig(t)
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	content := `input_dir: /shots
eps: 0.25
mask_text: true
site_tag: example.com
crop_top: 80
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.InputDir != "/shots" {
		t.Errorf("InputDir = %q", cfg.InputDir)
	}
	if cfg.Eps != 0.25 {
		t.Errorf("Eps = %g", cfg.Eps)
	}
	if !cfg.MaskText {
		t.Error("MaskText not set")
	}
	if cfg.SiteTag != "example.com" {
		t.Errorf("SiteTag = %q", cfg.SiteTag)
	}
	if cfg.CropTop != 80 {
		t.Errorf("CropTop = %d", cfg.CropTop)
	}
}

func TestLoadFileBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("input_dir: [unterminated"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFile(path); err == nil {
		t.Error("expected parse error")
	}
}

func TestFromArgsFlagOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	if err := os.WriteFile(path, []byte("eps: 0.25\ninput_dir: /from-file\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := FromArgs(map[string]string{
		"config": path,
		"eps":    "0.4",
	})
	if err != nil {
		t.Fatalf("FromArgs: %v", err)
	}
	if cfg.Eps != 0.4 {
		t.Errorf("Eps = %g, want flag value 0.4", cfg.Eps)
	}
	if cfg.InputDir != "/from-file" {
		t.Errorf("InputDir = %q, want file value", cfg.InputDir)
	}
	// Defaults still fill what neither source set.
	if cfg.Glob != "*.png" {
		t.Errorf("Glob = %q", cfg.Glob)
	}
}

func TestFromArgsInvalidValues(t *testing.T) {
	for _, args := range []map[string]string{
		{"eps": "not-a-number"},
		{"resize-width": "wide"},
		{"config": "/nonexistent/run.yaml"},
	} {
		if _, err := FromArgs(args); err == nil {
			t.Errorf("FromArgs(%v) succeeded, want error", args)
		}
	}
}

func TestFromArgsKeepsExplicitZeros(t *testing.T) {
	// An explicit zero flag must survive to validation, not be silently
	// replaced by a default.
	cfg, err := FromArgs(map[string]string{"eps": "0"})
	if err != nil {
		t.Fatalf("FromArgs: %v", err)
	}
	if cfg.Eps != 0 {
		t.Errorf("Eps = %g, explicit zero was replaced by a default", cfg.Eps)
	}
	if err := cfg.ValidateParams(); err == nil {
		t.Error("eps=0 must fail validation")
	}

	cfg, err = FromArgs(map[string]string{"alpha": "0", "beta": "0", "gamma": "0"})
	if err != nil {
		t.Fatalf("FromArgs: %v", err)
	}
	if cfg.Alpha != 0 || cfg.Beta != 0 || cfg.Gamma != 0 {
		t.Errorf("weights = %g/%g/%g, explicit zeros were replaced", cfg.Alpha, cfg.Beta, cfg.Gamma)
	}
	if err := cfg.ValidateParams(); err == nil {
		t.Error("zero weight sum must fail validation")
	}
}

func TestFromArgsPartialWeightOverride(t *testing.T) {
	cfg, err := FromArgs(map[string]string{"alpha": "0.7"})
	if err != nil {
		t.Fatalf("FromArgs: %v", err)
	}
	if cfg.Alpha != 0.7 || cfg.Beta != 0.35 || cfg.Gamma != 0.10 {
		t.Errorf("weights = %g/%g/%g, want 0.7 with defaulted beta/gamma", cfg.Alpha, cfg.Beta, cfg.Gamma)
	}
}

func TestValidateParams(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(c *Config) {}, ""},
		{"eps zero", func(c *Config) { c.Eps = 0 }, "eps"},
		{"zero weight sum", func(c *Config) { c.Alpha, c.Beta, c.Gamma = 0, 0, 0 }, "weight"},
		{"edge sig out of range", func(c *Config) { c.EdgeSigSize = 300 }, "edge signature"},
		{"workers zero", func(c *Config) { c.Workers = 0 }, "workers"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// No input or output paths: ValidateParams never touches the
			// filesystem, which is what the compare command relies on.
			cfg := &Config{}
			cfg.Defaults()
			tt.mutate(cfg)
			err := cfg.ValidateParams()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("ValidateParams() = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("ValidateParams() = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestFingerprintParams(t *testing.T) {
	a := &Config{ResizeWidth: 1024, EdgeSigSize: 64}
	b := &Config{ResizeWidth: 1024, EdgeSigSize: 64, MaskText: true}
	if a.FingerprintParams() == b.FingerprintParams() {
		t.Error("masking change must invalidate the params signature")
	}
	if a.FingerprintParams() != (&Config{ResizeWidth: 1024, EdgeSigSize: 64}).FingerprintParams() {
		t.Error("identical options must share a signature")
	}
}
