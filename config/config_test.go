package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rit128.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default().Validate() error = %v", err)
	}
	if cfg.Baud != 1500000 {
		t.Errorf("Baud = %d, want 1500000", cfg.Baud)
	}
	if cfg.BlankRepeats != 3 {
		t.Errorf("BlankRepeats = %d, want 3", cfg.BlankRepeats)
	}
	if cfg.Extension != ".pgm" {
		t.Errorf("Extension = %q, want .pgm", cfg.Extension)
	}
}

func TestLoadOverlaysDefaults(t *testing.T) {
	path := writeConfig(t, `
device = " /dev/ttyACM1 "
dir = "/tmp/frames"
poll_interval = "1s"
preview = false
metrics_addr = "127.0.0.1:9128"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Device != "/dev/ttyACM1" {
		t.Fatalf("unexpected device: %q", cfg.Device)
	}
	if cfg.Dir != "/tmp/frames" {
		t.Fatalf("unexpected dir: %q", cfg.Dir)
	}
	if cfg.PollInterval != time.Second {
		t.Fatalf("unexpected poll interval: %v", cfg.PollInterval)
	}
	if cfg.Preview {
		t.Fatalf("expected preview disabled")
	}
	if cfg.MetricsAddr != "127.0.0.1:9128" {
		t.Fatalf("unexpected metrics addr: %q", cfg.MetricsAddr)
	}
	// Keys left out keep their defaults.
	def := Default()
	if cfg.Baud != def.Baud || cfg.BlankRepeats != def.BlankRepeats || cfg.FFmpeg != def.FFmpeg {
		t.Fatalf("defaults not kept: %+v", cfg)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"syntax", `device = `, "config: load"},
		{"unknown key", `speed = 9600`, "unknown key"},
		{"bad duration", `poll_interval = "soon"`, "poll_interval"},
		{"zero baud", `baud = 0`, "baud"},
		{"no blanking", `blank_repeats = 0`, "blank_repeats"},
		{"empty device", `device = "  "`, "device"},
		{"empty extension", `extension = ""`, "extension"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			if err == nil {
				t.Fatal("Load() should fail")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Load() error = %q, want it to mention %q", err, tt.want)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Fatal("Load() should fail for a missing file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"device", func(c *Config) { c.Device = "" }},
		{"baud", func(c *Config) { c.Baud = -1 }},
		{"dir", func(c *Config) { c.Dir = "" }},
		{"extension", func(c *Config) { c.Extension = "" }},
		{"blank repeats", func(c *Config) { c.BlankRepeats = 0 }},
		{"poll interval", func(c *Config) { c.PollInterval = 0 }},
	}
	for _, tt := range tests {
		cfg := Default()
		tt.mutate(&cfg)
		if err := cfg.Validate(); err == nil {
			t.Errorf("%s: Validate() should fail", tt.name)
		}
	}
}
