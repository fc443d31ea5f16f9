// Package config loads the sender settings from a TOML file.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Config holds every setting of a streaming run.
type Config struct {
	// Device is the serial port name or path passed to uartreg.Open.
	Device string
	// Baud is the link speed in bits per second.
	Baud int
	// Dir is the working directory the converter writes frames into.
	Dir string
	// Extension selects frame files in Dir.
	Extension string
	// BlankRepeats is how many blanking frames are sent at shutdown.
	BlankRepeats int
	// PollInterval bounds the wait on an empty directory.
	PollInterval time.Duration

	FFmpeg       string
	FFplay       string
	FrameRate    string
	CameraFormat string
	CameraInput  string
	// Preview plays the source with ffplay during file mode passes.
	Preview bool
	// MetricsAddr serves Prometheus metrics when not empty.
	MetricsAddr string
}

// Default returns the settings matching the display firmware.
func Default() Config {
	return Config{
		Device:       "/dev/ttyUSB0",
		Baud:         1500000,
		Dir:          ".",
		Extension:    ".pgm",
		BlankRepeats: 3,
		PollInterval: 250 * time.Millisecond,
		FFmpeg:       "ffmpeg",
		FFplay:       "ffplay",
		FrameRate:    "11.7",
		CameraFormat: "v4l2",
		CameraInput:  "/dev/video0",
		Preview:      true,
	}
}

type fileConfig struct {
	Device       string `toml:"device"`
	Baud         int    `toml:"baud"`
	Dir          string `toml:"dir"`
	Extension    string `toml:"extension"`
	BlankRepeats int    `toml:"blank_repeats"`
	PollInterval string `toml:"poll_interval"`
	FFmpeg       string `toml:"ffmpeg"`
	FFplay       string `toml:"ffplay"`
	FrameRate    string `toml:"frame_rate"`
	CameraFormat string `toml:"camera_format"`
	CameraInput  string `toml:"camera_input"`
	Preview      bool   `toml:"preview"`
	MetricsAddr  string `toml:"metrics_addr"`
}

// Load reads path and overlays the keys it defines on Default(). The result
// is validated.
func Load(path string) (Config, error) {
	cfg := Default()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("config: load %s: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Config{}, fmt.Errorf("config: %s: unknown key %q", path, undecoded[0].String())
	}

	if meta.IsDefined("device") {
		cfg.Device = strings.TrimSpace(raw.Device)
	}
	if meta.IsDefined("baud") {
		cfg.Baud = raw.Baud
	}
	if meta.IsDefined("dir") {
		cfg.Dir = strings.TrimSpace(raw.Dir)
	}
	if meta.IsDefined("extension") {
		cfg.Extension = strings.TrimSpace(raw.Extension)
	}
	if meta.IsDefined("blank_repeats") {
		cfg.BlankRepeats = raw.BlankRepeats
	}
	if meta.IsDefined("poll_interval") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.PollInterval))
		if err != nil {
			return Config{}, fmt.Errorf("config: parse poll_interval: %w", err)
		}
		cfg.PollInterval = d
	}
	if meta.IsDefined("ffmpeg") {
		cfg.FFmpeg = strings.TrimSpace(raw.FFmpeg)
	}
	if meta.IsDefined("ffplay") {
		cfg.FFplay = strings.TrimSpace(raw.FFplay)
	}
	if meta.IsDefined("frame_rate") {
		cfg.FrameRate = strings.TrimSpace(raw.FrameRate)
	}
	if meta.IsDefined("camera_format") {
		cfg.CameraFormat = strings.TrimSpace(raw.CameraFormat)
	}
	if meta.IsDefined("camera_input") {
		cfg.CameraInput = strings.TrimSpace(raw.CameraInput)
	}
	if meta.IsDefined("preview") {
		cfg.Preview = raw.Preview
	}
	if meta.IsDefined("metrics_addr") {
		cfg.MetricsAddr = strings.TrimSpace(raw.MetricsAddr)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	switch {
	case c.Device == "":
		return errors.New("config: device is empty")
	case c.Baud <= 0:
		return fmt.Errorf("config: baud must be positive, got %d", c.Baud)
	case c.Dir == "":
		return errors.New("config: dir is empty")
	case c.Extension == "":
		return errors.New("config: extension is empty")
	case c.BlankRepeats < 1:
		return fmt.Errorf("config: blank_repeats must be at least 1, got %d", c.BlankRepeats)
	case c.PollInterval <= 0:
		return fmt.Errorf("config: poll_interval must be positive, got %s", c.PollInterval)
	}
	return nil
}
