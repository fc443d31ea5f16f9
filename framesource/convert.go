package framesource

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
)

// Mode selects where the converter reads video from.
type Mode int

const (
	// ModeFile converts a video file once, before streaming starts.
	ModeFile Mode = iota
	// ModeCamera captures a live camera in the background while streaming.
	ModeCamera
)

func (m Mode) String() string {
	switch m {
	case ModeFile:
		return "file"
	case ModeCamera:
		return "camera"
	}
	return "Mode(" + strconv.Itoa(int(m)) + ")"
}

// ParseMode accepts "f"/"file" and "c"/"camera".
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "f", "file":
		return ModeFile, nil
	case "c", "camera":
		return ModeCamera, nil
	}
	return 0, fmt.Errorf("framesource: unknown mode %q (want f or c)", s)
}

var (
	// ErrMissingSource is returned when file mode has no readable source.
	ErrMissingSource = errors.New("framesource: missing source file")
	// ErrConversion is returned when the converter exits unsuccessfully.
	ErrConversion = errors.New("framesource: conversion failed")
)

// ConverterOpts configures the ffmpeg invocation.
type ConverterOpts struct {
	FFmpeg       string // ffmpeg binary (default: "ffmpeg")
	Dir          string // output directory (default: current directory)
	Width        int    // output width (default: 128)
	Height       int    // output height (default: 96)
	FrameRate    string // output frame rate (default: "11.7")
	Threads      int    // encoder threads in file mode (default: 8)
	CameraFormat string // ffmpeg input format in camera mode (default: "v4l2")
	CameraInput  string // ffmpeg input in camera mode (default: "/dev/video0")
	Pattern      string // output file pattern (default: "out%05d.pgm")
}

func (o *ConverterOpts) defaults() {
	if o.FFmpeg == "" {
		o.FFmpeg = "ffmpeg"
	}
	if o.Width == 0 {
		o.Width = 128
	}
	if o.Height == 0 {
		o.Height = 96
	}
	if o.FrameRate == "" {
		o.FrameRate = "11.7"
	}
	if o.Threads == 0 {
		o.Threads = 8
	}
	if o.CameraFormat == "" {
		o.CameraFormat = "v4l2"
	}
	if o.CameraInput == "" {
		o.CameraInput = "/dev/video0"
	}
	if o.Pattern == "" {
		o.Pattern = "out%05d.pgm"
	}
}

// Converter runs ffmpeg to turn a video source into numbered frame files.
type Converter struct {
	mode   Mode
	source string
	opts   ConverterOpts
	log    zerolog.Logger
	proc   process
}

// NewConverter validates the invocation. In file mode source must name a
// readable regular file, resolved against the current directory; in camera
// mode it is ignored.
func NewConverter(mode Mode, source string, opts ConverterOpts, log zerolog.Logger) (*Converter, error) {
	opts.defaults()
	switch mode {
	case ModeFile:
		if source == "" {
			return nil, ErrMissingSource
		}
		fi, err := os.Stat(source)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMissingSource, err)
		}
		if !fi.Mode().IsRegular() {
			return nil, fmt.Errorf("%w: %s is not a regular file", ErrMissingSource, source)
		}
		// ffmpeg runs in opts.Dir, not in the current directory.
		if source, err = filepath.Abs(source); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMissingSource, err)
		}
	case ModeCamera:
		source = ""
	default:
		return nil, fmt.Errorf("framesource: unknown mode %s", mode)
	}
	return &Converter{
		mode:   mode,
		source: source,
		opts:   opts,
		log:    log.With().Str("component", "converter").Str("mode", mode.String()).Logger(),
	}, nil
}

// Mode returns the converter mode.
func (c *Converter) Mode() Mode {
	return c.mode
}

// Source returns the video file converted in file mode.
func (c *Converter) Source() string {
	return c.source
}

// Args returns the ffmpeg arguments, without the binary name.
func (c *Converter) Args() []string {
	size := fmt.Sprintf("%dx%d", c.opts.Width, c.opts.Height)
	if c.mode == ModeCamera {
		return []string{
			"-f", c.opts.CameraFormat,
			"-i", c.opts.CameraInput,
			"-s", size,
			"-r", c.opts.FrameRate,
			"-loglevel", "panic",
			c.opts.Pattern,
		}
	}
	return []string{
		"-i", c.source,
		"-s", size,
		"-r", c.opts.FrameRate,
		"-threads", strconv.Itoa(c.opts.Threads),
		"-loglevel", "panic",
		c.opts.Pattern,
	}
}

func (c *Converter) command() *exec.Cmd {
	cmd := exec.Command(c.opts.FFmpeg, c.Args()...)
	cmd.Dir = c.opts.Dir
	return cmd
}

// Run converts the whole source and returns once ffmpeg exits. Any failure
// matches ErrConversion. Cancelling ctx terminates ffmpeg.
func (c *Converter) Run(ctx context.Context) error {
	if c.mode != ModeFile {
		return fmt.Errorf("framesource: Run needs file mode, have %s", c.mode)
	}
	c.log.Info().Str("source", c.source).Msg("converting")
	if err := c.proc.start(c.command()); err != nil {
		return fmt.Errorf("%w: %w", ErrConversion, err)
	}
	if err := c.proc.wait(ctx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %w", ErrConversion, err)
	}
	return nil
}

// Start launches the converter in the background.
func (c *Converter) Start() error {
	c.log.Info().Strs("args", c.Args()).Msg("starting capture")
	if err := c.proc.start(c.command()); err != nil {
		return fmt.Errorf("%w: %w", ErrConversion, err)
	}
	return nil
}

// Running reports whether ffmpeg is still running.
func (c *Converter) Running() bool {
	return c.proc.running()
}

// Terminate stops ffmpeg if it is running. It is safe to call repeatedly.
func (c *Converter) Terminate() error {
	if !c.proc.running() {
		return nil
	}
	c.log.Debug().Msg("terminating")
	return c.proc.terminate(DefaultGrace)
}
