// Command rit128send streams a video to a RIT128x96x4 OLED panel.
//
// ffmpeg converts the source into numbered PGM frames in the working
// directory; the frames are then packed and sent over the serial link in a
// loop until the process is interrupted, at which point the panel is blanked.
//
// Usage:
//
//	rit128send [flags] f <video>   convert a file once, then loop over it
//	rit128send [flags] c           capture the camera while streaming
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/flavioheleno/rit128"
	"github.com/flavioheleno/rit128/config"
	"github.com/flavioheleno/rit128/framesource"
	"github.com/flavioheleno/rit128/logging"
	"github.com/flavioheleno/rit128/serialport"
	"github.com/flavioheleno/rit128/stream"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/uart"
	"periph.io/x/conn/v3/uart/uartreg"
	"periph.io/x/host/v3"
)

const (
	exitOK    = 0
	exitFatal = 1
	exitUsage = 2
)

// Overridden in tests.
var openLink = openPort

var (
	configPath = flag.String("config", "", "TOML config file (defaults apply when empty)")
	device     = flag.String("device", "", "Serial device, overrides the config file")
	dir        = flag.String("dir", "", "Frame directory, overrides the config file")
	noPreview  = flag.Bool("no-preview", false, "Do not play the source with ffplay")
)

func usage() {
	fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] f <video> | c\n\n", os.Args[0])
	flag.PrintDefaults()
}

func main() {
	flag.Usage = usage
	flag.Parse()
	os.Exit(run(flag.Args()))
}

func run(args []string) int {
	mode, source, err := parseArgs(args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		flag.Usage()
		return exitUsage
	}

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitUsage
	}

	logger := logging.New("rit128send")

	conv, err := framesource.NewConverter(mode, source, framesource.ConverterOpts{
		FFmpeg:       cfg.FFmpeg,
		Dir:          cfg.Dir,
		FrameRate:    cfg.FrameRate,
		CameraFormat: cfg.CameraFormat,
		CameraInput:  cfg.CameraInput,
	}, logger)
	if err != nil {
		logger.Error().Err(err).Msg("invalid invocation")
		return exitUsage
	}

	frames := framesource.NewDir(cfg.Dir, cfg.Extension, cfg.PollInterval, logger)
	defer frames.Close()
	n, err := frames.Clean()
	if err != nil {
		logger.Error().Err(err).Msg("removing stale frames")
		return exitFatal
	}
	if n > 0 {
		logger.Info().Int("removed", n).Msg("stale frames removed")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	stopOnDone(ctx, stop)

	switch mode {
	case framesource.ModeFile:
		if err := conv.Run(ctx); err != nil {
			if ctx.Err() != nil {
				logger.Info().Msg("interrupted during conversion")
				return exitOK
			}
			logger.Error().Err(err).Msg("conversion failed")
			return exitFatal
		}
	case framesource.ModeCamera:
		if err := conv.Start(); err != nil {
			logger.Error().Err(err).Msg("starting capture")
			return exitFatal
		}
	}

	port, err := openLink(cfg.Device, logger)
	if err != nil {
		conv.Terminate()
		logger.Error().Err(err).Str("device", cfg.Device).Msg("opening link")
		return exitFatal
	}
	dev, err := rit128.NewUART(port, &rit128.Opts{
		Baud:         physic.Frequency(cfg.Baud) * physic.Hertz,
		BlankRepeats: cfg.BlankRepeats,
	})
	if err != nil {
		conv.Terminate()
		port.Close()
		logger.Error().Err(err).Str("device", cfg.Device).Msg("connecting to panel")
		return exitFatal
	}
	logger.Info().Str("device", cfg.Device).Int("baud", cfg.Baud).Stringer("panel", dev).Msg("link open")

	reg := prometheus.NewRegistry()
	metrics := stream.NewMetrics(reg)
	if cfg.MetricsAddr != "" {
		srv := serveMetrics(cfg.MetricsAddr, reg, logger)
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			srv.Shutdown(sctx)
		}()
	}

	sc := stream.Config{
		Link:      dev,
		Frames:    frames,
		Port:      port,
		Processes: []stream.Terminator{conv},
		Logger:    logger,
		Metrics:   metrics,
	}
	if mode == framesource.ModeFile && cfg.Preview {
		player := framesource.NewPlayer(cfg.FFplay, conv.Source(), logger)
		sc.Preview = player
		sc.Processes = append(sc.Processes, player)
	}

	session := stream.New(sc)
	err = session.Run(ctx)
	if err != nil {
		var le *stream.LinkError
		if errors.As(err, &le) {
			logger.Error().Err(le.Err).Str("device", cfg.Device).Msg("link failure")
		} else {
			logger.Error().Err(err).Msg("streaming stopped")
		}
		return exitFatal
	}
	return exitOK
}

// stopOnDone restores default signal handling once ctx is done, so a second
// interrupt kills a process stalled on the link.
func stopOnDone(ctx context.Context, stop func()) {
	go func() {
		<-ctx.Done()
		stop()
	}()
}

func parseArgs(args []string) (framesource.Mode, string, error) {
	if len(args) == 0 {
		return 0, "", errors.New("missing mode")
	}
	mode, err := framesource.ParseMode(args[0])
	if err != nil {
		return 0, "", err
	}
	switch mode {
	case framesource.ModeFile:
		if len(args) != 2 {
			return 0, "", errors.New("file mode needs exactly one video path")
		}
		return mode, args[1], nil
	default:
		if len(args) != 1 {
			return 0, "", errors.New("camera mode takes no arguments")
		}
		return mode, "", nil
	}
}

func loadConfig() (config.Config, error) {
	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			return cfg, err
		}
	}
	if *device != "" {
		cfg.Device = *device
	}
	if *dir != "" {
		cfg.Dir = *dir
	}
	if *noPreview {
		cfg.Preview = false
	}
	return cfg, cfg.Validate()
}

// openPort looks the device up in uartreg, where the serialport driver
// registered every tty it found. Devices the OS does not enumerate, such as
// pseudo terminals, are opened directly.
func openPort(name string, logger zerolog.Logger) (uart.PortCloser, error) {
	if _, err := host.Init(); err != nil {
		logger.Warn().Err(err).Msg("host init")
	}
	p, err := uartreg.Open(name)
	if err == nil {
		return p, nil
	}
	logger.Debug().Err(err).Str("device", name).Msg("not registered, opening directly")
	return serialport.New(name), nil
}

func serveMetrics(addr string, reg *prometheus.Registry, logger zerolog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Str("addr", addr).Msg("metrics server")
		}
	}()
	logger.Info().Str("addr", addr).Msg("serving metrics")
	return srv
}
