// Package stream runs the frame loop: list the frame directory, pack each
// file, send it to the panel, and repeat until cancelled.
//
// The loop is single threaded. Cancellation is only observed between frames,
// so a frame being packed always completes (or is dropped) before the
// shutdown sequence starts.
package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"

	"github.com/flavioheleno/rit128"
	"github.com/flavioheleno/rit128/pgm"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// State is the session lifecycle state.
type State int

const (
	// Running streams frames.
	Running State = iota
	// ShuttingDown is terminal: the link is being or has been released.
	ShuttingDown
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case ShuttingDown:
		return "shutting-down"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Link transmits packed payloads. *rit128.Dev implements it.
type Link interface {
	Write(payload []byte) (int, error)
	// Halt blanks the panel before the link is released.
	Halt() error
}

// Frames lists frame files. *framesource.Dir implements it.
type Frames interface {
	List() ([]string, error)
	// Wait blocks until new frames may be available or ctx is done.
	Wait(ctx context.Context) error
}

// Terminator is an external process the session stops on exit.
type Terminator interface {
	Terminate() error
}

// Starter is started at the beginning of every pass over the directory.
type Starter interface {
	Start() error
}

// LinkError reports a transport fault. It is fatal: the session has already
// released the link and stopped the frame source when it is returned.
type LinkError struct {
	Err error
}

func (e *LinkError) Error() string {
	return "link failure: " + e.Err.Error()
}

func (e *LinkError) Unwrap() error {
	return e.Err
}

// Config wires a Session.
type Config struct {
	Link   Link
	Frames Frames
	// Port owns the link handle and is closed exactly once on exit. Optional.
	Port io.Closer
	// Processes are terminated on exit, in order. Optional.
	Processes []Terminator
	// Preview is started at each pass. Optional.
	Preview Starter
	Logger  zerolog.Logger
	// Metrics is optional.
	Metrics *Metrics
}

// Session owns the link for the lifetime of one run.
type Session struct {
	id      uuid.UUID
	link    Link
	frames  Frames
	port    io.Closer
	procs   []Terminator
	preview Starter
	log     zerolog.Logger
	metrics *Metrics

	state    State
	payload  []byte
	sent     int
	dropped  int
	passes   int
	released bool
}

// New returns a Session in the Running state.
func New(cfg Config) *Session {
	id := uuid.New()
	m := cfg.Metrics
	if m == nil {
		m = NewMetrics(nil)
	}
	return &Session{
		id:      id,
		link:    cfg.Link,
		frames:  cfg.Frames,
		port:    cfg.Port,
		procs:   cfg.Processes,
		preview: cfg.Preview,
		log:     cfg.Logger.With().Str("session", id.String()).Logger(),
		metrics: m,
		state:   Running,
		payload: make([]byte, rit128.PayloadSize),
	}
}

// ID returns the session identifier used in logs.
func (s *Session) ID() uuid.UUID { return s.id }

// State returns the current state.
func (s *Session) State() State { return s.state }

// Sent returns the number of frames transmitted.
func (s *Session) Sent() int { return s.sent }

// Drops returns the number of truncated frames discarded.
func (s *Session) Drops() int { return s.dropped }

// Passes returns the number of passes made over a non-empty directory.
func (s *Session) Passes() int { return s.passes }

// Run streams frames until ctx is cancelled or a fatal error occurs.
//
// On cancellation Run blanks the panel, stops the external processes,
// closes the port and returns nil. A transport fault returns a *LinkError
// after stopping the processes and closing the port; no blanking is
// attempted over a failed link.
func (s *Session) Run(ctx context.Context) error {
	if s.state != Running {
		return errors.New("stream: session already finished")
	}
	s.log.Info().Msg("streaming")
	for {
		if ctx.Err() != nil {
			return s.shutdown()
		}
		files, err := s.frames.List()
		if err != nil {
			s.shutdown()
			return fmt.Errorf("stream: %w", err)
		}
		if len(files) == 0 {
			if err := s.frames.Wait(ctx); err != nil && ctx.Err() == nil {
				s.log.Debug().Err(err).Msg("wait for frames")
			}
			continue
		}
		s.startPass(len(files))
		for _, f := range files {
			// Frame boundary: the only place cancellation is observed.
			if ctx.Err() != nil {
				return s.shutdown()
			}
			if err := s.sendFile(f); err != nil {
				return err
			}
		}
	}
}

func (s *Session) startPass(n int) {
	s.passes++
	s.metrics.Passes.Inc()
	s.log.Debug().Int("pass", s.passes).Int("frames", n).Msg("pass")
	if s.preview != nil {
		if err := s.preview.Start(); err != nil {
			s.log.Warn().Err(err).Msg("preview unavailable")
		}
	}
}

// sendFile packs one file and transmits it. Only link faults are returned.
func (s *Session) sendFile(path string) error {
	err := pgm.WithFile(path, func(r *pgm.Reader) error {
		return rit128.PackFrame(r, s.payload)
	})
	switch {
	case err == nil:
	case errors.Is(err, rit128.ErrTruncated), errors.Is(err, pgm.ErrExhausted):
		s.drop(path, err)
		return nil
	case errors.Is(err, fs.ErrNotExist):
		// Superseded by the frame source between listing and open.
		s.log.Debug().Str("file", path).Msg("frame vanished")
		return nil
	default:
		s.log.Warn().Err(err).Str("file", path).Msg("frame unreadable, skipped")
		return nil
	}

	n, err := s.link.Write(s.payload)
	if err != nil {
		return s.fail(err)
	}
	s.sent++
	s.metrics.FramesSent.Inc()
	s.metrics.BytesWritten.Add(float64(n + 1))
	s.log.Trace().Str("file", path).Msg("frame sent")
	return nil
}

// drop records a truncated frame. Nothing of it reaches the link.
func (s *Session) drop(path string, err error) {
	s.dropped++
	s.metrics.FramesDropped.Inc()
	s.log.Debug().Err(err).Str("file", path).Int("dropped", s.dropped).Msg("frame dropped")
}

// shutdown is the orderly exit: blank, stop the source, release the link.
func (s *Session) shutdown() error {
	s.state = ShuttingDown
	s.log.Info().Msg("shutting down")
	if err := s.link.Halt(); err != nil {
		s.log.Error().Err(err).Msg("blanking failed")
	}
	s.release()
	if s.dropped > 0 {
		s.log.Warn().Int("dropped", s.dropped).Int("sent", s.sent).Msg("frames dropped")
	}
	s.log.Info().Int("sent", s.sent).Msg("closed")
	return nil
}

// fail handles a link fault: no blanking, stop the source, release the link.
func (s *Session) fail(err error) error {
	s.state = ShuttingDown
	s.release()
	return &LinkError{Err: err}
}

// release stops the external processes and closes the port, once.
func (s *Session) release() {
	if s.released {
		return
	}
	s.released = true
	for _, p := range s.procs {
		if err := p.Terminate(); err != nil {
			s.log.Warn().Err(err).Msg("terminate failed")
		}
	}
	if s.port != nil {
		if err := s.port.Close(); err != nil {
			s.log.Warn().Err(err).Msg("closing link failed")
		}
	}
}
