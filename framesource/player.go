package framesource

import (
	"errors"
	"fmt"
	"os/exec"

	"github.com/rs/zerolog"
)

// Player shows the source video locally with ffplay while it streams.
type Player struct {
	ffplay string
	source string
	log    zerolog.Logger
	proc   process
}

// NewPlayer returns a Player for source. An empty ffplay uses "ffplay".
func NewPlayer(ffplay, source string, log zerolog.Logger) *Player {
	if ffplay == "" {
		ffplay = "ffplay"
	}
	return &Player{
		ffplay: ffplay,
		source: source,
		log:    log.With().Str("component", "player").Logger(),
	}
}

// Args returns the ffplay arguments, without the binary name.
func (p *Player) Args() []string {
	return []string{"-autoexit", "-loglevel", "panic", p.source}
}

// Start launches ffplay unless a previous instance is still playing.
func (p *Player) Start() error {
	err := p.proc.start(exec.Command(p.ffplay, p.Args()...))
	if errors.Is(err, errRunning) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("framesource: preview: %w", err)
	}
	p.log.Debug().Str("source", p.source).Msg("preview started")
	return nil
}

// Terminate stops ffplay if it is running.
func (p *Player) Terminate() error {
	return p.proc.terminate(DefaultGrace)
}
