package framesource

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"sync"
	"time"
)

// DefaultGrace is how long a process gets to exit after an interrupt before
// it is killed.
const DefaultGrace = 2 * time.Second

var errRunning = errors.New("framesource: process already running")

// process supervises one external command at a time.
type process struct {
	mu   sync.Mutex
	cmd  *exec.Cmd
	done chan struct{}
	err  error
}

func (p *process) start(cmd *exec.Cmd) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.runningLocked() {
		return errRunning
	}
	if err := cmd.Start(); err != nil {
		return err
	}
	done := make(chan struct{})
	p.cmd, p.done, p.err = cmd, done, nil
	go func() {
		err := cmd.Wait()
		p.mu.Lock()
		p.err = err
		p.mu.Unlock()
		close(done)
	}()
	return nil
}

func (p *process) running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.runningLocked()
}

func (p *process) runningLocked() bool {
	if p.done == nil {
		return false
	}
	select {
	case <-p.done:
		return false
	default:
		return true
	}
}

// wait blocks until the process exits and returns its exit error. If ctx is
// done first the process is terminated and ctx.Err() is returned.
func (p *process) wait(ctx context.Context) error {
	p.mu.Lock()
	done := p.done
	p.mu.Unlock()
	if done == nil {
		return nil
	}
	select {
	case <-done:
		p.mu.Lock()
		defer p.mu.Unlock()
		return p.err
	case <-ctx.Done():
		p.terminate(DefaultGrace)
		return ctx.Err()
	}
}

// terminate interrupts the process, then kills it if it is still alive after
// grace. It is a no-op when nothing runs.
func (p *process) terminate(grace time.Duration) error {
	p.mu.Lock()
	cmd, done := p.cmd, p.done
	running := p.runningLocked()
	p.mu.Unlock()
	if !running {
		return nil
	}
	// Interrupt is not supported on every platform; fall back to kill.
	if err := cmd.Process.Signal(os.Interrupt); err != nil {
		if err := cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
			return err
		}
	}
	select {
	case <-done:
		return nil
	case <-time.After(grace):
	}
	if err := cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return err
	}
	<-done
	return nil
}
