// Package framesource manages where frames come from: the working directory
// the converter writes into, the ffmpeg converter process itself and the
// optional ffplay preview.
package framesource

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// DefaultPollInterval bounds how long Wait blocks without a filesystem event.
const DefaultPollInterval = 250 * time.Millisecond

// Dir is the directory the converter writes numbered frame files into.
//
// Files may still be growing when they are listed; readers must tolerate
// truncated content.
type Dir struct {
	path string
	ext  string
	poll time.Duration
	log  zerolog.Logger

	watcher  *fsnotify.Watcher
	noNotify bool
}

// NewDir returns a Dir listing files with the given extension (matched
// case-insensitively, leading dot optional). A zero poll uses
// DefaultPollInterval.
func NewDir(path, ext string, poll time.Duration, log zerolog.Logger) *Dir {
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	if poll <= 0 {
		poll = DefaultPollInterval
	}
	return &Dir{
		path: path,
		ext:  strings.ToLower(ext),
		poll: poll,
		log:  log.With().Str("component", "framesource").Str("dir", path).Logger(),
	}
}

// Path returns the directory path.
func (d *Dir) Path() string {
	return d.path
}

func (d *Dir) matches(name string) bool {
	return strings.ToLower(filepath.Ext(name)) == d.ext
}

// List returns the frame files currently present, in directory listing
// order (lexicographic by name). Zero-padded sequence numbers therefore come
// out in frame order.
func (d *Dir) List() ([]string, error) {
	entries, err := os.ReadDir(d.path)
	if err != nil {
		return nil, fmt.Errorf("framesource: list %s: %w", d.path, err)
	}
	var out []string
	for _, e := range entries {
		if !e.Type().IsRegular() || !d.matches(e.Name()) {
			continue
		}
		out = append(out, filepath.Join(d.path, e.Name()))
	}
	return out, nil
}

// Clean removes every frame file left over from a previous run and returns
// how many were removed.
func (d *Dir) Clean() (int, error) {
	files, err := d.List()
	if err != nil {
		return 0, err
	}
	n := 0
	for _, f := range files {
		if err := os.Remove(f); err != nil && !os.IsNotExist(err) {
			return n, fmt.Errorf("framesource: clean: %w", err)
		}
		n++
	}
	return n, nil
}

// Wait blocks until a frame file is created or written in the directory, the
// poll interval elapses, or ctx is done. It returns ctx.Err() only when ctx
// is done.
//
// When change notification is unavailable Wait degrades to sleeping for the
// poll interval.
func (d *Dir) Wait(ctx context.Context) error {
	w := d.watch()
	timer := time.NewTimer(d.poll)
	defer timer.Stop()

	var events chan fsnotify.Event
	var errs chan error
	if w != nil {
		events, errs = w.Events, w.Errors
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if ev.Has(fsnotify.Create|fsnotify.Write) && d.matches(ev.Name) {
				return nil
			}
		case err, ok := <-errs:
			if ok {
				d.log.Warn().Err(err).Msg("watch error")
			}
			return nil
		}
	}
}

// watch lazily starts the directory watcher.
func (d *Dir) watch() *fsnotify.Watcher {
	if d.watcher != nil || d.noNotify {
		return d.watcher
	}
	w, err := fsnotify.NewWatcher()
	if err == nil {
		err = w.Add(d.path)
		if err != nil {
			w.Close()
		}
	}
	if err != nil {
		d.log.Warn().Err(err).Dur("poll", d.poll).Msg("change notification unavailable, polling")
		d.noNotify = true
		return nil
	}
	d.watcher = w
	return w
}

// Close stops the directory watcher, if any.
func (d *Dir) Close() error {
	if d.watcher == nil {
		return nil
	}
	err := d.watcher.Close()
	d.watcher = nil
	return err
}
