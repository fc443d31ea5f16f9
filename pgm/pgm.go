// Package pgm reads raster frames written by the frame source.
//
// A frame file starts with three newline-terminated header lines (format
// tag, dimensions, max value) followed by raw 8-bit samples in row-major
// order. The header is skipped, not parsed: the producer is trusted to emit
// the agreed resolution.
package pgm

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
)

// HeaderLines is the number of lines skipped before the samples.
const HeaderLines = 3

// ErrExhausted is returned once the available sample bytes are consumed.
// Files are read while the producer may still be writing them, so this is
// an expected condition, not a fault.
var ErrExhausted = errors.New("pgm: exhausted")

// Reader exposes the samples of one frame file as a byte cursor.
type Reader struct {
	f      *os.File
	r      *bufio.Reader
	header [HeaderLines]string
	closed bool
}

// Open opens path and skips its header.
//
// A file that ends inside the header returns an error matching ErrExhausted
// and is already closed.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("pgm: %w", err)
	}
	r := &Reader{f: f, r: bufio.NewReader(f)}
	for i := range r.header {
		line, err := r.r.ReadString('\n')
		if err != nil {
			f.Close()
			if err == io.EOF {
				return nil, fmt.Errorf("%w: %s: header line %d", ErrExhausted, path, i+1)
			}
			return nil, fmt.Errorf("pgm: %s: %w", path, err)
		}
		r.header[i] = line[:len(line)-1]
	}
	return r, nil
}

// WithFile opens path, calls fn with its reader and closes the file on every
// path out, including a panic in fn.
func WithFile(path string, fn func(*Reader) error) (err error) {
	r, err := Open(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := r.Close(); err == nil {
			err = cerr
		}
	}()
	return fn(r)
}

// ReadByte returns the next sample, or ErrExhausted at end of data.
func (r *Reader) ReadByte() (byte, error) {
	b, err := r.r.ReadByte()
	if err == io.EOF {
		return 0, ErrExhausted
	}
	return b, err
}

// Header returns the raw header lines without their newline.
func (r *Reader) Header() [HeaderLines]string {
	return r.header
}

// Name returns the path the reader was opened with.
func (r *Reader) Name() string {
	return r.f.Name()
}

// Close closes the file. It is safe to call more than once.
func (r *Reader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	return r.f.Close()
}
