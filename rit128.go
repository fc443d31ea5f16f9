package rit128

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"github.com/flavioheleno/rit128/image4bit"
	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/display"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/uart"
)

// DefaultBaud is the link speed the panel firmware is configured for.
const DefaultBaud = 1500000 * physic.Hertz

// DefaultBlankRepeats is how many blanking frames Halt sends. There is no
// acknowledgment channel, so a single lost unit must not leave the panel lit.
const DefaultBlankRepeats = 3

// Opts is the configuration for the link to the panel.
type Opts struct {
	// Baud is the UART speed (default: DefaultBaud).
	Baud physic.Frequency
	// BlankRepeats is the number of blanking frames sent by Halt
	// (default: DefaultBlankRepeats).
	BlankRepeats int
}

// Dev is the handle of a RIT128x96x4 panel reachable over a serial link.
type Dev struct {
	c conn.Conn

	rect         image.Rectangle
	blankRepeats int

	// Transmission unit buffer: sentinel followed by the escaped payload.
	buffer []byte
	// Last payload handed to Write, before escaping.
	last []byte
	sent bool
	// Lazily allocated canvas for Draw.
	next *image4bit.HorizontalNibble

	halted bool
}

// NewUART connects to the panel through an UART port.
//
// The port is configured for opts.Baud, 8 data bits, no parity, one stop bit
// and no flow control, the settings of the panel firmware.
//
// opts can be nil to use defaults.
func NewUART(p uart.Port, opts *Opts) (*Dev, error) {
	opts = withDefaults(opts)
	c, err := p.Connect(opts.Baud, uart.One, uart.NoParity, uart.NoFlow, 8)
	if err != nil {
		return nil, fmt.Errorf("rit128: connect %s: %w", p, err)
	}
	return New(c, opts)
}

// New returns a Dev writing transmission units to an already configured
// connection.
func New(c conn.Conn, opts *Opts) (*Dev, error) {
	opts = withDefaults(opts)
	if opts.BlankRepeats < 1 {
		return nil, errors.New("rit128: blank repeats must be at least 1")
	}
	d := &Dev{
		c:            c,
		rect:         image.Rect(0, 0, Width, Height),
		blankRepeats: opts.BlankRepeats,
		buffer:       make([]byte, UnitSize),
		last:         make([]byte, PayloadSize),
	}
	d.buffer[0] = StartSentinel
	return d, nil
}

func withDefaults(opts *Opts) *Opts {
	o := Opts{}
	if opts != nil {
		o = *opts
	}
	if o.Baud == 0 {
		o.Baud = DefaultBaud
	}
	if o.BlankRepeats == 0 {
		o.BlankRepeats = DefaultBlankRepeats
	}
	return &o
}

// ColorModel returns the color model of the display.
func (d *Dev) ColorModel() color.Model {
	return image4bit.Gray4Model
}

// Bounds returns the image bounds of the display.
func (d *Dev) Bounds() image.Rectangle {
	return d.rect
}

// Write frames a packed payload and sends it in a single transaction.
// The payload must be exactly PayloadSize bytes. Any StartSentinel value in
// it is escaped before it reaches the wire.
//
// A short write by the transport is not detected.
func (d *Dev) Write(payload []byte) (int, error) {
	if d.halted {
		return 0, errors.New("rit128: halted")
	}
	if len(payload) != PayloadSize {
		return 0, errPayloadSize
	}
	for i, b := range payload {
		d.buffer[i+1] = Escape(b)
	}
	if err := d.c.Tx(d.buffer, nil); err != nil {
		return 0, err
	}
	copy(d.last, payload)
	d.sent = true
	return len(payload), nil
}

// Draw renders src onto the panel. The panel only accepts full frames, so the
// whole canvas is sent, and only when it differs from the last frame sent.
func (d *Dev) Draw(dst image.Rectangle, src image.Image, sp image.Point) error {
	if d.halted {
		return errors.New("rit128: halted")
	}

	dst = dst.Intersect(d.rect)
	if dst.Empty() {
		return nil
	}

	if d.next == nil {
		d.next = image4bit.NewHorizontalNibble(d.rect)
		copy(d.next.Pix, d.last)
	}

	// Fast path: 8-bit gray sources are packed directly
	if g, ok := src.(*image.Gray); ok && dst == d.rect && sp == (image.Point{}) && g.Rect == d.rect {
		PackImage(d.next, g)
	} else {
		draw.Draw(d.next, dst, src, sp, draw.Src)
	}

	if d.sent && bytes.Equal(d.next.Pix, d.last) {
		return nil
	}
	_, err := d.Write(d.next.Pix)
	return err
}

// Blank sends one all-black frame.
func (d *Dev) Blank() error {
	if d.halted {
		return errors.New("rit128: halted")
	}
	return d.blank()
}

func (d *Dev) blank() error {
	for i := 1; i < len(d.buffer); i++ {
		d.buffer[i] = 0
	}
	return d.c.Tx(d.buffer, nil)
}

// Halt blanks the panel by sending the blanking frame BlankRepeats times in a
// row. Every repeat is attempted even if an earlier one fails; the first
// error is returned.
//
// After calling Halt, Write, Draw and Blank fail. Closing the underlying port
// is left to its owner.
func (d *Dev) Halt() error {
	if d.halted {
		return nil
	}
	d.halted = true
	var first error
	for i := 0; i < d.blankRepeats; i++ {
		if err := d.blank(); err != nil && first == nil {
			first = fmt.Errorf("rit128: blanking frame %d/%d: %w", i+1, d.blankRepeats, err)
		}
	}
	return first
}

// String returns a string representation of the device.
func (d *Dev) String() string {
	return fmt.Sprintf("rit128.Dev{%dx%d}", d.rect.Dx(), d.rect.Dy())
}

var _ display.Drawer = &Dev{}
