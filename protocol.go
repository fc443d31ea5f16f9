package rit128

import (
	"errors"
	"fmt"
	"image"
	"io"

	"github.com/flavioheleno/rit128/image4bit"
)

// Panel geometry and wire constants.
const (
	Width  = 128
	Height = 96

	// PayloadSize is the number of packed bytes in one frame.
	PayloadSize = Height * Width / 2
	// UnitSize is a payload plus its start sentinel.
	UnitSize = PayloadSize + 1

	// StartSentinel marks the beginning of every transmission unit. It never
	// appears inside a payload.
	StartSentinel byte = 0xFF
	// EscapeByte replaces any packed byte that would collide with
	// StartSentinel. The substitution is lossy: the receiver cannot tell an
	// escaped pair from a genuine 0xEE.
	EscapeByte byte = 0xEE
)

// ErrTruncated is returned by PackFrame when the source runs out of samples
// before the last pixel pair of the frame.
var ErrTruncated = errors.New("rit128: truncated frame")

var errPayloadSize = errors.New("rit128: invalid buffer size")

// Escape maps the start sentinel to EscapeByte and leaves every other value
// untouched.
func Escape(b byte) byte {
	if b == StartSentinel {
		return EscapeByte
	}
	return b
}

// pair keeps the high nibble of a and moves the high nibble of b into the low
// nibble.
func pair(a, b byte) byte {
	return a&0xF0 | b>>4
}

// Pack combines two horizontally adjacent 8-bit samples into one wire byte.
func Pack(a, b byte) byte {
	return Escape(pair(a, b))
}

// PackFrame reads Height rows of Width/2 sample pairs from r and stores the
// packed, escaped bytes in payload, which must be PayloadSize bytes long.
//
// If r is exhausted before a pair is complete, PackFrame stops and returns an
// error matching ErrTruncated. The content of payload is then undefined and
// must not be transmitted.
func PackFrame(r io.ByteReader, payload []byte) error {
	if len(payload) != PayloadSize {
		return errPayloadSize
	}
	i := 0
	for y := 0; y < Height; y++ {
		for x := 0; x < Width/2; x++ {
			a, err := r.ReadByte()
			if err != nil {
				return fmt.Errorf("%w: row %d pair %d sample A: %w", ErrTruncated, y, x, err)
			}
			b, err := r.ReadByte()
			if err != nil {
				return fmt.Errorf("%w: row %d pair %d sample B: %w", ErrTruncated, y, x, err)
			}
			payload[i] = Pack(a, b)
			i++
		}
	}
	return nil
}

// PackImage quantizes src into dst using the wire packing rule. Pixels of dst
// outside src are left untouched. The escape is not applied: dst keeps the
// true 4-bit levels and Dev.Write escapes on transmission.
func PackImage(dst *image4bit.HorizontalNibble, src *image.Gray) {
	r := dst.Rect.Intersect(src.Rect)
	// Pairs must start on an even column of dst.
	if (r.Min.X-dst.Rect.Min.X)%2 != 0 {
		r.Min.X++
	}
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x+1 < r.Max.X; x += 2 {
			a := src.Pix[src.PixOffset(x, y)]
			b := src.Pix[src.PixOffset(x+1, y)]
			dst.Pix[(y-dst.Rect.Min.Y)*dst.Stride+(x-dst.Rect.Min.X)/2] = pair(a, b)
		}
	}
}

// Frame returns a transmission unit: StartSentinel followed by payload.
// The payload is copied as is; use Pack or PackFrame to build it.
func Frame(payload []byte) []byte {
	unit := make([]byte, 0, len(payload)+1)
	unit = append(unit, StartSentinel)
	return append(unit, payload...)
}

// BlankUnit returns the transmission unit that turns every pixel of the
// panel off.
func BlankUnit() []byte {
	return Frame(make([]byte, PayloadSize))
}
