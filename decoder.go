package rit128

import (
	"bufio"
	"image"
	"io"

	"github.com/flavioheleno/rit128/image4bit"
)

// Decoder recovers frame payloads from a raw link byte stream, the way the
// panel firmware does: a StartSentinel restarts the payload, and a payload is
// complete after PayloadSize bytes.
//
// Bytes received before the first sentinel, and after a complete payload
// until the next sentinel, are discarded.
type Decoder struct {
	r       *bufio.Reader
	payload []byte
	n       int
	synced  bool
	resyncs int
}

// NewDecoder returns a Decoder reading from r.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{
		r:       bufio.NewReaderSize(r, UnitSize),
		payload: make([]byte, PayloadSize),
	}
}

// Next returns the next complete payload. The returned slice is only valid
// until the following call to Next.
//
// io.EOF is returned when the stream ends between frames and
// io.ErrUnexpectedEOF when it ends inside one.
func (d *Decoder) Next() ([]byte, error) {
	for {
		b, err := d.r.ReadByte()
		if err != nil {
			if err == io.EOF && d.n > 0 {
				return nil, io.ErrUnexpectedEOF
			}
			return nil, err
		}
		if b == StartSentinel {
			if d.n > 0 {
				d.resyncs++
			}
			d.synced = true
			d.n = 0
			continue
		}
		if !d.synced {
			continue
		}
		d.payload[d.n] = b
		d.n++
		if d.n == PayloadSize {
			d.synced = false
			d.n = 0
			return d.payload, nil
		}
	}
}

// NextImage is like Next but returns a copy of the payload as an image.
func (d *Decoder) NextImage() (*image4bit.HorizontalNibble, error) {
	p, err := d.Next()
	if err != nil {
		return nil, err
	}
	img := image4bit.NewHorizontalNibble(image.Rect(0, 0, Width, Height))
	copy(img.Pix, p)
	return img, nil
}

// Resyncs returns how many partial payloads were abandoned because a new
// sentinel arrived before they completed.
func (d *Decoder) Resyncs() int {
	return d.resyncs
}
