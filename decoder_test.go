package rit128

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/flavioheleno/rit128/image4bit"
	"periph.io/x/conn/v3/conntest"
)

func TestDecoderRoundTrip(t *testing.T) {
	var wire bytes.Buffer
	dev, err := New(&conntest.RecordRaw{W: &wire}, nil)
	if err != nil {
		t.Fatal(err)
	}

	frames := [][]byte{
		bytes.Repeat([]byte{0x12}, PayloadSize),
		bytes.Repeat([]byte{0xFF}, PayloadSize),
	}
	for _, f := range frames {
		if _, err := dev.Write(f); err != nil {
			t.Fatal(err)
		}
	}
	if err := dev.Halt(); err != nil {
		t.Fatal(err)
	}

	want := [][]byte{
		frames[0],
		bytes.Repeat([]byte{0xEE}, PayloadSize),
		make([]byte, PayloadSize),
		make([]byte, PayloadSize),
		make([]byte, PayloadSize),
	}
	dec := NewDecoder(&wire)
	for i, w := range want {
		got, err := dec.Next()
		if err != nil {
			t.Fatalf("frame %d: Next() error = %v", i, err)
		}
		if !bytes.Equal(got, w) {
			t.Errorf("frame %d does not match", i)
		}
	}
	if _, err := dec.Next(); err != io.EOF {
		t.Errorf("Next() at end = %v, want io.EOF", err)
	}
}

func TestDecoderResync(t *testing.T) {
	var stream []byte
	// noise before the first sentinel, then a partial frame
	stream = append(stream, 0x01, 0x02, 0x03)
	stream = append(stream, StartSentinel, 0x10, 0x20)
	stream = append(stream, Frame(bytes.Repeat([]byte{0x5A}, PayloadSize))...)
	// trailing bytes after a complete frame are ignored
	stream = append(stream, 0x33, 0x44)

	dec := NewDecoder(bytes.NewReader(stream))
	got, err := dec.Next()
	if err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	if !bytes.Equal(got, bytes.Repeat([]byte{0x5A}, PayloadSize)) {
		t.Error("decoded payload does not match")
	}
	if dec.Resyncs() != 1 {
		t.Errorf("Resyncs() = %d, want 1", dec.Resyncs())
	}
	if _, err := dec.Next(); err != io.EOF {
		t.Errorf("Next() = %v, want io.EOF", err)
	}
}

func TestDecoderUnexpectedEOF(t *testing.T) {
	stream := Frame(make([]byte, PayloadSize/2))
	dec := NewDecoder(bytes.NewReader(stream))
	if _, err := dec.Next(); !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("Next() = %v, want io.ErrUnexpectedEOF", err)
	}
}

func TestDecoderNextImage(t *testing.T) {
	payload := make([]byte, PayloadSize)
	payload[0] = 0x5A
	dec := NewDecoder(bytes.NewReader(Frame(payload)))
	img, err := dec.NextImage()
	if err != nil {
		t.Fatal(err)
	}
	if got := img.Gray4At(0, 0); got != (image4bit.Gray4{Y: 5}) {
		t.Errorf("Gray4At(0, 0) = %v, want 5", got)
	}
	if got := img.Gray4At(1, 0); got != (image4bit.Gray4{Y: 10}) {
		t.Errorf("Gray4At(1, 0) = %v, want 10", got)
	}
}
