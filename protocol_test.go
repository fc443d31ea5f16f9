package rit128

import (
	"bytes"
	"errors"
	"image"
	"math/rand"
	"testing"

	"github.com/flavioheleno/rit128/image4bit"
)

func TestPackAllPairs(t *testing.T) {
	for a := 0; a < 256; a++ {
		for b := 0; b < 256; b++ {
			want := byte(a)&0xF0 | byte(b)>>4
			if want == 0xFF {
				want = 0xEE
			}
			if got := Pack(byte(a), byte(b)); got != want {
				t.Fatalf("Pack(0x%02X, 0x%02X) = 0x%02X, want 0x%02X", a, b, got, want)
			}
		}
	}
}

func TestEscape(t *testing.T) {
	tests := []struct {
		in, want byte
	}{
		{0x00, 0x00},
		{0xEE, 0xEE}, // genuine 0xEE is indistinguishable from an escaped sentinel
		{0xFE, 0xFE},
		{0xEF, 0xEF},
		{0xFF, 0xEE},
	}
	for _, tt := range tests {
		if got := Escape(tt.in); got != tt.want {
			t.Errorf("Escape(0x%02X) = 0x%02X, want 0x%02X", tt.in, got, tt.want)
		}
	}
}

// grid returns Width*Height 8-bit samples produced by fn.
func grid(fn func(i int) byte) []byte {
	samples := make([]byte, Width*Height)
	for i := range samples {
		samples[i] = fn(i)
	}
	return samples
}

func TestPackFrameNeverEmitsSentinel(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	payload := make([]byte, PayloadSize)
	for n := 0; n < 50; n++ {
		samples := grid(func(int) byte { return byte(rng.Intn(256)) })
		if err := PackFrame(bytes.NewReader(samples), payload); err != nil {
			t.Fatalf("PackFrame() error = %v", err)
		}
		if i := bytes.IndexByte(payload, StartSentinel); i >= 0 {
			t.Fatalf("iteration %d: payload[%d] = 0xFF", n, i)
		}
	}
}

func TestPackFrameScenarios(t *testing.T) {
	tests := []struct {
		name    string
		samples []byte
		want    byte
	}{
		{"all black", grid(func(int) byte { return 0x00 }), 0x00},
		{"all white is escaped", grid(func(int) byte { return 0xFF }), 0xEE},
		{"mid gray", grid(func(int) byte { return 0x87 }), 0x88},
		{"low nibbles dropped", grid(func(int) byte { return 0x0F }), 0x00},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload := make([]byte, PayloadSize)
			if err := PackFrame(bytes.NewReader(tt.samples), payload); err != nil {
				t.Fatalf("PackFrame() error = %v", err)
			}
			if len(payload) != 6144 {
				t.Fatalf("len(payload) = %d, want 6144", len(payload))
			}
			for i, b := range payload {
				if b != tt.want {
					t.Fatalf("payload[%d] = 0x%02X, want 0x%02X", i, b, tt.want)
				}
			}
		})
	}
}

func TestPackFrameRowMajor(t *testing.T) {
	// Left pixel of each pair encodes the column, right pixel the row.
	samples := grid(func(i int) byte {
		x, y := i%Width, i/Width
		if x%2 == 0 {
			return byte(x/2%16) << 4
		}
		return byte(y%16) << 4
	})
	payload := make([]byte, PayloadSize)
	if err := PackFrame(bytes.NewReader(samples), payload); err != nil {
		t.Fatalf("PackFrame() error = %v", err)
	}
	for _, p := range []struct{ col, row int }{{0, 0}, {5, 0}, {0, 7}, {63, 95}} {
		want := Pack(byte(p.col%16)<<4, byte(p.row%16)<<4)
		if got := payload[p.row*Width/2+p.col]; got != want {
			t.Errorf("payload at row %d col %d = 0x%02X, want 0x%02X", p.row, p.col, got, want)
		}
	}
}

func TestPackFrameTruncated(t *testing.T) {
	full := grid(func(i int) byte { return byte(i) })
	cuts := []struct {
		name string
		n    int
	}{
		{"empty", 0},
		{"one sample", 1},
		{"half", len(full) / 2},
		{"missing last A", len(full) - 2},
		{"missing last B", len(full) - 1},
	}

	for _, tt := range cuts {
		t.Run(tt.name, func(t *testing.T) {
			payload := make([]byte, PayloadSize)
			err := PackFrame(bytes.NewReader(full[:tt.n]), payload)
			if !errors.Is(err, ErrTruncated) {
				t.Fatalf("PackFrame() error = %v, want ErrTruncated", err)
			}
		})
	}
}

func TestPackFrameIgnoresTrailingBytes(t *testing.T) {
	samples := append(grid(func(int) byte { return 0x10 }), 0xFF, 0xFF)
	payload := make([]byte, PayloadSize)
	if err := PackFrame(bytes.NewReader(samples), payload); err != nil {
		t.Fatalf("PackFrame() error = %v", err)
	}
}

func TestPackFrameInvalidBufferSize(t *testing.T) {
	err := PackFrame(bytes.NewReader(nil), make([]byte, 100))
	if err == nil || err.Error() != "rit128: invalid buffer size" {
		t.Errorf("PackFrame() error = %v, want 'rit128: invalid buffer size'", err)
	}
}

func TestFrame(t *testing.T) {
	unit := Frame([]byte{0x12, 0x34})
	if !bytes.Equal(unit, []byte{0xFF, 0x12, 0x34}) {
		t.Errorf("Frame() = % X, want FF 12 34", unit)
	}

	blank := BlankUnit()
	if len(blank) != UnitSize {
		t.Fatalf("len(BlankUnit()) = %d, want %d", len(blank), UnitSize)
	}
	if blank[0] != StartSentinel {
		t.Errorf("BlankUnit()[0] = 0x%02X, want 0xFF", blank[0])
	}
	if bytes.Count(blank[1:], []byte{0}) != PayloadSize {
		t.Error("BlankUnit() payload is not all zero")
	}
}

func TestPackImage(t *testing.T) {
	src := image.NewGray(image.Rect(0, 0, 4, 2))
	copy(src.Pix, []byte{
		0xFF, 0xFF, 0x12, 0x9A,
		0x00, 0x80, 0x40, 0x4F,
	})
	dst := image4bit.NewHorizontalNibble(image.Rect(0, 0, 4, 2))
	PackImage(dst, src)

	// No escape: the image keeps true levels.
	want := []byte{0xFF, 0x19, 0x08, 0x44}
	if !bytes.Equal(dst.Pix, want) {
		t.Errorf("PackImage() Pix = % X, want % X", dst.Pix, want)
	}
}
