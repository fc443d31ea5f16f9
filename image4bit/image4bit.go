package image4bit

import (
	"image"
	"image/color"
)

// Gray4 represents a 4-bit grayscale color (0-15 intensity levels).
// Only the lower 4 bits of Y are used.
type Gray4 struct {
	Y uint8
}

// Quantize reduces an 8-bit luminance sample to 4 bits by keeping its high
// nibble. It is the same reduction the wire packer applies.
func Quantize(y uint8) Gray4 {
	return Gray4{Y: y >> 4}
}

// RGBA converts the Gray4 color to standard RGBA.
// The 4-bit gray value (0-15) is scaled to 16-bit (0-65535).
func (c Gray4) RGBA() (r, g, b, a uint32) {
	// 0xF * 0x1111 = 0xFFFF, 0x5 * 0x1111 = 0x5555, etc.
	y := uint32(c.Y&0x0F) * 0x1111
	return y, y, y, 0xFFFF
}

// toGray4 converts any color.Color to Gray4.
func toGray4(c color.Color) color.Color {
	switch v := c.(type) {
	case Gray4:
		return v
	case color.Gray:
		return Quantize(v.Y)
	}
	r, g, b, _ := c.RGBA()
	// 0.299R + 0.587G + 0.114B on 16-bit channels, then keep the top nibble
	y := (299*r + 587*g + 114*b + 500) / 1000
	return Gray4{Y: uint8(y >> 12)}
}

// Gray4Model converts colors to Gray4.
var Gray4Model = color.ModelFunc(toGray4)

// HorizontalNibble is a 4-bit grayscale image where pixels are stored in horizontal nibble packing.
// Each byte contains 2 pixels: high nibble = left pixel, low nibble = right pixel.
type HorizontalNibble struct {
	Pix    []byte          // Pixel data (2 pixels per byte)
	Stride int             // Bytes per row
	Rect   image.Rectangle // Image bounds
}

// NewHorizontalNibble creates a new HorizontalNibble image with the specified bounds.
// The width must be even (since 2 pixels per byte).
func NewHorizontalNibble(r image.Rectangle) *HorizontalNibble {
	w, h := r.Dx(), r.Dy()
	if w < 0 || h < 0 {
		return &HorizontalNibble{Rect: r}
	}
	if w%2 != 0 {
		panic("image4bit: width must be even")
	}
	stride := w / 2
	return &HorizontalNibble{
		Pix:    make([]byte, stride*h),
		Stride: stride,
		Rect:   r,
	}
}

// ColorModel returns the color model of the image.
func (p *HorizontalNibble) ColorModel() color.Model {
	return Gray4Model
}

// Bounds returns the image bounds.
func (p *HorizontalNibble) Bounds() image.Rectangle {
	return p.Rect
}

// At returns the color of the pixel at (x, y).
// It implements the image.Image interface.
func (p *HorizontalNibble) At(x, y int) color.Color {
	return p.Gray4At(x, y)
}

// Gray4At returns the Gray4 color of the pixel at (x, y).
func (p *HorizontalNibble) Gray4At(x, y int) Gray4 {
	if !(image.Point{X: x, Y: y}.In(p.Rect)) {
		return Gray4{}
	}
	offset, shift := p.pixOffset(x, y)
	return Gray4{Y: (p.Pix[offset] >> shift) & 0x0F}
}

// Set sets the color of the pixel at (x, y).
func (p *HorizontalNibble) Set(x, y int, c color.Color) {
	p.SetGray4(x, y, Gray4Model.Convert(c).(Gray4))
}

// SetGray4 sets the Gray4 color of the pixel at (x, y).
// This is faster than Set() as it doesn't require color conversion.
func (p *HorizontalNibble) SetGray4(x, y int, c Gray4) {
	if !(image.Point{X: x, Y: y}.In(p.Rect)) {
		return
	}
	offset, shift := p.pixOffset(x, y)
	p.Pix[offset] = (p.Pix[offset] &^ (0x0F << shift)) | ((c.Y & 0x0F) << shift)
}

// Fill sets every pixel to c.
func (p *HorizontalNibble) Fill(c Gray4) {
	v := (c.Y&0x0F)<<4 | c.Y&0x0F
	for i := range p.Pix {
		p.Pix[i] = v
	}
}

// pixOffset returns the byte offset and bit shift for the pixel at (x, y).
// Even x (left pixel) lives in the high nibble, odd x in the low nibble.
func (p *HorizontalNibble) pixOffset(x, y int) (offset int, shift uint) {
	offset = (y-p.Rect.Min.Y)*p.Stride + (x-p.Rect.Min.X)/2
	shift = uint(4 * (1 - (x & 1)))
	return
}
