// Package image4bit provides the 4-bit grayscale image format of the RIT128x96x4 OLED panel.
//
// The panel shows 16 intensity levels (0-15). Pixels are stored in horizontal
// nibble packing where each byte contains 2 pixels, which is also how a rit128
// frame payload is laid out on the serial link.
//
// Memory layout example for a 4-pixel row:
//
//	Pixels: 0  1  2  3
//	Values: 5  10 3  12
//	Bytes:  0x5A     0x3C
//	        (0x5A = high nibble: 5, low nibble: A=10)
//	        (0x3C = high nibble: 3, low nibble: C=12)
//
// This package provides:
//
// - Gray4: A color type representing 4-bit grayscale (0-15)
// - Gray4Model: A color model for converting standard Go colors to Gray4
// - Quantize: the 8-bit to 4-bit reduction used by the wire packer
// - HorizontalNibble: An image.Image implementation matching the frame payload
//
// Example usage:
//
//	// Create a full panel frame
//	img := image4bit.NewHorizontalNibble(image.Rect(0, 0, 128, 96))
//
//	// Set a pixel from an 8-bit luminance sample
//	img.SetGray4(10, 20, image4bit.Quantize(0x87))
//
//	// Get a pixel
//	gray := img.Gray4At(10, 20)
//	println(gray.Y)  // Output: 8
//
//	// Use with standard Go image operations
//	draw.Draw(img, img.Bounds(), image.NewUniform(image4bit.Gray4{Y: 15}), image.Point{}, draw.Src)
package image4bit
