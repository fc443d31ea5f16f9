// Package rit128 streams 4-bit grayscale frames to a RIT128x96x4 OLED panel
// over a serial link.
//
// The panel sits behind a microcontroller whose UART receive interrupt fills
// a 6144-byte frame buffer and draws it once full. This package implements the
// host side of that link: pixel packing, framing, the Drawer interface from
// periph.io, and a receiver-side Decoder that mirrors the firmware.
//
// # Wire Format
//
// Each frame is one transmission unit:
//
//	0xFF | 6144 payload bytes
//
// The payload holds 96 rows of 64 bytes. Each byte carries two horizontally
// adjacent pixels, left pixel in the high nibble:
//
//	packed = (A & 0xF0) | (B >> 4)
//
// A packed value of 0xFF would be mistaken for the start sentinel, so it is
// sent as 0xEE instead. This substitution is lossy: the panel shows an
// escaped white pair as 0xEE and cannot tell it from a genuine 0xEE pair.
//
// # Link Settings
//
//	Speed      1,500,000 baud
//	Framing    8-N-1, no flow control
//
// # Hardware Connection
//
//	Board Pin  → Host
//	GND        → GND
//	U0RX (PA0) → TX of the USB serial adapter
//	U0TX (PA1) → RX of the USB serial adapter (unused)
//
// # Basic Usage
//
//	package main
//
//	import (
//		"image"
//
//		"github.com/flavioheleno/rit128"
//		"github.com/flavioheleno/rit128/image4bit"
//		_ "github.com/flavioheleno/rit128/serialport"
//		"periph.io/x/conn/v3/uart/uartreg"
//		"periph.io/x/host/v3"
//	)
//
//	func main() {
//		// Runs the serialport driver, which registers every tty
//		host.Init()
//
//		p, _ := uartreg.Open("/dev/ttyUSB0")
//		defer p.Close()
//
//		dev, _ := rit128.NewUART(p, nil)
//		defer dev.Halt()
//
//		img := image4bit.NewHorizontalNibble(dev.Bounds())
//		for x := 0; x < rit128.Width; x++ {
//			for y := 0; y < rit128.Height; y++ {
//				img.SetGray4(x, y, image4bit.Gray4{Y: byte(x / 8)})
//			}
//		}
//		dev.Draw(dev.Bounds(), img, image.Point{})
//	}
//
// # Sending Raw Frames
//
// Pack samples from any io.ByteReader and write the payload:
//
//	payload := make([]byte, rit128.PayloadSize)
//	if err := rit128.PackFrame(r, payload); err != nil {
//		// errors.Is(err, rit128.ErrTruncated): drop the frame
//	}
//	dev.Write(payload)
//
// # Shutdown
//
// Halt sends the blanking frame three times (see Opts.BlankRepeats). There is
// no acknowledgment on the link, so the repetition covers a single lost unit.
package rit128
