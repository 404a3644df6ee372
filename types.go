// Package qoi implements the draft QOI image format: a lossless codec
// that encodes RGBA pixels as runs, color-cache references, small
// deltas against the previous pixel, or partial literals.
package qoi

import (
	"image/color"
)

const (
	QOI_INDEX   byte = 0x00 // 00xxxxxx
	QOI_RUN_8   byte = 0x40 // 010xxxxx
	QOI_RUN_16  byte = 0x60 // 011xxxxx
	QOI_DIFF_8  byte = 0x80 // 10xxxxxx
	QOI_DIFF_16 byte = 0xc0 // 110xxxxx
	QOI_DIFF_24 byte = 0xe0 // 1110xxxx
	QOI_COLOR   byte = 0xf0 // 1111xxxx

	QOI_MASK_2 byte = 0xc0 // 11000000
	QOI_MASK_3 byte = 0xe0 // 11100000
	QOI_MASK_4 byte = 0xf0 // 11110000

	// A run is flushed once it reaches the longest length RUN_16 can
	// hold: 32 + (1<<13).
	maxRun = 0x2020
)

// desc is the file header after the 4-byte magic, laid out for
// binary.Read/Write. The magic is handled separately so that a foreign
// stream is rejected before anything past it is consumed.
type desc struct {
	Width, Height        uint32
	Channels, Colorspace uint8
}

var (
	// Magic is the 4-byte signature beginning every QOI stream.
	Magic = string(magicBytes[:])

	magicBytes = [4]byte{'q', 'o', 'i', 'f'}

	// Both directions start from opaque black; the color cache starts
	// zeroed, so the two initial states are distinct.
	opaqueBlack = Pixel{A: 255}
)

// Pixel is one non-premultiplied RGBA pixel.
type Pixel struct {
	R, G, B, A uint8
}

// hash returns the pixel's slot in the 64-entry color cache.
func (p Pixel) hash() uint8 {
	return (p.R ^ p.G ^ p.B ^ p.A) % 64
}

// RGBA implements color.Color.
func (p Pixel) RGBA() (r, g, b, a uint32) {
	return p.NRGBA().RGBA()
}

// NRGBA converts the pixel to the equivalent color.NRGBA value.
func (p Pixel) NRGBA() color.NRGBA {
	return color.NRGBA{R: p.R, G: p.G, B: p.B, A: p.A}
}

// PixelFromColor converts any color.Color to a Pixel, un-premultiplying
// through the NRGBA model.
func PixelFromColor(c color.Color) Pixel {
	px := color.NRGBAModel.Convert(c).(color.NRGBA)
	return Pixel{R: px.R, G: px.G, B: px.B, A: px.A}
}
