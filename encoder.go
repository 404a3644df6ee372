package qoi

import (
	"bufio"
	"encoding/binary"
	"image"
	"io"
	"iter"
)

// Encode writes img to w in QOI format.
func Encode(w io.Writer, img image.Image) error {
	b := img.Bounds()
	_, err := EncodePixels(w, uint32(b.Dx()), uint32(b.Dy()), func(yield func(Pixel) bool) {
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				if !yield(PixelFromColor(img.At(x, y))) {
					return
				}
			}
		}
	})
	return err
}

// EncodePixels encodes a width×height image whose pixels are supplied
// in row-major order by the given sequence, and returns the total
// number of bytes written, header and terminator included. The
// sequence must yield at least width*height pixels; if it ends early
// the error is ErrTooFewPixels, and any pixels beyond width*height are
// never consumed. Partial output written before a failure is not
// rolled back.
func EncodePixels(w io.Writer, width, height uint32, pixels iter.Seq[Pixel]) (int, error) {
	if width == 0 || height == 0 {
		return 0, ErrInvalidDimensions
	}

	if _, err := w.Write(magicBytes[:]); err != nil {
		return 0, err
	}
	hdr := desc{Width: width, Height: height, Channels: 4}
	if err := binary.Write(w, binary.BigEndian, hdr); err != nil {
		return len(magicBytes), err
	}
	n := len(magicBytes) + binary.Size(hdr)

	next, stop := iter.Pull(pixels)
	defer stop()

	enc := NewEncoder(w)
	total := uint64(width) * uint64(height)
	for i := uint64(0); i < total; i++ {
		px, ok := next()
		if !ok {
			return n + enc.BytesWritten(), ErrTooFewPixels
		}
		if err := enc.Encode(px); err != nil {
			return n + enc.BytesWritten(), err
		}
	}
	if err := enc.Finish(); err != nil {
		return n + enc.BytesWritten(), err
	}
	n += enc.BytesWritten()

	// 4 zero bytes mark the end of the data block.
	if err := binary.Write(w, binary.BigEndian, uint32(0)); err != nil {
		return n, err
	}
	return n + 4, nil
}

// Encoder is a streaming QOI chunk encoder. It emits body chunks only;
// the caller owns the header and the terminator. Errors are sticky:
// once a write fails, every later call reports the same error.
type Encoder struct {
	w *bufio.Writer

	prev Pixel
	run  int
	seen [64]Pixel

	n   int
	err error
}

// NewEncoder returns an Encoder writing body chunks to w.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{
		w:    bufio.NewWriter(w),
		prev: opaqueBlack,
	}
}

// Encode consumes one pixel. Runs are held back until they end, so the
// bytes for a pixel may not be written until a later call or Finish.
func (e *Encoder) Encode(px Pixel) error {
	// we use this to avoid the overhead of defer()
	// since Encode is called in a tight loop
	exit := func() error {
		e.prev = px
		return e.err
	}

	if px == e.prev {
		e.run++
	}

	if e.run == maxRun || px != e.prev {
		e.writeRun()
	}

	if px == e.prev {
		return e.err
	}

	pos := px.hash()

	// check if we've seen this color before
	if e.seen[pos] == px {
		e.writeByte(QOI_INDEX | pos)
		return exit()
	}

	e.seen[pos] = px

	dR := int(px.R) - int(e.prev.R)
	dG := int(px.G) - int(e.prev.G)
	dB := int(px.B) - int(e.prev.B)
	dA := int(px.A) - int(e.prev.A)

	// see if we can write out a delta
	if dR > -17 && dR < 16 &&
		dG > -17 && dG < 16 &&
		dB > -17 && dB < 16 &&
		dA > -17 && dA < 16 {
		switch {
		case dA == 0 &&
			dR > -3 && dR < 2 &&
			dG > -3 && dG < 2 &&
			dB > -3 && dB < 2:
			e.writeByte(QOI_DIFF_8 | byte(((dR+2)<<4)|(dG+2)<<2|(dB+2)))
		case dA == 0 &&
			dG > -9 && dG < 8 &&
			dB > -9 && dB < 8:
			e.writeByte(QOI_DIFF_16 | byte(dR+16))
			e.writeByte(byte(((dG + 8) << 4) | (dB + 8)))
		default:
			e.writeByte(QOI_DIFF_24 | byte((dR+16)>>1))
			e.writeByte(byte(((dR + 16) << 7) | ((dG + 16) << 2) | ((dB + 16) >> 3)))
			e.writeByte(byte(((dB + 16) << 5) | (dA + 16)))
		}
		return exit()
	}

	// color is too different; write out the raw values, but only for
	// the channels that actually changed
	mask := QOI_COLOR
	if dR != 0 {
		mask |= 1 << 3
	}
	if dG != 0 {
		mask |= 1 << 2
	}
	if dB != 0 {
		mask |= 1 << 1
	}
	if dA != 0 {
		mask |= 1 << 0
	}
	e.writeByte(mask)
	if dR != 0 {
		e.writeByte(px.R)
	}
	if dG != 0 {
		e.writeByte(px.G)
	}
	if dB != 0 {
		e.writeByte(px.B)
	}
	if dA != 0 {
		e.writeByte(px.A)
	}

	return exit()
}

// Finish flushes the in-flight run, if any, and the underlying buffer.
func (e *Encoder) Finish() error {
	e.writeRun()
	if e.err != nil {
		return e.err
	}
	return e.w.Flush()
}

// BytesWritten reports how many body bytes have been emitted so far,
// including any still sitting in the buffer.
func (e *Encoder) BytesWritten() int {
	return e.n
}

func (e *Encoder) writeRun() {
	if e.run <= 0 {
		return
	}
	if e.run < 33 {
		e.writeByte(QOI_RUN_8 | byte(e.run-1))
	} else {
		e.run -= 33
		e.writeByte(QOI_RUN_16 | byte(e.run>>8))
		e.writeByte(byte(e.run & 0xff))
	}
	e.run = 0
}

func (e *Encoder) writeByte(b byte) {
	if e.err != nil {
		return
	}
	e.err = e.w.WriteByte(b)
	if e.err == nil {
		e.n++
	}
}
