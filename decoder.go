package qoi

import (
	"bufio"
	"encoding/binary"
	"errors"
	"image"
	"image/color"
	"io"
)

func init() {
	image.RegisterFormat("qoi", Magic, Decode, DecodeConfig)
}

// Decode reads a QOI image from r and returns it as an image.NRGBA.
func Decode(r io.Reader) (image.Image, error) {
	d, err := NewDecoder(r)
	if err != nil {
		return nil, err
	}
	img := image.NewNRGBA(image.Rect(0, 0, int(d.Width()), int(d.Height())))
	i := 0
	for d.Next() {
		c := d.Current()
		img.Pix[i] = c.R
		img.Pix[i+1] = c.G
		img.Pix[i+2] = c.B
		img.Pix[i+3] = c.A
		i += 4
	}
	if err := d.Err(); err != nil {
		return nil, err
	}
	return img, nil
}

// DecodeConfig returns the color model and dimensions of a QOI image
// without decoding the pixel data.
func DecodeConfig(r io.Reader) (image.Config, error) {
	h, err := readDesc(r)
	if err != nil {
		return image.Config{}, err
	}
	return image.Config{
		ColorModel: color.NRGBAModel,
		Width:      int(h.Width),
		Height:     int(h.Height),
	}, nil
}

// DecodePixels reads a QOI image from r and returns its dimensions and
// all of its pixels in row-major order.
func DecodePixels(r io.Reader) (width, height uint32, pixels []Pixel, err error) {
	d, err := NewDecoder(r)
	if err != nil {
		return 0, 0, nil, err
	}
	pixels = make([]Pixel, 0, uint64(d.Width())*uint64(d.Height()))
	for d.Next() {
		pixels = append(pixels, d.Current())
	}
	if err := d.Err(); err != nil {
		return 0, 0, nil, err
	}
	return d.Width(), d.Height(), pixels, nil
}

func readDesc(r io.Reader) (desc, error) {
	var h desc
	var magic [4]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		return h, err
	}
	if magic != magicBytes {
		return h, InvalidHeaderError(magic)
	}
	if err := binary.Read(r, binary.BigEndian, &h); err != nil {
		return h, err
	}
	if h.Width == 0 || h.Height == 0 {
		return h, ErrInvalidDimensions
	}
	return h, nil
}

// Decoder is a pull-based QOI pixel stream. It yields exactly
// width*height pixels; the 4-byte terminator and anything after it are
// never read. The stream is forward-only and not restartable, and the
// first error permanently ends it.
type Decoder struct {
	r   *bufio.Reader
	hdr desc
	cur Pixel

	seen      [64]Pixel
	run       int
	remaining uint64

	err error
}

// NewDecoder reads and validates the header from r and returns a
// Decoder positioned at the first chunk. It fails before producing any
// pixel if the magic is not "qoif" (InvalidHeaderError) or either
// dimension is zero (ErrInvalidDimensions).
func NewDecoder(r io.Reader) (*Decoder, error) {
	h, err := readDesc(r)
	if err != nil {
		return nil, err
	}
	return &Decoder{
		r:         bufio.NewReader(r),
		hdr:       h,
		cur:       opaqueBlack,
		remaining: uint64(h.Width) * uint64(h.Height),
	}, nil
}

// Width returns the image width from the header.
func (d *Decoder) Width() uint32 { return d.hdr.Width }

// Height returns the image height from the header.
func (d *Decoder) Height() uint32 { return d.hdr.Height }

// Channels returns the header's channel-count byte. It is descriptive
// only; the pixel stream is always decoded as RGBA.
func (d *Decoder) Channels() uint8 { return d.hdr.Channels }

// Colorspace returns the header's colorspace byte.
func (d *Decoder) Colorspace() uint8 { return d.hdr.Colorspace }

// read8 reads one body byte. A clean EOF inside the body means the
// stream was truncated, so it surfaces as io.ErrUnexpectedEOF.
func (d *Decoder) read8() (b byte, ok bool) {
	b, d.err = d.r.ReadByte()
	if errors.Is(d.err, io.EOF) {
		d.err = io.ErrUnexpectedEOF
	}
	return b, d.err == nil
}

// Next advances to the next pixel. It returns false when all
// width*height pixels have been produced or an error occurred; check
// Err to tell the two apart.
func (d *Decoder) Next() bool {
	if d.err != nil || d.remaining == 0 {
		return false
	}
	d.remaining--

	// we're in a run of consecutive identical pixels; no need to read
	// more data
	if d.run > 0 {
		d.run--
		return true
	}

	b1, ok := d.read8()
	if !ok {
		return false
	}

	// Narrower masks first: the wider-mask chunk kinds occupy the top
	// of the tag space the narrow masks would otherwise claim.
	switch {
	case (b1 & QOI_MASK_2) == QOI_INDEX:
		d.cur = d.seen[b1&0x3f]

	case (b1 & QOI_MASK_3) == QOI_RUN_8:
		d.run = int(b1 & 0x1f)

	case (b1 & QOI_MASK_3) == QOI_RUN_16:
		b2, ok := d.read8()
		if !ok {
			return false
		}
		d.run = ((int(b1&0x1f) << 8) | int(b2)) + 32

	case (b1 & QOI_MASK_2) == QOI_DIFF_8:
		d.cur.R += ((b1 >> 4) & 0x03) - 2
		d.cur.G += ((b1 >> 2) & 0x03) - 2
		d.cur.B += (b1 & 0x03) - 2

	case (b1 & QOI_MASK_3) == QOI_DIFF_16:
		b2, ok := d.read8()
		if !ok {
			return false
		}
		d.cur.R += (b1 & 0x1f) - 16
		d.cur.G += (b2 >> 4) - 8
		d.cur.B += (b2 & 0x0f) - 8

	case (b1 & QOI_MASK_4) == QOI_DIFF_24:
		b2, ok := d.read8()
		if !ok {
			return false
		}
		b3, ok := d.read8()
		if !ok {
			return false
		}
		d.cur.R += (((b1 & 0x0f) << 1) | (b2 >> 7)) - 16
		d.cur.G += ((b2 & 0x7c) >> 2) - 16
		d.cur.B += (((b2 & 0x03) << 3) | ((b3 & 0xe0) >> 5)) - 16
		d.cur.A += (b3 & 0x1f) - 16

	case (b1 & QOI_MASK_4) == QOI_COLOR:
		if b1&8 != 0 {
			if d.cur.R, ok = d.read8(); !ok {
				return false
			}
		}
		if b1&4 != 0 {
			if d.cur.G, ok = d.read8(); !ok {
				return false
			}
		}
		if b1&2 != 0 {
			if d.cur.B, ok = d.read8(); !ok {
				return false
			}
		}
		if b1&1 != 0 {
			if d.cur.A, ok = d.read8(); !ok {
				return false
			}
		}
	}

	// Mirror of the encoder's cache bookkeeping. On an index hit this
	// rewrites the slot with the value it already holds, so the two
	// sides stay in lock-step.
	d.seen[d.cur.hash()] = d.cur
	return true
}

// Current returns the pixel produced by the last successful Next.
func (d *Decoder) Current() Pixel {
	return d.cur
}

// Err returns the error that ended the stream, or nil if the stream
// ended by producing all of its pixels (or has not ended yet).
func (d *Decoder) Err() error {
	return d.err
}
