package qoi

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidDimensions is returned when an image's width or height
	// is zero, on either the encode or the decode side.
	ErrInvalidDimensions = errors.New("qoi: width and height must be nonzero")

	// ErrTooFewPixels is returned by EncodePixels when the pixel
	// sequence ends before yielding width*height pixels.
	ErrTooFewPixels = errors.New("qoi: pixel sequence ended before width*height pixels")
)

// InvalidHeaderError is returned when a stream does not start with the
// "qoif" magic. It carries the four bytes that were found instead.
type InvalidHeaderError [4]byte

func (e InvalidHeaderError) Error() string {
	return fmt.Sprintf("qoi: invalid magic %q", e[:])
}
