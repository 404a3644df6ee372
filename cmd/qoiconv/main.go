package main

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"strings"

	"github.com/pixelcodec/qoi"
)

func main() {
	if len(os.Args) != 3 {
		fmt.Fprintln(os.Stderr, "usage: "+os.Args[0]+" infile outfile\ninfile and outfile being png or qoi")
		os.Exit(1)
	}
	if err := convert(os.Args[1], os.Args[2]); err != nil {
		fmt.Fprintln(os.Stderr, "qoiconv:", err)
		os.Exit(1)
	}
}

func convert(infile, outfile string) error {
	if !strings.HasSuffix(outfile, ".png") && !strings.HasSuffix(outfile, ".qoi") {
		return fmt.Errorf("only png or qoi output is supported")
	}

	f, err := os.Open(infile)
	if err != nil {
		return err
	}
	defer f.Close()

	// Both formats are registered with the image package, so this
	// handles png and qoi input alike.
	img, _, err := image.Decode(f)
	if err != nil {
		return fmt.Errorf("decoding %s: %w", infile, err)
	}

	of, err := os.Create(outfile)
	if err != nil {
		return err
	}

	if strings.HasSuffix(outfile, ".png") {
		err = png.Encode(of, img)
	} else {
		err = qoi.Encode(of, img)
	}
	if err != nil {
		of.Close()
		return fmt.Errorf("encoding %s: %w", outfile, err)
	}
	return of.Close()
}
