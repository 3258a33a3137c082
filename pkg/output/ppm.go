package output

import (
	"bufio"
	"errors"
	"fmt"
	"image"
	"io"

	"github.com/df07/go-pathtracer/pkg/renderer"
)

// ErrPixelOrder is returned when pixels reach a PPMWriter out of raster order
var ErrPixelOrder = errors.New("pixels out of raster order")

// PPMWriter streams a portable pixmap as pixels arrive. Plain (P3) output writes
// one "r g b" line per pixel; binary (P6) writes three bytes per pixel.
type PPMWriter struct {
	w             *bufio.Writer
	width, height int
	binary        bool
	next          int
}

// NewPPMWriter writes the header and returns a writer expecting width*height pixels
func NewPPMWriter(w io.Writer, width, height int, binary bool) (*PPMWriter, error) {
	pw := &PPMWriter{
		w:      bufio.NewWriter(w),
		width:  width,
		height: height,
		binary: binary,
	}
	magic := "P3"
	if binary {
		magic = "P6"
	}
	if _, err := fmt.Fprintf(pw.w, "%s\n%d %d\n255\n", magic, width, height); err != nil {
		return nil, err
	}
	return pw, nil
}

// WritePixel appends one pixel. Its signature matches renderer.PixelFunc.
func (pw *PPMWriter) WritePixel(row, col int, c renderer.RGB8) error {
	if row*pw.width+col != pw.next || pw.next >= pw.width*pw.height {
		return fmt.Errorf("pixel (%d, %d) after %d pixels: %w", row, col, pw.next, ErrPixelOrder)
	}
	pw.next++

	if pw.binary {
		_, err := pw.w.Write([]byte{c.R, c.G, c.B})
		return err
	}
	_, err := fmt.Fprintf(pw.w, "%d %d %d\n", c.R, c.G, c.B)
	return err
}

// Close flushes buffered output and reports an incomplete image
func (pw *PPMWriter) Close() error {
	if err := pw.w.Flush(); err != nil {
		return err
	}
	if pw.next != pw.width*pw.height {
		return fmt.Errorf("image incomplete: %d of %d pixels written", pw.next, pw.width*pw.height)
	}
	return nil
}

// EncodePPM writes a finished image as PPM
func EncodePPM(w io.Writer, img image.Image, binary bool) error {
	bounds := img.Bounds()
	pw, err := NewPPMWriter(w, bounds.Dx(), bounds.Dy(), binary)
	if err != nil {
		return err
	}
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			c := renderer.RGB8{R: uint8(r >> 8), G: uint8(g >> 8), B: uint8(b >> 8)}
			if err := pw.WritePixel(y-bounds.Min.Y, x-bounds.Min.X, c); err != nil {
				return err
			}
		}
	}
	return pw.Close()
}
