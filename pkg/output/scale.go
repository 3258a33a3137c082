package output

import (
	"image"

	"github.com/nfnt/resize"
	"golang.org/x/image/draw"
)

// Scale resamples img by factor with a Catmull-Rom filter. Factors below 1
// supersample down; factors above 1 enlarge. The result is at least 1x1.
func Scale(img image.Image, factor float64) *image.RGBA {
	bounds := img.Bounds()
	width := max(1, int(float64(bounds.Dx())*factor+0.5))
	height := max(1, int(float64(bounds.Dy())*factor+0.5))

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Src, nil)
	return dst
}

// Thumbnail shrinks img to fit within maxSize x maxSize, keeping the aspect ratio.
// Images already small enough are returned unchanged.
func Thumbnail(img image.Image, maxSize uint) image.Image {
	return resize.Thumbnail(maxSize, maxSize, img, resize.Lanczos3)
}
