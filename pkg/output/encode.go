package output

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/HugoSmits86/nativewebp"
	"github.com/ftrvxmtrx/tga"
	"github.com/mitchellh/go-homedir"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
)

// Format names an output image encoding
type Format string

const (
	FormatPNG  Format = "png"
	FormatPPM  Format = "ppm" // plain text P3
	FormatP6   Format = "p6"  // binary PPM
	FormatBMP  Format = "bmp"
	FormatTIFF Format = "tiff"
	FormatTGA  Format = "tga"
	FormatWebP Format = "webp"
)

// Formats lists every supported encoding
var Formats = []Format{FormatPNG, FormatPPM, FormatP6, FormatBMP, FormatTIFF, FormatTGA, FormatWebP}

// ParseFormat validates a format name, case-insensitively
func ParseFormat(name string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimPrefix(name, ".")))
	switch f {
	case "tif":
		return FormatTIFF, nil
	case "jpg", "jpeg":
		return "", fmt.Errorf("unsupported image format %q (lossy formats are not offered)", name)
	}
	for _, known := range Formats {
		if f == known {
			return f, nil
		}
	}
	return "", fmt.Errorf("unsupported image format %q", name)
}

// FormatFromPath picks the format from the file extension
func FormatFromPath(path string) (Format, error) {
	return ParseFormat(filepath.Ext(path))
}

// Extension returns the file extension for a format, with the dot
func (f Format) Extension() string {
	if f == FormatP6 {
		return ".ppm"
	}
	return "." + string(f)
}

// ContentType returns the MIME type for a format
func (f Format) ContentType() string {
	switch f {
	case FormatPNG:
		return "image/png"
	case FormatPPM, FormatP6:
		return "image/x-portable-pixmap"
	case FormatBMP:
		return "image/bmp"
	case FormatTIFF:
		return "image/tiff"
	case FormatTGA:
		return "image/x-tga"
	case FormatWebP:
		return "image/webp"
	default:
		return "application/octet-stream"
	}
}

// Encode writes img to w in format
func Encode(w io.Writer, img image.Image, format Format) error {
	var err error
	switch format {
	case FormatPNG:
		err = png.Encode(w, img)
	case FormatPPM:
		err = EncodePPM(w, img, false)
	case FormatP6:
		err = EncodePPM(w, img, true)
	case FormatBMP:
		err = bmp.Encode(w, img)
	case FormatTIFF:
		err = tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate})
	case FormatTGA:
		err = tga.Encode(w, img)
	case FormatWebP:
		err = nativewebp.Encode(w, img, nil)
	default:
		return fmt.Errorf("unsupported image format %q", format)
	}
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", format, err)
	}
	return nil
}

// EncodeBytes encodes img into memory
func EncodeBytes(img image.Image, format Format) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, img, format); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ExpandPath resolves a leading ~ to the user's home directory
func ExpandPath(path string) (string, error) {
	expanded, err := homedir.Expand(path)
	if err != nil {
		return "", fmt.Errorf("failed to expand %q: %w", path, err)
	}
	return expanded, nil
}

// SaveImage encodes img to path, creating parent directories. It returns the expanded path.
func SaveImage(path string, img image.Image, format Format) (string, error) {
	expanded, err := ExpandPath(path)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(expanded), 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	file, err := os.Create(expanded)
	if err != nil {
		return "", fmt.Errorf("failed to create output file: %w", err)
	}
	if err := Encode(file, img, format); err != nil {
		file.Close()
		return "", err
	}
	if err := file.Close(); err != nil {
		return "", err
	}
	return expanded, nil
}
