package renderer

import (
	"errors"
	"testing"
)

func TestGradientPattern(t *testing.T) {
	const width, height = 200, 100
	var pixels []RGB8
	var rows []int

	err := GradientPattern(width, height, func(row, col int, c RGB8) error {
		if row*width+col != len(pixels) {
			t.Fatalf("pixel (%d, %d) out of order", row, col)
		}
		pixels = append(pixels, c)
		return nil
	}, func(row, remaining int) {
		rows = append(rows, remaining)
	})
	if err != nil {
		t.Fatalf("GradientPattern: %v", err)
	}

	if len(pixels) != width*height {
		t.Fatalf("Expected %d pixels, got %d", width*height, len(pixels))
	}
	if rows[0] != height-1 || rows[len(rows)-1] != 0 {
		t.Errorf("Expected remaining rows from %d down to 0, got %d..%d", height-1, rows[0], rows[len(rows)-1])
	}

	// Top-left is pure green-ish, bottom-right is pure red-ish
	topLeft := pixels[0]
	if topLeft != (RGB8{R: 0, G: 253, B: 63}) {
		t.Errorf("Unexpected top-left pixel %+v", topLeft)
	}
	bottomRight := pixels[len(pixels)-1]
	if bottomRight != (RGB8{R: 254, G: 0, B: 63}) {
		t.Errorf("Unexpected bottom-right pixel %+v", bottomRight)
	}
}

func TestGradientPattern_EmitError(t *testing.T) {
	stop := errors.New("stop")
	count := 0
	err := GradientPattern(4, 4, func(row, col int, c RGB8) error {
		count++
		if count == 5 {
			return stop
		}
		return nil
	}, nil)

	if !errors.Is(err, stop) {
		t.Errorf("Expected emit error, got %v", err)
	}
	if count != 5 {
		t.Errorf("Expected emission to stop at 5 pixels, got %d", count)
	}
}
