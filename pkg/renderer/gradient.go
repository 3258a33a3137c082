package renderer

// GradientPattern emits a calibration image without tracing any rays: red
// grows left to right, green grows bottom to top, blue is fixed at 0.25.
// Pixels arrive in the same top-to-bottom order Render uses, so any PixelFunc
// sink can be checked against it.
func GradientPattern(width, height int, emit PixelFunc, onRow RowFunc) error {
	for row := 0; row < height; row++ {
		j := height - 1 - row
		for i := 0; i < width; i++ {
			c := RGB8{
				R: gradientChannel(float64(i) / float64(width)),
				G: gradientChannel(float64(j) / float64(height)),
				B: gradientChannel(0.25),
			}
			if err := emit(row, i, c); err != nil {
				return err
			}
		}
		if onRow != nil {
			onRow(row, j)
		}
	}
	return nil
}

func gradientChannel(x float64) uint8 {
	return uint8(255.99 * x)
}
