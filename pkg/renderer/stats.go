package renderer

import (
	"time"

	"github.com/df07/go-pathtracer/pkg/core"
)

// RenderStats contains statistics about the rendering process
type RenderStats struct {
	TotalPixels    int           // Total number of pixels rendered
	TotalSamples   int           // Total number of samples taken
	AverageSamples float64       // Average samples per pixel
	MaxSamples     int           // Maximum samples allowed per pixel
	MinSamples     int           // Minimum samples taken per pixel
	MaxSamplesUsed int           // Maximum samples actually used by any pixel
	Duration       time.Duration // Wall time of the render or pass

	AverageLuminance float64 // Mean linear luminance of the pixel estimates
	AverageVariance  float64 // Mean per-pixel luminance variance, a noise estimate

	luminanceSum float64
	varianceSum  float64
}

// newRenderStats creates empty stats for an image of totalPixels at maxSamples per pixel
func newRenderStats(totalPixels, maxSamples int) RenderStats {
	return RenderStats{
		TotalPixels: totalPixels,
		MaxSamples:  maxSamples,
		MinSamples:  maxSamples,
	}
}

// addPixel records one finished pixel
func (s *RenderStats) addPixel(pixel *PixelStats) {
	s.TotalSamples += pixel.SampleCount
	s.MinSamples = min(s.MinSamples, pixel.SampleCount)
	s.MaxSamplesUsed = max(s.MaxSamplesUsed, pixel.SampleCount)
	s.luminanceSum += pixel.GetColor().Luminance()
	s.varianceSum += pixel.Variance()
}

// finalize computes the derived averages
func (s *RenderStats) finalize(started time.Time) {
	if s.TotalPixels > 0 {
		s.AverageSamples = float64(s.TotalSamples) / float64(s.TotalPixels)
		s.AverageLuminance = s.luminanceSum / float64(s.TotalPixels)
		s.AverageVariance = s.varianceSum / float64(s.TotalPixels)
	}
	s.Duration = time.Since(started)
}

// PixelStats tracks sampling statistics for a single pixel
type PixelStats struct {
	ColorAccum       core.Vec3 // RGB accumulator for final result
	LuminanceAccum   float64   // Luminance accumulator for convergence
	LuminanceSqAccum float64   // Luminance squared for variance
	SampleCount      int       // Number of samples taken
}

// AddSample adds a new color sample to the pixel statistics
func (ps *PixelStats) AddSample(color core.Vec3) {
	ps.ColorAccum = ps.ColorAccum.Add(color)
	luminance := color.Luminance()
	ps.LuminanceAccum += luminance
	ps.LuminanceSqAccum += luminance * luminance
	ps.SampleCount++
}

// GetColor returns the current average color for this pixel
func (ps *PixelStats) GetColor() core.Vec3 {
	if ps.SampleCount == 0 {
		return core.Vec3{}
	}
	return ps.ColorAccum.Multiply(1.0 / float64(ps.SampleCount))
}

// Variance returns the sample variance of the pixel luminance
func (ps *PixelStats) Variance() float64 {
	if ps.SampleCount < 2 {
		return 0
	}
	n := float64(ps.SampleCount)
	mean := ps.LuminanceAccum / n
	return max(0, (ps.LuminanceSqAccum-n*mean*mean)/(n-1))
}

// RGB8 returns the display color of the pixel
func (ps *PixelStats) RGB8() RGB8 {
	return QuantizeColor(ps.ColorAccum, ps.SampleCount)
}
