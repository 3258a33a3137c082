package renderer

import (
	"context"
	"fmt"
	"image"
	"time"

	"github.com/df07/go-pathtracer/pkg/core"
)

// ProgressiveConfig contains configuration for progressive rendering
type ProgressiveConfig struct {
	InitialSamples     int // Samples for first pass (1 recommended)
	MaxSamplesPerPixel int // Maximum total samples per pixel
	MaxPasses          int // Maximum number of passes
	NumWorkers         int // Number of parallel workers (0 = use CPU count)
}

// DefaultProgressiveConfig returns sensible default values
func DefaultProgressiveConfig() ProgressiveConfig {
	return ProgressiveConfig{
		InitialSamples:     1,
		MaxSamplesPerPixel: 50,
		MaxPasses:          7,
		NumWorkers:         0, // Auto-detect CPU count
	}
}

// Validate reports pass schedules that cannot be rendered
func (c ProgressiveConfig) Validate() error {
	if c.MaxPasses <= 0 {
		return fmt.Errorf("max passes %d: %w", c.MaxPasses, core.ErrInvalidConfig)
	}
	if c.MaxSamplesPerPixel <= 0 {
		return fmt.Errorf("max samples per pixel %d: %w", c.MaxSamplesPerPixel, core.ErrInvalidConfig)
	}
	if c.MaxPasses > 1 && (c.InitialSamples <= 0 || c.InitialSamples > c.MaxSamplesPerPixel) {
		return fmt.Errorf("initial samples %d outside [1, %d]: %w", c.InitialSamples, c.MaxSamplesPerPixel, core.ErrInvalidConfig)
	}
	return nil
}

// PassResult contains the result of a single pass
type PassResult struct {
	PassNumber int
	Image      *image.RGBA
	Stats      RenderStats
	IsLast     bool
}

// ProgressiveRaytracer manages progressive rendering with multiple passes.
// Samples accumulate across passes, so every published image refines the last.
type ProgressiveRaytracer struct {
	raytracer   *Raytracer
	config      ProgressiveConfig
	pixelStats  [][]PixelStats // Shared pixel statistics array (global image coordinates)
	currentPass int
	logger      core.Logger
}

// NewProgressiveRaytracer creates a new progressive raytracer. The sampling config's
// SamplesPerPixel is replaced by the progressive MaxSamplesPerPixel.
func NewProgressiveRaytracer(scene Scene, sampling SamplingConfig, config ProgressiveConfig, logger core.Logger) (*ProgressiveRaytracer, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	sampling.SamplesPerPixel = config.MaxSamplesPerPixel
	raytracer, err := NewRaytracer(scene, sampling)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = core.NopLogger{}
	}
	raytracer.SetWorkers(config.NumWorkers)
	raytracer.SetLogger(logger)

	return &ProgressiveRaytracer{
		raytracer:  raytracer,
		config:     config,
		pixelStats: raytracer.newPixelBuffer(),
		logger:     logger,
	}, nil
}

// getSamplesForPass calculates the target total samples for a given pass
func (pr *ProgressiveRaytracer) getSamplesForPass(passNumber int) int {
	// Special case: if only 1 pass, use all samples
	if pr.config.MaxPasses == 1 {
		return pr.config.MaxSamplesPerPixel
	}

	// For multiple passes: first pass is quick preview
	if passNumber == 1 {
		return pr.config.InitialSamples
	}

	// Divide remaining samples evenly across remaining passes
	remainingSamples := pr.config.MaxSamplesPerPixel - pr.config.InitialSamples
	remainingPasses := pr.config.MaxPasses - 1
	samplesPerPass := remainingSamples / remainingPasses

	targetSamples := pr.config.InitialSamples + (passNumber-1)*samplesPerPass

	// For the final pass, use all remaining samples
	if passNumber == pr.config.MaxPasses {
		targetSamples = pr.config.MaxSamplesPerPixel
	}

	return targetSamples
}

// RenderPass renders a single progressive pass using parallel processing
func (pr *ProgressiveRaytracer) RenderPass(ctx context.Context, passNumber int) (*image.RGBA, RenderStats, error) {
	pr.currentPass = passNumber
	start := time.Now()

	targetSamples := pr.getSamplesForPass(passNumber)
	previousSamples := 0
	if passNumber > 1 {
		previousSamples = pr.getSamplesForPass(passNumber - 1)
	}

	pool := NewWorkerPool(pr.config.NumWorkers, pr.raytracer.renderRow)
	pr.logger.Printf("Pass %d: Target %d samples per pixel (using %d workers)...\n",
		passNumber, targetSamples, pool.GetNumWorkers())

	if added := targetSamples - previousSamples; added > 0 {
		tasks := pr.raytracer.rowTasks(passNumber, added, pr.pixelStats)
		if err := pool.Process(ctx, tasks, func(RowResult) error { return nil }); err != nil {
			return nil, RenderStats{}, err
		}
	}

	img, stats := pr.assembleCurrentImage(targetSamples)
	stats.finalize(start)
	return img, stats, nil
}

// RenderProgressive renders with channel-based communication.
// The caller should drain both channels; they are closed when rendering ends.
func (pr *ProgressiveRaytracer) RenderProgressive(ctx context.Context) (<-chan PassResult, <-chan error) {
	passChan := make(chan PassResult, 1)
	errChan := make(chan error, 1)

	go func() {
		defer close(passChan)
		defer close(errChan)

		pr.logger.Printf("Starting progressive rendering with %d passes...\n", pr.config.MaxPasses)

		for pass := 1; pass <= pr.config.MaxPasses; pass++ {
			// Check if client disconnected before starting this pass
			select {
			case <-ctx.Done():
				pr.logger.Printf("Rendering cancelled before pass %d\n", pass)
				errChan <- ctx.Err()
				return
			default:
			}

			img, stats, err := pr.RenderPass(ctx, pass)
			if err != nil {
				errChan <- err
				return
			}

			actualSamples := int(stats.AverageSamples)
			pr.logger.Printf("Pass %d completed in %v (actual: %d samples/pixel)\n",
				pass, stats.Duration, actualSamples)

			isLast := pass == pr.config.MaxPasses || actualSamples >= pr.config.MaxSamplesPerPixel
			result := PassResult{
				PassNumber: pass,
				Image:      img,
				Stats:      stats,
				IsLast:     isLast,
			}

			select {
			case passChan <- result:
			case <-ctx.Done():
				errChan <- ctx.Err()
				return
			}

			if isLast {
				break
			}
		}
	}()

	return passChan, errChan
}

// assembleCurrentImage creates an image from the current state of the shared pixel stats
// and calculates render statistics in a single pass
func (pr *ProgressiveRaytracer) assembleCurrentImage(targetSamples int) (*image.RGBA, RenderStats) {
	width, height := pr.raytracer.config.Width, pr.raytracer.config.Height
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	stats := newRenderStats(width*height, targetSamples)

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			pixel := &pr.pixelStats[y][x]
			img.SetRGBA(x, y, pixel.RGB8().RGBA())
			stats.addPixel(pixel)
		}
	}

	return img, stats
}
