package renderer

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"math"
	"time"

	"github.com/df07/go-pathtracer/pkg/core"
	"github.com/df07/go-pathtracer/pkg/geometry"
	"github.com/df07/go-pathtracer/pkg/integrator"
)

// SamplingConfig contains rendering configuration
type SamplingConfig struct {
	Width           int   // Image width in pixels
	Height          int   // Image height in pixels
	SamplesPerPixel int   // Number of rays per pixel
	MaxDepth        int   // Maximum ray bounce depth
	Seed            int64 // Base seed; equal seeds give byte-identical images
}

// DefaultSamplingConfig returns sensible default values
func DefaultSamplingConfig() SamplingConfig {
	return SamplingConfig{
		Width:           400,
		Height:          225,
		SamplesPerPixel: 100,
		MaxDepth:        50,
		Seed:            42,
	}
}

// Validate reports configurations that cannot be rendered
func (c SamplingConfig) Validate() error {
	if c.Width <= 0 || c.Height <= 0 {
		return fmt.Errorf("image size %dx%d: %w", c.Width, c.Height, core.ErrInvalidConfig)
	}
	if c.SamplesPerPixel <= 0 {
		return fmt.Errorf("samples per pixel %d: %w", c.SamplesPerPixel, core.ErrInvalidConfig)
	}
	if c.MaxDepth < 0 {
		return fmt.Errorf("max depth %d: %w", c.MaxDepth, core.ErrInvalidConfig)
	}
	return nil
}

// AspectRatio returns width / height
func (c SamplingConfig) AspectRatio() float64 {
	return float64(c.Width) / float64(c.Height)
}

// Scene interface to avoid circular imports
type Scene interface {
	GetCamera() *geometry.Camera
	GetWorld() geometry.Shape
	GetBackground() integrator.Background
}

// RGB8 is a quantized display color
type RGB8 struct {
	R, G, B uint8
}

// RGBA converts to an opaque color.RGBA
func (c RGB8) RGBA() color.RGBA {
	return color.RGBA{R: c.R, G: c.G, B: c.B, A: 255}
}

// PixelFunc receives finished pixels, top row first and left to right within a row
type PixelFunc func(row, col int, c RGB8) error

// RowFunc is notified after a row has been emitted with the number of rows still to go
type RowFunc func(row, remaining int)

// QuantizeColor averages a sum of samples, applies gamma 2 and maps to [0, 255].
// NaN and negative channels map to 0.
func QuantizeColor(sum core.Vec3, samples int) RGB8 {
	if samples <= 0 {
		return RGB8{}
	}
	scale := 1.0 / float64(samples)
	return RGB8{
		R: quantizeChannel(sum.X * scale),
		G: quantizeChannel(sum.Y * scale),
		B: quantizeChannel(sum.Z * scale),
	}
}

func quantizeChannel(x float64) uint8 {
	if !(x > 0) {
		return 0
	}
	x = math.Sqrt(x)
	if x > 0.999 {
		x = 0.999
	}
	return uint8(255.999 * x)
}

// Raytracer handles the rendering process
type Raytracer struct {
	scene      Scene
	config     SamplingConfig
	integrator integrator.Integrator
	numWorkers int
	logger     core.Logger
	onRow      RowFunc
}

// NewRaytracer creates a new raytracer
func NewRaytracer(scene Scene, config SamplingConfig) (*Raytracer, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if scene == nil || scene.GetCamera() == nil || scene.GetWorld() == nil {
		return nil, fmt.Errorf("scene without camera or world: %w", core.ErrInvalidConfig)
	}
	return &Raytracer{
		scene:      scene,
		config:     config,
		integrator: integrator.NewPathTracingIntegrator(),
		logger:     core.NopLogger{},
	}, nil
}

// SetWorkers sets the number of parallel row workers (0 = use CPU count)
func (rt *Raytracer) SetWorkers(n int) {
	rt.numWorkers = n
}

// SetLogger sets the logger used for render diagnostics
func (rt *Raytracer) SetLogger(logger core.Logger) {
	rt.logger = logger
}

// SetRowCallback installs a progress callback invoked after each emitted row
func (rt *Raytracer) SetRowCallback(fn RowFunc) {
	rt.onRow = fn
}

// Config returns the sampling configuration
func (rt *Raytracer) Config() SamplingConfig {
	return rt.config
}

// renderRow adds task.Samples jittered camera samples to every pixel of task.Row.
// The generator is derived from (seed, pass, row) so the result does not depend on
// which worker runs the task.
func (rt *Raytracer) renderRow(task RowTask) RenderStats {
	camera := rt.scene.GetCamera()
	world := rt.scene.GetWorld()
	background := rt.scene.GetBackground()
	sampler := core.NewSeededSampler(core.DeriveSeed(rt.config.Seed, task.Pass, task.Row))

	width := float64(rt.config.Width)
	height := float64(rt.config.Height)
	// Image rows run top-down, viewport t runs bottom-up
	j := float64(rt.config.Height - 1 - task.Row)

	stats := newRenderStats(rt.config.Width, rt.config.SamplesPerPixel)
	for i := range task.Pixels {
		pixel := &task.Pixels[i]
		for sample := 0; sample < task.Samples; sample++ {
			s := (float64(i) + sampler.Get1D()) / width
			t := (j + sampler.Get1D()) / height
			ray := camera.GetRay(s, t, sampler)
			pixel.AddSample(rt.integrator.RayColor(ray, world, background, sampler, rt.config.MaxDepth))
		}
		stats.addPixel(pixel)
	}
	return stats
}

// newPixelBuffer allocates one accumulator row per image row
func (rt *Raytracer) newPixelBuffer() [][]PixelStats {
	pixels := make([][]PixelStats, rt.config.Height)
	for y := range pixels {
		pixels[y] = make([]PixelStats, rt.config.Width)
	}
	return pixels
}

// rowTasks builds one task per row for a pass
func (rt *Raytracer) rowTasks(pass, samples int, pixels [][]PixelStats) []RowTask {
	tasks := make([]RowTask, len(pixels))
	for y := range pixels {
		tasks[y] = RowTask{Row: y, Pass: pass, Samples: samples, Pixels: pixels[y]}
	}
	return tasks
}

// Render computes every pixel with SamplesPerPixel samples and emits them strictly
// top-to-bottom, left-to-right. Rows are computed in parallel and flushed in order.
func (rt *Raytracer) Render(ctx context.Context, emit PixelFunc) (RenderStats, error) {
	start := time.Now()
	pixels := rt.newPixelBuffer()
	tasks := rt.rowTasks(1, rt.config.SamplesPerPixel, pixels)
	pool := NewWorkerPool(rt.numWorkers, rt.renderRow)

	rt.logger.Printf("Rendering %dx%d at %d samples per pixel (using %d workers)...\n",
		rt.config.Width, rt.config.Height, rt.config.SamplesPerPixel, pool.GetNumWorkers())

	stats := newRenderStats(rt.config.Width*rt.config.Height, rt.config.SamplesPerPixel)
	finished := make([]bool, rt.config.Height)
	nextRow := 0

	err := pool.Process(ctx, tasks, func(result RowResult) error {
		finished[result.Row] = true
		for nextRow < rt.config.Height && finished[nextRow] {
			for col := range pixels[nextRow] {
				pixel := &pixels[nextRow][col]
				stats.addPixel(pixel)
				if err := emit(nextRow, col, pixel.RGB8()); err != nil {
					return fmt.Errorf("emit pixel (%d, %d): %w", nextRow, col, err)
				}
			}
			if rt.onRow != nil {
				rt.onRow(nextRow, rt.config.Height-nextRow-1)
			}
			nextRow++
		}
		return nil
	})
	if err != nil {
		return RenderStats{}, err
	}

	stats.finalize(start)
	rt.logger.Printf("Render completed in %v\n", stats.Duration)
	return stats, nil
}

// RenderImage renders into an RGBA image
func (rt *Raytracer) RenderImage(ctx context.Context) (*image.RGBA, RenderStats, error) {
	img := image.NewRGBA(image.Rect(0, 0, rt.config.Width, rt.config.Height))
	stats, err := rt.Render(ctx, func(row, col int, c RGB8) error {
		img.SetRGBA(col, row, c.RGBA())
		return nil
	})
	if err != nil {
		return nil, RenderStats{}, err
	}
	return img, stats, nil
}
