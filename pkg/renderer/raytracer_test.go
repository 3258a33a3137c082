package renderer

import (
	"bytes"
	"context"
	"errors"
	"math"
	"testing"

	"github.com/df07/go-pathtracer/pkg/core"
	"github.com/df07/go-pathtracer/pkg/geometry"
	"github.com/df07/go-pathtracer/pkg/integrator"
	"github.com/df07/go-pathtracer/pkg/material"
)

// testScene implements Scene for testing
type testScene struct {
	camera     *geometry.Camera
	world      geometry.Shape
	background integrator.Background
}

func (s testScene) GetCamera() *geometry.Camera          { return s.camera }
func (s testScene) GetWorld() geometry.Shape             { return s.world }
func (s testScene) GetBackground() integrator.Background { return s.background }

// panicShape raises a hot-path invariant on every query
type panicShape struct{}

func (panicShape) Hit(ray core.Ray, tMin, tMax float64) (*material.HitRecord, bool) {
	core.Invariantf(core.ErrDegenerateRay, "test ray %v", ray)
	return nil, false
}

// createTestScene builds a diffuse sphere resting on a large ground sphere
func createTestScene(t *testing.T, aspectRatio float64) testScene {
	t.Helper()
	lambertian := material.NewLambertian(core.NewVec3(0.5, 0.5, 0.5))
	sphere, err := geometry.NewSphere(core.NewVec3(0, 0, -1), 0.5, lambertian)
	if err != nil {
		t.Fatalf("NewSphere: %v", err)
	}
	ground, err := geometry.NewSphere(core.NewVec3(0, -100.5, -1), 100, lambertian)
	if err != nil {
		t.Fatalf("NewSphere: %v", err)
	}
	camera, err := geometry.NewCamera(geometry.CameraConfig{
		LookFrom:    core.NewVec3(0, 0, 0),
		LookAt:      core.NewVec3(0, 0, -1),
		Up:          core.NewVec3(0, 1, 0),
		VFov:        90,
		AspectRatio: aspectRatio,
	})
	if err != nil {
		t.Fatalf("NewCamera: %v", err)
	}
	return testScene{
		camera:     camera,
		world:      geometry.NewHittableList(sphere, ground),
		background: integrator.DefaultBackground(),
	}
}

func smallConfig(seed int64) SamplingConfig {
	return SamplingConfig{Width: 20, Height: 10, SamplesPerPixel: 10, MaxDepth: 5, Seed: seed}
}

func renderBytes(t *testing.T, config SamplingConfig, workers int) []byte {
	t.Helper()
	rt, err := NewRaytracer(createTestScene(t, config.AspectRatio()), config)
	if err != nil {
		t.Fatalf("NewRaytracer: %v", err)
	}
	rt.SetWorkers(workers)
	img, _, err := rt.RenderImage(context.Background())
	if err != nil {
		t.Fatalf("RenderImage: %v", err)
	}
	return img.Pix
}

func TestQuantizeColor(t *testing.T) {
	tests := []struct {
		name     string
		sum      core.Vec3
		samples  int
		expected RGB8
	}{
		{"black", core.NewVec3(0, 0, 0), 1, RGB8{0, 0, 0}},
		{"white clamps to 255", core.NewVec3(1, 1, 1), 1, RGB8{255, 255, 255}},
		{"averaged white", core.NewVec3(4, 4, 4), 4, RGB8{255, 255, 255}},
		{"gamma quarter", core.NewVec3(0.25, 0.25, 0.25), 1, RGB8{127, 127, 127}},
		{"overbright clamps", core.NewVec3(50, 0, 0), 2, RGB8{255, 0, 0}},
		{"NaN maps to zero", core.NewVec3(math.NaN(), 1, 0), 1, RGB8{0, 255, 0}},
		{"negative maps to zero", core.NewVec3(-1, 0, 1), 1, RGB8{0, 0, 255}},
		{"infinity clamps", core.NewVec3(math.Inf(1), 0, 0), 1, RGB8{255, 0, 0}},
		{"no samples", core.NewVec3(1, 1, 1), 0, RGB8{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := QuantizeColor(tt.sum, tt.samples)
			if got != tt.expected {
				t.Errorf("Expected %v, got %v", tt.expected, got)
			}
		})
	}
}

func TestSamplingConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*SamplingConfig)
		valid  bool
	}{
		{"default", func(c *SamplingConfig) {}, true},
		{"zero depth renders black", func(c *SamplingConfig) { c.MaxDepth = 0 }, true},
		{"zero width", func(c *SamplingConfig) { c.Width = 0 }, false},
		{"negative height", func(c *SamplingConfig) { c.Height = -1 }, false},
		{"zero samples", func(c *SamplingConfig) { c.SamplesPerPixel = 0 }, false},
		{"negative depth", func(c *SamplingConfig) { c.MaxDepth = -1 }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultSamplingConfig()
			tt.modify(&config)
			err := config.Validate()
			if tt.valid && err != nil {
				t.Errorf("Expected valid config, got %v", err)
			}
			if !tt.valid && !errors.Is(err, core.ErrInvalidConfig) {
				t.Errorf("Expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}

func TestRaytracer_DeterministicWithSeed(t *testing.T) {
	first := renderBytes(t, smallConfig(1), 0)
	second := renderBytes(t, smallConfig(1), 0)
	if !bytes.Equal(first, second) {
		t.Error("Renders with the same seed should be byte-identical")
	}

	other := renderBytes(t, smallConfig(2), 0)
	if bytes.Equal(first, other) {
		t.Error("Renders with different seeds should differ")
	}
}

func TestRaytracer_IndependentOfWorkerCount(t *testing.T) {
	single := renderBytes(t, smallConfig(5), 1)
	parallel := renderBytes(t, smallConfig(5), 4)
	if !bytes.Equal(single, parallel) {
		t.Error("Render output should not depend on the number of workers")
	}
}

func TestRaytracer_EmissionOrder(t *testing.T) {
	config := smallConfig(3)
	rt, err := NewRaytracer(createTestScene(t, config.AspectRatio()), config)
	if err != nil {
		t.Fatalf("NewRaytracer: %v", err)
	}
	rt.SetWorkers(4)

	var remaining []int
	rt.SetRowCallback(func(row, left int) {
		remaining = append(remaining, left)
	})

	next := 0
	stats, err := rt.Render(context.Background(), func(row, col int, c RGB8) error {
		if row != next/config.Width || col != next%config.Width {
			t.Fatalf("Pixel %d emitted as (%d, %d)", next, row, col)
		}
		next++
		return nil
	})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}

	if next != config.Width*config.Height {
		t.Errorf("Expected %d pixels, got %d", config.Width*config.Height, next)
	}
	if len(remaining) != config.Height || remaining[0] != config.Height-1 || remaining[len(remaining)-1] != 0 {
		t.Errorf("Unexpected row progress %v", remaining)
	}
	if stats.TotalSamples != config.Width*config.Height*config.SamplesPerPixel {
		t.Errorf("Expected %d samples, got %d", config.Width*config.Height*config.SamplesPerPixel, stats.TotalSamples)
	}
	if stats.AverageSamples != float64(config.SamplesPerPixel) || stats.MinSamples != config.SamplesPerPixel {
		t.Errorf("Unexpected stats %+v", stats)
	}	// Sky radiance is at most 1 and scattering only attenuates
	if !(stats.AverageLuminance > 0 && stats.AverageLuminance <= 1) {
		t.Errorf("Expected average luminance in (0, 1], got %f", stats.AverageLuminance)
	}
	if !(stats.AverageVariance >= 0) {
		t.Errorf("Expected non-negative variance, got %f", stats.AverageVariance)
	}
}

func TestRaytracer_SkyAndGround(t *testing.T) {
	config := SamplingConfig{Width: 20, Height: 10, SamplesPerPixel: 20, MaxDepth: 10, Seed: 7}
	rt, err := NewRaytracer(createTestScene(t, config.AspectRatio()), config)
	if err != nil {
		t.Fatalf("NewRaytracer: %v", err)
	}
	img, _, err := rt.RenderImage(context.Background())
	if err != nil {
		t.Fatalf("RenderImage: %v", err)
	}

	// Top-left pixel sees only sky, which is bluer than it is red
	sky := img.RGBAAt(0, 0)
	if sky.B <= sky.R {
		t.Errorf("Expected blue sky at top-left, got %v", sky)
	}
	if sky.A != 255 {
		t.Errorf("Expected opaque pixels, got alpha %d", sky.A)
	}

	// The sphere in the middle is darker than the sky above it
	center := img.RGBAAt(10, 5)
	if int(center.R)+int(center.G)+int(center.B) >= int(sky.R)+int(sky.G)+int(sky.B) {
		t.Errorf("Expected shaded sphere %v darker than sky %v", center, sky)
	}
}

func TestRaytracer_ZeroDepthIsBlack(t *testing.T) {
	config := smallConfig(1)
	config.MaxDepth = 0
	rt, err := NewRaytracer(createTestScene(t, config.AspectRatio()), config)
	if err != nil {
		t.Fatalf("NewRaytracer: %v", err)
	}
	_, err = rt.Render(context.Background(), func(row, col int, c RGB8) error {
		if c != (RGB8{}) {
			t.Fatalf("Expected black at (%d, %d), got %v", row, col, c)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
}

func TestRaytracer_EmitErrorStopsRender(t *testing.T) {
	config := smallConfig(1)
	rt, err := NewRaytracer(createTestScene(t, config.AspectRatio()), config)
	if err != nil {
		t.Fatalf("NewRaytracer: %v", err)
	}

	errFull := errors.New("sink full")
	emitted := 0
	_, err = rt.Render(context.Background(), func(row, col int, c RGB8) error {
		if row == 3 {
			return errFull
		}
		emitted++
		return nil
	})
	if !errors.Is(err, errFull) {
		t.Errorf("Expected sink error, got %v", err)
	}
	if emitted != 3*config.Width {
		t.Errorf("Expected %d pixels before the failure, got %d", 3*config.Width, emitted)
	}
}

func TestRaytracer_Cancelled(t *testing.T) {
	config := smallConfig(1)
	rt, err := NewRaytracer(createTestScene(t, config.AspectRatio()), config)
	if err != nil {
		t.Fatalf("NewRaytracer: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = rt.Render(ctx, func(row, col int, c RGB8) error { return nil })
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestRaytracer_InvariantBecomesError(t *testing.T) {
	scene := createTestScene(t, 2)
	scene.world = panicShape{}
	rt, err := NewRaytracer(scene, smallConfig(1))
	if err != nil {
		t.Fatalf("NewRaytracer: %v", err)
	}

	_, _, err = rt.RenderImage(context.Background())
	if !errors.Is(err, core.ErrDegenerateRay) {
		t.Errorf("Expected ErrDegenerateRay from render, got %v", err)
	}
	var invariant *core.InvariantError
	if !errors.As(err, &invariant) {
		t.Errorf("Expected *core.InvariantError, got %T", err)
	}
}

func TestNewRaytracer_Invalid(t *testing.T) {
	config := smallConfig(1)
	config.SamplesPerPixel = 0
	if _, err := NewRaytracer(createTestScene(t, 2), config); !errors.Is(err, core.ErrInvalidConfig) {
		t.Errorf("Expected ErrInvalidConfig for bad sampling, got %v", err)
	}

	scene := createTestScene(t, 2)
	scene.camera = nil
	if _, err := NewRaytracer(scene, smallConfig(1)); !errors.Is(err, core.ErrInvalidConfig) {
		t.Errorf("Expected ErrInvalidConfig for missing camera, got %v", err)
	}
}
