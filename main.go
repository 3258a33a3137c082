package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"image"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/df07/go-pathtracer/pkg/config"
	"github.com/df07/go-pathtracer/pkg/core"
	"github.com/df07/go-pathtracer/pkg/loaders"
	"github.com/df07/go-pathtracer/pkg/output"
	"github.com/df07/go-pathtracer/pkg/renderer"
	"github.com/df07/go-pathtracer/pkg/scene"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// app carries the resolved settings through one CLI invocation
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	stdout io.Writer
	stderr io.Writer
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	cfg, err := config.Resolve(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			printScenes(stderr, config.Default().ScenesDir)
		}
		return err
	}

	level, _ := cfg.SlogLevel()
	a := &app{
		cfg:    cfg,
		logger: slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level})),
		stdout: stdout,
		stderr: stderr,
	}

	if cfg.Gradient {
		return a.writeGradient(ctx)
	}
	if err := a.renderOnce(ctx); err != nil {
		return err
	}
	if cfg.Watch {
		return a.watch(ctx)
	}
	return nil
}

func printScenes(w io.Writer, scenesDir string) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Available scenes:")
	scenes, err := scene.ListAllScenes(scenesDir)
	if err != nil {
		fmt.Fprintf(w, "  (failed to list scenes: %v)\n", err)
		return
	}
	for _, group := range scenes.Groups {
		for _, info := range group.Scenes {
			fmt.Fprintf(w, "  %-20s %s\n", info.ID, info.Description)
		}
	}
}

// loadScene builds the configured scene; a scene file takes precedence over a scene id
func (a *app) loadScene() (*scene.Scene, error) {
	aspect := a.cfg.Sampling().AspectRatio()
	if a.cfg.SceneFile != "" {
		return loaders.LoadScene(a.cfg.SceneFile, aspect)
	}
	return loaders.CreateScene(a.cfg.Scene, a.cfg.ScenesDir, aspect, a.cfg.Seed)
}

// progress prints the scanlines remaining counter the way a terminal expects it
func (a *app) progress() renderer.RowFunc {
	if a.cfg.Quiet {
		return nil
	}
	return func(row, remaining int) {
		fmt.Fprintf(a.stderr, "\rScanlines remaining: %d ", remaining)
		if remaining == 0 {
			fmt.Fprint(a.stderr, "\nDone.\n")
		}
	}
}

// streamsPPM reports whether pixels can go straight to stdout as they are finished
func (a *app) streamsPPM(format output.Format) bool {
	return a.cfg.StreamsToStdout() && a.cfg.Scale == 1 &&
		(format == output.FormatPPM || format == output.FormatP6)
}

func (a *app) renderOnce(ctx context.Context) error {
	sceneObj, err := a.loadScene()
	if err != nil {
		return err
	}
	format, err := a.cfg.OutputFormat()
	if err != nil {
		return err
	}
	a.logger.Info("rendering", "scene", sceneObj.Name, "primitives", sceneObj.GetPrimitiveCount(),
		"width", a.cfg.Width, "height", a.cfg.Height, "samples", a.cfg.SamplesPerPixel)

	if a.cfg.Progressive.Enabled {
		img, err := a.renderProgressive(ctx, sceneObj, format)
		if err != nil {
			return err
		}
		return a.publish(ctx, sceneObj.Name, img, format)
	}

	raytracer, err := renderer.NewRaytracer(sceneObj, a.cfg.Sampling())
	if err != nil {
		return err
	}
	raytracer.SetWorkers(a.cfg.Workers)
	raytracer.SetLogger(core.NewSlogLogger(a.logger))
	raytracer.SetRowCallback(a.progress())

	if a.streamsPPM(format) {
		pw, err := output.NewPPMWriter(a.stdout, a.cfg.Width, a.cfg.Height, format == output.FormatP6)
		if err != nil {
			return err
		}
		stats, err := raytracer.Render(ctx, pw.WritePixel)
		if err != nil {
			return err
		}
		a.logStats(stats)
		return pw.Close()
	}

	img, stats, err := raytracer.RenderImage(ctx)
	if err != nil {
		return err
	}
	a.logStats(stats)
	return a.publish(ctx, sceneObj.Name, img, format)
}

// renderProgressive runs every pass, rewriting the output file after each one
// so a viewer can watch the image refine
func (a *app) renderProgressive(ctx context.Context, sceneObj *scene.Scene, format output.Format) (image.Image, error) {
	pr, err := renderer.NewProgressiveRaytracer(sceneObj, a.cfg.Sampling(), a.cfg.ProgressiveConfig(), core.NewSlogLogger(a.logger))
	if err != nil {
		return nil, err
	}

	passChan, errChan := pr.RenderProgressive(ctx)
	var last renderer.PassResult
	for result := range passChan {
		last = result
		if !result.IsLast && !a.cfg.StreamsToStdout() {
			if _, err := output.SaveImage(a.cfg.Output, a.scaled(result.Image), format); err != nil {
				a.logger.Warn("failed to save intermediate pass", "pass", result.PassNumber, "err", err)
			}
		}
	}
	if err := <-errChan; err != nil {
		return nil, err
	}
	a.logStats(last.Stats)
	return last.Image, nil
}

func (a *app) logStats(stats renderer.RenderStats) {
	a.logger.Info("render complete", "duration", stats.Duration,
		"samples_per_pixel", stats.AverageSamples,
		"luminance", stats.AverageLuminance,
		"variance", stats.AverageVariance)
}

func (a *app) scaled(img image.Image) image.Image {
	if a.cfg.Scale == 1 {
		return img
	}
	return output.Scale(img, a.cfg.Scale)
}

// publish writes the finished image, its thumbnail, and the S3 copy when configured
func (a *app) publish(ctx context.Context, sceneName string, img image.Image, format output.Format) error {
	img = a.scaled(img)

	if a.cfg.StreamsToStdout() {
		return output.Encode(a.stdout, img, format)
	}

	path, err := output.SaveImage(a.cfg.Output, img, format)
	if err != nil {
		return err
	}
	a.logger.Info("render saved", "path", path)

	if a.cfg.Thumbnail > 0 {
		thumbPath := thumbnailPath(path)
		if _, err := output.SaveImage(thumbPath, output.Thumbnail(img, a.cfg.Thumbnail), format); err != nil {
			return err
		}
		a.logger.Info("thumbnail saved", "path", thumbPath)
	}

	s3cfg, ok := a.cfg.S3Config()
	if !ok {
		return nil
	}
	uploader, err := output.NewS3Uploader(s3cfg, core.NewSlogLogger(a.logger))
	if err != nil {
		return err
	}
	data, err := output.EncodeBytes(img, format)
	if err != nil {
		return err
	}
	name := sceneName + "/" + filepath.Base(path)
	_, err = uploader.Upload(ctx, name, data, format.ContentType())
	return err
}

// thumbnailPath inserts "_thumb" before the extension
func thumbnailPath(path string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + "_thumb" + ext
}

func (a *app) writeGradient(ctx context.Context) error {
	format, err := a.cfg.OutputFormat()
	if err != nil {
		return err
	}
	if a.streamsPPM(format) {
		pw, err := output.NewPPMWriter(a.stdout, a.cfg.Width, a.cfg.Height, format == output.FormatP6)
		if err != nil {
			return err
		}
		if err := renderer.GradientPattern(a.cfg.Width, a.cfg.Height, pw.WritePixel, a.progress()); err != nil {
			return err
		}
		return pw.Close()
	}

	img := image.NewRGBA(image.Rect(0, 0, a.cfg.Width, a.cfg.Height))
	err = renderer.GradientPattern(a.cfg.Width, a.cfg.Height, func(row, col int, c renderer.RGB8) error {
		img.SetRGBA(col, row, c.RGBA())
		return nil
	}, a.progress())
	if err != nil {
		return err
	}
	return a.publish(ctx, "gradient", img, format)
}

// watch re-renders whenever the scene file changes until ctx is cancelled.
// A failed re-render is logged and the previous output is kept.
func (a *app) watch(ctx context.Context) error {
	changes := make(chan struct{}, 1)
	watchErr := make(chan error, 1)
	go func() {
		watchErr <- loaders.Watch(ctx, a.cfg.SceneFile, loaders.DefaultDebounce, core.NewSlogLogger(a.logger), func() {
			select {
			case changes <- struct{}{}:
			default:
			}
		})
	}()

	a.logger.Info("watching scene file", "path", a.cfg.SceneFile)
	for {
		select {
		case <-changes:
			a.logger.Info("scene file changed, re-rendering")
			if err := a.renderOnce(ctx); err != nil && ctx.Err() == nil {
				a.logger.Error("re-render failed", "err", err)
			}
		case err := <-watchErr:
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
	}
}
