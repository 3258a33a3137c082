// Package config resolves render settings from defaults, an optional TOML
// file, command line flags and the environment, in that order of precedence
// (later sources win).
package config

import (
	"bytes"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/mitchellh/go-homedir"
	"github.com/pelletier/go-toml/v2"

	"github.com/df07/go-pathtracer/pkg/core"
	"github.com/df07/go-pathtracer/pkg/output"
	"github.com/df07/go-pathtracer/pkg/renderer"
)

// Environment variables holding S3 credentials. They are never read from the TOML file.
const (
	EnvS3AccessKey = "S3_ACCESS_KEY"
	EnvS3SecretKey = "S3_SECRET_KEY"
)

// ProgressiveSection configures multi-pass rendering
type ProgressiveSection struct {
	Enabled        bool `toml:"enabled"`
	Passes         int  `toml:"passes"`
	InitialSamples int  `toml:"initial_samples"`
}

// S3Section names the bucket finished renders are uploaded to. Upload is
// skipped when Bucket is empty.
type S3Section struct {
	Bucket    string `toml:"bucket"`
	Region    string `toml:"region"`
	Endpoint  string `toml:"endpoint"`
	Prefix    string `toml:"prefix"`
	AccessKey string `toml:"-"`
	SecretKey string `toml:"-"`
}

// Config holds every setting the command line tool and web server accept
type Config struct {
	Scene           string  `toml:"scene"`
	SceneFile       string  `toml:"scene_file"`
	ScenesDir       string  `toml:"scenes_dir"`
	Width           int     `toml:"width"`
	Height          int     `toml:"height"`
	SamplesPerPixel int     `toml:"samples_per_pixel"`
	MaxDepth        int     `toml:"max_depth"`
	Seed            int64   `toml:"seed"`
	Workers         int     `toml:"workers"`
	Output          string  `toml:"output"` // empty or "-" streams plain PPM to stdout
	Format          string  `toml:"format"` // empty derives the format from Output
	Scale           float64 `toml:"scale"`
	Thumbnail       uint    `toml:"thumbnail"`
	LogLevel        string  `toml:"log_level"`
	Watch           bool    `toml:"watch"`
	Gradient        bool    `toml:"gradient"`
	Quiet           bool    `toml:"quiet"`
	EnvFile         string  `toml:"env_file"`

	Progressive ProgressiveSection `toml:"progressive"`
	S3          S3Section          `toml:"s3"`
}

// Default returns the settings used when nothing else is given
func Default() Config {
	sampling := renderer.DefaultSamplingConfig()
	progressive := renderer.DefaultProgressiveConfig()
	return Config{
		Scene:           "default",
		ScenesDir:       "scenes",
		Width:           sampling.Width,
		Height:          sampling.Height,
		SamplesPerPixel: sampling.SamplesPerPixel,
		MaxDepth:        sampling.MaxDepth,
		Seed:            sampling.Seed,
		Scale:           1,
		LogLevel:        "info",
		EnvFile:         ".env",
		Progressive: ProgressiveSection{
			Passes:         progressive.MaxPasses,
			InitialSamples: progressive.InitialSamples,
		},
		S3: S3Section{Region: "us-east-1"},
	}
}

// Decode overlays TOML data onto c. Unknown keys are rejected.
func (c *Config) Decode(r io.Reader) error {
	dec := toml.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(c); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return fmt.Errorf("%s: %w", strings.TrimSpace(strict.String()), core.ErrInvalidConfig)
		}
		return fmt.Errorf("failed to parse config: %w", err)
	}
	return nil
}

// LoadFile overlays the TOML file at path onto c
func (c *Config) LoadFile(path string) error {
	expanded, err := homedir.Expand(path)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(expanded)
	if err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}
	if err := c.Decode(bytes.NewReader(data)); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

// BindFlags registers a flag for every setting, defaulting to the current values
func (c *Config) BindFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.Scene, "scene", c.Scene, "Built-in scene id or scene file name")
	fs.StringVar(&c.SceneFile, "scene-file", c.SceneFile, "Path to a YAML or TOML scene description (overrides -scene)")
	fs.StringVar(&c.ScenesDir, "scenes-dir", c.ScenesDir, "Directory searched for scene files")
	fs.IntVar(&c.Width, "width", c.Width, "Image width in pixels")
	fs.IntVar(&c.Height, "height", c.Height, "Image height in pixels")
	fs.IntVar(&c.SamplesPerPixel, "samples", c.SamplesPerPixel, "Samples per pixel")
	fs.IntVar(&c.MaxDepth, "max-depth", c.MaxDepth, "Maximum ray bounce depth")
	fs.Int64Var(&c.Seed, "seed", c.Seed, "Random seed")
	fs.IntVar(&c.Workers, "workers", c.Workers, "Render workers (0 = CPU count)")
	fs.StringVar(&c.Output, "output", c.Output, "Output file ('-' or empty for PPM on stdout)")
	fs.StringVar(&c.Format, "format", c.Format, "Output format: png, ppm, p6, bmp, tiff, tga, webp")
	fs.Float64Var(&c.Scale, "scale", c.Scale, "Resample the finished image by this factor")
	fs.UintVar(&c.Thumbnail, "thumbnail", c.Thumbnail, "Also write a thumbnail no larger than this many pixels")
	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "Log level: debug, info, warn, error")
	fs.BoolVar(&c.Watch, "watch", c.Watch, "Re-render whenever the scene file changes")
	fs.BoolVar(&c.Gradient, "gradient", c.Gradient, "Write the gradient calibration image instead of rendering")
	fs.BoolVar(&c.Quiet, "quiet", c.Quiet, "Suppress the scanlines remaining counter")
	fs.StringVar(&c.EnvFile, "env-file", c.EnvFile, "Dotenv file holding S3 credentials")
	fs.BoolVar(&c.Progressive.Enabled, "progressive", c.Progressive.Enabled, "Render in refining passes")
	fs.IntVar(&c.Progressive.Passes, "passes", c.Progressive.Passes, "Progressive pass count")
	fs.IntVar(&c.Progressive.InitialSamples, "initial-samples", c.Progressive.InitialSamples, "Samples in the first progressive pass")
	fs.StringVar(&c.S3.Bucket, "s3-bucket", c.S3.Bucket, "Upload the finished image to this bucket")
	fs.StringVar(&c.S3.Prefix, "s3-prefix", c.S3.Prefix, "Key prefix for uploads")
}

// LoadEnv reads S3 credentials from the environment, first loading EnvFile
// when it exists. Variables already set in the process environment win.
func (c *Config) LoadEnv() error {
	if c.EnvFile != "" {
		path, err := homedir.Expand(c.EnvFile)
		if err != nil {
			return err
		}
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err != nil {
				return fmt.Errorf("failed to load %s: %w", c.EnvFile, err)
			}
		}
	}
	c.S3.AccessKey = os.Getenv(EnvS3AccessKey)
	c.S3.SecretKey = os.Getenv(EnvS3SecretKey)
	return nil
}

// configPath finds -config / --config in args without parsing anything else
func configPath(args []string) string {
	for i, arg := range args {
		name, value, hasValue := strings.Cut(strings.TrimLeft(arg, "-"), "=")
		if !strings.HasPrefix(arg, "-") || name != "config" {
			continue
		}
		if hasValue {
			return value
		}
		if i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}

// Resolve builds the final configuration for args (without the program name).
// A -config file is applied before the other flags so flags override it.
func Resolve(args []string, errOut io.Writer) (*Config, error) {
	cfg := Default()
	if path := configPath(args); path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return nil, err
		}
	}

	fs := flag.NewFlagSet("pathtracer", flag.ContinueOnError)
	fs.SetOutput(errOut)
	fs.String("config", "", "TOML settings file applied before flags")
	cfg.BindFlags(fs)
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if err := cfg.LoadEnv(); err != nil {
		return nil, err
	}
	if err := cfg.expandPaths(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) expandPaths() error {
	for _, p := range []*string{&c.SceneFile, &c.ScenesDir, &c.Output} {
		if *p == "" || *p == "-" {
			continue
		}
		expanded, err := homedir.Expand(*p)
		if err != nil {
			return err
		}
		*p = expanded
	}
	return nil
}

// Validate reports settings that cannot produce an image
func (c Config) Validate() error {
	if err := c.Sampling().Validate(); err != nil {
		return err
	}
	if c.Progressive.Enabled {
		if err := c.ProgressiveConfig().Validate(); err != nil {
			return err
		}
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers %d: %w", c.Workers, core.ErrInvalidConfig)
	}
	if !(c.Scale > 0) || math.IsInf(c.Scale, 1) {
		return fmt.Errorf("scale %g: %w", c.Scale, core.ErrInvalidConfig)
	}
	if c.Scene == "" && c.SceneFile == "" && !c.Gradient {
		return fmt.Errorf("no scene given: %w", core.ErrInvalidConfig)
	}
	if c.Watch && c.SceneFile == "" {
		return fmt.Errorf("watch needs a scene file: %w", core.ErrInvalidConfig)
	}
	if c.Watch && c.StreamsToStdout() {
		return fmt.Errorf("watch needs an output file: %w", core.ErrInvalidConfig)
	}
	if _, err := c.OutputFormat(); err != nil {
		return fmt.Errorf("%v: %w", err, core.ErrInvalidConfig)
	}
	if _, err := c.SlogLevel(); err != nil {
		return fmt.Errorf("log level %q: %w", c.LogLevel, core.ErrInvalidConfig)
	}
	return nil
}

// StreamsToStdout reports whether the image is written as PPM to standard output
func (c Config) StreamsToStdout() bool {
	return c.Output == "" || c.Output == "-"
}

// OutputFormat returns the explicit format, else the one implied by Output
func (c Config) OutputFormat() (output.Format, error) {
	if c.Format != "" {
		return output.ParseFormat(c.Format)
	}
	if c.StreamsToStdout() {
		return output.FormatPPM, nil
	}
	return output.FormatFromPath(c.Output)
}

// SlogLevel parses LogLevel
func (c Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	err := level.UnmarshalText([]byte(c.LogLevel))
	return level, err
}

// Sampling returns the renderer settings
func (c Config) Sampling() renderer.SamplingConfig {
	return renderer.SamplingConfig{
		Width:           c.Width,
		Height:          c.Height,
		SamplesPerPixel: c.SamplesPerPixel,
		MaxDepth:        c.MaxDepth,
		Seed:            c.Seed,
	}
}

// ProgressiveConfig returns the pass schedule; the last pass reaches SamplesPerPixel
func (c Config) ProgressiveConfig() renderer.ProgressiveConfig {
	return renderer.ProgressiveConfig{
		InitialSamples:     c.Progressive.InitialSamples,
		MaxSamplesPerPixel: c.SamplesPerPixel,
		MaxPasses:          c.Progressive.Passes,
		NumWorkers:         c.Workers,
	}
}

// S3Config returns upload settings, or false when uploads are disabled
func (c Config) S3Config() (output.S3Config, bool) {
	if c.S3.Bucket == "" {
		return output.S3Config{}, false
	}
	return output.S3Config{
		Bucket:    c.S3.Bucket,
		Region:    c.S3.Region,
		Endpoint:  c.S3.Endpoint,
		Prefix:    c.S3.Prefix,
		AccessKey: c.S3.AccessKey,
		SecretKey: c.S3.SecretKey,
	}, true
}
