package config

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/df07/go-pathtracer/pkg/core"
	"github.com/df07/go-pathtracer/pkg/output"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 400, cfg.Width)
	assert.Equal(t, 225, cfg.Height)
	assert.Equal(t, 100, cfg.SamplesPerPixel)
	assert.Equal(t, 50, cfg.MaxDepth)
	assert.True(t, cfg.StreamsToStdout())

	format, err := cfg.OutputFormat()
	require.NoError(t, err)
	assert.Equal(t, output.FormatPPM, format)
}

func TestDecode(t *testing.T) {
	cfg := Default()
	err := cfg.Decode(strings.NewReader(`
scene = "random"
width = 800
height = 450
samples_per_pixel = 500
seed = 7
output = "out/random.webp"

[progressive]
enabled = true
passes = 4

[s3]
bucket = "renders"
prefix = "nightly"
`))
	require.NoError(t, err)

	assert.Equal(t, "random", cfg.Scene)
	assert.Equal(t, 800, cfg.Width)
	assert.Equal(t, 500, cfg.SamplesPerPixel)
	assert.Equal(t, int64(7), cfg.Seed)
	assert.Equal(t, 50, cfg.MaxDepth, "unset keys keep defaults")
	assert.True(t, cfg.Progressive.Enabled)
	assert.Equal(t, 4, cfg.Progressive.Passes)
	assert.Equal(t, 1, cfg.Progressive.InitialSamples)

	format, err := cfg.OutputFormat()
	require.NoError(t, err)
	assert.Equal(t, output.FormatWebP, format)

	s3cfg, ok := cfg.S3Config()
	require.True(t, ok)
	assert.Equal(t, "renders", s3cfg.Bucket)
	assert.Equal(t, "nightly", s3cfg.Prefix)
	assert.Equal(t, "us-east-1", s3cfg.Region)
}

func TestDecode_UnknownKey(t *testing.T) {
	cfg := Default()
	err := cfg.Decode(strings.NewReader("widht = 10\n"))
	assert.ErrorIs(t, err, core.ErrInvalidConfig)
}

func TestDecode_Malformed(t *testing.T) {
	cfg := Default()
	assert.Error(t, cfg.Decode(strings.NewReader("width = \n")))
}

func TestResolve_FlagsOverrideFile(t *testing.T) {
	t.Setenv(EnvS3AccessKey, "")
	t.Setenv(EnvS3SecretKey, "")
	dir := t.TempDir()
	path := writeFile(t, dir, "render.toml", "width = 640\nheight = 480\nsamples_per_pixel = 20\n")

	cfg, err := Resolve([]string{"-config", path, "-samples", "5", "-env-file", ""}, io.Discard)
	require.NoError(t, err)

	assert.Equal(t, 640, cfg.Width)
	assert.Equal(t, 480, cfg.Height)
	assert.Equal(t, 5, cfg.SamplesPerPixel)
}

func TestResolve_ConfigEqualsForm(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "render.toml", "seed = 99\n")

	cfg, err := Resolve([]string{"--config=" + path, "-env-file", ""}, io.Discard)
	require.NoError(t, err)
	assert.Equal(t, int64(99), cfg.Seed)
}

func TestResolve_Invalid(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"zero width", []string{"-width", "0"}},
		{"zero samples", []string{"-samples", "0"}},
		{"negative depth", []string{"-max-depth", "-1"}},
		{"negative workers", []string{"-workers", "-2"}},
		{"zero scale", []string{"-scale", "0"}},
		{"infinite scale", []string{"-scale", "Inf"}},
		{"bad format", []string{"-format", "gif"}},
		{"bad extension", []string{"-output", "render.jpg"}},
		{"bad log level", []string{"-log-level", "loud"}},
		{"watch without file", []string{"-watch"}},
		{"watch to stdout", []string{"-watch", "-scene-file", "scene.yaml"}},
		{"progressive zero passes", []string{"-progressive", "-passes", "0"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Resolve(append(tt.args, "-env-file", ""), io.Discard)
			assert.ErrorIs(t, err, core.ErrInvalidConfig)
		})
	}
}

func TestResolve_UnknownFlag(t *testing.T) {
	_, err := Resolve([]string{"-no-such-flag"}, io.Discard)
	assert.Error(t, err)
}

func TestResolve_MissingConfigFile(t *testing.T) {
	_, err := Resolve([]string{"-config", filepath.Join(t.TempDir(), "missing.toml")}, io.Discard)
	assert.Error(t, err)
}

func TestLoadEnv_DotenvFile(t *testing.T) {
	t.Setenv(EnvS3AccessKey, "")
	t.Setenv(EnvS3SecretKey, "")
	os.Unsetenv(EnvS3AccessKey)
	os.Unsetenv(EnvS3SecretKey)

	dir := t.TempDir()
	path := writeFile(t, dir, ".env", "S3_ACCESS_KEY=from-file\nS3_SECRET_KEY=secret-from-file\n")

	cfg := Default()
	cfg.EnvFile = path
	require.NoError(t, cfg.LoadEnv())

	assert.Equal(t, "from-file", cfg.S3.AccessKey)
	assert.Equal(t, "secret-from-file", cfg.S3.SecretKey)
}

func TestLoadEnv_ProcessEnvironmentWins(t *testing.T) {
	t.Setenv(EnvS3AccessKey, "from-process")
	dir := t.TempDir()
	path := writeFile(t, dir, ".env", "S3_ACCESS_KEY=from-file\n")

	cfg := Default()
	cfg.EnvFile = path
	require.NoError(t, cfg.LoadEnv())
	assert.Equal(t, "from-process", cfg.S3.AccessKey)
}

func TestLoadEnv_MissingFileIgnored(t *testing.T) {
	cfg := Default()
	cfg.EnvFile = filepath.Join(t.TempDir(), "absent.env")
	assert.NoError(t, cfg.LoadEnv())
}

func TestProgressiveConfig(t *testing.T) {
	cfg := Default()
	cfg.SamplesPerPixel = 64
	cfg.Progressive.Passes = 3
	cfg.Workers = 2

	pc := cfg.ProgressiveConfig()
	assert.Equal(t, 64, pc.MaxSamplesPerPixel)
	assert.Equal(t, 3, pc.MaxPasses)
	assert.Equal(t, 1, pc.InitialSamples)
	assert.Equal(t, 2, pc.NumWorkers)
}

func TestSlogLevel(t *testing.T) {
	cfg := Default()
	cfg.LogLevel = "debug"
	level, err := cfg.SlogLevel()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level)
}

func TestS3Config_Disabled(t *testing.T) {
	_, ok := Default().S3Config()
	assert.False(t, ok)
}

func TestConfigPath(t *testing.T) {
	assert.Equal(t, "a.toml", configPath([]string{"-width", "5", "-config", "a.toml"}))
	assert.Equal(t, "b.toml", configPath([]string{"--config=b.toml"}))
	assert.Equal(t, "", configPath([]string{"-scene", "config"}))
	assert.Equal(t, "", configPath(nil))
}
