package loaders

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/df07/go-pathtracer/pkg/scene"
)

// Format identifies a scene description encoding
type Format string

const (
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// FormatFromPath picks the encoding from a file extension
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".toml":
		return FormatTOML, nil
	default:
		return "", fmt.Errorf("unsupported scene file extension %q", filepath.Ext(path))
	}
}

// ParseSceneDescription decodes a scene description. Unknown keys are rejected
// so typos in material or shape fields do not silently fall back to zero values.
func ParseSceneDescription(data []byte, format Format) (scene.Description, error) {
	var desc scene.Description

	switch format {
	case FormatYAML:
		decoder := yaml.NewDecoder(bytes.NewReader(data))
		decoder.KnownFields(true)
		if err := decoder.Decode(&desc); err != nil {
			return desc, fmt.Errorf("failed to parse YAML scene: %w", err)
		}
	case FormatTOML:
		decoder := toml.NewDecoder(bytes.NewReader(data))
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&desc); err != nil {
			return desc, fmt.Errorf("failed to parse TOML scene: %w", err)
		}
	default:
		return desc, fmt.Errorf("unsupported scene format %q", format)
	}

	return desc, nil
}

// LoadSceneDescription reads and decodes a scene file
func LoadSceneDescription(path string) (scene.Description, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return scene.Description{}, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return scene.Description{}, fmt.Errorf("failed to read scene file: %w", err)
	}

	desc, err := ParseSceneDescription(data, format)
	if err != nil {
		return desc, fmt.Errorf("%s: %w", path, err)
	}
	if desc.Name == "" {
		desc.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return desc, nil
}

// LoadScene reads a scene file and assembles the scene for the given aspect ratio
func LoadScene(path string, aspectRatio float64) (*scene.Scene, error) {
	desc, err := LoadSceneDescription(path)
	if err != nil {
		return nil, err
	}
	s, err := scene.FromDescription(desc, aspectRatio)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}
