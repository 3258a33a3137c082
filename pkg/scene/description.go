package scene

import (
	"fmt"
	"sort"

	"github.com/df07/go-pathtracer/pkg/core"
	"github.com/df07/go-pathtracer/pkg/geometry"
	"github.com/df07/go-pathtracer/pkg/integrator"
	"github.com/df07/go-pathtracer/pkg/material"
)

// Description is the declarative form of a scene, as read from YAML or TOML files.
// Spheres and planes refer to materials by name so one material can be shared.
type Description struct {
	Name       string                         `yaml:"name" toml:"name"`
	Camera     CameraDescription              `yaml:"camera" toml:"camera"`
	Background *BackgroundDescription         `yaml:"background,omitempty" toml:"background,omitempty"`
	Materials  map[string]MaterialDescription `yaml:"materials" toml:"materials"`
	Spheres    []SphereDescription            `yaml:"spheres" toml:"spheres"`
	Planes     []PlaneDescription             `yaml:"planes,omitempty" toml:"planes,omitempty"`
}

// CameraDescription mirrors geometry.CameraConfig without the aspect ratio,
// which comes from the output image size
type CameraDescription struct {
	LookFrom      [3]float64 `yaml:"look_from" toml:"look_from"`
	LookAt        [3]float64 `yaml:"look_at" toml:"look_at"`
	Up            [3]float64 `yaml:"up" toml:"up"`
	VFov          float64    `yaml:"vfov" toml:"vfov"`
	Aperture      float64    `yaml:"aperture" toml:"aperture"`
	FocusDistance float64    `yaml:"focus_distance" toml:"focus_distance"`
}

type BackgroundDescription struct {
	Top    [3]float64 `yaml:"top" toml:"top"`
	Bottom [3]float64 `yaml:"bottom" toml:"bottom"`
}

// MaterialDescription selects a material kind by Type: lambertian, metal or dielectric
type MaterialDescription struct {
	Type            string     `yaml:"type" toml:"type"`
	Albedo          [3]float64 `yaml:"albedo,omitempty" toml:"albedo,omitempty"`
	Fuzz            float64    `yaml:"fuzz,omitempty" toml:"fuzz,omitempty"`
	RefractiveIndex float64    `yaml:"refractive_index,omitempty" toml:"refractive_index,omitempty"`
}

type SphereDescription struct {
	Center   [3]float64 `yaml:"center" toml:"center"`
	Radius   float64    `yaml:"radius" toml:"radius"`
	Material string     `yaml:"material" toml:"material"`
}

type PlaneDescription struct {
	Point    [3]float64 `yaml:"point" toml:"point"`
	Normal   [3]float64 `yaml:"normal" toml:"normal"`
	Material string     `yaml:"material" toml:"material"`
}

func vec(v [3]float64) core.Vec3 {
	return core.NewVec3(v[0], v[1], v[2])
}

// NewMaterial builds the material a description names
func (m MaterialDescription) NewMaterial() (material.Material, error) {
	switch m.Type {
	case "lambertian", "diffuse":
		return material.NewLambertian(vec(m.Albedo)), nil
	case "metal":
		// NewMetal would silently clamp these
		if !(m.Fuzz >= 0 && m.Fuzz <= 1) {
			return nil, fmt.Errorf("metal fuzz %g outside [0,1]: %w", m.Fuzz, core.ErrInvalidMaterial)
		}
		return material.NewMetal(vec(m.Albedo), m.Fuzz), nil
	case "dielectric", "glass":
		return material.NewDielectric(m.RefractiveIndex), nil
	default:
		return nil, fmt.Errorf("unknown material type %q: %w", m.Type, core.ErrInvalidMaterial)
	}
}

// CameraConfig converts the description, defaulting Up to +Y and VFov to 90 degrees
func (c CameraDescription) CameraConfig(aspectRatio float64) geometry.CameraConfig {
	config := geometry.CameraConfig{
		LookFrom:      vec(c.LookFrom),
		LookAt:        vec(c.LookAt),
		Up:            vec(c.Up),
		VFov:          c.VFov,
		AspectRatio:   aspectRatio,
		Aperture:      c.Aperture,
		FocusDistance: c.FocusDistance,
	}
	if config.Up == (core.Vec3{}) {
		config.Up = core.NewVec3(0, 1, 0)
	}
	if config.VFov == 0 {
		config.VFov = 90
	}
	return config
}

// FromDescription assembles and validates a scene
func FromDescription(desc Description, aspectRatio float64) (*Scene, error) {
	background := integrator.DefaultBackground()
	if desc.Background != nil {
		background = integrator.Background{Top: vec(desc.Background.Top), Bottom: vec(desc.Background.Bottom)}
	}

	name := desc.Name
	if name == "" {
		name = "custom"
	}
	s, err := New(name, desc.Camera.CameraConfig(aspectRatio), background)
	if err != nil {
		return nil, err
	}

	// Sorted so the first reported error is stable
	names := make([]string, 0, len(desc.Materials))
	for materialName := range desc.Materials {
		names = append(names, materialName)
	}
	sort.Strings(names)
	for _, materialName := range names {
		mat, err := desc.Materials[materialName].NewMaterial()
		if err != nil {
			return nil, fmt.Errorf("material %q: %w", materialName, err)
		}
		if err := s.AddMaterial(materialName, mat); err != nil {
			return nil, err
		}
	}

	lookup := func(name string) (material.Material, error) {
		mat, ok := s.Materials[name]
		if !ok {
			return nil, fmt.Errorf("undefined material %q: %w", name, core.ErrInvalidMaterial)
		}
		return mat, nil
	}

	for i, sphere := range desc.Spheres {
		mat, err := lookup(sphere.Material)
		if err != nil {
			return nil, fmt.Errorf("sphere %d: %w", i, err)
		}
		if err := s.AddSphere(vec(sphere.Center), sphere.Radius, mat); err != nil {
			return nil, fmt.Errorf("sphere %d: %w", i, err)
		}
	}
	for i, plane := range desc.Planes {
		mat, err := lookup(plane.Material)
		if err != nil {
			return nil, fmt.Errorf("plane %d: %w", i, err)
		}
		if err := s.AddPlane(vec(plane.Point), vec(plane.Normal), mat); err != nil {
			return nil, fmt.Errorf("plane %d: %w", i, err)
		}
	}

	s.BuildBVH()
	return s, nil
}
