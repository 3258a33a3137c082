package scene

import (
	"github.com/df07/go-pathtracer/pkg/core"
	"github.com/df07/go-pathtracer/pkg/geometry"
	"github.com/df07/go-pathtracer/pkg/integrator"
	"github.com/df07/go-pathtracer/pkg/material"
)

// applyOverrides merges the first camera override, if any, into config
func applyOverrides(config geometry.CameraConfig, overrides []geometry.CameraConfig) geometry.CameraConfig {
	if len(overrides) > 0 {
		return geometry.MergeCameraConfig(config, overrides[0])
	}
	return config
}

// NewDefaultScene creates the two-sphere scene: a diffuse sphere resting on a huge
// diffuse ground sphere, viewed through a pinhole camera at the origin
func NewDefaultScene(aspectRatio float64, cameraOverrides ...geometry.CameraConfig) (*Scene, error) {
	cameraConfig := applyOverrides(geometry.CameraConfig{
		LookFrom:      core.NewVec3(0, 0, 0),
		LookAt:        core.NewVec3(0, 0, -1),
		Up:            core.NewVec3(0, 1, 0),
		VFov:          90,
		AspectRatio:   aspectRatio,
		Aperture:      0,
		FocusDistance: 1,
	}, cameraOverrides)

	s, err := New("default", cameraConfig, integrator.DefaultBackground())
	if err != nil {
		return nil, err
	}

	diffuse := material.NewLambertian(core.NewVec3(0.5, 0.5, 0.5))
	if err := s.AddSphere(core.NewVec3(0, 0, -1), 0.5, diffuse); err != nil {
		return nil, err
	}
	if err := s.AddSphere(core.NewVec3(0, -100.5, -1), 100, diffuse); err != nil {
		return nil, err
	}
	return s, nil
}

// NewMaterialsScene shows one sphere per material kind on a yellowish ground:
// a hollow glass sphere on the left, diffuse in the middle, fuzzy metal on the right
func NewMaterialsScene(aspectRatio float64, cameraOverrides ...geometry.CameraConfig) (*Scene, error) {
	cameraConfig := applyOverrides(geometry.CameraConfig{
		LookFrom:    core.NewVec3(-2, 2, 1),
		LookAt:      core.NewVec3(0, 0, -1),
		Up:          core.NewVec3(0, 1, 0),
		VFov:        20,
		AspectRatio: aspectRatio,
	}, cameraOverrides)

	s, err := New("materials", cameraConfig, integrator.DefaultBackground())
	if err != nil {
		return nil, err
	}

	ground := material.NewLambertian(core.NewVec3(0.8, 0.8, 0.0))
	center := material.NewLambertian(core.NewVec3(0.1, 0.2, 0.5))
	glass := material.NewDielectric(1.5)
	bubble := material.NewDielectric(1.0 / 1.5)
	gold := material.NewMetal(core.NewVec3(0.8, 0.6, 0.2), 0.0)

	spheres := []struct {
		center core.Vec3
		radius float64
		mat    material.Material
	}{
		{core.NewVec3(0, -100.5, -1), 100, ground},
		{core.NewVec3(0, 0, -1), 0.5, center},
		{core.NewVec3(-1, 0, -1), 0.5, glass},
		{core.NewVec3(-1, 0, -1), 0.4, bubble}, // air pocket inside the glass
		{core.NewVec3(1, 0, -1), 0.5, gold},
	}
	for _, sp := range spheres {
		if err := s.AddSphere(sp.center, sp.radius, sp.mat); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// NewDefocusScene is the materials scene photographed with a wide aperture
// focused on the middle sphere
func NewDefocusScene(aspectRatio float64, cameraOverrides ...geometry.CameraConfig) (*Scene, error) {
	lookFrom := core.NewVec3(3, 3, 2)
	lookAt := core.NewVec3(0, 0, -1)
	config := geometry.CameraConfig{
		LookFrom:      lookFrom,
		LookAt:        lookAt,
		Up:            core.NewVec3(0, 1, 0),
		VFov:          20,
		AspectRatio:   aspectRatio,
		Aperture:      2.0,
		FocusDistance: lookFrom.Subtract(lookAt).Length(),
	}
	if len(cameraOverrides) > 0 {
		config = geometry.MergeCameraConfig(config, cameraOverrides[0])
	}

	s, err := NewMaterialsScene(aspectRatio, config)
	if err != nil {
		return nil, err
	}
	s.Name = "defocus"
	return s, nil
}
