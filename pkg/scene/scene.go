package scene

import (
	"fmt"

	"github.com/df07/go-pathtracer/pkg/core"
	"github.com/df07/go-pathtracer/pkg/geometry"
	"github.com/df07/go-pathtracer/pkg/integrator"
	"github.com/df07/go-pathtracer/pkg/material"
)

// Scene contains all the elements needed for rendering. Materials are shared by
// any number of shapes and are never mutated once the scene is assembled.
type Scene struct {
	Name         string
	Camera       *geometry.Camera
	CameraConfig geometry.CameraConfig
	World        *geometry.HittableList
	Background   integrator.Background
	Materials    map[string]material.Material // Named materials, for scene files

	bvh *geometry.BVH // built by BuildBVH, dropped when shapes are added
}

// BVHThreshold is the primitive count from which BuildBVH builds a hierarchy
const BVHThreshold = 32

// New creates an empty scene with a camera built from cameraConfig
func New(name string, cameraConfig geometry.CameraConfig, background integrator.Background) (*Scene, error) {
	camera, err := geometry.NewCamera(cameraConfig)
	if err != nil {
		return nil, fmt.Errorf("scene %q: %w", name, err)
	}
	return &Scene{
		Name:         name,
		Camera:       camera,
		CameraConfig: cameraConfig,
		World:        geometry.NewHittableList(),
		Background:   background,
		Materials:    make(map[string]material.Material),
	}, nil
}

// AddMaterial validates and registers a named material
func (s *Scene) AddMaterial(name string, mat material.Material) error {
	if err := material.Validate(mat); err != nil {
		return fmt.Errorf("material %q: %w", name, err)
	}
	s.Materials[name] = mat
	return nil
}

// AddSphere validates mat and adds a sphere to the world
func (s *Scene) AddSphere(center core.Vec3, radius float64, mat material.Material) error {
	if err := material.Validate(mat); err != nil {
		return err
	}
	sphere, err := geometry.NewSphere(center, radius, mat)
	if err != nil {
		return err
	}
	s.World.Add(sphere)
	s.bvh = nil
	return nil
}

// AddPlane validates mat and adds an infinite plane to the world
func (s *Scene) AddPlane(point, normal core.Vec3, mat material.Material) error {
	if err := material.Validate(mat); err != nil {
		return err
	}
	plane, err := geometry.NewPlane(point, normal, mat)
	if err != nil {
		return err
	}
	s.World.Add(plane)
	s.bvh = nil
	return nil
}

// GetCamera returns the scene camera
func (s *Scene) GetCamera() *geometry.Camera {
	return s.Camera
}

// BuildBVH indexes the world in a bounding volume hierarchy once it holds at
// least BVHThreshold primitives. Call it after the last shape is added.
func (s *Scene) BuildBVH() {
	if s.World.Len() >= BVHThreshold {
		s.bvh = geometry.NewBVH(s.World.Shapes)
	}
}

// GetWorld returns the shapes as a single hittable
func (s *Scene) GetWorld() geometry.Shape {
	if s.bvh != nil {
		return s.bvh
	}
	return s.World
}

// GetBackground returns the sky gradient
func (s *Scene) GetBackground() integrator.Background {
	return s.Background
}

// GetPrimitiveCount returns the total number of primitive objects in the scene
func (s *Scene) GetPrimitiveCount() int {
	return s.World.Len()
}
