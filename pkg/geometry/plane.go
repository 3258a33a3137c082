package geometry

import (
	"fmt"
	"math"

	"github.com/df07/go-pathtracer/pkg/core"
	"github.com/df07/go-pathtracer/pkg/material"
)

// Plane represents an infinite plane defined by a point and normal
type Plane struct {
	Point    core.Vec3         // A point on the plane
	Normal   core.Vec3         // Unit normal
	Material material.Material // Material of the plane
}

// NewPlane creates a new plane. The normal is normalized and must not be zero.
func NewPlane(point, normal core.Vec3, mat material.Material) (*Plane, error) {
	unit, err := normal.UnitVector()
	if err != nil {
		return nil, fmt.Errorf("plane normal: %w: %w", core.ErrInvalidGeometry, err)
	}
	if !point.IsFinite() {
		return nil, fmt.Errorf("plane point %v: %w", point, core.ErrInvalidGeometry)
	}
	if mat == nil {
		return nil, fmt.Errorf("plane without material: %w", core.ErrInvalidGeometry)
	}
	return &Plane{
		Point:    point,
		Normal:   unit,
		Material: mat,
	}, nil
}

// Hit tests if a ray intersects with the plane
func (p *Plane) Hit(ray core.Ray, tMin, tMax float64) (*material.HitRecord, bool) {
	denominator := ray.Direction.Dot(p.Normal)

	// Ray parallel to the plane
	if math.Abs(denominator) < 1e-8 {
		return nil, false
	}

	// t = (point_on_plane - ray_origin) · normal / (ray_direction · normal)
	t := p.Point.Subtract(ray.Origin).Dot(p.Normal) / denominator
	if t <= tMin || t >= tMax {
		return nil, false
	}

	hitRecord := &material.HitRecord{
		T:        t,
		Point:    ray.At(t),
		Material: p.Material,
	}
	hitRecord.SetFaceNormal(ray, p.Normal)

	return hitRecord, true
}
