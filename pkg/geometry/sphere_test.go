package geometry

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/df07/go-pathtracer/pkg/core"
	"github.com/df07/go-pathtracer/pkg/material"
)

var testMaterial = material.NewLambertian(core.NewVec3(0.5, 0.5, 0.5))

func mustSphere(t *testing.T, center core.Vec3, radius float64) *Sphere {
	t.Helper()
	s, err := NewSphere(center, radius, testMaterial)
	if err != nil {
		t.Fatalf("NewSphere: %v", err)
	}
	return s
}

func TestNewSphere_InvalidGeometry(t *testing.T) {
	tests := []struct {
		name   string
		center core.Vec3
		radius float64
		mat    material.Material
	}{
		{"zero radius", core.NewVec3(0, 0, 0), 0, testMaterial},
		{"negative radius", core.NewVec3(0, 0, 0), -1, testMaterial},
		{"NaN radius", core.NewVec3(0, 0, 0), math.NaN(), testMaterial},
		{"infinite radius", core.NewVec3(0, 0, 0), math.Inf(1), testMaterial},
		{"infinite center", core.NewVec3(math.Inf(-1), 0, 0), 1, testMaterial},
		{"nil material", core.NewVec3(0, 0, 0), 1, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sphere, err := NewSphere(tt.center, tt.radius, tt.mat)
			if !errors.Is(err, core.ErrInvalidGeometry) {
				t.Errorf("Expected ErrInvalidGeometry, got %v", err)
			}
			if sphere != nil {
				t.Errorf("Expected nil sphere, got %+v", sphere)
			}
		})
	}
}

func TestSphere_Hit_RoundTrip(t *testing.T) {
	for _, r := range []float64{0.25, 0.5, 1, 2} {
		sphere := mustSphere(t, core.NewVec3(0, 0, 0), r)
		ray := core.NewRay(core.NewVec3(0, 0, 3), core.NewVec3(0, 0, -1))

		hit, isHit := sphere.Hit(ray, 0.001, math.Inf(1))
		if !isHit {
			t.Fatalf("radius %g: expected hit", r)
		}
		if math.Abs(hit.T-(3-r)) > 1e-12 {
			t.Errorf("radius %g: expected t=%f, got %f", r, 3-r, hit.T)
		}
		if hit.Normal.Subtract(core.NewVec3(0, 0, 1)).Length() > 1e-12 {
			t.Errorf("radius %g: expected normal (0,0,1), got %v", r, hit.Normal)
		}
		if !hit.FrontFace {
			t.Errorf("radius %g: expected front face", r)
		}
		if hit.Material != testMaterial {
			t.Errorf("radius %g: hit record should carry the sphere material", r)
		}
	}
}

func TestSphere_Hit_Miss(t *testing.T) {
	sphere := mustSphere(t, core.NewVec3(0, 0, 0), 1.0)
	ray := core.NewRay(core.NewVec3(2, 0, 0), core.NewVec3(0, 1, 0))

	if hit, isHit := sphere.Hit(ray, 0.001, 1000.0); isHit {
		t.Errorf("Expected miss, but got hit at t=%f", hit.T)
	}
}

func TestSphere_Hit_FrontAndBackFace(t *testing.T) {
	sphere := mustSphere(t, core.NewVec3(0, 0, 0), 1.0)

	tests := []struct {
		name           string
		rayOrigin      core.Vec3
		rayDirection   core.Vec3
		expectedT      float64
		expectedFront  bool
		expectedNormal core.Vec3
	}{
		{
			name:           "front face hit",
			rayOrigin:      core.NewVec3(0, 0, 2),
			rayDirection:   core.NewVec3(0, 0, -1),
			expectedT:      1.0,
			expectedFront:  true,
			expectedNormal: core.NewVec3(0, 0, 1),
		},
		{
			name:           "back face hit",
			rayOrigin:      core.NewVec3(0, 0, 0),
			rayDirection:   core.NewVec3(0, 0, 1),
			expectedT:      1.0,
			expectedFront:  false,
			expectedNormal: core.NewVec3(0, 0, -1),
		},
		{
			name:           "unnormalized direction",
			rayOrigin:      core.NewVec3(0, 0, 5),
			rayDirection:   core.NewVec3(0, 0, -2),
			expectedT:      2.0,
			expectedFront:  true,
			expectedNormal: core.NewVec3(0, 0, 1),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ray := core.NewRay(tt.rayOrigin, tt.rayDirection)
			hit, isHit := sphere.Hit(ray, 0.001, 1000.0)

			if !isHit {
				t.Fatal("Expected hit, but got miss")
			}
			if math.Abs(hit.T-tt.expectedT) > 1e-9 {
				t.Errorf("Expected t=%f, got t=%f", tt.expectedT, hit.T)
			}
			if hit.FrontFace != tt.expectedFront {
				t.Errorf("Expected front face %t, got %t", tt.expectedFront, hit.FrontFace)
			}
			if hit.Normal.Subtract(tt.expectedNormal).Length() > 1e-9 {
				t.Errorf("Expected normal %v, got %v", tt.expectedNormal, hit.Normal)
			}
		})
	}
}

func TestSphere_Hit_IntervalExcludesRoots(t *testing.T) {
	sphere := mustSphere(t, core.NewVec3(0, 0, 0), 1.0)
	ray := core.NewRay(core.NewVec3(0, 0, 3), core.NewVec3(0, 0, -1)) // roots at t=2 and t=4

	tests := []struct {
		name      string
		tMin      float64
		tMax      float64
		expectHit bool
		expectedT float64
	}{
		{"both roots valid", 0.001, 10, true, 2},
		{"near root excluded by tMin", 2.5, 10, true, 4},
		{"far root only, excluded by tMax", 2.5, 3.5, false, 0},
		{"tMax before near root", 0.001, 1.5, false, 0},
		{"root equal to tMax is excluded", 0.001, 2, false, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hit, isHit := sphere.Hit(ray, tt.tMin, tt.tMax)
			if isHit != tt.expectHit {
				t.Fatalf("Expected hit=%v, got %v", tt.expectHit, isHit)
			}
			if isHit && math.Abs(hit.T-tt.expectedT) > 1e-12 {
				t.Errorf("Expected t=%f, got %f", tt.expectedT, hit.T)
			}
		})
	}
}

func TestSphere_Hit_NormalOpposesRay(t *testing.T) {
	random := rand.New(rand.NewSource(42))
	sampler := core.NewRandomSampler(random)
	sphere := mustSphere(t, core.NewVec3(0.3, -0.2, 0.1), 1.3)

	hits := 0
	for i := 0; i < 5000; i++ {
		origin := core.RandomVec3(sampler, -4, 4)
		direction := core.RandomUnitVector(sampler).Multiply(0.1 + random.Float64()*3)
		ray := core.NewRay(origin, direction)

		hit, isHit := sphere.Hit(ray, 0.001, math.Inf(1))
		if !isHit {
			continue
		}
		hits++

		if ray.Direction.Dot(hit.Normal) >= 0 {
			t.Fatalf("Normal %v does not oppose ray direction %v", hit.Normal, ray.Direction)
		}
		if math.Abs(hit.Normal.Length()-1) > 1e-9 {
			t.Fatalf("Normal %v is not unit length", hit.Normal)
		}
		outward := hit.Point.Subtract(sphere.Center).Divide(sphere.Radius)
		if hit.FrontFace != (ray.Direction.Dot(outward) < 0) {
			t.Fatalf("FrontFace %v disagrees with outward normal %v", hit.FrontFace, outward)
		}
	}

	if hits == 0 {
		t.Fatal("Expected at least some random rays to hit the sphere")
	}
}

func TestSphere_Hit_DegenerateRay(t *testing.T) {
	sphere := mustSphere(t, core.NewVec3(0, 0, 0), 1.0)

	err := func() (err error) {
		defer core.RecoverInvariant(&err)
		sphere.Hit(core.NewRay(core.NewVec3(0, 0, 3), core.Vec3{}), 0.001, 10)
		return nil
	}()

	if !errors.Is(err, core.ErrDegenerateRay) {
		t.Errorf("Expected ErrDegenerateRay, got %v", err)
	}
}
