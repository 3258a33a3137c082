package material

import (
	"fmt"
	"math"

	"github.com/df07/go-pathtracer/pkg/core"
)

// Validate checks that a material's parameters keep the renderer energy conserving:
// albedos must lie in [0,1] per channel and refractive indices must be finite and positive.
func Validate(m Material) error {
	switch mat := m.(type) {
	case nil:
		return fmt.Errorf("nil material: %w", core.ErrInvalidMaterial)
	case *Lambertian:
		return validateAlbedo("lambertian", mat.Albedo)
	case *Metal:
		if mat.Fuzzness < 0 || mat.Fuzzness > 1 || math.IsNaN(mat.Fuzzness) {
			return fmt.Errorf("metal fuzz %g outside [0,1]: %w", mat.Fuzzness, core.ErrInvalidMaterial)
		}
		return validateAlbedo("metal", mat.Albedo)
	case *Dielectric:
		ri := mat.RefractiveIndex
		if !(ri > 0) || math.IsInf(ri, 0) {
			return fmt.Errorf("dielectric refractive index %g must be finite and > 0: %w", ri, core.ErrInvalidMaterial)
		}
		return nil
	default:
		// Materials defined outside this package validate themselves, if they can
		if v, ok := m.(interface{ Validate() error }); ok {
			return v.Validate()
		}
		return nil
	}
}

func validateAlbedo(kind string, albedo core.Vec3) error {
	for _, c := range []float64{albedo.X, albedo.Y, albedo.Z} {
		if !(c >= 0 && c <= 1) {
			return fmt.Errorf("%s albedo %v outside [0,1]: %w", kind, albedo, core.ErrInvalidMaterial)
		}
	}
	return nil
}
