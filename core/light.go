package core

import "github.com/go-gl/mathgl/mgl32"

// QuadLight is an area light: an emissive rectangle spanned by VX and VY
// around Position, facing along Normal.
type QuadLight struct {
	Emission mgl32.Vec4
	Position mgl32.Vec3
	Normal   mgl32.Vec3
	VX       mgl32.Vec3
	VY       mgl32.Vec3
	Width    float32
	Height   float32
}

// DefaultQuadLight is the light synthesized for scenes that carry none:
// a 5x5 quad ten units out along a fixed oblique direction.
func DefaultQuadLight() QuadLight {
	n := mgl32.Vec3{0.5, -0.8, -0.5}.Normalize()
	vx, vy := OrthoBasis(n)
	return QuadLight{
		Emission: mgl32.Vec4{20, 20, 20, 20},
		Normal:   n,
		Position: n.Mul(-10),
		VX:       vx,
		VY:       vy,
		Width:    5,
		Height:   5,
	}
}
