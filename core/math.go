package core

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// OrthoBasis constructs two unit vectors orthogonal to n (and each other).
// n is assumed normalized.
func OrthoBasis(n mgl32.Vec3) (vx, vy mgl32.Vec3) {
	vy = mgl32.Vec3{0, 0, 0}

	ax, ay, az := abs(n.X()), abs(n.Y()), abs(n.Z())
	switch {
	case n.X() < 0.6 && n.X() > -0.6:
		vy[0] = 1
	case n.Y() < 0.6 && n.Y() > -0.6:
		vy[1] = 1
	case n.Z() < 0.6 && n.Z() > -0.6:
		vy[2] = 1
	default:
		// Nearly diagonal normal, pick the smallest component.
		if ax <= ay && ax <= az {
			vy[0] = 1
		} else if ay <= az {
			vy[1] = 1
		} else {
			vy[2] = 1
		}
	}
	vx = vy.Cross(n).Normalize()
	vy = n.Cross(vx).Normalize()
	return vx, vy
}

func abs(v float32) float32 {
	return float32(math.Abs(float64(v)))
}

// TransformPoint applies an affine 4x4 transform to a position.
func TransformPoint(m mgl32.Mat4, p mgl32.Vec3) mgl32.Vec3 {
	return m.Mul4x1(p.Vec4(1)).Vec3()
}

// NormalMatrix returns the inverse-transpose upper 3x3 of an affine
// transform, for transforming normals.
func NormalMatrix(m mgl32.Mat4) mgl32.Mat3 {
	return m.Inv().Transpose().Mat3()
}
