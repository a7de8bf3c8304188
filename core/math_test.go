package core

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
)

func TestOrthoBasisOrthonormal(t *testing.T) {
	normals := []mgl32.Vec3{
		{0, 0, 1},
		{0, 1, 0},
		{1, 0, 0},
		{0, 0, -1},
		mgl32.Vec3{1, 1, 1}.Normalize(),
		mgl32.Vec3{0.3, -0.9, 0.2}.Normalize(),
	}
	for _, n := range normals {
		vx, vy := OrthoBasis(n)
		assert.InDelta(t, 1.0, float64(vx.Len()), 1e-5, "n=%v", n)
		assert.InDelta(t, 1.0, float64(vy.Len()), 1e-5, "n=%v", n)
		assert.InDelta(t, 0.0, float64(vx.Dot(vy)), 1e-5, "n=%v", n)
		assert.InDelta(t, 0.0, float64(vx.Dot(n)), 1e-5, "n=%v", n)
		assert.InDelta(t, 0.0, float64(vy.Dot(n)), 1e-5, "n=%v", n)
		// Right-handed: vx cross vy recovers n.
		assert.InDelta(t, 1.0, float64(vx.Cross(vy).Dot(n)), 1e-5, "n=%v", n)
	}
}

func TestTransformPoint(t *testing.T) {
	m := mgl32.Translate3D(1, 2, 3)
	p := TransformPoint(m, mgl32.Vec3{1, 0, 0})
	assert.Equal(t, mgl32.Vec3{2, 2, 3}, p)
}

func TestNormalMatrixNonUniformScale(t *testing.T) {
	// Scaling geometry by (2,1,1) must not stretch normals along x.
	m := mgl32.Scale3D(2, 1, 1)
	nm := NormalMatrix(m)
	n := nm.Mul3x1(mgl32.Vec3{0, 0, 1})
	assert.InDelta(t, 0.0, float64(n.X()), 1e-5)
	assert.InDelta(t, 1.0, float64(n.Z()), 1e-5)

	n = nm.Mul3x1(mgl32.Vec3{1, 0, 0}).Normalize()
	assert.InDelta(t, 1.0, float64(n.X()), 1e-5)
}
