package loader

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/qmuntal/gltf"
)

func TestGltfNodeTransformDefaults(t *testing.T) {
	// A node with no transform fields decodes as zero values; the glTF
	// defaults (identity rotation, unit scale) must be substituted.
	m := gltfNodeTransform(&gltf.Node{})
	if !m.ApproxEqual(mgl32.Ident4()) {
		t.Errorf("empty node should be identity, got %v", m)
	}
}

func TestGltfNodeTransformTRS(t *testing.T) {
	// Decoding substitutes the identity matrix when the file has none;
	// TRS must still govern in that case.
	node := &gltf.Node{
		Matrix:      gltf.DefaultMatrix,
		Translation: [3]float32{1, 2, 3},
		Scale:       [3]float32{2, 2, 2},
	}
	m := gltfNodeTransform(node)
	want := mgl32.Translate3D(1, 2, 3).Mul4(mgl32.Scale3D(2, 2, 2))
	if !m.ApproxEqual(want) {
		t.Errorf("TRS transform mismatch:\n got %v\nwant %v", m, want)
	}

	// A quarter turn around Z maps +X to +Y.
	node = &gltf.Node{Rotation: [4]float32{0, 0, float32(0.7071068), float32(0.7071068)}}
	p := gltfNodeTransform(node).Mul4x1(mgl32.Vec4{1, 0, 0, 1})
	if !p.ApproxEqualThreshold(mgl32.Vec4{0, 1, 0, 1}, 1e-5) {
		t.Errorf("rotation mismatch: got %v", p)
	}
}

func TestGltfNodeTransformMatrix(t *testing.T) {
	node := &gltf.Node{
		// Column-major translation by (4,5,6); matrix wins over TRS.
		Matrix:      [16]float32{1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1, 0, 4, 5, 6, 1},
		Translation: [3]float32{9, 9, 9},
	}
	m := gltfNodeTransform(node)
	if !m.ApproxEqual(mgl32.Translate3D(4, 5, 6)) {
		t.Errorf("matrix transform mismatch: %v", m)
	}
}
