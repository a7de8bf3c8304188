package core

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
)

// Geometry is one drawable triangle primitive: positions plus optional
// normals and UVs, indexed by triangle triples. All per-vertex arrays that
// are present must have the same length.
type Geometry struct {
	Vertices []mgl32.Vec3
	Normals  []mgl32.Vec3
	UVs      []mgl32.Vec2
	Indices  [][3]uint32
}

func (g *Geometry) NumTris() int {
	return len(g.Indices)
}

// Validate checks the per-vertex array invariant and index bounds.
func (g *Geometry) Validate() error {
	n := len(g.Vertices)
	if n == 0 {
		return fmt.Errorf("geometry has no vertices")
	}
	if len(g.Normals) > 0 && len(g.Normals) != n {
		return fmt.Errorf("geometry has %d vertices but %d normals", n, len(g.Normals))
	}
	if len(g.UVs) > 0 && len(g.UVs) != n {
		return fmt.Errorf("geometry has %d vertices but %d uvs", n, len(g.UVs))
	}
	for _, tri := range g.Indices {
		for _, idx := range tri {
			if idx >= uint32(n) {
				return fmt.Errorf("index %d out of range (%d vertices)", idx, n)
			}
		}
	}
	return nil
}

// Mesh is an ordered sequence of geometries sharing one transform space.
type Mesh struct {
	Geometries []Geometry
}

func (m *Mesh) NumTris() int {
	n := 0
	for i := range m.Geometries {
		n += m.Geometries[i].NumTris()
	}
	return n
}

// Instance places a mesh in world space. MaterialIDs holds one material
// per geometry of the referenced mesh; -1 means unresolved and is fixed
// up by Scene.ValidateMaterials.
type Instance struct {
	Transform   mgl32.Mat4
	MeshID      int
	MaterialIDs []int32
}
