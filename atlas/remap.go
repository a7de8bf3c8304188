package atlas

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/aobake/aobake/core"
)

// RemapGeometry rebuilds a geometry's vertex streams from an unwrap
// result. Every output vertex copies its position and normal from the
// original vertex named by the xref table, and the packed pixel-space
// UV is normalized by the atlas dimensions.
func RemapGeometry(g *core.Geometry, res *UnwrapResult, width, height uint32) error {
	if width == 0 || height == 0 {
		return ErrResolutionUnknown
	}
	if res.VertexCount < len(g.Vertices) {
		return fmt.Errorf("%w: %d -> %d", ErrVertexCountJump, len(g.Vertices), res.VertexCount)
	}
	if len(res.Xrefs) != res.VertexCount || len(res.UVs) != res.VertexCount {
		return fmt.Errorf("%w: %d xrefs, %d uvs for %d vertices",
			ErrVertexCountJump, len(res.Xrefs), len(res.UVs), res.VertexCount)
	}
	if len(res.Indices)%3 != 0 {
		return fmt.Errorf("%w: %d indices", ErrDegenerateMesh, len(res.Indices))
	}

	positions := make([]mgl32.Vec3, res.VertexCount)
	normals := make([]mgl32.Vec3, res.VertexCount)
	uvs := make([]mgl32.Vec2, res.VertexCount)
	orig := uint32(len(g.Vertices))
	for i, xref := range res.Xrefs {
		if xref >= orig {
			return fmt.Errorf("%w: xref %d >= %d", ErrIndexOutOfRange, xref, orig)
		}
		positions[i] = g.Vertices[xref]
		normals[i] = g.Normals[xref]
		uvs[i] = mgl32.Vec2{
			res.UVs[i].X() / float32(width),
			res.UVs[i].Y() / float32(height),
		}
	}

	indices := make([][3]uint32, len(res.Indices)/3)
	count := uint32(res.VertexCount)
	for t := range indices {
		for k := 0; k < 3; k++ {
			idx := res.Indices[t*3+k]
			if idx >= count {
				return fmt.Errorf("%w: index %d >= %d", ErrIndexOutOfRange, idx, count)
			}
			indices[t][k] = idx
		}
	}

	g.Vertices = positions
	g.Normals = normals
	g.UVs = uvs
	g.Indices = indices
	return nil
}

// RemapScene applies an atlas to every geometry of every mesh, in the
// same order the geometries were declared to the unwrapper.
func RemapScene(scene *core.Scene, a *Atlas) error {
	gi := 0
	for mi := range scene.Meshes {
		for n := range scene.Meshes[mi].Geometries {
			if gi >= len(a.Meshes) {
				return fmt.Errorf("%w: geometry %d has no unwrap result", ErrNoGeometry, gi)
			}
			if err := RemapGeometry(&scene.Meshes[mi].Geometries[n], &a.Meshes[gi], a.Width, a.Height); err != nil {
				return fmt.Errorf("mesh %d geometry %d: %w", mi, n, err)
			}
			gi++
		}
	}
	return nil
}
