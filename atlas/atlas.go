// Package atlas turns scene geometry into a packed 2D UV atlas and
// rewrites geometries to the unwrapped topology.
package atlas

import (
	"errors"

	"github.com/go-gl/mathgl/mgl32"
)

var (
	ErrNoGeometry        = errors.New("atlas: unwrapper has no geometry")
	ErrIndexOutOfRange   = errors.New("atlas: index references vertex out of range")
	ErrDegenerateMesh    = errors.New("atlas: mesh has no triangles")
	ErrMissingNormals    = errors.New("atlas: normals are required for unwrapping")
	ErrAtlasOverflow     = errors.New("atlas: charts do not fit the maximum atlas size")
	ErrVertexCountJump   = errors.New("atlas: unwrap vertex count disagrees with xref table")
	ErrResolutionUnknown = errors.New("atlas: zero atlas resolution")
)

// MeshDecl is the unwrap input for one geometry. Slices are borrowed, not
// copied; the caller keeps ownership.
type MeshDecl struct {
	Positions []mgl32.Vec3
	Normals   []mgl32.Vec3
	UVs       []mgl32.Vec2
	Indices   [][3]uint32
}

// UnwrapResult describes one geometry's unwrapped vertex set. Each output
// vertex cross-references the original vertex it was split from, and
// carries its atlas position in pixel units.
type UnwrapResult struct {
	VertexCount int
	Xrefs       []uint32     // per output vertex: index into the original vertex array
	UVs         []mgl32.Vec2 // per output vertex: atlas UV in pixel units
	Indices     []uint32     // triangle list over the output vertices
}

// Atlas is the unwrap output for the whole scene: one result per added
// geometry, in add order, plus the shared atlas resolution.
type Atlas struct {
	Width      uint32
	Height     uint32
	ChartCount int
	Meshes     []UnwrapResult
}

// Unwrapper is the chart generation boundary. Implementations take
// per-geometry buffers and produce a packed atlas; any failure is fatal
// to the whole bake.
type Unwrapper interface {
	AddMesh(decl MeshDecl) error
	Generate() (*Atlas, error)
}
