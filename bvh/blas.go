package bvh

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/aobake/aobake/core"
)

var (
	ErrEmptyBLAS        = errors.New("bvh: no triangles")
	ErrNotBuilt         = errors.New("bvh: structure not built")
	ErrNotCompacted     = errors.New("bvh: structure not compacted")
	ErrNotFinalized     = errors.New("bvh: structure not finalized")
	ErrAlreadyFinalized = errors.New("bvh: structure already finalized")
)

type blasState int

const (
	stateBuilt blasState = iota + 1
	stateCompacted
	stateFinalized
)

const leafMaxTris = 4

// TriangleSize is the serialized stride: three vec4s, with the geometry
// index carried in the first w component.
const TriangleSize = 48

// Triangle is one object-space triangle tagged with the geometry it
// came from inside its mesh.
type Triangle struct {
	V0, V1, V2 mgl32.Vec3
	Geometry   uint32
}

func (t Triangle) centroid() mgl32.Vec3 {
	return t.V0.Add(t.V1).Add(t.V2).Mul(1.0 / 3.0)
}

func (t Triangle) bounds() AABB {
	b := EmptyAABB()
	b.Grow(t.V0)
	b.Grow(t.V1)
	b.Grow(t.V2)
	return b
}

// BLAS is a bottom-level acceleration structure over one mesh. It walks
// a build / compact / finalize lifecycle; only a finalized BLAS can be
// serialized or attached to instances.
type BLAS struct {
	state blasState

	nodes     []Node
	tris      []Triangle
	bounds    AABB
	geomCount int

	builtCap int // node capacity before compaction
}

// BuildBLAS builds the triangle hierarchy for a mesh. Triangles from
// all of the mesh's geometries share one tree.
func BuildBLAS(mesh *core.Mesh) (*BLAS, error) {
	var tris []Triangle
	for gi := range mesh.Geometries {
		g := &mesh.Geometries[gi]
		for _, tri := range g.Indices {
			tris = append(tris, Triangle{
				V0:       g.Vertices[tri[0]],
				V1:       g.Vertices[tri[1]],
				V2:       g.Vertices[tri[2]],
				Geometry: uint32(gi),
			})
		}
	}
	if len(tris) == 0 {
		return nil, ErrEmptyBLAS
	}

	b := &BLAS{
		// Worst case for a binary tree over n leaves.
		nodes:     make([]Node, 0, 2*len(tris)-1),
		tris:      tris,
		geomCount: len(mesh.Geometries),
	}
	b.builtCap = cap(b.nodes)
	b.recursiveBuild(0, len(b.tris))
	b.bounds = AABB{Min: b.nodes[0].Min, Max: b.nodes[0].Max}
	b.state = stateBuilt
	return b, nil
}

func (b *BLAS) recursiveBuild(first, count int) int32 {
	idx := int32(len(b.nodes))
	b.nodes = append(b.nodes, Node{Left: -1, Right: -1, LeafFirst: -1, LeafCount: 0})

	bounds := EmptyAABB()
	for i := first; i < first+count; i++ {
		bounds.Union(b.tris[i].bounds())
	}
	b.nodes[idx].Min = bounds.Min
	b.nodes[idx].Max = bounds.Max

	if count <= leafMaxTris {
		b.nodes[idx].LeafFirst = int32(first)
		b.nodes[idx].LeafCount = int32(count)
		return idx
	}

	extent := bounds.Max.Sub(bounds.Min)
	axis := 0
	if extent.Y() > extent.X() {
		axis = 1
	}
	if extent.Z() > extent[axis] {
		axis = 2
	}

	span := b.tris[first : first+count]
	sort.Slice(span, func(i, j int) bool {
		return span[i].centroid()[axis] < span[j].centroid()[axis]
	})

	mid := count / 2
	b.nodes[idx].Left = b.recursiveBuild(first, mid)
	b.nodes[idx].Right = b.recursiveBuild(first+mid, count-mid)
	return idx
}

// Compact trims the node storage to what the build actually used and
// reports the bytes reclaimed.
func (b *BLAS) Compact() (saved int, err error) {
	switch b.state {
	case stateFinalized:
		return 0, ErrAlreadyFinalized
	case stateCompacted:
		return 0, nil
	case stateBuilt:
	default:
		return 0, ErrNotBuilt
	}
	saved = (b.builtCap - len(b.nodes)) * NodeSize
	if saved > 0 {
		nodes := make([]Node, len(b.nodes))
		copy(nodes, b.nodes)
		b.nodes = nodes
	}
	b.state = stateCompacted
	return saved, nil
}

// Finalize seals the structure. After this no further compaction is
// allowed and the serialized forms become available.
func (b *BLAS) Finalize() error {
	switch b.state {
	case stateFinalized:
		return ErrAlreadyFinalized
	case stateCompacted:
		b.state = stateFinalized
		return nil
	case stateBuilt:
		return ErrNotCompacted
	default:
		return ErrNotBuilt
	}
}

func (b *BLAS) Bounds() AABB       { return b.bounds }
func (b *BLAS) NodeCount() int     { return len(b.nodes) }
func (b *BLAS) TriangleCount() int { return len(b.tris) }
func (b *BLAS) GeometryCount() int { return b.geomCount }
func (b *BLAS) Finalized() bool    { return b.state == stateFinalized }

func (b *BLAS) NodesBytes() ([]byte, error) {
	if b.state != stateFinalized {
		return nil, ErrNotFinalized
	}
	out := make([]byte, 0, len(b.nodes)*NodeSize)
	for i := range b.nodes {
		out = append(out, b.nodes[i].ToBytes()...)
	}
	return out, nil
}

func (b *BLAS) TrianglesBytes() ([]byte, error) {
	if b.state != stateFinalized {
		return nil, ErrNotFinalized
	}
	out := make([]byte, len(b.tris)*TriangleSize)
	for i, t := range b.tris {
		off := i * TriangleSize
		putVec3(out[off:], t.V0)
		binary.LittleEndian.PutUint32(out[off+12:], t.Geometry)
		putVec3(out[off+16:], t.V1)
		putVec3(out[off+32:], t.V2)
	}
	return out, nil
}

func putVec3(buf []byte, v mgl32.Vec3) {
	binary.LittleEndian.PutUint32(buf[0:4], math.Float32bits(v.X()))
	binary.LittleEndian.PutUint32(buf[4:8], math.Float32bits(v.Y()))
	binary.LittleEndian.PutUint32(buf[8:12], math.Float32bits(v.Z()))
}

// BuildSceneBLAS builds, compacts and finalizes one BLAS per mesh, in
// mesh order.
func BuildSceneBLAS(scene *core.Scene, log interface {
	Debugf(format string, v ...any)
}) ([]*BLAS, error) {
	out := make([]*BLAS, len(scene.Meshes))
	for mi := range scene.Meshes {
		b, err := BuildBLAS(&scene.Meshes[mi])
		if err != nil {
			return nil, fmt.Errorf("mesh %d: %w", mi, err)
		}
		saved, err := b.Compact()
		if err != nil {
			return nil, fmt.Errorf("mesh %d: %w", mi, err)
		}
		if err := b.Finalize(); err != nil {
			return nil, fmt.Errorf("mesh %d: %w", mi, err)
		}
		if log != nil {
			log.Debugf("blas %d: %d tris, %d nodes, compaction saved %d bytes",
				mi, b.TriangleCount(), b.NodeCount(), saved)
		}
		out[mi] = b
	}
	return out, nil
}
