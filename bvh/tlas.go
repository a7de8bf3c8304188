package bvh

import (
	"encoding/binary"
	"fmt"
	"math"
	"sort"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/aobake/aobake/core"
)

const (
	// InstanceDescSize matches the WGSL InstanceDesc stride.
	InstanceDescSize = 128

	DefaultInstanceMask = 0xff
	FlagForceOpaque     = 0x1
)

// InstanceDesc places one finalized BLAS in the scene. Transforms are
// row-major 3x4, the way they travel to the GPU.
type InstanceDesc struct {
	Transform    [12]float32
	InvTransform [12]float32

	InstanceID     uint32
	Mask           uint32
	HitGroupOffset uint32
	Flags          uint32

	// Filled in at upload time, once all BLAS blobs are concatenated.
	NodeOffset uint32
	TriOffset  uint32
}

func (d *InstanceDesc) ToBytes() []byte {
	buf := make([]byte, InstanceDescSize)
	for i, f := range d.Transform {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	for i, f := range d.InvTransform {
		binary.LittleEndian.PutUint32(buf[48+i*4:], math.Float32bits(f))
	}
	binary.LittleEndian.PutUint32(buf[96:], d.InstanceID)
	binary.LittleEndian.PutUint32(buf[100:], d.Mask)
	binary.LittleEndian.PutUint32(buf[104:], d.HitGroupOffset)
	binary.LittleEndian.PutUint32(buf[108:], d.Flags)
	binary.LittleEndian.PutUint32(buf[112:], d.NodeOffset)
	binary.LittleEndian.PutUint32(buf[116:], d.TriOffset)
	return buf
}

func rowMajor3x4(m mgl32.Mat4) [12]float32 {
	var out [12]float32
	for r := 0; r < 3; r++ {
		for c := 0; c < 4; c++ {
			out[r*4+c] = m.At(r, c)
		}
	}
	return out
}

// BuildInstanceDescs emits one descriptor per scene instance, in scene
// order. The hit-group offset of each instance is the running sum of
// geometry counts of every instance before it, so shader record lookup
// is geometry-granular.
func BuildInstanceDescs(scene *core.Scene, blas []*BLAS) ([]InstanceDesc, error) {
	descs := make([]InstanceDesc, len(scene.Instances))
	offset := uint32(0)
	for i, inst := range scene.Instances {
		if inst.MeshID < 0 || inst.MeshID >= len(blas) {
			return nil, fmt.Errorf("instance %d: mesh id %d out of range", i, inst.MeshID)
		}
		b := blas[inst.MeshID]
		if !b.Finalized() {
			return nil, fmt.Errorf("instance %d: %w", i, ErrNotFinalized)
		}
		inv := inst.Transform.Inv()
		descs[i] = InstanceDesc{
			Transform:      rowMajor3x4(inst.Transform),
			InvTransform:   rowMajor3x4(inv),
			InstanceID:     uint32(i),
			Mask:           DefaultInstanceMask,
			HitGroupOffset: offset,
			Flags:          FlagForceOpaque,
		}
		offset += uint32(b.GeometryCount())
	}
	return descs, nil
}

// TLAS is the top-level hierarchy over instance world bounds. Leaves
// reference instance indices.
type TLAS struct {
	nodes []Node
}

// BuildTLAS builds the instance hierarchy. Every referenced BLAS must
// be finalized.
func BuildTLAS(scene *core.Scene, blas []*BLAS) (*TLAS, error) {
	if len(scene.Instances) == 0 {
		return nil, ErrEmptyBLAS
	}
	items := make([]AABBItem, len(scene.Instances))
	for i, inst := range scene.Instances {
		if inst.MeshID < 0 || inst.MeshID >= len(blas) {
			return nil, fmt.Errorf("instance %d: mesh id %d out of range", i, inst.MeshID)
		}
		b := blas[inst.MeshID]
		if !b.Finalized() {
			return nil, fmt.Errorf("instance %d: %w", i, ErrNotFinalized)
		}
		world := b.Bounds().Transformed(inst.Transform)
		items[i] = AABBItem{
			Min:      world.Min,
			Max:      world.Max,
			Centroid: world.Centroid(),
			Index:    i,
		}
	}

	t := &TLAS{}
	t.recursiveBuild(items)
	return t, nil
}

type AABBItem struct {
	Min      mgl32.Vec3
	Max      mgl32.Vec3
	Centroid mgl32.Vec3
	Index    int
}

func (t *TLAS) recursiveBuild(items []AABBItem) int32 {
	idx := int32(len(t.nodes))
	t.nodes = append(t.nodes, Node{Left: -1, Right: -1, LeafFirst: -1, LeafCount: 0})

	bounds := EmptyAABB()
	for _, it := range items {
		bounds.Grow(it.Min)
		bounds.Grow(it.Max)
	}
	t.nodes[idx].Min = bounds.Min
	t.nodes[idx].Max = bounds.Max

	if len(items) == 1 {
		t.nodes[idx].LeafFirst = int32(items[0].Index)
		t.nodes[idx].LeafCount = 1
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

	sort.Slice(items, func(i, j int) bool {
		return items[i].Centroid[axis] < items[j].Centroid[axis]
	})

	mid := len(items) / 2
	t.nodes[idx].Left = t.recursiveBuild(items[:mid])
	t.nodes[idx].Right = t.recursiveBuild(items[mid:])
	return idx
}

func (t *TLAS) NodeCount() int { return len(t.nodes) }

func (t *TLAS) Bytes() []byte {
	out := make([]byte, 0, len(t.nodes)*NodeSize)
	for i := range t.nodes {
		out = append(out, t.nodes[i].ToBytes()...)
	}
	return out
}
