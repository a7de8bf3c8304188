package bvh

import (
	"encoding/binary"
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// Matches WGSL BVHNode
// struct BVHNode {
//    aabb_min : vec4<f32>; (16)
//    aabb_max : vec4<f32>; (16)
//    left : i32; (4)
//    right : i32; (4)
//    leaf_first : i32; (4)
//    leaf_count : i32; (4)
//    padding : i32[2]; (8)
// }; -> 64 bytes

const NodeSize = 64

type Node struct {
	Min       mgl32.Vec3
	Max       mgl32.Vec3
	Left      int32
	Right     int32
	LeafFirst int32
	LeafCount int32
}

func (n *Node) ToBytes() []byte {
	buf := make([]byte, NodeSize)

	// Min (vec4)
	binary.LittleEndian.PutUint32(buf[0:4], math.Float32bits(n.Min.X()))
	binary.LittleEndian.PutUint32(buf[4:8], math.Float32bits(n.Min.Y()))
	binary.LittleEndian.PutUint32(buf[8:12], math.Float32bits(n.Min.Z()))
	binary.LittleEndian.PutUint32(buf[12:16], 0)

	// Max (vec4)
	binary.LittleEndian.PutUint32(buf[16:20], math.Float32bits(n.Max.X()))
	binary.LittleEndian.PutUint32(buf[20:24], math.Float32bits(n.Max.Y()))
	binary.LittleEndian.PutUint32(buf[24:28], math.Float32bits(n.Max.Z()))
	binary.LittleEndian.PutUint32(buf[28:32], 0)

	// Ints
	binary.LittleEndian.PutUint32(buf[32:36], uint32(n.Left))
	binary.LittleEndian.PutUint32(buf[36:40], uint32(n.Right))
	binary.LittleEndian.PutUint32(buf[40:44], uint32(n.LeafFirst))
	binary.LittleEndian.PutUint32(buf[44:48], uint32(n.LeafCount))

	// Padding
	return buf
}

// AABB is an axis-aligned bounding box.
type AABB struct {
	Min mgl32.Vec3
	Max mgl32.Vec3
}

func EmptyAABB() AABB {
	inf := float32(math.Inf(1))
	return AABB{
		Min: mgl32.Vec3{inf, inf, inf},
		Max: mgl32.Vec3{-inf, -inf, -inf},
	}
}

func (a *AABB) Grow(p mgl32.Vec3) {
	a.Min = mgl32.Vec3{minf(a.Min.X(), p.X()), minf(a.Min.Y(), p.Y()), minf(a.Min.Z(), p.Z())}
	a.Max = mgl32.Vec3{maxf(a.Max.X(), p.X()), maxf(a.Max.Y(), p.Y()), maxf(a.Max.Z(), p.Z())}
}

func (a *AABB) Union(b AABB) {
	a.Grow(b.Min)
	a.Grow(b.Max)
}

func (a AABB) Centroid() mgl32.Vec3 {
	return a.Min.Add(a.Max).Mul(0.5)
}

// Transformed returns a conservative world-space box by transforming all
// eight corners.
func (a AABB) Transformed(m mgl32.Mat4) AABB {
	out := EmptyAABB()
	for i := 0; i < 8; i++ {
		c := mgl32.Vec3{a.Min.X(), a.Min.Y(), a.Min.Z()}
		if i&1 != 0 {
			c[0] = a.Max.X()
		}
		if i&2 != 0 {
			c[1] = a.Max.Y()
		}
		if i&4 != 0 {
			c[2] = a.Max.Z()
		}
		w := m.Mul4x1(c.Vec4(1))
		out.Grow(mgl32.Vec3{w.X(), w.Y(), w.Z()})
	}
	return out
}

func minf(a, b float32) float32 {
	if a < b {
		return a
	}
	return b
}

func maxf(a, b float32) float32 {
	if a > b {
		return a
	}
	return b
}
