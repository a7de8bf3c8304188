package bake

import (
	"encoding/binary"
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/aobake/aobake/core"
)

// TexelSize is the serialized G-buffer stride: world position vec4
// (w = coverage) followed by world normal vec4.
const TexelSize = 32

// GBuffer holds the per-texel world position and normal produced by
// rasterizing the scene in atlas UV space. Uncovered texels stay
// unset and keep full visibility in the output.
type GBuffer struct {
	Width   uint32
	Height  uint32
	Pos     []mgl32.Vec3
	Nrm     []mgl32.Vec3
	Covered []bool
}

func NewGBuffer(width, height uint32) *GBuffer {
	n := int(width) * int(height)
	return &GBuffer{
		Width:   width,
		Height:  height,
		Pos:     make([]mgl32.Vec3, n),
		Nrm:     make([]mgl32.Vec3, n),
		Covered: make([]bool, n),
	}
}

// Rasterize fills the G-buffer from every instance's remapped UVs.
// Triangles are scan-converted in pixel space; attributes interpolate
// with barycentric weights and move to world space through the
// instance transform.
func (gb *GBuffer) Rasterize(scene *core.Scene) {
	for ii := range scene.Instances {
		inst := &scene.Instances[ii]
		if inst.MeshID < 0 || inst.MeshID >= len(scene.Meshes) {
			continue
		}
		nrmMat := core.NormalMatrix(inst.Transform)
		mesh := &scene.Meshes[inst.MeshID]
		for gi := range mesh.Geometries {
			gb.rasterizeGeometry(&mesh.Geometries[gi], inst.Transform, nrmMat)
		}
	}
}

func (gb *GBuffer) rasterizeGeometry(g *core.Geometry, xform mgl32.Mat4, nrmMat mgl32.Mat3) {
	w := float32(gb.Width)
	h := float32(gb.Height)
	for _, tri := range g.Indices {
		// Texel centers sit at half-integer coordinates.
		var px [3]mgl32.Vec2
		for k := 0; k < 3; k++ {
			uv := g.UVs[tri[k]]
			px[k] = mgl32.Vec2{uv.X() * w, uv.Y() * h}
		}

		minX := int(math.Floor(float64(min3(px[0].X(), px[1].X(), px[2].X()))))
		maxX := int(math.Ceil(float64(max3(px[0].X(), px[1].X(), px[2].X()))))
		minY := int(math.Floor(float64(min3(px[0].Y(), px[1].Y(), px[2].Y()))))
		maxY := int(math.Ceil(float64(max3(px[0].Y(), px[1].Y(), px[2].Y()))))
		minX = clampi(minX, 0, int(gb.Width)-1)
		maxX = clampi(maxX, 0, int(gb.Width)-1)
		minY = clampi(minY, 0, int(gb.Height)-1)
		maxY = clampi(maxY, 0, int(gb.Height)-1)

		area := edge(px[0], px[1], px[2])
		if area == 0 {
			continue
		}

		for y := minY; y <= maxY; y++ {
			for x := minX; x <= maxX; x++ {
				p := mgl32.Vec2{float32(x) + 0.5, float32(y) + 0.5}
				w0 := edge(px[1], px[2], p) / area
				w1 := edge(px[2], px[0], p) / area
				w2 := edge(px[0], px[1], p) / area
				if w0 < 0 || w1 < 0 || w2 < 0 {
					continue
				}

				pos := g.Vertices[tri[0]].Mul(w0).
					Add(g.Vertices[tri[1]].Mul(w1)).
					Add(g.Vertices[tri[2]].Mul(w2))
				nrm := g.Normals[tri[0]].Mul(w0).
					Add(g.Normals[tri[1]].Mul(w1)).
					Add(g.Normals[tri[2]].Mul(w2))

				idx := y*int(gb.Width) + x
				gb.Pos[idx] = core.TransformPoint(xform, pos)
				gb.Nrm[idx] = nrmMat.Mul3x1(nrm).Normalize()
				gb.Covered[idx] = true
			}
		}
	}
}

// Bytes serializes the buffer for the compute kernel.
func (gb *GBuffer) Bytes() []byte {
	out := make([]byte, len(gb.Pos)*TexelSize)
	for i := range gb.Pos {
		off := i * TexelSize
		putFloat(out[off:], gb.Pos[i].X())
		putFloat(out[off+4:], gb.Pos[i].Y())
		putFloat(out[off+8:], gb.Pos[i].Z())
		if gb.Covered[i] {
			putFloat(out[off+12:], 1)
		}
		putFloat(out[off+16:], gb.Nrm[i].X())
		putFloat(out[off+20:], gb.Nrm[i].Y())
		putFloat(out[off+24:], gb.Nrm[i].Z())
	}
	return out
}

func putFloat(buf []byte, v float32) {
	binary.LittleEndian.PutUint32(buf, math.Float32bits(v))
}

func edge(a, b, p mgl32.Vec2) float32 {
	return (b.X()-a.X())*(p.Y()-a.Y()) - (b.Y()-a.Y())*(p.X()-a.X())
}

func min3(a, b, c float32) float32 {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}

func max3(a, b, c float32) float32 {
	if b > a {
		a = b
	}
	if c > a {
		a = c
	}
	return a
}

func clampi(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
