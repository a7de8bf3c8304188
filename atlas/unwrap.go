package atlas

import (
	"fmt"
	"math"
	"sort"

	"github.com/go-gl/mathgl/mgl32"
)

// ShelfUnwrapper is the built-in atlas generator: triangles are grouped
// into charts by the dominant axis of their face normal, each chart is
// projected onto its axis plane, and charts are shelf-packed into a
// square atlas that grows until everything fits.
//
// Chart quality is deliberately simple; the unwrap boundary (Unwrapper)
// exists so a better generator can be dropped in.
type ShelfUnwrapper struct {
	TexelsPerUnit float32
	Padding       int
	MaxSize       int

	decls []MeshDecl
}

func NewShelfUnwrapper() *ShelfUnwrapper {
	return &ShelfUnwrapper{
		TexelsPerUnit: 64,
		Padding:       2,
		MaxSize:       8192,
	}
}

func (u *ShelfUnwrapper) AddMesh(decl MeshDecl) error {
	if len(decl.Positions) == 0 || len(decl.Indices) == 0 {
		return ErrDegenerateMesh
	}
	if len(decl.Normals) != len(decl.Positions) {
		return ErrMissingNormals
	}
	n := uint32(len(decl.Positions))
	for _, tri := range decl.Indices {
		for _, idx := range tri {
			if idx >= n {
				return fmt.Errorf("%w: %d >= %d", ErrIndexOutOfRange, idx, n)
			}
		}
	}
	u.decls = append(u.decls, decl)
	return nil
}

// chart is one projected triangle group before packing.
type chart struct {
	decl     int
	axis     int
	tris     []int // triangle indices into the decl
	min      mgl32.Vec2
	w, h     int
	x, y     int // assigned by packing
	vertices []uint32
	local    map[uint32]uint32 // original vertex -> chart-local index
	uvs      []mgl32.Vec2      // chart-local projected coords, pre-offset
}

func (u *ShelfUnwrapper) Generate() (*Atlas, error) {
	if len(u.decls) == 0 {
		return nil, ErrNoGeometry
	}

	charts := u.buildCharts()

	// Tallest first packs shelves tighter.
	order := make([]int, len(charts))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return charts[order[a]].h > charts[order[b]].h
	})

	size := 128
	for {
		packer := newShelfPacker(size, size, u.Padding)
		ok := true
		for _, ci := range order {
			c := charts[ci]
			x, y, fit := packer.place(c.w, c.h)
			if !fit {
				ok = false
				break
			}
			c.x, c.y = x, y
		}
		if ok {
			break
		}
		size *= 2
		if size > u.MaxSize {
			return nil, ErrAtlasOverflow
		}
	}

	out := &Atlas{
		Width:      uint32(size),
		Height:     uint32(size),
		ChartCount: len(charts),
		Meshes:     make([]UnwrapResult, len(u.decls)),
	}

	// Emit per-decl results in chart build order so the output is stable
	// regardless of packing order.
	for _, c := range charts {
		res := &out.Meshes[c.decl]
		base := uint32(len(res.Xrefs))
		for i, orig := range c.vertices {
			res.Xrefs = append(res.Xrefs, orig)
			uv := c.uvs[i]
			res.UVs = append(res.UVs, mgl32.Vec2{
				float32(c.x) + uv.X() - c.min.X(),
				float32(c.y) + uv.Y() - c.min.Y(),
			})
		}
		decl := u.decls[c.decl]
		for _, ti := range c.tris {
			tri := decl.Indices[ti]
			for _, idx := range tri {
				res.Indices = append(res.Indices, base+c.local[idx])
			}
		}
	}
	for i := range out.Meshes {
		out.Meshes[i].VertexCount = len(out.Meshes[i].Xrefs)
	}
	return out, nil
}

func (u *ShelfUnwrapper) buildCharts() []*chart {
	var charts []*chart
	for di, decl := range u.decls {
		// 6 bins: +X -X +Y -Y +Z -Z by dominant face-normal axis.
		bins := [6][]int{}
		for ti, tri := range decl.Indices {
			n := faceNormal(decl.Positions[tri[0]], decl.Positions[tri[1]], decl.Positions[tri[2]])
			bins[dominantAxis(n)] = append(bins[dominantAxis(n)], ti)
		}
		for axis, binTris := range bins {
			if len(binTris) == 0 {
				continue
			}
			// Coplanar islands in one bin would project onto the same
			// texels; split into vertex-connected components first.
			for _, tris := range splitComponents(decl.Indices, binTris) {
				c := &chart{
					decl:  di,
					axis:  axis,
					tris:  tris,
					local: map[uint32]uint32{},
				}
				inf := float32(math.Inf(1))
				c.min = mgl32.Vec2{inf, inf}
				maxUV := mgl32.Vec2{-inf, -inf}
				for _, ti := range tris {
					for _, idx := range decl.Indices[ti] {
						if _, ok := c.local[idx]; ok {
							continue
						}
						c.local[idx] = uint32(len(c.vertices))
						c.vertices = append(c.vertices, idx)
						uv := project(decl.Positions[idx], axis/2).Mul(u.TexelsPerUnit)
						c.uvs = append(c.uvs, uv)
						c.min = mgl32.Vec2{minf(c.min.X(), uv.X()), minf(c.min.Y(), uv.Y())}
						maxUV = mgl32.Vec2{maxf(maxUV.X(), uv.X()), maxf(maxUV.Y(), uv.Y())}
					}
				}
				c.w = int(math.Ceil(float64(maxUV.X()-c.min.X()))) + 1
				c.h = int(math.Ceil(float64(maxUV.Y()-c.min.Y()))) + 1
				charts = append(charts, c)
			}
		}
	}
	return charts
}

// splitComponents partitions a bin's triangles into groups connected
// through shared vertex indices, in first-seen order.
func splitComponents(indices [][3]uint32, tris []int) [][]int {
	parent := map[uint32]uint32{}
	var find func(v uint32) uint32
	find = func(v uint32) uint32 {
		p, ok := parent[v]
		if !ok || p == v {
			parent[v] = v
			return v
		}
		root := find(p)
		parent[v] = root
		return root
	}
	for _, ti := range tris {
		tri := indices[ti]
		a := find(tri[0])
		for _, v := range tri[1:] {
			if r := find(v); r != a {
				parent[r] = a
			}
		}
	}

	groups := map[uint32][]int{}
	var roots []uint32
	for _, ti := range tris {
		r := find(indices[ti][0])
		if _, ok := groups[r]; !ok {
			roots = append(roots, r)
		}
		groups[r] = append(groups[r], ti)
	}
	out := make([][]int, 0, len(roots))
	for _, r := range roots {
		out = append(out, groups[r])
	}
	return out
}

func faceNormal(p0, p1, p2 mgl32.Vec3) mgl32.Vec3 {
	return p1.Sub(p0).Cross(p2.Sub(p0))
}

func dominantAxis(n mgl32.Vec3) int {
	ax, ay, az := absf(n.X()), absf(n.Y()), absf(n.Z())
	switch {
	case ax >= ay && ax >= az:
		if n.X() >= 0 {
			return 0
		}
		return 1
	case ay >= az:
		if n.Y() >= 0 {
			return 2
		}
		return 3
	default:
		if n.Z() >= 0 {
			return 4
		}
		return 5
	}
}

// project drops the given axis, keeping a consistent 2D frame per plane.
func project(p mgl32.Vec3, axis int) mgl32.Vec2 {
	switch axis {
	case 0: // X plane
		return mgl32.Vec2{p.Z(), p.Y()}
	case 1: // Y plane
		return mgl32.Vec2{p.X(), p.Z()}
	default: // Z plane
		return mgl32.Vec2{p.X(), p.Y()}
	}
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

func absf(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
