package bvh

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/aobake/aobake/core"
)

// Ray is a segment query in [TMin, TMax].
type Ray struct {
	Origin mgl32.Vec3
	Dir    mgl32.Vec3
	TMin   float32
	TMax   float32
}

// Tracer answers any-hit visibility queries against a built scene on
// the CPU. It mirrors the shader traversal exactly, which makes it the
// reference for tests and the software fallback path.
type Tracer struct {
	tlas      *TLAS
	blas      []*BLAS
	instances []tracedInstance
}

type tracedInstance struct {
	blas *BLAS
	inv  mgl32.Mat4
}

func NewTracer(scene *core.Scene, blas []*BLAS, tlas *TLAS) *Tracer {
	t := &Tracer{tlas: tlas, blas: blas}
	for _, inst := range scene.Instances {
		t.instances = append(t.instances, tracedInstance{
			blas: blas[inst.MeshID],
			inv:  inst.Transform.Inv(),
		})
	}
	return t
}

// AnyHit reports whether anything blocks the ray.
func (t *Tracer) AnyHit(ray Ray) bool {
	invDir := mgl32.Vec3{1 / ray.Dir.X(), 1 / ray.Dir.Y(), 1 / ray.Dir.Z()}

	var stack [64]int32
	sp := 0
	stack[sp] = 0
	sp++
	for sp > 0 {
		sp--
		node := &t.tlas.nodes[stack[sp]]
		if !slabTest(node.Min, node.Max, ray.Origin, invDir, ray.TMin, ray.TMax) {
			continue
		}
		if node.LeafCount > 0 {
			inst := &t.instances[node.LeafFirst]
			if inst.blas.anyHitObject(objectRay(ray, inst.inv)) {
				return true
			}
			continue
		}
		stack[sp] = node.Left
		sp++
		stack[sp] = node.Right
		sp++
	}
	return false
}

// objectRay moves the ray into instance space. Direction is not
// renormalized so the t range keeps its world-space meaning under
// uniform transforms.
func objectRay(ray Ray, inv mgl32.Mat4) Ray {
	o := inv.Mul4x1(ray.Origin.Vec4(1))
	d := inv.Mul4x1(ray.Dir.Vec4(0))
	return Ray{
		Origin: mgl32.Vec3{o.X(), o.Y(), o.Z()},
		Dir:    mgl32.Vec3{d.X(), d.Y(), d.Z()},
		TMin:   ray.TMin,
		TMax:   ray.TMax,
	}
}

func (b *BLAS) anyHitObject(ray Ray) bool {
	invDir := mgl32.Vec3{1 / ray.Dir.X(), 1 / ray.Dir.Y(), 1 / ray.Dir.Z()}

	var stack [64]int32
	sp := 0
	stack[sp] = 0
	sp++
	for sp > 0 {
		sp--
		node := &b.nodes[stack[sp]]
		if !slabTest(node.Min, node.Max, ray.Origin, invDir, ray.TMin, ray.TMax) {
			continue
		}
		if node.LeafCount > 0 {
			for i := node.LeafFirst; i < node.LeafFirst+node.LeafCount; i++ {
				if hit, t := intersectTriangle(ray, &b.tris[i]); hit && t >= ray.TMin && t <= ray.TMax {
					return true
				}
			}
			continue
		}
		stack[sp] = node.Left
		sp++
		stack[sp] = node.Right
		sp++
	}
	return false
}

func slabTest(bmin, bmax, origin, invDir mgl32.Vec3, tmin, tmax float32) bool {
	for a := 0; a < 3; a++ {
		t0 := (bmin[a] - origin[a]) * invDir[a]
		t1 := (bmax[a] - origin[a]) * invDir[a]
		if t0 > t1 {
			t0, t1 = t1, t0
		}
		tmin = maxf(tmin, t0)
		tmax = minf(tmax, t1)
		if tmax < tmin {
			return false
		}
	}
	return true
}

// intersectTriangle is Moller-Trumbore without backface culling.
func intersectTriangle(ray Ray, tri *Triangle) (bool, float32) {
	const eps = 1e-8

	e1 := tri.V1.Sub(tri.V0)
	e2 := tri.V2.Sub(tri.V0)
	p := ray.Dir.Cross(e2)
	det := e1.Dot(p)
	if det > -eps && det < eps {
		return false, 0
	}
	invDet := 1 / det
	s := ray.Origin.Sub(tri.V0)
	u := s.Dot(p) * invDet
	if u < 0 || u > 1 {
		return false, 0
	}
	q := s.Cross(e1)
	v := ray.Dir.Dot(q) * invDet
	if v < 0 || u+v > 1 {
		return false, 0
	}
	t := e2.Dot(q) * invDet
	if t < eps {
		return false, 0
	}
	return true, t
}
