package gpu

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/aobake/aobake/bvh"
	"github.com/aobake/aobake/core"
)

func testScene(t *testing.T) (*core.Scene, []*bvh.BLAS) {
	t.Helper()
	mesh := func(x float32, geoms int) core.Mesh {
		m := core.Mesh{}
		for g := 0; g < geoms; g++ {
			m.Geometries = append(m.Geometries, core.Geometry{
				Vertices: []mgl32.Vec3{{x, 0, 0}, {x + 1, 0, 0}, {x, 1, 0}},
				Normals:  []mgl32.Vec3{{0, 0, 1}, {0, 0, 1}, {0, 0, 1}},
				Indices:  [][3]uint32{{0, 1, 2}},
			})
		}
		return m
	}
	scene := &core.Scene{
		Meshes: []core.Mesh{mesh(0, 1), mesh(5, 2)},
		Instances: []core.Instance{
			{Transform: mgl32.Ident4(), MeshID: 1, MaterialIDs: []int32{0, 0}},
			{Transform: mgl32.Ident4(), MeshID: 0, MaterialIDs: []int32{0}},
		},
	}
	var blas []*bvh.BLAS
	for mi := range scene.Meshes {
		b, err := bvh.BuildBLAS(&scene.Meshes[mi])
		if err != nil {
			t.Fatal(err)
		}
		if _, err := b.Compact(); err != nil {
			t.Fatal(err)
		}
		if err := b.Finalize(); err != nil {
			t.Fatal(err)
		}
		blas = append(blas, b)
	}
	return scene, blas
}

func TestConcatBLAS(t *testing.T) {
	_, blas := testScene(t)
	nodes, tris, offsets, err := ConcatBLAS(blas)
	if err != nil {
		t.Fatal(err)
	}
	if len(offsets) != 2 {
		t.Fatalf("offsets = %d, want 2", len(offsets))
	}
	if offsets[0].Node != 0 || offsets[0].Tri != 0 {
		t.Errorf("first blas offset = %+v, want zero", offsets[0])
	}
	if offsets[1].Node != uint32(blas[0].NodeCount()) {
		t.Errorf("second node offset = %d, want %d", offsets[1].Node, blas[0].NodeCount())
	}
	if offsets[1].Tri != uint32(blas[0].TriangleCount()) {
		t.Errorf("second tri offset = %d, want %d", offsets[1].Tri, blas[0].TriangleCount())
	}
	wantNodes := (blas[0].NodeCount() + blas[1].NodeCount()) * bvh.NodeSize
	if len(nodes) != wantNodes {
		t.Errorf("node blob = %d bytes, want %d", len(nodes), wantNodes)
	}
	wantTris := (blas[0].TriangleCount() + blas[1].TriangleCount()) * bvh.TriangleSize
	if len(tris) != wantTris {
		t.Errorf("tri blob = %d bytes, want %d", len(tris), wantTris)
	}
}

func TestConcatBLASUnfinalized(t *testing.T) {
	scene, _ := testScene(t)
	raw, err := bvh.BuildBLAS(&scene.Meshes[0])
	if err != nil {
		t.Fatal(err)
	}
	if _, _, _, err := ConcatBLAS([]*bvh.BLAS{raw}); err == nil {
		t.Fatal("expected error for unfinalized blas")
	}
}

func TestApplyOffsets(t *testing.T) {
	scene, blas := testScene(t)
	descs, err := bvh.BuildInstanceDescs(scene, blas)
	if err != nil {
		t.Fatal(err)
	}
	_, _, offsets, err := ConcatBLAS(blas)
	if err != nil {
		t.Fatal(err)
	}
	ApplyOffsets(descs, scene, offsets)

	// Instance 0 uses mesh 1, instance 1 uses mesh 0.
	if descs[0].NodeOffset != offsets[1].Node || descs[0].TriOffset != offsets[1].Tri {
		t.Errorf("instance 0 offsets = (%d,%d), want (%d,%d)",
			descs[0].NodeOffset, descs[0].TriOffset, offsets[1].Node, offsets[1].Tri)
	}
	if descs[1].NodeOffset != 0 || descs[1].TriOffset != 0 {
		t.Errorf("instance 1 offsets = (%d,%d), want (0,0)", descs[1].NodeOffset, descs[1].TriOffset)
	}
}

func TestPackParams(t *testing.T) {
	p := core.NewAtlasParams(512, 256)
	buf := packParams(p)
	if len(buf) != 16 {
		t.Fatalf("params block = %d bytes, want 16", len(buf))
	}
}
