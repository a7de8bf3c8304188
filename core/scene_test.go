package core

import (
	"errors"
	"strings"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func twoMeshScene() *Scene {
	tri := Geometry{
		Vertices: []mgl32.Vec3{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}},
		Normals:  []mgl32.Vec3{{0, 0, 1}, {0, 0, 1}, {0, 0, 1}},
		Indices:  [][3]uint32{{0, 1, 2}},
	}
	return &Scene{
		Meshes: []Mesh{
			{Geometries: []Geometry{tri}},
			{Geometries: []Geometry{tri, tri}},
		},
		Instances: []Instance{
			{Transform: mgl32.Ident4(), MeshID: 0, MaterialIDs: []int32{-1}},
			{Transform: mgl32.Ident4(), MeshID: 1, MaterialIDs: []int32{-1, -1}},
		},
	}
}

func TestSceneCounts(t *testing.T) {
	s := twoMeshScene()
	assert.Equal(t, 3, s.UniqueTris())
	assert.Equal(t, 3, s.TotalTris())
	assert.Equal(t, 3, s.NumGeometries())

	// A second placement of mesh 0 raises the total but not the unique count.
	s.Instances = append(s.Instances, Instance{Transform: mgl32.Ident4(), MeshID: 0, MaterialIDs: []int32{-1}})
	assert.Equal(t, 3, s.UniqueTris())
	assert.Equal(t, 4, s.TotalTris())
}

func TestSummary(t *testing.T) {
	s := twoMeshScene()
	out := s.Summary("twomesh")
	for _, want := range []string{
		"Scene 'twomesh':",
		"# Unique Triangles: 3",
		"# Meshes: 2",
		"# Instances: 2",
		"# Lights: 0",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}
}

func TestPrettyCount(t *testing.T) {
	assert.Equal(t, "999", PrettyCount(999))
	assert.Equal(t, "1.50K", PrettyCount(1500))
	assert.Equal(t, "2.00M", PrettyCount(2_000_000))
	assert.Equal(t, "1.00G", PrettyCount(1_000_000_000))
}

func TestValidateMaterialsSynthesizesDefault(t *testing.T) {
	s := twoMeshScene()
	require.True(t, s.ValidateMaterials())
	require.Len(t, s.Materials, 1)
	for _, inst := range s.Instances {
		for _, id := range inst.MaterialIDs {
			assert.Equal(t, int32(0), id)
		}
	}
	// Second call is a no-op.
	assert.False(t, s.ValidateMaterials())
	assert.Len(t, s.Materials, 1)
}

func TestEnsureLight(t *testing.T) {
	s := twoMeshScene()
	require.True(t, s.EnsureLight())
	assert.False(t, s.EnsureLight())
	require.Len(t, s.Lights, 1)

	l := s.Lights[0]
	assert.InDelta(t, 1.0, float64(l.Normal.Len()), 1e-5)
	assert.InDelta(t, 10.0, float64(l.Position.Len()), 1e-4)
	assert.Equal(t, float32(20), l.Emission.X())
}

func TestRequireNormals(t *testing.T) {
	s := twoMeshScene()
	require.NoError(t, s.RequireNormals())

	s.Meshes[1].Geometries[1].Normals = nil
	err := s.RequireNormals()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMissingNormals))
}

func TestValidateRejectsBadInstance(t *testing.T) {
	s := twoMeshScene()
	require.NoError(t, s.Validate())

	s.Instances[0].MeshID = 5
	assert.Error(t, s.Validate())

	s.Instances[0].MeshID = 0
	s.Instances[0].MaterialIDs = []int32{-1, -1}
	assert.Error(t, s.Validate())
}

func TestCheckSingleInstancing(t *testing.T) {
	s := twoMeshScene()
	require.NoError(t, s.CheckSingleInstancing())

	s.Instances = append(s.Instances, Instance{MeshID: 0, MaterialIDs: []int32{-1}})
	err := s.CheckSingleInstancing()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMultipleInstances))
}
