package core

import (
	"fmt"
	"strings"
)

// Scene owns everything a loader produces. Read-only after load except
// for the single atlas remap pass over its geometries.
type Scene struct {
	Meshes    []Mesh
	Instances []Instance
	Materials []Material
	Textures  []Texture
	Lights    []QuadLight
	Cameras   []Camera
}

// UniqueTris counts triangles once per mesh.
func (s *Scene) UniqueTris() int {
	n := 0
	for i := range s.Meshes {
		n += s.Meshes[i].NumTris()
	}
	return n
}

// TotalTris counts triangles after instancing.
func (s *Scene) TotalTris() int {
	n := 0
	for _, inst := range s.Instances {
		n += s.Meshes[inst.MeshID].NumTris()
	}
	return n
}

func (s *Scene) NumGeometries() int {
	n := 0
	for i := range s.Meshes {
		n += len(s.Meshes[i].Geometries)
	}
	return n
}

// Summary is the human-readable per-load diagnostic printout.
func (s *Scene) Summary(name string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Scene '%s':\n", name)
	fmt.Fprintf(&b, "# Unique Triangles: %s\n", PrettyCount(s.UniqueTris()))
	fmt.Fprintf(&b, "# Total Triangles: %s\n", PrettyCount(s.TotalTris()))
	fmt.Fprintf(&b, "# Geometries: %d\n", s.NumGeometries())
	fmt.Fprintf(&b, "# Meshes: %d\n", len(s.Meshes))
	fmt.Fprintf(&b, "# Instances: %d\n", len(s.Instances))
	fmt.Fprintf(&b, "# Materials: %d\n", len(s.Materials))
	fmt.Fprintf(&b, "# Textures: %d\n", len(s.Textures))
	fmt.Fprintf(&b, "# Lights: %d\n", len(s.Lights))
	fmt.Fprintf(&b, "# Cameras: %d", len(s.Cameras))
	return b.String()
}

// PrettyCount formats large counts as K/M/G.
func PrettyCount(n int) string {
	switch {
	case n >= 1_000_000_000:
		return fmt.Sprintf("%.2fG", float64(n)/1e9)
	case n >= 1_000_000:
		return fmt.Sprintf("%.2fM", float64(n)/1e6)
	case n >= 1_000:
		return fmt.Sprintf("%.2fK", float64(n)/1e3)
	default:
		return fmt.Sprintf("%d", n)
	}
}

// ValidateMaterials synthesizes a default material for instances with
// unresolved (-1) material references. Returns true if one was added.
func (s *Scene) ValidateMaterials() bool {
	needDefault := false
	for _, inst := range s.Instances {
		for _, id := range inst.MaterialIDs {
			if id < 0 {
				needDefault = true
			}
		}
	}
	if !needDefault {
		return false
	}
	defaultID := int32(len(s.Materials))
	s.Materials = append(s.Materials, DefaultMaterial())
	for i := range s.Instances {
		ids := s.Instances[i].MaterialIDs
		for j, id := range ids {
			if id < 0 {
				ids[j] = defaultID
			}
		}
	}
	return true
}

// EnsureLight generates the default quad light when the scene has none.
// Returns true if one was added.
func (s *Scene) EnsureLight() bool {
	if len(s.Lights) > 0 {
		return false
	}
	s.Lights = append(s.Lights, DefaultQuadLight())
	return true
}

// RequireNormals fails when any geometry lacks normals. The AO bake
// reconstructs hemisphere bases from per-vertex normals, so this is
// checked before any device work starts.
func (s *Scene) RequireNormals() error {
	for mi := range s.Meshes {
		for gi := range s.Meshes[mi].Geometries {
			g := &s.Meshes[mi].Geometries[gi]
			if len(g.Normals) == 0 {
				return fmt.Errorf("mesh %d geometry %d: %w", mi, gi, ErrMissingNormals)
			}
		}
	}
	return nil
}

// Validate runs the per-geometry invariants over the whole scene.
func (s *Scene) Validate() error {
	for mi := range s.Meshes {
		for gi := range s.Meshes[mi].Geometries {
			if err := s.Meshes[mi].Geometries[gi].Validate(); err != nil {
				return fmt.Errorf("mesh %d geometry %d: %w", mi, gi, err)
			}
		}
	}
	for i, inst := range s.Instances {
		if inst.MeshID < 0 || inst.MeshID >= len(s.Meshes) {
			return fmt.Errorf("instance %d references mesh %d of %d", i, inst.MeshID, len(s.Meshes))
		}
		if len(inst.MaterialIDs) != len(s.Meshes[inst.MeshID].Geometries) {
			return fmt.Errorf("instance %d has %d material ids for %d geometries",
				i, len(inst.MaterialIDs), len(s.Meshes[inst.MeshID].Geometries))
		}
	}
	return nil
}

// CheckSingleInstancing rejects scenes that place one mesh more than once.
// The baking pass assumes a one-to-one mesh-to-surface mapping; duplicate
// placements would write conflicting AO values into the same charts.
func (s *Scene) CheckSingleInstancing() error {
	seen := make(map[int]int, len(s.Instances))
	for i, inst := range s.Instances {
		if prev, ok := seen[inst.MeshID]; ok {
			return fmt.Errorf("mesh %d referenced by instances %d and %d: %w",
				inst.MeshID, prev, i, ErrMultipleInstances)
		}
		seen[inst.MeshID] = i
	}
	return nil
}
