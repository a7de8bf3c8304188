package app

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/aobake/aobake/log"
)

const planeOBJ = `o plane
v -1 0 -1
v 1 0 -1
v 1 0 1
v -1 0 1
vn 0 1 0
f 1//1 2//1 3//1
f 1//1 3//1 4//1
`

func writeScene(t *testing.T, name, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRunBakeCPU(t *testing.T) {
	a := NewApp(nil, log.NewNopLogger())
	m, scene, err := a.RunBake(Options{
		ScenePath: writeScene(t, "plane.obj", planeOBJ),
		Samples:   16,
		UseCPU:    true,
	})
	if err != nil {
		t.Fatalf("RunBake: %v", err)
	}
	if scene == nil || len(scene.Meshes) != 1 {
		t.Fatalf("expected one mesh, got %+v", scene)
	}
	if m.Width == 0 || m.Height == 0 {
		t.Fatalf("empty map %dx%d", m.Width, m.Height)
	}

	// Nothing occludes an open plane, so every texel stays bright.
	for _, v := range m.Values {
		if v < 0.9 || v > 1 {
			t.Fatalf("open plane texel out of range: %v", v)
		}
	}
}

func TestRunBakeMissingFile(t *testing.T) {
	a := NewApp(nil, log.NewNopLogger())
	if _, _, err := a.RunBake(Options{ScenePath: "no-such.obj", UseCPU: true}); err == nil {
		t.Fatal("expected error for missing scene")
	}
}

func TestRunBakeResolutionCap(t *testing.T) {
	a := NewApp(nil, log.NewNopLogger())
	m, _, err := a.RunBake(Options{
		ScenePath:  writeScene(t, "plane.obj", planeOBJ),
		Samples:    4,
		Resolution: 256,
		UseCPU:     true,
	})
	if err != nil {
		t.Fatalf("RunBake: %v", err)
	}
	if m.Width > 256 || m.Height > 256 {
		t.Fatalf("atlas %dx%d exceeds the 256 cap", m.Width, m.Height)
	}
}
