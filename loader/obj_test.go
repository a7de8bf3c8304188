package loader

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/aobake/aobake/core"
)

func writeOBJ(t *testing.T, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mesh.obj")
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadOBJ(t *testing.T) {
	scene, err := Load(writeOBJ(t, `o tri
v 0 0 0
v 1 0 0
v 0 1 0
vn 0 0 1
f 1//1 2//1 3//1
`), nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := scene.UniqueTris(); got != 1 {
		t.Errorf("got %d triangles, want 1", got)
	}
	if err := scene.RequireNormals(); err != nil {
		t.Errorf("RequireNormals: %v", err)
	}
}

func TestLoadOBJNoNormals(t *testing.T) {
	scene, err := Load(writeOBJ(t, `o tri
v 0 0 0
v 1 0 0
v 0 1 0
f 1 2 3
`), nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := scene.RequireNormals(); !errors.Is(err, core.ErrMissingNormals) {
		t.Errorf("got %v, want ErrMissingNormals", err)
	}
}

func TestLoadOBJPartialNormals(t *testing.T) {
	// One face carries normal references, one does not. The load must
	// fail outright instead of padding the gap with zero vectors.
	_, err := Load(writeOBJ(t, `o quad
v 0 0 0
v 1 0 0
v 0 1 0
v 1 1 0
vn 0 0 1
f 1//1 2//1 3//1
f 2 4 3
`), nil)
	if !errors.Is(err, core.ErrMissingNormals) {
		t.Errorf("got %v, want ErrMissingNormals", err)
	}
}
