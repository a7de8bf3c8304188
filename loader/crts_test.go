package loader

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/aobake/aobake/core"
	"github.com/aobake/aobake/log"
)

type crtsWriter struct {
	header crtsHeader
	blob   bytes.Buffer
}

func (w *crtsWriter) addView(typ string, data []byte) uint64 {
	id := uint64(len(w.header.BufferViews))
	w.header.BufferViews = append(w.header.BufferViews, crtsView{
		Type:       typ,
		ByteOffset: uint64(w.blob.Len()),
		ByteLength: uint64(len(data)),
	})
	w.blob.Write(data)
	return id
}

func (w *crtsWriter) write(t *testing.T) string {
	t.Helper()
	hdr, err := json.Marshal(&w.header)
	if err != nil {
		t.Fatal(err)
	}
	var out bytes.Buffer
	if err := binary.Write(&out, binary.LittleEndian, uint64(len(hdr))); err != nil {
		t.Fatal(err)
	}
	out.Write(hdr)
	out.Write(w.blob.Bytes())

	path := filepath.Join(t.TempDir(), "scene.crts")
	if err := os.WriteFile(path, out.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func floatBytes(vals ...float32) []byte {
	buf := make([]byte, len(vals)*4)
	for i, v := range vals {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

func uintBytes(vals ...uint32) []byte {
	buf := make([]byte, len(vals)*4)
	for i, v := range vals {
		binary.LittleEndian.PutUint32(buf[i*4:], v)
	}
	return buf
}

func identMatrix() [16]float32 {
	return [16]float32{1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1}
}

func testCRTS(t *testing.T, withNormals bool, withMaterial bool) string {
	w := &crtsWriter{}

	pos := w.addView("VEC3_F32", floatBytes(0, 0, 0, 1, 0, 0, 0, 1, 0))
	idx := w.addView("UVEC3_U32", uintBytes(0, 1, 2))
	mesh := crtsMesh{Positions: &pos, Indices: &idx}
	if withNormals {
		nrm := w.addView("VEC3_F32", floatBytes(0, 0, 1, 0, 0, 1, 0, 0, 1))
		mesh.Normals = &nrm
	}
	w.header.Meshes = append(w.header.Meshes, mesh)

	var img bytes.Buffer
	src := image.NewRGBA(image.Rect(0, 0, 2, 2))
	src.SetRGBA(0, 0, color.RGBA{255, 0, 0, 255})
	if err := png.Encode(&img, src); err != nil {
		t.Fatal(err)
	}
	iv := w.addView("UINT8", img.Bytes())
	w.header.Images = append(w.header.Images, crtsImage{Name: "checker", View: iv, ColorSpace: "LINEAR"})

	matID := int32(-1)
	if withMaterial {
		tex := int32(0)
		w.header.Materials = append(w.header.Materials, crtsMaterial{
			BaseColor:        [3]float32{0.5, 0.25, 0.125},
			BaseColorTexture: &tex,
			Metallic:         0.75,
			RoughnessTexture: &crtsTextureRef{Texture: 0, Channel: 1},
			IOR:              1.45,
		})
		matID = 0
	}

	mi := uint64(0)
	w.header.Objects = append(w.header.Objects,
		crtsObject{Type: "MESH", Matrix: identMatrix(), Mesh: &mi, Material: &matID},
		crtsObject{
			Type:   "LIGHT",
			Matrix: identMatrix(),
			Color:  [3]float32{1, 0.5, 0.25},
			Energy: 4,
			Size:   [2]float32{2, 3},
		},
		crtsObject{Type: "CAMERA", Matrix: identMatrix(), FovY: 1.18},
	)
	return w.write(t)
}

func TestLoadCRTS(t *testing.T) {
	path := testCRTS(t, true, true)
	scene, err := Load(path, log.NewNopLogger())
	if err != nil {
		t.Fatal(err)
	}

	if len(scene.Meshes) != 1 || len(scene.Meshes[0].Geometries) != 1 {
		t.Fatalf("meshes = %d", len(scene.Meshes))
	}
	g := scene.Meshes[0].Geometries[0]
	if len(g.Vertices) != 3 || len(g.Normals) != 3 || len(g.Indices) != 1 {
		t.Errorf("geometry streams %d/%d/%d", len(g.Vertices), len(g.Normals), len(g.Indices))
	}
	if g.Vertices[1].X() != 1 {
		t.Errorf("vertex 1 = %v", g.Vertices[1])
	}

	if len(scene.Textures) != 1 || scene.Textures[0].Width != 2 {
		t.Fatalf("textures = %+v", scene.Textures)
	}
	if scene.Textures[0].ColorSpace != core.Linear {
		t.Error("color space should stay linear")
	}

	if len(scene.Materials) != 1 {
		t.Fatalf("materials = %d", len(scene.Materials))
	}
	mat := scene.Materials[0]
	if !mat.BaseColor.IsTextured() {
		t.Error("base color should reference its texture")
	}
	if mat.Metallic.IsTextured() || mat.Metallic.Value != 0.75 {
		t.Errorf("metallic = %+v", mat.Metallic)
	}
	if !mat.Roughness.IsTextured() || mat.Roughness.Texture.Channel != 1 {
		t.Errorf("roughness = %+v", mat.Roughness)
	}

	if len(scene.Instances) != 1 || scene.Instances[0].MaterialIDs[0] != 0 {
		t.Errorf("instances = %+v", scene.Instances)
	}

	if len(scene.Lights) != 1 {
		t.Fatalf("lights = %d", len(scene.Lights))
	}
	l := scene.Lights[0]
	if l.Emission.X() != 4 || l.Emission.Y() != 2 || l.Emission.Z() != 1 {
		t.Errorf("emission = %v", l.Emission)
	}
	if l.Width != 2 || l.Height != 3 {
		t.Errorf("light size = %v x %v", l.Width, l.Height)
	}
	// Identity matrix: forward is -z.
	if l.Normal.Z() != -1 {
		t.Errorf("light normal = %v", l.Normal)
	}

	if len(scene.Cameras) != 1 {
		t.Fatalf("cameras = %d", len(scene.Cameras))
	}
	if got := scene.Cameras[0].FovY; got != 1.0 {
		t.Errorf("fov = %v, want calibrated 1.0", got)
	}
	if scene.Cameras[0].Center.Z() != -10 {
		t.Errorf("camera center = %v", scene.Cameras[0].Center)
	}
}

func TestLoadCRTSDefaultMaterialAndLight(t *testing.T) {
	path := testCRTS(t, true, false)
	scene, err := Load(path, log.NewNopLogger())
	if err != nil {
		t.Fatal(err)
	}
	// The unassigned instance gets a synthesized material.
	if len(scene.Materials) != 1 {
		t.Fatalf("materials = %d, want synthesized default", len(scene.Materials))
	}
	if scene.Instances[0].MaterialIDs[0] != 0 {
		t.Errorf("material id = %d, want 0", scene.Instances[0].MaterialIDs[0])
	}
}

func TestLoadCRTSMissingNormals(t *testing.T) {
	path := testCRTS(t, false, true)
	scene, err := Load(path, log.NewNopLogger())
	if err != nil {
		t.Fatal(err)
	}
	if err := scene.RequireNormals(); !errors.Is(err, core.ErrMissingNormals) {
		t.Errorf("got %v, want ErrMissingNormals", err)
	}
}

func TestLoadCRTSBadHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.crts")
	if err := os.WriteFile(path, []byte{1, 2, 3}, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path, nil); !errors.Is(err, ErrBadHeader) {
		t.Errorf("got %v, want ErrBadHeader", err)
	}

	// Header size pointing past the file.
	big := make([]byte, 16)
	binary.LittleEndian.PutUint64(big, 1<<40)
	if err := os.WriteFile(path, big, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path, nil); !errors.Is(err, ErrBadHeader) {
		t.Errorf("got %v, want ErrBadHeader", err)
	}
}

func TestLoadCRTSViewOverflow(t *testing.T) {
	// An offset near the top of the uint64 range must not wrap the
	// offset+length sum past the bounds check.
	w := &crtsWriter{}
	w.addView("VEC3_F32", floatBytes(0, 0, 0, 1, 0, 0, 0, 1, 0))
	w.header.BufferViews[0].ByteOffset = math.MaxUint64 - 2
	w.header.BufferViews[0].ByteLength = 4
	idx := w.addView("UVEC3_U32", uintBytes(0, 1, 2))
	pos := uint64(0)
	w.header.Meshes = append(w.header.Meshes, crtsMesh{Positions: &pos, Indices: &idx})

	if _, err := Load(w.write(t), nil); !errors.Is(err, ErrBadHeader) {
		t.Errorf("got %v, want ErrBadHeader", err)
	}
}

func TestLoadUnsupportedFormat(t *testing.T) {
	if _, err := Load("scene.fbx", nil); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("got %v, want ErrUnsupportedFormat", err)
	}
}

func TestSceneSummary(t *testing.T) {
	path := testCRTS(t, true, true)
	scene, err := Load(path, log.NewNopLogger())
	if err != nil {
		t.Fatal(err)
	}
	s := scene.Summary("scene.crts")
	for _, want := range []string{"# Meshes: 1", "# Instances: 1", "# Lights: 1", "# Cameras: 1"} {
		if !bytes.Contains([]byte(s), []byte(want)) {
			t.Errorf("summary missing %q:\n%s", want, s)
		}
	}
}
