package loader

import (
	"fmt"
	"path/filepath"

	"github.com/g3n/engine/loader/obj"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/aobake/aobake/core"
	"github.com/aobake/aobake/log"
)

// loadOBJ reads a Wavefront file as a single mesh with one geometry per
// object group, placed by one identity instance. Per-group materials
// only; the decoder's per-face material assignment is collapsed to the
// group's first face.
func loadOBJ(path string, logger log.Logger) (*core.Scene, error) {
	dec, err := obj.Decode(path, "")
	if err != nil {
		return nil, fmt.Errorf("loader: %s: %w", path, err)
	}

	scene := &core.Scene{}
	baseDir := filepath.Dir(path)
	matIDs := map[string]int32{}
	texIDs := map[string]int32{}

	var mesh core.Mesh
	var materialIDs []int32
	for oi := range dec.Objects {
		o := &dec.Objects[oi]
		if len(o.Faces) == 0 {
			continue
		}
		geom, err := objGeometry(dec, o)
		if err != nil {
			return nil, fmt.Errorf("loader: %s: object %s: %w", path, o.Name, err)
		}
		mesh.Geometries = append(mesh.Geometries, geom)

		matName := o.Faces[0].Material
		id := int32(-1)
		if m, ok := dec.Materials[matName]; ok && m != nil {
			if known, ok := matIDs[matName]; ok {
				id = known
			} else {
				id = int32(len(scene.Materials))
				matIDs[matName] = id
				scene.Materials = append(scene.Materials, objMaterial(scene, m, baseDir, texIDs, logger))
			}
		}
		materialIDs = append(materialIDs, id)
	}
	if len(mesh.Geometries) == 0 {
		return nil, fmt.Errorf("loader: %s: no triangle data", path)
	}

	scene.Meshes = []core.Mesh{mesh}
	scene.Instances = []core.Instance{{
		Transform:   mgl32.Ident4(),
		MeshID:      0,
		MaterialIDs: materialIDs,
	}}
	return scene, nil
}

// objGeometry re-indexes the decoder's separate position/uv/normal
// streams into a single vertex stream, fanning polygons into triangles.
func objGeometry(dec *obj.Decoder, o *obj.Object) (core.Geometry, error) {
	type corner struct{ v, n, u int }
	var g core.Geometry
	remap := map[corner]uint32{}
	normalCount := 0
	hasUVs := false

	resolve := func(f *obj.Face, k int) (uint32, error) {
		c := corner{v: f.Vertices[k], n: -1, u: -1}
		if k < len(f.Normals) && f.Normals[k] >= 0 && (f.Normals[k]+1)*3 <= len(dec.Normals) {
			c.n = f.Normals[k]
		}
		if k < len(f.Uvs) && f.Uvs[k] >= 0 && (f.Uvs[k]+1)*2 <= len(dec.Uvs) {
			c.u = f.Uvs[k]
		}
		if idx, ok := remap[c]; ok {
			return idx, nil
		}
		if (c.v+1)*3 > len(dec.Vertices) || c.v < 0 {
			return 0, fmt.Errorf("vertex index %d out of range", c.v)
		}
		idx := uint32(len(g.Vertices))
		remap[c] = idx
		g.Vertices = append(g.Vertices, mgl32.Vec3{
			dec.Vertices[c.v*3], dec.Vertices[c.v*3+1], dec.Vertices[c.v*3+2],
		})
		if c.n >= 0 {
			normalCount++
			g.Normals = append(g.Normals, mgl32.Vec3{
				dec.Normals[c.n*3], dec.Normals[c.n*3+1], dec.Normals[c.n*3+2],
			}.Normalize())
		} else {
			g.Normals = append(g.Normals, mgl32.Vec3{})
		}
		if c.u >= 0 {
			hasUVs = true
			g.UVs = append(g.UVs, mgl32.Vec2{dec.Uvs[c.u*2], dec.Uvs[c.u*2+1]})
		} else {
			g.UVs = append(g.UVs, mgl32.Vec2{})
		}
		return idx, nil
	}

	for fi := range o.Faces {
		f := &o.Faces[fi]
		if len(f.Vertices) < 3 {
			continue
		}
		first, err := resolve(f, 0)
		if err != nil {
			return core.Geometry{}, err
		}
		prev, err := resolve(f, 1)
		if err != nil {
			return core.Geometry{}, err
		}
		for k := 2; k < len(f.Vertices); k++ {
			next, err := resolve(f, k)
			if err != nil {
				return core.Geometry{}, err
			}
			g.Indices = append(g.Indices, [3]uint32{first, prev, next})
			prev = next
		}
	}

	switch normalCount {
	case len(g.Vertices):
		// fully specified
	case 0:
		g.Normals = nil
	default:
		// Some faces reference normals and some do not. Zero vectors
		// would slip past the missing-normals gate and poison the bake.
		return core.Geometry{}, fmt.Errorf("%d of %d vertices lack normals: %w",
			len(g.Vertices)-normalCount, len(g.Vertices), core.ErrMissingNormals)
	}
	if !hasUVs {
		g.UVs = nil
	}
	return g, nil
}

// objMaterial maps a Wavefront material onto the Disney parameter set.
// Shininess compresses into a [0,1] specular weight with roughness as
// its complement, and dissolve becomes transmission.
func objMaterial(scene *core.Scene, m *obj.Material, baseDir string, texIDs map[string]int32, logger log.Logger) core.Material {
	out := core.DefaultMaterial()
	out.BaseColor = core.ColorParam{Color: mgl32.Vec3{m.Diffuse.R, m.Diffuse.G, m.Diffuse.B}}

	specular := clamp01(m.Shininess / 500)
	out.Specular = core.Constant(specular)
	out.Roughness = core.Constant(1 - specular)
	out.SpecularTransmission = core.Constant(clamp01(1 - m.Opacity))

	if m.MapKd != "" {
		id, ok := texIDs[m.MapKd]
		if !ok {
			tex, err := loadTextureFile(filepath.Join(baseDir, m.MapKd), m.MapKd, core.SRGB)
			if err != nil {
				logger.Warnf("material %s: %v", m.Name, err)
				return out
			}
			id = int32(len(scene.Textures))
			texIDs[m.MapKd] = id
			scene.Textures = append(scene.Textures, tex)
		}
		out.BaseColor = core.ColorParam{Texture: &core.TextureRef{TextureID: id}}
	}
	return out
}

func clamp01(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
