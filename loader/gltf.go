package loader

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"

	"github.com/aobake/aobake/core"
	"github.com/aobake/aobake/log"
)

// loadGLTF reads a glTF or GLB document. Every document mesh becomes a
// scene mesh with one geometry per primitive, and the node hierarchy
// flattens into world-space instances.
func loadGLTF(path string, logger log.Logger) (*core.Scene, error) {
	doc, err := gltf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("loader: %s: %w", path, err)
	}

	scene := &core.Scene{}

	// One material id list per document mesh, reused by every node that
	// references the mesh.
	meshMaterials := make([][]int32, len(doc.Meshes))
	for mi, m := range doc.Meshes {
		var mesh core.Mesh
		for pi, prim := range m.Primitives {
			if prim.Mode != gltf.PrimitiveTriangles {
				return nil, fmt.Errorf("loader: %s: mesh %d primitive %d: %w", path, mi, pi, ErrNotTriangles)
			}
			geom, err := gltfGeometry(doc, prim)
			if err != nil {
				return nil, fmt.Errorf("loader: %s: mesh %d primitive %d: %w", path, mi, pi, err)
			}
			mesh.Geometries = append(mesh.Geometries, geom)
			id := int32(-1)
			if prim.Material != nil {
				id = int32(*prim.Material)
			}
			meshMaterials[mi] = append(meshMaterials[mi], id)
		}
		scene.Meshes = append(scene.Meshes, mesh)
	}

	if err := gltfTextures(doc, scene, logger); err != nil {
		return nil, fmt.Errorf("loader: %s: %w", path, err)
	}
	gltfMaterials(doc, scene)

	// Flatten the default scene's node tree.
	var roots []int
	if len(doc.Scenes) > 0 {
		si := 0
		if doc.Scene != nil {
			si = int(*doc.Scene)
		}
		for _, n := range doc.Scenes[si].Nodes {
			roots = append(roots, int(n))
		}
	}
	for _, root := range roots {
		gltfWalkNode(doc, root, mgl32.Ident4(), scene, meshMaterials)
	}
	// Documents without a scene still get their meshes placed once.
	if len(roots) == 0 {
		for mi := range scene.Meshes {
			scene.Instances = append(scene.Instances, core.Instance{
				Transform:   mgl32.Ident4(),
				MeshID:      mi,
				MaterialIDs: append([]int32(nil), meshMaterials[mi]...),
			})
		}
	}
	return scene, nil
}

func gltfGeometry(doc *gltf.Document, prim *gltf.Primitive) (core.Geometry, error) {
	var g core.Geometry

	posIdx, ok := prim.Attributes[gltf.POSITION]
	if !ok {
		return g, fmt.Errorf("primitive has no positions")
	}
	positions, err := modeler.ReadPosition(doc, doc.Accessors[posIdx], nil)
	if err != nil {
		return g, err
	}
	for _, p := range positions {
		g.Vertices = append(g.Vertices, mgl32.Vec3{p[0], p[1], p[2]})
	}

	if ni, ok := prim.Attributes[gltf.NORMAL]; ok {
		normals, err := modeler.ReadNormal(doc, doc.Accessors[ni], nil)
		if err != nil {
			return g, err
		}
		for _, n := range normals {
			g.Normals = append(g.Normals, mgl32.Vec3{n[0], n[1], n[2]})
		}
	}

	if ti, ok := prim.Attributes[gltf.TEXCOORD_0]; ok {
		uvs, err := modeler.ReadTextureCoord(doc, doc.Accessors[ti], nil)
		if err != nil {
			return g, err
		}
		for _, uv := range uvs {
			g.UVs = append(g.UVs, mgl32.Vec2{uv[0], uv[1]})
		}
	}

	if prim.Indices == nil {
		return g, fmt.Errorf("primitive has no indices")
	}
	indices, err := modeler.ReadIndices(doc, doc.Accessors[*prim.Indices], nil)
	if err != nil {
		return g, err
	}
	if len(indices)%3 != 0 {
		return g, fmt.Errorf("%w: %d indices", ErrNotTriangles, len(indices))
	}
	for i := 0; i+2 < len(indices); i += 3 {
		g.Indices = append(g.Indices, [3]uint32{indices[i], indices[i+1], indices[i+2]})
	}
	return g, nil
}

func gltfWalkNode(doc *gltf.Document, idx int, parent mgl32.Mat4, scene *core.Scene, meshMaterials [][]int32) {
	node := doc.Nodes[idx]
	world := parent.Mul4(gltfNodeTransform(node))
	if node.Mesh != nil {
		mi := int(*node.Mesh)
		scene.Instances = append(scene.Instances, core.Instance{
			Transform:   world,
			MeshID:      mi,
			MaterialIDs: append([]int32(nil), meshMaterials[mi]...),
		})
	}
	for _, child := range node.Children {
		gltfWalkNode(doc, int(child), world, scene, meshMaterials)
	}
}

func gltfNodeTransform(node *gltf.Node) mgl32.Mat4 {
	// Decoded nodes carry the identity matrix when the file omits it, so
	// a non-default matrix always wins over TRS.
	if m := node.MatrixOrDefault(); m != gltf.DefaultMatrix {
		var out mgl32.Mat4
		for i, v := range m {
			out[i] = v
		}
		return out
	}

	t := node.TranslationOrDefault()
	r := node.RotationOrDefault()
	s := node.ScaleOrDefault()

	quat := mgl32.Quat{
		W: r[3],
		V: mgl32.Vec3{r[0], r[1], r[2]},
	}
	return mgl32.Translate3D(t[0], t[1], t[2]).
		Mul4(quat.Mat4()).
		Mul4(mgl32.Scale3D(s[0], s[1], s[2]))
}

// gltfTextures decodes every image into an RGBA8 texture. Everything
// starts linear; material references promote color textures to sRGB.
func gltfTextures(doc *gltf.Document, scene *core.Scene, logger log.Logger) error {
	for _, img := range doc.Images {
		if img.BufferView == nil {
			logger.Warnf("image %s has no buffer view, skipping", img.Name)
			scene.Textures = append(scene.Textures, core.Texture{Name: img.Name})
			continue
		}
		bv := doc.BufferViews[*img.BufferView]
		buf := doc.Buffers[bv.Buffer]
		off := int(bv.ByteOffset)
		data := buf.Data[off : off+int(bv.ByteLength)]
		tex, err := decodeTexture(data, img.Name, core.Linear, false)
		if err != nil {
			return err
		}
		scene.Textures = append(scene.Textures, tex)
	}
	return nil
}

func gltfMaterials(doc *gltf.Document, scene *core.Scene) {
	markColorSpace := func(texIndex uint32, cs core.ColorSpace) int32 {
		src := doc.Textures[texIndex].Source
		if src == nil {
			return -1
		}
		if int(*src) < len(scene.Textures) {
			scene.Textures[*src].ColorSpace = cs
		}
		return int32(*src)
	}

	for _, m := range doc.Materials {
		out := core.DefaultMaterial()
		pbr := m.PBRMetallicRoughness
		if pbr != nil {
			base := [4]float32{1, 1, 1, 1}
			if pbr.BaseColorFactor != nil {
				base = *pbr.BaseColorFactor
			}
			out.BaseColor = core.ColorParam{Color: mgl32.Vec3{base[0], base[1], base[2]}}
			if pbr.BaseColorTexture != nil {
				if id := markColorSpace(pbr.BaseColorTexture.Index, core.SRGB); id >= 0 {
					out.BaseColor = core.ColorParam{Texture: &core.TextureRef{TextureID: id}}
				}
			}

			metallic, roughness := float32(1), float32(1)
			if pbr.MetallicFactor != nil {
				metallic = *pbr.MetallicFactor
			}
			if pbr.RoughnessFactor != nil {
				roughness = *pbr.RoughnessFactor
			}
			out.Metallic = core.Constant(metallic)
			out.Roughness = core.Constant(roughness)
			if pbr.MetallicRoughnessTexture != nil {
				// Metallic reads the blue channel, roughness the green.
				if id := markColorSpace(pbr.MetallicRoughnessTexture.Index, core.Linear); id >= 0 {
					out.Metallic = core.TexturedParam(id, 2)
					out.Roughness = core.TexturedParam(id, 1)
				}
			}
		}
		scene.Materials = append(scene.Materials, out)
	}
}
