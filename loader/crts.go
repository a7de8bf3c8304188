package loader

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/aobake/aobake/core"
	"github.com/aobake/aobake/log"
)

// Exported camera fields come out wider than the renderer expects; this
// divisor brings the vertical fov in line with the authoring tool.
const fovCalibration = 1.18

// crts layout: a uint64 little-endian JSON header size, the JSON
// header, then one binary blob addressed by byte-offset/length buffer
// views.
type crtsHeader struct {
	BufferViews []crtsView     `json:"buffer_views"`
	Meshes      []crtsMesh     `json:"meshes"`
	Images      []crtsImage    `json:"images"`
	Materials   []crtsMaterial `json:"materials"`
	Objects     []crtsObject   `json:"objects"`
}

type crtsView struct {
	Type       string `json:"type"`
	ByteOffset uint64 `json:"byte_offset"`
	ByteLength uint64 `json:"byte_length"`
}

type crtsMesh struct {
	Positions *uint64 `json:"positions"`
	Indices   *uint64 `json:"indices"`
	Normals   *uint64 `json:"normals"`
	Texcoords *uint64 `json:"texcoords"`
}

type crtsImage struct {
	Name       string `json:"name"`
	View       uint64 `json:"view"`
	ColorSpace string `json:"color_space"`
}

type crtsTextureRef struct {
	Texture int32  `json:"texture"`
	Channel uint32 `json:"channel"`
}

type crtsMaterial struct {
	BaseColor        [3]float32 `json:"base_color"`
	BaseColorTexture *int32     `json:"base_color_texture"`

	Metallic     float32 `json:"metallic"`
	Specular     float32 `json:"specular"`
	Roughness    float32 `json:"roughness"`
	SpecularTint float32 `json:"specular_tint"`
	Anisotropic  float32 `json:"anisotropic"`
	Sheen        float32 `json:"sheen"`
	SheenTint    float32 `json:"sheen_tint"`
	Clearcoat    float32 `json:"clearcoat"`
	// Blender exports clearcoat roughness; the Disney gloss term is its
	// complement but the original data is carried through as-is.
	ClearcoatRoughness float32 `json:"clearcoat_roughness"`
	IOR                float32 `json:"ior"`
	Transmission       float32 `json:"transmission"`

	MetallicTexture           *crtsTextureRef `json:"metallic_texture"`
	SpecularTexture           *crtsTextureRef `json:"specular_texture"`
	RoughnessTexture          *crtsTextureRef `json:"roughness_texture"`
	SpecularTintTexture       *crtsTextureRef `json:"specular_tint_texture"`
	AnisotropicTexture        *crtsTextureRef `json:"anisotropic_texture"`
	SheenTexture              *crtsTextureRef `json:"sheen_texture"`
	SheenTintTexture          *crtsTextureRef `json:"sheen_tint_texture"`
	ClearcoatTexture          *crtsTextureRef `json:"clearcoat_texture"`
	ClearcoatRoughnessTexture *crtsTextureRef `json:"clearcoat_roughness_texture"`
	IORTexture                *crtsTextureRef `json:"ior_texture"`
	TransmissionTexture       *crtsTextureRef `json:"transmission_texture"`
}

type crtsObject struct {
	Type     string      `json:"type"`
	Matrix   [16]float32 `json:"matrix"`
	Mesh     *uint64     `json:"mesh"`
	Material *int32      `json:"material"`
	Color    [3]float32  `json:"color"`
	Energy   float32     `json:"energy"`
	Size     [2]float32  `json:"size"`
	FovY     float32     `json:"fov_y"`
}

func loadCRTS(path string, logger log.Logger) (*core.Scene, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("loader: %w", err)
	}
	if len(raw) < 8 {
		return nil, fmt.Errorf("loader: %s: %w", path, ErrBadHeader)
	}
	headerSize := binary.LittleEndian.Uint64(raw[:8])
	if headerSize > uint64(len(raw)-8) {
		return nil, fmt.Errorf("loader: %s: %w: header size %d", path, ErrBadHeader, headerSize)
	}
	var header crtsHeader
	if err := json.Unmarshal(raw[8:8+headerSize], &header); err != nil {
		return nil, fmt.Errorf("loader: %s: %w: %v", path, ErrBadHeader, err)
	}
	blob := raw[8+headerSize:]

	view := func(id uint64) ([]byte, error) {
		if id >= uint64(len(header.BufferViews)) {
			return nil, fmt.Errorf("%w: buffer view %d of %d", ErrBadHeader, id, len(header.BufferViews))
		}
		v := header.BufferViews[id]
		// Checked separately so a huge offset cannot wrap the sum.
		if v.ByteOffset > uint64(len(blob)) || v.ByteLength > uint64(len(blob))-v.ByteOffset {
			return nil, fmt.Errorf("%w: buffer view %d overruns blob", ErrBadHeader, id)
		}
		return blob[v.ByteOffset : v.ByteOffset+v.ByteLength], nil
	}

	scene := &core.Scene{}

	// A crts mesh carries a single geometry, like Blender meshes do.
	for mi, m := range header.Meshes {
		var geom core.Geometry
		if m.Positions == nil || m.Indices == nil {
			return nil, fmt.Errorf("loader: %s: mesh %d missing required views", path, mi)
		}
		data, err := view(*m.Positions)
		if err != nil {
			return nil, fmt.Errorf("loader: %s: mesh %d: %w", path, mi, err)
		}
		geom.Vertices = readVec3s(data)

		data, err = view(*m.Indices)
		if err != nil {
			return nil, fmt.Errorf("loader: %s: mesh %d: %w", path, mi, err)
		}
		for i := 0; i+12 <= len(data); i += 12 {
			geom.Indices = append(geom.Indices, [3]uint32{
				binary.LittleEndian.Uint32(data[i:]),
				binary.LittleEndian.Uint32(data[i+4:]),
				binary.LittleEndian.Uint32(data[i+8:]),
			})
		}

		if m.Normals != nil {
			data, err = view(*m.Normals)
			if err != nil {
				return nil, fmt.Errorf("loader: %s: mesh %d: %w", path, mi, err)
			}
			geom.Normals = readVec3s(data)
		}
		if m.Texcoords != nil {
			data, err = view(*m.Texcoords)
			if err != nil {
				return nil, fmt.Errorf("loader: %s: mesh %d: %w", path, mi, err)
			}
			for i := 0; i+8 <= len(data); i += 8 {
				geom.UVs = append(geom.UVs, mgl32.Vec2{
					readFloat(data[i:]), readFloat(data[i+4:]),
				})
			}
		}
		scene.Meshes = append(scene.Meshes, core.Mesh{Geometries: []core.Geometry{geom}})
	}

	for _, img := range header.Images {
		data, err := view(img.View)
		if err != nil {
			return nil, fmt.Errorf("loader: %s: image %s: %w", path, img.Name, err)
		}
		cs := core.SRGB
		if img.ColorSpace == "LINEAR" {
			cs = core.Linear
		}
		tex, err := decodeTexture(data, img.Name, cs, true)
		if err != nil {
			return nil, err
		}
		scene.Textures = append(scene.Textures, tex)
	}

	for _, m := range header.Materials {
		scene.Materials = append(scene.Materials, crtsDisneyMaterial(m))
	}

	for i, obj := range header.Objects {
		matrix := mat4FromColumnMajor(obj.Matrix)
		switch obj.Type {
		case "MESH":
			if obj.Mesh == nil {
				return nil, fmt.Errorf("loader: %s: object %d has no mesh", path, i)
			}
			matID := int32(-1)
			if obj.Material != nil {
				matID = *obj.Material
			}
			scene.Instances = append(scene.Instances, core.Instance{
				Transform:   matrix,
				MeshID:      int(*obj.Mesh),
				MaterialIDs: []int32{matID},
			})
		case "LIGHT":
			e := obj.Color
			light := core.QuadLight{
				Emission: mgl32.Vec4{e[0] * obj.Energy, e[1] * obj.Energy, e[2] * obj.Energy, 1},
				Position: matrix.Col(3).Vec3(),
				Normal:   matrix.Col(2).Vec3().Normalize().Mul(-1),
				VX:       matrix.Col(0).Vec3().Normalize(),
				VY:       matrix.Col(1).Vec3().Normalize(),
				Width:    obj.Size[0],
				Height:   obj.Size[1],
			}
			scene.Lights = append(scene.Lights, light)
		case "CAMERA":
			pos := matrix.Col(3).Vec3()
			dir := matrix.Col(2).Vec3().Normalize().Mul(-1)
			scene.Cameras = append(scene.Cameras, core.Camera{
				Position: pos,
				Center:   pos.Add(dir.Mul(10)),
				Up:       matrix.Col(1).Vec3().Normalize(),
				FovY:     obj.FovY / fovCalibration,
			})
		default:
			return nil, fmt.Errorf("loader: %s: object %d: unsupported type %q", path, i, obj.Type)
		}
	}

	logger.Debugf("crts %s: %d meshes, %d images, %d materials, %d objects",
		path, len(header.Meshes), len(header.Images), len(header.Materials), len(header.Objects))
	return scene, nil
}

func crtsDisneyMaterial(m crtsMaterial) core.Material {
	param := func(v float32, tex *crtsTextureRef) core.MaterialParam {
		if tex != nil {
			return core.TexturedParam(tex.Texture, int32(tex.Channel))
		}
		return core.Constant(v)
	}

	out := core.Material{
		BaseColor:            core.ColorParam{Color: mgl32.Vec3{m.BaseColor[0], m.BaseColor[1], m.BaseColor[2]}},
		Metallic:             param(m.Metallic, m.MetallicTexture),
		Specular:             param(m.Specular, m.SpecularTexture),
		Roughness:            param(m.Roughness, m.RoughnessTexture),
		SpecularTint:         param(m.SpecularTint, m.SpecularTintTexture),
		Anisotropy:           param(m.Anisotropic, m.AnisotropicTexture),
		Sheen:                param(m.Sheen, m.SheenTexture),
		SheenTint:            param(m.SheenTint, m.SheenTintTexture),
		Clearcoat:            param(m.Clearcoat, m.ClearcoatTexture),
		ClearcoatGloss:       param(m.ClearcoatRoughness, m.ClearcoatRoughnessTexture),
		IOR:                  param(m.IOR, m.IORTexture),
		SpecularTransmission: param(m.Transmission, m.TransmissionTexture),
	}
	if m.BaseColorTexture != nil {
		out.BaseColor = core.ColorParam{Texture: &core.TextureRef{TextureID: *m.BaseColorTexture}}
	}
	return out
}

func readVec3s(data []byte) []mgl32.Vec3 {
	out := make([]mgl32.Vec3, 0, len(data)/12)
	for i := 0; i+12 <= len(data); i += 12 {
		out = append(out, mgl32.Vec3{
			readFloat(data[i:]), readFloat(data[i+4:]), readFloat(data[i+8:]),
		})
	}
	return out
}

func readFloat(data []byte) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(data))
}

func mat4FromColumnMajor(m [16]float32) mgl32.Mat4 {
	var out mgl32.Mat4
	copy(out[:], m[:])
	return out
}
