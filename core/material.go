package core

import "github.com/go-gl/mathgl/mgl32"

// TextureRef points a material parameter at one channel of a scene texture.
type TextureRef struct {
	TextureID int32
	Channel   int32
}

// MaterialParam is a scalar material parameter that is either a constant
// or sampled from a texture channel. The textured case carries an explicit
// reference instead of packing the texture id into the float's bits.
type MaterialParam struct {
	Value   float32
	Texture *TextureRef
}

func Constant(v float32) MaterialParam {
	return MaterialParam{Value: v}
}

func TexturedParam(textureID, channel int32) MaterialParam {
	return MaterialParam{Texture: &TextureRef{TextureID: textureID, Channel: channel}}
}

func (p MaterialParam) IsTextured() bool { return p.Texture != nil }

// ColorParam is a tri-channel parameter: a constant RGB color, or an RGB
// texture lookup.
type ColorParam struct {
	Color   mgl32.Vec3
	Texture *TextureRef
}

func (p ColorParam) IsTextured() bool { return p.Texture != nil }

// Material is the Disney-style parameter set shared by all loaders.
type Material struct {
	BaseColor            ColorParam
	Metallic             MaterialParam
	Specular             MaterialParam
	Roughness            MaterialParam
	SpecularTint         MaterialParam
	Anisotropy           MaterialParam
	Sheen                MaterialParam
	SheenTint            MaterialParam
	Clearcoat            MaterialParam
	ClearcoatGloss       MaterialParam
	IOR                  MaterialParam
	SpecularTransmission MaterialParam
}

// DefaultMaterial is the neutral material synthesized for instances that
// reference no material.
func DefaultMaterial() Material {
	return Material{
		BaseColor: ColorParam{Color: mgl32.Vec3{0.9, 0.9, 0.9}},
		Metallic:  Constant(0),
		Specular:  Constant(0),
		Roughness: Constant(1),
		IOR:       Constant(1.5),
	}
}
