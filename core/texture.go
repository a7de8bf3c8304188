package core

// ColorSpace tags how texel values are encoded.
type ColorSpace int

const (
	Linear ColorSpace = iota
	SRGB
)

// Texture is a decoded RGBA8 image owned by the scene.
type Texture struct {
	Name       string
	Width      int
	Height     int
	Channels   int
	Pixels     []byte
	ColorSpace ColorSpace
}
