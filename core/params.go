package core

// AtlasParams is the baking configuration for one run. Immutable for the
// lifetime of a bake.
type AtlasParams struct {
	Width    uint32
	Height   uint32
	Samples  uint32
	AOLength float32
}

const (
	DefaultSamples  = 64
	DefaultAOLength = 100.0
)

func NewAtlasParams(width, height uint32) AtlasParams {
	return AtlasParams{
		Width:    width,
		Height:   height,
		Samples:  DefaultSamples,
		AOLength: DefaultAOLength,
	}
}
