package shaders

import (
	_ "embed"
)

//go:embed ao_bake.wgsl
var AOBakeWGSL string

//go:embed blit.wgsl
var BlitWGSL string
