package loader

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"

	"golang.org/x/image/draw"

	"github.com/aobake/aobake/core"
)

// maxTextureDim clamps pathological source images; anything larger is
// downscaled preserving aspect.
const maxTextureDim = 8192

// decodeTexture turns an encoded image into a scene RGBA8 texture.
// flipV flips rows so v grows upward, matching the UV convention of the
// scene formats that bake their images into buffer views.
func decodeTexture(data []byte, name string, cs core.ColorSpace, flipV bool) (core.Texture, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return core.Texture{}, fmt.Errorf("loader: decode %s: %w", name, err)
	}

	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w > maxTextureDim || h > maxTextureDim {
		scale := float64(maxTextureDim) / float64(w)
		if h > w {
			scale = float64(maxTextureDim) / float64(h)
		}
		nw, nh := int(float64(w)*scale), int(float64(h)*scale)
		scaled := image.NewRGBA(image.Rect(0, 0, nw, nh))
		draw.ApproxBiLinear.Scale(scaled, scaled.Bounds(), src, b, draw.Src, nil)
		src = scaled
		b = scaled.Bounds()
		w, h = nw, nh
	}

	rgba := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Copy(rgba, image.Point{}, src, b, draw.Src, nil)

	pix := rgba.Pix
	if flipV {
		flipped := make([]byte, len(pix))
		stride := rgba.Stride
		for y := 0; y < h; y++ {
			copy(flipped[y*stride:(y+1)*stride], pix[(h-1-y)*stride:(h-y)*stride])
		}
		pix = flipped
	}

	return core.Texture{
		Name:       name,
		Width:      w,
		Height:     h,
		Channels:   4,
		Pixels:     pix,
		ColorSpace: cs,
	}, nil
}

func loadTextureFile(path, name string, cs core.ColorSpace) (core.Texture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return core.Texture{}, fmt.Errorf("loader: %w", err)
	}
	return decodeTexture(data, name, cs, false)
}
