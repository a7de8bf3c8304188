package bake

import (
	"image"
	"image/color"
	"math"
	"runtime"
	"sync"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/aobake/aobake/bvh"
	"github.com/aobake/aobake/core"
)

const rayEpsilon = 1e-3

// AOMap is the finished occlusion image. Values are visibility in
// [0, 1]; uncovered texels are fully visible.
type AOMap struct {
	Width  uint32
	Height uint32
	Values []float32
}

// Image converts the map to an 8-bit grayscale-in-RGBA image, flipped
// so v grows upward.
func (m *AOMap) Image() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, int(m.Width), int(m.Height)))
	for y := 0; y < int(m.Height); y++ {
		for x := 0; x < int(m.Width); x++ {
			v := m.Values[y*int(m.Width)+x]
			g := uint8(clampf(v, 0, 1) * 255)
			img.SetRGBA(x, int(m.Height)-1-y, color.RGBA{R: g, G: g, B: g, A: 255})
		}
	}
	return img
}

// TexelAO integrates hemisphere visibility for one texel. Directions
// are cosine-weighted; each ray starts a small step off the surface and
// is cut at maxDist.
func TexelAO(tracer *bvh.Tracer, pixel uint32, p, n mgl32.Vec3, samples uint32, maxDist float32) float32 {
	vx, vy := core.OrthoBasis(n)
	origin := p.Add(n.Mul(rayEpsilon))
	r := newRNG(pixel)

	hits := uint32(0)
	for s := uint32(0); s < samples; s++ {
		theta := float32(math.Sqrt(float64(r.Float())))
		phi := 2 * math.Pi * r.Float()

		x := theta * float32(math.Cos(float64(phi)))
		y := theta * float32(math.Sin(float64(phi)))
		z := float32(math.Sqrt(math.Max(0, float64(1-theta*theta))))

		dir := vx.Mul(x).Add(vy.Mul(y)).Add(n.Mul(z)).Normalize()
		if tracer.AnyHit(bvh.Ray{Origin: origin, Dir: dir, TMax: maxDist}) {
			hits++
		}
	}
	return 1 - float32(hits)/float32(samples)
}

// Bake runs the integrator over every covered texel, rows fanned out
// across the CPUs.
func Bake(tracer *bvh.Tracer, gb *GBuffer, params core.AtlasParams) *AOMap {
	out := &AOMap{
		Width:  gb.Width,
		Height: gb.Height,
		Values: make([]float32, len(gb.Pos)),
	}
	for i := range out.Values {
		out.Values[i] = 1
	}

	rows := make(chan int)
	var wg sync.WaitGroup
	workers := runtime.NumCPU()
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for y := range rows {
				base := y * int(gb.Width)
				for x := 0; x < int(gb.Width); x++ {
					idx := base + x
					if !gb.Covered[idx] {
						continue
					}
					out.Values[idx] = TexelAO(tracer, uint32(idx), gb.Pos[idx], gb.Nrm[idx],
						params.Samples, params.AOLength)
				}
			}
		}()
	}
	for y := 0; y < int(gb.Height); y++ {
		rows <- y
	}
	close(rows)
	wg.Wait()
	return out
}

func clampf(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
