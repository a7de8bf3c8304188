package app

// Viewport carries the current framebuffer dimensions. It is passed to
// whoever needs them instead of living in package state, so resizes
// stay race-free and testable.
type Viewport struct {
	Width  int
	Height int
}

func (v Viewport) Aspect() float32 {
	if v.Height == 0 {
		return 1
	}
	return float32(v.Width) / float32(v.Height)
}
