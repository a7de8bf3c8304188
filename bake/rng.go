package bake

// rng is a small counter-based generator. Each texel seeds its own
// stream from its linear pixel index, so results are reproducible and
// independent of scheduling. The WGSL kernel implements the identical
// sequence.
type rng struct {
	state uint32
}

func newRNG(pixel uint32) rng {
	// splitmix-style scramble so neighboring pixels decorrelate.
	s := pixel + 0x9e3779b9
	s ^= s >> 16
	s *= 0x85ebca6b
	s ^= s >> 13
	s *= 0xc2b2ae35
	s ^= s >> 16
	if s == 0 {
		s = 0x9e3779b9
	}
	return rng{state: s}
}

func (r *rng) next() uint32 {
	// xorshift32
	x := r.state
	x ^= x << 13
	x ^= x >> 17
	x ^= x << 5
	r.state = x
	return x
}

// Float returns a sample in [0, 1).
func (r *rng) Float() float32 {
	return float32(r.next()>>8) * (1.0 / 16777216.0)
}
