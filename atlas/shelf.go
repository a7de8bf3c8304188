package atlas

// shelfPacker places rectangles onto horizontal shelves inside a fixed
// width/height region. Each shelf keeps the height of its tallest item;
// new items go left-to-right on an existing shelf or open a new one below.
type shelfPacker struct {
	width   int
	height  int
	padding int
	shelves []shelf
}

type shelf struct {
	y      int
	height int
	x      int
}

func newShelfPacker(width, height, padding int) *shelfPacker {
	return &shelfPacker{width: width, height: height, padding: padding}
}

// place finds room for a w x h rectangle. Returns its top-left corner, or
// ok=false when the region is full.
func (p *shelfPacker) place(w, h int) (x, y int, ok bool) {
	pw := w + p.padding
	ph := h + p.padding

	for i := range p.shelves {
		s := &p.shelves[i]
		if s.x+pw > p.width {
			continue
		}
		if h > s.height {
			// Only the bottom shelf may grow.
			if i != len(p.shelves)-1 || s.y+ph > p.height {
				continue
			}
			s.height = h
		}
		x, y = s.x, s.y
		s.x += pw
		return x, y, true
	}

	// Open a new shelf below the last one.
	ny := 0
	if n := len(p.shelves); n > 0 {
		last := &p.shelves[n-1]
		ny = last.y + last.height + p.padding
	}
	if ny+ph > p.height || pw > p.width {
		return 0, 0, false
	}
	p.shelves = append(p.shelves, shelf{y: ny, height: h, x: pw})
	return 0, ny, true
}
