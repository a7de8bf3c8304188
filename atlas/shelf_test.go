package atlas

import "testing"

func TestShelfPackerRows(t *testing.T) {
	p := newShelfPacker(64, 64, 0)
	x, y, ok := p.place(32, 16)
	if !ok || x != 0 || y != 0 {
		t.Fatalf("first: got (%d,%d,%v)", x, y, ok)
	}
	x, y, ok = p.place(32, 16)
	if !ok || x != 32 || y != 0 {
		t.Fatalf("same shelf: got (%d,%d,%v)", x, y, ok)
	}
	x, y, ok = p.place(32, 16)
	if !ok || x != 0 || y != 16 {
		t.Fatalf("new shelf: got (%d,%d,%v)", x, y, ok)
	}
}

func TestShelfPackerOverflow(t *testing.T) {
	p := newShelfPacker(32, 32, 0)
	if _, _, ok := p.place(64, 8); ok {
		t.Error("too wide should not fit")
	}
	if _, _, ok := p.place(8, 64); ok {
		t.Error("too tall should not fit")
	}
	if _, _, ok := p.place(32, 32); !ok {
		t.Error("exact fit should place")
	}
	if _, _, ok := p.place(1, 1); ok {
		t.Error("full region should reject")
	}
}

func TestShelfPackerPadding(t *testing.T) {
	p := newShelfPacker(64, 64, 2)
	_, _, _ = p.place(10, 10)
	x, y, ok := p.place(10, 10)
	if !ok || x != 12 || y != 0 {
		t.Fatalf("padded neighbor: got (%d,%d,%v)", x, y, ok)
	}
	x, y, ok = p.place(60, 10)
	if !ok || x != 0 || y != 12 {
		t.Fatalf("padded shelf: got (%d,%d,%v)", x, y, ok)
	}
}
