package ppu

import "testing"

// Tests for CGB BG/window scanline helpers: attributes (palette, flips,
// bank, priority) live in VRAM bank 1 at the same address as the tile index
// in bank 0, per register_flags.rs's AttributeFlags layout.
type fakeVRAM struct{ v0, v1 [0x2000]byte }

func (f *fakeVRAM) Read(addr uint16) byte { return 0 }
func (f *fakeVRAM) ReadBank(bank int, addr uint16) byte {
	if addr < 0x8000 || addr >= 0xA000 {
		return 0
	}
	off := addr - 0x8000
	if bank == 0 {
		return f.v0[off]
	}
	return f.v1[off]
}

func TestCGB_BG_Attrs_Flips_Bank_Palette(t *testing.T) {
	var v fakeVRAM
	// Tile index 1 at map address 0x9800 (bank 0).
	v.v0[0x1800+0] = 0x01
	// Attribute byte at the same map address in bank 1: bank=1, xflip,
	// yflip, pal=5, priority=1.
	v.v1[0x1800+0] = 0x80 | 0x40 | 0x20 | 0x08 | 0x05
	// yflip selects row 7 of tile 1 (base 0x0010), stored in bank 1.
	v.v1[0x0010+14] = 0x0F
	v.v1[0x0010+15] = 0x00

	ci, pal, pri := RenderBGScanlineCGB(&v, 0x9800, true, 0, 0, 0)
	if !pri[0] {
		t.Fatalf("priority not set")
	}
	if pal[0] != 5 {
		t.Fatalf("palette got %d want 5", pal[0])
	}
	if ci[0] == 0 {
		t.Fatalf("unexpected ci 0 at first pixel")
	}
}

func TestCGB_Window_Basic(t *testing.T) {
	var v fakeVRAM
	v.v0[0x0020+0] = 0xFF
	v.v0[0x1800+0] = 0x02 // tile 2
	v.v1[0x1800+0] = 0x00 // bank 0, pal 0, no flips
	ci, pal, pri := RenderWindowScanlineCGB(&v, 0x9800, true, 0, 0)
	if pal[0] != 0 || pri[0] {
		t.Fatalf("unexpected pal/pri %d/%v", pal[0], pri[0])
	}
	if ci[0] == 0 {
		t.Fatalf("ci should be nonzero")
	}
}
