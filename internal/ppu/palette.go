package ppu

// RGB is a single 8-bit-per-channel colour, returned by FrameBuffer.
// Grounded on original_source/core/src/hardware/ppu/palette.rs's RGB tuple.
type RGB struct{ R, G, B byte }

// DisplayColour maps the four DMG 2-bit shades to host RGB values.
type DisplayColour struct {
	White, LightGrey, DarkGrey, Black RGB
}

// DefaultDisplayColour is the classic green-tinted DMG palette.
func DefaultDisplayColour() DisplayColour {
	return DisplayColour{
		White:     RGB{155, 188, 15},
		LightGrey: RGB{139, 172, 15},
		DarkGrey:  RGB{48, 98, 48},
		Black:     RGB{15, 56, 15},
	}
}

func (d DisplayColour) shade(ci byte) RGB {
	switch ci & 0x03 {
	case 0:
		return d.White
	case 1:
		return d.LightGrey
	case 2:
		return d.DarkGrey
	default:
		return d.Black
	}
}

// SetDMGDisplayColour lets the host override the four-colour DMG palette
// used to convert BG, OBP0, and OBP1 colour indices to RGB independently,
// matching the real CGB's "compatibility palette" boot process (spec.md
// §6.1), where background and the two sprite palettes can be tinted
// differently.
func (p *PPU) SetDMGDisplayColour(bg, obj0, obj1 DisplayColour) {
	p.dmg, p.dmgObj0, p.dmgObj1 = bg, obj0, obj1
}

// dmgShade resolves a 2-bit colour index through a BGP/OBPx palette byte
// (each 2-bit field selects one of the four shades) to host RGB, using the
// display-colour set selected by which register it came from.
func (p *PPU) dmgShade(set DisplayColour, paletteReg byte, colourIndex byte) RGB {
	shade := (paletteReg >> (colourIndex * 2)) & 0x03
	return set.shade(shade)
}

// cgbColour15 converts a 15-bit BGR555 colour (as stored in CGB palette
// RAM, little-endian) to 8-bit-per-channel RGB using the
// (c5*527+23)>>6 expansion given in spec.md §4.4.
func cgbColour15(lo, hi byte) RGB {
	v := uint16(lo) | uint16(hi)<<8
	r5 := byte(v & 0x1F)
	g5 := byte((v >> 5) & 0x1F)
	b5 := byte((v >> 10) & 0x1F)
	expand := func(c5 byte) byte { return byte((uint16(c5)*527 + 23) >> 6) }
	return RGB{expand(r5), expand(g5), expand(b5)}
}

// cgbBGColour returns the resolved colour for BG/window palette `pal`
// (0-7), colour index `ci` (0-3).
func (p *PPU) cgbBGColour(pal, ci byte) RGB {
	off := int(pal&0x07)*8 + int(ci&0x03)*2
	return cgbColour15(p.bgPalRAM[off], p.bgPalRAM[off+1])
}

// cgbOBColour is the sprite-palette equivalent of cgbBGColour.
func (p *PPU) cgbOBColour(pal, ci byte) RGB {
	off := int(pal&0x07)*8 + int(ci&0x03)*2
	return cgbColour15(p.objPalRAM[off], p.objPalRAM[off+1])
}
