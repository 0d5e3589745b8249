package ppu

import "sort"

// Sprite is a resolved, line-relative sprite ready for 8-pixel composition:
// Y is adjusted so that (ly - Y) is always in [0,7], even for 8x16 sprites
// (the caller picks the correct half-tile and flips the row itself).
type Sprite struct {
	X, Y     int
	Tile     byte
	Attr     byte
	OAMIndex int
}

const maxSpritesPerLine = 10

// spriteHeight returns 8 or 16 per LCDC.SPRITE_SIZE.
func (p *PPU) spriteHeight() int {
	if p.lcdc&0x04 != 0 {
		return 16
	}
	return 8
}

// spritesOnLine lists, in OAM order, the sprites that overlap line ly,
// stopping at the 10-sprite cap; used for both the line-composer and the
// mode-3 duration estimate.
func (p *PPU) spritesOnLine(ly int) []Sprite {
	height := p.spriteHeight()
	var out []Sprite
	for i := 0; i < 40 && len(out) < maxSpritesPerLine; i++ {
		base := i * 4
		yPos := int(p.oam[base]) - 16
		xPos := int(p.oam[base+1]) - 8
		tile := p.oam[base+2]
		attr := p.oam[base+3]

		row := ly - yPos
		if row < 0 || row >= height {
			continue
		}

		yFlip := attr&0x40 != 0
		effTile := tile
		effRow := row
		if height == 16 {
			top := tile &^ 0x01
			bottom := tile | 0x01
			if yFlip {
				if row < 8 {
					effTile, effRow = bottom, 7-row
				} else {
					effTile, effRow = top, 7-(row-8)
				}
			} else {
				if row < 8 {
					effTile, effRow = top, row
				} else {
					effTile, effRow = bottom, row-8
				}
			}
		} else if yFlip {
			effRow = 7 - row
		}

		out = append(out, Sprite{
			X:        xPos,
			Y:        ly - effRow,
			Tile:     effTile,
			Attr:     attr,
			OAMIndex: i,
		})
	}
	return out
}

func (p *PPU) spriteCountOnLine(ly int) int { return len(p.spritesOnLine(ly)) }

// orderSpritesForPriority sorts sprites into render-priority order: CGB
// breaks ties (and orders outright) by ascending OAM index only, while DMG
// orders by ascending X first, falling back to OAM index.
func orderSpritesForPriority(sprites []Sprite, cgb bool) []Sprite {
	order := make([]Sprite, len(sprites))
	copy(order, sprites)
	if cgb {
		sort.SliceStable(order, func(i, j int) bool { return order[i].OAMIndex < order[j].OAMIndex })
	} else {
		sort.SliceStable(order, func(i, j int) bool {
			if order[i].X != order[j].X {
				return order[i].X < order[j].X
			}
			return order[i].OAMIndex < order[j].OAMIndex
		})
	}
	return order
}

// ComposeSpriteLine renders the visible sprite colour indices (0 =
// transparent) for one scanline, applying DMG/CGB priority rules against the
// already-rendered background colour-index row (bgci). Sprites are
// pre-sorted by render priority and the first (highest-priority) opaque
// pixel to claim a column wins, mirroring real OAM-DMA hardware behaviour.
func ComposeSpriteLine(mem VRAMReader, sprites []Sprite, ly byte, bgci [160]byte, cgb bool) [160]byte {
	var out [160]byte
	var claimed [160]bool

	order := orderSpritesForPriority(sprites, cgb)

	for _, s := range order {
		xFlip := s.Attr&0x20 != 0
		base := uint16(0x8000) + uint16(s.Tile)*16 + uint16(int(ly)-s.Y)*2
		lo := mem.Read(base)
		hi := mem.Read(base + 1)
		priority := s.Attr&0x80 != 0

		for px := 0; px < 8; px++ {
			x := s.X + px
			if x < 0 || x >= 160 || claimed[x] {
				continue
			}
			bit := 7 - px
			if xFlip {
				bit = px
			}
			ci := ((hi>>byte(bit))&1)<<1 | ((lo >> byte(bit)) & 1)
			if ci == 0 {
				continue
			}
			if priority && bgci[x] != 0 {
				continue
			}
			out[x] = ci
			claimed[x] = true
		}
	}
	return out
}
