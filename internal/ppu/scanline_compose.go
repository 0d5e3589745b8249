package ppu

// renderScanline composes the background, window, and sprite layers for
// the current LY into the RGB frame buffer. Invoked once per line on entry
// to LcdTransfer (mode 3), matching how real hardware produces pixels
// during that mode (original_source's mod.rs calls draw_scanline() at the
// same point).
func (p *PPU) renderScanline() {
	ly := p.ly
	if int(ly) >= 144 {
		return
	}

	var bgci [160]byte
	var bgPal [160]byte
	var bgPri [160]bool
	// On DMG, LCDC bit 0 blanks BG/window entirely (they render as colour 0,
	// shown through as white). On CGB the same bit instead only strips BG/
	// window priority over sprites; the layers are still drawn.
	bgEnabled := true
	if !p.cgb {
		bgEnabled = p.lcdc&0x01 != 0
	}

	if bgEnabled {
		mapBase := uint16(0x9800)
		if p.lcdc&0x08 != 0 {
			mapBase = 0x9C00
		}
		tileData8000 := p.lcdc&0x10 != 0
		if p.cgb {
			bgci, bgPal, bgPri = RenderBGScanlineCGB(p, mapBase, tileData8000, p.scx, p.scy, ly)
		} else {
			bgci = RenderBGScanlineUsingFetcher(p, mapBase, tileData8000, p.scx, p.scy, ly)
		}
	}

	windowDrew := false
	if bgEnabled && p.windowVisibleThisLine() {
		winMapBase := uint16(0x9800)
		if p.lcdc&0x40 != 0 {
			winMapBase = 0x9C00
		}
		tileData8000 := p.lcdc&0x10 != 0
		wxStart := int(p.wx) - 7

		var wci [160]byte
		var wPal [160]byte
		var wPri [160]bool
		if p.cgb {
			wci, wPal, wPri = RenderWindowScanlineCGB(p, winMapBase, tileData8000, wxStart, byte(p.windowLine))
		} else {
			wci = RenderWindowScanlineUsingFetcher(p, winMapBase, tileData8000, wxStart, byte(p.windowLine))
		}
		start := wxStart
		if start < 0 {
			start = 0
		}
		if start < 160 {
			windowDrew = true
			for x := start; x < 160; x++ {
				bgci[x] = wci[x]
				bgPal[x] = wPal[x]
				bgPri[x] = wPri[x]
			}
		}
	}

	p.lineRegs[ly].WinLine = p.windowLine
	p.windowDrewThisLine = windowDrew
	if windowDrew {
		p.windowLine++
	}

	out := bgci
	var outPal [160]byte
	var outPri [160]bool
	if p.cgb {
		outPal, outPri = bgPal, bgPri
	}

	if p.lcdc&0x02 != 0 { // sprites enabled
		sprites := p.spritesOnLine(int(ly))
		spriteCi := ComposeSpriteLine(p, sprites, ly, out, p.cgb)
		spritePal := p.spritePaletteRow(sprites, ly, spriteCi)
		for x := 0; x < 160; x++ {
			if spriteCi[x] == 0 {
				continue
			}
			bgWins := false
			if p.cgb {
				masterPriorityOff := p.lcdc&0x01 == 0
				if !masterPriorityOff {
					if outPri[x] && out[x] != 0 {
						bgWins = true
					} else if spritePal[x]&0x80 != 0 && out[x] != 0 {
						bgWins = true
					}
				}
			} else if spritePal[x]&0x80 != 0 && out[x] != 0 {
				bgWins = true
			}
			if bgWins {
				continue
			}
			out[x] = spriteCi[x] | 0x80 // tag as sprite-sourced for the colour step below
			outPal[x] = spritePal[x]
		}
	}

	for x := 0; x < 160; x++ {
		fromSprite := out[x]&0x80 != 0
		ci := out[x] &^ 0x80
		var rgb RGB
		switch {
		case p.cgb && fromSprite:
			rgb = p.cgbOBColour(outPal[x]&0x07, ci)
		case p.cgb:
			rgb = p.cgbBGColour(outPal[x], ci)
		case fromSprite:
			obp, set := p.obp0, p.dmgObj0
			if outPal[x]&0x10 != 0 {
				obp, set = p.obp1, p.dmgObj1
			}
			rgb = p.dmgShade(set, obp, ci)
		default:
			rgb = p.dmgShade(p.dmg, p.bgp, ci)
		}
		p.frame[int(ly)*160+x] = rgb
	}
}

// spritePaletteRow resolves, for every sprite-owning column, which palette
// selector (and raw attribute byte, for the DMG OBP0/OBP1 bit and the
// OBJ-to-BG-priority bit) produced the winning pixel.
func (p *PPU) spritePaletteRow(sprites []Sprite, ly byte, ci [160]byte) [160]byte {
	var pal [160]byte
	// Re-walk in the same priority order ComposeSpriteLine used, stopping at
	// the first sprite that contributed each already-resolved pixel.
	claimed := make([]bool, 160)
	ordered := orderSpritesForPriority(sprites, p.cgb)
	for _, s := range ordered {
		xFlip := s.Attr&0x20 != 0
		base := uint16(0x8000) + uint16(s.Tile)*16 + uint16(int(ly)-s.Y)*2
		lo := p.Read(base)
		hi := p.Read(base + 1)
		for px := 0; px < 8; px++ {
			x := s.X + px
			if x < 0 || x >= 160 || claimed[x] {
				continue
			}
			bit := 7 - px
			if xFlip {
				bit = px
			}
			c := ((hi>>byte(bit))&1)<<1 | ((lo >> byte(bit)) & 1)
			if c == 0 || c != ci[x] {
				continue
			}
			claimed[x] = true
			if p.cgb {
				pal[x] = s.Attr & 0x87 // palette bits + priority bit
			} else {
				pal[x] = s.Attr & 0x90 // OBP select + priority bit
			}
		}
	}
	return pal
}
