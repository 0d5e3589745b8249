package ppu

// CGBVRAMReader exposes both VRAM banks, since CGB background attribute
// bytes live in bank 1 at the same address as the tile index in bank 0.
type CGBVRAMReader interface {
	Read(addr uint16) byte
	ReadBank(bank int, addr uint16) byte
}

// RenderBGScanlineCGB renders 160 background pixels along with their
// per-pixel CGB palette number and BG-to-OBJ priority bit, reading tile
// indices from bank 0 and attributes from bank 1 of the same tile-map
// address. Grounded on register_flags.rs's AttributeFlags bit layout
// (bits0-2 palette, bit3 bank, bit5 xflip, bit6 yflip, bit7 priority).
func RenderBGScanlineCGB(vram CGBVRAMReader, mapBase uint16, tileData8000 bool, scx, scy, ly byte) (ci [160]byte, pal [160]byte, pri [160]bool) {
	bgY := uint16(ly) + uint16(scy)
	fineY := byte(bgY & 7)
	mapY := (bgY >> 3) & 31
	tileX := (uint16(scx) >> 3) & 31
	fineX := int(scx & 7)

	x := 0
	first := true
	for x < 160 {
		idx := mapY*32 + tileX
		tileNum := vram.ReadBank(0, mapBase+idx)
		attr := vram.ReadBank(1, mapBase+idx)

		bank := 0
		if attr&0x08 != 0 {
			bank = 1
		}
		p := attr & 0x07
		prio := attr&0x80 != 0
		xFlip := attr&0x20 != 0
		yFlip := attr&0x40 != 0

		row := fineY
		if yFlip {
			row = 7 - fineY
		}

		base := tileAddr(tileNum, tileData8000, row)
		lo := vram.ReadBank(bank, base)
		hi := vram.ReadBank(bank, base+1)

		start := 0
		if first {
			start = fineX
		}
		for px := start; px < 8 && x < 160; px++ {
			bit := 7 - px
			if xFlip {
				bit = px
			}
			c := ((hi>>byte(bit))&1)<<1 | ((lo >> byte(bit)) & 1)
			ci[x], pal[x], pri[x] = c, p, prio
			x++
		}
		first = false
		tileX = (tileX + 1) & 31
	}
	return
}

// RenderWindowScanlineCGB is RenderBGScanlineCGB's window-layer equivalent:
// winLine is the window's own internal line counter (not LY), and pixels
// render starting at column wxStart.
func RenderWindowScanlineCGB(vram CGBVRAMReader, mapBase uint16, tileData8000 bool, wxStart int, winLine byte) (ci [160]byte, pal [160]byte, pri [160]bool) {
	if wxStart >= 160 {
		return
	}
	if wxStart < 0 {
		wxStart = 0
	}
	mapY := (uint16(winLine) >> 3) & 31
	fineY := winLine & 7
	tileX := uint16(0)

	for x := wxStart; x < 160; {
		idx := mapY*32 + tileX
		tileNum := vram.ReadBank(0, mapBase+idx)
		attr := vram.ReadBank(1, mapBase+idx)

		bank := 0
		if attr&0x08 != 0 {
			bank = 1
		}
		p := attr & 0x07
		prio := attr&0x80 != 0
		xFlip := attr&0x20 != 0
		yFlip := attr&0x40 != 0

		row := fineY
		if yFlip {
			row = 7 - fineY
		}
		base := tileAddr(tileNum, tileData8000, row)
		lo := vram.ReadBank(bank, base)
		hi := vram.ReadBank(bank, base+1)

		for px := 0; px < 8 && x < 160; px++ {
			bit := 7 - px
			if xFlip {
				bit = px
			}
			c := ((hi>>byte(bit))&1)<<1 | ((lo >> byte(bit)) & 1)
			ci[x], pal[x], pri[x] = c, p, prio
			x++
		}
		tileX = (tileX + 1) & 31
	}
	return
}

func tileAddr(tileNum byte, tileData8000 bool, row byte) uint16 {
	if tileData8000 {
		return 0x8000 + uint16(tileNum)*16 + uint16(row)*2
	}
	return 0x9000 + uint16(int8(tileNum))*16 + uint16(row)*2
}
