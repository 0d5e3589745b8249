package ppu

// VRAMReader provides read-only access to bank 0 VRAM for callers that don't
// care about CGB bank switching (the DMG renderer, sprite tile lookups).
type VRAMReader interface {
	Read(addr uint16) byte
}

// pixelFIFO is a ring buffer of pending 2-bit colour indices, mirroring the
// hardware's background pixel FIFO: a fetch pushes a full tile row (8
// pixels) at once, and the compositor pops one pixel at a time as it walks
// the 160-wide line.
type pixelFIFO struct {
	buf  [32]byte // room for several tile rows ahead of the pop cursor
	head int
	tail int
	size int
}

func (q *pixelFIFO) Clear()   { q.head, q.tail, q.size = 0, 0, 0 }
func (q *pixelFIFO) Len() int { return q.size }

func (q *pixelFIFO) Push(ci byte) bool {
	if q.size == len(q.buf) {
		return false
	}
	q.buf[q.tail] = ci & 0x03
	q.tail = (q.tail + 1) % len(q.buf)
	q.size++
	return true
}

func (q *pixelFIFO) Pop() (byte, bool) {
	if q.size == 0 {
		return 0, false
	}
	v := q.buf[q.head]
	q.head = (q.head + 1) % len(q.buf)
	q.size--
	return v, true
}

// dmgTileFetcher loads one 8-pixel tile row from VRAM into a pixelFIFO. It
// has no palette or priority concept (DMG has neither), unlike the CGB
// path's inline per-tile attribute decode in RenderBGScanlineCGB.
type dmgTileFetcher struct {
	mem           VRAMReader
	fifo          *pixelFIFO
	mapBase       uint16 // 0x9800 or 0x9C00
	tileData8000  bool   // true: 0x8000 addressing; false: 0x8800 signed
	tileIndexAddr uint16 // tile index address within the map
	fineY         byte   // row within the tile, 0..7
}

func newDMGTileFetcher(mem VRAMReader, f *pixelFIFO) *dmgTileFetcher {
	return &dmgTileFetcher{mem: mem, fifo: f}
}

// aim points the fetcher at a specific map slot and tile row ahead of Fetch.
func (fch *dmgTileFetcher) aim(mapBase uint16, tileData8000 bool, tileIndexAddr uint16, fineY byte) {
	fch.mapBase = mapBase
	fch.tileData8000 = tileData8000
	fch.tileIndexAddr = tileIndexAddr
	fch.fineY = fineY & 7
}

// fetch pushes 8 colour indices for the currently aimed tile row.
func (fch *dmgTileFetcher) fetch() {
	tileNum := fch.mem.Read(fch.tileIndexAddr)
	base := tileAddr(tileNum, fch.tileData8000, fch.fineY)
	lo := fch.mem.Read(base)
	hi := fch.mem.Read(base + 1)
	for px := 0; px < 8; px++ {
		bit := 7 - byte(px)
		ci := ((hi>>bit)&1)<<1 | ((lo >> bit) & 1)
		_ = fch.fifo.Push(ci)
	}
}

// RenderBGScanlineUsingFetcher renders 160 DMG background pixels for the
// given LY through a pixelFIFO, the same staging buffer real hardware uses
// between the fetcher and the LCD shifter. scx/scy are the scroll registers;
// mapBase/tileData8000 select the tile map and addressing mode from LCDC.
// Colour-less counterpart of RenderBGScanlineCGB.
func RenderBGScanlineUsingFetcher(mem VRAMReader, mapBase uint16, tileData8000 bool, scx, scy, ly byte) [160]byte {
	var out [160]byte

	bgY := uint16(ly) + uint16(scy)
	fineY := byte(bgY & 7)
	mapY := (bgY >> 3) & 31

	startX := uint16(scx)
	tileX := (startX >> 3) & 31
	fineX := int(startX & 7)

	tileIndexAddr := mapBase + mapY*32 + tileX

	var q pixelFIFO
	f := newDMGTileFetcher(mem, &q)
	f.aim(mapBase, tileData8000, tileIndexAddr, fineY)
	f.fetch()
	// The scroll register can point mid-tile; drop the leading fraction.
	for i := 0; i < fineX; i++ {
		_, _ = q.Pop()
	}

	for x := 0; x < 160; x++ {
		if q.Len() == 0 {
			tileX = (tileX + 1) & 31
			tileIndexAddr = mapBase + mapY*32 + tileX
			f.aim(mapBase, tileData8000, tileIndexAddr, fineY)
			f.fetch()
		}
		px, _ := q.Pop()
		out[x] = px
	}
	return out
}

// RenderWindowScanlineUsingFetcher is RenderBGScanlineUsingFetcher's window
// counterpart: winLine is the window's own internal line counter (it only
// advances on lines where the window was actually drawn), and pixels before
// wxStart (WX-7) are left at colour index 0 for the caller to blend over.
func RenderWindowScanlineUsingFetcher(mem VRAMReader, mapBase uint16, tileData8000 bool, wxStart int, winLine byte) [160]byte {
	var out [160]byte
	if wxStart >= 160 {
		return out
	}
	if wxStart < 0 {
		wxStart = 0
	}
	mapY := (uint16(winLine) >> 3) & 31
	fineY := winLine & 7
	tileX := uint16(0)
	tileIndexAddr := mapBase + mapY*32 + tileX

	var q pixelFIFO
	f := newDMGTileFetcher(mem, &q)
	f.aim(mapBase, tileData8000, tileIndexAddr, fineY)
	f.fetch()
	for x := wxStart; x < 160; x++ {
		if q.Len() == 0 {
			tileX = (tileX + 1) & 31
			tileIndexAddr = mapBase + mapY*32 + tileX
			f.aim(mapBase, tileData8000, tileIndexAddr, fineY)
			f.fetch()
		}
		px, _ := q.Pop()
		out[x] = px
	}
	return out
}
