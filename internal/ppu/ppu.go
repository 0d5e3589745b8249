// Package ppu renders the background, window, and sprite layers of a
// scanline and drives LCDC/STAT/LY timing. Grounded on the teacher's
// internal/ppu/{ppu.go,fetcher.go,scanline.go} (kept and generalized) plus
// original_source/core/src/hardware/ppu/{mod.rs,timing.rs,register_flags.rs}
// for the variable mode-3 duration, sprite rules, and CGB palette memory the
// teacher's skeletal PPU omitted.
package ppu

// InterruptRequester raises IF bits (0:VBlank, 1:STAT).
type InterruptRequester func(bit int)

// Mode is the low two bits of STAT.
type Mode byte

const (
	ModeHBlank Mode = iota
	ModeVBlank
	ModeOAMSearch
	ModeLCDTransfer
)

// LineRegs captures per-line derived state, read back by tests and by the
// window-rendering path; WinLine only advances on lines the window actually
// drew, per the "Game Boy remembers its window line" quirk.
type LineRegs struct {
	WinLine     int
	WindowDrawn bool
}

// PPU models VRAM/OAM, LCDC/STAT regs, LY/LYC, CGB palette memory, and
// scanline timing/compositing.
type PPU struct {
	vram    [2][0x2000]byte // bank 0 always; bank 1 present (zeroed) on DMG
	vramBank byte           // VBK bit 0
	oam     [0xA0]byte      // 0xFE00-0xFE9F

	cgb bool

	lcdc byte
	stat byte
	scy  byte
	scx  byte
	ly   byte
	lyc  byte
	bgp  byte
	obp0 byte
	obp1 byte
	wy   byte
	wx   byte

	dot            int
	windowLine     int
	windowTriggered bool // WY matched LY at least once this frame
	lineRegs       [154]LineRegs

	bgPalRAM  [64]byte // CGB BCPD, 8 palettes x 4 colours x 2 bytes
	objPalRAM [64]byte // CGB OCPD
	bgpi      byte     // BCPS: bit7 autoincrement, bits0-5 index
	obpi      byte     // OCPS

	oamDMALocked bool // true while an OAM DMA copy is in flight

	windowDrewThisLine bool
	hblankEdge         bool

	frame            [160 * 144]RGB
	dmg              DisplayColour // BG/window shades
	dmgObj0, dmgObj1 DisplayColour // OBP0/OBP1 shades

	req InterruptRequester
}

func New(req InterruptRequester) *PPU {
	d := DefaultDisplayColour()
	return &PPU{req: req, dmg: d, dmgObj0: d, dmgObj1: d}
}

// NewCGB constructs a PPU with CGB features (second VRAM bank, colour
// palette memory) enabled.
func NewCGB(req InterruptRequester) *PPU {
	p := New(req)
	p.cgb = true
	return p
}

func (p *PPU) Mode() Mode   { return Mode(p.stat & 0x03) }
func (p *PPU) LY() byte     { return p.ly }
func (p *PPU) LineRegs(y int) LineRegs {
	if y < 0 || y >= len(p.lineRegs) {
		return LineRegs{}
	}
	return p.lineRegs[y]
}

// SetOAMDMALock is driven by the bus's OAM DMA state machine; while locked,
// CPU OAM reads return 0xFF regardless of PPU mode.
func (p *PPU) SetOAMDMALock(locked bool) { p.oamDMALocked = locked }

// WriteOAMDMAByte bypasses the normal mode-gated OAM write path; used by the
// bus to perform the 160-byte OAM DMA copy.
func (p *PPU) WriteOAMDMAByte(i int, v byte) {
	if i >= 0 && i < len(p.oam) {
		p.oam[i] = v
	}
}

// CPURead returns bytes for VRAM, OAM, and PPU IO registers.
func (p *PPU) CPURead(addr uint16) byte {
	switch {
	case addr >= 0x8000 && addr <= 0x9FFF:
		if p.Mode() == ModeLCDTransfer {
			return 0xFF
		}
		return p.vram[p.vramBank][addr-0x8000]
	case addr >= 0xFE00 && addr <= 0xFE9F:
		if p.oamDMALocked {
			return 0xFF
		}
		m := p.Mode()
		if m == ModeOAMSearch || m == ModeLCDTransfer {
			return 0xFF
		}
		return p.oam[addr-0xFE00]
	case addr == 0xFF40:
		return p.lcdc
	case addr == 0xFF41:
		return 0x80 | (p.stat & 0x7F)
	case addr == 0xFF42:
		return p.scy
	case addr == 0xFF43:
		return p.scx
	case addr == 0xFF44:
		return p.ly
	case addr == 0xFF45:
		return p.lyc
	case addr == 0xFF47:
		return p.bgp
	case addr == 0xFF48:
		return p.obp0
	case addr == 0xFF49:
		return p.obp1
	case addr == 0xFF4A:
		return p.wy
	case addr == 0xFF4B:
		return p.wx
	case addr == 0xFF4F:
		return 0xFE | p.vramBank
	case addr == 0xFF68:
		return p.bgpi
	case addr == 0xFF69:
		return p.readPalRAM(p.bgPalRAM[:], p.bgpi)
	case addr == 0xFF6A:
		return p.obpi
	case addr == 0xFF6B:
		return p.readPalRAM(p.objPalRAM[:], p.obpi)
	default:
		return 0xFF
	}
}

func (p *PPU) readPalRAM(ram []byte, index byte) byte {
	return ram[index&0x3F]
}

// CPUWrite handles writes to VRAM, OAM, and PPU IO regs.
func (p *PPU) CPUWrite(addr uint16, value byte) {
	switch {
	case addr >= 0x8000 && addr <= 0x9FFF:
		if p.Mode() == ModeLCDTransfer {
			return
		}
		p.vram[p.vramBank][addr-0x8000] = value
	case addr >= 0xFE00 && addr <= 0xFE9F:
		m := p.Mode()
		if m == ModeOAMSearch || m == ModeLCDTransfer {
			return
		}
		p.oam[addr-0xFE00] = value
	case addr == 0xFF40:
		prev := p.lcdc
		p.lcdc = value
		if (p.lcdc&0x80) == 0 && (prev&0x80) != 0 {
			p.ly = 0
			p.dot = 0
			p.windowLine = 0
			p.windowTriggered = false
			p.setMode(ModeHBlank)
			p.updateLYC()
		} else if (p.lcdc&0x80) != 0 && (prev&0x80) == 0 {
			p.ly = 0
			p.dot = 0
			p.setMode(ModeOAMSearch)
			p.updateLYC()
		}
	case addr == 0xFF41:
		p.stat = (p.stat & 0x07) | (value & 0x78)
	case addr == 0xFF42:
		p.scy = value
	case addr == 0xFF43:
		p.scx = value
	case addr == 0xFF44:
		p.ly = 0
		p.dot = 0
		p.updateLYC()
		if (p.lcdc & 0x80) != 0 {
			p.setMode(ModeOAMSearch)
		}
	case addr == 0xFF45:
		p.lyc = value
		p.updateLYC()
	case addr == 0xFF47:
		p.bgp = value
	case addr == 0xFF48:
		p.obp0 = value
	case addr == 0xFF49:
		p.obp1 = value
	case addr == 0xFF4A:
		p.wy = value
	case addr == 0xFF4B:
		p.wx = value
	case addr == 0xFF4F:
		if p.cgb {
			p.vramBank = value & 0x01
		}
	case addr == 0xFF68:
		p.bgpi = value & 0xBF
	case addr == 0xFF69:
		p.writePalRAM(p.bgPalRAM[:], &p.bgpi, value)
	case addr == 0xFF6A:
		p.obpi = value & 0xBF
	case addr == 0xFF6B:
		p.writePalRAM(p.objPalRAM[:], &p.obpi, value)
	}
}

func (p *PPU) writePalRAM(ram []byte, idxReg *byte, value byte) {
	idx := *idxReg & 0x3F
	ram[idx] = value
	if *idxReg&0x80 != 0 {
		*idxReg = 0x80 | ((idx + 1) & 0x3F)
	}
}

// Tick advances PPU state by the given number of dots (master clocks).
// Mode-3 (LcdTransfer) duration varies per scanline per spec: base 172 plus
// SCX mod 8, plus 6 if an active window is present, plus 6 per sprite on the
// line (capped at 10 sprites) -- mirrors original_source's
// calculate_lcd_transfer_duration.
func (p *PPU) Tick(cycles int) {
	if cycles <= 0 {
		return
	}
	for i := 0; i < cycles; i++ {
		if (p.lcdc & 0x80) == 0 {
			continue
		}
		p.dot++

		mode3Len := p.mode3Duration()
		var mode Mode
		if p.ly >= 144 {
			mode = ModeVBlank
		} else {
			switch {
			case p.dot < 80:
				mode = ModeOAMSearch
			case p.dot < 80+mode3Len:
				mode = ModeLCDTransfer
			default:
				mode = ModeHBlank
			}
		}
		p.setMode(mode)

		if p.dot >= 456 {
			p.dot = 0
			p.ly++
			if p.ly == 144 {
				if p.req != nil {
					p.req(0)
				}
				if p.stat&(1<<4) != 0 && p.req != nil {
					p.req(1)
				}
			} else if p.ly > 153 {
				p.ly = 0
				p.windowLine = 0
				p.windowTriggered = false
			}
			p.updateLYC()
			if p.ly >= 144 {
				p.setMode(ModeVBlank)
			} else {
				p.setMode(ModeOAMSearch)
			}
		}
	}
}

func (p *PPU) mode3Duration() int {
	base := 172 + int(p.scx&0x07)
	if p.windowVisibleThisLine() {
		base += 6
	}
	base += 6 * p.spriteCountOnLine(int(p.ly))
	if base > 289 {
		base = 289
	}
	return base
}

// windowVisibleThisLine reports whether the window layer contributes to the
// current line. WY is only compared against LY once the window becomes
// active for the frame (real hardware latches this rather than re-comparing
// every line), so a later WY change does not turn the window back off.
func (p *PPU) windowVisibleThisLine() bool {
	if p.lcdc&0x20 == 0 {
		return false
	}
	if p.wx >= 167 {
		return false
	}
	if int(p.ly) == int(p.wy) {
		p.windowTriggered = true
	}
	return p.windowTriggered
}

func (p *PPU) setMode(mode Mode) {
	prev := Mode(p.stat & 0x03)
	if prev == mode {
		return
	}
	p.stat = (p.stat &^ 0x03) | byte(mode)

	if mode == ModeLCDTransfer && int(p.ly) < 144 {
		p.renderScanline()
		p.lineRegs[p.ly].WindowDrawn = p.windowDrewThisLine
	}

	switch mode {
	case ModeHBlank:
		p.hblankEdge = true
		if (p.stat&(1<<3)) != 0 && p.req != nil {
			p.req(1)
		}
	case ModeOAMSearch:
		if (p.stat&(1<<5)) != 0 && p.req != nil {
			p.req(1)
		}
	}
}

func (p *PPU) updateLYC() {
	if p.ly == p.lyc {
		p.stat |= 1 << 2
		if (p.stat&(1<<6)) != 0 && p.req != nil {
			p.req(1)
		}
	} else {
		p.stat &^= 1 << 2
	}
}

// HBlankEntered reports whether HBlank was just entered since the last call,
// consumed by the bus to drive CGB HDMA transfers.
func (p *PPU) HBlankEntered() bool {
	v := p.hblankEdge
	p.hblankEdge = false
	return v
}

func (p *PPU) LCDC() byte { return p.lcdc }
func (p *PPU) SCY() byte  { return p.scy }
func (p *PPU) SCX() byte  { return p.scx }
func (p *PPU) WY() byte   { return p.wy }
func (p *PPU) WX() byte   { return p.wx }
func (p *PPU) BGP() byte  { return p.bgp }
func (p *PPU) OBP0() byte { return p.obp0 }
func (p *PPU) OBP1() byte { return p.obp1 }

// FrameBuffer returns the most recently composited 160x144 RGB image.
func (p *PPU) FrameBuffer() []RGB { return p.frame[:] }

// State is the serializable snapshot used by save states.
type State struct {
	VRAM      [2][0x2000]byte
	VRAMBank  byte
	OAM       [0xA0]byte
	LCDC, STAT, SCY, SCX, LY, LYC, BGP, OBP0, OBP1, WY, WX byte
	Dot        int
	WindowLine int
	BGPalRAM   [64]byte
	ObjPalRAM  [64]byte
	BGPI, OBPI byte
}

func (p *PPU) Snapshot() State {
	return State{
		VRAM: p.vram, VRAMBank: p.vramBank, OAM: p.oam,
		LCDC: p.lcdc, STAT: p.stat, SCY: p.scy, SCX: p.scx, LY: p.ly, LYC: p.lyc,
		BGP: p.bgp, OBP0: p.obp0, OBP1: p.obp1, WY: p.wy, WX: p.wx,
		Dot: p.dot, WindowLine: p.windowLine,
		BGPalRAM: p.bgPalRAM, ObjPalRAM: p.objPalRAM, BGPI: p.bgpi, OBPI: p.obpi,
	}
}

func (p *PPU) Restore(s State) {
	p.vram, p.vramBank, p.oam = s.VRAM, s.VRAMBank, s.OAM
	p.lcdc, p.stat, p.scy, p.scx, p.ly, p.lyc = s.LCDC, s.STAT, s.SCY, s.SCX, s.LY, s.LYC
	p.bgp, p.obp0, p.obp1, p.wy, p.wx = s.BGP, s.OBP0, s.OBP1, s.WY, s.WX
	p.dot, p.windowLine = s.Dot, s.WindowLine
	p.bgPalRAM, p.objPalRAM, p.bgpi, p.obpi = s.BGPalRAM, s.ObjPalRAM, s.BGPI, s.OBPI
}
