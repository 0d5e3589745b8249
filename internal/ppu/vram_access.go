package ppu

// Read implements VRAMReader for internal rendering, always reading bank 0
// regardless of the CPU-facing VBK selection (used by DMG composition paths
// and wherever bank selection is irrelevant, e.g. OAM-backed sprite tiles).
func (p *PPU) Read(addr uint16) byte {
	if addr < 0x8000 || addr >= 0xA000 {
		return 0xFF
	}
	return p.vram[0][addr-0x8000]
}

// ReadBank implements CGBVRAMReader, reading a specific VRAM bank directly
// (bypassing the CPU-facing mode lock, since this is used only by the
// renderer itself mid-scanline).
func (p *PPU) ReadBank(bank int, addr uint16) byte {
	if addr < 0x8000 || addr >= 0xA000 {
		return 0xFF
	}
	return p.vram[bank&0x01][addr-0x8000]
}
