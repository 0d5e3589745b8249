// Package bus wires the whole CPU-visible address space together: cartridge
// ROM/RAM, WRAM (with CGB banking), HRAM, the PPU, the APU, the timer, the
// joypad, the interrupt controller, OAM DMA and CGB HDMA/GDMA. Generalized
// from the teacher's monolithic Bus (which inlined timer and joypad logic
// directly) into a thin router over the now-independent internal/{timer,
// joypad,interrupt,apu,ppu,cart} packages, per spec.md §4's component table.
package bus

import (
	"bytes"
	"encoding/gob"
	"io"

	"github.com/FabianRolfMatthiasNoll/GameBoyEmulator/internal/apu"
	"github.com/FabianRolfMatthiasNoll/GameBoyEmulator/internal/cart"
	"github.com/FabianRolfMatthiasNoll/GameBoyEmulator/internal/interrupt"
	"github.com/FabianRolfMatthiasNoll/GameBoyEmulator/internal/joypad"
	"github.com/FabianRolfMatthiasNoll/GameBoyEmulator/internal/ppu"
	"github.com/FabianRolfMatthiasNoll/GameBoyEmulator/internal/scheduler"
	"github.com/FabianRolfMatthiasNoll/GameBoyEmulator/internal/timer"
)

// hdmaMode distinguishes the two CGB VRAM transfer modes selected by bit 7
// of a HDMA5 write, grounded on original_source's mmu/cgb_mem.go HdmaMode.
type hdmaMode uint8

const (
	hdmaModeGDMA hdmaMode = iota
	hdmaModeHDMA
)

// hdma holds the CGB HDMA1-5 (0xFF51-0xFF55) transfer state. Fields are
// exported despite the unexported type so gob can serialize them for save
// states.
type hdma struct {
	Mode            hdmaMode
	SrcAddr         uint16
	DstAddr         uint16
	TransferSize    uint16 // bytes remaining, multiple of 16
	TransferOngoing bool
}

// Bus routes CPU reads/writes to every other component and is the single
// place M-cycles are fanned out from (Bus.Tick, called once per CPU
// M-cycle, matching original_source's Memory::do_m_cycle ordering: APU then
// scheduler-driven DMA/HDMA then timer then PPU).
type Bus struct {
	cart *cart.Cartridge

	cgb bool

	// Work RAM: DMG uses banks 0-1 fixed; CGB adds banks 2-7 selectable via
	// SVBK (0xFF70). Echo RAM 0xE000-0xFDFF mirrors 0xC000-0xDDFF.
	wram     [8][0x1000]byte
	wramBank byte // SVBK bits 0-2, 0 treated as 1

	hram [0x7F]byte

	ppu   *ppu.PPU
	apuU  *apu.APU
	timer *timer.Timer
	joyp  *joypad.Joypad
	irq   interrupt.Controller
	sched *scheduler.Scheduler

	// Serial
	sb byte
	sc byte
	sw io.Writer

	// OAM DMA (0xFF46)
	dmaReg    byte
	dmaActive bool
	dmaSrc    uint16
	dmaIndex  int

	hdmaReg hdma

	// KEY1 (0xFF4D) CGB speed-switch register; the CPU toggles ToggleSpeed
	// on STOP when bit 0 (should-prepare) is set.
	key1         byte
	doubleSpeed  bool

	bootROM     []byte
	bootEnabled bool
}

// New constructs a DMG Bus around a parsed cartridge.
func New(rom []byte) (*Bus, error) {
	c, err := cart.New(rom)
	if err != nil {
		return nil, err
	}
	return NewWithCartridge(c, false), nil
}

// NewCGB constructs a Bus with CGB-specific PPU/WRAM behavior enabled.
func NewCGB(rom []byte) (*Bus, error) {
	c, err := cart.New(rom)
	if err != nil {
		return nil, err
	}
	return NewWithCartridge(c, true), nil
}

// NewWithCartridge wires a pre-parsed cartridge. cgb selects CGB PPU mode,
// 8-bank WRAM, and the HDMA/KEY1 registers.
func NewWithCartridge(c *cart.Cartridge, cgb bool) *Bus {
	b := &Bus{cart: c, cgb: cgb, sched: scheduler.New(), apuU: apu.New(48000)}
	if cgb {
		b.ppu = ppu.NewCGB(func(bit int) { b.irq.Request(interrupt.Bit(bit)) })
	} else {
		b.ppu = ppu.New(func(bit int) { b.irq.Request(interrupt.Bit(bit)) })
	}
	b.timer = timer.New(func() { b.irq.Request(interrupt.Timer) })
	b.joyp = joypad.New(func() { b.irq.Request(interrupt.Joypad) })
	b.wramBank = 1
	return b
}

func (b *Bus) PPU() *ppu.PPU       { return b.ppu }
func (b *Bus) APU() *apu.APU       { return b.apuU }
func (b *Bus) Cart() *cart.Cartridge { return b.cart }
func (b *Bus) IsCGB() bool         { return b.cgb }
func (b *Bus) DoubleSpeed() bool   { return b.doubleSpeed }

// ToggleSpeed flips double-speed mode; invoked by the CPU's STOP handler
// when KEY1 bit 0 was set beforehand.
func (b *Bus) ToggleSpeed() {
	b.doubleSpeed = !b.doubleSpeed
	if b.doubleSpeed {
		b.key1 = 0x80
	} else {
		b.key1 = 0x00
	}
}

func (b *Bus) wramBankIndex() int {
	n := int(b.wramBank & 0x07)
	if n == 0 {
		n = 1
	}
	if !b.cgb {
		return 1
	}
	return n
}

func (b *Bus) Read(addr uint16) byte {
	switch {
	case addr < 0x8000:
		if b.bootEnabled && addr < 0x0100 && len(b.bootROM) >= 0x100 {
			return b.bootROM[addr]
		}
		return b.cart.Read(addr)
	case addr <= 0x9FFF:
		return b.ppu.CPURead(addr)
	case addr <= 0xBFFF:
		return b.cart.Read(addr)
	case addr <= 0xCFFF:
		return b.wram[0][addr-0xC000]
	case addr <= 0xDFFF:
		return b.wram[b.wramBankIndex()][addr-0xD000]
	case addr <= 0xFDFF: // Echo RAM
		mirror := addr - 0x2000
		if mirror <= 0xCFFF {
			return b.wram[0][mirror-0xC000]
		}
		return b.wram[b.wramBankIndex()][mirror-0xD000]
	case addr <= 0xFE9F:
		if b.dmaActive {
			return 0xFF
		}
		return b.ppu.CPURead(addr)
	case addr <= 0xFEFF:
		return 0xFF // unusable region
	case addr >= 0xFF80 && addr <= 0xFFFE:
		return b.hram[addr-0xFF80]
	case addr == 0xFFFF:
		return b.irq.ReadIE()
	}

	switch addr {
	case 0xFF00:
		return b.joyp.Read()
	case 0xFF01:
		return b.sb
	case 0xFF02:
		return 0x7E | (b.sc & 0x81)
	case 0xFF04:
		return b.timer.DIV()
	case 0xFF05:
		return b.timer.TIMA()
	case 0xFF06:
		return b.timer.TMA()
	case 0xFF07:
		return b.timer.TAC()
	case 0xFF0F:
		return b.irq.ReadIF()
	case 0xFF10, 0xFF11, 0xFF12, 0xFF13, 0xFF14,
		0xFF16, 0xFF17, 0xFF18, 0xFF19,
		0xFF1A, 0xFF1B, 0xFF1C, 0xFF1D, 0xFF1E,
		0xFF20, 0xFF21, 0xFF22, 0xFF23, 0xFF24, 0xFF25, 0xFF26,
		0xFF30, 0xFF31, 0xFF32, 0xFF33, 0xFF34, 0xFF35, 0xFF36, 0xFF37,
		0xFF38, 0xFF39, 0xFF3A, 0xFF3B, 0xFF3C, 0xFF3D, 0xFF3E, 0xFF3F:
		return b.apuU.CPURead(addr)
	case 0xFF40, 0xFF41, 0xFF42, 0xFF43, 0xFF44, 0xFF45,
		0xFF47, 0xFF48, 0xFF49, 0xFF4A, 0xFF4B,
		0xFF4F, 0xFF68, 0xFF69, 0xFF6A, 0xFF6B:
		return b.ppu.CPURead(addr)
	case 0xFF46:
		return b.dmaReg
	case 0xFF4D:
		if !b.cgb {
			return 0xFF
		}
		return b.key1
	case 0xFF51, 0xFF52, 0xFF53, 0xFF54: // HDMA1-4 are write-only
		return 0xFF
	case 0xFF55:
		return b.readHDMA5()
	case 0xFF70:
		if !b.cgb {
			return 0xFF
		}
		return 0xF8 | (b.wramBank & 0x07)
	case 0xFF50:
		return 0xFF
	}
	return 0xFF
}

func (b *Bus) Write(addr uint16, value byte) {
	switch {
	case addr < 0x8000:
		b.cart.Write(addr, value)
		return
	case addr <= 0x9FFF:
		b.ppu.CPUWrite(addr, value)
		return
	case addr <= 0xBFFF:
		b.cart.Write(addr, value)
		return
	case addr <= 0xCFFF:
		b.wram[0][addr-0xC000] = value
		return
	case addr <= 0xDFFF:
		b.wram[b.wramBankIndex()][addr-0xD000] = value
		return
	case addr <= 0xFDFF:
		mirror := addr - 0x2000
		if mirror <= 0xCFFF {
			b.wram[0][mirror-0xC000] = value
		} else {
			b.wram[b.wramBankIndex()][mirror-0xD000] = value
		}
		return
	case addr <= 0xFE9F:
		if b.dmaActive {
			return
		}
		b.ppu.CPUWrite(addr, value)
		return
	case addr <= 0xFEFF:
		return
	case addr >= 0xFF80 && addr <= 0xFFFE:
		b.hram[addr-0xFF80] = value
		return
	case addr == 0xFFFF:
		b.irq.WriteIE(value)
		return
	}

	switch addr {
	case 0xFF00:
		b.joyp.WriteSelect(value)
		return
	case 0xFF01:
		b.sb = value
		return
	case 0xFF02:
		b.sc = value & 0x81
		if b.sc&0x80 != 0 {
			if b.sw != nil {
				_, _ = b.sw.Write([]byte{b.sb})
			}
			b.irq.Request(interrupt.Serial)
			b.sc &^= 0x80
		}
		return
	case 0xFF04:
		b.timer.WriteDIV()
		return
	case 0xFF05:
		b.timer.WriteTIMA(value)
		return
	case 0xFF06:
		b.timer.WriteTMA(value)
		return
	case 0xFF07:
		b.timer.WriteTAC(value)
		return
	case 0xFF0F:
		b.irq.WriteIF(value)
		return
	case 0xFF10, 0xFF11, 0xFF12, 0xFF13, 0xFF14,
		0xFF16, 0xFF17, 0xFF18, 0xFF19,
		0xFF1A, 0xFF1B, 0xFF1C, 0xFF1D, 0xFF1E,
		0xFF20, 0xFF21, 0xFF22, 0xFF23, 0xFF24, 0xFF25, 0xFF26,
		0xFF30, 0xFF31, 0xFF32, 0xFF33, 0xFF34, 0xFF35, 0xFF36, 0xFF37,
		0xFF38, 0xFF39, 0xFF3A, 0xFF3B, 0xFF3C, 0xFF3D, 0xFF3E, 0xFF3F:
		b.apuU.CPUWrite(addr, value)
		return
	case 0xFF40, 0xFF41, 0xFF42, 0xFF43, 0xFF44, 0xFF45,
		0xFF47, 0xFF48, 0xFF49, 0xFF4A, 0xFF4B,
		0xFF4F, 0xFF68, 0xFF69, 0xFF6A, 0xFF6B:
		b.ppu.CPUWrite(addr, value)
		return
	case 0xFF46:
		b.startOAMDMA(value)
		return
	case 0xFF4D:
		if b.cgb {
			b.key1 = (b.key1 & 0x80) | (value & 0x01)
		}
		return
	case 0xFF51:
		if b.cgb {
			b.hdmaReg.SrcAddr = (b.hdmaReg.SrcAddr & 0x00FF) | uint16(value)<<8
		}
		return
	case 0xFF52:
		if b.cgb {
			b.hdmaReg.SrcAddr = (b.hdmaReg.SrcAddr & 0xFF00) | uint16(value&0xF0)
		}
		return
	case 0xFF53:
		if b.cgb {
			b.hdmaReg.DstAddr = 0x8000 | (uint16(value&0x1F) << 8) | (b.hdmaReg.DstAddr & 0x00FF)
		}
		return
	case 0xFF54:
		if b.cgb {
			b.hdmaReg.DstAddr = (b.hdmaReg.DstAddr & 0xFF00) | uint16(value&0xF0)
		}
		return
	case 0xFF55:
		if b.cgb {
			b.writeHDMA5(value)
		}
		return
	case 0xFF70:
		if b.cgb {
			b.wramBank = value & 0x07
		}
		return
	case 0xFF50:
		if value != 0x00 {
			b.bootEnabled = false
		}
		return
	}
}

// --- OAM DMA ---------------------------------------------------------------

// startOAMDMA mirrors original_source's dma_transfer: the request is
// recorded immediately but the copy itself begins 4 master clocks later.
func (b *Bus) startOAMDMA(value byte) {
	b.dmaReg = value
	b.sched.RemoveEventType(scheduler.DmaComplete)
	b.sched.PushRelative(scheduler.DmaRequested, 4)
}

func (b *Bus) beginOAMDMACopy() {
	b.dmaActive = true
	b.dmaSrc = uint16(b.dmaReg) << 8
	b.dmaIndex = 0
	b.ppu.SetOAMDMALock(true)
}

// stepOAMDMA copies one byte per master clock while a transfer is active, a
// simplification of the real one-byte-per-M-cycle pace that is immaterial to
// any observable timing spec.md models (OAM contents mid-transfer are not
// otherwise inspectable).
func (b *Bus) stepOAMDMA() {
	if !b.dmaActive {
		return
	}
	v := b.Read(b.dmaSrc + uint16(b.dmaIndex))
	b.ppu.WriteOAMDMAByte(b.dmaIndex, v)
	b.dmaIndex++
	if b.dmaIndex >= 0xA0 {
		b.dmaActive = false
		b.ppu.SetOAMDMALock(false)
	}
}

// --- CGB HDMA/GDMA -----------------------------------------------------------

func (b *Bus) readHDMA5() byte {
	if !b.hdmaReg.TransferOngoing {
		return 0xFF
	}
	return byte(b.hdmaReg.TransferSize/16 - 1)
}

// writeHDMA5 mirrors original_source's HdmaRegister::write_hdma5: GDMA
// copies its whole block immediately, HDMA instead copies 16 bytes per
// entered HBlank (driven from Tick via PPU.HBlankEntered).
func (b *Bus) writeHDMA5(value byte) {
	b.hdmaReg.TransferSize = (uint16(value&0x7F) + 1) * 16

	if b.hdmaReg.TransferOngoing {
		if value&0x80 == 0 {
			b.hdmaReg.TransferOngoing = false
			return
		}
	} else if value&0x80 == 0 {
		b.hdmaReg.Mode = hdmaModeGDMA
	} else {
		b.hdmaReg.Mode = hdmaModeHDMA
	}

	b.hdmaReg.TransferOngoing = true
	if b.hdmaReg.Mode == hdmaModeGDMA {
		b.runGDMA()
	}
}

func (b *Bus) runGDMA() {
	for b.hdmaReg.TransferOngoing {
		b.copyHDMABlock()
	}
}

func (b *Bus) copyHDMABlock() {
	for i := 0; i < 16; i++ {
		v := b.Read(b.hdmaReg.SrcAddr + uint16(i))
		b.Write(b.hdmaReg.DstAddr+uint16(i), v)
	}
	b.hdmaReg.SrcAddr += 16
	b.hdmaReg.DstAddr += 16
	b.hdmaReg.TransferSize -= 16
	if b.hdmaReg.TransferSize == 0 {
		b.hdmaReg.TransferOngoing = false
	}
}

func (b *Bus) checkHDMA() {
	if b.hdmaReg.TransferOngoing && b.hdmaReg.Mode == hdmaModeHDMA && b.ppu.HBlankEntered() {
		b.copyHDMABlock()
	}
}

// --- Joypad / serial / boot ROM façade --------------------------------------

// SetPressed updates one button's held state.
func (b *Bus) SetPressed(k joypad.Key, pressed bool) { b.joyp.SetPressed(k, pressed) }

func (b *Bus) SetSerialWriter(w io.Writer) { b.sw = w }

func (b *Bus) SetBootROM(data []byte) {
	b.bootROM = nil
	b.bootEnabled = false
	if len(data) >= 0x100 {
		b.bootROM = make([]byte, 0x100)
		copy(b.bootROM, data[:0x100])
		b.bootEnabled = true
	}
}

func (b *Bus) Interrupts() *interrupt.Controller { return &b.irq }

// --- Timekeeping -------------------------------------------------------------

// Tick advances every time-driven component by one M-cycle (4 master
// clocks), in the order original_source's Memory::do_m_cycle uses: APU
// first, then scheduler-queued DMA/HDMA requests, then the timer and PPU
// driven per master clock.
func (b *Bus) Tick() {
	b.apuU.Tick(4)

	b.sched.AddCycles(4)
	for {
		ev, ok := b.sched.PopClosest()
		if !ok {
			break
		}
		switch ev.Type {
		case scheduler.DmaRequested:
			b.beginOAMDMACopy()
		}
	}

	for i := 0; i < 4; i++ {
		b.timer.Tick()
		b.ppu.Tick(1)
		b.stepOAMDMA()
		b.checkHDMA()
	}
}

// --- Save/Load state ---------------------------------------------------------

type busState struct {
	WRAM        [8][0x1000]byte
	WRAMBank    byte
	HRAM        [0x7F]byte
	SB, SC      byte
	DMAReg      byte
	DMAActive   bool
	DMASrc      uint16
	DMAIdx      int
	HDMA        hdma
	Key1        byte
	DoubleSpeed bool
	BootEnabled bool

	PPU       ppu.State
	Timer     timer.State
	Joypad    joypad.State
	Interrupt interrupt.State
	Scheduler scheduler.State
	APU       []byte
	Cart      cart.State
}

func (b *Bus) SaveState() []byte {
	var buf bytes.Buffer
	enc := gob.NewEncoder(&buf)
	s := busState{
		WRAM: b.wram, WRAMBank: b.wramBank, HRAM: b.hram,
		SB: b.sb, SC: b.sc,
		DMAReg: b.dmaReg, DMAActive: b.dmaActive, DMASrc: b.dmaSrc, DMAIdx: b.dmaIndex,
		HDMA: b.hdmaReg, Key1: b.key1, DoubleSpeed: b.doubleSpeed,
		BootEnabled: b.bootEnabled,
		PPU:         b.ppu.Snapshot(),
		Timer:       b.timer.Snapshot(),
		Joypad:      b.joyp.Snapshot(),
		Interrupt:   b.irq.Snapshot(),
		Scheduler:   b.sched.Snapshot(),
		APU:         b.apuU.SaveState(),
		Cart:        b.cart.Snapshot(),
	}
	_ = enc.Encode(s)
	return buf.Bytes()
}

func (b *Bus) LoadState(data []byte) {
	dec := gob.NewDecoder(bytes.NewReader(data))
	var s busState
	if err := dec.Decode(&s); err != nil {
		return
	}
	b.wram, b.wramBank, b.hram = s.WRAM, s.WRAMBank, s.HRAM
	b.sb, b.sc = s.SB, s.SC
	b.dmaReg, b.dmaActive, b.dmaSrc, b.dmaIndex = s.DMAReg, s.DMAActive, s.DMASrc, s.DMAIdx
	b.hdmaReg, b.key1, b.doubleSpeed = s.HDMA, s.Key1, s.DoubleSpeed
	b.bootEnabled = s.BootEnabled
	b.ppu.Restore(s.PPU)
	b.timer.Restore(s.Timer)
	b.joyp.Restore(s.Joypad)
	b.irq.Restore(s.Interrupt)
	b.sched.Restore(s.Scheduler)
	b.apuU.LoadState(s.APU)
	b.cart.Restore(s.Cart)
}
