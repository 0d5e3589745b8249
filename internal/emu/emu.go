// Package emu is the public façade wiring cpu/bus/ppu/apu/cart together
// into a single embeddable emulator, generalized from the teacher's
// Milestone-0 Machine stub (which only ever drew a test-pattern
// framebuffer) into the real CPU-driven run loop.
package emu

import (
	"bytes"
	"encoding/gob"
	"io"

	"github.com/FabianRolfMatthiasNoll/GameBoyEmulator/internal/bus"
	"github.com/FabianRolfMatthiasNoll/GameBoyEmulator/internal/cpu"
	"github.com/FabianRolfMatthiasNoll/GameBoyEmulator/internal/joypad"
	"github.com/FabianRolfMatthiasNoll/GameBoyEmulator/internal/ppu"
)

// RGB is a single host-displayable colour; an alias of ppu.RGB so callers
// never need to import internal/ppu themselves.
type RGB = ppu.RGB

// Mode selects DMG or CGB hardware semantics.
type Mode int

const (
	ModeDMG Mode = iota
	ModeCGB
)

// InputKey identifies one of the eight Game Boy buttons.
type InputKey = joypad.Key

const (
	KeyRight  = joypad.Right
	KeyLeft   = joypad.Left
	KeyUp     = joypad.Up
	KeyDown   = joypad.Down
	KeyA      = joypad.A
	KeyB      = joypad.B
	KeySelect = joypad.Select
	KeyStart  = joypad.Start
)

// Options configures Emulator construction.
type Options struct {
	BootROM       []byte
	Mode          Mode
	DisplayColour [4]RGB // DMG shades for BG, OBP0 and OBP1; zero value keeps the classic green palette
	SavedRAM      []byte // battery RAM to preload, as previously returned by BatteryRAM
}

// Emulator drives one Game Boy instance: CPU instruction stepping, the
// bus/ppu/apu wiring underneath it, and the save-state/battery-RAM
// persistence spec.md's façade calls for. Not safe for concurrent use,
// matching the single-threaded cooperative model the core is built around.
type Emulator struct {
	bus  *bus.Bus
	cpu  *cpu.CPU
	mode Mode
}

// New parses rom, constructs the DMG or CGB bus/cpu pair per opts.Mode, and
// loads any boot ROM / battery RAM supplied.
func New(rom []byte, opts Options) (*Emulator, error) {
	var b *bus.Bus
	var err error
	if opts.Mode == ModeCGB {
		b, err = bus.NewCGB(rom)
	} else {
		b, err = bus.New(rom)
	}
	if err != nil {
		return nil, err
	}

	if len(opts.SavedRAM) > 0 && b.Cart().HasBattery() {
		b.Cart().LoadBatteryRAM(opts.SavedRAM)
	}

	c := cpu.New(b)
	if len(opts.BootROM) >= 0x100 {
		b.SetBootROM(opts.BootROM)
		c.SP, c.PC, c.IME = 0xFFFE, 0x0000, false
	} else {
		c.ResetNoBoot()
	}

	if opts.DisplayColour != ([4]RGB{}) {
		d := ppu.DisplayColour{White: opts.DisplayColour[0], LightGrey: opts.DisplayColour[1], DarkGrey: opts.DisplayColour[2], Black: opts.DisplayColour[3]}
		b.PPU().SetDMGDisplayColour(d, d, d)
	}

	return &Emulator{bus: b, cpu: c, mode: opts.Mode}, nil
}

// EmulateCycle runs one CPU step, which either dispatches a pending
// interrupt or executes one instruction, and advances every other component
// the same number of M-cycles. It returns false once the CPU has fetched an illegal
// opcode; LastError then reports which one.
func (e *Emulator) EmulateCycle() bool {
	if e.cpu.LastErr != nil {
		return false
	}
	e.cpu.Step()
	return e.cpu.LastErr == nil
}

// LastError returns the sticky illegal-opcode error, if any.
func (e *Emulator) LastError() error { return e.cpu.LastErr }

// RunToVBlank steps the CPU until the PPU enters VBlank (one full frame),
// or until an illegal opcode stops the core early.
func (e *Emulator) RunToVBlank() {
	wasVBlank := e.bus.PPU().Mode() == ppu.ModeVBlank
	for e.EmulateCycle() {
		nowVBlank := e.bus.PPU().Mode() == ppu.ModeVBlank
		if nowVBlank && !wasVBlank {
			return
		}
		wasVBlank = nowVBlank
	}
}

// FrameBuffer returns the most recently composited 160x144 image, row-major.
func (e *Emulator) FrameBuffer() []RGB { return e.bus.PPU().FrameBuffer() }

// AudioBuffer drains every buffered stereo frame as interleaved float32
// samples in [-1, 1].
func (e *Emulator) AudioBuffer() []float32 {
	a := e.bus.APU()
	n := a.StereoAvailable()
	if n == 0 {
		return nil
	}
	frames := a.PullStereo(n)
	out := make([]float32, len(frames))
	for i, s := range frames {
		out[i] = float32(s) / 32768
	}
	return out
}

// ClearAudioBuffer discards any buffered, not-yet-consumed audio, used when
// the host falls behind and wants to resynchronize rather than play stale
// samples.
func (e *Emulator) ClearAudioBuffer() {
	a := e.bus.APU()
	for a.StereoAvailable() > 0 {
		a.PullStereo(a.StereoAvailable())
	}
}

// HandleInput updates one button's held state.
func (e *Emulator) HandleInput(key InputKey, pressed bool) { e.bus.SetPressed(key, pressed) }

// SetSerialWriter streams serial-port (0xFF01/0xFF02) output as it is
// produced, used by test-ROM harnesses that report pass/fail over serial.
func (e *Emulator) SetSerialWriter(w io.Writer) { e.bus.SetSerialWriter(w) }

// Bus exposes the underlying bus for tools/tests that need lower-level
// access (trace dumps, direct register pokes) than the façade provides.
func (e *Emulator) Bus() *bus.Bus { return e.bus }

// BatteryRAM returns the cartridge's persistent RAM (and RTC state, for
// MBC3+RTC carts), or nil if the cartridge has no battery.
func (e *Emulator) BatteryRAM() []byte {
	if !e.bus.Cart().HasBattery() {
		return nil
	}
	return e.bus.Cart().BatteryRAM()
}

// GameTitle returns the cartridge header's title field.
func (e *Emulator) GameTitle() string { return e.bus.Cart().Header.Title }

// Mode reports whether this instance is running in DMG or CGB mode.
func (e *Emulator) Mode() Mode { return e.mode }

// SetDMGDisplayColour overrides the four-shade DMG palettes used for
// background/window, OBP0 sprites, and OBP1 sprites independently. Has no
// visible effect in CGB mode, where colours come from CGB palette RAM.
func (e *Emulator) SetDMGDisplayColour(bg, sp0, sp1 [4]RGB) {
	toSet := func(c [4]RGB) ppu.DisplayColour {
		return ppu.DisplayColour{White: c[0], LightGrey: c[1], DarkGrey: c[2], Black: c[3]}
	}
	e.bus.PPU().SetDMGDisplayColour(toSet(bg), toSet(sp0), toSet(sp1))
}

// snapshot is the gob-encoded save-state envelope: CPU register state plus
// the already-serialized Bus state blob (Bus.SaveState is itself gob, but
// gob happily nests an opaque []byte).
type snapshot struct {
	A, F, B, C, D, E, H, L byte
	SP, PC                 uint16
	IME                    bool
	Bus                    []byte
}

// SaveState serializes CPU registers and the full bus/component state
// (ppu/apu/cart/timer/joypad/interrupt/scheduler), grounded on the
// teacher's Bus.SaveState/LoadState gob pattern.
func (e *Emulator) SaveState() []byte {
	var buf bytes.Buffer
	s := snapshot{
		A: e.cpu.A, F: e.cpu.F, B: e.cpu.B, C: e.cpu.C, D: e.cpu.D, E: e.cpu.E, H: e.cpu.H, L: e.cpu.L,
		SP: e.cpu.SP, PC: e.cpu.PC, IME: e.cpu.IME,
		Bus: e.bus.SaveState(),
	}
	_ = gob.NewEncoder(&buf).Encode(s)
	return buf.Bytes()
}

// LoadState restores state written by SaveState.
func (e *Emulator) LoadState(data []byte) error {
	var s snapshot
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&s); err != nil {
		return err
	}
	e.cpu.A, e.cpu.F, e.cpu.B, e.cpu.C = s.A, s.F, s.B, s.C
	e.cpu.D, e.cpu.E, e.cpu.H, e.cpu.L = s.D, s.E, s.H, s.L
	e.cpu.SP, e.cpu.PC, e.cpu.IME = s.SP, s.PC, s.IME
	e.bus.LoadState(s.Bus)
	return nil
}
