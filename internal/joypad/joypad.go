// Package joypad models the two 4-bit button groups exposed through the
// JOYP register (0xFF00), generalized from the teacher's bus-embedded
// joypSelect/joypad/joypLower4 fields into their own component per spec.md §4.8.
package joypad

// Key identifies one of the eight buttons.
type Key uint8

const (
	Right Key = iota
	Left
	Up
	Down
	A
	B
	Select
	Start
)

// Requester raises IF.Joypad on any button press edge.
type Requester func()

type Joypad struct {
	selectBits byte // last write to bits 5-4 of JOYP
	pressed    byte // bitmask, 1 = pressed, indexed by Key
	lastLower4 byte // active-low lower nibble last computed, for edge detection

	req Requester
}

func New(req Requester) *Joypad {
	return &Joypad{lastLower4: 0x0F, req: req}
}

// Read returns the JOYP register: bits 7-6 read as 1, bits 5-4 reflect the
// last selection write, bits 3-0 are active-low per the selected group(s).
func (j *Joypad) Read() byte {
	return 0xC0 | (j.selectBits & 0x30) | j.lower4()
}

func (j *Joypad) lower4() byte {
	res := byte(0x0F)
	if j.selectBits&0x10 == 0 { // P14 low selects D-pad
		res &^= j.directionBits()
	}
	if j.selectBits&0x20 == 0 { // P15 low selects buttons
		res &^= j.buttonBits()
	}
	return res
}

func (j *Joypad) directionBits() byte {
	var b byte
	if j.pressed&(1<<Right) != 0 {
		b |= 0x01
	}
	if j.pressed&(1<<Left) != 0 {
		b |= 0x02
	}
	if j.pressed&(1<<Up) != 0 {
		b |= 0x04
	}
	if j.pressed&(1<<Down) != 0 {
		b |= 0x08
	}
	return b
}

func (j *Joypad) buttonBits() byte {
	var b byte
	if j.pressed&(1<<A) != 0 {
		b |= 0x01
	}
	if j.pressed&(1<<B) != 0 {
		b |= 0x02
	}
	if j.pressed&(1<<Select) != 0 {
		b |= 0x04
	}
	if j.pressed&(1<<Start) != 0 {
		b |= 0x08
	}
	return b
}

// WriteSelect handles a CPU write to JOYP (only bits 5-4 are writable).
func (j *Joypad) WriteSelect(v byte) {
	j.selectBits = v & 0x30
	j.raiseOnFallingEdge()
}

// SetPressed updates whether a key is held and raises IF.Joypad on any
// newly-pressed bit that is visible under the current group selection.
func (j *Joypad) SetPressed(k Key, pressed bool) {
	if pressed {
		j.pressed |= 1 << k
	} else {
		j.pressed &^= 1 << k
	}
	j.raiseOnFallingEdge()
}

func (j *Joypad) raiseOnFallingEdge() {
	newLower := j.lower4()
	falling := j.lastLower4 &^ newLower // bits that were 1 (released) now 0 (pressed)
	if falling != 0 && j.req != nil {
		j.req()
	}
	j.lastLower4 = newLower
}

// State is the serializable snapshot used by save states.
type State struct {
	SelectBits byte
	Pressed    byte
	LastLower4 byte
}

func (j *Joypad) Snapshot() State { return State{j.selectBits, j.pressed, j.lastLower4} }
func (j *Joypad) Restore(s State) { j.selectBits, j.pressed, j.lastLower4 = s.SelectBits, s.Pressed, s.LastLower4 }
