package joypad

import "testing"

// Boundary scenario 5 from spec.md §8.
func TestPressARaisesInterruptAndClearsBit(t *testing.T) {
	fired := 0
	j := New(func() { fired++ })
	j.WriteSelect(0x10) // bit5=0 selects buttons, bit4=1 deselects direction
	j.SetPressed(A, true)

	got := j.Read()
	if got&0x01 != 0 {
		t.Fatalf("bit 0 should be clear (A pressed), got %#02x", got)
	}
	if fired == 0 {
		t.Fatalf("expected IF.Joypad to be raised on press")
	}
}

func TestUnselectedGroupReadsAllOnes(t *testing.T) {
	j := New(nil)
	j.WriteSelect(0x20) // select direction only
	j.SetPressed(A, true)
	got := j.Read()
	if got&0x0F != 0x0F {
		t.Fatalf("buttons not selected, expected lower nibble all 1s, got %#02x", got)
	}
}
