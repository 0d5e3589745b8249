package ui

import (
	"encoding/binary"
	"time"

	"github.com/FabianRolfMatthiasNoll/GameBoyEmulator/internal/emu"
)

// applyPlayerBufferSize keeps the ebiten audio player's internal buffer
// short enough that pause/reset/fast-forward transitions don't leave stale
// audio queued up.
func (a *App) applyPlayerBufferSize() {
	if a.audioPlayer == nil {
		return
	}
	bufMs := 40
	if a.fast {
		bufMs = 20
	}
	a.audioPlayer.SetBufferSize(time.Duration(bufMs) * time.Millisecond)
}

// apuStream implements io.Reader by pulling stereo PCM frames straight off
// the emulator's APU ring buffer (via Emulator.Bus(), the façade's
// lower-level escape hatch) and converting them to 16-bit little-endian
// frames for ebiten/audio.
type apuStream struct {
	e     *emu.Emulator
	mono  bool
	muted *bool
}

func (s *apuStream) Read(p []byte) (int, error) {
	if len(p) < 4 || s == nil || s.e == nil {
		for i := range p {
			p[i] = 0
		}
		return len(p), nil
	}
	if s.muted != nil && *s.muted {
		for i := range p {
			p[i] = 0
		}
		time.Sleep(5 * time.Millisecond)
		return len(p), nil
	}

	apu := s.e.Bus().APU()
	want := len(p) / 4
	deadline := time.Now().Add(15 * time.Millisecond)
	for apu.StereoAvailable() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if avail := apu.StereoAvailable(); avail < want {
		want = avail
	}
	if want == 0 {
		for i := range p {
			p[i] = 0
		}
		return len(p), nil
	}

	frames := apu.PullStereo(want)
	i := 0
	for j := 0; j+1 < len(frames) && i+3 < len(p); j += 2 {
		l, r := frames[j], frames[j+1]
		if s.mono {
			m := int16((int32(l) + int32(r)) / 2)
			l, r = m, m
		}
		binary.LittleEndian.PutUint16(p[i:], uint16(l))
		binary.LittleEndian.PutUint16(p[i+2:], uint16(r))
		i += 4
	}
	for ; i < len(p); i++ {
		p[i] = 0
	}
	return len(p), nil
}
