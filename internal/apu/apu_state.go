package apu

import (
	"bytes"
	"encoding/gob"
)

// Save/load state goes through a private, gob-encoded snapshot struct
// decoupled from the live field names so internal renames here don't change
// the save-state wire format.

type apuState struct {
	Enabled          bool
	NR50, NR51, NR52 byte
	FSCounter        int
	FSStep           int
	CycAccum         float64
	Ch1              ch1State
	Ch2              ch2State
	Ch3              ch3State
	Ch4              ch4State
}

type ch1State struct {
	Enabled bool
	DACOn   bool
	Duty    byte
	Length  int
	LenEn   bool
	Vol     byte
	EnvDir  int8
	EnvPer  byte
	CurVol  byte
	EnvTmr  byte
	Freq    uint16
	Timer   int
	Phase   int

	SweepPer, SweepShift, SweepTmr byte
	SweepNeg, SweepEn              bool
	SweepShadow                    uint16
}

type ch2State struct {
	Enabled bool
	DACOn   bool
	Duty    byte
	Length  int
	LenEn   bool
	Vol     byte
	EnvDir  int8
	EnvPer  byte
	CurVol  byte
	EnvTmr  byte
	Freq    uint16
	Timer   int
	Phase   int
}

type ch3State struct {
	Enabled bool
	DACEn   bool
	Length  int
	LenEn   bool
	VolCode byte
	Freq    uint16
	Timer   int
	Pos     int
	RAM     [16]byte
}

type ch4State struct {
	Enabled bool
	DACOn   bool
	Length  int
	LenEn   bool
	Vol     byte
	EnvDir  int8
	EnvPer  byte
	CurVol  byte
	EnvTmr  byte
	Shift   byte
	Width7  bool
	DivSel  byte
	Timer   int
	LFSR    uint16
}

func (a *APU) SaveState() []byte {
	var buf bytes.Buffer
	s := apuState{
		Enabled:   a.enabled,
		NR50:      a.nr50,
		NR51:      a.nr51,
		NR52:      a.nr52,
		FSCounter: a.fsCounter,
		FSStep:    a.fsStep,
		CycAccum:  a.cycAccum,
		Ch1: ch1State{
			Enabled: a.ch1.enabled, DACOn: a.ch1.dacOn, Duty: a.ch1.duty, Length: a.ch1.length,
			LenEn: a.ch1.lenEn, Vol: a.ch1.vol, EnvDir: a.ch1.envDir, EnvPer: a.ch1.envPer,
			CurVol: a.ch1.curVol, EnvTmr: a.ch1.envTmr, Freq: a.ch1.freq, Timer: a.ch1.timer,
			Phase: a.ch1.phase, SweepPer: a.ch1.sweepPer, SweepNeg: a.ch1.sweepNeg,
			SweepShift: a.ch1.sweepShift, SweepTmr: a.ch1.sweepTmr, SweepEn: a.ch1.sweepEn,
			SweepShadow: a.ch1.sweepShadow,
		},
		Ch2: ch2State{
			Enabled: a.ch2.enabled, DACOn: a.ch2.dacOn, Duty: a.ch2.duty, Length: a.ch2.length,
			LenEn: a.ch2.lenEn, Vol: a.ch2.vol, EnvDir: a.ch2.envDir, EnvPer: a.ch2.envPer,
			CurVol: a.ch2.curVol, EnvTmr: a.ch2.envTmr, Freq: a.ch2.freq, Timer: a.ch2.timer,
			Phase: a.ch2.phase,
		},
		Ch3: ch3State{
			Enabled: a.ch3.enabled, DACEn: a.ch3.dacEn, Length: a.ch3.length, LenEn: a.ch3.lenEn,
			VolCode: a.ch3.volCode, Freq: a.ch3.freq, Timer: a.ch3.timer, Pos: a.ch3.pos,
			RAM: a.ch3.ram,
		},
		Ch4: ch4State{
			Enabled: a.ch4.enabled, DACOn: a.ch4.dacOn, Length: a.ch4.length, LenEn: a.ch4.lenEn,
			Vol: a.ch4.vol, EnvDir: a.ch4.envDir, EnvPer: a.ch4.envPer, CurVol: a.ch4.curVol,
			EnvTmr: a.ch4.envTmr, Shift: a.ch4.shift, Width7: a.ch4.width7, DivSel: a.ch4.divSel,
			Timer: a.ch4.timer, LFSR: a.ch4.lfsr,
		},
	}
	_ = gob.NewEncoder(&buf).Encode(s)
	return buf.Bytes()
}

func (a *APU) LoadState(data []byte) {
	var s apuState
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&s); err != nil {
		return
	}
	a.enabled = s.Enabled
	a.nr50, a.nr51, a.nr52 = s.NR50, s.NR51, s.NR52
	a.fsCounter, a.fsStep = s.FSCounter, s.FSStep
	a.cycAccum = s.CycAccum

	a.ch1 = chSquare{
		enabled: s.Ch1.Enabled, dacOn: s.Ch1.DACOn, duty: s.Ch1.Duty, length: s.Ch1.Length,
		lenEn: s.Ch1.LenEn, vol: s.Ch1.Vol, envDir: s.Ch1.EnvDir, envPer: s.Ch1.EnvPer,
		curVol: s.Ch1.CurVol, envTmr: s.Ch1.EnvTmr, freq: s.Ch1.Freq, timer: s.Ch1.Timer,
		phase: s.Ch1.Phase, sweepPer: s.Ch1.SweepPer, sweepNeg: s.Ch1.SweepNeg,
		sweepShift: s.Ch1.SweepShift, sweepTmr: s.Ch1.SweepTmr, sweepEn: s.Ch1.SweepEn,
		sweepShadow: s.Ch1.SweepShadow,
	}
	a.ch2 = chSquare{
		enabled: s.Ch2.Enabled, dacOn: s.Ch2.DACOn, duty: s.Ch2.Duty, length: s.Ch2.Length,
		lenEn: s.Ch2.LenEn, vol: s.Ch2.Vol, envDir: s.Ch2.EnvDir, envPer: s.Ch2.EnvPer,
		curVol: s.Ch2.CurVol, envTmr: s.Ch2.EnvTmr, freq: s.Ch2.Freq, timer: s.Ch2.Timer,
		phase: s.Ch2.Phase,
	}
	a.ch3 = chWave{
		enabled: s.Ch3.Enabled, dacEn: s.Ch3.DACEn, length: s.Ch3.Length, lenEn: s.Ch3.LenEn,
		volCode: s.Ch3.VolCode, freq: s.Ch3.Freq, timer: s.Ch3.Timer, pos: s.Ch3.Pos,
		ram: s.Ch3.RAM,
	}
	a.ch4 = chNoise{
		enabled: s.Ch4.Enabled, dacOn: s.Ch4.DACOn, length: s.Ch4.Length, lenEn: s.Ch4.LenEn,
		vol: s.Ch4.Vol, envDir: s.Ch4.EnvDir, envPer: s.Ch4.EnvPer, curVol: s.Ch4.CurVol,
		envTmr: s.Ch4.EnvTmr, shift: s.Ch4.Shift, width7: s.Ch4.Width7, divSel: s.Ch4.DivSel,
		timer: s.Ch4.Timer, lfsr: s.Ch4.LFSR,
	}
}
