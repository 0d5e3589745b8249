package apu

// divisorTable is CH4's NR43 dividing-ratio lookup (Pan Docs "Noise Channel").
var divisorTable = [8]int{8, 16, 32, 48, 64, 80, 96, 112}

func (a *APU) triggerCh1() {
	a.ch1.enabled = a.ch1.dacOn
	if a.ch1.length == 0 {
		a.ch1.length = 64
	}
	a.ch1.phase = 0
	a.reloadCh1Timer()

	a.ch1.curVol = a.ch1.vol
	a.ch1.envTmr = envPeriod(a.ch1.envPer)

	a.ch1.sweepShadow = a.ch1.freq & 0x7FF
	a.ch1.sweepEn = a.ch1.sweepPer != 0 || a.ch1.sweepShift != 0
	a.ch1.sweepTmr = envPeriod(a.ch1.sweepPer)
	if a.ch1.sweepShift != 0 && a.calcCh1Sweep() > 2047 {
		a.ch1.enabled = false
	}
}

func (a *APU) triggerCh2() {
	a.ch2.enabled = a.ch2.dacOn
	if !a.ch2.enabled {
		return
	}
	if a.ch2.length == 0 {
		a.ch2.length = 64
	}
	a.ch2.phase = 0
	a.reloadCh2Timer()
	a.ch2.curVol = a.ch2.vol
	a.ch2.envTmr = envPeriod(a.ch2.envPer)
}

func (a *APU) triggerCh3() {
	a.ch3.enabled = a.ch3.dacEn
	if a.ch3.length == 0 {
		a.ch3.length = 256
	}
	a.ch3.pos = 0
	a.reloadCh3Timer()
}

func (a *APU) triggerCh4() {
	a.ch4.enabled = a.ch4.dacOn
	if a.ch4.length == 0 {
		a.ch4.length = 64
	}
	a.ch4.curVol = a.ch4.vol
	a.ch4.envTmr = envPeriod(a.ch4.envPer)
	a.ch4.lfsr = 0x7FFF
	a.reloadCh4Timer()
}

// envPeriod maps a raw 0..7 NRx2/NR10 period field to its effective period,
// where a stored 0 behaves as 8 (Pan Docs envelope/sweep convention).
func envPeriod(p byte) byte {
	if p == 0 {
		return 8
	}
	return p
}

func (a *APU) reloadCh1Timer() {
	a.ch1.timer = squarePeriodCycles(a.ch1.freq)
}

func (a *APU) reloadCh2Timer() {
	a.ch2.timer = squarePeriodCycles(a.ch2.freq)
}

func squarePeriodCycles(freq uint16) int {
	cycles := int(4 * (2048 - (freq & 0x7FF)))
	if cycles < 8 {
		cycles = 8
	}
	return cycles
}

func (a *APU) reloadCh3Timer() {
	cycles := int(2 * (2048 - (a.ch3.freq & 0x7FF)))
	if cycles < 2 {
		cycles = 2
	}
	a.ch3.timer = cycles
}

func (a *APU) reloadCh4Timer() {
	div := divisorTable[a.ch4.divSel&7]
	period := div << int(a.ch4.shift)
	if period < 2 {
		period = 2
	}
	a.ch4.timer = period
}

func (a *APU) clockLength() {
	clockOne := func(lenEn bool, length *int, enabled *bool) {
		if !lenEn || *length <= 0 {
			return
		}
		*length--
		if *length <= 0 {
			*enabled = false
		}
	}
	clockOne(a.ch1.lenEn, &a.ch1.length, &a.ch1.enabled)
	clockOne(a.ch2.lenEn, &a.ch2.length, &a.ch2.enabled)
	clockOne(a.ch3.lenEn, &a.ch3.length, &a.ch3.enabled)
	clockOne(a.ch4.lenEn, &a.ch4.length, &a.ch4.enabled)
}

func (a *APU) clockEnvelope() {
	clockOne := func(enabled bool, envPer byte, envTmr *byte, envDir int8, curVol *byte) {
		if !enabled || envPer == 0 {
			return
		}
		if *envTmr > 0 {
			*envTmr--
		}
		if *envTmr == 0 {
			*envTmr = envPer
			if envDir > 0 && *curVol < 15 {
				*curVol++
			} else if envDir < 0 && *curVol > 0 {
				*curVol--
			}
		}
	}
	clockOne(a.ch1.enabled, a.ch1.envPer, &a.ch1.envTmr, a.ch1.envDir, &a.ch1.curVol)
	clockOne(a.ch2.enabled, a.ch2.envPer, &a.ch2.envTmr, a.ch2.envDir, &a.ch2.curVol)
	clockOne(a.ch4.enabled, a.ch4.envPer, &a.ch4.envTmr, a.ch4.envDir, &a.ch4.curVol)
}

func (a *APU) clockSweep() {
	if !a.ch1.enabled || !a.ch1.sweepEn || a.ch1.sweepPer == 0 {
		return
	}
	if a.ch1.sweepTmr > 0 {
		a.ch1.sweepTmr--
	}
	if a.ch1.sweepTmr != 0 {
		return
	}
	a.ch1.sweepTmr = envPeriod(a.ch1.sweepPer)
	nf := a.calcCh1Sweep()
	if nf > 2047 {
		a.ch1.enabled = false
		return
	}
	a.ch1.sweepShadow = uint16(nf)
	a.ch1.freq = (a.ch1.freq &^ 0x07FF) | (uint16(nf) & 0x07FF)
	a.reloadCh1Timer()
	if a.calcCh1Sweep() > 2047 { // second overflow check against the new shadow
		a.ch1.enabled = false
	}
}

// calcCh1Sweep computes the next sweep target frequency from the shadow
// register without mutating state, so callers can overflow-check before
// committing it.
func (a *APU) calcCh1Sweep() int {
	base := int(a.ch1.sweepShadow)
	if a.ch1.sweepShift == 0 {
		return base
	}
	delta := base >> a.ch1.sweepShift
	if a.ch1.sweepNeg {
		return base - delta
	}
	return base + delta
}
