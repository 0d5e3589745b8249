package apu

// CPURead reads an APU register at the given bus address. Unmapped addresses
// (gaps between the channel blocks) read back as 0xFF, matching hardware.
func (a *APU) CPURead(addr uint16) byte {
	switch addr {
	case 0xFF10: // NR10 sweep (CH1)
		n := (a.ch1.sweepPer & 7) << 4
		if a.ch1.sweepNeg {
			n |= 1 << 3
		}
		n |= a.ch1.sweepShift & 7
		return 0x80 | n
	case 0xFF11: // NR11 duty/length (CH1)
		return (a.ch1.duty << 6) | byte(0x3F-(a.ch1.length&0x3F))
	case 0xFF12: // NR12 envelope (CH1)
		return (a.ch1.vol << 4) | (envDirBit(a.ch1.envDir) << 3) | (a.ch1.envPer & 7)
	case 0xFF13: // NR13 freq lo (CH1)
		return byte(a.ch1.freq & 0xFF)
	case 0xFF14: // NR14 (CH1)
		return (boolToByte(a.ch1.lenEn) << 6) | byte((a.ch1.freq>>8)&7)
	case 0xFF16: // NR21 duty/length (CH2)
		return (a.ch2.duty << 6) | byte(0x3F-(a.ch2.length&0x3F))
	case 0xFF17: // NR22 envelope (CH2)
		return (a.ch2.vol << 4) | (envDirBit(a.ch2.envDir) << 3) | (a.ch2.envPer & 7)
	case 0xFF18: // NR23 freq lo (CH2)
		return byte(a.ch2.freq & 0xFF)
	case 0xFF19: // NR24 (CH2)
		return (boolToByte(a.ch2.lenEn) << 6) | byte((a.ch2.freq>>8)&7)
	case 0xFF1A: // NR30 DAC power (CH3)
		if a.ch3.dacEn {
			return 0x80
		}
		return 0x00
	case 0xFF1B: // NR31 length (CH3)
		return byte(0xFF - (a.ch3.length & 0xFF))
	case 0xFF1C: // NR32 output level (CH3)
		return (a.ch3.volCode << 5) | 0x9F
	case 0xFF1D: // NR33 freq lo (CH3)
		return byte(a.ch3.freq & 0xFF)
	case 0xFF1E: // NR34 (CH3)
		return (boolToByte(a.ch3.lenEn) << 6) | byte((a.ch3.freq>>8)&7)
	case 0xFF30, 0xFF31, 0xFF32, 0xFF33, 0xFF34, 0xFF35, 0xFF36, 0xFF37,
		0xFF38, 0xFF39, 0xFF3A, 0xFF3B, 0xFF3C, 0xFF3D, 0xFF3E, 0xFF3F:
		return a.ch3.ram[addr-0xFF30]
	case 0xFF20: // NR41 length (CH4)
		return byte(0x3F - (a.ch4.length & 0x3F))
	case 0xFF21: // NR42 envelope (CH4)
		return (a.ch4.vol << 4) | (envDirBit(a.ch4.envDir) << 3) | (a.ch4.envPer & 7)
	case 0xFF22: // NR43 poly counter (CH4)
		return (a.ch4.shift << 4) | (boolToByte(a.ch4.width7) << 3) | (a.ch4.divSel & 7)
	case 0xFF23: // NR44 (CH4)
		return boolToByte(a.ch4.lenEn) << 6
	case 0xFF24:
		return a.nr50
	case 0xFF25:
		return a.nr51
	case 0xFF26: // NR52: power bit plus synthesized per-channel on flags
		chFlags := byte(0)
		if a.ch1.enabled {
			chFlags |= 1 << 0
		}
		if a.ch2.enabled {
			chFlags |= 1 << 1
		}
		if a.ch3.enabled {
			chFlags |= 1 << 2
		}
		if a.ch4.enabled {
			chFlags |= 1 << 3
		}
		return 0x70 | (boolToByte(a.enabled) << 7) | chFlags
	default:
		return 0xFF
	}
}

// CPUWrite writes an APU register. Writes while powered off are accepted on
// real hardware only for NR11/21/31/41 length counters and the wave RAM;
// this implementation follows the teacher's simpler always-writable model.
func (a *APU) CPUWrite(addr uint16, v byte) {
	switch addr {
	case 0xFF10: // NR10 (CH1 sweep)
		a.ch1.sweepPer = (v >> 4) & 7
		a.ch1.sweepNeg = v&(1<<3) != 0
		a.ch1.sweepShift = v & 7
	case 0xFF11: // NR11 (CH1 duty/length)
		a.ch1.duty = (v >> 6) & 3
		a.ch1.length = 64 - int(v&0x3F)
	case 0xFF12: // NR12 (CH1 envelope + DAC)
		a.ch1.vol = (v >> 4) & 0x0F
		a.ch1.envDir = envDirFromBit(v)
		a.ch1.envPer = v & 7
		a.ch1.dacOn = v&0xF8 != 0
		if !a.ch1.dacOn {
			a.ch1.enabled = false
		}
	case 0xFF13: // NR13 (CH1 freq lo)
		a.ch1.freq = (a.ch1.freq & 0x0700) | uint16(v)
		a.reloadCh1Timer()
	case 0xFF14: // NR14 (CH1 freq hi / trigger / length enable)
		a.ch1.lenEn = v&(1<<6) != 0
		a.ch1.freq = (a.ch1.freq & 0x00FF) | (uint16(v&7) << 8)
		if v&(1<<7) != 0 {
			a.triggerCh1()
		}
	case 0xFF16: // NR21 (CH2 duty/length)
		a.ch2.duty = (v >> 6) & 3
		a.ch2.length = 64 - int(v&0x3F)
	case 0xFF17: // NR22 (CH2 envelope + DAC)
		a.ch2.vol = (v >> 4) & 0x0F
		a.ch2.envDir = envDirFromBit(v)
		a.ch2.envPer = v & 7
		a.ch2.dacOn = v&0xF8 != 0
		if !a.ch2.dacOn {
			a.ch2.enabled = false
		}
	case 0xFF18: // NR23 (CH2 freq lo)
		a.ch2.freq = (a.ch2.freq & 0x0700) | uint16(v)
		a.reloadCh2Timer()
	case 0xFF19: // NR24 (CH2 freq hi / trigger / length enable)
		a.ch2.lenEn = v&(1<<6) != 0
		a.ch2.freq = (a.ch2.freq & 0x00FF) | (uint16(v&7) << 8)
		if v&(1<<7) != 0 {
			a.triggerCh2()
		}
	case 0xFF1A: // NR30 (CH3 DAC power)
		a.ch3.dacEn = v&0x80 != 0
		if !a.ch3.dacEn {
			a.ch3.enabled = false
		}
	case 0xFF1B: // NR31 (CH3 length)
		a.ch3.length = 256 - int(v)
	case 0xFF1C: // NR32 (CH3 output level)
		a.ch3.volCode = (v >> 5) & 3
	case 0xFF1D: // NR33 (CH3 freq lo)
		a.ch3.freq = (a.ch3.freq & 0x0700) | uint16(v)
		a.reloadCh3Timer()
	case 0xFF1E: // NR34 (CH3 freq hi / trigger / length enable)
		a.ch3.lenEn = v&(1<<6) != 0
		a.ch3.freq = (a.ch3.freq & 0x00FF) | (uint16(v&7) << 8)
		if v&(1<<7) != 0 {
			a.triggerCh3()
		}
	case 0xFF30, 0xFF31, 0xFF32, 0xFF33, 0xFF34, 0xFF35, 0xFF36, 0xFF37,
		0xFF38, 0xFF39, 0xFF3A, 0xFF3B, 0xFF3C, 0xFF3D, 0xFF3E, 0xFF3F:
		a.ch3.ram[addr-0xFF30] = v
	case 0xFF24:
		a.nr50 = v
	case 0xFF25:
		a.nr51 = v
	case 0xFF26: // NR52 power control
		if v&(1<<7) != 0 {
			a.enabled = true
			return
		}
		// Powering off resets every register to its post-reset default,
		// except the length counters and wave RAM, which are kept.
		sampleRate := a.sampleRate
		l1, l2, l3, l4 := a.ch1.length, a.ch2.length, a.ch3.length, a.ch4.length
		wave := a.ch3.ram
		*a = *New(sampleRate)
		a.ch1.length, a.ch2.length, a.ch3.length, a.ch4.length = l1, l2, l3, l4
		a.ch3.ram = wave
		a.enabled = false
	case 0xFF20: // NR41 (CH4 length)
		a.ch4.length = 64 - int(v&0x3F)
	case 0xFF21: // NR42 (CH4 envelope + DAC)
		a.ch4.vol = (v >> 4) & 0x0F
		a.ch4.envDir = envDirFromBit(v)
		a.ch4.envPer = v & 7
		a.ch4.dacOn = v&0xF8 != 0
		if !a.ch4.dacOn {
			a.ch4.enabled = false
		}
	case 0xFF22: // NR43 (CH4 polynomial counter)
		a.ch4.shift = (v >> 4) & 0x0F
		a.ch4.width7 = v&(1<<3) != 0
		a.ch4.divSel = v & 7
		a.reloadCh4Timer()
	case 0xFF23: // NR44 (CH4 trigger / length enable)
		a.ch4.lenEn = v&(1<<6) != 0
		if v&(1<<7) != 0 {
			a.triggerCh4()
		}
	}
}

func envDirBit(dir int8) byte {
	if dir > 0 {
		return 1
	}
	return 0
}

func envDirFromBit(nrx2 byte) int8 {
	if nrx2&(1<<3) != 0 {
		return 1
	}
	return -1
}
