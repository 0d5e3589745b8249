package main

import (
	"flag"
	"fmt"
	"hash/crc32"
	"image"
	"image/png"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/FabianRolfMatthiasNoll/GameBoyEmulator/internal/cart"
	"github.com/FabianRolfMatthiasNoll/GameBoyEmulator/internal/emu"
	"github.com/FabianRolfMatthiasNoll/GameBoyEmulator/internal/ui"
)

type cliFlags struct {
	ROMPath string
	BootROM string
	Scale   int
	Title   string
	SaveRAM bool
	ForceGB bool // force DMG mode even if the cartridge advertises CGB support

	Headless bool
	Frames   int
	PNGOut   string
	Expect   string // expected framebuffer CRC32 hex
}

func parseFlags() cliFlags {
	var f cliFlags
	flag.StringVar(&f.ROMPath, "rom", "", "path to ROM (.gb/.gbc)")
	flag.StringVar(&f.BootROM, "bootrom", "", "optional boot ROM")
	flag.IntVar(&f.Scale, "scale", 3, "window scale")
	flag.StringVar(&f.Title, "title", "gbemu", "window title")
	flag.BoolVar(&f.SaveRAM, "save", true, "persist battery RAM to ROM.sav on exit and load on start")
	flag.BoolVar(&f.ForceGB, "dmg", false, "force DMG mode even for CGB-flagged cartridges")

	flag.BoolVar(&f.Headless, "headless", false, "run without a window")
	flag.IntVar(&f.Frames, "frames", 300, "frames to run in headless mode")
	flag.StringVar(&f.PNGOut, "outpng", "", "write last framebuffer to PNG at path")
	flag.StringVar(&f.Expect, "expect", "", "assert framebuffer CRC32 (hex)")
	flag.Parse()
	return f
}

func mustRead(path string) []byte {
	if path == "" {
		return nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		log.Fatalf("read %s: %v", path, err)
	}
	return b
}

func savePathFor(romPath string) string {
	ext := filepath.Ext(romPath)
	return strings.TrimSuffix(romPath, ext) + ".sav"
}

func statePathFor(romPath string) string {
	ext := filepath.Ext(romPath)
	return strings.TrimSuffix(romPath, ext) + ".savestate"
}

func buildOptions(f cliFlags, rom, boot []byte) emu.Options {
	mode := emu.ModeDMG
	if !f.ForceGB && len(rom) >= 0x150 {
		if h, err := cart.ParseHeader(rom); err == nil && h.CGBFlag&0x80 != 0 {
			mode = emu.ModeCGB
		}
	}
	opts := emu.Options{BootROM: boot, Mode: mode}
	if f.SaveRAM && f.ROMPath != "" {
		if data, err := os.ReadFile(savePathFor(f.ROMPath)); err == nil {
			opts.SavedRAM = data
		}
	}
	return opts
}

func runHeadless(e *emu.Emulator, frames int, pngPath, expectCRC string) error {
	if frames <= 0 {
		frames = 1
	}

	start := time.Now()
	for i := 0; i < frames; i++ {
		e.RunToVBlank()
		if err := e.LastError(); err != nil {
			return fmt.Errorf("frame %d: %w", i, err)
		}
	}
	dur := time.Since(start)

	pix := rgbaPixels(e)
	crc := crc32.ChecksumIEEE(pix)
	fps := float64(frames) / dur.Seconds()
	log.Printf("headless: frames=%d elapsed=%s fps=%.2f fb_crc32=%08x",
		frames, dur.Truncate(time.Millisecond), fps, crc)

	if pngPath != "" {
		if err := saveFramePNG(pix, 160, 144, pngPath); err != nil {
			return fmt.Errorf("write PNG: %w", err)
		}
		log.Printf("wrote %s", pngPath)
	}

	if expectCRC != "" {
		want := strings.TrimPrefix(strings.ToLower(expectCRC), "0x")
		got := fmt.Sprintf("%08x", crc)
		if got != want {
			return fmt.Errorf("checksum mismatch: got %s, want %s", got, want)
		}
	}
	return nil
}

func rgbaPixels(e *emu.Emulator) []byte {
	fb := e.FrameBuffer()
	pix := make([]byte, len(fb)*4)
	for i, c := range fb {
		pix[i*4+0] = c.R
		pix[i*4+1] = c.G
		pix[i*4+2] = c.B
		pix[i*4+3] = 0xFF
	}
	return pix
}

func saveFramePNG(pix []byte, w, h int, path string) error {
	img := &image.RGBA{
		Pix:    pix,
		Stride: 4 * w,
		Rect:   image.Rect(0, 0, w, h),
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return png.Encode(f, img)
}

func writeBattery(e *emu.Emulator, romPath string) {
	if romPath == "" {
		return
	}
	data := e.BatteryRAM()
	if data == nil {
		return
	}
	path := savePathFor(romPath)
	if err := os.WriteFile(path, data, 0644); err != nil {
		log.Printf("write %s: %v", path, err)
		return
	}
	log.Printf("wrote %s", path)
}

func main() {
	f := parseFlags()
	rom := mustRead(f.ROMPath)
	boot := mustRead(f.BootROM)

	if len(rom) >= 0x150 {
		if h, err := cart.ParseHeader(rom); err == nil {
			log.Printf("ROM: %q type=%s banks=%d ram=%dB", h.Title, h.CartTypeStr, h.ROMBanks, h.RAMSizeBytes)
		}
	}

	opts := buildOptions(f, rom, boot)
	e, err := emu.New(rom, opts)
	if err != nil {
		log.Fatalf("load cart: %v", err)
	}
	e.AutoDMGPalette()

	if f.Headless {
		if err := runHeadless(e, f.Frames, f.PNGOut, f.Expect); err != nil {
			log.Fatal(err)
		}
		if f.SaveRAM {
			writeBattery(e, f.ROMPath)
		}
		return
	}

	var statePath string
	if f.ROMPath != "" {
		statePath = statePathFor(f.ROMPath)
	}
	uiCfg := ui.Config{Title: f.Title, Scale: f.Scale}
	app := ui.NewApp(uiCfg, e, rom, opts, statePath)
	if err := app.Run(); err != nil {
		log.Fatal(err)
	}

	if f.SaveRAM {
		writeBattery(app.Emulator(), f.ROMPath)
	}
}
