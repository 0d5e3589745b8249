package ui

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"time"

	"github.com/FabianRolfMatthiasNoll/GameBoyEmulator/internal/emu"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/audio"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
)

// App is a small ebiten front end around an emu.Emulator: framebuffer blit,
// keyboard input, PCM audio playback, and single-slot save states. Built for
// running a ROM, not for browsing a library or editing settings; the host
// binary (cmd/gbemu) owns ROM selection and persistence paths.
type App struct {
	cfg Config
	e   *emu.Emulator

	// reset support: New() takes rom bytes fresh each time, so the raw ROM
	// and the options it was built with are kept around for 'R'.
	rom  []byte
	opts emu.Options

	statePath string // save-state file path; empty disables F5/F9

	tex    *ebiten.Image
	paused bool
	fast   bool

	lastTime time.Time
	frameAcc float64

	audioCtx    *audio.Context
	audioPlayer *audio.Player
	audioSrc    *apuStream
	audioMuted  bool

	toastMsg   string
	toastUntil time.Time
}

// NewApp constructs the window around an already-running Emulator. statePath,
// if non-empty, is where F5/F9 save and load a state blob.
func NewApp(cfg Config, e *emu.Emulator, rom []byte, opts emu.Options, statePath string) *App {
	cfg.Defaults()
	ebiten.SetWindowTitle(windowTitle(cfg.Title, e))
	ebiten.SetWindowSize(160*cfg.Scale, 144*cfg.Scale)

	a := &App{cfg: cfg, e: e, rom: rom, opts: opts, statePath: statePath}
	a.lastTime = time.Now()
	a.audioCtx = audio.NewContext(48000)
	a.audioMuted = true
	return a
}

func windowTitle(base string, e *emu.Emulator) string {
	if e == nil {
		return base
	}
	if t := e.GameTitle(); t != "" {
		return base + " - [" + t + "]"
	}
	return base
}

func (a *App) Run() error { return ebiten.RunGame(a) }

// Emulator returns the currently active Emulator instance, which changes
// identity across a reset ('R'), so callers needing post-Run state (battery
// RAM to persist, say) must fetch it after Run returns rather than holding
// onto the instance passed to NewApp.
func (a *App) Emulator() *emu.Emulator { return a.e }

func (a *App) Update() error {
	if a.audioPlayer == nil {
		a.audioSrc = &apuStream{e: a.e, mono: !a.cfg.AudioStereo, muted: &a.audioMuted}
		if p, err := a.audioCtx.NewPlayer(a.audioSrc); err == nil {
			a.audioPlayer = p
			a.applyPlayerBufferSize()
			a.audioPlayer.Play()
		}
	}

	a.handleInput()

	if inpututil.IsKeyJustPressed(ebiten.KeyP) {
		a.paused = !a.paused
	}
	prevFast := a.fast
	a.fast = ebiten.IsKeyPressed(ebiten.KeyTab)
	if inpututil.IsKeyJustPressed(ebiten.KeyR) {
		a.reset()
	}
	if !a.paused && inpututil.IsKeyJustPressed(ebiten.KeyN) {
		a.paused = true
	}
	if a.paused && inpututil.IsKeyJustPressed(ebiten.KeyN) {
		a.e.RunToVBlank()
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyF11) {
		ebiten.SetFullscreen(!ebiten.IsFullscreen())
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyF5) {
		if err := a.saveState(); err == nil {
			a.toast("State saved")
		} else {
			a.toast("Save failed: " + err.Error())
		}
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyF9) {
		if err := a.loadState(); err == nil {
			a.toast("State loaded")
		} else {
			a.toast("Load failed: " + err.Error())
		}
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyF12) {
		if err := a.saveScreenshot(); err != nil {
			a.toast("Screenshot failed: " + err.Error())
		}
	}

	muted := a.paused
	if muted != a.audioMuted {
		a.audioMuted = muted
		a.lastTime = time.Now()
		a.frameAcc = 0
		a.e.ClearAudioBuffer()
	}
	if prevFast != a.fast {
		a.e.ClearAudioBuffer()
		a.applyPlayerBufferSize()
	}

	if !a.paused {
		now := time.Now()
		dt := now.Sub(a.lastTime).Seconds()
		if dt < 0 {
			dt = 0
		}
		a.lastTime = now
		const gbFPS = 4194304.0 / 70224.0 // ~59.7275
		speed := 1.0
		if a.fast {
			speed = 4.0
		}
		a.frameAcc += dt * gbFPS * speed
		steps := 0
		for a.frameAcc >= 1.0 && steps < 8 { // cap to avoid a spiral of death
			a.e.RunToVBlank()
			if err := a.e.LastError(); err != nil {
				a.toast(err.Error())
				a.paused = true
				break
			}
			a.frameAcc -= 1.0
			steps++
		}
	}

	return nil
}

func (a *App) handleInput() {
	set := func(k emu.InputKey, down bool) { a.e.HandleInput(k, down) }
	set(emu.KeyRight, ebiten.IsKeyPressed(ebiten.KeyRight))
	set(emu.KeyLeft, ebiten.IsKeyPressed(ebiten.KeyLeft))
	set(emu.KeyUp, ebiten.IsKeyPressed(ebiten.KeyUp))
	set(emu.KeyDown, ebiten.IsKeyPressed(ebiten.KeyDown))
	set(emu.KeyA, ebiten.IsKeyPressed(ebiten.KeyZ))
	set(emu.KeyB, ebiten.IsKeyPressed(ebiten.KeyX))
	set(emu.KeyStart, ebiten.IsKeyPressed(ebiten.KeyEnter))
	set(emu.KeySelect, ebiten.IsKeyPressed(ebiten.KeyShiftRight))
}

// reset rebuilds the Emulator from scratch with the same ROM/options,
// since the façade has no in-place reset operation.
func (a *App) reset() {
	e, err := emu.New(a.rom, a.opts)
	if err != nil {
		a.toast("Reset failed: " + err.Error())
		return
	}
	a.e = e
	a.audioPlayer = nil
	a.frameAcc = 0
}

func (a *App) saveState() error {
	if a.statePath == "" {
		return fmt.Errorf("no state path configured")
	}
	return os.WriteFile(a.statePath, a.e.SaveState(), 0644)
}

func (a *App) loadState() error {
	if a.statePath == "" {
		return fmt.Errorf("no state path configured")
	}
	data, err := os.ReadFile(a.statePath)
	if err != nil {
		return err
	}
	return a.e.LoadState(data)
}

func (a *App) toast(msg string) {
	a.toastMsg = msg
	a.toastUntil = time.Now().Add(2 * time.Second)
}

func (a *App) Draw(screen *ebiten.Image) {
	if a.tex == nil {
		a.tex = ebiten.NewImage(160, 144)
	}
	a.tex.WritePixels(rgbToPix(a.e.FrameBuffer()))
	screen.DrawImage(a.tex, nil)

	if a.toastMsg != "" && time.Now().Before(a.toastUntil) {
		ebitenutil.DebugPrintAt(screen, a.toastMsg, 6, 4)
	}
	if a.paused {
		ebitenutil.DebugPrintAt(screen, "PAUSED", 6, 132)
	}
}

func (a *App) Layout(outW, outH int) (int, int) { return 160, 144 }

// rgbToPix converts the façade's []emu.RGB frame buffer into the tightly
// packed RGBA byte slice ebiten's Image.WritePixels expects.
func rgbToPix(fb []emu.RGB) []byte {
	pix := make([]byte, len(fb)*4)
	for i, c := range fb {
		pix[i*4+0] = c.R
		pix[i*4+1] = c.G
		pix[i*4+2] = c.B
		pix[i*4+3] = 0xFF
	}
	return pix
}

func (a *App) saveScreenshot() error {
	pix := rgbToPix(a.e.FrameBuffer())
	img := &image.RGBA{
		Pix:    pix,
		Stride: 4 * 160,
		Rect:   image.Rect(0, 0, 160, 144),
	}
	ts := time.Now().Format("20060102_150405")
	f, err := os.Create(fmt.Sprintf("screenshot_%s.png", ts))
	if err != nil {
		return err
	}
	defer f.Close()
	return png.Encode(f, img)
}
