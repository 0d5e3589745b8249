package ui

// Config contains window/audio related settings for the ebiten front end.
// Kept small on purpose: a ROM browser, on-disk settings persistence, and
// per-ROM preferences are host-app conveniences with no corresponding
// emu.Emulator API to drive them, so they're left to whatever embeds this
// package rather than faked here.
type Config struct {
	Title       string // window title
	Scale       int    // integer upscaling factor
	AudioStereo bool   // if true, output true stereo; if false, fold to mono
}

// Defaults fills missing fields with reasonable defaults.
func (c *Config) Defaults() {
	if c.Title == "" {
		c.Title = "gbemu"
	}
	if c.Scale <= 0 {
		c.Scale = 3
	}
}
