package emu

// cgbCompatSetNames and cgbCompatSets back autoCompatPaletteFromHeader
// (compat_tables.go): a small curated set of DMG tint palettes approximating
// the real CGB boot ROM's title-based "compatibility palette" selection,
// each giving BG, OBP0, and OBP1 their own four shades.
var cgbCompatSetNames = []string{"Green", "Sepia", "Blue", "Red", "Pastel", "Orange"}

var cgbCompatSets = [6][3][4]RGB{
	{ // 0: Green (classic DMG)
		{{155, 188, 15}, {139, 172, 15}, {48, 98, 48}, {15, 56, 15}},
		{{155, 188, 15}, {139, 172, 15}, {48, 98, 48}, {15, 56, 15}},
		{{155, 188, 15}, {139, 172, 15}, {48, 98, 48}, {15, 56, 15}},
	},
	{ // 1: Sepia
		{{255, 246, 211}, {206, 159, 95}, {140, 85, 44}, {54, 29, 19}},
		{{255, 246, 211}, {216, 177, 130}, {150, 99, 58}, {62, 34, 22}},
		{{255, 246, 211}, {196, 139, 80}, {130, 75, 38}, {48, 25, 16}},
	},
	{ // 2: Blue
		{{224, 248, 255}, {130, 181, 231}, {64, 104, 180}, {16, 32, 80}},
		{{224, 248, 255}, {140, 170, 230}, {70, 100, 190}, {20, 30, 90}},
		{{224, 248, 255}, {120, 190, 230}, {58, 110, 170}, {12, 34, 70}},
	},
	{ // 3: Red
		{{255, 239, 206}, {236, 142, 110}, {178, 58, 48}, {80, 16, 16}},
		{{255, 239, 206}, {246, 160, 120}, {190, 70, 55}, {90, 20, 20}},
		{{255, 239, 206}, {226, 130, 100}, {166, 48, 40}, {70, 12, 12}},
	},
	{ // 4: Pastel
		{{255, 247, 245}, {246, 200, 221}, {175, 165, 224}, {93, 92, 160}},
		{{255, 247, 245}, {200, 230, 201}, {140, 190, 165}, {70, 120, 110}},
		{{255, 247, 245}, {253, 224, 162}, {222, 165, 105}, {120, 80, 60}},
	},
	{ // 5: Orange
		{{255, 231, 186}, {248, 178, 96}, {208, 112, 32}, {104, 48, 8}},
		{{255, 231, 186}, {248, 190, 110}, {214, 124, 44}, {112, 56, 14}},
		{{255, 231, 186}, {240, 166, 82}, {196, 100, 24}, {96, 40, 4}},
	},
}

// AutoDMGPalette picks and applies a compatibility tint palette for the
// currently loaded cartridge, based on its title (spec.md §6.3's header
// Title field), the way a real CGB chooses a boot palette for GB-only
// carts. Returns the palette id applied.
func (e *Emulator) AutoDMGPalette() int {
	id, _ := autoCompatPaletteFromHeader(e.bus.Cart().Header)
	return e.SetCompatPalette(id)
}

// SetCompatPalette applies one of the curated compatibility palettes by id
// (wrapping into range) and returns the id actually applied.
func (e *Emulator) SetCompatPalette(id int) int {
	n := len(cgbCompatSets)
	id = ((id % n) + n) % n
	set := cgbCompatSets[id]
	e.SetDMGDisplayColour(set[0], set[1], set[2])
	return id
}

// CompatPaletteName returns the curated palette's display name.
func CompatPaletteName(id int) string {
	n := len(cgbCompatSetNames)
	id = ((id % n) + n) % n
	return cgbCompatSetNames[id]
}
