package audionode

import "strings"

// Presets are the 15-band equalizer mixes offered to users, keyed by lower-case name.
var Presets = map[string][]Band{
	"flat": flatBands(),
	"boost": {
		{0, -0.075}, {1, 0.125}, {2, 0.125}, {3, 0.1}, {4, 0.1},
		{5, 0.05}, {6, 0.075}, {7, 0.0}, {8, 0.0}, {9, 0.0},
		{10, 0.0}, {11, 0.0}, {12, 0.125}, {13, 0.15}, {14, 0.05},
	},
	"metal": {
		{0, 0.0}, {1, 0.1}, {2, 0.1}, {3, 0.15}, {4, 0.13},
		{5, 0.1}, {6, 0.0}, {7, 0.125}, {8, 0.175}, {9, 0.175},
		{10, 0.125}, {11, 0.125}, {12, 0.1}, {13, 0.075}, {14, 0.0},
	},
	"piano": {
		{0, -0.25}, {1, -0.25}, {2, -0.125}, {3, 0.0}, {4, 0.25},
		{5, 0.25}, {6, 0.0}, {7, -0.25}, {8, -0.25}, {9, 0.0},
		{10, 0.0}, {11, 0.5}, {12, 0.25}, {13, -0.025}, {14, 0.0},
	},
}

func flatBands() []Band {
	out := make([]Band, 15)
	for i := range out {
		out[i] = Band{Band: i}
	}
	return out
}

// PresetBands returns the bands for a preset name, case-insensitively.
func PresetBands(name string) ([]Band, bool) {
	b, ok := Presets[strings.ToLower(strings.TrimSpace(name))]
	return b, ok
}
