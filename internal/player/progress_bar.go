package player

// ProgressBar draws a width-cell track with a knob at progress (0..1).
func ProgressBar(width int, progress float64) string {
	if width <= 0 {
		return ""
	}
	progress = max(0, min(1, progress))
	knob := min(int(float64(width)*progress), width-1)
	out := make([]rune, width)
	for i := range out {
		out[i] = '▬'
	}
	out[knob] = '🔘'
	return string(out)
}
