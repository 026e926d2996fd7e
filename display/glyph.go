package teachtiles

// 5x7 glyphs, one string per row, '#' is lit
var (
	glyphC = [7]string{
		".###.",
		"#...#",
		"#....",
		"#....",
		"#....",
		"#...#",
		".###.",
	}
	glyphSharp = [7]string{
		".#.#.",
		".#.#.",
		"#####",
		".#.#.",
		"#####",
		".#.#.",
		".#.#.",
	}
)

const (
	glyphW = 5
	glyphH = 7
)

// GlyphStyle places the C# overlay on the panel
type GlyphStyle struct {
	X, Y   int // top left of the 'C'
	Scale  int // pixels per glyph cell
	Gap    int // cells between the glyphs
	CColor RGB
	SColor RGB
}

// DefaultGlyphStyle centres the pair at the largest scale that fits
func DefaultGlyphStyle(g Grid) GlyphStyle {
	const gap = 1
	scale := min(g.Width/(glyphW*2+gap+2), g.Height/(glyphH+2))
	scale = max(scale, 1)
	w := (glyphW*2 + gap) * scale
	h := glyphH * scale
	return GlyphStyle{
		X:      (g.Width - w) / 2,
		Y:      (g.Height - h) / 2,
		Scale:  scale,
		Gap:    gap,
		CColor: RGB{0, 160, 255},
		SColor: White,
	}
}

// drawGlyph paints one glyph, anything off the panel is clipped
func drawGlyph(f *Frame, glyph [7]string, x0, y0, scale int, c RGB) {
	for row := 0; row < glyphH; row++ {
		for col := 0; col < glyphW; col++ {
			if glyph[row][col] != '#' {
				continue
			}
			for dy := 0; dy < scale; dy++ {
				for dx := 0; dx < scale; dx++ {
					f.Set(x0+col*scale+dx, y0+row*scale+dy, c)
				}
			}
		}
	}
}

// DrawCSharp paints 'C' with '#' to its right
func DrawCSharp(f *Frame, s GlyphStyle) {
	drawGlyph(f, glyphC, s.X, s.Y, s.Scale, s.CColor)
	drawGlyph(f, glyphSharp, s.X+(glyphW+s.Gap)*s.Scale, s.Y, s.Scale, s.SColor)
}
