package teachtiles

// Grid is the LED panel geometry. The strip behind it is wired
// serpentine: even rows run left to right, odd rows right to left.
type Grid struct {
	Width   int
	Height  int
	MinNote uint8 // lowest note mapped across the width
	MaxNote uint8 // highest note mapped across the width
}

func NewGrid(width, height int) Grid {
	return Grid{Width: width, Height: height, MinNote: 21, MaxNote: 108}
}

func (g Grid) Size() int { return g.Width * g.Height }

// XYToIndex clamps x and y into the grid and returns the strip index
func (g Grid) XYToIndex(x, y int) int {
	x = max(0, min(x, g.Width-1))
	y = max(0, min(y, g.Height-1))
	if y%2 == 0 {
		return y*g.Width + x
	}
	return y*g.Width + (g.Width - 1 - x)
}

// IndexToXY is the inverse of XYToIndex
func (g Grid) IndexToXY(idx int) (int, int) {
	y := idx / g.Width
	x := idx % g.Width
	if y%2 == 1 {
		x = g.Width - 1 - x
	}
	return x, y
}

// InBounds reports whether x, y is on the panel
func (g Grid) InBounds(x, y int) bool {
	return x >= 0 && x < g.Width && y >= 0 && y < g.Height
}

// NoteToIndex spreads the keyboard across the middle row
func (g Grid) NoteToIndex(note uint8) int {
	lo, hi := g.MinNote, g.MaxNote
	if lo == 0 && hi == 0 {
		lo, hi = 21, 108
	}
	note = max(lo, min(note, hi))
	span := int(hi) - int(lo) + 1
	rel := int(note - lo)
	return g.XYToIndex(rel*g.Width/span, g.Height/2)
}

// NoteToHue gives every pitch class its own spot on the colour wheel
func NoteToHue(note uint8) uint8 {
	return (note % 12) * (256 / 12)
}
