package teachtiles

// Frame is what gets pushed to the panels, pixels are in strip order
type Frame struct {
	Grid   Grid
	Pixels []RGB
}

func NewFrame(g Grid) Frame {
	return Frame{Grid: g, Pixels: make([]RGB, g.Size())}
}

// At reads by panel coordinate
func (f Frame) At(x, y int) RGB {
	if !f.Grid.InBounds(x, y) {
		return Black
	}
	return f.Pixels[f.Grid.XYToIndex(x, y)]
}

// Set ignores anything off the panel
func (f *Frame) Set(x, y int, c RGB) {
	if !f.Grid.InBounds(x, y) {
		return
	}
	f.Pixels[f.Grid.XYToIndex(x, y)] = c
}

// BlendAt mixes c into the pixel at x, y
func (f *Frame) BlendAt(x, y int, c RGB, amount uint8) {
	if !f.Grid.InBounds(x, y) {
		return
	}
	i := f.Grid.XYToIndex(x, y)
	f.Pixels[i] = Blend(f.Pixels[i], c, amount)
}

func (f *Frame) Fill(c RGB) {
	for i := range f.Pixels {
		f.Pixels[i] = c
	}
}

func (f *Frame) Clear() { f.Fill(Black) }

// Clone is a copy a panel may keep
func (f Frame) Clone() Frame {
	px := make([]RGB, len(f.Pixels))
	copy(px, f.Pixels)
	return Frame{Grid: f.Grid, Pixels: px}
}

// Lit counts pixels that are not black
func (f Frame) Lit() int {
	n := 0
	for _, p := range f.Pixels {
		if p != Black {
			n++
		}
	}
	return n
}
