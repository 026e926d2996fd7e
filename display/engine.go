package teachtiles

import (
	"log/slog"
	"sync"

	Tt "github.com/maroda/teachtiles/types"
)

const (
	DefaultVisualMS = 200
	MaxVisualMS     = 8000

	// glyphTill is checked as a signed offset from now
	maxOverlayMS = 1<<31 - 1

	noteBlend     = 192
	centreBlend   = 220
	neighborBlend = 120
	hotThreshold  = 180
	hotOffset     = 160
)

// Panel is anything that can show a frame
type Panel interface {
	Present(Frame) error
}

// Panels fans a frame out to every panel, the first error is returned
type Panels []Panel

func (ps Panels) Present(f Frame) error {
	var first error
	for _, p := range ps {
		if err := p.Present(f); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Visualizer turns notes into frames. All methods are safe to call
// concurrently, but the receiver only ever drives it from one loop.
type Visualizer struct {
	MU        sync.Mutex
	Grid      Grid
	DefaultMS uint32
	MaxMS     uint32
	Panel     Panel

	frame     Frame
	visuals   []Tt.ActiveVisual
	mode      Tt.DisplayMode
	bitmap    []uint16
	glyphOn   bool
	glyphTill uint32
	glyph     GlyphStyle
	sweep     *Sweep
}

func NewVisualizer(g Grid, panel Panel) *Visualizer {
	return &Visualizer{
		Grid:      g,
		DefaultMS: DefaultVisualMS,
		MaxMS:     MaxVisualMS,
		Panel:     panel,
		frame:     NewFrame(g),
		mode:      Tt.ModeNormal,
		glyph:     DefaultGlyphStyle(g),
	}
}

// NoteBrightness maps velocity 0..127 to 30..255
func NoteBrightness(velocity uint8) uint8 {
	return uint8(min(int(velocity)*2+30, 255))
}

func (v *Visualizer) holdMS(durationMS uint32) uint32 {
	if durationMS == 0 {
		return v.DefaultMS
	}
	return min(durationMS, v.MaxMS)
}

// ShowNote starts a visual for a completed note
func (v *Visualizer) ShowNote(note uint8, durationMS uint32, velocity uint8, nowMS uint32) {
	v.MU.Lock()
	defer v.MU.Unlock()

	av := Tt.ActiveVisual{
		PixelIndex: v.Grid.NoteToIndex(note),
		Hue:        NoteToHue(note),
		Velocity:   velocity,
		ExpireAtMS: nowMS + v.holdMS(durationMS),
		TrailLevel: NoteBrightness(velocity),
	}
	v.visuals = append(v.visuals, av)

	// overlays and the bitmap own the frame until they end
	if v.mode != Tt.ModeNormal || v.glyphOn || v.sweep != nil {
		return
	}

	x, y := v.Grid.IndexToXY(av.PixelIndex)
	v.crossAt(x, y, av.Hue, av.TrailLevel)
	v.present()
}

func (v *Visualizer) crossAt(x, y int, hue, level uint8) {
	v.frame.BlendAt(x, y, HSV(hue, noteSaturation, level), noteBlend)
	v.frame.BlendAt(x-1, y, HSV(hue, noteSaturation, level/2), noteBlend)
	v.frame.BlendAt(x+1, y, HSV(hue, noteSaturation, level/2), noteBlend)
	v.frame.BlendAt(x, y-1, HSV(hue, noteSaturation, level/3), noteBlend)
	v.frame.BlendAt(x, y+1, HSV(hue, noteSaturation, level/3), noteBlend)
}

// Tick advances time. Overlays win over the bitmap, the bitmap wins over notes.
func (v *Visualizer) Tick(nowMS uint32) {
	v.MU.Lock()
	defer v.MU.Unlock()

	switch {
	case v.glyphOn:
		if int32(v.glyphTill-nowMS) <= 0 {
			v.glyphOn = false
			v.mode = Tt.ModeNormal
			v.bitmap = nil
			v.frame.Clear()
			slog.Debug("Glyph overlay ended")
		} else {
			v.frame.Clear()
			DrawCSharp(&v.frame, v.glyph)
		}
	case v.sweep != nil:
		step, ok := v.sweep.At(nowMS)
		if !ok {
			slog.Info("Sweep finished", slog.String("sweep", v.sweep.Name))
			v.sweep = nil
			v.frame.Clear()
			break
		}
		if v.sweep.Draw(&v.frame, step) {
			slog.Debug("Sweep step",
				slog.String("sweep", v.sweep.Name),
				slog.String("step", v.sweep.Steps[step].Label),
				slog.Int("row", v.sweep.Steps[step].Row))
		}
	case v.mode == Tt.ModeStaticBitmap:
		v.drawBitmap()
	default:
		v.decay(nowMS)
		v.composite()
	}
	v.present()
}

func (v *Visualizer) decay(nowMS uint32) {
	for i := range v.visuals {
		if v.visuals[i].TrailLevel > 10 {
			v.visuals[i].TrailLevel = uint8(int(v.visuals[i].TrailLevel) * 3 / 4)
		} else {
			v.visuals[i].TrailLevel = 0
		}
	}

	// keep order, drop only what has expired and faded
	kept := v.visuals[:0]
	for _, av := range v.visuals {
		if int32(av.ExpireAtMS-nowMS) <= 0 && av.TrailLevel == 0 {
			continue
		}
		kept = append(kept, av)
	}
	v.visuals = kept
}

func (v *Visualizer) composite() {
	v.frame.Clear()
	n := len(v.frame.Pixels)
	for _, av := range v.visuals {
		level := av.TrailLevel
		col := HSV(av.Hue, noteSaturation, level)
		if level > hotThreshold {
			col = Blend(col, White, level-hotOffset)
		}
		if av.PixelIndex >= 0 && av.PixelIndex < n {
			v.frame.Pixels[av.PixelIndex] = Blend(v.frame.Pixels[av.PixelIndex], col, centreBlend)
		}
		if l := av.PixelIndex - 1; l >= 0 && l < n {
			v.frame.Pixels[l] = Blend(v.frame.Pixels[l], col, neighborBlend)
		}
		if r := av.PixelIndex + 1; r >= 0 && r < n {
			v.frame.Pixels[r] = Blend(v.frame.Pixels[r], col, neighborBlend)
		}
	}
}

func (v *Visualizer) drawBitmap() {
	for y := 0; y < v.Grid.Height; y++ {
		for x := 0; x < v.Grid.Width; x++ {
			v.frame.Pixels[v.Grid.XYToIndex(x, y)] = Expand565(v.bitmap[y*v.Grid.Width+x])
		}
	}
}

func (v *Visualizer) present() {
	if v.Panel == nil {
		return
	}
	if err := v.Panel.Present(v.frame.Clone()); err != nil {
		slog.Warn("Panel present failed", slog.Any("error", err))
	}
}

// SetStaticBitmap freezes the panel on a row-major RGB565 image
func (v *Visualizer) SetStaticBitmap(buf []uint16) bool {
	if buf == nil {
		return false
	}
	if len(buf) != v.Grid.Size() {
		slog.Warn("Static bitmap ignored, wrong size",
			slog.Int("got", len(buf)),
			slog.Int("want", v.Grid.Size()))
		return false
	}

	v.MU.Lock()
	defer v.MU.Unlock()
	v.bitmap = make([]uint16, len(buf))
	copy(v.bitmap, buf)
	v.mode = Tt.ModeStaticBitmap
	if !v.glyphOn && v.sweep == nil {
		v.drawBitmap()
		v.present()
	}
	slog.Info("Static bitmap active")
	return true
}

func (v *Visualizer) ClearStaticBitmap() {
	v.MU.Lock()
	defer v.MU.Unlock()
	v.bitmap = nil
	v.mode = Tt.ModeNormal
	v.frame.Clear()
	v.present()
}

// ShowGlyph puts the C# overlay up for durationMS
func (v *Visualizer) ShowGlyph(durationMS, nowMS uint32) {
	v.MU.Lock()
	defer v.MU.Unlock()
	v.glyphOn = true
	v.glyphTill = nowMS + min(durationMS, maxOverlayMS)
	v.frame.Clear()
	DrawCSharp(&v.frame, v.glyph)
	v.present()
}

// StartDemo fills the panel magenta for durationMS
func (v *Visualizer) StartDemo(durationMS, nowMS uint32) {
	v.startSweep(DemoSweep(durationMS, nowMS), nowMS)
}

// StartDiagnostic runs the full panel check
func (v *Visualizer) StartDiagnostic(nowMS uint32) {
	v.startSweep(DiagnosticSweep(v.Grid, nowMS), nowMS)
}

func (v *Visualizer) startSweep(s *Sweep, nowMS uint32) {
	v.MU.Lock()
	defer v.MU.Unlock()
	v.sweep = s
	slog.Info("Sweep started", slog.String("sweep", s.Name), slog.Int("totalMs", int(s.TotalMS())))
	if step, ok := s.At(nowMS); ok && !v.glyphOn {
		s.Draw(&v.frame, step)
		v.present()
	}
}

func (v *Visualizer) Mode() Tt.DisplayMode {
	v.MU.Lock()
	defer v.MU.Unlock()
	return v.mode
}

// Overlay names whatever is drawing over the mode, or ""
func (v *Visualizer) Overlay() string {
	v.MU.Lock()
	defer v.MU.Unlock()
	switch {
	case v.glyphOn:
		return "glyph"
	case v.sweep != nil:
		return v.sweep.Name
	}
	return ""
}

func (v *Visualizer) Visuals() []Tt.ActiveVisual {
	v.MU.Lock()
	defer v.MU.Unlock()
	out := make([]Tt.ActiveVisual, len(v.visuals))
	copy(out, v.visuals)
	return out
}

// VisualCount is len(Visuals()) without the copy
func (v *Visualizer) VisualCount() int {
	v.MU.Lock()
	defer v.MU.Unlock()
	return len(v.visuals)
}

func (v *Visualizer) Frame() Frame {
	v.MU.Lock()
	defer v.MU.Unlock()
	return v.frame.Clone()
}
