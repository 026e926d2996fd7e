package teachtiles

// SweepStep is one timed stage of a sweep: a full fill or a single lit row
type SweepStep struct {
	Color      RGB
	Row        int // -1 fills the panel
	DurationMS uint32
	Label      string
}

// Sweep walks through its steps on the tick clock, it never sleeps
type Sweep struct {
	Name    string
	Steps   []SweepStep
	startMS uint32
	current int
}

func NewSweep(name string, steps []SweepStep, nowMS uint32) *Sweep {
	return &Sweep{Name: name, Steps: steps, startMS: nowMS, current: -1}
}

// DemoSweep fills the panel magenta for ms
func DemoSweep(ms uint32, nowMS uint32) *Sweep {
	return NewSweep("demo", []SweepStep{
		{Color: Magenta, Row: -1, DurationMS: ms, Label: "magenta"},
	}, nowMS)
}

// DiagnosticSweep is the panel bring-up check: white, each channel, then every row
func DiagnosticSweep(g Grid, nowMS uint32) *Sweep {
	steps := []SweepStep{
		{Color: White, Row: -1, DurationMS: 30000, Label: "white"},
		{Color: Red, Row: -1, DurationMS: 3000, Label: "red"},
		{Color: Green, Row: -1, DurationMS: 3000, Label: "green"},
		{Color: Blue, Row: -1, DurationMS: 3000, Label: "blue"},
		{Color: White, Row: -1, DurationMS: 3000, Label: "white"},
	}
	for y := 0; y < g.Height; y++ {
		steps = append(steps, SweepStep{Color: Red, Row: y, DurationMS: 200, Label: "row"})
	}
	return NewSweep("diagnostic", steps, nowMS)
}

// At returns the step for nowMS, or false once the sweep is over
func (s *Sweep) At(nowMS uint32) (int, bool) {
	elapsed := nowMS - s.startMS
	var end uint32
	for i, st := range s.Steps {
		end += st.DurationMS
		if elapsed < end {
			return i, true
		}
	}
	return len(s.Steps), false
}

// Draw paints the step into f, reporting whether the step changed since last time
func (s *Sweep) Draw(f *Frame, step int) bool {
	st := s.Steps[step]
	f.Clear()
	if st.Row < 0 {
		f.Fill(st.Color)
	} else {
		for x := 0; x < f.Grid.Width; x++ {
			f.Set(x, st.Row, st.Color)
		}
	}
	changed := step != s.current
	s.current = step
	return changed
}

// TotalMS is how long the whole sweep runs
func (s *Sweep) TotalMS() uint32 {
	var total uint32
	for _, st := range s.Steps {
		total += st.DurationMS
	}
	return total
}
