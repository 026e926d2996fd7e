package teachtiles_test

import (
	"sync"
	"testing"
	"time"

	"github.com/gdamore/tcell/v2"
	Td "github.com/maroda/teachtiles/display"
	Tt "github.com/maroda/teachtiles/types"
)

// recordingPanel keeps every frame it is shown
type recordingPanel struct {
	MU     sync.Mutex
	frames []Td.Frame
	err    error
}

func (rp *recordingPanel) Present(f Td.Frame) error {
	rp.MU.Lock()
	defer rp.MU.Unlock()
	rp.frames = append(rp.frames, f)
	return rp.err
}

func (rp *recordingPanel) count() int {
	rp.MU.Lock()
	defer rp.MU.Unlock()
	return len(rp.frames)
}

func (rp *recordingPanel) last(t *testing.T) Td.Frame {
	t.Helper()
	rp.MU.Lock()
	defer rp.MU.Unlock()
	if len(rp.frames) == 0 {
		t.Fatalf("no frame presented")
	}
	return rp.frames[len(rp.frames)-1]
}

// chanSource is a PacketSource fed by the test
type chanSource struct {
	packets chan []byte
	closed  bool
}

func newChanSource() *chanSource {
	return &chanSource{packets: make(chan []byte, 16)}
}

func (cs *chanSource) Packets() <-chan []byte { return cs.packets }
func (cs *chanSource) Close() error {
	if !cs.closed {
		cs.closed = true
		close(cs.packets)
	}
	return nil
}
func (cs *chanSource) Type() string { return "chan" }

type playedNote struct {
	note, velocity uint8
	duration       time.Duration
}

type fakeSink struct {
	MU     sync.Mutex
	played []playedNote
	closed bool
}

func (fs *fakeSink) PlayNote(note, velocity uint8, duration time.Duration) error {
	fs.MU.Lock()
	defer fs.MU.Unlock()
	fs.played = append(fs.played, playedNote{note, velocity, duration})
	return nil
}
func (fs *fakeSink) Close() error { fs.closed = true; return nil }
func (fs *fakeSink) Type() string { return "fake" }

func makeTestVisualizer(t *testing.T, w, h int) (*Td.Visualizer, *recordingPanel) {
	t.Helper()
	panel := &recordingPanel{}
	return Td.NewVisualizer(Td.NewGrid(w, h), panel), panel
}

func makeTestReceiver(t *testing.T) (*Td.Receiver, *chanSource, *recordingPanel) {
	t.Helper()
	viz, panel := makeTestVisualizer(t, 64, 64)
	src := newChanSource()
	return Td.NewReceiver(viz, src, nil), src, panel
}

// waitFor polls cond until it holds or the deadline passes
func waitFor(t *testing.T, d time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met after %v", d)
}

func mkTestScreen(t *testing.T, charset string) tcell.SimulationScreen {
	s := tcell.NewSimulationScreen(charset)
	if s == nil {
		t.Fatalf("Failed to get SimulationScreen")
	}
	if err := s.Init(); err != nil {
		t.Fatalf("Failed to init screen: %v", err)
	}
	return s
}

// Assertions //

func assertError(t testing.TB, got, want error) {
	t.Helper()
	if got != want {
		t.Errorf("got error %q want %q", got, want)
	}
}

func assertGotError(t testing.TB, got error) {
	t.Helper()
	if got == nil {
		t.Errorf("Expected an error but got %q", got)
	}
}

func assertStatus(t testing.TB, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("did not get correct status, got %d, want %d", got, want)
	}
}

func assertInt(t *testing.T, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("got %d want %d", got, want)
	}
}

func assertString(t *testing.T, got, want string) {
	t.Helper()
	if got != want {
		t.Errorf("got %q want %q", got, want)
	}
}

func assertColor(t *testing.T, got, want Td.RGB) {
	t.Helper()
	if got != want {
		t.Errorf("got color %s want %s", got, want)
	}
}

func assertMode(t *testing.T, got, want Tt.DisplayMode) {
	t.Helper()
	if got != want {
		t.Errorf("got mode %s want %s", Td.ModeName(got), Td.ModeName(want))
	}
}
