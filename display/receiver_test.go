package teachtiles_test

import (
	"errors"
	"testing"
	"time"

	Td "github.com/maroda/teachtiles/display"
	Tp "github.com/maroda/teachtiles/plugin"
	Ts "github.com/maroda/teachtiles/server"
	Tt "github.com/maroda/teachtiles/types"
)

type memJournal struct {
	notes []Tt.NoteEvent
}

func (mj *memJournal) WriteNote(note *Tt.NoteEvent, at time.Time) error {
	mj.notes = append(mj.notes, *note)
	return nil
}
func (mj *memJournal) QueryRange(start, end time.Time) ([]*Tp.JournalEntry, error) {
	var out []*Tp.JournalEntry
	for _, n := range mj.notes {
		out = append(out, &Tp.JournalEntry{At: start, Note: n.Note, Velocity: n.Velocity, DurationMS: n.DurationMS})
	}
	return out, nil
}
func (mj *memJournal) Flush() error { return nil }
func (mj *memJournal) Close() error { return nil }
func (mj *memJournal) Type() string { return "mem" }

func TestReceiver_HandlePacket(t *testing.T) {
	t.Run("Decoded note is shown at the default velocity", func(t *testing.T) {
		r, _, _ := makeTestReceiver(t)
		pkt := Ts.EncodePacket(60, 500)

		if !r.HandlePacket(pkt[:], 1000) {
			t.Fatalf("packet rejected")
		}
		vis := r.Visualizer.Visuals()
		assertInt(t, len(vis), 1)
		assertInt(t, int(vis[0].Velocity), Td.DefaultVelocity)
		assertInt(t, int(vis[0].ExpireAtMS), 1500)
		assertInt(t, int(r.Received.Load()), 1)
	})

	t.Run("Short packet is counted and dropped", func(t *testing.T) {
		r, _, _ := makeTestReceiver(t)
		if r.HandlePacket([]byte{60, 0, 0}, 0) {
			t.Errorf("short packet accepted")
		}
		assertInt(t, int(r.Short.Load()), 1)
		assertInt(t, r.Visualizer.VisualCount(), 0)
	})

	t.Run("Sink and journal get the note", func(t *testing.T) {
		r, _, _ := makeTestReceiver(t)
		sink := &fakeSink{}
		journal := &memJournal{}
		r.Sink = sink
		r.Journal = journal

		pkt := Ts.EncodePacket(64, 250)
		r.HandlePacket(pkt[:], 0)

		assertInt(t, len(sink.played), 1)
		assertInt(t, int(sink.played[0].note), 64)
		if sink.played[0].duration != 250*time.Millisecond {
			t.Errorf("sink duration = %v", sink.played[0].duration)
		}
		assertInt(t, len(journal.notes), 1)
		assertInt(t, int(journal.notes[0].DurationMS), 250)
	})

	t.Run("Sink hold is capped like the visual", func(t *testing.T) {
		r, _, _ := makeTestReceiver(t)
		sink := &fakeSink{}
		r.Sink = sink

		r.HandlePacket([]byte{60, 0xFF, 0xFF, 0xFF, 0xFF}, 0)

		assertInt(t, len(sink.played), 1)
		if sink.played[0].duration != Td.MaxVisualMS*time.Millisecond {
			t.Errorf("sink duration = %v, want %v", sink.played[0].duration, Td.MaxVisualMS*time.Millisecond)
		}
		assertInt(t, int(r.Visualizer.Visuals()[0].ExpireAtMS), Td.MaxVisualMS)
	})
}

func TestReceiver_Commands(t *testing.T) {
	t.Run("Submit never blocks", func(t *testing.T) {
		r, _, _ := makeTestReceiver(t)
		for i := 0; i < 16; i++ {
			assertError(t, r.Submit(Td.Command{Kind: Td.CmdGlyph}), nil)
		}
		err := r.Submit(Td.Command{Kind: Td.CmdGlyph})
		if !errors.Is(err, Td.ErrBusy) {
			t.Errorf("got %v, want ErrBusy", err)
		}
	})

	t.Run("Apply drives the visualizer", func(t *testing.T) {
		r, _, _ := makeTestReceiver(t)
		v := r.Visualizer

		r.Apply(Td.Command{Kind: Td.CmdBitmap, Bitmap: make([]uint16, 64*64)}, 0)
		assertMode(t, v.Mode(), Tt.ModeStaticBitmap)

		r.Apply(Td.Command{Kind: Td.CmdClearBitmap}, 0)
		assertMode(t, v.Mode(), Tt.ModeNormal)

		r.Apply(Td.Command{Kind: Td.CmdGlyph}, 0)
		assertString(t, v.Overlay(), "glyph")
		v.Tick(r.GlyphMS)

		r.Apply(Td.Command{Kind: Td.CmdDemo, MS: 100}, 0)
		assertString(t, v.Overlay(), "demo")
		v.Tick(100)

		r.Apply(Td.Command{Kind: Td.CmdDiagnostic}, 0)
		assertString(t, v.Overlay(), "diagnostic")
	})

	t.Run("Command names", func(t *testing.T) {
		assertString(t, Td.CmdBitmap.String(), "bitmap")
		assertString(t, Td.CmdDiagnostic.String(), "diagnostic")
		assertString(t, Td.CommandKind(99).String(), "unknown")
	})
}

func TestReceiver_Close(t *testing.T) {
	r, src, _ := makeTestReceiver(t)
	sink := &fakeSink{}
	r.Sink = sink
	r.NewRenderSupervisor(0).Start()

	assertError(t, r.Close(), nil)
	if !src.closed || !sink.closed {
		t.Errorf("source closed %v, sink closed %v", src.closed, sink.closed)
	}
}
