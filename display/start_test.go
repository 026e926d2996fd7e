package teachtiles_test

import (
	"context"
	"testing"
	"time"

	Td "github.com/maroda/teachtiles/display"
	Ts "github.com/maroda/teachtiles/server"
	Tt "github.com/maroda/teachtiles/types"
)

func testConfig(t *testing.T) *Ts.ConfigFile {
	t.Helper()
	c := Ts.DefaultConfig()
	c.Transport = Tt.TransportDatagram
	c.Datagram.Listen = "127.0.0.1:0"
	c.Grid = Ts.GridConfig{Width: 16, Height: 8}
	c.Notes = Ts.NoteRangeConfig{Min: 48, Max: 72}
	c.Visual.DefaultMS = 150
	c.Visual.MaxMS = 4000
	c.Visual.GlyphMS = 1200
	return c
}

func TestGridFromConfig(t *testing.T) {
	g := Td.GridFromConfig(testConfig(t))
	assertInt(t, g.Width, 16)
	assertInt(t, g.Height, 8)
	assertInt(t, g.NoteToIndex(48), g.XYToIndex(0, 4))
	assertInt(t, g.NoteToIndex(21), g.NoteToIndex(48))
}

func TestNewVisualizerFromConfig(t *testing.T) {
	v := Td.NewVisualizerFromConfig(testConfig(t), nil)
	v.ShowNote(60, 0, 100, 0)
	v.ShowNote(60, 10000, 100, 0)
	vis := v.Visuals()
	assertInt(t, int(vis[0].ExpireAtMS), 150)
	assertInt(t, int(vis[1].ExpireAtMS), 4000)
}

func TestOpenPacketSource(t *testing.T) {
	t.Run("Datagram listener", func(t *testing.T) {
		src, err := Td.OpenPacketSource(context.Background(), testConfig(t))
		assertError(t, err, nil)
		assertString(t, src.Type(), "datagram")
		src.Close()
	})

	t.Run("Peer client", func(t *testing.T) {
		c := testConfig(t)
		c.Transport = Tt.TransportPeer
		c.Peer.Dial = "ws://127.0.0.1:1/peer"
		src, err := Td.OpenPacketSource(context.Background(), c)
		assertError(t, err, nil)
		assertString(t, src.Type(), "peer")
		src.Close()
	})

	t.Run("Missing link device", func(t *testing.T) {
		c := testConfig(t)
		c.Transport = Tt.TransportLink
		c.Link.Device = "/dev/does-not-exist"
		_, err := Td.OpenPacketSource(context.Background(), c)
		assertGotError(t, err)
	})

	t.Run("Unknown transport", func(t *testing.T) {
		c := testConfig(t)
		c.Transport = "smoke-signal"
		_, err := Td.OpenPacketSource(context.Background(), c)
		assertGotError(t, err)
	})
}

func TestNewReceiverFromConfig(t *testing.T) {
	c := testConfig(t)
	c.Journal = t.TempDir()
	panel := &recordingPanel{}

	r, err := Td.NewReceiverFromConfig(context.Background(), c, panel, nil)
	assertError(t, err, nil)
	defer r.Close()

	assertInt(t, int(r.GlyphMS), 1200)
	if r.Journal == nil {
		t.Errorf("journal not opened")
	}
	if r.Supervisor == nil {
		t.Errorf("supervisor not created")
	}
	if r.Sink != nil {
		t.Errorf("MIDI thru should be off by default")
	}
}

func TestStartMatrix(t *testing.T) {
	c := testConfig(t)
	r, err := Td.NewReceiverFromConfig(context.Background(), c, &recordingPanel{}, nil)
	assertError(t, err, nil)
	defer r.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Td.StartMatrix(ctx, r, "127.0.0.1:0", Td.NewFrameHub(r.Visualizer.Grid))
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assertError(t, err, nil)
	case <-time.After(6 * time.Second):
		t.Fatalf("matrix did not stop")
	}
}
