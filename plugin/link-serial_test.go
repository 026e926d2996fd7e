package plugin_test

import (
	"bytes"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	Tp "github.com/maroda/teachtiles/plugin"
)

func TestLinkTransport_Send(t *testing.T) {
	w := &recordingWriter{}
	link := Tp.NewLinkTransport(w)

	t.Run("Ready while open", func(t *testing.T) {
		if !link.Ready() {
			t.Error("expected link to be ready")
		}
	})

	t.Run("Packets are written back to back", func(t *testing.T) {
		assertError(t, link.Send([]byte{60, 0, 0, 0, 200}), nil)
		assertError(t, link.Send([]byte{62, 0, 0, 1, 0}), nil)
		link.Close()

		want := []byte{60, 0, 0, 0, 200, 62, 0, 0, 1, 0}
		if !bytes.Equal(w.Bytes(), want) {
			t.Errorf("got %v, want %v", w.Bytes(), want)
		}
		if !w.closed {
			t.Error("underlying writer was not closed")
		}
	})

	t.Run("Send after close is not ready", func(t *testing.T) {
		assertError(t, link.Send([]byte{1, 2, 3, 4, 5}), Tp.ErrNotReady)
	})
}

func TestLinkTransport_WriteFailure(t *testing.T) {
	link := Tp.NewLinkTransport(&failingWriter{})
	defer link.Close()

	assertError(t, link.Send([]byte{60, 0, 0, 0, 1}), nil)

	deadline := time.Now().Add(2 * time.Second)
	for link.Ready() && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if link.Ready() {
		t.Fatal("link still ready after a failed write")
	}
	assertError(t, link.Send([]byte{60, 0, 0, 0, 1}), Tp.ErrNotReady)
}

func TestFrameSource(t *testing.T) {
	stream := []byte{
		60, 0, 0, 0, 200,
		64, 0, 0, 1, 0,
		67, 0, // trailing partial packet
	}
	src := Tp.NewReaderSource(io.NopCloser(bytes.NewReader(stream)), "test")
	frames := Tp.NewFrameSource(src)
	defer frames.Close()

	var got [][]byte
	for pkt := range frames.Packets() {
		got = append(got, pkt)
	}

	assertInt(t, len(got), 2)
	if !bytes.Equal(got[0], stream[0:5]) || !bytes.Equal(got[1], stream[5:10]) {
		t.Errorf("frames split wrong: %v", got)
	}
	assertStringContains(t, frames.Type(), "test")
}

// Helpers //

type recordingWriter struct {
	mu     sync.Mutex
	buf    bytes.Buffer
	closed bool
}

func (rw *recordingWriter) Write(p []byte) (int, error) {
	rw.mu.Lock()
	defer rw.mu.Unlock()
	return rw.buf.Write(p)
}

func (rw *recordingWriter) Close() error {
	rw.mu.Lock()
	defer rw.mu.Unlock()
	rw.closed = true
	return nil
}

func (rw *recordingWriter) Bytes() []byte {
	rw.mu.Lock()
	defer rw.mu.Unlock()
	return rw.buf.Bytes()
}

type failingWriter struct{}

func (fw *failingWriter) Write(p []byte) (int, error) { return 0, errors.New("rfcomm hangup") }
func (fw *failingWriter) Close() error                { return nil }
