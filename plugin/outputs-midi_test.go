//go:build !nomidi

package plugin_test

import (
	"sync"
	"testing"
	"time"

	Tp "github.com/maroda/teachtiles/plugin"
	"gitlab.com/gomidi/midi/v2"
)

func TestMIDIThru_PlayNote(t *testing.T) {
	var (
		mu   sync.Mutex
		sent []midi.Message
	)
	thru := &Tp.MIDIThru{
		Send: func(msg midi.Message) error {
			mu.Lock()
			defer mu.Unlock()
			sent = append(sent, msg)
			return nil
		},
	}

	t.Run("Sends on then off", func(t *testing.T) {
		err := thru.PlayNote(60, 100, 10*time.Millisecond)
		assertError(t, err, nil)
		thru.Close()

		mu.Lock()
		defer mu.Unlock()
		assertInt(t, len(sent), 2)

		var ch, key, vel uint8
		if !sent[0].GetNoteStart(&ch, &key, &vel) || key != 60 || vel != 100 {
			t.Errorf("first message is not NoteOn 60/100: %s", sent[0])
		}
		if !sent[1].GetNoteEnd(&ch, &key) || key != 60 {
			t.Errorf("second message is not NoteOff 60: %s", sent[1])
		}
	})

	t.Run("Close releases a long hold", func(t *testing.T) {
		var (
			holdMu sync.Mutex
			held   []midi.Message
		)
		long := &Tp.MIDIThru{
			Send: func(msg midi.Message) error {
				holdMu.Lock()
				defer holdMu.Unlock()
				held = append(held, msg)
				return nil
			},
		}
		assertError(t, long.PlayNote(62, 90, 1000*time.Hour), nil)

		closed := make(chan struct{})
		go func() {
			long.Close()
			close(closed)
		}()
		select {
		case <-closed:
		case <-time.After(2 * time.Second):
			t.Fatal("Close blocked on a held note")
		}

		holdMu.Lock()
		defer holdMu.Unlock()
		assertInt(t, len(held), 2)
		var ch, key uint8
		if !held[1].GetNoteEnd(&ch, &key) || key != 62 {
			t.Errorf("note was not released: %s", held[1])
		}
	})

	t.Run("Rejects notes outside MIDI range", func(t *testing.T) {
		assertGotError(t, thru.PlayNote(200, 100, time.Millisecond))
	})

	t.Run("Returns Type", func(t *testing.T) {
		assertStringContains(t, thru.Type(), "MIDI")
	})
}
