//go:build !nomidi

package plugin

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv"
)

// MaxThruHold bounds how long a thru note sounds
const MaxThruHold = 8 * time.Second

// MIDIThru replays every shown note on a MIDI out port
type MIDIThru struct {
	Port    drivers.Out
	Send    func(msg midi.Message) error
	Channel uint8
	WG      sync.WaitGroup

	doneOnce  sync.Once
	closeOnce sync.Once
	done      chan struct{}
}

// stopped is closed by Close, held notes are released early
func (mt *MIDIThru) stopped() chan struct{} {
	mt.doneOnce.Do(func() { mt.done = make(chan struct{}) })
	return mt.done
}

func NewMIDIThru(port int) (*MIDIThru, error) {
	out, err := midi.OutPort(port)
	if err != nil {
		slog.Error("Error opening MIDI port", slog.Int("port", port))
		return nil, fmt.Errorf("error opening MIDI port: %w", err)
	}

	send, err := midi.SendTo(out)
	if err != nil {
		slog.Error("Error sending to MIDI port", slog.Int("port", port))
		return nil, fmt.Errorf("error sending to MIDI port: %w", err)
	}

	slog.Info("MIDI thru enabled", slog.String("port", out.String()))
	return &MIDIThru{
		Port: out,
		Send: send,
	}, nil
}

func (mt *MIDIThru) SendNoteOnMIDI(note, velocity uint8) error {
	return mt.Send(midi.NoteOn(mt.Channel, note, velocity))
}

func (mt *MIDIThru) SendNoteOffMIDI(note uint8) error {
	return mt.Send(midi.NoteOff(mt.Channel, note))
}

// PlayNote sounds the note for its duration without blocking the caller
func (mt *MIDIThru) PlayNote(note, velocity uint8, duration time.Duration) error {
	if note > 127 {
		return fmt.Errorf("note %d out of MIDI range", note)
	}
	if velocity == 0 || velocity > 127 {
		velocity = 100
	}
	duration = min(duration, MaxThruHold)
	done := mt.stopped()

	mt.WG.Add(1)
	go func() {
		defer mt.WG.Done()
		if err := mt.SendNoteOnMIDI(note, velocity); err != nil {
			slog.Error("NoteOn event failed", slog.Any("error", err))
			return
		}
		hold := time.NewTimer(duration)
		defer hold.Stop()
		select {
		case <-hold.C:
		case <-done:
		}
		if err := mt.SendNoteOffMIDI(note); err != nil {
			slog.Error("NoteOff event failed, attempting Flush", slog.Any("error", err))
			mt.Flush()
		}
	}()

	return nil
}

func (mt *MIDIThru) Flush() error {
	return mt.Send(midi.ControlChange(mt.Channel, midi.AllNotesOff, midi.Off))
}

// Close releases held notes and waits for their NoteOffs
func (mt *MIDIThru) Close() error {
	mt.closeOnce.Do(func() { close(mt.stopped()) })
	mt.WG.Wait()

	if mt.Port != nil {
		mt.Port.Close()
		midi.CloseDriver()
	}
	return nil
}

func (mt *MIDIThru) Type() string { return "MIDI" }
