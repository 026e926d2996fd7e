//go:build nomidi

package plugin

import (
	"fmt"
	"time"
)

type MIDIThru struct{}

func NewMIDIThru(port int) (*MIDIThru, error) {
	return nil, fmt.Errorf("MIDI support not compiled in this build")
}

func (m *MIDIThru) PlayNote(note, velocity uint8, duration time.Duration) error {
	return fmt.Errorf("MIDI support not compiled in this build")
}

func (m *MIDIThru) Flush() error { return nil }
func (m *MIDIThru) Close() error { return nil }
func (m *MIDIThru) Type() string { return "midi-disabled" }
