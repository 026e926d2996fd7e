//go:build nomidi

package plugin

import "fmt"

type MIDISource struct{}

func OpenMIDISource(device string) (*MIDISource, error) {
	return nil, fmt.Errorf("MIDI support not compiled in this build")
}

func (m *MIDISource) Bytes() <-chan []byte { return nil }
func (m *MIDISource) Close() error         { return nil }
func (m *MIDISource) Type() string         { return "midi-disabled" }

func MIDIInputs() []string { return nil }
