//go:build !nomidi

package plugin

import (
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv"
)

// MIDISource feeds the bridge from a host MIDI input, e.g. a USB keyboard.
// Messages arrive already split, the raw bytes still go through the parser.
type MIDISource struct {
	Port  drivers.In
	stop  func()
	bytes chan []byte
	once  sync.Once
}

// OpenMIDISource picks a port by index ("0") or by name ("Digital Piano")
func OpenMIDISource(device string) (*MIDISource, error) {
	var (
		in  drivers.In
		err error
	)
	if n, aerr := strconv.Atoi(device); aerr == nil {
		in, err = midi.InPort(n)
	} else {
		in, err = midi.FindInPort(device)
	}
	if err != nil {
		slog.Error("Error opening MIDI input", slog.String("device", device), slog.Any("error", err))
		return nil, fmt.Errorf("error opening MIDI input %q: %w", device, err)
	}

	ms := &MIDISource{
		Port:  in,
		bytes: make(chan []byte, sourceBuffer),
	}

	stop, err := midi.ListenTo(in, func(msg midi.Message, _ int32) {
		raw := make([]byte, len(msg))
		copy(raw, msg)
		select {
		case ms.bytes <- raw:
		default:
			slog.Warn("Bridge busy, dropped MIDI message", slog.String("msg", msg.String()))
		}
	}, midi.HandleError(func(listenErr error) {
		slog.Warn("MIDI listener error", slog.String("device", in.String()), slog.Any("error", listenErr))
	}))
	if err != nil {
		return nil, fmt.Errorf("listen %q: %w", in.String(), err)
	}
	ms.stop = stop

	slog.Info("MIDI input opened", slog.String("port", in.String()))
	return ms, nil
}

func (ms *MIDISource) Bytes() <-chan []byte { return ms.bytes }

func (ms *MIDISource) Close() error {
	ms.once.Do(func() {
		if ms.stop != nil {
			ms.stop()
		}
		if ms.Port != nil {
			ms.Port.Close()
		}
		midi.CloseDriver()
	})
	return nil
}

func (ms *MIDISource) Type() string { return "midi" }

// MIDIInputs lists the host MIDI inputs for the CLI
func MIDIInputs() []string {
	var names []string
	for _, in := range midi.GetInPorts() {
		names = append(names, in.String())
	}
	return names
}
