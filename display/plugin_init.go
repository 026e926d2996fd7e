//go:build !nomidi

package teachtiles

import (
	"log/slog"

	Tp "github.com/maroda/teachtiles/plugin"
)

// InitMIDIThru plays every received note out of a MIDI port
func InitMIDIThru(r *Receiver, port int) error {
	thru, err := Tp.NewMIDIThru(port)
	if err != nil {
		slog.Error("Failed to open MIDI thru",
			slog.Int("port", port),
			slog.Any("error", err))
		return err
	}
	r.Sink = thru
	slog.Info("MIDI thru enabled", slog.String("port", thru.Port.String()))
	return nil
}
