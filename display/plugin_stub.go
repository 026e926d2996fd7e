//go:build nomidi

package teachtiles

import (
	"fmt"
	"log/slog"
)

func InitMIDIThru(r *Receiver, port int) error {
	slog.Warn("MIDI support not compiled in this build")
	return fmt.Errorf("MIDI support not available")
}

func (r *Receiver) getMIDIState(st *MatrixState) {}
