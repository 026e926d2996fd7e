//go:build !nomidi

package teachtiles

import (
	Tp "github.com/maroda/teachtiles/plugin"
)

func (r *Receiver) getMIDIState(st *MatrixState) {
	// If the sink is MIDI thru, fill in the port
	if thru, ok := r.Sink.(*Tp.MIDIThru); ok && thru.Port != nil {
		st.MIDIPort = thru.Port.String()
	}
}
