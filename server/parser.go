package teachtiles

import (
	Tt "github.com/maroda/teachtiles/types"
)

// ParseState is where the Parser is inside a channel message
type ParseState int

const (
	WaitStatus ParseState = iota
	WaitNote
	WaitVelocity
)

// Parser turns a raw MIDI byte stream into NoteOn/NoteOff events.
// It only understands note messages. Any other channel message is read
// as if it were a note pair and dropped, which is enough for a piano.
//
// The zero value is ready to use and all state lives in the value,
// so a partial message is resumed on the next call.
type Parser struct {
	state  ParseState
	status byte
	note   byte
}

// State reports the current parse state
func (p *Parser) State() ParseState {
	return p.state
}

// Feed consumes a single byte and returns an event when a pair completes
func (p *Parser) Feed(b byte) (Tt.NoteEvent, bool) {
	// Any status byte starts over, whatever was half read is gone
	if b&0x80 != 0 {
		p.status = b
		p.state = WaitNote
		return Tt.NoteEvent{}, false
	}

	switch p.state {
	case WaitNote:
		p.note = b
		p.state = WaitVelocity
	case WaitVelocity:
		// running status: the next pair reuses the stored status byte
		p.state = WaitNote
		nibble := p.status & 0xF0
		switch {
		case nibble == 0x90 && b > 0:
			return Tt.NoteEvent{Note: p.note, Kind: Tt.NoteOn, Velocity: b}, true
		case nibble == 0x80, nibble == 0x90 && b == 0:
			return Tt.NoteEvent{Note: p.note, Kind: Tt.NoteOff}, true
		}
	default:
		// data with no status seen yet
		p.state = WaitStatus
	}

	return Tt.NoteEvent{}, false
}

// Parse feeds every byte in buf, calling emit for each completed pair.
// It returns the number of events emitted.
func (p *Parser) Parse(buf []byte, emit func(Tt.NoteEvent)) int {
	count := 0
	for _, b := range buf {
		if ev, ok := p.Feed(b); ok {
			count++
			if emit != nil {
				emit(ev)
			}
		}
	}
	return count
}
