package teachtiles

import (
	"encoding/binary"
	"errors"

	Tt "github.com/maroda/teachtiles/types"
)

// ErrShortPacket is returned when fewer than five bytes arrive
var ErrShortPacket = errors.New("short packet")

// EncodePacket builds the wire packet for a completed note:
//
//	[note][dur>>24][dur>>16][dur>>8][dur]
//
// The note is written as received, it is not clamped here.
func EncodePacket(note uint8, durationMS uint32) Tt.NotePacket {
	var p Tt.NotePacket
	p[0] = note
	binary.BigEndian.PutUint32(p[1:], durationMS)
	return p
}

// DecodePacket is the exact inverse of EncodePacket.
// Bytes beyond the fifth are ignored.
func DecodePacket(b []byte) (uint8, uint32, error) {
	if len(b) < Tt.PacketSize {
		return 0, 0, ErrShortPacket
	}
	return b[0], binary.BigEndian.Uint32(b[1:Tt.PacketSize]), nil
}
