package teachtiles

import "fmt"

var noteNames = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// NoteName formats a MIDI note number, 60 is "C4"
func NoteName(note uint8) string {
	if note > 127 {
		return fmt.Sprintf("?%d", note)
	}
	return fmt.Sprintf("%s%d", noteNames[note%12], int(note)/12-1)
}
