package teachtiles

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	Tt "github.com/maroda/teachtiles/types"
	"gopkg.in/yaml.v3"
)

// Piano range and visual timing defaults
const (
	MinPianoNote      = 21
	MaxPianoNote      = 108
	DefaultVisualMS   = 200
	MaxVisualMS       = 8000
	DefaultGridWidth  = 64
	DefaultGridHeight = 64
	MIDIBaudRate      = 31250
	DefaultUDPPort    = 5005
)

type GridConfig struct {
	Width  int `json:"width" yaml:"width"`
	Height int `json:"height" yaml:"height"`
}

type NoteRangeConfig struct {
	Min int `json:"min" yaml:"min"`
	Max int `json:"max" yaml:"max"`
}

type VisualConfig struct {
	DefaultMS int `json:"defaultMs" yaml:"defaultMs"`
	MaxMS     int `json:"maxMs" yaml:"maxMs"`
	GlyphMS   int `json:"glyphMs" yaml:"glyphMs"`
	TickMS    int `json:"tickMs" yaml:"tickMs"`
}

// InputConfig selects where the bridge reads MIDI bytes from:
// "serial" (UART), "midi" (host MIDI device) or "stdin"
type InputConfig struct {
	Source string `json:"source" yaml:"source"`
	Device string `json:"device" yaml:"device"` // serial path, or MIDI port index/name
	Baud   int    `json:"baud" yaml:"baud"`
}

type LinkConfig struct {
	Device string `json:"device" yaml:"device"`
	Baud   int    `json:"baud" yaml:"baud"`
}

type PeerConfig struct {
	Dial string `json:"dial" yaml:"dial"` // receiver: ws://bridge:8090/peer
}

type DatagramConfig struct {
	Addr   string `json:"addr" yaml:"addr"`     // bridge: destination host:port
	Listen string `json:"listen" yaml:"listen"` // receiver: local bind address
}

type ConfigFile struct {
	ID         string           `json:"id" yaml:"id"`
	Transport  Tt.TransportKind `json:"transport" yaml:"transport"`
	Grid       GridConfig       `json:"grid" yaml:"grid"`
	Notes      NoteRangeConfig  `json:"notes" yaml:"notes"`
	Visual     VisualConfig     `json:"visual" yaml:"visual"`
	WatchdogMS int              `json:"watchdogMs" yaml:"watchdogMs"`
	Input      InputConfig      `json:"input" yaml:"input"`
	Link       LinkConfig       `json:"link" yaml:"link"`
	Peer       PeerConfig       `json:"peer" yaml:"peer"`
	Datagram   DatagramConfig   `json:"datagram" yaml:"datagram"`
	HTTPAddr   string           `json:"httpAddr" yaml:"httpAddr"`
	Journal    string           `json:"journal" yaml:"journal"`   // badger path, empty disables
	MIDIThru   int              `json:"midiThru" yaml:"midiThru"` // MIDI out port, -1 disables
}

// DefaultConfig matches the firmware constants: 64x64 grid, 88 keys from A0, 200ms default visual.
func DefaultConfig() *ConfigFile {
	return &ConfigFile{
		ID:        "teachtiles",
		Transport: Tt.TransportDatagram,
		Grid:      GridConfig{Width: DefaultGridWidth, Height: DefaultGridHeight},
		Notes:     NoteRangeConfig{Min: MinPianoNote, Max: MaxPianoNote},
		Visual: VisualConfig{
			DefaultMS: DefaultVisualMS,
			MaxMS:     MaxVisualMS,
			GlyphMS:   3000,
			TickMS:    20,
		},
		WatchdogMS: DefaultWatchdogMS,
		Input:      InputConfig{Source: "serial", Device: "/dev/ttyUSB0", Baud: MIDIBaudRate},
		Link:       LinkConfig{Device: "/dev/rfcomm0", Baud: 115200},
		Peer:       PeerConfig{Dial: "ws://localhost:8090/peer"},
		Datagram: DatagramConfig{
			Addr:   fmt.Sprintf("255.255.255.255:%d", DefaultUDPPort),
			Listen: fmt.Sprintf(":%d", DefaultUDPPort),
		},
		HTTPAddr: ":8090",
		MIDIThru: -1,
	}
}

// LoadConfigFileName pulls a given filename config off local disk
// Validation is performed on the file before opening.
// Files ending in .yaml or .yml are read as YAML, everything else as JSON.
// Missing fields keep their defaults.
func LoadConfigFileName(filename string) (*ConfigFile, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	// validation
	err = validateLoad(file)
	if err != nil {
		slog.Error("Validation failed", slog.Any("Error", err))
		return nil, err
	}

	config := DefaultConfig()
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".yaml", ".yml":
		if err := yaml.NewDecoder(file).Decode(config); err != nil {
			slog.Error("could not decode yaml file")
			return nil, err
		}
	default:
		if err := json.NewDecoder(file).Decode(config); err != nil {
			slog.Error("could not decode file")
			return nil, err
		}
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func validateLoad(file *os.File) error {
	// validate file
	info, err := file.Stat()
	if err != nil {
		slog.Error("could not stat file")
		return err
	}

	// validate size
	if info.Size() == 0 {
		slog.Error("file is empty")
		return errors.New("file is empty")
	}

	return nil
}

// Validate checks the parts of the config the core depends on
func (c *ConfigFile) Validate() error {
	switch c.Transport {
	case Tt.TransportLink, Tt.TransportPeer, Tt.TransportDatagram:
	default:
		return fmt.Errorf("unknown transport %q", c.Transport)
	}
	if c.Grid.Width < 3 || c.Grid.Height < 3 {
		return fmt.Errorf("grid too small: %dx%d", c.Grid.Width, c.Grid.Height)
	}
	if c.Notes.Min < 0 || c.Notes.Max > 127 || c.Notes.Min >= c.Notes.Max {
		return fmt.Errorf("invalid note range %d..%d", c.Notes.Min, c.Notes.Max)
	}
	if c.Visual.DefaultMS <= 0 || c.Visual.MaxMS < c.Visual.DefaultMS {
		return fmt.Errorf("invalid visual durations %d/%d", c.Visual.DefaultMS, c.Visual.MaxMS)
	}
	if c.Visual.TickMS <= 0 {
		return fmt.Errorf("invalid tick interval %d", c.Visual.TickMS)
	}
	return nil
}

// ApplyEnv overrides config values with any TEACHTILES_* environment variables
func (c *ConfigFile) ApplyEnv() {
	if v := FillEnvVar("TEACHTILES_TRANSPORT"); v != "ENOENT" {
		c.Transport = Tt.TransportKind(v)
	}
	if v := FillEnvVar("TEACHTILES_DATAGRAM_ADDR"); v != "ENOENT" {
		c.Datagram.Addr = v
	}
	if v := FillEnvVar("TEACHTILES_DATAGRAM_LISTEN"); v != "ENOENT" {
		c.Datagram.Listen = v
	}
	if v := FillEnvVar("TEACHTILES_SERIAL_PORT"); v != "ENOENT" {
		c.Input.Device = v
	}
	if v := FillEnvVar("TEACHTILES_LINK_PORT"); v != "ENOENT" {
		c.Link.Device = v
	}
	if v := FillEnvVar("TEACHTILES_PEER_DIAL"); v != "ENOENT" {
		c.Peer.Dial = v
	}
	if v := FillEnvVar("TEACHTILES_HTTP_ADDR"); v != "ENOENT" {
		c.HTTPAddr = v
	}
	if v := FillEnvVar("TEACHTILES_JOURNAL"); v != "ENOENT" {
		c.Journal = v
	}
	c.WatchdogMS = FillEnvVarInt("TEACHTILES_WATCHDOG_MS", c.WatchdogMS)
	c.MIDIThru = FillEnvVarInt("TEACHTILES_MIDI_THRU", c.MIDIThru)
}
