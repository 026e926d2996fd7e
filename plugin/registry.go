package plugin

import "fmt"

// TransportOptions carries what any of the transports might need,
// each factory reads only its own fields
type TransportOptions struct {
	LinkDevice   string
	LinkBaud     int
	DatagramAddr string
}

// Transports is the global map of send primitives, keyed by TransportKind
var Transports = map[string]func(TransportOptions) (Transport, error){
	"link": func(o TransportOptions) (Transport, error) {
		return OpenSerialLink(o.LinkDevice, o.LinkBaud)
	},
	"peer": func(o TransportOptions) (Transport, error) {
		return NewPeerHub(), nil
	},
	"datagram": func(o TransportOptions) (Transport, error) {
		return NewDatagramTransport(o.DatagramAddr)
	},
}

func TransportLookup(name string, opts TransportOptions) (Transport, error) {
	factory, ok := Transports[name]
	if !ok {
		return nil, fmt.Errorf("unknown transport: %s", name)
	}
	return factory(opts)
}
