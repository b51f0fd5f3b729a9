// uplink/transport.go
package uplink

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"sensorcode-go/types"
)

// TransportConfig selects and parameterises the link.
type TransportConfig struct {
	// "serial" (built in) or other names registered via RegisterTransport.
	Type   string              `json:"type"`
	Serial *types.SerialConfig `json:"serial,omitempty"`
}

// Transport is a pluggable link dialler/owner.
type Transport interface {
	Open(ctx context.Context) (io.ReadWriteCloser, error)
	String() string
}

type transportFactory func(TransportConfig) (Transport, error)

var (
	regMu     sync.RWMutex
	registry  = map[string]transportFactory{}
	errNoDial = errors.New("SerialDial not implemented")
)

// RegisterTransport allows external packages to add transports (eg. "ws", "tcp").
func RegisterTransport(name string, f transportFactory) {
	regMu.Lock()
	defer regMu.Unlock()
	registry[name] = f
}

func newTransport(cfg TransportConfig) (Transport, error) {
	regMu.RLock()
	f, ok := registry[cfg.Type]
	regMu.RUnlock()
	if ok {
		return f(cfg)
	}
	switch cfg.Type {
	case "serial":
		return newSerialTransport(cfg)
	default:
		return nil, fmt.Errorf("unknown transport type: %q", cfg.Type)
	}
}

// SerialDial opens the configured port. On hosted builds it defaults to the
// OS serial stack; MCU builds (or tests) inject their own.
var SerialDial func(ctx context.Context, c types.SerialConfig) (io.ReadWriteCloser, error)

type serialTransport struct {
	cfg TransportConfig
}

func newSerialTransport(cfg TransportConfig) (Transport, error) {
	if cfg.Serial == nil {
		return nil, errors.New("serial transport requires serial config")
	}
	return &serialTransport{cfg: cfg}, nil
}

func (u *serialTransport) Open(ctx context.Context) (io.ReadWriteCloser, error) {
	if SerialDial == nil {
		return nil, errNoDial
	}
	return SerialDial(ctx, *u.cfg.Serial)
}

func (u *serialTransport) String() string { return "serial" }
