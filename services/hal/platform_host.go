//go:build !tinygo

// Host platform factories: periph.io supplies I²C buses, go.bug.st/serial
// supplies serial ports. On the MCU build platform_rp2.go replaces both.
package hal

import (
	"sync"
	"time"

	"go.bug.st/serial"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
	"tinygo.org/x/drivers"

	"sensorcode-go/drivers/frame"
	"sensorcode-go/types"
)

// ---- I²C ----

type hostI2C struct {
	mu     sync.Mutex
	inited bool
	buses  map[string]drivers.I2C
}

// NewHostI2C opens I²C adapters by name ("i2c1" maps to /dev/i2c-1).
func NewHostI2C() I2CBusFactory {
	return &hostI2C{buses: map[string]drivers.I2C{}}
}

func (f *hostI2C) ByID(id string) (drivers.I2C, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if b, ok := f.buses[id]; ok {
		return b, true
	}
	if !f.inited {
		if _, err := host.Init(); err != nil {
			return nil, false
		}
		f.inited = true
	}
	// periph's i2c.Bus.Tx has the drivers.I2C signature, so the bus is
	// usable directly.
	bus, err := i2creg.Open(devPath(id))
	if err != nil {
		return nil, false
	}
	f.buses[id] = bus
	return bus, true
}

// devPath maps the config's short bus names onto Linux device nodes;
// explicit paths pass through.
func devPath(id string) string {
	if len(id) > 3 && id[:3] == "i2c" {
		return "/dev/i2c-" + id[3:]
	}
	return id
}

// ---- Serial ----

type hostPorts struct{}

// NewHostPorts opens serial ports by device path.
func NewHostPorts() PortFactory { return hostPorts{} }

func (hostPorts) Open(cfg types.SerialConfig) (frame.Port, error) {
	mode := &serial.Mode{
		BaudRate: int(cfg.Baud),
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	if cfg.DataBits != 0 {
		mode.DataBits = int(cfg.DataBits)
	}
	switch cfg.Parity {
	case types.ParityEven:
		mode.Parity = serial.EvenParity
	case types.ParityOdd:
		mode.Parity = serial.OddParity
	}
	if cfg.StopBits == 2 {
		mode.StopBits = serial.TwoStopBits
	}
	p, err := serial.Open(cfg.Port, mode)
	if err != nil {
		return nil, err
	}
	return &hostPort{p: p}, nil
}

type hostPort struct {
	p serial.Port
}

func (h *hostPort) Write(b []byte) (int, error) { return h.p.Write(b) }

// ReadAvailable returns whatever arrives within timeout; 0 bytes after a
// quiet window is not an error.
func (h *hostPort) ReadAvailable(b []byte, timeout time.Duration) (int, error) {
	if err := h.p.SetReadTimeout(timeout); err != nil {
		return 0, err
	}
	return h.p.Read(b)
}
