//go:build tinygo && rp2

// RP2 platform factories: machine I²C and the interrupt-driven uartx UARTs.
package hal

import (
	"context"
	"machine"
	"time"

	uartx "github.com/jangala-dev/tinygo-uartx/uartx"
	"tinygo.org/x/drivers"

	"sensorcode-go/drivers/frame"
	"sensorcode-go/types"
)

// ---- I²C ----

type rp2I2C struct {
	buses map[string]drivers.I2C
}

// NewHostI2C configures the RP2's hardware I²C controllers at 400 kHz on
// their default pins.
func NewHostI2C() I2CBusFactory {
	f := &rp2I2C{buses: map[string]drivers.I2C{}}
	for id, hw := range map[string]*machine.I2C{"i2c0": machine.I2C0, "i2c1": machine.I2C1} {
		if err := hw.Configure(machine.I2CConfig{Frequency: 400_000}); err == nil {
			f.buses[id] = hw
		}
	}
	return f
}

func (f *rp2I2C) ByID(id string) (drivers.I2C, bool) {
	b, ok := f.buses[id]
	return b, ok
}

// ---- Serial ----

type rp2Ports struct{}

// NewHostPorts opens the hardware UARTs; zero pins in UARTConfig select the
// uartx defaults for the board.
func NewHostPorts() PortFactory { return rp2Ports{} }

func (rp2Ports) Open(cfg types.SerialConfig) (frame.Port, error) {
	var hw *uartx.UART
	switch cfg.Port {
	case "uart0":
		hw = uartx.UART0
	case "uart1":
		hw = uartx.UART1
	default:
		return nil, errUnknownBus(cfg.Port)
	}
	if err := hw.Configure(uartx.UARTConfig{BaudRate: cfg.Baud}); err != nil {
		return nil, err
	}
	if cfg.DataBits != 0 || cfg.StopBits != 0 || cfg.Parity != types.ParityNone {
		var par uartx.UARTParity
		switch cfg.Parity {
		case types.ParityEven:
			par = uartx.ParityEven
		case types.ParityOdd:
			par = uartx.ParityOdd
		}
		db, sb := cfg.DataBits, cfg.StopBits
		if db == 0 {
			db = 8
		}
		if sb == 0 {
			sb = 1
		}
		if err := hw.SetFormat(db, sb, par); err != nil {
			return nil, err
		}
	}
	return &rp2Port{u: hw}, nil
}

type rp2Port struct {
	u *uartx.UART
}

func (p *rp2Port) Write(b []byte) (int, error) { return p.u.Write(b) }

func (p *rp2Port) ReadAvailable(b []byte, timeout time.Duration) (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	n, err := p.u.RecvSomeContext(ctx, b)
	if err == context.DeadlineExceeded {
		return 0, nil
	}
	return n, err
}
