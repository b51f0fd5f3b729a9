//go:build !tinygo

package uplink

import (
	"context"
	"io"

	"go.bug.st/serial"

	"sensorcode-go/types"
)

// Hosted builds get a working serial dialler out of the box; serial.Port is
// already an io.ReadWriteCloser.
func init() {
	SerialDial = func(_ context.Context, c types.SerialConfig) (io.ReadWriteCloser, error) {
		mode := &serial.Mode{
			BaudRate: int(c.Baud),
			DataBits: 8,
			Parity:   serial.NoParity,
			StopBits: serial.OneStopBit,
		}
		if c.DataBits != 0 {
			mode.DataBits = int(c.DataBits)
		}
		switch c.Parity {
		case types.ParityEven:
			mode.Parity = serial.EvenParity
		case types.ParityOdd:
			mode.Parity = serial.OddParity
		}
		if c.StopBits == 2 {
			mode.StopBits = serial.TwoStopBits
		}
		return serial.Open(c.Port, mode)
	}
}
