package hal

import "sensorcode-go/types"

// Param shapes decoded from HALDevice.Params.

// I2CParams locates an I²C-attached sensor.
type I2CParams struct {
	Bus  string `json:"bus"`            // "i2c0"
	Addr uint16 `json:"addr,omitempty"` // 0 => driver default
}

// SerialParams locates a UART-attached sensor.
type SerialParams struct {
	types.SerialConfig
}
