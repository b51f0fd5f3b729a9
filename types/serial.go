package types

// ------------------------
// Serial
// ------------------------

type Parity uint8

const (
	ParityNone Parity = iota
	ParityEven
	ParityOdd
)

func (p Parity) String() string {
	switch p {
	case ParityEven:
		return "even"
	case ParityOdd:
		return "odd"
	default:
		return "none"
	}
}

func (p Parity) MarshalJSON() ([]byte, error) { return []byte(`"` + p.String() + `"`), nil }

// SerialConfig selects and frames a serial port for a device.
type SerialConfig struct {
	Port     string `json:"port"` // "uart0" on device, "/dev/ttyAMA0" on host
	Baud     uint32 `json:"baud"`
	DataBits uint8  `json:"data_bits,omitempty"` // default 8
	StopBits uint8  `json:"stop_bits,omitempty"` // default 1
	Parity   Parity `json:"parity,omitempty"`
}