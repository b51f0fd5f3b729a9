// services/hal/types.go
package hal

import (
	"context"
	"time"

	"tinygo.org/x/drivers"

	"sensorcode-go/drivers/frame"
	"sensorcode-go/types"
)

// Reading is one datum for one capability kind.
type Reading struct {
	Kind    types.Kind // e.g. "temperature", "airquality"
	Payload any        // JSON-serialisable payload (fixed-point structs)
	TsMs    int64      // producer timestamp
}

// Sample is a batch of readings collected together. Multi-channel sensors
// return several kinds from one measurement.
type Sample []Reading

// CapInfo describes one capability's retained info document.
type CapInfo struct {
	Kind types.Kind
	Info types.Info
}

// Adaptor owns a concrete device/driver and exposes generic hooks.
// Adaptors must NOT touch the bus or spawn goroutines.
type Adaptor interface {
	ID() string
	// Static capability descriptions (published as retained).
	Capabilities() []CapInfo
	// Trigger a measurement and return suggested wait until Collect.
	Trigger(ctx context.Context) (collectAfter time.Duration, err error)
	// Collect attempts to fetch a measurement batch; may return ErrNotReady.
	Collect(ctx context.Context) (Sample, error)
	// Optional pass-through control for driver-specific verbs.
	// Return (nil, ErrUnsupported) if not implemented for a verb/kind.
	Control(kind types.Kind, verb string, payload any) (result any, err error)
}

// WorkerConfig centralises timings and limits.
type WorkerConfig struct {
	TriggerTimeout time.Duration
	CollectTimeout time.Duration
	RetryBackoff   time.Duration
	MaxRetries     int
	InputQueueSize int
	ResultsQueueSz int
}

// MeasureReq asks the worker to trigger/collect for a given adaptor.
type MeasureReq struct {
	ID      string
	Adaptor Adaptor
	Prio    bool // true for read_now
}

// Result emitted by the worker.
type Result struct {
	ID     string
	Sample Sample
	Err    error
}

// ErrNotReady signals the worker to retry Collect after backoff.
var ErrNotReady = errNotReady{}

type errNotReady struct{}

func (errNotReady) Error() string { return "not ready" }

// ErrUnsupported for adaptor Control pass-through.
var ErrUnsupported = errUnsupported{}

type errUnsupported struct{}

func (errUnsupported) Error() string { return "unsupported" }

// I2CBusFactory injects configured I²C instances by id ("i2c0", ...).
type I2CBusFactory interface {
	ByID(id string) (drivers.I2C, bool)
}

// PortFactory opens framed serial ports for UART-attached sensors.
type PortFactory interface {
	Open(cfg types.SerialConfig) (frame.Port, error)
}
