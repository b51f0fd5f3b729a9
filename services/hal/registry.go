// services/hal/registry.go
package hal

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// BuildInput is provided to a device builder to construct an Adaptor.
type BuildInput struct {
	Ctx      context.Context
	Buses    I2CBusFactory
	Ports    PortFactory
	DeviceID string
	Type     string
	Params   any // device-specific params, JSON-shaped
}

// BuildOutput is returned by a builder.
type BuildOutput struct {
	Adaptor Adaptor
	// WorkerKey buckets devices sharing a transport onto one measure
	// worker (e.g. "i2c0", "uart1") so transactions never interleave.
	WorkerKey string
	// SampleEvery is the default poll period; 0 means poll only when a
	// PollSpec or read_now asks.
	SampleEvery time.Duration
}

// Builder constructs an Adaptor from config and platform factories.
type Builder interface {
	Build(in BuildInput) (BuildOutput, error)
}

// BuilderFunc adapts a plain function to the Builder interface.
type BuilderFunc func(in BuildInput) (BuildOutput, error)

func (f BuilderFunc) Build(in BuildInput) (BuildOutput, error) { return f(in) }

var (
	muBuilders sync.RWMutex
	builders   = map[string]Builder{}
)

// RegisterBuilder installs a builder for a given device type string.
// It panics on duplicate registration to catch mistakes at start-up.
func RegisterBuilder(deviceType string, b Builder) {
	muBuilders.Lock()
	defer muBuilders.Unlock()
	if deviceType == "" {
		panic("hal: empty device type for builder")
	}
	if _, exists := builders[deviceType]; exists {
		panic(fmt.Sprintf("hal: builder already registered for type %q", deviceType))
	}
	builders[deviceType] = b
}

// findBuilder looks up a registered builder by type.
func findBuilder(deviceType string) (Builder, bool) {
	muBuilders.RLock()
	defer muBuilders.RUnlock()
	b, ok := builders[deviceType]
	return b, ok
}
