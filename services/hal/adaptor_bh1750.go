// services/hal/adaptor_bh1750.go
package hal

import (
	"context"
	"time"

	"sensorcode-go/drivers/bh1750"
	"sensorcode-go/types"
	"sensorcode-go/x/strx"
	"sensorcode-go/x/timex"

	"tinygo.org/x/drivers"
)

func init() {
	RegisterBuilder("bh1750", BuilderFunc(func(in BuildInput) (BuildOutput, error) {
		var p I2CParams
		if err := decodeJSON(in.Params, &p); err != nil {
			return BuildOutput{}, err
		}
		p.Bus = strx.Coalesce(p.Bus, "i2c0")
		i2c, ok := in.Buses.ByID(p.Bus)
		if !ok {
			return BuildOutput{}, errUnknownBus(p.Bus)
		}
		return BuildOutput{
			Adaptor:     NewBH1750Adaptor(in.DeviceID, i2c, p.Addr, p.Bus),
			WorkerKey:   p.Bus,
			SampleEvery: 2 * time.Second,
		}, nil
	}))
}

type bh1750Adaptor struct {
	id    string
	busID string
	dev   *bh1750.Device
	ready bool
}

func NewBH1750Adaptor(id string, bus drivers.I2C, addr uint16, busID string) Adaptor {
	dev := bh1750.New(bus)
	if addr != 0 {
		dev.Address = addr
	}
	return &bh1750Adaptor{id: id, busID: busID, dev: &dev}
}

func (a *bh1750Adaptor) ID() string { return a.id }

func (a *bh1750Adaptor) Capabilities() []CapInfo {
	return []CapInfo{
		{Kind: types.KindLight, Info: types.Info{SchemaVersion: 1, Driver: "bh1750",
			Detail: types.LightInfo{Sensor: "bh1750", Addr: a.dev.Address, Bus: a.busID}}},
	}
}

// Trigger powers the part into continuous high-resolution mode on first use;
// the first conversion takes up to 180 ms, later reads are free.
func (a *bh1750Adaptor) Trigger(ctx context.Context) (time.Duration, error) {
	if !a.ready {
		if err := a.dev.Configure(); err != nil {
			return 0, err
		}
		a.ready = true
		return 180 * time.Millisecond, nil
	}
	return 0, nil
}

func (a *bh1750Adaptor) Collect(ctx context.Context) (Sample, error) {
	raw, err := a.dev.ReadRaw()
	if err != nil {
		a.ready = false
		return nil, err
	}
	return Sample{
		{Kind: types.KindLight, TsMs: timex.NowMs(), Payload: types.LightValue{
			DeciLux: bh1750.DeciLux(raw),
		}},
	}, nil
}

func (a *bh1750Adaptor) Control(kind types.Kind, verb string, payload any) (any, error) {
	if verb == "power_off" {
		a.ready = false
		return nil, a.dev.PowerOff()
	}
	return nil, ErrUnsupported
}
