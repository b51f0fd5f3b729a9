// services/hal/adaptor_bme280.go
package hal

import (
	"context"
	"time"

	"sensorcode-go/drivers/bme280"
	"sensorcode-go/types"
	"sensorcode-go/x/mathx"
	"sensorcode-go/x/strx"
	"sensorcode-go/x/timex"

	"tinygo.org/x/drivers"
)

func init() {
	RegisterBuilder("bme280", BuilderFunc(func(in BuildInput) (BuildOutput, error) {
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
			Adaptor:     NewBME280Adaptor(in.DeviceID, i2c, p.Addr, p.Bus),
			WorkerKey:   p.Bus,
			SampleEvery: 2 * time.Second,
		}, nil
	}))
}

type bme280Adaptor struct {
	id    string
	busID string
	dev   *bme280.Device
	ready bool
}

func NewBME280Adaptor(id string, bus drivers.I2C, addr uint16, busID string) Adaptor {
	dev := bme280.New(bus)
	if addr != 0 {
		dev.Address = addr
	}
	return &bme280Adaptor{id: id, busID: busID, dev: &dev}
}

func (a *bme280Adaptor) ID() string { return a.id }

func (a *bme280Adaptor) Capabilities() []CapInfo {
	return []CapInfo{
		{Kind: types.KindTemperature, Info: types.Info{SchemaVersion: 1, Driver: "bme280",
			Detail: types.TemperatureInfo{Sensor: "bme280", Addr: a.dev.Address, Bus: a.busID}}},
		{Kind: types.KindHumidity, Info: types.Info{SchemaVersion: 1, Driver: "bme280",
			Detail: types.HumidityInfo{Sensor: "bme280", Addr: a.dev.Address, Bus: a.busID}}},
		{Kind: types.KindPressure, Info: types.Info{SchemaVersion: 1, Driver: "bme280",
			Detail: types.PressureInfo{Sensor: "bme280", Addr: a.dev.Address, Bus: a.busID}}},
	}
}

// Trigger probes and calibrates on first use. The part free-runs in normal
// mode afterwards, so the collect wait is just one conversion period.
func (a *bme280Adaptor) Trigger(ctx context.Context) (time.Duration, error) {
	if !a.ready {
		if err := a.dev.Configure(); err != nil {
			return 0, err
		}
		a.ready = true
		return 100 * time.Millisecond, nil
	}
	return 10 * time.Millisecond, nil
}

func (a *bme280Adaptor) Collect(ctx context.Context) (Sample, error) {
	var raw bme280.Sample
	if err := a.dev.ReadSample(&raw); err != nil {
		a.ready = false
		return nil, err
	}
	ts := timex.NowMs()

	centi, tFine := a.dev.CentiCelsius(raw)
	paQ := a.dev.PascalsQ24_8(raw, tFine)
	rhQ := a.dev.RHQ22_10(raw, tFine)

	pa := uint32(paQ >> 8)
	rhx100 := uint16((int64(rhQ) * 100) >> 10)

	return Sample{
		{Kind: types.KindTemperature, TsMs: ts, Payload: types.TemperatureValue{
			DeciC:      int16(centi / 10),
			OutOfRange: !mathx.Between(centi, bme280.TempMinCenti, bme280.TempMaxCenti),
		}},
		{Kind: types.KindHumidity, TsMs: ts, Payload: types.HumidityValue{
			RHx100:     rhx100,
			OutOfRange: !mathx.Between(rhQ, bme280.HumMinQ2210, bme280.HumMaxQ2210),
		}},
		{Kind: types.KindPressure, TsMs: ts, Payload: types.PressureValue{
			Pa:         pa,
			OutOfRange: !mathx.Between(pa, bme280.PressMinPa, bme280.PressMaxPa),
		}},
	}, nil
}

func (a *bme280Adaptor) Control(kind types.Kind, verb string, payload any) (any, error) {
	return nil, ErrUnsupported
}
