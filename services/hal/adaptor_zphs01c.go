// services/hal/adaptor_zphs01c.go
package hal

import (
	"context"
	"time"

	"sensorcode-go/drivers/frame"
	"sensorcode-go/drivers/zphs01c"
	"sensorcode-go/types"
	"sensorcode-go/x/mathx"
	"sensorcode-go/x/timex"
)

func init() {
	RegisterBuilder("zphs01c", BuilderFunc(func(in BuildInput) (BuildOutput, error) {
		var p SerialParams
		if err := decodeJSON(in.Params, &p); err != nil {
			return BuildOutput{}, err
		}
		if p.Baud == 0 {
			p.Baud = zphs01c.Baud
		}
		port, err := in.Ports.Open(p.SerialConfig)
		if err != nil {
			return BuildOutput{}, err
		}
		return BuildOutput{
			Adaptor:     NewZPHS01CAdaptor(in.DeviceID, port, p.SerialConfig),
			WorkerKey:   p.Port,
			SampleEvery: 5 * time.Second,
		}, nil
	}))
}

type zphs01cAdaptor struct {
	id  string
	cfg types.SerialConfig
	dev *zphs01c.Device
}

func NewZPHS01CAdaptor(id string, port frame.Port, cfg types.SerialConfig) Adaptor {
	dev := zphs01c.New(port)
	dev.Configure(zphs01c.Config{ReadTimeout: 2 * time.Second})
	return &zphs01cAdaptor{id: id, cfg: cfg, dev: dev}
}

func (a *zphs01cAdaptor) ID() string { return a.id }

func (a *zphs01cAdaptor) Capabilities() []CapInfo {
	detail := types.AirQualityInfo{Sensor: "zphs01c", Port: a.cfg.Port, Baud: a.cfg.Baud}
	return []CapInfo{
		{Kind: types.KindAirQuality, Info: types.Info{SchemaVersion: 1, Driver: "zphs01c", Detail: detail}},
		{Kind: types.KindTemperature, Info: types.Info{SchemaVersion: 1, Driver: "zphs01c",
			Detail: types.TemperatureInfo{Sensor: "zphs01c", Bus: a.cfg.Port}}},
		{Kind: types.KindHumidity, Info: types.Info{SchemaVersion: 1, Driver: "zphs01c",
			Detail: types.HumidityInfo{Sensor: "zphs01c", Bus: a.cfg.Port}}},
	}
}

// Trigger is a no-op: the query command is synchronous and cheap, so the
// whole exchange happens in Collect.
func (a *zphs01cAdaptor) Trigger(ctx context.Context) (time.Duration, error) {
	return 0, nil
}

func (a *zphs01cAdaptor) Collect(ctx context.Context) (Sample, error) {
	r, err := a.dev.Query()
	if err != nil {
		return nil, err
	}
	ts := timex.NowMs()
	aqOOR := !mathx.Between(r.CO2PPM, zphs01c.CO2MinPPM, zphs01c.CO2MaxPPM) ||
		r.VOC > zphs01c.VOCMax ||
		r.PM25 > zphs01c.PMMaxUgM3 || r.PM10 > zphs01c.PMMaxUgM3 || r.PM1 > zphs01c.PMMaxUgM3
	return Sample{
		{Kind: types.KindAirQuality, TsMs: ts, Payload: types.AirQualityValue{
			CO2PPM: r.CO2PPM, VOC: r.VOC,
			PM1: r.PM1, PM25: r.PM25, PM10: r.PM10,
			OutOfRange: aqOOR,
		}},
		{Kind: types.KindTemperature, TsMs: ts, Payload: types.TemperatureValue{
			DeciC:      r.DeciC,
			OutOfRange: !mathx.Between(r.DeciC, zphs01c.TempMinDC, zphs01c.TempMaxDC),
		}},
		{Kind: types.KindHumidity, TsMs: ts, Payload: types.HumidityValue{
			RHx100: r.RHx10 * 10,
		}},
	}, nil
}

func (a *zphs01cAdaptor) Control(kind types.Kind, verb string, payload any) (any, error) {
	switch verb {
	case "dust_on":
		return nil, a.dev.SetDustMeasurement(true)
	case "dust_off":
		return nil, a.dev.SetDustMeasurement(false)
	case "active_upload":
		return nil, a.dev.StartActiveUpload()
	case "stats":
		st := a.dev.Stats()
		return map[string]any{"frames": st.Frames, "bad_frames": st.BadFrames, "noise": st.Noise}, nil
	default:
		return nil, ErrUnsupported
	}
}
