// services/hal/adaptor_ld2410.go
package hal

import (
	"context"
	"time"

	"sensorcode-go/drivers/frame"
	"sensorcode-go/drivers/ld2410"
	"sensorcode-go/types"
	"sensorcode-go/x/timex"
)

func init() {
	RegisterBuilder("ld2410", BuilderFunc(func(in BuildInput) (BuildOutput, error) {
		var p SerialParams
		if err := decodeJSON(in.Params, &p); err != nil {
			return BuildOutput{}, err
		}
		if p.Baud == 0 {
			p.Baud = ld2410.Baud
		}
		port, err := in.Ports.Open(p.SerialConfig)
		if err != nil {
			return BuildOutput{}, err
		}
		return BuildOutput{
			Adaptor:     NewLD2410Adaptor(in.DeviceID, port, p.SerialConfig),
			WorkerKey:   p.Port,
			SampleEvery: time.Second,
		}, nil
	}))
}

type ld2410Adaptor struct {
	id  string
	cfg types.SerialConfig
	dev *ld2410.Device
}

func NewLD2410Adaptor(id string, port frame.Port, cfg types.SerialConfig) Adaptor {
	dev := ld2410.New(port)
	dev.Configure(ld2410.Config{ReadTimeout: 2 * time.Second})
	return &ld2410Adaptor{id: id, cfg: cfg, dev: dev}
}

func (a *ld2410Adaptor) ID() string { return a.id }

func (a *ld2410Adaptor) Capabilities() []CapInfo {
	return []CapInfo{
		{Kind: types.KindPresence, Info: types.Info{SchemaVersion: 1, Driver: "ld2410",
			Detail: types.PresenceInfo{Sensor: "ld2410", Port: a.cfg.Port, Baud: a.cfg.Baud}}},
	}
}

// Trigger is a no-op: the radar streams reports unsolicited and Collect
// just frames the next one.
func (a *ld2410Adaptor) Trigger(ctx context.Context) (time.Duration, error) {
	return 0, nil
}

func (a *ld2410Adaptor) Collect(ctx context.Context) (Sample, error) {
	r, err := a.dev.Read()
	if err != nil {
		return nil, err
	}
	return Sample{
		{Kind: types.KindPresence, TsMs: timex.NowMs(), Payload: types.PresenceValue{
			Present:      r.Present(),
			State:        uint8(r.State),
			DistanceCM:   r.DistanceCM(),
			MovingEnergy: r.MovingEnergy,
			StaticEnergy: r.StaticEnergy,
		}},
	}, nil
}

// Control wraps the radar's configuration commands. Each verb opens and
// closes a command session so the report stream resumes afterwards.
func (a *ld2410Adaptor) Control(kind types.Kind, verb string, payload any) (any, error) {
	switch verb {
	case "engineering_on", "engineering_off":
		return nil, a.inSession(func() error {
			return a.dev.SetEngineeringMode(verb == "engineering_on")
		})
	case "read_version":
		var v ld2410.Version
		err := a.inSession(func() error {
			var e error
			v, e = a.dev.ReadVersion()
			return e
		})
		if err != nil {
			return nil, err
		}
		return map[string]any{"version": v.String()}, nil
	case "read_params":
		var p ld2410.Params
		err := a.inSession(func() error {
			var e error
			p, e = a.dev.ReadParams()
			return e
		})
		if err != nil {
			return nil, err
		}
		return map[string]any{
			"max_gate":        p.MaxGate,
			"max_moving_gate": p.MaxMovingGate,
			"max_static_gate": p.MaxStaticGate,
			"idle_seconds":    p.IdleSeconds,
		}, nil
	case "set_gates":
		var g struct {
			Moving uint8  `json:"moving"`
			Static uint8  `json:"static"`
			IdleS  uint16 `json:"idle_s"`
		}
		if err := decodeJSON(payload, &g); err != nil {
			return nil, err
		}
		return nil, a.inSession(func() error {
			return a.dev.SetMaxGates(g.Moving, g.Static, g.IdleS)
		})
	case "set_sensitivity":
		var sv struct {
			Gate   uint16 `json:"gate"` // 0xFFFF for all gates
			Moving uint8  `json:"moving"`
			Static uint8  `json:"static"`
		}
		if err := decodeJSON(payload, &sv); err != nil {
			return nil, err
		}
		return nil, a.inSession(func() error {
			return a.dev.SetGateSensitivity(sv.Gate, sv.Moving, sv.Static)
		})
	case "restart":
		return nil, a.inSession(a.dev.Restart)
	case "factory_reset":
		return nil, a.inSession(a.dev.FactoryReset)
	case "stats":
		st := a.dev.Stats()
		return map[string]any{"frames": st.Frames, "bad_frames": st.BadFrames, "noise": st.Noise}, nil
	default:
		return nil, ErrUnsupported
	}
}

// inSession brackets fn between config-mode enter/exit. Exit is best-effort;
// a restart ends the session by itself.
func (a *ld2410Adaptor) inSession(fn func() error) error {
	if err := a.dev.EnterConfigMode(); err != nil {
		return err
	}
	err := fn()
	if eerr := a.dev.ExitConfigMode(); err == nil && eerr != ld2410.ErrNotConfig {
		err = eerr
	}
	return err
}
