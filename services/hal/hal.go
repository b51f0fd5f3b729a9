// services/hal/hal.go
package hal

import (
	"context"
	"encoding/json"
	"time"

	"sensorcode-go/bus"
	"sensorcode-go/errcode"
	"sensorcode-go/types"
	"sensorcode-go/x/mathx"
	"sensorcode-go/x/timex"
)

// -----------------------------------------------------------------------------
// Entry point
// -----------------------------------------------------------------------------

func Run(ctx context.Context, conn *bus.Connection, i2cFactory I2CBusFactory, portFactory PortFactory) {
	s := &service{
		conn:        conn,
		i2cFactory:  i2cFactory,
		portFactory: portFactory,
		workers:     map[string]*measureWorker{},
		devices:     map[string]*devEntry{},
		capToDev:    map[capKey]string{},
		results:     make(chan Result, 32),
	}
	s.loop(ctx)
}

type devEntry struct {
	adaptor   Adaptor
	kinds     []types.Kind
	workerKey string
	periodMS  int
	nextDue   time.Time
}

type capKey struct {
	kind types.Kind
	name string
}

type service struct {
	conn        *bus.Connection
	i2cFactory  I2CBusFactory
	portFactory PortFactory

	workers  map[string]*measureWorker
	devices  map[string]*devEntry
	capToDev map[capKey]string

	timer   *time.Timer
	results chan Result
}

// -----------------------------------------------------------------------------
// Main loop
// -----------------------------------------------------------------------------

func (s *service) loop(ctx context.Context) {
	cfgSub := s.conn.Subscribe(bus.Topic{"config", "hal"})
	ctrlSub := s.conn.Subscribe(bus.Topic{"hal", "capability", "+", "+", "control", "+"})
	defer s.conn.Unsubscribe(cfgSub)
	defer s.conn.Unsubscribe(ctrlSub)

	s.publishState("idle", "awaiting_config", nil)

	s.timer = time.NewTimer(time.Hour)
	if !s.timer.Stop() {
		drainTimer(s.timer)
	}

	for {
		if next := s.earliestDevDue(); next.IsZero() {
			resetTimer(s.timer, time.Hour)
		} else {
			resetTimer(s.timer, time.Until(next))
		}

		select {
		case <-ctx.Done():
			s.publishState("stopped", "context_cancelled", nil)
			return

		case msg := <-cfgSub.Channel():
			var cfg types.HALConfig
			if err := decodeJSON(msg.Payload, &cfg); err != nil {
				s.publishState("error", "config_decode_failed", err)
				continue
			}
			s.applyConfig(ctx, cfg)
			s.publishState("ready", "configured", nil)

		case msg := <-ctrlSub.Channel():
			s.handleControl(msg)

		case <-s.timer.C:
			now := time.Now()
			for devID, ent := range s.devices {
				if ent.periodMS > 0 && !now.Before(ent.nextDue) {
					s.submitMeasure(devID, false)
					s.bumpDevNext(devID, now)
				}
			}

		case r := <-s.results:
			s.handleResult(r)
		}
	}
}

// -----------------------------------------------------------------------------
// Configuration
// -----------------------------------------------------------------------------

func (s *service) applyConfig(ctx context.Context, cfg types.HALConfig) {
	seen := map[string]struct{}{}

	for i := range cfg.Devices {
		d := &cfg.Devices[i]
		seen[d.ID] = struct{}{}

		// Simple idempotence: a device keeps its adaptor across config
		// re-publishes.
		if _, exists := s.devices[d.ID]; exists {
			continue
		}

		b, ok := findBuilder(d.Type)
		if !ok {
			s.publishState("error", "unknown_device_type", errcode.Unsupported)
			continue
		}
		out, err := b.Build(BuildInput{
			Ctx:      ctx,
			Buses:    s.i2cFactory,
			Ports:    s.portFactory,
			DeviceID: d.ID,
			Type:     d.Type,
			Params:   d.Params,
		})
		if err != nil {
			s.publishState("error", "device_build_failed", err)
			continue
		}

		key := out.WorkerKey
		if key == "" {
			key = d.ID
		}
		if _, ok := s.workers[key]; !ok {
			w := NewWorker(WorkerConfig{}, s.results)
			w.Start(ctx)
			s.workers[key] = w
		}

		ent := &devEntry{adaptor: out.Adaptor, workerKey: key}
		if out.SampleEvery > 0 {
			ent.periodMS = int(out.SampleEvery / time.Millisecond)
			ent.nextDue = time.Now().Add(200 * time.Millisecond)
		}

		for _, ci := range out.Adaptor.Capabilities() {
			ent.kinds = append(ent.kinds, ci.Kind)
			s.capToDev[capKey{kind: ci.Kind, name: d.ID}] = d.ID
			s.pubRet(capTopic(ci.Kind, d.ID, "info"), ci.Info)
			s.pubRet(capTopic(ci.Kind, d.ID, "state"),
				types.CapabilityStatus{Link: types.LinkUp, TS: timex.NowMs()})
		}
		s.devices[d.ID] = ent
	}

	// Declarative pollers override builder defaults.
	for _, p := range cfg.Pollers {
		devID, ok := s.capToDev[capKey{kind: p.Kind, name: p.Name}]
		if !ok || p.IntervalMs == 0 {
			continue
		}
		ent := s.devices[devID]
		ent.periodMS = mathx.Clamp(int(p.IntervalMs), 200, 3_600_000)
		ent.nextDue = time.Now().Add(jitter(p.JitterMs))
	}

	// Tidy-up: retract devices no longer in config.
	for devID, ent := range s.devices {
		if _, ok := seen[devID]; ok {
			continue
		}
		for _, kind := range ent.kinds {
			s.pubRet(capTopic(kind, devID, "info"), nil)
			s.pubRet(capTopic(kind, devID, "state"),
				types.CapabilityStatus{Link: types.LinkDown, TS: timex.NowMs()})
			delete(s.capToDev, capKey{kind: kind, name: devID})
		}
		delete(s.devices, devID)
	}
}

// -----------------------------------------------------------------------------
// Control
// -----------------------------------------------------------------------------

func (s *service) handleControl(msg *bus.Message) {
	// hal/capability/<kind>/<name>/control/<verb>
	if len(msg.Topic) < 6 {
		return
	}
	kindStr, _ := msg.Topic[2].(string)
	name, _ := msg.Topic[3].(string)
	verb, _ := msg.Topic[5].(string)
	kind := types.Kind(kindStr)
	if kindStr == "" || name == "" {
		s.replyErr(msg, errcode.InvalidTopic)
		return
	}
	devID, ok := s.capToDev[capKey{kind: kind, name: name}]
	if !ok {
		s.replyErr(msg, errcode.UnknownCapability)
		return
	}
	ent := s.devices[devID]

	switch verb {
	case "read_now":
		if s.submitMeasure(devID, true) {
			s.replyOK(msg, nil)
		} else {
			s.replyErr(msg, errcode.Busy)
		}
	case "poll_start":
		var p types.PollStart
		if err := decodeJSON(msg.Payload, &p); err != nil || p.IntervalMs == 0 {
			s.replyErr(msg, errcode.InvalidParams)
			return
		}
		ent.periodMS = mathx.Clamp(int(p.IntervalMs), 200, 3_600_000)
		ent.nextDue = time.Now().Add(jitter(p.JitterMs))
		s.replyOK(msg, map[string]any{"period_ms": ent.periodMS})
	case "poll_stop":
		ent.periodMS = 0
		ent.nextDue = time.Time{}
		s.replyOK(msg, nil)
	default:
		res, err := ent.adaptor.Control(kind, verb, msg.Payload)
		if err == ErrUnsupported {
			s.replyErr(msg, errcode.Unsupported)
			return
		}
		if err != nil {
			s.replyErr(msg, codeOf(err))
			return
		}
		s.replyOK(msg, map[string]any{"result": res})
	}
}

// -----------------------------------------------------------------------------
// Results and helpers
// -----------------------------------------------------------------------------

func (s *service) submitMeasure(devID string, prio bool) bool {
	ent, ok := s.devices[devID]
	if !ok {
		return false
	}
	w := s.workers[ent.workerKey]
	if w == nil {
		return false
	}
	return w.Submit(MeasureReq{ID: devID, Adaptor: ent.adaptor, Prio: prio})
}

func (s *service) bumpDevNext(devID string, from time.Time) {
	ent := s.devices[devID]
	if ent.periodMS <= 0 {
		ent.nextDue = time.Time{}
		return
	}
	ent.nextDue = from.Add(time.Duration(ent.periodMS) * time.Millisecond)
}

func (s *service) earliestDevDue() time.Time {
	var min time.Time
	for _, ent := range s.devices {
		if !ent.nextDue.IsZero() && (min.IsZero() || ent.nextDue.Before(min)) {
			min = ent.nextDue
		}
	}
	return min
}

func (s *service) handleResult(r Result) {
	ent, ok := s.devices[r.ID]
	if !ok {
		return
	}
	now := timex.NowMs()

	if r.Err != nil {
		code := codeOf(r.Err)
		for _, kind := range ent.kinds {
			s.pubRet(capTopic(kind, r.ID, "state"),
				types.CapabilityStatus{Link: types.LinkDegraded, Error: string(code), TS: now})
		}
		return
	}
	for _, rd := range r.Sample {
		s.pubRet(capTopic(rd.Kind, r.ID, "value"), rd.Payload)
		s.pubRet(capTopic(rd.Kind, r.ID, "state"),
			types.CapabilityStatus{Link: types.LinkUp, TS: now})
	}
}

func (s *service) publishState(level, status string, err error) {
	st := types.HALState{Level: level, Status: status, TS: timex.NowMs()}
	if err != nil {
		st.Status = status + ":" + string(codeOf(err))
	}
	s.conn.Publish(s.conn.NewMessage(bus.Topic{"hal", "state"}, st, true))
}

func (s *service) replyOK(req *bus.Message, extra map[string]any) {
	if len(req.ReplyTo) == 0 {
		return
	}
	m := map[string]any{"ok": true}
	for k, v := range extra {
		m[k] = v
	}
	s.conn.Reply(req, m, false)
}

func (s *service) replyErr(req *bus.Message, code errcode.Code) {
	if len(req.ReplyTo) == 0 {
		return
	}
	s.conn.Reply(req, map[string]any{"ok": false, "error": string(code)}, false)
}

func capTopic(kind types.Kind, name string, rest ...any) bus.Topic {
	base := bus.Topic{"hal", "capability", string(kind), name}
	return append(base, rest...)
}

func (s *service) pubRet(t bus.Topic, p any) {
	s.conn.Publish(s.conn.NewMessage(t, p, true))
}

// jitter spreads first polls so devices sharing a worker do not stampede.
func jitter(ms uint16) time.Duration {
	if ms == 0 {
		return 0
	}
	return time.Duration(timex.NowMs()%int64(ms)+1) * time.Millisecond
}

func decodeJSON[T any](src any, dst *T) error {
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, dst)
	case string:
		return json.Unmarshal([]byte(v), dst)
	default:
		// Accept maps, structs, numbers by re-encoding to T.
		b, err := json.Marshal(v)
		if err != nil {
			return err
		}
		return json.Unmarshal(b, dst)
	}
}
