// uplink/uplink.go
package uplink

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"sensorcode-go/bus"
	"sensorcode-go/x/timex"
)

// -----------------------------------------------------------------------------
// Public entry point
// -----------------------------------------------------------------------------

// Start starts the uplink service. It blocks until ctx is cancelled.
// It listens for JSON config on topic {"config","uplink"} and (re)configures
// the link. While a link is up, every HAL reading and state change is
// forwarded as one JSON line.
func Start(ctx context.Context, conn *bus.Connection) {
	s := &Service{
		conn:       conn,
		stateTopic: bus.Topic{"uplink", "state"},
	}
	s.run(ctx)
}

// -----------------------------------------------------------------------------
// Configuration
// -----------------------------------------------------------------------------

// Config is the JSON-encoded configuration expected on "config/uplink".
type Config struct {
	Transport TransportConfig `json:"transport"`

	// PingSeconds sets the keepalive cadence; 0 means the 5 s default.
	PingSeconds int `json:"ping_seconds,omitempty"`
}

// -----------------------------------------------------------------------------
// Service
// -----------------------------------------------------------------------------

type Service struct {
	conn       *bus.Connection
	stateTopic bus.Topic

	mu     sync.Mutex
	curRun context.CancelFunc
	curCfg atomic.Value // stores Config

	sent uint64
}

// run waits for config and supervises a single link instance.
func (s *Service) run(ctx context.Context) {
	cfgSub := s.conn.Subscribe(bus.Topic{"config", "uplink"})
	defer s.conn.Unsubscribe(cfgSub)

	s.publishState("idle", "awaiting_config", nil)

	for {
		select {
		case <-ctx.Done():
			s.stopCurrent()
			return
		case msg, ok := <-cfgSub.Channel():
			if !ok {
				s.publishState("error", "config_subscription_closed", nil)
				return
			}
			cfg, err := decodeConfig(msg.Payload)
			if err != nil {
				s.publishState("error", "config_decode_failed", err)
				continue
			}
			s.reconfigure(ctx, cfg)
		}
	}
}

func (s *Service) stopCurrent() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.curRun != nil {
		s.curRun()
		s.curRun = nil
	}
}

func (s *Service) reconfigure(parent context.Context, cfg Config) {
	s.mu.Lock()
	if s.curRun != nil {
		s.curRun()
		s.curRun = nil
	}
	ctx, cancel := context.WithCancel(parent)
	s.curRun = cancel
	s.mu.Unlock()

	s.curCfg.Store(cfg)
	go s.runLink(ctx, cfg)
}

// -----------------------------------------------------------------------------
// Link supervision and I/O
// -----------------------------------------------------------------------------

func (s *Service) runLink(ctx context.Context, cfg Config) {
	tr, err := newTransport(cfg.Transport)
	if err != nil {
		s.publishState("error", "transport_init_failed", err)
		return
	}

	backoff := backoffSeq(250*time.Millisecond, 5*time.Second)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		rwc, err := tr.Open(ctx)
		if err != nil {
			delay := backoff()
			s.publishState("degraded", "dial_failed_retrying", fmt.Errorf("%v (retry in %s)", err, delay))
			if !sleep(ctx, delay) {
				return
			}
			continue
		}

		s.publishState("up", "link_established", nil)
		if err := s.handleLink(ctx, cfg, rwc); err != nil {
			_ = rwc.Close()
			delay := backoff()
			s.publishState("degraded", "link_lost_retrying", fmt.Errorf("%v (retry in %s)", err, delay))
			if !sleep(ctx, delay) {
				return
			}
			continue
		}
		// Clean close: restart only on new config.
		return
	}
}

// record is one NDJSON line on the wire.
type record struct {
	Topic   []string `json:"topic,omitempty"`
	TsMs    int64    `json:"ts_ms"`
	Payload any      `json:"payload,omitempty"`
	Ping    bool     `json:"ping,omitempty"`
}

// handleLink owns the active link lifetime: it forwards every HAL value and
// state message and sends a keepalive line when the bus is quiet.
func (s *Service) handleLink(ctx context.Context, cfg Config, rwc io.ReadWriteCloser) error {
	valSub := s.conn.Subscribe(bus.Topic{"hal", "capability", bus.Plus, bus.Plus, "value"})
	halSub := s.conn.Subscribe(bus.Topic{"hal", "state"})
	defer s.conn.Unsubscribe(valSub)
	defer s.conn.Unsubscribe(halSub)

	w := bufio.NewWriter(rwc)
	enc := json.NewEncoder(w)

	send := func(rec record) error {
		if err := enc.Encode(rec); err != nil {
			return err
		}
		if err := w.Flush(); err != nil {
			return err
		}
		atomic.AddUint64(&s.sent, 1)
		return nil
	}

	// Reader: the far side only talks to keep the pipe honest, so anything
	// inbound is drained. A read error is the link-loss signal.
	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		buf := make([]byte, 256)
		for {
			if _, err := rwc.Read(buf); err != nil {
				errCh <- err
				return
			}
		}
	}()

	pingEvery := 5 * time.Second
	if cfg.PingSeconds > 0 {
		pingEvery = time.Duration(cfg.PingSeconds) * time.Second
	}
	tick := time.NewTicker(pingEvery)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = send(record{TsMs: timex.NowMs(), Ping: true})
			return nil
		case err := <-errCh:
			if err != nil {
				return err
			}
			return nil
		case m := <-valSub.Channel():
			if err := send(record{Topic: topicStrings(m.Topic), TsMs: timex.NowMs(), Payload: m.Payload}); err != nil {
				return err
			}
		case m := <-halSub.Channel():
			if err := send(record{Topic: topicStrings(m.Topic), TsMs: timex.NowMs(), Payload: m.Payload}); err != nil {
				return err
			}
		case <-tick.C:
			if err := send(record{TsMs: timex.NowMs(), Ping: true}); err != nil {
				return err
			}
		}
	}
}

// Sent reports how many records have been written since start.
func (s *Service) Sent() uint64 { return atomic.LoadUint64(&s.sent) }

// -----------------------------------------------------------------------------
// Utilities
// -----------------------------------------------------------------------------

func topicStrings(t bus.Topic) []string {
	out := make([]string, 0, len(t))
	for _, tok := range t {
		if str, ok := tok.(string); ok {
			out = append(out, str)
		} else {
			out = append(out, fmt.Sprint(tok))
		}
	}
	return out
}

func decodeConfig(p any) (Config, error) {
	var cfg Config
	switch v := p.(type) {
	case []byte:
		if err := json.Unmarshal(v, &cfg); err != nil {
			return cfg, err
		}
	case string:
		if err := json.Unmarshal([]byte(v), &cfg); err != nil {
			return cfg, err
		}
	case map[string]any:
		// Already a decoded object (e.g. from the config service); re-marshal.
		b, err := json.Marshal(v)
		if err != nil {
			return cfg, err
		}
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	default:
		return cfg, fmt.Errorf("unsupported config payload type: %T", p)
	}
	return cfg, nil
}

func (s *Service) publishState(level, status string, err error) {
	payload := map[string]any{
		"level":  level,  // "up", "degraded", "error", "idle"
		"status": status, // short machine string
		"ts_ms":  timex.NowMs(),
	}
	if err != nil {
		payload["error"] = err.Error()
	}
	msg := s.conn.NewMessage(s.stateTopic, payload, true)
	s.conn.Publish(msg)
}

func backoffSeq(min, max time.Duration) func() time.Duration {
	if min <= 0 {
		min = 100 * time.Millisecond
	}
	if max < min {
		max = min
	}
	var cur = min
	return func() time.Duration {
		d := cur
		cur *= 2
		if cur > max {
			cur = max
		}
		return d
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
