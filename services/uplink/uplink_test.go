// uplink/uplink_test.go
package uplink

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net"
	"testing"
	"time"

	"sensorcode-go/bus"
	"sensorcode-go/types"
)

func TestUplink_ForwardsValuesAndReportsState(t *testing.T) {
	b := bus.NewBus(16)
	conn := b.NewConnection("uplink_test")
	hal := b.NewConnection("hal_fake")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go Start(ctx, conn)

	stateSub := conn.Subscribe(bus.Topic{"uplink", "state"})
	defer conn.Unsubscribe(stateSub)

	first := nextStatePayload(t, stateSub, 500*time.Millisecond)
	assertLevelStatus(t, first, "idle", "awaiting_config")

	// Inject a serial dialler that returns a net.Pipe; keep the remote end
	// to read forwarded records and to simulate link loss.
	prevDial := SerialDial
	defer func() { SerialDial = prevDial }()
	var remote io.ReadWriteCloser
	lines := make(chan record, 16)
	SerialDial = func(_ context.Context, _ types.SerialConfig) (io.ReadWriteCloser, error) {
		lc, rc := net.Pipe()
		remote = rc
		go remotePeer(rc, lines)
		return lc, nil
	}

	cfg := `{"transport":{"type":"serial","serial":{"port":"loop0","baud":115200}},"ping_seconds":1}`
	conn.Publish(conn.NewMessage(bus.Topic{"config", "uplink"}, cfg, false))

	up := nextStatePayload(t, stateSub, time.Second)
	assertLevelStatus(t, up, "up", "link_established")

	// A HAL reading must come out the far end as one JSON line.
	valTopic := bus.T("hal", "capability", "temperature", "env0", "value")
	hal.Publish(hal.NewMessage(valTopic, types.TemperatureValue{DeciC: 215}, true))

	rec := nextRecord(t, lines, time.Second)
	if len(rec.Topic) != 5 || rec.Topic[2] != "temperature" || rec.Topic[3] != "env0" {
		t.Fatalf("forwarded topic = %v", rec.Topic)
	}
	if rec.TsMs == 0 {
		t.Fatalf("forwarded record missing timestamp")
	}

	// Keepalives flow when the bus is quiet.
	ping := nextRecord(t, lines, 2*time.Second)
	for !ping.Ping {
		ping = nextRecord(t, lines, 2*time.Second)
	}

	// Close the remote to force link loss; expect degraded state.
	if remote != nil {
		_ = remote.Close()
	}
	degraded := nextStatePayload(t, stateSub, time.Second)
	assertLevelStatus(t, degraded, "degraded", "link_lost_retrying")
}

func TestUplink_UnknownTransportYieldsErrorState(t *testing.T) {
	b := bus.NewBus(8)
	conn := b.NewConnection("uplink_test_bad")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go Start(ctx, conn)

	stateSub := conn.Subscribe(bus.Topic{"uplink", "state"})
	defer conn.Unsubscribe(stateSub)

	_ = nextStatePayload(t, stateSub, 500*time.Millisecond) // initial awaiting_config

	cfg := `{"transport":{"type":"bogus"}}`
	conn.Publish(conn.NewMessage(bus.Topic{"config", "uplink"}, cfg, false))

	errState := nextStatePayload(t, stateSub, time.Second)
	assertLevelStatus(t, errState, "error", "transport_init_failed")
}

// -----------------------------------------------------------------------------
// Helpers
// -----------------------------------------------------------------------------

// remotePeer decodes NDJSON lines off the link and hands them to the test.
// It exits on read error.
func remotePeer(c io.ReadWriteCloser, out chan<- record) {
	defer c.Close()
	sc := bufio.NewScanner(c)
	for sc.Scan() {
		var rec record
		if err := json.Unmarshal(sc.Bytes(), &rec); err != nil {
			continue
		}
		select {
		case out <- rec:
		default:
		}
	}
}

func nextRecord(t *testing.T, lines <-chan record, d time.Duration) record {
	t.Helper()
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case rec := <-lines:
		return rec
	case <-timer.C:
		t.Fatalf("timeout waiting for uplink record")
		return record{}
	}
}

func nextStatePayload(t *testing.T, sub *bus.Subscription, d time.Duration) map[string]any {
	t.Helper()
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case m := <-sub.Channel():
		p, ok := m.Payload.(map[string]any)
		if !ok {
			t.Fatalf("state payload type: got %T, want map[string]any", m.Payload)
		}
		return p
	case <-timer.C:
		t.Fatalf("timeout waiting for uplink/state")
		return nil
	}
}

func assertLevelStatus(t *testing.T, payload map[string]any, wantLevel, wantStatus string) {
	t.Helper()
	gotLevel, _ := payload["level"].(string)
	gotStatus, _ := payload["status"].(string)
	if gotLevel != wantLevel || gotStatus != wantStatus {
		t.Fatalf("unexpected state: level=%q status=%q, want level=%q status=%q (payload=%v)",
			gotLevel, gotStatus, wantLevel, wantStatus, payload)
	}
}
