// cmd/sensortest/main.go
//
// Host-side soak test: brings up the HAL against real hardware (Linux
// i2c-dev + USB serial adapters) and prints every reading as it lands.
package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"sensorcode-go/bus"
	"sensorcode-go/services/hal"
	"sensorcode-go/types"
)

const (
	halReadyTimeout = 5 * time.Second

	// Freshness
	freshMaxAge = 10 * time.Second
	reportEvery = 15 * time.Second
)

func tHalState() bus.Topic { return bus.T("hal", "state") }

func tValue(kind types.Kind, name string) bus.Topic {
	return bus.T("hal", "capability", string(kind), name, "value")
}

// ---------- Helpers ----------

func waitHALReady(c *bus.Connection, d time.Duration) bool {
	sub := c.Subscribe(tHalState())
	defer c.Unsubscribe(sub)

	dead := time.Now().Add(d)
	for time.Now().Before(dead) {
		select {
		case m := <-sub.Channel():
			if st, ok := m.Payload.(types.HALState); ok && st.Level == "ready" {
				return true
			}
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
	return false
}

func printReading(name string, payload any) {
	switch v := payload.(type) {
	case types.TemperatureValue:
		fmt.Printf("[%s] temperature %d.%d C oor=%v\n", name, v.DeciC/10, abs(int(v.DeciC))%10, v.OutOfRange)
	case types.HumidityValue:
		fmt.Printf("[%s] humidity %d.%02d %%RH oor=%v\n", name, v.RHx100/100, v.RHx100%100, v.OutOfRange)
	case types.PressureValue:
		fmt.Printf("[%s] pressure %d Pa oor=%v\n", name, v.Pa, v.OutOfRange)
	case types.LightValue:
		fmt.Printf("[%s] light %d.%d lx\n", name, v.DeciLux/10, v.DeciLux%10)
	case types.AirQualityValue:
		fmt.Printf("[%s] co2 %d ppm voc %d pm1 %d pm2.5 %d pm10 %d ug/m3 oor=%v\n",
			name, v.CO2PPM, v.VOC, v.PM1, v.PM25, v.PM10, v.OutOfRange)
	case types.PresenceValue:
		fmt.Printf("[%s] presence=%v state=%d dist %d cm moving %d%% static %d%%\n",
			name, v.Present, v.State, v.DistanceCM, v.MovingEnergy, v.StaticEnergy)
	default:
		fmt.Printf("[%s] %v\n", name, payload)
	}
}

func abs(i int) int {
	if i < 0 {
		return -i
	}
	return i
}

// ---------- Main ----------

func main() {
	i2cBus := flag.String("i2c", "i2c1", "i2c bus for bme280/bh1750 (i2cN or /dev path)")
	aqPort := flag.String("aq", "/dev/ttyUSB0", "serial port for the zphs01c air quality module")
	radarPort := flag.String("radar", "", "serial port for the ld2410 radar (empty = skip)")
	flag.Parse()

	ctx := context.Background()

	b := bus.NewBus(8)
	halConn := b.NewConnection("hal")
	ui := b.NewConnection("ui")

	go hal.Run(ctx, halConn, hal.NewHostI2C(), hal.NewHostPorts())

	devices := []types.HALDevice{
		{ID: "env0", Type: "bme280", Params: hal.I2CParams{Bus: *i2cBus}},
		{ID: "light0", Type: "bh1750", Params: hal.I2CParams{Bus: *i2cBus}},
		{ID: "air0", Type: "zphs01c", Params: hal.SerialParams{
			SerialConfig: types.SerialConfig{Port: *aqPort, Baud: 9600}}},
	}
	if *radarPort != "" {
		devices = append(devices, types.HALDevice{ID: "radar0", Type: "ld2410",
			Params: hal.SerialParams{SerialConfig: types.SerialConfig{Port: *radarPort, Baud: 256000}}})
	}

	cfg := types.HALConfig{
		Devices: devices,
		Pollers: []types.PollSpec{
			{Kind: types.KindTemperature, Name: "env0", Verb: "read", IntervalMs: 2000},
			{Kind: types.KindLight, Name: "light0", Verb: "read", IntervalMs: 2000},
			{Kind: types.KindAirQuality, Name: "air0", Verb: "read", IntervalMs: 5000},
			{Kind: types.KindPresence, Name: "radar0", Verb: "read", IntervalMs: 1000},
		},
	}
	ui.Publish(ui.NewMessage(bus.T("config", "hal"), cfg, true))

	if !waitHALReady(halConn, halReadyTimeout) {
		println("[sensortest] HAL not ready within timeout; continuing")
	}

	// One subscription per expected stream so staleness is per-capability.
	type stream struct {
		label string
		sub   *bus.Subscription
		last  time.Time
	}
	streams := []*stream{
		{label: "env0/temperature", sub: ui.Subscribe(tValue(types.KindTemperature, "env0"))},
		{label: "env0/humidity", sub: ui.Subscribe(tValue(types.KindHumidity, "env0"))},
		{label: "env0/pressure", sub: ui.Subscribe(tValue(types.KindPressure, "env0"))},
		{label: "light0/light", sub: ui.Subscribe(tValue(types.KindLight, "light0"))},
		{label: "air0/airquality", sub: ui.Subscribe(tValue(types.KindAirQuality, "air0"))},
	}
	if *radarPort != "" {
		streams = append(streams,
			&stream{label: "radar0/presence", sub: ui.Subscribe(tValue(types.KindPresence, "radar0"))})
	}

	report := time.NewTicker(reportEvery)
	defer report.Stop()

	for {
		progressed := false
		for _, st := range streams {
			select {
			case m := <-st.sub.Channel():
				st.last = time.Now()
				printReading(st.label, m.Payload)
				progressed = true
			default:
			}
		}

		select {
		case <-report.C:
			now := time.Now()
			miss := make([]string, 0, len(streams))
			for _, st := range streams {
				if st.last.IsZero() || now.Sub(st.last) > freshMaxAge {
					miss = append(miss, st.label)
				}
			}
			if len(miss) == 0 {
				fmt.Println("[PASS] all sensor streams fresh")
			} else {
				fmt.Printf("[FAIL] missing or stale: %v\n", miss)
			}
		default:
		}

		if !progressed {
			time.Sleep(20 * time.Millisecond)
		}
	}
}
