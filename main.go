package main

import (
	"context"
	"time"

	"sensorcode-go/bus"
	"sensorcode-go/services/config"
	"sensorcode-go/services/hal"
	"sensorcode-go/services/heartbeat"
	"sensorcode-go/services/uplink"
)

func main() {
	// Allow USB CDC to enumerate before we print.
	time.Sleep(2 * time.Second)
	println("boot:", deviceName)

	ctx := context.WithValue(context.Background(), config.CtxDeviceKey, deviceName)

	b := bus.NewBus(8)

	go hal.Run(ctx, b.NewConnection("hal"), hal.NewHostI2C(), hal.NewHostPorts())

	// Idles until a config/uplink section arrives.
	go uplink.Start(ctx, b.NewConnection("uplink"))

	hb := &heartbeat.Service{}
	if err := hb.Start(ctx, b.NewConnection("heartbeat")); err != nil {
		println("Error: heartbeat start:", err.Error())
	}

	// Services are up and subscribed; publish the embedded config last so
	// everyone sees it live rather than relying on retained replay.
	time.Sleep(100 * time.Millisecond)
	config.NewConfigService().Start(ctx, b.NewConnection("config"))

	// Diagnostic tap on every value the HAL emits.
	mon := b.NewConnection("main").Subscribe(bus.T("hal", "capability", "+", "+", "value"))
	for m := range mon.Channel() {
		if len(m.Topic) >= 4 {
			kind, _ := m.Topic[2].(string)
			name, _ := m.Topic[3].(string)
			println("value:", kind, name)
		}
	}
}
