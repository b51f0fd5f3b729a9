package config

// -----------------------------------------------------------------------------
// Embedded configuration
//
// Populate embeddedConfigs at build time (e.g. via code generation) or
// manually during development.
// Key: device ID (same value placed in ctx under CtxDeviceKey)
// Val: raw JSON bytes for that device
// -----------------------------------------------------------------------------

// Pico carrier board: BME280 + BH1750 on i2c0, air quality on uart0, radar
// on uart1.
const cfgPico = `{
  "hal": {
    "devices": [
      {"id": "env0",   "type": "bme280",  "params": {"bus": "i2c0"}},
      {"id": "light0", "type": "bh1750",  "params": {"bus": "i2c0"}},
      {"id": "air0",   "type": "zphs01c", "params": {"port": "uart0", "baud": 9600}},
      {"id": "radar0", "type": "ld2410",  "params": {"port": "uart1", "baud": 256000}}
    ],
    "pollers": [
      {"domain": "env", "kind": "temperature", "name": "env0",   "verb": "read", "interval_ms": 2000, "jitter_ms": 250},
      {"domain": "env", "kind": "light",       "name": "light0", "verb": "read", "interval_ms": 2000, "jitter_ms": 250},
      {"domain": "env", "kind": "airquality",  "name": "air0",   "verb": "read", "interval_ms": 5000},
      {"domain": "env", "kind": "presence",    "name": "radar0", "verb": "read", "interval_ms": 1000}
    ]
  },
  "heartbeat": {
    "interval": 2
  }
}`

// Linux host (USB adapters): same sensors on /dev nodes.
const cfgHost = `{
  "hal": {
    "devices": [
      {"id": "env0",   "type": "bme280",  "params": {"bus": "i2c1"}},
      {"id": "light0", "type": "bh1750",  "params": {"bus": "i2c1"}},
      {"id": "air0",   "type": "zphs01c", "params": {"port": "/dev/ttyUSB0", "baud": 9600}},
      {"id": "radar0", "type": "ld2410",  "params": {"port": "/dev/ttyUSB1", "baud": 256000}}
    ]
  },
  "heartbeat": {
    "interval": 5
  }
}`

var embeddedConfigs = map[string][]byte{
	"pico": []byte(cfgPico),
	"host": []byte(cfgHost),
}
