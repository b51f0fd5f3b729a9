package types

// Info structs appear on hal/capability/<kind>/<name>/info (retained).
// Value payloads appear on hal/capability/<kind>/<name>/value (retained).
// Values are fixed-point, small types to suit TinyGo. A set OutOfRange flag
// means the reading fell outside the sensor's documented span; the value is
// published anyway so consumers can decide for themselves.

// ------------------------
// Temperature & humidity
// ------------------------

type TemperatureInfo struct {
	Sensor string `json:"sensor"` // "bme280", "zphs01c", ...
	Addr   uint16 `json:"addr,omitempty"`
	Bus    string `json:"bus,omitempty"` // "i2c0", "uart1", ...
}

type HumidityInfo struct {
	Sensor string `json:"sensor"`
	Addr   uint16 `json:"addr,omitempty"`
	Bus    string `json:"bus,omitempty"`
}

type TemperatureValue struct {
	// Tenths of °C (e.g. 231 => 23.1°C).
	DeciC      int16 `json:"deci_c"`
	OutOfRange bool  `json:"out_of_range,omitempty"`
}

type HumidityValue struct {
	// Hundredths of %RH (0..10000 for 0..100.00%).
	RHx100     uint16 `json:"rh_x100"`
	OutOfRange bool   `json:"out_of_range,omitempty"`
}

// ------------------------
// Pressure
// ------------------------

type PressureInfo struct {
	Sensor string `json:"sensor"`
	Addr   uint16 `json:"addr"`
	Bus    string `json:"bus"`
}

type PressureValue struct {
	Pa         uint32 `json:"pa"`
	OutOfRange bool   `json:"out_of_range,omitempty"`
}

// ------------------------
// Ambient light
// ------------------------

type LightInfo struct {
	Sensor string `json:"sensor"`
	Addr   uint16 `json:"addr"`
	Bus    string `json:"bus"`
}

type LightValue struct {
	// Tenths of a lux.
	DeciLux uint32 `json:"deci_lux"`
}

// ------------------------
// Air quality (multi-channel)
// ------------------------

type AirQualityInfo struct {
	Sensor string `json:"sensor"`
	Port   string `json:"port"` // "uart0", "/dev/ttyUSB0", ...
	Baud   uint32 `json:"baud"`
}

type AirQualityValue struct {
	CO2PPM     uint16 `json:"co2_ppm"`
	VOC        uint16 `json:"voc"` // grade 0..3
	PM1        uint16 `json:"pm1_ugm3"`
	PM25       uint16 `json:"pm25_ugm3"`
	PM10       uint16 `json:"pm10_ugm3"`
	OutOfRange bool   `json:"out_of_range,omitempty"`
}

// ------------------------
// Presence (radar)
// ------------------------

type PresenceInfo struct {
	Sensor string `json:"sensor"`
	Port   string `json:"port"`
	Baud   uint32 `json:"baud"`
}

type PresenceValue struct {
	Present      bool   `json:"present"`
	State        uint8  `json:"state"` // 0 none, 1 moving, 2 static, 3 both
	DistanceCM   uint16 `json:"distance_cm"`
	MovingEnergy uint8  `json:"moving_energy"`
	StaticEnergy uint8  `json:"static_energy"`
}
