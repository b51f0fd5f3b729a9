package types

// ------------------------
// Capability addressing & kinds
// ------------------------

type Kind string

const (
	KindTemperature Kind = "temperature"
	KindHumidity    Kind = "humidity"
	KindPressure    Kind = "pressure"
	KindLight       Kind = "light"
	KindAirQuality  Kind = "airquality"
	KindPresence    Kind = "presence"
)
