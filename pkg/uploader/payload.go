package uploader

import (
	"math"
	"time"
)

// DefaultDeviceID is the identifier sent with payloads when no explicit
// device id has been configured.
const DefaultDeviceID = "pico_w_001"

// Payload is our outgoing data type. One is constructed fresh for every
// upload and discarded once the request completes; nothing is persisted.
type Payload struct {
	Temperature float64 `json:"temperature"`
	Timestamp   int64   `json:"timestamp"`
	DeviceID    string  `json:"device_id"`
}

// NewPayload builds a Payload from a raw Celsius reading, the wall-clock time
// of the reading and the configured device identifier. The temperature is
// rounded to exactly two decimal places.
func NewPayload(celsius float64, at time.Time, deviceID string) Payload {
	return Payload{
		Temperature: Round2(celsius),
		Timestamp:   at.Unix(),
		DeviceID:    deviceID,
	}
}

// Round2 rounds a value to two decimal places.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
