// Package sample defines the immutable measurement record every stage of the
// pipeline exchanges. A sample is complete once the conversion stage builds
// it; downstream consumers only ever read it.
package sample

import (
	"fmt"
	"time"
)

// Sample is one converted measurement from one channel of one device.
// Timestamps are strictly increasing per device. Valid is false when the
// converted value fell outside the channel range or the calibration domain;
// such samples are still delivered, never dropped.
type Sample struct {
	DeviceID  string    `json:"device_id"`
	Channel   int       `json:"channel"`
	Timestamp time.Time `json:"timestamp"`
	Raw       float64   `json:"raw"`
	Value     float64   `json:"value"`
	Unit      string    `json:"unit"`
	Valid     bool      `json:"valid"`
}

func (s Sample) String() string {
	return fmt.Sprintf("%s ch%d %g %s (raw %g, valid %t)",
		s.DeviceID, s.Channel, s.Value, s.Unit, s.Raw, s.Valid)
}
