package gps

import (
	nmea "github.com/adrianmo/go-nmea"
)

// Fix represents a single combined GPS fix suitable for JSON and MQTT.
type Fix struct {
	Time       string  `json:"time"`        // e.g. "12:34:56.0000"
	Date       string  `json:"date"`        // e.g. "06/12/25"
	Latitude   float64 `json:"lat"`         // decimal degrees
	Longitude  float64 `json:"lon"`         // decimal degrees
	SpeedKnots float64 `json:"speed_knots"` // speed over ground
	CourseDeg  float64 `json:"course_deg"`  // course over ground
	Validity   string  `json:"validity"`    // "A" (valid) / "V" (void)
}

// FromRMC fills a Fix from a recommended minimum sentence.
func FromRMC(m nmea.RMC) Fix {
	return Fix{
		Time:       m.Time.String(),
		Date:       m.Date.String(),
		Latitude:   m.Latitude,
		Longitude:  m.Longitude,
		SpeedKnots: m.Speed,
		CourseDeg:  m.Course,
		Validity:   string(m.Validity),
	}
}

// Valid reports whether the receiver had a position lock.
func (f Fix) Valid() bool { return f.Validity == nmea.ValidRMC }
