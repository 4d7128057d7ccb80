package opensky

import (
	"regexp"
	"strings"
)

// StateVector is a decoded ADS-B state vector for a single aircraft.
// Optional fields are pointers; nil means the provider did not report the
// field, which is distinct from a zero value.
type StateVector struct {
	ICAO24         string   `json:"icao24"`
	Callsign       *string  `json:"callsign,omitempty"`
	OriginCountry  string   `json:"origin_country,omitempty"`
	TimePosition   *int64   `json:"time_position,omitempty"`
	LastContact    int64    `json:"last_contact"`
	Longitude      *float64 `json:"longitude,omitempty"`
	Latitude       *float64 `json:"latitude,omitempty"`
	BaroAltitude   *float64 `json:"baro_altitude,omitempty"`
	OnGround       bool     `json:"on_ground"`
	Velocity       *float64 `json:"velocity,omitempty"`
	TrueTrack      *float64 `json:"true_track,omitempty"`
	VerticalRate   *float64 `json:"vertical_rate,omitempty"`
	GeoAltitude    *float64 `json:"geo_altitude,omitempty"`
	Squawk         *string  `json:"squawk,omitempty"`
	SPI            bool     `json:"spi,omitempty"`
	PositionSource *int     `json:"position_source,omitempty"`

	// Timestamp is the poll ingestion time (epoch seconds), set by the
	// caller, not by the provider.
	Timestamp int64 `json:"timestamp,omitempty"`
}

// Altitude returns the barometric altitude in metres, falling back to
// geometric altitude. The second return is false when neither is present.
func (s *StateVector) Altitude() (float64, bool) {
	if s.BaroAltitude != nil {
		return *s.BaroAltitude, true
	}
	if s.GeoAltitude != nil {
		return *s.GeoAltitude, true
	}
	return 0, false
}

// States is the response of the states/all endpoint.
type States struct {
	Time   int64
	States []*StateVector
}

var hexRe = regexp.MustCompile(`^[0-9A-F]{6}$`)

// ValidICAO24 reports whether s (after trimming and uppercasing) is a
// valid 24-bit Mode S address in hex form.
func ValidICAO24(s string) bool {
	return hexRe.MatchString(strings.ToUpper(strings.TrimSpace(s)))
}

// NormalizeICAO24 trims and uppercases an ICAO24 hex string.
func NormalizeICAO24(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// decodeStateTuple converts one positional state vector tuple from the
// states/all response into a StateVector. The tuple layout is fixed by the
// provider: 0 icao24, 1 callsign, 2 origin_country, 3 time_position,
// 4 last_contact, 5 longitude, 6 latitude, 7 baro_altitude, 8 on_ground,
// 9 velocity, 10 true_track, 11 vertical_rate, 12 sensors, 13 geo_altitude,
// 14 squawk, 15 spi, 16 position_source. Returns nil when the tuple has no
// usable icao24.
func decodeStateTuple(tuple []any) *StateVector {
	icao, ok := tupleString(tuple, 0)
	if !ok || strings.TrimSpace(icao) == "" {
		return nil
	}

	sv := &StateVector{ICAO24: NormalizeICAO24(icao)}

	if cs, ok := tupleString(tuple, 1); ok {
		trimmed := strings.TrimSpace(cs)
		if trimmed != "" {
			sv.Callsign = &trimmed
		}
	}
	if c, ok := tupleString(tuple, 2); ok {
		sv.OriginCountry = c
	}
	if tp, ok := tupleInt64(tuple, 3); ok {
		sv.TimePosition = &tp
	}
	if lc, ok := tupleInt64(tuple, 4); ok {
		sv.LastContact = lc
	}
	if lon, ok := tupleFloat(tuple, 5); ok {
		sv.Longitude = &lon
	}
	if lat, ok := tupleFloat(tuple, 6); ok {
		sv.Latitude = &lat
	}
	if alt, ok := tupleFloat(tuple, 7); ok {
		sv.BaroAltitude = &alt
	}
	if og, ok := tupleBool(tuple, 8); ok {
		sv.OnGround = og
	}
	if v, ok := tupleFloat(tuple, 9); ok {
		sv.Velocity = &v
	}
	if tt, ok := tupleFloat(tuple, 10); ok {
		sv.TrueTrack = &tt
	}
	if vr, ok := tupleFloat(tuple, 11); ok {
		sv.VerticalRate = &vr
	}
	if ga, ok := tupleFloat(tuple, 13); ok {
		sv.GeoAltitude = &ga
	}
	if sq, ok := tupleString(tuple, 14); ok && sq != "" {
		sv.Squawk = &sq
	}
	if spi, ok := tupleBool(tuple, 15); ok {
		sv.SPI = spi
	}
	if ps, ok := tupleFloat(tuple, 16); ok {
		psInt := int(ps)
		sv.PositionSource = &psInt
	}

	return sv
}

func tupleString(tuple []any, idx int) (string, bool) {
	if idx >= len(tuple) {
		return "", false
	}
	s, ok := tuple[idx].(string)
	return s, ok
}

func tupleFloat(tuple []any, idx int) (float64, bool) {
	if idx >= len(tuple) {
		return 0, false
	}
	f, ok := tuple[idx].(float64)
	return f, ok
}

func tupleInt64(tuple []any, idx int) (int64, bool) {
	f, ok := tupleFloat(tuple, idx)
	return int64(f), ok
}

func tupleBool(tuple []any, idx int) (bool, bool) {
	if idx >= len(tuple) {
		return false, false
	}
	b, ok := tuple[idx].(bool)
	return b, ok
}
