package state

// Snapshot is one stored aircraft observation. Optional fields mirror the
// provider's state vector: nil means not reported.
type Snapshot struct {
	ICAO24       string   `json:"icao24"`
	Timestamp    int64    `json:"timestamp"`
	Latitude     *float64 `json:"latitude,omitempty"`
	Longitude    *float64 `json:"longitude,omitempty"`
	Altitude     *float64 `json:"altitude,omitempty"`
	Velocity     *float64 `json:"velocity,omitempty"`
	OnGround     bool     `json:"on_ground"`
	VerticalRate *float64 `json:"vertical_rate,omitempty"`
	Callsign     *string  `json:"callsign,omitempty"`
	Heading      *float64 `json:"heading,omitempty"`
	Squawk       *string  `json:"squawk,omitempty"`
	LastContact  int64    `json:"last_contact"`
}

// Anomaly is a stored anomaly record. Details is the rule-specific payload
// serialized as JSON.
type Anomaly struct {
	ID           int64          `json:"id"`
	Timestamp    int64          `json:"timestamp"`
	ICAO24       *string        `json:"icao24"` // nil for fleet-wide anomalies
	Type         string         `json:"anomaly_type"`
	Severity     string         `json:"severity"`
	Details      map[string]any `json:"details,omitempty"`
	Acknowledged bool           `json:"acknowledged"`
}
