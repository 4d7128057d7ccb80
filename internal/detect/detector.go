// Package detect evaluates anomaly rules over aircraft observations. The
// detector is pure: it reads snapshots and returns findings, it never
// touches the network or the database.
package detect

import (
	"math"
	"sort"
	"time"

	"fleetwatch/internal/state"
)

// Severity levels, highest last.
const (
	SeverityLow      = "LOW"
	SeverityMedium   = "MEDIUM"
	SeverityHigh     = "HIGH"
	SeverityCritical = "CRITICAL"
)

// Unit conversions from the provider's SI units.
const (
	msToKnots = 1.94384 // m/s to knots
	msToFtMin = 196.85  // m/s to ft/min
	mToFeet   = 3.28084 // metres to feet
)

// emergencySquawks maps transponder emergency codes to their meaning.
var emergencySquawks = map[string]string{
	"7500": "hijack",
	"7600": "radio_failure",
	"7700": "emergency",
}

// Anomaly is one detected finding. ICAO24 is nil for fleet-wide anomalies.
type Anomaly struct {
	ICAO24   *string
	Type     string
	Severity string
	Details  map[string]any
}

// Config holds the detection thresholds.
type Config struct {
	SpeedThresholdKnots float64
	RapidClimbFtMin     float64
	RapidDescentFt      float64
	RapidDescentWindow  time.Duration
	MultiLaunchWindow   time.Duration
}

// DefaultConfig returns the standard thresholds.
func DefaultConfig() Config {
	return Config{
		SpeedThresholdKnots: 150,
		RapidClimbFtMin:     2000,
		RapidDescentFt:      1000,
		RapidDescentWindow:  30 * time.Second,
		MultiLaunchWindow:   300 * time.Second,
	}
}

// Detector evaluates anomaly rules against per-aircraft snapshots.
type Detector struct {
	cfg Config
}

// New creates a detector with the given thresholds.
func New(cfg Config) *Detector {
	return &Detector{cfg: cfg}
}

// Detect runs all rules. current holds this tick's snapshot per aircraft,
// previous the prior tick's, and history recent snapshots newest first.
// Per-aircraft findings come back sorted by (icao24, type); fleet-wide
// findings follow.
func (d *Detector) Detect(current, previous map[string]state.Snapshot, history map[string][]state.Snapshot) []Anomaly {
	var out []Anomaly

	for icao24, cur := range current {
		hist := history[icao24]
		out = append(out, d.checkSpeed(icao24, cur, hist)...)
		out = append(out, d.checkAltitude(icao24, cur, hist)...)
		out = append(out, d.checkSquawk(icao24, cur)...)
		out = append(out, d.checkFlightPattern(icao24, hist)...)
	}

	sort.Slice(out, func(i, j int) bool {
		if *out[i].ICAO24 != *out[j].ICAO24 {
			return *out[i].ICAO24 < *out[j].ICAO24
		}
		return out[i].Type < out[j].Type
	})

	out = append(out, d.checkMultipleLaunch(current, previous)...)
	return out
}

// checkSpeed flags absolute overspeed and sudden acceleration against a
// short baseline. The baseline is the three snapshots preceding the most
// recent one, excluding missing or zero velocities.
func (d *Detector) checkSpeed(icao24 string, cur state.Snapshot, hist []state.Snapshot) []Anomaly {
	if cur.Velocity == nil {
		return nil
	}
	var out []Anomaly

	velocityMS := *cur.Velocity
	velocityKnots := velocityMS * msToKnots

	if velocityKnots > d.cfg.SpeedThresholdKnots {
		out = append(out, Anomaly{
			ICAO24:   &icao24,
			Type:     "high_speed",
			Severity: SeverityHigh,
			Details: map[string]any{
				"velocity_knots":  round1(velocityKnots),
				"threshold_knots": d.cfg.SpeedThresholdKnots,
				"velocity_ms":     round1(velocityMS),
			},
		})
	}

	if len(hist) >= 2 {
		// History is newest first; skip the most recent entry and take up
		// to three before it as the baseline window.
		baseline := hist[1:]
		if len(baseline) > 3 {
			baseline = baseline[:3]
		}

		var sum float64
		samples := 0
		for _, h := range baseline {
			if h.Velocity != nil && *h.Velocity > 0 {
				sum += *h.Velocity
				samples++
			}
		}

		if samples > 0 {
			avgMS := sum / float64(samples)
			avgKnots := avgMS * msToKnots

			// Minimum current speed filters out taxiing noise.
			if avgMS > 0 && velocityKnots > 30 {
				increasePct := (velocityMS - avgMS) / avgMS * 100
				increaseKnots := velocityKnots - avgKnots
				if increasePct > 60 && increaseKnots > 20 {
					out = append(out, Anomaly{
						ICAO24:   &icao24,
						Type:     "sudden_speed_increase",
						Severity: SeverityMedium,
						Details: map[string]any{
							"baseline_velocity_knots": round1(avgKnots),
							"current_velocity_knots":  round1(velocityKnots),
							"increase_percent":        round1(increasePct),
							"absolute_increase_knots": round1(increaseKnots),
							"baseline_samples":        samples,
						},
					})
				}
			}
		}
	}

	return out
}

// checkAltitude flags rapid climbs from the reported vertical rate and
// rapid descents against recent history.
func (d *Detector) checkAltitude(icao24 string, cur state.Snapshot, hist []state.Snapshot) []Anomaly {
	var out []Anomaly

	if cur.VerticalRate != nil {
		rateFtMin := *cur.VerticalRate * msToFtMin
		if rateFtMin > d.cfg.RapidClimbFtMin {
			details := map[string]any{
				"vertical_rate_ft_min": round0(rateFtMin),
				"threshold_ft_min":     d.cfg.RapidClimbFtMin,
			}
			if cur.Altitude != nil {
				details["altitude_ft"] = round0(*cur.Altitude * mToFeet)
			} else {
				details["altitude_ft"] = nil
			}
			out = append(out, Anomaly{
				ICAO24:   &icao24,
				Type:     "rapid_climb",
				Severity: SeverityHigh,
				Details:  details,
			})
		}
	}

	if cur.Altitude != nil && len(hist) > 0 {
		now := observedAt(cur)
		cutoff := now - int64(d.cfg.RapidDescentWindow.Seconds())

		for _, past := range hist {
			if observedAt(past) < cutoff || past.Altitude == nil {
				continue
			}
			dropFt := (*past.Altitude - *cur.Altitude) * mToFeet
			if dropFt > d.cfg.RapidDescentFt {
				out = append(out, Anomaly{
					ICAO24:   &icao24,
					Type:     "rapid_descent",
					Severity: SeverityCritical,
					Details: map[string]any{
						"altitude_drop_ft":     round0(dropFt),
						"previous_altitude_ft": round0(*past.Altitude * mToFeet),
						"current_altitude_ft":  round0(*cur.Altitude * mToFeet),
						"time_window_seconds":  int(d.cfg.RapidDescentWindow.Seconds()),
					},
				})
				// One descent finding per tick.
				break
			}
		}
	}

	return out
}

// checkSquawk flags the transponder emergency codes.
func (d *Detector) checkSquawk(icao24 string, cur state.Snapshot) []Anomaly {
	if cur.Squawk == nil {
		return nil
	}
	kind, ok := emergencySquawks[*cur.Squawk]
	if !ok {
		return nil
	}

	details := map[string]any{
		"squawk_code": *cur.Squawk,
		"squawk_type": kind,
	}
	if cur.Callsign != nil {
		details["callsign"] = *cur.Callsign
	} else {
		details["callsign"] = nil
	}
	return []Anomaly{{
		ICAO24:   &icao24,
		Type:     "emergency_squawk_" + kind,
		Severity: SeverityCritical,
		Details:  details,
	}}
}

// checkFlightPattern flags erratic heading sequences and sustained
// hovering at altitude.
func (d *Detector) checkFlightPattern(icao24 string, hist []state.Snapshot) []Anomaly {
	if len(hist) < 3 {
		return nil
	}
	var out []Anomaly

	var changes []float64
	for i := 0; i < len(hist)-1; i++ {
		a, b := hist[i].Heading, hist[i+1].Heading
		if a == nil || b == nil {
			continue
		}
		change := math.Abs(*b - *a)
		if change > 180 {
			change = 360 - change
		}
		changes = append(changes, change)
	}

	large := 0
	var sum float64
	for _, c := range changes {
		sum += c
		if c > 90 {
			large++
		}
	}
	if large >= 3 {
		avg := 0.0
		if len(changes) > 0 {
			avg = round1(sum / float64(len(changes)))
		}
		out = append(out, Anomaly{
			ICAO24:   &icao24,
			Type:     "erratic_heading",
			Severity: SeverityMedium,
			Details: map[string]any{
				"large_heading_changes": large,
				"total_changes":         len(changes),
				"average_change":        avg,
			},
		})
	}

	if len(hist) >= 5 {
		recent := hist[:5]
		var altSum, velSum float64
		altN, velN := 0, 0
		for _, h := range recent {
			if h.Altitude != nil && *h.Altitude != 0 {
				altSum += *h.Altitude
				altN++
			}
			if h.Velocity != nil && *h.Velocity != 0 {
				velSum += *h.Velocity
				velN++
			}
		}

		if altN >= 3 && velN >= 3 {
			avgAltFt := altSum / float64(altN) * mToFeet
			avgVelKnots := velSum / float64(velN) * msToKnots
			if avgAltFt > 5000 && avgVelKnots < 30 {
				out = append(out, Anomaly{
					ICAO24:   &icao24,
					Type:     "hovering_high_altitude",
					Severity: SeverityLow,
					Details: map[string]any{
						"average_altitude_ft":    round0(avgAltFt),
						"average_velocity_knots": round1(avgVelKnots),
					},
				})
			}
		}
	}

	return out
}

// checkMultipleLaunch flags three or more aircraft leaving the ground
// within the launch window. The finding is fleet-wide: ICAO24 is nil.
func (d *Detector) checkMultipleLaunch(current, previous map[string]state.Snapshot) []Anomaly {
	type launch struct {
		icao24    string
		timestamp int64
		callsign  *string
	}

	var launches []launch
	for icao24, cur := range current {
		prev, ok := previous[icao24]
		if !ok {
			continue
		}
		if prev.OnGround && !cur.OnGround {
			launches = append(launches, launch{
				icao24:    icao24,
				timestamp: observedAt(cur),
				callsign:  cur.Callsign,
			})
		}
	}

	if len(launches) < 3 {
		return nil
	}

	minTS, maxTS := launches[0].timestamp, launches[0].timestamp
	for _, l := range launches[1:] {
		minTS = min(minTS, l.timestamp)
		maxTS = max(maxTS, l.timestamp)
	}
	span := maxTS - minTS
	if span > int64(d.cfg.MultiLaunchWindow.Seconds()) {
		return nil
	}

	sort.Slice(launches, func(i, j int) bool { return launches[i].icao24 < launches[j].icao24 })

	aircraft := make([]map[string]any, 0, len(launches))
	for _, l := range launches {
		entry := map[string]any{"icao24": l.icao24}
		if l.callsign != nil {
			entry["callsign"] = *l.callsign
		} else {
			entry["callsign"] = nil
		}
		aircraft = append(aircraft, entry)
	}

	return []Anomaly{{
		ICAO24:   nil,
		Type:     "multiple_launch",
		Severity: SeverityCritical,
		Details: map[string]any{
			"aircraft_count":    len(launches),
			"time_span_seconds": span,
			"aircraft":          aircraft,
		},
	}}
}

// observedAt returns the snapshot's observation time, preferring the
// provider contact time over the poll timestamp.
func observedAt(s state.Snapshot) int64 {
	if s.LastContact != 0 {
		return s.LastContact
	}
	return s.Timestamp
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }
func round0(v float64) float64 { return math.Round(v) }
