package notify

import (
	"fmt"
	"strings"
)

const boxWidth = 70

var severityMarkers = map[string]string{
	"CRITICAL": "🚨",
	"HIGH":     "⚠️",
	"MEDIUM":   "⚡",
	"LOW":      "ℹ️",
}

// Format renders an alert as boxed console text.
func (n *Notifier) Format(ev Event) string {
	marker, ok := severityMarkers[ev.Severity]
	if !ok {
		marker = "•"
	}

	icao := "UNKNOWN"
	if ev.ICAO24 != nil {
		icao = *ev.ICAO24
	}

	main := []string{
		fmt.Sprintf("%s [Severity] %s", marker, ev.Severity),
		fmt.Sprintf("[Timestamp] %s", n.now().Format("2006-01-02 15:04:05")),
		fmt.Sprintf("[Type] %s", ev.Type),
		fmt.Sprintf("[Aircraft] %s", icao),
	}
	if cs, ok := ev.Details["callsign"].(string); ok && cs != "" {
		main = append(main, fmt.Sprintf("[Callsign] %s", cs))
	}

	out := makeBox("ANOMALY DETECTED", main)

	if ac := aircraftLines(ev.AircraftInfo); len(ac) > 0 {
		out = append(out, "")
		out = append(out, makeBox("AIRCRAFT INFORMATION", ac)...)
	}
	if det := detailLines(ev); len(det) > 0 {
		out = append(out, "")
		out = append(out, makeBox("ANOMALY DETAILS", det)...)
	}
	return strings.Join(out, "\n")
}

func aircraftLines(info *AircraftInfo) []string {
	if info == nil {
		return nil
	}
	var lines []string

	n := info.NNumber
	if n == "" {
		n = "N/A"
	}
	lines = append(lines, fmt.Sprintf("[N-Number] %s", n))

	if info.FlightAwareURL != "" {
		lines = append(lines, fmt.Sprintf("[FlightAware] %s", info.FlightAwareURL))
	}
	if info.BroadcastifyURL != "" {
		lines = append(lines, fmt.Sprintf("[Local PD Radio] %s", info.BroadcastifyURL))
	}

	model, mfr := info.ModelName, info.Manufacturer
	if model == "" {
		model = "N/A"
	}
	if mfr == "" {
		mfr = "N/A"
	}
	lines = append(lines, fmt.Sprintf("[Model] %s (%s)", model, mfr))

	owner := info.OwnerName
	if owner == "" {
		owner = "N/A"
	}
	if len(owner) > 45 {
		owner = owner[:42] + "..."
	}
	lines = append(lines, fmt.Sprintf("[Owner] %s", owner))

	loc := strings.Trim(info.OwnerCity+", "+info.OwnerState, ", ")
	if loc != "" {
		lines = append(lines, fmt.Sprintf("[Location] %s", loc))
	}
	return lines
}

func detailLines(ev Event) []string {
	d := ev.Details
	get := func(key string) any {
		if v, ok := d[key]; ok && v != nil {
			return v
		}
		return "N/A"
	}

	var lines []string
	switch {
	case ev.Type == "high_speed":
		lines = append(lines,
			fmt.Sprintf("[Speed] %v knots", get("velocity_knots")),
			fmt.Sprintf("[Threshold] %v knots", get("threshold_knots")))

	case ev.Type == "sudden_speed_increase":
		lines = append(lines,
			fmt.Sprintf("[Speed Increase] %v%%", get("increase_percent")),
			fmt.Sprintf("[Baseline (avg)] %v knots", get("baseline_velocity_knots")),
			fmt.Sprintf("[Current] %v knots", get("current_velocity_knots")),
			fmt.Sprintf("[Absolute Increase] %v knots", get("absolute_increase_knots")))

	case ev.Type == "rapid_climb":
		lines = append(lines, fmt.Sprintf("[Climb Rate] %v ft/min", get("vertical_rate_ft_min")))
		if alt, ok := d["altitude_ft"]; ok && alt != nil {
			lines = append(lines, fmt.Sprintf("[Altitude] %v ft", alt))
		}

	case ev.Type == "rapid_descent":
		lines = append(lines,
			fmt.Sprintf("[Altitude Drop] %v ft", get("altitude_drop_ft")),
			fmt.Sprintf("[Previous] %v ft", get("previous_altitude_ft")),
			fmt.Sprintf("[Current] %v ft", get("current_altitude_ft")))

	case strings.HasPrefix(ev.Type, "emergency_squawk"):
		lines = append(lines,
			fmt.Sprintf("[Squawk Code] %v", get("squawk_code")),
			fmt.Sprintf("[Type] %v", get("squawk_type")))

	case ev.Type == "multiple_launch":
		lines = append(lines,
			fmt.Sprintf("[Aircraft Count] %v", get("aircraft_count")),
			fmt.Sprintf("[Time Span] %v seconds", get("time_span_seconds")))
		if list, ok := d["aircraft"].([]map[string]any); ok && len(list) > 0 {
			lines = append(lines, "[Aircraft List]")
			shown := list
			if len(shown) > 5 {
				shown = shown[:5]
			}
			for _, ac := range shown {
				cs := ac["callsign"]
				if cs == nil {
					cs = "N/A"
				}
				lines = append(lines, fmt.Sprintf("  • %v (%v)", ac["icao24"], cs))
			}
			if len(list) > 5 {
				lines = append(lines, fmt.Sprintf("  ... and %d more", len(list)-5))
			}
		}

	case ev.Type == "erratic_heading":
		lines = append(lines,
			fmt.Sprintf("[Large Heading Changes] %v", get("large_heading_changes")),
			fmt.Sprintf("[Average Change] %v°", get("average_change")))

	case ev.Type == "hovering_high_altitude":
		lines = append(lines,
			fmt.Sprintf("[Average Altitude] %v ft", get("average_altitude_ft")),
			fmt.Sprintf("[Average Speed] %v knots", get("average_velocity_knots")))
	}

	if dist, ok := d["distance_hospital_km"]; ok {
		near, _ := d["near_hospital"].(bool)
		name, _ := d["hospital_name"].(string)
		switch {
		case near && name != "":
			lines = append(lines, fmt.Sprintf("[Hospital] Within %v km of %s", dist, name))
		case near:
			lines = append(lines, fmt.Sprintf("[Hospital] Within %v km of hospital", dist))
		default:
			lines = append(lines, fmt.Sprintf("[Hospital] Nearest hospital %v km away", dist))
		}
	}
	return lines
}

// makeBox wraps content lines in a titled box of fixed width. Long lines
// are truncated with an ellipsis.
func makeBox(title string, content []string) []string {
	lines := make([]string, 0, len(content)+2)

	titleText := " " + title + " "
	pad := max(boxWidth-len(titleText)-2, 0)
	lines = append(lines, "┌"+titleText+strings.Repeat("─", pad)+"┐")

	for _, line := range content {
		runes := []rune(line)
		if len(runes) > boxWidth-4 {
			line = string(runes[:boxWidth-7]) + "..."
			runes = []rune(line)
		}
		pad := max(boxWidth-len(runes)-4, 0)
		lines = append(lines, "│ "+line+strings.Repeat(" ", pad)+" │")
	}

	lines = append(lines, "└"+strings.Repeat("─", boxWidth-2)+"┘")
	return lines
}
