// Package roster defines the aircraft roster format produced by the
// registry filter and consumed by the monitor.
package roster

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// Entry is one roster aircraft.
type Entry struct {
	NNumber      string   `json:"n_number"`
	ModeSHex     string   `json:"mode_s_hex"`
	ModelCode    string   `json:"model_code"`
	ModelName    string   `json:"model_name"`
	Manufacturer string   `json:"manufacturer"`
	OwnerName    string   `json:"owner_name"`
	OwnerCity    string   `json:"owner_city"`
	OwnerState   string   `json:"owner_state"`
	MatchReasons []string `json:"match_reasons"`
	Confidence   string   `json:"confidence"`
	TypeAircraft string   `json:"type_aircraft"`
	TypeEngine   string   `json:"type_engine"`
	StatusCode   string   `json:"status_code"`
}

// Load reads a roster file. Both a bare JSON array and an object with an
// "aircraft" key are accepted.
func Load(path string) ([]Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read roster: %w", err)
	}

	var entries []Entry
	if err := json.Unmarshal(data, &entries); err == nil {
		return entries, nil
	}

	var wrapped struct {
		Aircraft []Entry `json:"aircraft"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return nil, fmt.Errorf("parse roster: %w", err)
	}
	return wrapped.Aircraft, nil
}

// Save writes a roster file as an indented JSON array.
func Save(path string, entries []Entry) error {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal roster: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write roster: %w", err)
	}
	return nil
}

// HexSet returns the upper-case Mode S hex codes of all entries that have
// one.
func HexSet(entries []Entry) map[string]bool {
	set := make(map[string]bool, len(entries))
	for _, e := range entries {
		hex := strings.ToUpper(strings.TrimSpace(e.ModeSHex))
		if hex != "" {
			set[hex] = true
		}
	}
	return set
}

// ByHex indexes entries by upper-case Mode S hex. Entries without a hex
// are dropped.
func ByHex(entries []Entry) map[string]Entry {
	m := make(map[string]Entry, len(entries))
	for _, e := range entries {
		hex := strings.ToUpper(strings.TrimSpace(e.ModeSHex))
		if hex != "" {
			m[hex] = e
		}
	}
	return m
}

// FilterByStates keeps entries whose owner state is in states. An empty
// states list keeps everything.
func FilterByStates(entries []Entry, states []string) []Entry {
	if len(states) == 0 {
		return entries
	}
	want := make(map[string]bool, len(states))
	for _, s := range states {
		want[strings.ToUpper(strings.TrimSpace(s))] = true
	}

	var out []Entry
	for _, e := range entries {
		if want[strings.ToUpper(strings.TrimSpace(e.OwnerState))] {
			out = append(out, e)
		}
	}
	return out
}
