// Package notify delivers anomaly alerts to the console, a JSONL log
// file, and optionally a NATS subject.
package notify

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// AircraftInfo is registry enrichment attached to an alert.
type AircraftInfo struct {
	NNumber         string `json:"n_number,omitempty"`
	ModelName       string `json:"model_name,omitempty"`
	Manufacturer    string `json:"manufacturer,omitempty"`
	OwnerName       string `json:"owner_name,omitempty"`
	OwnerCity       string `json:"owner_city,omitempty"`
	OwnerState      string `json:"owner_state,omitempty"`
	FlightAwareURL  string `json:"flightaware_url,omitempty"`
	BroadcastifyURL string `json:"broadcastify_url,omitempty"`
}

// Event is one anomaly alert. ICAO24 is nil for fleet-wide findings.
type Event struct {
	Timestamp    int64          `json:"timestamp"`
	ICAO24       *string        `json:"icao24"`
	Type         string         `json:"type"`
	Severity     string         `json:"severity"`
	Details      map[string]any `json:"details,omitempty"`
	AircraftInfo *AircraftInfo  `json:"aircraft_info,omitempty"`
}

// Notifier writes alerts to the console and a JSONL file. The file handle
// stays open between Start and Close; write failures are logged once and
// then swallowed so a full disk cannot stop the monitor.
type Notifier struct {
	console bool
	logPath string

	mu       sync.Mutex
	file     *os.File
	warnOnce sync.Once

	// now is swappable for tests.
	now func() time.Time
}

// NewNotifier creates a notifier. Empty logPath disables the file sink.
func NewNotifier(logPath string, console bool) *Notifier {
	return &Notifier{
		console: console,
		logPath: logPath,
		now:     time.Now,
	}
}

// Start opens the log file for appending, creating parent directories.
func (n *Notifier) Start() error {
	if n.logPath == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(n.logPath), 0o755); err != nil {
		return fmt.Errorf("create log directory: %w", err)
	}
	f, err := os.OpenFile(n.logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open anomaly log: %w", err)
	}
	n.mu.Lock()
	n.file = f
	n.mu.Unlock()
	return nil
}

// Close closes the log file.
func (n *Notifier) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.file == nil {
		return nil
	}
	err := n.file.Close()
	n.file = nil
	return err
}

// Notify delivers one alert to all configured sinks.
func (n *Notifier) Notify(ev Event) {
	if n.console {
		fmt.Println(n.Format(ev))
	}
	n.appendLog(ev)
}

// Summary prints a boxed per-poll summary to the console.
func (n *Notifier) Summary(pollCount, activeAircraft, anomaliesDetected int) {
	if !n.console {
		return
	}
	content := []string{
		fmt.Sprintf("[Timestamp] %s", n.now().Format("2006-01-02 15:04:05")),
		fmt.Sprintf("[Poll Number] #%d", pollCount),
		fmt.Sprintf("[Active Aircraft] %d", activeAircraft),
		fmt.Sprintf("[Anomalies Detected] %d", anomaliesDetected),
	}
	fmt.Println("\n" + strings.Join(makeBox("MONITORING SUMMARY", content), "\n") + "\n")
}

func (n *Notifier) appendLog(ev Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.file == nil {
		return
	}

	if ev.Timestamp == 0 {
		ev.Timestamp = n.now().Unix()
	}
	line, err := json.Marshal(ev)
	if err == nil {
		_, err = n.file.Write(append(line, '\n'))
	}
	if err != nil {
		n.warnOnce.Do(func() {
			log.Printf("notify: writing anomaly log failed: %v (further failures suppressed)", err)
		})
	}
}
