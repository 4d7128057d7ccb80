package monitor

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"strings"
	"sync"
	"time"

	"fleetwatch/internal/detect"
	"fleetwatch/internal/geo"
	"fleetwatch/internal/geocode"
	"fleetwatch/internal/notify"
	"fleetwatch/internal/opensky"
	"fleetwatch/internal/roster"
	"fleetwatch/internal/state"
	"fleetwatch/internal/storage"
)

// historyDepth is how many stored snapshots feed each detection pass;
// roughly twenty minutes of context at the default interval.
const historyDepth = 20

// recentAnomalyCap bounds the in-memory ring consulted by status queries.
const recentAnomalyCap = 100

// StatesProvider is the slice of the provider client the monitor needs.
type StatesProvider interface {
	GetStates(ctx context.Context, icao24 []string, bbox *opensky.BBox) (*opensky.States, error)
	Authenticated() bool
}

// Geocoder resolves a position to a scanner feed URL. Implemented by
// geocode.Client; nil disables the lookup.
type Geocoder interface {
	BroadcastifyURL(ctx context.Context, lat, lon float64) string
}

// Service polls the provider for the watched fleet, persists snapshots,
// runs anomaly detection and dispatches alerts.
type Service struct {
	cfg      Config
	client   StatesProvider
	store    *state.Store
	detector *detect.Detector
	notifier *notify.Notifier
	geoCtx   *geo.Context
	geocoder Geocoder
	archives *storage.Archives

	byHex  map[string]roster.Entry
	hexSet map[string]bool
	bbox   *opensky.BBox

	// events receives every dispatched alert; an optional publisher
	// drains it. Sends never block the tick.
	events chan notify.Event

	// stopCh is closed by Stop so sleeps end immediately.
	stopCh   chan struct{}
	stopOnce sync.Once

	mu        sync.Mutex
	pollCount int
	current   map[string]state.Snapshot
	recent    []state.Anomaly
	paused    bool
	stopped   bool

	now func() time.Time
}

// New assembles a monitoring service. The roster is filtered to the
// configured states or region before the watch set is built; an empty
// region and state list means all-US with no bounding box.
func New(cfg Config, client StatesProvider, entries []roster.Entry, store *state.Store, notifier *notify.Notifier) (*Service, error) {
	s := &Service{
		cfg:      cfg,
		client:   client,
		store:    store,
		notifier: notifier,
		events:   make(chan notify.Event, 64),
		stopCh:   make(chan struct{}),
		current:  map[string]state.Snapshot{},
		now:      time.Now,
	}

	switch {
	case len(cfg.States) > 0:
		var invalid []string
		for _, st := range cfg.States {
			if !ValidStateCode(st) {
				invalid = append(invalid, st)
			}
		}
		if len(invalid) > 0 {
			return nil, fmt.Errorf("invalid state code(s): %s", strings.Join(invalid, ", "))
		}
		entries = roster.FilterByStates(entries, cfg.States)
		if b, ok := StatesBBox(cfg.States); ok {
			s.bbox = &b
		}
		log.Printf("monitor: watching states %s", strings.Join(cfg.States, ", "))
	case cfg.Region != "" && !strings.EqualFold(cfg.Region, "all"):
		r, ok := GetRegion(cfg.Region)
		if !ok {
			return nil, fmt.Errorf("invalid region: %s", cfg.Region)
		}
		entries = roster.FilterByStates(entries, r.States)
		b := r.BBox
		s.bbox = &b
		log.Printf("monitor: watching region %s (%s)", r.DisplayName, strings.Join(r.States, ", "))
	default:
		log.Printf("monitor: watching all US, no regional filter")
	}

	s.byHex = roster.ByHex(entries)
	s.hexSet = roster.HexSet(entries)
	if len(s.hexSet) == 0 {
		return nil, fmt.Errorf("no aircraft with Mode S codes after filtering")
	}
	log.Printf("monitor: %d roster aircraft, %d with Mode S codes", len(entries), len(s.hexSet))

	s.detector = detect.New(detect.Config{
		SpeedThresholdKnots: cfg.SpeedThresholdKnots,
		RapidClimbFtMin:     cfg.RapidClimbRateFtMin,
		RapidDescentFt:      cfg.RapidDescentFt,
		RapidDescentWindow:  time.Duration(cfg.RapidDescentWindowSecs) * time.Second,
		MultiLaunchWindow:   time.Duration(cfg.MultiLaunchWindowSeconds) * time.Second,
	})

	s.geoCtx = geo.NewContext(cfg.AirportsCSV, cfg.HospitalsCSV)
	if cfg.NearAirportKm > 0 {
		s.geoCtx.AirportRadiusKm = cfg.NearAirportKm
	}
	if cfg.NearHospitalKm > 0 {
		s.geoCtx.HospitalRadiusKm = cfg.NearHospitalKm
	}
	s.geocoder = geocode.NewClient()

	return s, nil
}

// SetGeocoder replaces the scanner-feed resolver. Pass nil to disable.
func (s *Service) SetGeocoder(g Geocoder) { s.geocoder = g }

// SetArchives attaches optional long-term sinks for snapshots and
// anomalies.
func (s *Service) SetArchives(a *storage.Archives) { s.archives = a }

// Events exposes the alert stream for an optional publisher.
func (s *Service) Events() <-chan notify.Event { return s.events }

// Run polls until ctx is cancelled or Stop is called. Tick failures are
// logged and the loop continues; only authentication failures abort.
func (s *Service) Run(ctx context.Context) error {
	if !s.client.Authenticated() {
		log.Printf("monitor: not authenticated, some provider endpoints may be unavailable")
	}
	log.Printf("monitor: polling every %s", s.cfg.Interval)

	for {
		if err := s.waitWhilePaused(ctx); err != nil {
			return err
		}
		if s.isStopped() {
			return nil
		}

		start := time.Now()
		if err := s.Tick(ctx); err != nil {
			if errors.Is(err, opensky.ErrAuth) {
				return fmt.Errorf("monitor: aborting: %w", err)
			}
			log.Printf("monitor: tick failed: %v", err)
		}

		// Ticks run on a fixed cadence. A tick that overruns the
		// interval triggers the next poll immediately.
		elapsed := time.Since(start)
		if elapsed >= s.cfg.Interval {
			log.Printf("monitor: tick took %s, longer than the %s interval; polling again immediately",
				elapsed.Round(time.Millisecond), s.cfg.Interval)
			continue
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.stopCh:
			return nil
		case <-time.After(s.cfg.Interval - elapsed):
		}
	}
}

// Tick runs one poll-detect-notify cycle.
func (s *Service) Tick(ctx context.Context) error {
	s.mu.Lock()
	s.pollCount++
	poll := s.pollCount
	s.mu.Unlock()

	current, err := s.pollStates(ctx)
	if err != nil {
		return err
	}

	previous, err := s.store.LatestAll(time.Unix(0, 0))
	if err != nil {
		return fmt.Errorf("load previous states: %w", err)
	}

	history := make(map[string][]state.Snapshot, len(current))
	for hex := range current {
		h, err := s.store.History(hex, time.Unix(0, 0), historyDepth)
		if err != nil {
			return fmt.Errorf("load history for %s: %w", hex, err)
		}
		history[hex] = h
	}

	snaps := make([]state.Snapshot, 0, len(current))
	for _, snap := range current {
		if err := s.store.SaveSnapshot(snap); err != nil {
			return fmt.Errorf("save snapshot: %w", err)
		}
		snaps = append(snaps, snap)
	}
	s.archives.Snapshots(ctx, snaps)

	anomalies := s.detector.Detect(current, previous, history)
	anomalies = s.filterAndEnrich(anomalies, current)

	s.mu.Lock()
	s.current = current
	s.mu.Unlock()

	for _, a := range anomalies {
		s.dispatch(ctx, a, current)
	}
	s.notifier.Summary(poll, len(current), len(anomalies))
	return nil
}

// pollStates fetches active aircraft in the watch area and keeps only the
// roster's. Each kept snapshot carries this tick's timestamp.
func (s *Service) pollStates(ctx context.Context) (map[string]state.Snapshot, error) {
	resp, err := s.client.GetStates(ctx, nil, s.bbox)
	if err != nil {
		return nil, fmt.Errorf("poll states: %w", err)
	}

	ts := s.now().Unix()
	out := make(map[string]state.Snapshot)
	for _, sv := range resp.States {
		hex := opensky.NormalizeICAO24(sv.ICAO24)
		if !s.hexSet[hex] {
			continue
		}
		snap := state.Snapshot{
			ICAO24:       hex,
			Timestamp:    ts,
			Latitude:     sv.Latitude,
			Longitude:    sv.Longitude,
			Velocity:     sv.Velocity,
			OnGround:     sv.OnGround,
			VerticalRate: sv.VerticalRate,
			Callsign:     sv.Callsign,
			Heading:      sv.TrueTrack,
			Squawk:       sv.Squawk,
			LastContact:  sv.LastContact,
		}
		if alt, ok := sv.Altitude(); ok {
			snap.Altitude = &alt
		}
		out[hex] = snap
	}
	return out, nil
}

// filterAndEnrich suppresses descents that look like landings and adds
// hospital proximity to every positioned per-aircraft finding.
func (s *Service) filterAndEnrich(anomalies []detect.Anomaly, current map[string]state.Snapshot) []detect.Anomaly {
	kept := anomalies[:0]
	for _, a := range anomalies {
		if a.Type == "rapid_descent" && a.ICAO24 != nil {
			snap, ok := current[*a.ICAO24]
			if ok && snap.Latitude != nil && snap.Longitude != nil &&
				snap.VerticalRate != nil && *snap.VerticalRate < 0 &&
				s.geoCtx.NearAirport(*snap.Latitude, *snap.Longitude) {
				continue
			}
		}
		kept = append(kept, a)
	}

	for i := range kept {
		a := &kept[i]
		if a.ICAO24 == nil {
			continue
		}
		snap, ok := current[*a.ICAO24]
		if !ok || snap.Latitude == nil || snap.Longitude == nil {
			continue
		}
		hospital, distKm := s.geoCtx.NearestHospital(*snap.Latitude, *snap.Longitude)
		if math.IsInf(distKm, 1) {
			continue
		}
		if a.Details == nil {
			a.Details = map[string]any{}
		}
		a.Details["distance_hospital_km"] = round1(distKm)
		a.Details["near_hospital"] = distKm <= s.geoCtx.HospitalRadiusKm
		if hospital.Name != "" {
			a.Details["hospital_name"] = hospital.Name
		}
	}
	return kept
}

// dispatch logs one anomaly to the store and sends the alert.
func (s *Service) dispatch(ctx context.Context, a detect.Anomaly, current map[string]state.Snapshot) {
	ev := notify.Event{
		Timestamp: s.now().Unix(),
		ICAO24:    a.ICAO24,
		Type:      a.Type,
		Severity:  a.Severity,
		Details:   a.Details,
	}
	if a.ICAO24 != nil {
		ev.AircraftInfo = s.aircraftInfo(ctx, *a.ICAO24, current)
	}

	rec := state.Anomaly{
		Timestamp: ev.Timestamp,
		ICAO24:    a.ICAO24,
		Type:      a.Type,
		Severity:  a.Severity,
		Details:   a.Details,
	}
	if id, err := s.store.LogAnomaly(rec); err != nil {
		log.Printf("monitor: log anomaly: %v", err)
	} else {
		rec.ID = id
	}
	s.archives.Anomaly(ctx, rec)

	s.mu.Lock()
	s.recent = append(s.recent, rec)
	if len(s.recent) > recentAnomalyCap {
		s.recent = s.recent[len(s.recent)-recentAnomalyCap:]
	}
	s.mu.Unlock()

	s.notifier.Notify(ev)

	select {
	case s.events <- ev:
	default:
		log.Printf("monitor: event channel full, dropping %s alert", ev.Type)
	}
}

// aircraftInfo builds the registry block attached to per-aircraft alerts.
// The scanner feed lookup calls out to a geocoding service and is strictly
// best-effort.
func (s *Service) aircraftInfo(ctx context.Context, hex string, current map[string]state.Snapshot) *notify.AircraftInfo {
	entry, ok := s.byHex[opensky.NormalizeICAO24(hex)]
	if !ok {
		return nil
	}

	info := &notify.AircraftInfo{
		NNumber:      entry.NNumber,
		ModelName:    entry.ModelName,
		Manufacturer: entry.Manufacturer,
		OwnerName:    entry.OwnerName,
		OwnerCity:    entry.OwnerCity,
		OwnerState:   entry.OwnerState,
	}
	if n := strings.ToUpper(strings.TrimSpace(entry.NNumber)); n != "" {
		if !strings.HasPrefix(n, "N") {
			n = "N" + n
		}
		info.FlightAwareURL = "https://www.flightaware.com/live/flight/" + n
	}

	if s.geocoder != nil {
		if snap, ok := current[opensky.NormalizeICAO24(hex)]; ok && snap.Latitude != nil && snap.Longitude != nil {
			lctx, cancel := context.WithTimeout(ctx, 5*time.Second)
			info.BroadcastifyURL = s.geocoder.BroadcastifyURL(lctx, *snap.Latitude, *snap.Longitude)
			cancel()
		}
	}
	return info
}

// Pause suspends polling; Resume restarts it.
func (s *Service) Pause() {
	s.mu.Lock()
	s.paused = true
	s.mu.Unlock()
}

// Resume restarts a paused service.
func (s *Service) Resume() {
	s.mu.Lock()
	s.paused = false
	s.mu.Unlock()
}

// Stop ends the polling loop after the current tick, interrupting any
// inter-tick or pause sleep. Safe to call more than once.
func (s *Service) Stop() {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()
	s.stopOnce.Do(func() { close(s.stopCh) })
}

// CurrentStates returns a copy of the last poll's snapshots.
func (s *Service) CurrentStates() map[string]state.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]state.Snapshot, len(s.current))
	for k, v := range s.current {
		out[k] = v
	}
	return out
}

// RecentAnomalies returns up to limit of the newest in-memory anomalies.
func (s *Service) RecentAnomalies(limit int) []state.Anomaly {
	s.mu.Lock()
	defer s.mu.Unlock()
	if limit <= 0 || limit > len(s.recent) {
		limit = len(s.recent)
	}
	out := make([]state.Anomaly, limit)
	copy(out, s.recent[len(s.recent)-limit:])
	return out
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }

func (s *Service) isStopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

func (s *Service) waitWhilePaused(ctx context.Context) error {
	for {
		s.mu.Lock()
		paused, stopped := s.paused, s.stopped
		s.mu.Unlock()
		if !paused || stopped {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.stopCh:
			return nil
		case <-time.After(500 * time.Millisecond):
		}
	}
}
