package geo

import (
	"math"
	"os"
	"path/filepath"
	"testing"
)

func TestHaversineKnownDistance(t *testing.T) {
	// JFK to LAX, roughly 3974 km.
	d := Haversine(40.6413, -73.7781, 33.9416, -118.4085)
	if d < 3900 || d > 4050 {
		t.Errorf("Haversine(JFK, LAX) = %.1f km, want ~3974", d)
	}

	if d := Haversine(39.5, -77.0, 39.5, -77.0); d != 0 {
		t.Errorf("Haversine(same point) = %v, want 0", d)
	}
}

func writeCSV(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestAirportSetNearest(t *testing.T) {
	path := writeCSV(t, "airports.csv", `id,name,latitude_deg,longitude_deg
1,Frederick Municipal,39.4176,-77.3744
2,Hagerstown Regional,39.7079,-77.7295
3,Bad Row,999.0,-77.0
`)
	ps := NewAirportSet(path)
	if got := ps.Len(); got != 2 {
		t.Fatalf("Len() = %d, want 2 (out-of-range row skipped)", got)
	}

	pt, d := ps.Nearest(39.42, -77.37)
	if pt.Name != "Frederick Municipal" {
		t.Errorf("Nearest name = %q, want Frederick Municipal", pt.Name)
	}
	if d > 1.0 {
		t.Errorf("Nearest distance = %.2f km, want < 1", d)
	}

	if !ps.IsNear(39.42, -77.37, 5) {
		t.Error("IsNear(5km) = false, want true")
	}
	if ps.IsNear(25.0, -80.0, 5) {
		t.Error("IsNear far away = true, want false")
	}
}

func TestHospitalSetColumnFallbacks(t *testing.T) {
	path := writeCSV(t, "hospitals.csv", `NAME,LATITUDE,LONGITUDE
Frederick Health,39.4250,-77.4180
`)
	ps := NewHospitalSet(path)
	pt, d := ps.Nearest(39.43, -77.42)
	if pt.Name != "Frederick Health" {
		t.Errorf("Nearest name = %q, want Frederick Health", pt.Name)
	}
	if d > 1.0 {
		t.Errorf("Nearest distance = %.2f km, want < 1", d)
	}

	lower := writeCSV(t, "lower.csv", `name,latitude,longitude
County General,40.0,-75.0
`)
	if got := NewHospitalSet(lower).Len(); got != 1 {
		t.Errorf("lower-case columns Len() = %d, want 1", got)
	}
}

func TestNearestEmptySet(t *testing.T) {
	ps := NewAirportSet(filepath.Join(t.TempDir(), "missing.csv"))
	pt, d := ps.Nearest(39.0, -77.0)
	if !math.IsInf(d, 1) {
		t.Errorf("Nearest distance = %v, want +Inf", d)
	}
	if pt.Name != "" {
		t.Errorf("Nearest name = %q, want empty", pt.Name)
	}
	if ps.IsNear(39.0, -77.0, 1000) {
		t.Error("IsNear on empty set = true, want false")
	}
}

func TestContextDefaults(t *testing.T) {
	c := NewContext("", "")
	if c.AirportRadiusKm != 5 || c.HospitalRadiusKm != 3 {
		t.Errorf("radii = %v/%v, want 5/3", c.AirportRadiusKm, c.HospitalRadiusKm)
	}
	if c.NearAirport(39.0, -77.0) {
		t.Error("NearAirport with no data = true, want false")
	}
}
