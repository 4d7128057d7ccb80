// Package geo answers proximity questions against airport and hospital
// location datasets loaded from CSV.
package geo

import (
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"math"
	"os"
	"strconv"
	"strings"
	"sync"
)

const earthRadiusKm = 6371.0

// Haversine returns the great-circle distance in kilometres between two
// points given in decimal degrees.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	rad := func(d float64) float64 { return d * math.Pi / 180 }

	dLat := rad(lat2 - lat1)
	dLon := rad(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rad(lat1))*math.Cos(rad(lat2))*math.Sin(dLon/2)*math.Sin(dLon/2)
	return earthRadiusKm * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// Point is one named location.
type Point struct {
	Name string
	Lat  float64
	Lon  float64
}

// PointSet is a lazily loaded collection of named points. The CSV is read
// on first use; a missing or unreadable file yields an empty set with one
// warning, never an error on the query path.
type PointSet struct {
	path string
	cols columnSpec

	once   sync.Once
	points []Point
}

// columnSpec names the CSV columns to read, with fallbacks tried in order.
type columnSpec struct {
	lat  []string
	lon  []string
	name []string
}

// NewAirportSet loads airports from a CSV with latitude_deg/longitude_deg/
// name columns (the ourairports.com export format).
func NewAirportSet(path string) *PointSet {
	return &PointSet{
		path: path,
		cols: columnSpec{
			lat:  []string{"latitude_deg", "latitude", "lat"},
			lon:  []string{"longitude_deg", "longitude", "lon"},
			name: []string{"name", "airport_name"},
		},
	}
}

// NewHospitalSet loads hospitals from a CSV with LATITUDE/LONGITUDE/NAME
// columns (HIFLD export format); lower-case variants are accepted.
func NewHospitalSet(path string) *PointSet {
	return &PointSet{
		path: path,
		cols: columnSpec{
			lat:  []string{"LATITUDE", "latitude", "lat", "Y"},
			lon:  []string{"LONGITUDE", "longitude", "lon", "X"},
			name: []string{"NAME", "name", "facility_name"},
		},
	}
}

// Len returns the number of loaded points.
func (ps *PointSet) Len() int {
	ps.load()
	return len(ps.points)
}

// Nearest returns the closest point to (lat, lon) and its distance in km.
// With no data loaded it returns an empty name and +Inf.
func (ps *PointSet) Nearest(lat, lon float64) (Point, float64) {
	ps.load()

	best := math.Inf(1)
	var bestPt Point
	for _, p := range ps.points {
		if d := Haversine(lat, lon, p.Lat, p.Lon); d < best {
			best = d
			bestPt = p
		}
	}
	return bestPt, best
}

// IsNear reports whether any point lies within radiusKm of (lat, lon).
func (ps *PointSet) IsNear(lat, lon, radiusKm float64) bool {
	_, d := ps.Nearest(lat, lon)
	return d <= radiusKm
}

func (ps *PointSet) load() {
	ps.once.Do(func() {
		pts, err := loadCSV(ps.path, ps.cols)
		if err != nil {
			log.Printf("geo: %s: %v (proximity checks disabled)", ps.path, err)
			return
		}
		ps.points = pts
	})
}

func loadCSV(path string, cols columnSpec) ([]Point, error) {
	if path == "" {
		return nil, fmt.Errorf("no dataset configured")
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	// Strip a UTF-8 BOM from the first column if present.
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	idx := func(names []string) int {
		for _, want := range names {
			for i, h := range header {
				if strings.EqualFold(strings.TrimSpace(h), want) {
					return i
				}
			}
		}
		return -1
	}

	latIdx, lonIdx, nameIdx := idx(cols.lat), idx(cols.lon), idx(cols.name)
	if latIdx < 0 || lonIdx < 0 {
		return nil, fmt.Errorf("no coordinate columns in header %v", header)
	}

	var points []Point
	skipped := 0
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			skipped++
			continue
		}
		if latIdx >= len(rec) || lonIdx >= len(rec) {
			skipped++
			continue
		}

		lat, err1 := strconv.ParseFloat(strings.TrimSpace(rec[latIdx]), 64)
		lon, err2 := strconv.ParseFloat(strings.TrimSpace(rec[lonIdx]), 64)
		if err1 != nil || err2 != nil {
			skipped++
			continue
		}
		if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
			skipped++
			continue
		}

		name := ""
		if nameIdx >= 0 && nameIdx < len(rec) {
			name = strings.TrimSpace(rec[nameIdx])
		}
		points = append(points, Point{Name: name, Lat: lat, Lon: lon})
	}

	if skipped > 0 {
		log.Printf("geo: %s: skipped %d rows with missing or out-of-range coordinates", path, skipped)
	}
	return points, nil
}

// Context bundles the airport and hospital datasets the monitor consults.
type Context struct {
	Airports  *PointSet
	Hospitals *PointSet

	// AirportRadiusKm suppresses descent alerts near fields; HospitalRadiusKm
	// marks medical-relevant proximity in anomaly enrichment.
	AirportRadiusKm  float64
	HospitalRadiusKm float64
}

// NewContext builds a geo context from dataset paths. Empty paths disable
// the corresponding checks.
func NewContext(airportCSV, hospitalCSV string) *Context {
	return &Context{
		Airports:         NewAirportSet(airportCSV),
		Hospitals:        NewHospitalSet(hospitalCSV),
		AirportRadiusKm:  5,
		HospitalRadiusKm: 3,
	}
}

// NearAirport reports whether (lat, lon) is within the airport radius.
func (c *Context) NearAirport(lat, lon float64) bool {
	return c.Airports.IsNear(lat, lon, c.AirportRadiusKm)
}

// NearestHospital returns the closest hospital and its distance in km.
func (c *Context) NearestHospital(lat, lon float64) (Point, float64) {
	return c.Hospitals.Nearest(lat, lon)
}
