package monitor

import (
	"strings"

	"fleetwatch/internal/opensky"
)

// Region is a US Census region with its member states and an approximate
// bounding box for provider queries.
type Region struct {
	Name        string
	DisplayName string
	States      []string
	BBox        opensky.BBox
}

var usRegions = map[string]Region{
	"northeast": {
		Name:        "northeast",
		DisplayName: "Northeast",
		States:      []string{"ME", "NH", "VT", "MA", "RI", "CT", "NY", "NJ", "PA"},
		BBox:        opensky.BBox{MinLat: 39.0, MinLon: -80.0, MaxLat: 48.0, MaxLon: -66.0},
	},
	"midwest": {
		Name:        "midwest",
		DisplayName: "Midwest",
		States:      []string{"OH", "MI", "IN", "IL", "WI", "MN", "IA", "MO", "ND", "SD", "NE", "KS"},
		BBox:        opensky.BBox{MinLat: 36.0, MinLon: -104.0, MaxLat: 50.0, MaxLon: -80.0},
	},
	"south": {
		Name:        "south",
		DisplayName: "South",
		States: []string{"DE", "MD", "DC", "VA", "WV", "KY", "TN", "NC", "SC", "GA", "FL",
			"AL", "MS", "AR", "LA", "OK", "TX"},
		BBox: opensky.BBox{MinLat: 24.0, MinLon: -110.0, MaxLat: 40.0, MaxLon: -75.0},
	},
	"west": {
		Name:        "west",
		DisplayName: "West",
		States:      []string{"MT", "ID", "WY", "CO", "NM", "AZ", "UT", "NV", "CA", "OR", "WA", "AK", "HI"},
		BBox:        opensky.BBox{MinLat: 24.0, MinLon: -125.0, MaxLat: 72.0, MaxLon: -102.0},
	},
}

// stateBBoxes are approximate per-state bounding boxes, tighter than the
// regional boxes so single-state monitoring polls far less airspace.
var stateBBoxes = map[string]opensky.BBox{
	"AL": {MinLat: 30.2, MinLon: -88.5, MaxLat: 35.0, MaxLon: -84.9},
	"AK": {MinLat: 51.2, MinLon: -179.1, MaxLat: 71.4, MaxLon: -129.9},
	"AZ": {MinLat: 31.3, MinLon: -114.8, MaxLat: 37.0, MaxLon: -109.0},
	"AR": {MinLat: 33.0, MinLon: -94.6, MaxLat: 36.5, MaxLon: -89.6},
	"CA": {MinLat: 32.5, MinLon: -124.4, MaxLat: 42.0, MaxLon: -114.1},
	"CO": {MinLat: 37.0, MinLon: -109.1, MaxLat: 41.0, MaxLon: -102.0},
	"CT": {MinLat: 40.9, MinLon: -73.7, MaxLat: 42.1, MaxLon: -71.8},
	"DE": {MinLat: 38.4, MinLon: -75.8, MaxLat: 39.8, MaxLon: -75.0},
	"DC": {MinLat: 38.8, MinLon: -77.1, MaxLat: 39.0, MaxLon: -76.9},
	"FL": {MinLat: 24.4, MinLon: -87.6, MaxLat: 31.0, MaxLon: -80.0},
	"GA": {MinLat: 30.4, MinLon: -85.6, MaxLat: 35.0, MaxLon: -80.8},
	"HI": {MinLat: 18.9, MinLon: -160.3, MaxLat: 22.3, MaxLon: -154.8},
	"ID": {MinLat: 42.0, MinLon: -117.2, MaxLat: 49.0, MaxLon: -111.0},
	"IL": {MinLat: 36.9, MinLon: -91.5, MaxLat: 42.5, MaxLon: -87.0},
	"IN": {MinLat: 37.8, MinLon: -88.1, MaxLat: 41.8, MaxLon: -84.8},
	"IA": {MinLat: 40.4, MinLon: -96.6, MaxLat: 43.5, MaxLon: -90.1},
	"KS": {MinLat: 37.0, MinLon: -102.1, MaxLat: 40.0, MaxLon: -94.6},
	"KY": {MinLat: 36.5, MinLon: -89.6, MaxLat: 39.1, MaxLon: -81.9},
	"LA": {MinLat: 28.9, MinLon: -94.0, MaxLat: 33.0, MaxLon: -88.8},
	"ME": {MinLat: 43.1, MinLon: -71.1, MaxLat: 47.5, MaxLon: -66.9},
	"MD": {MinLat: 37.9, MinLon: -79.5, MaxLat: 39.7, MaxLon: -75.0},
	"MA": {MinLat: 41.2, MinLon: -73.5, MaxLat: 42.9, MaxLon: -69.9},
	"MI": {MinLat: 41.7, MinLon: -90.4, MaxLat: 48.2, MaxLon: -82.4},
	"MN": {MinLat: 43.5, MinLon: -97.2, MaxLat: 49.4, MaxLon: -89.5},
	"MS": {MinLat: 30.2, MinLon: -91.7, MaxLat: 35.0, MaxLon: -88.1},
	"MO": {MinLat: 36.0, MinLon: -95.8, MaxLat: 40.6, MaxLon: -89.1},
	"MT": {MinLat: 44.4, MinLon: -116.1, MaxLat: 49.0, MaxLon: -104.0},
	"NE": {MinLat: 40.0, MinLon: -104.1, MaxLat: 43.0, MaxLon: -95.3},
	"NV": {MinLat: 35.0, MinLon: -120.0, MaxLat: 42.0, MaxLon: -114.0},
	"NH": {MinLat: 42.7, MinLon: -72.6, MaxLat: 45.3, MaxLon: -70.6},
	"NJ": {MinLat: 38.9, MinLon: -75.6, MaxLat: 41.4, MaxLon: -73.9},
	"NM": {MinLat: 31.3, MinLon: -109.1, MaxLat: 37.0, MaxLon: -103.0},
	"NY": {MinLat: 40.5, MinLon: -79.8, MaxLat: 45.0, MaxLon: -71.9},
	"NC": {MinLat: 33.8, MinLon: -84.3, MaxLat: 36.6, MaxLon: -75.4},
	"ND": {MinLat: 45.9, MinLon: -104.0, MaxLat: 49.0, MaxLon: -96.6},
	"OH": {MinLat: 38.4, MinLon: -84.8, MaxLat: 42.0, MaxLon: -80.5},
	"OK": {MinLat: 33.6, MinLon: -103.0, MaxLat: 37.0, MaxLon: -94.4},
	"OR": {MinLat: 42.0, MinLon: -124.6, MaxLat: 46.3, MaxLon: -116.5},
	"PA": {MinLat: 39.7, MinLon: -80.5, MaxLat: 42.3, MaxLon: -74.7},
	"RI": {MinLat: 41.1, MinLon: -71.9, MaxLat: 42.0, MaxLon: -71.1},
	"SC": {MinLat: 32.0, MinLon: -83.4, MaxLat: 35.2, MaxLon: -78.5},
	"SD": {MinLat: 42.5, MinLon: -104.1, MaxLat: 45.9, MaxLon: -96.4},
	"TN": {MinLat: 35.0, MinLon: -90.3, MaxLat: 36.7, MaxLon: -81.6},
	"TX": {MinLat: 25.8, MinLon: -106.6, MaxLat: 36.5, MaxLon: -93.5},
	"UT": {MinLat: 37.0, MinLon: -114.1, MaxLat: 42.0, MaxLon: -109.0},
	"VT": {MinLat: 42.7, MinLon: -73.4, MaxLat: 45.0, MaxLon: -71.5},
	"VA": {MinLat: 36.5, MinLon: -83.7, MaxLat: 39.5, MaxLon: -75.2},
	"WA": {MinLat: 45.5, MinLon: -124.8, MaxLat: 49.0, MaxLon: -116.9},
	"WV": {MinLat: 37.2, MinLon: -82.6, MaxLat: 40.6, MaxLon: -77.7},
	"WI": {MinLat: 42.5, MinLon: -92.9, MaxLat: 47.1, MaxLon: -86.2},
	"WY": {MinLat: 41.0, MinLon: -111.1, MaxLat: 45.0, MaxLon: -104.1},
}

// GetRegion looks up a census region by name, case-insensitively.
func GetRegion(name string) (Region, bool) {
	r, ok := usRegions[strings.ToLower(name)]
	return r, ok
}

// ValidRegion reports whether name is a known region.
func ValidRegion(name string) bool {
	_, ok := usRegions[strings.ToLower(name)]
	return ok
}

// RegionNames returns the known region keys in a fixed order.
func RegionNames() []string {
	return []string{"northeast", "midwest", "south", "west"}
}

// ValidStateCode reports whether code is a two-letter US state or DC.
func ValidStateCode(code string) bool {
	_, ok := stateBBoxes[strings.ToUpper(code)]
	return ok
}

// StateBBox returns the bounding box for a single state code.
func StateBBox(code string) (opensky.BBox, bool) {
	b, ok := stateBBoxes[strings.ToUpper(code)]
	return b, ok
}

// StatesBBox returns the union bounding box covering all the given state
// codes. Unknown codes are ignored; ok is false if none were known.
func StatesBBox(states []string) (opensky.BBox, bool) {
	var out opensky.BBox
	found := false
	for _, s := range states {
		b, ok := stateBBoxes[strings.ToUpper(s)]
		if !ok {
			continue
		}
		if !found {
			out = b
			found = true
			continue
		}
		if b.MinLat < out.MinLat {
			out.MinLat = b.MinLat
		}
		if b.MinLon < out.MinLon {
			out.MinLon = b.MinLon
		}
		if b.MaxLat > out.MaxLat {
			out.MaxLat = b.MaxLat
		}
		if b.MaxLon > out.MaxLon {
			out.MaxLon = b.MaxLon
		}
	}
	return out, found
}
