package geocode

import (
	"bufio"
	"log"
	"os"
	"strconv"
	"strings"
)

// countyIDTable maps "county|state" (lower case, suffixes stripped) to a
// Broadcastify county ID.
type countyIDTable map[string]int

// stateAbbrevs maps full US state names to postal abbreviations so table
// entries keyed by abbreviation match geocoder output.
var stateAbbrevs = map[string]string{
	"alabama": "AL", "alaska": "AK", "arizona": "AZ", "arkansas": "AR",
	"california": "CA", "colorado": "CO", "connecticut": "CT", "delaware": "DE",
	"florida": "FL", "georgia": "GA", "hawaii": "HI", "idaho": "ID",
	"illinois": "IL", "indiana": "IN", "iowa": "IA", "kansas": "KS",
	"kentucky": "KY", "louisiana": "LA", "maine": "ME", "maryland": "MD",
	"massachusetts": "MA", "michigan": "MI", "minnesota": "MN", "mississippi": "MS",
	"missouri": "MO", "montana": "MT", "nebraska": "NE", "nevada": "NV",
	"new hampshire": "NH", "new jersey": "NJ", "new mexico": "NM", "new york": "NY",
	"north carolina": "NC", "north dakota": "ND", "ohio": "OH", "oklahoma": "OK",
	"oregon": "OR", "pennsylvania": "PA", "rhode island": "RI", "south carolina": "SC",
	"south dakota": "SD", "tennessee": "TN", "texas": "TX", "utah": "UT",
	"vermont": "VT", "virginia": "VA", "washington": "WA", "west virginia": "WV",
	"wisconsin": "WI", "wyoming": "WY", "district of columbia": "DC",
}

// loadCountyIDs reads ctid<TAB>county<TAB>state_abbr lines. Blank lines
// and lines starting with '#' are skipped. An unreadable file yields an
// empty table after one warning.
func loadCountyIDs(path string) countyIDTable {
	if path == "" {
		return nil
	}
	f, err := os.Open(path)
	if err != nil {
		log.Printf("geocode: county ID table %s: %v (using search URLs)", path, err)
		return nil
	}
	defer func() { _ = f.Close() }()

	table := make(countyIDTable)
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) < 3 {
			continue
		}
		ctid, err := strconv.Atoi(strings.TrimSpace(fields[0]))
		if err != nil {
			continue
		}
		table[countyKey(fields[1], fields[2])] = ctid
	}
	return table
}

func (t countyIDTable) lookup(county, state string) (int, bool) {
	if t == nil {
		return 0, false
	}
	ctid, ok := t[countyKey(county, state)]
	return ctid, ok
}

// countyKey normalizes a county/state pair. State names are reduced to
// postal abbreviations; county suffixes like "County" and "Parish" drop.
func countyKey(county, state string) string {
	c := strings.ToLower(strings.TrimSpace(county))
	c = strings.TrimSuffix(c, " county")
	c = strings.TrimSuffix(c, " parish")

	s := strings.TrimSpace(state)
	if abbr, ok := stateAbbrevs[strings.ToLower(s)]; ok {
		s = abbr
	}
	return c + "|" + strings.ToUpper(s)
}
