package faa

import (
	"log"
	"regexp"
	"strings"

	"fleetwatch/internal/roster"
)

// policeModelPatterns cover rotorcraft and fixed-wing types commonly
// operated by law enforcement.
var policeModelPatterns = []string{
	"BELL 206", "BELL 407", "BELL 429", "BELL 412", "BELL 505",
	"JETRANGER", "LONGRANGER",
	"EC135", "EC145", "H135", "H145", "AS350", "ASTAR", "ECUREUIL",
	"AW109", "AW119", "A109", "A139",
	"S76", "S-76",
	"BO105", "BK117",
	"CESSNA 182", "CESSNA 206", "CESSNA 210", "CESSNA 172",
	"PIPER PA28", "PIPER PA32", "PIPER PA34",
	"BEECHCRAFT KING AIR", "BE90", "BE20", "BE30", "BE200",
	"PILATUS PC12", "PC-12",
	"MD500", "MD 500", "MD530", "MD 530", "HUGHES 500",
	"ENSTROM", "R44", "ROBINSON R44", "R66", "ROBINSON R66",
}

var policeOwnerKeywords = []string{
	"POLICE", "POLICE DEPARTMENT", "POLICE DEPT", "POLICE DEP",
	"SHERIFF", "SHERIFFS OFFICE", "SHERIFF OFFICE", "SHERIFFS DEPT",
	"SHERIFF DEPARTMENT", "COUNTY SHERIFF",
	"STATE POLICE", "STATE PATROL", "HIGHWAY PATROL",
	"TROOPER", "TROOPERS",
	"LAW ENFORCEMENT", "LAW ENFORCEMENT AGENCY",
	"MARSHAL", "MARSHALS", "US MARSHAL", "US MARSHALS",
	"FBI", "FEDERAL BUREAU OF INVESTIGATION",
	"DEA", "DRUG ENFORCEMENT ADMINISTRATION",
	"ATF", "BUREAU OF ALCOHOL TOBACCO FIREARMS",
	"CUSTOMS", "BORDER PATROL", "IMMIGRATION",
	"DHS", "DEPARTMENT OF HOMELAND SECURITY",
	"TSA", "TRANSPORTATION SECURITY ADMINISTRATION",
	"PD", "SO", "SP", "HP", "LE",
	"FEDERAL", "FEDERAL AGENCY",
	"DEPARTMENT OF JUSTICE", "DOJ",
	"PATROL", "AERONAUTICS", "AERONAUTICS DIVISION",
	"PUBLIC SAFETY", "PUBLIC SAFETY DEPARTMENT",
	"CRIMINAL JUSTICE", "JUSTICE DEPARTMENT",
}

var museumKeywords = []string{
	"MUSEUM", "MUSEUMS", "AVIATION MUSEUM", "AIR MUSEUM",
	"FLIGHT MUSEUM", "AEROSPACE MUSEUM", "AIRSPACE MUSEUM",
	"MUSEUM OF", "AIR & SPACE MUSEUM", "AIR AND SPACE MUSEUM",
}

var cargoCarrierKeywords = []string{
	"FEDERAL EXPRESS", "FEDERAL EXPRESS CORP", "FEDEX", "FED EX",
	"FEDERAL EXPRESS CORPORATION", "FEDEX EXPRESS", "FEDEX CORP",
}

var ownerSuffixes = []string{
	" LLC", " INC", " CORP", " CORPORATION", " LTD", " LIMITED",
	" LP", " LLP", " PC", " PLLC", " LLC.", " INC.", " CORP.",
}

var llcIndicators = []string{" LLC", " LLC.", " LIMITED LIABILITY", " L.L.C.", " L L C"}

// tailPatterns match police-style N-number suffixes.
var tailPatterns = []struct {
	re     *regexp.Regexp
	reason string
}{
	{regexp.MustCompile(`^N\d+PD$`), "N-number pattern (Police Department)"},
	{regexp.MustCompile(`^N\d+SO$`), "N-number pattern (Sheriff's Office)"},
	{regexp.MustCompile(`^N\d+SP$`), "N-number pattern (State Police)"},
	{regexp.MustCompile(`^N\d+HP$`), "N-number pattern (Highway Patrol)"},
	{regexp.MustCompile(`^N\d+LE$`), "N-number pattern (Law Enforcement)"},
	{regexp.MustCompile(`^N\d+ST$`), "N-number pattern (State)"},
}

var modeSHexRe = regexp.MustCompile(`^[0-9A-F]{6}$`)

// PoliceFilter selects likely law-enforcement aircraft from the registry.
// Stricter than the EMS filter: a valid Mode S hex is mandatory, and
// individual owners, museums, cargo carriers and generic private LLCs are
// excluded.
type PoliceFilter struct {
	MasterPath  string
	AcftRefPath string

	modelRefs        map[string]ModelRef
	policeModelCodes map[string]bool
}

// Run loads the reference data and scans MASTER.txt, returning the police
// roster.
func (f *PoliceFilter) Run() ([]roster.Entry, error) {
	var err error
	f.modelRefs, err = LoadModelReference(f.AcftRefPath)
	if err != nil {
		return nil, err
	}
	f.policeModelCodes = matchModelCodes(f.modelRefs, policeModelPatterns)

	var out []roster.Entry
	err = ForEachMasterRow(f.MasterPath, func(row MasterRow) bool {
		if entry, ok := f.match(row); ok {
			out = append(out, entry)
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	log.Printf("faa: %d police aircraft selected", len(out))
	return out, nil
}

func (f *PoliceFilter) match(row MasterRow) (roster.Entry, bool) {
	if f.exclude(row) || row.NNumber == "" {
		return roster.Entry{}, false
	}

	hex := strings.ToUpper(row.ModeSHex)
	if !modeSHexRe.MatchString(hex) {
		return roster.Entry{}, false
	}
	row.ModeSHex = hex

	modelMatch := f.policeModelCodes[row.ModelCode]
	ownerMatch := matchesPoliceOwner(row.OwnerName)
	// Registry N-numbers are stored without the leading N.
	tail := "N" + strings.TrimPrefix(strings.ToUpper(row.NNumber), "N")

	var reasons []string
	tailMatch := false
	for _, p := range tailPatterns {
		if p.re.MatchString(tail) {
			tailMatch = true
			reasons = append(reasons, p.reason)
			break
		}
	}

	if !modelMatch && !ownerMatch && !tailMatch {
		return roster.Entry{}, false
	}

	var ref ModelRef
	if modelMatch {
		ref = f.modelRefs[row.ModelCode]
		reasons = append(reasons, "Model: "+ref.Model)
	}
	if ownerMatch {
		reasons = append(reasons, "Owner name keyword")
	}

	confidence := "low"
	switch {
	case modelMatch && (ownerMatch || tailMatch):
		confidence = "high"
	case modelMatch, tailMatch && ownerMatch:
		confidence = "medium"
	}

	return buildEntry(row, ref, reasons, confidence), true
}

func (f *PoliceFilter) exclude(row MasterRow) bool {
	if row.StatusCode != "V" {
		return true
	}

	owner := strings.ToUpper(row.OwnerName)
	if owner != "" {
		for _, kw := range museumKeywords {
			if strings.Contains(owner, kw) {
				return true
			}
		}
		for _, kw := range cargoCarrierKeywords {
			if strings.Contains(owner, kw) {
				return true
			}
		}
	}

	if ref, ok := f.modelRefs[row.ModelCode]; ok {
		for _, p := range airlinePatterns {
			if strings.Contains(ref.ModelNormalized, p) {
				return true
			}
		}
	}

	// Individual owners do not fly police missions.
	if row.TypeRegistrant == "1" {
		return true
	}

	// Generic private LLCs are out, but an LLC named for police work stays.
	if owner != "" {
		isLLC := false
		for _, ind := range llcIndicators {
			if strings.Contains(owner, ind) {
				isLLC = true
				break
			}
		}
		if isLLC {
			hasKeyword := false
			for _, kw := range policeOwnerKeywords {
				if strings.Contains(owner, kw) {
					hasKeyword = true
					break
				}
			}
			if !hasKeyword {
				return true
			}
		}
	}

	return false
}

// matchesPoliceOwner checks the owner name against police keywords.
// Business suffixes are stripped first; abbreviations of three characters
// or fewer require word boundaries so "SO" cannot match inside "SOUTHWEST".
func matchesPoliceOwner(owner string) bool {
	if owner == "" {
		return false
	}
	norm := normalizeOwner(owner)
	for _, kw := range policeOwnerKeywords {
		if len(kw) <= 3 {
			if matchWord(norm, kw) {
				return true
			}
		} else if strings.Contains(norm, kw) {
			return true
		}
	}
	return false
}

func normalizeOwner(owner string) string {
	norm := strings.ToUpper(owner)
	for _, suffix := range ownerSuffixes {
		norm = strings.TrimSuffix(strings.TrimRight(norm, " "), suffix)
	}
	return strings.TrimSpace(multiSpaceRe.ReplaceAllString(norm, " "))
}

// matchWord reports whether word occurs in s bounded by non-alphanumerics.
func matchWord(s, word string) bool {
	for idx := 0; ; {
		i := strings.Index(s[idx:], word)
		if i < 0 {
			return false
		}
		i += idx
		before := i == 0 || !isWordByte(s[i-1])
		afterIdx := i + len(word)
		after := afterIdx == len(s) || !isWordByte(s[afterIdx])
		if before && after {
			return true
		}
		idx = i + 1
	}
}

func isWordByte(b byte) bool {
	return b == '_' || (b >= '0' && b <= '9') || (b >= 'A' && b <= 'Z') || (b >= 'a' && b <= 'z')
}
