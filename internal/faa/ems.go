package faa

import (
	"bufio"
	"fmt"
	"log"
	"os"
	"regexp"
	"strings"
	"unicode"

	"fleetwatch/internal/roster"
)

// emsOwnerKeywords flag owner names suggesting medical operations.
var emsOwnerKeywords = []string{
	"LIFE", "MED", "AIRMED", "CARE", "ANGEL", "EMS",
	"HEALTH", "HOSPITAL", "FLIGHT", "AEROMED", "MEDICAL",
	"AMBULANCE", "RESCUE", "EMERGENCY",
}

// airlinePatterns exclude transport-category aircraft from any roster.
var airlinePatterns = []string{
	"A320", "A321", "A330", "A350", "A380",
	"B737", "B747", "B757", "B767", "B777", "B787",
	"MD80", "MD90", "MD11", "CRJ", "ERJ", "E170", "E175",
}

var parenRe = regexp.MustCompile(`\([^)]*\)`)

// EMSFilter selects likely air-ambulance aircraft from the registry.
type EMSFilter struct {
	MasterPath  string
	AcftRefPath string
	ModelsPath  string

	modelRefs     map[string]ModelRef
	modelPatterns []string
	emsModelCodes map[string]bool
}

// Run loads the reference data and scans MASTER.txt, returning the EMS
// roster.
func (f *EMSFilter) Run() ([]roster.Entry, error) {
	patterns, err := loadModelPatterns(f.ModelsPath)
	if err != nil {
		return nil, err
	}
	// King Air model codes the pattern file spells differently.
	patterns = append(patterns, "BE90", "BE20", "BE30")
	f.modelPatterns = patterns

	f.modelRefs, err = LoadModelReference(f.AcftRefPath)
	if err != nil {
		return nil, err
	}
	f.emsModelCodes = matchModelCodes(f.modelRefs, f.modelPatterns)
	log.Printf("faa: %d model patterns, %d matching model codes", len(f.modelPatterns), len(f.emsModelCodes))

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
	log.Printf("faa: %d EMS aircraft selected", len(out))
	return out, nil
}

func (f *EMSFilter) match(row MasterRow) (roster.Entry, bool) {
	if excludeCommon(row, f.modelRefs) || row.NNumber == "" {
		return roster.Entry{}, false
	}

	modelMatch := f.emsModelCodes[row.ModelCode]
	ownerMatch := matchesEMSOwner(row.OwnerName)
	if !modelMatch && !ownerMatch {
		return roster.Entry{}, false
	}

	var reasons []string
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
	case modelMatch && ownerMatch:
		confidence = "high"
	case modelMatch:
		confidence = "medium"
	}

	return buildEntry(row, ref, reasons, confidence), true
}

// matchesEMSOwner reports whether the owner name contains any EMS keyword.
func matchesEMSOwner(owner string) bool {
	if owner == "" {
		return false
	}
	upper := strings.ToUpper(owner)
	for _, kw := range emsOwnerKeywords {
		if strings.Contains(upper, kw) {
			return true
		}
	}
	return false
}

// excludeCommon applies the exclusions shared by all roster filters:
// inactive registrations, single-engine piston aircraft, and airliners.
func excludeCommon(row MasterRow, refs map[string]ModelRef) bool {
	if row.StatusCode != "V" {
		return true
	}
	if row.TypeAircraft == "4" && row.TypeEngine == "1" {
		return true
	}
	if ref, ok := refs[row.ModelCode]; ok {
		for _, p := range airlinePatterns {
			if strings.Contains(ref.ModelNormalized, p) {
				return true
			}
		}
	}
	return false
}

// matchModelCodes returns the reference codes whose model matches any
// pattern by prefix or substring.
func matchModelCodes(refs map[string]ModelRef, patterns []string) map[string]bool {
	codes := make(map[string]bool)
	for code, ref := range refs {
		upper := strings.ToUpper(ref.Model)
		for _, p := range patterns {
			if strings.HasPrefix(ref.ModelNormalized, p) || strings.Contains(ref.ModelNormalized, p) ||
				strings.HasPrefix(upper, p) || strings.Contains(upper, p) {
				codes[code] = true
				break
			}
		}
	}
	return codes
}

// loadModelPatterns reads the model pattern file: one model per line,
// with [section] headers, ** notes and parenthetical remarks ignored. The
// "[Common substrings:]" section and anything after the exclusion notes
// is skipped.
func loadModelPatterns(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open model patterns: %w", err)
	}
	defer func() { _ = f.Close() }()

	var patterns []string
	section := ""
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "**") {
			continue
		}
		if strings.HasPrefix(line, "[") {
			section = line
			continue
		}
		if strings.HasPrefix(line, "What to Exclude") || strings.HasPrefix(line, "Strongly") {
			break
		}
		if isUpperText(line) && len(line) > 10 {
			continue
		}
		if section == "[Common substrings:]" {
			continue
		}

		model := strings.TrimSpace(parenRe.ReplaceAllString(line, ""))
		if norm := NormalizeModel(model); norm != "" {
			patterns = append(patterns, norm)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read model patterns: %w", err)
	}
	return patterns, nil
}

// isUpperText reports whether a line has cased letters and none lower case.
func isUpperText(s string) bool {
	hasUpper := false
	for _, r := range s {
		if unicode.IsLower(r) {
			return false
		}
		if unicode.IsUpper(r) {
			hasUpper = true
		}
	}
	return hasUpper
}

func buildEntry(row MasterRow, ref ModelRef, reasons []string, confidence string) roster.Entry {
	model, mfr := ref.Model, ref.Manufacturer
	if model == "" {
		model = "Unknown"
	}
	if mfr == "" {
		mfr = "Unknown"
	}
	return roster.Entry{
		NNumber:      row.NNumber,
		ModeSHex:     strings.ToUpper(row.ModeSHex),
		ModelCode:    row.ModelCode,
		ModelName:    model,
		Manufacturer: mfr,
		OwnerName:    row.OwnerName,
		OwnerCity:    row.OwnerCity,
		OwnerState:   row.OwnerState,
		MatchReasons: reasons,
		Confidence:   confidence,
		TypeAircraft: row.TypeAircraft,
		TypeEngine:   row.TypeEngine,
		StatusCode:   row.StatusCode,
	}
}
