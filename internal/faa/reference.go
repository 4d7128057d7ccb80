// Package faa filters the FAA aircraft registration database (MASTER.txt
// plus ACFTREF.txt) down to mission-specific rosters.
package faa

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
)

// ModelRef is one ACFTREF entry: a manufacturer/model code with its names.
type ModelRef struct {
	Manufacturer    string
	Model           string
	ModelNormalized string
}

var (
	nonWordRe    = regexp.MustCompile(`[^\w\s]`)
	multiSpaceRe = regexp.MustCompile(`\s+`)
)

// NormalizeModel uppercases a model string, strips punctuation and
// collapses whitespace so pattern matching is layout-independent.
func NormalizeModel(model string) string {
	if model == "" {
		return ""
	}
	s := nonWordRe.ReplaceAllString(strings.ToUpper(model), "")
	return strings.TrimSpace(multiSpaceRe.ReplaceAllString(s, " "))
}

// LoadModelReference reads ACFTREF.txt keyed by model code. The FAA
// export has a BOM, padded fields and a trailing comma; column positions
// are resolved from the header with a positional fallback.
func LoadModelReference(path string) (map[string]ModelRef, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open aircraft reference: %w", err)
	}
	defer func() { _ = f.Close() }()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read aircraft reference header: %w", err)
	}

	codeIdx := headerIndex(header, "CODE")
	mfrIdx := headerIndex(header, "MFR")
	modelIdx := headerIndex(header, "MODEL")
	if codeIdx < 0 {
		// Fall back to the first three columns.
		if len(header) < 3 {
			return nil, fmt.Errorf("aircraft reference header too short: %v", header)
		}
		codeIdx, mfrIdx, modelIdx = 0, 1, 2
	}

	refs := make(map[string]ModelRef)
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue
		}
		code := fieldAt(rec, codeIdx)
		if code == "" {
			continue
		}
		model := fieldAt(rec, modelIdx)
		refs[code] = ModelRef{
			Manufacturer:    fieldAt(rec, mfrIdx),
			Model:           model,
			ModelNormalized: NormalizeModel(model),
		}
	}
	return refs, nil
}

// headerIndex finds a column by name, tolerating a BOM and padding.
func headerIndex(header []string, name string) int {
	for i, h := range header {
		clean := strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if strings.EqualFold(clean, name) {
			return i
		}
	}
	return -1
}

func fieldAt(rec []string, idx int) string {
	if idx < 0 || idx >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[idx])
}
