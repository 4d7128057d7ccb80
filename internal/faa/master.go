package faa

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
)

// MasterRow is one MASTER.txt registration record, reduced to the columns
// the filters consult.
type MasterRow struct {
	NNumber        string
	ModeSHex       string
	ModelCode      string
	OwnerName      string
	OwnerCity      string
	OwnerState     string
	StatusCode     string
	TypeAircraft   string
	TypeEngine     string
	TypeRegistrant string
}

// ForEachMasterRow streams MASTER.txt records through fn. Malformed rows
// are skipped; fn returning false stops the scan.
func ForEachMasterRow(path string, fn func(MasterRow) bool) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open master file: %w", err)
	}
	defer func() { _ = f.Close() }()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return fmt.Errorf("read master header: %w", err)
	}

	nIdx := headerIndex(header, "N-NUMBER")
	if nIdx < 0 {
		nIdx = headerIndex(header, "N NUMBER")
	}
	if nIdx < 0 {
		nIdx = 0
	}
	cols := struct{ modeS, model, name, city, state, status, typeAcft, typeEng, typeReg int }{
		modeS:    headerIndex(header, "MODE S CODE HEX"),
		model:    headerIndex(header, "MFR MDL CODE"),
		name:     headerIndex(header, "NAME"),
		city:     headerIndex(header, "CITY"),
		state:    headerIndex(header, "STATE"),
		status:   headerIndex(header, "STATUS CODE"),
		typeAcft: headerIndex(header, "TYPE AIRCRAFT"),
		typeEng:  headerIndex(header, "TYPE ENGINE"),
		typeReg:  headerIndex(header, "TYPE REGISTRANT"),
	}

	for {
		rec, err := r.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			continue
		}
		row := MasterRow{
			NNumber:        fieldAt(rec, nIdx),
			ModeSHex:       fieldAt(rec, cols.modeS),
			ModelCode:      fieldAt(rec, cols.model),
			OwnerName:      fieldAt(rec, cols.name),
			OwnerCity:      fieldAt(rec, cols.city),
			OwnerState:     fieldAt(rec, cols.state),
			StatusCode:     fieldAt(rec, cols.status),
			TypeAircraft:   fieldAt(rec, cols.typeAcft),
			TypeEngine:     fieldAt(rec, cols.typeEng),
			TypeRegistrant: fieldAt(rec, cols.typeReg),
		}
		if !fn(row) {
			return nil
		}
	}
}
