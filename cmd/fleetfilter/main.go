// Command-line entry point for building aircraft rosters from the FAA
// registry.
//
// The FAA releasable aircraft database ships as CSV text files:
// MASTER.txt (registrations) and ACFTREF.txt (model reference). This tool
// scans them and writes a roster JSON consumed by the fleetwatch monitor.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"fleetwatch/internal/faa"
	"fleetwatch/internal/roster"
)

func usage(w io.Writer) {
	fmt.Fprintln(w, "fleetfilter - build aircraft rosters from the FAA registry:")
	fmt.Fprintln(w, "  ems     - select likely air-ambulance aircraft")
	fmt.Fprintln(w, "  police  - select likely law-enforcement aircraft")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  fleetfilter ems -master MASTER.txt -acftref ACFTREF.txt -models models.txt [-output ems_aircraft.json]")
	fmt.Fprintln(w, "  fleetfilter police -master MASTER.txt -acftref ACFTREF.txt [-output police_aircraft.json]")
	fmt.Fprintln(w, "")
}

func main() {
	if len(os.Args) < 2 {
		usage(os.Stderr)
		os.Exit(2)
	}
	cmd := strings.ToLower(os.Args[1])
	switch cmd {
	case "ems":
		runEMS(os.Args[2:])
	case "police":
		runPolice(os.Args[2:])
	case "-h", "--help", "help":
		usage(os.Stdout)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		usage(os.Stderr)
		os.Exit(2)
	}
}

func runEMS(args []string) {
	fs := flag.NewFlagSet("ems", flag.ExitOnError)
	master := fs.String("master", "ReleasableAircraft/MASTER.txt", "FAA MASTER.txt path")
	acftref := fs.String("acftref", "ReleasableAircraft/ACFTREF.txt", "FAA ACFTREF.txt path")
	models := fs.String("models", "data/ems_models.txt", "EMS model pattern file")
	output := fs.String("output", "data/ems_aircraft.json", "Output roster JSON")
	_ = fs.Parse(args)

	f := &faa.EMSFilter{MasterPath: *master, AcftRefPath: *acftref, ModelsPath: *models}
	entries, err := f.Run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "EMS filter failed: %v\n", err)
		os.Exit(1)
	}

	writeRoster(*output, entries)
}

func runPolice(args []string) {
	fs := flag.NewFlagSet("police", flag.ExitOnError)
	master := fs.String("master", "ReleasableAircraft/MASTER.txt", "FAA MASTER.txt path")
	acftref := fs.String("acftref", "ReleasableAircraft/ACFTREF.txt", "FAA ACFTREF.txt path")
	output := fs.String("output", "data/police_aircraft.json", "Output roster JSON")
	_ = fs.Parse(args)

	f := &faa.PoliceFilter{MasterPath: *master, AcftRefPath: *acftref}
	entries, err := f.Run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Police filter failed: %v\n", err)
		os.Exit(1)
	}

	writeRoster(*output, entries)
}

func writeRoster(path string, entries []roster.Entry) {
	if err := roster.Save(path, entries); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to write roster: %v\n", err)
		os.Exit(1)
	}

	byConfidence := map[string]int{}
	for _, e := range entries {
		byConfidence[e.Confidence]++
	}
	fmt.Printf("Wrote %d aircraft to %s (high: %d, medium: %d, low: %d)\n",
		len(entries), path, byConfidence["high"], byConfidence["medium"], byConfidence["low"])
}
