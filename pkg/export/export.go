// Package export writes run results as CSV, JSON and HTML charts.
package export

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/kilianp07/openbat/core/accounting"
	"github.com/kilianp07/openbat/core/simulation"
)

// Summary is the JSON document of a run.
type Summary struct {
	RunID           string             `json:"run_id,omitempty"`
	System          string             `json:"system"`
	Topology        string             `json:"topology"`
	StepSeconds     float64            `json:"step_s"`
	Steps           int                `json:"steps"`
	FinalSOC        float64            `json:"final_soc"`
	SelfSufficiency float64            `json:"self_sufficiency"`
	Report          []accounting.Entry `json:"report"`
	Ideal           []accounting.Entry `json:"ideal"`
}

// NewSummary extracts the summary of o.
func NewSummary(runID string, o *simulation.Outcome) Summary {
	return Summary{
		RunID:           runID,
		System:          o.System,
		Topology:        o.Topology.String(),
		StepSeconds:     o.Step,
		Steps:           len(o.Result.SOC),
		FinalSOC:        o.FinalSOC(),
		SelfSufficiency: o.SelfSufficiency(),
		Report:          o.Balance.Report.Sorted(o.Topology),
		Ideal:           o.Ideal.Sorted(o.Topology),
	}
}

// WriteJSON writes the run summary to w.
func WriteJSON(w io.Writer, s Summary) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(s)
}

// seriesHeader lists the columns written by WriteSeriesCSV.
var seriesHeader = []string{"step", "time_s", "ppv_w", "pl_w", "pbat_w", "pbus_w", "pgrid_w", "pcurtail_w", "soc", "ideal_soc"}

// WriteSeriesCSV writes one row per step with the main power flows in W.
// Grid power is positive for feed-in.
func WriteSeriesCSV(w io.Writer, o *simulation.Outcome) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(seriesHeader); err != nil {
		return err
	}
	n := len(o.Result.SOC)
	at := func(s []float64, i int) string {
		if i >= len(s) {
			return ""
		}
		return strconv.FormatFloat(s[i], 'f', -1, 64)
	}
	for i := 0; i < n; i++ {
		rec := []string{
			strconv.Itoa(i),
			strconv.FormatFloat(float64(i)*o.Step, 'f', -1, 64),
			at(o.Balance.Ppv, i),
			at(o.Drive.Pl, i),
			at(o.Result.Pbat, i),
			at(o.Result.Pbus, i),
			at(o.Balance.Pg, i),
			at(o.Balance.Pct, i),
			at(o.Result.SOC, i),
			at(o.IdealSOC, i),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteReportCSV writes the energy report with the ideal reference next to
// it. Categories missing from the ideal report are left empty.
func WriteReportCSV(w io.Writer, s Summary) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"category", "mwh", "ideal_mwh"}); err != nil {
		return err
	}
	ideal := make(map[accounting.Category]float64, len(s.Ideal))
	for _, e := range s.Ideal {
		ideal[e.Category] = e.MWh
	}
	for _, e := range s.Report {
		ref := ""
		if v, ok := ideal[e.Category]; ok {
			ref = strconv.FormatFloat(v, 'f', -1, 64)
		}
		if err := cw.Write([]string{string(e.Category), strconv.FormatFloat(e.MWh, 'f', -1, 64), ref}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteFiles writes the requested formats into dir using name as the file
// stem and returns the created paths. "csv" produces a series and a report
// file.
func WriteFiles(dir, name, runID string, formats []string, o *simulation.Outcome) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	s := NewSummary(runID, o)
	var paths []string
	write := func(suffix string, fn func(io.Writer) error) error {
		p := filepath.Join(dir, name+suffix)
		f, err := os.Create(p)
		if err != nil {
			return err
		}
		if err := fn(f); err != nil {
			_ = f.Close()
			return fmt.Errorf("write %s: %w", p, err)
		}
		if err := f.Close(); err != nil {
			return err
		}
		paths = append(paths, p)
		return nil
	}
	var errs []error
	for _, format := range formats {
		switch format {
		case "csv":
			errs = append(errs,
				write("_series.csv", func(w io.Writer) error { return WriteSeriesCSV(w, o) }),
				write("_report.csv", func(w io.Writer) error { return WriteReportCSV(w, s) }))
		case "json":
			errs = append(errs, write(".json", func(w io.Writer) error { return WriteJSON(w, s) }))
		case "html":
			errs = append(errs, write(".html", func(w io.Writer) error { return RenderHTML(w, o) }))
		default:
			errs = append(errs, fmt.Errorf("unknown format %q", format))
		}
	}
	return paths, errors.Join(errs...)
}
