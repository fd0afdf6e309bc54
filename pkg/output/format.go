// Package output provides utilities for formatting and displaying plan results.
package output

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/iwvelando/mediaplan/internal/report"
	"github.com/iwvelando/mediaplan/pkg/constants"
	"github.com/iwvelando/mediaplan/pkg/format"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// CurrencySymbol prefixes costs in the pretty format.
const CurrencySymbol = "Rs"

// Write renders r in the named format.
func Write(w io.Writer, outputFormat string, r report.Report) error {
	switch outputFormat {
	case constants.OutputFormatPretty:
		return PrettyFormat(w, r)
	case constants.OutputFormatCSV:
		return CsvFormat(w, r)
	case constants.OutputFormatJSON:
		return JSONFormat(w, r)
	}
	return fmt.Errorf("unsupported output format %q", outputFormat)
}

// WriteBonus renders a bonus report in the named format.
func WriteBonus(w io.Writer, outputFormat string, r report.BonusReport) error {
	switch outputFormat {
	case constants.OutputFormatPretty:
		return PrettyBonusFormat(w, r)
	case constants.OutputFormatCSV:
		return CsvBonusFormat(w, r)
	case constants.OutputFormatJSON:
		return JSONFormat(w, r)
	}
	return fmt.Errorf("unsupported output format %q", outputFormat)
}

func status(success, optimal bool, solverStatus string) string {
	switch {
	case !success:
		return "no plan, solver status " + solverStatus
	case optimal:
		return "optimal"
	default:
		return "feasible, not proven optimal"
	}
}

// PrettyFormat outputs a human-readable rather than machine-readable plan.
func PrettyFormat(w io.Writer, r report.Report) error {
	p := message.NewPrinter(language.English)
	ew := &errWriter{w: w}

	ew.printf(p, "--- Media plan (%s) ---\n", status(r.Success, r.IsOptimal, r.SolverStatus))
	if r.Message != "" {
		ew.printf(p, "%s\n", r.Message)
	}
	if !r.Success {
		return ew.err
	}
	ew.printf(p, "Total cost   : %s\n", format.Currency(CurrencySymbol, r.TotalCost))
	ew.printf(p, "Total rating : %s\n", format.Rating(r.TotalRating))
	ew.printf(p, "CPRP         : %s\n", format.CPRP(r.CPRP))
	if r.HitTimeLimit {
		ew.printf(p, "Time limit reached\n")
	}

	ew.printf(p, "\n--- Channels ---\n")
	ew.printf(p, "Channel | Cost | %% Cost | Rating | %% Rating | Prime Cost %% | Non-Prime Cost %%\n")
	ew.printf(p, "_______ | ____ | ______ | ______ | ________ | ____________ | ________________\n")
	for _, ch := range r.ChannelSummary {
		ew.printf(p, "%s | %.2f | %.2f | %.2f | %.2f | %.2f | %.2f\n",
			ch.Channel, ch.TotalCost, ch.CostPct, ch.TotalRating, ch.RatingPct, ch.PrimeCostPct, ch.NonPrimeCostPct)
	}

	for _, c := range r.CommercialsSummary {
		ew.printf(p, "\n--- Commercial %d: cost %s, rating %s, CPRP %s ---\n",
			c.CommercialIndex+1, format.Currency(CurrencySymbol, c.TotalCost), format.Rating(c.TotalRating), format.CPRP(c.CPRP))
		ew.printf(p, "Channel | Program | Slot | Spots | NCost | Total Cost | Total Rating\n")
		ew.printf(p, "_______ | _______ | ____ | _____ | _____ | __________ | ____________\n")
		for _, d := range c.Details {
			ew.printf(p, "%s | %s | %s | %d | %.2f | %.2f | %.2f\n",
				d.Channel, d.Program, d.Slot, d.Spots, d.NCost, d.TotalCost, d.TotalRating)
		}
	}
	return ew.err
}

// PrettyBonusFormat outputs a human-readable bonus plan.
func PrettyBonusFormat(w io.Writer, r report.BonusReport) error {
	p := message.NewPrinter(language.English)
	ew := &errWriter{w: w}

	ew.printf(p, "--- Bonus plan (%s) ---\n", status(r.Success, r.IsOptimal, r.SolverStatus))
	for _, line := range []string{r.Message, r.Note} {
		if line != "" {
			ew.printf(p, "%s\n", line)
		}
	}
	if !r.Success || r.Totals == nil || r.Tables == nil {
		return ew.err
	}
	ew.printf(p, "Bonus cost   : %s\n", format.Currency(CurrencySymbol, r.Totals.BonusTotalCost))
	ew.printf(p, "Bonus rating : %s\n", format.Rating(r.Totals.BonusTotalRating))

	ew.printf(p, "\n--- Channels ---\n")
	ew.printf(p, "Channel | Spots | Total Cost | Total Rating\n")
	ew.printf(p, "_______ | _____ | __________ | ____________\n")
	for _, ch := range r.Tables.ByChannel {
		ew.printf(p, "%s | %d | %.2f | %.2f\n", ch.Channel, ch.Spots, ch.TotalCost, ch.TotalRating)
	}

	ew.printf(p, "\n--- Programs ---\n")
	ew.printf(p, "Channel | Program | Commercial | Spots | Total Cost | Total Rating\n")
	ew.printf(p, "_______ | _______ | __________ | _____ | __________ | ____________\n")
	for _, pr := range r.Tables.ByProgram {
		ew.printf(p, "%s | %s | %s | %d | %.2f | %.2f\n",
			pr.Channel, pr.Program, pr.Commercial, pr.Spots, pr.TotalCost, pr.TotalRating)
	}
	return ew.err
}

// CsvFormat outputs the planned rows in comma-separated value format.
func CsvFormat(w io.Writer, r report.Report) error {
	cw := csv.NewWriter(w)
	records := [][]string{{
		"channel", "program", "day", "time", "slot", "commercial", "commercial_key",
		"spots", "ncost", "ntvr", "total_cost", "total_rating",
	}}
	for _, row := range r.Rows {
		records = append(records, []string{
			row.Channel, row.Program, row.Day, row.Time, row.Slot,
			strconv.Itoa(row.Commercial), row.CommercialKey, strconv.Itoa(row.Spots),
			money(row.NCost), money(row.NTVR), money(row.TotalCost), money(row.TotalRating),
		})
	}
	if err := cw.WriteAll(records); err != nil {
		return fmt.Errorf("failed to write CSV: %w", err)
	}
	return nil
}

// CsvBonusFormat outputs the bonus program table in comma-separated value format.
func CsvBonusFormat(w io.Writer, r report.BonusReport) error {
	cw := csv.NewWriter(w)
	records := [][]string{{
		"channel", "program", "slot", "commercial", "duration", "spots", "ncost", "ntvr", "total_cost", "total_rating",
	}}
	if r.Tables != nil {
		for _, row := range r.Tables.ByProgram {
			records = append(records, []string{
				row.Channel, row.Program, row.Slot, row.Commercial,
				strconv.FormatFloat(row.Duration, 'f', -1, 64), strconv.Itoa(row.Spots),
				money(row.NCost), money(row.NTVR), money(row.TotalCost), money(row.TotalRating),
			})
		}
	}
	if err := cw.WriteAll(records); err != nil {
		return fmt.Errorf("failed to write CSV: %w", err)
	}
	return nil
}

// JSONFormat outputs v as indented JSON.
func JSONFormat(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to write JSON: %w", err)
	}
	return nil
}

func money(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

// errWriter keeps the first write error so the table code stays linear.
type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) printf(p *message.Printer, layout string, args ...interface{}) {
	if e.err != nil {
		return
	}
	_, e.err = p.Fprintf(e.w, layout, args...)
}
