package planner

import (
	"strings"

	"github.com/iwvelando/mediaplan/internal/model"
	"github.com/iwvelando/mediaplan/internal/pricing"
	"github.com/spf13/cast"
)

// Table is a row table as handed to the planner: the allocation rows used for
// reporting and the builder's view of the same rows, which remembers which
// columns were present.
type Table struct {
	Rows  []pricing.AllocationRow
	Model []model.Row
}

// NewTable wraps normalized rows; every column is present.
func NewTable(rows []pricing.AllocationRow) Table {
	return Table{Rows: rows, Model: model.FromAllocation(rows)}
}

// Len is the number of rows.
func (t Table) Len() int {
	return len(t.Rows)
}

// TableFromRecords reads loosely typed records such as decoded JSON or YAML.
// Values that do not parse become zero, negative NCost and NTVR are clamped
// to zero and missing keys leave the builder column absent.
func TableFromRecords(records []map[string]any) Table {
	t := Table{
		Rows:  make([]pricing.AllocationRow, len(records)),
		Model: make([]model.Row, len(records)),
	}
	for i, rec := range records {
		r := pricing.AllocationRow{
			ID:             cast.ToInt64(rec["Id"]),
			Channel:        cast.ToString(rec["Channel"]),
			Day:            cast.ToString(rec["Day"]),
			Time:           cast.ToString(rec["Time"]),
			Program:        cast.ToString(rec["Program"]),
			Slot:           cast.ToString(rec["Slot"]),
			Cost:           cast.ToFloat64(rec["Cost"]),
			TVR:            cast.ToFloat64(rec["TVR"]),
			NegotiatedRate: cast.ToFloat64(rec["Negotiated_Rate"]),
			Commercial:     cast.ToInt(rec["Commercial"]),
			CommercialKey:  cast.ToString(rec["Commercial_Key"]),
			Duration:       cast.ToFloat64(rec["Duration"]),
			NCost:          nonNegative(cast.ToFloat64(rec["NCost"])),
			NTVR:           nonNegative(cast.ToFloat64(rec["NTVR"])),
		}
		t.Rows[i] = r

		row := &t.Model[i]
		row.Program = r.Program
		row.CommercialKey = r.CommercialKey
		if _, ok := rec["Channel"]; ok {
			row.Channel = &t.Rows[i].Channel
		}
		if _, ok := rec["Slot"]; ok {
			row.Slot = &t.Rows[i].Slot
		}
		if _, ok := rec["Commercial"]; ok {
			row.Commercial = &t.Rows[i].Commercial
		}
		if _, ok := rec["NCost"]; ok {
			row.NCost = &t.Rows[i].NCost
		}
		if _, ok := rec["NTVR"]; ok {
			row.NTVR = &t.Rows[i].NTVR
		}
	}
	return t
}

// BonusRowsFromRecords reads bonus program rows. NCost and NTVR fall back to
// Rate and TVR and are clamped to zero, slots are upper-cased and rows without
// an id get a sequential one.
func BonusRowsFromRecords(records []map[string]any) []pricing.AllocationRow {
	rows := make([]pricing.AllocationRow, 0, len(records))
	var autoID int64 = 1
	for _, rec := range records {
		id, err := cast.ToInt64E(rec["RowId"])
		if rec["RowId"] == nil || err != nil {
			id = autoID
			autoID++
		}
		rows = append(rows, pricing.AllocationRow{
			ID:            id,
			Channel:       cast.ToString(rec["Channel"]),
			Program:       cast.ToString(rec["Program"]),
			Slot:          strings.ToUpper(strings.TrimSpace(cast.ToString(rec["Slot"]))),
			CommercialKey: cast.ToString(rec["Commercial"]),
			Duration:      cast.ToFloat64(rec["Duration"]),
			Cost:          cast.ToFloat64(rec["Rate"]),
			TVR:           cast.ToFloat64(rec["TVR"]),
			NCost:         nonNegative(withFallback(rec["NCost"], rec["Rate"])),
			NTVR:          nonNegative(withFallback(rec["NTVR"], rec["TVR"])),
		})
	}
	return rows
}

func withFallback(v, fallback any) float64 {
	if v != nil {
		if f, err := cast.ToFloat64E(v); err == nil {
			return f
		}
	}
	return cast.ToFloat64(fallback)
}

func nonNegative(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}
