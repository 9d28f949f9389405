// Package export renders attendance data as CSV reports. Output is
// BOM-prefixed UTF-8 so spreadsheet tools pick up the encoding.
package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"sort"

	"rollcall/internal/roster"
)

const bom = "\uFEFF"

const (
	present = "O"
	absent  = "X"
)

// Book renders the full attendance grid: one row per student, one
// date-labeled column per distinct date, plus a total column.
func Book(rows []roster.ExportRow) []byte {
	dateSet := map[string]struct{}{}
	for _, r := range rows {
		for _, d := range r.Dates {
			dateSet[d] = struct{}{}
		}
	}
	dates := make([]string, 0, len(dateSet))
	for d := range dateSet {
		dates = append(dates, d)
	}
	sort.Strings(dates)

	var buf bytes.Buffer
	buf.WriteString(bom)
	w := csv.NewWriter(&buf)

	header := append([]string{"Name", "School", "Year", "Phone"}, dates...)
	header = append(header, "Total")
	_ = w.Write(header)

	for _, r := range rows {
		has := map[string]bool{}
		for _, d := range r.Dates {
			has[d] = true
		}
		record := []string{orDash(r.Name), orDash(r.School), orDash(r.Year), orDash(r.Phone)}
		for _, d := range dates {
			if has[d] {
				record = append(record, present)
			} else {
				record = append(record, absent)
			}
		}
		record = append(record, fmt.Sprintf("%d", len(r.Dates)))
		_ = w.Write(record)
	}
	w.Flush()
	return buf.Bytes()
}

// Sheet renders a single date's presence list.
func Sheet(date string, rows []roster.SheetRow) []byte {
	var buf bytes.Buffer
	buf.WriteString(bom)
	w := csv.NewWriter(&buf)

	_ = w.Write([]string{"Name", "Phone", date, "Checked At"})
	for _, r := range rows {
		mark := absent
		checkedAt := ""
		if r.IsPresent {
			mark = present
			if r.CheckedAt != nil {
				checkedAt = r.CheckedAt.Format("15:04:05")
			}
		}
		_ = w.Write([]string{orDash(r.Name), orDash(r.Phone), mark, checkedAt})
	}
	w.Flush()
	return buf.Bytes()
}

func orDash(v *string) string {
	if v == nil || *v == "" {
		return "-"
	}
	return *v
}
