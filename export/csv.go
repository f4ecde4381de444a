// Package export writes registrations as a spreadsheet-friendly CSV file.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"eventreg/models"
)

// BOM makes spreadsheet tools detect UTF-8.
const BOM = "\uFEFF"

// TimestampLayout formats the registration time column.
const TimestampLayout = "2006-01-02 15:04:05"

var Header = []string{
	"ID",
	"Full Name",
	"Email",
	"College Name",
	"Department",
	"Event Name",
	"Event Date",
	"Category",
	"Registration Date",
}

// Filename names an export taken at now.
func Filename(now time.Time) string {
	return "event_registrations_" + now.Format("2006-01-02_150405") + ".csv"
}

// Row renders one registration in Header order. Times are shown in loc.
func Row(r models.RegistrationWithEvent, loc *time.Location) []string {
	if loc == nil {
		loc = time.UTC
	}
	return []string{
		r.ID,
		r.FullName,
		r.Email,
		r.CollegeName,
		r.Department,
		r.EventName,
		r.EventDate,
		r.Category,
		r.CreatedAt.In(loc).Format(TimestampLayout),
	}
}

// WriteCSV writes the BOM, the header and one line per registration.
func WriteCSV(w io.Writer, regs []models.RegistrationWithEvent, loc *time.Location) error {
	if _, err := io.WriteString(w, BOM); err != nil {
		return fmt.Errorf("write bom: %w", err)
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, r := range regs {
		if err := cw.Write(Row(r, loc)); err != nil {
			return fmt.Errorf("write row %s: %w", r.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}
