package users

import (
	"bufio"
	"io"
	"strings"
	"time"
)

// exportTimeLayout matches the millisecond ISO-8601 form used by the UI.
const exportTimeLayout = "2006-01-02T15:04:05.000Z07:00"

var exportHeader = []string{"ID", "First Name", "Last Name", "Email", "Role", "Status", "Phone", "City", "Company", "Created At"}

// WriteCSV writes a header row followed by one fully quoted row per record.
// Embedded double quotes are doubled. Rows are separated by a single newline.
func WriteCSV(w io.Writer, records []User) error {
	buf := bufio.NewWriter(w)
	if _, err := buf.WriteString(strings.Join(exportHeader, ",")); err != nil {
		return err
	}
	for _, u := range records {
		row := []string{
			u.ID,
			u.FirstName,
			u.LastName,
			u.Email,
			string(u.Role),
			string(u.Status),
			u.Phone,
			u.City,
			u.Company,
			formatInstant(u.CreatedAt),
		}
		if err := buf.WriteByte('\n'); err != nil {
			return err
		}
		for i, cell := range row {
			if i > 0 {
				if err := buf.WriteByte(','); err != nil {
					return err
				}
			}
			if _, err := buf.WriteString(quoteCell(cell)); err != nil {
				return err
			}
		}
	}
	return buf.Flush()
}

// ExportFilename derives the download name from the export date.
func ExportFilename(at time.Time) string {
	return "users_export_" + at.UTC().Format("2006-01-02") + ".csv"
}

func quoteCell(v string) string {
	return `"` + strings.ReplaceAll(v, `"`, `""`) + `"`
}

func formatInstant(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(exportTimeLayout)
}

// selectForExport keeps cache order. A nil ids slice selects everything.
func selectForExport(records []User, ids []string) []User {
	if ids == nil {
		return records
	}
	wanted := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		wanted[id] = struct{}{}
	}
	out := make([]User, 0, len(ids))
	for _, u := range records {
		if _, ok := wanted[u.ID]; ok {
			out = append(out, u)
		}
	}
	return out
}
