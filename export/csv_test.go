package export

import (
	"bytes"
	"encoding/csv"
	"strings"
	"testing"
	"time"

	"eventreg/models"
)

func sample(n int) []models.RegistrationWithEvent {
	out := make([]models.RegistrationWithEvent, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, models.RegistrationWithEvent{
			Registration: models.Registration{
				ID:          "r" + string(rune('a'+i)),
				FullName:    "Jane Doe",
				Email:       "jane@example.com",
				CollegeName: "Arts, Science & Commerce",
				Department:  "Physics",
				EventID:     "e1",
				CreatedAt:   time.Date(2026, 3, 5, 9, 7, 3, 0, time.UTC),
			},
			EventName: "Go Hackathon",
			EventDate: "2026-04-01",
			Category:  "Hackathon",
		})
	}
	return out
}

func TestWriteCSV_Shape(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, sample(3), time.UTC); err != nil {
		t.Fatalf("write: %v", err)
	}
	out := buf.String()
	if !strings.HasPrefix(out, BOM) {
		t.Fatalf("missing BOM")
	}

	recs, err := csv.NewReader(strings.NewReader(strings.TrimPrefix(out, BOM))).ReadAll()
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if len(recs) != 4 {
		t.Fatalf("want 4 lines, got %d", len(recs))
	}
	if strings.Join(recs[0], "|") != strings.Join(Header, "|") {
		t.Fatalf("header = %v", recs[0])
	}
	row := recs[1]
	if len(row) != 9 {
		t.Fatalf("want 9 fields, got %d", len(row))
	}
	want := []string{"ra", "Jane Doe", "jane@example.com", "Arts, Science & Commerce", "Physics", "Go Hackathon", "2026-04-01", "Hackathon", "2026-03-05 09:07:03"}
	for i := range want {
		if row[i] != want[i] {
			t.Errorf("field %d = %q, want %q", i, row[i], want[i])
		}
	}
}

func TestWriteCSV_Empty(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, nil, nil); err != nil {
		t.Fatalf("write: %v", err)
	}
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 1 {
		t.Fatalf("want header only, got %d lines", len(lines))
	}
}

func TestRow_UsesLocation(t *testing.T) {
	loc := time.FixedZone("IST", 5*3600+1800)
	r := sample(1)[0]
	if got := Row(r, loc)[8]; got != "2026-03-05 14:37:03" {
		t.Fatalf("got %q", got)
	}
}

func TestFilename(t *testing.T) {
	now := time.Date(2026, 10, 17, 8, 4, 59, 0, time.UTC)
	if got := Filename(now); got != "event_registrations_2026-10-17_080459.csv" {
		t.Fatalf("got %q", got)
	}
}
