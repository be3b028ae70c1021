package scrapeintake

import (
	"strings"
	"testing"

	"github.com/motorbase/dtckit/engine/domain"
)

func TestReadCSV(t *testing.T) {
	in := strings.NewReader(`code,description,source_url,manufacturer
P0420,"Catalyst System Efficiency Below Threshold",https://example.com/p0420,Honda
u0100,"Lost Communication With ECM",https://example.com/u0100,
garbage,"not a code",,
P0300,"Random Misfire Detected"
`)
	rows, err := ReadCSV(in)
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows = %d: %+v", len(rows), rows)
	}
	if rows[0].Manufacturer != "honda" {
		t.Errorf("manufacturer = %q", rows[0].Manufacturer)
	}
	if rows[1].Code != "U0100" || rows[1].Manufacturer != "" {
		t.Errorf("row = %+v", rows[1])
	}
	if rows[2].SourceURL != "" {
		t.Errorf("short row url = %q", rows[2].SourceURL)
	}
}

func TestPrepare(t *testing.T) {
	recs := Prepare([]Row{
		{Code: "P0217", Description: "Engine overheat condition", Manufacturer: "bmw"},
		{Code: "P1456", Description: "EVAP leak detected, fuel cap area"},
	})
	if len(recs) != 2 {
		t.Fatalf("recs = %d", len(recs))
	}
	if recs[0].MakeID != "bmw" || recs[0].Severity != domain.SeverityCritical || recs[0].System != "Powertrain" {
		t.Errorf("rec = %+v", recs[0])
	}
	if recs[1].MakeID != "" {
		t.Errorf("unowned row given make %q", recs[1].MakeID)
	}
	if recs[1].PowertrainType != domain.PowertrainAll {
		t.Errorf("powertrain = %q", recs[1].PowertrainType)
	}
}

func TestExtractFromText(t *testing.T) {
	text := `Common Honda trouble codes:

P1456 - EVAP emission control system leak (fuel tank system)
P1457: EVAP emission control system leak (canister system)
P1456 - duplicate mention that must not produce a second row
Contact us at support@example.com
`
	rows := ExtractFromText(text, "https://example.com/honda")
	if len(rows) != 2 {
		t.Fatalf("rows = %d: %+v", len(rows), rows)
	}
	if rows[0].Code != "P1456" || !strings.HasPrefix(rows[0].Description, "EVAP emission control system leak") {
		t.Errorf("row = %+v", rows[0])
	}
	if rows[0].SourceURL != "https://example.com/honda" {
		t.Errorf("url = %q", rows[0].SourceURL)
	}
	if rows[1].Code != "P1457" {
		t.Errorf("second row = %+v", rows[1])
	}
}

func TestExtractClampsLongDescriptions(t *testing.T) {
	long := "P0300 " + strings.Repeat("very long explanation ", 40)
	rows := ExtractFromText(long, "")
	if len(rows) != 1 {
		t.Fatalf("rows = %d", len(rows))
	}
	if len(rows[0].Description) > 300 {
		t.Errorf("description not clamped: %d chars", len(rows[0].Description))
	}
}
