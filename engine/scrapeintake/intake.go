// Package scrapeintake turns raw scraped material into candidate records
// ready for attribution and merging. Scraped data is untrusted: everything
// here is conservative about what it keeps.
package scrapeintake

import (
	"encoding/csv"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/motorbase/dtckit/engine/domain"
	"github.com/motorbase/dtckit/engine/normalize"
)

// Row is one scraped code observation.
type Row struct {
	Code         string
	Description  string
	SourceURL    string
	Manufacturer string
}

// ReadCSV parses scraped rows in code,description,source_url,manufacturer
// order. A header row is detected and skipped. Rows without a plausible
// code are dropped.
func ReadCSV(r io.Reader) ([]Row, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	var out []Row
	first := true
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read scraped csv: %w", err)
		}
		if first {
			first = false
			if strings.EqualFold(strings.TrimSpace(rec[0]), "code") {
				continue
			}
		}
		if len(rec) < 2 {
			continue
		}
		row := Row{
			Code:        strings.ToUpper(strings.TrimSpace(rec[0])),
			Description: strings.TrimSpace(rec[1]),
		}
		if len(rec) > 2 {
			row.SourceURL = strings.TrimSpace(rec[2])
		}
		if len(rec) > 3 {
			row.Manufacturer = strings.ToLower(strings.TrimSpace(rec[3]))
		}
		if !domain.ValidCode(row.Code) || row.Description == "" {
			continue
		}
		out = append(out, row)
	}
	return out, nil
}

// Prepare converts scraped rows into candidate records. The manufacturer
// column becomes the owner when present; otherwise the record is left
// unowned for the classifier. System, severity, and powertrain are
// inferred from the description.
func Prepare(rows []Row) []domain.DiagnosticCode {
	out := make([]domain.DiagnosticCode, 0, len(rows))
	for _, row := range rows {
		rec := domain.DiagnosticCode{
			Code:           row.Code,
			MakeID:         row.Manufacturer,
			Description:    cleanDescription(row.Description),
			System:         normalize.DetectSystem(row.Code),
			Severity:       normalize.DetectSeverity(row.Description),
			PowertrainType: normalize.DetectPowertrain(row.Description),
		}
		out = append(out, normalize.Record(rec))
	}
	return out
}

var (
	codeLineRe = regexp.MustCompile(`\b([PBCU][0-3][0-9A-F]{3}[A-Z]?)\b[\s:.\-]*([^\n\r]*)`)
	spaceRe    = regexp.MustCompile(`\s+`)
)

// maxDescription clamps extracted description length.
const maxDescription = 300

// ExtractFromText scans free text (a scraped page body) for code lines and
// returns one row per distinct code, first occurrence winning.
func ExtractFromText(text, sourceURL string) []Row {
	seen := make(map[string]bool)
	var out []Row
	for _, m := range codeLineRe.FindAllStringSubmatch(text, -1) {
		code := strings.ToUpper(m[1])
		if seen[code] || !domain.ValidCode(code) {
			continue
		}
		desc := cleanDescription(m[2])
		if desc == "" {
			continue
		}
		seen[code] = true
		out = append(out, Row{Code: code, Description: desc, SourceURL: sourceURL})
	}
	return out
}

// cleanDescription collapses whitespace, strips leading separators, and
// clamps length.
func cleanDescription(s string) string {
	s = spaceRe.ReplaceAllString(strings.TrimSpace(s), " ")
	s = strings.TrimLeft(s, ":-–. ")
	if len(s) > maxDescription {
		s = strings.TrimSpace(s[:maxDescription])
	}
	return s
}
