// Package coverage measures how complete the dataset is per manufacturer
// and turns the deficits into generation plans.
package coverage

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/motorbase/dtckit/engine/domain"
	"github.com/motorbase/dtckit/engine/reference"
	"github.com/motorbase/dtckit/pkg/fn"
)

// MakeReport is the coverage picture for one owner.
type MakeReport struct {
	MakeID             string
	Count              int
	Tier               string
	Target             int
	Deficit            int
	MissingCategories  []string
	MissingPowertrains []string
}

// Report is the dataset-wide coverage picture.
type Report struct {
	Total            int
	GenericCount     int
	Makes            []MakeReport
	ReferenceOverlap int
	ReferenceTotal   int
}

// Analyze computes coverage for every owner present in the dataset. The
// generic owner is reported separately and measured against the reference
// catalog instead of tier targets. cat may be nil.
func Analyze(recs []domain.DiagnosticCode, cat *reference.Catalog) Report {
	genericCodes := make(map[string]bool)
	specific := fn.Filter(recs, func(rec domain.DiagnosticCode) bool {
		if strings.ToLower(rec.MakeID) == domain.GenericOwner {
			genericCodes[strings.ToUpper(rec.Code)] = true
			return false
		}
		return true
	})
	byMake := fn.GroupBy(specific, func(rec domain.DiagnosticCode) string {
		return strings.ToLower(rec.MakeID)
	})

	report := Report{Total: len(recs), GenericCount: len(genericCodes)}
	if cat != nil {
		report.ReferenceOverlap = cat.Overlap(genericCodes)
		report.ReferenceTotal = cat.Len()
	}

	for makeID, owned := range byMake {
		tier := domain.Tier(makeID)
		target := domain.TierTargets[tier]
		mr := MakeReport{
			MakeID: makeID,
			Count:  len(owned),
			Tier:   tier,
			Target: target,
		}
		if mr.Count < target {
			mr.Deficit = target - mr.Count
		}
		mr.MissingCategories = missingCategories(owned)
		mr.MissingPowertrains = missingPowertrains(makeID, owned)
		report.Makes = append(report.Makes, mr)
	}

	// Largest deficits first, name as tiebreak, so generation plans read
	// top to bottom.
	sort.Slice(report.Makes, func(i, j int) bool {
		a, b := report.Makes[i], report.Makes[j]
		if a.Deficit != b.Deficit {
			return a.Deficit > b.Deficit
		}
		return a.MakeID < b.MakeID
	})
	return report
}

func missingCategories(owned []domain.DiagnosticCode) []string {
	present := make(map[string]bool)
	for _, rec := range owned {
		present[rec.Prefix()] = true
	}
	var missing []string
	for _, prefix := range domain.RequiredCategories {
		if !present[prefix] {
			missing = append(missing, prefix)
		}
	}
	return missing
}

func missingPowertrains(makeID string, owned []domain.DiagnosticCode) []string {
	present := make(map[string]bool)
	for _, rec := range owned {
		present[rec.PowertrainType] = true
	}
	var missing []string
	for _, pt := range domain.ExpectedPowertrains(makeID) {
		if pt == domain.PowertrainAll {
			continue
		}
		if !present[pt] {
			missing = append(missing, pt)
		}
	}
	return missing
}

// Gaps returns the makes that still need codes, keeping report order.
func (r Report) Gaps() []MakeReport {
	return fn.Filter(r.Makes, func(mr MakeReport) bool {
		return mr.Deficit > 0 || len(mr.MissingCategories) > 0 || len(mr.MissingPowertrains) > 0
	})
}

// Write renders the report to w.
func (r Report) Write(w io.Writer) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle("Coverage by Make")
	t.AppendHeader(table.Row{"Make", "Codes", "Tier", "Target", "Deficit", "Missing Categories", "Missing Powertrains"})
	for _, mr := range r.Makes {
		t.AppendRow(table.Row{
			mr.MakeID, mr.Count, mr.Tier, mr.Target, mr.Deficit,
			strings.Join(mr.MissingCategories, " "),
			strings.Join(mr.MissingPowertrains, ", "),
		})
	}
	t.AppendFooter(table.Row{"total", r.Total, "", "", "", "", ""})
	t.Render()

	if r.ReferenceTotal > 0 {
		pct := 100 * float64(r.ReferenceOverlap) / float64(r.ReferenceTotal)
		fmt.Fprintf(w, "Generic codes: %d (reference coverage %d/%d, %.1f%%)\n",
			r.GenericCount, r.ReferenceOverlap, r.ReferenceTotal, pct)
	} else {
		fmt.Fprintf(w, "Generic codes: %d\n", r.GenericCount)
	}
}
