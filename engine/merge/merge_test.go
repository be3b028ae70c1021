package merge

import (
	"testing"

	"github.com/motorbase/dtckit/engine/domain"
)

func rec(code, makeID, desc string) domain.DiagnosticCode {
	return domain.DiagnosticCode{
		Code:           code,
		MakeID:         makeID,
		Description:    desc,
		Severity:       domain.SeverityMedium,
		PowertrainType: domain.PowertrainAll,
		CommonCauses:   []string{},
		Symptoms:       []string{},
	}
}

func TestMergeAddAndSort(t *testing.T) {
	existing := []domain.DiagnosticCode{rec("P0420", "honda", "Catalyst efficiency")}
	incoming := []domain.DiagnosticCode{
		rec("P0100", "honda", "MAF circuit"),
		rec("P0100", "bmw", "MAF circuit"),
	}
	out, stats := Merge(existing, incoming, Skip)
	if stats.Added != 2 || stats.Updated != 0 || stats.Rejected != 0 {
		t.Fatalf("stats = %+v", stats)
	}
	if len(out) != 3 {
		t.Fatalf("len = %d", len(out))
	}
	// Sorted by (make, code).
	if out[0].MakeID != "bmw" || out[1].Code != "P0100" || out[2].Code != "P0420" {
		t.Errorf("order = %v %v %v", out[0].Key(), out[1].Key(), out[2].Key())
	}
}

func TestMergeSkipPolicy(t *testing.T) {
	existing := []domain.DiagnosticCode{rec("P0420", "honda", "Original")}
	incoming := []domain.DiagnosticCode{rec("P0420", "honda", "Incoming replacement text")}
	out, stats := Merge(existing, incoming, Skip)
	if stats.Skipped != 1 {
		t.Fatalf("stats = %+v", stats)
	}
	if out[0].Description != "Original" {
		t.Errorf("Skip overwrote: %q", out[0].Description)
	}
}

func TestMergeReplacePolicy(t *testing.T) {
	existing := []domain.DiagnosticCode{rec("P0420", "honda", "Original")}
	in := rec("P0420", "honda", "New description")
	in.DetailedDescription = "Longer diagnostic walkthrough."
	out, stats := Merge(existing, []domain.DiagnosticCode{in}, Replace)
	if stats.Updated != 1 {
		t.Fatalf("stats = %+v", stats)
	}
	if out[0].Description != "New description" || out[0].DetailedDescription == "" {
		t.Errorf("Replace did not overlay: %+v", out[0])
	}
}

func TestMergeReplaceKeepsExistingWhenIncomingEmpty(t *testing.T) {
	ex := rec("P0420", "honda", "Original")
	ex.DetailedDescription = "Keep this"
	in := rec("P0420", "honda", "New description")
	out, _ := Merge([]domain.DiagnosticCode{ex}, []domain.DiagnosticCode{in}, Replace)
	if out[0].DetailedDescription != "Keep this" {
		t.Errorf("empty incoming field clobbered existing: %q", out[0].DetailedDescription)
	}
}

func TestMergeReplaceIfLonger(t *testing.T) {
	ex := rec("P0420", "honda", "Catalyst system efficiency below threshold bank one")
	shorter := rec("P0420", "honda", "Catalyst efficiency low")
	out, stats := Merge([]domain.DiagnosticCode{ex}, []domain.DiagnosticCode{shorter}, ReplaceIfLonger)
	if stats.Skipped != 1 {
		t.Fatalf("stats = %+v", stats)
	}
	if out[0].Description != ex.Description {
		t.Errorf("shorter text replaced longer: %q", out[0].Description)
	}

	longer := rec("P0420", "honda", "Catalyst system efficiency below threshold bank one with extended inspection and replacement guidance")
	out, stats = Merge([]domain.DiagnosticCode{ex}, []domain.DiagnosticCode{longer}, ReplaceIfLonger)
	if stats.Updated != 1 {
		t.Fatalf("stats = %+v", stats)
	}
	if out[0].Description != longer.Description {
		t.Errorf("much longer text not taken")
	}
}

func TestMergeRejectsInvalid(t *testing.T) {
	incoming := []domain.DiagnosticCode{
		rec("NOTACODE", "honda", "junk"),
		rec("P0100", "", "no owner"),
		rec("P0100", "honda", "MAF circuit"),
	}
	out, stats := Merge(nil, incoming, Skip)
	if stats.Rejected != 2 || stats.Added != 1 {
		t.Fatalf("stats = %+v", stats)
	}
	if len(out) != 1 || out[0].Code != "P0100" {
		t.Errorf("out = %+v", out)
	}
}

func TestMergeDuplicateIncomingKeepsLast(t *testing.T) {
	incoming := []domain.DiagnosticCode{
		rec("p0100", "Honda", "first"),
		rec("P0100", "honda", "second wins"),
	}
	out, stats := Merge(nil, incoming, Skip)
	if stats.Added != 1 {
		t.Fatalf("stats = %+v", stats)
	}
	if out[0].Description != "second wins" {
		t.Errorf("keep-last violated: %q", out[0].Description)
	}
}

func TestMergeDuplicateExistingCollapses(t *testing.T) {
	existing := []domain.DiagnosticCode{
		rec("P0420", "honda", "stale copy"),
		rec("P0420", "honda", "hand-edited copy"),
		rec("P0100", "honda", "MAF circuit"),
	}
	out, stats := Merge(existing, nil, Skip)
	if stats.Total() != 0 {
		t.Fatalf("stats = %+v", stats)
	}
	seen := map[domain.Key]int{}
	for _, r := range out {
		seen[r.Key()]++
	}
	for k, n := range seen {
		if n != 1 {
			t.Fatalf("key %v appears %d times", k, n)
		}
	}
	if len(out) != 2 {
		t.Fatalf("len = %d", len(out))
	}

	// An update must land on the surviving copy.
	in := rec("P0420", "honda", "updated description text")
	out, stats = Merge(existing, []domain.DiagnosticCode{in}, Replace)
	if stats.Updated != 1 {
		t.Fatalf("update stats = %+v", stats)
	}
	var got []string
	for _, r := range out {
		if r.Code == "P0420" {
			got = append(got, r.Description)
		}
	}
	if len(got) != 1 || got[0] != "updated description text" {
		t.Errorf("P0420 rows after update = %q", got)
	}
}

func TestMergeIdempotent(t *testing.T) {
	incoming := []domain.DiagnosticCode{rec("P0420", "honda", "Catalyst efficiency")}
	once, _ := Merge(nil, incoming, Replace)
	twice, stats := Merge(once, incoming, Replace)
	if stats.Added != 0 || stats.Updated != 0 || stats.Skipped != 1 {
		t.Fatalf("second pass stats = %+v", stats)
	}
	if len(twice) != 1 {
		t.Fatalf("len = %d", len(twice))
	}
}

func TestParsePolicy(t *testing.T) {
	for in, want := range map[string]Policy{"skip": Skip, "": Skip, "replace": Replace, "Replace-If-Longer": ReplaceIfLonger, "longer": ReplaceIfLonger} {
		got, ok := ParsePolicy(in)
		if !ok || got != want {
			t.Errorf("ParsePolicy(%q) = %v, %v", in, got, ok)
		}
	}
	if _, ok := ParsePolicy("upsert"); ok {
		t.Error("unknown policy accepted")
	}
}
