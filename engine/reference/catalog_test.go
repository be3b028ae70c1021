package reference

import (
	"strings"
	"testing"
)

func TestLoadCSV(t *testing.T) {
	in := strings.NewReader(`"P0100","Mass or Volume Air Flow Circuit Malfunction"
"P0420","Catalyst System Efficiency Below Threshold (Bank 1)"
"not-a-code","junk row"
"U0100","Lost Communication With ECM/PCM"
`)
	cat, err := LoadCSV(in)
	if err != nil {
		t.Fatalf("LoadCSV: %v", err)
	}
	if cat.Len() != 3 {
		t.Fatalf("Len = %d, want 3", cat.Len())
	}
	desc, ok := cat.Lookup("p0420")
	if !ok || !strings.Contains(desc, "Catalyst") {
		t.Errorf("Lookup(p0420) = %q, %v", desc, ok)
	}
	if _, ok := cat.Lookup("P9999"); ok {
		t.Error("Lookup(P9999) should miss")
	}
}

func TestLoadJSON_ArrayAndMap(t *testing.T) {
	arr := `[{"code":"p0100","description":"MAF Circuit"},{"code":"B1000","description":"ECU Fault"}]`
	cat, err := LoadJSON(strings.NewReader(arr))
	if err != nil {
		t.Fatalf("LoadJSON array: %v", err)
	}
	if cat.Len() != 2 {
		t.Fatalf("array Len = %d, want 2", cat.Len())
	}
	if _, ok := cat.Lookup("P0100"); !ok {
		t.Error("array form did not normalize code case")
	}

	m := `{"P0100":"MAF Circuit","C0035":"Left Front Wheel Speed Circuit"}`
	cat, err = LoadJSON(strings.NewReader(m))
	if err != nil {
		t.Fatalf("LoadJSON map: %v", err)
	}
	if cat.Len() != 2 {
		t.Fatalf("map Len = %d, want 2", cat.Len())
	}
}

func TestWithPrefixesAndCounts(t *testing.T) {
	cat := New([]Entry{
		{Code: "P0100", Description: "a"},
		{Code: "P0420", Description: "b"},
		{Code: "P1234", Description: "c"},
		{Code: "B1000", Description: "d"},
		{Code: "U0100", Description: "e"},
	})

	generic := cat.WithPrefixes([]string{"P0", "U0"})
	if len(generic) != 3 {
		t.Fatalf("WithPrefixes = %d entries, want 3", len(generic))
	}
	if generic[0].Code != "P0100" || generic[2].Code != "U0100" {
		t.Errorf("entries not sorted by code: %+v", generic)
	}

	counts := cat.CountByPrefix()
	if counts["P0"] != 2 || counts["P1"] != 1 || counts["B1"] != 1 {
		t.Errorf("CountByPrefix = %v", counts)
	}
}

func TestOverlap(t *testing.T) {
	cat := New([]Entry{{Code: "P0100", Description: "a"}, {Code: "P0420", Description: "b"}})
	got := cat.Overlap(map[string]bool{"p0100": true, "P9999": true})
	if got != 1 {
		t.Errorf("Overlap = %d, want 1", got)
	}
}
