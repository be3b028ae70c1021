package jsonrepair

import "testing"

func TestRecover_ValidArray(t *testing.T) {
	recs := Recover(`[{"code":"P0420","description":"Catalyst"},{"code":"P0171","description":"Lean"}]`)
	if len(recs) != 2 {
		t.Fatalf("got %d records", len(recs))
	}
	if recs[0]["code"] != "P0420" || recs[1]["code"] != "P0171" {
		t.Errorf("unexpected records: %v", recs)
	}
}

func TestRecover_MarkdownFence(t *testing.T) {
	text := "Here you go:\n```json\n[{\"code\":\"P0300\",\"description\":\"Misfire\"}]\n```\nLet me know!"
	recs := Recover(text)
	if len(recs) != 1 || recs[0]["code"] != "P0300" {
		t.Fatalf("fence strip failed: %v", recs)
	}
}

func TestRecover_BareFence(t *testing.T) {
	text := "```\n[{\"code\":\"U0100\",\"description\":\"Lost comm\"}]\n```"
	recs := Recover(text)
	if len(recs) != 1 {
		t.Fatalf("got %v", recs)
	}
}

func TestRecover_TruncatedMidObject(t *testing.T) {
	text := `[{"code":"P1234","description":"foo"},{"code":"P1235","desc`
	recs := Recover(text)
	if len(recs) != 1 {
		t.Fatalf("expected exactly 1 recovered record, got %d", len(recs))
	}
	if recs[0]["code"] != "P1234" {
		t.Errorf("recovered wrong record: %v", recs[0])
	}
}

func TestRecover_TruncatedWithTrailingComma(t *testing.T) {
	text := `[{"code":"P1234","description":"foo"},`
	recs := Recover(text)
	if len(recs) != 1 || recs[0]["code"] != "P1234" {
		t.Fatalf("got %v", recs)
	}
}

func TestRecover_BracketsInsideStrings(t *testing.T) {
	text := `[{"code":"P0001","description":"Open circuit [bank 1] {sensor}"},{"code":"P0002","descr`
	recs := Recover(text)
	if len(recs) != 1 || recs[0]["code"] != "P0001" {
		t.Fatalf("quote-aware scan failed: %v", recs)
	}
}

func TestRecover_EscapedQuoteInString(t *testing.T) {
	text := `[{"code":"P0003","description":"so-called \"smart\" relay"},{"code":"P0004","de`
	recs := Recover(text)
	if len(recs) != 1 {
		t.Fatalf("escape handling failed: %v", recs)
	}
}

func TestRecover_ObjectExtraction(t *testing.T) {
	// Broken array syntax between objects: whole-span and repair both fail,
	// object extraction should rescue the valid ones.
	text := `garbage {"code":"P0010","description":"VVT"} ;;; {"code":"P0011","description":"Cam"} {"nope":1} trailing`
	recs := Recover(text)
	if len(recs) != 2 {
		t.Fatalf("expected 2, got %d: %v", len(recs), recs)
	}
	for _, r := range recs {
		if _, ok := r["description"]; !ok {
			t.Errorf("missing required field: %v", r)
		}
	}
}

func TestRecover_ObjectExtractionRequiresIdentityFields(t *testing.T) {
	text := `x {"code":"P0500"} y {"description":"only desc"} z`
	recs := Recover(text)
	if len(recs) != 0 {
		t.Fatalf("objects without both identity fields must be dropped: %v", recs)
	}
}

func TestRecover_LineOriented(t *testing.T) {
	text := "{\"code\":\"P0100\",\"description\":\"MAF\",},\n{\"code\":\"P0101\",\"description\":\"MAF range\",},\n"
	recs := Recover(text)
	if len(recs) != 2 {
		t.Fatalf("line recovery got %d: %v", len(recs), recs)
	}
}

func TestRecover_NothingRecoverable(t *testing.T) {
	for _, text := range []string{"", "I cannot help with that.", "[", "{{{", "null"} {
		if recs := Recover(text); len(recs) != 0 {
			t.Errorf("Recover(%q) = %v, want empty", text, recs)
		}
	}
}

func TestRecover_NoDefaultsInserted(t *testing.T) {
	recs := Recover(`[{"code":"P0420","description":"Catalyst"}]`)
	if len(recs) != 1 {
		t.Fatal("parse failed")
	}
	if _, ok := recs[0]["severity"]; ok {
		t.Error("recovery must not insert defaults")
	}
}

func TestRecoverObject(t *testing.T) {
	obj := RecoverObject("```json\n{\"toyota\": 25, \"bmw\": 40}\n```")
	if obj == nil || obj["toyota"] != float64(25) {
		t.Fatalf("got %v", obj)
	}
	if RecoverObject("no json here") != nil {
		t.Error("expected nil for unrecoverable object")
	}
}

func TestRecoverObject_TrailingComma(t *testing.T) {
	obj := RecoverObject(`{"honda": 10,}`)
	if obj == nil || obj["honda"] != float64(10) {
		t.Fatalf("got %v", obj)
	}
}
