package coverage

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/motorbase/dtckit/engine/domain"
	"github.com/motorbase/dtckit/engine/reference"
	"github.com/motorbase/dtckit/engine/usage"
	"github.com/motorbase/dtckit/pkg/openrouter"
)

func rec(code, makeID, powertrain string) domain.DiagnosticCode {
	return domain.DiagnosticCode{Code: code, MakeID: makeID, Description: "d", PowertrainType: powertrain}
}

func TestAnalyze(t *testing.T) {
	recs := []domain.DiagnosticCode{
		rec("P0100", "generic", "All"),
		rec("P0420", "generic", "All"),
		rec("P0100", "bmw", domain.PowertrainPetrol),
		rec("P1525", "bmw", domain.PowertrainDiesel),
		rec("P1601", "honda", domain.PowertrainPetrol),
	}
	cat := reference.New([]reference.Entry{
		{Code: "P0100", Description: "MAF"},
		{Code: "P0420", Description: "Catalyst"},
		{Code: "U0100", Description: "Lost comms"},
	})
	report := Analyze(recs, cat)

	if report.Total != 5 || report.GenericCount != 2 {
		t.Fatalf("totals = %d/%d", report.Total, report.GenericCount)
	}
	if report.ReferenceOverlap != 2 || report.ReferenceTotal != 3 {
		t.Errorf("reference = %d/%d", report.ReferenceOverlap, report.ReferenceTotal)
	}
	if len(report.Makes) != 2 {
		t.Fatalf("makes = %d", len(report.Makes))
	}

	// bmw is premium (target 80, deficit 78), honda standard (target 60,
	// deficit 59). bmw sorts first on deficit.
	bmw := report.Makes[0]
	if bmw.MakeID != "bmw" || bmw.Tier != domain.TierPremium || bmw.Deficit != 78 {
		t.Errorf("bmw report = %+v", bmw)
	}
	// bmw has P0 and P1, so B1 C1 U0 are missing.
	if strings.Join(bmw.MissingCategories, " ") != "B1 C1 U0" {
		t.Errorf("bmw missing categories = %v", bmw.MissingCategories)
	}
	// bmw lineup includes Electric and both hybrids; Petrol and Diesel
	// are covered.
	for _, pt := range bmw.MissingPowertrains {
		if pt == domain.PowertrainPetrol || pt == domain.PowertrainDiesel || pt == domain.PowertrainAll {
			t.Errorf("powertrain %q wrongly reported missing", pt)
		}
	}
	if len(bmw.MissingPowertrains) != 3 {
		t.Errorf("bmw missing powertrains = %v", bmw.MissingPowertrains)
	}
}

func TestAnalyzeNilCatalog(t *testing.T) {
	report := Analyze([]domain.DiagnosticCode{rec("P0100", "generic", "All")}, nil)
	if report.ReferenceTotal != 0 || report.GenericCount != 1 {
		t.Errorf("report = %+v", report)
	}
}

func TestReportWrite(t *testing.T) {
	report := Analyze([]domain.DiagnosticCode{
		rec("P0100", "generic", "All"),
		rec("P1601", "honda", domain.PowertrainPetrol),
	}, reference.New([]reference.Entry{{Code: "P0100", Description: "MAF"}}))
	var sb strings.Builder
	report.Write(&sb)
	out := sb.String()
	for _, want := range []string{"Coverage by Make", "honda", "100.0%"} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q:\n%s", want, out)
		}
	}
}

type fakePlannerLLM struct {
	text string
	err  error
}

func (f *fakePlannerLLM) Complete(context.Context, string) (openrouter.Completion, error) {
	if f.err != nil {
		return openrouter.Completion{}, f.err
	}
	return openrouter.Completion{Text: f.text, Usage: openrouter.Usage{Cost: 0.001}}, nil
}

func gapReport() Report {
	return Report{Makes: []MakeReport{
		{MakeID: "bmw", Count: 2, Target: 80, Deficit: 78},
		{MakeID: "honda", Count: 1, Target: 60, Deficit: 59},
		{MakeID: "kia", Count: 1, Target: 60, Deficit: 59},
	}}
}

func TestSmartTargets(t *testing.T) {
	llm := &fakePlannerLLM{text: `{"bmw": 45, "honda": 120, "kia": -3}`}
	p := NewTargetPlanner(llm, usage.NewLedger(), nil)
	targets := p.SmartTargets(context.Background(), gapReport())
	if targets["bmw"] != 45 {
		t.Errorf("bmw = %d", targets["bmw"])
	}
	if targets["honda"] != MaxSmartTarget {
		t.Errorf("honda not clamped: %d", targets["honda"])
	}
	if targets["kia"] != 0 {
		t.Errorf("kia not clamped: %d", targets["kia"])
	}
}

func TestSmartTargetsFallback(t *testing.T) {
	p := NewTargetPlanner(&fakePlannerLLM{err: errors.New("down")}, usage.NewLedger(), nil)
	targets := p.SmartTargets(context.Background(), gapReport())
	for makeID, n := range targets {
		if n != FallbackTarget {
			t.Errorf("%s = %d, want fallback", makeID, n)
		}
	}

	// Missing makes in the answer keep the fallback too.
	p = NewTargetPlanner(&fakePlannerLLM{text: `{"bmw": 10}`}, usage.NewLedger(), nil)
	targets = p.SmartTargets(context.Background(), gapReport())
	if targets["bmw"] != 10 || targets["honda"] != FallbackTarget {
		t.Errorf("targets = %v", targets)
	}
}

func TestSmartTargetsNilModel(t *testing.T) {
	p := NewTargetPlanner(nil, usage.NewLedger(), nil)
	targets := p.SmartTargets(context.Background(), gapReport())
	if len(targets) != 3 || targets["kia"] != FallbackTarget {
		t.Errorf("targets = %v", targets)
	}
}
