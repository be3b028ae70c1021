package usage

import (
	"strings"
	"sync"
	"testing"
)

func TestLedgerRecord(t *testing.T) {
	l := NewLedger()
	l.Record(Call{Op: "fill", PromptTokens: 100, CompletionTokens: 40, NativeTokens: 150, Cost: 0.002})
	l.Record(Call{Op: "fill", PromptTokens: 80, CompletionTokens: 30, NativeTokens: 120, Cost: 0.001, CostEstimated: true})
	l.Record(Call{Op: "classify", Cost: 0.0005})
	l.AddCodes("honda", 12, 0.003)

	calls, native, cost := l.Totals()
	if calls != 3 {
		t.Errorf("calls = %d", calls)
	}
	if native != 270 {
		t.Errorf("native = %d", native)
	}
	if cost < 0.0034 || cost > 0.0036 {
		t.Errorf("cost = %f", cost)
	}
	if l.CodesByMake()["honda"] != 12 {
		t.Errorf("codes by make = %v", l.CodesByMake())
	}
}

func TestLedgerRecordFailure(t *testing.T) {
	l := NewLedger()
	l.RecordFailure("fill")
	l.RecordFailure("fill")
	l.RecordFailure("classify")
	if l.FailedCalls() != 3 {
		t.Errorf("failed calls = %d", l.FailedCalls())
	}
	if l.Calls() != 0 {
		t.Errorf("failures counted as calls: %d", l.Calls())
	}

	// An op with only failures still shows up in the summary.
	var sb strings.Builder
	l.WriteSummary(&sb)
	out := sb.String()
	for _, want := range []string{"Failed calls", "classify"} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}
}

func TestLedgerConcurrent(t *testing.T) {
	l := NewLedger()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.Record(Call{Op: "fill", Cost: 0.001})
		}()
	}
	wg.Wait()
	if l.Calls() != 50 {
		t.Errorf("calls = %d", l.Calls())
	}
}

func TestWriteSummary(t *testing.T) {
	l := NewLedger()
	l.Record(Call{Op: "fill", Cost: 0.01})
	l.AddCodes("bmw", 5, 0.01)
	var sb strings.Builder
	l.WriteSummary(&sb)
	out := sb.String()
	for _, want := range []string{"Model Usage", "Calls by Operation", "fill", "Codes by Make", "bmw"} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}
}
