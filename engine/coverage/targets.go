package coverage

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/motorbase/dtckit/engine/usage"
	"github.com/motorbase/dtckit/pkg/jsonrepair"
	"github.com/motorbase/dtckit/pkg/openrouter"
)

const (
	// FallbackTarget is used when the planner cannot produce a number
	// for a make.
	FallbackTarget = 30
	// MaxSmartTarget caps what the planner may ask for per make.
	MaxSmartTarget = 60
)

// Completer is the model boundary.
type Completer interface {
	Complete(ctx context.Context, prompt string) (openrouter.Completion, error)
}

// TargetPlanner asks the model how many additional codes each
// under-covered make realistically has documented.
type TargetPlanner struct {
	llm    Completer
	ledger *usage.Ledger
	log    *slog.Logger
}

// NewTargetPlanner builds a planner.
func NewTargetPlanner(llm Completer, ledger *usage.Ledger, log *slog.Logger) *TargetPlanner {
	if log == nil {
		log = slog.Default()
	}
	if ledger == nil {
		ledger = usage.NewLedger()
	}
	return &TargetPlanner{llm: llm, ledger: ledger, log: log.With("component", "coverage")}
}

// SmartTargets returns a per-make generation target for every make with a
// gap. Values outside [0, MaxSmartTarget] are clamped; a make the model
// fails to answer for gets FallbackTarget. The planner never fails the
// run: a dead model boundary degrades to FallbackTarget across the board.
func (p *TargetPlanner) SmartTargets(ctx context.Context, report Report) map[string]int {
	gaps := report.Gaps()
	targets := make(map[string]int, len(gaps))
	for _, mr := range gaps {
		targets[mr.MakeID] = FallbackTarget
	}
	if p.llm == nil || len(gaps) == 0 {
		return targets
	}

	makes := make([]string, 0, len(gaps))
	var sb strings.Builder
	sb.WriteString("You plan OBD-II dataset curation. For each manufacturer below, estimate how many ")
	sb.WriteString("additional manufacturer-specific trouble codes are realistically documented and worth adding.\n")
	sb.WriteString("Answer with a single JSON object mapping manufacturer id to an integer.\n\n")
	for _, mr := range gaps {
		makes = append(makes, mr.MakeID)
		fmt.Fprintf(&sb, "%s: has %d codes, tier target %d, missing categories [%s]\n",
			mr.MakeID, mr.Count, mr.Target, strings.Join(mr.MissingCategories, " "))
	}

	comp, err := p.llm.Complete(ctx, sb.String())
	if err != nil {
		p.ledger.RecordFailure("plan")
		p.log.Warn("smart target planning failed, using fallback", "err", err)
		return targets
	}
	p.ledger.Record(usage.Call{
		Op:               "plan",
		Model:            comp.Usage.Model,
		PromptTokens:     comp.Usage.PromptTokens,
		CompletionTokens: comp.Usage.CompletionTokens,
		NativeTokens:     comp.Usage.NativeTokens,
		Cost:             comp.Usage.Cost,
		CostEstimated:    comp.Usage.CostEstimated,
	})

	obj := jsonrepair.RecoverObject(comp.Text)
	sort.Strings(makes)
	for _, makeID := range makes {
		v, ok := obj[makeID]
		if !ok {
			continue
		}
		n, ok := asInt(v)
		if !ok {
			continue
		}
		if n < 0 {
			n = 0
		}
		if n > MaxSmartTarget {
			n = MaxSmartTarget
		}
		targets[makeID] = n
	}
	return targets
}

func asInt(v any) (int, bool) {
	switch t := v.(type) {
	case float64:
		return int(t), true
	case int:
		return t, true
	case string:
		var n int
		if _, err := fmt.Sscanf(strings.TrimSpace(t), "%d", &n); err == nil {
			return n, true
		}
	}
	return 0, false
}
