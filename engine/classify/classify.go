// Package classify attributes unowned trouble codes to manufacturers.
// Stage one is a deterministic keyword pass; stage two asks the model to
// attribute the leftovers in batches, and only when there are enough of
// them to justify the spend. Codes neither stage can place stay generic.
package classify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/motorbase/dtckit/engine/domain"
	"github.com/motorbase/dtckit/engine/usage"
	"github.com/motorbase/dtckit/pkg/fn"
	"github.com/motorbase/dtckit/pkg/jsonrepair"
	"github.com/motorbase/dtckit/pkg/openrouter"
)

const (
	// BatchSize caps how many codes go into one attribution prompt.
	BatchSize = 100
	// MinUnmatchedForModel is the leftover count below which the model
	// stage is skipped entirely.
	MinUnmatchedForModel = 20
)

// Completer is the model boundary.
type Completer interface {
	Complete(ctx context.Context, prompt string) (openrouter.Completion, error)
}

// Engine runs the two-stage attribution.
type Engine struct {
	llm    Completer
	ledger *usage.Ledger
	log    *slog.Logger
}

// New builds an attribution engine. llm may be nil, which disables the
// model stage.
func New(llm Completer, ledger *usage.Ledger, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	if ledger == nil {
		ledger = usage.NewLedger()
	}
	return &Engine{llm: llm, ledger: ledger, log: log.With("component", "classify")}
}

// Stats summarizes one attribution pass.
type Stats struct {
	Keyword int
	Model   int
	Generic int
	// Failed counts attribution batches whose model call failed. Their
	// codes fall through to the generic owner.
	Failed int
}

// KeywordMatch attributes one record by scanning the per-make keyword
// tables in a fixed make order. First match wins.
func KeywordMatch(rec domain.DiagnosticCode) (string, bool) {
	haystack := strings.ToLower(rec.Code + " " + rec.Description + " " + rec.DetailedDescription)
	for _, makeID := range domain.KeywordOrder {
		for _, kw := range domain.MakeKeywords[makeID] {
			if strings.Contains(haystack, kw) {
				return makeID, true
			}
		}
	}
	return "", false
}

// Classify assigns an owner to every record whose make is empty or generic
// while it carries a manufacturer-specific prefix. Records it cannot place
// are left under the generic owner. A failed model batch is counted, its
// codes fall through to generic, and the pass never aborts: keyword and
// earlier model assignments always survive.
func (e *Engine) Classify(ctx context.Context, recs []domain.DiagnosticCode) ([]domain.DiagnosticCode, Stats) {
	var stats Stats
	out := make([]domain.DiagnosticCode, len(recs))
	copy(out, recs)

	var unmatched []int
	for i, rec := range out {
		if !needsAttribution(rec) {
			continue
		}
		if makeID, ok := KeywordMatch(rec); ok {
			out[i].MakeID = makeID
			stats.Keyword++
			continue
		}
		unmatched = append(unmatched, i)
	}

	if e.llm != nil && len(unmatched) > MinUnmatchedForModel {
		assigned, failed := e.attributeWithModel(ctx, out, unmatched)
		stats.Failed = failed
		remaining := unmatched[:0]
		for _, i := range unmatched {
			if makeID, ok := assigned[strings.ToUpper(out[i].Code)]; ok {
				out[i].MakeID = makeID
				stats.Model++
				continue
			}
			remaining = append(remaining, i)
		}
		unmatched = remaining
	}

	for _, i := range unmatched {
		out[i].MakeID = domain.GenericOwner
		stats.Generic++
	}
	e.log.Info("attribution complete", "keyword", stats.Keyword,
		"model", stats.Model, "generic", stats.Generic, "failed_batches", stats.Failed)
	return out, stats
}

func needsAttribution(rec domain.DiagnosticCode) bool {
	if rec.MakeID == "" {
		return true
	}
	return rec.MakeID == domain.GenericOwner && !rec.IsGeneric()
}

// attributeWithModel prompts the model in batches and returns a
// code -> make_id map plus the failed batch count. Only makes from the
// known enumeration are accepted. A failed batch is skipped, not fatal.
func (e *Engine) attributeWithModel(ctx context.Context, recs []domain.DiagnosticCode, idxs []int) (map[string]string, int) {
	known := make(map[string]bool, len(domain.KeywordOrder))
	for _, m := range domain.KeywordOrder {
		known[m] = true
	}

	failed := 0
	assigned := make(map[string]string)
	for _, batch := range fn.Chunk(idxs, BatchSize) {
		if ctx.Err() != nil {
			break
		}
		var sb strings.Builder
		sb.WriteString("You attribute OBD-II trouble codes to vehicle manufacturers.\n")
		sb.WriteString("Known manufacturers: " + strings.Join(domain.KeywordOrder, ", ") + ".\n")
		sb.WriteString("For each code below, answer with a JSON object mapping the code to one manufacturer id, ")
		sb.WriteString("or to \"generic\" if you are not confident. Do not guess.\n\nCodes:\n")
		for _, i := range batch {
			fmt.Fprintf(&sb, "%s: %s\n", recs[i].Code, recs[i].Description)
		}

		comp, err := e.llm.Complete(ctx, sb.String())
		if err != nil {
			failed++
			e.ledger.RecordFailure("classify")
			e.log.Warn("attribution batch failed", "codes", len(batch), "err", err)
			continue
		}
		e.ledger.Record(usage.Call{
			Op:               "classify",
			Model:            comp.Usage.Model,
			PromptTokens:     comp.Usage.PromptTokens,
			CompletionTokens: comp.Usage.CompletionTokens,
			NativeTokens:     comp.Usage.NativeTokens,
			Cost:             comp.Usage.Cost,
			CostEstimated:    comp.Usage.CostEstimated,
		})

		obj := jsonrepair.RecoverObject(comp.Text)
		for code, v := range obj {
			makeID, ok := v.(string)
			if !ok {
				continue
			}
			makeID = strings.ToLower(strings.TrimSpace(makeID))
			if known[makeID] {
				assigned[strings.ToUpper(strings.TrimSpace(code))] = makeID
			}
		}
	}
	return assigned, failed
}
