// Package generate orchestrates dataset growth: model-backed gap filling
// and enrichment, plus the deterministic import paths. Progress is
// persisted after every accepted batch so an interrupted run keeps what it
// paid for.
package generate

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/motorbase/dtckit/engine/dataset"
	"github.com/motorbase/dtckit/engine/domain"
	"github.com/motorbase/dtckit/engine/merge"
	"github.com/motorbase/dtckit/engine/normalize"
	"github.com/motorbase/dtckit/engine/usage"
	"github.com/motorbase/dtckit/pkg/jsonrepair"
	"github.com/motorbase/dtckit/pkg/openrouter"
)

const (
	// BatchSize caps how many codes one generation prompt asks for.
	BatchSize = 25
	// EnrichBatchSize caps how many records one enrichment prompt carries.
	EnrichBatchSize = 10
	// MinDetailLength is the detailed description length below which a
	// record counts as needing enrichment.
	MinDetailLength = 50
	// maxConsecutiveFailures stops work on one make after this many
	// failed calls in a row.
	maxConsecutiveFailures = 2
)

// Completer is the model boundary.
type Completer interface {
	Complete(ctx context.Context, prompt string) (openrouter.Completion, error)
}

// Deps wires the engine's collaborators.
type Deps struct {
	LLM    Completer
	Store  *dataset.Store
	Ledger *usage.Ledger
	Log    *slog.Logger

	// CallTimeout bounds one model call. A timed-out call is a soft
	// failure: the batch is abandoned, the run continues.
	CallTimeout time.Duration
}

// Engine grows the dataset.
type Engine struct {
	llm         Completer
	store       *dataset.Store
	ledger      *usage.Ledger
	log         *slog.Logger
	callTimeout time.Duration
}

// New builds an engine. LLM may be nil for import-only use.
func New(d Deps) *Engine {
	log := d.Log
	if log == nil {
		log = slog.Default()
	}
	ledger := d.Ledger
	if ledger == nil {
		ledger = usage.NewLedger()
	}
	timeout := d.CallTimeout
	if timeout <= 0 {
		timeout = 3 * time.Minute
	}
	return &Engine{
		llm:         d.LLM,
		store:       d.Store,
		ledger:      ledger,
		log:         log.With("component", "generate"),
		callTimeout: timeout,
	}
}

// Focus narrows a generation run to a code range or powertrain.
type Focus struct {
	CodeRange  string
	Powertrain string
}

// FillMake asks the model for up to want new codes for makeID, in batches,
// merging and persisting after each one. Codes already present for the
// make are excluded from requests and discarded from answers. Returns how
// many codes were added.
func (e *Engine) FillMake(ctx context.Context, makeID string, want int, focus Focus) (int, error) {
	if e.llm == nil {
		return 0, fmt.Errorf("fill: model client not configured")
	}
	makeID = strings.ToLower(strings.TrimSpace(makeID))
	recs, err := e.store.Load(ctx)
	if err != nil {
		return 0, err
	}
	existing := make(map[string]bool)
	for _, rec := range recs {
		if strings.ToLower(rec.MakeID) == makeID {
			existing[strings.ToUpper(rec.Code)] = true
		}
	}

	added := 0
	failures := 0
	for added < want {
		if err := ctx.Err(); err != nil {
			return added, err
		}
		ask := want - added
		if ask > BatchSize {
			ask = BatchSize
		}

		comp, err := e.complete(ctx, "fill", fillPrompt(makeID, ask, existing, focus))
		if err != nil {
			failures++
			e.log.Warn("generation call failed", "make", makeID, "failures", failures, "err", err)
			if failures >= maxConsecutiveFailures {
				break
			}
			continue
		}
		failures = 0

		batch := e.recoverRecords(comp.Text, makeID, existing, focus)
		if len(batch) == 0 {
			e.log.Warn("generation produced no usable records", "make", makeID)
			break
		}

		recs, err = e.store.Load(ctx)
		if err != nil {
			return added, err
		}
		merged, stats := merge.Merge(recs, batch, merge.Skip)
		if stats.Added == 0 {
			break
		}
		if err := e.store.Save(ctx, merged); err != nil {
			return added, err
		}
		for _, rec := range batch {
			existing[rec.Code] = true
		}
		added += stats.Added
		e.ledger.AddCodes(makeID, stats.Added, comp.Usage.Cost)
		e.log.Info("batch merged", "make", makeID,
			"added", stats.Added, "rejected", stats.Rejected, "total_added", added)
	}
	return added, nil
}

// FillGaps runs FillMake for every make in targets, largest target first.
// A failing make does not abort the rest.
func (e *Engine) FillGaps(ctx context.Context, targets map[string]int, focus Focus) (int, error) {
	makes := make([]string, 0, len(targets))
	for makeID := range targets {
		makes = append(makes, makeID)
	}
	sort.Slice(makes, func(i, j int) bool {
		if targets[makes[i]] != targets[makes[j]] {
			return targets[makes[i]] > targets[makes[j]]
		}
		return makes[i] < makes[j]
	})

	total := 0
	for _, makeID := range makes {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		if targets[makeID] <= 0 {
			continue
		}
		n, err := e.FillMake(ctx, makeID, targets[makeID], focus)
		total += n
		if err != nil {
			e.log.Error("fill aborted for make", "make", makeID, "added", n, "err", err)
		}
	}
	return total, nil
}

// recoverRecords turns a model answer into validated candidate records,
// dropping codes that already exist or fall outside the requested range.
func (e *Engine) recoverRecords(text, makeID string, existing map[string]bool, focus Focus) []domain.DiagnosticCode {
	// Ranges are written as a prefix with X placeholders ("P16XX", "P1XXX").
	rangePrefix := strings.TrimRight(strings.ToUpper(strings.TrimSpace(focus.CodeRange)), "X")
	var out []domain.DiagnosticCode
	for _, obj := range jsonrepair.Recover(text) {
		rec, err := normalize.FromMapping(obj, makeID)
		if err != nil {
			continue
		}
		if !domain.ValidCode(rec.Code) || existing[rec.Code] {
			continue
		}
		if rangePrefix != "" && !strings.HasPrefix(rec.Code, rangePrefix) {
			continue
		}
		if rec.Severity == "" {
			rec.Severity = normalize.DetectSeverity(rec.Description)
		}
		if rec.System == "" {
			rec.System = normalize.DetectSystem(rec.Code)
		}
		out = append(out, rec)
	}
	return out
}

// complete runs one model call under the per-call timeout and records it,
// failed or not, so the run report accounts for every call made.
func (e *Engine) complete(ctx context.Context, op, prompt string) (openrouter.Completion, error) {
	callCtx, cancel := context.WithTimeout(ctx, e.callTimeout)
	defer cancel()
	comp, err := e.llm.Complete(callCtx, prompt)
	if err != nil {
		e.ledger.RecordFailure(op)
		return openrouter.Completion{}, err
	}
	e.ledger.Record(usage.Call{
		Op:               op,
		Model:            comp.Usage.Model,
		PromptTokens:     comp.Usage.PromptTokens,
		CompletionTokens: comp.Usage.CompletionTokens,
		NativeTokens:     comp.Usage.NativeTokens,
		Cost:             comp.Usage.Cost,
		CostEstimated:    comp.Usage.CostEstimated,
	})
	return comp, nil
}

func fillPrompt(makeID string, count int, existing map[string]bool, focus Focus) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Produce %d real, documented manufacturer-specific OBD-II trouble codes for %s.\n", count, makeID)
	sb.WriteString("Answer with a JSON array only. Each object needs: code, description, detailed_description, ")
	sb.WriteString("system, severity (Low/Medium/High/Critical), common_causes (array), symptoms (array), ")
	sb.WriteString("applicable_models, applicable_years, powertrain_type.\n")

	if focus.CodeRange != "" {
		fmt.Fprintf(&sb, "Only produce codes in the %s range.\n", strings.ToUpper(focus.CodeRange))
	} else if ranges := domain.MakeCodeRanges[makeID]; len(ranges) > 0 {
		fmt.Fprintf(&sb, "This manufacturer typically allocates codes in the %s ranges.\n", strings.Join(ranges, ", "))
	}
	if focus.Powertrain != "" {
		fmt.Fprintf(&sb, "Only produce codes that apply to the %s powertrain.\n", focus.Powertrain)
	} else {
		pts := domain.ExpectedPowertrains(makeID)
		fmt.Fprintf(&sb, "Powertrain types in the lineup: %s.\n", strings.Join(pts, ", "))
	}

	if len(existing) > 0 {
		codes := make([]string, 0, len(existing))
		for code := range existing {
			codes = append(codes, code)
		}
		sort.Strings(codes)
		fmt.Fprintf(&sb, "Do not repeat these codes: %s.\n", strings.Join(codes, ", "))
	}
	sb.WriteString("Only include codes you are confident are real. Never invent codes.\n")
	return sb.String()
}
