package generate

import (
	"context"
	"fmt"
	"strings"

	"github.com/motorbase/dtckit/engine/domain"
	"github.com/motorbase/dtckit/engine/merge"
	"github.com/motorbase/dtckit/engine/normalize"
	"github.com/motorbase/dtckit/pkg/fn"
	"github.com/motorbase/dtckit/pkg/jsonrepair"
)

// NeedsEnrichment reports whether a record is thin: detailed description
// missing, too short to be useful, or just the short description again,
// or no known causes at all.
func NeedsEnrichment(rec domain.DiagnosticCode) bool {
	detail := strings.TrimSpace(rec.DetailedDescription)
	if detail == "" || len(detail) < MinDetailLength {
		return true
	}
	if strings.EqualFold(detail, strings.TrimSpace(rec.Description)) {
		return true
	}
	return len(rec.CommonCauses) == 0
}

// Enrich asks the model to flesh out thin records for makeID (every make
// when makeID is empty), up to limit records. Enriched fields only ever
// replace existing ones when they are better, so re-running is safe.
// Returns how many records were updated.
func (e *Engine) Enrich(ctx context.Context, makeID string, limit int) (int, error) {
	if e.llm == nil {
		return 0, fmt.Errorf("enrich: model client not configured")
	}
	makeID = strings.ToLower(strings.TrimSpace(makeID))
	recs, err := e.store.Load(ctx)
	if err != nil {
		return 0, err
	}

	var thin []domain.DiagnosticCode
	for _, rec := range recs {
		if makeID != "" && strings.ToLower(rec.MakeID) != makeID {
			continue
		}
		if NeedsEnrichment(rec) {
			thin = append(thin, rec)
		}
	}
	if limit > 0 && len(thin) > limit {
		thin = thin[:limit]
	}
	if len(thin) == 0 {
		return 0, nil
	}

	updated := 0
	failures := 0
	for _, batch := range fn.Chunk(thin, EnrichBatchSize) {
		if err := ctx.Err(); err != nil {
			return updated, err
		}
		comp, err := e.complete(ctx, "enrich", enrichPrompt(batch))
		if err != nil {
			failures++
			e.log.Warn("enrichment call failed", "failures", failures, "err", err)
			if failures >= maxConsecutiveFailures {
				break
			}
			continue
		}
		failures = 0

		incoming := recoverEnriched(comp.Text, batch)
		if len(incoming) == 0 {
			continue
		}

		recs, err = e.store.Load(ctx)
		if err != nil {
			return updated, err
		}
		merged, stats := merge.Merge(recs, incoming, merge.ReplaceIfLonger)
		if stats.Updated == 0 {
			continue
		}
		if err := e.store.Save(ctx, merged); err != nil {
			return updated, err
		}
		updated += stats.Updated
		e.log.Info("enrichment batch merged", "updated", stats.Updated, "total", updated)
	}
	return updated, nil
}

// recoverEnriched maps answer objects back onto the batch records they
// enrich. Objects for codes outside the batch are dropped.
func recoverEnriched(text string, batch []domain.DiagnosticCode) []domain.DiagnosticCode {
	owner := make(map[string]string, len(batch))
	for _, rec := range batch {
		owner[strings.ToUpper(rec.Code)] = rec.MakeID
	}
	var out []domain.DiagnosticCode
	for _, obj := range jsonrepair.Recover(text) {
		code, _ := obj["code"].(string)
		makeID, ok := owner[strings.ToUpper(strings.TrimSpace(code))]
		if !ok {
			continue
		}
		rec, err := normalize.FromMapping(obj, makeID)
		if err != nil {
			continue
		}
		out = append(out, rec)
	}
	return out
}

func enrichPrompt(batch []domain.DiagnosticCode) string {
	var sb strings.Builder
	sb.WriteString("Enrich these OBD-II trouble code records. For each, answer with a complete JSON object: ")
	sb.WriteString("code, description, detailed_description (a thorough paragraph), system, severity, ")
	sb.WriteString("common_causes (array), symptoms (array), applicable_models, applicable_years, powertrain_type.\n")
	sb.WriteString("Answer with a JSON array only, one object per input code. Keep the code field unchanged.\n\nRecords:\n")
	for _, rec := range batch {
		fmt.Fprintf(&sb, "%s (%s): %s\n", rec.Code, rec.MakeID, rec.Description)
	}
	return sb.String()
}
