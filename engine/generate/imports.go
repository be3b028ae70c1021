package generate

import (
	"context"
	"strings"

	"github.com/motorbase/dtckit/engine/classify"
	"github.com/motorbase/dtckit/engine/domain"
	"github.com/motorbase/dtckit/engine/merge"
	"github.com/motorbase/dtckit/engine/normalize"
	"github.com/motorbase/dtckit/engine/reference"
	"github.com/motorbase/dtckit/pkg/fn"
)

// ImportRecords merges a prepared batch into the stored dataset under
// policy and persists the result.
func (e *Engine) ImportRecords(ctx context.Context, incoming []domain.DiagnosticCode, policy merge.Policy) (merge.Stats, error) {
	recs, err := e.store.Load(ctx)
	if err != nil {
		return merge.Stats{}, err
	}
	merged, stats := merge.Merge(recs, incoming, policy)
	if stats.Added == 0 && stats.Updated == 0 {
		e.log.Info("import made no changes", "considered", stats.Total())
		return stats, nil
	}
	if err := e.store.Save(ctx, merged); err != nil {
		return stats, err
	}
	e.log.Info("import merged", "added", stats.Added, "updated", stats.Updated,
		"skipped", stats.Skipped, "rejected", stats.Rejected)
	return stats, nil
}

// ImportReference seeds the dataset from the reference catalog: entries in
// the truly generic prefixes become records under the generic owner, with
// system and severity inferred from code and description. Existing records
// are never touched.
func (e *Engine) ImportReference(ctx context.Context, cat *reference.Catalog, prefixes []string) (merge.Stats, error) {
	if len(prefixes) == 0 {
		prefixes = domain.GenericPrefixes
	}
	entries := cat.WithPrefixes(prefixes)
	incoming := make([]domain.DiagnosticCode, 0, len(entries))
	for _, entry := range entries {
		incoming = append(incoming, domain.DiagnosticCode{
			Code:           entry.Code,
			MakeID:         domain.GenericOwner,
			Description:    entry.Description,
			System:         normalize.DetectSystem(entry.Code),
			Severity:       normalize.DetectSeverity(entry.Description),
			PowertrainType: normalize.DetectPowertrain(entry.Description),
		})
	}
	return e.ImportRecords(ctx, incoming, merge.Skip)
}

// ImportSmart pushes the catalog's manufacturer-specific entries through
// owner attribution before merging, so known P1/B1-style codes land under
// the makes that actually use them.
func (e *Engine) ImportSmart(ctx context.Context, cat *reference.Catalog, attributor *classify.Engine, prefixes []string) (merge.Stats, error) {
	if len(prefixes) == 0 {
		prefixes = domain.ManufacturerSpecificPrefixes
	}
	entries := cat.WithPrefixes(prefixes)
	incoming := make([]domain.DiagnosticCode, 0, len(entries))
	for _, entry := range entries {
		incoming = append(incoming, domain.DiagnosticCode{
			Code:           entry.Code,
			Description:    entry.Description,
			System:         normalize.DetectSystem(entry.Code),
			Severity:       normalize.DetectSeverity(entry.Description),
			PowertrainType: normalize.DetectPowertrain(entry.Description),
		})
	}
	return e.ImportScraped(ctx, incoming, attributor, merge.Skip)
}

// ImportScraped attributes unowned scraped candidates and merges the
// result. attributor may be nil, in which case unowned records fall to the
// generic owner.
func (e *Engine) ImportScraped(ctx context.Context, incoming []domain.DiagnosticCode, attributor *classify.Engine, policy merge.Policy) (merge.Stats, error) {
	attribute := fn.TracedStage("scraped.attribute",
		func(ctx context.Context, recs []domain.DiagnosticCode) fn.Result[[]domain.DiagnosticCode] {
			if attributor == nil {
				for i := range recs {
					if strings.TrimSpace(recs[i].MakeID) == "" {
						recs[i].MakeID = domain.GenericOwner
					}
				}
				return fn.Ok(recs)
			}
			attributed, stats := attributor.Classify(ctx, recs)
			e.log.Info("scraped batch attributed", "keyword", stats.Keyword,
				"model", stats.Model, "generic", stats.Generic, "failed_batches", stats.Failed)
			return fn.Ok(attributed)
		})
	persist := fn.TracedStage("scraped.merge",
		func(ctx context.Context, recs []domain.DiagnosticCode) fn.Result[merge.Stats] {
			return fn.FromPair(e.ImportRecords(ctx, recs, policy))
		})
	return fn.Then(attribute, persist)(ctx, incoming).Unwrap()
}
