package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/motorbase/dtckit/engine/classify"
	"github.com/motorbase/dtckit/engine/coverage"
	"github.com/motorbase/dtckit/engine/dataset"
	"github.com/motorbase/dtckit/engine/domain"
	"github.com/motorbase/dtckit/engine/generate"
	"github.com/motorbase/dtckit/engine/merge"
	"github.com/motorbase/dtckit/engine/reference"
	"github.com/motorbase/dtckit/engine/scrapeintake"
	"github.com/motorbase/dtckit/engine/usage"
	"github.com/motorbase/dtckit/internal/obfuscate"
	"github.com/motorbase/dtckit/pkg/natsutil"
	"github.com/motorbase/dtckit/pkg/openrouter"
)

func (a *app) store() *dataset.Store {
	return dataset.NewStore(a.cfg.DatasetPath, a.log)
}

func (a *app) llm() *openrouter.Client {
	m := a.cfg.Model
	return openrouter.New(openrouter.Config{
		APIKey:             m.APIKey,
		Model:              m.Name,
		BaseURL:            m.BaseURL,
		Referer:            m.Referer,
		Title:              m.Title,
		Temperature:        m.Temperature,
		MaxTokens:          m.MaxTokens,
		RequestTimeout:     m.Timeout(),
		CallsPerSecond:     m.CallsPerSecond,
		PromptCostPerM:     m.PromptCostPerM,
		CompletionCostPerM: m.CompletionCostPerM,
	}, a.log)
}

func (a *app) engine(ledger *usage.Ledger) *generate.Engine {
	return generate.New(generate.Deps{
		LLM:         a.llm(),
		Store:       a.store(),
		Ledger:      ledger,
		Log:         a.log,
		CallTimeout: a.cfg.Model.Timeout(),
	})
}

// catalog loads the reference catalog, tolerating its absence.
func (a *app) catalog() *reference.Catalog {
	cat, err := reference.Load(a.cfg.ReferencePath)
	if err != nil {
		a.log.Warn("reference catalog unavailable", "path", a.cfg.ReferencePath, "err", err)
		return nil
	}
	return cat
}

// finishRun persists ledger totals and prints the spend summary. Run
// persistence failures are logged, never fatal.
func (a *app) finishRun(ctx context.Context, op string, startedAt time.Time, ledger *usage.Ledger, codesAdded int) {
	if ledger.Calls() == 0 && ledger.FailedCalls() == 0 {
		return
	}
	ledger.WriteSummary(os.Stdout)
	rs, err := usage.OpenRunStore(ctx, a.cfg.RunsDBPath)
	if err != nil {
		a.log.Warn("run store unavailable", "err", err)
		return
	}
	defer rs.Close()
	id, err := rs.SaveRun(ctx, op, a.cfg.Model.Name, startedAt, ledger, codesAdded)
	if err != nil {
		a.log.Warn("run not persisted", "err", err)
		return
	}
	a.log.Info("run recorded", "run_id", id, "op", op)
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func newAnalyzeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "analyze",
		Short: "Report per-make coverage and gaps",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			recs, err := a.store().Load(ctx)
			if err != nil {
				return err
			}
			coverage.Analyze(recs, a.catalog()).Write(os.Stdout)
			return nil
		},
	}
}

func newFillCmd(a *app) *cobra.Command {
	var count int
	var smart, all bool
	var makes []string
	var country, codeRange, powertrain string
	cmd := &cobra.Command{
		Use:   "fill [make ...]",
		Short: "Generate missing codes for under-covered makes",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()
			ledger := usage.NewLedger()
			startedAt := time.Now()
			eng := a.engine(ledger)

			makeIDs := append(append([]string{}, args...), makes...)
			if country != "" {
				group, ok := domain.MakesByCountry[country]
				if !ok {
					return fmt.Errorf("unknown country %q", country)
				}
				makeIDs = append(makeIDs, group...)
			}
			if all {
				makeIDs = append(makeIDs, domain.KeywordOrder...)
			}

			targets := map[string]int{}
			if len(makeIDs) > 0 {
				for _, makeID := range makeIDs {
					targets[makeID] = count
				}
			} else {
				recs, err := a.store().Load(ctx)
				if err != nil {
					return err
				}
				report := coverage.Analyze(recs, a.catalog())
				if smart {
					planner := coverage.NewTargetPlanner(a.llm(), ledger, a.log)
					targets = planner.SmartTargets(ctx, report)
				} else {
					for _, mr := range report.Gaps() {
						targets[mr.MakeID] = mr.Deficit
					}
				}
			}

			focus := generate.Focus{CodeRange: codeRange, Powertrain: powertrain}
			added, err := eng.FillGaps(ctx, targets, focus)
			a.finishRun(context.WithoutCancel(ctx), "fill", startedAt, ledger, added)
			if err != nil {
				return err
			}
			fmt.Printf("added %d codes across %d makes\n", added, len(targets))
			return nil
		},
	}
	cmd.Flags().StringSliceVarP(&makes, "make", "m", nil, "make to fill, repeatable")
	cmd.Flags().IntVar(&count, "count", coverage.FallbackTarget, "codes to request per named make")
	cmd.Flags().BoolVar(&smart, "smart", false, "let the model size per-make targets")
	cmd.Flags().BoolVar(&all, "all", false, "fill every curated make")
	cmd.Flags().StringVar(&country, "country", "", "fill every make from one country group")
	cmd.Flags().StringVar(&codeRange, "code-range", "", "restrict generation to a code range such as P07XX")
	cmd.Flags().StringVar(&powertrain, "powertrain", "", "restrict generation to one powertrain")
	return cmd
}

func newImportCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import codes from the reference catalog or scraped files",
	}
	cmd.AddCommand(newImportStandardCmd(a), newImportGenericCmd(a), newImportScrapedCmd(a), newImportSmartCmd(a))
	return cmd
}

func (a *app) requireCatalog() (*reference.Catalog, error) {
	cat := a.catalog()
	if cat == nil {
		return nil, fmt.Errorf("reference catalog required at %s", a.cfg.ReferencePath)
	}
	return cat, nil
}

func newImportStandardCmd(a *app) *cobra.Command {
	var prefixes []string
	var enrich bool
	cmd := &cobra.Command{
		Use:   "standard",
		Short: "Import reference catalog codes, optionally enriching them",
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := a.requireCatalog()
			if err != nil {
				return err
			}
			ctx, cancel := signalContext()
			defer cancel()
			ledger := usage.NewLedger()
			startedAt := time.Now()
			eng := a.engine(ledger)
			stats, err := eng.ImportReference(ctx, cat, prefixes)
			if err != nil {
				return err
			}
			if enrich && stats.Added > 0 {
				if _, err := eng.Enrich(ctx, domain.GenericOwner, 0); err != nil {
					return err
				}
			}
			a.finishRun(context.WithoutCancel(ctx), "import-standard", startedAt, ledger, stats.Added)
			fmt.Printf("added %d, skipped %d\n", stats.Added, stats.Skipped)
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&prefixes, "prefix", nil, "limit to code prefixes such as P0,B0")
	cmd.Flags().BoolVar(&enrich, "enrich", false, "enrich imported codes with the model afterwards")
	return cmd
}

func newImportGenericCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "generic",
		Short: "Seed generic codes from the reference catalog, no model calls",
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := a.requireCatalog()
			if err != nil {
				return err
			}
			eng := generate.New(generate.Deps{Store: a.store(), Log: a.log})
			stats, err := eng.ImportReference(cmd.Context(), cat, nil)
			if err != nil {
				return err
			}
			fmt.Printf("added %d, skipped %d\n", stats.Added, stats.Skipped)
			return nil
		},
	}
}

func newImportSmartCmd(a *app) *cobra.Command {
	var prefixes []string
	cmd := &cobra.Command{
		Use:   "smart",
		Short: "Attribute manufacturer-specific reference codes to owners",
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := a.requireCatalog()
			if err != nil {
				return err
			}
			ctx, cancel := signalContext()
			defer cancel()
			ledger := usage.NewLedger()
			startedAt := time.Now()
			attributor := classify.New(a.llm(), ledger, a.log)
			stats, err := a.engine(ledger).ImportSmart(ctx, cat, attributor, prefixes)
			a.finishRun(context.WithoutCancel(ctx), "import-smart", startedAt, ledger, stats.Added)
			if err != nil {
				return err
			}
			fmt.Printf("added %d, updated %d, skipped %d\n", stats.Added, stats.Updated, stats.Skipped)
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&prefixes, "prefix", nil, "limit to manufacturer-specific prefixes such as P1,B1")
	return cmd
}

func newImportScrapedCmd(a *app) *cobra.Command {
	var policyFlag string
	var attribute bool
	cmd := &cobra.Command{
		Use:   "scraped <file.csv>",
		Short: "Import scraped codes, attributing owners first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			policy, ok := merge.ParsePolicy(policyFlag)
			if !ok {
				return fmt.Errorf("unknown merge policy %q", policyFlag)
			}
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			rows, err := scrapeintake.ReadCSV(f)
			if err != nil {
				return err
			}

			ctx, cancel := signalContext()
			defer cancel()
			ledger := usage.NewLedger()
			startedAt := time.Now()
			var attributor *classify.Engine
			if attribute {
				attributor = classify.New(a.llm(), ledger, a.log)
			}
			eng := a.engine(ledger)
			stats, err := eng.ImportScraped(ctx, scrapeintake.Prepare(rows), attributor, policy)
			a.finishRun(context.WithoutCancel(ctx), "import-scraped", startedAt, ledger, stats.Added)
			if err != nil {
				return err
			}
			fmt.Printf("added %d, updated %d, skipped %d, rejected %d\n",
				stats.Added, stats.Updated, stats.Skipped, stats.Rejected)
			return nil
		},
	}
	cmd.Flags().StringVar(&policyFlag, "policy", "skip", "merge policy: skip, replace, replace-if-longer")
	cmd.Flags().BoolVar(&attribute, "attribute", true, "attribute unowned codes before merging")
	return cmd
}

func newEnrichCmd(a *app) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "enrich [make]",
		Short: "Flesh out records with thin detailed descriptions",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			makeID := ""
			if len(args) == 1 {
				makeID = args[0]
			}
			ctx, cancel := signalContext()
			defer cancel()
			ledger := usage.NewLedger()
			startedAt := time.Now()
			updated, err := a.engine(ledger).Enrich(ctx, makeID, limit)
			a.finishRun(context.WithoutCancel(ctx), "enrich", startedAt, ledger, 0)
			if err != nil {
				return err
			}
			fmt.Printf("enriched %d records\n", updated)
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "max records to enrich (0 = all)")
	return cmd
}

func newCleanupCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Drop records with malformed codes or missing identity",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store := a.store()
			recs, err := store.Load(ctx)
			if err != nil {
				return err
			}
			kept, removed := dataset.Cleanup(recs)
			if removed == 0 {
				fmt.Println("dataset already clean")
				return nil
			}
			if err := store.Save(ctx, kept); err != nil {
				return err
			}
			fmt.Printf("removed %d invalid records, %d kept\n", removed, len(kept))
			return nil
		},
	}
}

func newMergeJSONCmd(a *app) *cobra.Command {
	var vehiclesPath string
	cmd := &cobra.Command{
		Use:   "mergejson",
		Short: "Publish the dataset into the versioned app document",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			recs, err := a.store().Load(ctx)
			if err != nil {
				return err
			}
			doc, err := dataset.LoadDocument(a.cfg.MergedPath)
			if err != nil {
				return err
			}
			if vehiclesPath != "" {
				vehicles, err := loadVehicles(vehiclesPath)
				if err != nil {
					return err
				}
				doc.MergeVehicles(vehicles)
			}
			doc.Publish(recs, makeEntities(recs), time.Now())
			if err := dataset.SaveDocument(a.cfg.MergedPath, doc); err != nil {
				return err
			}
			fmt.Printf("published version %s with %d codes\n", doc.Version, len(doc.DTCCodes))
			return nil
		},
	}
	cmd.Flags().StringVar(&vehiclesPath, "vehicles", "", "JSON file of vehicle entities to merge by id")
	return cmd
}

func loadVehicles(path string) ([]dataset.Entity, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var vehicles []dataset.Entity
	if err := json.Unmarshal(data, &vehicles); err != nil {
		return nil, fmt.Errorf("parse vehicles file: %w", err)
	}
	return vehicles, nil
}

// makeEntities derives make entries from the owners present in the
// dataset, with countries from the static grouping.
func makeEntities(recs []domain.DiagnosticCode) []dataset.MakeEntity {
	country := map[string]string{}
	for c, makes := range domain.MakesByCountry {
		for _, m := range makes {
			country[m] = c
		}
	}
	seen := map[string]bool{}
	var out []dataset.MakeEntity
	for _, rec := range recs {
		id := rec.Key().MakeID
		if id == domain.GenericOwner || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, dataset.MakeEntity{ID: id, Name: id, Country: country[id]})
	}
	return out
}

func newEncryptCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "encrypt <src> <dst>",
		Short: "Obfuscate a published file for app bundling",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := obfuscate.EncryptFile(args[0], args[1], obfuscate.DefaultComponents()); err != nil {
				return err
			}
			fmt.Printf("encrypted %s -> %s\n", args[0], args[1])
			return nil
		},
	}
}

func newWatchCmd(a *app) *cobra.Command {
	var batchSize int
	var flushEvery time.Duration
	var attribute bool
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Consume scraped codes from the queue and merge them continuously",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			nc, err := natsutil.Connect(a.cfg.NATSURL, a.log)
			if err != nil {
				return err
			}
			defer nc.Close()

			ledger := usage.NewLedger()
			startedAt := time.Now()
			var attributor *classify.Engine
			if attribute {
				attributor = classify.New(a.llm(), ledger, a.log)
			}
			eng := a.engine(ledger)

			err = scrapeintake.Watch(ctx, nc, batchSize, flushEvery,
				func(ctx context.Context, recs []domain.DiagnosticCode) error {
					stats, err := eng.ImportScraped(ctx, recs, attributor, merge.Skip)
					if err != nil {
						return err
					}
					report := scrapeintake.MergeReport{
						Received: len(recs),
						Added:    stats.Added,
						Updated:  stats.Updated,
						Skipped:  stats.Skipped,
						Rejected: stats.Rejected,
						MergedAt: time.Now().UTC(),
					}
					if perr := natsutil.PublishJSON(ctx, nc, scrapeintake.SubjectMergeReport, report); perr != nil {
						a.log.Warn("merge report not published", "err", perr)
					}
					return nil
				}, a.log)
			a.finishRun(context.WithoutCancel(ctx), "watch", startedAt, ledger, 0)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
	cmd.Flags().IntVar(&batchSize, "batch", 50, "rows per merge batch")
	cmd.Flags().DurationVar(&flushEvery, "flush-every", 30*time.Second, "max time between merges")
	cmd.Flags().BoolVar(&attribute, "attribute", true, "attribute unowned codes before merging")
	return cmd
}
