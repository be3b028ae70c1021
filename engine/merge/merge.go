// Package merge reconciles batches of incoming records into the dataset.
// It is pure: callers load, merge, then persist. All incoming records pass
// the validation gate before they can touch existing data.
package merge

import (
	"sort"
	"strings"

	"github.com/motorbase/dtckit/engine/domain"
	"github.com/motorbase/dtckit/engine/normalize"
	"github.com/motorbase/dtckit/pkg/fn"
)

// Policy controls what happens when an incoming record collides with an
// existing one on (code, make).
type Policy int

const (
	// Skip keeps the existing record untouched.
	Skip Policy = iota
	// Replace overwrites existing fields with non-empty incoming fields.
	Replace
	// ReplaceIfLonger overwrites a field only when the incoming value is
	// meaningfully longer than the existing one.
	ReplaceIfLonger
)

func (p Policy) String() string {
	switch p {
	case Skip:
		return "skip"
	case Replace:
		return "replace"
	case ReplaceIfLonger:
		return "replace-if-longer"
	}
	return "unknown"
}

// ParsePolicy maps a CLI flag value onto a Policy.
func ParsePolicy(s string) (Policy, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "skip", "":
		return Skip, true
	case "replace":
		return Replace, true
	case "replace-if-longer", "longer":
		return ReplaceIfLonger, true
	}
	return Skip, false
}

// LongerFactor is the ratio an incoming text field must exceed before
// ReplaceIfLonger treats it as an improvement rather than noise.
const LongerFactor = 1.2

// Stats summarizes one merge pass.
type Stats struct {
	Added    int
	Updated  int
	Skipped  int
	Rejected int
}

// Total returns how many incoming records were considered.
func (s Stats) Total() int { return s.Added + s.Updated + s.Skipped + s.Rejected }

// Merge reconciles incoming into existing under policy and returns the new
// dataset sorted by (make, code). Incoming records are normalized first;
// records failing validation are dropped and counted. Duplicate keys, on
// either side, collapse to the last occurrence: incoming before
// reconciliation, the merged result before the final sort, so the output
// holds each (make, code) exactly once even when the stored CSV was
// hand-edited into duplicates.
func Merge(existing, incoming []domain.DiagnosticCode, policy Policy) ([]domain.DiagnosticCode, Stats) {
	var stats Stats

	valid := make([]domain.DiagnosticCode, 0, len(incoming))
	for _, rec := range incoming {
		rec = normalize.Record(rec)
		if err := domain.ValidateRecord(rec); err != nil {
			stats.Rejected++
			continue
		}
		valid = append(valid, rec)
	}
	valid = fn.UniqueBy(valid, domain.DiagnosticCode.Key)

	index := make(map[domain.Key]int, len(existing))
	out := make([]domain.DiagnosticCode, len(existing))
	copy(out, existing)
	for i, rec := range out {
		index[rec.Key()] = i
	}

	for _, rec := range valid {
		i, found := index[rec.Key()]
		if !found {
			index[rec.Key()] = len(out)
			out = append(out, rec)
			stats.Added++
			continue
		}
		switch policy {
		case Skip:
			stats.Skipped++
		case Replace, ReplaceIfLonger:
			merged, changed := overlay(out[i], rec, policy == ReplaceIfLonger)
			if changed {
				out[i] = merged
				stats.Updated++
			} else {
				stats.Skipped++
			}
		}
	}

	// Updates above land on the last duplicate of a key, which is also the
	// copy the keep-last pass retains.
	out = fn.UniqueBy(out, domain.DiagnosticCode.Key)

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].Key(), out[j].Key()
		if a.MakeID != b.MakeID {
			return a.MakeID < b.MakeID
		}
		return a.Code < b.Code
	})
	return out, stats
}

// overlay copies non-empty incoming fields over base. With onlyLonger set,
// a text field replaces its counterpart only when the incoming value is at
// least LongerFactor times as long.
func overlay(base, in domain.DiagnosticCode, onlyLonger bool) (domain.DiagnosticCode, bool) {
	changed := false

	text := func(dst *string, src string) {
		if src == "" || src == *dst {
			return
		}
		if onlyLonger && *dst != "" && float64(len(src)) < LongerFactor*float64(len(*dst)) {
			return
		}
		*dst = src
		changed = true
	}
	list := func(dst *[]string, src []string) {
		if len(src) == 0 || equalList(*dst, src) {
			return
		}
		if onlyLonger && len(src) <= len(*dst) {
			return
		}
		*dst = src
		changed = true
	}

	text(&base.Description, in.Description)
	text(&base.DetailedDescription, in.DetailedDescription)
	text(&base.System, in.System)
	text(&base.ApplicableModels, in.ApplicableModels)
	text(&base.ApplicableYears, in.ApplicableYears)
	list(&base.CommonCauses, in.CommonCauses)
	list(&base.Symptoms, in.Symptoms)

	// Closed-set fields swap outright: length is meaningless for them.
	if in.Severity != "" && in.Severity != base.Severity && !onlyLonger {
		base.Severity = in.Severity
		changed = true
	}
	if in.Severity != "" && base.Severity == "" {
		base.Severity = in.Severity
		changed = true
	}
	if in.PowertrainType != "" && in.PowertrainType != base.PowertrainType {
		if !onlyLonger || base.PowertrainType == "" || base.PowertrainType == domain.PowertrainAll {
			base.PowertrainType = in.PowertrainType
			changed = true
		}
	}
	return base, changed
}

func equalList(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
