// Package normalize canonicalizes dataset records and converts the loose
// shapes coming from model responses and quick imports into validated
// records. Every function here is idempotent: normalizing an already
// normalized record is a no-op.
package normalize

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/motorbase/dtckit/engine/domain"
)

// powertrainSynonyms maps lowercased free-text powertrain labels to the
// closed set. Combined labels ("petrol/diesel", "petrol|electric") resolve
// to All before this table is consulted.
var powertrainSynonyms = map[string]string{
	"petrol":         domain.PowertrainPetrol,
	"gasoline":       domain.PowertrainPetrol,
	"gas":            domain.PowertrainPetrol,
	"diesel":         domain.PowertrainDiesel,
	"electric":       domain.PowertrainElectric,
	"ev":             domain.PowertrainElectric,
	"bev":            domain.PowertrainElectric,
	"plug-in hybrid": domain.PowertrainPluginHybrid,
	"plugin hybrid":  domain.PowertrainPluginHybrid,
	"phev":           domain.PowertrainPluginHybrid,
	"hybrid":         domain.PowertrainPetrolHybrid,
	"petrol hybrid":  domain.PowertrainPetrolHybrid,
	"hev":            domain.PowertrainPetrolHybrid,
	"diesel hybrid":  domain.PowertrainDieselHybrid,
	"all":            domain.PowertrainAll,
	"automatic":      domain.PowertrainAll,
}

// Powertrain maps a free-text powertrain label onto the closed set.
// Missing, combined, and unrecognized labels all resolve to All: a wrong
// specific powertrain is worse than an honest "applies everywhere".
func Powertrain(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return domain.PowertrainAll
	}
	if domain.ValidPowertrains[s] {
		return s
	}
	if strings.ContainsAny(s, "|/,&") || strings.Contains(strings.ToLower(s), " and ") {
		return domain.PowertrainAll
	}
	if canonical, ok := powertrainSynonyms[strings.ToLower(s)]; ok {
		return canonical
	}
	return domain.PowertrainAll
}

// Severity canonicalizes casing for known severity labels and leaves
// everything else untouched for the validation gate to reject.
func Severity(s string) string {
	s = strings.TrimSpace(s)
	for valid := range domain.ValidSeverities {
		if strings.EqualFold(s, valid) {
			return valid
		}
	}
	return s
}

// Record canonicalizes a record in place: code uppercased, make lowercased,
// free-text fields trimmed, powertrain and severity mapped onto the closed
// sets, nil list fields replaced with empty slices.
func Record(d domain.DiagnosticCode) domain.DiagnosticCode {
	d.Code = strings.ToUpper(strings.TrimSpace(d.Code))
	d.MakeID = strings.ToLower(strings.TrimSpace(d.MakeID))
	d.Description = strings.TrimSpace(d.Description)
	d.DetailedDescription = strings.TrimSpace(d.DetailedDescription)
	d.System = strings.TrimSpace(d.System)
	d.Severity = Severity(d.Severity)
	d.PowertrainType = Powertrain(d.PowertrainType)
	d.ApplicableModels = strings.TrimSpace(d.ApplicableModels)
	d.ApplicableYears = strings.TrimSpace(d.ApplicableYears)
	d.CommonCauses = cleanList(d.CommonCauses)
	d.Symptoms = cleanList(d.Symptoms)
	return d
}

func cleanList(items []string) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		if it = strings.TrimSpace(it); it != "" {
			out = append(out, it)
		}
	}
	return out
}

// FromMapping converts one loosely typed object, as recovered from a model
// response, into a normalized record owned by makeID. List fields tolerate
// three encodings: a JSON array, a JSON-encoded array inside a string, and
// a plain comma or semicolon separated string.
func FromMapping(m map[string]any, makeID string) (domain.DiagnosticCode, error) {
	code := asString(m["code"])
	desc := asString(m["description"])
	if code == "" || desc == "" {
		return domain.DiagnosticCode{}, fmt.Errorf("mapping missing code or description: %v", m["code"])
	}
	d := domain.DiagnosticCode{
		Code:                code,
		MakeID:              makeID,
		Description:         desc,
		DetailedDescription: asString(m["detailed_description"]),
		System:              asString(m["system"]),
		Severity:            asString(m["severity"]),
		CommonCauses:        asList(m["common_causes"]),
		Symptoms:            asList(m["symptoms"]),
		ApplicableModels:    asString(m["applicable_models"]),
		ApplicableYears:     asString(m["applicable_years"]),
		PowertrainType:      asString(m["powertrain_type"]),
	}
	return Record(d), nil
}

func asString(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strings.TrimSpace(fmt.Sprintf("%v", t))
	case nil:
		return ""
	default:
		return strings.TrimSpace(fmt.Sprintf("%v", t))
	}
}

func asList(v any) []string {
	switch t := v.(type) {
	case nil:
		return []string{}
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if s := asString(item); s != "" {
				out = append(out, s)
			}
		}
		return out
	case []string:
		return cleanList(t)
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return []string{}
		}
		if strings.HasPrefix(s, "[") {
			var arr []string
			if err := json.Unmarshal([]byte(s), &arr); err == nil {
				return cleanList(arr)
			}
		}
		sep := ","
		if strings.Contains(s, ";") && !strings.Contains(s, ",") {
			sep = ";"
		}
		return cleanList(strings.Split(s, sep))
	default:
		return []string{}
	}
}
