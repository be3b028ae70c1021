// Package domain defines the core dataset types, constants, and validation
// for the dtckit pipeline. It acts as the validation gate at pipeline entry
// points: every record reaching the merge engine has passed through here.
package domain

import "strings"

// GenericOwner is the sentinel make_id for codes that apply to all
// manufacturers (SAE-standard codes).
const GenericOwner = "generic"

// DiagnosticCode is the central entity: one OBD-II trouble code scoped to a
// manufacturer (or to GenericOwner).
type DiagnosticCode struct {
	Code                string   `json:"code"`
	MakeID              string   `json:"make_id"`
	Description         string   `json:"description"`
	DetailedDescription string   `json:"detailed_description"`
	System              string   `json:"system"`
	Severity            string   `json:"severity"`
	CommonCauses        []string `json:"common_causes"`
	Symptoms            []string `json:"symptoms"`
	ApplicableModels    string   `json:"applicable_models"`
	ApplicableYears     string   `json:"applicable_years"`
	PowertrainType      string   `json:"powertrain_type"`
}

// Key is the identity of a DiagnosticCode: (code uppercased, make lowercased).
// A code may legitimately appear under several owners; the pair is unique.
type Key struct {
	Code   string
	MakeID string
}

// Key returns the record's identity key.
func (d DiagnosticCode) Key() Key {
	return Key{Code: strings.ToUpper(d.Code), MakeID: strings.ToLower(d.MakeID)}
}

// Prefix returns the two-character category prefix (e.g. "P0", "U1"),
// uppercased. Empty if the code is too short.
func (d DiagnosticCode) Prefix() string {
	if len(d.Code) < 2 {
		return ""
	}
	return strings.ToUpper(d.Code[:2])
}

// IsGeneric reports whether the code's second character marks it as an
// SAE-standard (manufacturer-agnostic) code.
func (d DiagnosticCode) IsGeneric() bool {
	return len(d.Code) >= 2 && d.Code[1] == '0'
}

// Severity levels.
const (
	SeverityLow      = "Low"
	SeverityMedium   = "Medium"
	SeverityHigh     = "High"
	SeverityCritical = "Critical"
)

// ValidSeverities is the closed severity set.
var ValidSeverities = map[string]bool{
	SeverityLow: true, SeverityMedium: true, SeverityHigh: true, SeverityCritical: true,
}

// Powertrain types, UK terminology.
const (
	PowertrainPetrol       = "Petrol"
	PowertrainDiesel       = "Diesel"
	PowertrainPetrolHybrid = "Petrol Hybrid"
	PowertrainDieselHybrid = "Diesel Hybrid"
	PowertrainPluginHybrid = "Plug-in Hybrid"
	PowertrainElectric     = "Electric"
	PowertrainAll          = "All"
)

// ValidPowertrains is the closed powertrain set.
var ValidPowertrains = map[string]bool{
	PowertrainPetrol: true, PowertrainDiesel: true, PowertrainPetrolHybrid: true,
	PowertrainDieselHybrid: true, PowertrainPluginHybrid: true,
	PowertrainElectric: true, PowertrainAll: true,
}

// CategoryNames maps two-character code prefixes to human descriptions,
// per SAE J2012.
var CategoryNames = map[string]string{
	"P0": "Generic Powertrain (OBD-II Standard)",
	"P1": "Manufacturer-Specific Powertrain",
	"P2": "Generic Powertrain (ISO/SAE Reserved)",
	"P3": "Generic/Manufacturer Powertrain",
	"B0": "Generic Body",
	"B1": "Manufacturer-Specific Body",
	"B2": "Manufacturer-Specific Body",
	"B3": "Generic Body (ISO/SAE Reserved)",
	"C0": "Generic Chassis",
	"C1": "Manufacturer-Specific Chassis",
	"C2": "Manufacturer-Specific Chassis",
	"C3": "Generic Chassis (ISO/SAE Reserved)",
	"U0": "Generic Network Communication",
	"U1": "Manufacturer-Specific Network",
	"U2": "Manufacturer-Specific Network",
	"U3": "Generic Network (ISO/SAE Reserved)",
}

// GenericPrefixes are the prefixes safe to import wholesale under
// GenericOwner: truly universal across manufacturers.
var GenericPrefixes = []string{"P0", "B0", "C0", "U0"}

// ManufacturerSpecificPrefixes are the prefixes reserved for per-manufacturer
// code assignments.
var ManufacturerSpecificPrefixes = []string{"P1", "B1", "C1", "U1", "P2", "B2", "C2", "U2"}

// RequiredCategories is the prefix set every well-covered manufacturer is
// expected to have at least one code in.
var RequiredCategories = []string{"P0", "P1", "B1", "C1", "U0"}

// CSVColumns is the fixed column order of the dtc_codes CSV source of truth.
var CSVColumns = []string{
	"code", "make_id", "description", "detailed_description", "system",
	"severity", "common_causes", "symptoms", "applicable_models",
	"applicable_years", "powertrain_type",
}
