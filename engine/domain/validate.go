package domain

import (
	"regexp"
	"strings"
)

// DTC code format: domain letter, genericity digit, three hex digits, and an
// optional trailing suffix letter (some manufacturers append one).
var codeRegex = regexp.MustCompile(`^[PBCU][0-3][0-9A-F]{3}[A-Z]?$`)

// ValidCode reports whether code matches the canonical DTC format.
// Matching is case-insensitive; the canonical form is uppercase.
func ValidCode(code string) bool {
	return codeRegex.MatchString(strings.ToUpper(strings.TrimSpace(code)))
}

// ValidateRecord checks the fields a record must carry to enter the merge
// engine. Enrichment fields (causes, symptoms, detailed description) are
// optional; their defaulting is the normalizer's job.
func ValidateRecord(d DiagnosticCode) error {
	if strings.TrimSpace(d.Code) == "" {
		return NewValidationError("code", d.Code, ErrMissingCode)
	}
	if !ValidCode(d.Code) {
		return NewValidationError("code", d.Code, ErrBadCodeFormat)
	}
	if strings.TrimSpace(d.MakeID) == "" {
		return NewValidationError("make_id", d.MakeID, ErrMissingMakeID)
	}
	if strings.TrimSpace(d.Description) == "" {
		return NewValidationError("description", d.Description, ErrMissingDesc)
	}
	if d.Severity != "" && !ValidSeverities[d.Severity] {
		return NewValidationError("severity", d.Severity, ErrBadSeverity)
	}
	if d.PowertrainType != "" && !ValidPowertrains[d.PowertrainType] {
		return NewValidationError("powertrain_type", d.PowertrainType, ErrBadPowertrain)
	}
	return nil
}

// ValidCodeRange reports whether s names a code range like "P0" or "P0xxx",
// returning the normalized two-character prefix.
func ValidCodeRange(s string) (string, bool) {
	m := rangeRegex.FindStringSubmatch(strings.ToUpper(strings.TrimSpace(s)))
	if m == nil {
		return "", false
	}
	return m[1] + m[2], true
}

var rangeRegex = regexp.MustCompile(`^([PBCU])([0-3])(?:XXX)?$`)
