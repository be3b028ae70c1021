package normalize

import (
	"strings"

	"github.com/motorbase/dtckit/engine/domain"
)

// DetectSystem derives a coarse system label from the code's first letter.
// Used by quick imports where only code and description are known.
func DetectSystem(code string) string {
	if code == "" {
		return ""
	}
	switch strings.ToUpper(code)[0] {
	case 'P':
		return "Powertrain"
	case 'B':
		return "Body"
	case 'C':
		return "Chassis"
	case 'U':
		return "Network Communication"
	}
	return ""
}

var (
	criticalTerms = []string{"overheat", "no start", "will not start", "stall", "brake failure", "airbag"}
	highTerms     = []string{"misfire", "fuel", "ignition", "transmission", "brake", "coolant", "oil pressure", "communication lost", "lost communication"}
	lowTerms      = []string{"lamp", "bulb", "radio", "memory", "seat", "window", "mirror", "trim"}
)

// DetectSeverity scores a description against keyword buckets. The default
// for a description matching nothing is Medium.
func DetectSeverity(description string) string {
	desc := strings.ToLower(description)
	for _, t := range criticalTerms {
		if strings.Contains(desc, t) {
			return domain.SeverityCritical
		}
	}
	for _, t := range highTerms {
		if strings.Contains(desc, t) {
			return domain.SeverityHigh
		}
	}
	for _, t := range lowTerms {
		if strings.Contains(desc, t) {
			return domain.SeverityLow
		}
	}
	return domain.SeverityMedium
}

// DetectPowertrain reads powertrain hints out of a description. Anything
// ambiguous falls back to All.
func DetectPowertrain(description string) string {
	desc := strings.ToLower(description)
	switch {
	case strings.Contains(desc, "diesel") && strings.Contains(desc, "hybrid"):
		return domain.PowertrainDieselHybrid
	case strings.Contains(desc, "plug-in") || strings.Contains(desc, "phev"):
		return domain.PowertrainPluginHybrid
	case strings.Contains(desc, "hybrid"):
		return domain.PowertrainPetrolHybrid
	case strings.Contains(desc, "diesel") || strings.Contains(desc, "glow plug") || strings.Contains(desc, "dpf"):
		return domain.PowertrainDiesel
	case strings.Contains(desc, "battery pack") || strings.Contains(desc, "drive motor") || strings.Contains(desc, "high voltage"):
		return domain.PowertrainElectric
	}
	return domain.PowertrainAll
}
