package domain

// KeywordOrder is the fixed manufacturer enumeration order used by the
// keyword classifier. First match in this order wins, so the order is a
// policy knob, not an accident of map iteration.
var KeywordOrder = []string{
	"honda", "toyota", "bmw", "mercedes-benz", "volkswagen", "audi",
	"ford", "nissan", "mazda", "hyundai", "kia", "volvo", "peugeot", "vauxhall",
}

// MakeKeywords maps a make_id to technology/brand terms unique enough to
// attribute an otherwise unowned code. Matched case-insensitively as
// substrings against both the code and its description.
var MakeKeywords = map[string][]string{
	"honda": {
		"vtec", "vvt", "i-vtec", "vtc", "ima", "i-mmd", "e:hev", "vsa", "cmbs", "lkas",
		"sh-awd", "honda", "acura", "clarity", "insight", "accord", "civic", "cr-v",
		"earth dreams", "dpf regeneration", "idling stop",
	},
	"toyota": {
		"vvt-i", "vvt-ie", "d-4s", "d-4st", "tss", "toyota", "lexus", "prius", "hybrid synergy",
		"ths", "ths ii", "ecvt", "e-cvt", "camry", "corolla", "rav4", "highlander",
		"smart key", "star safety", "entune",
	},
	"bmw": {
		"vanos", "valvetronic", "dsc", "dde", "dme", "ihk", "ihka", "cas", "ews",
		"bmw", "mini", "rolls-royce", "efficient dynamics", "xdrive", "idrive",
		"comfort access", "servotronic", "active steering",
	},
	"mercedes-benz": {
		"mercedes", "benz", "amg", "4matic", "airmatic", "abc", "me-sfi", "cdi",
		"bluetec", "eq boost", "eq power", "distronic", "parktronic", "mbux",
		"pre-safe", "attention assist", "active brake assist",
	},
	"volkswagen": {
		"tsi", "tdi", "tfsi", "fsi", "dsg", "s-tronic", "haldex", "4motion", "vw",
		"volkswagen", "vag", "seat", "skoda", "golf", "passat", "tiguan",
		"adblue", "scr", "dpf", "climatronic", "discover",
	},
	"audi": {
		"audi", "tfsi", "tdi", "fsi", "s-tronic", "quattro", "mmi", "virtual cockpit",
		"matrix led", "pre sense", "side assist", "a3", "a4", "a6", "q5", "q7",
	},
	"ford": {
		"ford", "lincoln", "ecoboost", "powershift", "selectshift", "sync",
		"myford", "blis", "cross traffic", "focus", "fiesta",
		"mondeo", "kuga", "puma", "mustang", "mach-e",
	},
	"nissan": {
		"nissan", "infiniti", "xtronic", "e-power", "propilot", "nissan connect",
		"intelligent key", "around view", "juke", "qashqai", "leaf", "ariya",
	},
	"mazda": {
		"mazda", "skyactiv", "skyactiv-x", "skyactiv-g", "skyactiv-d", "i-activ",
		"i-activsense", "i-stop", "g-vectoring", "cx-5", "cx-30", "mx-5", "mazda3",
		"kodo", "zoom-zoom",
	},
	"hyundai": {
		"hyundai", "genesis", "gdi", "t-gdi", "cvvt", "cvvd", "htrac",
		"blue link", "smart cruise", "ioniq", "kona", "tucson",
		"santa fe", "smartstream",
	},
	"kia": {
		"kia", "sportage", "sorento", "niro", "ev6", "uvo", "drive wise",
	},
	"volvo": {
		"volvo", "polestar", "drive-e", "sensus", "pilot assist", "city safety",
		"intellisafe", "xc40", "xc60", "xc90", "s60", "v60", "recharge",
	},
	"peugeot": {
		"peugeot", "citroen", "ds", "psa", "hdi", "thp", "puretech", "e-hdi",
		"blue hdi", "eat6", "eat8", "i-cockpit", "grip control", "208", "308", "3008", "5008",
	},
	"vauxhall": {
		"vauxhall", "opel", "ecotec", "cdti", "intellilink", "onstar", "flexride",
		"astra", "corsa", "insignia", "mokka", "grandland",
	},
}

// MakeCodeRanges holds known manufacturer-specific P1xxx allocation habits,
// used only as generation hints.
var MakeCodeRanges = map[string][]string{
	"honda":  {"P15", "P16", "P17"},
	"toyota": {"P13", "P14"},
	"ford":   {"P12", "P18", "P19"},
	"gm":     {"P16", "P17"},
}

// MakesByCountry groups make_ids for country-scoped gap filling.
var MakesByCountry = map[string][]string{
	"Germany":     {"mercedes-benz", "bmw", "audi", "volkswagen", "porsche"},
	"Japan":       {"toyota", "honda", "nissan", "mazda", "subaru", "mitsubishi"},
	"USA":         {"ford", "chevrolet", "gmc", "dodge", "tesla"},
	"South Korea": {"hyundai", "kia", "genesis"},
	"UK":          {"vauxhall", "jaguar", "land-rover", "mini"},
	"France":      {"peugeot", "renault", "citroen"},
	"Sweden":      {"volvo", "polestar"},
	"Italy":       {"fiat", "alfa-romeo", "ferrari"},
}

// Coverage tiers with recommended code counts.
const (
	TierPremium  = "premium"
	TierStandard = "standard"
)

// TierTargets is the recommended code count per tier.
var TierTargets = map[string]int{
	TierPremium:  80,
	TierStandard: 60,
}

// PremiumMakes are held to the premium coverage target.
var PremiumMakes = map[string]bool{
	"bmw": true, "mercedes-benz": true, "audi": true,
	"porsche": true, "lexus": true, "jaguar": true,
}

// Tier returns the coverage tier for a make.
func Tier(makeID string) string {
	if PremiumMakes[makeID] {
		return TierPremium
	}
	return TierStandard
}

// MakePowertrains is the expected powertrain lineup per manufacturer,
// consulted by the gap analyzer. The "default" entry covers unknown makes.
var MakePowertrains = map[string][]string{
	"bmw":           {PowertrainPetrol, PowertrainDiesel, PowertrainPetrolHybrid, PowertrainPluginHybrid, PowertrainElectric},
	"mercedes-benz": {PowertrainPetrol, PowertrainDiesel, PowertrainDieselHybrid, PowertrainPetrolHybrid, PowertrainPluginHybrid, PowertrainElectric},
	"audi":          {PowertrainPetrol, PowertrainDiesel, PowertrainPetrolHybrid, PowertrainPluginHybrid, PowertrainElectric},
	"volkswagen":    {PowertrainPetrol, PowertrainDiesel, PowertrainPetrolHybrid, PowertrainPluginHybrid, PowertrainElectric},
	"porsche":       {PowertrainPetrol, PowertrainPetrolHybrid, PowertrainPluginHybrid, PowertrainElectric},
	"toyota":        {PowertrainPetrol, PowertrainDiesel, PowertrainPetrolHybrid, PowertrainPluginHybrid, PowertrainElectric},
	"honda":         {PowertrainPetrol, PowertrainDiesel, PowertrainPetrolHybrid, PowertrainPluginHybrid, PowertrainElectric},
	"nissan":        {PowertrainPetrol, PowertrainDiesel, PowertrainPetrolHybrid, PowertrainElectric},
	"mazda":         {PowertrainPetrol, PowertrainDiesel, PowertrainPetrolHybrid},
	"hyundai":       {PowertrainPetrol, PowertrainDiesel, PowertrainPetrolHybrid, PowertrainPluginHybrid, PowertrainElectric},
	"kia":           {PowertrainPetrol, PowertrainDiesel, PowertrainPetrolHybrid, PowertrainPluginHybrid, PowertrainElectric},
	"genesis":       {PowertrainPetrol, PowertrainPetrolHybrid, PowertrainElectric},
	"vauxhall":      {PowertrainPetrol, PowertrainDiesel, PowertrainPetrolHybrid, PowertrainPluginHybrid, PowertrainElectric},
	"jaguar":        {PowertrainPetrol, PowertrainDiesel, PowertrainPetrolHybrid, PowertrainPluginHybrid, PowertrainElectric},
	"land-rover":    {PowertrainPetrol, PowertrainDiesel, PowertrainDieselHybrid, PowertrainPluginHybrid},
	"mini":          {PowertrainPetrol, PowertrainDiesel, PowertrainElectric},
	"peugeot":       {PowertrainPetrol, PowertrainDiesel, PowertrainPetrolHybrid, PowertrainPluginHybrid, PowertrainElectric},
	"renault":       {PowertrainPetrol, PowertrainDiesel, PowertrainPetrolHybrid, PowertrainElectric},
	"citroen":       {PowertrainPetrol, PowertrainDiesel, PowertrainPetrolHybrid, PowertrainPluginHybrid, PowertrainElectric},
	"volvo":         {PowertrainPetrol, PowertrainDiesel, PowertrainPetrolHybrid, PowertrainPluginHybrid, PowertrainElectric},
	"polestar":      {PowertrainPluginHybrid, PowertrainElectric},
	"ford":          {PowertrainPetrol, PowertrainDiesel, PowertrainPetrolHybrid, PowertrainPluginHybrid, PowertrainElectric},
	"tesla":         {PowertrainElectric},
}

// DefaultPowertrains is the lineup assumed for makes absent from
// MakePowertrains.
var DefaultPowertrains = []string{PowertrainPetrol, PowertrainDiesel, PowertrainAll}

// ExpectedPowertrains returns the lineup for a make, falling back to
// DefaultPowertrains.
func ExpectedPowertrains(makeID string) []string {
	if p, ok := MakePowertrains[makeID]; ok {
		return p
	}
	return DefaultPowertrains
}
