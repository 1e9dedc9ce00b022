package importer

import (
	"regexp"
	"strings"
)

// categoryAliases folds the category names models and spreadsheets like to
// use onto the seeded category slugs.
var categoryAliases = map[string]string{
	"cameras":       "camera",
	"switches":      "switch",
	"routers":       "router",
	"access points": "access_point",
	"access_points": "access_point",
	"ap_wifi":       "access_point",
	"nvrs":          "nvr",
	"dvr":           "nvr",
	"server":        "controller",
	"sensor":        "converter",
}

// statusAliases folds common spreadsheet status values, Portuguese ones
// included, onto the canonical set.
var statusAliases = map[string]string{
	"ativo":      "active",
	"ativa":      "active",
	"inativo":    "inactive",
	"inativa":    "inactive",
	"manutenção": "maintenance",
	"manutencao": "maintenance",
	"erro":       "error",
	"offline":    "inactive",
	"online":     "active",
	"on":         "active",
	"off":        "inactive",
	"ok":         "active",
	"up":         "active",
	"down":       "inactive",
}

var allowedStatuses = map[string]bool{
	"active":      true,
	"inactive":    true,
	"maintenance": true,
	"error":       true,
}

// FallbackCategory is used when a suggested category cannot be resolved.
const FallbackCategory = "other"

// NormalizeCategorySlug maps a raw category name onto a seeded slug,
// trying the alias table, then a trailing-s strip, then the fallback.
func NormalizeCategorySlug(raw string, known map[string]bool) string {
	slug := strings.ToLower(strings.TrimSpace(raw))
	if mapped, ok := categoryAliases[slug]; ok {
		slug = mapped
	}
	if known[slug] {
		return slug
	}
	if trimmed := strings.TrimSuffix(slug, "s"); known[trimmed] {
		return trimmed
	}
	return FallbackCategory
}

// NormalizeStatus maps a raw status value onto the canonical set,
// defaulting to active.
func NormalizeStatus(raw string) string {
	status := strings.ToLower(strings.TrimSpace(raw))
	if mapped, ok := statusAliases[status]; ok {
		status = mapped
	}
	if !allowedStatuses[status] {
		return "active"
	}
	return status
}

type manufacturerRule struct {
	name      string
	contains  []string
	prefixes  *regexp.Regexp
	serialRex *regexp.Regexp
}

// Prefix heuristics for the brands that dominate surveillance and access
// network inventories.
var manufacturerRules = []manufacturerRule{
	{
		name:      "Hikvision",
		contains:  []string{"hikvision"},
		prefixes:  regexp.MustCompile(`^(ds-2cd|ds-2td|ds-7|ds-96|ds-k|ds-|ipc-hfw)`),
		serialRex: regexp.MustCompile(`^ds-`),
	},
	{
		name:     "Dahua",
		contains: []string{"dahua"},
		prefixes: regexp.MustCompile(`^(dh-|ipc-hdw|nvr|xvr|dhi-)`),
	},
	{
		name:     "Intelbras",
		contains: []string{"intelbras"},
		prefixes: regexp.MustCompile(`^(vip-|vhd-|vhl-|mhdx|nvd|imhdx)`),
	},
	{
		name:     "HiLook",
		contains: []string{"hilook"},
		prefixes: regexp.MustCompile(`^(ipc-b|ipc-t|nvr-1|dvr-2)`),
	},
	{
		name:     "Axis",
		contains: []string{"axis"},
		prefixes: regexp.MustCompile(`^[pmqf]\d{4}`),
	},
	{
		name:     "Cisco",
		contains: []string{"cisco"},
		prefixes: regexp.MustCompile(`^(ws-|ie-|c9|cat|sg|sf)`),
	},
	{
		name:     "Ubiquiti",
		contains: []string{"ubiquiti", "unifi"},
		prefixes: regexp.MustCompile(`^(usg|usw|uap|udm|uvc)`),
	},
	{
		name:     "TP-Link",
		contains: []string{"tp-link"},
		prefixes: regexp.MustCompile(`^(tl-|archer|deco)`),
	},
	{
		name:     "MikroTik",
		contains: []string{"mikrotik", "routerboard"},
		prefixes: regexp.MustCompile(`^(rb|ccr|crs|hex|hap)`),
	},
}

// DetectManufacturer guesses the manufacturer from model and serial
// naming conventions. Returns "Unknown" when nothing matches.
func DetectManufacturer(model, serialNumber string) string {
	modelLower := strings.ToLower(model)
	serialLower := strings.ToLower(serialNumber)

	for _, rule := range manufacturerRules {
		for _, sub := range rule.contains {
			if strings.Contains(modelLower, sub) {
				return rule.name
			}
		}
		if rule.prefixes != nil && rule.prefixes.MatchString(modelLower) {
			return rule.name
		}
		if rule.serialRex != nil && rule.serialRex.MatchString(serialLower) {
			return rule.name
		}
	}
	return "Unknown"
}
