package spreadsheet

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/onliops/inventoryd/internal/model"
)

// HeaderKeywords are tokens that mark a cell as a likely column title.
// English and Portuguese forms are mixed because field spreadsheets come
// from both.
var HeaderKeywords = []string{
	"ip", "address", "endereco", "endereço",
	"serial", "numero", "número", "sn",
	"model", "modelo", "type", "tipo",
	"manufacturer", "fabricante", "marca", "vendor",
	"hostname", "host", "name", "nome", "device",
	"mac", "location", "local", "site", "rack",
	"status", "estado", "description", "descricao", "descrição",
	"tag", "firmware", "version", "versao", "versão",
	"gateway", "mascara", "subnet", "vlan", "port", "porta",
}

// LooksLikeHeaderKeyword reports whether a value equals or contains one of
// the header keywords (case-insensitive).
func LooksLikeHeaderKeyword(value string) bool {
	v := strings.ToLower(strings.TrimSpace(value))
	if v == "" {
		return false
	}
	for _, kw := range HeaderKeywords {
		if v == kw || strings.Contains(v, kw) {
			return true
		}
	}
	return false
}

// Data-shape patterns used to tell data rows apart from header rows.
var (
	ipv4Pattern = regexp.MustCompile(`^(?:(?:25[0-5]|2[0-4][0-9]|[01]?[0-9][0-9]?)\.){3}(?:25[0-5]|2[0-4][0-9]|[01]?[0-9][0-9]?)$`)
	// Colon, dash and cisco dot notations.
	macPattern = regexp.MustCompile(`^([0-9A-Fa-f]{2}[:-]){5}([0-9A-Fa-f]{2})$|^([0-9A-Fa-f]{4}\.){2}[0-9A-Fa-f]{4}$`)
	// Same as macPattern plus bare 12-hex, accepted during validation only.
	macLoosePattern = regexp.MustCompile(`^([0-9A-Fa-f]{2}[:-]){5}([0-9A-Fa-f]{2})$|^([0-9A-Fa-f]{4}\.){2}[0-9A-Fa-f]{4}$|^[0-9A-Fa-f]{12}$`)
	serialPattern   = regexp.MustCompile(`^[A-Za-z0-9]{8,}$`)
)

// MatchIPv4 reports whether s is a strict dotted-quad IPv4 address.
func MatchIPv4(s string) bool { return ipv4Pattern.MatchString(s) }

// MatchMAC reports whether s is a MAC address in colon, dash, cisco-dot or
// bare 12-hex form.
func MatchMAC(s string) bool { return macLoosePattern.MatchString(s) }

// defaultFieldPatterns maps each canonical field to the header regex that
// claims it, including the SADP export dialect ("IPv4 Address", "Device
// Serial Number", ...). Kept as data so vendor dialects can be added via
// an override file instead of code changes.
var defaultFieldPatterns = map[string]string{
	model.FieldIPAddress:    `^(ip|ip_?address|endereco_?ip|endere[çc]o(\s*ip)?|ip_?addr|ipv4|ip\s*address|ipv4\s*address)$`,
	model.FieldSerialNumber: `^(serial|serial_?number|numero_?serie|n[úu]mero.*s[ée]rie|sn|s/n|device\s*serial|device\s*serial\s*number)$`,
	model.FieldModel:        `^(model|modelo|model_?name|product|device_?type|device\s*type|tipo|type)$`,
	model.FieldManufacturer: `^(manufacturer|fabricante|vendor|marca|brand|make)$`,
	model.FieldHostname:     `^(hostname|host|name|nome|device_?name|device\s*name|nome_?dispositivo|tag)$`,
	model.FieldMACAddress:   `^(mac|mac_?address|mac\s*address|endereco_?mac|physical.*address)$`,
	model.FieldLocation:     `^(location|local|localizacao|localização|site|rack|setor|area|área)$`,
	model.FieldStatus:       `^(status|estado|state|ativo)$`,
	model.FieldDescription:  `^(description|descricao|descrição|notes|obs|observacao|observação|comments)$`,
	model.FieldFirmware:     `^(firmware|firmware_?version|software\s*version|software_?version|versao|versão|version)$`,
	model.FieldGateway:      `^(gateway|ipv4\s*gateway|default\s*gateway|gw)$`,
	model.FieldSubnetMask:   `^(subnet|subnet_?mask|mascara|máscara|netmask)$`,
	model.FieldHTTPPort:     `^(http\s*port|http_?port|port|porta|web\s*port)$`,
}

// PatternTable holds the compiled per-field header patterns in canonical
// field order.
type PatternTable struct {
	fields   []string
	patterns map[string]*regexp.Regexp
}

// DefaultPatterns returns the built-in pattern table.
func DefaultPatterns() *PatternTable {
	t, err := compilePatterns(defaultFieldPatterns)
	if err != nil {
		// The built-in table is covered by tests; a compile failure here
		// is a programming error.
		panic(err)
	}
	return t
}

// LoadPatternFile reads a JSON file mapping canonical field names to regex
// strings and merges it over the defaults. Unknown field names are
// rejected so typos do not silently drop a field.
func LoadPatternFile(path string) (*PatternTable, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading pattern file: %w", err)
	}
	var overrides map[string]string
	if err := json.Unmarshal(raw, &overrides); err != nil {
		return nil, fmt.Errorf("parsing pattern file: %w", err)
	}

	merged := make(map[string]string, len(defaultFieldPatterns))
	for field, expr := range defaultFieldPatterns {
		merged[field] = expr
	}
	for field, expr := range overrides {
		if _, ok := merged[field]; !ok {
			return nil, fmt.Errorf("pattern file references unknown field %q", field)
		}
		merged[field] = expr
	}
	return compilePatterns(merged)
}

func compilePatterns(src map[string]string) (*PatternTable, error) {
	t := &PatternTable{
		fields:   model.CanonicalFields,
		patterns: make(map[string]*regexp.Regexp, len(src)),
	}
	for field, expr := range src {
		re, err := regexp.Compile("(?i)" + expr)
		if err != nil {
			return nil, fmt.Errorf("compiling pattern for %s: %w", field, err)
		}
		t.patterns[field] = re
	}
	return t, nil
}

// Detect maps sheet headers to canonical fields. For each field the first
// matching header wins and the assignment is never overwritten; unmatched
// fields stay absent from the mapping.
func (t *PatternTable) Detect(headers []string) model.ColumnMapping {
	mapping := model.ColumnMapping{}
	for _, header := range headers {
		h := strings.TrimSpace(header)
		if h == "" {
			continue
		}
		for _, field := range t.fields {
			if _, claimed := mapping[field]; claimed {
				continue
			}
			if t.patterns[field].MatchString(h) {
				mapping[field] = header
			}
		}
	}
	return mapping
}

// AutoDetectColumnMapping runs detection with the built-in pattern table.
func AutoDetectColumnMapping(headers []string) model.ColumnMapping {
	return DefaultPatterns().Detect(headers)
}
