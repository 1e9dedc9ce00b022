package model

// Canonical field names that sheet columns are mapped onto. The order here
// is the presentation order used by preview output.
const (
	FieldIPAddress    = "ip_address"
	FieldSerialNumber = "serial_number"
	FieldModel        = "model"
	FieldManufacturer = "manufacturer"
	FieldHostname     = "hostname"
	FieldMACAddress   = "mac_address"
	FieldLocation     = "location"
	FieldStatus       = "status"
	FieldDescription  = "description"
	FieldFirmware     = "firmware"
	FieldGateway      = "gateway"
	FieldSubnetMask   = "subnet_mask"
	FieldHTTPPort     = "http_port"
)

// CanonicalFields lists every canonical field name.
var CanonicalFields = []string{
	FieldIPAddress, FieldSerialNumber, FieldModel, FieldManufacturer,
	FieldHostname, FieldMACAddress, FieldLocation, FieldStatus,
	FieldDescription, FieldFirmware, FieldGateway, FieldSubnetMask,
	FieldHTTPPort,
}

// ColumnMapping maps a canonical field name to the source header that
// supplies it. A field absent from the map is unmapped.
type ColumnMapping map[string]string

// Canonical holds the mapped, trimmed values of one data row keyed by
// canonical field name.
type Canonical map[string]string

// Get returns the value for a canonical field, empty if unset.
func (c Canonical) Get(field string) string {
	return c[field]
}

// Provenance records where a device record came from in the workbook.
type Provenance struct {
	Sheet         string   `json:"sheet"`
	OriginalIndex int      `json:"original_index"`
	OriginalRow   []string `json:"original_row,omitempty"`
}

// Correction annotates an IP repair applied to a record.
type Correction struct {
	OriginalIP  string `json:"original_ip"`
	CorrectedIP string `json:"corrected_ip,omitempty"`
	Method      string `json:"method,omitempty"` // serial-derived or sequential
	Confidence  string `json:"confidence,omitempty"`
	Corrected   bool   `json:"corrected"`
	Error       string `json:"error,omitempty"`
}

// Validation is the per-record outcome of the device validator. It gates
// import but is never persisted.
type Validation struct {
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// Categorization is a suggested category for a record, from the sheet
// configuration or from the model.
type Categorization struct {
	OriginalIndex int    `json:"original_index"`
	Slug          string `json:"suggested_category"`
	Confidence    string `json:"confidence,omitempty"`
	Reason        string `json:"reason,omitempty"`
	Manufacturer  string `json:"manufacturer,omitempty"`
}

// DeviceRecord is one data row projected through a ColumnMapping, with the
// annotations later pipeline stages attach.
type DeviceRecord struct {
	Canonical      Canonical       `json:"canonical"`
	Provenance     Provenance      `json:"provenance"`
	Correction     *Correction     `json:"correction,omitempty"`
	Validation     *Validation     `json:"validation,omitempty"`
	Categorization *Categorization `json:"categorization,omitempty"`
}

// IP returns the record's current IP value.
func (r *DeviceRecord) IP() string { return r.Canonical.Get(FieldIPAddress) }

// Serial returns the record's serial number value.
func (r *DeviceRecord) Serial() string { return r.Canonical.Get(FieldSerialNumber) }

// Identity returns a human-readable identifier for error messages,
// preferring the serial number.
func (r *DeviceRecord) Identity() string {
	if s := r.Serial(); s != "" {
		return s
	}
	if ip := r.IP(); ip != "" {
		return ip
	}
	return "(unidentified)"
}

// ImportOutcome is the aggregate result of an import batch.
type ImportOutcome struct {
	Success int      `json:"success"`
	Failed  int      `json:"failed"`
	Errors  []string `json:"errors"`
}
