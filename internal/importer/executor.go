// Package importer writes validated device records into inventory
// storage. Records are committed one at a time so a bad row fails alone
// instead of aborting the batch.
package importer

import (
	"fmt"
	"time"

	"github.com/onliops/inventoryd/internal/log"
	"github.com/onliops/inventoryd/internal/model"
	"github.com/onliops/inventoryd/internal/storage"
	"github.com/onliops/inventoryd/internal/validation"
)

// Executor turns device records into inventory rows.
type Executor struct {
	store storage.Storage
	now   func() time.Time
}

// NewExecutor creates an executor writing through the given storage.
func NewExecutor(store storage.Storage) *Executor {
	return &Executor{store: store, now: time.Now}
}

// Import commits the records into the project's inventory. Records that
// fail validation are counted as failed and never reach storage; the
// rest are upserted in order.
func (e *Executor) Import(projectID string, records []model.DeviceRecord) (*model.ImportOutcome, error) {
	outcome := &model.ImportOutcome{Errors: []string{}}

	categories, err := e.store.ListCategories()
	if err != nil {
		return nil, fmt.Errorf("loading categories: %w", err)
	}
	knownSlugs := make(map[string]bool, len(categories))
	categoryIDs := make(map[string]string, len(categories))
	for _, c := range categories {
		knownSlugs[c.Slug] = true
		categoryIDs[c.Slug] = c.ID
	}

	vlan, err := e.store.DefaultVLAN(projectID)
	if err != nil {
		return nil, fmt.Errorf("resolving default vlan: %w", err)
	}

	for i := range records {
		rec := &records[i]

		v := rec.Validation
		if v == nil {
			fresh := validation.Validate(rec)
			v = &fresh
		}
		if !v.Valid {
			outcome.Failed++
			for _, msg := range v.Errors {
				outcome.Errors = append(outcome.Errors, fmt.Sprintf("%s: %s", rec.Identity(), msg))
			}
			continue
		}

		device := e.buildDevice(projectID, rec, knownSlugs, categoryIDs, vlan)
		if err := e.store.UpsertDevice(device); err != nil {
			outcome.Failed++
			outcome.Errors = append(outcome.Errors, fmt.Sprintf("%s: %v", rec.Identity(), err))
			continue
		}
		outcome.Success++
	}

	log.Info("import batch finished",
		"project_id", projectID,
		"success", outcome.Success,
		"failed", outcome.Failed)

	return outcome, nil
}

func (e *Executor) buildDevice(projectID string, rec *model.DeviceRecord, knownSlugs map[string]bool, categoryIDs map[string]string, vlan *model.VLAN) *model.Device {
	canonical := rec.Canonical

	slug := FallbackCategory
	reason := ""
	if rec.Categorization != nil {
		slug = NormalizeCategorySlug(rec.Categorization.Slug, knownSlugs)
		reason = rec.Categorization.Reason
	}

	manufacturer := canonical.Get(model.FieldManufacturer)
	if manufacturer == "" && rec.Categorization != nil {
		manufacturer = rec.Categorization.Manufacturer
	}
	if manufacturer == "" {
		manufacturer = DetectManufacturer(canonical.Get(model.FieldModel), rec.Serial())
	}

	deviceModel := canonical.Get(model.FieldModel)
	if deviceModel == "" {
		deviceModel = "Unknown"
	}

	notes := fmt.Sprintf("Imported from spreadsheet on %s.", e.now().Format("2006-01-02 15:04"))
	if reason != "" {
		notes += " " + reason
	}

	device := &model.Device{
		SerialNumber:    rec.Serial(),
		IPAddress:       rec.IP(),
		MACAddress:      canonical.Get(model.FieldMACAddress),
		Model:           deviceModel,
		Manufacturer:    manufacturer,
		DeviceType:      slug,
		CategoryID:      categoryIDs[slug],
		FirmwareVersion: canonical.Get(model.FieldFirmware),
		Hostname:        canonical.Get(model.FieldHostname),
		Status:          NormalizeStatus(canonical.Get(model.FieldStatus)),
		Notes:           notes,
		ProjectID:       projectID,
	}
	if vlan != nil {
		device.VLANID = vlan.ID
	}
	return device
}
