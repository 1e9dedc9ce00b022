package ai

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/onliops/inventoryd/internal/model"
)

// maxCategorizeBatch caps how many device summaries go into one prompt so
// small local models keep their output coherent.
const maxCategorizeBatch = 50

// DeviceSummary is the slice of a record the categorization prompt sees.
type DeviceSummary struct {
	Model        string `json:"model,omitempty"`
	Manufacturer string `json:"manufacturer,omitempty"`
	Hostname     string `json:"hostname,omitempty"`
	Description  string `json:"description,omitempty"`
	SerialNumber string `json:"serial_number,omitempty"`
}

// Summarize builds a prompt-sized view of a record.
func Summarize(rec *model.DeviceRecord) DeviceSummary {
	return DeviceSummary{
		Model:        rec.Canonical.Get(model.FieldModel),
		Manufacturer: rec.Canonical.Get(model.FieldManufacturer),
		Hostname:     rec.Canonical.Get(model.FieldHostname),
		Description:  rec.Canonical.Get(model.FieldDescription),
		SerialNumber: rec.Serial(),
	}
}

// BuildCategorizePrompt renders the categorization prompt for a batch of
// device summaries. The batch is capped at 50; callers chunk larger sets.
func BuildCategorizePrompt(devices []DeviceSummary, categories []model.Category) (*Prompt, error) {
	if len(devices) > maxCategorizeBatch {
		devices = devices[:maxCategorizeBatch]
	}

	categoryList := ""
	for _, cat := range categories {
		categoryList += fmt.Sprintf("- %s: %s\n", cat.Slug, cat.Name)
	}

	return LoadPrompt(PromptCategorizeDevices, map[string]interface{}{
		"categories": categoryList,
		"devices":    devices,
	})
}

// ParseCategorizations decodes a model response into category suggestions.
func ParseCategorizations(response string) ([]model.Categorization, error) {
	raw, err := ExtractJSON(response)
	if err != nil {
		return nil, err
	}
	var suggestions []model.Categorization
	if err := json.Unmarshal(raw, &suggestions); err != nil {
		return nil, &ParseError{Raw: truncate(response)}
	}
	return suggestions, nil
}

// CategorizeDevices asks the model to assign a category slug to each
// device summary.
func (c *Client) CategorizeDevices(ctx context.Context, devices []DeviceSummary, categories []model.Category) ([]model.Categorization, error) {
	prompt, err := BuildCategorizePrompt(devices, categories)
	if err != nil {
		return nil, err
	}

	result, err := c.Generate(ctx, prompt.Content, GenerateOptions{
		Temperature: prompt.Temperature,
		MaxTokens:   prompt.MaxTokens,
	})
	if err != nil {
		return nil, err
	}

	return ParseCategorizations(result.Response)
}

// SheetAnalysis is the model's judgement of one sheet.
type SheetAnalysis struct {
	Name                 string            `json:"name"`
	IsDeviceSheet        bool              `json:"is_device_sheet"`
	SuggestedCategory    string            `json:"suggested_category,omitempty"`
	ColumnMapping        map[string]string `json:"column_mapping,omitempty"`
	EstimatedDeviceCount int               `json:"estimated_device_count,omitempty"`
}

// WorkbookAnalysis is the model's per-sheet classification of a workbook.
type WorkbookAnalysis struct {
	Sheets []SheetAnalysis `json:"sheets"`
}

// Sheet returns the analysis for a named sheet, nil if absent.
func (a *WorkbookAnalysis) Sheet(name string) *SheetAnalysis {
	if a == nil {
		return nil
	}
	for i := range a.Sheets {
		if a.Sheets[i].Name == name {
			return &a.Sheets[i]
		}
	}
	return nil
}

// BuildAnalyzePrompt renders the workbook analysis prompt from parsed
// sheet summaries.
func BuildAnalyzePrompt(sheets []model.SheetInfo) (*Prompt, error) {
	sheetLines := ""
	headers := map[string][]string{}
	type sampled struct {
		Name   string              `json:"name"`
		Sample []map[string]string `json:"sample,omitempty"`
	}
	var samples []sampled

	for _, s := range sheets {
		sheetLines += fmt.Sprintf("- %q: %d rows\n", s.Name, s.RowCount)
		headers[s.Name] = s.Headers
		sample := s.SampleRows
		if len(sample) > 2 {
			sample = sample[:2]
		}
		samples = append(samples, sampled{Name: s.Name, Sample: sample})
	}

	return LoadPrompt(PromptAnalyzeSpreadsheet, map[string]interface{}{
		"sheets":      sheetLines,
		"headers":     headers,
		"sample_data": samples,
	})
}

// ParseWorkbookAnalysis decodes a model response into a workbook analysis.
func ParseWorkbookAnalysis(response string) (*WorkbookAnalysis, error) {
	raw, err := ExtractJSON(response)
	if err != nil {
		return nil, err
	}
	var analysis WorkbookAnalysis
	if err := json.Unmarshal(raw, &analysis); err != nil {
		return nil, &ParseError{Raw: truncate(response)}
	}
	return &analysis, nil
}

// AnalyzeWorkbook asks the model which sheets carry device data and how
// their columns map onto canonical fields.
func (c *Client) AnalyzeWorkbook(ctx context.Context, sheets []model.SheetInfo) (*WorkbookAnalysis, error) {
	prompt, err := BuildAnalyzePrompt(sheets)
	if err != nil {
		return nil, err
	}

	result, err := c.Generate(ctx, prompt.Content, GenerateOptions{
		Temperature: prompt.Temperature,
		MaxTokens:   prompt.MaxTokens,
	})
	if err != nil {
		return nil, err
	}

	return ParseWorkbookAnalysis(result.Response)
}

func truncate(s string) string {
	if len(s) > rawTruncateLen {
		return s[:rawTruncateLen]
	}
	return s
}
