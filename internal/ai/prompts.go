package ai

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

//go:embed prompts/*.md
var promptFS embed.FS

// ErrPromptNotFound is the single failure mode for a missing template:
// there is no inline fallback path.
var ErrPromptNotFound = errors.New("prompt template not found")

// Prompt template names.
const (
	PromptCategorizeDevices  = "categorize_devices"
	PromptAnalyzeSpreadsheet = "analyze_spreadsheet"
	PromptAssistantChat      = "assistant_chat"
)

// Prompt is a rendered template with its generation parameters from the
// frontmatter.
type Prompt struct {
	Name        string
	Content     string
	Temperature float64
	MaxTokens   int
}

var frontmatterPattern = regexp.MustCompile(`(?s)^---\n(.*?)\n---\n(.*)$`)

// LoadPrompt loads a Markdown template, parses its frontmatter and
// substitutes {{UPPERCASE_KEY}} placeholders. Non-string values render as
// indented JSON.
func LoadPrompt(name string, vars map[string]interface{}) (*Prompt, error) {
	raw, err := promptFS.ReadFile("prompts/" + name + ".md")
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrPromptNotFound, name)
	}

	p := &Prompt{
		Name:        name,
		Content:     string(raw),
		Temperature: 0.1,
		MaxTokens:   defaultMaxTokens,
	}

	if m := frontmatterPattern.FindStringSubmatch(string(raw)); m != nil {
		p.Content = strings.TrimSpace(m[2])
		for _, line := range strings.Split(m[1], "\n") {
			key, value, ok := strings.Cut(line, ":")
			if !ok {
				continue
			}
			key = strings.TrimSpace(key)
			value = strings.TrimSpace(value)
			switch key {
			case "temperature":
				if f, err := strconv.ParseFloat(value, 64); err == nil {
					p.Temperature = f
				}
			case "max_tokens":
				if n, err := strconv.Atoi(value); err == nil {
					p.MaxTokens = n
				}
			}
		}
	}

	for key, value := range vars {
		placeholder := "{{" + strings.ToUpper(key) + "}}"
		p.Content = strings.ReplaceAll(p.Content, placeholder, renderVar(value))
	}

	return p, nil
}

func renderVar(value interface{}) string {
	switch v := value.(type) {
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	default:
		raw, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(raw)
	}
}
