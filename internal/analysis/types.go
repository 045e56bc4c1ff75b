// Package analysis asks an LLM to suggest invariants for a Move module.
// Suggestions are advisory: they are registered as descriptive entries and
// never evaluated.
package analysis

import (
	"fmt"
	"strings"

	"sui-invariant-monitor/internal/invariant"
	"sui-invariant-monitor/internal/sui"
)

type Provider string

const (
	ProviderOpenRouter Provider = "openrouter"
	ProviderOllama     Provider = "ollama"

	OpenRouterBaseURL      = "https://openrouter.ai/api/v1"
	DefaultOpenRouterModel = "openai/gpt-4o-mini"
	DefaultOllamaModel     = "llama3.2"
)

func ParseProvider(raw string) (Provider, error) {
	switch p := Provider(strings.ToLower(strings.TrimSpace(raw))); p {
	case ProviderOpenRouter, ProviderOllama:
		return p, nil
	case "":
		return ProviderOllama, nil
	default:
		return "", fmt.Errorf("unsupported llm provider %q", raw)
	}
}

type SuggestedInvariant struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Formula     string   `json:"formula"`
	Severity    string   `json:"severity"`
	FieldsUsed  []string `json:"fields_used"`
}

// Advisory converts a suggestion into a non-executable registry entry.
func (s SuggestedInvariant) Advisory(source string) *invariant.Advisory {
	return &invariant.Advisory{
		ID:          s.ID,
		Name:        s.Name,
		Description: s.Description,
		Formula:     s.Formula,
		Severity:    s.Severity,
		Source:      source,
	}
}

type ModuleAnalysis struct {
	PackageID           string               `json:"package_id"`
	ModuleName          string               `json:"module_name"`
	SuggestedInvariants []SuggestedInvariant `json:"suggested_invariants"`
	AnalysisNotes       string               `json:"analysis_notes"`
}

type Request struct {
	PackageID  string   `json:"package_id" binding:"required"`
	ModuleName string   `json:"module_name,omitempty"`
	Provider   Provider `json:"llm_provider"`
	APIKey     string   `json:"api_key,omitempty"`
	Model      string   `json:"model,omitempty"`
	OllamaURL  string   `json:"ollama_url,omitempty"`
	Network    string   `json:"network,omitempty"`
}

type Response struct {
	Success         bool                 `json:"success"`
	Message         string               `json:"message"`
	Modules         []sui.ModuleMetadata `json:"modules"`
	AnalysisResults []ModuleAnalysis     `json:"analysis_results"`
}
