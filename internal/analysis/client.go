package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"sui-invariant-monitor/internal/sui"
)

var ErrMissingAPIKey = errors.New("openrouter api key required")

const (
	requestTimeout = 120 * time.Second
	temperature    = 0.3
	maxTokens      = 2000
)

type Options struct {
	Provider Provider
	APIKey   string
	Model    string
	// BaseURL overrides the provider endpoint. For Ollama it is the server
	// root, e.g. http://localhost:11434.
	BaseURL string
}

// Analyzer produces invariant suggestions for one module.
type Analyzer interface {
	AnalyzeModule(ctx context.Context, md sui.ModuleMetadata) (ModuleAnalysis, error)
}

// Client talks to OpenRouter or Ollama through their OpenAI-compatible
// chat completion endpoints.
type Client struct {
	api      *openai.Client
	provider Provider
	model    string
}

func NewClient(opts Options) (*Client, error) {
	httpClient := &http.Client{Timeout: requestTimeout}

	var cfg openai.ClientConfig
	switch opts.Provider {
	case ProviderOpenRouter:
		if opts.APIKey == "" {
			return nil, ErrMissingAPIKey
		}
		cfg = openai.DefaultConfig(opts.APIKey)
		cfg.BaseURL = OpenRouterBaseURL
		if opts.BaseURL != "" {
			cfg.BaseURL = strings.TrimRight(opts.BaseURL, "/")
		}
		httpClient.Transport = headerTransport{base: http.DefaultTransport, headers: map[string]string{
			"HTTP-Referer": "http://localhost",
			"X-Title":      "sui-invariant-monitor",
		}}
		if opts.Model == "" {
			opts.Model = DefaultOpenRouterModel
		}
	case ProviderOllama:
		// Ollama ignores the key but the client always sends one.
		cfg = openai.DefaultConfig("ollama")
		base := opts.BaseURL
		if base == "" {
			base = "http://localhost:11434"
		}
		cfg.BaseURL = strings.TrimRight(base, "/") + "/v1"
		if opts.Model == "" {
			opts.Model = DefaultOllamaModel
		}
	default:
		return nil, fmt.Errorf("unsupported llm provider %q", opts.Provider)
	}
	cfg.HTTPClient = httpClient

	return &Client{api: openai.NewClientWithConfig(cfg), provider: opts.Provider, model: opts.Model}, nil
}

func (c *Client) AnalyzeModule(ctx context.Context, md sui.ModuleMetadata) (ModuleAnalysis, error) {
	req := openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    []openai.ChatCompletionMessage{{Role: openai.ChatMessageRoleUser, Content: BuildPrompt(md)}},
		Temperature: temperature,
		MaxTokens:   maxTokens,
	}
	if c.provider == ProviderOllama {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject}
	}

	resp, err := c.api.CreateChatCompletion(ctx, req)
	if err != nil {
		return ModuleAnalysis{}, fmt.Errorf("%s request failed: %w", c.provider, err)
	}
	if len(resp.Choices) == 0 {
		return ModuleAnalysis{}, fmt.Errorf("%s returned no choices", c.provider)
	}

	content := resp.Choices[0].Message.Content
	if content == "" {
		for _, part := range resp.Choices[0].Message.MultiContent {
			content += part.Text
		}
	}

	out, err := ParseAnalysis(content)
	if err != nil {
		return ModuleAnalysis{}, err
	}
	out.PackageID = md.PackageID
	out.ModuleName = md.ModuleName
	return out, nil
}

// ParseAnalysis decodes the model's JSON answer. Markdown fences and prose
// around the object are tolerated; a malformed suggestion list yields no
// suggestions rather than an error.
func ParseAnalysis(content string) (ModuleAnalysis, error) {
	body := strings.TrimSpace(content)
	if start, end := strings.Index(body, "{"), strings.LastIndex(body, "}"); start >= 0 && end > start {
		body = body[start : end+1]
	}

	var doc map[string]json.RawMessage
	if err := json.Unmarshal([]byte(body), &doc); err != nil {
		return ModuleAnalysis{}, fmt.Errorf("parse llm json: %w", err)
	}

	out := ModuleAnalysis{SuggestedInvariants: []SuggestedInvariant{}}
	if raw, ok := doc["suggested_invariants"]; ok {
		var list []SuggestedInvariant
		if err := json.Unmarshal(raw, &list); err == nil && list != nil {
			out.SuggestedInvariants = list
		}
	}
	if raw, ok := doc["analysis_notes"]; ok {
		_ = json.Unmarshal(raw, &out.AnalysisNotes)
	}
	return out, nil
}

type headerTransport struct {
	base    http.RoundTripper
	headers map[string]string
}

func (t headerTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	r = r.Clone(r.Context())
	for k, v := range t.headers {
		r.Header.Set(k, v)
	}
	return t.base.RoundTrip(r)
}
