package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sui-invariant-monitor/internal/sui"
)

const llmAnswer = `{
  "suggested_invariants": [
    {"id": "LLM-001", "name": "Reserve floor", "description": "Reserves cover fees",
     "formula": "reserves >= fees", "severity": "high", "fields_used": ["reserves", "fees"]}
  ],
  "analysis_notes": "Pool looks conventional"
}`

func poolModule() sui.ModuleMetadata {
	return sui.ModuleMetadata{
		PackageID:  "0xpkg",
		ModuleName: "pool",
		Structs: []sui.StructMetadata{{
			Name:   "Pool",
			Fields: []sui.FieldMetadata{{Name: "reserves", Type: "U64"}, {Name: "fees", Type: "U64"}},
		}},
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestBuildPrompt(t *testing.T) {
	p := BuildPrompt(poolModule())
	assert.Contains(t, p, "Package: 0xpkg\nModule: pool")
	assert.Contains(t, p, "struct Pool {\n  reserves: U64,\n  fees: U64,\n}")
	assert.Contains(t, p, `"suggested_invariants": [`)
}

func TestParseAnalysis(t *testing.T) {
	got, err := ParseAnalysis(llmAnswer)
	require.NoError(t, err)
	require.Len(t, got.SuggestedInvariants, 1)
	assert.Equal(t, "LLM-001", got.SuggestedInvariants[0].ID)
	assert.Equal(t, []string{"reserves", "fees"}, got.SuggestedInvariants[0].FieldsUsed)
	assert.Equal(t, "Pool looks conventional", got.AnalysisNotes)
}

func TestParseAnalysis_Tolerance(t *testing.T) {
	fenced := "Here you go:\n```json\n" + llmAnswer + "\n```"
	got, err := ParseAnalysis(fenced)
	require.NoError(t, err)
	assert.Len(t, got.SuggestedInvariants, 1)

	got, err = ParseAnalysis(`{"suggested_invariants": "none", "analysis_notes": 5}`)
	require.NoError(t, err)
	assert.Empty(t, got.SuggestedInvariants)
	assert.NotNil(t, got.SuggestedInvariants)
	assert.Empty(t, got.AnalysisNotes)

	_, err = ParseAnalysis("I cannot help with that")
	assert.Error(t, err)
}

func TestSuggestionAdvisory(t *testing.T) {
	got, _ := ParseAnalysis(llmAnswer)
	a := got.SuggestedInvariants[0].Advisory("llm")
	assert.Equal(t, "LLM-001", a.Identity().ID)
	assert.Equal(t, "reserves >= fees", a.Formula)
	assert.Equal(t, "high", a.Severity)
}

func TestParseProvider(t *testing.T) {
	p, err := ParseProvider("OpenRouter")
	require.NoError(t, err)
	assert.Equal(t, ProviderOpenRouter, p)
	p, err = ParseProvider("")
	require.NoError(t, err)
	assert.Equal(t, ProviderOllama, p)
	_, err = ParseProvider("bard")
	assert.Error(t, err)
}

func TestNewClient_OpenRouterNeedsKey(t *testing.T) {
	_, err := NewClient(Options{Provider: ProviderOpenRouter})
	assert.ErrorIs(t, err, ErrMissingAPIKey)
}

func chatServer(t *testing.T, check func(r *http.Request, body map[string]any)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		check(r, body)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      "cmpl-1",
			"object":  "chat.completion",
			"created": 1,
			"model":   body["model"],
			"choices": []any{map[string]any{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": llmAnswer},
			}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestClient_OllamaUsesOpenAICompatibleEndpoint(t *testing.T) {
	srv := chatServer(t, func(r *http.Request, body map[string]any) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "llama3.2", body["model"])
		assert.InDelta(t, 0.3, body["temperature"], 1e-6)
		assert.EqualValues(t, 2000, body["max_tokens"])
		format := body["response_format"].(map[string]any)
		assert.Equal(t, "json_object", format["type"])
	})

	c, err := NewClient(Options{Provider: ProviderOllama, BaseURL: srv.URL + "/"})
	require.NoError(t, err)
	got, err := c.AnalyzeModule(context.Background(), poolModule())
	require.NoError(t, err)
	assert.Equal(t, "0xpkg", got.PackageID)
	assert.Equal(t, "pool", got.ModuleName)
	assert.Len(t, got.SuggestedInvariants, 1)
}

func TestClient_OpenRouterHeaders(t *testing.T) {
	srv := chatServer(t, func(r *http.Request, body map[string]any) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		assert.Equal(t, "sui-invariant-monitor", r.Header.Get("X-Title"))
		assert.Equal(t, "http://localhost", r.Header.Get("HTTP-Referer"))
		assert.Equal(t, "anthropic/claude-3.5-sonnet", body["model"])
		_, hasFormat := body["response_format"]
		assert.False(t, hasFormat)
	})

	c, err := NewClient(Options{Provider: ProviderOpenRouter, APIKey: "sk-test", Model: "anthropic/claude-3.5-sonnet", BaseURL: srv.URL})
	require.NoError(t, err)
	_, err = c.AnalyzeModule(context.Background(), poolModule())
	require.NoError(t, err)
}

type fakeSource struct {
	modules map[string]sui.ModuleMetadata
	listErr error
}

func (f fakeSource) ModuleMetadata(_ context.Context, _, module string) (sui.ModuleMetadata, error) {
	md, ok := f.modules[module]
	if !ok {
		return sui.ModuleMetadata{}, sui.ErrObjectNotFound
	}
	return md, nil
}

func (f fakeSource) PackageModules(context.Context, string) ([]string, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return []string{"missing", "pool"}, nil
}

type fakeAnalyzer struct{ opts Options }

func (a *fakeAnalyzer) AnalyzeModule(_ context.Context, md sui.ModuleMetadata) (ModuleAnalysis, error) {
	res, _ := ParseAnalysis(llmAnswer)
	res.PackageID, res.ModuleName = md.PackageID, md.ModuleName
	return res, nil
}

func newTestService(src fakeSource) (*Service, *fakeAnalyzer, *string) {
	var network string
	fa := &fakeAnalyzer{}
	s := NewService(discardLogger(), Options{APIKey: "sk-default", BaseURL: "http://ollama:11434"}, func(n string) MetadataSource {
		network = n
		return src
	})
	s.newAnalyzer = func(o Options) (Analyzer, error) {
		if o.Provider == ProviderOpenRouter && o.APIKey == "" {
			return nil, ErrMissingAPIKey
		}
		fa.opts = o
		return fa, nil
	}
	return s, fa, &network
}

func TestService_AnalyzeWholePackage(t *testing.T) {
	s, fa, network := newTestService(fakeSource{modules: map[string]sui.ModuleMetadata{"pool": poolModule()}})

	resp := s.Analyze(context.Background(), Request{PackageID: "0xpkg", Provider: ProviderOpenRouter, Network: "testnet"})
	assert.True(t, resp.Success)
	assert.Equal(t, "Analyzed 1 module(s), found 1 invariants", resp.Message)
	assert.Len(t, resp.Modules, 1)
	assert.Equal(t, "testnet", *network)
	assert.Equal(t, "sk-default", fa.opts.APIKey)
}

func TestService_AnalyzeFailures(t *testing.T) {
	s, _, _ := newTestService(fakeSource{listErr: errors.New("rpc down")})
	resp := s.Analyze(context.Background(), Request{PackageID: "0xpkg"})
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Message, "Failed to fetch package modules")
	assert.NotNil(t, resp.Modules)

	s, _, _ = newTestService(fakeSource{})
	resp = s.Analyze(context.Background(), Request{PackageID: "0xpkg", ModuleName: "nope"})
	assert.Equal(t, "Failed to fetch any module metadata", resp.Message)
}

func TestService_OllamaDefaults(t *testing.T) {
	s, fa, _ := newTestService(fakeSource{modules: map[string]sui.ModuleMetadata{"pool": poolModule()}})
	resp := s.Analyze(context.Background(), Request{PackageID: "0xpkg", ModuleName: "pool"})
	require.True(t, resp.Success)
	assert.Equal(t, ProviderOllama, fa.opts.Provider)
	assert.Equal(t, "http://ollama:11434", fa.opts.BaseURL)
	assert.Empty(t, fa.opts.APIKey)
}
