package analysis

import (
	"context"
	"fmt"
	"log/slog"

	"sui-invariant-monitor/internal/sui"
)

// MetadataSource is the part of the node client the analysis path needs.
type MetadataSource interface {
	ModuleMetadata(ctx context.Context, packageID, module string) (sui.ModuleMetadata, error)
	PackageModules(ctx context.Context, packageID string) ([]string, error)
}

// Service runs the metadata fetch and LLM analysis for a package.
type Service struct {
	logger      *slog.Logger
	defaults    Options
	sourceFor   func(network string) MetadataSource
	newAnalyzer func(Options) (Analyzer, error)
}

// NewService uses sourceFor to pick the node for a request's network; an
// empty network means the monitor's own node. defaults fill in the API key,
// Ollama URL and model when a request leaves them empty.
func NewService(logger *slog.Logger, defaults Options, sourceFor func(network string) MetadataSource) *Service {
	return &Service{
		logger:    logger,
		defaults:  defaults,
		sourceFor: sourceFor,
		newAnalyzer: func(o Options) (Analyzer, error) {
			return NewClient(o)
		},
	}
}

func (s *Service) Metadata(ctx context.Context, network, packageID, module string) (sui.ModuleMetadata, error) {
	return s.sourceFor(network).ModuleMetadata(ctx, packageID, module)
}

// Analyze never returns an error: failures are reported in the response
// body, with partial results kept.
func (s *Service) Analyze(ctx context.Context, req Request) Response {
	fail := func(msg string, modules []sui.ModuleMetadata) Response {
		if modules == nil {
			modules = []sui.ModuleMetadata{}
		}
		return Response{Success: false, Message: msg, Modules: modules, AnalysisResults: []ModuleAnalysis{}}
	}
	src := s.sourceFor(req.Network)

	names := []string{req.ModuleName}
	if req.ModuleName == "" {
		var err error
		names, err = src.PackageModules(ctx, req.PackageID)
		if err != nil {
			return fail(fmt.Sprintf("Failed to fetch package modules: %v", err), nil)
		}
	}
	if len(names) == 0 {
		return fail("No modules found in package", nil)
	}

	modules := make([]sui.ModuleMetadata, 0, len(names))
	for _, name := range names {
		md, err := src.ModuleMetadata(ctx, req.PackageID, name)
		if err != nil {
			s.logger.Warn("failed to fetch module metadata", "package_id", req.PackageID, "module", name, "error", err)
			continue
		}
		modules = append(modules, md)
	}
	if len(modules) == 0 {
		return fail("Failed to fetch any module metadata", nil)
	}

	analyzer, err := s.newAnalyzer(s.options(req))
	if err != nil {
		return fail(fmt.Sprintf("Failed to create LLM client: %v", err), modules)
	}

	results := make([]ModuleAnalysis, 0, len(modules))
	suggestions := 0
	for _, md := range modules {
		res, err := analyzer.AnalyzeModule(ctx, md)
		if err != nil {
			s.logger.Warn("failed to analyze module", "module", md.ModuleName, "error", err)
			continue
		}
		suggestions += len(res.SuggestedInvariants)
		results = append(results, res)
	}

	return Response{
		Success:         true,
		Message:         fmt.Sprintf("Analyzed %d module(s), found %d invariants", len(results), suggestions),
		Modules:         modules,
		AnalysisResults: results,
	}
}

func (s *Service) options(req Request) Options {
	o := Options{Provider: req.Provider, APIKey: req.APIKey, Model: req.Model}
	if o.Provider == "" {
		o.Provider = ProviderOllama
	}
	if o.APIKey == "" && o.Provider == ProviderOpenRouter {
		o.APIKey = s.defaults.APIKey
	}
	if o.Model == "" {
		o.Model = s.defaults.Model
	}
	if o.Provider == ProviderOllama {
		o.BaseURL = req.OllamaURL
		if o.BaseURL == "" {
			o.BaseURL = s.defaults.BaseURL
		}
	}
	return o
}
