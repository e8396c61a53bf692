package parser

import (
	"context"
	"fmt"
	"log/slog"

	"circularscan/internal/config"
	"circularscan/internal/domain"
	"circularscan/internal/ports"
	"circularscan/internal/scanner"
)

// StrategySource implements DocumentSource via a registered scanner strategy.
type StrategySource struct {
	registry *scanner.Registry
	strategy string
	source   config.SourceConfig
	logger   *slog.Logger
}

var _ ports.DocumentSource = (*StrategySource)(nil)

// NewStrategySource wires the scanner registry with the configured source.
func NewStrategySource(reg *scanner.Registry, strategy string, source config.SourceConfig, log *slog.Logger) *StrategySource {
	return &StrategySource{
		registry: reg,
		strategy: strategy,
		source:   source,
		logger:   log,
	}
}

// FetchAll executes the configured scanner against the source endpoint.
// A PageError from the scanner is passed through together with the documents
// collected before the failing page.
func (s *StrategySource) FetchAll(ctx context.Context) ([]domain.Document, error) {
	if s.registry == nil {
		return nil, fmt.Errorf("scanner registry is not configured")
	}

	strategy, err := s.registry.Resolve(s.strategy)
	if err != nil {
		return nil, fmt.Errorf("source %s: %w", s.source.BaseURL, err)
	}

	req := scanner.Request{
		SiteName: s.source.BaseURL,
		ListURL:  s.source.BaseURL + s.source.ListPath,
		MaxPages: s.source.MaxPages,
	}

	s.debug("scan source", "list_url", req.ListURL, "max_pages", req.MaxPages)

	results, err := strategy.Scan(ctx, req)
	s.debug("scan done", "documents", len(results))
	return results, err
}

func (s *StrategySource) debug(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}
