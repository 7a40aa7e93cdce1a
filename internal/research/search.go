package research

import (
	"context"
	"fmt"

	"google.golang.org/api/customsearch/v1"
	"google.golang.org/api/option"

	"tailorcv/internal/breaker"
	"tailorcv/internal/config"
	"tailorcv/internal/errors"
)

// maxSearchResults is the Custom Search API page size limit.
const maxSearchResults = 10

// Result is one web search hit.
type Result struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Snippet string `json:"snippet,omitempty"`
}

// Searcher runs web searches.
type Searcher interface {
	Search(ctx context.Context, query string, n int) ([]Result, error)
}

// GoogleSearcher queries a Google Programmable Search engine.
type GoogleSearcher struct {
	svc     *customsearch.Service
	cx      string
	breaker *breaker.Breaker[*customsearch.Search]
}

// NewGoogleSearcher creates a searcher for the configured engine. Extra
// client options are appended after the API key.
func NewGoogleSearcher(ctx context.Context, cfg config.ResearchConfig, logger *errors.Logger, opts ...option.ClientOption) (*GoogleSearcher, error) {
	if cfg.APIKey == "" || cfg.EngineID == "" {
		return nil, errors.NewConfigError(errors.ErrCodeMissingAPIKey,
			"research requires research.apiKey and research.engineID", nil)
	}

	svc, err := customsearch.NewService(ctx, append([]option.ClientOption{option.WithAPIKey(cfg.APIKey)}, opts...)...)
	if err != nil {
		return nil, errors.NewNetworkError(errors.ErrCodeResearchFailed,
			"failed to create customsearch service", err)
	}

	return &GoogleSearcher{
		svc:     svc,
		cx:      cfg.EngineID,
		breaker: breaker.New[*customsearch.Search]("research-search", cfg.CircuitBreaker, logger),
	}, nil
}

// Search returns up to n results for query.
func (g *GoogleSearcher) Search(ctx context.Context, query string, n int) ([]Result, error) {
	if n <= 0 || n > maxSearchResults {
		n = maxSearchResults
	}

	resp, err := g.breaker.Execute(func() (*customsearch.Search, error) {
		return g.svc.Cse.List().Cx(g.cx).Q(query).Num(int64(n)).Context(ctx).Do()
	})
	if err != nil {
		return nil, errors.NewNetworkError(errors.ErrCodeResearchFailed,
			fmt.Sprintf("search failed for %q", query), err).WithContext("query", query)
	}

	results := make([]Result, 0, len(resp.Items))
	for _, item := range resp.Items {
		if item == nil || item.Link == "" {
			continue
		}
		results = append(results, Result{Title: item.Title, Link: item.Link, Snippet: item.Snippet})
	}
	return results, nil
}

// Stats reports the search breaker state.
func (g *GoogleSearcher) Stats() map[string]any {
	return g.breaker.Stats()
}
