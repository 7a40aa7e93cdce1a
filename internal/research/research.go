// Package research gathers public information about a hiring company so the
// tailoring prompt can reflect its domain and values.
package research

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"tailorcv/internal/config"
	"tailorcv/internal/errors"
)

const (
	// Characters of page text kept per source in the prompt.
	sourceTextLimit    = 1500
	maxParallelFetches = 4
)

// Source is one page or search hit backing the brief.
type Source struct {
	URL   string `json:"url"`
	Title string `json:"title,omitempty"`
	Text  string `json:"text"`
}

// CompanyBrief summarizes what research found about a company.
type CompanyBrief struct {
	Company string   `json:"company"`
	Website string   `json:"website,omitempty"`
	Sources []Source `json:"sources"`
}

// Empty reports whether research produced nothing usable.
func (b *CompanyBrief) Empty() bool {
	return b == nil || len(b.Sources) == 0
}

// Prompt renders the brief as context for the tailoring prompt.
func (b *CompanyBrief) Prompt() string {
	if b.Empty() {
		return ""
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Company: %s\n", b.Company)
	if b.Website != "" {
		fmt.Fprintf(&sb, "Website: %s\n", b.Website)
	}
	for _, s := range b.Sources {
		sb.WriteString("\n---\n")
		if s.Title != "" {
			fmt.Fprintf(&sb, "%s\n", s.Title)
		}
		fmt.Fprintf(&sb, "Source: %s\n%s\n", s.URL, truncate(s.Text, sourceTextLimit))
	}
	return sb.String()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}

// PageFetcher retrieves page text. *Fetcher implements it.
type PageFetcher interface {
	Fetch(ctx context.Context, rawURL string) (*Page, error)
}

// Researcher combines web search with page fetching.
type Researcher struct {
	searcher   Searcher
	fetcher    PageFetcher
	maxResults int
	fetchPages int
	logger     *errors.Logger
}

// New creates a researcher from its collaborators.
func New(searcher Searcher, fetcher PageFetcher, cfg config.ResearchConfig, logger *errors.Logger) *Researcher {
	r := &Researcher{
		searcher:   searcher,
		fetcher:    fetcher,
		maxResults: cfg.MaxResults,
		fetchPages: cfg.FetchPages,
		logger:     logger,
	}
	if r.maxResults <= 0 {
		r.maxResults = 3
	}
	if r.fetchPages < 0 {
		r.fetchPages = 0
	}
	return r
}

// NewFromConfig wires a Google searcher and an HTTP fetcher.
func NewFromConfig(ctx context.Context, cfg config.ResearchConfig, logger *errors.Logger) (*Researcher, error) {
	searcher, err := NewGoogleSearcher(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	return New(searcher, NewFetcher(cfg), cfg, logger), nil
}

func queries(company string) []string {
	return []string{
		fmt.Sprintf("%s official website", company),
		fmt.Sprintf("%s company values mission", company),
		fmt.Sprintf("%s engineering culture", company),
	}
}

// Research searches for the company and fetches the top pages. Failed
// queries and pages are skipped; it fails only when every query fails.
func (r *Researcher) Research(ctx context.Context, company string) (*CompanyBrief, error) {
	company = strings.TrimSpace(company)
	if company == "" {
		return nil, errors.NewValidationError(errors.ErrCodeInvalidRequest, "company name is required for research", nil)
	}

	qs := queries(company)
	hits := make([][]Result, len(qs))
	errs := make([]error, len(qs))

	g, gctx := errgroup.WithContext(ctx)
	for i, q := range qs {
		g.Go(func() error {
			results, err := r.searcher.Search(gctx, q, r.maxResults)
			if err != nil {
				errs[i] = err
				r.warn("Search query failed", "query", q, "error", err.Error())
				return nil
			}
			hits[i] = results
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, errors.NewNetworkError(errors.ErrCodeResearchFailed, "research cancelled", err)
	}
	failed := 0
	for _, err := range errs {
		if err != nil {
			failed++
		}
	}
	if failed == len(qs) {
		return nil, errors.NewNetworkError(errors.ErrCodeResearchFailed,
			fmt.Sprintf("all searches failed for %s", company), errs[0]).WithContext("company", company)
	}

	brief := &CompanyBrief{Company: company, Sources: []Source{}}
	if len(hits[0]) > 0 {
		brief.Website = hits[0][0].Link
	}

	seen := make(map[string]bool)
	var candidates []Result
	for _, results := range hits {
		for _, res := range results {
			if seen[res.Link] {
				continue
			}
			seen[res.Link] = true
			candidates = append(candidates, res)
		}
	}

	brief.Sources = r.collect(ctx, candidates)
	r.debug("Company research complete", "company", company, "sources", len(brief.Sources))
	return brief, nil
}

// collect fetches the first fetchPages candidates concurrently and uses
// search snippets for the rest and for pages that fail.
func (r *Researcher) collect(ctx context.Context, candidates []Result) []Source {
	sources := make([]Source, len(candidates))
	for i, c := range candidates {
		sources[i] = Source{URL: c.Link, Title: c.Title, Text: c.Snippet}
	}

	fetchN := min(r.fetchPages, len(candidates))
	if r.fetcher != nil && fetchN > 0 {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(maxParallelFetches)
		for i := range fetchN {
			g.Go(func() error {
				page, err := r.fetcher.Fetch(gctx, candidates[i].Link)
				if err != nil {
					r.warn("Skipping page", "url", candidates[i].Link, "error", err.Error())
					return nil
				}
				if page.Text == "" {
					return nil
				}
				sources[i].Text = page.Text
				if page.Title != "" {
					sources[i].Title = page.Title
				}
				return nil
			})
		}
		_ = g.Wait()
	}

	out := sources[:0]
	for _, s := range sources {
		if strings.TrimSpace(s.Text) != "" {
			out = append(out, s)
		}
	}
	return out
}

func (r *Researcher) warn(msg string, args ...any) {
	if r.logger != nil {
		r.logger.Warn(msg, args...)
	}
}

func (r *Researcher) debug(msg string, args ...any) {
	if r.logger != nil {
		r.logger.Debug(msg, args...)
	}
}
