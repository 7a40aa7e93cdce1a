package research

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"tailorcv/internal/config"
	"tailorcv/internal/errors"
)

const (
	defaultTimeout   = 15 * time.Second
	defaultUserAgent = "Mozilla/5.0 (compatible; tailorcv/1.0)"
	defaultMaxBytes  = 2 << 20
)

// Removed before text extraction on every page.
const noiseSelector = "nav, footer, header, script, style, noscript, form, iframe, svg, " +
	".ad, .advertisement, .ads, .sidebar, .cookie-banner, .popup"

// companySelectors locate the main content on company pages.
var companySelectors = []string{
	"main",
	"article",
	".about-content",
	".values-content",
	".culture-content",
	".content",
	"#content",
	".main-content",
	"#main-content",
}

// jobSelectors locate the description on job board pages.
var jobSelectors = []string{
	".job-description",
	".job-content",
	"#job-description",
	"#job-content",
	".posting-content",
	".job-details",
	"[data-testid='job-description']",
	"main",
	"article",
	".content",
	"#content",
}

// Page is the readable text of one fetched URL.
type Page struct {
	URL   string `json:"url"`
	Title string `json:"title,omitempty"`
	Text  string `json:"text"`
}

// Fetcher downloads HTML pages and reduces them to text.
type Fetcher struct {
	client    *http.Client
	userAgent string
	maxBytes  int64
}

// NewFetcher builds a fetcher whose transport is traced with otelhttp.
func NewFetcher(cfg config.ResearchConfig) *Fetcher {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return newFetcher(&http.Client{
		Timeout:   timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}, cfg)
}

func newFetcher(client *http.Client, cfg config.ResearchConfig) *Fetcher {
	f := &Fetcher{client: client, userAgent: cfg.UserAgent, maxBytes: cfg.MaxPageBytes}
	if f.userAgent == "" {
		f.userAgent = defaultUserAgent
	}
	if f.maxBytes <= 0 {
		f.maxBytes = defaultMaxBytes
	}
	return f
}

// Fetch retrieves a company page.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*Page, error) {
	return f.fetch(ctx, rawURL, companySelectors)
}

// FetchJobPosting retrieves a job posting and returns its description text.
func (f *Fetcher) FetchJobPosting(ctx context.Context, rawURL string) (*Page, error) {
	return f.fetch(ctx, rawURL, jobSelectors)
}

func (f *Fetcher) fetch(ctx context.Context, rawURL string, selectors []string) (*Page, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return nil, errors.NewValidationError(errors.ErrCodeInvalidRequest,
			fmt.Sprintf("invalid URL %q", rawURL), err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fetchFailed(rawURL, "failed to create request", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fetchFailed(rawURL, "HTTP request failed", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fetchFailed(rawURL, fmt.Sprintf("HTTP status %d", resp.StatusCode), nil)
	}

	title, text, err := ExtractText(io.LimitReader(resp.Body, f.maxBytes), selectors)
	if err != nil {
		return nil, fetchFailed(rawURL, "failed to parse HTML", err)
	}
	return &Page{URL: rawURL, Title: title, Text: text}, nil
}

func fetchFailed(rawURL, message string, cause error) error {
	return errors.NewNetworkError(errors.ErrCodeResearchFailed, message, cause).WithContext("url", rawURL)
}

// ExtractText parses HTML and returns the page title and the text of the
// first matching content selector, falling back to the body.
func ExtractText(r io.Reader, selectors []string) (string, string, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return "", "", err
	}

	title := strings.TrimSpace(doc.Find("title").First().Text())
	doc.Find(noiseSelector).Remove()

	var content *goquery.Selection
	for _, selector := range selectors {
		if sel := doc.Find(selector); sel.Length() > 0 {
			content = sel.First()
			break
		}
	}
	if content == nil {
		content = doc.Find("body")
	}

	return title, cleanWhitespace(content.Text()), nil
}

// cleanWhitespace trims lines, collapses inner runs of spaces and drops
// empty lines.
func cleanWhitespace(text string) string {
	var cleaned []string
	for line := range strings.SplitSeq(text, "\n") {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			cleaned = append(cleaned, line)
		}
	}
	return strings.Join(cleaned, "\n")
}
