package research

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"

	"tailorcv/internal/config"
	"tailorcv/internal/errors"
)

type fakeSearcher struct {
	mu      sync.Mutex
	results map[string][]Result
	fail    map[string]bool
	queries []string
}

func (f *fakeSearcher) Search(_ context.Context, query string, n int) ([]Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, query)
	if f.fail[query] {
		return nil, stderrors.New("quota exceeded")
	}
	res := f.results[query]
	if len(res) > n {
		res = res[:n]
	}
	return res, nil
}

type fakeFetcher struct {
	pages map[string]*Page
}

func (f *fakeFetcher) Fetch(_ context.Context, rawURL string) (*Page, error) {
	if p, ok := f.pages[rawURL]; ok {
		return p, nil
	}
	return nil, fmt.Errorf("404 for %s", rawURL)
}

func TestResearch(t *testing.T) {
	searcher := &fakeSearcher{results: map[string][]Result{
		"Acme official website": {
			{Title: "Acme", Link: "https://acme.example", Snippet: "Acme builds rockets."},
		},
		"Acme company values mission": {
			{Title: "Values", Link: "https://acme.example/values", Snippet: "We value safety."},
			{Title: "Acme", Link: "https://acme.example", Snippet: "duplicate"},
		},
		"Acme engineering culture": {
			{Title: "Blog", Link: "https://blog.acme.example", Snippet: "Engineering at Acme."},
		},
	}}
	fetcher := &fakeFetcher{pages: map[string]*Page{
		"https://acme.example": {URL: "https://acme.example", Title: "Acme Rockets", Text: "We launch payloads to orbit."},
	}}

	r := New(searcher, fetcher, config.ResearchConfig{MaxResults: 3, FetchPages: 2}, nil)
	brief, err := r.Research(context.Background(), "  Acme ")
	require.NoError(t, err)

	assert.Equal(t, "Acme", brief.Company)
	assert.Equal(t, "https://acme.example", brief.Website)
	require.Len(t, brief.Sources, 3, "duplicate links are dropped")
	assert.Equal(t, "Acme Rockets", brief.Sources[0].Title)
	assert.Equal(t, "We launch payloads to orbit.", brief.Sources[0].Text)
	assert.Equal(t, "We value safety.", brief.Sources[1].Text, "failed fetch keeps the snippet")
	assert.Equal(t, "Engineering at Acme.", brief.Sources[2].Text, "beyond fetchPages the snippet is used")

	prompt := brief.Prompt()
	assert.Contains(t, prompt, "Company: Acme")
	assert.Contains(t, prompt, "Source: https://acme.example/values")
	assert.Len(t, searcher.queries, 3)
}

func TestResearchPartialFailure(t *testing.T) {
	searcher := &fakeSearcher{
		results: map[string][]Result{
			"Acme engineering culture": {{Link: "https://blog.acme.example", Snippet: "Blog"}},
		},
		fail: map[string]bool{"Acme official website": true, "Acme company values mission": true},
	}
	r := New(searcher, nil, config.ResearchConfig{}, nil)
	brief, err := r.Research(context.Background(), "Acme")
	require.NoError(t, err)
	assert.Empty(t, brief.Website)
	require.Len(t, brief.Sources, 1)
}

func TestResearchAllSearchesFail(t *testing.T) {
	searcher := &fakeSearcher{fail: map[string]bool{
		"Acme official website":       true,
		"Acme company values mission": true,
		"Acme engineering culture":    true,
	}}
	_, err := New(searcher, nil, config.ResearchConfig{}, nil).Research(context.Background(), "Acme")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeResearchFailed))
}

func TestResearchRequiresCompany(t *testing.T) {
	_, err := New(&fakeSearcher{}, nil, config.ResearchConfig{}, nil).Research(context.Background(), " ")
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
}

func TestBriefPromptTruncates(t *testing.T) {
	brief := &CompanyBrief{Company: "Acme", Sources: []Source{{URL: "u", Text: strings.Repeat("x", 2*sourceTextLimit)}}}
	assert.Less(t, len(brief.Prompt()), 2*sourceTextLimit)

	var empty *CompanyBrief
	assert.True(t, empty.Empty())
	assert.Empty(t, empty.Prompt())
}

func TestFetcher(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "tailorcv-test", r.UserAgent())
		switch r.URL.Path {
		case "/about":
			_, _ = w.Write([]byte(`<html><head><title> About Acme </title></head><body>
				<nav>Home | Jobs</nav>
				<main><h1>About   us</h1>
				<p>We build   rockets.</p><script>track()</script></main>
				<footer>© Acme</footer></body></html>`))
		case "/job":
			_, _ = w.Write([]byte(`<html><body><main>Apply now</main>
				<div class="job-description"><p>Senior Go engineer.</p>
				<ul><li>Kubernetes</li></ul></div></body></html>`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	f := newFetcher(srv.Client(), config.ResearchConfig{UserAgent: "tailorcv-test"})

	page, err := f.Fetch(context.Background(), srv.URL+"/about")
	require.NoError(t, err)
	assert.Equal(t, "About Acme", page.Title)
	assert.Equal(t, "About us\nWe build rockets.", page.Text)

	job, err := f.FetchJobPosting(context.Background(), srv.URL+"/job")
	require.NoError(t, err)
	assert.Equal(t, "Senior Go engineer.\nKubernetes", job.Text)

	_, err = f.Fetch(context.Background(), srv.URL+"/missing")
	assert.True(t, errors.IsCode(err, errors.ErrCodeResearchFailed))

	_, err = f.Fetch(context.Background(), "ftp://acme.example")
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
}

func TestFetcherLimitsBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html><body><main>" + strings.Repeat("a", 64) + strings.Repeat("b", 64) + "</main></body></html>"))
	}))
	defer srv.Close()

	f := newFetcher(srv.Client(), config.ResearchConfig{MaxPageBytes: 82})
	page, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.NotContains(t, page.Text, "b")
}

func TestGoogleSearcher(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "cx-1", r.URL.Query().Get("cx"))
		assert.Equal(t, "Acme careers", r.URL.Query().Get("q"))
		assert.Equal(t, "2", r.URL.Query().Get("num"))
		assert.Equal(t, "search-key", r.URL.Query().Get("key"))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"items": []map[string]string{
			{"title": "Careers", "link": "https://acme.example/careers", "snippet": "Join us"},
			{"title": "No link"},
		}})
	}))
	defer srv.Close()

	cfg := config.ResearchConfig{APIKey: "search-key", EngineID: "cx-1"}
	g, err := NewGoogleSearcher(context.Background(), cfg, nil, option.WithEndpoint(srv.URL+"/"))
	require.NoError(t, err)

	results, err := g.Search(context.Background(), "Acme careers", 2)
	require.NoError(t, err)
	assert.Equal(t, []Result{{Title: "Careers", Link: "https://acme.example/careers", Snippet: "Join us"}}, results)
	assert.Equal(t, false, g.Stats()["enabled"])
}

func TestNewGoogleSearcherRequiresCredentials(t *testing.T) {
	_, err := NewGoogleSearcher(context.Background(), config.ResearchConfig{APIKey: "k"}, nil)
	assert.True(t, errors.IsCode(err, errors.ErrCodeMissingAPIKey))
}
