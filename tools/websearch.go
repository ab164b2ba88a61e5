package tools

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	"golang.org/x/time/rate"
)

const (
	// DefaultSearchURL is the DuckDuckGo HTML endpoint, which needs no API key.
	DefaultSearchURL = "https://html.duckduckgo.com/html/"

	// MaxSearchResults caps the results merged into the grounding context.
	MaxSearchResults = 5

	defaultSearchTimeout = 15 * time.Second
	maxSearchBody        = 5 << 20
	userAgent            = "Mozilla/5.0 (X11; Linux x86_64) docchat"
)

// SearchResult is one web search hit.
type SearchResult struct {
	Title   string
	URL     string
	Snippet string
}

// WebSearchTool adds web search results to a turn. It is opt-in.
type WebSearchTool struct {
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
	logger  *slog.Logger
}

var _ Tool = (*WebSearchTool)(nil)

// WebSearchOption configures a WebSearchTool.
type WebSearchOption func(*WebSearchTool) error

// WithSearchURL points the tool at a different endpoint.
func WithSearchURL(u string) WebSearchOption {
	return func(t *WebSearchTool) error {
		if _, err := url.Parse(u); err != nil {
			return fmt.Errorf("invalid search url: %w", err)
		}
		t.baseURL = u
		return nil
	}
}

// WithSearchClient sets the HTTP client.
func WithSearchClient(c *http.Client) WebSearchOption {
	return func(t *WebSearchTool) error {
		if c == nil {
			return errors.New("http client cannot be nil")
		}
		t.client = c
		return nil
	}
}

// WithSearchRateLimit bounds outgoing searches to rps per second.
// Default is one search per second.
func WithSearchRateLimit(rps float64, burst int) WebSearchOption {
	return func(t *WebSearchTool) error {
		if rps <= 0 {
			t.limiter = rate.NewLimiter(rate.Inf, 0)
			return nil
		}
		t.limiter = rate.NewLimiter(rate.Limit(rps), max(burst, 1))
		return nil
	}
}

// WithSearchLogger sets a custom logger.
func WithSearchLogger(logger *slog.Logger) WebSearchOption {
	return func(t *WebSearchTool) error {
		if logger == nil {
			logger = slog.Default()
		}
		t.logger = logger
		return nil
	}
}

// NewWebSearchTool creates the web search tool.
func NewWebSearchTool(opts ...WebSearchOption) (*WebSearchTool, error) {
	t := &WebSearchTool{
		baseURL: DefaultSearchURL,
		client:  &http.Client{Timeout: defaultSearchTimeout},
		limiter: rate.NewLimiter(rate.Limit(1), 1),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(t); err != nil {
			return nil, err
		}
	}
	t.logger = t.logger.With("component", "web-search-tool")
	return t, nil
}

func (t *WebSearchTool) ID() ID                 { return WebSearchID }
func (t *WebSearchTool) Title() string          { return "Web search" }
func (t *WebSearchTool) EnabledByDefault() bool { return false }

func (t *WebSearchTool) Description() string {
	return "Searches the web with DuckDuckGo for information the document does not contain."
}

// Invoke searches the web for query. Transport and parse failures are
// reported in Result.Content so the turn can continue without results.
// Only cancellation of ctx is returned as an error.
func (t *WebSearchTool) Invoke(ctx context.Context, query string, tc Context) (Result, error) {
	result := Result{ToolID: WebSearchID}
	query = strings.TrimSpace(query)
	if query == "" {
		result.Content = "Web search skipped: empty query."
		return result, nil
	}

	if err := t.limiter.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		result.Content = "Web search unavailable: rate limited."
		return result, nil
	}

	hits, err := t.search(ctx, query)
	if err != nil {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		t.logger.Warn("web search failed", "err", err)
		result.Content = "Web search unavailable: " + err.Error()
		return result, nil
	}
	result.Content = formatSearchResults(query, hits)
	return result, nil
}

func (t *WebSearchTool) search(ctx context.Context, query string) ([]SearchResult, error) {
	searchURL := t.baseURL + "?q=" + url.QueryEscape(query)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html")

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search returned %s", resp.Status)
	}

	doc, err := html.Parse(io.LimitReader(resp.Body, maxSearchBody))
	if err != nil {
		return nil, fmt.Errorf("parsing results: %w", err)
	}
	return parseSearchResults(doc, MaxSearchResults), nil
}

// parseSearchResults reads result__a title links and their result__snippet
// siblings from a DuckDuckGo HTML page.
func parseSearchResults(doc *html.Node, limit int) []SearchResult {
	var results []SearchResult
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if len(results) >= limit {
			return
		}
		if n.Type == html.ElementNode && n.DataAtom == atom.A {
			switch {
			case hasClass(n, "result__a"):
				link := resolveResultURL(attr(n, "href"))
				title := nodeText(n)
				if link != "" && title != "" {
					results = append(results, SearchResult{Title: title, URL: link})
				}
				return
			case hasClass(n, "result__snippet"):
				if len(results) > 0 && results[len(results)-1].Snippet == "" {
					results[len(results)-1].Snippet = nodeText(n)
				}
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return results
}

// resolveResultURL unwraps DuckDuckGo's //duckduckgo.com/l/?uddg=<url> redirects.
func resolveResultURL(href string) string {
	if strings.Contains(href, "uddg=") {
		if strings.HasPrefix(href, "//") {
			href = "https:" + href
		}
		parsed, err := url.Parse(href)
		if err != nil {
			return ""
		}
		return parsed.Query().Get("uddg")
	}
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	return ""
}

func formatSearchResults(query string, results []SearchResult) string {
	if len(results) == 0 {
		return fmt.Sprintf("Web search for %q returned no results.", query)
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Web search results for %q:\n", query)
	for i, r := range results {
		fmt.Fprintf(&sb, "\n[web:%d] %s\n%s\n", i+1, r.Title, r.URL)
		if r.Snippet != "" {
			sb.WriteString(r.Snippet)
			sb.WriteString("\n")
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hasClass(n *html.Node, class string) bool {
	return strings.Contains(" "+attr(n, "class")+" ", " "+class+" ")
}

func nodeText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(sb.String()), " ")
}
