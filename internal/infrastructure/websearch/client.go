// Package websearch implements the web tool backends: search (Serper with a
// DuckDuckGo HTML fallback), single-page content extraction and bounded batch
// fetches, with a TTL cache over page content.
package websearch

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-resty/resty/v2"
	"golang.org/x/net/html"
	"golang.org/x/sync/errgroup"

	"github.com/infinyte/mcp-server/internal/infrastructure/logger"
)

const (
	serperSearchEndpoint = "https://google.serper.dev/search"
	duckduckgoEndpoint   = "https://html.duckduckgo.com/html/"

	defaultSearchLimit = 5
	maxSearchLimit     = 20
	maxBatchSize       = 10
	batchConcurrency   = 4
	maxContentLength   = 100_000
)

// ClientConfig captures the operator knobs for the web client.
type ClientConfig struct {
	SerperAPIKey  string
	HTTPTimeout   time.Duration
	ScrapeTimeout time.Duration
	CacheTTL      time.Duration
	CacheEntries  int
}

// SearchResult is one organic search hit.
type SearchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet,omitempty"`
	Source  string `json:"source"`
}

// SearchResponse is the web_search tool output.
type SearchResponse struct {
	Success bool           `json:"success"`
	Query   string         `json:"query"`
	Engine  string         `json:"engine"`
	Results []SearchResult `json:"results"`
}

// PageContent is the web_content tool output.
type PageContent struct {
	Success       bool      `json:"success"`
	URL           string    `json:"url"`
	Title         string    `json:"title,omitempty"`
	Content       string    `json:"content"`
	ContentLength int       `json:"contentLength"`
	FromCache     bool      `json:"fromCache"`
	FetchedAt     time.Time `json:"fetchedAt"`
}

// BatchItem is one entry of the web_batch tool output.
type BatchItem struct {
	URL     string       `json:"url"`
	Content *PageContent `json:"content,omitempty"`
	Error   string       `json:"error,omitempty"`
}

// BatchResponse is the web_batch tool output.
type BatchResponse struct {
	Success bool        `json:"success"`
	Results []BatchItem `json:"results"`
}

// Client performs web searches and page fetches.
type Client struct {
	cfg          ClientConfig
	searchClient *resty.Client
	fetchClient  *resty.Client
	retryConfig  RetryConfig
	cache        *pageCache
}

// NewClient wires the HTTP clients and the content cache.
func NewClient(cfg ClientConfig) *Client {
	httpTimeout := cfg.HTTPTimeout
	if httpTimeout <= 0 {
		httpTimeout = 15 * time.Second
	}
	scrapeTimeout := cfg.ScrapeTimeout
	if scrapeTimeout <= 0 {
		scrapeTimeout = 30 * time.Second
	}

	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 20,
		MaxConnsPerHost:     50,
		IdleConnTimeout:     90 * time.Second,
		ForceAttemptHTTP2:   true,
	}

	searchHTTP := resty.New().
		SetHeader("User-Agent", "MCP-Server/1.0").
		SetTimeout(httpTimeout).
		SetRetryCount(0).
		SetTransport(transport)

	// Browser-like headers to get past basic bot detection on direct fetches
	fetchHTTP := resty.New().
		SetHeader("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36").
		SetHeader("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8").
		SetHeader("Accept-Language", "en-US,en;q=0.5").
		SetTimeout(scrapeTimeout).
		SetRetryCount(0).
		SetTransport(transport)

	return &Client{
		cfg:          cfg,
		searchClient: searchHTTP,
		fetchClient:  fetchHTTP,
		retryConfig:  DefaultRetryConfig(),
		cache:        newPageCache(cfg.CacheTTL, cfg.CacheEntries),
	}
}

// CacheSize reports the number of cached pages, for the admin surface.
func (c *Client) CacheSize() int {
	return c.cache.size()
}

// Search queries Serper when a key is configured, falling back to the
// DuckDuckGo HTML endpoint.
func (c *Client) Search(ctx context.Context, query string, limit int) (*SearchResponse, error) {
	log := logger.GetLogger()
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("search query is required")
	}
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	if limit > maxSearchLimit {
		limit = maxSearchLimit
	}

	if strings.TrimSpace(c.cfg.SerperAPIKey) != "" {
		res, err := c.searchViaSerper(ctx, query, limit)
		if err == nil {
			log.Info().Str("engine", "serper").Str("query", query).Int("result_count", len(res.Results)).Msg("search completed")
			return res, nil
		}
		log.Warn().Err(err).Msg("Serper search failed, falling back to DuckDuckGo")
	}

	res, err := c.searchViaDuckDuckGo(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("all search providers failed: %w", err)
	}
	log.Info().Str("engine", "duckduckgo").Str("query", query).Int("result_count", len(res.Results)).Msg("search completed")
	return res, nil
}

type serperResponse struct {
	Organic []struct {
		Title   string `json:"title"`
		Link    string `json:"link"`
		Snippet string `json:"snippet"`
	} `json:"organic"`
}

func (c *Client) searchViaSerper(ctx context.Context, query string, limit int) (*SearchResponse, error) {
	result, err := WithRetry(ctx, c.retryConfig, "serper_search", func() (*serperResponse, error) {
		var res serperResponse
		resp, err := c.searchClient.R().
			SetContext(ctx).
			SetHeader("X-API-KEY", c.cfg.SerperAPIKey).
			SetHeader("Content-Type", "application/json").
			SetBody(map[string]any{"q": query, "num": limit}).
			SetResult(&res).
			Post(serperSearchEndpoint)
		if err != nil {
			return nil, fmt.Errorf("failed to query Serper search API: %w", err)
		}
		if resp.IsError() {
			return nil, fmt.Errorf("Serper search API error (status %d): %s", resp.StatusCode(), resp.String())
		}
		return &res, nil
	})
	if err != nil {
		return nil, err
	}

	results := make([]SearchResult, 0, limit)
	for _, item := range result.Organic {
		if len(results) >= limit {
			break
		}
		results = append(results, SearchResult{
			Title:   item.Title,
			URL:     item.Link,
			Snippet: item.Snippet,
			Source:  "serper",
		})
	}
	return &SearchResponse{Success: true, Query: query, Engine: "serper", Results: results}, nil
}

func (c *Client) searchViaDuckDuckGo(ctx context.Context, query string, limit int) (*SearchResponse, error) {
	type page struct{ body string }
	result, err := WithRetry(ctx, c.retryConfig, "duckduckgo_search", func() (*page, error) {
		resp, err := c.searchClient.R().
			SetContext(ctx).
			SetQueryParam("q", query).
			Get(duckduckgoEndpoint)
		if err != nil {
			return nil, fmt.Errorf("failed to query DuckDuckGo: %w", err)
		}
		if resp.IsError() {
			return nil, fmt.Errorf("DuckDuckGo error (status %d)", resp.StatusCode())
		}
		return &page{body: resp.String()}, nil
	})
	if err != nil {
		return nil, err
	}

	results := parseDuckDuckGoResults(result.body, limit)
	return &SearchResponse{Success: true, Query: query, Engine: "duckduckgo", Results: results}, nil
}

// parseDuckDuckGoResults walks the HTML results page picking anchors marked
// with the result link class.
func parseDuckDuckGoResults(body string, limit int) []SearchResult {
	doc, err := html.Parse(strings.NewReader(body))
	if err != nil {
		return nil
	}

	var results []SearchResult
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if len(results) >= limit {
			return
		}
		if n.Type == html.ElementNode && n.Data == "a" && hasClass(n, "result__a") {
			href := attrValue(n, "href")
			title := strings.TrimSpace(nodeText(n))
			if href != "" && title != "" {
				results = append(results, SearchResult{
					Title:  title,
					URL:    href,
					Source: "duckduckgo",
				})
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(doc)
	return results
}

// FetchContent retrieves one page and extracts its readable text. Cached
// copies are served when useCache is set and a fresh entry exists.
func (c *Client) FetchContent(ctx context.Context, pageURL string, useCache bool) (*PageContent, error) {
	pageURL = strings.TrimSpace(pageURL)
	if pageURL == "" {
		return nil, fmt.Errorf("url is required")
	}
	if !strings.HasPrefix(pageURL, "http://") && !strings.HasPrefix(pageURL, "https://") {
		return nil, fmt.Errorf("url must be absolute: %s", pageURL)
	}

	if useCache {
		if cached, ok := c.cache.get(pageURL); ok {
			return cached, nil
		}
	}

	content, err := WithRetry(ctx, c.retryConfig, "fetch_content", func() (*PageContent, error) {
		resp, err := c.fetchClient.R().
			SetContext(ctx).
			Get(pageURL)
		if err != nil {
			return nil, fmt.Errorf("fetch failed: %w", err)
		}
		if resp.IsError() {
			return nil, fmt.Errorf("fetch HTTP %d: %s", resp.StatusCode(), resp.Status())
		}

		title, text := extractReadableContent(resp.Body())
		text = truncateOnRune(text, maxContentLength)
		return &PageContent{
			Success:       true,
			URL:           pageURL,
			Title:         title,
			Content:       text,
			ContentLength: len(text),
			FetchedAt:     time.Now().UTC(),
		}, nil
	})
	if err != nil {
		return nil, err
	}

	c.cache.put(pageURL, content)
	return content, nil
}

// FetchBatch retrieves several pages concurrently. Individual failures are
// reported per URL so one bad page cannot fail its siblings.
func (c *Client) FetchBatch(ctx context.Context, urls []string, useCache bool) (*BatchResponse, error) {
	if len(urls) == 0 {
		return nil, fmt.Errorf("urls are required")
	}
	if len(urls) > maxBatchSize {
		urls = urls[:maxBatchSize]
	}

	items := make([]BatchItem, len(urls))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(batchConcurrency)

	for i, pageURL := range urls {
		g.Go(func() error {
			content, err := c.FetchContent(gctx, pageURL, useCache)
			if err != nil {
				items[i] = BatchItem{URL: pageURL, Error: err.Error()}
				return nil
			}
			items[i] = BatchItem{URL: pageURL, Content: content}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &BatchResponse{Success: true, Results: items}, nil
}

// truncateOnRune caps text at limit bytes, backing up to the previous rune
// boundary so a multi-byte character is never split.
func truncateOnRune(text string, limit int) string {
	if len(text) <= limit {
		return text
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut]
}

// extractReadableContent strips scripts and styles and joins the remaining
// text nodes, also surfacing the page title.
func extractReadableContent(htmlBytes []byte) (string, string) {
	doc, err := html.Parse(strings.NewReader(string(htmlBytes)))
	if err != nil {
		return "", string(htmlBytes)
	}

	var title string
	var builder strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript":
				return
			case "title":
				if title == "" {
					title = strings.TrimSpace(nodeText(n))
				}
				return
			}
		}
		if n.Type == html.TextNode {
			val := strings.TrimSpace(n.Data)
			if val != "" {
				if builder.Len() > 0 {
					builder.WriteString(" ")
				}
				builder.WriteString(val)
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(doc)
	return title, builder.String()
}

func nodeText(n *html.Node) string {
	var builder strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			builder.WriteString(n.Data)
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(n)
	return builder.String()
}

func hasClass(n *html.Node, class string) bool {
	for _, attr := range n.Attr {
		if attr.Key == "class" {
			for _, c := range strings.Fields(attr.Val) {
				if c == class {
					return true
				}
			}
		}
	}
	return false
}

func attrValue(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}
