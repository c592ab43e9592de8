// Package websearch implements site-scoped web search via the Serper API.
//
// Like the knowledge package, the search contract is a describable string:
// network and API failures are converted to fixed guidance strings pointing
// at the human support channel, never propagated as errors. Results are
// memoized by exact query string in a bounded cache, trading staleness for
// avoiding redundant paid API calls.
package websearch

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/avenhq/supportd/internal/cache"
	"github.com/avenhq/supportd/internal/config"
)

// Sentinel results returned instead of errors.
const (
	ResultUnavailable = "Web search not available - missing SERPER_API_KEY"
	ResultNoResults   = "No current web results found. Please contact Aven support at support@aven.com."
	ResultError       = "Web search temporarily unavailable. Please contact support@aven.com."
)

// searchRequest is the Serper API request body.
type searchRequest struct {
	Q   string `json:"q"`
	Num int    `json:"num"`
}

// searchResponse is the subset of the Serper API response we consume.
type searchResponse struct {
	Organic   []organicResult        `json:"organic"`
	AnswerBox map[string]interface{} `json:"answerBox"`
}

type organicResult struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Snippet string `json:"snippet"`
}

// Result is one organic web hit in a structured tool response.
type Result struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Snippet string `json:"snippet"`
}

// Results is the structured payload returned to the tool-calling path.
type Results struct {
	Organic   []Result               `json:"organic"`
	AnswerBox map[string]interface{} `json:"answerBox"`
}

// Client performs site-scoped web searches.
type Client struct {
	http    *resty.Client
	cfg     config.SerperConfig
	ret     config.RetrievalConfig
	results *cache.Cache[string]
	logger  *zap.Logger
}

// New creates a Client. resultCache may be nil to disable memoization.
func New(cfg config.SerperConfig, ret config.RetrievalConfig, resultCache *cache.Cache[string], logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	httpClient := resty.New().
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json")
	if cfg.APIKey != "" {
		httpClient.SetHeader("X-API-KEY", cfg.APIKey)
	}
	return &Client{http: httpClient, cfg: cfg, ret: ret, results: resultCache, logger: logger}
}

// Search returns formatted web results for the query, scoped to the
// configured target site. Memoized by exact query string.
func (c *Client) Search(ctx context.Context, query string) string {
	if c.cfg.APIKey == "" {
		return ResultUnavailable
	}
	if c.results == nil {
		return c.search(ctx, query)
	}
	result, _ := c.results.Do(query, func() (string, error) {
		return c.search(ctx, query), nil
	})
	return result
}

// Results performs an unscoped search and returns structured hits for
// the tool-calling path. Unlike Search it reports failures as errors so
// the dispatcher can shape them into tool result payloads.
func (c *Client) Results(ctx context.Context, query string) (*Results, error) {
	if c.cfg.APIKey == "" {
		return nil, fmt.Errorf("web search not configured")
	}

	var parsed searchResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(searchRequest{Q: query, Num: c.ret.TopK}).
		SetResult(&parsed).
		Post(c.cfg.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("querying search API: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("search API returned %s", resp.Status())
	}

	limit := c.ret.TopK
	if limit <= 0 || limit > len(parsed.Organic) {
		limit = len(parsed.Organic)
	}
	out := &Results{
		Organic:   make([]Result, 0, limit),
		AnswerBox: parsed.AnswerBox,
	}
	if out.AnswerBox == nil {
		out.AnswerBox = map[string]interface{}{}
	}
	for _, r := range parsed.Organic[:limit] {
		out.Organic = append(out.Organic, Result{Title: r.Title, Link: r.Link, Snippet: r.Snippet})
	}
	return out, nil
}

func (c *Client) search(ctx context.Context, query string) string {
	scoped := query
	if c.ret.SearchSite != "" {
		scoped = fmt.Sprintf("%s site:%s", query, c.ret.SearchSite)
	}

	start := time.Now()
	var parsed searchResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(searchRequest{Q: scoped, Num: c.ret.TopK}).
		SetResult(&parsed).
		Post(c.cfg.Endpoint)
	if err != nil {
		c.logger.Error("web search request failed", zap.Error(err))
		return ResultError
	}
	if resp.IsError() {
		c.logger.Error("web search returned error status",
			zap.Int("status", resp.StatusCode()))
		return ResultError
	}
	c.logger.Debug("web search completed",
		zap.Duration("elapsed", time.Since(start)),
		zap.Int("results", len(parsed.Organic)))

	if len(parsed.Organic) == 0 {
		return ResultNoResults
	}

	limit := c.ret.TopK
	if limit <= 0 || limit > len(parsed.Organic) {
		limit = len(parsed.Organic)
	}

	blocks := make([]string, 0, limit)
	for _, result := range parsed.Organic[:limit] {
		title := result.Title
		if title == "" {
			title = "Unknown"
		}
		snippet := result.Snippet
		if c.ret.SnippetLength > 0 && len(snippet) > c.ret.SnippetLength {
			snippet = snippet[:c.ret.SnippetLength] + "..."
		}
		blocks = append(blocks, fmt.Sprintf("**%s**\n%s\nSource: %s", title, snippet, result.Link))
	}

	return strings.Join(blocks, "\n\n")
}
