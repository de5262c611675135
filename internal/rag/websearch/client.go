package websearch

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/akolanti/DocuSense/internal/config"
	"github.com/akolanti/DocuSense/internal/domain/ragErrors"
	"github.com/akolanti/DocuSense/internal/metrics"
	"github.com/akolanti/DocuSense/pkg/logger_i"
	"golang.org/x/time/rate"
)

const NoResultMarker = "No relevant web results were found."

// Outcome describes how a lookup went. Kind is empty on success.
type Outcome struct {
	Results int
	Kind    ragErrors.Kind
	Err     error
}

// Client never fails: any problem turns into NoResultMarker so answering can
// go on.
type Client struct {
	searcher Searcher
	limiter  *rate.Limiter
	timeout  time.Duration
	logger   *logger_i.Logger
}

// NewClient accepts a nil searcher, in which case every lookup reports
// SearchUnavailable.
func NewClient(searcher Searcher) *Client {
	return &Client{
		searcher: searcher,
		limiter:  rate.NewLimiter(rate.Limit(config.GetInt("WEB_SEARCH_PER_SECOND", config.WebSearchPerSecond)), config.WebSearchBurst),
		timeout:  config.GetDuration("WEB_SEARCH_TIMEOUT", config.WebSearchTimeout),
		logger:   logger_i.NewLogger("web search"),
	}
}

func (c *Client) Search(ctx context.Context, query string, maxResults int) string {
	text, _ := c.Lookup(ctx, query, maxResults)
	return text
}

func (c *Client) Lookup(ctx context.Context, query string, maxResults int) (string, Outcome) {
	log := c.logger.WithTrace(ctx)
	if maxResults <= 0 {
		maxResults = config.WebSearchMaxResults
	}

	results, err := c.discover(ctx, strings.TrimSpace(query), maxResults)
	if err != nil {
		log.Warn("web search unavailable", "error", err)
		metrics.SearchCall("unavailable")
		return NoResultMarker, Outcome{Kind: ragErrors.SearchUnavailable, Err: err}
	}
	if len(results) == 0 {
		metrics.SearchCall("empty")
		return NoResultMarker, Outcome{}
	}

	metrics.SearchCall("success")
	log.Debug("web search results", "count", len(results))
	return Format(results), Outcome{Results: len(results)}
}

func (c *Client) discover(ctx context.Context, query string, k int) ([]Result, error) {
	if c.searcher == nil {
		return nil, ragErrors.New(ragErrors.SearchUnavailable, "no search provider configured", nil)
	}
	if query == "" {
		return nil, nil
	}

	searchCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.limiter.Wait(searchCtx); err != nil {
		return nil, ragErrors.New(ragErrors.SearchUnavailable, "rate limited", err)
	}

	start := time.Now()
	results, err := c.searcher.Discover(searchCtx, query, k)
	metrics.CaptureExecutionMetrics("web_search", time.Since(start))
	if err != nil {
		return nil, ragErrors.New(ragErrors.SearchUnavailable, "search call failed", err)
	}
	return results, nil
}

// Format renders results as numbered lines for a prompt.
func Format(results []Result) string {
	var sb strings.Builder
	for i, r := range results {
		if i > 0 {
			sb.WriteString("\n")
		}
		fmt.Fprintf(&sb, "[%d] %s - %s (%s)", i+1, strings.TrimSpace(r.Title), strings.TrimSpace(r.Snippet), r.URL)
	}
	return sb.String()
}
