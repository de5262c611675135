package websearch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
)

type Result struct {
	Title   string
	URL     string
	Snippet string
}

// Searcher is one search vendor.
type Searcher interface {
	Discover(ctx context.Context, q string, k int) ([]Result, error)
}

type Provider string

const (
	SerperProvider Provider = "serper"
	BraveProvider  Provider = "brave"
)

var ErrUnsupportedProvider = errors.New("unsupported search provider")
var ErrMissingKey = errors.New("search api key is not set")

func NewSearcher(provider Provider, apiKey string, client *http.Client) (Searcher, error) {
	if apiKey == "" {
		return nil, ErrMissingKey
	}
	switch provider {
	case SerperProvider:
		return &Serper{ApiKey: apiKey, Endpoint: serperEndpoint, client: client}, nil
	case BraveProvider:
		return &Brave{ApiKey: apiKey, Endpoint: braveEndpoint, client: client}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedProvider, provider)
	}
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return fmt.Errorf("search returned %d: %s", resp.StatusCode, body)
}
