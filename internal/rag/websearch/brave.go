package websearch

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/bytedance/sonic"
)

const braveEndpoint = "https://api.search.brave.com/res/v1/web/search"

type Brave struct {
	ApiKey   string
	Endpoint string
	client   *http.Client
}

func (s *Brave) Discover(ctx context.Context, q string, k int) ([]Result, error) {
	params := url.Values{}
	params.Set("q", q)
	params.Set("count", strconv.Itoa(k))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.Endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Subscription-Token", s.ApiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if err := checkStatus(resp); err != nil {
		return nil, err
	}

	var raw struct {
		Web struct {
			Results []struct {
				Title   string `json:"title"`
				URL     string `json:"url"`
				Snippet string `json:"description"`
			} `json:"results"`
		} `json:"web"`
	}
	if err := sonic.ConfigStd.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, err
	}

	out := make([]Result, 0, k)
	for i, r := range raw.Web.Results {
		if i >= k {
			break
		}
		out = append(out, Result{Title: r.Title, URL: r.URL, Snippet: r.Snippet})
	}
	return out, nil
}
