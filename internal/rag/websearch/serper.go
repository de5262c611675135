package websearch

import (
	"bytes"
	"context"
	"net/http"

	"github.com/bytedance/sonic"
)

const serperEndpoint = "https://google.serper.dev/search"

type Serper struct {
	ApiKey   string
	Endpoint string
	client   *http.Client
}

func (s *Serper) Discover(ctx context.Context, q string, k int) ([]Result, error) {
	body, err := sonic.ConfigStd.Marshal(map[string]any{"q": q, "num": k})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-API-KEY", s.ApiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if err := checkStatus(resp); err != nil {
		return nil, err
	}

	var raw struct {
		Organic []struct {
			Title   string `json:"title"`
			Link    string `json:"link"`
			Snippet string `json:"snippet"`
		} `json:"organic"`
	}
	if err := sonic.ConfigStd.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, err
	}

	out := make([]Result, 0, k)
	for i, r := range raw.Organic {
		if i >= k {
			break
		}
		out = append(out, Result{Title: r.Title, URL: r.Link, Snippet: r.Snippet})
	}
	return out, nil
}
