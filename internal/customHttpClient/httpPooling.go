package customHttpClient

import (
	"net/http"
	"sync"

	"github.com/akolanti/DocuSense/internal/config"
)

var (
	once            sync.Once
	client          *http.Client
	streamingOnce   sync.Once
	streamingClient *http.Client
)

var customTransport = &http.Transport{
	Proxy:               http.ProxyFromEnvironment,
	MaxIdleConns:        config.MaxIdleConns,
	MaxIdleConnsPerHost: config.MaxIdleConnsPerHost,
	IdleConnTimeout:     config.IdleConnTimeout,
}

// GetClient returns the process wide pooled client used for document downloads
// and the search providers. Per call deadlines come from the request context.
func GetClient() *http.Client {
	once.Do(func() {
		client = &http.Client{
			Transport: customTransport,
			Timeout:   config.HttpClientTimeout,
		}
	})
	return client
}

// GetStreamingClient shares the pool but has no whole-request timeout, since
// that also covers reading the body and would cut model streams. The model
// call context carries the deadline instead.
func GetStreamingClient() *http.Client {
	streamingOnce.Do(func() {
		streamingClient = &http.Client{Transport: customTransport}
	})
	return streamingClient
}
