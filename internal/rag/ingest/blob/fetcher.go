package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/akolanti/DocuSense/internal/config"
	"github.com/akolanti/DocuSense/internal/domain/docModel"
	"github.com/akolanti/DocuSense/internal/domain/ragErrors"
	"github.com/akolanti/DocuSense/pkg/logger_i"
)

// Fetcher resolves a document reference to a readable local file.
type Fetcher interface {
	Open(ctx context.Context, ref string) (path string, cleanup func(), err error)
}

type HTTPFetcher struct {
	client  *http.Client
	maxSize int64
	allowed []string
}

// NewFetcher downloads only from allowedHosts, redirects included.
func NewFetcher(client *http.Client, allowedHosts []string) *HTTPFetcher {
	f := &HTTPFetcher{maxSize: config.MaxRemoteDocumentSize, allowed: allowedHosts}
	c := *client
	c.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if len(via) >= 10 {
			return errors.New("stopped after 10 redirects")
		}
		if !HostAllowed(req.URL.String(), f.allowed) {
			return fmt.Errorf("redirect to %s is not an allowed blob host", req.URL.Hostname())
		}
		return nil
	}
	f.client = &c
	return f
}

// HostAllowed reports whether ref points at one of hosts. An entry with a
// leading dot matches any subdomain of it.
func HostAllowed(ref string, hosts []string) bool {
	u, err := url.Parse(ref)
	if err != nil || u.Hostname() == "" {
		return false
	}
	host := strings.ToLower(u.Hostname())
	for _, h := range hosts {
		if h == host || (strings.HasPrefix(h, ".") && strings.HasSuffix(host, h)) {
			return true
		}
	}
	return false
}

func noop() {}

func (f *HTTPFetcher) Open(ctx context.Context, ref string) (string, func(), error) {
	if !docModel.IsRemoteRef(ref) {
		info, err := os.Stat(ref)
		if err != nil {
			return "", noop, ragErrors.New(ragErrors.SourceUnavailable, ref, err)
		}
		if info.IsDir() {
			return "", noop, ragErrors.New(ragErrors.SourceUnavailable, ref, fmt.Errorf("is a directory"))
		}
		return ref, noop, nil
	}
	return f.download(ctx, ref)
}

func (f *HTTPFetcher) download(ctx context.Context, ref string) (string, func(), error) {
	logger := logger_i.FromContext(ctx, "blob")

	if !HostAllowed(ref, f.allowed) {
		return "", noop, ragErrors.New(ragErrors.InvalidInput, "document host is not an allowed blob store", nil)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return "", noop, ragErrors.New(ragErrors.SourceUnavailable, ref, err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return "", noop, ragErrors.New(ragErrors.SourceUnavailable, ref, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", noop, ragErrors.New(ragErrors.SourceUnavailable, ref, fmt.Errorf("status %d", resp.StatusCode))
	}

	tmp, err := os.CreateTemp("", "docusense-*"+extensionOf(ref))
	if err != nil {
		return "", noop, fmt.Errorf("creating temp file: %w", err)
	}
	cleanup := func() {
		if err := os.Remove(tmp.Name()); err != nil && !os.IsNotExist(err) {
			logger.Warn("temp file cleanup failed", "path", tmp.Name(), "error", err)
		}
	}

	n, err := io.Copy(tmp, io.LimitReader(resp.Body, f.maxSize+1))
	closeErr := tmp.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		cleanup()
		return "", noop, ragErrors.New(ragErrors.SourceUnavailable, ref, err)
	}
	if n > f.maxSize {
		cleanup()
		return "", noop, ragErrors.New(ragErrors.SourceUnavailable, ref, fmt.Errorf("document larger than %d bytes", f.maxSize))
	}

	logger.Debug("downloaded document", "ref", ref, "bytes", n)
	return tmp.Name(), cleanup, nil
}

// extensionOf keeps the URL path extension so type detection works on the temp file.
func extensionOf(ref string) string {
	u, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	return filepath.Ext(u.Path)
}
