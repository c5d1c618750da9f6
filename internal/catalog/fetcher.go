package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	securitynet "kevfeed/internal/security/netutil"
)

// DefaultURL is the published location of the KEV catalog.
const DefaultURL = "https://www.cisa.gov/sites/default/files/feeds/known_exploited_vulnerabilities.json"

// nvdDetailURL prefixes a CVE ID to form its NVD detail page.
const nvdDetailURL = "https://nvd.nist.gov/vuln/detail/"

// The catalog is a little over 1MB today.
const maxCatalogBytes = 32 << 20

var (
	ErrTransport = errors.New("catalog transport error")
	ErrDecode    = errors.New("catalog decode error")
)

// CVELink returns the NVD detail page for a CVE ID.
func CVELink(cveID string) string {
	return nvdDetailURL + cveID
}

// Decode parses a catalog document. Every failure wraps ErrDecode.
func Decode(b []byte) (*Catalog, error) {
	var c Catalog
	if err := json.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	return &c, nil
}

type Fetcher struct {
	url    string
	client *http.Client
	logger *slog.Logger
}

type FetcherOption func(*Fetcher)

// WithURL points the fetcher at a different upstream, e.g. a mirror.
func WithURL(url string) FetcherOption {
	return func(f *Fetcher) { f.url = url }
}

func WithHTTPClient(client *http.Client) FetcherOption {
	return func(f *Fetcher) { f.client = client }
}

func NewFetcher(logger *slog.Logger, opts ...FetcherOption) *Fetcher {
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: 10 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
		ResponseHeaderTimeout: 10 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	f := &Fetcher{
		url:    DefaultURL,
		logger: logger,
		client: &http.Client{Timeout: 30 * time.Second, Transport: transport, CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 5 {
				return fmt.Errorf("stopped after 5 redirects")
			}
			return nil
		}},
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// URL reports the upstream the fetcher reads from.
func (f *Fetcher) URL() string {
	return f.url
}

// Fetch issues a single GET against the upstream and decodes the body.
// There are no retries; the caller sees ErrTransport or ErrDecode directly.
func (f *Fetcher) Fetch(ctx context.Context) (*Snapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: error creating request: %w", ErrTransport, err)
	}
	req.Header.Set("User-Agent", "kevfeed/1.0")
	req.Header.Set("Accept", "application/json")

	if err := securitynet.CheckHost(req.URL.Hostname()); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTransport, err)
	}

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: error fetching catalog: %w", ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: unexpected response status %d", ErrTransport, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxCatalogBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: error reading body: %w", ErrTransport, err)
	}

	c, err := Decode(body)
	if err != nil {
		return nil, err
	}

	f.logger.Debug("fetched catalog",
		"url", f.url,
		"version", c.CatalogVersion,
		"count", len(c.Vulnerabilities),
		"bytes", len(body),
		"elapsed", time.Since(start),
	)
	return &Snapshot{Catalog: c, Raw: body}, nil
}
