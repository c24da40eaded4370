package fetch

import (
	"log/slog"
	"net"
	"net/http"
	"time"
)

// Options configures a Fetcher.
type Options struct {
	ListingURL  string
	BaseURL     string // Origin for root-relative links
	Extension   string // e.g. ".parquet"
	MaxAttempts int
	Backoff     Backoff
	Timeout     time.Duration // connect, TLS handshake, response header and idle body read timeout
}

// Fetcher discovers trip data files on the listing page and downloads them.
type Fetcher struct {
	client      *http.Client
	listingURL  string
	baseURL     string
	ext         string
	maxAttempts int
	backoff     Backoff
	readTimeout time.Duration
	logger      *slog.Logger
}

// NewFetcher creates a Fetcher.
func NewFetcher(opts Options, logger *slog.Logger) *Fetcher {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 1
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	return &Fetcher{
		client:      newHTTPClient(opts.Timeout),
		listingURL:  opts.ListingURL,
		baseURL:     opts.BaseURL,
		ext:         opts.Extension,
		maxAttempts: opts.MaxAttempts,
		backoff:     opts.Backoff,
		readTimeout: opts.Timeout,
		logger:      logger,
	}
}

// newHTTPClient bounds connection setup and the wait for response headers.
// There is no overall deadline so large files can stream for as long as they
// need; stalled bodies are caught per read in downloadOnce.
func newHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = (&net.Dialer{
		Timeout:   timeout,
		KeepAlive: 30 * time.Second,
	}).DialContext
	transport.TLSHandshakeTimeout = timeout
	transport.ResponseHeaderTimeout = timeout
	return &http.Client{Transport: transport}
}
