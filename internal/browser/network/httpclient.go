// browser/network/httpclient.go
package network

import (
	"net/http"
	"net/http/cookiejar"
	"time"

	"golang.org/x/net/publicsuffix"

	"github.com/xkilldash9x/facespatch/internal/config"
)

// Transport tuning for a client that talks to a single application server.
const (
	DefaultRequestTimeout        = 30 * time.Second
	DefaultTLSHandshakeTimeout   = 10 * time.Second
	DefaultResponseHeaderTimeout = 30 * time.Second
	DefaultMaxIdleConnsPerHost   = 4
	DefaultIdleConnTimeout       = 90 * time.Second
)

// headerTransport stamps static headers onto every outgoing request.
type headerTransport struct {
	next    http.RoundTripper
	headers map[string]string
	agent   string
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	for k, v := range t.headers {
		if req.Header.Get(k) == "" {
			req.Header.Set(k, v)
		}
	}
	if t.agent != "" && req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", t.agent)
	}
	return t.next.RoundTrip(req)
}

func (t *headerTransport) CloseIdleConnections() {
	if ci, ok := t.next.(interface{ CloseIdleConnections() }); ok {
		ci.CloseIdleConnections()
	}
}

// NewHTTPTransport creates the base transport. Compression is disabled here
// because CompressionMiddleware handles it.
func NewHTTPTransport() *http.Transport {
	base := http.DefaultTransport.(*http.Transport).Clone()
	base.TLSHandshakeTimeout = DefaultTLSHandshakeTimeout
	base.ResponseHeaderTimeout = DefaultResponseHeaderTimeout
	base.MaxIdleConnsPerHost = DefaultMaxIdleConnsPerHost
	base.IdleConnTimeout = DefaultIdleConnTimeout
	base.DisableCompression = true
	return base
}

// NewClient builds the client used for partial requests. Sessions are kept
// in a cookie jar; redirects are surfaced to the caller.
func NewClient(cfg config.NetworkConfig) *http.Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	jar, _ := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})

	return &http.Client{
		Transport: &headerTransport{
			next:    NewCompressionMiddleware(NewHTTPTransport()),
			headers: cfg.Headers,
			agent:   cfg.UserAgent,
		},
		Timeout: timeout,
		Jar:     jar,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}
