package wattbox

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// maxBodySize bounds how much of a response is read. Status pages are a few
// tens of kilobytes.
const maxBodySize = 4 << 20

// newHTTPClient builds the client used for every device request. Redirects are
// never followed: a redirect to the login page is how the firmware signals an
// expired session, so it has to reach the caller.
func newHTTPClient(cfg Config) (*http.Client, error) {
	tlsConfig := &tls.Config{
		InsecureSkipVerify: !cfg.VerifySSL,
	}
	if cfg.CACertPath != "" {
		cacert, err := os.ReadFile(cfg.CACertPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA cert: %w", err)
		}
		certPool := x509.NewCertPool()
		if !certPool.AppendCertsFromPEM(cacert) {
			return nil, fmt.Errorf("no certificates found in %s", cfg.CACertPath)
		}
		tlsConfig.RootCAs = certPool
	}

	return &http.Client{
		Timeout: cfg.Timeout,
		Transport: &http.Transport{
			TLSClientConfig:   tlsConfig,
			DisableKeepAlives: true,
			DialContext: (&net.Dialer{
				Timeout: cfg.Timeout,
			}).DialContext,
			TLSHandshakeTimeout:   cfg.Timeout,
			ResponseHeaderTimeout: cfg.Timeout,
		},
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}, nil
}

// response is a fully read HTTP response.
type response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	URL        *url.URL
}

func (r *response) location() string {
	return r.Header.Get("Location")
}

func (r *response) isRedirect() bool {
	return r.StatusCode >= 300 && r.StatusCode < 400
}

func (r *response) contentType() string {
	return strings.ToLower(r.Header.Get("Content-Type"))
}

// request describes one outbound call.
type request struct {
	Method string
	Path   string // relative to the base URL, or absolute
	Query  url.Values
	Form   url.Values // sent form-encoded when non-nil
}

// do performs a single request, decorating it with the session credentials,
// and reads the body in full.
func (c *Client) do(ctx context.Context, sess *authSession, r request) (*response, error) {
	target, err := c.resolve(r.Path)
	if err != nil {
		return nil, err
	}
	if len(r.Query) > 0 {
		target.RawQuery = r.Query.Encode()
	}

	var body io.Reader
	if r.Form != nil {
		body = bytes.NewBufferString(r.Form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, r.Method, target.String(), body)
	if err != nil {
		return nil, fmt.Errorf("failed to create new HTTP request: %w", err)
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	if r.Form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if sess != nil {
		sess.decorate(req, c.cfg.Username, c.cfg.Password)
	}

	hc := c.http
	if sess != nil && sess.client != nil {
		hc = sess.client
	}
	start := time.Now()
	res, err := hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := res.Body.Close(); err != nil {
			log.Warn().Err(err).Msg("could not close response resource")
		}
	}()
	b, err := io.ReadAll(io.LimitReader(res.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	log.Trace().
		Str("method", r.Method).
		Str("url", target.String()).
		Int("status", res.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("device request")

	return &response{
		StatusCode: res.StatusCode,
		Header:     res.Header,
		Body:       b,
		URL:        target,
	}, nil
}

func (c *Client) resolve(path string) (*url.URL, error) {
	ref, err := url.Parse(path)
	if err != nil {
		return nil, fmt.Errorf("invalid path %q: %w", path, err)
	}
	target := c.base.ResolveReference(ref)
	if target.Host != c.base.Host {
		// never hand session credentials to another host
		return nil, fmt.Errorf("refusing request to foreign host %q", target.Host)
	}
	return target, nil
}
