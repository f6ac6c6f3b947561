// Package smd registers PDU controllers with the State Manager (SMD).
//
// See ref for API docs:
//
//	https://github.com/OpenCHAMI/hms-smd/blob/master/docs/examples.adoc
//	https://github.com/OpenCHAMI/hms-smd
package smd

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/OpenCHAMI/wattbox/internal/version"
	"github.com/OpenCHAMI/wattbox/pkg/inventory"
	"github.com/rs/zerolog/log"
)

// HTTPHeader is a set of request headers.
type HTTPHeader map[string]string

func (h HTTPHeader) Authorization(accessToken string) HTTPHeader {
	if accessToken != "" {
		h["Authorization"] = fmt.Sprintf("Bearer %s", accessToken)
	}
	return h
}

func (h HTTPHeader) ContentType(contentType string) HTTPHeader {
	h["Content-Type"] = contentType
	return h
}

// StatusError is returned when SMD answers with a non-2xx status.
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("%s %s: %d: %s", e.Method, e.URL, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("%s %s: returned status code %d", e.Method, e.URL, e.StatusCode)
}

// IsConflict reports whether err is a 409 from SMD, which it returns when an
// endpoint with the same ID already exists.
func IsConflict(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == http.StatusConflict
}

type Client struct {
	*http.Client
	URI         string
	AccessToken string
}

type Option func(*Client) error

// NewClient creates a client for the SMD instance at uri.
func NewClient(uri string, opts ...Option) (*Client, error) {
	c := &Client{
		Client: &http.Client{Timeout: 30 * time.Second},
		URI:    strings.TrimSuffix(uri, "/"),
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func WithAccessToken(token string) Option {
	return func(c *Client) error {
		c.AccessToken = token
		return nil
	}
}

// WithCACert trusts the certificates in certPath. An empty path keeps the
// system roots.
func WithCACert(certPath string) Option {
	return func(c *Client) error {
		if certPath == "" {
			return nil
		}
		cacert, err := os.ReadFile(certPath)
		if err != nil {
			return fmt.Errorf("failed to read CA cert: %w", err)
		}
		certPool := x509.NewCertPool()
		if !certPool.AppendCertsFromPEM(cacert) {
			return fmt.Errorf("no certificates found in %s", certPath)
		}
		c.Client.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{RootCAs: certPool},
		}
		return nil
	}
}

func (c *Client) RootEndpoint(endpoint string) string {
	return fmt.Sprintf("%s/hsm/v2%s", c.URI, endpoint)
}

// Add registers ep via POST /hsm/v2/Inventory/RedfishEndpoints.
func (c *Client) Add(ctx context.Context, ep inventory.RedfishEndpoint) error {
	return c.send(ctx, http.MethodPost, c.RootEndpoint("/Inventory/RedfishEndpoints"), ep)
}

// Update replaces ep via PUT /hsm/v2/Inventory/RedfishEndpoints/{xname}.
func (c *Client) Update(ctx context.Context, ep inventory.RedfishEndpoint) error {
	return c.send(ctx, http.MethodPut, c.RootEndpoint("/Inventory/RedfishEndpoints/"+ep.ID), ep)
}

// Send adds ep, falling back to an update when it already exists and
// forceUpdate is set.
func (c *Client) Send(ctx context.Context, ep inventory.RedfishEndpoint, forceUpdate bool) error {
	err := c.Add(ctx, ep)
	if err == nil || !forceUpdate || !IsConflict(err) {
		return err
	}
	log.Debug().Str("xname", ep.ID).Msg("endpoint exists, updating instead")
	return c.Update(ctx, ep)
}

func (c *Client) send(ctx context.Context, method, url string, data any) error {
	body, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal data for request: %w", err)
	}
	headers := HTTPHeader{}.Authorization(c.AccessToken).ContentType("application/json")
	res, b, err := c.makeRequest(ctx, url, method, body, headers)
	if err != nil {
		return err
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return &StatusError{Method: method, URL: url, StatusCode: res.StatusCode, Body: strings.TrimSpace(string(b))}
	}
	log.Debug().Msgf("%v (%v)\n%s", url, res.Status, string(b))
	return nil
}

func (c *Client) makeRequest(ctx context.Context, url string, method string, body []byte, header HTTPHeader) (*http.Response, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewBuffer(body))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create new HTTP request: %w", err)
	}
	req.Header.Add("User-Agent", "wattbox/"+version.Get().Version)
	for k, v := range header {
		req.Header.Add(k, v)
	}
	res, err := c.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer func() {
		if err := res.Body.Close(); err != nil {
			log.Warn().Err(err).Msg("could not close response resource")
		}
	}()
	b, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return res, b, nil
}
