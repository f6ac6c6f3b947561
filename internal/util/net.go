package util

import (
	"fmt"
	"net/url"
	"strings"
)

// FormatDeviceURL() takes a device address given as a bare host, host:port or
// a full URL and builds a base URL in the form of scheme://host[:port]. If no
// scheme is provided, defaultScheme is used ("http" when that is empty too).
//
// Any path, query or trailing slash is dropped since device endpoints are
// always addressed from the root.
func FormatDeviceURL(host string, defaultScheme string) (string, error) {
	host = strings.TrimSpace(host)
	if host == "" {
		return "", fmt.Errorf("no host provided")
	}
	if defaultScheme == "" {
		// hardcoded assumption, the device serves plain HTTP out of the box
		defaultScheme = "http"
	}

	// url.Parse() treats "host:port" as "scheme:opaque", so only parse
	// as a URL when a scheme separator is present
	if !strings.Contains(host, "://") {
		host = defaultScheme + "://" + host
	}
	uri, err := url.Parse(host)
	if err != nil {
		return "", fmt.Errorf("invalid host %q: %w", host, err)
	}
	switch uri.Scheme {
	case "http", "https":
	default:
		return "", fmt.Errorf("unsupported scheme %q", uri.Scheme)
	}
	if uri.Host == "" {
		return "", fmt.Errorf("invalid host %q: missing hostname", host)
	}
	return fmt.Sprintf("%s://%s", uri.Scheme, uri.Host), nil
}

// HostID() returns the identifier used for a device in secret stores,
// caches and entity IDs: the host[:port] part of its base URL.
func HostID(baseURL string) string {
	uri, err := url.Parse(baseURL)
	if err != nil || uri.Host == "" {
		return baseURL
	}
	return uri.Host
}
