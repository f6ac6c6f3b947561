package wattbox

import (
	"fmt"
	"strings"
	"time"

	"github.com/OpenCHAMI/wattbox/internal/util"
	"github.com/cznic/mathutil"
)

const (
	DefaultTimeout        = 10 * time.Second
	DefaultResetDelay     = 2 * time.Second
	DefaultStatusPath     = "/main"
	DefaultJSONStatusPath = "/api/status"
	DefaultUserAgent      = "wattbox-client/0.1"

	minTimeoutMillis = 100
	maxTimeoutMillis = 60_000
)

// StatusFormat selects how the status endpoint is read.
type StatusFormat string

const (
	StatusFormatAuto StatusFormat = "auto"
	StatusFormatHTML StatusFormat = "html"
	StatusFormatJSON StatusFormat = "json"
)

func (sf StatusFormat) String() string {
	return string(sf)
}

func (sf *StatusFormat) Set(v string) error {
	switch StatusFormat(v) {
	case StatusFormatAuto, StatusFormatHTML, StatusFormatJSON:
		*sf = StatusFormat(v)
		return nil
	default:
		return fmt.Errorf("must be one of %v", []StatusFormat{
			StatusFormatAuto, StatusFormatHTML, StatusFormatJSON,
		})
	}
}

func (sf StatusFormat) Type() string {
	return "StatusFormat"
}

// Config describes how to reach and drive a single device.
type Config struct {
	Host       string // host, host:port or full URL
	UseTLS     bool   // used only when Host carries no scheme
	VerifySSL  bool
	CACertPath string
	Username   string
	Password   string
	Timeout    time.Duration

	StatusFormat   StatusFormat
	StatusPath     string
	JSONStatusPath string

	// NativeReset uses the firmware reset endpoint. When false and SimulateReset
	// is set, a reset is sent as off, ResetDelay, on.
	NativeReset   bool
	SimulateReset bool
	ResetDelay    time.Duration

	UserAgent string
}

// DefaultConfig returns a Config with every optional field populated.
func DefaultConfig() Config {
	return Config{
		VerifySSL:      true,
		Timeout:        DefaultTimeout,
		StatusFormat:   StatusFormatAuto,
		StatusPath:     DefaultStatusPath,
		JSONStatusPath: DefaultJSONStatusPath,
		NativeReset:    true,
		ResetDelay:     DefaultResetDelay,
		UserAgent:      DefaultUserAgent,
	}
}

// Validate checks the configuration and fills zero-valued optional fields.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Host) == "" {
		return fmt.Errorf("host is required")
	}
	if _, err := c.BaseURL(); err != nil {
		return err
	}
	if c.Username == "" && c.Password != "" {
		return fmt.Errorf("password set without username")
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	ms := mathutil.Clamp(int(c.Timeout/time.Millisecond), minTimeoutMillis, maxTimeoutMillis)
	c.Timeout = time.Duration(ms) * time.Millisecond
	if c.StatusFormat == "" {
		c.StatusFormat = StatusFormatAuto
	}
	if err := c.StatusFormat.Set(string(c.StatusFormat)); err != nil {
		return fmt.Errorf("invalid status format %q: %w", c.StatusFormat, err)
	}
	if c.StatusPath == "" {
		c.StatusPath = DefaultStatusPath
	}
	if c.JSONStatusPath == "" {
		c.JSONStatusPath = DefaultJSONStatusPath
	}
	if !strings.HasPrefix(c.StatusPath, "/") || !strings.HasPrefix(c.JSONStatusPath, "/") {
		return fmt.Errorf("status paths must start with '/'")
	}
	if c.ResetDelay <= 0 {
		c.ResetDelay = DefaultResetDelay
	}
	if c.UserAgent == "" {
		c.UserAgent = DefaultUserAgent
	}
	return nil
}

// BaseURL returns the normalized scheme://host[:port] the client talks to.
func (c *Config) BaseURL() (string, error) {
	scheme := "http"
	if c.UseTLS {
		scheme = "https"
	}
	return util.FormatDeviceURL(c.Host, scheme)
}
