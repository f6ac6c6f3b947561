// Package wattbox is an HTTP client for WattBox-class power distribution units.
// It detects how the device authenticates, polls its status page into a
// cached Telemetry snapshot and drives the outlets.
package wattbox

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/OpenCHAMI/wattbox/internal/util"
	"github.com/rs/zerolog/log"
)

// Client talks to a single device. It is safe for concurrent use.
type Client struct {
	cfg  Config
	base *url.URL
	host string
	http *http.Client

	authMu  sync.Mutex // guards state and session, held during detection
	state   AuthState
	session *authSession

	snapshot   atomic.Pointer[Telemetry]
	refreshing atomic.Bool

	now   func() time.Time
	sleep func(context.Context, time.Duration) error
}

// New validates cfg and builds a client. No request is sent until the first
// operation that needs the device.
func New(cfg Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	baseURL, err := cfg.BaseURL()
	if err != nil {
		return nil, err
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	httpClient, err := newHTTPClient(cfg)
	if err != nil {
		return nil, err
	}
	return &Client{
		cfg:   cfg,
		base:  base,
		host:  util.HostID(baseURL),
		http:  httpClient,
		now:   time.Now,
		sleep: sleepContext,
	}, nil
}

// Host returns the host[:port] identifying the device.
func (c *Client) Host() string {
	return c.host
}

// Config returns the validated configuration.
func (c *Client) Config() Config {
	return c.cfg
}

// Refresh fetches and parses the status page and replaces the cached snapshot.
// On any failure the previous snapshot is kept. A call made while another
// refresh is running returns ErrRefreshInProgress without contacting the device.
func (c *Client) Refresh(ctx context.Context) error {
	if !c.refreshing.CompareAndSwap(false, true) {
		return ErrRefreshInProgress
	}
	defer c.refreshing.Store(false)

	const op = "refresh"
	var format Format
	res, err := c.authedDo(ctx, op, func(sess *authSession) request {
		format = sess.format
		path := c.cfg.StatusPath
		if format == FormatJSON {
			path = c.cfg.JSONStatusPath
		}
		return request{Method: http.MethodGet, Path: path}
	})
	if err != nil {
		return err
	}
	if res.StatusCode != http.StatusOK {
		return unexpectedStatus(op, res)
	}

	t, err := parserFor(format)(res.Body)
	if err != nil {
		return &DeviceError{Kind: KindParse, Op: op, Msg: format.String() + " status", Err: err}
	}
	t.FetchedAt = c.now()

	prev := c.snapshot.Swap(t)
	if prev != nil {
		for n, kwh := range t.EnergyKWh {
			if old, ok := prev.EnergyKWh[n]; ok && kwh < old {
				log.Info().Str("host", c.host).Int("outlet", n).
					Float64("previous", old).Float64("current", kwh).
					Msg("energy counter went backwards, device counter was reset")
			}
		}
	}
	log.Debug().Str("host", c.host).Int("outlets", len(t.Outlets)).Msg("refreshed status")
	return nil
}

// Outlet returns the cached state of outlet n.
func (c *Client) Outlet(n int) (OutletState, error) {
	return c.knownOutlet("get outlet", n)
}

// Telemetry returns a copy of the cached snapshot.
func (c *Client) Telemetry() (Telemetry, error) {
	snap := c.snapshot.Load()
	if snap == nil {
		return Telemetry{}, &DeviceError{Kind: KindNotReady, Op: "get telemetry", Msg: "no successful poll yet"}
	}
	return snap.Clone(), nil
}

// SetOutlet switches outlet n on or off. On success the cached snapshot is
// updated right away; the next refresh supersedes it.
func (c *Client) SetOutlet(ctx context.Context, n int, on bool) error {
	const op = "set outlet"
	o, err := c.knownOutlet(op, n)
	if err != nil {
		return err
	}
	if o.ResetOnly {
		return &DeviceError{Kind: KindUnsupported, Op: op, Outlet: n, Msg: "outlet is reset-only"}
	}
	action := "off"
	if on {
		action = "on"
	}
	if err := c.sendCommand(ctx, op, n, action); err != nil {
		return err
	}
	c.updateOutlet(n, func(o *OutletState) { o.IsOn = on })
	log.Info().Str("host", c.host).Int("outlet", n).Bool("on", on).Msg("outlet switched")
	return nil
}

// ResetOutlet power cycles outlet n. The firmware reset endpoint is used when
// NativeReset is set; the off/on sequence runs when SimulateReset is set and
// the native reset is disabled or missing from the firmware.
func (c *Client) ResetOutlet(ctx context.Context, n int) error {
	const op = "reset outlet"
	o, err := c.knownOutlet(op, n)
	if err != nil {
		return err
	}

	native := c.cfg.NativeReset
	switch {
	case native:
		err = c.sendCommand(ctx, op, n, "reset")
		if c.cfg.SimulateReset && errors.Is(err, ErrUnsupported) {
			log.Info().Str("host", c.host).Int("outlet", n).Msg("firmware has no reset endpoint, simulating reset")
			native = false
			err = c.simulateReset(ctx, op, n, o.ResetOnly)
		}
	case c.cfg.SimulateReset:
		err = c.simulateReset(ctx, op, n, o.ResetOnly)
	default:
		return &DeviceError{Kind: KindUnsupported, Op: op, Outlet: n, Msg: "native reset disabled and simulation not enabled"}
	}
	if err != nil {
		return err
	}
	if !o.ResetOnly {
		c.updateOutlet(n, func(o *OutletState) { o.IsOn = true })
	}
	log.Info().Str("host", c.host).Int("outlet", n).Bool("native", native).Msg("outlet reset")
	return nil
}

func (c *Client) simulateReset(ctx context.Context, op string, n int, resetOnly bool) error {
	if err := c.sendCommand(ctx, op, n, "off"); err != nil {
		return err
	}
	if !resetOnly {
		c.updateOutlet(n, func(o *OutletState) { o.IsOn = false })
	}
	if err := c.sleep(ctx, c.cfg.ResetDelay); err != nil {
		return &DeviceError{Kind: KindCommand, Op: op, Outlet: n, Msg: "interrupted with outlet off", Err: err}
	}
	if err := c.sendCommand(ctx, op, n, "on"); err != nil {
		var de *DeviceError
		if errors.As(err, &de) && de.Msg != "" {
			de.Msg = "outlet left off: " + de.Msg
		}
		return err
	}
	return nil
}

// sendCommand issues GET /outlet/{action}?o=n. Any 2xx or non-login redirect
// counts as accepted.
func (c *Client) sendCommand(ctx context.Context, op string, n int, action string) error {
	res, err := c.authedDo(ctx, op, func(*authSession) request {
		return request{
			Method: http.MethodGet,
			Path:   "/outlet/" + action,
			Query:  url.Values{"o": {strconv.Itoa(n)}},
		}
	})
	if err != nil {
		var de *DeviceError
		if errors.As(err, &de) && de.Kind == KindConnect {
			return &DeviceError{Kind: KindCommand, Op: op, Outlet: n, Msg: action + " not delivered", Err: err}
		}
		if errors.As(err, &de) && de.Outlet == 0 {
			de.Outlet = n
		}
		return err
	}

	switch {
	case res.StatusCode >= 200 && res.StatusCode < 400:
		log.Debug().Str("host", c.host).Int("outlet", n).Str("action", action).Int("status", res.StatusCode).Msg("command accepted")
		return nil
	case res.StatusCode == http.StatusNotFound && action == "reset":
		return &DeviceError{Kind: KindUnsupported, Op: op, Outlet: n, StatusCode: res.StatusCode, Msg: "firmware has no reset endpoint"}
	default:
		return &DeviceError{Kind: KindCommand, Op: op, Outlet: n, StatusCode: res.StatusCode, Msg: action + " rejected"}
	}
}

func (c *Client) knownOutlet(op string, n int) (OutletState, error) {
	snap := c.snapshot.Load()
	if snap == nil {
		return OutletState{}, &DeviceError{Kind: KindNotReady, Op: op, Outlet: n, Msg: "no successful poll yet"}
	}
	o, ok := snap.Outlet(n)
	if !ok {
		return OutletState{}, &DeviceError{Kind: KindInvalidOutlet, Op: op, Outlet: n, Msg: fmt.Sprintf("device has %d outlets", len(snap.Outlets))}
	}
	o.Watts = copyFloat(o.Watts)
	o.Amps = copyFloat(o.Amps)
	return o, nil
}

// updateOutlet applies fn to outlet n in a copy of the snapshot and swaps it
// in, retrying when a refresh replaced the snapshot meanwhile.
func (c *Client) updateOutlet(n int, fn func(*OutletState)) {
	for {
		cur := c.snapshot.Load()
		if cur == nil {
			return
		}
		next := cur.Clone()
		for i := range next.Outlets {
			if next.Outlets[i].Index == n {
				fn(&next.Outlets[i])
			}
		}
		if c.snapshot.CompareAndSwap(cur, &next) {
			return
		}
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
