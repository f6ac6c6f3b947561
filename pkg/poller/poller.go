// Package poller refreshes a device on a fixed interval and tracks whether it
// is reachable. A failed poll keeps the last snapshot; the device is only
// reported unavailable after several consecutive failures.
package poller

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/OpenCHAMI/wattbox/pkg/wattbox"
	"github.com/cznic/mathutil"
	"github.com/rs/zerolog/log"
)

const (
	DefaultInterval         = 30 * time.Second
	DefaultFailureThreshold = 3

	minInterval  = time.Second
	maxThreshold = 100
)

// Client is the part of *wattbox.Client the poller drives.
type Client interface {
	Host() string
	Refresh(ctx context.Context) error
	Telemetry() (wattbox.Telemetry, error)
	AuthMode() (wattbox.AuthMode, wattbox.AuthState)
}

var _ Client = (*wattbox.Client)(nil)

// Sink receives every successfully polled snapshot.
type Sink interface {
	Store(host string, t wattbox.Telemetry) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(host string, t wattbox.Telemetry) error

func (f SinkFunc) Store(host string, t wattbox.Telemetry) error {
	return f(host, t)
}

type Poller struct {
	Client           Client
	Interval         time.Duration
	FailureThreshold int
	Sink             Sink // optional

	mu          sync.Mutex
	failures    int
	lastSuccess time.Time
	lastErr     error
}

// Status summarizes the health of the polled device.
type Status struct {
	Host                string     `json:"host"`
	Available           bool       `json:"available"`
	ConsecutiveFailures int        `json:"consecutive_failures"`
	LastSuccess         *time.Time `json:"last_success,omitempty"`
	LastError           string     `json:"last_error,omitempty"`
	AuthMode            string     `json:"auth_mode"`
	AuthState           string     `json:"auth_state"`
}

func New(client Client, interval time.Duration, sink Sink) *Poller {
	return &Poller{
		Client:           client,
		Interval:         interval,
		FailureThreshold: DefaultFailureThreshold,
		Sink:             sink,
	}
}

func (p *Poller) interval() time.Duration {
	if p.Interval <= 0 {
		return DefaultInterval
	}
	if p.Interval < minInterval {
		return minInterval
	}
	return p.Interval
}

func (p *Poller) threshold() int {
	if p.FailureThreshold <= 0 {
		return DefaultFailureThreshold
	}
	return mathutil.Clamp(p.FailureThreshold, 1, maxThreshold)
}

// Run polls immediately and then on every tick until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) error {
	interval := p.interval()
	log.Info().Str("host", p.Client.Host()).Dur("interval", interval).Msg("starting poller")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		_ = p.Poll(ctx)
		select {
		case <-ctx.Done():
			log.Info().Str("host", p.Client.Host()).Msg("stopping poller")
			return nil
		case <-ticker.C:
		}
	}
}

// Poll runs a single refresh cycle bounded by the poll interval.
func (p *Poller) Poll(ctx context.Context) error {
	host := p.Client.Host()
	ctx, cancel := context.WithTimeout(ctx, p.interval())
	defer cancel()

	err := p.Client.Refresh(ctx)
	switch {
	case errors.Is(err, wattbox.ErrRefreshInProgress):
		log.Debug().Str("host", host).Msg("refresh still running, skipping poll")
		return nil
	case err != nil:
		p.recordFailure(host, err)
		return err
	}

	p.recordSuccess(host)
	if p.Sink != nil {
		tel, err := p.Client.Telemetry()
		if err == nil {
			err = p.Sink.Store(host, tel)
		}
		if err != nil {
			log.Warn().Err(err).Str("host", host).Msg("failed to store snapshot")
		}
	}
	return nil
}

func (p *Poller) recordFailure(host string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failures++
	p.lastErr = err
	log.Warn().Err(err).Str("host", host).Int("failures", p.failures).Msg("poll failed")
	if p.failures == p.threshold() {
		log.Error().Str("host", host).Int("failures", p.failures).Msg("device unavailable")
	}
}

func (p *Poller) recordSuccess(host string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failures >= p.threshold() {
		log.Info().Str("host", host).Msg("device available again")
	}
	p.failures = 0
	p.lastErr = nil
	p.lastSuccess = time.Now()
}

// Available is true once a poll succeeded and fewer than FailureThreshold
// polls have failed since.
func (p *Poller) Available() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return !p.lastSuccess.IsZero() && p.failures < p.threshold()
}

func (p *Poller) Status() Status {
	mode, state := p.Client.AuthMode()

	p.mu.Lock()
	defer p.mu.Unlock()
	s := Status{
		Host:                p.Client.Host(),
		Available:           !p.lastSuccess.IsZero() && p.failures < p.threshold(),
		ConsecutiveFailures: p.failures,
		AuthMode:            mode.String(),
		AuthState:           state.String(),
	}
	if !p.lastSuccess.IsZero() {
		t := p.lastSuccess
		s.LastSuccess = &t
	}
	if p.lastErr != nil {
		s.LastError = p.lastErr.Error()
	}
	return s
}
