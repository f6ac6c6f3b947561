// Package adapter maps a device client onto the entities a home automation
// host consumes: one switch per outlet and read-only sensors. Adapters keep no
// state of their own and read through to the client on every call.
package adapter

import (
	"context"
	"errors"
	"fmt"

	"github.com/OpenCHAMI/wattbox/pkg/wattbox"
)

// Device is the part of *wattbox.Client the adapters use.
type Device interface {
	Refresh(ctx context.Context) error
	Outlet(n int) (wattbox.OutletState, error)
	Telemetry() (wattbox.Telemetry, error)
	SetOutlet(ctx context.Context, n int, on bool) error
	ResetOutlet(ctx context.Context, n int) error
}

var _ Device = (*wattbox.Client)(nil)

// Switch controls a single outlet.
type Switch struct {
	dev    Device
	host   string
	number int
}

// SwitchState is the serializable view of a switch.
type SwitchState struct {
	UniqueID   string         `json:"unique_id"`
	Name       string         `json:"name"`
	Number     int            `json:"outlet_number"`
	IsOn       bool           `json:"is_on"`
	Available  bool           `json:"available"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// NewSwitches returns one switch per outlet in the current snapshot,
// reset-only outlets included.
func NewSwitches(dev Device, host string) ([]*Switch, error) {
	tel, err := dev.Telemetry()
	if err != nil {
		return nil, err
	}
	switches := make([]*Switch, 0, len(tel.Outlets))
	for _, o := range tel.Outlets {
		switches = append(switches, &Switch{dev: dev, host: host, number: o.Index})
	}
	return switches, nil
}

func (s *Switch) Number() int {
	return s.number
}

func (s *Switch) UniqueID() string {
	return fmt.Sprintf("wattbox-%s-outlet-%d", s.host, s.number)
}

func (s *Switch) Name() string {
	if o, err := s.dev.Outlet(s.number); err == nil && o.Name != "" {
		return o.Name
	}
	return fmt.Sprintf("Outlet %d", s.number)
}

// IsOn reports the last known state. It is false while no snapshot exists.
func (s *Switch) IsOn() bool {
	o, err := s.dev.Outlet(s.number)
	return err == nil && o.IsOn
}

// Available reports whether the outlet is present in the current snapshot.
func (s *Switch) Available() bool {
	_, err := s.dev.Outlet(s.number)
	return err == nil
}

func (s *Switch) TurnOn(ctx context.Context) error {
	return s.dev.SetOutlet(ctx, s.number, true)
}

func (s *Switch) TurnOff(ctx context.Context) error {
	return s.dev.SetOutlet(ctx, s.number, false)
}

func (s *Switch) Reset(ctx context.Context) error {
	return s.dev.ResetOutlet(ctx, s.number)
}

// Update refreshes the device. A refresh already running elsewhere is fine.
func (s *Switch) Update(ctx context.Context) error {
	err := s.dev.Refresh(ctx)
	if errors.Is(err, wattbox.ErrRefreshInProgress) {
		return nil
	}
	return err
}

// Attributes returns outlet_number and reset_only, plus watts and amps when
// the device reports them.
func (s *Switch) Attributes() map[string]any {
	attrs := map[string]any{"outlet_number": s.number}
	o, err := s.dev.Outlet(s.number)
	if err != nil {
		return attrs
	}
	attrs["reset_only"] = o.ResetOnly
	if o.Watts != nil {
		attrs["watts"] = *o.Watts
	}
	if o.Amps != nil {
		attrs["amps"] = *o.Amps
	}
	return attrs
}

func (s *Switch) State() SwitchState {
	return SwitchState{
		UniqueID:   s.UniqueID(),
		Name:       s.Name(),
		Number:     s.number,
		IsOn:       s.IsOn(),
		Available:  s.Available(),
		Attributes: s.Attributes(),
	}
}
