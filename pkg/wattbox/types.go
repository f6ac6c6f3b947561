package wattbox

import (
	"time"
)

// OutletState is one switchable socket as reported by the last successful poll.
// Values are rebuilt from scratch on every poll and never edited in place.
type OutletState struct {
	Index     int      `json:"index" yaml:"index"`
	Name      string   `json:"name" yaml:"name"`
	IsOn      bool     `json:"is_on" yaml:"is_on"`
	ResetOnly bool     `json:"reset_only" yaml:"reset_only"`
	Watts     *float64 `json:"watts,omitempty" yaml:"watts,omitempty"`
	Amps      *float64 `json:"amps,omitempty" yaml:"amps,omitempty"`
}

// DeviceInfo holds identifying details. Only JSON firmware reports these.
type DeviceInfo struct {
	Model    string `json:"model,omitempty" yaml:"model,omitempty"`
	Serial   string `json:"serial,omitempty" yaml:"serial,omitempty"`
	Firmware string `json:"firmware,omitempty" yaml:"firmware,omitempty"`
}

// Telemetry is a complete snapshot of the device. EnergyKWh is keyed by outlet
// index and is passed through from the device counters unchanged.
type Telemetry struct {
	Voltage    *float64        `json:"voltage,omitempty" yaml:"voltage,omitempty"`
	TotalWatts *float64        `json:"total_watts,omitempty" yaml:"total_watts,omitempty"`
	TotalAmps  *float64        `json:"total_amps,omitempty" yaml:"total_amps,omitempty"`
	Outlets    []OutletState   `json:"outlets" yaml:"outlets"`
	EnergyKWh  map[int]float64 `json:"energy_kwh,omitempty" yaml:"energy_kwh,omitempty"`
	Device     DeviceInfo      `json:"device" yaml:"device"`
	FetchedAt  time.Time       `json:"fetched_at" yaml:"fetched_at"`
}

// Outlet returns the outlet with the given 1-based index.
func (t *Telemetry) Outlet(index int) (OutletState, bool) {
	for _, o := range t.Outlets {
		if o.Index == index {
			return o, true
		}
	}
	return OutletState{}, false
}

// Clone returns a deep copy so that callers can never reach the cached snapshot.
func (t *Telemetry) Clone() Telemetry {
	c := Telemetry{
		Voltage:    copyFloat(t.Voltage),
		TotalWatts: copyFloat(t.TotalWatts),
		TotalAmps:  copyFloat(t.TotalAmps),
		Device:     t.Device,
		FetchedAt:  t.FetchedAt,
		Outlets:    make([]OutletState, len(t.Outlets)),
	}
	for i, o := range t.Outlets {
		o.Watts = copyFloat(o.Watts)
		o.Amps = copyFloat(o.Amps)
		c.Outlets[i] = o
	}
	if t.EnergyKWh != nil {
		c.EnergyKWh = make(map[int]float64, len(t.EnergyKWh))
		for k, v := range t.EnergyKWh {
			c.EnergyKWh[k] = v
		}
	}
	return c
}

func copyFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}

// Format is the status representation served by the firmware.
type Format int

const (
	FormatHTML Format = iota
	FormatJSON
)

func (f Format) String() string {
	switch f {
	case FormatHTML:
		return "html"
	case FormatJSON:
		return "json"
	default:
		return "unknown"
	}
}
