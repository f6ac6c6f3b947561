package adapter

import (
	"fmt"

	"github.com/OpenCHAMI/wattbox/pkg/wattbox"
)

const (
	StateClassMeasurement     = "measurement"
	StateClassTotalIncreasing = "total_increasing"
)

// SensorDescription is the metadata a host needs to display and aggregate a
// reading.
type SensorDescription struct {
	Key         string `json:"key"`
	Name        string `json:"name"`
	Unit        string `json:"unit"`
	DeviceClass string `json:"device_class"`
	StateClass  string `json:"state_class"`
}

// Sensor is a read-only view of one telemetry field.
type Sensor struct {
	SensorDescription
	dev    Device
	host   string
	outlet int // 0 for system sensors
	read   func(wattbox.Telemetry) *float64
}

// SensorState is the serializable view of a sensor.
type SensorState struct {
	UniqueID string `json:"unique_id"`
	SensorDescription
	Outlet    int      `json:"outlet,omitempty"`
	Value     *float64 `json:"value"`
	Available bool     `json:"available"`
	Error     string   `json:"error,omitempty"`
}

var systemSensors = []struct {
	desc SensorDescription
	read func(wattbox.Telemetry) *float64
}{
	{
		SensorDescription{Key: "voltage", Name: "Voltage", Unit: "V", DeviceClass: "voltage", StateClass: StateClassMeasurement},
		func(t wattbox.Telemetry) *float64 { return t.Voltage },
	},
	{
		SensorDescription{Key: "total_watts", Name: "Power", Unit: "W", DeviceClass: "power", StateClass: StateClassMeasurement},
		func(t wattbox.Telemetry) *float64 { return t.TotalWatts },
	},
	{
		SensorDescription{Key: "total_amps", Name: "Current", Unit: "A", DeviceClass: "current", StateClass: StateClassMeasurement},
		func(t wattbox.Telemetry) *float64 { return t.TotalAmps },
	},
}

// NewSensors returns the system sensors followed by watts, amps and energy
// sensors for every outlet in the current snapshot.
func NewSensors(dev Device, host string) ([]*Sensor, error) {
	tel, err := dev.Telemetry()
	if err != nil {
		return nil, err
	}

	sensors := make([]*Sensor, 0, len(systemSensors)+3*len(tel.Outlets))
	for _, s := range systemSensors {
		sensors = append(sensors, &Sensor{SensorDescription: s.desc, dev: dev, host: host, read: s.read})
	}
	for _, o := range tel.Outlets {
		sensors = append(sensors, outletSensors(dev, host, o.Index)...)
	}
	return sensors, nil
}

func outletSensors(dev Device, host string, n int) []*Sensor {
	outlet := func(t wattbox.Telemetry) (wattbox.OutletState, bool) {
		return t.Outlet(n)
	}
	return []*Sensor{
		{
			SensorDescription: SensorDescription{
				Key: fmt.Sprintf("outlet_%d_watts", n), Name: fmt.Sprintf("Outlet %d Power", n),
				Unit: "W", DeviceClass: "power", StateClass: StateClassMeasurement,
			},
			dev: dev, host: host, outlet: n,
			read: func(t wattbox.Telemetry) *float64 {
				if o, ok := outlet(t); ok {
					return o.Watts
				}
				return nil
			},
		},
		{
			SensorDescription: SensorDescription{
				Key: fmt.Sprintf("outlet_%d_amps", n), Name: fmt.Sprintf("Outlet %d Current", n),
				Unit: "A", DeviceClass: "current", StateClass: StateClassMeasurement,
			},
			dev: dev, host: host, outlet: n,
			read: func(t wattbox.Telemetry) *float64 {
				if o, ok := outlet(t); ok {
					return o.Amps
				}
				return nil
			},
		},
		{
			SensorDescription: SensorDescription{
				Key: fmt.Sprintf("outlet_%d_energy", n), Name: fmt.Sprintf("Outlet %d Energy", n),
				Unit: "kWh", DeviceClass: "energy", StateClass: StateClassTotalIncreasing,
			},
			dev: dev, host: host, outlet: n,
			read: func(t wattbox.Telemetry) *float64 {
				if v, ok := t.EnergyKWh[n]; ok {
					return &v
				}
				return nil
			},
		},
	}
}

func (s *Sensor) UniqueID() string {
	return fmt.Sprintf("wattbox-%s-%s", s.host, s.Key)
}

// Outlet returns the outlet number, or 0 for a system sensor.
func (s *Sensor) Outlet() int {
	return s.outlet
}

// Value reads the field from the current snapshot. A nil value with a nil
// error means the device does not report it.
func (s *Sensor) Value() (*float64, error) {
	tel, err := s.dev.Telemetry()
	if err != nil {
		return nil, err
	}
	return s.read(tel), nil
}

// State reports the current reading. Available is false when the device has
// no usable snapshot; a nil Value on an available sensor means the field is
// not reported.
func (s *Sensor) State() SensorState {
	state := SensorState{
		UniqueID:          s.UniqueID(),
		SensorDescription: s.SensorDescription,
		Outlet:            s.outlet,
	}
	v, err := s.Value()
	if err != nil {
		state.Error = err.Error()
		return state
	}
	state.Value = v
	state.Available = true
	return state
}
