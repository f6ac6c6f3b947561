// Package inventory converts device snapshots into hardware inventory records
// that a State Manager (SMD) style inventory service can ingest.
package inventory

import (
	"fmt"
	"strconv"
	"time"

	"github.com/Cray-HPE/hms-xname/xnames"
	"github.com/OpenCHAMI/wattbox/pkg/wattbox"
	"github.com/stmcginnis/gofish/redfish"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

type PDUOutlet struct {
	ID         string             `json:"id" yaml:"id"`                   // 1-based outlet index
	Name       string             `json:"name" yaml:"name"`               // e.g., "Router"
	PowerState redfish.PowerState `json:"power_state" yaml:"power_state"` // "On" or "Off"
	ResetOnly  bool               `json:"reset_only,omitempty" yaml:"reset_only,omitempty"`
	Watts      *float64           `json:"watts,omitempty" yaml:"watts,omitempty"`
}

type OutletEnergy struct {
	Outlet int     `json:"outlet" yaml:"outlet"`
	KWh    float64 `json:"kwh" yaml:"kwh"`
}

type PDUInventory struct {
	Hostname        string         `json:"hostname" yaml:"hostname"`
	Model           string         `json:"model,omitempty" yaml:"model,omitempty"`
	SerialNumber    string         `json:"serial_number,omitempty" yaml:"serial_number,omitempty"`
	FirmwareVersion string         `json:"firmware_version,omitempty" yaml:"firmware_version,omitempty"`
	Outlets         []PDUOutlet    `json:"outlets" yaml:"outlets"`
	Energy          []OutletEnergy `json:"energy,omitempty" yaml:"energy,omitempty"`
	CollectedAt     time.Time      `json:"collected_at" yaml:"collected_at"`

	// CanReset advertises PowerCycle on every outlet.
	CanReset bool `json:"can_reset" yaml:"can_reset"`
}

// FromTelemetry builds the inventory of host from a snapshot. Reset-only
// outlets always report On since they cannot be switched off.
func FromTelemetry(host string, t wattbox.Telemetry) PDUInventory {
	inv := PDUInventory{
		Hostname:        host,
		Model:           t.Device.Model,
		SerialNumber:    t.Device.Serial,
		FirmwareVersion: t.Device.Firmware,
		Outlets:         make([]PDUOutlet, 0, len(t.Outlets)),
		CollectedAt:     t.FetchedAt,
	}
	for _, o := range t.Outlets {
		state := redfish.OffPowerState
		if o.IsOn || o.ResetOnly {
			state = redfish.OnPowerState
		}
		inv.Outlets = append(inv.Outlets, PDUOutlet{
			ID:         strconv.Itoa(o.Index),
			Name:       o.Name,
			PowerState: state,
			ResetOnly:  o.ResetOnly,
			Watts:      o.Watts,
		})
	}

	indexes := maps.Keys(t.EnergyKWh)
	slices.Sort(indexes)
	for _, n := range indexes {
		inv.Energy = append(inv.Energy, OutletEnergy{Outlet: n, KWh: t.EnergyKWh[n]})
	}
	return inv
}

type PowerControlAction struct {
	AllowableValues []redfish.PowerState `json:"PowerState@Redfish.AllowableValues"`
	Target          string               `json:"target"`
}

type OutletInfo struct {
	Name       string                        `json:"Name"`
	PowerState redfish.PowerState            `json:"PowerState"`
	Actions    map[string]PowerControlAction `json:"Actions,omitempty"`
}

// ConnectorRecord is one CabinetPDUPowerConnector component endpoint.
type ConnectorRecord struct {
	ID                    string     `json:"ID"`
	Type                  string     `json:"Type"`
	RedfishType           string     `json:"RedfishType"`
	RedfishSubtype        string     `json:"RedfishSubtype"`
	OdataID               string     `json:"OdataID"`
	RedfishEndpointID     string     `json:"RedfishEndpointID"`
	Enabled               bool       `json:"Enabled"`
	RedfishEndpointFQDN   string     `json:"RedfishEndpointFQDN"`
	RedfishURL            string     `json:"RedfishURL"`
	ComponentEndpointType string     `json:"ComponentEndpointType"`
	RedfishOutletInfo     OutletInfo `json:"RedfishOutletInfo"`
}

const powerCycle redfish.PowerState = "PowerCycle"

// ToSMD maps every outlet onto a power connector record placed under the
// PDU controller described by p. Outlets with an unparsable ID are skipped.
func ToSMD(inv PDUInventory, p Placement) []ConnectorRecord {
	controller := p.ControllerXname()
	records := make([]ConnectorRecord, 0, len(inv.Outlets))
	for _, outlet := range inv.Outlets {
		n, err := strconv.Atoi(outlet.ID)
		if err != nil {
			continue
		}
		odataID := fmt.Sprintf("/redfish/v1/PowerEquipment/RackPDUs/%d/Outlets/%d", p.PDU+1, n)

		allowed := []redfish.PowerState{}
		if !outlet.ResetOnly {
			allowed = append(allowed, redfish.OnPowerState, redfish.OffPowerState)
		}
		if inv.CanReset {
			allowed = append(allowed, powerCycle)
		}
		info := OutletInfo{Name: outlet.Name, PowerState: outlet.PowerState}
		if len(allowed) > 0 {
			info.Actions = map[string]PowerControlAction{
				"#Outlet.PowerControl": {
					AllowableValues: allowed,
					Target:          odataID + "/Actions/Outlet.PowerControl",
				},
			}
		}

		records = append(records, ConnectorRecord{
			ID: xnames.CabinetPDUPowerConnector{
				Cabinet:                  p.Cabinet,
				CabinetPDUController:     p.Controller,
				CabinetPDU:               p.PDU,
				CabinetPDUPowerConnector: n,
			}.String(),
			Type:                  "CabinetPDUPowerConnector",
			RedfishType:           "Outlet",
			RedfishSubtype:        "Cx",
			OdataID:               odataID,
			RedfishEndpointID:     controller,
			Enabled:               true,
			RedfishEndpointFQDN:   inv.Hostname,
			RedfishURL:            inv.Hostname + odataID,
			ComponentEndpointType: "ComponentEndpointOutlet",
			RedfishOutletInfo:     info,
		})
	}
	return records
}
