package inventory

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/OpenCHAMI/wattbox/internal/format"
	"github.com/OpenCHAMI/wattbox/pkg/wattbox"
	"github.com/stmcginnis/gofish/redfish"
)

func float(v float64) *float64 { return &v }

func snapshot() wattbox.Telemetry {
	return wattbox.Telemetry{
		Outlets: []wattbox.OutletState{
			{Index: 1, Name: "Router", IsOn: true, Watts: float(12.5)},
			{Index: 2, Name: "Switch"},
			{Index: 3, Name: "Modem", ResetOnly: true},
		},
		EnergyKWh: map[int]float64{3: 0.5, 1: 10.25},
		Device:    wattbox.DeviceInfo{Model: "WB-800-IPVM-12", Serial: "SN1", Firmware: "2.5.1"},
		FetchedAt: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestFromTelemetry(t *testing.T) {
	inv := FromTelemetry("pdu1.local", snapshot())

	if inv.Hostname != "pdu1.local" || inv.Model != "WB-800-IPVM-12" || inv.FirmwareVersion != "2.5.1" {
		t.Errorf("unexpected device fields: %+v", inv)
	}
	want := []redfish.PowerState{redfish.OnPowerState, redfish.OffPowerState, redfish.OnPowerState}
	if len(inv.Outlets) != len(want) {
		t.Fatalf("expected %d outlets, got %d", len(want), len(inv.Outlets))
	}
	for i, o := range inv.Outlets {
		if o.PowerState != want[i] {
			t.Errorf("outlet %s: expected %s, got %s", o.ID, want[i], o.PowerState)
		}
	}
	if len(inv.Energy) != 2 || inv.Energy[0].Outlet != 1 || inv.Energy[1].Outlet != 3 {
		t.Errorf("expected energy sorted by outlet, got %+v", inv.Energy)
	}
}

func TestToSMD(t *testing.T) {
	inv := FromTelemetry("pdu1.local", snapshot())
	inv.CanReset = true
	records := ToSMD(inv, Placement{Cabinet: 1000, Controller: 0, PDU: 0})
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}

	tests := []struct {
		id      string
		allowed int
	}{
		{id: "x1000m0p0v1", allowed: 3},
		{id: "x1000m0p0v2", allowed: 3},
		{id: "x1000m0p0v3", allowed: 1},
	}
	for i, tt := range tests {
		r := records[i]
		if r.ID != tt.id {
			t.Errorf("record %d: expected ID %s, got %s", i, tt.id, r.ID)
		}
		if r.RedfishEndpointID != "x1000m0" {
			t.Errorf("record %d: unexpected endpoint %s", i, r.RedfishEndpointID)
		}
		action, ok := r.RedfishOutletInfo.Actions["#Outlet.PowerControl"]
		if !ok {
			t.Fatalf("record %d: missing power control action", i)
		}
		if len(action.AllowableValues) != tt.allowed {
			t.Errorf("record %d: expected %d allowable values, got %v", i, tt.allowed, action.AllowableValues)
		}
	}

	// a reset-only outlet without reset support cannot be controlled at all
	inv.CanReset = false
	records = ToSMD(inv, Placement{Cabinet: 1000})
	if records[2].RedfishOutletInfo.Actions != nil {
		t.Errorf("expected no actions, got %+v", records[2].RedfishOutletInfo.Actions)
	}
}

func TestLoadPlacementMap(t *testing.T) {
	m, err := LoadPlacementMap("", format.FORMAT_JSON)
	if err != nil || m != nil {
		t.Fatalf("expected nil map without error, got %v, %v", m, err)
	}
	if p, ok := m.Lookup("anything"); !ok || p != (Placement{}) {
		t.Errorf("expected zero placement from nil map, got %+v", p)
	}

	m, err = LoadPlacementMap(`{"placements": {"10.0.0.5": {"cabinet": 3000, "controller": 1}}}`, format.FORMAT_JSON)
	if err != nil {
		t.Fatal(err)
	}
	if p, ok := m.Lookup("10.0.0.5"); !ok || p.Cabinet != 3000 || p.Controller != 1 {
		t.Errorf("unexpected placement %+v", p)
	}
	if _, ok := m.Lookup("10.0.0.6"); ok {
		t.Error("expected lookup of an unmapped host to fail")
	}

	path := filepath.Join(t.TempDir(), "placements.yaml")
	data := "default:\n  cabinet: 9\nplacements:\n  pdu1:\n    cabinet: 1\n    pdu: 2\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	m, err = LoadPlacementMap("@"+path, format.FORMAT_JSON)
	if err != nil {
		t.Fatal(err)
	}
	if p, _ := m.Lookup("pdu1"); p.PDU != 2 || p.Cabinet != 1 {
		t.Errorf("unexpected placement %+v", p)
	}
	if p, ok := m.Lookup("other"); !ok || p.Cabinet != 9 {
		t.Errorf("expected default placement, got %+v", p)
	}
}

func TestToEndpoint(t *testing.T) {
	inv := FromTelemetry("pdu1.local", snapshot())
	ep := ToEndpoint(inv, Placement{Cabinet: 1000, Controller: 2})

	if ep.ID != "x1000m2" || ep.Type != "CabinetPDUController" {
		t.Errorf("unexpected endpoint identity %s (%s)", ep.ID, ep.Type)
	}
	if ep.FQDN != "pdu1.local" || !ep.Enabled {
		t.Errorf("unexpected endpoint fields: %+v", ep)
	}
	if ep.PDUInventory.SerialNumber != "SN1" || len(ep.PDUInventory.Outlets) != 3 {
		t.Errorf("unexpected endpoint inventory: %+v", ep.PDUInventory)
	}
	if got := ep.PDUInventory.Outlets[0].RedfishEndpointID; got != ep.ID {
		t.Errorf("expected outlets under %s, got %s", ep.ID, got)
	}
}
