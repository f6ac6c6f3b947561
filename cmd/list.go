package cmd

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/OpenCHAMI/wattbox/internal/cache/sqlite"
	"github.com/OpenCHAMI/wattbox/pkg/inventory"
	"github.com/OpenCHAMI/wattbox/pkg/wattbox"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

var headerStyle = lipgloss.NewStyle().Bold(true)

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle.Padding(0, 1)
			}
			return lipgloss.NewStyle().Padding(0, 1)
		}).
		Headers(headers...)
}

func reading(v *float64, unit string) string {
	if v == nil {
		return "-"
	}
	return strconv.FormatFloat(*v, 'f', -1, 64) + " " + unit
}

// statusView is the output of `wattbox status`.
type statusView struct {
	Host              string `json:"host" yaml:"host"`
	Cached            bool   `json:"cached" yaml:"cached"`
	wattbox.Telemetry `yaml:",inline"`
}

func (v statusView) List(w io.Writer) error {
	source := "live"
	if v.Cached {
		source = "cached"
	}
	fmt.Fprintf(w, "%s (%s @ %s)\n", v.Host, source, v.FetchedAt.Format(time.RFC3339))
	if v.Device.Model != "" {
		fmt.Fprintf(w, "model %s, serial %s, firmware %s\n", v.Device.Model, v.Device.Serial, v.Device.Firmware)
	}
	fmt.Fprintf(w, "voltage %s, power %s, current %s\n",
		reading(v.Voltage, "V"), reading(v.TotalWatts, "W"), reading(v.TotalAmps, "A"))

	t := newTable("OUTLET", "NAME", "STATE", "POWER", "CURRENT", "ENERGY")
	for _, o := range v.Outlets {
		state := "off"
		switch {
		case o.ResetOnly:
			state = "reset only"
		case o.IsOn:
			state = "on"
		}
		var energy *float64
		if e, ok := v.EnergyKWh[o.Index]; ok {
			energy = &e
		}
		t.Row(strconv.Itoa(o.Index), o.Name, state, reading(o.Watts, "W"), reading(o.Amps, "A"), reading(energy, "kWh"))
	}
	_, err := fmt.Fprintln(w, t.Render())
	return err
}

// cachedHostsView is the output of `wattbox cache list`.
type cachedHostsView []sqlite.CachedDevice

func (v cachedHostsView) List(w io.Writer) error {
	t := newTable("HOST", "MODEL", "POWER", "FETCHED")
	for _, d := range v {
		t.Row(d.Host, d.Model, reading(d.TotalWatts, "W"), d.FetchedAt.Format(time.UnixDate))
	}
	_, err := fmt.Fprintln(w, t.Render())
	return err
}

// inventoryView is the output of `wattbox inventory`.
type inventoryView struct {
	inventory.PDUInventory `yaml:",inline"`
}

func (v inventoryView) List(w io.Writer) error {
	fmt.Fprintf(w, "%s %s %s\n", v.Hostname, v.Model, v.FirmwareVersion)
	t := newTable("ID", "NAME", "POWER STATE")
	for _, o := range v.Outlets {
		t.Row(o.ID, o.Name, string(o.PowerState))
	}
	_, err := fmt.Fprintln(w, t.Render())
	return err
}
