package inventory

import (
	"fmt"
	"os"

	"github.com/Cray-HPE/hms-xname/xnames"
	"github.com/OpenCHAMI/wattbox/internal/format"
	"github.com/rs/zerolog/log"
)

// Placement locates a PDU in the xname hierarchy: cabinet xX, controller mM
// and PDU pP.
type Placement struct {
	Cabinet    int `json:"cabinet" yaml:"cabinet"`
	Controller int `json:"controller" yaml:"controller"`
	PDU        int `json:"pdu" yaml:"pdu"`
}

func (p Placement) ControllerXname() string {
	return xnames.CabinetPDUController{
		Cabinet:              p.Cabinet,
		CabinetPDUController: p.Controller,
	}.String()
}

// PlacementMap assigns placements to device hosts. Hosts missing from the map
// use Default when it is set.
type PlacementMap struct {
	Placements map[string]Placement `json:"placements" yaml:"placements"`
	Default    *Placement           `json:"default,omitempty" yaml:"default,omitempty"`
}

// LoadPlacementMap reads a placement map from data. Data is either inline
// JSON or '@' followed by a path to a JSON or YAML file; the file extension
// picks the format and defaultFmt is used otherwise. An empty string yields a
// nil map and no error.
func LoadPlacementMap(data string, defaultFmt format.DataFormat) (*PlacementMap, error) {
	if data == "" {
		return nil, nil
	}

	var m PlacementMap
	if data[0] != '@' {
		if err := format.Unmarshal([]byte(data), &m, format.FORMAT_JSON); err != nil {
			return nil, err
		}
		return &m, nil
	}

	path := data[1:]
	input, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading placement map file '%s': %w", path, err)
	}
	if err := format.Unmarshal(input, &m, format.DataFormatFromFileExt(path, defaultFmt)); err != nil {
		return nil, err
	}
	return &m, nil
}

// Lookup returns the placement for host. A nil map places every host at the
// zero placement, x0m0p0.
func (m *PlacementMap) Lookup(host string) (Placement, bool) {
	if m == nil {
		return Placement{}, true
	}
	if p, ok := m.Placements[host]; ok {
		return p, true
	}
	if m.Default != nil {
		return *m.Default, true
	}
	log.Warn().Str("host", host).Msg("no placement found for host")
	return Placement{}, false
}
