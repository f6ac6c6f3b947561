package inventory

type EndpointInventory struct {
	Model           string            `json:"Model,omitempty"`
	SerialNumber    string            `json:"SerialNumber,omitempty"`
	FirmwareVersion string            `json:"FirmwareVersion,omitempty"`
	Outlets         []ConnectorRecord `json:"Outlets"`
}

// RedfishEndpoint is the CabinetPDUController payload registered with SMD.
// Its ID is the controller xname of the PDU placement.
type RedfishEndpoint struct {
	ID                 string            `json:"ID"`
	Type               string            `json:"Type"`
	FQDN               string            `json:"FQDN"`
	Hostname           string            `json:"Hostname"`
	Enabled            bool              `json:"Enabled"`
	RediscoverOnUpdate bool              `json:"RediscoverOnUpdate"`
	PDUInventory       EndpointInventory `json:"PDUInventory"`
}

func ToEndpoint(inv PDUInventory, p Placement) RedfishEndpoint {
	return RedfishEndpoint{
		ID:       p.ControllerXname(),
		Type:     "CabinetPDUController",
		FQDN:     inv.Hostname,
		Hostname: inv.Hostname,
		Enabled:  true,
		PDUInventory: EndpointInventory{
			Model:           inv.Model,
			SerialNumber:    inv.SerialNumber,
			FirmwareVersion: inv.FirmwareVersion,
			Outlets:         ToSMD(inv, p),
		},
	}
}
