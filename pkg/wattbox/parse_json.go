package wattbox

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
)

// ParseJSON reads the status document served by JSON capable firmware. Each
// outlet is decoded field by field so a single bad value only drops that value.
func ParseJSON(body []byte) (*Telemetry, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("status document is not a JSON object: %w", err)
	}
	raw, ok := doc["outlets"]
	if !ok {
		return nil, fmt.Errorf("status document has no outlets")
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("outlets is not an array: %w", err)
	}

	t := &Telemetry{
		Voltage:    jsonFloat(doc, "voltage"),
		TotalWatts: jsonFloat(doc, "power", "watts"),
		TotalAmps:  jsonFloat(doc, "current", "amps"),
		Device: DeviceInfo{
			Model:    jsonString(doc, "model"),
			Serial:   jsonString(doc, "serial"),
			Firmware: jsonString(doc, "firmware"),
		},
	}
	for i, item := range items {
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(item, &fields); err != nil {
			log.Debug().Int("item", i).Msg("skipping outlet entry that is not an object")
			continue
		}
		index, ok := jsonInt(fields, "number", "index")
		if !ok || index < 1 {
			log.Debug().Int("item", i).Msg("skipping outlet entry without a number")
			continue
		}
		on, _ := jsonBool(fields, "on", "state")
		resetOnly, _ := jsonBool(fields, "resetOnly", "reset_only")
		t.Outlets = append(t.Outlets, OutletState{
			Index:     index,
			Name:      jsonString(fields, "name"),
			IsOn:      on,
			ResetOnly: resetOnly,
			Watts:     jsonFloat(fields, "watts"),
			Amps:      jsonFloat(fields, "amps"),
		})
		if e := jsonFloat(fields, "energy", "energy_kwh"); e != nil && *e >= 0 {
			if t.EnergyKWh == nil {
				t.EnergyKWh = make(map[int]float64)
			}
			if _, seen := t.EnergyKWh[index]; !seen {
				t.EnergyKWh[index] = *e
			}
		}
	}
	finalize(t)
	return t, nil
}

// lookup returns the first of keys present with a non-null value.
func lookup(m map[string]json.RawMessage, keys ...string) (json.RawMessage, bool) {
	for _, k := range keys {
		if v, ok := m[k]; ok && string(v) != "null" {
			return v, true
		}
	}
	return nil, false
}

// jsonFloat accepts numbers and numeric strings such as "12.5" or "12.5 W".
func jsonFloat(m map[string]json.RawMessage, keys ...string) *float64 {
	raw, ok := lookup(m, keys...)
	if !ok {
		return nil
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return &f
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil
	}
	s = strings.TrimRightFunc(strings.TrimSpace(s), func(r rune) bool {
		return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || r == ' '
	})
	return parseMeasurement(s, "")
}

func jsonInt(m map[string]json.RawMessage, keys ...string) (int, bool) {
	f := jsonFloat(m, keys...)
	if f == nil || *f != float64(int(*f)) {
		return 0, false
	}
	return int(*f), true
}

func jsonString(m map[string]json.RawMessage, keys ...string) string {
	raw, ok := lookup(m, keys...)
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return strings.TrimSpace(s)
}

// jsonBool accepts true/false, 1/0 and the strings "on"/"off".
func jsonBool(m map[string]json.RawMessage, keys ...string) (bool, bool) {
	raw, ok := lookup(m, keys...)
	if !ok {
		return false, false
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return b, true
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n != 0, true
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return false, false
	}
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "on", "true", "1":
		return true, true
	case "off", "false", "0":
		return false, true
	}
	if v, err := strconv.ParseBool(s); err == nil {
		return v, true
	}
	return false, false
}
