package wattbox

import (
	"math"
	"sort"
	"strconv"
	"strings"
)

// Parser turns a status response body into a snapshot. Malformed optional
// fields are left unset rather than failing the whole parse.
type Parser func(body []byte) (*Telemetry, error)

func parserFor(f Format) Parser {
	if f == FormatJSON {
		return ParseJSON
	}
	return ParseHTML
}

// finalize orders outlets, drops duplicate indexes and fills the totals from
// the per-outlet readings when the device did not report them.
func finalize(t *Telemetry) {
	sort.SliceStable(t.Outlets, func(i, j int) bool {
		return t.Outlets[i].Index < t.Outlets[j].Index
	})
	uniq := t.Outlets[:0]
	for i, o := range t.Outlets {
		if i > 0 && o.Index == t.Outlets[i-1].Index {
			continue
		}
		uniq = append(uniq, o)
	}
	t.Outlets = uniq

	if t.TotalWatts == nil {
		t.TotalWatts = sumOutlets(t.Outlets, func(o OutletState) *float64 { return o.Watts })
	}
	if t.TotalAmps == nil {
		t.TotalAmps = sumOutlets(t.Outlets, func(o OutletState) *float64 { return o.Amps })
	}
}

// sumOutlets adds up the readings that are present, rounded to two decimals.
// It returns nil when no outlet reported a value.
func sumOutlets(outlets []OutletState, field func(OutletState) *float64) *float64 {
	var (
		sum   float64
		found bool
	)
	for _, o := range outlets {
		if v := field(o); v != nil {
			sum += *v
			found = true
		}
	}
	if !found {
		return nil
	}
	sum = math.Round(sum*100) / 100
	return &sum
}

// parseMeasurement reads a value such as "12.5 W" or "120V". The unit suffix
// is optional and matched case-insensitively.
func parseMeasurement(s, unit string) *float64 {
	s = strings.TrimSpace(s)
	if unit != "" && len(s) >= len(unit) && strings.EqualFold(s[len(s)-len(unit):], unit) {
		s = strings.TrimSpace(s[:len(s)-len(unit)])
	}
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}
