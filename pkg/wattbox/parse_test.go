package wattbox

import (
	"strings"
	"testing"
)

func card(num, name, attrs, watts, amps string) string {
	return strings.Join([]string{
		`<div class="grid-block"><div class="grid-index-label"><span>`, num, `</span></div>`,
		`<ul class="grid-list"><li class="grid-head">`, name, `</li></ul>`,
		`<input type="checkbox" id="outlet`, num, `"`, attrs, `>`,
		`<div style="margin-top: 6px"><p>`, watts, `</p><p>`, amps, `</p></div></div>`,
	}, "")
}

func page(cards ...string) []byte {
	return []byte(`<html><body><div class="grid-grey">` + strings.Join(cards, "") + `</div></body></html>`)
}

func TestParseMeasurement(t *testing.T) {
	tests := []struct {
		in   string
		unit string
		want float64
		ok   bool
	}{
		{"12.5 W", "W", 12.5, true},
		{"120V", "V", 120, true},
		{" 0.08 a ", "A", 0.08, true},
		{"3", "W", 3, true},
		{"n/a W", "W", 0, false},
		{"", "W", 0, false},
		{"W", "W", 0, false},
		{"NaN", "W", 0, false},
	}
	for _, tt := range tests {
		got := parseMeasurement(tt.in, tt.unit)
		if (got != nil) != tt.ok {
			t.Errorf("parseMeasurement(%q) present = %v, want %v", tt.in, got != nil, tt.ok)
			continue
		}
		if got != nil && *got != tt.want {
			t.Errorf("parseMeasurement(%q) = %v, want %v", tt.in, *got, tt.want)
		}
	}
}

func TestParseHTMLTotalsFallback(t *testing.T) {
	tel, err := ParseHTML(page(
		card("1", "A", " checked", "12.345 W", "0.1 A"),
		card("2", "B", "", "1.111 W", "bad A"),
	))
	if err != nil {
		t.Fatalf("ParseHTML: %v", err)
	}
	if tel.TotalWatts == nil || *tel.TotalWatts != 13.46 {
		t.Errorf("expected total watts 13.46, got %v", tel.TotalWatts)
	}
	if tel.TotalAmps == nil || *tel.TotalAmps != 0.1 {
		t.Errorf("expected total amps 0.1 from the one valid reading, got %v", tel.TotalAmps)
	}
	if tel.Voltage != nil {
		t.Errorf("expected no voltage, got %v", *tel.Voltage)
	}
}

func TestParseHTMLDropsBrokenCards(t *testing.T) {
	noSwitch := `<div class="grid-block"><div class="grid-index-label"><span>4</span></div></div>`
	tel, err := ParseHTML(page(
		card("2", "Second", "", "1 W", "0.01 A"),
		card("x", "Broken", "", "1 W", "0.01 A"),
		card("1", "First", " checked disabled", "", ""),
		card("2", "Duplicate", "", "9 W", "9 A"),
		noSwitch,
	))
	if err != nil {
		t.Fatalf("ParseHTML: %v", err)
	}
	if len(tel.Outlets) != 2 {
		t.Fatalf("expected 2 outlets, got %d", len(tel.Outlets))
	}
	first, second := tel.Outlets[0], tel.Outlets[1]
	if first.Index != 1 || !first.IsOn || !first.ResetOnly || first.Watts != nil {
		t.Errorf("unexpected first outlet: %+v", first)
	}
	if second.Index != 2 || second.Name != "Second" {
		t.Errorf("expected first occurrence of outlet 2 to win, got %+v", second)
	}
}

func TestParseHTMLNoMarkers(t *testing.T) {
	for _, body := range []string{"", "<html></html>", "<html><body><h1>Login</h1></body></html>"} {
		if _, err := ParseHTML([]byte(body)); err == nil {
			t.Errorf("expected error for %q", body)
		}
	}
}

func TestParseJSON(t *testing.T) {
	body := `{
		"voltage": "121.5 V",
		"power": 40.5,
		"model": "WB-800",
		"outlets": [
			{"number": 2, "name": "NAS", "on": true, "watts": 30, "amps": "0.3", "energy": 12.5},
			{"index": 1, "name": "AP", "state": "off", "resetOnly": true, "watts": "junk", "amps": null},
			{"name": "no number"},
			"not an object",
			{"number": 3, "state": 1, "energy": -1}
		]
	}`
	tel, err := ParseJSON([]byte(body))
	if err != nil {
		t.Fatalf("ParseJSON: %v", err)
	}
	if len(tel.Outlets) != 3 {
		t.Fatalf("expected 3 outlets, got %d", len(tel.Outlets))
	}
	ap, nas, third := tel.Outlets[0], tel.Outlets[1], tel.Outlets[2]
	if ap.Index != 1 || ap.IsOn || !ap.ResetOnly || ap.Watts != nil || ap.Amps != nil {
		t.Errorf("unexpected outlet 1: %+v", ap)
	}
	if nas.Index != 2 || !nas.IsOn || nas.Watts == nil || *nas.Watts != 30 || nas.Amps == nil || *nas.Amps != 0.3 {
		t.Errorf("unexpected outlet 2: %+v", nas)
	}
	if !third.IsOn {
		t.Errorf("expected numeric state 1 to mean on")
	}
	if tel.Voltage == nil || *tel.Voltage != 121.5 {
		t.Errorf("expected voltage 121.5, got %v", tel.Voltage)
	}
	if tel.TotalWatts == nil || *tel.TotalWatts != 40.5 {
		t.Errorf("reported total must win over the sum, got %v", tel.TotalWatts)
	}
	if tel.TotalAmps == nil || *tel.TotalAmps != 0.3 {
		t.Errorf("expected summed amps 0.3, got %v", tel.TotalAmps)
	}
	if len(tel.EnergyKWh) != 1 || tel.EnergyKWh[2] != 12.5 {
		t.Errorf("expected only outlet 2 energy, got %v", tel.EnergyKWh)
	}
	if tel.Device.Model != "WB-800" {
		t.Errorf("expected model WB-800, got %q", tel.Device.Model)
	}
}

func TestParseJSONRejectsShape(t *testing.T) {
	for _, body := range []string{`[]`, `"text"`, `{"voltage": 120}`, `{"outlets": {}}`, `{`} {
		if _, err := ParseJSON([]byte(body)); err == nil {
			t.Errorf("expected error for %s", body)
		}
	}
}

func TestFindLoginForm(t *testing.T) {
	body := []byte(`<form method="POST" action="/auth">
		<input type="hidden" name="token" value="t1">
		<input type="email" name="mail">
		<input name="login_user">
		<input type="password" name="pw">
	</form>`)
	f, ok := findLoginForm(body)
	if !ok {
		t.Fatal("expected login form")
	}
	if f.Action != "/auth" || f.Method != "POST" || f.UserField != "login_user" || f.PassField != "pw" {
		t.Errorf("unexpected form: %+v", f)
	}
	v := f.values("u", "p")
	if v.Get("token") != "t1" || v.Get("login_user") != "u" || v.Get("pw") != "p" {
		t.Errorf("unexpected values: %v", v)
	}

	if _, ok := findLoginForm([]byte(`<form><input name="q"></form>`)); ok {
		t.Error("search form must not be taken for a login form")
	}
}
