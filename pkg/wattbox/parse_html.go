package wattbox

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/html"
)

// Selectors for the firmware status page.
const (
	selOutletCard  = "div.grid-grey > div.grid-block"
	selOutletIndex = ".grid-index-label > span"
	selOutletName  = "ul.grid-list > li.grid-head"
	selOutletInput = "input[id^='outlet']"
	selOutletStats = "div[style*='margin-top'] p"
	selTotalsCell  = "div.grid-block div.grid-text ul.primary-text li table td"
	selVoltage     = "div.grid-block[style*='background'] span"
)

// ParseHTML reads the status page served at /main.
func ParseHTML(body []byte) (*Telemetry, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	t := &Telemetry{}
	doc.Find(selOutletCard).Each(func(i int, card *goquery.Selection) {
		o, ok := parseOutletCard(card)
		if !ok {
			log.Debug().Int("card", i).Msg("skipping outlet card without index or switch")
			return
		}
		t.Outlets = append(t.Outlets, o)
	})

	doc.Find(selTotalsCell).EachWithBreak(func(_ int, td *goquery.Selection) bool {
		label := strings.ToUpper(td.Text())
		if !strings.Contains(label, "POWER") || !strings.Contains(label, "CURRENT") {
			return true
		}
		lines := textLines(td.NextFiltered("td"))
		if len(lines) >= 2 {
			t.TotalWatts = parseMeasurement(lines[0], "W")
			t.TotalAmps = parseMeasurement(lines[1], "A")
		}
		return false
	})

	doc.Find(selVoltage).EachWithBreak(func(_ int, span *goquery.Selection) bool {
		text := strings.TrimSpace(span.Text())
		if !strings.HasSuffix(strings.ToUpper(text), "V") {
			return true
		}
		t.Voltage = parseMeasurement(text, "V")
		return t.Voltage == nil
	})

	if len(t.Outlets) == 0 && t.TotalWatts == nil && t.Voltage == nil {
		return nil, fmt.Errorf("no outlet cards or metrics found")
	}
	finalize(t)
	return t, nil
}

func parseOutletCard(card *goquery.Selection) (OutletState, bool) {
	index, err := strconv.Atoi(strings.TrimSpace(card.Find(selOutletIndex).First().Text()))
	if err != nil || index < 1 {
		return OutletState{}, false
	}
	input := card.Find(selOutletInput).First()
	if input.Length() == 0 {
		return OutletState{}, false
	}
	_, checked := input.Attr("checked")
	_, disabled := input.Attr("disabled")

	o := OutletState{
		Index:     index,
		Name:      strings.TrimSpace(card.Find(selOutletName).First().Text()),
		IsOn:      checked,
		ResetOnly: disabled,
	}
	if stats := card.Find(selOutletStats); stats.Length() >= 2 {
		o.Watts = parseMeasurement(stats.Eq(0).Text(), "W")
		o.Amps = parseMeasurement(stats.Eq(1).Text(), "A")
	}
	return o, true
}

// textLines returns the non-empty text fragments under s, split at element
// boundaries and newlines. goquery's Text() joins them without separators.
func textLines(s *goquery.Selection) []string {
	var out []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			for _, line := range strings.Split(n.Data, "\n") {
				if line = strings.TrimSpace(line); line != "" {
					out = append(out, line)
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range s.Nodes {
		walk(n)
	}
	return out
}
