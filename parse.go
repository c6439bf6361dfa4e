package sigma

import (
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

const tokenField = "gen_input"

var (
	batteryRe   = regexp.MustCompile(`(\d+\.?\d*)\s*Volt`)
	acPowerRe   = regexp.MustCompile(`(?i)Παροχή\s*230V:\s*(\S+)`)
	partitionRe = regexp.MustCompile(`^Τμήμα\s*\d+\s*:\s*(.+)$`)
	zonesLinkRe = regexp.MustCompile(`(?i)ζωνών`)
)

// StatusPage holds the partition values as the panel prints them.
type StatusPage struct {
	AlarmStatus  string
	BatteryVolts *float64
	ACPower      Flag
}

// ZoneRow is one line of the zones table, unmapped.
type ZoneRow struct {
	ID          string
	Description string
	Status      string
	Bypass      string
}

func ParseStatusPage(r io.Reader) (StatusPage, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return StatusPage{}, fmt.Errorf("%w: %w", ErrParse, err)
	}
	return parseStatus(doc)
}

func ParseZones(r io.Reader) ([]ZoneRow, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrParse, err)
	}
	return parseZones(doc), nil
}

func parseStatus(doc *goquery.Document) (StatusPage, error) {
	var page StatusPage
	lines := textLines(doc.Selection)

	raw, err := alarmStatus(doc, lines)
	if err != nil {
		return page, err
	}
	page.AlarmStatus = raw

	text := strings.Join(lines, "\n")
	if m := batteryRe.FindStringSubmatch(text); m != nil {
		v, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			return page, fmt.Errorf("%w: battery %q: %w", ErrParse, m[1], err)
		}
		page.BatteryVolts = &v
	}
	if m := acPowerRe.FindStringSubmatch(text); m != nil {
		page.ACPower = MapYesNo(m[1])
	}
	return page, nil
}

// alarmStatus reads the second span of the first paragraph. Some firmware
// prints a "partition N: status" line instead, which is used as a fallback.
// An empty string means the page has no status at all.
func alarmStatus(doc *goquery.Document, lines []string) (string, error) {
	p := doc.Find("p").First()
	if spans := p.Find("span"); spans.Length() >= 2 {
		return strings.TrimSpace(spans.Eq(1).Text()), nil
	}
	for _, line := range lines {
		if m := partitionRe.FindStringSubmatch(line); m != nil {
			return strings.TrimSpace(m[1]), nil
		}
	}
	if p.Length() > 0 {
		return "", fmt.Errorf("%w: status paragraph has %d spans", ErrParse, p.Find("span").Length())
	}
	return "", nil
}

func parseZones(doc *goquery.Document) []ZoneRow {
	var zones []ZoneRow
	doc.Find("table.normaltable").First().Find("tr").Each(func(i int, row *goquery.Selection) {
		if i == 0 {
			return
		}
		cols := row.Find("td")
		if cols.Length() < 4 {
			return
		}
		cell := func(n int) string {
			return strings.TrimSpace(cols.Eq(n).Text())
		}
		zones = append(zones, ZoneRow{
			ID:          cell(0),
			Description: cell(1),
			Status:      cell(2),
			Bypass:      cell(3),
		})
	})
	return zones
}

func parseToken(doc *goquery.Document) (string, error) {
	v, ok := doc.Find(`input[name="` + tokenField + `"]`).First().Attr("value")
	if !ok || v == "" {
		return "", fmt.Errorf("%w: no %s field", ErrParse, tokenField)
	}
	return v, nil
}

// isLoginPage reports whether doc is one of the login forms, which the panel
// serves instead of data pages once a session expired.
func isLoginPage(doc *goquery.Document) bool {
	return doc.Find(`input[name="` + tokenField + `"]`).Length() > 0
}

func hasUsernameField(doc *goquery.Document) bool {
	return doc.Find(`input[name="username"]`).Length() > 0
}

// zonesPath finds the link to the zones page on the partition page.
func zonesPath(doc *goquery.Document) string {
	href := "zones.html"
	doc.Find("a").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		if !zonesLinkRe.MatchString(a.Text()) {
			return true
		}
		if v, ok := a.Attr("href"); ok && v != "" {
			href = v
		}
		return false
	})
	return strings.TrimLeft(href, "/")
}

// textLines returns the trimmed, non empty text nodes of s in document
// order.
func textLines(s *goquery.Selection) []string {
	var lines []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			if t := strings.TrimSpace(n.Data); t != "" {
				lines = append(lines, t)
			}
			return
		case html.ElementNode:
			if n.Data == "script" || n.Data == "style" {
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range s.Nodes {
		walk(n)
	}
	return lines
}
