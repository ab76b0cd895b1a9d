// Package scrape turns the raw markup of the members' event page into an
// ordered list of event records. The upstream page has gone through several
// redesigns and different sections still use different structures, so
// extraction runs a small cascade of layout-specific strategies instead of
// assuming one fixed schema. Each strategy is total: unrecognized or
// malformed markup yields zero events, never an error.
package scrape

import (
	"bytes"
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

// Event is one listing entry discovered on the source page. Date and Link
// are optional; Title is required for the entry to be kept at all. ID is
// empty until the dedup layer attaches a content hash.
type Event struct {
	Title string
	Date  string
	Link  string
	ID    string
}

// Result carries the extracted events plus enough diagnostics for the caller
// to log which strategy matched. The package itself stays silent.
type Result struct {
	Events   []Event
	Strategy string
}

type strategy struct {
	name string
	fn   func(doc *html.Node, baseURL string) []Event
}

// strategies are tried in priority order; the first non-empty output wins.
// Later strategies are not merged in.
var strategies = []strategy{
	{name: "tablist", fn: extractTabList},
	{name: "table", fn: extractTable},
	{name: "cards", fn: extractCards},
}

// Extract parses markup once and runs the strategy cascade against it.
// An all-empty result is a valid outcome meaning the page layout is not
// recognized (typically: the selectors need adjustment after a redesign).
func Extract(markup []byte, baseURL string) Result {
	doc, err := html.Parse(bytes.NewReader(markup))
	if err != nil || doc == nil {
		return Result{}
	}
	for _, s := range strategies {
		if events := s.fn(doc, baseURL); len(events) > 0 {
			return Result{Events: events, Strategy: s.name}
		}
	}
	return Result{}
}

// eventsPathFragment identifies the events view of the schedule section in
// both the page URL and the tab navigation hrefs.
const eventsPathFragment = "/schedule/events"

// extractTabList handles the tab-scoped "row ttl" layout used by the events
// view. It positively self-gates on events-view signals so that structurally
// similar pages (e.g. the lessons tab) are never misread as event listings.
func extractTabList(doc *html.Node, baseURL string) []Event {
	urlSaysEvents := strings.Contains(baseURL, eventsPathFragment)
	if !urlSaysEvents && findEventsTab(doc) == nil {
		return nil
	}

	container := findListContainer(doc)
	if container == nil {
		return nil
	}

	var out []Event
	for _, li := range listItems(container) {
		a := findFirst(li, func(n *html.Node) bool {
			return isElement(n, "a") && attrVal(n, "href") != ""
		})
		if a == nil {
			continue
		}
		link := resolveHref(baseURL, attrVal(a, "href"))

		var date string
		if span := findFirst(a, func(n *html.Node) bool { return isElement(n, "span") }); span != nil {
			date = collapsedText(span)
		}

		// The anchor packs a status/date label, a <br>, and then the
		// human-readable title, with no other structural boundary.
		title := textAfterFirstBr(a)
		if title == "" {
			title = textWithoutSpans(a)
		}
		if title == "" {
			continue
		}
		out = append(out, Event{Title: title, Date: date, Link: link})
	}
	return out
}

// findEventsTab returns the li.tabs-title whose anchor points at the events
// path, or nil.
func findEventsTab(doc *html.Node) *html.Node {
	return findFirst(doc, func(n *html.Node) bool {
		if !isElement(n, "li") || !hasClass(n, "tabs-title") {
			return false
		}
		a := findFirst(n, func(c *html.Node) bool {
			return isElement(c, "a") && strings.Contains(attrVal(c, "href"), eventsPathFragment)
		})
		return a != nil
	})
}

// findListContainer locates the div.row.ttl holding the event list. The
// container ideally follows the tab navigation row in document order; when
// no tab row exists the first matching container anywhere is used.
func findListContainer(doc *html.Node) *html.Node {
	isRowTTL := func(n *html.Node) bool {
		return isElement(n, "div") && hasClass(n, "row") && hasClass(n, "ttl")
	}

	var tabRow *html.Node
	if tab := findFirst(doc, func(n *html.Node) bool {
		return isElement(n, "li") && hasClass(n, "tabs-title")
	}); tab != nil {
		for p := tab.Parent; p != nil; p = p.Parent {
			if isElement(p, "div") && hasClass(p, "row") {
				tabRow = p
				break
			}
		}
	}

	if tabRow != nil {
		seenTabRow := false
		var after *html.Node
		walk(doc, func(n *html.Node) bool {
			if n == tabRow {
				seenTabRow = true
				// Skip the tab row's own subtree so a nested match
				// cannot be picked up.
				return false
			}
			if seenTabRow && after == nil && isRowTTL(n) {
				after = n
				return false
			}
			return after == nil
		})
		if after != nil {
			return after
		}
	}
	return findFirst(doc, isRowTTL)
}

// listItems returns the li children of any ul directly inside the container.
func listItems(container *html.Node) []*html.Node {
	var out []*html.Node
	walk(container, func(n *html.Node) bool {
		if isElement(n, "ul") {
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				if isElement(c, "li") {
					out = append(out, c)
				}
			}
			return false
		}
		return true
	})
	return out
}

// textAfterFirstBr collects the text of everything following the first <br>
// among the node's direct children, joined and whitespace-collapsed.
func textAfterFirstBr(a *html.Node) string {
	var parts []string
	seenBr := false
	for c := a.FirstChild; c != nil; c = c.NextSibling {
		if isElement(c, "br") {
			seenBr = true
			continue
		}
		if !seenBr {
			continue
		}
		if t := collapsedText(c); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}

// textWithoutSpans is the fallback title rule: the anchor's full text with
// inline marker elements (the date label spans) stripped out first.
func textWithoutSpans(a *html.Node) string {
	var b strings.Builder
	walk(a, func(n *html.Node) bool {
		if isElement(n, "span") {
			return false
		}
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			b.WriteString(" ")
		}
		return true
	})
	return collapseSpaces(b.String())
}

// extractTable handles plain tabular listings: cell 0 is the date, cell 1
// the title, and the first link anywhere in the row is the event link.
func extractTable(doc *html.Node, baseURL string) []Event {
	var out []Event
	walk(doc, func(n *html.Node) bool {
		if !isElement(n, "tbody") {
			return true
		}
		for tr := n.FirstChild; tr != nil; tr = tr.NextSibling {
			if !isElement(tr, "tr") {
				continue
			}
			var cells []*html.Node
			for td := tr.FirstChild; td != nil; td = td.NextSibling {
				if isElement(td, "td") {
					cells = append(cells, td)
				}
			}
			if len(cells) < 2 {
				continue
			}
			title := collapsedText(cells[1])
			if title == "" {
				continue
			}
			var link string
			if a := findFirst(tr, func(c *html.Node) bool {
				return isElement(c, "a") && attrVal(c, "href") != ""
			}); a != nil {
				link = resolveHref(baseURL, attrVal(a, "href"))
			}
			out = append(out, Event{Title: title, Date: collapsedText(cells[0]), Link: link})
		}
		return false
	})
	return out
}

// extractCards handles generic card/list markup. Title, date and link are
// located independently inside each card; a missing date or link just leaves
// the field empty, while a missing title drops the card.
func extractCards(doc *html.Node, baseURL string) []Event {
	var out []Event
	walk(doc, func(n *html.Node) bool {
		if !isEventCard(n) {
			return true
		}
		titleEl := findFirstOf(n,
			func(c *html.Node) bool { return hasClass(c, "title") },
			func(c *html.Node) bool { return isElement(c, "h3") },
			func(c *html.Node) bool { return isElement(c, "h4") },
			func(c *html.Node) bool { return isElement(c, "a") },
		)
		if titleEl == nil {
			return false
		}
		title := collapsedText(titleEl)
		if title == "" {
			return false
		}
		var date string
		if dateEl := findFirstOf(n,
			func(c *html.Node) bool { return hasClass(c, "date") },
			func(c *html.Node) bool { return isElement(c, "time") },
		); dateEl != nil {
			date = collapsedText(dateEl)
		}
		var link string
		if a := findFirst(n, func(c *html.Node) bool {
			return isElement(c, "a") && attrVal(c, "href") != ""
		}); a != nil {
			link = resolveHref(baseURL, attrVal(a, "href"))
		}
		out = append(out, Event{Title: title, Date: date, Link: link})
		return false
	})
	return out
}

// isEventCard matches the fixed set of card patterns: .events .event,
// .event-item, .schedule .item, li.event.
func isEventCard(n *html.Node) bool {
	if n == nil || n.Type != html.ElementNode {
		return false
	}
	if hasClass(n, "event-item") {
		return true
	}
	if isElement(n, "li") && hasClass(n, "event") {
		return true
	}
	if hasClass(n, "event") && hasAncestorClass(n, "events") {
		return true
	}
	if hasClass(n, "item") && hasAncestorClass(n, "schedule") {
		return true
	}
	return false
}

// resolveHref resolves a possibly-relative href against the page's final URL.
// On unparsable input it degrades to the raw href rather than dropping it.
func resolveHref(baseURL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	base, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil || base.String() == "" {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}
