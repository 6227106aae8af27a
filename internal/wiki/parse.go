package wiki

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Elements that never carry article prose.
const noiseSelector = "style, script, noscript, table, figure, sup.reference, .reference, " +
	".mw-editsection, .navbox, .reflist, .refbegin, .hatnote, .thumb, .infobox, " +
	".metadata, .mw-empty-elt, .noprint, .shortdescription, .toc, #toc"

var skippedSections = map[string]bool{
	"references":      true,
	"external links":  true,
	"see also":        true,
	"notes":           true,
	"further reading": true,
	"bibliography":    true,
	"sources":         true,
	"citations":       true,
	"footnotes":       true,
	"works cited":     true,
}

func contentRoot(doc *goquery.Document) *goquery.Selection {
	root := doc.Find(".mw-parser-output").First()
	if root.Length() == 0 {
		root = doc.Find("body").First()
	}
	return root
}

// parseSections splits rendered article HTML on level 2 and 3 headings.
// Reference-style sections and empty blocks are dropped.
func parseSections(html string) ([]Section, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse article html: %w", err)
	}

	root := contentRoot(doc)
	root.Find(noiseSelector).Remove()

	var sections []Section
	current := Section{Title: IntroTitle}
	var lines []string

	flush := func() {
		text := strings.TrimSpace(strings.Join(lines, "\n"))
		lines = nil
		if text == "" || skippedSections[strings.ToLower(current.Title)] {
			return
		}
		current.Text = text
		sections = append(sections, current)
	}

	root.Children().Each(func(_ int, s *goquery.Selection) {
		if h := heading(s); h != nil {
			flush()
			current = headingSection(h)
			return
		}
		switch goquery.NodeName(s) {
		case "p", "blockquote":
			if text := cleanText(s.Text()); text != "" {
				lines = append(lines, text)
			}
		case "ul", "ol":
			s.Children().Filter("li").Each(func(_ int, li *goquery.Selection) {
				if text := cleanText(li.Text()); text != "" {
					lines = append(lines, "- "+text)
				}
			})
		case "dl":
			s.Find("dd, dt").Each(func(_ int, d *goquery.Selection) {
				if text := cleanText(d.Text()); text != "" {
					lines = append(lines, text)
				}
			})
		}
	})
	flush()

	return sections, nil
}

// heading returns the h2/h3 element for either markup style: a bare heading or
// the newer div.mw-heading wrapper.
func heading(s *goquery.Selection) *goquery.Selection {
	switch goquery.NodeName(s) {
	case "h2", "h3":
		return s
	case "div":
		if s.HasClass("mw-heading2") || s.HasClass("mw-heading3") {
			if h := s.Find("h2, h3").First(); h.Length() > 0 {
				return h
			}
		}
	}
	return nil
}

func headingSection(h *goquery.Selection) Section {
	title := cleanText(h.Text())
	anchor := h.AttrOr("id", "")
	if anchor == "" {
		anchor = h.Find(".mw-headline").AttrOr("id", "")
	}
	if anchor == "" {
		anchor = strings.ReplaceAll(title, " ", "_")
	}
	return Section{Title: title, Anchor: anchor}
}

// firstListedArticle picks the first article a disambiguation page offers.
func firstListedArticle(html string) (string, bool) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", false
	}
	var found string
	contentRoot(doc).Find("li a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		title := titleFromHref(a.AttrOr("href", ""))
		if title == "" {
			return true
		}
		if t := a.AttrOr("title", ""); t != "" && !strings.Contains(t, ":") {
			title = t
		}
		found = title
		return false
	})
	return found, found != ""
}

// titleFromHref maps "/wiki/Foo_bar#x" to "Foo bar". Namespaced and
// external links yield "".
func titleFromHref(href string) string {
	if !strings.HasPrefix(href, "/wiki/") {
		return ""
	}
	title := strings.TrimPrefix(href, "/wiki/")
	if i := strings.IndexByte(title, '#'); i >= 0 {
		title = title[:i]
	}
	if title == "" || strings.Contains(title, ":") {
		return ""
	}
	return strings.ReplaceAll(title, "_", " ")
}

// filterLinks keeps unique main-namespace titles, up to max.
func filterLinks(links []apiLink, self string, max int) []string {
	seen := make(map[string]bool, len(links))
	out := make([]string, 0, len(links))
	for _, l := range links {
		if l.NS != 0 || !l.Exists {
			continue
		}
		title := strings.TrimSpace(l.Title)
		key := strings.ToLower(title)
		if title == "" || seen[key] || strings.EqualFold(title, self) {
			continue
		}
		seen[key] = true
		out = append(out, title)
		if max > 0 && len(out) >= max {
			break
		}
	}
	return out
}

func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
