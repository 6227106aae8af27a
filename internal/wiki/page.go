// Package wiki fetches Wikipedia articles and turns them into plain-text
// sections plus the list of linked articles a player can travel to.
package wiki

import (
	"errors"
	"net/url"
	"strings"
)

var (
	ErrEmptyTitle     = errors.New("empty page title")
	ErrPageNotFound   = errors.New("page not found")
	ErrDisambiguation = errors.New("ambiguous page title")
	ErrNoContent      = errors.New("page has no usable text")
)

// IntroTitle names the lead section that precedes the first heading.
const IntroTitle = "Introduction"

// Section is one headed block of article text.
type Section struct {
	Title  string `json:"title"`
	Anchor string `json:"anchor"`
	Text   string `json:"text"`
}

// Page is a resolved article. Links holds article titles in the main
// namespace, deduplicated and capped.
type Page struct {
	Title    string    `json:"title"`
	URL      string    `json:"url"`
	Summary  string    `json:"summary"`
	Content  string    `json:"content"`
	Sections []Section `json:"sections"`
	Links    []string  `json:"links"`
}

// SectionURL builds the link to a section anchor on the article.
func (p *Page) SectionURL(s Section) string {
	if s.Anchor == "" || s.Title == IntroTitle {
		return p.URL
	}
	return p.URL + "#" + url.PathEscape(s.Anchor)
}

func articleURL(base, title string) string {
	return base + url.PathEscape(strings.ReplaceAll(title, " ", "_"))
}

func joinContent(sections []Section) string {
	var b strings.Builder
	for i, s := range sections {
		if i > 0 {
			b.WriteString("\n\n")
		}
		if s.Title != IntroTitle {
			b.WriteString("== " + s.Title + " ==\n")
		}
		b.WriteString(s.Text)
	}
	return b.String()
}
