package wiki

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	readability "github.com/go-shiori/go-readability"

	"wikiquiz/internal/httputil"
)

const (
	defaultUserAgent = "wikiquiz/1.0 (https://github.com/wikiquiz/wikiquiz)"
	maxBodyBytes     = 8 << 20
)

type Options struct {
	APIURL    string
	PageURL   string
	UserAgent string
	MaxLinks  int
	Timeout   time.Duration
	Cache     Cache
}

// Client talks to the MediaWiki action API and falls back to scraping the
// article page when the API cannot render it.
type Client struct {
	httpClient *http.Client
	apiURL     string
	pageURL    string
	userAgent  string
	maxLinks   int
	cache      Cache
}

func NewClient(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 20 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = defaultUserAgent
	}
	if opts.MaxLinks <= 0 {
		opts.MaxLinks = 50
	}
	if opts.Cache == nil {
		opts.Cache = NewMemoryCache(time.Hour, DefaultMaxCacheEntries)
	}
	return &Client{
		httpClient: &http.Client{Timeout: opts.Timeout},
		apiURL:     opts.APIURL,
		pageURL:    opts.PageURL,
		userAgent:  opts.UserAgent,
		maxLinks:   opts.MaxLinks,
		cache:      opts.Cache,
	}
}

type apiError struct {
	Code string `json:"code"`
	Info string `json:"info"`
}

type apiLink struct {
	NS     int    `json:"ns"`
	Title  string `json:"title"`
	Exists bool   `json:"exists"`
}

type parseResponse struct {
	Parse *struct {
		Title      string          `json:"title"`
		PageID     int             `json:"pageid"`
		Text       string          `json:"text"`
		Links      []apiLink       `json:"links"`
		Properties json.RawMessage `json:"properties"`
	} `json:"parse"`
	Error *apiError `json:"error"`
}

type queryResponse struct {
	Query struct {
		Search []struct {
			Title string `json:"title"`
		} `json:"search"`
		Random []struct {
			Title string `json:"title"`
		} `json:"random"`
	} `json:"query"`
	Error *apiError `json:"error"`
}

// GetPage resolves title to an article. A disambiguation page resolves to
// the first article it lists and a missing title resolves to the top search
// hit. Either redirect is followed at most once.
func (c *Client) GetPage(ctx context.Context, title string) (*Page, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, ErrEmptyTitle
	}
	if page, ok := c.cache.Get(ctx, title); ok {
		log.Printf("[Wiki] Cache hit: %s", title)
		return page, nil
	}

	page, err := c.resolve(ctx, title, true)
	if err != nil {
		return nil, err
	}
	c.cache.Set(ctx, title, page)
	if !strings.EqualFold(page.Title, title) {
		c.cache.Set(ctx, page.Title, page)
	}
	log.Printf("[Wiki] Loaded %q: %d sections, %d links", page.Title, len(page.Sections), len(page.Links))
	return page, nil
}

func (c *Client) resolve(ctx context.Context, title string, allowHop bool) (*Page, error) {
	var resp parseResponse
	err := c.getJSON(ctx, url.Values{
		"action":             {"parse"},
		"page":               {title},
		"prop":               {"text|links|properties"},
		"redirects":          {"1"},
		"disableeditsection": {"1"},
		"disabletoc":         {"1"},
	}, &resp)

	if err == nil && resp.Error != nil {
		switch resp.Error.Code {
		case "missingtitle", "invalidtitle":
			err = fmt.Errorf("%w: %s", ErrPageNotFound, title)
		default:
			err = fmt.Errorf("wikipedia api: %s: %s", resp.Error.Code, resp.Error.Info)
		}
	}
	if err == nil && resp.Parse == nil {
		err = errors.New("wikipedia api: empty parse result")
	}

	switch {
	case errors.Is(err, ErrPageNotFound):
		if !allowHop {
			return nil, err
		}
		hits, serr := c.Search(ctx, title, 1)
		if serr != nil || len(hits) == 0 || strings.EqualFold(hits[0], title) {
			return nil, err
		}
		log.Printf("[Wiki] %q not found, trying suggestion %q", title, hits[0])
		return c.resolve(ctx, hits[0], false)
	case err != nil:
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		log.Printf("[Wiki] Parse API failed for %q (%v), falling back to article scrape", title, err)
		page, ferr := c.fetchReadable(ctx, title)
		if ferr != nil {
			return nil, fmt.Errorf("fetch %q: %w", title, errors.Join(err, ferr))
		}
		return page, nil
	}

	parsed := resp.Parse
	if bytes.Contains(parsed.Properties, []byte(`"disambiguation"`)) {
		target, ok := firstListedArticle(parsed.Text)
		if !allowHop || !ok {
			return nil, fmt.Errorf("%w: %s", ErrDisambiguation, title)
		}
		log.Printf("[Wiki] %q is a disambiguation page, using %q", title, target)
		return c.resolve(ctx, target, false)
	}

	sections, err := parseSections(parsed.Text)
	if err != nil {
		return nil, err
	}
	if len(sections) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoContent, parsed.Title)
	}

	page := &Page{
		Title:    parsed.Title,
		URL:      articleURL(c.pageURL, parsed.Title),
		Content:  joinContent(sections),
		Sections: sections,
		Links:    filterLinks(parsed.Links, parsed.Title, c.maxLinks),
	}
	if sections[0].Title == IntroTitle {
		page.Summary = sections[0].Text
	}
	return page, nil
}

// fetchReadable extracts the main text of the rendered article page. The
// result has a single lead section and no links.
func (c *Client) fetchReadable(ctx context.Context, title string) (*Page, error) {
	pageURL := articleURL(c.pageURL, title)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := httputil.DoWithRetry(ctx, c.httpClient, req, 0)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", ErrPageNotFound, title)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("article page returned HTTP %d", resp.StatusCode)
	}

	parsedURL, _ := url.Parse(pageURL)
	article, err := readability.FromReader(io.LimitReader(resp.Body, maxBodyBytes), parsedURL)
	if err != nil {
		return nil, fmt.Errorf("readability: %w", err)
	}

	var paragraphs []string
	for _, line := range strings.Split(article.TextContent, "\n") {
		if text := cleanText(line); text != "" {
			paragraphs = append(paragraphs, text)
		}
	}
	if len(paragraphs) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoContent, title)
	}

	name := strings.TrimSuffix(strings.TrimSpace(article.Title), " - Wikipedia")
	if name == "" {
		name = title
	}
	text := strings.Join(paragraphs, "\n")
	return &Page{
		Title:    name,
		URL:      pageURL,
		Summary:  paragraphs[0],
		Content:  text,
		Sections: []Section{{Title: IntroTitle, Text: text}},
	}, nil
}

// Search returns up to limit article titles matching query.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]string, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 10
	}
	var resp queryResponse
	err := c.getJSON(ctx, url.Values{
		"action":   {"query"},
		"list":     {"search"},
		"srsearch": {query},
		"srlimit":  {fmt.Sprint(limit)},
	}, &resp)
	if err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("wikipedia search: %s: %s", resp.Error.Code, resp.Error.Info)
	}
	titles := make([]string, 0, len(resp.Query.Search))
	for _, hit := range resp.Query.Search {
		titles = append(titles, hit.Title)
	}
	return titles, nil
}

// Random returns the title of a random main-namespace article.
func (c *Client) Random(ctx context.Context) (string, error) {
	var resp queryResponse
	err := c.getJSON(ctx, url.Values{
		"action":      {"query"},
		"list":        {"random"},
		"rnnamespace": {"0"},
		"rnlimit":     {"1"},
	}, &resp)
	if err != nil {
		return "", err
	}
	if len(resp.Query.Random) == 0 {
		return "", errors.New("wikipedia returned no random page")
	}
	return resp.Query.Random[0].Title, nil
}

func (c *Client) getJSON(ctx context.Context, params url.Values, out any) error {
	params.Set("format", "json")
	params.Set("formatversion", "2")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiURL+"?"+params.Encode(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := httputil.DoWithRetry(ctx, c.httpClient, req, 0)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("wikipedia api returned HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(out); err != nil {
		return fmt.Errorf("decode wikipedia response: %w", err)
	}
	return nil
}
