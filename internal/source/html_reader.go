package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// maxPageSize bounds how much of the publication page is parsed.
const maxPageSize = 10 << 20

// HTMLPageReaderOptions configures an HTMLPageReader.
type HTMLPageReaderOptions struct {
	DateMarker string        // text next to the publication date
	LinkToken  string        // token the archive file name must contain
	UserAgent  string        // sent with every request
	Timeout    time.Duration // HTTP client timeout (default: 30s)
	Client     *http.Client  // optional; overrides Timeout
}

// HTMLPageReader reads PageFacts from a statically rendered HTML page.
type HTMLPageReader struct {
	client     *http.Client
	userAgent  string
	dateMarker string
	linkRe     *regexp.Regexp
}

// NewHTMLPageReader validates opts and returns a reader.
func NewHTMLPageReader(opts HTMLPageReaderOptions) (*HTMLPageReader, error) {
	marker := strings.TrimSpace(opts.DateMarker)
	if marker == "" {
		return nil, errors.New("DateMarker is required")
	}
	token := strings.TrimSpace(opts.LinkToken)
	if token == "" {
		return nil, errors.New("LinkToken is required")
	}
	client := opts.Client
	if client == nil {
		to := opts.Timeout
		if to <= 0 {
			to = 30 * time.Second
		}
		client = &http.Client{Timeout: to}
	}
	return &HTMLPageReader{
		client:     client,
		userAgent:  opts.UserAgent,
		dateMarker: marker,
		linkRe:     regexp.MustCompile(`(?i)` + regexp.QuoteMeta(token) + `[^/\s]*\.zip\b`),
	}, nil
}

// Read fetches pageURL and extracts the date text and the first matching
// archive link, resolved against the page URL. A non-2xx response is an error.
func (r *HTMLPageReader) Read(ctx context.Context, pageURL string) (PageFacts, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return PageFacts{}, fmt.Errorf("invalid page URL: %w", err)
	}

	doc, err := r.fetch(ctx, pageURL)
	if err != nil {
		return PageFacts{}, err
	}

	var facts PageFacts
	if el := findElement(doc, r.ownTextContains); el != nil {
		facts.DateText = collapseSpace(textContent(el))
	}
	if a := findElement(doc, r.isArchiveAnchor); a != nil {
		href, err := base.Parse(attr(a, "href"))
		if err != nil {
			return PageFacts{}, fmt.Errorf("invalid archive link: %w", err)
		}
		facts.Link = href.String()
	}
	return facts, nil
}

func (r *HTMLPageReader) fetch(ctx context.Context, pageURL string) (*html.Node, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, err
	}
	if r.userAgent != "" {
		req.Header.Set("User-Agent", r.userAgent)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("http status %d", resp.StatusCode)
	}

	doc, err := html.Parse(io.LimitReader(resp.Body, maxPageSize))
	if err != nil {
		return nil, fmt.Errorf("parse page: %w", err)
	}
	return doc, nil
}

// ownTextContains matches an element whose direct text children contain the
// date marker.
func (r *HTMLPageReader) ownTextContains(n *html.Node) bool {
	if n.Type != html.ElementNode || n.DataAtom == atom.Script || n.DataAtom == atom.Style {
		return false
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode && strings.Contains(c.Data, r.dateMarker) {
			return true
		}
	}
	return false
}

// isArchiveAnchor matches an <a href> whose text or href names the archive.
func (r *HTMLPageReader) isArchiveAnchor(n *html.Node) bool {
	if n.Type != html.ElementNode || n.DataAtom != atom.A {
		return false
	}
	href := attr(n, "href")
	if href == "" {
		return false
	}
	return r.linkRe.MatchString(textContent(n)) || r.linkRe.MatchString(href)
}

// findElement returns the first node in document order that satisfies match.
func findElement(n *html.Node, match func(*html.Node) bool) *html.Node {
	if match(n) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, match); found != nil {
			return found
		}
	}
	return nil
}

func textContent(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return strings.TrimSpace(a.Val)
		}
	}
	return ""
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
