// Package extractor turns a fetched comment page into records and the
// pointer to the next page.
package extractor

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"

	"github.com/IshaanNene/commentgoat/internal/config"
	"github.com/IshaanNene/commentgoat/internal/types"
)

// remainingParam is the query parameter of the next link that carries the
// count of comments left in the feed.
const remainingParam = "nxc"

// Extractor applies the configured selectors to a page. It keeps no state
// between calls, so extracting the same body twice yields the same result.
type Extractor struct {
	sel       config.Selectors
	nextClass string
	logger    *slog.Logger
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithNextClass pins the class of the pagination item that links to the
// next page instead of detecting it per page.
func WithNextClass(class string) Option {
	return func(e *Extractor) { e.nextClass = class }
}

// New creates an Extractor for the given selectors.
func New(sel config.Selectors, logger *slog.Logger, opts ...Option) *Extractor {
	e := &Extractor{
		sel:    sel,
		logger: logger.With("component", "extractor"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract parses body and returns the records, next link and gate status.
func (e *Extractor) Extract(body []byte, pageURL string) (*types.PageResult, error) {
	root, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, &types.ParseError{URL: pageURL, Err: err}
	}

	comments, err := e.query(root, e.sel.Comment)
	if err != nil {
		return nil, &types.ParseError{URL: pageURL, Selector: e.sel.Comment.Expr, Err: err}
	}

	result := &types.PageResult{Records: make([]types.Record, 0, len(comments))}
	for _, c := range comments {
		rec, err := e.record(c)
		if err != nil {
			return nil, &types.ParseError{URL: pageURL, Err: err}
		}
		result.Records = append(result.Records, rec)
	}

	if len(comments) == 0 {
		votes, err := e.query(root, e.sel.VoteButton)
		if err != nil {
			return nil, &types.ParseError{URL: pageURL, Selector: e.sel.VoteButton.Expr, Err: err}
		}
		result.Blocked = len(votes) > 0
	}

	next, err := e.nextLink(root, pageURL)
	if err != nil {
		return nil, err
	}
	if next != "" {
		result.NextURL = next
		result.Remaining, result.HasRemaining = remainingHint(next)
	}

	e.logger.Debug("page extracted",
		"url", pageURL,
		"records", len(result.Records),
		"next", result.NextURL,
		"remaining", result.Remaining,
		"blocked", result.Blocked,
	)
	return result, nil
}

// record builds one Record from a comment fragment. Header newlines are
// stripped; body fragments are concatenated without a separator.
func (e *Extractor) record(n *html.Node) (types.Record, error) {
	var rec types.Record

	headers, err := e.query(n, e.sel.Header)
	if err != nil {
		return rec, err
	}
	if len(headers) > 0 {
		rec.Header = strings.ReplaceAll(textOf(headers[0]), "\n", "")
	}

	bodies, err := e.query(n, e.sel.Body)
	if err != nil {
		return rec, err
	}
	var b strings.Builder
	for _, p := range bodies {
		b.WriteString(textOf(p))
	}
	rec.Body = b.String()
	return rec, nil
}

// nextLink finds the anchor inside the pagination item that points forward.
// The item is recognised by the last class of the last entry of the first
// pagination list, unless a class was pinned.
func (e *Extractor) nextLink(root *html.Node, pageURL string) (string, error) {
	class := e.nextClass
	if class == "" {
		lists, err := e.query(root, e.sel.Pagination)
		if err != nil {
			return "", &types.ParseError{URL: pageURL, Selector: e.sel.Pagination.Expr, Err: err}
		}
		if len(lists) == 0 {
			return "", nil
		}
		class = lastItemClass(lists[0])
		if class == "" {
			return "", nil
		}
	}

	sel := goquery.NewDocumentFromNode(root).Find("li." + class + " a").First()
	href, ok := sel.Attr("href")
	if !ok || strings.TrimSpace(href) == "" {
		return "", nil
	}

	base, err := url.Parse(pageURL)
	if err != nil {
		return "", &types.ParseError{URL: pageURL, Err: fmt.Errorf("%w: %v", types.ErrInvalidURL, err)}
	}
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		e.logger.Warn("unparseable next link", "url", pageURL, "href", href)
		return "", nil
	}
	return base.ResolveReference(ref).String(), nil
}

// query runs a selector rule below n.
func (e *Extractor) query(n *html.Node, rule config.SelectorRule) ([]*html.Node, error) {
	if rule.Type == "xpath" {
		return htmlquery.QueryAll(n, rule.Expr)
	}
	return goquery.NewDocumentFromNode(n).Find(rule.Expr).Nodes, nil
}

// lastItemClass returns the last class token of the last <li> child of list.
func lastItemClass(list *html.Node) string {
	var last *html.Node
	for c := list.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.Data == "li" {
			last = c
		}
	}
	if last == nil {
		return ""
	}
	fields := strings.Fields(htmlquery.SelectAttr(last, "class"))
	if len(fields) == 0 {
		return ""
	}
	return fields[len(fields)-1]
}

// remainingHint reads the nxc parameter of a next link.
func remainingHint(next string) (int, bool) {
	u, err := url.Parse(next)
	if err != nil {
		return 0, false
	}
	raw := u.Query().Get(remainingParam)
	if raw == "" {
		return 0, false
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

func textOf(n *html.Node) string {
	return goquery.NewDocumentFromNode(n).Text()
}
