package types

import "strings"

// Record is one extracted comment.
type Record struct {
	Header string
	Body   string
}

// String renders the record in export form: header, body, blank line.
func (r Record) String() string {
	var b strings.Builder
	b.Grow(len(r.Header) + len(r.Body) + 3)
	b.WriteString(r.Header)
	b.WriteByte('\n')
	b.WriteString(r.Body)
	b.WriteString("\n\n")
	return b.String()
}

// PageResult is what a single fetched page yields.
type PageResult struct {
	// Records are the comments in document order.
	Records []Record

	// NextURL is the absolute URL of the next page; empty means end of feed.
	NextURL string

	// Remaining is the count hint carried by the next link (nxc parameter).
	Remaining int

	// HasRemaining is false when the next link carries no count hint.
	HasRemaining bool

	// Blocked is true when the page shows a vote control instead of comments.
	Blocked bool
}

// HasNext reports whether the feed continues past this page.
func (p *PageResult) HasNext() bool {
	return p.NextURL != ""
}
