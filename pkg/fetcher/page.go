package fetcher

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// Fetcher retrieves one page by absolute URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*Page, error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, url string) (*Page, error)

// Fetch calls f.
func (f FetcherFunc) Fetch(ctx context.Context, url string) (*Page, error) {
	return f(ctx, url)
}

// Page is a fetched and parsed HTML document.
type Page struct {
	URL        string
	StatusCode int
	Doc        *goquery.Document
	Body       []byte
	FromCache  bool
	FetchedAt  time.Time
}

// NewPage parses body into a Page.
func NewPage(url string, status int, body []byte) (*Page, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return &Page{
		URL:        url,
		StatusCode: status,
		Doc:        doc,
		Body:       body,
		FetchedAt:  time.Now(),
	}, nil
}

// Find runs a selector against the document.
func (p *Page) Find(selector string) *goquery.Selection {
	return p.Doc.Find(selector)
}
