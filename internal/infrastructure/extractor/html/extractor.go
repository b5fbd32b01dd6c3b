// Package html extracts readable page text from HTML documents.
package html

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	xhtml "golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	"golang.org/x/net/html/charset"
)

// boilerplate is removed before text extraction.
const boilerplate = "script, style, noscript, template, svg, nav, header, footer, aside, form, iframe, [aria-hidden='true'], .cookie-banner"

// contentSelectors are tried in order; the first non-empty match wins.
var contentSelectors = []string{"main", "article", "[role='main']", "#content", "body"}

type Extractor struct{}

func NewExtractor() *Extractor {
	return &Extractor{}
}

func (e *Extractor) Extract(_ context.Context, raw []byte) (string, error) {
	doc, err := newDocument(raw)
	if err != nil {
		return "", err
	}
	doc.Find(boilerplate).Remove()

	for _, selector := range contentSelectors {
		text := blockText(doc.Find(selector).First())
		if text != "" {
			return text, nil
		}
	}
	return "", nil
}

// newDocument decodes legacy charsets declared in <meta> or sniffed from the
// bytes before parsing.
func newDocument(raw []byte) (*goquery.Document, error) {
	r, err := charset.NewReader(bytes.NewReader(raw), "")
	if err != nil {
		return nil, fmt.Errorf("detect html charset: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return doc, nil
}

// Title returns the page <title>, falling back to the first <h1>.
func Title(raw []byte) string {
	doc, err := newDocument(raw)
	if err != nil {
		return ""
	}
	if title := strings.TrimSpace(doc.Find("title").First().Text()); title != "" {
		return title
	}
	return strings.TrimSpace(doc.Find("h1").First().Text())
}

// blockElements end the current line when opened and when closed.
var blockElements = map[atom.Atom]bool{
	atom.Address: true, atom.Article: true, atom.Aside: true, atom.Blockquote: true,
	atom.Br: true, atom.Caption: true, atom.Dd: true, atom.Details: true,
	atom.Div: true, atom.Dl: true, atom.Dt: true, atom.Fieldset: true,
	atom.Figcaption: true, atom.Figure: true, atom.Footer: true, atom.Form: true,
	atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true,
	atom.Header: true, atom.Hr: true, atom.Li: true, atom.Main: true, atom.Nav: true,
	atom.Ol: true, atom.P: true, atom.Pre: true, atom.Section: true, atom.Summary: true,
	atom.Table: true, atom.Tbody: true, atom.Td: true, atom.Tfoot: true, atom.Th: true,
	atom.Thead: true, atom.Tr: true, atom.Ul: true,
}

// blockText walks every text node under sel and starts a new line at each
// block boundary, so headings and paragraphs do not run together and text
// around nested blocks is kept.
func blockText(sel *goquery.Selection) string {
	var (
		lines   []string
		current strings.Builder
	)
	flush := func() {
		if line := strings.Join(strings.Fields(current.String()), " "); line != "" {
			lines = append(lines, line)
		}
		current.Reset()
	}

	var walk func(n *xhtml.Node)
	walk = func(n *xhtml.Node) {
		switch n.Type {
		case xhtml.TextNode:
			current.WriteString(n.Data)
			return
		case xhtml.CommentNode:
			return
		}
		block := n.Type == xhtml.ElementNode && blockElements[n.DataAtom]
		if block {
			flush()
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if block {
			flush()
		}
	}
	for _, n := range sel.Nodes {
		walk(n)
	}
	flush()
	return strings.Join(lines, "\n")
}
