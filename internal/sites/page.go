// Package sites holds the per-site crawl rules and main-image strategies.
package sites

import (
	"bytes"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/htmlquery"
	"github.com/rotisserie/eris"
	"golang.org/x/net/html"
)

// Page is a parsed HTML document that strategies and link extraction query.
type Page struct {
	URL  string
	root *html.Node
	doc  *goquery.Document
}

// NewPage parses body as HTML. The parser is lenient, so only reader
// failures surface as errors.
func NewPage(pageURL string, body []byte) (*Page, error) {
	root, err := htmlquery.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrapf(err, "failed to parse %s", pageURL)
	}
	return &Page{
		URL:  pageURL,
		root: root,
		doc:  goquery.NewDocumentFromNode(root),
	}, nil
}

// Values evaluates an XPath expression and returns the text of every match.
// Attribute selections such as //img/@src yield the attribute values.
func (p *Page) Values(expr string) ([]string, error) {
	nodes, err := htmlquery.QueryAll(p.root, expr)
	if err != nil {
		return nil, eris.Wrapf(err, "invalid xpath %q", expr)
	}
	values := make([]string, 0, len(nodes))
	for _, n := range nodes {
		values = append(values, htmlquery.InnerText(n))
	}
	return values, nil
}

// Links returns the href of every anchor inside the regions selected by
// restrictXPath, in document order. An empty restriction covers the whole page.
func (p *Page) Links(restrictXPath string) ([]string, error) {
	if restrictXPath == "" {
		return p.Values("//a/@href")
	}

	regions, err := htmlquery.QueryAll(p.root, restrictXPath)
	if err != nil {
		return nil, eris.Wrapf(err, "invalid xpath %q", restrictXPath)
	}
	var links []string
	for _, region := range regions {
		for _, a := range htmlquery.Find(region, ".//a[@href]") {
			if href := strings.TrimSpace(htmlquery.SelectAttr(a, "href")); href != "" {
				links = append(links, href)
			}
		}
	}
	return links, nil
}

// NthImage returns the src of the n-th (0-based) img element within the
// elements matched by the CSS scope. Images without a src still count toward
// n; the result is "" when that image has no src or does not exist.
func (p *Page) NthImage(scope string, n int) string {
	src, _ := p.images(scope).Eq(n).Attr("src")
	return src
}

// FirstImageSrc returns the first src carried by any img within the scope.
func (p *Page) FirstImageSrc(scope string) string {
	src, _ := p.images(scope).Filter("[src]").First().Attr("src")
	return src
}

func (p *Page) images(scope string) *goquery.Selection {
	if scope == "" {
		return p.doc.Find("img")
	}
	return p.doc.Find(scope).Find("img")
}
