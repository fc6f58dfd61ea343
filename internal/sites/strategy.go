package sites

import (
	"strings"

	"ketohub/internal/errors"
)

// Strategy locates the main image URL of a recipe page. It returns the raw
// attribute value, which may be relative to the page URL.
type Strategy func(p *Page) (string, error)

// Locator is one step of a strategy. It returns "" when it finds nothing.
type Locator func(p *Page) string

const (
	openGraphXPath = `/html/head/meta[@property="og:image"]/@content`
	tveEditorXPath = `//div[@id="tve_editor"]//img/@src`
)

// OpenGraph finds the og:image declared in the document head.
func OpenGraph(p *Page) string {
	values, err := p.Values(openGraphXPath)
	if err != nil {
		return ""
	}
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// Structural returns a locator that picks the first image under the XPath
// expression whose source ends with suffix.
func Structural(expr, suffix string) Locator {
	return func(p *Page) string {
		values, err := p.Values(expr)
		if err != nil {
			return ""
		}
		for _, v := range values {
			if strings.HasSuffix(v, suffix) {
				return v
			}
		}
		return ""
	}
}

// Positional returns a locator that picks the n-th image inside the CSS scope.
func Positional(scope string, n int) Locator {
	return func(p *Page) string {
		return p.NthImage(scope, n)
	}
}

var (
	// TVEditorJPEG finds the first .jpg inside the Thrive editor body.
	TVEditorJPEG = Structural(tveEditorXPath, ".jpg")
	// FirstImage is the first img src of the document.
	FirstImage Locator = func(p *Page) string { return p.FirstImageSrc("") }
	// SecondImage is the second img of the document; the first is usually a logo.
	SecondImage = Positional("", 1)
)

// FirstOf builds a strategy that tries each locator in order and fails with
// NoImageFoundError when none of them yields a URL.
func FirstOf(locators ...Locator) Strategy {
	return func(p *Page) (string, error) {
		for _, locate := range locators {
			if u := locate(p); u != "" {
				return u, nil
			}
		}
		return "", &errors.NoImageFoundError{PageURL: p.URL}
	}
}
