// Package recipekey derives stable, filesystem-safe identifiers from recipe page URLs.
package recipekey

import (
	"regexp"
	"strings"
)

// Key identifies a recipe record on disk.
type Key string

func (k Key) String() string {
	return string(k)
}

var (
	schemePattern  = regexp.MustCompile(`(?i)^https?://`)
	wwwPattern     = regexp.MustCompile(`(?i)^www\.`)
	invalidPattern = regexp.MustCompile(`[^a-z0-9/]+`)
)

// FromURL converts a page URL into its recipe key. Scheme, a leading "www.",
// one trailing slash and letter case do not affect the result.
func FromURL(url string) Key {
	k := schemePattern.ReplaceAllString(url, "")
	k = wwwPattern.ReplaceAllString(k, "")
	k = strings.TrimSuffix(k, "/")
	k = strings.ToLower(k)
	k = invalidPattern.ReplaceAllString(k, "-")
	k = strings.ReplaceAll(k, "/", "_")
	return Key(k)
}
