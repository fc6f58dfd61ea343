package sites

import (
	"regexp"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
)

// Rule selects links to follow during a crawl.
type Rule struct {
	// Allow patterns are searched in the absolute link URL.
	Allow []*regexp.Regexp
	// RestrictXPath limits link extraction to the matched regions.
	RestrictXPath string
	// Callback marks pages reached through this rule as recipe pages.
	Callback bool
	// Follow extracts further links from pages reached through this rule.
	Follow bool
}

// Matches reports whether link matches any of the rule's patterns.
func (r Rule) Matches(link string) bool {
	if len(r.Allow) == 0 {
		return true
	}
	for _, re := range r.Allow {
		if re.MatchString(link) {
			return true
		}
	}
	return false
}

// Site describes one crawlable recipe site.
type Site struct {
	ID             string
	AllowedDomains []string
	StartURLs      []string
	Rules          []Rule
	Strategy       Strategy
}

// Allows reports whether host is one of the site's domains or a subdomain of one.
func (s *Site) Allows(host string) bool {
	if len(s.AllowedDomains) == 0 {
		return true
	}
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	for _, d := range s.AllowedDomains {
		d = strings.ToLower(d)
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

// Registry maps site ids to sites.
type Registry struct {
	sites map[string]*Site
}

// NewRegistry builds a registry, rejecting duplicate ids.
func NewRegistry(list ...*Site) (*Registry, error) {
	r := &Registry{sites: make(map[string]*Site, len(list))}
	for _, s := range list {
		if _, dup := r.sites[s.ID]; dup {
			return nil, eris.Errorf("duplicate site id: %s", s.ID)
		}
		r.sites[s.ID] = s
	}
	return r, nil
}

// Lookup returns the site registered under id.
func (r *Registry) Lookup(id string) (*Site, bool) {
	s, ok := r.sites[id]
	return s, ok
}

// ForHost returns the first site, by id, whose domains allow host.
// Legacy variants sort after their primary site, so the primary wins.
func (r *Registry) ForHost(host string) (*Site, bool) {
	for _, id := range r.IDs() {
		if s := r.sites[id]; s.Allows(host) {
			return s, true
		}
	}
	return nil, false
}

// Allows reports whether any registered site accepts host.
func (r *Registry) Allows(host string) bool {
	_, ok := r.ForHost(host)
	return ok
}

// IDs returns the registered site ids in sorted order.
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.sites))
	for id := range r.sites {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
