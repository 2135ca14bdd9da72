// Package registry implements the read-only trusted-site registry consulted
// by the risk aggregator before scoring.
package registry

import (
	"net/url"
	"strings"

	"github.com/elder-shield/guardian-engine/internal/config"
)

// SiteInfo describes a trusted registry entry.
type SiteInfo struct {
	Organization string `json:"organization"`
	Category     string `json:"category"`
}

type entry struct {
	pattern string // exact host or wildcard suffix ("*.go.th")
	info    SiteInfo
}

// Registry answers trust lookups for hosts. Entries are fixed at construction.
type Registry struct {
	entries []entry
}

// Built-in entries covering government, banking and major consumer sites.
// Config entries are appended and take part in the same matching.
var defaultSites = []config.TrustedSite{
	{Pattern: "*.go.th", Organization: "Royal Thai Government", Category: "government"},
	{Pattern: "*.or.th", Organization: "Thai Non-Profit", Category: "organization"},
	{Pattern: "mof.go.th", Organization: "Ministry of Finance", Category: "government"},
	{Pattern: "*.kasikornbank.com", Organization: "Kasikornbank", Category: "banking"},
	{Pattern: "kasikornbank.com", Organization: "Kasikornbank", Category: "banking"},
	{Pattern: "scb.co.th", Organization: "Siam Commercial Bank", Category: "banking"},
	{Pattern: "bangkokbank.com", Organization: "Bangkok Bank", Category: "banking"},
	{Pattern: "google.com", Organization: "Google", Category: "technology"},
	{Pattern: "*.google.com", Organization: "Google", Category: "technology"},
	{Pattern: "facebook.com", Organization: "Meta", Category: "social"},
	{Pattern: "line.me", Organization: "LY Corporation", Category: "social"},
	{Pattern: "microsoft.com", Organization: "Microsoft", Category: "technology"},
	{Pattern: "apple.com", Organization: "Apple", Category: "technology"},
	{Pattern: "amazon.com", Organization: "Amazon", Category: "commerce"},
	{Pattern: "wikipedia.org", Organization: "Wikimedia Foundation", Category: "reference"},
	{Pattern: "*.wikipedia.org", Organization: "Wikimedia Foundation", Category: "reference"},
}

// New builds a registry from the built-in entries plus configured sites.
func New(cfg config.RegistryConfig) *Registry {
	r := &Registry{}
	for _, site := range append(defaultSites, cfg.Sites...) {
		r.entries = append(r.entries, entry{
			pattern: strings.ToLower(site.Pattern),
			info:    SiteInfo{Organization: site.Organization, Category: site.Category},
		})
	}
	return r
}

// IsTrusted reports whether the URL's host matches a registry entry.
func (r *Registry) IsTrusted(rawURL string) bool {
	_, ok := r.lookup(rawURL)
	return ok
}

// Info returns the registry entry for the URL's host, or nil when absent.
func (r *Registry) Info(rawURL string) *SiteInfo {
	info, ok := r.lookup(rawURL)
	if !ok {
		return nil
	}
	return &info
}

func (r *Registry) lookup(rawURL string) (SiteInfo, bool) {
	host := hostOf(rawURL)
	if host == "" {
		return SiteInfo{}, false
	}
	// Exact entries win over wildcard suffixes.
	for _, e := range r.entries {
		if !strings.HasPrefix(e.pattern, "*.") && host == e.pattern {
			return e.info, true
		}
	}
	for _, e := range r.entries {
		if matches(host, e.pattern) {
			return e.info, true
		}
	}
	return SiteInfo{}, false
}

func matches(host, pattern string) bool {
	if suffix, ok := strings.CutPrefix(pattern, "*."); ok {
		return host == suffix || strings.HasSuffix(host, "."+suffix)
	}
	return host == pattern
}

func hostOf(rawURL string) string {
	rawURL = strings.TrimSpace(strings.ToLower(rawURL))
	if rawURL == "" {
		return ""
	}
	if !strings.Contains(rawURL, "://") {
		rawURL = "https://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Hostname()
}
