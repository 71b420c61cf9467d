package verify

import (
	"net/url"
	"strings"
)

// unscrapableDomains are major platforms that block or poison scrapers;
// fetching them wastes a request and classifies wrong either way.
var unscrapableDomains = map[string]struct{}{
	"twitter.com":   {},
	"x.com":         {},
	"facebook.com":  {},
	"instagram.com": {},
	"linkedin.com":  {},
	"tiktok.com":    {},
	"threads.net":   {},
	"reddit.com":    {},
}

// restrictedPublishers are academic publishers behind access walls; a
// reachable URL is the most we can verify, so these classify by HTTP
// status alone.
var restrictedPublishers = map[string]struct{}{
	"sciencedirect.com":       {},
	"link.springer.com":       {},
	"springer.com":            {},
	"jstor.org":               {},
	"ieeexplore.ieee.org":     {},
	"onlinelibrary.wiley.com": {},
	"tandfonline.com":         {},
	"academic.oup.com":        {},
	"nature.com":              {},
	"dl.acm.org":              {},
}

// IsUnscrapable reports whether domain (or a parent domain) is in the
// known-unscrapable set.
func IsUnscrapable(domain string) bool {
	return inDomainSet(domain, unscrapableDomains)
}

// IsRestrictedPublisher reports whether domain belongs to an
// access-restricted academic publisher.
func IsRestrictedPublisher(domain string) bool {
	return inDomainSet(domain, restrictedPublishers)
}

func inDomainSet(domain string, set map[string]struct{}) bool {
	domain = strings.ToLower(strings.TrimPrefix(domain, "www."))
	for domain != "" {
		if _, ok := set[domain]; ok {
			return true
		}
		i := strings.Index(domain, ".")
		if i < 0 {
			break
		}
		domain = domain[i+1:]
	}
	return false
}

// domainOf extracts the hostname of rawURL, empty when unparseable.
func domainOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return ""
	}
	return strings.ToLower(u.Hostname())
}
