package botfilter

import (
	"net/http"

	"github.com/scraperwall/botfilter/data"
)

// Rule is a named check on a request. A match means the request looks automated.
// Rules only read the evidence, they never change it.
type Rule struct {
	Name  string
	Match func(r *data.Request, ev EvidenceReader) bool
}

// MethodRule matches every request that isn't a GET. Mail clients and
// browsers only ever GET tracking URLs.
var MethodRule = Rule{
	Name: "method",
	Match: func(r *data.Request, _ EvidenceReader) bool {
		return r.Method != http.MethodGet
	},
}

// KnownUserAgentRule matches user agents that have been caught before
var KnownUserAgentRule = Rule{
	Name: "known-useragent",
	Match: func(r *data.Request, ev EvidenceReader) bool {
		return ev.KnownUserAgent(r.UserAgent)
	},
}

// KnownIPRule matches IPs that have been caught before
var KnownIPRule = Rule{
	Name: "known-ip",
	Match: func(r *data.Request, ev EvidenceReader) bool {
		return ev.KnownIP(r.IP)
	},
}

// SignatureRule matches requests of a known image prefetcher
func SignatureRule(sig Signature) Rule {
	return Rule{
		Name: "prefetch:" + sig.Description,
		Match: func(r *data.Request, _ EvidenceReader) bool {
			return sig.Matches(r.UserAgent, r.Referer)
		},
	}
}

// FirstMatch evaluates rules in order and returns the name of the first one that matches
func FirstMatch(rules []Rule, r *data.Request, ev EvidenceReader) (name string, matched bool) {
	for _, rule := range rules {
		if rule.Match(r, ev) {
			return rule.Name, true
		}
	}
	return "", false
}
