package botfilter

import (
	"net/url"
	"strings"

	"github.com/scraperwall/botfilter/data"
	log "github.com/sirupsen/logrus"
)

// EvidenceStore is the evidence the classifier reads and the trap and
// verification steps write to
type EvidenceStore interface {
	EvidenceReader
	Record(userAgent, ip string) error
	Retract(userAgent, ip string) error
}

// Classifier decides whether a request to a tracking endpoint comes from a bot
type Classifier struct {
	signatures  *Signatures
	verifyParam string
	landing     string
}

// NewClassifier creates a classifier. verifyParam is the query parameter the
// interstitial page adds, landing is where trapped visitors are sent.
func NewClassifier(signatures *Signatures, verifyParam, landing string) *Classifier {
	return &Classifier{
		signatures:  signatures,
		verifyParam: verifyParam,
		landing:     landing,
	}
}

// OpenRules returns the rule chain for the tracking pixel in evaluation order
func (c *Classifier) OpenRules() []Rule {
	sigs := c.signatures.List()

	rules := make([]Rule, 0, len(sigs)+3)
	for _, sig := range sigs {
		rules = append(rules, SignatureRule(sig))
	}

	return append(rules, MethodRule, KnownUserAgentRule, KnownIPRule)
}

// ClickRules returns the rule chain for link clicks in evaluation order
func (c *Classifier) ClickRules() []Rule {
	return []Rule{MethodRule, KnownUserAgentRule, KnownIPRule}
}

// ClassifyOpen decides what to do with a request to the tracking pixel.
// Bots get the pixel so the open is never counted; everybody else passes.
func (c *Classifier) ClassifyOpen(r *data.Request, ev EvidenceReader) data.Verdict {
	if name, ok := FirstMatch(c.OpenRules(), r, ev); ok {
		return data.Pixel(name)
	}
	return data.Pass("")
}

// ClassifyClick decides what to do with a request to a tracked link.
// A request carrying the verification parameter has made it through the
// interstitial page, so the visitor's evidence is dropped and it passes.
// Suspected bots get the interstitial page instead of the redirect.
func (c *Classifier) ClassifyClick(r *data.Request, ev EvidenceStore) data.Verdict {
	if r.Has(c.verifyParam) {
		if err := ev.Retract(r.UserAgent, r.IP); err != nil {
			log.Errorf("failed to retract evidence of verified visitor %s: %s", r.IP, err)
		}
		return data.Pass(data.ReasonVerified)
	}

	if name, ok := FirstMatch(c.ClickRules(), r, ev); ok {
		return data.Interstitial(c.Verified(r.URI), name)
	}
	return data.Pass("")
}

// Verified returns destination with the verification parameter appended
func (c *Classifier) Verified(destination string) string {
	sep := "?"
	if strings.Contains(destination, "?") {
		sep = "&"
	}

	return destination + sep + url.QueryEscape(c.verifyParam) + "=true"
}
