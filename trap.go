package botfilter

import (
	"fmt"
	"html/template"
	"strings"

	"github.com/oklog/ulid/v2"
	"github.com/scraperwall/botfilter/data"
	log "github.com/sirupsen/logrus"
)

// HandleTrap records the requester as a bot and sends it to the landing page.
// Only clients that don't render emails ever follow the trap link.
// If the evidence can't be written the request passes.
func (c *Classifier) HandleTrap(r *data.Request, ev EvidenceStore) data.Verdict {
	if err := ev.Record(r.UserAgent, r.IP); err != nil {
		log.Errorf("failed to record trapped bot %s: %s", r.IP, err)
		return data.Pass(data.ReasonTrapWriteFailed)
	}

	return data.Interstitial(c.Verified(c.landing), data.ReasonTrap)
}

// TrapLink returns a fresh trap URL below baseURL. Every outgoing email
// should carry its own link, the id at the end is not validated.
func TrapLink(baseURL, root, trapToken string) string {
	return fmt.Sprintf("%s/%s/c/%s/%s",
		strings.TrimRight(baseURL, "/"),
		strings.Trim(root, "/"),
		trapToken,
		strings.ToLower(ulid.Make().String()))
}

// TrapSnippet returns the invisible markup that embeds link in an email.
// People never see it, mail scanners follow it.
func TrapSnippet(link, label string) string {
	return fmt.Sprintf(
		`<div style="display: none"><a style="text-decoration: none; color: transparent; visibility: hidden; font-size: 1px" href="%s">%s</a></div>`,
		template.HTMLEscapeString(link),
		template.HTMLEscapeString(label))
}
