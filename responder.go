package botfilter

import (
	"bytes"
	"html/template"
	"net/http"
	"strconv"

	"github.com/scraperwall/botfilter/config"
	log "github.com/sirupsen/logrus"
)

// pixelPNG is a transparent 1x1 PNG
var pixelPNG = []byte{
	0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a, 0x00, 0x00, 0x00, 0x0d,
	0x49, 0x48, 0x44, 0x52, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x01, 0x03, 0x00, 0x00, 0x00, 0x25, 0xdb, 0x56, 0xca, 0x00, 0x00, 0x00,
	0x03, 0x50, 0x4c, 0x54, 0x45, 0x00, 0x00, 0x00, 0xa7, 0x7a, 0x3d, 0xda,
	0x00, 0x00, 0x00, 0x01, 0x74, 0x52, 0x4e, 0x53, 0x00, 0x40, 0xe6, 0xd8,
	0x66, 0x00, 0x00, 0x00, 0x0a, 0x49, 0x44, 0x41, 0x54, 0x08, 0xd7, 0x63,
	0x60, 0x00, 0x00, 0x00, 0x02, 0x00, 0x01, 0xe2, 0x21, 0xbc, 0x33, 0x00,
	0x00, 0x00, 0x00, 0x49, 0x45, 0x4e, 0x44, 0xae, 0x42, 0x60, 0x82,
}

// Responder writes the filter's own responses
type Responder struct {
	config *config.Config
}

// NewResponder creates a Responder using the texts and delay from config
func NewResponder(config *config.Config) *Responder {
	return &Responder{
		config: config,
	}
}

// Pixel writes the transparent tracking image
func (rs *Responder) Pixel(w http.ResponseWriter) {
	h := w.Header()
	h.Set("Content-Type", "image/png")
	h.Set("Content-Length", strconv.Itoa(len(pixelPNG)))
	h.Set("Cache-Control", "no-store")

	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(pixelPNG); err != nil {
		log.Debugf("writing pixel: %s", err)
	}
}

// Interstitial writes the countdown page that sends script-executing
// clients on to destination. Host is shown in the continue line.
func (rs *Responder) Interstitial(w http.ResponseWriter, destination, host string) {
	page := interstitialPage{
		Title:           rs.config.DocumentTitle,
		LogoSrc:         rs.config.LogoSrc,
		Delay:           rs.config.RedirectDelay,
		Destination:     destination,
		RedirectingText: rs.config.RedirectingText,
		Countdown: fillHTML(rs.config.RedirectText,
			template.HTML(`<span id="delay">`+strconv.Itoa(rs.config.RedirectDelay)+`</span>`)),
		Continue: fillHTML(rs.config.ContinueText,
			template.HTML(`<a id="continue" href="`+template.HTMLEscapeString(destination)+`">`+template.HTMLEscapeString(rs.config.ContinueLink)+`</a>`),
			template.HTML(template.HTMLEscapeString(host))),
	}

	var buf bytes.Buffer
	if err := interstitialTemplate.Execute(&buf, page); err != nil {
		log.Errorf("rendering interstitial page: %s", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	h := w.Header()
	h.Set("Content-Type", "text/html; charset=utf-8")
	h.Set("Cache-Control", "no-store")
	h.Set("X-Robots-Tag", "noindex")

	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(buf.Bytes()); err != nil {
		log.Debugf("writing interstitial page: %s", err)
	}
}
