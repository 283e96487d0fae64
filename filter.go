/*
	botfilter - an email engagement bot filter by ScraperWall
	Copyright (C) 2021 ScraperWall, Tobias von Dewitz <tobias@scraperwall.com>

	This program is free software: you can redistribute it and/or modify it
	under the terms of the GNU Affero General Public License as published by
	the Free Software Foundation, either version 3 of the License, or (at your
	option) any later version.

	This program is distributed in the hope that it will be useful, but WITHOUT
	ANY WARRANTY; without even the implied warranty of MERCHANTABILITY or
	FITNESS FOR A PARTICULAR PURPOSE. See the GNU Affero General Public License
	for more details.

	You should have received a copy of the GNU Affero General Public License
	along with this program. If not, see <https://www.gnu.org/licenses/>.
*/

package botfilter

import (
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/scraperwall/botfilter/config"
	"github.com/scraperwall/botfilter/data"
	log "github.com/sirupsen/logrus"
)

// HeaderName is set on every response the filter is responsible for
const HeaderName = "X-Botfilter"

// Filter sits in front of the protected application and keeps bots away
// from the tracking endpoints
type Filter struct {
	config     *config.Config
	sources    []string
	router     *Router
	classifier *Classifier
	evidence   *Evidence
	responder  *Responder
	stats      *StatsWindows
	recent     *EventsWindow
	notifier   Notifier
}

// NewFilter creates a Filter. stats and notifier may be nil.
func NewFilter(config *config.Config, evidence *Evidence, signatures *Signatures, stats *StatsWindows, notifier Notifier) *Filter {
	if notifier == nil {
		notifier = nopNotifier{}
	}

	return &Filter{
		config:     config,
		sources:    config.Sources(),
		router:     NewRouter(config.ManagedRoot, config.TrapToken, config.PixelToken),
		classifier: NewClassifier(signatures, config.VerifyParam, config.Landing()),
		evidence:   evidence,
		responder:  NewResponder(config),
		stats:      stats,
		recent:     NewEventsWindow(config.KeepEvents, config.WindowSize, config.NumWindows),
		notifier:   notifier,
	}
}

// Recent returns the most recent decisions
func (f *Filter) Recent() *EventsWindow {
	return f.recent
}

// Decide routes r and classifies it. Requests outside the managed routes
// pass without touching the evidence.
func (f *Filter) Decide(r *data.Request) (RouteKind, data.Verdict) {
	route, err := f.router.Route(r.Path)
	if err != nil {
		log.Debugf("%s: %s", r.Path, err)
		return route, data.Pass(data.ReasonMalformedRoute)
	}

	switch route {
	case PixelTrap:
		return route, data.Pixel(data.ReasonPixelTrap)
	case Open:
		return route, f.classifier.ClassifyOpen(r, f.evidence)
	case Click:
		return route, f.classifier.ClassifyClick(r, f.evidence)
	case Trap:
		return route, f.classifier.HandleTrap(r, f.evidence)
	}

	return route, data.Pass("")
}

// Serve handles r if it is meant for the filter and reports whether a
// response has been written. Otherwise the caller hands r on to the
// protected application.
func (f *Filter) Serve(w http.ResponseWriter, r *http.Request) (handled bool) {
	req := data.NewRequest(r, f.sources)

	route, err := f.router.Route(req.Path)
	if route == NotManaged && err == nil {
		return false
	}

	if !f.deployed() {
		w.WriteHeader(http.StatusServiceUnavailable)
		return true
	}

	w.Header().Set(HeaderName, "/"+f.config.ManagedRoot+"/")

	route, v := f.Decide(req)
	f.record(req, route, v)

	switch v.Action {
	case data.ShowPixel:
		f.responder.Pixel(w)
		return true
	case data.ShowInterstitial:
		f.responder.Interstitial(w, v.Destination, req.Host)
		return true
	}

	return false
}

// Middleware returns the filter as gin middleware. Requests the filter
// doesn't answer continue down the handler chain.
func (f *Filter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if f.Serve(c.Writer, c.Request) {
			c.Abort()
			return
		}
		c.Next()
	}
}

// Wrap puts the filter in front of next
func (f *Filter) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !f.Serve(w, r) {
			next.ServeHTTP(w, r)
		}
	})
}

// deployed checks the host marker file. Without it the filter refuses to
// work at all.
func (f *Filter) deployed() bool {
	if f.config.MarkerFile == "" {
		return true
	}

	if _, err := os.Stat(f.config.MarkerFile); err != nil {
		log.Errorf("host marker file: %s", err)
		return false
	}
	return true
}

func (f *Filter) record(r *data.Request, route RouteKind, v data.Verdict) {
	log.WithFields(log.Fields{
		"route":  route.String(),
		"action": v.Action.String(),
		"reason": v.Reason,
		"ip":     r.IP,
	}).Debug(r.URI)

	if f.stats != nil {
		f.stats.Add(route, v, r.Time)
	}

	kind := data.EventDecision
	switch {
	case route == Trap && v.IsBot():
		kind = data.EventTrapped
	case v.Reason == data.ReasonVerified:
		kind = data.EventRetracted
	}

	e := &data.Event{
		Kind:        kind,
		Route:       route.String(),
		Action:      v.Action.String(),
		Reason:      v.Reason,
		IP:          r.IP,
		Fingerprint: Fingerprint(r.UserAgent),
		URI:         r.URI,
		Time:        r.Time,
	}

	f.recent.Add(e)
	f.notifier.Notify(e)
}
