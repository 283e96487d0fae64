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
	"context"
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"runtime"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fvbock/endless"
	"github.com/gin-gonic/gin"
	"github.com/scraperwall/botfilter/config"
	log "github.com/sirupsen/logrus"
)

// Botfilter wires the filter, its evidence and the surrounding services together
type Botfilter struct {
	config     *config.Config
	evidence   *Evidence
	signatures *Signatures
	stats      *StatsWindows
	notifier   Notifier
	filter     *Filter
	api        *API

	ctx context.Context
}

// New creates a new Botfilter instance
func New(ctx context.Context, config *config.Config) (*Botfilter, error) {
	var err error

	if err = config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	b := &Botfilter{
		config:   config,
		stats:    NewStatsWindows(config.WindowSize, config.NumWindows),
		notifier: nopNotifier{},
		ctx:      ctx,
	}

	// Evidence
	//
	b.evidence, err = OpenEvidence(ctx, config)
	if err != nil {
		return nil, err
	}

	// Prefetch signatures
	//
	b.signatures, err = NewSignatures(ctx, config.SignatureTOML)
	if err != nil {
		b.evidence.Close()
		return nil, err
	}

	// NATS
	//
	if config.NatsURL != "" {
		b.notifier, err = NewNatsNotifier(config.NatsURL, config.NatsUser, config.NatsPassword, config.NatsSubject)
		if err != nil {
			b.evidence.Close()
			return nil, err
		}
	}

	b.filter = NewFilter(config, b.evidence, b.signatures, b.stats, b.notifier)

	// API
	//
	if config.APIAddress != "" {
		b.api = NewAPI(ctx, config, b)
		go b.api.Run()
	}

	if config.LogMemoryStats {
		go b.logMemoryStats()
	}

	go b.statsWorker()

	// clean up when we're done
	go func() {
		<-ctx.Done()
		b.notifier.Close()
		if err := b.evidence.Close(); err != nil {
			log.Errorf("closing evidence store: %s", err)
		}
	}()

	return b, nil
}

// Filter returns the request filter
func (b *Botfilter) Filter() *Filter {
	return b.filter
}

// Evidence returns the evidence store
func (b *Botfilter) Evidence() *Evidence {
	return b.evidence
}

// Stats returns the decision statistics
func (b *Botfilter) Stats() *StatsWindows {
	return b.stats
}

// Handler returns the gin engine that filters every request and hands the
// rest to the upstream application
func (b *Botfilter) Handler() (http.Handler, error) {
	upstream, err := url.Parse(b.config.Upstream)
	if err != nil || upstream.Host == "" {
		return nil, fmt.Errorf("invalid upstream %q", b.config.Upstream)
	}

	proxy := httputil.NewSingleHostReverseProxy(upstream)
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		log.Errorf("upstream %s: %s", upstream.Host, err)
		w.WriteHeader(http.StatusBadGateway)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(b.filter.Middleware())
	router.NoRoute(gin.WrapH(proxy))
	router.NoMethod(gin.WrapH(proxy))

	return router, nil
}

// ListenAndServe serves the filtered upstream on the configured address
func (b *Botfilter) ListenAndServe() error {
	handler, err := b.Handler()
	if err != nil {
		return err
	}

	log.Infof("filtering /%s/ on %s for %s", b.config.ManagedRoot, b.config.ListenAddress, b.config.Upstream)
	return endless.ListenAndServe(b.config.ListenAddress, handler)
}

func (b *Botfilter) logMemoryStats() {
	ticker := time.NewTicker(b.config.WindowSize)
	defer ticker.Stop()

	for {
		select {
		case <-b.ctx.Done():
			return
		case <-ticker.C:
			var m runtime.MemStats
			runtime.ReadMemStats(&m)

			log.Infof("-=- alloc: %s, in_use: %s, objs: %s, idle: %s, released: %s, stack: %s, goroutines: %s",
				humanize.Bytes(m.Alloc),
				humanize.Bytes(m.HeapInuse),
				humanize.Comma(int64(m.HeapObjects)),
				humanize.Bytes(m.HeapIdle),
				humanize.Bytes(m.HeapReleased),
				humanize.Bytes(m.StackInuse),
				humanize.Comma(int64(runtime.NumGoroutine())))
		}
	}
}

// expire drops decision windows and recent decisions that are older than
// WindowSize * NumWindows at now
func (b *Botfilter) expire(now time.Time) {
	b.stats.Expire(now)
	b.filter.Recent().Expire(now)
}

// statsWorker expires old decision windows and logs the totals
func (b *Botfilter) statsWorker() {
	ticker := time.NewTicker(b.config.WindowSize)
	defer ticker.Stop()

	for {
		select {
		case <-b.ctx.Done():
			return
		case now := <-ticker.C:
			b.expire(now)
			t := b.stats.Totals()

			counts, err := b.evidence.Counts()
			if err != nil {
				log.Warnf("counting evidence: %s", err)
			}

			log.Infof("stats :: %s decisions / %s pixel / %s interstitial / %s pass / %s trapped / %s verified :: evidence %s useragents / %s IPs",
				humanize.Comma(t.Total),
				humanize.Comma(t.Pixel),
				humanize.Comma(t.Interstitial),
				humanize.Comma(t.Pass),
				humanize.Comma(t.Trapped),
				humanize.Comma(t.Verified),
				humanize.Comma(int64(counts.UserAgents)),
				humanize.Comma(int64(counts.IPs)))
		}
	}
}
