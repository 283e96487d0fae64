package main

import (
	"context"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/namsral/flag"
	"github.com/scraperwall/botfilter"
	"github.com/scraperwall/botfilter/config"
	log "github.com/sirupsen/logrus"
)

func main() {
	config := config.Default()

	// routing
	flag.StringVar(&config.ManagedRoot, "root", config.ManagedRoot, "the path segment below which the tracking endpoints live")
	flag.StringVar(&config.TrapToken, "trap-token", config.TrapToken, "the path segment that marks honeypot links")
	flag.StringVar(&config.PixelToken, "pixel-token", config.PixelToken, "the path segment of the pixel that is always served")
	flag.StringVar(&config.LandingPath, "landing", config.LandingPath, "where trapped clients are sent, defaults to /<root>/")
	flag.StringVar(&config.VerifyParam, "verify-param", config.VerifyParam, "the query parameter that marks a click as confirmed by a human")
	flag.StringVar(&config.IPSources, "ip-sources", config.IPSources, "comma separated client IP sources: remote, x-forwarded-for, client-ip, x-real-ip or any header name")

	// evidence
	flag.StringVar(&config.Store, "store", config.Store, "the evidence backend: file or badger")
	flag.StringVar(&config.DataDir, "data-dir", config.DataDir, "the directory of the evidence files")
	flag.StringVar(&config.UserAgentFile, "useragent-file", config.UserAgentFile, "the file of bot user agent fingerprints")
	flag.StringVar(&config.IPFile, "ip-file", config.IPFile, "the file of bot IPs")
	flag.StringVar(&config.BadgerPath, "badger-path", config.BadgerPath, "the directory where the badger database resides")
	flag.DurationVar(&config.CacheTTL, "cache-ttl", config.CacheTTL, "cache evidence lookups this long, 0 disables the cache")

	// deployment
	flag.StringVar(&config.MarkerFile, "marker-file", config.MarkerFile, "refuse to serve the tracking endpoints unless this file exists")
	flag.StringVar(&config.SignatureTOML, "signatures", config.SignatureTOML, "a TOML file with additional prefetch signatures")
	flag.StringVar(&config.Upstream, "upstream", config.Upstream, "the URL of the protected application")
	flag.StringVar(&config.ListenAddress, "listen", config.ListenAddress, "the address to listen on")
	flag.StringVar(&config.APIAddress, "api", config.APIAddress, "the address of the admin API, empty disables it")
	flag.StringVar(&config.ReplayLog, "replay", config.ReplayLog, "replay this access log through the filter and exit")
	flag.StringVar(&config.ReplayFormat, "replay-format", config.ReplayFormat, "the nginx log_format of the replayed log")

	// interstitial page
	flag.IntVar(&config.RedirectDelay, "redirect-delay", config.RedirectDelay, "seconds before the interstitial page redirects")
	flag.StringVar(&config.LogoSrc, "logo", config.LogoSrc, "the logo shown on the interstitial page")
	flag.StringVar(&config.DocumentTitle, "title", config.DocumentTitle, "the title of the interstitial page")
	flag.StringVar(&config.RedirectText, "redirect-text", config.RedirectText, "the countdown text, %s is replaced by the seconds")
	flag.StringVar(&config.RedirectingText, "redirecting-text", config.RedirectingText, "shown when the countdown has finished")
	flag.StringVar(&config.ContinueText, "continue-text", config.ContinueText, "the text around the continue link, the %s are the link and the host")
	flag.StringVar(&config.ContinueLink, "continue-link", config.ContinueLink, "the text of the continue link")

	// NATS
	flag.StringVar(&config.NatsURL, "nats-url", config.NatsURL, "publish decisions to this NATS server")
	flag.StringVar(&config.NatsSubject, "nats-subject", config.NatsSubject, "the NATS subject for decisions")
	flag.StringVar(&config.NatsUser, "nats-user", config.NatsUser, "the NATS user")
	flag.StringVar(&config.NatsPassword, "nats-password", config.NatsPassword, "the NATS password")

	// logging and stats
	flag.StringVar(&config.LogLevel, "loglevel", config.LogLevel, "the log level")
	flag.StringVar(&config.LogFormat, "logformat", config.LogFormat, "the log format: text or json")
	flag.BoolVar(&config.LogMemoryStats, "log-memory", config.LogMemoryStats, "periodically log memory statistics")
	flag.DurationVar(&config.WindowSize, "window-size", config.WindowSize, "size of one stats window")
	flag.IntVar(&config.NumWindows, "num-windows", config.NumWindows, "number of stats windows")
	flag.IntVar(&config.KeepEvents, "keep-events", config.KeepEvents, "keep this many most recent decisions for the API")

	flag.Parse()

	level, err := log.ParseLevel(config.LogLevel)
	if err != nil {
		log.Fatal(err)
	}
	log.SetLevel(level)
	if config.LogFormat == "json" {
		log.SetFormatter(&log.JSONFormatter{})
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	b, err := botfilter.New(ctx, config)
	if err != nil {
		log.Fatal(err)
	}

	if config.ReplayLog != "" {
		counts, err := b.LogReplay(config.ReplayLog, config.ReplayFormat)
		if err != nil {
			log.Fatal(err)
		}

		keys := make([]string, 0, len(counts))
		for k := range counts {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			log.Infof("%s: %d", k, counts[k])
		}

		b.Evidence().Close()
		return
	}

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		<-quit
		log.Println("exiting...")
		cancel()
		if err := b.Evidence().Close(); err != nil {
			log.Error(err)
		}
		os.Exit(0)
	}()

	if err := b.ListenAndServe(); err != nil {
		log.Fatal(err)
	}
}
