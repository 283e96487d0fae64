package botfilter

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/scraperwall/botfilter/config"
	"github.com/scraperwall/botfilter/data"
	"github.com/scraperwall/botfilter/store"
	log "github.com/sirupsen/logrus"
)

const (
	userAgentNamespace = "ua"
	ipNamespace        = "ip"
)

// Fingerprint returns the hex encoded SHA-256 digest of a user agent.
// Only fingerprints of user agents are ever stored.
func Fingerprint(userAgent string) string {
	sum := sha256.Sum256([]byte(userAgent))
	return hex.EncodeToString(sum[:])
}

// EvidenceReader answers whether a user agent or IP has been seen acting like a bot
type EvidenceReader interface {
	KnownUserAgent(userAgent string) bool
	KnownIP(ip string) bool
}

// Evidence is the durable record of user agent fingerprints and IPs that
// have been caught acting like bots.
type Evidence struct {
	userAgents store.Set
	ips        store.Set
	closers    []func() error
	closeOnce  sync.Once
	closeErr   error
}

// NewEvidence creates Evidence on top of two sets
func NewEvidence(userAgents, ips store.Set) *Evidence {
	return &Evidence{
		userAgents: userAgents,
		ips:        ips,
	}
}

// OpenEvidence opens the evidence store the configuration asks for
func OpenEvidence(ctx context.Context, cfg *config.Config) (*Evidence, error) {
	var uas, ips store.Set
	e := &Evidence{}

	switch cfg.Store {
	case config.StoreBadger:
		db, err := store.NewBadgerDB(ctx, cfg.BadgerPath)
		if err != nil {
			return nil, err
		}
		e.closers = append(e.closers, db.Close)
		uas = store.NewKVSet(db, userAgentNamespace)
		ips = store.NewKVSet(db, ipNamespace)
		log.Infof("evidence stored in badger db %s", cfg.BadgerPath)

	default:
		uaSet, err := store.NewFileSet(evidencePath(cfg.DataDir, cfg.UserAgentFile))
		if err != nil {
			return nil, fmt.Errorf("user agent evidence: %w", err)
		}
		ipSet, err := store.NewFileSet(evidencePath(cfg.DataDir, cfg.IPFile))
		if err != nil {
			return nil, fmt.Errorf("ip evidence: %w", err)
		}
		uas, ips = uaSet, ipSet
		log.Infof("evidence stored in %s and %s", uaSet.Path(), ipSet.Path())
	}

	if cfg.CacheTTL > 0 {
		cachedUAs := store.NewCachedSet(uas, cfg.CacheTTL)
		cachedIPs := store.NewCachedSet(ips, cfg.CacheTTL)
		e.closers = append(e.closers, cachedUAs.Close, cachedIPs.Close)
		uas, ips = cachedUAs, cachedIPs
	}

	e.userAgents = uas
	e.ips = ips

	return e, nil
}

func evidencePath(dir, file string) string {
	if filepath.IsAbs(file) {
		return file
	}
	return filepath.Join(dir, file)
}

// KnownUserAgent reports whether the fingerprint of userAgent is stored.
// Read errors count as "not known".
func (e *Evidence) KnownUserAgent(userAgent string) bool {
	fp := Fingerprint(userAgent)
	ok, err := e.userAgents.Contains(fp)
	if err != nil {
		log.Errorf("user agent evidence lookup failed: %s", err)
		return false
	}
	return ok
}

// KnownIP reports whether ip is stored in any spelling. Read errors count as "not known".
func (e *Evidence) KnownIP(ip string) bool {
	ip = data.NormalizeIP(ip)
	if ip == "" {
		return false
	}

	ok, err := e.ips.Contains(ip)
	if err != nil {
		log.Errorf("ip evidence lookup failed: %s", err)
		return false
	}
	return ok
}

// Record stores the fingerprint of userAgent and the IP as bot evidence
func (e *Evidence) Record(userAgent, ip string) error {
	fp := Fingerprint(userAgent)
	if err := e.userAgents.Add(fp); err != nil {
		return fmt.Errorf("store user agent %s: %w", fp, err)
	}

	if ip = data.NormalizeIP(ip); ip != "" {
		if err := e.ips.Add(ip); err != nil {
			return fmt.Errorf("store ip %s: %w", ip, err)
		}
	}

	log.Infof("recorded bot evidence for %s (%s)", ip, fp)
	return nil
}

// Retract removes the fingerprint of userAgent and the IP from the evidence.
// Both removals are attempted even if the first one fails.
func (e *Evidence) Retract(userAgent, ip string) error {
	fp := Fingerprint(userAgent)
	uaErr := e.userAgents.Remove(fp)

	var ipErr error
	if ip = data.NormalizeIP(ip); ip != "" {
		ipErr = e.ips.Remove(ip)
	}

	switch {
	case uaErr != nil:
		return fmt.Errorf("remove user agent %s: %w", fp, uaErr)
	case ipErr != nil:
		return fmt.Errorf("remove ip %s: %w", ip, ipErr)
	}

	log.Debugf("retracted bot evidence for %s (%s)", ip, fp)
	return nil
}

// AddIP stores a single IP
func (e *Evidence) AddIP(ip string) error {
	return e.ips.Add(data.NormalizeIP(ip))
}

// RemoveIP removes a single IP
func (e *Evidence) RemoveIP(ip string) error {
	return e.ips.Remove(data.NormalizeIP(ip))
}

// RemoveFingerprint removes a stored user agent fingerprint
func (e *Evidence) RemoveFingerprint(fp string) error {
	return e.userAgents.Remove(strings.ToLower(strings.TrimSpace(fp)))
}

// IPs returns all stored IPs
func (e *Evidence) IPs() ([]string, error) {
	return e.ips.Members()
}

// Fingerprints returns all stored user agent fingerprints
func (e *Evidence) Fingerprints() ([]string, error) {
	return e.userAgents.Members()
}

// EvidenceCounts holds the sizes of both evidence sets
type EvidenceCounts struct {
	UserAgents int       `json:"useragents"`
	IPs        int       `json:"ips"`
	Time       time.Time `json:"time"`
}

// Counts returns the number of stored fingerprints and IPs
func (e *Evidence) Counts() (EvidenceCounts, error) {
	fps, err := e.Fingerprints()
	if err != nil {
		return EvidenceCounts{}, err
	}
	ips, err := e.IPs()
	if err != nil {
		return EvidenceCounts{}, err
	}

	return EvidenceCounts{
		UserAgents: len(fps),
		IPs:        len(ips),
		Time:       time.Now(),
	}, nil
}

// Clear removes all evidence. This is what removing the filter does.
func (e *Evidence) Clear() error {
	if err := e.userAgents.Clear(); err != nil {
		return fmt.Errorf("clear user agents: %w", err)
	}
	if err := e.ips.Clear(); err != nil {
		return fmt.Errorf("clear ips: %w", err)
	}

	log.Info("all bot evidence cleared")
	return nil
}

// Close releases the underlying stores. Only the first call has an effect.
func (e *Evidence) Close() error {
	e.closeOnce.Do(func() {
		for i := len(e.closers) - 1; i >= 0; i-- {
			if err := e.closers[i](); err != nil && e.closeErr == nil {
				e.closeErr = err
			}
		}
	})
	return e.closeErr
}
