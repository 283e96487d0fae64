package botfilter

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/pelletier/go-toml"
	log "github.com/sirupsen/logrus"
	fsnotify "gopkg.in/fsnotify.v1"
)

// Signature describes a mail client or proxy that prefetches tracking images.
// A request matches when its user agent equals Useragent and its referer
// equals Referer. With EmptyReferer set the referer has to be absent instead.
type Signature struct {
	Description  string
	Useragent    string
	Referer      string
	EmptyReferer bool
}

// Matches reports whether userAgent and referer match the signature
func (s Signature) Matches(userAgent, referer string) bool {
	if userAgent != s.Useragent {
		return false
	}
	if s.EmptyReferer {
		return referer == ""
	}
	return referer == s.Referer
}

// SignatureRules is the layout of the signature TOML file
type SignatureRules struct {
	Prefetch []Signature
}

// DefaultSignatures are the prefetchers the filter knows about without configuration
var DefaultSignatures = []Signature{
	{
		Description: "gmail-image-prefetch",
		Useragent:   "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/42.0.2311.135 Safari/537.36 Edge/12.246 Mozilla/5.0",
		Referer:     "http://mail.google.com/",
	},
	{
		Description:  "apple-mail-privacy-protection",
		Useragent:    "Mozilla/5.0",
		EmptyReferer: true,
	},
}

// Signatures holds the current list of prefetch signatures.
// When created from a file the list is reloaded whenever the file is written.
type Signatures struct {
	path      string
	list      []Signature
	UpdatedAt time.Time
	mutex     sync.RWMutex
	ctx       context.Context
}

// NewSignatures returns the default signatures. If path is not empty the
// signatures from that TOML file follow the defaults and are reloaded on change.
func NewSignatures(ctx context.Context, path string) (*Signatures, error) {
	s := &Signatures{
		path: path,
		list: DefaultSignatures,
		ctx:  ctx,
	}

	if path == "" {
		return s, nil
	}

	if err := s.Load(); err != nil {
		return nil, err
	}

	if err := s.reloadOnChanges(); err != nil {
		return nil, err
	}

	return s, nil
}

// List returns the current signatures in match order
func (s *Signatures) List() []Signature {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	return s.list
}

// Load reads the signature file and replaces the current signatures
func (s *Signatures) Load() error {
	var rules SignatureRules

	configBytes, err := os.ReadFile(s.path)
	if err != nil {
		return err
	}

	err = toml.Unmarshal(configBytes, &rules)
	if err != nil {
		return fmt.Errorf("%s: %w", s.path, err)
	}

	for i, r := range rules.Prefetch {
		if r.Useragent == "" {
			return fmt.Errorf("%s: prefetch signature %d (%s) has no user agent", s.path, i, r.Description)
		}
	}

	list := make([]Signature, 0, len(DefaultSignatures)+len(rules.Prefetch))
	list = append(list, DefaultSignatures...)
	list = append(list, rules.Prefetch...)

	s.mutex.Lock()
	s.list = list
	s.UpdatedAt = time.Now()
	s.mutex.Unlock()

	log.Infof("%d prefetch signatures loaded from %s", len(rules.Prefetch), s.path)
	return nil
}

func (s *Signatures) reloadOnChanges() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("signature file watcher: %w", err)
	}

	if err := watcher.Add(s.path); err != nil {
		watcher.Close()
		return fmt.Errorf("watch %s: %w", s.path, err)
	}

	go func() {
		defer watcher.Close()

		for {
			select {
			case <-s.ctx.Done():
				log.Infof("signature file watcher exiting")
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&fsnotify.Write == fsnotify.Write {
					if err := s.Load(); err != nil {
						log.Warnf("keeping previous signatures: %s", err)
					}
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Warnf("signature file watcher error event: %s", err)
			}
		}
	}()

	return nil
}
