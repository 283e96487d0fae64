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

package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

const (
	// StoreFile keeps the evidence in two line-oriented text files
	StoreFile = "file"
	// StoreBadger keeps the evidence in a badger database
	StoreBadger = "badger"
)

// Config contains all configurable bits and pieces the botfilter application needs
// The configuration gets passed on to all parts of the application that need to access it
type Config struct {
	// routing
	ManagedRoot string
	TrapToken   string
	PixelToken  string
	LandingPath string
	VerifyParam string
	IPSources   string

	// evidence
	Store         string
	DataDir       string
	UserAgentFile string
	IPFile        string
	BadgerPath    string
	CacheTTL      time.Duration

	// deployment
	MarkerFile    string
	SignatureTOML string
	Upstream      string
	ListenAddress string
	APIAddress    string
	ReplayLog     string
	ReplayFormat  string

	// interstitial page
	RedirectDelay   int
	LogoSrc         string
	DocumentTitle   string
	RedirectText    string
	RedirectingText string
	ContinueText    string
	ContinueLink    string

	// NATS
	NatsURL      string
	NatsSubject  string
	NatsUser     string
	NatsPassword string

	// logging and stats
	LogLevel       string
	LogFormat      string
	LogMemoryStats bool
	WindowSize     time.Duration
	NumWindows     int
	KeepEvents     int
}

// Default returns a configuration with the values the filter ships with
func Default() *Config {
	return &Config{
		ManagedRoot:     "gh",
		TrapToken:       "ruabot",
		PixelToken:      "pixelbot",
		VerifyParam:     "__verified",
		IPSources:       "remote,x-forwarded-for,client-ip",
		Store:           StoreFile,
		DataDir:         ".",
		UserAgentFile:   "user-agents.txt",
		IPFile:          "ips.txt",
		BadgerPath:      "./badger",
		ListenAddress:   ":8080",
		RedirectDelay:   3,
		DocumentTitle:   "Traffic Filter",
		RedirectText:    "You will be redirected in %s seconds.",
		RedirectingText: "Redirecting you now...",
		ContinueText:    "Or click %s to continue to %s.",
		ContinueLink:    "here",
		NatsSubject:     "botfilter.events",
		LogLevel:        "info",
		LogFormat:       "text",
		WindowSize:      time.Minute,
		NumWindows:      60,
		KeepEvents:      100,
	}
}

// Landing returns the path trapped visitors are sent to
func (c *Config) Landing() string {
	if c.LandingPath != "" {
		return c.LandingPath
	}
	return "/" + c.ManagedRoot + "/"
}

// Sources returns the ordered list of client IP sources
func (c *Config) Sources() []string {
	sources := make([]string, 0)
	for _, s := range strings.Split(c.IPSources, ",") {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			sources = append(sources, s)
		}
	}
	return sources
}

// Validate checks the configuration for values the filter can't work with
func (c *Config) Validate() error {
	c.ManagedRoot = strings.Trim(c.ManagedRoot, "/ ")
	if c.ManagedRoot == "" {
		return errors.New("the managed root must not be empty")
	}

	if c.TrapToken == "" || strings.Contains(c.TrapToken, "/") {
		return fmt.Errorf("invalid trap token %q", c.TrapToken)
	}

	if c.PixelToken == "" || strings.Contains(c.PixelToken, "/") {
		return fmt.Errorf("invalid pixel token %q", c.PixelToken)
	}

	if c.VerifyParam == "" {
		return errors.New("the verification parameter must not be empty")
	}

	if len(c.Sources()) == 0 {
		return errors.New("at least one client IP source is required")
	}

	switch c.Store {
	case StoreFile, StoreBadger:
	default:
		return fmt.Errorf("unknown evidence store %q, must be one of %s, %s", c.Store, StoreFile, StoreBadger)
	}

	if c.RedirectDelay < 0 {
		return fmt.Errorf("redirect delay must not be negative but is %d", c.RedirectDelay)
	}

	if strings.Count(c.RedirectText, "%s") != 1 {
		return fmt.Errorf("redirect text %q must contain exactly one %%s", c.RedirectText)
	}

	if strings.Count(c.ContinueText, "%s") != 2 {
		return fmt.Errorf("continue text %q must contain exactly two %%s", c.ContinueText)
	}

	if c.MarkerFile != "" {
		if _, err := os.Stat(c.MarkerFile); err != nil {
			return fmt.Errorf("host marker file: %w", err)
		}
	}

	if c.WindowSize <= 0 || c.NumWindows <= 0 {
		return fmt.Errorf("invalid stats windows %d x %s", c.NumWindows, c.WindowSize)
	}

	if c.KeepEvents < 0 {
		return fmt.Errorf("the number of kept events must not be negative but is %d", c.KeepEvents)
	}

	return nil
}
