package botfilter

import (
	"errors"
	"strings"
)

// RouteKind tells which kind of tracking endpoint a request path belongs to
type RouteKind int

const (
	// NotManaged paths are none of the filter's business
	NotManaged RouteKind = iota
	// Open is the tracking pixel endpoint
	Open
	// PixelTrap is the honeypot image that always gets the pixel
	PixelTrap
	// Click is the link redirect endpoint
	Click
	// Trap is the honeypot link hidden in every email
	Trap
)

func (k RouteKind) String() string {
	switch k {
	case Open:
		return "open"
	case PixelTrap:
		return "pixel-trap"
	case Click:
		return "click"
	case Trap:
		return "trap"
	default:
		return "not-managed"
	}
}

// ErrMalformedRoute is returned for legacy tracking paths without a usable endpoint segment
var ErrMalformedRoute = errors.New("malformed legacy tracking route")

// Router maps request paths below the managed root to endpoint kinds
type Router struct {
	click  string
	open   string
	legacy string
	trap   string
	pixel  string
}

// NewRouter creates a router for the managed root (e.g. "gh")
func NewRouter(root, trapToken, pixelToken string) *Router {
	root = "/" + strings.Trim(root, "/") + "/"

	return &Router{
		click:  root + "c/",
		open:   root + "o/",
		legacy: root + "tracking/email/",
		trap:   root + "c/" + trapToken,
		pixel:  root + "o/" + pixelToken,
	}
}

// Route returns the endpoint kind for path. Paths are matched anywhere so a
// site installed below a sub directory still gets filtered.
func (rt *Router) Route(path string) (RouteKind, error) {
	switch {
	case strings.Contains(path, rt.trap):
		return Trap, nil
	case strings.Contains(path, rt.click):
		return Click, nil
	case strings.Contains(path, rt.pixel):
		return PixelTrap, nil
	case strings.Contains(path, rt.open):
		return Open, nil
	case strings.Contains(path, rt.legacy):
		return rt.legacyRoute(path)
	}

	return NotManaged, nil
}

// legacyRoute reads the endpoint from the first segment after the legacy
// prefix, e.g. /gh/tracking/email/click/...
func (rt *Router) legacyRoute(path string) (RouteKind, error) {
	rest := path[strings.Index(path, rt.legacy)+len(rt.legacy):]

	segment := ""
	for _, s := range strings.Split(rest, "/") {
		if s != "" {
			segment = s
			break
		}
	}

	switch segment {
	case "open":
		return Open, nil
	case "click":
		return Click, nil
	}

	return NotManaged, ErrMalformedRoute
}

