package data

import (
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client IP sources understood by NewRequest
const (
	SourceRemote        = "remote"
	SourceXForwardedFor = "x-forwarded-for"
	SourceClientIP      = "client-ip"
	SourceXRealIP       = "x-real-ip"
)

// Request is the snapshot of an inbound HTTP request that the filter works on.
// It is built once at the boundary and never modified afterwards.
type Request struct {
	Method    string     `json:"method"`
	Path      string     `json:"path"`
	URI       string     `json:"uri"`
	Host      string     `json:"host"`
	UserAgent string     `json:"useragent"`
	Referer   string     `json:"referer"`
	IP        string     `json:"ip"`
	Query     url.Values `json:"-"`
	Time      time.Time  `json:"time"`
}

// NewRequest builds a Request from an http.Request. The client IP is the first
// non-empty value of sources, see ClientIP.
func NewRequest(r *http.Request, sources []string) *Request {
	return &Request{
		Method:    r.Method,
		Path:      r.URL.Path,
		URI:       localURI(r.URL.RequestURI()),
		Host:      r.Host,
		UserAgent: r.Header.Get("User-Agent"),
		Referer:   strings.TrimSpace(r.Header.Get("Referer")),
		IP:        ClientIP(r, sources),
		Query:     r.URL.Query(),
		Time:      time.Now(),
	}
}

// NewLogRequest builds a Request from the fields of an access log line.
// Log files write "-" for missing values.
func NewLogRequest(method, uri, host, userAgent, referer, ip string, t time.Time) (*Request, error) {
	u, err := url.ParseRequestURI(uri)
	if err != nil {
		return nil, err
	}

	if referer == "-" {
		referer = ""
	}
	if userAgent == "-" {
		userAgent = ""
	}

	return &Request{
		Method:    method,
		Path:      u.Path,
		URI:       localURI(u.RequestURI()),
		Host:      host,
		UserAgent: userAgent,
		Referer:   strings.TrimSpace(referer),
		IP:        NormalizeIP(ip),
		Query:     u.Query(),
		Time:      t,
	}, nil
}

// Has reports whether the query string carries the parameter name
func (r *Request) Has(name string) bool {
	_, ok := r.Query[name]
	return ok
}

// ClientIP returns the first non-empty value of the given sources, see FirstIP
func ClientIP(r *http.Request, sources []string) string {
	return FirstIP(sources, func(source string) string {
		switch source {
		case SourceRemote:
			if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
				return host
			}
			return r.RemoteAddr
		case SourceXForwardedFor:
			return r.Header.Get("X-Forwarded-For")
		case SourceClientIP:
			return r.Header.Get("Client-IP")
		case SourceXRealIP:
			return r.Header.Get("X-Real-IP")
		}
		return r.Header.Get(source)
	})
}

// FirstIP asks lookup for the value of each source in order and uses the
// first non-empty one. If that value is a comma separated chain the last
// entry is used. The result is normalized with NormalizeIP.
func FirstIP(sources []string, lookup func(source string) string) string {
	for _, source := range sources {
		value := strings.TrimSpace(lookup(source))
		if value == "" || value == "-" {
			continue
		}

		chain := strings.Split(value, ",")
		return NormalizeIP(chain[len(chain)-1])
	}

	return ""
}

// NormalizeIP trims ip and writes valid addresses in their canonical form,
// so that every spelling of an IPv6 address is stored and matched the same.
// Anything that doesn't parse is only trimmed.
func NormalizeIP(ip string) string {
	ip = strings.TrimSpace(ip)
	if parsed := net.ParseIP(ip); parsed != nil {
		return parsed.String()
	}
	return ip
}

// localURI keeps uri on the same host when a browser is sent to it,
// "//evil.example/x" would otherwise be a protocol-relative URL.
func localURI(uri string) string {
	return "/" + strings.TrimLeft(uri, `/\`)
}
