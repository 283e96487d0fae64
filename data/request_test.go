package data

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

var defaultSources = []string{SourceRemote, SourceXForwardedFor, SourceClientIP}

func TestClientIP(t *testing.T) {
	testCases := []struct {
		name    string
		remote  string
		headers map[string]string
		sources []string
		want    string
	}{
		{
			name:    "remote address wins",
			remote:  "192.0.2.10:51234",
			headers: map[string]string{"X-Forwarded-For": "198.51.100.1"},
			sources: defaultSources,
			want:    "192.0.2.10",
		},
		{
			name:    "forwarded chain uses last entry",
			remote:  "",
			headers: map[string]string{"X-Forwarded-For": "203.0.113.5, 198.51.100.1 , 198.51.100.2 "},
			sources: defaultSources,
			want:    "198.51.100.2",
		},
		{
			name:    "client ip after empty forwarded for",
			remote:  "",
			headers: map[string]string{"Client-IP": " 203.0.113.9 "},
			sources: defaultSources,
			want:    "203.0.113.9",
		},
		{
			name:    "proxy deployment prefers headers",
			remote:  "10.0.0.1:443",
			headers: map[string]string{"X-Real-IP": "203.0.113.7"},
			sources: []string{SourceXRealIP, SourceRemote},
			want:    "203.0.113.7",
		},
		{
			name:    "ipv6 remote",
			remote:  "[2001:db8::1]:8080",
			sources: defaultSources,
			want:    "2001:db8::1",
		},
		{
			name:    "ipv6 header spelling is canonicalized",
			remote:  "",
			headers: map[string]string{"X-Forwarded-For": "2001:0DB8:0:0::0001"},
			sources: defaultSources,
			want:    "2001:db8::1",
		},
		{
			name:    "nothing found",
			remote:  "",
			sources: defaultSources,
			want:    "",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/gh/o/", nil)
			r.RemoteAddr = tc.remote
			for k, v := range tc.headers {
				r.Header.Set(k, v)
			}

			assert.Equal(t, tc.want, ClientIP(r, tc.sources))
		})
	}
}

func TestNormalizeIP(t *testing.T) {
	assert.Equal(t, "2001:db8::1", NormalizeIP(" 2001:DB8:0::1 "))
	assert.Equal(t, "192.0.2.1", NormalizeIP("192.0.2.1"))
	assert.Equal(t, "unknown", NormalizeIP(" unknown "))
	assert.Equal(t, "", NormalizeIP(""))
}

func TestFirstIP(t *testing.T) {
	values := map[string]string{
		"remote":          "-",
		"x-forwarded-for": "10.0.0.1, 2001:DB8::0001",
	}
	lookup := func(source string) string { return values[source] }

	assert.Equal(t, "2001:db8::1", FirstIP([]string{"remote", "x-forwarded-for"}, lookup))
	assert.Equal(t, "", FirstIP([]string{"remote", "client-ip"}, lookup))
}

func TestNewRequest(t *testing.T) {
	r := httptest.NewRequest("POST", "http://example.com/gh/c/abc123?__verified=true&x=1", nil)
	r.RemoteAddr = "192.0.2.1:1234"
	r.Header.Set("User-Agent", "Mozilla/5.0")
	r.Header.Set("Referer", " http://mail.google.com/ ")

	req := NewRequest(r, defaultSources)

	assert.Equal(t, "POST", req.Method)
	assert.Equal(t, "/gh/c/abc123", req.Path)
	assert.Equal(t, "/gh/c/abc123?__verified=true&x=1", req.URI)
	assert.Equal(t, "example.com", req.Host)
	assert.Equal(t, "Mozilla/5.0", req.UserAgent)
	assert.Equal(t, "http://mail.google.com/", req.Referer)
	assert.Equal(t, "192.0.2.1", req.IP)
	assert.True(t, req.Has("__verified"))
	assert.False(t, req.Has("missing"))
}

func TestNewRequestKeepsURILocal(t *testing.T) {
	r := httptest.NewRequest("GET", "/gh/c/abc", nil)
	r.URL.Path = "//evil.example/gh/c/abc"

	req := NewRequest(r, defaultSources)
	assert.Equal(t, "/evil.example/gh/c/abc", req.URI)
}
