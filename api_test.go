package botfilter

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/scraperwall/botfilter/config"
	"github.com/scraperwall/botfilter/data"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBotfilter(t *testing.T) *Botfilter {
	t.Helper()

	cfg := config.Default()
	cfg.DataDir = t.TempDir()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	b, err := New(ctx, cfg)
	require.NoError(t, err)

	return b
}

func apiRequest(t *testing.T, api *API, method, path string, out interface{}) int {
	t.Helper()

	w := httptest.NewRecorder()
	api.router.ServeHTTP(w, httptest.NewRequest(method, path, nil))

	if out != nil {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), out), w.Body.String())
	}
	return w.Code
}

func TestAPIIPs(t *testing.T) {
	b := newTestBotfilter(t)
	api := NewAPI(b.ctx, b.config, b)

	assert.Equal(t, http.StatusCreated, apiRequest(t, api, "POST", "/evidence/ips/192.0.2.7", nil))
	assert.Equal(t, http.StatusCreated, apiRequest(t, api, "POST", "/evidence/ips/2001:db8::1", nil))
	assert.Equal(t, http.StatusUnprocessableEntity, apiRequest(t, api, "POST", "/evidence/ips/not-an-ip", nil))

	var ips []string
	assert.Equal(t, http.StatusOK, apiRequest(t, api, "GET", "/evidence/ips", &ips))
	assert.Equal(t, []string{"192.0.2.7", "2001:db8::1"}, ips)
	assert.True(t, b.Evidence().KnownIP("192.0.2.7"))

	assert.Equal(t, http.StatusNoContent, apiRequest(t, api, "DELETE", "/evidence/ips/192.0.2.7", nil))
	assert.False(t, b.Evidence().KnownIP("192.0.2.7"))
}

func TestAPIIPMatchesLiveTraffic(t *testing.T) {
	b := newTestBotfilter(t)
	api := NewAPI(b.ctx, b.config, b)

	assert.Equal(t, http.StatusCreated, apiRequest(t, api, "POST", "/evidence/ips/2001:DB8:0::1", nil))

	req := get("/gh/o/1", "Mozilla/5.0", "")
	req.RemoteAddr = "[2001:db8::1]:1234"
	b.Filter().Serve(httptest.NewRecorder(), req)

	events := b.Filter().Recent().Events()
	require.Len(t, events, 1)
	assert.Equal(t, "2001:db8::1", events[0].IP)
	assert.Equal(t, KnownIPRule.Name, events[0].Reason)

	assert.Equal(t, http.StatusNoContent, apiRequest(t, api, "DELETE", "/evidence/ips/2001:0db8::0001", nil))
	assert.False(t, b.Evidence().KnownIP("2001:db8::1"))
}

func TestAPIUserAgents(t *testing.T) {
	b := newTestBotfilter(t)
	api := NewAPI(b.ctx, b.config, b)
	fp := Fingerprint("Scanner/1.0")

	require.NoError(t, b.Evidence().Record("Scanner/1.0", ""))

	var fps []string
	assert.Equal(t, http.StatusOK, apiRequest(t, api, "GET", "/evidence/useragents", &fps))
	assert.Equal(t, []string{fp}, fps)

	assert.Equal(t, http.StatusUnprocessableEntity, apiRequest(t, api, "DELETE", "/evidence/useragents/abc", nil))
	assert.Equal(t, http.StatusNoContent, apiRequest(t, api, "DELETE", "/evidence/useragents/"+strings.ToUpper(fp), nil))
	assert.False(t, b.Evidence().KnownUserAgent("Scanner/1.0"))
}

func TestAPIEvidenceCountsAndClear(t *testing.T) {
	b := newTestBotfilter(t)
	api := NewAPI(b.ctx, b.config, b)

	require.NoError(t, b.Evidence().Record("Scanner/1.0", "192.0.2.1"))
	require.NoError(t, b.Evidence().Record("Crawler/2.0", "192.0.2.2"))

	var counts EvidenceCounts
	assert.Equal(t, http.StatusOK, apiRequest(t, api, "GET", "/evidence", &counts))
	assert.Equal(t, 2, counts.UserAgents)
	assert.Equal(t, 2, counts.IPs)

	assert.Equal(t, http.StatusNoContent, apiRequest(t, api, "DELETE", "/evidence", nil))

	assert.Equal(t, http.StatusOK, apiRequest(t, api, "GET", "/evidence", &counts))
	assert.Equal(t, 0, counts.UserAgents)
	assert.Equal(t, 0, counts.IPs)
}

func TestAPIStats(t *testing.T) {
	b := newTestBotfilter(t)
	api := NewAPI(b.ctx, b.config, b)

	b.Filter().Serve(httptest.NewRecorder(), get("/gh/o/pixelbot", "Scanner/1.0", "192.0.2.1"))
	b.Filter().Serve(httptest.NewRecorder(), get("/gh/c/ruabot/1", "Scanner/1.0", "192.0.2.1"))

	var stats struct {
		Totals  Stats            `json:"totals"`
		Reasons map[string]int64 `json:"reasons"`
		Windows []Stats          `json:"windows"`
	}
	assert.Equal(t, http.StatusOK, apiRequest(t, api, "GET", "/stats", &stats))
	assert.Equal(t, int64(2), stats.Totals.Total)
	assert.Equal(t, map[string]int64{"pixel-trap": 1, "trap": 1}, stats.Reasons)
	assert.Equal(t, int64(1), stats.Totals.Trapped)
	assert.NotEmpty(t, stats.Windows)

	var events []data.Event
	assert.Equal(t, http.StatusOK, apiRequest(t, api, "GET", "/decisions", &events))
	require.Len(t, events, 2)
	assert.Equal(t, data.EventTrapped, events[0].Kind)
	assert.Equal(t, "pixel-trap", events[1].Route)
}

func TestAPITrapLink(t *testing.T) {
	b := newTestBotfilter(t)
	api := NewAPI(b.ctx, b.config, b)

	var res struct {
		Link    string `json:"link"`
		Snippet string `json:"snippet"`
	}
	assert.Equal(t, http.StatusOK, apiRequest(t, api, "GET", "/trap-link?base=https://news.example.com&label=Preferences", &res))
	assert.Regexp(t, `^https://news\.example\.com/gh/c/ruabot/[0-9a-z]{26}$`, res.Link)
	assert.Contains(t, res.Snippet, res.Link)
	assert.Contains(t, res.Snippet, ">Preferences</a>")
}

func TestExpireDropsOldDecisions(t *testing.T) {
	b := newTestBotfilter(t)
	api := NewAPI(b.ctx, b.config, b)

	b.Filter().Serve(httptest.NewRecorder(), get("/gh/o/pixelbot", "Scanner/1.0", "192.0.2.1"))
	require.Equal(t, 1, b.Filter().Recent().Len())

	ttl := b.config.WindowSize * time.Duration(b.config.NumWindows)
	b.expire(time.Now().Add(ttl / 2))
	assert.Equal(t, 1, b.Filter().Recent().Len())

	b.expire(time.Now().Add(ttl + time.Minute))
	assert.Equal(t, 0, b.Filter().Recent().Len())
	assert.Equal(t, int64(0), b.Stats().Totals().Total)

	var events []data.Event
	assert.Equal(t, http.StatusOK, apiRequest(t, api, "GET", "/decisions", &events))
	assert.Empty(t, events)
}
