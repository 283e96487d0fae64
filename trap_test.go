package botfilter

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrapLink(t *testing.T) {
	link := TrapLink("https://example.com/", "/gh/", "ruabot")
	assert.Regexp(t, `^https://example\.com/gh/c/ruabot/[0-9a-z]{26}$`, link)
	assert.NotEqual(t, link, TrapLink("https://example.com/", "/gh/", "ruabot"))

	u, err := url.Parse(link)
	require.NoError(t, err)

	route, err := NewRouter("gh", "ruabot", "pixelbot").Route(u.Path)
	require.NoError(t, err)
	assert.Equal(t, Trap, route)
}

func TestTrapSnippet(t *testing.T) {
	snippet := TrapSnippet("https://example.com/gh/c/ruabot/1?a=1&b=2", "Don't <click>")

	assert.Contains(t, snippet, `display: none`)
	assert.Contains(t, snippet, `href="https://example.com/gh/c/ruabot/1?a=1&amp;b=2"`)
	assert.Contains(t, snippet, `Don&#39;t &lt;click&gt;`)
}
